// Package config loads daemon settings from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/solenko/tutord/internal/domain"
)

type Config struct {
	Port     int    `envconfig:"PORT" default:"8080"`
	DataDir  string `envconfig:"DATA_DIR" default:"./data"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY"`
	EmbedModel   string `envconfig:"EMBED_MODEL"`
	EmbedDim     int    `envconfig:"EMBED_DIM" default:"1536"`
	ChatModel    string `envconfig:"CHAT_MODEL"`

	EmbedTimeout time.Duration `envconfig:"EMBED_TIMEOUT" default:"30s"`
	GenTimeout   time.Duration `envconfig:"GEN_TIMEOUT" default:"20s"`

	ChunkSize        int `envconfig:"CHUNK_SIZE" default:"500"`
	ChunkOverlap     int `envconfig:"CHUNK_OVERLAP" default:"80"`
	TopK             int `envconfig:"TOP_K" default:"4"`
	MaxContextTokens int `envconfig:"MAX_CONTEXT_TOKENS" default:"4000"`

	SessionTTL time.Duration `envconfig:"SESSION_TTL" default:"30m"`

	ReminderAt   string `envconfig:"REMINDER_AT" default:"18:00"`
	SMTPHost     string `envconfig:"SMTP_HOST"`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUsername string `envconfig:"SMTP_USERNAME"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
	SMTPFrom     string `envconfig:"SMTP_FROM"`

	MCPEnabled bool `envconfig:"MCP_ENABLED" default:"true"`
}

// Load reads TUTORD_-prefixed environment variables, after merging in a .env
// file when one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("TUTORD", &cfg); err != nil {
		return nil, fmt.Errorf("processing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate catches settings that would only fail deep inside a request.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return domain.Newf(domain.CodeInvalidConfiguration, "port %d out of range", c.Port)
	}
	if c.EmbedDim <= 0 {
		return domain.Newf(domain.CodeInvalidConfiguration, "embedding dimension %d must be positive", c.EmbedDim)
	}
	if c.ChunkSize <= 0 || c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return domain.Newf(domain.CodeInvalidConfiguration,
			"chunk size %d / overlap %d invalid", c.ChunkSize, c.ChunkOverlap)
	}
	if c.TopK <= 0 {
		return domain.Newf(domain.CodeInvalidConfiguration, "top-k %d must be positive", c.TopK)
	}
	if _, err := time.Parse("15:04", c.ReminderAt); err != nil {
		return domain.Newf(domain.CodeInvalidConfiguration, "reminder time %q is not HH:MM", c.ReminderAt)
	}
	return nil
}

// HasOpenAI reports whether hosted embedding/generation is configured.
func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

// HasSMTP reports whether the reminder mailer can be wired.
func (c *Config) HasSMTP() bool {
	return c.SMTPHost != "" && c.SMTPFrom != ""
}

// Addr is the listen address for the HTTP server. The daemon only binds
// loopback; remote access goes through whatever the operator puts in front.
func (c *Config) Addr() string {
	return fmt.Sprintf("127.0.0.1:%d", c.Port)
}
