package llm

import (
	"context"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/solenko/tutord/internal/domain"
)

const (
	// DefaultChatModel is used when config leaves the model empty.
	DefaultChatModel = openai.GPT4oMini

	defaultGenTimeout = 20 * time.Second
)

// Message is one turn of a chat exchange.
type Message struct {
	Role    string
	Content string
}

// Chat roles.
const (
	RoleSystem    = openai.ChatMessageRoleSystem
	RoleUser      = openai.ChatMessageRoleUser
	RoleAssistant = openai.ChatMessageRoleAssistant
)

// ChatAPI is the slice of the OpenAI client the generator needs.
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Generator wraps hosted text generation. Transport failures, rate limits,
// and responses with no choices all surface as generation-unavailable; the
// generator never retries and never returns a silent empty string.
type Generator struct {
	api     ChatAPI
	model   string
	timeout time.Duration
}

// GeneratorConfig configures a Generator. Zero values fall back to defaults.
type GeneratorConfig struct {
	Model   string
	Timeout time.Duration
}

// NewGenerator creates a Generator over the given API client.
func NewGenerator(api ChatAPI, cfg GeneratorConfig) *Generator {
	if cfg.Model == "" {
		cfg.Model = DefaultChatModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultGenTimeout
	}
	return &Generator{api: api, model: cfg.Model, timeout: cfg.Timeout}
}

// Generate produces text from an optional system instruction and user
// content. temperature must be in [0, 1].
func (g *Generator) Generate(ctx context.Context, system, user string, maxTokens int, temperature float32) (string, error) {
	msgs := make([]Message, 0, 2)
	if system != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: system})
	}
	msgs = append(msgs, Message{Role: RoleUser, Content: user})
	return g.Chat(ctx, msgs, maxTokens, temperature)
}

// Chat produces text from a full message list.
func (g *Generator) Chat(ctx context.Context, messages []Message, maxTokens int, temperature float32) (string, error) {
	if len(messages) == 0 {
		return "", domain.New(domain.CodeValidation, "messages must not be empty")
	}
	if temperature < 0 || temperature > 1 {
		return "", domain.Newf(domain.CodeInvalidConfiguration, "temperature %.2f outside [0, 1]", temperature)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model:       g.model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := g.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", domain.Wrap(domain.CodeGenerationUnavailable, "generation request failed", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", domain.New(domain.CodeGenerationUnavailable, "generation response contained no content")
	}
	return resp.Choices[0].Message.Content, nil
}
