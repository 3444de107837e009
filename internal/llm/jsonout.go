package llm

import (
	"encoding/json"
	"strings"

	"github.com/solenko/tutord/internal/domain"
)

// StripFences removes a single leading and trailing fenced-code delimiter
// (``` with an optional language tag) from model output. Models frequently
// wrap JSON answers in a markdown fence even when told not to.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop the language tag up to the first newline, if present.
	if i := strings.IndexByte(s, '\n'); i >= 0 && !strings.ContainsAny(s[:i], "{[\"") {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// ParseJSONOutput strips fence markup from raw model output and unmarshals
// the remainder into v. A parse failure after stripping is a malformed-output
// error: the caller may re-prompt, but nothing here retries.
func ParseJSONOutput(raw string, v any) error {
	cleaned := StripFences(raw)
	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		return domain.Wrap(domain.CodeMalformedGenerationOutput, "model output is not the expected JSON", err)
	}
	return nil
}
