package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solenko/tutord/internal/domain"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare json", `{"a": 1}`, `{"a": 1}`},
		{"plain fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"fence no newline", "```{\"a\": 1}```", `{"a": 1}`},
		{"surrounding whitespace", "  ```json\n[1, 2]\n```  ", `[1, 2]`},
		{"array on fence line", "```[1]```", `[1]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripFences(tt.in))
		})
	}
}

func TestParseJSONOutput(t *testing.T) {
	var cards []struct {
		Question string `json:"question"`
		Answer   string `json:"answer"`
	}
	raw := "```json\n[{\"question\": \"Q1\", \"answer\": \"A1\"}]\n```"
	require.NoError(t, ParseJSONOutput(raw, &cards))
	require.Len(t, cards, 1)
	assert.Equal(t, "Q1", cards[0].Question)
}

func TestParseJSONOutput_Malformed(t *testing.T) {
	var v any
	err := ParseJSONOutput("I cannot produce JSON today.", &v)
	assert.ErrorIs(t, err, domain.ErrMalformedGenerationOutput)

	err = ParseJSONOutput("```json\nstill not json\n```", &v)
	assert.ErrorIs(t, err, domain.ErrMalformedGenerationOutput)
}
