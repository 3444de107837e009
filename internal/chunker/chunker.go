// Package chunker splits extracted document text into overlapping
// whitespace-token windows sized for the embedding model's input limit.
package chunker

import (
	"strings"

	"github.com/solenko/tutord/internal/domain"
)

// Defaults match the sizing the ingestion pipeline was tuned with.
const (
	DefaultSize    = 500
	DefaultOverlap = 80
)

// Split divides text into windows of size whitespace-delimited tokens,
// each window sharing overlap tokens with its predecessor. Output is
// deterministic for a given (text, size, overlap) and contains no empty
// chunks. Empty or whitespace-only input yields a nil slice.
//
// overlap must be in [0, size); anything else never advances the window
// and is rejected outright.
func Split(text string, size, overlap int) ([]string, error) {
	if size <= 0 {
		return nil, domain.Newf(domain.CodeInvalidConfiguration, "chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, domain.Newf(domain.CodeInvalidConfiguration, "chunk overlap must be in [0, size), got overlap=%d size=%d", overlap, size)
	}

	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return nil, nil
	}

	step := size - overlap
	chunks := make([]string, 0, (len(tokens)+step-1)/step)
	for start := 0; start < len(tokens); start += step {
		end := start + size
		if end > len(tokens) {
			end = len(tokens)
		}
		chunks = append(chunks, strings.Join(tokens[start:end], " "))
		if end == len(tokens) {
			break
		}
	}
	return chunks, nil
}
