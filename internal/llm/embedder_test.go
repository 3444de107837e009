package llm

import (
	"context"
	"errors"
	"math"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solenko/tutord/internal/domain"
)

type fakeEmbeddingAPI struct {
	vectors map[string][]float32
	err     error
	calls   int
}

func (f *fakeEmbeddingAPI) CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error) {
	f.calls++
	if f.err != nil {
		return openai.EmbeddingResponse{}, f.err
	}
	req := conv.Convert()
	input, ok := req.Input.([]string)
	if !ok || len(input) == 0 {
		return openai.EmbeddingResponse{}, errors.New("unexpected input shape")
	}
	vec, ok := f.vectors[input[0]]
	if !ok {
		return openai.EmbeddingResponse{}, nil
	}
	return openai.EmbeddingResponse{
		Data: []openai.Embedding{{Embedding: vec}},
	}, nil
}

func TestEmbed_NormalizesVector(t *testing.T) {
	api := &fakeEmbeddingAPI{vectors: map[string][]float32{"cats": {3, 4, 0}}}
	e := NewEmbedder(api, EmbedderConfig{Dim: 3})

	vec, err := e.Embed(context.Background(), "cats")
	require.NoError(t, err)
	require.Len(t, vec, 3)

	var norm float64
	for _, x := range vec {
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-6)
}

func TestEmbed_TransportFailure(t *testing.T) {
	api := &fakeEmbeddingAPI{err: errors.New("connection refused")}
	e := NewEmbedder(api, EmbedderConfig{Dim: 3})

	_, err := e.Embed(context.Background(), "cats")
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestEmbed_EmptyResponse(t *testing.T) {
	api := &fakeEmbeddingAPI{vectors: map[string][]float32{}}
	e := NewEmbedder(api, EmbedderConfig{Dim: 3})

	_, err := e.Embed(context.Background(), "unknown")
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestEmbed_DimensionMismatch(t *testing.T) {
	api := &fakeEmbeddingAPI{vectors: map[string][]float32{"cats": {1, 2}}}
	e := NewEmbedder(api, EmbedderConfig{Dim: 3})

	_, err := e.Embed(context.Background(), "cats")
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestEmbed_EmptyText(t *testing.T) {
	e := NewEmbedder(&fakeEmbeddingAPI{}, EmbedderConfig{Dim: 3})
	_, err := e.Embed(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, domain.CodeValidation, domain.Code(err))
}

func TestEmbedBatch_PreservesOrder(t *testing.T) {
	api := &fakeEmbeddingAPI{vectors: map[string][]float32{
		"a": {1, 0, 0},
		"b": {0, 1, 0},
		"c": {0, 0, 1},
	}}
	e := NewEmbedder(api, EmbedderConfig{Dim: 3})

	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, float32(1), vecs[0][0])
	assert.Equal(t, float32(1), vecs[1][1])
	assert.Equal(t, float32(1), vecs[2][2])
}

func TestEmbedBatch_EmptyInput(t *testing.T) {
	e := NewEmbedder(&fakeEmbeddingAPI{}, EmbedderConfig{Dim: 3})
	vecs, err := e.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
}

func TestEmbedBatch_FailureFailsWholeBatch(t *testing.T) {
	api := &fakeEmbeddingAPI{vectors: map[string][]float32{"a": {1, 0, 0}}}
	e := NewEmbedder(api, EmbedderConfig{Dim: 3})

	_, err := e.EmbedBatch(context.Background(), []string{"a", "missing"})
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}
