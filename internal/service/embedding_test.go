package service

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/cloo-solutions/citedoc/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func l2Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func TestHashEmbedding_Deterministic(t *testing.T) {
	a := HashEmbedding("The quick brown fox jumps over the lazy dog")
	b := HashEmbedding("The quick brown fox jumps over the lazy dog")

	assert.Equal(t, a, b)
	assert.Len(t, a, domain.EmbeddingDimensions)
	assert.InDelta(t, 1.0, l2Norm(a), 1e-6)
}

func TestHashEmbedding_KnownBucket(t *testing.T) {
	// "abc" hashes to 96354, and 96354 mod 384 = 354.
	v := HashEmbedding("abc")

	assert.InDelta(t, 1.0, v[354], 1e-6)
	assert.Equal(t, v, HashEmbedding("ABC"))
	assert.Equal(t, v, HashEmbedding("abc abc"))
}

func TestHashEmbedding_ZeroVector(t *testing.T) {
	for _, text := range []string{"", "   ", "a an to of"} {
		v := HashEmbedding(text)
		require.Len(t, v, domain.EmbeddingDimensions)
		assert.Zero(t, l2Norm(v), "text %q", text)
	}
}

func TestEmbedder_NilClientUsesFallback(t *testing.T) {
	embedder := NewEmbedder(nil)

	emb := embedder.Embed(context.Background(), "warranty coverage")

	assert.Equal(t, domain.HashEmbeddingModel, embedder.Model())
	assert.False(t, embedder.HasExternal())
	assert.Equal(t, domain.HashEmbeddingModel, emb.Model)
	assert.True(t, emb.Fallback)
	assert.Equal(t, HashEmbedding("warranty coverage"), emb.Vector)
}

func TestEmbedder_ExternalSuccess(t *testing.T) {
	client := new(MockEmbeddingClient)
	client.On("GenerateEmbedding", mock.Anything, "warranty coverage").Return([]float32{0.5, 0.5}, nil)

	embedder := NewEmbedderWithConfig(client, EmbedderConfig{Model: "text-embedding-3-small"})
	emb := embedder.Embed(context.Background(), "warranty coverage")

	assert.Equal(t, "text-embedding-3-small", emb.Model)
	assert.False(t, emb.Fallback)
	assert.Equal(t, []float32{0.5, 0.5}, emb.Vector)
	client.AssertExpectations(t)
}

func TestEmbedder_ExternalFailureFallsBack(t *testing.T) {
	tests := []struct {
		name   string
		vector []float32
		err    error
	}{
		{name: "error", err: errors.New("quota exceeded")},
		{name: "empty vector", vector: []float32{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := new(MockEmbeddingClient)
			if tt.vector == nil {
				client.On("GenerateEmbedding", mock.Anything, "shipping").Return(nil, tt.err)
			} else {
				client.On("GenerateEmbedding", mock.Anything, "shipping").Return(tt.vector, tt.err)
			}

			emb := NewEmbedder(client).Embed(context.Background(), "shipping")

			assert.True(t, emb.Fallback)
			assert.Equal(t, domain.HashEmbeddingModel, emb.Model)
			assert.Equal(t, HashEmbedding("shipping"), emb.Vector)
		})
	}
}

func TestEmbedder_TimeoutFallsBack(t *testing.T) {
	client := new(MockEmbeddingClient)
	client.On("GenerateEmbedding", mock.Anything, "slow").
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.DeadlineExceeded)

	embedder := NewEmbedderWithConfig(client, EmbedderConfig{Timeout: 20 * time.Millisecond})

	start := time.Now()
	emb := embedder.Embed(context.Background(), "slow")

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.True(t, emb.Fallback)
}

func TestEmbedder_BlankTextSkipsClient(t *testing.T) {
	client := new(MockEmbeddingClient)

	emb := NewEmbedder(client).Embed(context.Background(), "   ")

	assert.True(t, emb.Fallback)
	client.AssertNotCalled(t, "GenerateEmbedding", mock.Anything, mock.Anything)
}
