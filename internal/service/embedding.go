package service

import (
	"context"
	"errors"
	"log"
	"math"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/cloo-solutions/citedoc/internal/domain"
	"github.com/cloo-solutions/citedoc/internal/telemetry"
)

const defaultEmbeddingTimeout = 10 * time.Second

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// Embedding is a vector together with the model that produced it.
type Embedding struct {
	Vector   []float32
	Model    string
	Fallback bool
}

// EmbedderConfig controls the external embedding call.
type EmbedderConfig struct {
	// Model names the external embedding model. Used to tag index vectors.
	Model   string
	Timeout time.Duration
}

// Embedder turns text into vectors. It prefers the external client and fails
// over to HashEmbedding on any error, never returning one.
type Embedder struct {
	client  EmbeddingClient
	model   string
	timeout time.Duration
}

// NewEmbedder creates an Embedder. A nil client means fallback-only.
func NewEmbedder(client EmbeddingClient) *Embedder {
	return NewEmbedderWithConfig(client, EmbedderConfig{})
}

// NewEmbedderWithConfig creates an Embedder with explicit configuration.
func NewEmbedderWithConfig(client EmbeddingClient, cfg EmbedderConfig) *Embedder {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultEmbeddingTimeout
	}
	if cfg.Model == "" {
		cfg.Model = "external"
	}
	return &Embedder{
		client:  client,
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}
}

// Model returns the model name used when the external client succeeds.
func (e *Embedder) Model() string {
	if e.client == nil {
		return domain.HashEmbeddingModel
	}
	return e.model
}

// HasExternal reports whether an external embedding client is configured.
func (e *Embedder) HasExternal() bool {
	return e.client != nil
}

// Embed converts text into a vector using the external model when possible.
func (e *Embedder) Embed(ctx context.Context, text string) Embedding {
	if e.client == nil || strings.TrimSpace(text) == "" {
		return e.EmbedFallback(text)
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	vector, err := e.client.GenerateEmbedding(callCtx, text)
	if err == nil && len(vector) == 0 {
		err = errors.New("empty embedding returned")
	}
	if err != nil {
		log.Printf("embedding: external model failed, using hash fallback: %v", err)
		telemetry.RecordFallback(ctx, "embedding", err.Error())
		return e.EmbedFallback(text)
	}

	return Embedding{Vector: vector, Model: e.model}
}

// EmbedFallback always uses the deterministic hash embedding.
func (e *Embedder) EmbedFallback(text string) Embedding {
	return Embedding{
		Vector:   HashEmbedding(text),
		Model:    domain.HashEmbeddingModel,
		Fallback: true,
	}
}

// HashEmbedding is the deterministic bag-of-hashed-words embedding.
// Tokens of two UTF-16 units or fewer are ignored; each remaining token
// increments the bucket abs(hash) mod 384, where hash is the 31-multiplier
// polynomial over UTF-16 code units truncated to int32. The result is
// L2-normalized; an all-zero accumulator is returned unchanged.
func HashEmbedding(text string) []float32 {
	acc := make([]float64, domain.EmbeddingDimensions)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		units := utf16.Encode([]rune(token))
		if len(units) <= 2 {
			continue
		}
		var h int32
		for _, u := range units {
			h = (h << 5) - h + int32(u)
		}
		bucket := int64(h)
		if bucket < 0 {
			bucket = -bucket
		}
		acc[bucket%domain.EmbeddingDimensions]++
	}

	var sum float64
	for _, v := range acc {
		sum += v * v
	}
	magnitude := math.Sqrt(sum)

	out := make([]float32, domain.EmbeddingDimensions)
	if magnitude == 0 {
		return out
	}
	for i, v := range acc {
		out[i] = float32(v / magnitude)
	}
	return out
}
