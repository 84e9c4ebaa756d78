package domain

import "time"

const (
	// EmbeddingDimensions is the fixed vector length used across the index
	EmbeddingDimensions = 384
	// HashEmbeddingModel names vectors produced by the deterministic fallback embedder
	HashEmbeddingModel = "hash-384"
)

// SimilarityIndex maps chunk index to vector for one document.
// It is built once, stored wholesale and never mutated afterwards.
type SimilarityIndex struct {
	DocumentID string
	Model      string
	Vectors    map[int][]float32
	BuiltAt    time.Time
}

// NewSimilarityIndex creates a new SimilarityIndex instance
func NewSimilarityIndex(documentID, model string, vectors map[int][]float32, builtAt time.Time) *SimilarityIndex {
	if vectors == nil {
		vectors = make(map[int][]float32)
	}
	return &SimilarityIndex{
		DocumentID: documentID,
		Model:      model,
		Vectors:    vectors,
		BuiltAt:    builtAt,
	}
}

// Vector returns the vector stored for a chunk index
func (idx *SimilarityIndex) Vector(chunkIndex int) ([]float32, bool) {
	if idx == nil {
		return nil, false
	}
	v, ok := idx.Vectors[chunkIndex]
	return v, ok
}
