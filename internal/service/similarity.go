package service

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/cloo-solutions/citedoc/internal/domain"
	"github.com/cloo-solutions/citedoc/internal/telemetry"
)

const (
	// DefaultTopK is the number of chunks returned by a similarity search
	DefaultTopK = 5
	// DefaultMinSimilarity is the exclusive lower bound for search results
	DefaultMinSimilarity = 0.1
)

// ScoredChunk is a chunk ranked against a query.
type ScoredChunk struct {
	Chunk      domain.Chunk
	Similarity float64
	// Matches is the raw keyword occurrence count; zero for vector results.
	Matches int
}

// CosineSimilarity returns dot(a,b)/(|a||b|). Missing components of the shorter
// vector count as zero, and the result is 0 when either magnitude is 0.
func CosineSimilarity(a, b []float32) float64 {
	var dot, magA, magB float64
	for i, v := range a {
		x := float64(v)
		magA += x * x
		if i < len(b) {
			dot += x * float64(b[i])
		}
	}
	for _, v := range b {
		y := float64(v)
		magB += y * y
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(magA) * math.Sqrt(magB))
	// Rounding can push the ratio a hair outside [-1, 1].
	if sim > 1 {
		return 1
	}
	if sim < -1 {
		return -1
	}
	return sim
}

// BuildIndex embeds every chunk of doc and returns a complete index.
// If any chunk falls back to the hash embedder while others used the external
// model, the whole index is rebuilt with the hash embedder so that all vectors
// share one space.
func BuildIndex(ctx context.Context, embedder *Embedder, doc *domain.Document) *domain.SimilarityIndex {
	vectors := make(map[int][]float32, len(doc.Chunks))
	model := embedder.Model()
	mixed := false

	for _, c := range doc.Chunks {
		emb := embedder.Embed(ctx, c.Text)
		if emb.Model != model {
			mixed = true
			break
		}
		vectors[c.Index] = emb.Vector
	}

	if mixed {
		model = domain.HashEmbeddingModel
		vectors = make(map[int][]float32, len(doc.Chunks))
		for _, c := range doc.Chunks {
			vectors[c.Index] = HashEmbedding(c.Text)
		}
	}

	return domain.NewSimilarityIndex(doc.ID, model, vectors, time.Now().UTC())
}

// hashIndex builds a transient index with the hash embedder.
func hashIndex(doc *domain.Document) *domain.SimilarityIndex {
	vectors := make(map[int][]float32, len(doc.Chunks))
	for _, c := range doc.Chunks {
		vectors[c.Index] = HashEmbedding(c.Text)
	}
	return domain.NewSimilarityIndex(doc.ID, domain.HashEmbeddingModel, vectors, time.Now().UTC())
}

// SearchIndex ranks chunks by cosine similarity to query. Results are sorted by
// non-increasing similarity with ties in chunk order, limited to topK and
// restricted to similarity > minSimilarity.
func SearchIndex(idx *domain.SimilarityIndex, chunks []domain.Chunk, query []float32, topK int, minSimilarity float64) []ScoredChunk {
	if idx == nil || len(chunks) == 0 {
		return []ScoredChunk{}
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	scored := make([]ScoredChunk, 0, len(chunks))
	for _, c := range chunks {
		vector, ok := idx.Vector(c.Index)
		if !ok {
			continue
		}
		scored = append(scored, ScoredChunk{
			Chunk:      c,
			Similarity: CosineSimilarity(query, vector),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})

	results := make([]ScoredChunk, 0, topK)
	for _, s := range scored {
		if len(results) >= topK {
			break
		}
		if s.Similarity <= minSimilarity {
			break
		}
		results = append(results, s)
	}
	return results
}

// RetrievalService performs similarity search against stored document indexes.
type RetrievalService struct {
	store         DocumentStore
	embedder      *Embedder
	minSimilarity float64
}

// NewRetrievalService creates a new RetrievalService instance
func NewRetrievalService(store DocumentStore, embedder *Embedder) *RetrievalService {
	return &RetrievalService{
		store:         store,
		embedder:      embedder,
		minSimilarity: DefaultMinSimilarity,
	}
}

// WithMinSimilarity overrides the similarity threshold.
func (s *RetrievalService) WithMinSimilarity(min float64) *RetrievalService {
	s.minSimilarity = min
	return s
}

// Search returns the topK chunks of a document most similar to query.
// A missing document or index yields an empty result, not an error.
func (s *RetrievalService) Search(ctx context.Context, query, documentID string, topK int) ([]ScoredChunk, error) {
	ctx, span := telemetry.StartSpan(ctx, "RetrievalService.Search", telemetry.SpanAttributes{
		DocumentID: documentID,
		Operation:  "search",
	})
	defer span.End()

	if strings.TrimSpace(query) == "" {
		return []ScoredChunk{}, nil
	}

	doc, err := s.store.Get(ctx, documentID)
	if err != nil {
		if errors.Is(err, domain.ErrDocumentNotFound) {
			return []ScoredChunk{}, nil
		}
		return nil, err
	}

	idx, err := s.store.GetIndex(ctx, documentID)
	if err != nil {
		if errors.Is(err, domain.ErrIndexNotFound) {
			return []ScoredChunk{}, nil
		}
		return nil, err
	}

	return s.searchDocument(ctx, doc, idx, query, topK), nil
}

// searchDocument embeds the query in the index's vector space and ranks chunks.
func (s *RetrievalService) searchDocument(ctx context.Context, doc *domain.Document, idx *domain.SimilarityIndex, query string, topK int) []ScoredChunk {
	var emb Embedding
	if idx.Model == domain.HashEmbeddingModel {
		emb = s.embedder.EmbedFallback(query)
	} else {
		emb = s.embedder.Embed(ctx, query)
	}

	if emb.Model != idx.Model {
		// The query could not be embedded with the index's model; compare in hash space instead.
		idx = hashIndex(doc)
		emb = s.embedder.EmbedFallback(query)
	}

	return SearchIndex(idx, doc.Chunks, emb.Vector, topK, s.minSimilarity)
}
