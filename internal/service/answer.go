package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/cloo-solutions/citedoc/internal/domain"
	"github.com/cloo-solutions/citedoc/internal/telemetry"
)

// Strategy selects which retrievers feed the generator.
type Strategy string

const (
	StrategyFullVector  Strategy = "full_vector"
	StrategyKeywordOnly Strategy = "keyword_only"
	StrategyHybrid      Strategy = "hybrid"
)

// Retrieval labels reported in answer metadata.
const (
	RetrievalVector  = "vector"
	RetrievalKeyword = "keyword"
	RetrievalHybrid  = "hybrid"
	RetrievalNone    = "none"
)

// Fallback reasons reported in answer metadata.
const (
	FallbackNoRelevantChunks      = "no_relevant_chunks"
	FallbackGenerationUnavailable = "generation_unavailable"
	FallbackGenerationFailed      = "generation_failed"
	FallbackNoCitationMarkers     = "no_citation_markers"
	FallbackEmptyCitationBlock    = "empty_citation_block"
)

const (
	defaultGenerationTimeout = 60 * time.Second

	rrfK           = 60
	semanticWeight = 1.0
	lexicalWeight  = 0.85
)

// ParseStrategy parses a strategy name. An empty name selects full_vector.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyFullVector:
		return StrategyFullVector, nil
	case StrategyKeywordOnly:
		return StrategyKeywordOnly, nil
	case StrategyHybrid:
		return StrategyHybrid, nil
	default:
		return "", fmt.Errorf("unknown strategy %q", s)
	}
}

// Generator produces answer text from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// AnswerConfig configures the answer orchestrator.
type AnswerConfig struct {
	Strategy          Strategy
	TopK              int
	KeywordTopK       int
	GenerationTimeout time.Duration
}

// DefaultAnswerConfig returns the default orchestrator configuration.
func DefaultAnswerConfig() AnswerConfig {
	return AnswerConfig{
		Strategy:          StrategyFullVector,
		TopK:              DefaultTopK,
		KeywordTopK:       DefaultKeywordTopK,
		GenerationTimeout: defaultGenerationTimeout,
	}
}

// AnswerService answers questions about a single document with citations.
type AnswerService struct {
	store      DocumentStore
	retrieval  *RetrievalService
	generator  Generator
	reconciler *Reconciler
	cfg        AnswerConfig
}

// NewAnswerService creates a new AnswerService instance. A nil generator
// always produces the synthesized fallback answer.
func NewAnswerService(store DocumentStore, retrieval *RetrievalService, generator Generator, reconciler *Reconciler, cfg AnswerConfig) *AnswerService {
	def := DefaultAnswerConfig()
	if cfg.Strategy == "" {
		cfg.Strategy = def.Strategy
	}
	if cfg.TopK <= 0 {
		cfg.TopK = def.TopK
	}
	if cfg.KeywordTopK <= 0 {
		cfg.KeywordTopK = def.KeywordTopK
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = def.GenerationTimeout
	}
	if reconciler == nil {
		reconciler = NewReconciler(DefaultReconcilerConfig())
	}
	return &AnswerService{
		store:      store,
		retrieval:  retrieval,
		generator:  generator,
		reconciler: reconciler,
		cfg:        cfg,
	}
}

// Ask loads a document and answers question about it.
func (s *AnswerService) Ask(ctx context.Context, documentID, question string) (*domain.Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, domain.ErrEmptyQuestion
	}
	doc, err := s.store.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return s.AnswerQuestion(ctx, doc, question), nil
}

// AnswerQuestion retrieves relevant chunks, generates an answer and reconciles
// its citations. It never fails: every failure degrades to a weaker answer.
func (s *AnswerService) AnswerQuestion(ctx context.Context, doc *domain.Document, question string) *domain.Answer {
	ctx, span := telemetry.StartSpan(ctx, "AnswerService.AnswerQuestion", telemetry.SpanAttributes{
		DocumentID: documentID(doc),
		Strategy:   string(s.cfg.Strategy),
		Operation:  "answer",
	})
	defer span.End()

	answer := s.answer(ctx, doc, question)

	span.SetData("retrieval", answer.Metadata.Retrieval)
	span.SetData("chunks_found", answer.Metadata.ChunksFound)
	span.SetData("citations", len(answer.Citations))
	span.SetData("confidence", answer.Metadata.Confidence)
	if answer.Metadata.FallbackReason != "" {
		telemetry.RecordFallback(ctx, "answer", answer.Metadata.FallbackReason)
	}
	return answer
}

func (s *AnswerService) answer(ctx context.Context, doc *domain.Document, question string) *domain.Answer {
	meta := domain.AnswerMetadata{Strategy: string(s.cfg.Strategy), Retrieval: RetrievalNone}
	if doc == nil || len(doc.Chunks) == 0 || strings.TrimSpace(question) == "" {
		return notFound(meta)
	}

	chunks, retrieval := s.retrieve(ctx, doc, question)
	meta.Retrieval = retrieval
	meta.ChunksFound = len(chunks)
	if len(chunks) == 0 {
		return notFound(meta)
	}
	for _, c := range chunks {
		meta.MaxRelevance = math.Max(meta.MaxRelevance, c.Similarity)
	}

	if s.generator == nil {
		meta.FallbackReason = FallbackGenerationUnavailable
		return s.synthesize(doc, chunks, meta)
	}

	prompt := BuildPrompt(question, doc.Filename, BuildContextBlock(chunks))
	genCtx, cancel := context.WithTimeout(ctx, s.cfg.GenerationTimeout)
	raw, err := s.generator.Generate(genCtx, prompt)
	cancel()
	if err == nil && strings.TrimSpace(raw) == "" {
		err = errors.New("empty generation output")
	}
	if err != nil {
		log.Printf("answer: generation failed for document %s, using structured fallback: %v", doc.ID, err)
		telemetry.CaptureError(ctx, fmt.Errorf("generate answer: %w", err))
		meta.FallbackReason = FallbackGenerationFailed
		return s.synthesize(doc, chunks, meta)
	}

	meta.Generated = true
	parsed := ParseCitationBlock(raw)

	var citations []domain.Citation
	if len(parsed.Excerpts) > 0 {
		meta.CitationsExtracted = true
		citations = s.reconciler.Reconcile(doc, parsed.Excerpts)
	} else {
		meta.FallbackReason = FallbackNoCitationMarkers
		if parsed.HasCitationBlock {
			meta.FallbackReason = FallbackEmptyCitationBlock
		}
		citations = s.reconciler.KeywordSections(doc, question)
	}
	citations = s.capCitations(citations)

	meta.Confidence = domain.ConfidenceMedium
	if meta.CitationsExtracted && len(citations) > 0 {
		meta.Confidence = domain.ConfidenceHigh
	}

	return &domain.Answer{
		Answer:    parsed.Body,
		Citations: citations,
		Metadata:  meta,
	}
}

// retrieve selects the top chunks for question according to the strategy.
func (s *AnswerService) retrieve(ctx context.Context, doc *domain.Document, question string) ([]ScoredChunk, string) {
	if s.cfg.Strategy == StrategyKeywordOnly {
		return ScoreKeywords(doc.Chunks, question, s.cfg.KeywordTopK), RetrievalKeyword
	}

	idx := s.loadIndex(ctx, doc.ID)
	if idx == nil || s.retrieval == nil {
		return ScoreKeywords(doc.Chunks, question, s.cfg.KeywordTopK), RetrievalKeyword
	}

	vector := s.retrieval.searchDocument(ctx, doc, idx, question, s.cfg.TopK)
	if s.cfg.Strategy != StrategyHybrid {
		return vector, RetrievalVector
	}

	lexical := ScoreKeywords(doc.Chunks, question, s.cfg.KeywordTopK)
	return fuseRanked(vector, lexical, s.cfg.TopK), RetrievalHybrid
}

func (s *AnswerService) loadIndex(ctx context.Context, id string) *domain.SimilarityIndex {
	if s.store == nil {
		return nil
	}
	idx, err := s.store.GetIndex(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrIndexNotFound) {
			log.Printf("answer: failed to load index for document %s, using keyword ranking: %v", id, err)
		}
		return nil
	}
	return idx
}

func (s *AnswerService) synthesize(doc *domain.Document, chunks []ScoredChunk, meta domain.AnswerMetadata) *domain.Answer {
	meta.Confidence = domain.ConfidenceMedium
	citations := make([]domain.Citation, 0, len(chunks))
	for _, c := range chunks {
		citations = append(citations, domain.Citation{
			Text:       c.Chunk.Text,
			Start:      c.Chunk.Start,
			End:        c.Chunk.End,
			Score:      clampUnit(c.Similarity),
			Similarity: c.Similarity,
			Page:       EstimatePage(c.Chunk.Start, len(doc.Text), doc.Metadata.PageCount),
			Match:      domain.MatchKindChunk,
		})
	}
	return &domain.Answer{
		Answer:    FallbackAnswer(doc.Filename, chunks),
		Citations: s.capCitations(citations),
		Metadata:  meta,
	}
}

func (s *AnswerService) capCitations(citations []domain.Citation) []domain.Citation {
	if citations == nil {
		return []domain.Citation{}
	}
	if limit := s.reconciler.Config().MaxCitations; len(citations) > limit {
		return citations[:limit]
	}
	return citations
}

func notFound(meta domain.AnswerMetadata) *domain.Answer {
	meta.Confidence = domain.ConfidenceLow
	meta.FallbackReason = FallbackNoRelevantChunks
	return &domain.Answer{
		Answer:    NotFoundAnswer,
		Citations: []domain.Citation{},
		Metadata:  meta,
	}
}

type fusionCandidate struct {
	chunk    ScoredChunk
	rrfScore float64
}

// fuseRanked merges vector and keyword rankings with weighted reciprocal-rank
// fusion. A chunk keeps its vector similarity when it has one.
func fuseRanked(vector, lexical []ScoredChunk, limit int) []ScoredChunk {
	candidates := make(map[int]*fusionCandidate)
	add := func(list []ScoredChunk, weight float64) {
		for i, sc := range list {
			cand, ok := candidates[sc.Chunk.Index]
			if !ok {
				cand = &fusionCandidate{chunk: sc}
				candidates[sc.Chunk.Index] = cand
			}
			cand.rrfScore += weight / float64(rrfK+i+1)
			if sc.Matches > cand.chunk.Matches {
				cand.chunk.Matches = sc.Matches
			}
		}
	}
	add(vector, semanticWeight)
	add(lexical, lexicalWeight)

	fused := make([]*fusionCandidate, 0, len(candidates))
	for _, cand := range candidates {
		fused = append(fused, cand)
	}
	sort.Slice(fused, func(i, j int) bool {
		if fused[i].rrfScore != fused[j].rrfScore {
			return fused[i].rrfScore > fused[j].rrfScore
		}
		return fused[i].chunk.Chunk.Index < fused[j].chunk.Chunk.Index
	})

	if len(fused) > limit {
		fused = fused[:limit]
	}
	out := make([]ScoredChunk, 0, len(fused))
	for _, cand := range fused {
		out = append(out, cand.chunk)
	}
	return out
}

func clampUnit(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func documentID(doc *domain.Document) string {
	if doc == nil {
		return ""
	}
	return doc.ID
}
