package service

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/cloo-solutions/citedoc/internal/domain"
)

// DefaultKeywordTopK caps keyword results when the caller gives no limit.
const DefaultKeywordTopK = 5

// keywordTokens lower-cases and splits a query, dropping tokens of minLen characters or fewer.
func keywordTokens(query string, minLen int) []string {
	fields := strings.Fields(strings.ToLower(query))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) > minLen {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// ScoreKeywords ranks chunks by raw query-token occurrence counts.
// Occurrences are summed, not deduplicated; chunks with zero matches are
// dropped; ties keep chunk order. Similarity is the count relative to the best
// chunk so it stays within (0,1].
func ScoreKeywords(chunks []domain.Chunk, query string, limit int) []ScoredChunk {
	if limit <= 0 {
		limit = DefaultKeywordTopK
	}
	tokens := keywordTokens(query, 2)
	if len(tokens) == 0 || len(chunks) == 0 {
		return []ScoredChunk{}
	}

	scored := make([]ScoredChunk, 0, len(chunks))
	for _, c := range chunks {
		lower := strings.ToLower(c.Text)
		count := 0
		for _, tok := range tokens {
			count += strings.Count(lower, tok)
		}
		if count == 0 {
			continue
		}
		scored = append(scored, ScoredChunk{Chunk: c, Matches: count})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Matches > scored[j].Matches
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}
	if len(scored) > 0 {
		best := float64(scored[0].Matches)
		for i := range scored {
			scored[i].Similarity = float64(scored[i].Matches) / best
		}
	}
	return scored
}
