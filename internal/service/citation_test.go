package service

import (
	"strings"
	"testing"

	"github.com/cloo-solutions/citedoc/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textDocument(text string, pages int) *domain.Document {
	return domain.NewDocument("doc-1", "doc.txt", "text/plain", text, pages, ChunkText(text, "doc.txt", DefaultChunkConfig()), fixedTime)
}

func TestParseCitationBlock(t *testing.T) {
	raw := "**Confidence Level: High**\n\nThe warranty lasts two years.\n\n---\nCITATIONS:\n" +
		"[CITE]The warranty covers manufacturing defects[/CITE]\n" +
		"[CITE]  for two years from the date of purchase  [/CITE]\n" +
		"[CITE]   [/CITE]"

	parsed := ParseCitationBlock(raw)

	assert.True(t, parsed.HasCitationBlock)
	assert.Equal(t, "**Confidence Level: High**\n\nThe warranty lasts two years.", parsed.Body)
	assert.Equal(t, []string{
		"The warranty covers manufacturing defects",
		"for two years from the date of purchase",
	}, parsed.Excerpts)
}

func TestParseCitationBlock_CaseInsensitiveMultiline(t *testing.T) {
	raw := "Answer.\n--- citations:\n[cite]first line\nsecond line[/cite]"

	parsed := ParseCitationBlock(raw)

	assert.True(t, parsed.HasCitationBlock)
	assert.Equal(t, "Answer.", parsed.Body)
	assert.Equal(t, []string{"first line\nsecond line"}, parsed.Excerpts)
}

func TestParseCitationBlock_NoMarkers(t *testing.T) {
	parsed := ParseCitationBlock("  Just an answer with [CITE]inline[/CITE] but no header.  ")

	assert.False(t, parsed.HasCitationBlock)
	assert.Empty(t, parsed.Excerpts)
	assert.Equal(t, "Just an answer with [CITE]inline[/CITE] but no header.", parsed.Body)
}

func TestParseCitationBlock_HeaderWithoutBlocks(t *testing.T) {
	parsed := ParseCitationBlock("Answer text.\n---\nCITATIONS:\n- some quote without markers")

	assert.True(t, parsed.HasCitationBlock)
	assert.Empty(t, parsed.Excerpts)
	assert.Equal(t, "Answer text.", parsed.Body)
}

func TestReconcile_ExactRoundTrip(t *testing.T) {
	doc := textDocument(policyText, 3)
	r := NewReconciler(DefaultReconcilerConfig())
	excerpts := []string{
		"Shipping is free for orders above fifty dollars",
		"  unused and in original packaging.  ",
	}

	citations := r.Reconcile(doc, excerpts)

	require.Len(t, citations, 2)
	for i, c := range citations {
		assert.Equal(t, strings.TrimSpace(excerpts[i]), doc.Text[c.Start:c.End])
		assert.Equal(t, c.Text, doc.Text[c.Start:c.End])
		assert.Equal(t, 1.0, c.Score)
		assert.Equal(t, domain.MatchKindExact, c.Match)
	}
	assert.Equal(t, strings.Index(policyText, "Shipping"), citations[0].Start)
	assert.Equal(t, 1, citations[0].Page)
	assert.Equal(t, 3, citations[1].Page)
}

func TestReconcile_FuzzyMatch(t *testing.T) {
	text := "Report.\n\nThe quarterly revenue increased sharply during winter months.\n\nOther text follows here."
	doc := textDocument(text, 1)
	r := NewReconciler(DefaultReconcilerConfig())
	excerpt := "quarterly revenue increased sharply during autumn"

	citations := r.Reconcile(doc, []string{excerpt})

	require.Len(t, citations, 1)
	c := citations[0]
	assert.Equal(t, domain.MatchKindFuzzy, c.Match)
	assert.InDelta(t, 5.0/6.0, c.Score, 1e-9)
	assert.Equal(t, c.Score, c.Similarity)
	assert.Equal(t, 0, c.Start)
	assert.Equal(t, int(float64(len(excerpt))*1.5), c.End-c.Start)
	assert.Equal(t, doc.Text[c.Start:c.End], c.Text)
	assert.Equal(t, 1, c.Page)
}

func TestReconcile_FuzzyMatchFindsLaterWindow(t *testing.T) {
	filler := strings.Repeat("lorem ipsum dolor sit amet. ", 20)
	text := filler + "The quarterly revenue increased sharply during winter months."
	doc := textDocument(text, 2)
	r := NewReconciler(DefaultReconcilerConfig())

	citations := r.Reconcile(doc, []string{"quarterly revenue increased sharply during autumn"})

	require.Len(t, citations, 1)
	assert.Equal(t, 550, citations[0].Start)
	assert.Contains(t, citations[0].Text, "quarterly revenue")
	assert.Equal(t, 2, citations[0].Page)
}

func TestReconcile_FuzzyThresholdIsConfigurable(t *testing.T) {
	text := "Report.\n\nThe quarterly revenue increased sharply during winter months.\n\nOther text follows here."
	doc := textDocument(text, 1)
	cfg := DefaultReconcilerConfig()
	cfg.FuzzyThreshold = 0.9

	citations := NewReconciler(cfg).Reconcile(doc, []string{"quarterly revenue increased sharply during autumn"})

	assert.Empty(t, citations)
}

func TestReconcile_DropsUnmatched(t *testing.T) {
	doc := textDocument(policyText, 3)
	r := NewReconciler(DefaultReconcilerConfig())

	citations := r.Reconcile(doc, []string{
		"completely unrelated sentence about astronomy telescopes",
		"",
		"to be or",
	})

	assert.Empty(t, citations)
	assert.NotNil(t, citations)
}

func TestReconcile_EmptyDocument(t *testing.T) {
	r := NewReconciler(DefaultReconcilerConfig())

	assert.Empty(t, r.Reconcile(nil, []string{"anything"}))
	assert.Empty(t, r.Reconcile(textDocument("", 1), []string{"anything"}))
}

const handbookText = "Employee handbook introduction covering general company policies.\n" +
	"1. Revenue Summary\nRevenue growth was strong in the northern region this year.\n" +
	"2. Staffing Notes\nHeadcount stayed flat across all departments this year."

func TestKeywordSections_NumberedSections(t *testing.T) {
	doc := textDocument(handbookText, 2)
	r := NewReconciler(DefaultReconcilerConfig())

	citations := r.KeywordSections(doc, "How was revenue growth in the northern region?")

	require.Len(t, citations, 1)
	c := citations[0]
	assert.Equal(t, domain.MatchKindKeyword, c.Match)
	assert.Equal(t, strings.Index(handbookText, "1. Revenue"), c.Start)
	assert.True(t, strings.HasPrefix(c.Text, "1. Revenue Summary"))
	assert.Equal(t, doc.Text[c.Start:c.End], c.Text)
	assert.InDelta(t, 0.9, c.Similarity, 1e-9)
	assert.InDelta(t, 0.9, c.Score, 1e-9)
}

func TestKeywordSections_ScoreCappedAndSorted(t *testing.T) {
	doc := textDocument(handbookText, 2)
	r := NewReconciler(DefaultReconcilerConfig())

	citations := r.KeywordSections(doc, "revenue growth northern region headcount departments year")

	require.Len(t, citations, 2)
	assert.True(t, strings.HasPrefix(citations[0].Text, "1. Revenue"))
	assert.Equal(t, 1.0, citations[0].Similarity)
	assert.Equal(t, 1.0, citations[0].Score)
	assert.True(t, strings.HasPrefix(citations[1].Text, "2. Staffing"))
	assert.InDelta(t, 0.9, citations[1].Similarity, 1e-9)
}

func TestKeywordSections_SimilarityWithinUnitRange(t *testing.T) {
	doc := textDocument(handbookText, 2)
	r := NewReconciler(ReconcilerConfig{SectionWeight: 0.9, SectionThreshold: 0.5})

	citations := r.KeywordSections(doc, "revenue growth northern region headcount departments year")

	require.NotEmpty(t, citations)
	for _, c := range citations {
		assert.GreaterOrEqual(t, c.Similarity, 0.0)
		assert.LessOrEqual(t, c.Similarity, 1.0)
		assert.LessOrEqual(t, c.Score, 1.0)
	}
}

func TestKeywordSections_BlankLineSectionsAndPreview(t *testing.T) {
	long := "Quarterly revenue analysis " + strings.Repeat("with detailed commentary ", 20)
	text := "Too short.\n\n" + long + "\n\nAn unrelated closing paragraph about nothing much."
	doc := textDocument(text, 1)
	r := NewReconciler(DefaultReconcilerConfig())

	citations := r.KeywordSections(doc, "quarterly revenue analysis")

	require.Len(t, citations, 1)
	assert.Len(t, []rune(citations[0].Text), 300)
	assert.Equal(t, strings.Index(text, "Quarterly"), citations[0].Start)
}

func TestKeywordSections_NoKeywords(t *testing.T) {
	doc := textDocument(handbookText, 2)
	r := NewReconciler(DefaultReconcilerConfig())

	assert.Empty(t, r.KeywordSections(doc, "is it?"))
	assert.Empty(t, r.KeywordSections(nil, "revenue growth"))
}

func TestEstimatePage(t *testing.T) {
	tests := []struct {
		start, total, pages, want int
	}{
		{0, 1000, 10, 1},
		{500, 1000, 10, 5},
		{501, 1000, 10, 6},
		{999, 1000, 10, 10},
		{1000, 1000, 10, 10},
		{5000, 1000, 10, 10},
		{100, 1000, 0, 1},
		{100, 0, 5, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EstimatePage(tt.start, tt.total, tt.pages), "start=%d total=%d pages=%d", tt.start, tt.total, tt.pages)
	}
}

func TestNewReconciler_Defaults(t *testing.T) {
	r := NewReconciler(ReconcilerConfig{})
	assert.Equal(t, DefaultReconcilerConfig(), r.Config())
}
