package service

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/cloo-solutions/citedoc/internal/domain"
)

// ReconcilerConfig holds the matching parameters for citation reconciliation.
// The fuzzy step and threshold are empirical and should be tuned per corpus.
type ReconcilerConfig struct {
	FuzzyStep           int
	FuzzyThreshold      float64
	FuzzyWindowFactor   float64
	FuzzyTextFactor     float64
	FuzzyMinWordLen     int
	SectionPreviewChars int
	SectionWeight       float64
	SectionThreshold    float64
	MinSectionChars     int
	MaxCitations        int
}

// DefaultReconcilerConfig returns the default reconciliation parameters.
func DefaultReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{
		FuzzyStep:           50,
		FuzzyThreshold:      0.6,
		FuzzyWindowFactor:   2,
		FuzzyTextFactor:     1.5,
		FuzzyMinWordLen:     3,
		SectionPreviewChars: 300,
		SectionWeight:       0.3,
		SectionThreshold:    0.5,
		MinSectionChars:     30,
		MaxCitations:        10,
	}
}

// Reconciler maps claimed excerpts back onto a document's text.
// It is a pure function of its inputs and safe for concurrent use.
type Reconciler struct {
	cfg ReconcilerConfig
}

// NewReconciler creates a Reconciler, filling unset fields with defaults.
func NewReconciler(cfg ReconcilerConfig) *Reconciler {
	def := DefaultReconcilerConfig()
	if cfg.FuzzyStep <= 0 {
		cfg.FuzzyStep = def.FuzzyStep
	}
	if cfg.FuzzyThreshold <= 0 {
		cfg.FuzzyThreshold = def.FuzzyThreshold
	}
	if cfg.FuzzyWindowFactor <= 0 {
		cfg.FuzzyWindowFactor = def.FuzzyWindowFactor
	}
	if cfg.FuzzyTextFactor <= 0 {
		cfg.FuzzyTextFactor = def.FuzzyTextFactor
	}
	if cfg.FuzzyMinWordLen <= 0 {
		cfg.FuzzyMinWordLen = def.FuzzyMinWordLen
	}
	if cfg.SectionPreviewChars <= 0 {
		cfg.SectionPreviewChars = def.SectionPreviewChars
	}
	if cfg.SectionWeight <= 0 {
		cfg.SectionWeight = def.SectionWeight
	}
	if cfg.SectionThreshold <= 0 {
		cfg.SectionThreshold = def.SectionThreshold
	}
	if cfg.MinSectionChars <= 0 {
		cfg.MinSectionChars = def.MinSectionChars
	}
	if cfg.MaxCitations <= 0 {
		cfg.MaxCitations = def.MaxCitations
	}
	return &Reconciler{cfg: cfg}
}

// Config returns the effective configuration.
func (r *Reconciler) Config() ReconcilerConfig {
	return r.cfg
}

// Reconcile resolves each excerpt to an exact or fuzzy location in doc.
// Excerpts that cannot be located are dropped.
func (r *Reconciler) Reconcile(doc *domain.Document, excerpts []string) []domain.Citation {
	citations := make([]domain.Citation, 0, len(excerpts))
	if doc == nil || doc.Text == "" {
		return citations
	}

	for _, raw := range excerpts {
		excerpt := strings.TrimSpace(raw)
		if excerpt == "" {
			continue
		}
		if c, ok := r.exactMatch(doc, excerpt); ok {
			citations = append(citations, c)
			continue
		}
		if c, ok := r.fuzzyMatch(doc, excerpt); ok {
			citations = append(citations, c)
		}
	}
	return citations
}

func (r *Reconciler) exactMatch(doc *domain.Document, excerpt string) (domain.Citation, bool) {
	start := strings.Index(doc.Text, excerpt)
	if start < 0 {
		return domain.Citation{}, false
	}
	return domain.Citation{
		Text:       excerpt,
		Start:      start,
		End:        start + len(excerpt),
		Score:      1.0,
		Similarity: 1.0,
		Page:       EstimatePage(start, len(doc.Text), doc.Metadata.PageCount),
		Match:      domain.MatchKindExact,
	}, true
}

// fuzzyMatch slides a window of FuzzyWindowFactor x len(excerpt) across the
// text and keeps the window containing the largest share of the excerpt's words.
func (r *Reconciler) fuzzyMatch(doc *domain.Document, excerpt string) (domain.Citation, bool) {
	words := keywordTokens(excerpt, r.cfg.FuzzyMinWordLen)
	if len(words) == 0 {
		return domain.Citation{}, false
	}

	text := doc.Text
	windowSize := int(float64(len(excerpt)) * r.cfg.FuzzyWindowFactor)
	last := len(text) - len(excerpt)

	bestRatio := 0.0
	bestStart, bestEnd := -1, -1
	for i := 0; i == 0 || i < last; i += r.cfg.FuzzyStep {
		start := forwardToRuneStart(text, i)
		if start >= len(text) {
			break
		}
		end := forwardToRuneStart(text, start+windowSize)
		window := strings.ToLower(text[start:end])

		matches := 0
		for _, w := range words {
			if strings.Contains(window, w) {
				matches++
			}
		}
		ratio := float64(matches) / float64(len(words))
		if ratio > bestRatio && ratio > r.cfg.FuzzyThreshold {
			bestRatio = ratio
			bestStart, bestEnd = start, end
		}
	}

	if bestStart < 0 {
		return domain.Citation{}, false
	}

	textEnd := forwardToRuneStart(text, bestStart+int(float64(len(excerpt))*r.cfg.FuzzyTextFactor))
	if textEnd > bestEnd {
		textEnd = bestEnd
	}
	return domain.Citation{
		Text:       text[bestStart:textEnd],
		Start:      bestStart,
		End:        textEnd,
		Score:      bestRatio,
		Similarity: bestRatio,
		Page:       EstimatePage(bestStart, len(text), doc.Metadata.PageCount),
		Match:      domain.MatchKindFuzzy,
	}, true
}

var (
	numberedHeading = regexp.MustCompile(`\n\d+\.\s+[A-Z]`)
	blankLines      = regexp.MustCompile(`\n\n+`)
)

// sectionSpans splits text into numbered sections, or blank-line paragraphs
// when no numbered headings are present.
func sectionSpans(text string) []span {
	var spans []span
	if headings := numberedHeading.FindAllStringIndex(text, -1); len(headings) > 0 {
		prev := 0
		for _, h := range headings {
			spans = append(spans, span{start: prev, end: h[0]})
			prev = h[0] + 1
		}
		return append(spans, span{start: prev, end: len(text)})
	}

	prev := 0
	for _, sep := range blankLines.FindAllStringIndex(text, -1) {
		spans = append(spans, span{start: prev, end: sep[0]})
		prev = sep[1]
	}
	return append(spans, span{start: prev, end: len(text)})
}

// KeywordSections synthesizes low-confidence citations from the sections of
// doc that mention the most distinct question keywords.
func (r *Reconciler) KeywordSections(doc *domain.Document, question string) []domain.Citation {
	citations := []domain.Citation{}
	if doc == nil || doc.Text == "" {
		return citations
	}

	keywords := distinct(keywordTokens(question, 3))
	if len(keywords) == 0 {
		return citations
	}

	type ranked struct {
		citation  domain.Citation
		relevance float64
	}
	var found []ranked

	text := doc.Text
	for _, s := range sectionSpans(text) {
		s = trimSpan(text, s)
		section := text[s.start:s.end]
		if utf8.RuneCountInString(section) < r.cfg.MinSectionChars {
			continue
		}

		lower := strings.ToLower(section)
		relevance := 0.0
		for _, k := range keywords {
			if strings.Contains(lower, k) {
				relevance += r.cfg.SectionWeight
			}
		}
		if relevance <= r.cfg.SectionThreshold {
			continue
		}

		preview := truncateRunes(section, r.cfg.SectionPreviewChars)
		score := math.Min(relevance, 1.0)
		found = append(found, ranked{
			citation: domain.Citation{
				Text:       preview,
				Start:      s.start,
				End:        s.start + len(preview),
				Score:      score,
				Similarity: score,
				Page:       EstimatePage(s.start, len(text), doc.Metadata.PageCount),
				Match:      domain.MatchKindKeyword,
			},
			relevance: relevance,
		})
	}

	// Order by uncapped relevance so sections past the cap still rank apart.
	sort.SliceStable(found, func(i, j int) bool {
		return found[i].relevance > found[j].relevance
	})
	for _, f := range found {
		citations = append(citations, f.citation)
	}
	return citations
}

// EstimatePage maps a character offset to a page number assuming text is
// spread evenly across pages. Unknown page counts map to page 1.
func EstimatePage(start, totalChars, totalPages int) int {
	if totalPages <= 0 || totalChars <= 0 {
		return 1
	}
	page := int(math.Ceil(float64(start) / float64(totalChars) * float64(totalPages)))
	if page < 1 {
		return 1
	}
	if page > totalPages {
		return totalPages
	}
	return page
}

var (
	citationHeader = regexp.MustCompile(`(?i)---\s*CITATIONS:\s*`)
	citeBlock      = regexp.MustCompile(`(?is)\[CITE\](.*?)\[/CITE\]`)
)

// ParsedAnswer is raw generation output split into answer body and excerpts.
type ParsedAnswer struct {
	Body             string
	Excerpts         []string
	HasCitationBlock bool
}

// ParseCitationBlock separates the trailing CITATIONS block from generated text.
func ParseCitationBlock(raw string) ParsedAnswer {
	loc := citationHeader.FindStringIndex(raw)
	if loc == nil {
		return ParsedAnswer{Body: strings.TrimSpace(raw)}
	}

	parsed := ParsedAnswer{
		Body:             strings.TrimSpace(raw[:loc[0]]),
		HasCitationBlock: true,
	}
	for _, m := range citeBlock.FindAllStringSubmatch(raw[loc[1]:], -1) {
		if excerpt := strings.TrimSpace(m[1]); excerpt != "" {
			parsed.Excerpts = append(parsed.Excerpts, excerpt)
		}
	}
	return parsed
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

func distinct(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
