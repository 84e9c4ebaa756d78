package domain

// MatchKind describes how a citation was located in the source text
type MatchKind string

const (
	MatchKindExact   MatchKind = "exact"
	MatchKindFuzzy   MatchKind = "fuzzy"
	MatchKindKeyword MatchKind = "keyword"
	MatchKindChunk   MatchKind = "chunk"
)

// Citation is an excerpt resolved to a location in a document.
// Score and Similarity are always within [0,1].
type Citation struct {
	Text       string
	Start      int
	End        int
	Score      float64
	Similarity float64
	Page       int
	Match      MatchKind
}

// Confidence is a coarse confidence label attached to answers
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// AnswerMetadata describes how an answer was produced
type AnswerMetadata struct {
	ChunksFound        int
	MaxRelevance       float64
	CitationsExtracted bool
	Strategy           string
	Retrieval          string
	Generated          bool
	FallbackReason     string
	Confidence         Confidence
}

// Answer is the structured result of answering a question about a document
type Answer struct {
	Answer    string
	Citations []Citation
	Metadata  AnswerMetadata
}
