package domain

import (
	"fmt"
	"strings"
	"time"
)

// ChunkType tags how a chunk was produced
type ChunkType string

const (
	ChunkTypeParagraphGroup ChunkType = "paragraph_group"
	ChunkTypeFixedWindow    ChunkType = "fixed_window"
)

// ChunkMetadata carries chunk-level provenance
type ChunkMetadata struct {
	Filename string
	Type     ChunkType
}

// Chunk is a contiguous, offset-tracked slice of a document's text.
// Text always equals the document text in [Start, End).
type Chunk struct {
	Index    int
	Text     string
	Start    int
	End      int
	Metadata ChunkMetadata
}

// DocumentMetadata holds derived document statistics
type DocumentMetadata struct {
	PageCount  int
	WordCount  int
	ChunkCount int
}

// Document represents an ingested document and its chunks.
// A document is immutable once stored.
type Document struct {
	ID          string
	Filename    string
	ContentType string
	Text        string
	Chunks      []Chunk
	Metadata    DocumentMetadata
	StorageKey  string
	CreatedAt   time.Time
}

// NewDocument creates a new Document instance with derived metadata
func NewDocument(id, filename, contentType, text string, pageCount int, chunks []Chunk, createdAt time.Time) *Document {
	if pageCount <= 0 {
		pageCount = 1
	}
	return &Document{
		ID:          id,
		Filename:    filename,
		ContentType: contentType,
		Text:        text,
		Chunks:      chunks,
		Metadata: DocumentMetadata{
			PageCount:  pageCount,
			WordCount:  CountWords(text),
			ChunkCount: len(chunks),
		},
		CreatedAt: createdAt,
	}
}

// CountWords counts whitespace-separated words
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// ValidateDocument validates a Document instance and its chunk offsets
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}

	if d.ID == "" {
		return fmt.Errorf("document ID is required")
	}

	if d.Metadata.PageCount < 0 {
		return fmt.Errorf("document PageCount cannot be negative")
	}

	for i, c := range d.Chunks {
		if c.Index != i {
			return fmt.Errorf("chunk %d has out-of-order index %d", i, c.Index)
		}
		if c.Start < 0 || c.Start >= c.End || c.End > len(d.Text) {
			return fmt.Errorf("chunk %d has invalid range [%d,%d) for text of length %d", i, c.Start, c.End, len(d.Text))
		}
	}

	return nil
}
