package service

import (
	"context"
	"fmt"
	"log"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cloo-solutions/citedoc/internal/domain"
	"github.com/cloo-solutions/citedoc/internal/pagination"
	"github.com/cloo-solutions/citedoc/internal/telemetry"
	"github.com/google/uuid"
)

// ExtractionFailedText replaces the text of a PDF that could not be extracted.
const ExtractionFailedText = "PDF content extraction failed. File is available for viewing, but text search and AI features will be limited."

const (
	contentTypePDF   = "application/pdf"
	contentTypePlain = "text/plain"

	defaultListLimit = 20
	maxListLimit     = 100
)

// DocumentStore persists documents and their similarity indexes.
// Implementations must make an index visible only once PutIndex returns.
type DocumentStore interface {
	Get(ctx context.Context, id string) (*domain.Document, error)
	Put(ctx context.Context, doc *domain.Document) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, cursor *pagination.Cursor, limit int) (*DocumentPageResult, error)
	GetIndex(ctx context.Context, documentID string) (*domain.SimilarityIndex, error)
	PutIndex(ctx context.Context, idx *domain.SimilarityIndex) error
	ListUnindexed(ctx context.Context, limit int) ([]*domain.Document, error)
}

// DocumentPageResult is one page of documents, newest first.
type DocumentPageResult struct {
	Items      []*domain.Document
	NextCursor string
	HasMore    bool
}

// FileStorage stores uploaded originals.
type FileStorage interface {
	PutObject(ctx context.Context, key, contentType string, data []byte) error
	GenerateDownloadURL(ctx context.Context, key string) (string, error)
	DeleteObject(ctx context.Context, key string) error
}

// TextExtractor pulls plain text and a page count out of a PDF.
type TextExtractor interface {
	Extract(data []byte) (text string, pageCount int, err error)
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// IngestInput describes an uploaded document. Either Text or Data is set.
type IngestInput struct {
	Filename    string
	ContentType string
	Text        string
	PageCount   int
	Data        []byte
}

// DocumentServiceConfig configures ingestion.
type DocumentServiceConfig struct {
	Chunking ChunkConfig
	// AsyncIndex leaves index construction to the background worker.
	AsyncIndex bool
}

// DocumentService handles document ingestion, lookup and removal.
type DocumentService struct {
	store     DocumentStore
	embedder  *Embedder
	files     FileStorage
	extractor TextExtractor
	uuidGen   UUIDGenerator
	cfg       DocumentServiceConfig
	now       func() time.Time
	pending   func()
}

// NewDocumentService creates a new DocumentService instance.
// files and extractor may be nil.
func NewDocumentService(store DocumentStore, embedder *Embedder, files FileStorage, extractor TextExtractor, cfg DocumentServiceConfig) *DocumentService {
	return &DocumentService{
		store:     store,
		embedder:  embedder,
		files:     files,
		extractor: extractor,
		uuidGen:   &DefaultUUIDGenerator{},
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithUUIDGenerator overrides the ID generator (for testing)
func (s *DocumentService) WithUUIDGenerator(gen UUIDGenerator) *DocumentService {
	s.uuidGen = gen
	return s
}

// HasFileStorage reports whether originals are kept.
func (s *DocumentService) HasFileStorage() bool {
	return s.files != nil
}

// Ingest extracts, chunks and stores a document, then builds its index
// unless indexing is asynchronous.
func (s *DocumentService) Ingest(ctx context.Context, input IngestInput) (*domain.Document, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Ingest", telemetry.SpanAttributes{
		Operation: "ingest",
	})
	defer span.End()

	filename := strings.TrimSpace(input.Filename)
	if filename == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "filename is required")
	}

	text, pageCount, contentType, err := s.extractText(filename, input)
	if err != nil {
		return nil, err
	}

	id := s.uuidGen.NewString()
	chunks := ChunkText(text, filename, s.cfg.Chunking)
	doc := domain.NewDocument(id, filename, contentType, text, pageCount, chunks, s.now())

	if s.files != nil && len(input.Data) > 0 {
		key := StorageKey(id, filename)
		if err := s.files.PutObject(ctx, key, contentType, input.Data); err != nil {
			span.SetError(err)
			return nil, domain.ErrStorageOperationFail.WithCause(fmt.Errorf("store original file: %w", err))
		}
		doc.StorageKey = key
	}

	if err := domain.ValidateDocument(doc); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "invalid document", err)
	}

	if err := s.store.Put(ctx, doc); err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to store document: %w", err)
	}

	log.Printf("documents: ingested %s (%s): %d pages, %d words, %d chunks",
		doc.ID, doc.Filename, doc.Metadata.PageCount, doc.Metadata.WordCount, doc.Metadata.ChunkCount)

	if s.cfg.AsyncIndex {
		if s.pending != nil {
			s.pending()
		}
		return doc, nil
	}
	if err := s.BuildIndex(ctx, doc); err != nil {
		// The document is still usable through keyword ranking.
		log.Printf("documents: index build failed for %s: %v", doc.ID, err)
	}
	return doc, nil
}

// OnPending registers fn to run after each asynchronously indexed ingest.
// fn must not block.
func (s *DocumentService) OnPending(fn func()) {
	s.pending = fn
}

func (s *DocumentService) extractText(filename string, input IngestInput) (string, int, string, error) {
	contentType := strings.ToLower(strings.TrimSpace(input.ContentType))
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	ext := strings.ToLower(path.Ext(filename))

	switch {
	case contentType == contentTypePDF || ext == ".pdf":
		if len(input.Data) == 0 {
			return "", 0, "", domain.NewDomainError(domain.ErrCodeValidation, "PDF upload has no content")
		}
		if s.extractor == nil {
			return ExtractionFailedText, 1, contentTypePDF, nil
		}
		text, pages, err := s.extractor.Extract(input.Data)
		if err != nil || strings.TrimSpace(text) == "" {
			log.Printf("documents: pdf extraction failed for %s: %v", filename, err)
			return ExtractionFailedText, 1, contentTypePDF, nil
		}
		return text, pages, contentTypePDF, nil

	case input.Text != "":
		return input.Text, input.PageCount, contentTypePlain, nil

	case strings.HasPrefix(contentType, "text/") || ext == ".txt" || ext == ".md":
		if len(input.Data) == 0 || !utf8.Valid(input.Data) {
			return "", 0, "", domain.NewDomainError(domain.ErrCodeValidation, "text upload is empty or not valid UTF-8")
		}
		return string(input.Data), input.PageCount, contentTypePlain, nil

	default:
		return "", 0, "", domain.ErrUnsupportedFileType
	}
}

// BuildIndex embeds doc's chunks and publishes the complete index.
func (s *DocumentService) BuildIndex(ctx context.Context, doc *domain.Document) error {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.BuildIndex", telemetry.SpanAttributes{
		DocumentID: doc.ID,
		Operation:  "index",
	})
	defer span.End()

	idx := BuildIndex(ctx, s.embedder, doc)
	if err := s.store.PutIndex(ctx, idx); err != nil {
		span.SetError(err)
		return fmt.Errorf("failed to store index: %w", err)
	}
	log.Printf("documents: indexed %s with %d vectors (%s)", doc.ID, len(idx.Vectors), idx.Model)
	return nil
}

// Get retrieves a document by ID.
func (s *DocumentService) Get(ctx context.Context, id string) (*domain.Document, error) {
	return s.store.Get(ctx, id)
}

// List returns one page of documents, newest first.
func (s *DocumentService) List(ctx context.Context, cursor string, limit int) (*DocumentPageResult, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	decoded, err := pagination.DecodeCursor(cursor)
	if err != nil {
		return nil, domain.ErrInvalidCursor.WithCause(err)
	}
	return s.store.List(ctx, decoded, limit)
}

// Delete removes a document, its index and its stored original.
func (s *DocumentService) Delete(ctx context.Context, id string) error {
	doc, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	if s.files != nil && doc.StorageKey != "" {
		if err := s.files.DeleteObject(ctx, doc.StorageKey); err != nil {
			log.Printf("documents: failed to delete stored file %s: %v", doc.StorageKey, err)
		}
	}
	return nil
}

// FileURL returns a temporary download URL for the stored original.
func (s *DocumentService) FileURL(ctx context.Context, id string) (string, error) {
	doc, err := s.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if s.files == nil || doc.StorageKey == "" {
		return "", domain.ErrFileNotFound
	}
	url, err := s.files.GenerateDownloadURL(ctx, doc.StorageKey)
	if err != nil {
		return "", domain.ErrStorageOperationFail.WithCause(fmt.Errorf("generate download URL: %w", err))
	}
	return url, nil
}

// StorageKey returns the object key for a document's original file.
func StorageKey(id, filename string) string {
	return fmt.Sprintf("documents/%s/%s", id, path.Base(filename))
}
