package jobs

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/cloo-solutions/citedoc/internal/domain"
)

const (
	// MaxRetries is the maximum number of index build attempts per document
	MaxRetries = 3

	defaultBatchSize = 10
)

// DocumentSource lists documents that have no similarity index yet.
type DocumentSource interface {
	ListUnindexed(ctx context.Context, limit int) ([]*domain.Document, error)
}

// IndexBuilder builds and publishes a document's similarity index.
type IndexBuilder interface {
	BuildIndex(ctx context.Context, doc *domain.Document) error
}

// IndexWorker builds missing similarity indexes. A document whose build
// fails MaxRetries times is left to keyword ranking.
type IndexWorker struct {
	source    DocumentSource
	builder   IndexBuilder
	batchSize int

	mu       sync.Mutex
	attempts map[string]int
}

// NewIndexWorker creates a new IndexWorker instance
func NewIndexWorker(source DocumentSource, builder IndexBuilder, batchSize int) *IndexWorker {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &IndexWorker{
		source:    source,
		builder:   builder,
		batchSize: batchSize,
		attempts:  make(map[string]int),
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *IndexWorker) ProcessJobs(ctx context.Context) error {
	limit := w.batchSize + w.abandonedCount()
	docs, err := w.source.ListUnindexed(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to list unindexed documents: %w", err)
	}
	if len(docs) < limit {
		// The listing is the whole backlog; anything missing was deleted or indexed elsewhere.
		w.prune(docs)
	}

	processed := 0
	for _, doc := range docs {
		if processed >= w.batchSize {
			break
		}
		if w.exhausted(doc.ID) {
			continue
		}
		processed++
		if err := w.builder.BuildIndex(ctx, doc); err != nil {
			w.handleFailure(doc.ID, err)
			continue
		}
		w.forget(doc.ID)
		log.Printf("index worker: built index for document %s", doc.ID)
	}
	return nil
}

// Attempts returns the number of failed builds recorded for a document.
func (w *IndexWorker) Attempts(documentID string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.attempts[documentID]
}

func (w *IndexWorker) handleFailure(documentID string, buildErr error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.attempts[documentID]++
	n := w.attempts[documentID]
	if n >= MaxRetries {
		log.Printf("index worker: document %s exceeded max retries (%d), leaving it to keyword ranking: %v", documentID, MaxRetries, buildErr)
		return
	}
	log.Printf("index worker: document %s will be retried (attempt %d/%d): %v", documentID, n, MaxRetries, buildErr)
}

func (w *IndexWorker) exhausted(documentID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.attempts[documentID] >= MaxRetries
}

func (w *IndexWorker) forget(documentID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.attempts, documentID)
}

func (w *IndexWorker) abandonedCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, a := range w.attempts {
		if a >= MaxRetries {
			n++
		}
	}
	return n
}

// prune drops attempt records for documents absent from pending.
func (w *IndexWorker) prune(pending []*domain.Document) {
	keep := make(map[string]struct{}, len(pending))
	for _, doc := range pending {
		keep[doc.ID] = struct{}{}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for id := range w.attempts {
		if _, ok := keep[id]; !ok {
			delete(w.attempts, id)
		}
	}
}
