package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/cloo-solutions/citedoc/internal/domain"
	"github.com/cloo-solutions/citedoc/internal/pagination"
	"github.com/cloo-solutions/citedoc/internal/service"
)

// MemoryStore keeps documents and indexes in process memory.
// Stored values are never mutated, so readers share them without copying.
type MemoryStore struct {
	mu      sync.RWMutex
	docs    map[string]*domain.Document
	indexes map[string]*domain.SimilarityIndex
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:    make(map[string]*domain.Document),
		indexes: make(map[string]*domain.SimilarityIndex),
	}
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	return doc, nil
}

// Put stores doc, replacing any document with the same ID and its index.
func (s *MemoryStore) Put(ctx context.Context, doc *domain.Document) error {
	if doc == nil || doc.ID == "" {
		return domain.ErrMissingRequiredField
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = doc
	delete(s.indexes, doc.ID)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return domain.ErrDocumentNotFound
	}
	delete(s.docs, id)
	delete(s.indexes, id)
	return nil
}

// List returns documents ordered by creation time, newest first.
func (s *MemoryStore) List(ctx context.Context, cursor *pagination.Cursor, limit int) (*service.DocumentPageResult, error) {
	if limit <= 0 {
		limit = 20
	}

	s.mu.RLock()
	docs := make([]*domain.Document, 0, len(s.docs))
	for _, d := range s.docs {
		docs = append(docs, d)
	}
	s.mu.RUnlock()

	sort.Slice(docs, func(i, j int) bool { return newerThan(docs[i], docs[j]) })

	items := make([]*domain.Document, 0, limit+1)
	for _, d := range docs {
		if cursor != nil && !cursor.Follows(d.CreatedAt, d.ID) {
			continue
		}
		items = append(items, d)
		if len(items) > limit {
			break
		}
	}

	items, nextCursor, hasMore := pagination.Trim(items, limit, documentCursor)

	return &service.DocumentPageResult{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

func (s *MemoryStore) GetIndex(ctx context.Context, documentID string) (*domain.SimilarityIndex, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.indexes[documentID]
	if !ok {
		return nil, domain.ErrIndexNotFound
	}
	return idx, nil
}

// PutIndex publishes a complete index, replacing any previous one.
func (s *MemoryStore) PutIndex(ctx context.Context, idx *domain.SimilarityIndex) error {
	if idx == nil || idx.DocumentID == "" {
		return domain.ErrMissingRequiredField
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[idx.DocumentID]; !ok {
		return domain.ErrDocumentNotFound
	}
	s.indexes[idx.DocumentID] = idx
	return nil
}

// ListUnindexed returns up to limit documents without an index, oldest first.
func (s *MemoryStore) ListUnindexed(ctx context.Context, limit int) ([]*domain.Document, error) {
	s.mu.RLock()
	docs := make([]*domain.Document, 0)
	for id, d := range s.docs {
		if _, ok := s.indexes[id]; !ok {
			docs = append(docs, d)
		}
	}
	s.mu.RUnlock()

	sort.Slice(docs, func(i, j int) bool { return newerThan(docs[j], docs[i]) })
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

func newerThan(a, b *domain.Document) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

func documentCursor(d *domain.Document) pagination.Cursor {
	return pagination.Cursor{CreatedAt: d.CreatedAt, ID: d.ID}
}
