package handlers

import (
	"context"
	"time"

	"github.com/cloo-solutions/citedoc/internal/domain"
	"github.com/cloo-solutions/citedoc/internal/service"
	"github.com/stretchr/testify/mock"
)

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) Ingest(ctx context.Context, input service.IngestInput) (*domain.Document, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentService) Get(ctx context.Context, id string) (*domain.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentService) List(ctx context.Context, cursor string, limit int) (*service.DocumentPageResult, error) {
	args := m.Called(ctx, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DocumentPageResult), args.Error(1)
}

func (m *MockDocumentService) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDocumentService) FileURL(ctx context.Context, id string) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}

type MockSearchService struct {
	mock.Mock
}

func (m *MockSearchService) Search(ctx context.Context, query, documentID string, topK int) ([]service.ScoredChunk, error) {
	args := m.Called(ctx, query, documentID, topK)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]service.ScoredChunk), args.Error(1)
}

type MockAnswerService struct {
	mock.Mock
}

func (m *MockAnswerService) Ask(ctx context.Context, documentID, question string) (*domain.Answer, error) {
	args := m.Called(ctx, documentID, question)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Answer), args.Error(1)
}

const policyText = "The warranty covers defects.\n\nShipping is free."

func testDocument() *domain.Document {
	chunks := []domain.Chunk{
		{Index: 0, Text: "The warranty covers defects.", Start: 0, End: 28, Metadata: domain.ChunkMetadata{Filename: "policy.txt", Type: domain.ChunkTypeParagraphGroup}},
		{Index: 1, Text: "Shipping is free.", Start: 30, End: 47, Metadata: domain.ChunkMetadata{Filename: "policy.txt", Type: domain.ChunkTypeParagraphGroup}},
	}
	doc := domain.NewDocument("doc-1", "policy.txt", "text/plain", policyText, 1, chunks, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	doc.StorageKey = "documents/doc-1/policy.txt"
	return doc
}
