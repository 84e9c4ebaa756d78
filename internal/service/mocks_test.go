package service

import (
	"context"

	"github.com/cloo-solutions/citedoc/internal/domain"
	"github.com/cloo-solutions/citedoc/internal/pagination"
	"github.com/stretchr/testify/mock"
)

// MockEmbeddingClient mocks the OpenAI embedding client
type MockEmbeddingClient struct {
	mock.Mock
}

func (m *MockEmbeddingClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

// MockGenerator mocks the answer generator
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

// MockDocumentStore is a mock implementation of DocumentStore
type MockDocumentStore struct {
	mock.Mock
}

func (m *MockDocumentStore) Get(ctx context.Context, id string) (*domain.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentStore) Put(ctx context.Context, doc *domain.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockDocumentStore) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDocumentStore) List(ctx context.Context, cursor *pagination.Cursor, limit int) (*DocumentPageResult, error) {
	args := m.Called(ctx, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*DocumentPageResult), args.Error(1)
}

func (m *MockDocumentStore) GetIndex(ctx context.Context, documentID string) (*domain.SimilarityIndex, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SimilarityIndex), args.Error(1)
}

func (m *MockDocumentStore) PutIndex(ctx context.Context, idx *domain.SimilarityIndex) error {
	args := m.Called(ctx, idx)
	return args.Error(0)
}

func (m *MockDocumentStore) ListUnindexed(ctx context.Context, limit int) ([]*domain.Document, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Document), args.Error(1)
}

// MockFileStorage is a mock implementation of FileStorage
type MockFileStorage struct {
	mock.Mock
}

func (m *MockFileStorage) PutObject(ctx context.Context, key, contentType string, data []byte) error {
	args := m.Called(ctx, key, contentType, data)
	return args.Error(0)
}

func (m *MockFileStorage) GenerateDownloadURL(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockFileStorage) DeleteObject(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// MockTextExtractor is a mock implementation of TextExtractor
type MockTextExtractor struct {
	mock.Mock
}

func (m *MockTextExtractor) Extract(data []byte) (string, int, error) {
	args := m.Called(data)
	return args.String(0), args.Int(1), args.Error(2)
}

type fixedUUID struct {
	id string
}

func (g fixedUUID) NewString() string {
	return g.id
}

const policyText = "The warranty covers manufacturing defects for two years from the date of purchase.\n\n" +
	"Shipping is free for orders above fifty dollars within the continental United States.\n\n" +
	"Returns are accepted within thirty days when the product is unused and in original packaging."

func policyDocument() *domain.Document {
	chunks := ChunkText(policyText, "policy.txt", ChunkConfig{Mode: ChunkModeSmart, ChunkSize: 100, Overlap: 10})
	return domain.NewDocument("doc-1", "policy.txt", "text/plain", policyText, 3, chunks, fixedTime)
}
