package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloo-solutions/citedoc/internal/domain"
	"github.com/cloo-solutions/citedoc/internal/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestDocumentService(store DocumentStore, files FileStorage, extractor TextExtractor, async bool) *DocumentService {
	svc := NewDocumentService(store, NewEmbedder(nil), files, extractor, DocumentServiceConfig{
		Chunking:   DefaultChunkConfig(),
		AsyncIndex: async,
	})
	svc.WithUUIDGenerator(fixedUUID{id: "doc-1"})
	svc.now = func() time.Time { return fixedTime }
	return svc
}

func indexFor(id string) interface{} {
	return mock.MatchedBy(func(idx *domain.SimilarityIndex) bool {
		return idx.DocumentID == id && idx.Model == domain.HashEmbeddingModel
	})
}

func TestDocumentService_IngestText(t *testing.T) {
	store := new(MockDocumentStore)
	store.On("Put", mock.Anything, mock.MatchedBy(func(doc *domain.Document) bool {
		return doc.ID == "doc-1" && doc.Text == policyText
	})).Return(nil)
	store.On("PutIndex", mock.Anything, indexFor("doc-1")).Return(nil)

	doc, err := newTestDocumentService(store, nil, nil, false).Ingest(context.Background(), IngestInput{
		Filename:  "policy.txt",
		Text:      policyText,
		PageCount: 2,
	})

	require.NoError(t, err)
	assert.Equal(t, "doc-1", doc.ID)
	assert.Equal(t, "text/plain", doc.ContentType)
	assert.Equal(t, 2, doc.Metadata.PageCount)
	assert.Equal(t, domain.CountWords(policyText), doc.Metadata.WordCount)
	assert.Equal(t, len(doc.Chunks), doc.Metadata.ChunkCount)
	assert.Equal(t, fixedTime, doc.CreatedAt)
	assert.Empty(t, doc.StorageKey)
	store.AssertExpectations(t)
}

func TestDocumentService_IngestTextUpload(t *testing.T) {
	store := new(MockDocumentStore)
	store.On("Put", mock.Anything, mock.Anything).Return(nil)
	store.On("PutIndex", mock.Anything, mock.Anything).Return(nil)
	files := new(MockFileStorage)
	files.On("PutObject", mock.Anything, "documents/doc-1/notes.md", "text/plain", []byte("# Notes\n\nSome notes.")).Return(nil)

	doc, err := newTestDocumentService(store, files, nil, false).Ingest(context.Background(), IngestInput{
		Filename:    "notes.md",
		ContentType: "text/markdown; charset=utf-8",
		Data:        []byte("# Notes\n\nSome notes."),
	})

	require.NoError(t, err)
	assert.Equal(t, "# Notes\n\nSome notes.", doc.Text)
	assert.Equal(t, 1, doc.Metadata.PageCount)
	assert.Equal(t, "documents/doc-1/notes.md", doc.StorageKey)
	files.AssertExpectations(t)
}

func TestDocumentService_IngestPDF(t *testing.T) {
	data := []byte("%PDF-1.4 fake")

	t.Run("extracted", func(t *testing.T) {
		store := new(MockDocumentStore)
		store.On("Put", mock.Anything, mock.Anything).Return(nil)
		store.On("PutIndex", mock.Anything, mock.Anything).Return(nil)
		extractor := new(MockTextExtractor)
		extractor.On("Extract", data).Return("Page one text.\n\nPage two text.", 2, nil)

		doc, err := newTestDocumentService(store, nil, extractor, false).Ingest(context.Background(), IngestInput{
			Filename:    "report.pdf",
			ContentType: "application/pdf",
			Data:        data,
		})

		require.NoError(t, err)
		assert.Equal(t, "application/pdf", doc.ContentType)
		assert.Equal(t, "Page one text.\n\nPage two text.", doc.Text)
		assert.Equal(t, 2, doc.Metadata.PageCount)
	})

	t.Run("extraction failure uses placeholder", func(t *testing.T) {
		store := new(MockDocumentStore)
		store.On("Put", mock.Anything, mock.Anything).Return(nil)
		store.On("PutIndex", mock.Anything, mock.Anything).Return(nil)
		extractor := new(MockTextExtractor)
		extractor.On("Extract", data).Return("", 0, errors.New("malformed xref table"))

		doc, err := newTestDocumentService(store, nil, extractor, false).Ingest(context.Background(), IngestInput{
			Filename: "scan.PDF",
			Data:     data,
		})

		require.NoError(t, err)
		assert.Equal(t, ExtractionFailedText, doc.Text)
		assert.Equal(t, 1, doc.Metadata.PageCount)
		assert.Len(t, doc.Chunks, 1)
	})

	t.Run("empty upload", func(t *testing.T) {
		_, err := newTestDocumentService(new(MockDocumentStore), nil, nil, false).Ingest(context.Background(), IngestInput{
			Filename: "empty.pdf",
		})

		var domainErr *domain.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, domain.ErrCodeValidation, domainErr.Code)
	})
}

func TestDocumentService_IngestValidation(t *testing.T) {
	svc := newTestDocumentService(new(MockDocumentStore), nil, nil, false)

	_, err := svc.Ingest(context.Background(), IngestInput{Text: "text"})
	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeValidation, domainErr.Code)

	_, err = svc.Ingest(context.Background(), IngestInput{Filename: "photo.png", ContentType: "image/png", Data: []byte{0x89}})
	assert.ErrorIs(t, err, domain.ErrUnsupportedFileType)

	_, err = svc.Ingest(context.Background(), IngestInput{Filename: "bad.txt", Data: []byte{0xff, 0xfe, 0xfd}})
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeValidation, domainErr.Code)
}

func TestDocumentService_IngestAsync(t *testing.T) {
	store := new(MockDocumentStore)
	store.On("Put", mock.Anything, mock.Anything).Return(nil)

	svc := newTestDocumentService(store, nil, nil, true)
	notified := 0
	svc.OnPending(func() { notified++ })

	_, err := svc.Ingest(context.Background(), IngestInput{
		Filename: "policy.txt",
		Text:     policyText,
	})

	require.NoError(t, err)
	assert.Equal(t, 1, notified)
	store.AssertNotCalled(t, "PutIndex", mock.Anything, mock.Anything)
}

func TestDocumentService_IngestIndexFailureKeepsDocument(t *testing.T) {
	store := new(MockDocumentStore)
	store.On("Put", mock.Anything, mock.Anything).Return(nil)
	store.On("PutIndex", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	doc, err := newTestDocumentService(store, nil, nil, false).Ingest(context.Background(), IngestInput{
		Filename: "policy.txt",
		Text:     policyText,
	})

	require.NoError(t, err)
	assert.Equal(t, "doc-1", doc.ID)
}

func TestDocumentService_IngestStorageFailure(t *testing.T) {
	files := new(MockFileStorage)
	files.On("PutObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("bucket missing"))
	store := new(MockDocumentStore)

	_, err := newTestDocumentService(store, files, nil, false).Ingest(context.Background(), IngestInput{
		Filename: "a.txt",
		Data:     []byte("hello world"),
	})

	assert.ErrorIs(t, err, domain.ErrStorageOperationFail)
	store.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestDocumentService_Delete(t *testing.T) {
	doc := policyDocument()
	doc.StorageKey = "documents/doc-1/policy.txt"
	store := new(MockDocumentStore)
	store.On("Get", mock.Anything, "doc-1").Return(doc, nil)
	store.On("Delete", mock.Anything, "doc-1").Return(nil)
	files := new(MockFileStorage)
	files.On("DeleteObject", mock.Anything, "documents/doc-1/policy.txt").Return(errors.New("already gone"))

	err := newTestDocumentService(store, files, nil, false).Delete(context.Background(), "doc-1")

	require.NoError(t, err)
	store.AssertExpectations(t)
	files.AssertExpectations(t)
}

func TestDocumentService_DeleteNotFound(t *testing.T) {
	store := new(MockDocumentStore)
	store.On("Get", mock.Anything, "missing").Return(nil, domain.ErrDocumentNotFound)

	err := newTestDocumentService(store, nil, nil, false).Delete(context.Background(), "missing")

	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
	store.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestDocumentService_FileURL(t *testing.T) {
	doc := policyDocument()

	t.Run("no storage", func(t *testing.T) {
		store := new(MockDocumentStore)
		store.On("Get", mock.Anything, "doc-1").Return(doc, nil)

		_, err := newTestDocumentService(store, nil, nil, false).FileURL(context.Background(), "doc-1")
		assert.ErrorIs(t, err, domain.ErrFileNotFound)
	})

	t.Run("presigned", func(t *testing.T) {
		stored := *doc
		stored.StorageKey = "documents/doc-1/policy.txt"
		store := new(MockDocumentStore)
		store.On("Get", mock.Anything, "doc-1").Return(&stored, nil)
		files := new(MockFileStorage)
		files.On("GenerateDownloadURL", mock.Anything, "documents/doc-1/policy.txt").Return("https://s3.local/signed", nil)

		url, err := newTestDocumentService(store, files, nil, false).FileURL(context.Background(), "doc-1")
		require.NoError(t, err)
		assert.Equal(t, "https://s3.local/signed", url)
	})
}

func TestDocumentService_List(t *testing.T) {
	store := new(MockDocumentStore)
	cursor := pagination.Cursor{CreatedAt: fixedTime, ID: "doc-9"}.Encode()
	store.On("List", mock.Anything, mock.MatchedBy(func(c *pagination.Cursor) bool {
		return c != nil && c.ID == "doc-9" && c.CreatedAt.Equal(fixedTime)
	}), 100).Return(&DocumentPageResult{Items: []*domain.Document{policyDocument()}}, nil)
	store.On("List", mock.Anything, (*pagination.Cursor)(nil), 20).Return(&DocumentPageResult{}, nil)

	svc := newTestDocumentService(store, nil, nil, false)

	page, err := svc.List(context.Background(), cursor, 500)
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)

	_, err = svc.List(context.Background(), "", 0)
	require.NoError(t, err)

	_, err = svc.List(context.Background(), "not-base64!!", 10)
	assert.ErrorIs(t, err, domain.ErrInvalidCursor)
	store.AssertExpectations(t)
}

func TestStorageKey(t *testing.T) {
	assert.Equal(t, "documents/abc/report.pdf", StorageKey("abc", "report.pdf"))
	assert.Equal(t, "documents/abc/passwd", StorageKey("abc", "../../etc/passwd"))
}
