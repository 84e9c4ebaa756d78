package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cloo-solutions/citedoc/internal/domain"
	"github.com/cloo-solutions/citedoc/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decodeData(t *testing.T, body []byte, target interface{}) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, target))
}

func TestDocumentHandler_Create_Multipart(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc, new(MockSearchService))

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("document", "policy.txt")
	require.NoError(t, err)
	_, _ = part.Write([]byte(policyText))
	require.NoError(t, writer.Close())

	mockSvc.On("Ingest", mock.Anything, mock.MatchedBy(func(in service.IngestInput) bool {
		return in.Filename == "policy.txt" && string(in.Data) == policyText && in.Text == ""
	})).Return(testDocument(), nil)

	req := httptest.NewRequest(http.MethodPost, "/documents", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp DocumentResponse
	decodeData(t, w.Body.Bytes(), &resp)
	assert.Equal(t, "doc-1", resp.ID)
	assert.Equal(t, 2, resp.Metadata.ChunkCount)
	assert.True(t, resp.HasFile)
	assert.Equal(t, "2026-03-01T12:00:00Z", resp.UploadedAt)
	assert.Empty(t, resp.Text)
	mockSvc.AssertExpectations(t)
}

func TestDocumentHandler_Create_MultipartMissingField(t *testing.T) {
	handler := NewDocumentHandler(new(MockDocumentService), new(MockSearchService))

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "policy.txt")
	require.NoError(t, err)
	_, _ = part.Write([]byte(policyText))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/documents", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "no file uploaded")
}

func TestDocumentHandler_Create_JSON(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc, new(MockSearchService))

	mockSvc.On("Ingest", mock.Anything, service.IngestInput{
		Filename: "policy.txt",
		Text:     policyText,
	}).Return(testDocument(), nil)

	payload, _ := json.Marshal(CreateDocumentRequest{Filename: "policy.txt", Text: policyText})
	req := httptest.NewRequest(http.MethodPost, "/documents", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestDocumentHandler_Create_Validation(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		status      int
	}{
		{"missing text", "application/json", `{"filename":"a.txt"}`, http.StatusBadRequest},
		{"missing filename", "application/json", `{"text":"hello"}`, http.StatusBadRequest},
		{"malformed json", "application/json", `{`, http.StatusBadRequest},
		{"unsupported media type", "text/plain", `hello`, http.StatusUnsupportedMediaType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockSvc := new(MockDocumentService)
			handler := NewDocumentHandler(mockSvc, new(MockSearchService))

			req := httptest.NewRequest(http.MethodPost, "/documents", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			w := httptest.NewRecorder()

			handler.Create(w, req)

			assert.Equal(t, tt.status, w.Code)
			mockSvc.AssertNotCalled(t, "Ingest", mock.Anything, mock.Anything)
		})
	}
}

func TestDocumentHandler_Create_UnsupportedFileType(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc, new(MockSearchService))

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, _ := writer.CreateFormFile("document", "image.png")
	_, _ = part.Write([]byte{0x89, 0x50, 0x4e, 0x47})
	require.NoError(t, writer.Close())

	mockSvc.On("Ingest", mock.Anything, mock.Anything).Return(nil, domain.ErrUnsupportedFileType)

	req := httptest.NewRequest(http.MethodPost, "/documents", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "only PDF and plain text")
}

func TestDocumentHandler_Get(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc, new(MockSearchService))

	mockSvc.On("Get", mock.Anything, "doc-1").Return(testDocument(), nil)

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/documents/doc-1", nil), "id", "doc-1")
	w := httptest.NewRecorder()

	handler.Get(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp DocumentResponse
	decodeData(t, w.Body.Bytes(), &resp)
	assert.Equal(t, policyText, resp.Text)
	require.Len(t, resp.Chunks, 2)
	assert.Equal(t, 30, resp.Chunks[1].Start)
	assert.Equal(t, "paragraph_group", resp.Chunks[1].Type)
}

func TestDocumentHandler_Get_NotFound(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc, new(MockSearchService))

	mockSvc.On("Get", mock.Anything, "missing").Return(nil, domain.ErrDocumentNotFound)

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/documents/missing", nil), "id", "missing")
	w := httptest.NewRecorder()

	handler.Get(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDocumentHandler_List(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc, new(MockSearchService))

	mockSvc.On("List", mock.Anything, "abc", 2).Return(&service.DocumentPageResult{
		Items:      []*domain.Document{testDocument()},
		NextCursor: "next",
		HasMore:    true,
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/documents?cursor=abc&limit=2", nil)
	w := httptest.NewRecorder()

	handler.List(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp DocumentListResponse
	decodeData(t, w.Body.Bytes(), &resp)
	require.Len(t, resp.Items, 1)
	assert.Empty(t, resp.Items[0].Chunks)
	assert.Equal(t, "next", resp.Cursor)
	assert.True(t, resp.HasMore)
}

func TestDocumentHandler_List_InvalidLimit(t *testing.T) {
	handler := NewDocumentHandler(new(MockDocumentService), new(MockSearchService))

	w := httptest.NewRecorder()
	handler.List(w, httptest.NewRequest(http.MethodGet, "/documents?limit=abc", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDocumentHandler_Delete(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc, new(MockSearchService))

	mockSvc.On("Delete", mock.Anything, "doc-1").Return(nil)

	req := withURLParam(httptest.NewRequest(http.MethodDelete, "/documents/doc-1", nil), "id", "doc-1")
	w := httptest.NewRecorder()

	handler.Delete(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestDocumentHandler_File(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc, new(MockSearchService))

	mockSvc.On("FileURL", mock.Anything, "doc-1").Return("https://files.example.com/signed", nil)
	mockSvc.On("FileURL", mock.Anything, "doc-2").Return("", domain.ErrFileNotFound)

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/documents/doc-1/file", nil), "id", "doc-1")
	w := httptest.NewRecorder()
	handler.File(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://files.example.com/signed", w.Header().Get("Location"))

	req = withURLParam(httptest.NewRequest(http.MethodGet, "/documents/doc-2/file", nil), "id", "doc-2")
	w = httptest.NewRecorder()
	handler.File(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDocumentHandler_Search(t *testing.T) {
	mockSvc := new(MockDocumentService)
	mockSearch := new(MockSearchService)
	handler := NewDocumentHandler(mockSvc, mockSearch)

	doc := testDocument()
	mockSvc.On("Get", mock.Anything, "doc-1").Return(doc, nil)
	mockSearch.On("Search", mock.Anything, "shipping cost", "doc-1", service.DefaultTopK).Return([]service.ScoredChunk{
		{Chunk: doc.Chunks[1], Similarity: 0.82},
	}, nil)

	req := withURLParam(httptest.NewRequest(http.MethodPost, "/documents/doc-1/search", strings.NewReader(`{"query":"shipping cost"}`)), "id", "doc-1")
	w := httptest.NewRecorder()

	handler.Search(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp SearchResponse
	decodeData(t, w.Body.Bytes(), &resp)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, 1, resp.Results[0].ChunkIndex)
	assert.Equal(t, "Shipping is free.", resp.Results[0].Text)
	assert.InDelta(t, 0.82, resp.Results[0].Similarity, 1e-9)
	mockSearch.AssertExpectations(t)
}

func TestDocumentHandler_Search_Validation(t *testing.T) {
	mockSvc := new(MockDocumentService)
	mockSearch := new(MockSearchService)
	handler := NewDocumentHandler(mockSvc, mockSearch)

	req := withURLParam(httptest.NewRequest(http.MethodPost, "/documents/doc-1/search", strings.NewReader(`{"query":"  "}`)), "id", "doc-1")
	w := httptest.NewRecorder()
	handler.Search(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	mockSvc.On("Get", mock.Anything, "missing").Return(nil, domain.ErrDocumentNotFound)
	req = withURLParam(httptest.NewRequest(http.MethodPost, "/documents/missing/search", strings.NewReader(`{"query":"x"}`)), "id", "missing")
	w = httptest.NewRecorder()
	handler.Search(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	mockSearch.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
