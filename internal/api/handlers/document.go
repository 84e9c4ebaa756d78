package handlers

import (
	"context"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cloo-solutions/citedoc/internal/api"
	"github.com/cloo-solutions/citedoc/internal/domain"
	"github.com/cloo-solutions/citedoc/internal/service"
	"github.com/go-chi/chi/v5"
)

// uploadField is the multipart form field carrying the uploaded file
const uploadField = "document"

const multipartMemory = 32 << 20

type DocumentService interface {
	Ingest(ctx context.Context, input service.IngestInput) (*domain.Document, error)
	Get(ctx context.Context, id string) (*domain.Document, error)
	List(ctx context.Context, cursor string, limit int) (*service.DocumentPageResult, error)
	Delete(ctx context.Context, id string) error
	FileURL(ctx context.Context, id string) (string, error)
}

type SearchService interface {
	Search(ctx context.Context, query, documentID string, topK int) ([]service.ScoredChunk, error)
}

type DocumentHandler struct {
	svc    DocumentService
	search SearchService
}

func NewDocumentHandler(svc DocumentService, search SearchService) *DocumentHandler {
	return &DocumentHandler{svc: svc, search: search}
}

type CreateDocumentRequest struct {
	Filename  string `json:"filename"`
	Text      string `json:"text"`
	PageCount int    `json:"page_count,omitempty"`
}

type DocumentMetadataResponse struct {
	PageCount  int `json:"page_count"`
	WordCount  int `json:"word_count"`
	ChunkCount int `json:"chunk_count"`
}

type ChunkResponse struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
	Start int    `json:"start"`
	End   int    `json:"end"`
	Type  string `json:"type"`
}

type DocumentResponse struct {
	ID          string                   `json:"id"`
	Filename    string                   `json:"filename"`
	ContentType string                   `json:"content_type"`
	Metadata    DocumentMetadataResponse `json:"metadata"`
	HasFile     bool                     `json:"has_file"`
	UploadedAt  string                   `json:"uploaded_at"`
	Text        string                   `json:"text,omitempty"`
	Chunks      []*ChunkResponse         `json:"chunks,omitempty"`
}

type DocumentListResponse struct {
	Items   []*DocumentResponse `json:"items"`
	Cursor  string              `json:"cursor,omitempty"`
	HasMore bool                `json:"has_more"`
}

type SearchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

type SearchResultResponse struct {
	ChunkIndex int     `json:"chunk_index"`
	Text       string  `json:"text"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Similarity float64 `json:"similarity"`
}

type SearchResponse struct {
	Results []*SearchResultResponse `json:"results"`
}

func documentToResponse(d *domain.Document, full bool) *DocumentResponse {
	resp := &DocumentResponse{
		ID:          d.ID,
		Filename:    d.Filename,
		ContentType: d.ContentType,
		Metadata: DocumentMetadataResponse{
			PageCount:  d.Metadata.PageCount,
			WordCount:  d.Metadata.WordCount,
			ChunkCount: d.Metadata.ChunkCount,
		},
		HasFile:    d.StorageKey != "",
		UploadedAt: d.CreatedAt.UTC().Format(time.RFC3339),
	}
	if !full {
		return resp
	}
	resp.Text = d.Text
	resp.Chunks = make([]*ChunkResponse, 0, len(d.Chunks))
	for _, c := range d.Chunks {
		resp.Chunks = append(resp.Chunks, &ChunkResponse{
			Index: c.Index,
			Text:  c.Text,
			Start: c.Start,
			End:   c.End,
			Type:  string(c.Metadata.Type),
		})
	}
	return resp
}

// Create ingests either a multipart upload or a JSON body with raw text.
func (h *DocumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var input service.IngestInput
	switch mediaType {
	case "multipart/form-data":
		parsed, err := readUpload(r)
		if err != nil {
			api.HandleError(w, err)
			return
		}
		input = *parsed
	case "application/json":
		var req CreateDocumentRequest
		if err := api.DecodeJSON(r, &req); err != nil {
			api.HandleError(w, err)
			return
		}
		if strings.TrimSpace(req.Text) == "" {
			api.Error(w, http.StatusBadRequest, "text is required")
			return
		}
		input = service.IngestInput{
			Filename:  req.Filename,
			Text:      req.Text,
			PageCount: req.PageCount,
		}
	default:
		api.Error(w, http.StatusUnsupportedMediaType, "expected multipart/form-data or application/json")
		return
	}

	if input.Filename == "" {
		api.Error(w, http.StatusBadRequest, "filename is required")
		return
	}

	doc, err := h.svc.Ingest(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, documentToResponse(doc, false))
}

func readUpload(r *http.Request) (*service.IngestInput, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return nil, api.InvalidBody(err)
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "no file uploaded in field \""+uploadField+"\"")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, api.InvalidBody(err)
	}
	if len(data) == 0 {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "uploaded file is empty")
	}

	return &service.IngestInput{
		Filename:    filepath.Base(header.Filename),
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	doc, err := h.svc.Get(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, documentToResponse(doc, true))
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			api.Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	page, err := h.svc.List(r.Context(), r.URL.Query().Get("cursor"), limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]*DocumentResponse, 0, len(page.Items))
	for _, d := range page.Items {
		items = append(items, documentToResponse(d, false))
	}

	api.Success(w, http.StatusOK, &DocumentListResponse{
		Items:   items,
		Cursor:  page.NextCursor,
		HasMore: page.HasMore,
	})
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// File redirects to a temporary download URL for the original upload.
func (h *DocumentHandler) File(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	url, err := h.svc.FileURL(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	http.Redirect(w, r, url, http.StatusFound)
}

func (h *DocumentHandler) Search(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	var req SearchRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.HandleError(w, err)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		api.HandleError(w, domain.ErrEmptyQuery)
		return
	}
	if req.TopK <= 0 {
		req.TopK = service.DefaultTopK
	}

	// Search itself treats an unknown document as an empty result.
	if _, err := h.svc.Get(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}

	results, err := h.search.Search(r.Context(), req.Query, id, req.TopK)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := &SearchResponse{Results: make([]*SearchResultResponse, 0, len(results))}
	for _, res := range results {
		resp.Results = append(resp.Results, &SearchResultResponse{
			ChunkIndex: res.Chunk.Index,
			Text:       res.Chunk.Text,
			Start:      res.Chunk.Start,
			End:        res.Chunk.End,
			Similarity: res.Similarity,
		})
	}

	api.Success(w, http.StatusOK, resp)
}
