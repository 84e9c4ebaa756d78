package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/cloo-solutions/citedoc/internal/api"
	"github.com/cloo-solutions/citedoc/internal/domain"
)

type AnswerService interface {
	Ask(ctx context.Context, documentID, question string) (*domain.Answer, error)
}

type AskHandler struct {
	svc AnswerService
}

func NewAskHandler(svc AnswerService) *AskHandler {
	return &AskHandler{svc: svc}
}

type AskRequest struct {
	DocumentID string `json:"document_id"`
	Question   string `json:"question"`
}

type CitationResponse struct {
	Text       string  `json:"text"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Score      float64 `json:"score"`
	Similarity float64 `json:"similarity"`
	Page       int     `json:"page"`
	Match      string  `json:"match"`
}

type AnswerMetadataResponse struct {
	ChunksFound        int     `json:"chunks_found"`
	MaxRelevance       float64 `json:"max_relevance"`
	CitationsExtracted bool    `json:"citations_extracted"`
	Strategy           string  `json:"strategy"`
	Retrieval          string  `json:"retrieval"`
	Generated          bool    `json:"generated"`
	FallbackReason     string  `json:"fallback_reason,omitempty"`
	Confidence         string  `json:"confidence"`
}

type AnswerResponse struct {
	Answer    string                 `json:"answer"`
	Citations []*CitationResponse    `json:"citations"`
	Metadata  AnswerMetadataResponse `json:"metadata"`
}

func answerToResponse(a *domain.Answer) *AnswerResponse {
	citations := make([]*CitationResponse, 0, len(a.Citations))
	for _, c := range a.Citations {
		citations = append(citations, &CitationResponse{
			Text:       c.Text,
			Start:      c.Start,
			End:        c.End,
			Score:      c.Score,
			Similarity: c.Similarity,
			Page:       c.Page,
			Match:      string(c.Match),
		})
	}
	return &AnswerResponse{
		Answer:    a.Answer,
		Citations: citations,
		Metadata: AnswerMetadataResponse{
			ChunksFound:        a.Metadata.ChunksFound,
			MaxRelevance:       a.Metadata.MaxRelevance,
			CitationsExtracted: a.Metadata.CitationsExtracted,
			Strategy:           a.Metadata.Strategy,
			Retrieval:          a.Metadata.Retrieval,
			Generated:          a.Metadata.Generated,
			FallbackReason:     a.Metadata.FallbackReason,
			Confidence:         string(a.Metadata.Confidence),
		},
	}
}

func (h *AskHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.HandleError(w, err)
		return
	}

	if strings.TrimSpace(req.DocumentID) == "" {
		api.Error(w, http.StatusBadRequest, "document_id is required")
		return
	}

	answer, err := h.svc.Ask(r.Context(), req.DocumentID, req.Question)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, answerToResponse(answer))
}
