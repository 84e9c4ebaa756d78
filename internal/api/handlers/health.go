package handlers

import (
	"net/http"

	"github.com/cloo-solutions/citedoc/internal/api"
)

// Features reports which optional collaborators are configured.
type Features struct {
	Generation bool   `json:"generation"`
	Embeddings bool   `json:"embeddings"`
	Storage    bool   `json:"storage"`
	Database   bool   `json:"database"`
	Strategy   string `json:"strategy"`
}

type HealthResponse struct {
	Status   string   `json:"status"`
	Features Features `json:"features"`
}

type HealthHandler struct {
	features Features
}

func NewHealthHandler(features Features) *HealthHandler {
	return &HealthHandler{features: features}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	api.Success(w, http.StatusOK, &HealthResponse{Status: "ok", Features: h.features})
}
