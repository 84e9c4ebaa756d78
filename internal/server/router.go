package server

import (
	"net/http"

	"github.com/cloo-solutions/citedoc/internal/api/handlers"
	"github.com/cloo-solutions/citedoc/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

const (
	defaultMaxUploadBytes  int64 = 10 * 1024 * 1024
	defaultMaxRequestBytes int64 = 1024 * 1024
)

type RouterConfig struct {
	DocumentHandler *handlers.DocumentHandler
	AskHandler      *handlers.AskHandler
	HealthHandler   *handlers.HealthHandler
	// MaxUploadBytes caps document creation, whether multipart or raw text.
	MaxUploadBytes int64
	// MaxRequestBytes caps every other request body.
	MaxRequestBytes int64
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	upload := cfg.MaxUploadBytes
	if upload <= 0 {
		upload = defaultMaxUploadBytes
	}
	request := cfg.MaxRequestBytes
	if request <= 0 {
		request = defaultMaxRequestBytes
	}
	uploadLimit := middleware.LimitBody(upload)
	requestLimit := middleware.LimitBody(request)

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)

	r.Get("/health", cfg.HealthHandler.Health)

	r.Route("/documents", func(r chi.Router) {
		r.With(uploadLimit).Post("/", cfg.DocumentHandler.Create)
		r.Get("/", cfg.DocumentHandler.List)
		r.Get("/{id}", cfg.DocumentHandler.Get)
		r.Delete("/{id}", cfg.DocumentHandler.Delete)
		r.Get("/{id}/file", cfg.DocumentHandler.File)
		r.With(requestLimit).Post("/{id}/search", cfg.DocumentHandler.Search)
	})

	r.With(requestLimit).Post("/ask", cfg.AskHandler.Ask)

	return r
}
