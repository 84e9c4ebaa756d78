package middleware

import (
	"net/http"

	"github.com/cloo-solutions/citedoc/internal/api"
)

// LimitBody caps request bodies at limit bytes. Declared oversize bodies are
// rejected up front; the rest are cut off while they are read. A zero limit
// disables the cap.
func LimitBody(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limit <= 0 || r.Body == nil || r.Body == http.NoBody {
				next.ServeHTTP(w, r)
				return
			}

			if r.ContentLength > limit {
				api.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
