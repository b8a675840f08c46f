package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/notegraph/internal/noteservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *noteservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Graph.
	r.Get("/graph", h.Graph)
	r.Get("/graph/links/*", h.Links)
	r.Get("/graph/backlinks/*", h.Backlinks)

	r.Get("/tasks", h.Tasks)
	r.Get("/search", h.Search)

	// Prediction.
	r.Get("/predict/complete", h.Complete)
	r.Get("/predict/next", h.Next)

	r.Get("/status", h.Status)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
