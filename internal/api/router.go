package api

import (
	"github.com/go-chi/chi/v5"
)

// NewRouter mounts all API routes on a chi router.
func NewRouter(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/graph", h.Graph)
	r.Get("/notes", h.ListNotes)
	r.Get("/query", h.Query)
	r.Get("/backlinks/*", h.Backlinks)
	r.Get("/mentions/*", h.Mentions)
	r.Get("/link-health", h.LinkHealth)
	r.Get("/status", h.Status)

	return r
}
