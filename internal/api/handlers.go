// Package api implements the Ansuz REST API using chi.
package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/graph"
	"github.com/starford/ansuz/internal/live"
	"github.com/starford/ansuz/internal/similarity"
	"github.com/starford/ansuz/internal/ws"
)

// Handler serves read-only views over the latest published snapshot.
// Queries and payloads never touch the mutable working graph.
type Handler struct {
	coord    *live.Coordinator
	engine   *similarity.Engine
	hub      *ws.Hub
	defaults similarity.Settings
}

// NewHandler creates the API handler.
func NewHandler(coord *live.Coordinator, engine *similarity.Engine, hub *ws.Hub, defaults similarity.Settings) *Handler {
	return &Handler{coord: coord, engine: engine, hub: hub, defaults: defaults}
}

func (h *Handler) snapshot(w http.ResponseWriter) *graph.Snapshot {
	snap := h.coord.Snapshot()
	if snap == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("index not ready"))
		return nil
	}
	return snap
}

// Graph returns the full graph payload rendered with the service-default
// similarity settings.
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	snap := h.snapshot(w)
	if snap == nil {
		return
	}
	writeJSON(w, http.StatusOK, ws.BuildPayload(snap, h.engine, h.defaults))
}

// ListNotes returns every indexed note.
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	snap := h.snapshot(w)
	if snap == nil {
		return
	}
	resp := NoteListResponse{Notes: make([]NoteListItem, 0, len(snap.Paths))}
	for _, p := range snap.Paths {
		n := snap.Notes[p]
		resp.Notes = append(resp.Notes, NoteListItem{
			Path:       n.Path,
			Title:      n.Title,
			Kind:       n.Kind,
			Size:       n.Size,
			Tags:       n.Tags,
			Unresolved: n.Unresolved,
		})
	}
	resp.Total = len(resp.Notes)
	writeJSON(w, http.StatusOK, resp)
}

// Query evaluates the q= filter expression against the latest snapshot.
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	snap := h.snapshot(w)
	if snap == nil {
		return
	}
	q, err := graph.ParseQuery(r.URL.Query().Get("q"))
	if err != nil {
		var qerr *apperr.QueryError
		if errors.As(err, &qerr) {
			writeJSON(w, http.StatusBadRequest, errorBody(qerr.Error()))
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	paths := q.Run(snap)
	if paths == nil {
		paths = []string{}
	}
	writeJSON(w, http.StatusOK, QueryResponse{Paths: paths})
}

// Backlinks returns the notes linking to the note at the wildcard path.
func (h *Handler) Backlinks(w http.ResponseWriter, r *http.Request) {
	snap := h.snapshot(w)
	if snap == nil {
		return
	}
	path := chi.URLParam(r, "*")
	if _, ok := snap.Notes[path]; !ok {
		writeJSON(w, http.StatusNotFound, errorBody("note not found: "+path))
		return
	}
	bl := snap.Backlinks(path)
	if bl == nil {
		bl = []string{}
	}
	writeJSON(w, http.StatusOK, BacklinksResponse{Path: path, Backlinks: bl})
}

// Mentions returns the unlinked mentions of the note at the wildcard path.
func (h *Handler) Mentions(w http.ResponseWriter, r *http.Request) {
	snap := h.snapshot(w)
	if snap == nil {
		return
	}
	path := chi.URLParam(r, "*")
	if _, ok := snap.Notes[path]; !ok {
		writeJSON(w, http.StatusNotFound, errorBody("note not found: "+path))
		return
	}
	mentions := snap.UnlinkedMentions(path)
	if mentions == nil {
		mentions = []string{}
	}
	writeJSON(w, http.StatusOK, MentionsResponse{Path: path, Mentions: mentions})
}

// LinkHealth reports broken references and orphaned notes.
func (h *Handler) LinkHealth(w http.ResponseWriter, r *http.Request) {
	snap := h.snapshot(w)
	if snap == nil {
		return
	}
	writeJSON(w, http.StatusOK, snap.Health())
}

// Status reports coordinator state and graph counters.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{State: h.coord.State().String()}
	if snap := h.coord.Snapshot(); snap != nil {
		resp.Notes = len(snap.Paths)
		resp.Edges = len(snap.Edges)
		resp.Unresolved = snap.Unresolved
	}
	if h.hub != nil {
		resp.Viewers = h.hub.SessionCount()
	}
	writeJSON(w, http.StatusOK, resp)
}
