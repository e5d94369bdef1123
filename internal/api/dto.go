package api

import "github.com/starford/ansuz/internal/models"

// NoteListItem is a lightweight item in a list response.
type NoteListItem struct {
	Path       string      `json:"path"`
	Title      string      `json:"title,omitempty"`
	Kind       models.Kind `json:"kind"`
	Size       int64       `json:"size"`
	Tags       []string    `json:"tags,omitempty"`
	Unresolved int         `json:"unresolved"`
}

// NoteListResponse wraps note listings.
type NoteListResponse struct {
	Notes []NoteListItem `json:"notes"`
	Total int            `json:"total"`
}

// QueryResponse wraps the ordered matches of a filter expression.
type QueryResponse struct {
	Paths []string `json:"paths"`
}

// BacklinksResponse lists the notes linking to a target.
type BacklinksResponse struct {
	Path      string   `json:"path"`
	Backlinks []string `json:"backlinks"`
}

// MentionsResponse lists notes mentioning a target without linking to it.
type MentionsResponse struct {
	Path     string   `json:"path"`
	Mentions []string `json:"mentions"`
}

// StatusResponse reports coordinator state for readiness checks.
type StatusResponse struct {
	State      string `json:"state"`
	Notes      int    `json:"notes"`
	Edges      int    `json:"edges"`
	Unresolved int    `json:"unresolved"`
	Viewers    int    `json:"viewers"`
}
