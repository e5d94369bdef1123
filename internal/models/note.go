// Package models defines the domain types for Ansuz.
package models

// Kind classifies a vault file.
type Kind string

const (
	KindMarkdown   Kind = "markdown"
	KindCanvas     Kind = "canvas"
	KindAttachment Kind = "attachment"
	KindOther      Kind = "other"
)

// IsNote reports whether files of this kind carry parseable note content.
func (k Kind) IsNote() bool {
	return k == KindMarkdown || k == KindCanvas
}

// LinkRef is a raw, unresolved mention of another note extracted from a
// note's content. Owned by the containing note, never shared.
type LinkRef struct {
	Target  string `json:"target"`
	Display string `json:"display,omitempty"`
	Section string `json:"section,omitempty"`
	Block   string `json:"block,omitempty"`
}

// Note represents one indexed vault file. The vault-relative path is the
// stable identity.
type Note struct {
	Path        string    `json:"path"`
	Title       string    `json:"title,omitempty"`
	Kind        Kind      `json:"kind"`
	Size        int64     `json:"size"`
	Tags        []string  `json:"tags,omitempty"`
	Aliases     []string  `json:"aliases,omitempty"`
	Links       []LinkRef `json:"links,omitempty"`
	Body        string    `json:"-"`
	Unresolved  int       `json:"unresolved"`
	Fingerprint string    `json:"fingerprint"`
}

// Edge is a resolved directed relation between two notes, deduplicated by
// source/target pair. Count records how many link references produced it.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Count  int    `json:"count"`
}

// FileMeta is the cheap per-file record produced by a vault walk.
type FileMeta struct {
	Path        string
	Size        int64
	Kind        Kind
	Fingerprint string
}
