// Package graph owns the in-memory directed graph of notes: the mutable
// working index, link resolution, and immutable published snapshots.
package graph

import (
	"sort"

	"github.com/starford/ansuz/internal/models"
)

// Index is the single mutable working graph. It is owned by the live
// coordinator; all mutation happens on the coordinator's reindex path.
// Readers only ever see the immutable Snapshot it produces.
type Index struct {
	notes   map[string]*models.Note
	version uint64
}

// NewIndex returns an empty working graph.
func NewIndex() *Index {
	return &Index{notes: make(map[string]*models.Note)}
}

// Upsert inserts or replaces a note by path.
func (ix *Index) Upsert(n models.Note) {
	c := n
	ix.notes[n.Path] = &c
}

// Remove deletes a note and reports whether it existed. Edges referencing
// the note disappear on the next Snapshot, which re-resolves everything.
func (ix *Index) Remove(path string) bool {
	if _, ok := ix.notes[path]; !ok {
		return false
	}
	delete(ix.notes, path)
	return true
}

// Get returns the note stored under path.
func (ix *Index) Get(path string) (models.Note, bool) {
	n, ok := ix.notes[path]
	if !ok {
		return models.Note{}, false
	}
	return *n, true
}

// Len returns the number of indexed files.
func (ix *Index) Len() int { return len(ix.notes) }

// Paths returns all indexed paths in sorted order.
func (ix *Index) Paths() []string {
	out := make([]string, 0, len(ix.notes))
	for p := range ix.notes {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Snapshot is an immutable point-in-time view of the graph. Every edge's
// source and target exist in Notes; readers share snapshots by reference
// and never mutate them.
type Snapshot struct {
	Version    uint64
	Notes      map[string]models.Note
	Paths      []string // sorted note ids
	Edges      []models.Edge
	Unresolved int // total unresolved references across the vault
	Ambiguous  int // references that matched more than one candidate

	inbound   map[string][]string
	outDegree map[string]int
	broken    []BrokenRef
}

// Snapshot re-resolves the entire reference set and builds an immutable
// view. Resolution is always vault-wide: a rename or new file can flip the
// outcome of any reference anywhere, and re-resolving is cheap map lookups
// compared to re-parsing, so no per-path invalidation is attempted.
func (ix *Index) Snapshot() *Snapshot {
	ix.version++

	r := newResolver(ix.notes)

	snap := &Snapshot{
		Version:   ix.version,
		Notes:     make(map[string]models.Note, len(ix.notes)),
		Paths:     ix.Paths(),
		inbound:   make(map[string][]string),
		outDegree: make(map[string]int),
	}

	type edgeKey struct{ source, target string }
	edgeCount := make(map[edgeKey]int)

	for _, path := range snap.Paths {
		note := *ix.notes[path]
		note.Unresolved = 0

		for _, ref := range note.Links {
			target, status := r.resolve(ref.Target)
			switch status {
			case resolved:
				edgeCount[edgeKey{source: path, target: target}]++
			case ambiguous:
				note.Unresolved++
				snap.Unresolved++
				snap.Ambiguous++
				snap.broken = append(snap.broken, BrokenRef{Source: path, Target: ref.Target, Ambiguous: true})
			default:
				note.Unresolved++
				snap.Unresolved++
				snap.broken = append(snap.broken, BrokenRef{Source: path, Target: ref.Target})
			}
		}

		snap.Notes[path] = note
	}

	for k, count := range edgeCount {
		snap.Edges = append(snap.Edges, models.Edge{Source: k.source, Target: k.target, Count: count})
	}
	sort.Slice(snap.Edges, func(i, j int) bool {
		if snap.Edges[i].Source != snap.Edges[j].Source {
			return snap.Edges[i].Source < snap.Edges[j].Source
		}
		return snap.Edges[i].Target < snap.Edges[j].Target
	})

	for _, e := range snap.Edges {
		snap.inbound[e.Target] = append(snap.inbound[e.Target], e.Source)
		snap.outDegree[e.Source]++
	}

	return snap
}

// Backlinks returns the sources of all edges whose target is path. Derived
// from the forward edge set at snapshot build time, never stored
// independently.
func (s *Snapshot) Backlinks(path string) []string {
	return s.inbound[path]
}

// OutDegree returns the number of distinct outgoing resolved edges of path.
func (s *Snapshot) OutDegree(path string) int {
	return s.outDegree[path]
}
