package graph

import (
	"path"
	"strings"

	"github.com/starford/ansuz/internal/models"
)

type resolveStatus int

const (
	missing resolveStatus = iota
	resolved
	ambiguous
)

// resolver maps raw link text to note identities. Indices are rebuilt
// whole on every snapshot; they are lookup tables, not owned state.
//
// Resolution policy, first match wins:
//  1. exact vault-relative path (then with a note extension appended)
//  2. case-insensitive filename stem, only when unique in the vault
//  3. frontmatter alias, only when unique
//
// Anything that matches more than one candidate is ambiguous and produces
// no edge: references are recorded as unresolved rather than guessed.
type resolver struct {
	byPath      map[string]string   // exact rel path -> path
	byPathLower map[string][]string // lowercased rel path -> paths
	byStemLower map[string][]string // lowercased filename stem -> note paths
	byAlias     map[string][]string // lowercased alias -> note paths
}

var noteExts = []string{".md", ".canvas"}

func newResolver(notes map[string]*models.Note) *resolver {
	r := &resolver{
		byPath:      make(map[string]string, len(notes)),
		byPathLower: make(map[string][]string, len(notes)),
		byStemLower: make(map[string][]string),
		byAlias:     make(map[string][]string),
	}

	for p, n := range notes {
		r.byPath[p] = p
		lower := strings.ToLower(p)
		r.byPathLower[lower] = append(r.byPathLower[lower], p)

		if n.Kind.IsNote() {
			stem := strings.ToLower(stemOf(p))
			r.byStemLower[stem] = append(r.byStemLower[stem], p)
			for _, a := range n.Aliases {
				key := strings.ToLower(strings.TrimSpace(a))
				if key != "" {
					r.byAlias[key] = append(r.byAlias[key], p)
				}
			}
		}
	}

	return r
}

func stemOf(p string) string {
	base := path.Base(p)
	if i := strings.LastIndex(base, "."); i > 0 {
		return base[:i]
	}
	return base
}

func hasExtension(ref string) bool {
	base := path.Base(ref)
	i := strings.LastIndex(base, ".")
	return i > 0 && i < len(base)-1
}

// resolve maps one raw link target to a note path.
func (r *resolver) resolve(ref string) (string, resolveStatus) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", missing
	}

	// Exact vault-relative path, as written or with a note extension.
	if p, ok := r.byPath[ref]; ok {
		return p, resolved
	}
	if !hasExtension(ref) {
		for _, ext := range noteExts {
			if p, ok := r.byPath[ref+ext]; ok {
				return p, resolved
			}
		}
	}

	// Case-insensitive path forms of the same two checks.
	if p, status := pickUnique(r.byPathLower[strings.ToLower(ref)]); status != missing {
		return p, status
	}
	if !hasExtension(ref) {
		for _, ext := range noteExts {
			if p, status := pickUnique(r.byPathLower[strings.ToLower(ref+ext)]); status != missing {
				return p, status
			}
		}
	}

	// Path-ish references that did not match a path never fall through to
	// stem matching: [[notes/x]] must not resolve to archive/x.md.
	if strings.Contains(ref, "/") {
		return "", missing
	}

	stem := strings.ToLower(stemOf(ref))
	if p, status := pickUnique(r.byStemLower[stem]); status != missing {
		return p, status
	}

	if p, status := pickUnique(r.byAlias[strings.ToLower(ref)]); status != missing {
		return p, status
	}

	return "", missing
}

func pickUnique(candidates []string) (string, resolveStatus) {
	switch len(candidates) {
	case 0:
		return "", missing
	case 1:
		return candidates[0], resolved
	default:
		return "", ambiguous
	}
}
