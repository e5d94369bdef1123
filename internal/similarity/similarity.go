// Package similarity computes pairwise content-similarity scores across
// notes and derives cluster assignments from them.
//
// Scores are computed once centrally after each content-affecting reindex
// (the expensive step); the cheap retain/top-k/connected-components step
// runs per distinct viewer settings tuple and is cached by that tuple.
package similarity

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/starford/ansuz/internal/graph"
)

// Settings gates how clustering results are built for one viewer. They
// never mutate the central score table.
type Settings struct {
	Enabled  bool    `json:"enabled"`
	MinScore float64 `json:"min_score"`
	TopK     int     `json:"top_k"`
}

type neighbor struct {
	path  string
	score float64
}

// View is the per-settings clustering result: note path to cluster id.
// Cluster ids are assigned by the sorted position of the smallest member
// path, so they stay stable across recomputation while membership does.
type View struct {
	Clusters map[string]int
}

type viewKey struct {
	minScore float64
	topK     int
}

// Engine holds the central pairwise score table. Compute runs on the
// coordinator's reindex path; View is safe for concurrent readers.
type Engine struct {
	enabled  bool
	maxNotes int

	mu        sync.RWMutex
	available bool
	paths     []string
	neighbors map[string][]neighbor // sorted by score desc, then path asc
	views     map[viewKey]*View
}

// NewEngine returns an engine. When enabled is false every snapshot
// reports the feature as unavailable and no scores are computed.
func NewEngine(enabled bool, maxNotes int) *Engine {
	return &Engine{
		enabled:   enabled,
		maxNotes:  maxNotes,
		neighbors: map[string][]neighbor{},
		views:     map[viewKey]*View{},
	}
}

// Available reports whether clustering results can be served.
func (e *Engine) Available() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.available
}

var tokenRe = regexp.MustCompile(`[a-z0-9][a-z0-9_-]+`)

func tokenize(body string) map[string]int {
	counts := make(map[string]int)
	for _, tok := range tokenRe.FindAllString(strings.ToLower(body), -1) {
		counts[tok]++
	}
	return counts
}

// Compute rebuilds the pairwise score table from the snapshot's note
// bodies (TF-IDF weighted cosine, symmetric, in [0,1]) and drops all
// cached views. Skips and marks the feature unavailable when disabled or
// when the vault exceeds maxNotes.
func (e *Engine) Compute(snap *graph.Snapshot) {
	if !e.enabled {
		return
	}

	var paths []string
	for _, p := range snap.Paths {
		if snap.Notes[p].Kind.IsNote() {
			paths = append(paths, p)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.views = map[viewKey]*View{}

	if e.maxNotes > 0 && len(paths) > e.maxNotes {
		e.available = false
		e.paths = nil
		e.neighbors = map[string][]neighbor{}
		return
	}

	// Document frequencies.
	docTerms := make([]map[string]int, len(paths))
	df := make(map[string]int)
	for i, p := range paths {
		docTerms[i] = tokenize(snap.Notes[p].Body)
		for term := range docTerms[i] {
			df[term]++
		}
	}

	// Normalized TF-IDF vectors, kept as term postings for the pairwise pass.
	type posting struct {
		doc    int
		weight float64
	}
	postings := make(map[string][]posting)
	norms := make([]float64, len(paths))
	n := float64(len(paths))
	for i, terms := range docTerms {
		for term, tf := range terms {
			idf := math.Log(1 + n/float64(df[term]))
			w := (1 + math.Log(float64(tf))) * idf
			norms[i] += w * w
			postings[term] = append(postings[term], posting{doc: i, weight: w})
		}
		norms[i] = math.Sqrt(norms[i])
	}

	// Accumulate dot products term by term; only co-occurring pairs cost work.
	type pair struct{ a, b int }
	dots := make(map[pair]float64)
	for _, list := range postings {
		for i := 0; i < len(list); i++ {
			for j := i + 1; j < len(list); j++ {
				a, b := list[i], list[j]
				dots[pair{a: a.doc, b: b.doc}] += a.weight * b.weight
			}
		}
	}

	neighbors := make(map[string][]neighbor, len(paths))
	for pr, dot := range dots {
		if norms[pr.a] == 0 || norms[pr.b] == 0 {
			continue
		}
		score := dot / (norms[pr.a] * norms[pr.b])
		if score <= 0 {
			continue
		}
		if score > 1 {
			score = 1
		}
		pa, pb := paths[pr.a], paths[pr.b]
		neighbors[pa] = append(neighbors[pa], neighbor{path: pb, score: score})
		neighbors[pb] = append(neighbors[pb], neighbor{path: pa, score: score})
	}

	for p := range neighbors {
		list := neighbors[p]
		sort.Slice(list, func(i, j int) bool {
			if list[i].score != list[j].score {
				return list[i].score > list[j].score
			}
			return list[i].path < list[j].path
		})
	}

	e.paths = paths
	e.neighbors = neighbors
	e.available = true
}

// Hit is one scored neighbor of a note.
type Hit struct {
	Path  string  `json:"path"`
	Score float64 `json:"score"`
}

// Neighbors returns the retained neighbors of path under the given
// settings: at most TopK, each scoring at least MinScore, best first.
func (e *Engine) Neighbors(path string, s Settings) []Hit {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.available {
		return nil
	}
	var out []Hit
	for _, nb := range e.neighbors[path] {
		if len(out) >= s.TopK || nb.score < s.MinScore {
			break
		}
		out = append(out, Hit{Path: nb.path, Score: nb.score})
	}
	return out
}

// View returns cluster assignments for the given settings, reusing the
// cached result when another viewer already requested the same tuple.
// Returns nil when the feature is unavailable or the settings disable it.
func (e *Engine) View(s Settings) *View {
	if !s.Enabled {
		return nil
	}
	e.mu.RLock()
	if !e.available {
		e.mu.RUnlock()
		return nil
	}
	key := viewKey{minScore: s.MinScore, topK: s.TopK}
	if v, ok := e.views[key]; ok {
		e.mu.RUnlock()
		return v
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if v, ok := e.views[key]; ok {
		return v
	}
	v := e.buildView(s)
	e.views[key] = v
	return v
}

// buildView runs the retain + connected-components step. Callers hold e.mu.
func (e *Engine) buildView(s Settings) *View {
	idx := make(map[string]int, len(e.paths))
	for i, p := range e.paths {
		idx[p] = i
	}

	parent := make([]int, len(e.paths))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[rb] = ra
		}
	}

	// Per note: keep at most TopK neighbors with score >= MinScore.
	for p, list := range e.neighbors {
		kept := 0
		for _, nb := range list {
			if kept >= s.TopK {
				break
			}
			if nb.score < s.MinScore {
				break // list is sorted by score desc
			}
			union(idx[p], idx[nb.path])
			kept++
		}
	}

	// Cluster id = sorted index of the component's smallest member path, so
	// ids only change when membership does.
	smallest := make(map[int]int) // root -> smallest member index
	for i := range e.paths {
		root := find(i)
		if cur, ok := smallest[root]; !ok || i < cur {
			smallest[root] = i
		}
	}

	clusters := make(map[string]int, len(e.paths))
	for i, p := range e.paths {
		clusters[p] = smallest[find(i)]
	}
	return &View{Clusters: clusters}
}
