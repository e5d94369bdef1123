package ws

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/starford/ansuz/internal/graph"
	"github.com/starford/ansuz/internal/similarity"
)

// Node is one graph node in the outbound payload. ClusterID is set only
// when similarity is available and enabled for the receiving viewer.
type Node struct {
	ID        string  `json:"id"`
	Label     string  `json:"label"`
	Kind      string  `json:"kind"`
	Size      float64 `json:"size"`
	ClusterID *int    `json:"cluster_id"`
}

// Edge is one directed relation in the outbound payload.
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// SimilarityInfo reports the similarity feature state for this payload.
type SimilarityInfo struct {
	Available bool    `json:"available"`
	Enabled   bool    `json:"enabled"`
	MinScore  float64 `json:"min_score"`
	TopK      int     `json:"top_k"`
}

// Payload is the full graph message pushed to a viewer.
type Payload struct {
	Nodes      []Node         `json:"nodes"`
	Edges      []Edge         `json:"edges"`
	Similarity SimilarityInfo `json:"similarity"`
}

// BuildPayload renders a snapshot for one viewer's similarity settings.
// Every edge endpoint is guaranteed to appear in Nodes: endpoints are
// inserted as their edges are added.
func BuildPayload(snap *graph.Snapshot, engine *similarity.Engine, settings similarity.Settings) Payload {
	nodes := make(map[string]*Node)
	var edges []Edge
	edgeKeys := make(map[string]struct{})

	var view *similarity.View
	if engine != nil {
		view = engine.View(settings)
	}

	insertNote := func(id string) {
		if _, ok := nodes[id]; ok {
			return
		}
		n := snap.Notes[id]
		label := n.Title
		if label == "" {
			label = strings.TrimSuffix(path.Base(id), path.Ext(id))
		}
		node := &Node{ID: id, Label: label, Kind: string(n.Kind)}
		if view != nil {
			if cluster, ok := view.Clusters[id]; ok {
				c := cluster
				node.ClusterID = &c
			}
		}
		nodes[id] = node
	}

	insertEdge := func(kind, source, target string) {
		key := fmt.Sprintf("%s:%s->%s", kind, source, target)
		if _, dup := edgeKeys[key]; dup {
			return
		}
		edgeKeys[key] = struct{}{}
		edges = append(edges, Edge{ID: key, Source: source, Target: target})
	}

	for _, p := range snap.Paths {
		n := snap.Notes[p]
		if !n.Kind.IsNote() {
			continue
		}
		insertNote(p)
		for _, tag := range n.Tags {
			tagID := "tag:" + tag
			if _, ok := nodes[tagID]; !ok {
				nodes[tagID] = &Node{ID: tagID, Label: tag, Kind: "tag"}
			}
			insertEdge("tag", p, tagID)
		}
	}

	// Link edges can pull in attachment/other targets as nodes.
	for _, e := range snap.Edges {
		insertNote(e.Source)
		insertNote(e.Target)
		insertEdge("link", e.Source, e.Target)
	}

	degree := make(map[string]int)
	for _, e := range edges {
		degree[e.Source]++
		degree[e.Target]++
	}

	out := Payload{
		Edges: edges,
		Similarity: SimilarityInfo{
			Available: engine != nil && engine.Available(),
			Enabled:   settings.Enabled,
			MinScore:  settings.MinScore,
			TopK:      settings.TopK,
		},
	}
	for id, node := range nodes {
		node.Size = 3 + float64(degree[id])
		out.Nodes = append(out.Nodes, *node)
	}
	sort.Slice(out.Nodes, func(i, j int) bool { return out.Nodes[i].ID < out.Nodes[j].ID })
	return out
}
