package graph

import (
	"reflect"
	"testing"

	"github.com/starford/ansuz/internal/models"
)

func mdNote(path, title string, targets ...string) models.Note {
	n := models.Note{Path: path, Title: title, Kind: models.KindMarkdown}
	for _, t := range targets {
		n.Links = append(n.Links, models.LinkRef{Target: t})
	}
	return n
}

func edgePairs(s *Snapshot) map[[2]string]int {
	out := make(map[[2]string]int, len(s.Edges))
	for _, e := range s.Edges {
		out[[2]string{e.Source, e.Target}] = e.Count
	}
	return out
}

func TestSnapshot_ResolvesByStemAndPath(t *testing.T) {
	ix := NewIndex()
	ix.Upsert(mdNote("a.md", "A", "B", "sub/c.md"))
	ix.Upsert(mdNote("sub/b.md", "B"))
	ix.Upsert(mdNote("sub/c.md", "C"))

	snap := ix.Snapshot()
	want := map[[2]string]int{
		{"a.md", "sub/b.md"}: 1,
		{"a.md", "sub/c.md"}: 1,
	}
	if got := edgePairs(snap); !reflect.DeepEqual(got, want) {
		t.Errorf("edges = %v, want %v", got, want)
	}
	if snap.Unresolved != 0 {
		t.Errorf("unresolved = %d", snap.Unresolved)
	}
}

func TestSnapshot_AmbiguousStemProducesNoEdge(t *testing.T) {
	ix := NewIndex()
	ix.Upsert(mdNote("a.md", "A", "note"))
	ix.Upsert(mdNote("one/note.md", "N1"))
	ix.Upsert(mdNote("two/note.md", "N2"))

	snap := ix.Snapshot()
	if len(snap.Edges) != 0 {
		t.Errorf("edges = %v, ambiguous ref must not guess", snap.Edges)
	}
	if snap.Ambiguous != 1 || snap.Unresolved != 1 {
		t.Errorf("ambiguous = %d, unresolved = %d", snap.Ambiguous, snap.Unresolved)
	}
	if snap.Notes["a.md"].Unresolved != 1 {
		t.Errorf("per-note unresolved = %d", snap.Notes["a.md"].Unresolved)
	}
}

func TestSnapshot_AliasResolution(t *testing.T) {
	ix := NewIndex()
	ix.Upsert(mdNote("a.md", "A", "The Big One"))
	big := mdNote("big.md", "Big")
	big.Aliases = []string{"the big one"}
	ix.Upsert(big)

	snap := ix.Snapshot()
	if _, ok := edgePairs(snap)[[2]string{"a.md", "big.md"}]; !ok {
		t.Errorf("alias did not resolve: %v", snap.Edges)
	}
}

func TestSnapshot_PathishRefNeverStemMatches(t *testing.T) {
	ix := NewIndex()
	ix.Upsert(mdNote("a.md", "A", "notes/x"))
	ix.Upsert(mdNote("archive/x.md", "X"))

	snap := ix.Snapshot()
	if len(snap.Edges) != 0 {
		t.Errorf("path-qualified ref resolved by stem: %v", snap.Edges)
	}
	if snap.Unresolved != 1 {
		t.Errorf("unresolved = %d", snap.Unresolved)
	}
}

func TestSnapshot_DuplicateRefsCollapseWithCount(t *testing.T) {
	ix := NewIndex()
	ix.Upsert(mdNote("a.md", "A", "b", "b", "b"))
	ix.Upsert(mdNote("b.md", "B"))

	snap := ix.Snapshot()
	if len(snap.Edges) != 1 {
		t.Fatalf("edges = %v", snap.Edges)
	}
	if snap.Edges[0].Count != 3 {
		t.Errorf("count = %d, want 3", snap.Edges[0].Count)
	}
	if snap.OutDegree("a.md") != 1 {
		t.Errorf("out degree = %d, want 1 distinct edge", snap.OutDegree("a.md"))
	}
}

func TestSnapshot_RemoveFlipsResolution(t *testing.T) {
	ix := NewIndex()
	ix.Upsert(mdNote("a.md", "A", "b"))
	ix.Upsert(mdNote("b.md", "B"))

	before := ix.Snapshot()
	if len(before.Edges) != 1 || before.Unresolved != 0 {
		t.Fatalf("before = %v, unresolved %d", before.Edges, before.Unresolved)
	}

	if !ix.Remove("b.md") {
		t.Fatal("remove failed")
	}
	after := ix.Snapshot()
	if len(after.Edges) != 0 {
		t.Errorf("stale edge survived delete: %v", after.Edges)
	}
	if after.Unresolved != 1 {
		t.Errorf("unresolved = %d, dangling ref must be counted", after.Unresolved)
	}
	if after.Version <= before.Version {
		t.Errorf("version %d not advanced past %d", after.Version, before.Version)
	}
}

func TestSnapshot_RenameReresolvesEverywhere(t *testing.T) {
	ix := NewIndex()
	ix.Upsert(mdNote("a.md", "A", "target"))
	ix.Upsert(mdNote("target.md", "T"))

	if len(ix.Snapshot().Edges) != 1 {
		t.Fatal("setup edge missing")
	}

	// Rename arrives as delete of the old path plus create of the new one.
	ix.Remove("target.md")
	ix.Upsert(mdNote("moved/target.md", "T"))

	snap := ix.Snapshot()
	want := map[[2]string]int{{"a.md", "moved/target.md"}: 1}
	if got := edgePairs(snap); !reflect.DeepEqual(got, want) {
		t.Errorf("edges = %v, want %v", got, want)
	}
}

func TestBacklinks(t *testing.T) {
	ix := NewIndex()
	ix.Upsert(mdNote("a.md", "A", "hub"))
	ix.Upsert(mdNote("b.md", "B", "hub"))
	ix.Upsert(mdNote("hub.md", "Hub"))

	snap := ix.Snapshot()
	got := snap.Backlinks("hub.md")
	if len(got) != 2 {
		t.Fatalf("backlinks = %v", got)
	}
	// Backlinks mirror the forward edge set exactly.
	for _, src := range got {
		found := false
		for _, e := range snap.Edges {
			if e.Source == src && e.Target == "hub.md" {
				found = true
			}
		}
		if !found {
			t.Errorf("backlink %s has no forward edge", src)
		}
	}
	if len(snap.Backlinks("a.md")) != 0 {
		t.Errorf("unexpected backlinks for a.md")
	}
}

func TestSnapshot_CaseInsensitiveStem(t *testing.T) {
	ix := NewIndex()
	ix.Upsert(mdNote("a.md", "A", "my note"))
	ix.Upsert(mdNote("My Note.md", "My Note"))

	snap := ix.Snapshot()
	if _, ok := edgePairs(snap)[[2]string{"a.md", "My Note.md"}]; !ok {
		t.Errorf("case-insensitive stem did not resolve: %v", snap.Edges)
	}
}

func TestSnapshot_AttachmentTargetsResolveByPathOnly(t *testing.T) {
	ix := NewIndex()
	ix.Upsert(mdNote("a.md", "A", "img/pic.png", "pic"))
	ix.Upsert(models.Note{Path: "img/pic.png", Kind: models.KindAttachment})

	snap := ix.Snapshot()
	got := edgePairs(snap)
	if _, ok := got[[2]string{"a.md", "img/pic.png"}]; !ok {
		t.Errorf("path ref to attachment did not resolve: %v", got)
	}
	// Bare stems only match notes, so "pic" stays unresolved.
	if snap.Unresolved != 1 {
		t.Errorf("unresolved = %d, want 1", snap.Unresolved)
	}
}
