package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/starford/ansuz/internal/graph"
	"github.com/starford/ansuz/internal/live"
	"github.com/starford/ansuz/internal/similarity"
	"github.com/starford/ansuz/internal/testutil"
	"github.com/starford/ansuz/internal/ws"
)

func testServer(t *testing.T, scan bool) (*httptest.Server, *live.Coordinator) {
	t.Helper()
	vaultDir, store := testutil.TestVault(t)
	testutil.WriteFile(t, vaultDir, "a.md", "---\ntags: [project]\n---\n# Alpha\n\n[[b]]")
	testutil.WriteFile(t, vaultDir, "b.md", "# Beta")
	testutil.WriteFile(t, vaultDir, "c.md", "# Gamma\n\nBeta deserves a link.\n\n[[missing note]]")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := similarity.NewEngine(false, 0)
	coord := live.New(store, nil, engine, 50*time.Millisecond, logger, nil)
	if scan {
		if err := coord.Scan(context.Background()); err != nil {
			t.Fatal(err)
		}
	}

	defaults := similarity.Settings{Enabled: false}
	h := NewHandler(coord, engine, nil, defaults)
	srv := httptest.NewServer(NewRouter(h))
	t.Cleanup(srv.Close)
	return srv, coord
}

func getJSON(t *testing.T, srv *httptest.Server, path string, wantStatus int, out any) {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("GET %s = %d, want %d: %s", path, resp.StatusCode, wantStatus, body)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatal(err)
		}
	}
}

func TestGraph(t *testing.T) {
	srv, _ := testServer(t, true)
	var p ws.Payload
	getJSON(t, srv, "/graph", http.StatusOK, &p)
	if len(p.Nodes) != 4 {
		t.Errorf("nodes = %d", len(p.Nodes))
	}
	if len(p.Edges) != 2 {
		t.Errorf("edges = %d", len(p.Edges))
	}
}

func TestListNotes(t *testing.T) {
	srv, _ := testServer(t, true)
	var resp NoteListResponse
	getJSON(t, srv, "/notes", http.StatusOK, &resp)
	if resp.Total != 3 || len(resp.Notes) != 3 {
		t.Fatalf("total = %d, notes = %d", resp.Total, len(resp.Notes))
	}
	if resp.Notes[0].Path != "a.md" || resp.Notes[0].Title != "Alpha" {
		t.Errorf("first note = %+v", resp.Notes[0])
	}
	for _, n := range resp.Notes {
		if n.Path == "c.md" && n.Unresolved != 1 {
			t.Errorf("c.md unresolved = %d", n.Unresolved)
		}
	}
}

func TestQuery(t *testing.T) {
	srv, _ := testServer(t, true)

	var resp QueryResponse
	getJSON(t, srv, "/query?q=tag:project", http.StatusOK, &resp)
	if len(resp.Paths) != 1 || resp.Paths[0] != "a.md" {
		t.Errorf("paths = %v", resp.Paths)
	}

	getJSON(t, srv, "/query?q=links%3E%3D1", http.StatusOK, &resp)
	if len(resp.Paths) != 1 || resp.Paths[0] != "a.md" {
		t.Errorf("paths = %v", resp.Paths)
	}

	// Empty expression matches everything; empty result is a 200.
	getJSON(t, srv, "/query", http.StatusOK, &resp)
	if len(resp.Paths) != 3 {
		t.Errorf("paths = %v", resp.Paths)
	}
	getJSON(t, srv, "/query?q=tag:nothing", http.StatusOK, &resp)
	if len(resp.Paths) != 0 {
		t.Errorf("paths = %v", resp.Paths)
	}
}

func TestQuery_BadExpression(t *testing.T) {
	srv, _ := testServer(t, true)
	var body map[string]string
	getJSON(t, srv, "/query?q=color:red", http.StatusBadRequest, &body)
	if body["error"] == "" {
		t.Error("missing error message")
	}
}

func TestBacklinks(t *testing.T) {
	srv, _ := testServer(t, true)

	var resp BacklinksResponse
	getJSON(t, srv, "/backlinks/b.md", http.StatusOK, &resp)
	if len(resp.Backlinks) != 1 || resp.Backlinks[0] != "a.md" {
		t.Errorf("backlinks = %v", resp.Backlinks)
	}

	// No inbound links is an empty list, not an error.
	getJSON(t, srv, "/backlinks/a.md", http.StatusOK, &resp)
	if len(resp.Backlinks) != 0 {
		t.Errorf("backlinks = %v", resp.Backlinks)
	}

	getJSON(t, srv, "/backlinks/nope.md", http.StatusNotFound, nil)
}

func TestMentions(t *testing.T) {
	srv, _ := testServer(t, true)

	// c.md names Beta in prose; a.md already links it.
	var resp MentionsResponse
	getJSON(t, srv, "/mentions/b.md", http.StatusOK, &resp)
	if len(resp.Mentions) != 1 || resp.Mentions[0] != "c.md" {
		t.Errorf("mentions = %v", resp.Mentions)
	}

	getJSON(t, srv, "/mentions/c.md", http.StatusOK, &resp)
	if len(resp.Mentions) != 0 {
		t.Errorf("mentions = %v", resp.Mentions)
	}

	getJSON(t, srv, "/mentions/nope.md", http.StatusNotFound, nil)
}

func TestLinkHealth(t *testing.T) {
	srv, _ := testServer(t, true)

	var rep graph.HealthReport
	getJSON(t, srv, "/link-health", http.StatusOK, &rep)
	if rep.Notes != 3 || rep.Edges != 1 || rep.Unresolved != 1 {
		t.Errorf("report = %+v", rep)
	}
	if len(rep.BrokenRefs) != 1 || rep.BrokenRefs[0].Source != "c.md" || rep.BrokenRefs[0].Target != "missing note" {
		t.Errorf("broken = %v", rep.BrokenRefs)
	}
	if len(rep.Orphans) != 1 || rep.Orphans[0] != "c.md" {
		t.Errorf("orphans = %v", rep.Orphans)
	}
}

func TestStatus(t *testing.T) {
	srv, _ := testServer(t, true)
	var resp StatusResponse
	getJSON(t, srv, "/status", http.StatusOK, &resp)
	if resp.State != "indexed" {
		t.Errorf("state = %q", resp.State)
	}
	if resp.Notes != 3 || resp.Edges != 1 || resp.Unresolved != 1 {
		t.Errorf("status = %+v", resp)
	}
}

func TestNotReadyReturns503(t *testing.T) {
	srv, _ := testServer(t, false)
	for _, path := range []string{"/graph", "/notes", "/query?q=", "/backlinks/a.md", "/mentions/a.md", "/link-health"} {
		getJSON(t, srv, path, http.StatusServiceUnavailable, nil)
	}

	// Status always answers, even before the first snapshot.
	var resp StatusResponse
	getJSON(t, srv, "/status", http.StatusOK, &resp)
	if resp.State != "idle" {
		t.Errorf("state = %q", resp.State)
	}
}
