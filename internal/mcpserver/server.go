// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes read-only Ansuz vault tools over stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/ansuz/internal/graph"
	"github.com/starford/ansuz/internal/live"
	"github.com/starford/ansuz/internal/similarity"
	"github.com/starford/ansuz/internal/vault"
)

// Server wraps the MCP server with Ansuz tools. All tools read from the
// latest published snapshot; none mutate the vault.
type Server struct {
	mcp      *server.MCPServer
	coord    *live.Coordinator
	store    vault.Provider
	engine   *similarity.Engine
	defaults similarity.Settings
}

// New creates an MCP server with all Ansuz tools registered.
func New(coord *live.Coordinator, store vault.Provider, engine *similarity.Engine, defaults similarity.Settings) *Server {
	s := &Server{coord: coord, store: store, engine: engine, defaults: defaults}

	s.mcp = server.NewMCPServer(
		"Ansuz",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("query_notes",
		mcp.WithDescription("Filter notes by attributes. Clauses: tag:<name>, kind:<markdown|canvas|attachment|other>, "+
			"path:<prefix>, text:<needle>, links>=N (also > < <= =). Clauses are ANDed; empty matches everything."),
		mcp.WithString("q", mcp.Required(), mcp.Description("Filter expression")),
	), s.queryNotes)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all notes that link to the specified note."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative path of the target note")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the full content of a vault note."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative path (e.g. folder/note.md)")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List all indexed note paths."),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("unlinked_mentions",
		mcp.WithDescription("Find notes that mention the given note by name or alias without linking to it."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative path of the target note")),
	), s.unlinkedMentions)

	s.mcp.AddTool(mcp.NewTool("link_health",
		mcp.WithDescription("Report link hygiene: broken and ambiguous references, plus orphaned notes with no links at all."),
	), s.linkHealth)

	s.mcp.AddTool(mcp.NewTool("similar_notes",
		mcp.WithDescription("List content-similar notes for the given note, best match first."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative path of the source note")),
	), s.similarNotes)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) snapshot() (*graph.Snapshot, error) {
	snap := s.coord.Snapshot()
	if snap == nil {
		return nil, fmt.Errorf("index not ready")
	}
	return snap, nil
}

func (s *Server) queryNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	expr, err := req.RequireString("q")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	snap, err := s.snapshot()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	q, err := graph.ParseQuery(expr)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	paths := q.Run(snap)
	if len(paths) == 0 {
		return mcp.NewToolResultText("no matches"), nil
	}
	return mcp.NewToolResultText(strings.Join(paths, "\n")), nil
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	snap, err := s.snapshot()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	bl := snap.Backlinks(path)
	if len(bl) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	return mcp.NewToolResultText(strings.Join(bl, "\n")), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := s.store.Read(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap, err := s.snapshot()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(strings.Join(snap.Paths, "\n")), nil
}

func (s *Server) unlinkedMentions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	snap, err := s.snapshot()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, ok := snap.Notes[path]; !ok {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	mentions := snap.UnlinkedMentions(path)
	if len(mentions) == 0 {
		return mcp.NewToolResultText("no unlinked mentions"), nil
	}
	return mcp.NewToolResultText(strings.Join(mentions, "\n")), nil
}

func (s *Server) linkHealth(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap, err := s.snapshot()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(snap.Health(), "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) similarNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !s.engine.Available() {
		return mcp.NewToolResultError("similarity is not available"), nil
	}
	hits := s.engine.Neighbors(path, s.defaults)
	if len(hits) == 0 {
		return mcp.NewToolResultText("no similar notes"), nil
	}
	out, _ := json.MarshalIndent(hits, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}
