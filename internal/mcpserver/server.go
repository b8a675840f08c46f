// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes notegraph queries for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/notegraph/internal/apperr"
	"github.com/starford/notegraph/internal/models"
	"github.com/starford/notegraph/internal/noteservice"
)

const syntaxURI = "notegraph://syntax"

// Server wraps the MCP server with notegraph tools.
type Server struct {
	mcp *server.MCPServer
	svc *noteservice.Service
}

// New creates a new MCP server with all notegraph tools registered.
func New(svc *noteservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"notegraph",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Full-text search through note titles, content and tags."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of hits (default 20)")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("get_links",
		mcp.WithDescription("List the notes a note links to, including implicit folder links."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Note path, with or without .md (e.g. People/John)")),
	), s.getLinks)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all notes that link to the specified note."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path of the note to find backlinks for")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("list_tasks",
		mcp.WithDescription("List checkbox tasks across the vault with status and dates."),
		mcp.WithString("path", mcp.Description("Only tasks of this note")),
		mcp.WithString("status", mcp.Description("Task status filter"), mcp.Enum("todo", "doing", "done")),
	), s.listTasks)

	s.mcp.AddTool(mcp.NewTool("predict_next",
		mcp.WithDescription("Suggest the most likely next words after the given text, learned from the vault."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Text typed so far; the last one or two words are used")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of suggestions (default 5)")),
	), s.predictNext)

	s.mcp.AddTool(mcp.NewTool("complete_word",
		mcp.WithDescription("Complete a partially typed word from the vault vocabulary."),
		mcp.WithString("prefix", mcp.Required(), mcp.Description("Word prefix")),
	), s.completeWord)

	s.mcp.AddTool(mcp.NewTool("index_status",
		mcp.WithDescription("Report whether the vault index is ready and how large it is."),
	), s.indexStatus)

	s.mcp.AddResource(
		mcp.NewResource(syntaxURI, "Syntax Guide",
			mcp.WithResourceDescription("Markdown constructs recognised by the indexer: links, daily notes, tasks, tags."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readSyntaxResource,
	)

	return s
}

// ServeStdio serves the protocol on stdin/stdout until ctx is cancelled or
// stdin is closed.
func (s *Server) ServeStdio(ctx context.Context) error {
	err := server.NewStdioServer(s.mcp).Listen(ctx, os.Stdin, os.Stdout)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func errorResult(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("note not found")
	case errors.Is(err, apperr.ErrNotReady), errors.Is(err, apperr.ErrWorkerTerminated):
		return mcp.NewToolResultError("index not ready, try again shortly")
	}
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	hits, err := s.svc.Search(ctx, query, req.GetInt("limit", 0))
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(hits)
}

func (s *Server) getLinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ls, err := s.svc.Links(ctx, path)
	if err != nil {
		return errorResult(err), nil
	}
	if len(ls.Links) == 0 {
		return mcp.NewToolResultText("no links found"), nil
	}
	return mcp.NewToolResultText(strings.Join(ls.Links, "\n")), nil
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ls, err := s.svc.Links(ctx, path)
	if err != nil {
		return errorResult(err), nil
	}
	if len(ls.Backlinks) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	return mcp.NewToolResultText(strings.Join(ls.Backlinks, "\n")), nil
}

func (s *Server) listTasks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tasks, err := s.svc.Tasks(ctx, noteservice.TaskFilter{
		File:   req.GetString("path", ""),
		Status: models.TaskStatus(req.GetString("status", "")),
	})
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(tasks)
}

func (s *Server) predictNext(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return mcp.NewToolResultError("text has no words"), nil
	}
	prev, word := "", words[len(words)-1]
	if len(words) > 1 {
		prev = words[len(words)-2]
	}
	next, err := s.svc.Next(ctx, prev, word, req.GetInt("limit", 0))
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(next)
}

func (s *Server) completeWord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prefix, err := req.RequireString("prefix")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	words, err := s.svc.Complete(ctx, prefix, 0)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(words)
}

func (s *Server) indexStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.Status(ctx))
}

func (s *Server) readSyntaxResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      syntaxURI,
			MIMEType: "text/markdown",
			Text:     SyntaxGuide,
		},
	}, nil
}
