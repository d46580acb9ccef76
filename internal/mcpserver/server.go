// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the finder to LLM clients via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/sowilo/internal/apperr"
	"github.com/starford/sowilo/internal/finder"
	"github.com/starford/sowilo/internal/models"
	"github.com/starford/sowilo/internal/opener"
)

// Finder is the query engine behind the tools.
type Finder interface {
	Query(ctx context.Context, raw string) *finder.Result
	Perform(ctx context.Context, a models.Action, op opener.Opener) ([]models.Effect, error)
}

// Server wraps the MCP server with the finder tools.
type Server struct {
	mcp    *server.MCPServer
	finder Finder
	opener opener.Opener
}

// New creates a new MCP server with all finder tools registered.
func New(f Finder, op opener.Opener, version string) *Server {
	s := &Server{finder: f, opener: op}

	s.mcp = server.NewMCPServer(
		"Sowilo",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("find_paths",
		mcp.WithDescription("Fuzzy-find files and directories. The query uses the finder input syntax: "+
			"\"dir/pattern\" searches dir flatly, \"dir/ pattern\" searches it recursively. "+
			"Read the sowilo://query-syntax resource or call get_query_syntax for details."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Finder input line, e.g. \"src/ main\"")),
	), s.findPaths)

	s.mcp.AddTool(mcp.NewTool("apply_action",
		mcp.WithDescription("Evaluate an action on a find_paths result and return its effects. "+
			"activate opens the path with the system opener."),
		mcp.WithString("action", mcp.Required(),
			mcp.Enum(string(models.ActionComplete), string(models.ActionActivate), string(models.ActionParentDir)),
			mcp.Description("Action kind")),
		mcp.WithString("search_dir", mcp.Description("Search directory of the originating query (as returned in query.dir)")),
		mcp.WithString("path", mcp.Description("Item path relative to search_dir (complete, activate)")),
		mcp.WithString("pattern", mcp.Description("Pattern of the originating query (parent_dir)")),
	), s.applyAction)

	s.mcp.AddTool(mcp.NewTool("get_query_syntax",
		mcp.WithDescription("Returns the finder query syntax reference."),
	), s.getQuerySyntax)

	s.mcp.AddResource(
		mcp.NewResource("sowilo://query-syntax", "Query Syntax",
			mcp.WithResourceDescription("Input syntax accepted by find_paths."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readQuerySyntaxResource,
	)

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

type foundPath struct {
	Path    string `json:"path"`
	AbsPath string `json:"abs_path"`
	Score   int    `json:"score"`
	IsDir   bool   `json:"is_dir"`
}

type findResult struct {
	Query struct {
		Dir       string `json:"dir"`
		Pattern   string `json:"pattern"`
		Recursive bool   `json:"recursive"`
	} `json:"query"`
	Dir   string      `json:"dir"`
	Items []foundPath `json:"items"`
}

func (s *Server) findPaths(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res := s.finder.Query(ctx, raw)
	var out findResult
	out.Query.Dir = res.Query.Dir
	out.Query.Pattern = res.Query.Pattern
	out.Query.Recursive = res.Query.Recursive
	out.Dir = res.Dir
	out.Items = make([]foundPath, len(res.Items))
	for i, it := range res.Items {
		out.Items[i] = foundPath{
			Path:    it.Path,
			AbsPath: it.Actions.Activate.AbsPath,
			Score:   it.Score,
			IsDir:   it.IsDir,
		}
	}

	if len(out.Items) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("no matches in %s", res.Dir)), nil
	}
	data, _ := json.MarshalIndent(out, "", "  ")
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) applyAction(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind, err := req.RequireString("action")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	a := models.Action{
		Kind:      models.ActionKind(kind),
		SearchDir: req.GetString("search_dir", ""),
		Path:      req.GetString("path", ""),
		Pattern:   req.GetString("pattern", ""),
	}
	if a.Kind != models.ActionParentDir && a.Path == "" {
		return mcp.NewToolResultError(fmt.Sprintf("path is required for %s", kind)), nil
	}

	effects, err := s.finder.Perform(ctx, a, s.opener)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrUnknownAction):
			return mcp.NewToolResultError(fmt.Sprintf("unknown action: %s", kind)), nil
		case errors.Is(err, apperr.ErrOutsideRoot):
			return mcp.NewToolResultError(fmt.Sprintf("path outside search directory: %s", a.Path)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, _ := json.MarshalIndent(effects, "", "  ")
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) getQuerySyntax(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(QuerySyntax), nil
}

func (s *Server) readQuerySyntaxResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "sowilo://query-syntax",
			MIMEType: "text/markdown",
			Text:     QuerySyntax,
		},
	}, nil
}
