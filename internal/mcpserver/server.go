// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes read-only registry tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/filerecords/internal/apperr"
	"github.com/starford/filerecords/internal/manifest"
	"github.com/starford/filerecords/internal/models"
	"github.com/starford/filerecords/internal/registry"
)

const layoutURI = "records://store-layout"

// Opener loads the registry. It is called once per request so that changes
// made by other processes are seen, and must not create a store.
type Opener func() (*registry.Registry, error)

// Server wraps the MCP server with registry tools.
type Server struct {
	mcp  *server.MCPServer
	open Opener
}

// RecordSummary is one search hit.
type RecordSummary struct {
	ID          string   `json:"id"`
	Path        string   `json:"path"`
	Flags       []string `json:"flags"`
	LastComment string   `json:"lastComment,omitempty"`
	Exists      bool     `json:"exists"`
}

// Vocabulary lists the registered flags and groups.
type Vocabulary struct {
	Flags  []string            `json:"flags"`
	Groups map[string][]string `json:"groups"`
}

// New creates a new MCP server with all registry tools registered.
func New(open Opener, version string) *Server {
	s := &Server{open: open}

	s.mcp = server.NewMCPServer(
		"filerecords",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_records",
		mcp.WithDescription("Search tracked files. All given criteria must match; with none every record is returned."),
		mcp.WithString("pattern", mcp.Description("Regular expression matched against the file name")),
		mcp.WithString("flag", mcp.Description("Flag the record must carry")),
		mcp.WithString("glob", mcp.Description("Glob matched against the path, e.g. docs/**/*.md")),
	), s.searchRecords)

	s.mcp.AddTool(mcp.NewTool("read_record",
		mcp.WithDescription("Read every comment and flag of a tracked file as Markdown."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path of the file, or a unique part of it")),
	), s.readRecord)

	s.mcp.AddTool(mcp.NewTool("lookup",
		mcp.WithDescription("Return the latest comment of a tracked file, or of the registry when no path is given."),
		mcp.WithString("path", mcp.Description("Path of the file, or a unique part of it")),
	), s.lookup)

	s.mcp.AddTool(mcp.NewTool("list_flags",
		mcp.WithDescription("List the flags and flag groups registered in the registry."),
	), s.listFlags)

	s.mcp.AddResource(
		mcp.NewResource(layoutURI, "Registry Store Layout",
			mcp.WithResourceDescription("How a registry stores its index, comments and flags on disk."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readLayoutResource,
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

func (s *Server) searchRecords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reg, err := s.open()
	if err != nil {
		return mcp.NewToolResultError(describe(err, "")), nil
	}
	recs, err := reg.Search(registry.Query{
		Pattern: req.GetString("pattern", ""),
		Flag:    req.GetString("flag", ""),
		Glob:    req.GetString("glob", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out := make([]RecordSummary, 0, len(recs))
	for _, rec := range recs {
		sum := RecordSummary{ID: rec.ID.String(), Path: rec.Path(), Flags: rec.Flags()}
		if sum.Flags == nil {
			sum.Flags = []string{}
		}
		if c, ok := rec.LastComment(); ok {
			sum.LastComment = c.Text
		}
		sum.Exists, _ = rec.Exists()
		out = append(out, sum)
	}
	data, _ := json.MarshalIndent(out, "", "  ")
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) readRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	reg, err := s.open()
	if err != nil {
		return mcp.NewToolResultError(describe(err, "")), nil
	}
	rec, err := reg.Record(path)
	if err != nil {
		return mcp.NewToolResultError(describe(err, path)), nil
	}
	return mcp.NewToolResultText(manifest.RecordMarkdown(manifest.NewEntry(rec))), nil
}

func (s *Server) lookup(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reg, err := s.open()
	if err != nil {
		return mcp.NewToolResultError(describe(err, "")), nil
	}
	path := strings.TrimSpace(req.GetString("path", ""))

	var last models.Comment
	var ok bool
	if path == "" {
		last, ok = reg.LastComment()
	} else {
		rec, err := reg.Record(path)
		if err != nil {
			return mcp.NewToolResultError(describe(err, path)), nil
		}
		last, ok = rec.LastComment()
	}
	if !ok {
		return mcp.NewToolResultText("no comments"), nil
	}
	return mcp.NewToolResultText(last.String()), nil
}

func (s *Server) listFlags(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reg, err := s.open()
	if err != nil {
		return mcp.NewToolResultError(describe(err, "")), nil
	}
	v := Vocabulary{Flags: reg.Flags(), Groups: reg.Groups()}
	if v.Flags == nil {
		v.Flags = []string{}
	}
	data, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) readLayoutResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      layoutURI,
			MIMEType: "text/markdown",
			Text:     StoreLayout,
		},
	}, nil
}

func describe(err error, path string) string {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return "no record found for " + path
	case errors.Is(err, apperr.ErrNoRegistry):
		return "no registry here or in any parent directory; run records init first"
	case errors.Is(err, apperr.ErrAmbiguous):
		return "more than one record matches " + path + "; give a longer path"
	default:
		return err.Error()
	}
}
