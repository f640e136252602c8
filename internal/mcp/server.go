// Package mcp exposes document sections to coding agents over the Model
// Context Protocol.
package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/ziadkadry99/pageblocks/internal/audit"
	"github.com/ziadkadry99/pageblocks/internal/documents"
	"github.com/ziadkadry99/pageblocks/internal/render"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Server wraps an MCP server that exposes section tools.
type Server struct {
	docs     *documents.Store
	renderer *render.Renderer
	audit    audit.Recorder
	mcp      *server.MCPServer
}

// NewServer creates a new MCP server with the given dependencies. A nil
// renderer denies template execution.
func NewServer(docs *documents.Store, renderer *render.Renderer, rec audit.Recorder) *Server {
	if renderer == nil {
		renderer = render.New(nil)
	}
	s := &Server{
		docs:     docs,
		renderer: renderer,
		audit:    rec,
	}

	s.mcp = server.NewMCPServer(
		"pageblocks",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(listDocumentsTool, s.handleListDocuments)
	s.mcp.AddTool(listSectionsTool, s.handleListSections)
	s.mcp.AddTool(getSectionTool, s.handleGetSection)
	s.mcp.AddTool(updateSectionTool, s.handleUpdateSection)
	s.mcp.AddTool(renderPreviewTool, s.handleRenderPreview)
	s.mcp.AddTool(applySectionsTool, s.handleApplySections)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
