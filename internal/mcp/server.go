package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/pdfqa-mcp/internal/agent"
	"github.com/dshills/pdfqa-mcp/internal/logging"
	"github.com/dshills/pdfqa-mcp/pkg/types"
)

const (
	// ServerName is the MCP server name
	ServerName = "pdfqa-mcp"
)

// Agent is the question answering backend the tools call into
type Agent interface {
	TryProcessDocuments(ctx context.Context, paths []string) ([]agent.IngestResult, error)
	AskQuestion(ctx context.Context, question string) string
	Search(ctx context.Context, query string, k int, filename string) ([]types.Snippet, error)
	Stats(ctx context.Context) agent.Stats
	Status(ctx context.Context) agent.Status
	ClearKnowledgeBase(ctx context.Context) bool
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp   *server.MCPServer
	agent Agent
}

// NewServer creates an MCP server exposing a's operations as tools
func NewServer(a Agent, version string) *Server {
	mcpServer := server.NewMCPServer(
		ServerName,
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s := &Server{
		mcp:   mcpServer,
		agent: a,
	}
	s.registerTools()
	return s
}

// Serve runs the MCP server on stdio and blocks until stdin closes
func (s *Server) Serve(ctx context.Context) error {
	logging.From(ctx).Info("MCP server listening on stdio", "name", ServerName)
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(processDocumentTool(), s.handleProcessDocument)
	s.mcp.AddTool(askQuestionTool(), s.handleAskQuestion)
	s.mcp.AddTool(searchDocumentsTool(), s.handleSearchDocuments)
	s.mcp.AddTool(getStatsTool(), s.handleGetStats)
	s.mcp.AddTool(clearKnowledgeBaseTool(), s.handleClearKnowledgeBase)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
