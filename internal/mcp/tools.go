package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/pdfqa-mcp/internal/agent"
	"github.com/dshills/pdfqa-mcp/internal/processor"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeDocumentNotFound   = -32001 // Path does not name a readable PDF
	ErrorCodeIngestInProgress   = -32002 // Another ingestion is already running
	ErrorCodeEmptyKnowledgeBase = -32003 // Nothing has been ingested yet
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
)

const (
	// DefaultSearchLimit is the number of passages search_documents returns by default
	DefaultSearchLimit = 5
	// MaxSearchLimit caps search_documents results
	MaxSearchLimit = 50

	maxReportedErrors = 5
)

// handleProcessDocument handles the process_document tool invocation
func (s *Server) handleProcessDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}

	files, err := validatePath(path)
	if err != nil {
		return nil, newMCPError(ErrorCodeDocumentNotFound, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}

	results, err := s.agent.TryProcessDocuments(ctx, files)
	if errors.Is(err, agent.ErrIngestInProgress) {
		return nil, newMCPError(ErrorCodeIngestInProgress, "document ingestion already in progress", nil)
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "ingestion failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	var processed, failed, chunks int
	var errs []string
	for _, r := range results {
		if r.OK() {
			processed++
			chunks += r.Chunks
			continue
		}
		failed++
		errs = append(errs, fmt.Sprintf("%s: %v", filepath.Base(r.Path), r.Err))
	}

	response := map[string]interface{}{
		"success":         processed > 0,
		"files_processed": processed,
		"files_failed":    failed,
		"chunks_created":  chunks,
	}
	if len(errs) > 0 {
		if len(errs) > maxReportedErrors {
			response["errors"] = errs[:maxReportedErrors]
			response["error_count"] = len(errs)
		} else {
			response["errors"] = errs
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleAskQuestion handles the ask_question tool invocation
func (s *Server) handleAskQuestion(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	question, ok := args["question"].(string)
	if !ok || strings.TrimSpace(question) == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "question parameter is required and cannot be empty", map[string]interface{}{
			"param":  "question",
			"reason": "missing or empty",
		})
	}

	return mcp.NewToolResultText(s.agent.AskQuestion(ctx, question)), nil
}

// handleSearchDocuments handles the search_documents tool invocation
func (s *Server) handleSearchDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", DefaultSearchLimit)
	if limit < 1 || limit > MaxSearchLimit {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 50", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}
	filename := getStringDefault(args, "filename", "")

	if s.agent.Stats(ctx).DocumentCount == 0 {
		return nil, newMCPError(ErrorCodeEmptyKnowledgeBase, "knowledge base is empty", map[string]interface{}{
			"hint": "Use process_document to add PDFs first.",
		})
	}

	snippets, err := s.agent.Search(ctx, query, limit, filename)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	results := make([]map[string]interface{}, len(snippets))
	for i, sn := range snippets {
		r := map[string]interface{}{
			"rank":             i + 1,
			"source":           sn.Source(),
			"chunk_id":         sn.Metadata.ChunkID,
			"similarity_score": fmt.Sprintf("%.3f", sn.SimilarityScore),
			"content":          sn.Content,
		}
		if sn.Metadata.PageNumber != nil {
			r["page"] = *sn.Metadata.PageNumber
		}
		results[i] = r
	}

	response := map[string]interface{}{
		"query":         query,
		"total_results": len(results),
		"results":       results,
	}
	if filename != "" {
		response["filename"] = filename
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStats handles the get_stats tool invocation
func (s *Server) handleGetStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats := s.agent.Stats(ctx)
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"document_count":  stats.DocumentCount,
		"collection_name": stats.CollectionName,
	})), nil
}

// handleClearKnowledgeBase handles the clear_knowledge_base tool invocation
func (s *Server) handleClearKnowledgeBase(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	if !getBoolDefault(args, "confirm", false) {
		return nil, newMCPError(ErrorCodeInvalidParams, "confirm must be true", map[string]interface{}{
			"param": "confirm",
		})
	}

	if !s.agent.ClearKnowledgeBase(ctx) {
		return nil, newMCPError(ErrorCodeInternalError, "failed to clear knowledge base", nil)
	}

	stats := s.agent.Stats(ctx)
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"cleared":         true,
		"document_count":  stats.DocumentCount,
		"collection_name": stats.CollectionName,
	})), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st := s.agent.Status(ctx)
	response := map[string]interface{}{
		"state": st.State,
		"strategies": map[string]interface{}{
			"chunking":  st.ChunkingStrategy,
			"retrieval": st.RetrievalStrategy,
		},
		"model":              st.Model,
		"embedding_provider": st.EmbeddingProvider,
		"knowledge_base": map[string]interface{}{
			"collection_name": st.CollectionName,
			"document_count":  st.DocumentCount,
		},
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// validatePath resolves path to the PDF files it names
func validatePath(path string) ([]string, error) {
	if path == "" {
		return nil, ErrPathRequired
	}
	if !filepath.IsAbs(path) {
		return nil, ErrPathNotAbsolute
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, ErrPathNotFound
	}
	if err != nil {
		return nil, ErrPathNotReadable
	}

	if !info.IsDir() && !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return nil, ErrNotPDF
	}

	files, err := processor.Discover(path)
	if err != nil {
		return nil, ErrPathNotReadable
	}
	if len(files) == 0 {
		return nil, ErrNoPDFFiles
	}
	return files, nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotPDF          = errors.New("file is not a PDF")
	ErrNoPDFFiles      = errors.New("directory does not contain PDF files")
)
