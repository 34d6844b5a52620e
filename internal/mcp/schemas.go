package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// processDocumentTool returns the tool definition for process_document
func processDocumentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "process_document",
		Description: "Add a PDF file, or every PDF under a directory, to the knowledge base",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to a .pdf file or a directory containing PDFs",
				},
			},
			Required: []string{"path"},
		},
	}
}

// askQuestionTool returns the tool definition for ask_question
func askQuestionTool() mcp.Tool {
	return mcp.Tool{
		Name:        "ask_question",
		Description: "Answer a question using only the content of the ingested PDFs",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"question": map[string]interface{}{
					"type":        "string",
					"description": "Natural language question",
				},
			},
			Required: []string{"question"},
		},
	}
}

// searchDocumentsTool returns the tool definition for search_documents
func searchDocumentsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_documents",
		Description: "Return the stored PDF passages most similar to a query, without generating an answer",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of passages to return (1-50)",
					"default":     DefaultSearchLimit,
					"minimum":     1,
					"maximum":     MaxSearchLimit,
				},
				"filename": map[string]interface{}{
					"type":        "string",
					"description": "Only search passages from this PDF file name (e.g. 'manual.pdf')",
				},
			},
			Required: []string{"query"},
		},
	}
}

// getStatsTool returns the tool definition for get_stats
func getStatsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_stats",
		Description: "Report how many chunks the knowledge base holds",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// clearKnowledgeBaseTool returns the tool definition for clear_knowledge_base
func clearKnowledgeBaseTool() mcp.Tool {
	return mcp.Tool{
		Name:        "clear_knowledge_base",
		Description: "Delete every stored document chunk",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"confirm": map[string]interface{}{
					"type":        "boolean",
					"description": "Must be true to delete the knowledge base",
				},
			},
			Required: []string{"confirm"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report the agent state, active strategies, model and knowledge base size",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
