// Package mcp implements the Model Context Protocol (MCP) server for the PDF Q/A agent.
//
// The MCP server exposes six tools to AI assistants:
//   - process_document: Add a PDF (or a directory of PDFs) to the knowledge base
//   - ask_question: Answer a question from the ingested PDFs
//   - search_documents: Return the most similar stored passages
//   - get_stats: Report the knowledge base size
//   - clear_knowledge_base: Delete every stored chunk
//   - get_status: Report agent state, strategies and model
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// The server is started via the serve command:
//
//	pdfqa serve
//
// # Tool: process_document
//
//	Request:
//	{
//	  "name": "process_document",
//	  "arguments": {"path": "/docs/manuals"}
//	}
//
//	Response:
//	{
//	  "success": true,
//	  "files_processed": 3,
//	  "files_failed": 1,
//	  "chunks_created": 214,
//	  "errors": ["scan.pdf: no extractable text in document"]
//	}
//
// # Tool: ask_question
//
//	Request:
//	{
//	  "name": "ask_question",
//	  "arguments": {"question": "What is the warranty period?"}
//	}
//
// The response is the answer text. When nothing relevant is stored the answer
// says so without calling the LLM.
//
// # Tool: search_documents
//
//	Request:
//	{
//	  "name": "search_documents",
//	  "arguments": {"query": "warranty", "limit": 3, "filename": "manual.pdf"}
//	}
//
//	Response:
//	{
//	  "query": "warranty",
//	  "total_results": 1,
//	  "results": [
//	    {"rank": 1, "source": "manual.pdf", "chunk_id": 12, "similarity_score": "0.812", "content": "..."}
//	  ]
//	}
//
// # MCP Client Configuration
//
//	{
//	  "mcpServers": {
//	    "pdfqa": {
//	      "command": "/usr/local/bin/pdfqa",
//	      "args": ["serve"],
//	      "env": {"GROQ_API_KEY": "your-api-key"}
//	    }
//	  }
//	}
//
// # Error Handling
//
// Error codes:
//   - -32602: Invalid params (missing/invalid arguments)
//   - -32603: Internal error
//   - -32001: Path does not name a readable PDF
//   - -32002: Ingestion in progress
//   - -32003: Knowledge base is empty
//   - -32004: Empty query
//
// Logs go to stderr; stdout is reserved for the protocol.
package mcp
