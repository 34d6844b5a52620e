// Package types provides the shared records of the PDF question-answering service.
//
// # Chunks
//
// Chunk is the unit of retrievable knowledge. Its metadata always carries the
// source filename, a per-document sequential chunk ID, the chunk size in
// characters and the tag of the chunking strategy that produced it:
//
//	chunk := types.Chunk{
//	    Content:  "--- Page 1 ---\nQuarterly revenue grew...",
//	    Metadata: types.NewChunkMetadata(doc, 0, 812, types.StrategyRecursive),
//	}
//	chunk.StorageKey() // "report.pdf_0"
//
// The (filename, chunk ID) pair is unique across a knowledge base and is used as
// the storage key. Metadata round-trips through the flat map stored by the
// vector database via ChunkMetadata.Map and ChunkMetadataFromMap.
//
// # Snippets
//
// Snippet is a chunk returned by a retrieval strategy. SimilarityScore is always
// set; HybridScore and RelevanceScore are filled in by the hybrid and contextual
// strategies respectively.
package types
