// Package vectorstore binds an embedder to one storage collection.
//
// Store is the knowledge base seen by the rest of the application:
//   - AddDocuments embeds chunk contents in batches and upserts them under
//     "{filename}_{chunk_id}", replacing earlier chunks of the same files
//   - SimilaritySearch / SearchWithFilter embed the query and return snippets
//     with SimilarityScore = 1 - cosine distance, most similar first
//   - Stats, Count and DeleteCollection manage the collection itself
//
// # Query Cache
//
// Query results are kept in an LRU cache keyed by query, k and filter with a
// TTL (DefaultCacheTTL). Any insert or collection delete purges the cache.
//
//	store, err := vectorstore.New(ctx, storage.NewMemoryStorage(), emb, "pdf_documents")
//	err = store.AddDocuments(ctx, chunks)
//	hits, err := store.SimilaritySearch(ctx, "what is the warranty period", 5)
package vectorstore
