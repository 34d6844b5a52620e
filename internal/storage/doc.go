// Package storage persists named collections of embedded text records.
//
// Two implementations satisfy the Storage interface:
//   - SQLiteStorage: a single database file under the configured store path
//   - MemoryStorage: process-local, used by tests and throwaway sessions
//
// # Database Schema
//
// Tables:
//   - schema_version: applied migrations (semver)
//   - collections: name, distance metric and fixed vector dimension
//   - records: document text, JSON metadata and little-endian float32 embedding
//
// Records are keyed by (collection, id) and upserted, so re-adding a chunk id
// replaces the stored chunk. Deleting a collection cascades to its records.
//
// # Basic Usage
//
//	store, err := storage.NewSQLiteStorage("./vector_db/pdfqa.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	coll, err := store.CreateOrGetCollection(ctx, "pdf_documents", storage.DistanceCosine)
//	err = coll.Upsert(ctx, []storage.Record{{ID: "a.pdf_0", Document: text, Vector: vec}})
//	hits, err := coll.Query(ctx, queryVec, 5, storage.Filter{"filename": "a.pdf"})
//
// # Similarity
//
// Distances are cosine distances (1 - cosine similarity) computed in Go;
// results come back in ascending distance order with ties kept in insertion
// order.
//
// # Build Modes
//
// The default build uses modernc.org/sqlite. Building with the sqlite_cgo tag
// switches to github.com/mattn/go-sqlite3.
package storage
