package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *SQLiteStorage {
	t.Helper()
	storage, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = storage.Close() })
	return storage
}

// backends runs the same contract against every Storage implementation
func backends(t *testing.T) map[string]Storage {
	return map[string]Storage{
		"sqlite": setupTestDB(t),
		"memory": NewMemoryStorage(),
	}
}

func sampleRecords() []Record {
	return []Record{
		{ID: "a.pdf_0", Document: "alpha", Metadata: map[string]any{"filename": "a.pdf", "chunk_id": 0}, Vector: []float32{1, 0, 0}},
		{ID: "a.pdf_1", Document: "beta", Metadata: map[string]any{"filename": "a.pdf", "chunk_id": 1, "has_context": true}, Vector: []float32{0, 1, 0}},
		{ID: "b.pdf_0", Document: "gamma", Metadata: map[string]any{"filename": "b.pdf", "chunk_id": 0}, Vector: []float32{0.9, 0.1, 0}},
	}
}

func TestCollectionLifecycle(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			coll, err := store.CreateOrGetCollection(ctx, "docs", DistanceCosine)
			require.NoError(t, err)
			assert.Equal(t, "docs", coll.Name())

			again, err := store.CreateOrGetCollection(ctx, "docs", "")
			require.NoError(t, err)

			require.NoError(t, coll.Upsert(ctx, sampleRecords()))
			n, err := again.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 3, n)

			names, err := store.ListCollections(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"docs"}, names)

			require.NoError(t, store.DeleteCollection(ctx, "docs"))

			_, err = coll.Count(ctx)
			assert.ErrorIs(t, err, ErrCollectionNotFound)

			// A recreated collection is empty and the stale handle stays dead
			fresh, err := store.CreateOrGetCollection(ctx, "docs", DistanceCosine)
			require.NoError(t, err)
			n, err = fresh.Count(ctx)
			require.NoError(t, err)
			assert.Zero(t, n)
			_, err = coll.Query(ctx, []float32{1, 0, 0}, 1, nil)
			assert.ErrorIs(t, err, ErrCollectionNotFound)

			err = store.DeleteCollection(ctx, "missing")
			assert.ErrorIs(t, err, ErrCollectionNotFound)
		})
	}
}

func TestQueryOrdering(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			coll, err := store.CreateOrGetCollection(ctx, "docs", DistanceCosine)
			require.NoError(t, err)
			require.NoError(t, coll.Upsert(ctx, sampleRecords()))

			results, err := coll.Query(ctx, []float32{1, 0, 0}, 2, nil)
			require.NoError(t, err)
			require.Len(t, results, 2)
			assert.Equal(t, "a.pdf_0", results[0].ID)
			assert.Equal(t, "b.pdf_0", results[1].ID)
			assert.InDelta(t, 0.0, results[0].Distance, 1e-9)
			assert.LessOrEqual(t, results[0].Distance, results[1].Distance)
			assert.Equal(t, "alpha", results[0].Document)
			assert.Equal(t, "a.pdf", results[0].Metadata["filename"])

			all, err := coll.Query(ctx, []float32{1, 0, 0}, 10, nil)
			require.NoError(t, err)
			assert.Len(t, all, 3)

			none, err := coll.Query(ctx, []float32{1, 0, 0}, 0, nil)
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	}
}

func TestQueryFilter(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			coll, err := store.CreateOrGetCollection(ctx, "docs", DistanceCosine)
			require.NoError(t, err)
			require.NoError(t, coll.Upsert(ctx, sampleRecords()))

			results, err := coll.Query(ctx, []float32{1, 0, 0}, 5, Filter{"filename": "a.pdf"})
			require.NoError(t, err)
			require.Len(t, results, 2)
			for _, r := range results {
				assert.Equal(t, "a.pdf", r.Metadata["filename"])
			}

			results, err = coll.Query(ctx, []float32{1, 0, 0}, 5, Filter{"filename": "a.pdf", "chunk_id": 1})
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.Equal(t, "a.pdf_1", results[0].ID)

			results, err = coll.Query(ctx, []float32{1, 0, 0}, 5, Filter{"has_context": true})
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.Equal(t, "a.pdf_1", results[0].ID)

			results, err = coll.Query(ctx, []float32{1, 0, 0}, 5, Filter{"filename": "nope.pdf"})
			require.NoError(t, err)
			assert.Empty(t, results)

			_, err = coll.Query(ctx, []float32{1, 0, 0}, 5, Filter{"$.bad": "x"})
			assert.ErrorIs(t, err, ErrInvalidFilter)
		})
	}
}

func TestUpsertReplaces(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			coll, err := store.CreateOrGetCollection(ctx, "docs", DistanceCosine)
			require.NoError(t, err)
			require.NoError(t, coll.Upsert(ctx, sampleRecords()))

			require.NoError(t, coll.Upsert(ctx, []Record{
				{ID: "a.pdf_0", Document: "alpha v2", Metadata: map[string]any{"filename": "a.pdf"}, Vector: []float32{0, 0, 1}},
			}))

			n, err := coll.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 3, n)

			results, err := coll.Query(ctx, []float32{0, 0, 1}, 1, nil)
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.Equal(t, "alpha v2", results[0].Document)
		})
	}
}

func TestUpsertValidation(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			coll, err := store.CreateOrGetCollection(ctx, "docs", DistanceCosine)
			require.NoError(t, err)
			require.NoError(t, coll.Upsert(ctx, sampleRecords()))

			err = coll.Upsert(ctx, []Record{{ID: "x", Document: "x", Vector: []float32{1, 0}}})
			assert.ErrorIs(t, err, ErrDimensionMismatch)

			err = coll.Upsert(ctx, []Record{{Document: "x", Vector: []float32{1, 0, 0}}})
			assert.ErrorIs(t, err, ErrInvalidRecord)

			err = coll.Upsert(ctx, []Record{{ID: "y", Document: "y"}})
			assert.ErrorIs(t, err, ErrInvalidRecord)

			_, err = coll.Query(ctx, []float32{1, 0}, 1, nil)
			assert.ErrorIs(t, err, ErrDimensionMismatch)

			n, err := coll.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 3, n)
		})
	}
}

func TestDeleteByFilter(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			coll, err := store.CreateOrGetCollection(ctx, "docs", DistanceCosine)
			require.NoError(t, err)
			require.NoError(t, coll.Upsert(ctx, sampleRecords()))

			removed, err := coll.Delete(ctx, Filter{"filename": "a.pdf"})
			require.NoError(t, err)
			assert.Equal(t, 2, removed)

			n, err := coll.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			removed, err = coll.Delete(ctx, nil)
			require.NoError(t, err)
			assert.Equal(t, 1, removed)
		})
	}
}

func TestReplace(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			coll, err := store.CreateOrGetCollection(ctx, "docs", DistanceCosine)
			require.NoError(t, err)
			require.NoError(t, coll.Upsert(ctx, sampleRecords()))

			removed, err := coll.Replace(ctx, []Filter{{"filename": "a.pdf"}}, []Record{
				{ID: "a.pdf_0", Document: "delta", Metadata: map[string]any{"filename": "a.pdf", "chunk_id": 0}, Vector: []float32{0, 0, 1}},
			})
			require.NoError(t, err)
			assert.Equal(t, 2, removed)

			n, err := coll.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			results, err := coll.Query(ctx, []float32{0, 0, 1}, 1, Filter{"filename": "a.pdf"})
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.Equal(t, "delta", results[0].Document)
		})
	}
}

func TestReplace_FailureKeepsRecords(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			coll, err := store.CreateOrGetCollection(ctx, "docs", DistanceCosine)
			require.NoError(t, err)
			require.NoError(t, coll.Upsert(ctx, sampleRecords()))

			_, err = coll.Replace(ctx, []Filter{{"filename": "a.pdf"}}, []Record{
				{ID: "a.pdf_0", Document: "short", Metadata: map[string]any{"filename": "a.pdf"}, Vector: []float32{1, 0}},
			})
			assert.ErrorIs(t, err, ErrDimensionMismatch)

			cancelled, cancel := context.WithCancel(ctx)
			cancel()
			_, err = coll.Replace(cancelled, []Filter{{"filename": "a.pdf"}}, []Record{
				{ID: "a.pdf_0", Document: "delta", Metadata: map[string]any{"filename": "a.pdf"}, Vector: []float32{0, 0, 1}},
			})
			assert.Error(t, err)

			n, err := coll.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 3, n)

			results, err := coll.Query(ctx, []float32{0, 1, 0}, 1, Filter{"filename": "a.pdf"})
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.Equal(t, "beta", results[0].Document)
		})
	}
}

func TestUnsupportedMetric(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.CreateOrGetCollection(context.Background(), "docs", "l2")
			assert.ErrorIs(t, err, ErrUnsupportedMetric)
		})
	}
}

func TestSQLitePersistence(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "pdfqa.db")

	store, err := NewSQLiteStorage(path)
	require.NoError(t, err)
	coll, err := store.CreateOrGetCollection(ctx, "docs", DistanceCosine)
	require.NoError(t, err)
	require.NoError(t, coll.Upsert(ctx, sampleRecords()))
	require.NoError(t, store.Close())

	// Reopening reapplies no migrations and keeps the records
	store, err = NewSQLiteStorage(path)
	require.NoError(t, err)
	defer store.Close()

	coll, err = store.CreateOrGetCollection(ctx, "docs", DistanceCosine)
	require.NoError(t, err)
	n, err := coll.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestMigrations(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	v, err := currentVersion(ctx, store.db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, v.String())

	// Idempotent
	require.NoError(t, ApplyMigrations(ctx, store.db))

	require.NoError(t, RollbackMigration(ctx, store.db))
	v, err = currentVersion(ctx, store.db)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", v.String())

	require.NoError(t, ApplyMigrations(ctx, store.db))
	v, err = currentVersion(ctx, store.db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, v.String())
}
