package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// SQLiteStorage implements Storage on a single SQLite file
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage opens (creating if needed) the database at dbPath and
// applies pending migrations. ":memory:" gives a throwaway database.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// CreateOrGetCollection returns the named collection, creating it when absent
func (s *SQLiteStorage) CreateOrGetCollection(ctx context.Context, name string, metric DistanceMetric) (Collection, error) {
	if metric == "" {
		metric = DistanceCosine
	}
	if metric != DistanceCosine {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMetric, metric)
	}
	if name == "" {
		return nil, errors.New("collection name is required")
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO collections (name, metric) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`,
		name, string(metric))
	if err != nil {
		return nil, fmt.Errorf("failed to create collection %s: %w", name, err)
	}

	var id int64
	var stored string
	err = s.db.QueryRowContext(ctx, `SELECT id, metric FROM collections WHERE name = ?`, name).Scan(&id, &stored)
	if err != nil {
		return nil, fmt.Errorf("failed to load collection %s: %w", name, err)
	}
	if DistanceMetric(stored) != metric {
		return nil, fmt.Errorf("%w: collection %s uses %s", ErrUnsupportedMetric, name, stored)
	}

	return &sqliteCollection{db: s.db, id: id, name: name}, nil
}

// DeleteCollection removes a collection; its records cascade
func (s *SQLiteStorage) DeleteCollection(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM collections WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete collection %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	return nil
}

// ListCollections returns collection names in creation order
func (s *SQLiteStorage) ListCollections(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM collections ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan collection: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// sqliteCollection is bound to the row id of its collection, so a handle
// outlives neither a delete nor a delete-and-recreate
type sqliteCollection struct {
	db   *sql.DB
	id   int64
	name string
}

func (c *sqliteCollection) Name() string {
	return c.name
}

// dimension returns the collection's fixed dimension (0 until first insert)
func (c *sqliteCollection) dimension(ctx context.Context, q querier) (int, error) {
	var dim int
	err := q.QueryRowContext(ctx, `SELECT dimension FROM collections WHERE id = ?`, c.id).Scan(&dim)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", ErrCollectionNotFound, c.name)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read collection %s: %w", c.name, err)
	}
	return dim, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Upsert inserts or replaces records in one transaction
func (c *sqliteCollection) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	dim, err := c.dimension(ctx, tx)
	if err != nil {
		return err
	}
	if err := c.upsertTx(ctx, tx, dim, records); err != nil {
		return err
	}
	return tx.Commit()
}

// Replace deletes stale records and upserts records in one transaction
func (c *sqliteCollection) Replace(ctx context.Context, stale []Filter, records []Record) (int, error) {
	for _, f := range stale {
		if err := validateFilter(f); err != nil {
			return 0, err
		}
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	dim, err := c.dimension(ctx, tx)
	if err != nil {
		return 0, err
	}
	if _, err := validateRecords(records, dim); err != nil {
		return 0, err
	}

	removed := 0
	for _, f := range stale {
		query, args := applyMetadataFilter(`DELETE FROM records WHERE collection_id = ?`, []any{c.id}, f)
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, fmt.Errorf("failed to delete records: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		removed += int(n)
	}

	if len(records) > 0 {
		if err := c.upsertTx(ctx, tx, dim, records); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit replace: %w", err)
	}
	return removed, nil
}

// upsertTx writes records inside tx; dim is the collection's current dimension
func (c *sqliteCollection) upsertTx(ctx context.Context, tx *sql.Tx, dim int, records []Record) error {
	newDim, err := validateRecords(records, dim)
	if err != nil {
		return err
	}
	if dim == 0 {
		if _, err := tx.ExecContext(ctx, `UPDATE collections SET dimension = ? WHERE id = ?`, newDim, c.id); err != nil {
			return fmt.Errorf("failed to set collection dimension: %w", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (collection_id, id, document, metadata, embedding, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection_id, id) DO UPDATE SET
			document = excluded.document,
			metadata = excluded.metadata,
			embedding = excluded.embedding,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now()
	for _, r := range records {
		meta, err := json.Marshal(copyMetadata(r.Metadata))
		if err != nil {
			return fmt.Errorf("failed to encode metadata for %s: %w", r.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, c.id, r.ID, r.Document, string(meta), serializeVector(r.Vector), now, now); err != nil {
			return fmt.Errorf("failed to upsert record %s: %w", r.ID, err)
		}
	}
	return nil
}

// Query scores every candidate in Go and returns the k closest
func (c *sqliteCollection) Query(ctx context.Context, vector []float32, k int, filter Filter) ([]QueryResult, error) {
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	dim, err := c.dimension(ctx, c.db)
	if err != nil {
		return nil, err
	}
	if dim == 0 || k <= 0 {
		return []QueryResult{}, nil
	}
	if len(vector) != dim {
		return nil, fmt.Errorf("%w: query has %d, collection has %d", ErrDimensionMismatch, len(vector), dim)
	}

	query, args := applyMetadataFilter(
		`SELECT id, document, metadata, embedding FROM records WHERE collection_id = ?`,
		[]any{c.id}, filter)
	query += " ORDER BY rowid"

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []QueryResult
	for rows.Next() {
		var (
			r    QueryResult
			meta string
			blob []byte
		)
		if err := rows.Scan(&r.ID, &r.Document, &meta, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		if err := json.Unmarshal([]byte(meta), &r.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata for %s: %w", r.ID, err)
		}
		r.Distance = cosineDistance(vector, deserializeVector(blob))
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return rankResults(results, k), nil
}

// Delete removes matching records; an empty filter clears the collection
func (c *sqliteCollection) Delete(ctx context.Context, filter Filter) (int, error) {
	if err := validateFilter(filter); err != nil {
		return 0, err
	}
	if _, err := c.dimension(ctx, c.db); err != nil {
		return 0, err
	}

	query, args := applyMetadataFilter(`DELETE FROM records WHERE collection_id = ?`, []any{c.id}, filter)
	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete records: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Count returns the number of records in the collection
func (c *sqliteCollection) Count(ctx context.Context) (int, error) {
	if _, err := c.dimension(ctx, c.db); err != nil {
		return 0, err
	}
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE collection_id = ?`, c.id).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}
