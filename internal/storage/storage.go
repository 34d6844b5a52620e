package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrCollectionNotFound is returned when a collection was deleted or never created
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrDimensionMismatch is returned when a vector does not match the collection dimension
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrInvalidRecord is returned when a record is missing its id or vector
	ErrInvalidRecord = errors.New("invalid record")
	// ErrInvalidFilter is returned when a metadata filter key cannot be used
	ErrInvalidFilter = errors.New("invalid metadata filter")
	// ErrUnsupportedMetric is returned for any distance metric other than cosine
	ErrUnsupportedMetric = errors.New("unsupported distance metric")
)

// DistanceMetric names how a collection compares vectors
type DistanceMetric string

// DistanceCosine ranks by 1 - cosine similarity, lower is closer
const DistanceCosine DistanceMetric = "cosine"

// Record is one stored entry: a document string, its flat metadata and its embedding
type Record struct {
	ID       string
	Document string
	Metadata map[string]any
	Vector   []float32
}

// QueryResult is a record returned from a similarity query
type QueryResult struct {
	ID       string
	Document string
	Metadata map[string]any
	Distance float64
}

// Filter restricts queries to records whose metadata equals every given value
type Filter map[string]any

// Storage manages named collections of vectors
type Storage interface {
	// CreateOrGetCollection returns the named collection, creating it when absent
	CreateOrGetCollection(ctx context.Context, name string, metric DistanceMetric) (Collection, error)
	// DeleteCollection removes a collection and all of its records
	DeleteCollection(ctx context.Context, name string) error
	// ListCollections returns collection names in creation order
	ListCollections(ctx context.Context) ([]string, error)

	Close() error
}

// Collection is a handle to one named set of records. A handle whose
// collection was deleted returns ErrCollectionNotFound from every method.
type Collection interface {
	Name() string

	// Upsert inserts records, replacing any with the same id
	Upsert(ctx context.Context, records []Record) error
	// Query returns up to k records ordered by ascending distance to vector
	Query(ctx context.Context, vector []float32, k int, filter Filter) ([]QueryResult, error)
	// Delete removes every record matching the filter and returns how many were removed
	Delete(ctx context.Context, filter Filter) (int, error)
	// Replace removes records matching any stale filter and upserts records as
	// one atomic change. On error the collection is left untouched.
	Replace(ctx context.Context, stale []Filter, records []Record) (int, error)
	// Count returns the number of records in the collection
	Count(ctx context.Context) (int, error)
}
