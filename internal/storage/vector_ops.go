package storage

import (
	"encoding/binary"
	"fmt"
	"math"
	"regexp"
	"slices"
	"strings"
)

// filterKeyPattern restricts metadata keys to plain identifiers so they can be
// embedded in a JSON path
var filterKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// cosineSimilarity computes the cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// cosineDistance is the cosine metric used for ranking
func cosineDistance(a, b []float32) float64 {
	return 1 - cosineSimilarity(a, b)
}

// rankResults sorts by ascending distance, keeping insertion order for ties,
// and truncates to k
func rankResults(results []QueryResult, k int) []QueryResult {
	slices.SortStableFunc(results, func(a, b QueryResult) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		default:
			return 0
		}
	})
	if k >= 0 && len(results) > k {
		results = results[:k]
	}
	return results
}

// validateFilter rejects keys that cannot be expressed as a JSON path
func validateFilter(filter Filter) error {
	for key := range filter {
		if !filterKeyPattern.MatchString(key) {
			return fmt.Errorf("%w: key %q", ErrInvalidFilter, key)
		}
	}
	return nil
}

// applyMetadataFilter appends one json_extract equality per filter key.
// Keys are sorted so the generated SQL is stable.
func applyMetadataFilter(query string, args []any, filter Filter) (string, []any) {
	if len(filter) == 0 {
		return query, args
	}
	keys := make([]string, 0, len(filter))
	for key := range filter {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	var b strings.Builder
	b.WriteString(query)
	for _, key := range keys {
		b.WriteString(" AND json_extract(metadata, ?) = ?")
		args = append(args, "$."+key, sqlValue(filter[key]))
	}
	return b.String(), args
}

// sqlValue maps a filter value onto what json_extract returns for it
func sqlValue(v any) any {
	if b, ok := v.(bool); ok {
		if b {
			return 1
		}
		return 0
	}
	return v
}

// matchesFilter applies the same equality semantics as the SQL filter
// to an in-memory metadata map
func matchesFilter(metadata map[string]any, filter Filter) bool {
	for key, want := range filter {
		got, ok := metadata[key]
		if !ok || !valuesEqual(got, want) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
		return false
	}
	return a == b
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func validateRecords(records []Record, dimension int) (int, error) {
	for i, r := range records {
		if r.ID == "" {
			return dimension, fmt.Errorf("%w: record %d has no id", ErrInvalidRecord, i)
		}
		if len(r.Vector) == 0 {
			return dimension, fmt.Errorf("%w: record %q has no vector", ErrInvalidRecord, r.ID)
		}
		if dimension == 0 {
			dimension = len(r.Vector)
		}
		if len(r.Vector) != dimension {
			return dimension, fmt.Errorf("%w: record %q has %d, collection has %d",
				ErrDimensionMismatch, r.ID, len(r.Vector), dimension)
		}
	}
	return dimension, nil
}

func copyMetadata(in map[string]any) map[string]any {
	if in == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
