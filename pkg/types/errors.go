package types

import "errors"

// Domain errors for type validation
var (
	// Chunk errors
	ErrInvalidChunkID  = errors.New("invalid chunk ID")
	ErrEmptyContent    = errors.New("content cannot be empty")
	ErrMissingFilename = errors.New("filename is required")
	ErrMissingStrategy = errors.New("chunking strategy tag is required")

	// Snippet errors
	ErrInvalidSimilarityScore = errors.New("similarity score must be between -1 and 1")
)
