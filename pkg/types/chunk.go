package types

import (
	"fmt"
	"strings"
)

// Chunking strategy tags recorded on every chunk.
const (
	StrategyRecursive  = "recursive"
	StrategySemantic   = "semantic"
	StrategyContextual = "contextual"
	StrategyHybrid     = "hybrid"
)

// SourceTypePDF is the source type recorded for extracted PDF documents.
const SourceTypePDF = "pdf"

// Metadata keys used in the flat metadata map stored alongside vectors
const (
	MetaFilename         = "filename"
	MetaChunkID          = "chunk_id"
	MetaChunkSize        = "chunk_size"
	MetaChunkingStrategy = "chunking_strategy"
	MetaPageNumber       = "page_number"
	MetaHasContext       = "has_context"
	MetaFilePath         = "file_path"
	MetaFileSize         = "file_size"
	MetaSourceType       = "source_type"
)

// DocumentMetadata describes a source document before chunking
type DocumentMetadata struct {
	Filename   string
	FilePath   string
	FileSize   int64
	SourceType string
	PageNumber *int // Nullable - whole-document extraction has no page
}

// ChunkMetadata is the metadata carried by every stored chunk
type ChunkMetadata struct {
	// Required
	Filename         string
	ChunkID          int
	ChunkSize        int
	ChunkingStrategy string

	// Optional
	PageNumber *int
	HasContext bool
	FilePath   string
	FileSize   int64
	SourceType string
}

// Chunk is a bounded span of document text stored as one retrievable unit
type Chunk struct {
	Content  string
	Metadata ChunkMetadata
}

// NewChunkMetadata derives chunk metadata from the document it was cut from
func NewChunkMetadata(doc DocumentMetadata, chunkID, size int, strategy string) ChunkMetadata {
	return ChunkMetadata{
		Filename:         doc.Filename,
		ChunkID:          chunkID,
		ChunkSize:        size,
		ChunkingStrategy: strategy,
		PageNumber:       doc.PageNumber,
		FilePath:         doc.FilePath,
		FileSize:         doc.FileSize,
		SourceType:       doc.SourceType,
	}
}

// StorageKey returns the knowledge-base wide identifier "{filename}_{chunk_id}"
func (c Chunk) StorageKey() string {
	return fmt.Sprintf("%s_%d", c.Metadata.Filename, c.Metadata.ChunkID)
}

// Validate checks that the chunk can be stored
func (c Chunk) Validate() error {
	if strings.TrimSpace(c.Content) == "" {
		return ErrEmptyContent
	}
	if c.Metadata.Filename == "" {
		return ErrMissingFilename
	}
	if c.Metadata.ChunkID < 0 {
		return ErrInvalidChunkID
	}
	if c.Metadata.ChunkingStrategy == "" {
		return ErrMissingStrategy
	}
	return nil
}

// Map flattens the metadata into the key/value form stored by the vector database.
// Optional keys are omitted when unset.
func (m ChunkMetadata) Map() map[string]any {
	out := map[string]any{
		MetaFilename:         m.Filename,
		MetaChunkID:          m.ChunkID,
		MetaChunkSize:        m.ChunkSize,
		MetaChunkingStrategy: m.ChunkingStrategy,
	}
	if m.PageNumber != nil {
		out[MetaPageNumber] = *m.PageNumber
	}
	if m.HasContext {
		out[MetaHasContext] = true
	}
	if m.FilePath != "" {
		out[MetaFilePath] = m.FilePath
	}
	if m.FileSize > 0 {
		out[MetaFileSize] = m.FileSize
	}
	if m.SourceType != "" {
		out[MetaSourceType] = m.SourceType
	}
	return out
}

// ChunkMetadataFromMap rebuilds metadata from its stored form. Numbers may
// arrive as any numeric type (JSON decoding yields float64).
func ChunkMetadataFromMap(in map[string]any) ChunkMetadata {
	var m ChunkMetadata
	m.Filename, _ = in[MetaFilename].(string)
	m.ChunkID = int(toInt64(in[MetaChunkID]))
	m.ChunkSize = int(toInt64(in[MetaChunkSize]))
	m.ChunkingStrategy, _ = in[MetaChunkingStrategy].(string)
	if v, ok := in[MetaPageNumber]; ok && v != nil {
		page := int(toInt64(v))
		m.PageNumber = &page
	}
	switch v := in[MetaHasContext].(type) {
	case bool:
		m.HasContext = v
	case float64:
		m.HasContext = v != 0
	case int64:
		m.HasContext = v != 0
	}
	m.FilePath, _ = in[MetaFilePath].(string)
	m.FileSize = toInt64(in[MetaFileSize])
	m.SourceType, _ = in[MetaSourceType].(string)
	return m
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case float32:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
