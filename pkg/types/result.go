package types

// Snippet is a stored chunk annotated with the scores of the retrieval that produced it
type Snippet struct {
	Content  string
	Metadata ChunkMetadata

	// Scoring
	SimilarityScore float64 // 1 - cosine distance
	HybridScore     float64 // Set by hybrid retrieval
	RelevanceScore  float64 // Set by contextual retrieval
}

// Source returns the snippet's filename, or "Unknown" when the metadata has none
func (s Snippet) Source() string {
	if s.Metadata.Filename == "" {
		return "Unknown"
	}
	return s.Metadata.Filename
}

// Validate checks if the snippet is valid
func (s Snippet) Validate() error {
	if s.Content == "" {
		return ErrEmptyContent
	}
	if s.SimilarityScore < -1 || s.SimilarityScore > 1 {
		return ErrInvalidSimilarityScore
	}
	return nil
}
