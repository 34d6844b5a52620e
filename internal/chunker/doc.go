// Package chunker splits extracted document text into retrievable chunks.
//
// Four strategies are selected by tag through New:
//   - recursive: character splitting on "\n\n", "\n", " " then single characters,
//     merging pieces up to ChunkSize with up to ChunkOverlap carried forward
//   - semantic: sentence grouping that cuts where neighbouring sentence windows
//     are far apart in embedding space (95th percentile of distances)
//   - contextual: recursive chunks prefixed with position, document name and a
//     short extractive summary
//   - hybrid: semantic above 10000 characters, recursive otherwise
//
// An unknown tag logs a warning and yields the recursive strategy.
//
// # Basic Usage
//
//	s := chunker.New("hybrid", chunker.DefaultConfig(), emb)
//	chunks, err := s.Chunk(ctx, text, types.DocumentMetadata{Filename: "report.pdf"})
//
// Lengths are measured in characters (runes). Chunk ids run 0..n-1 per call and
// every chunk is tagged with the strategy that produced it.
package chunker
