// Package processor turns PDF files into chunks ready for embedding.
//
// # Pipeline
//
//  1. Extract: per-page text through a pdf.Extractor
//  2. Mark up: non-empty pages joined with "--- Page N ---" markers
//  3. Describe: filename, path, size and source type become chunk metadata
//  4. Chunk: the configured chunker.Strategy
//
// A document whose pages carry no text fails with ErrNoText.
//
// # Batch Processing
//
// ProcessAll fans files out over an errgroup bounded by WithWorkers. Each
// file's outcome is reported separately so one bad PDF does not abort the
// batch:
//
//	p := processor.New(pdf.NewReader(), chunker.New("hybrid", cfg, emb))
//	files, _ := processor.Discover("./papers")
//	results := p.ProcessAll(ctx, files)
//	stats := processor.Summarize(results, time.Since(start))
package processor
