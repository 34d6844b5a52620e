package processor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/pdfqa-mcp/internal/chunker"
	"github.com/dshills/pdfqa-mcp/internal/logging"
	"github.com/dshills/pdfqa-mcp/internal/pdf"
	"github.com/dshills/pdfqa-mcp/pkg/types"
)

// ErrNoText is returned when no page of a document yields text
var ErrNoText = errors.New("no extractable text in document")

// Processor runs the extract -> chunk pipeline for PDF files
type Processor struct {
	extractor pdf.Extractor
	strategy  chunker.Strategy
	workers   int
}

// Option configures a Processor
type Option func(*Processor)

// WithWorkers sets how many files ProcessAll handles at once (default: runtime.NumCPU())
func WithWorkers(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.workers = n
		}
	}
}

// New creates a processor using extractor for text and strategy for chunking
func New(extractor pdf.Extractor, strategy chunker.Strategy, opts ...Option) *Processor {
	p := &Processor{
		extractor: extractor,
		strategy:  strategy,
		workers:   runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Strategy returns the chunking strategy in use
func (p *Processor) Strategy() chunker.Strategy {
	return p.strategy
}

// Process extracts, marks up and chunks a single PDF
func (p *Processor) Process(ctx context.Context, path string) ([]types.Chunk, error) {
	logger := logging.From(ctx).With("file", filepath.Base(path))

	info, err := os.Stat(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to stat document", goerr.V("path", path))
	}

	pages, err := p.extractor.Extract(ctx, path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to extract text", goerr.V("path", path))
	}
	logger.Info("Extracted text from pages", "pages", len(pages), "with_text", pdf.CountText(pages))

	text := pdf.Document(pages)
	if strings.TrimSpace(text) == "" {
		return nil, goerr.Wrap(ErrNoText, "document has no text", goerr.V("path", path))
	}

	meta := types.DocumentMetadata{
		Filename:   filepath.Base(path),
		FilePath:   path,
		FileSize:   info.Size(),
		SourceType: types.SourceTypePDF,
	}

	chunks, err := p.strategy.Chunk(ctx, text, meta)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to chunk document", goerr.V("path", path), goerr.V("strategy", p.strategy.Name()))
	}

	logger.Info("Successfully processed document", "chunks", len(chunks))
	return chunks, nil
}

// Result is the outcome of processing one file in ProcessAll
type Result struct {
	Path   string
	Chunks []types.Chunk
	Err    error
}

// ProcessAll processes files concurrently. Results are in input order and a
// failing file does not stop the others.
func (p *Processor) ProcessAll(ctx context.Context, paths []string) []Result {
	results := make([]Result, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, path := range paths {
		g.Go(func() error {
			chunks, err := p.Process(gctx, path)
			results[i] = Result{Path: path, Chunks: chunks, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Statistics summarizes a batch of results
type Statistics struct {
	FilesProcessed int
	FilesFailed    int
	ChunksCreated  int
	Duration       time.Duration
	ErrorMessages  []string
}

// Summarize tallies results into Statistics
func Summarize(results []Result, elapsed time.Duration) Statistics {
	stats := Statistics{Duration: elapsed, ErrorMessages: make([]string, 0)}
	for _, r := range results {
		if r.Err != nil {
			stats.FilesFailed++
			stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", r.Path, r.Err))
			continue
		}
		stats.FilesProcessed++
		stats.ChunksCreated += len(r.Chunks)
	}
	return stats
}

// Discover expands paths into PDF files. Directories are walked recursively,
// skipping hidden directories; plain files are kept as given.
func Discover(paths ...string) ([]string, error) {
	var files []string
	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to stat path", goerr.V("path", root))
		}
		if !info.IsDir() {
			files = append(files, root)
			continue
		}

		err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if strings.EqualFold(filepath.Ext(path), ".pdf") {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, goerr.Wrap(err, "failed to walk directory", goerr.V("path", root))
		}
	}
	return files, nil
}
