package agent

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"

	"github.com/dshills/pdfqa-mcp/internal/chunker"
	"github.com/dshills/pdfqa-mcp/internal/config"
	"github.com/dshills/pdfqa-mcp/internal/embedder"
	"github.com/dshills/pdfqa-mcp/internal/llm"
	"github.com/dshills/pdfqa-mcp/internal/logging"
	"github.com/dshills/pdfqa-mcp/internal/pdf"
	"github.com/dshills/pdfqa-mcp/internal/processor"
	"github.com/dshills/pdfqa-mcp/internal/retriever"
	"github.com/dshills/pdfqa-mcp/internal/storage"
	"github.com/dshills/pdfqa-mcp/internal/vectorstore"
	"github.com/dshills/pdfqa-mcp/pkg/types"
)

// NoResultsAnswer is the answer given when retrieval finds nothing
const NoResultsAnswer = "I couldn't find any relevant information in the knowledge base to answer your question."

var (
	// ErrFileTooLarge is returned for files above the configured upload limit
	ErrFileTooLarge = errors.New("file exceeds maximum size")
	// ErrIngestInProgress is returned by TryProcessDocuments while another ingestion runs
	ErrIngestInProgress = errors.New("document ingestion already in progress")
	// ErrNoChunks is returned when a document produced no chunks
	ErrNoChunks = errors.New("no chunks created from document")
)

// State is the agent's activity
type State int32

const (
	StateUninitialized State = iota
	StateReady
	StateIngesting
	StateAnswering
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateIngesting:
		return "ingesting"
	case StateAnswering:
		return "answering"
	default:
		return "uninitialized"
	}
}

// IngestResult is the outcome of ingesting one file
type IngestResult struct {
	Path   string `json:"path"`
	Chunks int    `json:"chunks"`
	Err    error  `json:"-"`
}

// OK reports whether the file was stored
func (r IngestResult) OK() bool {
	return r.Err == nil
}

// Stats is the knowledge base summary
type Stats = vectorstore.Stats

// Status describes the agent configuration and activity
type Status struct {
	State             string `json:"state"`
	ChunkingStrategy  string `json:"chunking_strategy"`
	RetrievalStrategy string `json:"retrieval_strategy"`
	Model             string `json:"model"`
	EmbeddingProvider string `json:"embedding_provider"`
	CollectionName    string `json:"collection_name"`
	DocumentCount     int    `json:"document_count"`
}

// Agent answers questions over the PDFs ingested into its knowledge base.
// It owns the vector store handle; mutations take the write lock and
// questions only snapshot the handle under the read lock.
type Agent struct {
	cfg *config.Config

	mu         sync.RWMutex
	store      *vectorstore.Store
	storage    storage.Storage
	ownStorage bool

	emb       embedder.Embedder
	ownEmb    bool
	extractor pdf.Extractor
	chunking  chunker.Strategy
	retrieval retriever.Strategy
	processor *processor.Processor
	llm       *llm.Service

	ingestLock IngestLock
	ingesting  atomic.Int32
	answering  atomic.Int32
	ready      atomic.Bool
}

type options struct {
	chunking  string
	retrieval string
	storage   storage.Storage
	client    llm.Client
	extractor pdf.Extractor
	emb       embedder.Embedder
	workers   int
}

// Option configures an Agent
type Option func(*options)

// WithChunking selects the chunking strategy tag
func WithChunking(kind string) Option {
	return func(o *options) { o.chunking = kind }
}

// WithRetrieval selects the retrieval strategy tag
func WithRetrieval(kind string) Option {
	return func(o *options) { o.retrieval = kind }
}

// WithStorage uses st instead of opening the configured store. The caller
// keeps ownership of st.
func WithStorage(st storage.Storage) Option {
	return func(o *options) { o.storage = st }
}

// WithLLMClient uses client instead of the configured provider
func WithLLMClient(client llm.Client) Option {
	return func(o *options) { o.client = client }
}

// WithExtractor replaces the PDF text extractor
func WithExtractor(e pdf.Extractor) Option {
	return func(o *options) { o.extractor = e }
}

// WithEmbedder uses emb instead of the configured provider. The caller keeps
// ownership of emb.
func WithEmbedder(emb embedder.Embedder) Option {
	return func(o *options) { o.emb = emb }
}

// WithWorkers sets how many files are extracted and chunked concurrently
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// New builds an agent from cfg. A missing LLM credential is fatal unless a
// client is supplied with WithLLMClient.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Agent, error) {
	o := options{
		chunking:  cfg.Chunking.Strategy,
		retrieval: cfg.Retrieval.Strategy,
	}
	for _, opt := range opts {
		opt(&o)
	}
	logger := logging.From(ctx)

	a := &Agent{cfg: cfg, extractor: o.extractor}
	if a.extractor == nil {
		a.extractor = pdf.NewReader()
	}

	client := o.client
	if client == nil {
		if err := cfg.RequireLLMCredential(); err != nil {
			return nil, err
		}
		c, err := llm.New(ctx, cfg.LLM)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize llm")
		}
		client = c
	}
	a.llm = llm.NewService(client)

	a.emb = o.emb
	if a.emb == nil {
		emb, err := embedder.New(ctx, embedder.Config{
			Provider:  cfg.Embedding.Provider,
			Model:     cfg.Embedding.Model,
			APIKey:    cfg.Embedding.APIKey,
			CacheSize: cfg.Embedding.CacheSize,
		})
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize embedder")
		}
		a.emb = emb
		a.ownEmb = true
	}

	a.storage = o.storage
	if a.storage == nil {
		st, err := openStorage(cfg)
		if err != nil {
			a.closeOwned()
			return nil, err
		}
		a.storage = st
		a.ownStorage = true
	}

	store, err := vectorstore.New(ctx, a.storage, a.emb, cfg.VectorStore.Collection)
	if err != nil {
		a.closeOwned()
		return nil, goerr.Wrap(err, "failed to initialize vector store")
	}
	a.store = store

	a.chunking = chunker.New(o.chunking, chunker.Config{
		ChunkSize:    cfg.Chunking.ChunkSize,
		ChunkOverlap: cfg.Chunking.ChunkOverlap,
	}, a.emb)
	a.retrieval = retriever.New(o.retrieval, retriever.Options{
		TopK:          cfg.Retrieval.K,
		MinSimilarity: cfg.Retrieval.SimilarityThreshold,
	})

	var procOpts []processor.Option
	if o.workers > 0 {
		procOpts = append(procOpts, processor.WithWorkers(o.workers))
	}
	a.processor = processor.New(a.extractor, a.chunking, procOpts...)
	a.ready.Store(true)

	logger.Info("PDF Q/A agent initialized",
		"chunking", a.chunking.Name(),
		"retrieval", a.retrieval.Name(),
		"model", client.Model(),
		"embedding", a.emb.Provider(),
		"collection", cfg.VectorStore.Collection)
	return a, nil
}

func openStorage(cfg *config.Config) (storage.Storage, error) {
	switch cfg.VectorStore.Type {
	case config.StoreMemory:
		return storage.NewMemoryStorage(), nil
	default:
		st, err := storage.NewSQLiteStorage(cfg.DBFile())
		if err != nil {
			return nil, goerr.Wrap(err, "failed to open vector store", goerr.V("path", cfg.DBFile()))
		}
		return st, nil
	}
}

func (a *Agent) closeOwned() {
	if a.ownStorage && a.storage != nil {
		_ = a.storage.Close()
	}
	if a.ownEmb && a.emb != nil {
		_ = a.emb.Close()
	}
}

// Close releases the storage and embedder the agent opened itself
func (a *Agent) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ready.Store(false)

	var errs []error
	if a.ownStorage {
		errs = append(errs, a.storage.Close())
	}
	if a.ownEmb {
		errs = append(errs, a.emb.Close())
	}
	return errors.Join(errs...)
}

// State reports what the agent is currently doing. Ingestion takes
// precedence over answering.
func (a *Agent) State() State {
	switch {
	case !a.ready.Load():
		return StateUninitialized
	case a.ingesting.Load() > 0:
		return StateIngesting
	case a.answering.Load() > 0:
		return StateAnswering
	default:
		return StateReady
	}
}

// ChunkingStrategy returns the active chunking strategy tag
func (a *Agent) ChunkingStrategy() string {
	return a.chunking.Name()
}

// RetrievalStrategy returns the active retrieval strategy tag
func (a *Agent) RetrievalStrategy() string {
	return a.retrieval.Name()
}

// ProcessDocument ingests one PDF and reports whether any chunks were stored
func (a *Agent) ProcessDocument(ctx context.Context, path string) bool {
	return a.ProcessDocuments(ctx, []string{path})[0].OK()
}

// ProcessDocuments ingests several PDFs. Files are extracted and chunked
// concurrently; inserts are serialized. Results are in input order.
func (a *Agent) ProcessDocuments(ctx context.Context, paths []string) []IngestResult {
	a.ingesting.Add(1)
	defer a.ingesting.Add(-1)

	requestID := uuid.NewString()
	logger := logging.From(ctx).With("request_id", requestID)
	ctx = logging.With(ctx, logger)
	start := time.Now()

	results := make([]IngestResult, len(paths))
	var accepted []string
	var index []int
	for i, path := range paths {
		results[i].Path = path
		if err := a.checkSize(path); err != nil {
			logger.Error("Error processing document", "file", filepath.Base(path), "error", err)
			results[i].Err = err
			continue
		}
		accepted = append(accepted, path)
		index = append(index, i)
	}

	processed := a.processor.ProcessAll(ctx, accepted)
	for j, res := range processed {
		i := index[j]
		if res.Err != nil {
			logger.Error("Error processing document", "file", filepath.Base(res.Path), "error", res.Err)
			results[i].Err = res.Err
			continue
		}
		if len(res.Chunks) == 0 {
			logger.Error("No chunks created from document", "file", filepath.Base(res.Path))
			results[i].Err = goerr.Wrap(ErrNoChunks, "document produced no chunks", goerr.V("path", res.Path))
			continue
		}
		if err := a.addChunks(ctx, res.Chunks); err != nil {
			logger.Error("Error storing document", "file", filepath.Base(res.Path), "error", err)
			results[i].Err = err
			continue
		}
		results[i].Chunks = len(res.Chunks)
		logger.Info("Successfully processed document", "file", filepath.Base(res.Path), "chunks", len(res.Chunks))
	}

	logger.Info("Ingestion finished", "files", len(paths), "duration_ms", time.Since(start).Milliseconds())
	return results
}

// TryProcessDocuments is ProcessDocuments that fails with ErrIngestInProgress
// instead of waiting when another TryProcessDocuments call is running
func (a *Agent) TryProcessDocuments(ctx context.Context, paths []string) ([]IngestResult, error) {
	if !a.ingestLock.TryAcquire() {
		return nil, ErrIngestInProgress
	}
	defer a.ingestLock.Release()
	return a.ProcessDocuments(ctx, paths), nil
}

func (a *Agent) checkSize(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return goerr.Wrap(err, "cannot read document", goerr.V("path", path))
	}
	if info.IsDir() {
		return goerr.New("path is a directory", goerr.V("path", path))
	}
	if limit := a.cfg.MaxFileSizeBytes(); limit > 0 && info.Size() > limit {
		return goerr.Wrap(ErrFileTooLarge, "document rejected",
			goerr.V("path", path), goerr.V("size", info.Size()), goerr.V("limit_mb", a.cfg.MaxFileSizeMB))
	}
	return nil
}

func (a *Agent) addChunks(ctx context.Context, chunks []types.Chunk) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.store.AddDocuments(ctx, chunks)
}

func (a *Agent) snapshot() *vectorstore.Store {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.store
}

// AskQuestion answers question from the knowledge base
func (a *Agent) AskQuestion(ctx context.Context, question string) string {
	var b strings.Builder
	for fragment := range a.AskQuestionStream(ctx, question) {
		b.WriteString(fragment)
	}
	return b.String()
}

// AskQuestionStream answers question as an ordered stream of fragments. The
// sequence is single use; stopping early cancels generation.
func (a *Agent) AskQuestionStream(ctx context.Context, question string) iter.Seq[string] {
	return func(yield func(string) bool) {
		a.answering.Add(1)
		defer a.answering.Add(-1)

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		logger := logging.From(ctx).With("request_id", uuid.NewString())
		ctx = logging.With(ctx, logger)

		// Blank questions get the error answer without retrieval or an LLM call
		if strings.TrimSpace(question) == "" {
			yield(fmt.Sprintf("An error occurred while processing your question: %s", retriever.ErrEmptyQuery))
			return
		}

		snippets := a.retrieve(ctx, question)
		if len(snippets) == 0 {
			yield(NoResultsAnswer)
			return
		}

		contextText := FormatContext(snippets)
		logger.Info("Generating answer", "snippets", len(snippets), "retrieval", a.retrieval.Name())
		for fragment := range a.llm.GenerateResponse(ctx, question, contextText) {
			if !yield(fragment) {
				return
			}
		}
	}
}

// retrieve runs the retrieval strategy. Failures are logged and yield no snippets.
func (a *Agent) retrieve(ctx context.Context, question string) []types.Snippet {
	store := a.snapshot()
	snippets, err := a.retrieval.Retrieve(ctx, question, store)
	if err != nil {
		logging.From(ctx).Error("Error retrieving documents", "error", err)
		return nil
	}
	return snippets
}

// Search returns the k chunks most similar to query, optionally restricted
// to one file
func (a *Agent) Search(ctx context.Context, query string, k int, filename string) ([]types.Snippet, error) {
	if strings.TrimSpace(query) == "" {
		return nil, retriever.ErrEmptyQuery
	}
	store := a.snapshot()
	if filename != "" {
		return store.SearchWithFilter(ctx, query, storage.Filter{types.MetaFilename: filename}, k)
	}
	return store.SimilaritySearch(ctx, query, k)
}

// FormatContext renders snippets as the numbered context blocks passed to the LLM
func FormatContext(snippets []types.Snippet) string {
	blocks := make([]string, len(snippets))
	for i, s := range snippets {
		blocks[i] = fmt.Sprintf("\nDocument %d:\nSource: %s\nRelevance Score: %.3f\nContent: %s\n---\n",
			i+1, s.Source(), s.SimilarityScore, s.Content)
	}
	return strings.Join(blocks, "\n")
}

// Stats reports the knowledge base size. Failures report 0 documents.
func (a *Agent) Stats(ctx context.Context) Stats {
	stats, err := a.snapshot().Stats(ctx)
	if err != nil {
		logging.From(ctx).Error("Error getting collection stats", "error", err)
		return Stats{CollectionName: a.cfg.VectorStore.Collection}
	}
	return stats
}

// Status reports configuration, activity and size
func (a *Agent) Status(ctx context.Context) Status {
	stats := a.Stats(ctx)
	return Status{
		State:             a.State().String(),
		ChunkingStrategy:  a.chunking.Name(),
		RetrievalStrategy: a.retrieval.Name(),
		Model:             a.llm.Model(),
		EmbeddingProvider: a.emb.Provider(),
		CollectionName:    stats.CollectionName,
		DocumentCount:     stats.DocumentCount,
	}
}

// ClearKnowledgeBase deletes every stored chunk by dropping and recreating
// the collection
func (a *Agent) ClearKnowledgeBase(ctx context.Context) bool {
	a.ingesting.Add(1)
	defer a.ingesting.Add(-1)

	a.mu.Lock()
	defer a.mu.Unlock()

	logger := logging.From(ctx)
	if err := a.store.DeleteCollection(ctx); err != nil {
		logger.Error("Error clearing knowledge base", "error", err)
		return false
	}

	store, err := vectorstore.New(ctx, a.storage, a.emb, a.cfg.VectorStore.Collection)
	if err != nil {
		logger.Error("Error recreating collection", "error", err)
		return false
	}
	a.store = store

	logger.Info("Knowledge base cleared", "collection", a.cfg.VectorStore.Collection)
	return true
}

// Summarize summarizes text in at most maxWords words
func (a *Agent) Summarize(ctx context.Context, text string, maxWords int) string {
	return a.llm.Summarize(ctx, text, maxWords)
}
