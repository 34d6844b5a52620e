package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/dshills/pdfqa-mcp/internal/mcp"
	"github.com/dshills/pdfqa-mcp/internal/pdf"
	"github.com/dshills/pdfqa-mcp/internal/processor"
	"github.com/dshills/pdfqa-mcp/internal/storage"
	"github.com/dshills/pdfqa-mcp/internal/tui"
	"github.com/dshills/pdfqa-mcp/pkg/types"
)

func serveCommand(build BuildInfo) *cli.Command {
	var opts options
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the MCP server on stdio",
		Flags: globalFlags(&opts),
		Action: func(ctx context.Context, c *cli.Command) error {
			s, err := opts.newSession(ctx, true)
			if err != nil {
				return err
			}
			defer s.Close()

			return mcp.NewServer(s.agent, build.Version).Serve(s.ctx)
		},
	}
}

func ingestCommand() *cli.Command {
	var opts options
	return &cli.Command{
		Name:      "ingest",
		Usage:     "Add PDF files or directories to the knowledge base",
		ArgsUsage: "<file.pdf|dir>...",
		Flags:     globalFlags(&opts),
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() == 0 {
				return goerr.New("at least one PDF file or directory is required")
			}
			files, err := processor.Discover(c.Args().Slice()...)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return goerr.New("no PDF files found", goerr.V("paths", c.Args().Slice()))
			}

			s, err := opts.newSession(ctx, false)
			if err != nil {
				return err
			}
			defer s.Close()

			w := c.Root().Writer
			start := time.Now()
			var ok, chunks int
			for _, r := range s.agent.ProcessDocuments(s.ctx, files) {
				if r.OK() {
					ok++
					chunks += r.Chunks
					fmt.Fprintf(w, "✓ %s (%d chunks)\n", filepath.Base(r.Path), r.Chunks)
				} else {
					fmt.Fprintf(w, "✗ %s: %v\n", filepath.Base(r.Path), r.Err)
				}
			}
			fmt.Fprintf(w, "\nProcessed %d/%d files, %d chunks in %s\n",
				ok, len(files), chunks, time.Since(start).Round(time.Millisecond))

			if ok == 0 {
				return goerr.New("no documents were processed")
			}
			return nil
		},
	}
}

func askCommand() *cli.Command {
	var (
		opts     options
		noStream bool
	)
	flags := append(globalFlags(&opts), &cli.BoolFlag{
		Name:        "no-stream",
		Usage:       "Print the answer only once it is complete",
		Destination: &noStream,
	})

	return &cli.Command{
		Name:      "ask",
		Usage:     "Ask a question about the ingested PDFs",
		ArgsUsage: "<question>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if question == "" {
				return goerr.New("question is required")
			}

			s, err := opts.newSession(ctx, true)
			if err != nil {
				return err
			}
			defer s.Close()

			w := c.Root().Writer
			if noStream {
				fmt.Fprintln(w, s.agent.AskQuestion(s.ctx, question))
				return nil
			}
			for fragment := range s.agent.AskQuestionStream(s.ctx, question) {
				_, _ = io.WriteString(w, fragment)
			}
			fmt.Fprintln(w)
			return nil
		},
	}
}

func searchCommand() *cli.Command {
	var (
		opts     options
		k        int64
		filename string
		asJSON   bool
	)
	flags := append(globalFlags(&opts),
		&cli.IntFlag{
			Name:        "k",
			Usage:       "Number of passages to return",
			Value:       5,
			Destination: &k,
		},
		&cli.StringFlag{
			Name:        "file",
			Usage:       "Only search passages from this PDF file name",
			Destination: &filename,
		},
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "Print results as JSON",
			Destination: &asJSON,
		},
	)

	return &cli.Command{
		Name:      "search",
		Usage:     "Show the stored passages most similar to a query",
		ArgsUsage: "<query>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if query == "" {
				return goerr.New("query is required")
			}

			s, err := opts.newSession(ctx, false)
			if err != nil {
				return err
			}
			defer s.Close()

			var name string
			if filename != "" {
				name = filepath.Base(filename)
			}
			snippets, err := s.agent.Search(s.ctx, query, int(k), name)
			if err != nil {
				return err
			}
			return printSnippets(c.Root().Writer, snippets, asJSON)
		},
	}
}

func printSnippets(w io.Writer, snippets []types.Snippet, asJSON bool) error {
	if asJSON {
		type row struct {
			Rank       int     `json:"rank"`
			Source     string  `json:"source"`
			ChunkID    int     `json:"chunk_id"`
			Similarity float64 `json:"similarity_score"`
			Content    string  `json:"content"`
		}
		rows := make([]row, len(snippets))
		for i, sn := range snippets {
			rows[i] = row{i + 1, sn.Source(), sn.Metadata.ChunkID, sn.SimilarityScore, sn.Content}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	if len(snippets) == 0 {
		fmt.Fprintln(w, "No matching passages.")
		return nil
	}
	for i, sn := range snippets {
		fmt.Fprintf(w, "[%d] %s #%d  score=%.3f\n%s\n\n", i+1, sn.Source(), sn.Metadata.ChunkID, sn.SimilarityScore, sn.Content)
	}
	return nil
}

func summarizeCommand() *cli.Command {
	var (
		opts  options
		words int64
	)
	flags := append(globalFlags(&opts), &cli.IntFlag{
		Name:        "words",
		Usage:       "Maximum summary length in words",
		Value:       200,
		Destination: &words,
	})

	return &cli.Command{
		Name:      "summarize",
		Usage:     "Summarize a PDF without adding it to the knowledge base",
		ArgsUsage: "<file.pdf>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			path := c.Args().First()
			if path == "" {
				return goerr.New("a PDF file is required")
			}

			s, err := opts.newSession(ctx, true)
			if err != nil {
				return err
			}
			defer s.Close()

			pages, err := pdf.NewReader().Extract(s.ctx, path)
			if err != nil {
				return err
			}
			text := pdf.Document(pages)
			if strings.TrimSpace(text) == "" {
				return goerr.Wrap(processor.ErrNoText, "cannot summarize", goerr.V("path", path))
			}
			fmt.Fprintln(c.Root().Writer, s.agent.Summarize(s.ctx, text, int(words)))
			return nil
		},
	}
}

func statsCommand() *cli.Command {
	var opts options
	return &cli.Command{
		Name:  "stats",
		Usage: "Show knowledge base statistics",
		Flags: globalFlags(&opts),
		Action: func(ctx context.Context, c *cli.Command) error {
			s, err := opts.newSession(ctx, false)
			if err != nil {
				return err
			}
			defer s.Close()

			st := s.agent.Status(s.ctx)
			w := c.Root().Writer
			fmt.Fprintf(w, "Collection:  %s\n", st.CollectionName)
			fmt.Fprintf(w, "Chunks:      %d\n", st.DocumentCount)
			fmt.Fprintf(w, "Chunking:    %s\n", st.ChunkingStrategy)
			fmt.Fprintf(w, "Retrieval:   %s\n", st.RetrievalStrategy)
			fmt.Fprintf(w, "Embedding:   %s\n", st.EmbeddingProvider)
			fmt.Fprintf(w, "Store:       %s (%s)\n", s.cfg.VectorStore.Type, s.cfg.VectorStore.Path)
			return nil
		},
	}
}

func clearCommand() *cli.Command {
	var (
		opts options
		yes  bool
	)
	flags := append(globalFlags(&opts), &cli.BoolFlag{
		Name:        "yes",
		Aliases:     []string{"y"},
		Usage:       "Confirm deletion of every stored chunk",
		Destination: &yes,
	})

	return &cli.Command{
		Name:  "clear",
		Usage: "Delete the knowledge base",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if !yes {
				return goerr.New("refusing to clear without --yes")
			}

			s, err := opts.newSession(ctx, false)
			if err != nil {
				return err
			}
			defer s.Close()

			if !s.agent.ClearKnowledgeBase(s.ctx) {
				return goerr.New("failed to clear knowledge base")
			}
			fmt.Fprintf(c.Root().Writer, "Cleared collection %q\n", s.cfg.VectorStore.Collection)
			return nil
		},
	}
}

func chatCommand() *cli.Command {
	var opts options
	return &cli.Command{
		Name:  "chat",
		Usage: "Interactive chat over the knowledge base",
		Flags: globalFlags(&opts),
		Action: func(ctx context.Context, c *cli.Command) error {
			// stderr shares the terminal with the UI
			if opts.logLevel == "" {
				opts.logLevel = "error"
			}
			s, err := opts.newSession(ctx, true)
			if err != nil {
				return err
			}
			defer s.Close()

			return tui.Run(s.ctx, s.agent, s.cfg.AppTitle)
		},
	}
}

func versionCommand(build BuildInfo) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version and build information",
		Action: func(ctx context.Context, c *cli.Command) error {
			w := c.Root().Writer
			fmt.Fprintf(w, "pdfqa %s\n", build.Version)
			fmt.Fprintf(w, "Build Time: %s\n", build.BuildTime)
			fmt.Fprintf(w, "Build Mode: %s\n", storage.BuildMode)
			fmt.Fprintf(w, "SQLite Driver: %s\n", storage.DriverName)
			return nil
		},
	}
}
