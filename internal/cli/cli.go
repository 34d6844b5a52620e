package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/dshills/pdfqa-mcp/internal/agent"
	"github.com/dshills/pdfqa-mcp/internal/config"
	"github.com/dshills/pdfqa-mcp/internal/llm"
	"github.com/dshills/pdfqa-mcp/internal/logging"
)

// Error is a process exit status with its message
type Error struct {
	Code    int
	Message string
}

// BuildInfo identifies the binary
type BuildInfo struct {
	Version   string
	BuildTime string
}

// Run parses argv and executes the selected command. SIGINT and SIGTERM
// cancel ctx.
func Run(ctx context.Context, argv []string, build BuildInfo) *Error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:    "pdfqa",
		Usage:   "Ask questions about PDF documents",
		Version: build.Version,
		Commands: []*cli.Command{
			serveCommand(build),
			ingestCommand(),
			askCommand(),
			searchCommand(),
			summarizeCommand(),
			statsCommand(),
			clearCommand(),
			chatCommand(),
			versionCommand(build),
		},
	}

	if err := cmd.Run(ctx, argv); err != nil {
		code := 1
		if errors.Is(err, config.ErrMissingCredential) || errors.Is(err, config.ErrInvalidConfig) {
			code = 2
		}
		logging.Default().Error("Command failed", "error", err)
		return &Error{Code: code, Message: err.Error()}
	}
	return nil
}

// options holds flag values shared by the commands
type options struct {
	configPath string
	logLevel   string
	logFile    string
	chunking   string
	retrieval  string
	storeType  string
	storePath  string
	collection string
}

// globalFlags returns common flags used across commands with destination options
func globalFlags(opts *options) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to YAML config file",
			Sources:     cli.EnvVars("PDFQA_CONFIG"),
			Destination: &opts.configPath,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Destination: &opts.logLevel,
		},
		&cli.StringFlag{
			Name:        "log-file",
			Usage:       "Also write logs to this file",
			Destination: &opts.logFile,
		},
		&cli.StringFlag{
			Name:        "chunking",
			Usage:       "Chunking strategy (recursive, semantic, contextual, hybrid)",
			Destination: &opts.chunking,
		},
		&cli.StringFlag{
			Name:        "retrieval",
			Usage:       "Retrieval strategy (basic, hybrid, contextual)",
			Destination: &opts.retrieval,
		},
		&cli.StringFlag{
			Name:        "store",
			Usage:       "Vector store type (sqlite, memory)",
			Destination: &opts.storeType,
		},
		&cli.StringFlag{
			Name:        "store-path",
			Usage:       "Vector store directory",
			Destination: &opts.storePath,
		},
		&cli.StringFlag{
			Name:        "collection",
			Usage:       "Collection name",
			Destination: &opts.collection,
		},
	}
}

// loadConfig reads the config file and environment, then applies flags
func (o *options) loadConfig() (*config.Config, error) {
	path := o.configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	override := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	override(&cfg.Log.Level, o.logLevel)
	override(&cfg.Log.File, o.logFile)
	override(&cfg.Chunking.Strategy, o.chunking)
	override(&cfg.Retrieval.Strategy, o.retrieval)
	override(&cfg.VectorStore.Type, o.storeType)
	override(&cfg.VectorStore.Path, o.storePath)
	override(&cfg.VectorStore.Collection, o.collection)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// session is a configured agent plus the logger context it runs under
type session struct {
	ctx      context.Context
	cfg      *config.Config
	agent    *agent.Agent
	closeLog func() error
}

func (s *session) Close() {
	if err := s.agent.Close(); err != nil {
		logging.From(s.ctx).Warn("Failed to close agent", "error", err)
	}
	_ = s.closeLog()
}

// newSession loads configuration, installs the logger and builds the agent.
// When needLLM is false a missing LLM credential is tolerated.
func (o *options) newSession(ctx context.Context, needLLM bool) (*session, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	logger, closeLog, err := logging.Setup(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open log file", goerr.V("path", cfg.Log.File))
	}
	ctx = logging.With(ctx, logger)

	var agentOpts []agent.Option
	if err := cfg.RequireLLMCredential(); err != nil && !needLLM {
		logger.Debug("LLM credential not set, generation disabled", "provider", cfg.LLM.Provider)
		agentOpts = append(agentOpts, agent.WithLLMClient(llm.Unavailable(err)))
	}

	a, err := agent.New(ctx, cfg, agentOpts...)
	if err != nil {
		_ = closeLog()
		return nil, err
	}
	return &session{ctx: ctx, cfg: cfg, agent: a, closeLog: closeLog}, nil
}
