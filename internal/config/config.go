// Package config loads the application configuration.
//
// Values are resolved in increasing priority: built-in defaults, the YAML file,
// a .env file, process environment, then CLI flags (applied by the caller).
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
)

var (
	// ErrMissingCredential is returned when a required API key is not configured
	ErrMissingCredential = errors.New("missing required credential")
	// ErrInvalidConfig is returned when a setting is out of range
	ErrInvalidConfig = errors.New("invalid configuration")
)

// LLM providers
const (
	LLMProviderGroq   = "groq"
	LLMProviderOpenAI = "openai"
	LLMProviderGemini = "gemini"
)

// Vector store types
const (
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// Defaults
const (
	DefaultAppTitle       = "PDF Q/A Agent"
	DefaultMaxFileSizeMB  = 50
	DefaultGroqModel      = "llama-3.1-8b-instant"
	DefaultGroqBaseURL    = "https://api.groq.com/openai/v1"
	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultOpenAIBaseURL  = "https://api.openai.com/v1"
	DefaultGeminiModel    = "gemini-2.5-flash"
	DefaultTemperature    = 0.1
	DefaultLLMMaxRetries  = 2
	DefaultChunkSize      = 1000
	DefaultChunkOverlap   = 200
	DefaultStorePath      = "./vector_db"
	DefaultCollection     = "pdf_documents"
	DefaultRetrievalK     = 5
	DefaultStrategy       = "hybrid"
	DefaultEmbedCacheSize = 10000
	DBFileName            = "pdfqa.db"
)

// LogConfig configures logging output.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file,omitempty"`
}

// LLMConfig selects and configures the answer-generating model.
type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url,omitempty"`
	APIKey      string  `yaml:"-"`
	Temperature float64 `yaml:"temperature"`
	MaxRetries  int     `yaml:"max_retries"`
	TimeoutSecs int     `yaml:"timeout_secs,omitempty"`
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model,omitempty"`
	APIKey    string `yaml:"-"`
	CacheSize int    `yaml:"cache_size"`
}

// ChunkingConfig configures how documents are split.
type ChunkingConfig struct {
	Strategy     string `yaml:"strategy"`
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
}

// RetrievalConfig configures how snippets are retrieved for a question.
type RetrievalConfig struct {
	Strategy            string  `yaml:"strategy"`
	K                   int     `yaml:"k"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
}

// VectorStoreConfig selects the vector database and collection.
type VectorStoreConfig struct {
	Type       string `yaml:"type"`
	Path       string `yaml:"path"`
	Collection string `yaml:"collection"`
}

// Config is the root application configuration.
type Config struct {
	AppTitle      string            `yaml:"app_title"`
	MaxFileSizeMB int               `yaml:"max_file_size_mb"`
	Log           LogConfig         `yaml:"log"`
	LLM           LLMConfig         `yaml:"llm"`
	Embedding     EmbeddingConfig   `yaml:"embedding"`
	Chunking      ChunkingConfig    `yaml:"chunking"`
	Retrieval     RetrievalConfig   `yaml:"retrieval"`
	VectorStore   VectorStoreConfig `yaml:"vector_store"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads the YAML file at path (defaults when it does not exist), then the
// .env file in the working directory, then environment overrides.
func Load(path string) (*Config, error) {
	cfg, err := readFile(path)
	if err != nil {
		return nil, err
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, goerr.Wrap(err, "failed to load .env file")
	}

	ApplyEnv(cfg, os.Getenv)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads a YAML config without consulting the environment.
// A missing file yields defaults.
func LoadFile(path string) (*Config, error) {
	cfg, err := readFile(path)
	if err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

// readFile decodes the YAML file without applying defaults.
func readFile(path string) (*Config, error) {
	var cfg Config
	if path == "" {
		return &cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &cfg, nil
		}
		return nil, goerr.Wrap(err, "failed to read config", goerr.V("path", path))
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, goerr.Wrap(err, "failed to parse config", goerr.V("path", path))
	}
	return &cfg, nil
}

// DefaultPath returns ./pdfqa.yaml when present, otherwise ~/.config/pdfqa/config.yaml.
func DefaultPath() string {
	if _, err := os.Stat("pdfqa.yaml"); err == nil {
		return "pdfqa.yaml"
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "pdfqa", "config.yaml")
}

// Save writes the config to the given path, creating directories as needed.
// API keys are never written.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return goerr.Wrap(err, "failed to create config directory")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return goerr.Wrap(err, "failed to encode config")
	}
	return os.WriteFile(path, data, 0o644)
}

// ApplyEnv overrides cfg with the recognised environment variables.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	setString := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := strings.TrimSpace(getenv(k)); v != "" {
				*dst = v
				return
			}
		}
	}
	setInt := func(dst *int, key string) {
		if v, err := strconv.Atoi(strings.TrimSpace(getenv(key))); err == nil {
			*dst = v
		}
	}
	setFloat := func(dst *float64, key string) {
		if v, err := strconv.ParseFloat(strings.TrimSpace(getenv(key)), 64); err == nil {
			*dst = v
		}
	}

	setString(&cfg.AppTitle, "APP_TITLE")
	setInt(&cfg.MaxFileSizeMB, "MAX_FILE_SIZE_MB")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.File, "LOG_FILE")

	setString(&cfg.LLM.Provider, "LLM_PROVIDER")
	cfg.LLM.Provider = strings.ToLower(cfg.LLM.Provider)
	setString(&cfg.LLM.BaseURL, "LLM_BASE_URL")
	switch cfg.LLM.Provider {
	case LLMProviderOpenAI:
		setString(&cfg.LLM.APIKey, "OPENAI_API_KEY")
		setString(&cfg.LLM.Model, "LLM_MODEL", "OPENAI_MODEL")
	case LLMProviderGemini:
		setString(&cfg.LLM.APIKey, "GEMINI_API_KEY", "GOOGLE_API_KEY")
		setString(&cfg.LLM.Model, "LLM_MODEL", "GEMINI_MODEL")
	default:
		setString(&cfg.LLM.APIKey, "GROQ_API_KEY")
		setString(&cfg.LLM.Model, "LLM_MODEL", "GROQ_MODEL")
	}

	setString(&cfg.Embedding.Provider, "EMBEDDING_PROVIDER")
	cfg.Embedding.Provider = strings.ToLower(cfg.Embedding.Provider)
	setString(&cfg.Embedding.Model, "EMBEDDING_MODEL")
	switch cfg.Embedding.Provider {
	case "openai":
		setString(&cfg.Embedding.APIKey, "OPENAI_API_KEY")
	case "jina":
		setString(&cfg.Embedding.APIKey, "JINA_API_KEY")
	case "gemini":
		setString(&cfg.Embedding.APIKey, "GEMINI_API_KEY", "GOOGLE_API_KEY")
	}

	setString(&cfg.Chunking.Strategy, "CHUNKING_STRATEGY")
	setInt(&cfg.Chunking.ChunkSize, "CHUNK_SIZE")
	setInt(&cfg.Chunking.ChunkOverlap, "CHUNK_OVERLAP")

	setString(&cfg.Retrieval.Strategy, "RETRIEVAL_STRATEGY")
	setInt(&cfg.Retrieval.K, "RETRIEVAL_K")
	setFloat(&cfg.Retrieval.SimilarityThreshold, "SIMILARITY_THRESHOLD")

	setString(&cfg.VectorStore.Type, "VECTOR_STORE_TYPE")
	setString(&cfg.VectorStore.Path, "VECTOR_STORE_PATH", "CHROMA_PERSIST_DIRECTORY")
	setString(&cfg.VectorStore.Collection, "COLLECTION_NAME")
}

// applyDefaults sets default values for any missing fields.
func applyDefaults(cfg *Config) {
	if cfg.AppTitle == "" {
		cfg.AppTitle = DefaultAppTitle
	}
	if cfg.MaxFileSizeMB == 0 {
		cfg.MaxFileSizeMB = DefaultMaxFileSizeMB
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = LLMProviderGroq
	}
	switch cfg.LLM.Provider {
	case LLMProviderGroq:
		if cfg.LLM.Model == "" {
			cfg.LLM.Model = DefaultGroqModel
		}
		if cfg.LLM.BaseURL == "" {
			cfg.LLM.BaseURL = DefaultGroqBaseURL
		}
	case LLMProviderOpenAI:
		if cfg.LLM.Model == "" {
			cfg.LLM.Model = DefaultOpenAIModel
		}
		if cfg.LLM.BaseURL == "" {
			cfg.LLM.BaseURL = DefaultOpenAIBaseURL
		}
	case LLMProviderGemini:
		if cfg.LLM.Model == "" {
			cfg.LLM.Model = DefaultGeminiModel
		}
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = DefaultTemperature
	}
	if cfg.LLM.MaxRetries == 0 {
		cfg.LLM.MaxRetries = DefaultLLMMaxRetries
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "local"
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = DefaultEmbedCacheSize
	}

	if cfg.Chunking.Strategy == "" {
		cfg.Chunking.Strategy = DefaultStrategy
	}
	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = DefaultChunkSize
	}
	if cfg.Chunking.ChunkOverlap == 0 {
		cfg.Chunking.ChunkOverlap = DefaultChunkOverlap
	}

	if cfg.Retrieval.Strategy == "" {
		cfg.Retrieval.Strategy = DefaultStrategy
	}
	if cfg.Retrieval.K == 0 {
		cfg.Retrieval.K = DefaultRetrievalK
	}

	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = StoreSQLite
	}
	if cfg.VectorStore.Path == "" {
		cfg.VectorStore.Path = DefaultStorePath
	}
	if cfg.VectorStore.Collection == "" {
		cfg.VectorStore.Collection = DefaultCollection
	}
}

// Validate checks ranges and enumerations. Credentials are checked separately
// by RequireLLMCredential so that commands which never call the LLM still run.
func (c *Config) Validate() error {
	switch {
	case c.Chunking.ChunkSize <= 0:
		return goerr.Wrap(ErrInvalidConfig, "chunk size must be positive", goerr.V("chunk_size", c.Chunking.ChunkSize))
	case c.Chunking.ChunkOverlap < 0 || c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize:
		return goerr.Wrap(ErrInvalidConfig, "chunk overlap must be in [0, chunk size)",
			goerr.V("chunk_overlap", c.Chunking.ChunkOverlap), goerr.V("chunk_size", c.Chunking.ChunkSize))
	case c.Retrieval.K <= 0:
		return goerr.Wrap(ErrInvalidConfig, "retrieval k must be positive", goerr.V("k", c.Retrieval.K))
	case c.Retrieval.SimilarityThreshold < -1 || c.Retrieval.SimilarityThreshold > 1:
		return goerr.Wrap(ErrInvalidConfig, "similarity threshold must be in [-1, 1]",
			goerr.V("similarity_threshold", c.Retrieval.SimilarityThreshold))
	case c.MaxFileSizeMB <= 0:
		return goerr.Wrap(ErrInvalidConfig, "max file size must be positive", goerr.V("max_file_size_mb", c.MaxFileSizeMB))
	case c.VectorStore.Collection == "":
		return goerr.Wrap(ErrInvalidConfig, "collection name is required")
	}

	switch c.LLM.Provider {
	case LLMProviderGroq, LLMProviderOpenAI, LLMProviderGemini:
	default:
		return goerr.Wrap(ErrInvalidConfig, "unknown llm provider", goerr.V("provider", c.LLM.Provider))
	}
	switch c.VectorStore.Type {
	case StoreSQLite, StoreMemory:
	default:
		return goerr.Wrap(ErrInvalidConfig, "unknown vector store type", goerr.V("type", c.VectorStore.Type))
	}
	return nil
}

// RequireLLMCredential returns ErrMissingCredential when the selected LLM
// provider has no API key.
func (c *Config) RequireLLMCredential() error {
	if c.LLM.APIKey != "" {
		return nil
	}
	envName := map[string]string{
		LLMProviderGroq:   "GROQ_API_KEY",
		LLMProviderOpenAI: "OPENAI_API_KEY",
		LLMProviderGemini: "GEMINI_API_KEY",
	}[c.LLM.Provider]
	return goerr.Wrap(ErrMissingCredential, "llm api key is not set",
		goerr.V("provider", c.LLM.Provider), goerr.V("env", envName))
}

// MaxFileSizeBytes returns the upload limit in bytes.
func (c *Config) MaxFileSizeBytes() int64 {
	return int64(c.MaxFileSizeMB) * 1024 * 1024
}

// DBFile returns the SQLite database file inside the vector store directory.
func (c *Config) DBFile() string {
	return filepath.Join(c.VectorStore.Path, DBFileName)
}
