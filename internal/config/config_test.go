package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "PDF Q/A Agent", cfg.AppTitle)
	assert.Equal(t, 50, cfg.MaxFileSizeMB)
	assert.Equal(t, LLMProviderGroq, cfg.LLM.Provider)
	assert.Equal(t, "llama-3.1-8b-instant", cfg.LLM.Model)
	assert.Equal(t, DefaultGroqBaseURL, cfg.LLM.BaseURL)
	assert.InDelta(t, 0.1, cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, 1000, cfg.Chunking.ChunkSize)
	assert.Equal(t, 200, cfg.Chunking.ChunkOverlap)
	assert.Equal(t, "hybrid", cfg.Chunking.Strategy)
	assert.Equal(t, "hybrid", cfg.Retrieval.Strategy)
	assert.Equal(t, 5, cfg.Retrieval.K)
	assert.Equal(t, "pdf_documents", cfg.VectorStore.Collection)
	assert.Equal(t, StoreSQLite, cfg.VectorStore.Type)
	require.NoError(t, cfg.Validate())
}

func TestLoadFileMissingReturnsDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestSaveAndLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Chunking.ChunkSize = 500
	cfg.Chunking.ChunkOverlap = 50
	cfg.VectorStore.Collection = "papers"
	cfg.LLM.APIKey = "secret"
	require.NoError(t, Save(path, cfg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 500, loaded.Chunking.ChunkSize)
	assert.Equal(t, 50, loaded.Chunking.ChunkOverlap)
	assert.Equal(t, "papers", loaded.VectorStore.Collection)
	assert.Empty(t, loaded.LLM.APIKey)
}

func TestApplyEnv(t *testing.T) {
	t.Run("unprefixed variable names", func(t *testing.T) {
		cfg := &Config{}
		ApplyEnv(cfg, envMap(map[string]string{
			"GROQ_API_KEY":             "gsk-test",
			"GROQ_MODEL":               "llama-3.3-70b-versatile",
			"CHUNK_SIZE":               "800",
			"CHUNK_OVERLAP":            "100",
			"CHROMA_PERSIST_DIRECTORY": "/data/chroma",
			"COLLECTION_NAME":          "manuals",
			"RETRIEVAL_K":              "7",
			"SIMILARITY_THRESHOLD":     "0.25",
			"MAX_FILE_SIZE_MB":         "10",
		}))
		applyDefaults(cfg)

		assert.Equal(t, "gsk-test", cfg.LLM.APIKey)
		assert.Equal(t, "llama-3.3-70b-versatile", cfg.LLM.Model)
		assert.Equal(t, 800, cfg.Chunking.ChunkSize)
		assert.Equal(t, 100, cfg.Chunking.ChunkOverlap)
		assert.Equal(t, "/data/chroma", cfg.VectorStore.Path)
		assert.Equal(t, "manuals", cfg.VectorStore.Collection)
		assert.Equal(t, 7, cfg.Retrieval.K)
		assert.InDelta(t, 0.25, cfg.Retrieval.SimilarityThreshold, 1e-9)
		assert.Equal(t, int64(10*1024*1024), cfg.MaxFileSizeBytes())
	})

	t.Run("provider specific keys", func(t *testing.T) {
		cfg := &Config{}
		ApplyEnv(cfg, envMap(map[string]string{
			"LLM_PROVIDER":       "OpenAI",
			"OPENAI_API_KEY":     "sk-test",
			"GROQ_API_KEY":       "ignored",
			"EMBEDDING_PROVIDER": "jina",
			"JINA_API_KEY":       "jina-test",
		}))
		applyDefaults(cfg)

		assert.Equal(t, LLMProviderOpenAI, cfg.LLM.Provider)
		assert.Equal(t, "sk-test", cfg.LLM.APIKey)
		assert.Equal(t, DefaultOpenAIModel, cfg.LLM.Model)
		assert.Equal(t, DefaultOpenAIBaseURL, cfg.LLM.BaseURL)
		assert.Equal(t, "jina", cfg.Embedding.Provider)
		assert.Equal(t, "jina-test", cfg.Embedding.APIKey)
	})

	t.Run("malformed numbers are ignored", func(t *testing.T) {
		cfg := Default()
		ApplyEnv(cfg, envMap(map[string]string{"CHUNK_SIZE": "big"}))
		assert.Equal(t, DefaultChunkSize, cfg.Chunking.ChunkSize)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero chunk size", func(c *Config) { c.Chunking.ChunkSize = -1 }},
		{"overlap too large", func(c *Config) { c.Chunking.ChunkOverlap = c.Chunking.ChunkSize }},
		{"negative k", func(c *Config) { c.Retrieval.K = -3 }},
		{"threshold out of range", func(c *Config) { c.Retrieval.SimilarityThreshold = 1.5 }},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "acme" }},
		{"unknown store", func(c *Config) { c.VectorStore.Type = "chroma" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestRequireLLMCredential(t *testing.T) {
	cfg := Default()
	assert.ErrorIs(t, cfg.RequireLLMCredential(), ErrMissingCredential)

	cfg.LLM.APIKey = "gsk-test"
	assert.NoError(t, cfg.RequireLLMCredential())
}

func TestDBFile(t *testing.T) {
	cfg := Default()
	cfg.VectorStore.Path = "/tmp/store"
	assert.Equal(t, filepath.Join("/tmp/store", DBFileName), cfg.DBFile())
}
