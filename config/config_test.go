package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/arxivsearch/core"
	"github.com/poiesic/arxivsearch/ingestion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapLookup(env map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(mapLookup(nil))
	require.NoError(t, err)

	assert.Equal(t, ingestion.DefaultBatchSize, cfg.BatchSize)
	assert.Equal(t, StoreChroma, cfg.Store)
	assert.Equal(t, 8000, cfg.ChromaPort)
	assert.Equal(t, "arxiv", cfg.ChromaCollection)
	assert.Equal(t, "./.arxivsearch", cfg.StatePath)
	assert.Equal(t, ingestion.MalformedSkip, cfg.Malformed)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.RetryDelay)
	assert.Equal(t, "https://export.arxiv.org/api/query", cfg.ArxivAPIURL)
}

func TestLoad_Values(t *testing.T) {
	cfg, err := Load(mapLookup(map[string]string{
		KeySourcePath:     "/data/arxiv-metadata.json",
		KeyBatchSize:      "250",
		KeyStore:          "LOCAL",
		KeyStorePath:      "/data/index",
		KeyEmbeddingHost:  "http://embed:8080",
		KeyEmbeddingModel: "all-mpnet-base-v2",
		KeyMalformed:      "fail",
		KeyMaxRetries:     "5",
		KeyRetryDelay:     "250ms",
		KeyAPIToken:       "secret",
		KeyArxivAPIURL:    "http://mirror.local/api/query",
	}))
	require.NoError(t, err)

	assert.Equal(t, "/data/arxiv-metadata.json", cfg.SourcePath)
	assert.Equal(t, 250, cfg.BatchSize)
	assert.Equal(t, StoreLocal, cfg.Store)
	assert.Equal(t, "/data/index", cfg.StorePath)
	assert.Equal(t, ingestion.MalformedFail, cfg.Malformed)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.RetryDelay)
	assert.Equal(t, "http://mirror.local/api/query", cfg.ArxivAPIURL)

	// LLM host falls back to the embedding host
	assert.Equal(t, "http://embed:8080", cfg.LLMHost)
	require.NoError(t, cfg.Validate(ForIngest))
}

func TestLoad_ParseErrors(t *testing.T) {
	_, err := Load(mapLookup(map[string]string{
		KeyBatchSize:  "many",
		KeyRetryDelay: "soon",
		KeyMalformed:  "ignore",
	}))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
	assert.Contains(t, err.Error(), KeyBatchSize)
	assert.Contains(t, err.Error(), KeyRetryDelay)
	assert.Contains(t, err.Error(), KeyMalformed)
}

func TestValidate_NamesEveryMissingKey(t *testing.T) {
	cfg, err := Load(mapLookup(nil))
	require.NoError(t, err)

	err = cfg.Validate(ForIngest)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
	for _, key := range []string{KeySourcePath, KeyEmbeddingHost, KeyEmbeddingModel, KeyChromaHost} {
		assert.Contains(t, err.Error(), key)
	}

	// Queries do not need a source
	err = cfg.Validate(ForQuery)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), KeySourcePath)
}

func TestValidate_Ranges(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		key    string
	}{
		{"zero batch size", func(c *Config) { c.BatchSize = 0 }, KeyBatchSize},
		{"zero retries", func(c *Config) { c.MaxRetries = 0 }, KeyMaxRetries},
		{"negative delay", func(c *Config) { c.RetryDelay = -time.Second }, KeyRetryDelay},
		{"bad port", func(c *Config) { c.ChromaPort = 70000 }, KeyChromaPort},
		{"unknown store", func(c *Config) { c.Store = "qdrant" }, KeyStore},
		{"local without path", func(c *Config) { c.Store = StoreLocal }, KeyStorePath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.EmbeddingHost = "http://localhost:11434/v1"
			cfg.EmbeddingModel = "all-mpnet-base-v2"
			cfg.ChromaHost = "localhost"
			tt.modify(cfg)

			err := cfg.Validate(ForQuery)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestAIConfig(t *testing.T) {
	cfg := Default()
	cfg.EmbeddingHost = "http://embed:8080"
	cfg.EmbeddingModel = "all-mpnet-base-v2"
	cfg.LLMModel = "gpt-4o-mini"

	aiCfg := cfg.AIConfig()
	require.NoError(t, aiCfg.Validate())
	assert.Equal(t, "http://embed:8080/v1", aiCfg.EmbeddingHost)
	assert.Equal(t, "http://embed:8080/v1", aiCfg.ChatHost)
	assert.Equal(t, "all-mpnet-base-v2", aiCfg.EmbeddingModel)
	assert.Equal(t, "gpt-4o-mini", aiCfg.ChatModel)
}

func TestRetryPolicy(t *testing.T) {
	cfg := Default()
	cfg.MaxRetries = 4
	cfg.RetryDelay = 10 * time.Millisecond

	assert.Equal(t, ingestion.RetryPolicy{MaxAttempts: 4, BaseDelay: 10 * time.Millisecond}, cfg.RetryPolicy())
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("ARXIV_TEST_DOTENV_VALUE=from-file\n"), 0o644))
	t.Setenv("ARXIV_TEST_DOTENV_VALUE", "")
	require.NoError(t, os.Unsetenv("ARXIV_TEST_DOTENV_VALUE"))

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv("ARXIV_TEST_DOTENV_VALUE"))

	// Missing files are ignored
	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))
}
