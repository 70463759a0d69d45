// Package config builds the process configuration from environment
// variables, optionally seeded from a .env file.
//
// The configuration is read once at startup and passed explicitly to the
// components that need it:
//
//	config.LoadDotEnv()
//	cfg, err := config.Load(os.LookupEnv)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.Validate(config.ForIngest); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/poiesic/arxivsearch/ai"
	"github.com/poiesic/arxivsearch/arxiv"
	"github.com/poiesic/arxivsearch/core"
	"github.com/poiesic/arxivsearch/ingestion"
)

// Environment keys.
const (
	KeySourcePath       = "ARXIV_SOURCE_PATH"
	KeyBatchSize        = "ARXIV_BATCH_SIZE"
	KeyStore            = "ARXIV_STORE"
	KeyChromaHost       = "ARXIV_CHROMA_HOST"
	KeyChromaPort       = "ARXIV_CHROMA_PORT"
	KeyChromaCollection = "ARXIV_CHROMA_COLLECTION"
	KeyStorePath        = "ARXIV_STORE_PATH"
	KeyStatePath        = "ARXIV_STATE_PATH"
	KeyEmbeddingHost    = "ARXIV_EMBEDDING_HOST"
	KeyEmbeddingModel   = "ARXIV_EMBEDDING_MODEL"
	KeyLLMHost          = "ARXIV_LLM_HOST"
	KeyLLMModel         = "ARXIV_LLM_MODEL"
	KeyAPIToken         = "ARXIV_API_TOKEN"
	KeyMalformed        = "ARXIV_MALFORMED"
	KeyMaxRetries       = "ARXIV_MAX_RETRIES"
	KeyRetryDelay       = "ARXIV_RETRY_DELAY"
	KeyArxivAPIURL      = "ARXIV_API_URL"
)

// StoreKind selects the vector store backend.
type StoreKind string

const (
	StoreChroma StoreKind = "chroma"
	StoreLocal  StoreKind = "local"
)

// Purpose selects which keys Validate requires.
type Purpose int

const (
	// ForQuery covers search, trend, ask, reembed and status.
	ForQuery Purpose = iota
	// ForIngest additionally requires the source path.
	ForIngest
)

// LookupFunc returns the value of an environment key. os.LookupEnv
// satisfies it.
type LookupFunc func(key string) (string, bool)

// Config is the process-wide configuration.
type Config struct {
	SourcePath string
	BatchSize  int

	Store            StoreKind
	ChromaHost       string
	ChromaPort       int
	ChromaCollection string
	StorePath        string // local store directory
	StatePath        string // checkpoints and on-disk document tables

	EmbeddingHost  string
	EmbeddingModel string
	LLMHost        string // defaults to EmbeddingHost
	LLMModel       string
	APIToken       string

	Malformed  ingestion.MalformedPolicy
	MaxRetries int
	RetryDelay time.Duration

	ArxivAPIURL string // live search endpoint
}

// Default returns a Config with every optional value set.
func Default() *Config {
	return &Config{
		BatchSize:        ingestion.DefaultBatchSize,
		Store:            StoreChroma,
		ChromaPort:       8000,
		ChromaCollection: "arxiv",
		StatePath:        "./.arxivsearch",
		LLMModel:         ai.DefaultConfig().ChatModel,
		Malformed:        ingestion.MalformedSkip,
		MaxRetries:       3,
		RetryDelay:       time.Second,
		ArxivAPIURL:      arxiv.DefaultBaseURL,
	}
}

// LoadDotEnv loads .env style files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", path, err)
		}
	}
	return nil
}

// Load reads the configuration through lookup. Values that are present but
// cannot be parsed are reported together; missing required values are left
// for Validate.
func Load(lookup LookupFunc) (*Config, error) {
	cfg := Default()
	r := reader{lookup: lookup}

	cfg.SourcePath = r.str(KeySourcePath, cfg.SourcePath)
	cfg.BatchSize = r.integer(KeyBatchSize, cfg.BatchSize)
	cfg.Store = StoreKind(strings.ToLower(r.str(KeyStore, string(cfg.Store))))
	cfg.ChromaHost = r.str(KeyChromaHost, cfg.ChromaHost)
	cfg.ChromaPort = r.integer(KeyChromaPort, cfg.ChromaPort)
	cfg.ChromaCollection = r.str(KeyChromaCollection, cfg.ChromaCollection)
	cfg.StorePath = r.str(KeyStorePath, cfg.StorePath)
	cfg.StatePath = r.str(KeyStatePath, cfg.StatePath)
	cfg.EmbeddingHost = r.str(KeyEmbeddingHost, cfg.EmbeddingHost)
	cfg.EmbeddingModel = r.str(KeyEmbeddingModel, cfg.EmbeddingModel)
	cfg.LLMHost = r.str(KeyLLMHost, cfg.EmbeddingHost)
	cfg.LLMModel = r.str(KeyLLMModel, cfg.LLMModel)
	cfg.APIToken = r.str(KeyAPIToken, cfg.APIToken)
	cfg.MaxRetries = r.integer(KeyMaxRetries, cfg.MaxRetries)
	cfg.RetryDelay = r.duration(KeyRetryDelay, cfg.RetryDelay)
	cfg.ArxivAPIURL = r.str(KeyArxivAPIURL, cfg.ArxivAPIURL)

	if v, ok := r.value(KeyMalformed); ok {
		policy, err := ingestion.ParseMalformedPolicy(v)
		if err != nil {
			r.fail(KeyMalformed, err)
		} else {
			cfg.Malformed = policy
		}
	}

	if err := r.err(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that every value needed for purpose is present and sane.
// All problems are reported at once, each naming its environment key.
func (c *Config) Validate(purpose Purpose) error {
	var errs []error
	missing := func(key string) {
		errs = append(errs, fmt.Errorf("%s is required", key))
	}

	if purpose == ForIngest && c.SourcePath == "" {
		missing(KeySourcePath)
	}
	if c.EmbeddingHost == "" {
		missing(KeyEmbeddingHost)
	}
	if c.EmbeddingModel == "" {
		missing(KeyEmbeddingModel)
	}
	if c.StatePath == "" {
		missing(KeyStatePath)
	}

	switch c.Store {
	case StoreChroma:
		if c.ChromaHost == "" {
			missing(KeyChromaHost)
		}
		if c.ChromaPort <= 0 || c.ChromaPort > 65535 {
			errs = append(errs, fmt.Errorf("%s must be a TCP port, got %d", KeyChromaPort, c.ChromaPort))
		}
		if c.ChromaCollection == "" {
			missing(KeyChromaCollection)
		}
	case StoreLocal:
		if c.StorePath == "" {
			missing(KeyStorePath)
		}
	default:
		errs = append(errs, fmt.Errorf("%s must be %q or %q, got %q", KeyStore, StoreChroma, StoreLocal, c.Store))
	}

	if c.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("%s must be greater than 0, got %d", KeyBatchSize, c.BatchSize))
	}
	if c.MaxRetries <= 0 {
		errs = append(errs, fmt.Errorf("%s must be greater than 0, got %d", KeyMaxRetries, c.MaxRetries))
	}
	if c.RetryDelay < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative, got %s", KeyRetryDelay, c.RetryDelay))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", core.ErrInvalidConfig, errors.Join(errs...))
}

// AIConfig returns the settings for the embedding and chat services.
func (c *Config) AIConfig() *ai.Config {
	llmHost := c.LLMHost
	if llmHost == "" {
		llmHost = c.EmbeddingHost
	}
	return ai.NewConfig(
		ai.WithEmbeddingHost(c.EmbeddingHost),
		ai.WithEmbeddingModel(c.EmbeddingModel),
		ai.WithChatHost(llmHost),
		ai.WithChatModel(c.LLMModel),
		ai.WithToken(c.APIToken),
	)
}

// RetryPolicy returns the retry policy for embedding and upsert calls.
func (c *Config) RetryPolicy() ingestion.RetryPolicy {
	return ingestion.RetryPolicy{MaxAttempts: c.MaxRetries, BaseDelay: c.RetryDelay}
}

// reader collects parse failures while reading keys.
type reader struct {
	lookup LookupFunc
	errs   []error
}

func (r *reader) value(key string) (string, bool) {
	if r.lookup == nil {
		return "", false
	}
	v, ok := r.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (r *reader) fail(key string, err error) {
	r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
}

func (r *reader) str(key, fallback string) string {
	if v, ok := r.value(key); ok {
		return v
	}
	return fallback
}

func (r *reader) integer(key string, fallback int) int {
	v, ok := r.value(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, fmt.Errorf("not an integer: %q", v))
		return fallback
	}
	return n
}

func (r *reader) duration(key string, fallback time.Duration) time.Duration {
	v, ok := r.value(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(key, fmt.Errorf("not a duration: %q", v))
		return fallback
	}
	return d
}

func (r *reader) err() error {
	if len(r.errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", core.ErrInvalidConfig, errors.Join(r.errs...))
}
