// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package arxivsearch wires configuration, vector store, checkpoints and AI
// services into ready-to-use ingestion and search components.
package arxivsearch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/poiesic/arxivsearch/ai"
	"github.com/poiesic/arxivsearch/ai/openai"
	"github.com/poiesic/arxivsearch/config"
	"github.com/poiesic/arxivsearch/core"
	"github.com/poiesic/arxivsearch/ingestion"
	"github.com/poiesic/arxivsearch/reembed"
	"github.com/poiesic/arxivsearch/search"
	"github.com/poiesic/arxivsearch/storage"
	"github.com/poiesic/arxivsearch/storage/badger"
	"github.com/poiesic/arxivsearch/storage/chroma"
)

type App struct {
	config         *config.Config
	state          *badger.Backend
	store          storage.VectorStore
	checkpointRepo storage.CheckpointRepository
	provider       ai.AIProvider
	logger         *slog.Logger
}

// AppOption configures an App.
type AppOption func(*appOptions)

type appOptions struct {
	provider ai.AIProvider
	store    storage.VectorStore
	logger   *slog.Logger
}

// WithProvider uses provider instead of the OpenAI-compatible services
// described by the configuration.
func WithProvider(provider ai.AIProvider) AppOption {
	return func(o *appOptions) {
		o.provider = provider
	}
}

// WithStore uses store instead of opening the configured backend.
// The App closes it on Close.
func WithStore(store storage.VectorStore) AppOption {
	return func(o *appOptions) {
		o.store = store
	}
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) AppOption {
	return func(o *appOptions) {
		o.logger = logger
	}
}

// NewApp opens the state directory, the vector store and the AI provider
// described by cfg. cfg is expected to be validated by the caller.
func NewApp(cfg *config.Config, opts ...AppOption) (*App, error) {
	options := &appOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}
	logger := options.logger

	// Open state backend
	state, err := badger.OpenBackend(cfg.StatePath, false, badger.WithBackendLogger(logger))
	if err != nil {
		return nil, err
	}

	// Open vector store
	store := options.store
	if store == nil {
		store, err = openStore(cfg, state, logger)
		if err != nil {
			state.Close()
			return nil, err
		}
	}

	// Create AI provider with configured settings
	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(cfg.AIConfig())
		if err != nil {
			store.Close()
			state.Close()
			return nil, err
		}
	}

	return &App{
		config:         cfg,
		state:          state,
		store:          store,
		checkpointRepo: badger.NewCheckpointRepository(state),
		provider:       provider,
		logger:         logger,
	}, nil
}

// openStore opens the configured vector store. A local store in the state
// directory shares the state backend, since BadgerDB allows one owner per
// directory.
func openStore(cfg *config.Config, state *badger.Backend, logger *slog.Logger) (storage.VectorStore, error) {
	switch cfg.Store {
	case config.StoreLocal:
		if samePath(cfg.StorePath, cfg.StatePath) {
			return badger.NewStore(state), nil
		}
		return badger.OpenStore(cfg.StorePath, badger.WithBackendLogger(logger))
	case config.StoreChroma:
		client := chroma.NewClient(
			chroma.BaseURL(cfg.ChromaHost, cfg.ChromaPort),
			cfg.ChromaCollection,
			chroma.WithLogger(logger),
		)
		return chroma.NewStore(client), nil
	default:
		return nil, fmt.Errorf("%w: unknown store %q", core.ErrInvalidConfig, cfg.Store)
	}
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

func (a *App) Close() error {
	var errs []error

	// Close AI provider first
	if err := a.provider.Close(); err != nil {
		a.logger.Error("error closing AI provider", "err", err)
		errs = append(errs, err)
	}

	if err := a.store.Close(); err != nil {
		a.logger.Error("error closing vector store", "err", err)
		errs = append(errs, err)
	}

	// Close backend
	if err := a.state.Close(); err != nil {
		a.logger.Error("error closing state storage", "err", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *App) Config() *config.Config {
	return a.config
}

func (a *App) Store() storage.VectorStore {
	return a.store
}

func (a *App) CheckpointRepository() storage.CheckpointRepository {
	return a.checkpointRepo
}

func (a *App) Provider() ai.AIProvider {
	return a.provider
}

// DiskTables returns a table factory that stages documents in the state
// backend instead of memory.
func (a *App) DiskTables() ingestion.TableFactory {
	return func() (storage.DocumentTable, error) {
		return badger.NewTable(a.state)
	}
}

// NewDriver creates an ingestion driver for the configured source. opts are
// applied after the configured batch size, retry and malformed policies.
func (a *App) NewDriver(opts ...ingestion.Option) (*ingestion.Driver, error) {
	base := []ingestion.Option{
		ingestion.WithLogger(a.logger),
		ingestion.WithBatchSize(a.config.BatchSize),
		ingestion.WithRetryPolicy(a.config.RetryPolicy()),
		ingestion.WithMalformedPolicy(a.config.Malformed),
		ingestion.WithCheckpoints(a.checkpointRepo),
	}
	return ingestion.NewDriver(a.store, a.provider.Embedder(), a.config.SourcePath, append(base, opts...)...)
}

// Checkpoint returns the stored checkpoint for the configured source, or
// nil when no batch has been committed.
func (a *App) Checkpoint(ctx context.Context) (*core.Checkpoint, error) {
	return a.checkpointRepo.LoadCheckpoint(ctx, ingestion.SourceKey(a.config.SourcePath))
}

// Checkpoints returns the checkpoints of every source ingested into the
// state directory.
func (a *App) Checkpoints(ctx context.Context) ([]*core.Checkpoint, error) {
	return a.checkpointRepo.ListCheckpoints(ctx)
}

// ClearCheckpoint forgets ingestion progress for the configured source.
func (a *App) ClearCheckpoint(ctx context.Context) error {
	return a.checkpointRepo.ClearCheckpoint(ctx, ingestion.SourceKey(a.config.SourcePath))
}

func (a *App) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	base := []search.Option{search.WithLogger(a.logger)}
	return search.NewSearcher(a.store, a.provider.Embedder(), append(base, opts...)...)
}

func (a *App) NewAnswerer() (*search.Answerer, error) {
	searcher, err := a.NewSearcher()
	if err != nil {
		return nil, err
	}
	return search.NewAnswerer(searcher, a.provider.ChatModel())
}

// NewReembedder creates a reembedder over the whole store. A nil config
// uses the configured retry settings with default batch sizes.
func (a *App) NewReembedder(cfg *reembed.Config, progress io.Writer) (*reembed.Reembedder, error) {
	if cfg == nil {
		cfg = reembed.DefaultConfig()
		cfg.MaxRetries = a.config.MaxRetries
		cfg.RetryDelay = a.config.RetryDelay
	}
	return reembed.NewReembedder(a.store, a.provider.Embedder(), cfg, progress)
}
