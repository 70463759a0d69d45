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
package reembed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/arxivsearch/ai"
	"github.com/poiesic/arxivsearch/core"
	"github.com/poiesic/arxivsearch/ingestion"
	"github.com/poiesic/arxivsearch/storage"
)

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of entries to process in each batch
	BatchSize int

	// ReportInterval is how often to report progress (number of entries)
	ReportInterval int

	// MaxRetries is the maximum number of retry attempts for failed operations
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Result summarizes a reembedding run.
type Result struct {
	Entries  int
	Batches  int
	Duration time.Duration
}

// Reembedder re-embeds every entry in a vector store.
type Reembedder struct {
	store     storage.VectorStore
	config    *Config
	progress  io.Writer
	logger    *slog.Logger
	processor *BatchProcessor
	iterator  *EntryIterator
}

// NewReembedder creates a new reembedder.
// progress: where to write progress output (typically os.Stderr)
func NewReembedder(store storage.VectorStore, embedder ai.Embedder, config *Config, progress io.Writer) (*Reembedder, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}

	retry := ingestion.RetryPolicy{MaxAttempts: max(config.MaxRetries, 1), BaseDelay: config.RetryDelay}

	return &Reembedder{
		store:     store,
		config:    config,
		progress:  progress,
		logger:    slog.Default().With("component", "reembed"),
		processor: NewBatchProcessor(store, embedder, retry),
		iterator:  NewEntryIterator(store, config.BatchSize),
	}, nil
}

// Run re-embeds every entry in the store.
// Progress is reported to the configured writer.
func (r *Reembedder) Run(ctx context.Context) (Result, error) {
	var result Result

	total, err := r.store.Count(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to count entries: %w", err)
	}

	if total == 0 {
		fmt.Fprintf(r.progress, "No entries found in store (0 entries)\n")
		return result, nil
	}

	fmt.Fprintf(r.progress, "Starting reembedding of %d entries (batch size: %d)\n",
		total, r.iterator.batchSize)
	r.logger.Info("reembedding started", "entries", total, "batch_size", r.iterator.batchSize)

	tracker := ingestion.NewProgressTracker(r.progress, total, max(r.config.ReportInterval, 1)).WithUnit("entries")
	tracker.Start()

	err = r.iterator.ForEach(ctx, func(entries []*core.IndexEntry) error {
		if err := r.processor.Process(ctx, entries); err != nil {
			return fmt.Errorf("failed to process batch %d: %w", result.Batches, err)
		}

		result.Entries += len(entries)
		result.Batches++
		tracker.Update(result.Entries)
		return nil
	})
	if err != nil {
		r.logger.Error("reembedding failed", "batch", result.Batches, "err", err)
		return result, err
	}

	tracker.Finish()

	result.Duration = tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reembedding complete. Processed %d entries in %v (%.1f entries/sec)\n",
		result.Entries, result.Duration.Round(time.Second), float64(result.Entries)/result.Duration.Seconds())
	r.logger.Info("reembedding complete", "entries", result.Entries, "batches", result.Batches)

	return result, nil
}
