package reembed

import (
	"context"
	"fmt"

	"github.com/poiesic/arxivsearch/ai"
	"github.com/poiesic/arxivsearch/core"
	"github.com/poiesic/arxivsearch/ingestion"
	"github.com/poiesic/arxivsearch/storage"
)

// BatchProcessor re-embeds one page of entries and writes it back.
type BatchProcessor struct {
	store    storage.VectorStore
	embedder ai.Embedder
	retry    ingestion.RetryPolicy
}

// NewBatchProcessor creates a new batch processor.
func NewBatchProcessor(store storage.VectorStore, embedder ai.Embedder, retry ingestion.RetryPolicy) *BatchProcessor {
	return &BatchProcessor{
		store:    store,
		embedder: embedder,
		retry:    retry,
	}
}

// Process embeds the stored text of entries and upserts the new vectors.
// Metadata and content hashes are kept as they are.
func (bp *BatchProcessor) Process(ctx context.Context, entries []*core.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}

	texts := make([]string, len(entries))
	for i, entry := range entries {
		texts[i] = entry.RawText
	}

	var embeddings [][]float32
	err := bp.retry.Do(ctx, func() error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return err
		}
		if len(embeddings) != len(entries) {
			return ingestion.Permanent(fmt.Errorf("embedding count mismatch: expected %d, got %d", len(entries), len(embeddings)))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrEmbeddingFailure, err)
	}

	updated := make([]*core.IndexEntry, len(entries))
	for i, entry := range entries {
		e := *entry
		e.Vector = core.NormalizeVector(embeddings[i])
		updated[i] = &e
	}

	if err := bp.store.Upsert(ctx, updated...); err != nil {
		return fmt.Errorf("%w: %w", core.ErrUpsertFailure, err)
	}
	return nil
}
