package storage

import (
	"context"

	"github.com/poiesic/arxivsearch/core"
)

// VectorStore holds embedded documents and answers similarity queries.
// Implementations must be thread-safe and support concurrent access.
type VectorStore interface {
	// Heartbeat checks that the store is reachable.
	Heartbeat(ctx context.Context) error

	// Upsert inserts or replaces entries by ID. A call is atomic: either all
	// entries are written or none are.
	Upsert(ctx context.Context, entries ...*core.IndexEntry) error

	// Query returns up to k entries ranked by cosine similarity to vector,
	// highest first, restricted to entries matching filter.
	Query(ctx context.Context, vector []float32, k int, filter Filter) ([]*core.SearchResult, error)

	// Get returns the entries matching filter. IDs that do not exist are
	// silently omitted.
	Get(ctx context.Context, filter Filter) ([]*core.IndexEntry, error)

	// List returns up to limit entries starting at offset in a stable order.
	// It is used to walk the whole store in pages.
	List(ctx context.Context, offset, limit int) ([]*core.IndexEntry, error)

	// Count returns the number of entries in the store.
	Count(ctx context.Context) (int, error)

	// Close releases resources held by the store.
	Close() error
}

// CheckpointRepository persists ingestion progress per source.
type CheckpointRepository interface {
	// SaveCheckpoint persists a checkpoint, setting UpdatedAt.
	SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error

	// LoadCheckpoint retrieves the checkpoint for a source fingerprint.
	// Returns nil, nil if no checkpoint exists.
	LoadCheckpoint(ctx context.Context, source string) (*core.Checkpoint, error)

	// ClearCheckpoint removes the checkpoint for a source fingerprint.
	ClearCheckpoint(ctx context.Context, source string) error

	// ListCheckpoints returns every stored checkpoint.
	ListCheckpoints(ctx context.Context) ([]*core.Checkpoint, error)
}

// DocumentTable holds cleaned documents between cleaning and batching.
//
// Documents are staged in any order, then Seal orders them by year with ties
// broken by staging order and assigns dense OrderIndex values starting at 0.
// Slice may only be called after Seal.
type DocumentTable interface {
	// Stage adds a document. Its OrderIndex is ignored. Staging an id that
	// is already staged returns ErrDuplicateDocument and keeps the first.
	Stage(ctx context.Context, doc core.Document) error

	// Seal fixes the ordering. Staging after Seal returns ErrTableSealed.
	Seal(ctx context.Context) error

	// Len returns the number of staged documents.
	Len() int

	// Slice returns the documents with OrderIndex in [part*size, part*size+size).
	Slice(ctx context.Context, part, size int) ([]core.Document, error)

	// Close releases resources held by the table.
	Close() error
}
