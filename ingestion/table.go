package ingestion

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/poiesic/arxivsearch/core"
	"github.com/poiesic/arxivsearch/storage"
)

// MemoryTable is a DocumentTable backed by a slice.
type MemoryTable struct {
	mu     sync.RWMutex
	docs   []core.Document
	ids    map[string]struct{}
	sealed bool
}

var _ storage.DocumentTable = (*MemoryTable)(nil)

// NewMemoryTable creates an empty table.
func NewMemoryTable() *MemoryTable {
	return &MemoryTable{ids: make(map[string]struct{})}
}

// Stage appends doc unless its id is already staged.
func (t *MemoryTable) Stage(ctx context.Context, doc core.Document) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sealed {
		return storage.ErrTableSealed
	}
	if _, dup := t.ids[doc.ID]; dup {
		return storage.ErrDuplicateDocument
	}
	t.ids[doc.ID] = struct{}{}
	t.docs = append(t.docs, doc)
	return nil
}

// Seal sorts by year keeping staging order within a year.
func (t *MemoryTable) Seal(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sealed {
		return nil
	}
	slices.SortStableFunc(t.docs, func(a, b core.Document) int {
		return strings.Compare(a.Year, b.Year)
	})
	for i := range t.docs {
		t.docs[i].OrderIndex = i
	}
	t.sealed = true
	return nil
}

// Len returns the number of staged documents.
func (t *MemoryTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.docs)
}

// Slice returns a copy of one part.
func (t *MemoryTable) Slice(ctx context.Context, part, size int) ([]core.Document, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if !t.sealed {
		return nil, storage.ErrTableNotSealed
	}
	return Batch(t.docs, part, size), nil
}

// Documents returns a copy of all documents in order.
func (t *MemoryTable) Documents() []core.Document {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.docs)
}

// Close drops the documents.
func (t *MemoryTable) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.docs = nil
	t.ids = nil
	return nil
}
