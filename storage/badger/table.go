package badger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/arxivsearch/core"
	"github.com/poiesic/arxivsearch/storage"
)

// Table implements storage.DocumentTable on BadgerDB so that bulk sources
// do not have to fit in memory. Staged documents are keyed by (year, seq);
// Seal rewrites them under dense order keys. Staged ids are kept as keys too,
// so duplicate detection does not grow the heap with the corpus.
type Table struct {
	backend *Backend
	seq     *badger.Sequence
	staged  *badger.WriteBatch

	mu      sync.Mutex
	count   int
	flushed bool
	sealed  bool
}

var _ storage.DocumentTable = (*Table)(nil)

// NewTable creates an empty document table on backend, discarding any
// documents left by a previous run.
func NewTable(backend *Backend) (storage.DocumentTable, error) {
	if err := backend.DropPrefix(docStagePrefix); err != nil {
		return nil, err
	}
	if err := backend.DropPrefix(docOrderPrefix); err != nil {
		return nil, err
	}
	if err := backend.DropPrefix(docIDPrefix); err != nil {
		return nil, err
	}
	seq, err := backend.GetSequence(docSeq)
	if err != nil {
		return nil, err
	}
	return &Table{backend: backend, seq: seq, staged: backend.db.NewWriteBatch()}, nil
}

// Stage buffers doc under its staging key. Buffered writes are flushed by
// Seal. The id marker is written immediately so later duplicates see it.
func (t *Table) Stage(ctx context.Context, doc core.Document) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sealed || t.flushed {
		return storage.ErrTableSealed
	}
	if err := t.markStaged(doc.ID); err != nil {
		return err
	}

	n, err := t.seq.Next()
	if err != nil {
		return err
	}
	doc.OrderIndex = 0
	if err := t.staged.Set(makeDocStageKey(doc.Year, n), storage.MarshalDocument(&doc)); err != nil {
		return err
	}
	t.count++
	return nil
}

// Seal walks the staging keys in order, assigns dense order indexes and
// drops the staging keys.
func (t *Table) Seal(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sealed {
		return nil
	}

	if !t.flushed {
		t.flushed = true
		if err := t.staged.Flush(); err != nil {
			return fmt.Errorf("sealing document table: %w", err)
		}
	}

	index := 0
	err := t.backend.WithWriteBatch(func(wb *badger.WriteBatch) error {
		return t.backend.WithTx(func(tx *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = []byte(docStagePrefix + ":")
			iter := tx.NewIterator(opts)
			defer iter.Close()

			for iter.Rewind(); iter.Valid(); iter.Next() {
				if err := ctx.Err(); err != nil {
					return err
				}
				var doc *core.Document
				err := iter.Item().Value(func(val []byte) error {
					var unmarshalErr error
					doc, unmarshalErr = storage.UnmarshalDocument(val)
					return unmarshalErr
				})
				if err != nil {
					return err
				}
				doc.OrderIndex = index
				if err := wb.Set(makeDocOrderKey(index), storage.MarshalDocument(doc)); err != nil {
					return err
				}
				index++
			}
			return nil
		}, false)
	})
	if err != nil {
		return fmt.Errorf("sealing document table: %w", err)
	}
	if index != t.count {
		return fmt.Errorf("sealing document table: staged %d documents, sealed %d", t.count, index)
	}
	if err := t.backend.DropPrefix(docStagePrefix); err != nil {
		return err
	}
	if err := t.backend.DropPrefix(docIDPrefix); err != nil {
		return err
	}
	t.sealed = true
	return nil
}

// markStaged records id, failing with ErrDuplicateDocument if it is
// already present.
func (t *Table) markStaged(id string) error {
	return t.backend.WithTx(func(tx *badger.Txn) error {
		key := makeDocIDKey(id)
		_, err := tx.Get(key)
		if err == nil {
			return storage.ErrDuplicateDocument
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := tx.Set(key, nil); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Len returns the number of staged documents.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// Slice reads the documents for one part with a key range scan.
func (t *Table) Slice(ctx context.Context, part, size int) ([]core.Document, error) {
	t.mu.Lock()
	sealed, count := t.sealed, t.count
	t.mu.Unlock()
	if !sealed {
		return nil, storage.ErrTableNotSealed
	}
	if part < 0 || size <= 0 {
		return nil, fmt.Errorf("%w: part %d size %d", storage.ErrInvalidQuery, part, size)
	}

	start := part * size
	if start >= count {
		return nil, nil
	}
	end := min(start+size, count)

	docs := make([]core.Document, 0, end-start)
	err := t.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(docOrderPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(makeDocOrderKey(start)); iter.Valid() && len(docs) < end-start; iter.Next() {
			var doc *core.Document
			err := iter.Item().Value(func(val []byte) error {
				var unmarshalErr error
				doc, unmarshalErr = storage.UnmarshalDocument(val)
				return unmarshalErr
			})
			if err != nil {
				return err
			}
			docs = append(docs, *doc)
		}
		return ctx.Err()
	}, false)

	if err != nil {
		return nil, err
	}
	return docs, nil
}

// Close releases the staging sequence and drops the table's keys.
func (t *Table) Close() error {
	t.mu.Lock()
	if !t.flushed {
		t.flushed = true
		t.staged.Cancel()
	}
	t.mu.Unlock()
	if err := t.seq.Release(); err != nil {
		return err
	}
	if t.backend.IsClosed() {
		return nil
	}
	if err := t.backend.DropPrefix(docStagePrefix); err != nil {
		return err
	}
	if err := t.backend.DropPrefix(docIDPrefix); err != nil {
		return err
	}
	return t.backend.DropPrefix(docOrderPrefix)
}
