package badger

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/arxivsearch/core"
	"github.com/poiesic/arxivsearch/storage"
)

// Store implements storage.VectorStore on a local BadgerDB.
// Vectors are normalized on write so a dot product is the cosine similarity.
type Store struct {
	backend *Backend
	owned   bool
}

var _ storage.VectorStore = (*Store)(nil)

// NewStore creates a vector store on an existing backend.
// The caller keeps ownership of the backend.
func NewStore(backend *Backend) storage.VectorStore {
	return &Store{backend: backend}
}

// OpenStore opens a backend at path and returns a store that closes it on Close.
func OpenStore(path string, opts ...BackendOption) (storage.VectorStore, error) {
	backend, err := OpenBackend(path, false, opts...)
	if err != nil {
		return nil, err
	}
	return &Store{backend: backend, owned: true}, nil
}

// Heartbeat reports ErrStorageClosed once the backend is closed.
func (s *Store) Heartbeat(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return nil
}

// Upsert inserts or replaces entries in a single transaction.
func (s *Store) Upsert(ctx context.Context, entries ...*core.IndexEntry) error {
	for _, entry := range entries {
		if err := core.ValidateIndexEntry(entry); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.backend.WithTx(func(tx *badger.Txn) error {
		for _, entry := range entries {
			key := makeEntryKey(entry.ID)

			old, err := readEntry(tx, key)
			if err != nil {
				return err
			}

			// Drop the stale year index if the year changed
			if old != nil && old.Metadata.Year != entry.Metadata.Year {
				if err := tx.Delete(makeEntryYearKey(old.Metadata.Year, old.ID)); err != nil {
					return err
				}
			}

			stored := *entry
			stored.Vector = core.NormalizeVector(entry.Vector)
			if err := tx.Set(key, storage.MarshalIndexEntry(&stored)); err != nil {
				return err
			}
			if err := tx.Set(makeEntryYearKey(entry.Metadata.Year, entry.ID), nil); err != nil {
				return err
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("%w: %w", storage.ErrTransactionFailed, err)
		}
		return nil
	}, true)
}

// Query scores every matching entry against vector and returns the top k.
func (s *Store) Query(ctx context.Context, vector []float32, k int, filter storage.Filter) ([]*core.SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", storage.ErrInvalidQuery, k)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", storage.ErrInvalidQuery)
	}
	query := core.NormalizeVector(vector)

	var results []*core.SearchResult
	score := func(entry *core.IndexEntry) {
		results = append(results, &core.SearchResult{
			Entry: entry,
			Score: core.Dot(query, entry.Vector),
		})
	}

	if filter.IsEmpty() {
		err := s.backend.WithTx(func(tx *badger.Txn) error {
			return scanEntries(ctx, tx, func(entry *core.IndexEntry) (bool, error) {
				score(entry)
				return true, nil
			})
		}, false)
		if err != nil {
			return nil, err
		}
	} else {
		entries, err := s.Get(ctx, filter)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			score(entry)
		}
	}

	// Sort by similarity descending, ID ascending for ties
	slices.SortFunc(results, func(a, b *core.SearchResult) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		if a.Entry.ID < b.Entry.ID {
			return -1
		}
		if a.Entry.ID > b.Entry.ID {
			return 1
		}
		return 0
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Get returns entries matching filter. An empty filter returns every entry.
func (s *Store) Get(ctx context.Context, filter storage.Filter) ([]*core.IndexEntry, error) {
	var entries []*core.IndexEntry

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		switch {
		case len(filter.IDs) > 0:
			for _, id := range filter.IDs {
				entry, err := readEntry(tx, makeEntryKey(id))
				if err != nil {
					return err
				}
				if entry != nil && filter.Matches(entry) {
					entries = append(entries, entry)
				}
			}
			return nil

		case len(filter.Years) > 0:
			for _, year := range filter.Years {
				ids, err := idsForYear(ctx, tx, year)
				if err != nil {
					return err
				}
				for _, id := range ids {
					entry, err := readEntry(tx, makeEntryKey(id))
					if err != nil {
						return err
					}
					if entry != nil {
						entries = append(entries, entry)
					}
				}
			}
			return nil

		default:
			return scanEntries(ctx, tx, func(entry *core.IndexEntry) (bool, error) {
				entries = append(entries, entry)
				return true, nil
			})
		}
	}, false)

	if err != nil {
		return nil, err
	}
	return entries, nil
}

// List returns up to limit entries in ID order starting at offset.
func (s *Store) List(ctx context.Context, offset, limit int) ([]*core.IndexEntry, error) {
	if offset < 0 || limit <= 0 {
		return nil, fmt.Errorf("%w: offset %d limit %d", storage.ErrInvalidQuery, offset, limit)
	}

	entries := make([]*core.IndexEntry, 0, limit)
	skipped := 0
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		return scanEntries(ctx, tx, func(entry *core.IndexEntry) (bool, error) {
			if skipped < offset {
				skipped++
				return true, nil
			}
			entries = append(entries, entry)
			return len(entries) < limit, nil
		})
	}, false)

	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Count returns the number of stored entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	count := 0
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(entryPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return ctx.Err()
	}, false)
	return count, err
}

// Close closes the backend if the store opened it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.backend.Close()
}

// readEntry reads an entry by key. Returns nil, nil if it does not exist.
func readEntry(tx *badger.Txn, key []byte) (*core.IndexEntry, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var entry *core.IndexEntry
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		entry, unmarshalErr = storage.UnmarshalIndexEntry(val)
		return unmarshalErr
	})
	return entry, err
}

// scanEntries visits every entry in key order until fn returns false.
func scanEntries(ctx context.Context, tx *badger.Txn, fn func(*core.IndexEntry) (bool, error)) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(entryPrefix + ":")
	iter := tx.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		var entry *core.IndexEntry
		err := iter.Item().Value(func(val []byte) error {
			var unmarshalErr error
			entry, unmarshalErr = storage.UnmarshalIndexEntry(val)
			return unmarshalErr
		})
		if err != nil {
			return err
		}
		more, err := fn(entry)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
	return nil
}

// idsForYear returns the IDs in the year index for year.
func idsForYear(ctx context.Context, tx *badger.Txn, year string) ([]string, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = makePartialEntryYearKey(year)
	iter := tx.NewIterator(opts)
	defer iter.Close()

	var ids []string
	for iter.Rewind(); iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ids = append(ids, idFromYearKey(iter.Item().KeyCopy(nil), year))
	}
	return ids, nil
}
