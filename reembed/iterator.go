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

	"github.com/poiesic/arxivsearch/core"
	"github.com/poiesic/arxivsearch/storage"
)

const (
	// DefaultBatchSize is the default number of entries to fetch in each batch
	DefaultBatchSize = 100
)

// EntryIterator walks every entry of a store in pages.
type EntryIterator struct {
	store     storage.VectorStore
	batchSize int
}

// NewEntryIterator creates a new entry iterator.
// batchSize: number of entries to fetch in each page (must be > 0)
func NewEntryIterator(store storage.VectorStore, batchSize int) *EntryIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &EntryIterator{
		store:     store,
		batchSize: batchSize,
	}
}

// ForEach calls fn for each page of entries in store order.
// Iteration stops on first error from fn or when a short page is returned.
// Context cancellation is checked between pages.
func (it *EntryIterator) ForEach(ctx context.Context, fn func([]*core.IndexEntry) error) error {
	for offset := 0; ; offset += it.batchSize {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		page, err := it.store.List(ctx, offset, it.batchSize)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			return nil
		}

		if err := fn(page); err != nil {
			return err
		}

		if len(page) < it.batchSize {
			return nil
		}
	}
}
