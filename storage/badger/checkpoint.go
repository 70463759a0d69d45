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

package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/arxivsearch/core"
	"github.com/poiesic/arxivsearch/storage"
)

// CheckpointRepository stores one checkpoint per source fingerprint.
type CheckpointRepository struct {
	backend *Backend
}

var _ storage.CheckpointRepository = (*CheckpointRepository)(nil)

// NewCheckpointRepository creates a CheckpointRepository on backend. The
// backend may be shared with a Store or a Table.
func NewCheckpointRepository(backend *Backend) *CheckpointRepository {
	return &CheckpointRepository{backend: backend}
}

// SaveCheckpoint stamps UpdatedAt and replaces the stored checkpoint for
// checkpoint.Source.
func (r *CheckpointRepository) SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error {
	if checkpoint == nil || checkpoint.Source == "" {
		return fmt.Errorf("%w: checkpoint has no source", storage.ErrInvalidCheckpoint)
	}
	if checkpoint.BatchSize <= 0 || checkpoint.LastCommittedPart < core.NoCommittedPart {
		return fmt.Errorf("%w: checkpoint batch size %d, last part %d",
			storage.ErrInvalidCheckpoint, checkpoint.BatchSize, checkpoint.LastCommittedPart)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	checkpoint.UpdatedAt = time.Now().UTC()
	value := storage.MarshalCheckpoint(checkpoint)
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeCheckpointKey(checkpoint.Source), value); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// LoadCheckpoint returns the checkpoint for source, or nil, nil when the
// source has never committed a batch.
func (r *CheckpointRepository) LoadCheckpoint(ctx context.Context, source string) (*core.Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var checkpoint *core.Checkpoint
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeCheckpointKey(source))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		checkpoint, err = readCheckpoint(item)
		return err
	}, false)
	return checkpoint, err
}

// ClearCheckpoint forgets source. Missing checkpoints are not an error.
func (r *CheckpointRepository) ClearCheckpoint(ctx context.Context, source string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Delete(makeCheckpointKey(source)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// ListCheckpoints returns every stored checkpoint ordered by source
// fingerprint.
func (r *CheckpointRepository) ListCheckpoints(ctx context.Context) ([]*core.Checkpoint, error) {
	var checkpoints []*core.Checkpoint
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(checkpointPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			cp, err := readCheckpoint(iter.Item())
			if err != nil {
				return err
			}
			checkpoints = append(checkpoints, cp)
		}
		return nil
	}, false)
	return checkpoints, err
}

func readCheckpoint(item *badger.Item) (*core.Checkpoint, error) {
	var checkpoint *core.Checkpoint
	err := item.Value(func(val []byte) error {
		var unmarshalErr error
		checkpoint, unmarshalErr = storage.UnmarshalCheckpoint(val)
		return unmarshalErr
	})
	return checkpoint, err
}
