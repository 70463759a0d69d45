package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/poiesic/arxivsearch/core"
	"github.com/poiesic/arxivsearch/storage"
	"github.com/poiesic/arxivsearch/storage/badger"
	"github.com/stretchr/testify/require"
)

// recordLine renders one source line.
func recordLine(t *testing.T, id, title, abstract, created string) string {
	t.Helper()
	rec := map[string]any{
		"id":       id,
		"title":    title,
		"abstract": abstract,
		"authors":  []string{"A. Author", "B. Author"},
		"versions": []map[string]string{{"version": "v1", "created": created}},
	}
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	return string(data)
}

// writeSource writes lines to a temp file and returns its path.
func writeSource(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "metadata.json")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

// corpus writes n records from the same year with ids p00, p01, ...
func corpus(t *testing.T, n int) string {
	t.Helper()
	lines := make([]string, n)
	for i := range lines {
		id := fmt.Sprintf("p%02d", i)
		lines[i] = recordLine(t, id, "Title "+id, "Abstract about topic "+id, "Mon, 2 Apr 2007 19:18:42 GMT")
	}
	return writeSource(t, lines...)
}

// recordingStore wraps a real store and records upserts.
type recordingStore struct {
	storage.VectorStore

	heartbeatErr error
	failUpsertOn int // 1-based upsert call that fails, 0 for never

	mu      sync.Mutex
	calls   int
	upserts [][]string
}

func newRecordingStore(t *testing.T) *recordingStore {
	t.Helper()
	store, backend, err := badger.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	return &recordingStore{VectorStore: store}
}

func (s *recordingStore) Heartbeat(ctx context.Context) error {
	if s.heartbeatErr != nil {
		return s.heartbeatErr
	}
	return s.VectorStore.Heartbeat(ctx)
}

func (s *recordingStore) Upsert(ctx context.Context, entries ...*core.IndexEntry) error {
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.mu.Unlock()

	if call == s.failUpsertOn {
		return errors.New("store write rejected")
	}
	if err := s.VectorStore.Upsert(ctx, entries...); err != nil {
		return err
	}

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	s.mu.Lock()
	s.upserts = append(s.upserts, ids)
	s.mu.Unlock()
	return nil
}

func (s *recordingStore) Upserts() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]string(nil), s.upserts...)
}

// memoryCheckpoints is a CheckpointRepository backed by a map.
type memoryCheckpoints struct {
	mu    sync.Mutex
	saved map[string]core.Checkpoint
}

func newMemoryCheckpoints() *memoryCheckpoints {
	return &memoryCheckpoints{saved: make(map[string]core.Checkpoint)}
}

func (m *memoryCheckpoints) SaveCheckpoint(ctx context.Context, cp *core.Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved[cp.Source] = *cp
	return nil
}

func (m *memoryCheckpoints) LoadCheckpoint(ctx context.Context, source string) (*core.Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp, ok := m.saved[source]
	if !ok {
		return nil, nil
	}
	return &cp, nil
}

func (m *memoryCheckpoints) ClearCheckpoint(ctx context.Context, source string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.saved, source)
	return nil
}

func (m *memoryCheckpoints) ListCheckpoints(ctx context.Context) ([]*core.Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*core.Checkpoint
	for _, cp := range m.saved {
		out = append(out, &cp)
	}
	return out, nil
}
