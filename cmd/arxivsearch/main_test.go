package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/poiesic/arxivsearch"
	"github.com/poiesic/arxivsearch/ai/mock"
	"github.com/poiesic/arxivsearch/config"
	"github.com/poiesic/arxivsearch/core"
	"github.com/poiesic/arxivsearch/ingestion"
	"github.com/poiesic/arxivsearch/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testEnv is a runner wired to a local store and mock AI services.
type testEnv struct {
	env      map[string]string
	embedder *mock.MockEmbedder
	stdout   bytes.Buffer
	stderr   bytes.Buffer
	options  []arxivsearch.AppOption
}

// newTestEnv writes five documents, all from 2007, so that a batch size of
// 2 yields batches of sizes 2, 2 and 1.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	source := filepath.Join(dir, "arxiv-metadata.json")

	var lines []string
	for i := range 5 {
		lines = append(lines, fmt.Sprintf(
			`{"id":"0704.%04d","title":"Paper %d on graphs","abstract":"Abstract number %d.","authors":"A. Author, B. Author","versions":[{"version":"v1","created":"Mon, 2 Apr 2007 19:18:42 GMT"}]}`,
			i, i, i))
	}
	require.NoError(t, os.WriteFile(source, []byte(strings.Join(lines, "\n")+"\n"), 0o644))

	state := filepath.Join(dir, "state")
	return &testEnv{
		env: map[string]string{
			config.KeySourcePath:     source,
			config.KeyBatchSize:      "2",
			config.KeyStore:          "local",
			config.KeyStorePath:      state,
			config.KeyStatePath:      state,
			config.KeyEmbeddingHost:  "http://localhost:11434/v1",
			config.KeyEmbeddingModel: "mock",
			config.KeyRetryDelay:     "1ms",
		},
		embedder: mock.NewMockEmbedder(),
	}
}

func (e *testEnv) run(t *testing.T, args ...string) int {
	t.Helper()
	e.stdout.Reset()
	e.stderr.Reset()

	opts := append([]arxivsearch.AppOption{
		arxivsearch.WithProvider(mock.NewMockProviderWithServices(e.embedder, mock.NewMockChatModel())),
	}, e.options...)
	r := &runner{
		lookup: func(key string) (string, bool) {
			v, ok := e.env[key]
			return v, ok
		},
		stdout:     &e.stdout,
		stderr:     &e.stderr,
		appOptions: opts,
	}
	envFile := filepath.Join(t.TempDir(), "missing.env")
	full := append([]string{"arxivsearch", "--env-file", envFile, "--log-level", "warn"}, args...)
	return r.run(full)
}

// embeddedBatches returns the number of texts in each embedding call.
func (e *testEnv) embeddedBatches() []int {
	var sizes []int
	for _, batch := range e.embedder.Batches() {
		sizes = append(sizes, len(batch))
	}
	return sizes
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want ingestion.Range
	}{
		{"no arguments", nil, ingestion.All()},
		{"one argument", []string{"3"}, ingestion.Single(3)},
		{"two arguments", []string{"1", "3"}, ingestion.Span(1, 3)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRange(tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, args := range [][]string{{"1", "2", "3"}, {"x"}, {"1", "two"}, {"-1"}} {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			_, err := parseRange(args)
			assert.ErrorIs(t, err, core.ErrUsage)
		})
	}
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitOK, exitCode(nil))
	assert.Equal(t, ExitUsage, exitCode(fmt.Errorf("%w: too many", core.ErrUsage)))
	assert.Equal(t, ExitStoreUnreachable, exitCode(fmt.Errorf("%w: refused", core.ErrStoreUnreachable)))
	assert.Equal(t, ExitSourceNotFound, exitCode(fmt.Errorf("%w: /nope", core.ErrSourceNotFound)))
	assert.Equal(t, ExitBatchFailure, exitCode(&ingestion.BatchError{Part: 2, Stage: ingestion.StageEmbedding, Err: errors.New("boom")}))
	assert.Equal(t, ExitError, exitCode(errors.New("other")))
}

func TestIngest_AllBatches(t *testing.T) {
	e := newTestEnv(t)

	code := e.run(t, "ingest")
	require.Equal(t, ExitOK, code, e.stderr.String())
	assert.Equal(t, []int{2, 2, 1}, e.embeddedBatches())
	assert.Contains(t, e.stdout.String(), "[0, 3) of 3")

	code = e.run(t, "status")
	require.Equal(t, ExitOK, code, e.stderr.String())
	assert.Contains(t, e.stdout.String(), "entries     5")
	assert.Contains(t, e.stdout.String(), "batch 2 of 3 committed")
}

func TestStatus_AllSources(t *testing.T) {
	e := newTestEnv(t)
	source := e.env[config.KeySourcePath]
	require.Equal(t, ExitOK, e.run(t, "ingest", "0"))

	delete(e.env, config.KeySourcePath)
	code := e.run(t, "status")
	require.Equal(t, ExitOK, code, e.stderr.String())
	assert.Contains(t, e.stdout.String(), "checkpoint "+ingestion.SourceKey(source))
	assert.Contains(t, e.stdout.String(), "batch 0 of 3 committed")

	assert.Equal(t, ExitUsage, e.run(t, "status", "--reset"))
}

func TestIngest_HalfOpenRange(t *testing.T) {
	e := newTestEnv(t)

	code := e.run(t, "ingest", "1", "3")
	require.Equal(t, ExitOK, code, e.stderr.String())

	batches := e.embedder.Batches()
	require.Len(t, batches, 2)
	assert.Len(t, batches[0], 2)
	assert.Len(t, batches[1], 1)
	assert.Contains(t, e.stdout.String(), "committed          2")
}

func TestIngest_SingleBatchOnDisk(t *testing.T) {
	e := newTestEnv(t)

	code := e.run(t, "ingest", "--on-disk", "--pipelined", "0")
	require.Equal(t, ExitOK, code, e.stderr.String())
	assert.Equal(t, []int{2}, e.embeddedBatches())
}

func TestIngest_Resume(t *testing.T) {
	e := newTestEnv(t)

	require.Equal(t, ExitOK, e.run(t, "ingest", "0"))
	e.embedder.Reset()

	code := e.run(t, "ingest", "--resume")
	require.Equal(t, ExitOK, code, e.stderr.String())
	assert.Equal(t, []int{2, 1}, e.embeddedBatches())
}

func TestIngest_UsageErrorHasNoSideEffects(t *testing.T) {
	e := newTestEnv(t)

	code := e.run(t, "ingest", "1", "2", "3")
	assert.Equal(t, ExitUsage, code)
	assert.Contains(t, e.stderr.String(), "at most 2 arguments")
	assert.Zero(t, e.embedder.CallCount())

	_, err := os.Stat(e.env[config.KeyStatePath])
	assert.True(t, os.IsNotExist(err), "state directory should not be created")

	assert.Equal(t, ExitUsage, e.run(t, "ingest", "--resume", "1"))
	assert.Equal(t, ExitUsage, e.run(t, "ingest", "--no-such-flag"))
}

// unreachableStore fails every heartbeat.
type unreachableStore struct {
	storage.VectorStore
}

func (unreachableStore) Heartbeat(context.Context) error { return errors.New("connection refused") }
func (unreachableStore) Close() error                    { return nil }

func TestIngest_StoreUnreachable(t *testing.T) {
	e := newTestEnv(t)
	e.env[config.KeySourcePath] = filepath.Join(t.TempDir(), "never-read.json")
	e.options = []arxivsearch.AppOption{arxivsearch.WithStore(unreachableStore{})}

	code := e.run(t, "ingest")
	assert.Equal(t, ExitStoreUnreachable, code)
	assert.Contains(t, e.stderr.String(), "unreachable")
	assert.NotContains(t, e.stderr.String(), "source not found")
}

func TestIngest_SourceNotFound(t *testing.T) {
	e := newTestEnv(t)
	e.env[config.KeySourcePath] = filepath.Join(t.TempDir(), "missing.json")

	assert.Equal(t, ExitSourceNotFound, e.run(t, "ingest"))
}

func TestIngest_BatchFailure(t *testing.T) {
	e := newTestEnv(t)
	calls := 0
	e.embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		calls++
		if calls > 1 {
			return nil, errors.New("model overloaded")
		}
		out := make([][]float32, len(texts))
		for i := range out {
			out[i] = []float32{1, 0, 0}
		}
		return out, nil
	}

	code := e.run(t, "ingest")
	assert.Equal(t, ExitBatchFailure, code)
	assert.Contains(t, e.stderr.String(), "batch 1 failed while embedding")
	assert.Contains(t, e.stderr.String(), "arxivsearch ingest 1 END")
	assert.Contains(t, e.stdout.String(), "committed          1")
}

func TestIngest_MissingConfig(t *testing.T) {
	e := newTestEnv(t)
	delete(e.env, config.KeyEmbeddingModel)
	delete(e.env, config.KeySourcePath)

	code := e.run(t, "ingest")
	assert.Equal(t, ExitError, code)
	assert.Contains(t, e.stderr.String(), config.KeyEmbeddingModel)
	assert.Contains(t, e.stderr.String(), config.KeySourcePath)
}

func TestSearchTrendAsk(t *testing.T) {
	e := newTestEnv(t)
	require.Equal(t, ExitOK, e.run(t, "ingest"))

	code := e.run(t, "search", "-k", "2", "--year", "2007", "paper", "on", "graphs")
	require.Equal(t, ExitOK, code, e.stderr.String())
	assert.Contains(t, e.stdout.String(), "Found 2 hits")
	assert.Contains(t, e.stdout.String(), "A. Author, B. Author")

	assert.Equal(t, ExitUsage, e.run(t, "search", "--year", "07", "graphs"))
	assert.Equal(t, ExitUsage, e.run(t, "search"))

	code = e.run(t, "trend", "--from", "2006", "--to", "2008", "graphs")
	require.Equal(t, ExitOK, code, e.stderr.String())
	out := e.stdout.String()
	assert.Contains(t, out, "2006  0")
	assert.Contains(t, out, "2007  5")
	assert.Contains(t, out, "2008  0")

	code = e.run(t, "ask", "-k", "3", "what", "is", "known", "about", "graphs?")
	require.Equal(t, ExitOK, code, e.stderr.String())
	assert.Contains(t, e.stdout.String(), "mock answer")
	assert.Contains(t, e.stdout.String(), "Sources:")
}

func TestReembedCommand(t *testing.T) {
	e := newTestEnv(t)
	require.Equal(t, ExitOK, e.run(t, "ingest"))
	e.embedder.Reset()

	code := e.run(t, "reembed", "--batch-size", "2")
	require.Equal(t, ExitOK, code, e.stderr.String())
	assert.Contains(t, e.stdout.String(), "Re-embedded 5 entries in 3 batches")

	assert.Equal(t, ExitUsage, e.run(t, "reembed", "--batch-size", "0"))
}

func TestInvalidLogLevel(t *testing.T) {
	e := newTestEnv(t)
	r := &runner{stdout: &e.stdout, stderr: &e.stderr}
	code := r.run([]string{"arxivsearch", "--env-file", filepath.Join(t.TempDir(), "x.env"), "--log-level", "loud", "status"})
	assert.Equal(t, ExitUsage, code)
}

const liveFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/0704.0001v1</id>
    <published>2007-04-02T19:18:42Z</published>
    <title>Calculation of prompt diphoton
      production cross sections</title>
    <summary>A fully differential calculation.</summary>
    <author><name>C. Balazs</name></author>
    <author><name>E. L. Berger</name></author>
  </entry>
</feed>`

func TestLiveCommand(t *testing.T) {
	var queries []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		queries = append(queries, req.URL.Query().Get("search_query"))
		assert.Equal(t, "2", req.URL.Query().Get("max_results"))
		w.Header().Set("Content-Type", "application/atom+xml")
		fmt.Fprint(w, liveFeed)
	}))
	defer srv.Close()

	e := newTestEnv(t)
	e.env[config.KeyArxivAPIURL] = srv.URL

	code := e.run(t, "live", "-k", "2", "diphoton", "production")
	require.Equal(t, ExitOK, code, e.stderr.String())
	out := e.stdout.String()
	assert.Contains(t, out, "Found 1 papers on arXiv")
	assert.Contains(t, out, "1. 0704.0001v1 (2007) Calculation of prompt diphoton production cross sections")
	assert.Contains(t, out, "C. Balazs, E. L. Berger")
	assert.Equal(t, []string{"diphoton production"}, queries)

	assert.Equal(t, ExitUsage, e.run(t, "live"))
	assert.Equal(t, ExitUsage, e.run(t, "live", "-k", "0", "graphs"))
	assert.Len(t, queries, 1)
}

func TestLiveCommand_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	e := newTestEnv(t)
	e.env[config.KeyArxivAPIURL] = srv.URL

	assert.Equal(t, ExitError, e.run(t, "live", "graphs"))
	assert.Contains(t, e.stderr.String(), "live search failed")
}
