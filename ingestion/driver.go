package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/arxivsearch/ai"
	"github.com/poiesic/arxivsearch/core"
	"github.com/poiesic/arxivsearch/storage"
)

// DefaultBatchSize is the number of documents embedded per call.
const DefaultBatchSize = 500

// TableFactory creates the table a run cleans into.
type TableFactory func() (storage.DocumentTable, error)

// Report summarizes a run.
type Report struct {
	RunID            string
	StartPart        int // first batch of the resolved range
	EndPart          int // exclusive end of the resolved range
	TotalParts       int // batches in the whole corpus
	Committed        int // batches committed by this run
	Upserted         int // documents written to the store
	SkippedUnchanged int // documents whose stored content hash matched
	Load             LoadStats
	Clean            CleanStats
	Duration         time.Duration
}

// Driver runs the batch ingestion loop for one source file.
type Driver struct {
	store         storage.VectorStore
	embedder      ai.Embedder
	source        string
	checkpoints   storage.CheckpointRepository
	newTable      TableFactory
	policy        MalformedPolicy
	batchSize     int
	retry         RetryPolicy
	progress      io.Writer
	skipUnchanged bool
	pool          *ants.Pool // non-nil in pipelined mode
	logger        *slog.Logger

	mu        sync.Mutex
	state     State
	dimension int
}

// Option configures a Driver.
type Option func(*Driver) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) error {
		if logger == nil {
			logger = slog.Default()
		}
		d.logger = logger
		return nil
	}
}

// WithBatchSize sets the number of documents per batch.
// Default is DefaultBatchSize.
func WithBatchSize(size int) Option {
	return func(d *Driver) error {
		if size <= 0 {
			return ErrInvalidBatchSize
		}
		d.batchSize = size
		return nil
	}
}

// WithRetryPolicy sets how embedding and upsert calls are retried.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(d *Driver) error {
		if policy.MaxAttempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		d.retry = policy
		return nil
	}
}

// WithProgress writes a progress line to w as batches commit.
func WithProgress(w io.Writer) Option {
	return func(d *Driver) error {
		d.progress = w
		return nil
	}
}

// WithMalformedPolicy sets the policy for malformed records.
// Default is MalformedSkip.
func WithMalformedPolicy(policy MalformedPolicy) Option {
	return func(d *Driver) error {
		d.policy = policy
		return nil
	}
}

// WithCheckpoints records committed batches in repo and enables Resume.
func WithCheckpoints(repo storage.CheckpointRepository) Option {
	return func(d *Driver) error {
		d.checkpoints = repo
		return nil
	}
}

// WithTableFactory sets where cleaned documents are staged.
// Default is an in-memory table.
func WithTableFactory(factory TableFactory) Option {
	return func(d *Driver) error {
		if factory != nil {
			d.newTable = factory
		}
		return nil
	}
}

// WithSkipUnchanged skips documents whose stored content hash matches.
func WithSkipUnchanged(skip bool) Option {
	return func(d *Driver) error {
		d.skipUnchanged = skip
		return nil
	}
}

// WithPipelined embeds batch N+1 on a single worker while batch N is
// upserted. Commit order is unchanged.
func WithPipelined(pipelined bool) Option {
	return func(d *Driver) error {
		if d.pool != nil {
			d.pool.Release()
			d.pool = nil
		}
		if !pipelined {
			return nil
		}
		pool, err := ants.NewPool(1)
		if err != nil {
			return err
		}
		d.pool = pool
		return nil
	}
}

// NewDriver creates a driver that ingests the file at source.
func NewDriver(store storage.VectorStore, embedder ai.Embedder, source string, opts ...Option) (*Driver, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if source == "" {
		return nil, ErrSourceRequired
	}

	d := &Driver{
		store:     store,
		embedder:  embedder,
		source:    source,
		newTable:  func() (storage.DocumentTable, error) { return NewMemoryTable(), nil },
		batchSize: DefaultBatchSize,
		retry:     DefaultRetryPolicy,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(d); err != nil {
			d.Release()
			return nil, err
		}
	}
	d.logger = d.logger.With("component", "ingestion")

	return d, nil
}

// Release frees the look-ahead worker pool.
func (d *Driver) Release() {
	if d.pool != nil {
		d.pool.Release()
		d.pool = nil
	}
}

// State returns the current run state.
func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// SourceKey returns the checkpoint key for the driver's source.
func (d *Driver) SourceKey() string {
	return SourceKey(d.source)
}

// SourceKey fingerprints the absolute form of path.
func SourceKey(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return core.Fingerprint(path)
}

func (d *Driver) setState(state State) {
	d.mu.Lock()
	d.state = state
	d.mu.Unlock()
}

func (d *Driver) transition(logger *slog.Logger, phase Phase, part int, err error) {
	d.setState(State{Phase: phase, Part: part, Err: err})

	switch {
	case err != nil:
		logger.Error("ingestion state", "state", phase.String(), "part", part, "err", err)
	case phase == PhaseFetching || phase == PhaseEmbedding || phase == PhaseUpserting:
		logger.Debug("ingestion state", "state", phase.String(), "part", part)
	default:
		logger.Info("ingestion state", "state", phase.String())
	}
}

// Run ingests the batches selected by r.
func (d *Driver) Run(ctx context.Context, r Range) (report Report, err error) {
	report.RunID = uuid.NewString()
	logger := d.logger.With("run", report.RunID)
	begin := time.Now()
	defer func() { report.Duration = time.Since(begin) }()

	if r.IsResume() && d.checkpoints == nil {
		return report, ErrCheckpointRepositoryRequired
	}
	d.setState(State{Phase: PhaseIdle, Part: NoPart})

	d.transition(logger, PhaseConnecting, NoPart, nil)
	if err := d.store.Heartbeat(ctx); err != nil {
		err = fmt.Errorf("%w: %w", core.ErrStoreUnreachable, err)
		d.transition(logger, PhaseStoreUnreachable, NoPart, err)
		return report, err
	}

	d.transition(logger, PhaseLoading, NoPart, nil)
	table, err := d.newTable()
	if err != nil {
		err = fmt.Errorf("creating document table: %w", err)
		d.transition(logger, PhaseFailed, NoPart, err)
		return report, err
	}
	defer table.Close()

	loader := NewLoader(WithLoaderPolicy(d.policy), WithLoaderLogger(logger))
	cleaner := NewCleaner(WithCleanerPolicy(d.policy), WithCleanerLogger(logger))
	source := func(fn func(core.Record) error) error {
		stats, err := loader.Each(ctx, d.source, fn)
		report.Load = stats
		return err
	}
	report.Clean, err = cleaner.CleanInto(ctx, source, table)
	if err != nil {
		d.transition(logger, PhaseFailed, NoPart, err)
		return report, err
	}

	d.transition(logger, PhaseDeterminingRange, NoPart, nil)
	report.TotalParts = PartCount(table.Len(), d.batchSize)
	cursor := core.NoCommittedPart
	if d.checkpoints != nil {
		cp, err := d.checkpoints.LoadCheckpoint(ctx, d.SourceKey())
		if err != nil {
			err = fmt.Errorf("loading checkpoint: %w", err)
			d.transition(logger, PhaseFailed, NoPart, err)
			return report, err
		}
		if r.IsResume() {
			if r, err = d.resumeRange(cp, report.TotalParts); err != nil {
				d.transition(logger, PhaseFailed, NoPart, err)
				return report, err
			}
		}
		// A checkpoint from another batch size describes other partitions
		if cp != nil && cp.BatchSize == d.batchSize {
			cursor = cp.LastCommittedPart
		}
	}
	report.StartPart, report.EndPart, err = r.Resolve(report.TotalParts)
	if err != nil {
		d.transition(logger, PhaseFailed, NoPart, err)
		return report, err
	}
	logger.Info("resolved batch range",
		"documents", table.Len(),
		"batch_size", d.batchSize,
		"parts", report.TotalParts,
		"start", report.StartPart,
		"end", report.EndPart)

	run := &batchRun{
		Driver: d,
		ctx:    ctx,
		table:  table,
		logger: logger,
		report: &report,
		cursor: cursor,
	}
	if d.progress != nil {
		docs := min(report.EndPart*d.batchSize, table.Len()) - report.StartPart*d.batchSize
		run.tracker = NewProgressTracker(d.progress, max(docs, 0), d.batchSize)
		run.tracker.Start()
	}

	if d.pool != nil {
		err = run.pipelined(report.StartPart, report.EndPart)
	} else {
		err = run.sequential(report.StartPart, report.EndPart)
	}
	if err != nil {
		return report, err
	}

	if run.tracker != nil {
		run.tracker.Finish()
	}
	d.transition(logger, PhaseDone, NoPart, nil)
	logger.Info("ingestion complete",
		"committed", report.Committed,
		"upserted", report.Upserted,
		"skipped_unchanged", report.SkippedUnchanged,
		"malformed", report.Load.Malformed+report.Clean.Malformed,
		"empty", report.Clean.Empty,
		"duplicates", report.Clean.Duplicates)
	return report, nil
}

// resumeRange starts at the first batch not covered by cp.
func (d *Driver) resumeRange(cp *core.Checkpoint, parts int) (Range, error) {
	if cp != nil && cp.BatchSize != d.batchSize {
		return Range{}, fmt.Errorf("%w: checkpoint batch size %d, configured %d",
			core.ErrCheckpointMismatch, cp.BatchSize, d.batchSize)
	}
	return Span(cp.NextPart(), max(parts, cp.NextPart())), nil
}

// prepared is a batch that has been fetched and embedded but not committed.
type prepared struct {
	part    int
	entries []*core.IndexEntry
	docs    int
	skipped int
	err     error
}

// batchRun holds the per-run state of the batch loop.
type batchRun struct {
	*Driver
	ctx     context.Context
	table   storage.DocumentTable
	logger  *slog.Logger
	report  *Report
	tracker *ProgressTracker

	// cursor is the last part of the gap-free committed prefix [0, cursor]
	cursor int
}

func (b *batchRun) sequential(start, end int) error {
	for part := start; part < end; part++ {
		if err := b.ctx.Err(); err != nil {
			b.transition(b.logger, PhaseFailed, part, err)
			return err
		}
		if err := b.commit(b.prepare(b.ctx, part)); err != nil {
			return err
		}
	}
	return nil
}

// pipelined keeps one batch in flight on the worker pool. Batches are still
// committed strictly in order and a failure stops before the next commit.
func (b *batchRun) pipelined(start, end int) error {
	if start >= end {
		return nil
	}
	ctx, cancel := context.WithCancel(b.ctx)
	defer cancel()

	submit := func(part int) (<-chan prepared, error) {
		ch := make(chan prepared, 1)
		err := b.pool.Submit(func() {
			ch <- b.prepare(ctx, part)
		})
		return ch, err
	}

	next, err := submit(start)
	if err != nil {
		b.transition(b.logger, PhaseFailed, start, err)
		return err
	}
	for part := start; part < end; part++ {
		batch := <-next

		var ahead <-chan prepared
		if batch.err == nil && part+1 < end {
			if ahead, err = submit(part + 1); err != nil {
				b.transition(b.logger, PhaseFailed, part+1, err)
				return err
			}
		}

		if err := b.commit(batch); err != nil {
			cancel()
			if ahead != nil {
				<-ahead
				// the look-ahead may have moved the state past the failure
				b.setState(State{Phase: PhaseFailed, Part: batch.part, Err: err})
			}
			return err
		}
		if err := b.ctx.Err(); err != nil {
			if ahead != nil {
				<-ahead
			}
			b.transition(b.logger, PhaseFailed, part+1, err)
			return err
		}
		next = ahead
	}
	return nil
}

// prepare fetches and embeds one batch.
func (b *batchRun) prepare(ctx context.Context, part int) prepared {
	p := prepared{part: part}

	b.transition(b.logger, PhaseFetching, part, nil)
	docs, err := b.table.Slice(ctx, part, b.batchSize)
	if err != nil {
		p.err = &BatchError{Part: part, Stage: StageFetching, Err: err}
		return p
	}
	p.docs = len(docs)

	if b.skipUnchanged {
		docs, err = b.changed(ctx, docs)
		if err != nil {
			p.err = &BatchError{Part: part, Stage: StageFetching, Err: err}
			return p
		}
		p.skipped = p.docs - len(docs)
	}
	if len(docs) == 0 {
		return p
	}

	b.transition(b.logger, PhaseEmbedding, part, nil)
	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Text
	}

	var vectors [][]float32
	err = b.retry.Do(ctx, func() error {
		var embedErr error
		vectors, embedErr = b.embedder.EmbedTexts(ctx, texts)
		if embedErr != nil {
			return embedErr
		}
		return Permanent(b.checkVectors(vectors, len(texts)))
	})
	if err != nil {
		p.err = &BatchError{Part: part, Stage: StageEmbedding, Err: err}
		return p
	}

	p.entries = make([]*core.IndexEntry, len(docs))
	for i, doc := range docs {
		p.entries[i] = core.NewIndexEntry(doc, vectors[i])
	}
	return p
}

// checkVectors verifies count and a consistent dimension across the run.
func (b *batchRun) checkVectors(vectors [][]float32, want int) error {
	if len(vectors) != want {
		return fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), want)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for i, v := range vectors {
		if len(v) == 0 {
			return fmt.Errorf("embedder returned an empty vector at position %d", i)
		}
		if b.dimension == 0 {
			b.dimension = len(v)
		}
		if len(v) != b.dimension {
			return fmt.Errorf("embedder returned dimension %d at position %d, expected %d", len(v), i, b.dimension)
		}
	}
	return nil
}

// changed drops documents whose stored content hash matches.
func (b *batchRun) changed(ctx context.Context, docs []core.Document) ([]core.Document, error) {
	ids := make([]string, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ID
	}
	existing, err := b.store.Get(ctx, storage.ByIDs(ids...))
	if err != nil {
		return nil, fmt.Errorf("reading stored hashes: %w", err)
	}
	hashes := make(map[string]uint64, len(existing))
	for _, entry := range existing {
		hashes[entry.ID] = entry.ContentHash
	}

	out := make([]core.Document, 0, len(docs))
	for _, doc := range docs {
		if h, ok := hashes[doc.ID]; ok && h == core.ContentHash(doc.Text) {
			continue
		}
		out = append(out, doc)
	}
	return out, nil
}

// commit upserts a prepared batch and records the checkpoint.
func (b *batchRun) commit(p prepared) error {
	if p.err != nil {
		b.transition(b.logger, PhaseFailed, p.part, p.err)
		return p.err
	}

	if len(p.entries) > 0 {
		b.transition(b.logger, PhaseUpserting, p.part, nil)
		err := b.retry.Do(b.ctx, func() error {
			return b.store.Upsert(b.ctx, p.entries...)
		})
		if err != nil {
			err = &BatchError{Part: p.part, Stage: StageUpserting, Err: err}
			b.transition(b.logger, PhaseFailed, p.part, err)
			return err
		}
	}

	if b.checkpoints != nil && p.part == b.cursor+1 {
		cp := &core.Checkpoint{
			Source:            b.SourceKey(),
			BatchSize:         b.batchSize,
			TotalParts:        b.report.TotalParts,
			LastCommittedPart: p.part,
		}
		if err := b.checkpoints.SaveCheckpoint(b.ctx, cp); err != nil {
			err = &BatchError{Part: p.part, Stage: StageCheckpoint, Err: err}
			b.transition(b.logger, PhaseFailed, p.part, err)
			return err
		}
		b.cursor = p.part
	} else if b.checkpoints != nil && p.part > b.cursor+1 {
		b.logger.Debug("checkpoint not advanced, earlier batches missing", "part", p.part, "cursor", b.cursor)
	}

	b.report.Committed++
	b.report.Upserted += len(p.entries)
	b.report.SkippedUnchanged += p.skipped
	if b.tracker != nil {
		b.tracker.Increment(p.docs)
	}
	b.logger.Debug("committed batch", "part", p.part, "upserted", len(p.entries), "skipped", p.skipped)
	return nil
}

// IsBatchFailure reports whether err came from a batch stage.
func IsBatchFailure(err error) bool {
	var be *BatchError
	return errors.As(err, &be)
}
