package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/poiesic/arxivsearch/arxiv"
	"github.com/poiesic/arxivsearch/config"
	"github.com/poiesic/arxivsearch/core"
	"github.com/poiesic/arxivsearch/ingestion"
	"github.com/poiesic/arxivsearch/reembed"
	"github.com/poiesic/arxivsearch/storage"
	"github.com/urfave/cli/v2"
)

// parseRange maps the ingest positional arguments to a batch range.
func parseRange(args []string) (ingestion.Range, error) {
	nums := make([]int, len(args))
	for i, arg := range args {
		n, err := strconv.Atoi(arg)
		if err != nil {
			return ingestion.Range{}, fmt.Errorf("%w: batch index %q is not an integer", core.ErrUsage, arg)
		}
		if n < 0 {
			return ingestion.Range{}, fmt.Errorf("%w: batch index %d is negative", core.ErrUsage, n)
		}
		nums[i] = n
	}

	switch len(nums) {
	case 0:
		return ingestion.All(), nil
	case 1:
		return ingestion.Single(nums[0]), nil
	case 2:
		return ingestion.Span(nums[0], nums[1]), nil
	default:
		return ingestion.Range{}, fmt.Errorf("%w: ingest takes at most 2 arguments, got %d", core.ErrUsage, len(nums))
	}
}

func (r *runner) ingestCommand(c *cli.Context) error {
	ctx := contextOf(c)

	// Arguments are checked before anything is opened
	rng, err := parseRange(c.Args().Slice())
	if err != nil {
		return err
	}
	if c.Bool("resume") {
		if c.Args().Len() > 0 {
			return fmt.Errorf("%w: --resume cannot be combined with batch arguments", core.ErrUsage)
		}
		rng = ingestion.Resume()
	}

	app, err := r.openApp(config.ForIngest)
	if err != nil {
		return err
	}
	defer app.Close()

	opts := []ingestion.Option{
		ingestion.WithProgress(r.stderr),
		ingestion.WithSkipUnchanged(c.Bool("skip-unchanged")),
		ingestion.WithPipelined(c.Bool("pipelined")),
	}
	if c.Bool("on-disk") {
		opts = append(opts, ingestion.WithTableFactory(app.DiskTables()))
	}
	driver, err := app.NewDriver(opts...)
	if err != nil {
		return err
	}
	defer driver.Release()

	cfg := app.Config()
	fmt.Fprintf(r.stderr, "Source: %s\n", cfg.SourcePath)
	fmt.Fprintf(r.stderr, "Store: %s\n", cfg.Store)
	fmt.Fprintf(r.stderr, "Embedding model: %s\n", cfg.EmbeddingModel)
	fmt.Fprintf(r.stderr, "Batches: %s of %d documents\n", rng, cfg.BatchSize)
	fmt.Fprintln(r.stderr)

	report, err := driver.Run(ctx, rng)
	if err == nil || ingestion.IsBatchFailure(err) {
		printReport(r, report)
	}
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	return nil
}

func printReport(r *runner, report ingestion.Report) {
	w := tabwriter.NewWriter(r.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "run\t%s\n", report.RunID)
	fmt.Fprintf(w, "batches\t[%d, %d) of %d\n", report.StartPart, report.EndPart, report.TotalParts)
	fmt.Fprintf(w, "committed\t%d\n", report.Committed)
	fmt.Fprintf(w, "upserted\t%d\n", report.Upserted)
	fmt.Fprintf(w, "skipped unchanged\t%d\n", report.SkippedUnchanged)
	fmt.Fprintf(w, "malformed\t%d\n", report.Load.Malformed+report.Clean.Malformed)
	fmt.Fprintf(w, "empty\t%d\n", report.Clean.Empty)
	fmt.Fprintf(w, "duplicates\t%d\n", report.Clean.Duplicates)
	fmt.Fprintf(w, "duration\t%s\n", report.Duration.Round(time.Millisecond))
	w.Flush()
}

func (r *runner) searchCommand(c *cli.Context) error {
	ctx := contextOf(c)

	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("%w: search needs a query", core.ErrUsage)
	}
	filter := storage.ByYears(c.StringSlice("year")...)
	for _, year := range filter.Years {
		if !core.IsValidYear(year) {
			return fmt.Errorf("%w: --year %q is not a four digit year", core.ErrUsage, year)
		}
	}

	app, err := r.openApp(config.ForQuery)
	if err != nil {
		return err
	}
	defer app.Close()

	searcher, err := app.NewSearcher()
	if err != nil {
		return err
	}

	var results []*core.SearchResult
	if c.Bool("explain") {
		results, err = searcher.SearchWithMonitor(ctx, query, c.Int("k"), filter, newLogMonitor(slog.Default()))
	} else {
		results, err = searcher.Search(ctx, query, c.Int("k"), filter)
	}
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	fmt.Fprintf(r.stdout, "Found %d hits\n", len(results))
	for i, hit := range results {
		meta := hit.Entry.Metadata
		fmt.Fprintf(r.stdout, "%d. [%0.3f] %s (%s) %s\n", i+1, hit.Score, meta.ID, meta.Year, oneLine(meta.Title))
		if authors := meta.AuthorList(); authors != "" {
			fmt.Fprintf(r.stdout, "   %s\n", authors)
		}
	}
	return nil
}

func (r *runner) trendCommand(c *cli.Context) error {
	ctx := contextOf(c)

	topic := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(topic) == "" {
		return fmt.Errorf("%w: trend needs a topic", core.ErrUsage)
	}
	from, to := c.Int("from"), c.Int("to")
	if from > to {
		return fmt.Errorf("%w: --from %d is after --to %d", core.ErrUsage, from, to)
	}

	app, err := r.openApp(config.ForQuery)
	if err != nil {
		return err
	}
	defer app.Close()

	searcher, err := app.NewSearcher()
	if err != nil {
		return err
	}
	series, err := searcher.Trend(ctx, topic, from, to, c.Int("k"))
	if err != nil {
		return fmt.Errorf("trend failed: %w", err)
	}

	w := tabwriter.NewWriter(r.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "year\tarticles")
	for _, point := range series {
		fmt.Fprintf(w, "%d\t%d\n", point.Year, point.Count)
	}
	return w.Flush()
}

func (r *runner) askCommand(c *cli.Context) error {
	ctx := contextOf(c)

	question := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(question) == "" {
		return fmt.Errorf("%w: ask needs a question", core.ErrUsage)
	}

	app, err := r.openApp(config.ForQuery)
	if err != nil {
		return err
	}
	defer app.Close()

	answerer, err := app.NewAnswerer()
	if err != nil {
		return err
	}
	answer, err := answerer.Ask(ctx, question, c.Int("k"))
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	fmt.Fprintln(r.stdout, answer.Text)
	if len(answer.Sources) > 0 {
		fmt.Fprintln(r.stdout)
		fmt.Fprintln(r.stdout, "Sources:")
		for _, src := range answer.Sources {
			meta := src.Entry.Metadata
			fmt.Fprintf(r.stdout, "- %s (%s) %s\n", meta.ID, meta.Year, oneLine(meta.Title))
		}
	}
	return nil
}

func (r *runner) liveCommand(c *cli.Context) error {
	ctx := contextOf(c)

	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("%w: live needs a query", core.ErrUsage)
	}
	if c.Int("k") <= 0 {
		return fmt.Errorf("%w: -k must be greater than 0", core.ErrUsage)
	}

	// Only the endpoint is needed, so the store and model settings are not validated
	cfg, err := config.Load(r.lookup)
	if err != nil {
		return err
	}
	client := arxiv.NewClient(cfg.ArxivAPIURL, arxiv.WithLogger(slog.Default()))
	papers, err := client.Search(ctx, query, c.Int("k"))
	if err != nil {
		return fmt.Errorf("live search failed: %w", err)
	}

	fmt.Fprintf(r.stdout, "Found %d papers on arXiv\n", len(papers))
	for i, paper := range papers {
		fmt.Fprintf(r.stdout, "%d. %s (%s) %s\n", i+1, paper.ID, paper.Year(), paper.Title)
		if authors := paper.AuthorList(); authors != "" {
			fmt.Fprintf(r.stdout, "   %s\n", authors)
		}
		fmt.Fprintf(r.stdout, "   %s\n", paper.URL)
	}
	return nil
}

func (r *runner) reembedCommand(c *cli.Context) error {
	ctx := contextOf(c)

	if c.Int("batch-size") <= 0 {
		return fmt.Errorf("%w: batch-size must be greater than 0", core.ErrUsage)
	}
	if c.Int("report-interval") <= 0 {
		return fmt.Errorf("%w: report-interval must be greater than 0", core.ErrUsage)
	}

	app, err := r.openApp(config.ForQuery)
	if err != nil {
		return err
	}
	defer app.Close()

	cfg := app.Config()
	reembedConfig := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     cfg.MaxRetries,
		RetryDelay:     cfg.RetryDelay,
	}
	reembedder, err := app.NewReembedder(reembedConfig, r.stderr)
	if err != nil {
		return err
	}

	fmt.Fprintf(r.stderr, "Store: %s\n", cfg.Store)
	fmt.Fprintf(r.stderr, "Embedding host: %s\n", cfg.EmbeddingHost)
	fmt.Fprintf(r.stderr, "Embedding model: %s\n", cfg.EmbeddingModel)
	fmt.Fprintln(r.stderr)

	result, err := reembedder.Run(ctx)
	if err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	fmt.Fprintf(r.stdout, "Re-embedded %d entries in %d batches (%s)\n",
		result.Entries, result.Batches, result.Duration.Round(time.Millisecond))
	return nil
}

func (r *runner) statusCommand(c *cli.Context) error {
	ctx := contextOf(c)

	app, err := r.openApp(config.ForQuery)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Store().Heartbeat(ctx); err != nil {
		return fmt.Errorf("%w: %w", core.ErrStoreUnreachable, err)
	}
	count, err := app.Store().Count(ctx)
	if err != nil {
		return err
	}

	cfg := app.Config()
	w := tabwriter.NewWriter(r.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "store\t%s\n", cfg.Store)
	fmt.Fprintf(w, "entries\t%d\n", count)

	if cfg.SourcePath == "" {
		if c.Bool("reset") {
			return fmt.Errorf("%w: --reset needs %s", core.ErrUsage, config.KeySourcePath)
		}
		checkpoints, err := app.Checkpoints(ctx)
		if err != nil {
			return err
		}
		for _, cp := range checkpoints {
			fmt.Fprintf(w, "checkpoint %s\t%s\n", cp.Source, describeCheckpoint(cp))
		}
		return w.Flush()
	}

	if c.Bool("reset") {
		if err := app.ClearCheckpoint(ctx); err != nil {
			return err
		}
	}
	cp, err := app.Checkpoint(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "source\t%s\n", cfg.SourcePath)
	fmt.Fprintf(w, "checkpoint\t%s\n", describeCheckpoint(cp))
	return w.Flush()
}

func describeCheckpoint(cp *core.Checkpoint) string {
	if cp == nil {
		return "none"
	}
	return fmt.Sprintf("batch %d of %d committed (batch size %d, %s)",
		cp.LastCommittedPart, cp.TotalParts, cp.BatchSize, cp.UpdatedAt.Format("2006-01-02 15:04:05"))
}

func contextOf(c *cli.Context) context.Context {
	if c.Context != nil {
		return c.Context
	}
	return context.Background()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// logMonitor logs every step of a search.
type logMonitor struct {
	logger *slog.Logger
}

func newLogMonitor(logger *slog.Logger) *logMonitor {
	return &logMonitor{logger: logger.With("component", "explain")}
}

func (m *logMonitor) Start(query string) {
	m.logger.Info("search started", "query", query)
}

func (m *logMonitor) AfterEmbedding(normalized string, dimension int) {
	m.logger.Info("query embedded", "normalized", normalized, "dimension", dimension)
}

func (m *logMonitor) AfterVectorQuery(results []*core.SearchResult) {
	m.logger.Info("vector query returned", "hits", len(results))
}

func (m *logMonitor) TitleHit(entry *core.IndexEntry) {
	m.logger.Info("title contains every query word", "id", entry.ID)
}

func (m *logMonitor) Finish(results []*core.SearchResult) {
	m.logger.Info("search finished", "hits", len(results))
}
