package search

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"

	"github.com/poiesic/arxivsearch/ai"
	"github.com/poiesic/arxivsearch/core"
	"github.com/poiesic/arxivsearch/ingestion"
	"github.com/poiesic/arxivsearch/storage"
)

const (
	// DefaultMaxHits is the number of results returned when k is not positive.
	DefaultMaxHits = 3

	// DefaultTrendHits is the number of matches a trend is computed over.
	DefaultTrendHits = 5000

	// titleBoost is added to the score of entries whose title contains every
	// query word.
	titleBoost = 0.3
)

// Searcher runs semantic queries against a vector store.
type Searcher struct {
	store    storage.VectorStore
	embedder ai.Embedder
	logger   *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(store storage.VectorStore, embedder ai.Embedder, opts ...Option) (*Searcher, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	s := &Searcher{
		store:    store,
		embedder: embedder,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "search")

	return s, nil
}

// Search returns up to k entries matching filter, ranked by relevance.
func (s *Searcher) Search(ctx context.Context, query string, k int, filter storage.Filter) ([]*core.SearchResult, error) {
	return s.SearchWithMonitor(ctx, query, k, filter, nil)
}

// SearchWithMonitor is Search with callbacks at each stage.
func (s *Searcher) SearchWithMonitor(ctx context.Context, query string, k int, filter storage.Filter, monitor SearchMonitor) ([]*core.SearchResult, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	if k <= 0 {
		k = DefaultMaxHits
	}

	monitor.Start(query)

	results, err := s.query(ctx, query, k, filter, monitor)
	if err != nil {
		return nil, err
	}

	for _, result := range results {
		if containsAllQueryWords(result.Entry.Metadata.Title, query) {
			result.Score += titleBoost
			monitor.TitleHit(result.Entry)
		}
	}

	slices.SortStableFunc(results, func(a, b *core.SearchResult) int {
		return cmp.Compare(b.Score, a.Score)
	})
	monitor.Finish(results)

	return results, nil
}

// query embeds the normalized query and runs the vector query.
func (s *Searcher) query(ctx context.Context, query string, k int, filter storage.Filter, monitor SearchMonitor) ([]*core.SearchResult, error) {
	normalized := ingestion.NormalizeText(query)
	if normalized == "" {
		return nil, ErrEmptyQuery
	}

	embedding, err := s.embedder.EmbedText(ctx, normalized)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", query, "err", err)
		return nil, fmt.Errorf("%w: %w", core.ErrEmbeddingFailure, err)
	}
	monitor.AfterEmbedding(normalized, len(embedding))

	results, err := s.store.Query(ctx, embedding, k, filter)
	if err != nil {
		s.logger.Error("error querying vector store", "k", k, "err", err)
		return nil, err
	}
	monitor.AfterVectorQuery(results)

	return results, nil
}

// YearCount is the number of matching articles published in Year.
type YearCount struct {
	Year  int
	Count int
}

// Trend counts, per year in [startYear, endYear], how many of the top k
// matches for topic were published that year. Every year in the range is
// present in the result, in ascending order.
func (s *Searcher) Trend(ctx context.Context, topic string, startYear, endYear, k int) ([]YearCount, error) {
	if startYear > endYear || startYear < 0 || endYear > 9999 {
		return nil, fmt.Errorf("%w: %d-%d", ErrInvalidYearRange, startYear, endYear)
	}
	if k <= 0 {
		k = DefaultTrendHits
	}

	years := make([]string, 0, endYear-startYear+1)
	series := make([]YearCount, 0, endYear-startYear+1)
	for y := startYear; y <= endYear; y++ {
		years = append(years, fmt.Sprintf("%04d", y))
		series = append(series, YearCount{Year: y})
	}

	results, err := s.query(ctx, topic, k, storage.ByYears(years...), &noopMonitor{})
	if err != nil {
		return nil, err
	}

	for _, result := range results {
		year, err := strconv.Atoi(result.Entry.Metadata.Year)
		if err != nil || year < startYear || year > endYear {
			continue
		}
		series[year-startYear].Count++
	}

	s.logger.Debug("computed trend", "topic", topic, "matches", len(results), "start", startYear, "end", endYear)
	return series, nil
}
