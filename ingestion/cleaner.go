package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/arxivsearch/core"
	"github.com/poiesic/arxivsearch/storage"
)

// CleanStats counts what the cleaner dropped.
type CleanStats struct {
	Input      int // records seen
	Empty      int // records whose normalized text was empty
	Duplicates int // records whose id was already staged
	Malformed  int // records without a usable year
}

// Kept returns the number of documents staged.
func (s CleanStats) Kept() int {
	return s.Input - s.Empty - s.Duplicates - s.Malformed
}

// RecordSource streams records to fn in source order.
type RecordSource func(fn func(core.Record) error) error

// SliceSource adapts an in-memory record slice.
func SliceSource(records []core.Record) RecordSource {
	return func(fn func(core.Record) error) error {
		for _, rec := range records {
			if err := fn(rec); err != nil {
				return err
			}
		}
		return nil
	}
}

// Cleaner turns Records into Documents.
type Cleaner struct {
	policy MalformedPolicy
	logger *slog.Logger
}

// CleanerOption configures a Cleaner.
type CleanerOption func(*Cleaner)

// WithCleanerPolicy sets the policy for records without a usable year.
func WithCleanerPolicy(policy MalformedPolicy) CleanerOption {
	return func(c *Cleaner) {
		c.policy = policy
	}
}

// WithCleanerLogger sets a custom logger.
func WithCleanerLogger(logger *slog.Logger) CleanerOption {
	return func(c *Cleaner) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCleaner creates a cleaner.
func NewCleaner(opts ...CleanerOption) *Cleaner {
	c := &Cleaner{logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "cleaner")
	return c
}

// Document derives the Document for rec. ok is false when the normalized
// text is empty. OrderIndex is left at zero.
func (c *Cleaner) Document(rec core.Record) (doc core.Document, ok bool, err error) {
	text := DocumentText(rec)
	if text == "" {
		return doc, false, nil
	}

	year, err := ExtractYear(rec.Versions)
	if err != nil {
		return doc, false, &MalformedRecordError{Line: rec.Line, ID: rec.ID, Err: err}
	}

	return core.Document{
		ID:      rec.ID,
		Text:    text,
		Year:    year,
		Title:   rec.Title,
		Authors: []string(rec.Authors),
	}, true, nil
}

// CleanInto cleans every record from source into table and seals it.
func (c *Cleaner) CleanInto(ctx context.Context, source RecordSource, table storage.DocumentTable) (CleanStats, error) {
	var stats CleanStats

	err := source(func(rec core.Record) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Input++

		doc, ok, err := c.Document(rec)
		if err != nil {
			if c.policy == MalformedFail {
				return err
			}
			stats.Malformed++
			c.logger.Warn("skipping record without usable year", "line", rec.Line, "id", rec.ID, "err", err)
			return nil
		}
		if !ok {
			stats.Empty++
			c.logger.Debug("dropping record with empty text", "line", rec.Line, "id", rec.ID)
			return nil
		}
		err = table.Stage(ctx, doc)
		if errors.Is(err, storage.ErrDuplicateDocument) {
			stats.Duplicates++
			c.logger.Debug("dropping duplicate id", "line", rec.Line, "id", doc.ID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("staging %s: %w", doc.ID, err)
		}
		return nil
	})
	if err != nil {
		return stats, err
	}

	if err := table.Seal(ctx); err != nil {
		return stats, fmt.Errorf("sealing document table: %w", err)
	}

	c.logger.Info("cleaned records",
		"input", stats.Input,
		"kept", stats.Kept(),
		"empty", stats.Empty,
		"duplicates", stats.Duplicates,
		"malformed", stats.Malformed)
	return stats, nil
}

// Clean cleans records in memory and returns the ordered documents.
func (c *Cleaner) Clean(ctx context.Context, records []core.Record) ([]core.Document, CleanStats, error) {
	table := NewMemoryTable()
	defer table.Close()

	stats, err := c.CleanInto(ctx, SliceSource(records), table)
	if err != nil {
		return nil, stats, err
	}
	return table.Documents(), stats, nil
}
