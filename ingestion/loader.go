package ingestion

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/poiesic/arxivsearch/core"
)

// MaxLineCapacity is the default longest source line the loader decodes.
// Longer lines are treated as malformed records.
const MaxLineCapacity = 8 * 1024 * 1024

const readBufferSize = 64 * 1024

// MalformedPolicy selects what happens to records that cannot be used.
type MalformedPolicy int

const (
	// MalformedSkip logs and counts malformed records and continues.
	MalformedSkip MalformedPolicy = iota
	// MalformedFail stops at the first malformed record.
	MalformedFail
)

// ParseMalformedPolicy parses "skip" or "fail".
func ParseMalformedPolicy(s string) (MalformedPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "skip":
		return MalformedSkip, nil
	case "fail":
		return MalformedFail, nil
	default:
		return MalformedSkip, fmt.Errorf("unknown malformed record policy %q (want skip or fail)", s)
	}
}

func (p MalformedPolicy) String() string {
	if p == MalformedFail {
		return "fail"
	}
	return "skip"
}

// LoadStats summarizes one pass over a source file.
type LoadStats struct {
	Lines     int // non-blank lines read
	Records   int // records passed to the callback
	Malformed int // lines skipped under MalformedSkip
}

// Loader reads newline-delimited JSON metadata records.
type Loader struct {
	policy  MalformedPolicy
	maxLine int
	logger  *slog.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLoaderPolicy sets the malformed record policy. Default is MalformedSkip.
func WithLoaderPolicy(policy MalformedPolicy) LoaderOption {
	return func(l *Loader) {
		l.policy = policy
	}
}

// WithMaxLineBytes sets the longest line decoded. Default is MaxLineCapacity.
func WithMaxLineBytes(n int) LoaderOption {
	return func(l *Loader) {
		if n > 0 {
			l.maxLine = n
		}
	}
}

// WithLoaderLogger sets a custom logger.
func WithLoaderLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLoader creates a loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{maxLine: MaxLineCapacity, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With("component", "loader")
	return l
}

// Load reads every record of the file at path into memory.
func (l *Loader) Load(ctx context.Context, path string) ([]core.Record, LoadStats, error) {
	var records []core.Record
	stats, err := l.Each(ctx, path, func(rec core.Record) error {
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, stats, err
	}
	return records, stats, nil
}

// Each streams records from the file at path to fn in file order.
// A missing file returns core.ErrSourceNotFound before fn is called.
func (l *Loader) Each(ctx context.Context, path string, fn func(core.Record) error) (LoadStats, error) {
	var stats LoadStats

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return stats, fmt.Errorf("%w: %s", core.ErrSourceNotFound, path)
		}
		return stats, fmt.Errorf("opening source: %w", err)
	}
	defer file.Close()

	reader := bufio.NewReaderSize(file, readBufferSize)
	var buf []byte

	lineNum := 0
	for {
		raw, tooLong, err := readLine(reader, l.maxLine, buf)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("reading source: %w", err)
		}
		buf = raw
		lineNum++
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		if tooLong {
			stats.Lines++
			malformed := &MalformedRecordError{Line: lineNum, Err: fmt.Errorf("line exceeds %d bytes", l.maxLine)}
			if stop := l.reject(&stats, malformed); stop != nil {
				return stats, stop
			}
			continue
		}

		line := bytes.TrimSpace(raw)
		if len(line) == 0 {
			continue
		}
		stats.Lines++

		rec, err := decodeRecord(line)
		if err != nil {
			if stop := l.reject(&stats, &MalformedRecordError{Line: lineNum, ID: rec.ID, Err: err}); stop != nil {
				return stats, stop
			}
			continue
		}
		rec.Line = lineNum

		stats.Records++
		if err := fn(rec); err != nil {
			return stats, err
		}
	}

	return stats, nil
}

// reject applies the malformed policy. It returns the error to stop with,
// or nil when the line is skipped.
func (l *Loader) reject(stats *LoadStats, malformed *MalformedRecordError) error {
	if l.policy == MalformedFail {
		return malformed
	}
	stats.Malformed++
	l.logger.Warn("skipping malformed record", "line", malformed.Line, "err", malformed.Err)
	return nil
}

// readLine reads the next line into buf without its newline. A line longer
// than limit is consumed to its end and returned empty with tooLong set, so
// memory stays bounded by limit. io.EOF is returned only when no bytes remain.
func readLine(r *bufio.Reader, limit int, buf []byte) (line []byte, tooLong bool, err error) {
	buf = buf[:0]
	read := 0
	for {
		chunk, err := r.ReadSlice('\n')
		read += len(chunk)
		if !tooLong {
			buf = append(buf, chunk...)
			if len(bytes.TrimSuffix(buf, []byte{'\n'})) > limit {
				tooLong = true
				buf = buf[:0]
			}
		}

		switch {
		case err == nil:
			return bytes.TrimSuffix(buf, []byte{'\n'}), tooLong, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if read == 0 {
				return buf, false, io.EOF
			}
			return buf, tooLong, nil
		default:
			return buf, false, err
		}
	}
}

func decodeRecord(line []byte) (core.Record, error) {
	var rec core.Record
	if err := json.Unmarshal(line, &rec); err != nil {
		return rec, err
	}
	if strings.TrimSpace(rec.ID) == "" {
		return rec, errors.New("missing id")
	}
	return rec, nil
}
