package ingestion

import (
	"fmt"

	"github.com/poiesic/arxivsearch/core"
)

// PartCount returns ceil(total/size).
func PartCount(total, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return (total + size - 1) / size
}

// Batch returns the documents with OrderIndex in [part*size, part*size+size).
// documents must carry dense order indexes, as produced by a sealed table.
func Batch(documents []core.Document, part, size int) []core.Document {
	if part < 0 || size <= 0 {
		return nil
	}
	start := part * size
	if start >= len(documents) {
		return nil
	}
	end := min(start+size, len(documents))

	out := make([]core.Document, 0, end-start)
	for _, doc := range documents[start:end] {
		if doc.OrderIndex >= start && doc.OrderIndex < end {
			out = append(out, doc)
		}
	}
	return out
}

type rangeKind int

const (
	rangeAll rangeKind = iota
	rangeSpan
	rangeResume
)

// Range selects the batches a run processes.
type Range struct {
	kind       rangeKind
	start, end int
}

// All selects every batch.
func All() Range {
	return Range{kind: rangeAll}
}

// Single selects batch n only.
func Single(n int) Range {
	return Range{kind: rangeSpan, start: n, end: n + 1}
}

// Span selects batches [start, end).
func Span(start, end int) Range {
	return Range{kind: rangeSpan, start: start, end: end}
}

// Resume selects batches after the last committed checkpoint.
func Resume() Range {
	return Range{kind: rangeResume}
}

// IsResume reports whether r starts from a checkpoint.
func (r Range) IsResume() bool {
	return r.kind == rangeResume
}

// Resolve returns the half-open batch interval for a run over parts
// batches. The end is clamped to parts. Resume ranges resolve to all batches;
// the driver substitutes the checkpoint position before calling Resolve.
func (r Range) Resolve(parts int) (start, end int, err error) {
	switch r.kind {
	case rangeAll, rangeResume:
		return 0, parts, nil
	}
	if r.start < 0 || r.end < 0 {
		return 0, 0, fmt.Errorf("%w: negative batch index in [%d, %d)", core.ErrInvalidRange, r.start, r.end)
	}
	if r.start > r.end {
		return 0, 0, fmt.Errorf("%w: start %d after end %d", core.ErrInvalidRange, r.start, r.end)
	}
	return min(r.start, parts), min(r.end, parts), nil
}

func (r Range) String() string {
	switch r.kind {
	case rangeAll:
		return "all"
	case rangeResume:
		return "resume"
	default:
		return fmt.Sprintf("[%d, %d)", r.start, r.end)
	}
}
