package ingestion

import (
	"errors"
	"fmt"

	"github.com/poiesic/arxivsearch/core"
)

var (
	// ErrStoreRequired is returned when a vector store is not provided.
	ErrStoreRequired = errors.New("vector store required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrSourceRequired is returned when no source path is configured.
	ErrSourceRequired = errors.New("source path required")

	// ErrCheckpointRepositoryRequired is returned when resuming without a checkpoint repository.
	ErrCheckpointRepositoryRequired = errors.New("checkpoint repository required")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("batch size must be greater than 0")

	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")
)

// MalformedRecordError reports a source line that could not be turned into
// a Document. It matches core.ErrMalformedRecord with errors.Is.
type MalformedRecordError struct {
	Line int    // 1-based source line
	ID   string // record ID when it could be decoded
	Err  error
}

func (e *MalformedRecordError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("malformed record at line %d (id %s): %v", e.Line, e.ID, e.Err)
	}
	return fmt.Sprintf("malformed record at line %d: %v", e.Line, e.Err)
}

func (e *MalformedRecordError) Unwrap() []error {
	return []error{core.ErrMalformedRecord, e.Err}
}

// Stage names the step of a batch that failed.
type Stage string

const (
	StageFetching   Stage = "fetching"
	StageEmbedding  Stage = "embedding"
	StageUpserting  Stage = "upserting"
	StageCheckpoint Stage = "checkpoint"
)

// sentinel returns the taxonomy error for a stage, if any.
func (s Stage) sentinel() error {
	switch s {
	case StageEmbedding:
		return core.ErrEmbeddingFailure
	case StageUpserting:
		return core.ErrUpsertFailure
	default:
		return nil
	}
}

// BatchError reports the batch and stage at which a run failed.
// Embedding failures match core.ErrEmbeddingFailure and upsert failures
// match core.ErrUpsertFailure.
type BatchError struct {
	Part  int
	Stage Stage
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %d failed while %s: %v", e.Part, e.Stage, e.Err)
}

func (e *BatchError) Unwrap() []error {
	if s := e.Stage.sentinel(); s != nil {
		return []error{s, e.Err}
	}
	return []error{e.Err}
}
