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


package core

import "errors"

// Pipeline errors shared across packages. Callers test with errors.Is.
var (
	// ErrSourceNotFound indicates the bulk metadata file does not exist.
	ErrSourceNotFound = errors.New("source not found")

	// ErrMalformedRecord indicates a source line could not be parsed into a Record.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrStoreUnreachable indicates the vector store failed its connectivity check.
	ErrStoreUnreachable = errors.New("vector store unreachable")

	// ErrEmbeddingFailure indicates the embedding service failed for a batch.
	ErrEmbeddingFailure = errors.New("embedding failure")

	// ErrUpsertFailure indicates the vector store rejected a batch upsert.
	ErrUpsertFailure = errors.New("upsert failure")

	// ErrUsage indicates invalid command line arguments.
	ErrUsage = errors.New("usage error")

	// ErrInvalidRange indicates a batch range that cannot be satisfied.
	ErrInvalidRange = errors.New("invalid batch range")

	// ErrCheckpointMismatch indicates a stored checkpoint was written with a different batch size.
	ErrCheckpointMismatch = errors.New("checkpoint does not match current batch size")

	// ErrInvalidConfig indicates missing or invalid configuration values.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Domain validation errors
var (
	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrInvalidEntry indicates an IndexEntry failed validation.
	ErrInvalidEntry = errors.New("invalid index entry")

	// ErrEmptyText indicates the Text field is empty.
	ErrEmptyText = errors.New("text cannot be empty")

	// ErrEmptyID indicates the ID field is empty.
	ErrEmptyID = errors.New("id cannot be empty")

	// ErrInvalidYear indicates a year that is not four digits.
	ErrInvalidYear = errors.New("year must be four digits")

	// ErrEmptyVector indicates an IndexEntry without an embedding.
	ErrEmptyVector = errors.New("vector cannot be empty")
)
