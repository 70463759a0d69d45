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


package storage

import "errors"

var (
	// ErrTransactionFailed indicates that a transaction failed.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrStorageClosed indicates that the storage backend is closed.
	ErrStorageClosed = errors.New("storage is closed")

	// ErrInvalidQuery indicates invalid query parameters.
	ErrInvalidQuery = errors.New("invalid query parameters")

	// ErrInvalidCheckpoint indicates a checkpoint that cannot be stored.
	ErrInvalidCheckpoint = errors.New("invalid checkpoint")

	// ErrSerializationFailed indicates a serialization/deserialization failure.
	ErrSerializationFailed = errors.New("serialization failed")

	// ErrTableSealed indicates a write to a document table after Seal.
	ErrTableSealed = errors.New("document table is sealed")

	// ErrDuplicateDocument indicates a document id that is already staged.
	ErrDuplicateDocument = errors.New("duplicate document id")

	// ErrTableNotSealed indicates a read from a document table before Seal.
	ErrTableNotSealed = errors.New("document table is not sealed")
)
