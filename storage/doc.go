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


// Package storage provides the storage abstraction layer for arxivsearch.
//
// This package defines the vector store, checkpoint and document table
// interfaces that decouple the ingestion pipeline from any one backend.
// Two vector store backends exist: storage/chroma talks to a remote Chroma
// server over HTTP, storage/badger keeps everything in a local BadgerDB.
//
// # Constructor Return Type Pattern
//
// Public constructors in backend packages return the interfaces defined here:
//
//	store, err := badger.NewStore(backend)  // returns storage.VectorStore
//
// Internal helpers may return concrete types since they are only used within
// the implementation package.
//
// # Usage
//
// Open a local store for tests:
//
//	store, backend, err := badger.NewMemoryStore()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
// # Thread Safety
//
// All implementations must be safe for concurrent use.
//
// # Context Support
//
// All methods that perform I/O accept context.Context for cancellation.
package storage
