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
// Package search answers questions over an embedded arXiv corpus.
//
// The Searcher embeds a query and ranks stored entries by cosine similarity,
// boosting entries whose title contains every meaningful query word. Trend
// counts the matches for a topic per publication year. The Answerer feeds
// the top matches to a chat model as context and returns its answer together
// with the entries it was given.
package search
