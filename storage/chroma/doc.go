// Package chroma implements storage.VectorStore against a Chroma server's
// REST API (v1 routes).
//
// Entries map onto a Chroma collection created with cosine distance:
// IDs become Chroma ids, RawText the document, and the Metadata fields
// (plus a content hash) the metadata map. Authors are joined with ", "
// because Chroma metadata values must be scalars.
//
// Requests are rate limited client-side with golang.org/x/time/rate.
package chroma
