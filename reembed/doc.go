// Package reembed rewrites the vectors of every entry already in a vector
// store using a different embedding model.
//
// Entries are read in pages, re-embedded from their stored text and upserted
// back with the same metadata. Embedding calls are retried with exponential
// backoff and progress is written to the configured writer.
package reembed
