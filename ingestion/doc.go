// Package ingestion loads bulk arXiv metadata and writes it to a vector store
// in fixed-size batches.
//
// A run moves through a fixed sequence of stages:
//   - Loader reads newline-delimited JSON records
//   - Cleaner normalizes title and abstract, extracts the publication year
//     and drops empty and duplicate records
//   - a DocumentTable orders the documents by year and assigns dense order
//     indexes
//   - Driver embeds and upserts one batch at a time, in increasing order
//
// Batches are the unit of commit. A failed batch leaves earlier batches in
// place and the run can be resumed from the failed batch, either with an
// explicit range or from the stored checkpoint.
package ingestion
