package chroma

import (
	"strconv"
	"strings"

	"github.com/poiesic/arxivsearch/core"
)

// Metadata keys written alongside each entry.
const (
	metaID          = "id"
	metaYear        = "year"
	metaTitle       = "title"
	metaAuthors     = "authors"
	metaContentHash = "content_hash"
)

type createCollectionRequest struct {
	Name        string         `json:"name"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	GetOrCreate bool           `json:"get_or_create"`
}

type collectionResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type upsertRequest struct {
	IDs        []string         `json:"ids"`
	Embeddings [][]float32      `json:"embeddings"`
	Metadatas  []map[string]any `json:"metadatas"`
	Documents  []string         `json:"documents"`
}

type queryRequest struct {
	QueryEmbeddings [][]float32    `json:"query_embeddings"`
	NResults        int            `json:"n_results"`
	Where           map[string]any `json:"where,omitempty"`
	Include         []string       `json:"include"`
}

type queryResponse struct {
	IDs        [][]string         `json:"ids"`
	Distances  [][]float32        `json:"distances"`
	Metadatas  [][]map[string]any `json:"metadatas"`
	Documents  [][]string         `json:"documents"`
	Embeddings [][][]float32      `json:"embeddings"`
}

type getRequest struct {
	IDs     []string       `json:"ids,omitempty"`
	Where   map[string]any `json:"where,omitempty"`
	Limit   int            `json:"limit,omitempty"`
	Offset  int            `json:"offset,omitempty"`
	Include []string       `json:"include"`
}

type getResponse struct {
	IDs        []string         `json:"ids"`
	Metadatas  []map[string]any `json:"metadatas"`
	Documents  []string         `json:"documents"`
	Embeddings [][]float32      `json:"embeddings"`
}

// toMetadata flattens entry metadata into Chroma's scalar map.
func toMetadata(entry *core.IndexEntry) map[string]any {
	return map[string]any{
		metaID:          entry.Metadata.ID,
		metaYear:        entry.Metadata.Year,
		metaTitle:       entry.Metadata.Title,
		metaAuthors:     entry.Metadata.AuthorList(),
		metaContentHash: strconv.FormatUint(entry.ContentHash, 10),
	}
}

// toEntry rebuilds an IndexEntry from one row of a Chroma response.
func toEntry(id string, meta map[string]any, document string, vector []float32) *core.IndexEntry {
	entry := &core.IndexEntry{
		ID:      id,
		Vector:  vector,
		RawText: document,
		Metadata: core.Metadata{
			ID:    stringValue(meta, metaID),
			Year:  stringValue(meta, metaYear),
			Title: stringValue(meta, metaTitle),
		},
	}
	if entry.Metadata.ID == "" {
		entry.Metadata.ID = id
	}
	if authors := stringValue(meta, metaAuthors); authors != "" {
		entry.Metadata.Authors = strings.Split(authors, ", ")
	}
	if hash, err := strconv.ParseUint(stringValue(meta, metaContentHash), 10, 64); err == nil {
		entry.ContentHash = hash
	}
	return entry
}

// stringValue reads a metadata value as a string. Years written by other
// tools may come back as JSON numbers.
func stringValue(meta map[string]any, key string) string {
	switch v := meta[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// whereYears builds a metadata filter for the given years.
func whereYears(years []string) map[string]any {
	if len(years) == 0 {
		return nil
	}
	return map[string]any{
		metaYear: map[string]any{"$in": years},
	}
}
