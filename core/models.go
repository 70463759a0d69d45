package core

//go:generate go run ../cmd/musgen

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ContentHash returns a deterministic 64-bit BLAKE2b digest of text.
// Identical text always produces the same hash.
func ContentHash(text string) uint64 {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return binary.LittleEndian.Uint64(sum)
}

// Fingerprint returns a hex encoded 128-bit BLAKE2b digest of s.
// It is used to key per-source state such as checkpoints.
func Fingerprint(s string) string {
	h, _ := blake2b.New(16, nil)
	h.Write([]byte(s))
	return hex.EncodeToString(h.Sum(nil))
}

// Version is one entry of a record's revision history.
type Version struct {
	Version string `json:"version"`
	Created string `json:"created"`
}

// Authors is an ordered author list. It decodes from either a JSON array of
// names or the comma separated string used by the arXiv bulk snapshot.
type Authors []string

// UnmarshalJSON accepts ["a", "b"], "a, b and c", or null.
func (a *Authors) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = nil
		return nil
	}
	if data[0] == '[' {
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*a = list
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*a = SplitAuthors(s)
	return nil
}

// SplitAuthors splits a comma separated author string. A trailing " and "
// separator is treated like a comma.
func SplitAuthors(s string) []string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, " and ", ", ")
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Join(strings.Fields(p), " ")
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Record is one raw metadata row as read from the bulk source.
type Record struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Abstract   string    `json:"abstract"`
	Authors    Authors   `json:"authors"`
	Versions   []Version `json:"versions"`
	Categories string    `json:"categories"`
	Line       int       `json:"-"` // 1-based line in the source file
}

// Document is a cleaned record ready for embedding.
type Document struct {
	ID         string
	Text       string // normalized title + abstract, never empty
	Year       string // four digit year of the first version
	Title      string
	Authors    []string
	OrderIndex int // dense position after ordering by year
}

// Metadata is the filterable payload stored alongside each vector.
type Metadata struct {
	ID      string
	Year    string
	Title   string
	Authors []string
}

// AuthorList returns the authors joined the way they are presented to users.
func (m Metadata) AuthorList() string {
	return strings.Join(m.Authors, ", ")
}

// IndexEntry is the unit written to a vector store.
type IndexEntry struct {
	ID          string
	Vector      []float32
	Metadata    Metadata
	RawText     string
	ContentHash uint64 // ContentHash(RawText)
}

// NewIndexEntry builds the entry for an embedded document.
func NewIndexEntry(doc Document, vector []float32) *IndexEntry {
	return &IndexEntry{
		ID:     doc.ID,
		Vector: vector,
		Metadata: Metadata{
			ID:      doc.ID,
			Year:    doc.Year,
			Title:   doc.Title,
			Authors: doc.Authors,
		},
		RawText:     doc.Text,
		ContentHash: ContentHash(doc.Text),
	}
}

// SearchResult represents a search result with the full entry and relevance score.
type SearchResult struct {
	Entry *IndexEntry
	Score float32 // cosine similarity, higher is better
}

// NoCommittedPart marks a checkpoint that has not committed any batch yet.
const NoCommittedPart = -1

// Checkpoint records ingestion progress for one source.
type Checkpoint struct {
	Source            string // Fingerprint of the absolute source path
	BatchSize         int
	TotalParts        int
	LastCommittedPart int
	UpdatedAt         time.Time
}

// NextPart returns the first part that has not been committed.
func (c *Checkpoint) NextPart() int {
	if c == nil {
		return 0
	}
	return c.LastCommittedPart + 1
}
