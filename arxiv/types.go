package arxiv

import (
	"strings"
	"time"
)

// Paper is one search result.
type Paper struct {
	ID         string // arXiv identifier with version, e.g. 0704.0001v1
	URL        string // abstract page
	Title      string
	Summary    string
	Authors    []string
	Categories []string
	Published  time.Time
}

// Year returns the four digit publication year, or "" if unknown.
func (p Paper) Year() string {
	if p.Published.IsZero() {
		return ""
	}
	return p.Published.Format("2006")
}

// AuthorList returns the authors joined for display.
func (p Paper) AuthorList() string {
	return strings.Join(p.Authors, ", ")
}

// Atom feed as returned by the API. Only the fields we read are declared.
type feed struct {
	Entries []feedEntry `xml:"entry"`
}

type feedEntry struct {
	ID         string         `xml:"id"`
	Title      string         `xml:"title"`
	Summary    string         `xml:"summary"`
	Published  string         `xml:"published"`
	Authors    []feedAuthor   `xml:"author"`
	Categories []feedCategory `xml:"category"`
}

type feedAuthor struct {
	Name string `xml:"name"`
}

type feedCategory struct {
	Term string `xml:"term,attr"`
}
