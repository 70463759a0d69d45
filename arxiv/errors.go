package arxiv

import (
	"errors"
	"fmt"
)

var (
	// ErrNetwork indicates the API could not be reached.
	ErrNetwork = errors.New("network error communicating with arXiv")

	// ErrInvalidResponse indicates a body that is not an Atom feed.
	ErrInvalidResponse = errors.New("invalid response from arXiv")

	// ErrEmptyQuery indicates a search without query text.
	ErrEmptyQuery = errors.New("empty arXiv query")
)

// APIError is an error reported by the API, either as a non-2xx status or as
// an error entry inside the feed.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("arXiv API error (status %d): %s", e.StatusCode, e.Message)
}
