package chroma

import (
	"errors"
	"fmt"
)

var (
	// ErrNetwork indicates the server could not be reached.
	ErrNetwork = errors.New("network error communicating with chroma")

	// ErrInvalidResponse indicates an unexpected response body.
	ErrInvalidResponse = errors.New("invalid response from chroma")
)

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Path       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chroma API error (status %d, %s): %s", e.StatusCode, e.Path, e.Message)
}
