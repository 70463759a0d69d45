package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 60 * time.Second

	// DefaultRateLimit is the default number of requests per second.
	DefaultRateLimit = 20.0

	apiPrefix = "/api/v1"
)

// Client is a rate-limited HTTP client bound to one Chroma collection.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	collection string
	token      string
	logger     *slog.Logger

	mu           sync.Mutex
	collectionID string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRateLimit sets the maximum requests per second.
func WithRateLimit(perSecond float64) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithToken sets a bearer token for servers with authentication enabled.
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = token
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client for the server at baseURL (for example
// http://localhost:8000) and the named collection. The collection is created
// on first use if it does not exist.
func NewClient(baseURL, collection string, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), 1),
		baseURL:    baseURL,
		collection: collection,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "chroma", "collection", collection)
	return c
}

// BaseURL builds a server URL from host and port.
func BaseURL(host string, port int) string {
	return fmt.Sprintf("http://%s:%d", host, port)
}

// heartbeat calls the server's heartbeat route.
func (c *Client) heartbeat(ctx context.Context) error {
	var out map[string]any
	return c.do(ctx, http.MethodGet, "/heartbeat", nil, &out)
}

// collectionPath resolves the collection ID, creating the collection with
// cosine distance when it does not exist yet.
func (c *Client) collectionPath(ctx context.Context, op string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.collectionID == "" {
		req := createCollectionRequest{
			Name:        c.collection,
			Metadata:    map[string]any{"hnsw:space": "cosine"},
			GetOrCreate: true,
		}
		var resp collectionResponse
		if err := c.do(ctx, http.MethodPost, "/collections", req, &resp); err != nil {
			return "", err
		}
		if resp.ID == "" {
			return "", fmt.Errorf("%w: collection %q has no id", ErrInvalidResponse, c.collection)
		}
		c.collectionID = resp.ID
		c.logger.Debug("resolved collection", "id", resp.ID)
	}
	return "/collections/" + url.PathEscape(c.collectionID) + "/" + op, nil
}

// do sends one JSON request and decodes the JSON response into out.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading body: %v", ErrNetwork, err)
	}

	if resp.StatusCode >= 400 {
		return &APIError{StatusCode: resp.StatusCode, Path: path, Message: errorMessage(data)}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

// errorMessage extracts the server's error text from a response body.
func errorMessage(data []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Detail  any    `json:"detail"`
	}
	if err := json.Unmarshal(data, &payload); err == nil {
		switch {
		case payload.Message != "":
			return payload.Message
		case payload.Error != "":
			return payload.Error
		case payload.Detail != nil:
			return fmt.Sprint(payload.Detail)
		}
	}
	return string(bytes.TrimSpace(data))
}
