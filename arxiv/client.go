package arxiv

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the public query endpoint.
	DefaultBaseURL = "https://export.arxiv.org/api/query"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is one request every three seconds.
	DefaultRateLimit = 1.0 / 3

	// MaxResults caps a single query.
	MaxResults = 2000
)

// Client is a rate-limited client for the arXiv query API.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	logger     *slog.Logger
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

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client for the query endpoint at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), 1),
		baseURL:    baseURL,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "arxiv")
	return c
}

// Search returns up to maxResults papers for query, most relevant first.
// The query uses the API's search syntax; plain words match all fields.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]Paper, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if maxResults <= 0 {
		return nil, nil
	}
	maxResults = min(maxResults, MaxResults)

	params := url.Values{}
	params.Set("search_query", query)
	params.Set("start", "0")
	params.Set("max_results", strconv.Itoa(maxResults))
	params.Set("sortBy", "relevance")
	params.Set("sortOrder", "descending")

	var out feed
	if err := c.get(ctx, params, &out); err != nil {
		return nil, err
	}

	papers := make([]Paper, 0, len(out.Entries))
	for _, entry := range out.Entries {
		if strings.Contains(entry.ID, "/api/errors") {
			return nil, &APIError{StatusCode: http.StatusOK, Message: oneLine(entry.Summary)}
		}
		papers = append(papers, entry.paper())
	}
	c.logger.Debug("arXiv search", "query", query, "results", len(papers))
	return papers, nil
}

// get sends one query and decodes the Atom response into out.
func (c *Client) get(ctx context.Context, params url.Values, out *feed) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/atom+xml")

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
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}
	if err := xml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

func (e feedEntry) paper() Paper {
	p := Paper{
		URL:     strings.TrimSpace(e.ID),
		Title:   oneLine(e.Title),
		Summary: oneLine(e.Summary),
	}
	if i := strings.Index(p.URL, "/abs/"); i >= 0 {
		p.ID = p.URL[i+len("/abs/"):]
	}
	for _, a := range e.Authors {
		if name := oneLine(a.Name); name != "" {
			p.Authors = append(p.Authors, name)
		}
	}
	for _, cat := range e.Categories {
		if cat.Term != "" {
			p.Categories = append(p.Categories, cat.Term)
		}
	}
	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(e.Published)); err == nil {
		p.Published = t
	}
	return p
}

// errorMessage extracts the summary of an error feed, or the raw body.
func errorMessage(data []byte) string {
	var f feed
	if err := xml.Unmarshal(data, &f); err == nil && len(f.Entries) > 0 && f.Entries[0].Summary != "" {
		return oneLine(f.Entries[0].Summary)
	}
	return string(bytes.TrimSpace(data))
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
