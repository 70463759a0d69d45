package chroma

import (
	"context"
	"fmt"
	"net/http"

	"github.com/poiesic/arxivsearch/core"
	"github.com/poiesic/arxivsearch/storage"
)

// Store implements storage.VectorStore over a Chroma collection.
type Store struct {
	client *Client
}

var _ storage.VectorStore = (*Store)(nil)

// NewStore returns a vector store backed by client.
func NewStore(client *Client) storage.VectorStore {
	return &Store{client: client}
}

// Heartbeat calls the server's heartbeat route.
func (s *Store) Heartbeat(ctx context.Context) error {
	return s.client.heartbeat(ctx)
}

// Upsert sends all entries in a single upsert request.
func (s *Store) Upsert(ctx context.Context, entries ...*core.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	req := upsertRequest{
		IDs:        make([]string, len(entries)),
		Embeddings: make([][]float32, len(entries)),
		Metadatas:  make([]map[string]any, len(entries)),
		Documents:  make([]string, len(entries)),
	}
	for i, entry := range entries {
		if err := core.ValidateIndexEntry(entry); err != nil {
			return err
		}
		req.IDs[i] = entry.ID
		req.Embeddings[i] = entry.Vector
		req.Metadatas[i] = toMetadata(entry)
		req.Documents[i] = entry.RawText
	}

	path, err := s.client.collectionPath(ctx, "upsert")
	if err != nil {
		return err
	}
	return s.client.do(ctx, http.MethodPost, path, req, nil)
}

// Query runs a nearest neighbour query. Scores are 1 - cosine distance.
func (s *Store) Query(ctx context.Context, vector []float32, k int, filter storage.Filter) ([]*core.SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", storage.ErrInvalidQuery, k)
	}
	if len(filter.IDs) > 0 {
		return nil, fmt.Errorf("%w: id filters are not supported in queries", storage.ErrInvalidQuery)
	}

	path, err := s.client.collectionPath(ctx, "query")
	if err != nil {
		return nil, err
	}
	req := queryRequest{
		QueryEmbeddings: [][]float32{vector},
		NResults:        k,
		Where:           whereYears(filter.Years),
		Include:         []string{"metadatas", "documents", "distances"},
	}
	var resp queryResponse
	if err := s.client.do(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}
	if len(resp.IDs) == 0 {
		return nil, nil
	}

	ids := resp.IDs[0]
	if !rowAligned(len(ids), resp.Distances, resp.Metadatas, resp.Documents) {
		return nil, fmt.Errorf("%w: query columns have mismatched lengths", ErrInvalidResponse)
	}
	results := make([]*core.SearchResult, len(ids))
	for i, id := range ids {
		results[i] = &core.SearchResult{
			Entry: toEntry(id, resp.Metadatas[0][i], resp.Documents[0][i], nil),
			Score: 1 - resp.Distances[0][i],
		}
	}
	return results, nil
}

func rowAligned(n int, distances [][]float32, metadatas [][]map[string]any, documents [][]string) bool {
	return len(distances) > 0 && len(distances[0]) == n &&
		len(metadatas) > 0 && len(metadatas[0]) == n &&
		len(documents) > 0 && len(documents[0]) == n
}

// Get fetches entries by ID and year filter.
func (s *Store) Get(ctx context.Context, filter storage.Filter) ([]*core.IndexEntry, error) {
	return s.get(ctx, getRequest{
		IDs:   filter.IDs,
		Where: whereYears(filter.Years),
	})
}

// List pages through the collection.
func (s *Store) List(ctx context.Context, offset, limit int) ([]*core.IndexEntry, error) {
	if offset < 0 || limit <= 0 {
		return nil, fmt.Errorf("%w: offset %d limit %d", storage.ErrInvalidQuery, offset, limit)
	}
	return s.get(ctx, getRequest{Limit: limit, Offset: offset})
}

func (s *Store) get(ctx context.Context, req getRequest) ([]*core.IndexEntry, error) {
	path, err := s.client.collectionPath(ctx, "get")
	if err != nil {
		return nil, err
	}
	req.Include = []string{"metadatas", "documents", "embeddings"}

	var resp getResponse
	if err := s.client.do(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Metadatas) != len(resp.IDs) || len(resp.Documents) != len(resp.IDs) {
		return nil, fmt.Errorf("%w: get columns have mismatched lengths", ErrInvalidResponse)
	}

	entries := make([]*core.IndexEntry, len(resp.IDs))
	for i, id := range resp.IDs {
		var vector []float32
		if i < len(resp.Embeddings) {
			vector = resp.Embeddings[i]
		}
		entries[i] = toEntry(id, resp.Metadatas[i], resp.Documents[i], vector)
	}
	return entries, nil
}

// Count returns the number of entries in the collection.
func (s *Store) Count(ctx context.Context) (int, error) {
	path, err := s.client.collectionPath(ctx, "count")
	if err != nil {
		return 0, err
	}
	var count int
	if err := s.client.do(ctx, http.MethodGet, path, nil, &count); err != nil {
		return 0, err
	}
	return count, nil
}

// Close releases idle HTTP connections.
func (s *Store) Close() error {
	s.client.httpClient.CloseIdleConnections()
	return nil
}
