package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/datachat/backend/internal/vector"
	"github.com/datachat/backend/pkg/config"
	"github.com/datachat/backend/pkg/logger"
	"github.com/datachat/backend/pkg/retry"
)

// Client is a REST client for a ChromaDB server. Documents are sent without
// embeddings; the server embeds them with the collection's default embedding
// function.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	retryConfig retry.Config

	mu          sync.RWMutex
	collections map[string]string
}

func NewClient(cfg config.ChromaConfig) (*Client, error) {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		baseURL:    cfg.URL,
		httpClient: &http.Client{Timeout: timeout},
		retryConfig: retry.Config{
			MaxAttempts:    3,
			InitialDelay:   200 * time.Millisecond,
			MaxDelay:       3 * time.Second,
			Multiplier:     2.0,
			JitterFraction: 0.1,
			Logger:         logger.GetLogger(),
		},
		collections: make(map[string]string),
	}

	logger.Info("Chroma client initialized", zap.String("url", cfg.URL))

	return c, nil
}

func (c *Client) Close() error {
	return nil
}

// Heartbeat checks server liveness. Used by the readiness endpoint.
func (c *Client) Heartbeat(ctx context.Context) error {
	return c.doRequest(ctx, http.MethodGet, "/api/v1/heartbeat", nil, nil)
}

type collectionResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// EnsureCollection resolves the collection name to its server-side id,
// creating the collection when missing. Ids are cached per name.
func (c *Client) EnsureCollection(ctx context.Context, name string) error {
	_, err := c.collectionID(ctx, name)
	return err
}

func (c *Client) collectionID(ctx context.Context, name string) (string, error) {
	c.mu.RLock()
	id, ok := c.collections[name]
	c.mu.RUnlock()
	if ok {
		return id, nil
	}

	body := map[string]interface{}{
		"name":          name,
		"get_or_create": true,
	}

	var resp collectionResponse
	err := retry.Do(ctx, c.retryConfig, func() error {
		return c.doRequest(ctx, http.MethodPost, "/api/v1/collections", body, &resp)
	})
	if err != nil {
		return "", fmt.Errorf("failed to get or create collection %s: %w", name, err)
	}

	c.mu.Lock()
	c.collections[name] = resp.ID
	c.mu.Unlock()

	logger.Debug("Chroma collection resolved",
		zap.String("name", name),
		zap.String("id", resp.ID),
	)

	return resp.ID, nil
}

func (c *Client) AddChunks(ctx context.Context, name string, chunks []vector.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	id, err := c.collectionID(ctx, name)
	if err != nil {
		return err
	}

	ids := make([]string, len(chunks))
	documents := make([]string, len(chunks))
	metadatas := make([]map[string]string, len(chunks))

	for i, chunk := range chunks {
		ids[i] = chunk.ID
		documents[i] = chunk.Text
		metadatas[i] = chunk.Metadata
	}

	body := map[string]interface{}{
		"ids":       ids,
		"documents": documents,
		"metadatas": metadatas,
	}

	path := fmt.Sprintf("/api/v1/collections/%s/add", id)
	err = retry.Do(ctx, c.retryConfig, func() error {
		return c.doRequest(ctx, http.MethodPost, path, body, nil)
	})
	if err != nil {
		return fmt.Errorf("failed to add chunks: %w", err)
	}

	logger.Info("Chunks added to vector DB",
		zap.String("collection", name),
		zap.Int("count", len(chunks)),
	)

	return nil
}

type queryResponse struct {
	IDs       [][]string            `json:"ids"`
	Documents [][]string            `json:"documents"`
	Metadatas [][]map[string]string `json:"metadatas"`
	Distances [][]float32           `json:"distances"`
}

func (c *Client) Query(ctx context.Context, name, queryText string, topK int, where map[string]string) ([]vector.Result, error) {
	id, err := c.collectionID(ctx, name)
	if err != nil {
		return nil, err
	}

	body := map[string]interface{}{
		"query_texts": []string{queryText},
		"n_results":   topK,
		"include":     []string{"documents", "metadatas", "distances"},
	}
	if len(where) > 0 {
		body["where"] = where
	}

	var resp queryResponse
	path := fmt.Sprintf("/api/v1/collections/%s/query", id)
	err = retry.Do(ctx, c.retryConfig, func() error {
		return c.doRequest(ctx, http.MethodPost, path, body, &resp)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}

	if len(resp.IDs) == 0 {
		return nil, nil
	}

	results := make([]vector.Result, 0, len(resp.IDs[0]))
	for i := range resp.IDs[0] {
		r := vector.Result{ID: resp.IDs[0][i]}
		if len(resp.Documents) > 0 && i < len(resp.Documents[0]) {
			r.Text = resp.Documents[0][i]
		}
		if len(resp.Metadatas) > 0 && i < len(resp.Metadatas[0]) {
			r.Metadata = resp.Metadatas[0][i]
		}
		if len(resp.Distances) > 0 && i < len(resp.Distances[0]) {
			r.Distance = resp.Distances[0][i]
		}
		results = append(results, r)
	}

	logger.Debug("Vector query completed",
		zap.String("collection", name),
		zap.Int("results", len(results)),
	)

	return results, nil
}

func (c *Client) DropCollection(ctx context.Context, name string) error {
	path := fmt.Sprintf("/api/v1/collections/%s", name)
	err := retry.Do(ctx, c.retryConfig, func() error {
		return c.doRequest(ctx, http.MethodDelete, path, nil, nil)
	})
	if err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}

	c.mu.Lock()
	delete(c.collections, name)
	c.mu.Unlock()

	return nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("chroma returned %d: %s", resp.StatusCode, string(data))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
