// Package redis caches chat history, retrieval context, and analysis
// suggestions. The cache is optional: every caller treats a read error as a
// miss and a write error as a warning, so a dead Redis never fails a request.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/datachat/backend/internal/metrics"
	"github.com/datachat/backend/pkg/logger"
)

const (
	historyTTL    = 60 * time.Second
	contextTTL    = 10 * time.Minute
	suggestionTTL = 10 * time.Minute
)

type Client struct {
	client *redis.Client
}

func NewClient(host string, port int, password string, db int) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{client: client}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// SetHistory caches a session's message list. The short TTL keeps repeated
// polls cheap without holding stale history for long.
func (c *Client) SetHistory(ctx context.Context, sessionID string, messages interface{}) error {
	data, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to marshal messages: %w", err)
	}

	err = c.client.Set(ctx, historyKey(sessionID), data, historyTTL).Err()
	if err != nil {
		return fmt.Errorf("failed to set history cache: %w", err)
	}

	logger.Debug("History cached", zap.String("session_id", sessionID))
	return nil
}

func (c *Client) GetHistory(ctx context.Context, sessionID string, messages interface{}) (bool, error) {
	data, err := c.client.Get(ctx, historyKey(sessionID)).Bytes()
	if err == redis.Nil {
		metrics.CacheMisses.WithLabelValues("history").Inc()
		return false, nil
	}
	if err != nil {
		metrics.CacheMisses.WithLabelValues("history").Inc()
		return false, fmt.Errorf("failed to get history cache: %w", err)
	}

	err = json.Unmarshal(data, messages)
	if err != nil {
		return false, fmt.Errorf("failed to unmarshal messages: %w", err)
	}

	metrics.CacheHits.WithLabelValues("history").Inc()
	logger.Debug("History cache hit", zap.String("session_id", sessionID))
	return true, nil
}

// InvalidateHistory drops the cached message list after a write so the next
// read sees the new message immediately.
func (c *Client) InvalidateHistory(ctx context.Context, sessionID string) error {
	err := c.client.Del(ctx, historyKey(sessionID)).Err()
	if err != nil {
		return fmt.Errorf("failed to invalidate history cache: %w", err)
	}
	return nil
}

func (c *Client) SetContext(ctx context.Context, contextHash string, contextText string) error {
	err := c.client.Set(ctx, contextKey(contextHash), contextText, contextTTL).Err()
	if err != nil {
		return fmt.Errorf("failed to set context cache: %w", err)
	}

	logger.Debug("Retrieval context cached", zap.String("context_hash", contextHash))
	return nil
}

func (c *Client) GetContext(ctx context.Context, contextHash string) (string, bool, error) {
	data, err := c.client.Get(ctx, contextKey(contextHash)).Result()
	if err == redis.Nil {
		metrics.CacheMisses.WithLabelValues("context").Inc()
		return "", false, nil
	}
	if err != nil {
		metrics.CacheMisses.WithLabelValues("context").Inc()
		return "", false, fmt.Errorf("failed to get context cache: %w", err)
	}

	metrics.CacheHits.WithLabelValues("context").Inc()
	logger.Debug("Retrieval context cache hit", zap.String("context_hash", contextHash))
	return data, true, nil
}

func (c *Client) SetSuggestions(ctx context.Context, sessionID string, suggestions string) error {
	err := c.client.Set(ctx, suggestionKey(sessionID), suggestions, suggestionTTL).Err()
	if err != nil {
		return fmt.Errorf("failed to set suggestion cache: %w", err)
	}

	logger.Debug("Suggestions cached", zap.String("session_id", sessionID))
	return nil
}

func (c *Client) GetSuggestions(ctx context.Context, sessionID string) (string, bool, error) {
	data, err := c.client.Get(ctx, suggestionKey(sessionID)).Result()
	if err == redis.Nil {
		metrics.CacheMisses.WithLabelValues("suggestions").Inc()
		return "", false, nil
	}
	if err != nil {
		metrics.CacheMisses.WithLabelValues("suggestions").Inc()
		return "", false, fmt.Errorf("failed to get suggestion cache: %w", err)
	}

	metrics.CacheHits.WithLabelValues("suggestions").Inc()
	logger.Debug("Suggestion cache hit", zap.String("session_id", sessionID))
	return data, true, nil
}

func historyKey(sessionID string) string {
	return fmt.Sprintf("chat:history:%s", sessionID)
}

func contextKey(contextHash string) string {
	return fmt.Sprintf("rag:context:%s", contextHash)
}

func suggestionKey(sessionID string) string {
	return fmt.Sprintf("suggest:%s", sessionID)
}
