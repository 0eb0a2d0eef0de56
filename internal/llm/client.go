package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/datachat/backend/pkg/circuitbreaker"
	"github.com/datachat/backend/pkg/config"
	"github.com/datachat/backend/pkg/logger"
	"github.com/datachat/backend/pkg/retry"
)

// Client talks to Gemini through its OpenAI-compatible endpoint. The API key
// arrives with every request from the frontend, so the client holds shared
// transport settings and builds a provider client per call.
type Client struct {
	baseURL        string
	model          string
	embeddingModel string
	embeddingKey   string
	temperature    float32
	maxTokens      int
	timeout        time.Duration
	httpClient     *http.Client
	cb             *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
}

type ChatRequest struct {
	APIKey       string
	Model        string
	SystemPrompt string
	UserMessage  string
	Temperature  float32
	MaxTokens    int
}

type ConnectionResult struct {
	Model           string `json:"model"`
	ResponsePreview string `json:"response_preview"`
}

func NewClient(cfg config.LLMConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout == 0 {
		timeout = 90 * time.Second
	}

	cb := circuitbreaker.NewCircuitBreaker("llm", circuitbreaker.Config{
		MaxRequests:      5,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:     3,
		InitialDelay:    500 * time.Millisecond,
		MaxDelay:        5 * time.Second,
		Multiplier:      2.0,
		JitterFraction:  0.1,
		RetryableErrors: []error{ErrRateLimited, ErrUnavailable},
		Logger:          logger.GetLogger(),
	}

	logger.Info("LLM client initialized",
		zap.String("base_url", cfg.BaseURL),
		zap.String("model", cfg.Model),
	)

	return &Client{
		baseURL:        cfg.BaseURL,
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		embeddingKey:   cfg.EmbeddingAPIKey,
		temperature:    cfg.Temperature,
		maxTokens:      cfg.MaxTokens,
		timeout:        timeout,
		httpClient:     &http.Client{Timeout: timeout},
		cb:             cb,
		retryConfig:    retryConfig,
	}
}

func (c *Client) apiClient(apiKey string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = c.baseURL
	cfg.HTTPClient = c.httpClient
	return openai.NewClientWithConfig(cfg)
}

func (c *Client) Model() string {
	return c.model
}

func (c *Client) resolveRequest(req ChatRequest) ChatRequest {
	if req.Model == "" {
		req.Model = c.model
	}
	if req.Temperature == 0 {
		req.Temperature = c.temperature
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = c.maxTokens
	}
	return req
}

func chatMessages(req ChatRequest) []openai.ChatCompletionMessage {
	var messages []openai.ChatCompletionMessage
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.UserMessage,
	})
	return messages
}

// Chat runs one completion round-trip and returns the assistant text.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (string, error) {
	req = c.resolveRequest(req)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	client := c.apiClient(req.APIKey)

	var content string

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := client.CreateChatCompletion(
				ctx,
				openai.ChatCompletionRequest{
					Model:       req.Model,
					Messages:    chatMessages(req),
					Temperature: req.Temperature,
					MaxTokens:   req.MaxTokens,
				},
			)

			if err != nil {
				return classifyError(err)
			}

			if len(resp.Choices) == 0 {
				return fmt.Errorf("%w: empty completion", ErrUnavailable)
			}

			logger.Debug("LLM completion generated",
				zap.String("model", req.Model),
				zap.Int("prompt_tokens", resp.Usage.PromptTokens),
				zap.Int("completion_tokens", resp.Usage.CompletionTokens),
			)

			content = resp.Choices[0].Message.Content
			return nil
		})
	})

	if err != nil {
		return "", err
	}

	return content, nil
}

// ChatStream streams completion deltas through onDelta and returns the full
// assembled text. Streams are not retried: delivered deltas are already on
// the wire.
func (c *Client) ChatStream(ctx context.Context, req ChatRequest, onDelta func(string) error) (string, error) {
	req = c.resolveRequest(req)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	client := c.apiClient(req.APIKey)

	var full string

	err := c.cb.Execute(ctx, func() error {
		stream, err := client.CreateChatCompletionStream(
			ctx,
			openai.ChatCompletionRequest{
				Model:       req.Model,
				Messages:    chatMessages(req),
				Temperature: req.Temperature,
				MaxTokens:   req.MaxTokens,
				Stream:      true,
			},
		)
		if err != nil {
			return classifyError(err)
		}
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return classifyError(err)
			}

			if len(resp.Choices) == 0 {
				continue
			}

			delta := resp.Choices[0].Delta.Content
			if delta == "" {
				continue
			}

			full += delta
			if err := onDelta(delta); err != nil {
				return fmt.Errorf("failed to deliver chunk: %w", err)
			}
		}
	})

	if err != nil {
		return "", err
	}

	return full, nil
}

// TestConnection verifies a user-supplied key with a short live completion.
func (c *Client) TestConnection(ctx context.Context, apiKey, model, message string) (*ConnectionResult, error) {
	if err := ValidateConnectionKey(apiKey); err != nil {
		return nil, err
	}

	if model == "" {
		model = c.model
	}
	if message == "" {
		message = "Hello! Please respond with a short greeting."
	}

	content, err := c.Chat(ctx, ChatRequest{
		APIKey:      apiKey,
		Model:       model,
		UserMessage: message,
		MaxTokens:   64,
	})
	if err != nil {
		return nil, err
	}

	preview := content
	if len(preview) > 120 {
		preview = preview[:120] + "..."
	}

	logger.Info("Connection test succeeded", zap.String("model", model))

	return &ConnectionResult{
		Model:           model,
		ResponsePreview: preview,
	}, nil
}

// Embed generates one embedding with the server-configured embedding key.
// Only the milvus vector backend needs client-side embeddings.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if c.embeddingKey == "" {
		return nil, fmt.Errorf("embedding api key is not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	client := c.apiClient(c.embeddingKey)

	var embeddings [][]float32

	batchSize := 100
	for i := 0; i < len(texts); i += batchSize {
		end := i + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch := texts[i:end]

		err := c.cb.Execute(ctx, func() error {
			return retry.Do(ctx, c.retryConfig, func() error {
				resp, err := client.CreateEmbeddings(
					ctx,
					openai.EmbeddingRequest{
						Input: batch,
						Model: openai.EmbeddingModel(c.embeddingModel),
					},
				)

				if err != nil {
					return classifyError(err)
				}

				for _, data := range resp.Data {
					embedding := make([]float32, len(data.Embedding))
					copy(embedding, data.Embedding)
					embeddings = append(embeddings, embedding)
				}

				return nil
			})
		})

		if err != nil {
			return nil, err
		}
	}

	logger.Debug("Batch embeddings generated", zap.Int("count", len(embeddings)))

	return embeddings, nil
}
