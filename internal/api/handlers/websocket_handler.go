package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/datachat/backend/internal/analysis"
	"github.com/datachat/backend/internal/cache/redis"
	"github.com/datachat/backend/internal/graph"
	"github.com/datachat/backend/internal/llm"
	"github.com/datachat/backend/internal/metrics"
	"github.com/datachat/backend/internal/rag"
	"github.com/datachat/backend/internal/storage"
	"github.com/datachat/backend/internal/storage/models"
	"github.com/datachat/backend/pkg/logger"
)

// WebSocketHandler streams chat answers chunk by chunk so long analyses
// render progressively in the UI.
type WebSocketHandler struct {
	store  storage.Store
	ragSvc *rag.Service
	llm    *llm.Client
	graph  *graph.Builder
	cache  *redis.Client
	gen    analysis.ResponseGenerator
}

func NewWebSocketHandler(store storage.Store, ragSvc *rag.Service, llmClient *llm.Client,
	graphBuilder *graph.Builder, cache *redis.Client) *WebSocketHandler {
	return &WebSocketHandler{
		store:  store,
		ragSvc: ragSvc,
		llm:    llmClient,
		graph:  graphBuilder,
		cache:  cache,
	}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	sessionID := c.Params("id")
	logger.Info("WebSocket connection established", zap.String("session_id", sessionID))

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed", zap.String("session_id", sessionID))
	}()

	for {
		var msg struct {
			Type    string `json:"type"`
			Content string `json:"content"`
			APIKey  string `json:"api_key"`
		}

		if err := c.ReadJSON(&msg); err != nil {
			logger.Debug("WebSocket read ended", zap.Error(err))
			break
		}

		if msg.Type != "chat" {
			continue
		}
		if msg.Content == "" {
			h.sendError(c, "Message is required")
			continue
		}

		h.streamChat(c, sessionID, msg.Content, msg.APIKey)
	}
}

// streamChat mirrors the HTTP chat flow: store the user message, build the
// dataset-grounded prompt, stream deltas, then store the enriched answer.
func (h *WebSocketHandler) streamChat(c *websocket.Conn, sessionID, message, apiKey string) {
	ctx := context.Background()

	session, err := h.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.sendError(c, "Session not found")
			return
		}
		logger.Error("Failed to load session",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		h.sendError(c, "Failed to load session")
		return
	}

	userMsg := &models.Message{
		ID:        uuid.NewString(),
		SessionID: session.ID,
		Role:      "user",
		Content:   message,
		Timestamp: time.Now().UTC(),
	}
	if err := h.store.InsertMessage(ctx, userMsg); err != nil {
		logger.Error("Failed to store user message",
			zap.String("session_id", session.ID),
			zap.Error(err),
		)
		h.sendError(c, "Failed to store message")
		return
	}
	h.invalidateHistory(ctx, session.ID)

	var columns []string
	if session.CSVPreview != nil {
		columns = session.CSVPreview.Columns
	}

	contextResult, intent := h.ragSvc.BuildContext(ctx, session.ID, message, columns)

	contextText := contextResult.Text
	if h.graph != nil && len(intent.Variables) > 0 {
		hints := h.graph.RelatedVariableHints(ctx, session.ID, intent.Variables)
		if len(hints) > 0 {
			contextText += "\n\nRELATED VARIABLES (from the session graph):\n- " + strings.Join(hints, "\n- ")
		}
	}

	systemPrompt := rag.BuildChatSystemPrompt(session, contextText)

	start := time.Now()
	full, err := h.llm.ChatStream(ctx, llm.ChatRequest{
		APIKey:       apiKey,
		SystemPrompt: systemPrompt,
		UserMessage:  message,
	}, func(delta string) error {
		return h.sendChunk(c, delta)
	})
	metrics.ObserveLLM("stream", start, err)
	if err != nil {
		logger.Error("Streaming chat failed",
			zap.String("session_id", session.ID),
			zap.Error(err),
		)
		_, errMsg := llmErrorMessage(err)
		h.sendError(c, errMsg)
		return
	}

	structured := h.gen.Generate(message, intent, contextResult.ChunkTexts, full, time.Since(start).Seconds())
	formatted := h.gen.FormatForFrontend(structured)

	assistantMsg := &models.Message{
		ID:        uuid.NewString(),
		SessionID: session.ID,
		Role:      "assistant",
		Content:   formatted,
		Timestamp: time.Now().UTC(),
		AnalysisResult: map[string]interface{}{
			"query_type":      string(intent.Type),
			"confidence":      structured.Confidence,
			"processing_time": structured.ProcessingTime,
		},
	}
	if err := h.store.InsertMessage(ctx, assistantMsg); err != nil {
		logger.Error("Failed to store assistant message",
			zap.String("session_id", session.ID),
			zap.Error(err),
		)
		h.sendError(c, "Failed to store message")
		return
	}
	h.invalidateHistory(ctx, session.ID)

	h.sendComplete(c, assistantMsg.ID)
}

func (h *WebSocketHandler) sendChunk(c *websocket.Conn, content string) error {
	return c.WriteJSON(map[string]interface{}{
		"type":    "chunk",
		"content": content,
	})
}

func (h *WebSocketHandler) sendComplete(c *websocket.Conn, messageID string) {
	err := c.WriteJSON(map[string]interface{}{
		"type":       "complete",
		"message_id": messageID,
	})
	if err != nil {
		logger.Warn("Failed to send completion frame", zap.Error(err))
	}
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	c.WriteJSON(map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	})
}

func (h *WebSocketHandler) invalidateHistory(ctx context.Context, sessionID string) {
	if h.cache == nil {
		return
	}
	if err := h.cache.InvalidateHistory(ctx, sessionID); err != nil {
		logger.Warn("History cache invalidation failed",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	}
}
