package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
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

// ChatHandler answers dataset questions through the session's stored context.
type ChatHandler struct {
	store  storage.Store
	ragSvc *rag.Service
	llm    *llm.Client
	graph  *graph.Builder
	cache  *redis.Client
	gen    analysis.ResponseGenerator
}

func NewChatHandler(store storage.Store, ragSvc *rag.Service, llmClient *llm.Client,
	graphBuilder *graph.Builder, cache *redis.Client) *ChatHandler {
	return &ChatHandler{
		store:  store,
		ragSvc: ragSvc,
		llm:    llmClient,
		graph:  graphBuilder,
		cache:  cache,
	}
}

// HandleChat stores the user message, builds the dataset-grounded prompt,
// and returns the enriched assistant answer. The user message persists even
// when the provider call fails.
func (h *ChatHandler) HandleChat(c *fiber.Ctx) error {
	session, err := fetchSession(c, h.store)
	if session == nil {
		return err
	}

	message := c.FormValue("message")
	apiKey := c.FormValue("gemini_api_key")
	if message == "" {
		return detail(c, fiber.StatusBadRequest, "Message is required")
	}

	userMsg := &models.Message{
		ID:        uuid.NewString(),
		SessionID: session.ID,
		Role:      "user",
		Content:   message,
		Timestamp: time.Now().UTC(),
	}
	if err := h.store.InsertMessage(c.Context(), userMsg); err != nil {
		logger.Error("Failed to store user message",
			zap.String("session_id", session.ID),
			zap.Error(err),
		)
		return detail(c, fiber.StatusInternalServerError, "Failed to store message")
	}
	h.invalidateHistory(c, session.ID)

	var columns []string
	if session.CSVPreview != nil {
		columns = session.CSVPreview.Columns
	}

	contextResult, intent := h.ragSvc.BuildContext(c.Context(), session.ID, message, columns)

	contextText := contextResult.Text
	if h.graph != nil && len(intent.Variables) > 0 {
		hints := h.graph.RelatedVariableHints(c.Context(), session.ID, intent.Variables)
		if len(hints) > 0 {
			contextText += "\n\nRELATED VARIABLES (from the session graph):\n- " + strings.Join(hints, "\n- ")
		}
	}

	systemPrompt := rag.BuildChatSystemPrompt(session, contextText)

	start := time.Now()
	response, err := h.llm.Chat(c.Context(), llm.ChatRequest{
		APIKey:       apiKey,
		SystemPrompt: systemPrompt,
		UserMessage:  message,
	})
	metrics.ObserveLLM("chat", start, err)
	if err != nil {
		logger.Error("Chat completion failed",
			zap.String("session_id", session.ID),
			zap.Error(err),
		)
		return llmErrorDetail(c, err)
	}

	structured := h.gen.Generate(message, intent, contextResult.ChunkTexts, response, time.Since(start).Seconds())
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
	if err := h.store.InsertMessage(c.Context(), assistantMsg); err != nil {
		logger.Error("Failed to store assistant message",
			zap.String("session_id", session.ID),
			zap.Error(err),
		)
		return detail(c, fiber.StatusInternalServerError, "Failed to store message")
	}
	h.invalidateHistory(c, session.ID)

	return c.JSON(fiber.Map{"response": formatted})
}

func (h *ChatHandler) invalidateHistory(c *fiber.Ctx, sessionID string) {
	if h.cache == nil {
		return
	}
	if err := h.cache.InvalidateHistory(c.Context(), sessionID); err != nil {
		logger.Warn("History cache invalidation failed",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	}
}
