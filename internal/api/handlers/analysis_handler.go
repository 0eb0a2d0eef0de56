package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/datachat/backend/internal/cache/redis"
	"github.com/datachat/backend/internal/graph"
	"github.com/datachat/backend/internal/llm"
	"github.com/datachat/backend/internal/metrics"
	"github.com/datachat/backend/internal/rag"
	"github.com/datachat/backend/internal/storage"
	"github.com/datachat/backend/internal/storage/models"
	"github.com/datachat/backend/pkg/logger"
)

const maxSuggestionHints = 10

// AnalysisHandler serves stored analysis artifacts and LLM-generated
// analysis suggestions.
type AnalysisHandler struct {
	store storage.Store
	llm   *llm.Client
	graph *graph.Builder
	cache *redis.Client
}

func NewAnalysisHandler(store storage.Store, llmClient *llm.Client,
	graphBuilder *graph.Builder, cache *redis.Client) *AnalysisHandler {
	return &AnalysisHandler{
		store: store,
		llm:   llmClient,
		graph: graphBuilder,
		cache: cache,
	}
}

func (h *AnalysisHandler) ListStructuredAnalyses(c *fiber.Ctx) error {
	analyses, err := h.store.ListStructuredAnalyses(c.Context(), c.Params("id"), structuredListLimit)
	if err != nil {
		logger.Error("Failed to list structured analyses",
			zap.String("session_id", c.Params("id")),
			zap.Error(err),
		)
		return detail(c, fiber.StatusInternalServerError, "Failed to list analyses")
	}

	if analyses == nil {
		analyses = []models.StructuredAnalysisResult{}
	}
	return c.JSON(analyses)
}

func (h *AnalysisHandler) GetStructuredAnalysis(c *fiber.Ctx) error {
	analysis, err := h.store.GetStructuredAnalysis(c.Context(), c.Params("id"), c.Params("analysisID"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return detail(c, fiber.StatusNotFound, "Analysis not found")
		}
		logger.Error("Failed to load structured analysis",
			zap.String("session_id", c.Params("id")),
			zap.String("analysis_id", c.Params("analysisID")),
			zap.Error(err),
		)
		return detail(c, fiber.StatusInternalServerError, "Failed to load analysis")
	}

	return c.JSON(analysis)
}

// SuggestAnalysis asks the model for a biostatistician's analysis plan built
// from the stored preview. Responses are cached briefly per session since
// the prompt only changes when the dataset does.
func (h *AnalysisHandler) SuggestAnalysis(c *fiber.Ctx) error {
	session, err := fetchSession(c, h.store)
	if session == nil {
		return err
	}

	apiKey := c.FormValue("gemini_api_key")

	if h.cache != nil {
		if cached, ok, err := h.cache.GetSuggestions(c.Context(), session.ID); err != nil {
			logger.Warn("Suggestion cache read failed", zap.Error(err))
		} else if ok {
			return c.JSON(fiber.Map{"suggestions": cached})
		}
	}

	prompt := rag.BuildSuggestionPrompt(session)

	if h.graph != nil && session.CSVPreview != nil {
		hints := h.graph.RelatedVariableHints(c.Context(), session.ID, session.CSVPreview.Columns)
		if len(hints) > maxSuggestionHints {
			hints = hints[:maxSuggestionHints]
		}
		if len(hints) > 0 {
			prompt += "\n\nKNOWN VARIABLE RELATIONSHIPS:\n- " + strings.Join(hints, "\n- ")
		}
	}

	start := time.Now()
	response, err := h.llm.Chat(c.Context(), llm.ChatRequest{
		APIKey:       apiKey,
		SystemPrompt: rag.SuggestionSystemMessage,
		UserMessage:  prompt,
	})
	metrics.ObserveLLM("suggest", start, err)
	if err != nil {
		logger.Error("Suggestion generation failed",
			zap.String("session_id", session.ID),
			zap.Error(err),
		)
		return llmErrorDetail(c, err)
	}

	if h.cache != nil {
		if err := h.cache.SetSuggestions(c.Context(), session.ID, response); err != nil {
			logger.Warn("Suggestion cache write failed", zap.Error(err))
		}
	}

	return c.JSON(fiber.Map{"suggestions": response})
}

func (h *AnalysisHandler) AnalysisHistory(c *fiber.Ctx) error {
	results, err := h.store.ListAnalysisResults(c.Context(), c.Params("id"), historyListLimit)
	if err != nil {
		logger.Error("Failed to list analysis history",
			zap.String("session_id", c.Params("id")),
			zap.Error(err),
		)
		return detail(c, fiber.StatusInternalServerError, "Failed to list analysis history")
	}

	if results == nil {
		results = []models.AnalysisResult{}
	}
	return c.JSON(results)
}

// SaveAnalysis stores one analysis record in the session's history. The
// session id in the path wins over whatever the body carries.
func (h *AnalysisHandler) SaveAnalysis(c *fiber.Ctx) error {
	var result models.AnalysisResult
	if err := c.BodyParser(&result); err != nil {
		return detail(c, fiber.StatusBadRequest, "Invalid request body")
	}

	result.SessionID = c.Params("id")
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	if result.Timestamp.IsZero() {
		result.Timestamp = time.Now().UTC()
	}

	if err := h.store.InsertAnalysisResult(c.Context(), &result); err != nil {
		logger.Error("Failed to save analysis result",
			zap.String("session_id", result.SessionID),
			zap.Error(err),
		)
		return detail(c, fiber.StatusInternalServerError, "Failed to save analysis")
	}

	return c.JSON(fiber.Map{"message": "Analysis saved successfully"})
}

func (h *AnalysisHandler) GetComprehensiveAnalysis(c *fiber.Ctx) error {
	analysis, err := h.store.GetComprehensiveAnalysis(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return detail(c, fiber.StatusNotFound, "Comprehensive analysis not found")
		}
		logger.Error("Failed to load comprehensive analysis",
			zap.String("session_id", c.Params("id")),
			zap.Error(err),
		)
		return detail(c, fiber.StatusInternalServerError, "Failed to load analysis")
	}

	return c.JSON(analysis)
}
