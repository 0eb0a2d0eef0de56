package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/datachat/backend/internal/llm"
	"github.com/datachat/backend/internal/metrics"
	"github.com/datachat/backend/pkg/logger"
)

// ConnectionHandler verifies a user-supplied Gemini key with a live
// round-trip before the frontend lets them start chatting.
type ConnectionHandler struct {
	llm *llm.Client
}

func NewConnectionHandler(llmClient *llm.Client) *ConnectionHandler {
	return &ConnectionHandler{llm: llmClient}
}

func (h *ConnectionHandler) TestConnection(c *fiber.Ctx) error {
	var req struct {
		GeminiAPIKey string `json:"gemini_api_key"`
		Model        string `json:"model"`
		Message      string `json:"message"`
	}
	if err := c.BodyParser(&req); err != nil {
		return detail(c, fiber.StatusBadRequest, "Invalid request body")
	}

	start := time.Now()
	result, err := h.llm.TestConnection(c.Context(), req.GeminiAPIKey, req.Model, req.Message)
	metrics.ObserveLLM("connection_test", start, err)
	if err != nil {
		logger.Warn("Connection test failed", zap.Error(err))
		switch {
		case errors.Is(err, llm.ErrKeyRequired):
			return detail(c, fiber.StatusBadRequest, msgKeyRequired)
		case errors.Is(err, llm.ErrTestKey):
			return detail(c, fiber.StatusBadRequest, "Please provide a valid Gemini API key. Test keys are not supported.")
		case errors.Is(err, llm.ErrRateLimited):
			return detail(c, fiber.StatusTooManyRequests, msgRateLimited)
		case errors.Is(err, llm.ErrInvalidAPIKey):
			return detail(c, fiber.StatusBadRequest, msgInvalidKey)
		default:
			return detail(c, fiber.StatusInternalServerError, "Connection test failed: "+err.Error())
		}
	}

	return c.JSON(fiber.Map{
		"success":          true,
		"message":          "Connection successful! Your Gemini API key is working.",
		"model":            result.Model,
		"response_preview": result.ResponsePreview,
	})
}
