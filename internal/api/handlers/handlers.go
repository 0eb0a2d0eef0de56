package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/datachat/backend/internal/llm"
	"github.com/datachat/backend/internal/storage"
	"github.com/datachat/backend/internal/storage/models"
	"github.com/datachat/backend/pkg/logger"
)

// List limits match what the frontend pages through.
const (
	sessionListLimit    = 100
	messageListLimit    = 1000
	structuredListLimit = 50
	historyListLimit    = 1000
)

const (
	msgKeyRequired = "Gemini API key is required"
	msgTestKey     = "Please provide a valid Gemini API key. Test keys are not supported for code execution."
	msgRateLimited = "Rate limit exceeded. Please wait a moment and try again. Consider using Gemini 2.5 Flash for faster response times."
	msgInvalidKey  = "Invalid API key or request. Please check your Gemini API key and try again."
)

// detail writes the error body shape the frontend expects on every route.
func detail(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"detail": msg})
}

// llmErrorMessage maps provider errors onto the status code and message the
// chat UI surfaces to users.
func llmErrorMessage(err error) (int, string) {
	switch {
	case errors.Is(err, llm.ErrKeyRequired):
		return fiber.StatusBadRequest, msgKeyRequired
	case errors.Is(err, llm.ErrTestKey):
		return fiber.StatusBadRequest, msgTestKey
	case errors.Is(err, llm.ErrRateLimited):
		return fiber.StatusTooManyRequests, msgRateLimited
	case errors.Is(err, llm.ErrInvalidAPIKey):
		return fiber.StatusBadRequest, msgInvalidKey
	default:
		return fiber.StatusInternalServerError, "LLM Error: " + err.Error()
	}
}

func llmErrorDetail(c *fiber.Ctx, err error) error {
	status, msg := llmErrorMessage(err)
	return detail(c, status, msg)
}

// fetchSession loads the session named by the route's :id parameter. On a
// miss or storage failure it writes the response itself and returns a nil
// session, so callers return the error as-is.
func fetchSession(c *fiber.Ctx, store storage.Store) (*models.Session, error) {
	id := c.Params("id")

	session, err := store.GetSession(c.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, detail(c, fiber.StatusNotFound, "Session not found")
		}
		logger.Error("Failed to load session",
			zap.String("session_id", id),
			zap.Error(err),
		)
		return nil, detail(c, fiber.StatusInternalServerError, "Failed to load session")
	}

	return session, nil
}
