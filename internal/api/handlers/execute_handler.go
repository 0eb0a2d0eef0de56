package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/datachat/backend/internal/analysis"
	"github.com/datachat/backend/internal/llm"
	"github.com/datachat/backend/internal/metrics"
	"github.com/datachat/backend/internal/sandbox"
	"github.com/datachat/backend/internal/storage"
	"github.com/datachat/backend/pkg/logger"
)

// ExecuteHandler runs analysis code against a session's dataset, whole or
// split into sections.
type ExecuteHandler struct {
	store  storage.Store
	engine *analysis.Engine
}

func NewExecuteHandler(store storage.Store, engine *analysis.Engine) *ExecuteHandler {
	return &ExecuteHandler{store: store, engine: engine}
}

func (h *ExecuteHandler) Execute(c *fiber.Ctx) error {
	var req struct {
		SessionID    string `json:"session_id"`
		Code         string `json:"code"`
		GeminiAPIKey string `json:"gemini_api_key"`
	}
	if err := c.BodyParser(&req); err != nil {
		return detail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if req.Code == "" {
		return detail(c, fiber.StatusBadRequest, "Code is required")
	}

	session, err := fetchSession(c, h.store)
	if session == nil {
		return err
	}

	start := time.Now()
	result, err := h.engine.Execute(c.Context(), session, req.Code)
	if err != nil {
		metrics.ObserveExecution("plain", start, false)
		logger.Error("Code execution failed",
			zap.String("session_id", session.ID),
			zap.Error(err),
		)
		return detail(c, fiber.StatusInternalServerError, err.Error())
	}
	metrics.ObserveExecution("plain", start, result.Success)

	plots := result.Plots
	if plots == nil {
		plots = []sandbox.Plot{}
	}

	// error is null on success, matching what the frontend checks.
	var errValue interface{}
	if result.Error != "" {
		errValue = result.Error
	}

	return c.JSON(fiber.Map{
		"success": result.Success,
		"output":  result.Output,
		"plots":   plots,
		"error":   errValue,
	})
}

// ExecuteSectioned validates the API key, splits the code at its comment
// headers, and persists the per-section results.
func (h *ExecuteHandler) ExecuteSectioned(c *fiber.Ctx) error {
	var req struct {
		SessionID     string `json:"session_id"`
		Code          string `json:"code"`
		GeminiAPIKey  string `json:"gemini_api_key"`
		AnalysisTitle string `json:"analysis_title"`
		AutoSection   *bool  `json:"auto_section"`
	}
	if err := c.BodyParser(&req); err != nil {
		return detail(c, fiber.StatusBadRequest, "Invalid request body")
	}

	if err := llm.ValidateExecutionKey(req.GeminiAPIKey); err != nil {
		if errors.Is(err, llm.ErrKeyRequired) {
			return detail(c, fiber.StatusBadRequest, msgKeyRequired)
		}
		return detail(c, fiber.StatusBadRequest, msgTestKey)
	}

	if req.Code == "" {
		return detail(c, fiber.StatusBadRequest, "Code is required")
	}

	session, err := fetchSession(c, h.store)
	if session == nil {
		return err
	}

	autoSection := req.AutoSection == nil || *req.AutoSection

	start := time.Now()
	result, err := h.engine.ExecuteSectioned(c.Context(), session, req.Code, req.AnalysisTitle, autoSection)
	if err != nil {
		metrics.ObserveExecution("sectioned", start, false)
		logger.Error("Sectioned execution failed",
			zap.String("session_id", session.ID),
			zap.Error(err),
		)
		return detail(c, fiber.StatusInternalServerError, err.Error())
	}
	metrics.ObserveExecution("sectioned", start, result.OverallSuccess)

	if err := h.store.InsertStructuredAnalysis(c.Context(), result); err != nil {
		logger.Error("Failed to store structured analysis",
			zap.String("session_id", session.ID),
			zap.Error(err),
		)
		return detail(c, fiber.StatusInternalServerError, "Failed to store analysis result")
	}

	return c.JSON(result)
}
