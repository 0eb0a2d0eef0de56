package handlers

import (
	"bytes"
	"encoding/base64"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/datachat/backend/internal/analysis"
	"github.com/datachat/backend/internal/cache/redis"
	"github.com/datachat/backend/internal/dataset"
	"github.com/datachat/backend/internal/graph"
	"github.com/datachat/backend/internal/metrics"
	"github.com/datachat/backend/internal/rag"
	"github.com/datachat/backend/internal/storage"
	"github.com/datachat/backend/internal/storage/models"
	"github.com/datachat/backend/internal/worker"
	"github.com/datachat/backend/pkg/logger"
)

// SessionHandler owns the upload flow and session reads. The graph builder,
// cache, and queue publisher are optional; a nil disables that feature.
type SessionHandler struct {
	store     storage.Store
	ragSvc    *rag.Service
	reporter  *analysis.Reporter
	graph     *graph.Builder
	cache     *redis.Client
	publisher *worker.Publisher
}

func NewSessionHandler(store storage.Store, ragSvc *rag.Service, reporter *analysis.Reporter,
	graphBuilder *graph.Builder, cache *redis.Client, publisher *worker.Publisher) *SessionHandler {
	return &SessionHandler{
		store:     store,
		ragSvc:    ragSvc,
		reporter:  reporter,
		graph:     graphBuilder,
		cache:     cache,
		publisher: publisher,
	}
}

// CreateSession accepts a CSV upload and builds a chat session around it:
// preview, stored session, dataset index, variable graph, and the automatic
// analysis report.
func (h *SessionHandler) CreateSession(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return detail(c, fiber.StatusBadRequest, "CSV file is required")
	}

	if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".csv") {
		return detail(c, fiber.StatusBadRequest, "Only CSV files are supported")
	}

	f, err := fileHeader.Open()
	if err != nil {
		logger.Error("Failed to open upload", zap.Error(err))
		return detail(c, fiber.StatusBadRequest, "Invalid CSV file: "+err.Error())
	}
	defer f.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(f); err != nil {
		logger.Error("Failed to read upload", zap.Error(err))
		return detail(c, fiber.StatusBadRequest, "Invalid CSV file: "+err.Error())
	}
	csvData := buf.Bytes()

	frame, err := dataset.Parse(bytes.NewReader(csvData))
	if err != nil {
		return detail(c, fiber.StatusBadRequest, "Invalid CSV file: "+err.Error())
	}

	session := &models.Session{
		ID:         uuid.NewString(),
		Title:      fileHeader.Filename,
		CreatedAt:  time.Now().UTC(),
		FileName:   fileHeader.Filename,
		FileData:   base64.StdEncoding.EncodeToString(csvData),
		CSVPreview: frame.Preview(),
	}

	if err := h.store.CreateSession(c.Context(), session); err != nil {
		logger.Error("Failed to store session", zap.Error(err))
		return detail(c, fiber.StatusInternalServerError, "Failed to create session")
	}
	metrics.SessionsCreated.Inc()

	if err := h.ragSvc.IndexSession(c.Context(), session.ID, frame); err != nil {
		logger.Warn("Dataset indexing failed",
			zap.String("session_id", session.ID),
			zap.Error(err),
		)
	}

	if h.graph != nil {
		if err := h.graph.BuildSessionGraph(c.Context(), session.ID, frame); err != nil {
			logger.Warn("Variable graph build failed",
				zap.String("session_id", session.ID),
				zap.Error(err),
			)
		}
	}

	if h.publisher != nil {
		if err := h.publisher.EnqueueAnalysis(c.Context(), session.ID); err != nil {
			logger.Warn("Failed to enqueue analysis job, running inline",
				zap.String("session_id", session.ID),
				zap.Error(err),
			)
			h.reporter.Report(c.Context(), session, frame)
		}
	} else {
		h.reporter.Report(c.Context(), session, frame)
	}

	rows, cols := frame.Shape()
	logger.Info("Session created",
		zap.String("session_id", session.ID),
		zap.String("file", session.FileName),
		zap.Int("rows", rows),
		zap.Int("columns", cols),
	)

	return c.JSON(session)
}

func (h *SessionHandler) ListSessions(c *fiber.Ctx) error {
	sessions, err := h.store.ListSessions(c.Context(), sessionListLimit)
	if err != nil {
		logger.Error("Failed to list sessions", zap.Error(err))
		return detail(c, fiber.StatusInternalServerError, "Failed to list sessions")
	}

	if sessions == nil {
		sessions = []models.Session{}
	}
	return c.JSON(sessions)
}

func (h *SessionHandler) GetSession(c *fiber.Ctx) error {
	session, err := fetchSession(c, h.store)
	if session == nil {
		return err
	}
	return c.JSON(session)
}

// ListMessages returns the session's chat history oldest-first, served from
// the short-lived history cache when possible.
func (h *SessionHandler) ListMessages(c *fiber.Ctx) error {
	sessionID := c.Params("id")

	if h.cache != nil {
		var cached []models.Message
		if ok, err := h.cache.GetHistory(c.Context(), sessionID, &cached); err != nil {
			logger.Warn("History cache read failed", zap.Error(err))
		} else if ok {
			return c.JSON(cached)
		}
	}

	messages, err := h.store.ListMessages(c.Context(), sessionID, messageListLimit)
	if err != nil {
		logger.Error("Failed to list messages",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		return detail(c, fiber.StatusInternalServerError, "Failed to list messages")
	}

	if messages == nil {
		messages = []models.Message{}
	}

	if h.cache != nil {
		if err := h.cache.SetHistory(c.Context(), sessionID, messages); err != nil {
			logger.Warn("History cache write failed", zap.Error(err))
		}
	}

	return c.JSON(messages)
}
