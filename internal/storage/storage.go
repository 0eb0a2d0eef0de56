package storage

import (
	"context"
	"errors"

	"github.com/datachat/backend/internal/storage/models"
)

// ErrNotFound is returned by Get* methods when no record matches.
var ErrNotFound = errors.New("record not found")

// Store is the persistence boundary. Two drivers implement it: mongo
// (default) and sqlite. Selection happens in cmd/api via storage.driver.
type Store interface {
	CreateSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	ListSessions(ctx context.Context, limit int) ([]models.Session, error)

	InsertMessage(ctx context.Context, msg *models.Message) error
	ListMessages(ctx context.Context, sessionID string, limit int) ([]models.Message, error)

	InsertStructuredAnalysis(ctx context.Context, result *models.StructuredAnalysisResult) error
	ListStructuredAnalyses(ctx context.Context, sessionID string, limit int) ([]models.StructuredAnalysisResult, error)
	GetStructuredAnalysis(ctx context.Context, sessionID, analysisID string) (*models.StructuredAnalysisResult, error)

	InsertAnalysisResult(ctx context.Context, result *models.AnalysisResult) error
	ListAnalysisResults(ctx context.Context, sessionID string, limit int) ([]models.AnalysisResult, error)

	InsertComprehensiveAnalysis(ctx context.Context, result *models.ComprehensiveAnalysisResult) error
	GetComprehensiveAnalysis(ctx context.Context, sessionID string) (*models.ComprehensiveAnalysisResult, error)

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
