package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/datachat/backend/internal/storage"
	"github.com/datachat/backend/internal/storage/models"
	"github.com/datachat/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chat_sessions (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		file_name TEXT,
		file_data TEXT,
		csv_preview TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_created ON chat_sessions(created_at);

	CREATE TABLE IF NOT EXISTS chat_messages (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		analysis_result TEXT,
		FOREIGN KEY (session_id) REFERENCES chat_sessions(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON chat_messages(session_id, timestamp);

	CREATE TABLE IF NOT EXISTS structured_analyses (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		title TEXT NOT NULL,
		sections TEXT NOT NULL,
		total_sections INTEGER NOT NULL,
		execution_time REAL NOT NULL,
		timestamp INTEGER NOT NULL,
		overall_success INTEGER NOT NULL,
		FOREIGN KEY (session_id) REFERENCES chat_sessions(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_structured_session ON structured_analyses(session_id, timestamp);

	CREATE TABLE IF NOT EXISTS analysis_results (
		id TEXT PRIMARY KEY,
		session_id TEXT,
		analysis_type TEXT NOT NULL,
		variables TEXT,
		test_statistic REAL,
		p_value REAL,
		effect_size REAL,
		confidence_interval TEXT,
		method TEXT,
		results_summary TEXT,
		timestamp INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_results_session ON analysis_results(session_id, timestamp);

	CREATE TABLE IF NOT EXISTS comprehensive_analyses (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		filename TEXT,
		analysis_data TEXT,
		interpretation TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_comprehensive_session ON comprehensive_analyses(session_id);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

// Timestamps are stored as Unix milliseconds so that a user message and the
// assistant reply written in the same second keep their order.

func (c *Client) CreateSession(ctx context.Context, session *models.Session) error {
	previewJSON, err := json.Marshal(session.CSVPreview)
	if err != nil {
		return fmt.Errorf("failed to encode preview: %w", err)
	}

	query := `INSERT INTO chat_sessions (id, title, created_at, file_name, file_data, csv_preview) VALUES (?, ?, ?, ?, ?, ?)`

	_, err = c.db.ExecContext(
		ctx,
		query,
		session.ID,
		session.Title,
		session.CreatedAt.UnixMilli(),
		session.FileName,
		session.FileData,
		string(previewJSON),
	)

	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	logger.Debug("Session created", zap.String("session_id", session.ID))
	return nil
}

func (c *Client) GetSession(ctx context.Context, id string) (*models.Session, error) {
	query := `SELECT id, title, created_at, file_name, file_data, csv_preview FROM chat_sessions WHERE id = ?`

	var session models.Session
	var createdAt int64
	var previewJSON string

	err := c.db.QueryRowContext(ctx, query, id).Scan(
		&session.ID,
		&session.Title,
		&createdAt,
		&session.FileName,
		&session.FileData,
		&previewJSON,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	session.CreatedAt = time.UnixMilli(createdAt).UTC()
	if previewJSON != "" && previewJSON != "null" {
		if err := json.Unmarshal([]byte(previewJSON), &session.CSVPreview); err != nil {
			return nil, fmt.Errorf("failed to decode preview: %w", err)
		}
	}

	return &session, nil
}

func (c *Client) ListSessions(ctx context.Context, limit int) ([]models.Session, error) {
	query := `SELECT id, title, created_at, file_name, file_data, csv_preview FROM chat_sessions ORDER BY created_at DESC LIMIT ?`

	rows, err := c.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		var s models.Session
		var createdAt int64
		var previewJSON string

		err := rows.Scan(&s.ID, &s.Title, &createdAt, &s.FileName, &s.FileData, &previewJSON)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		s.CreatedAt = time.UnixMilli(createdAt).UTC()
		if previewJSON != "" && previewJSON != "null" {
			if err := json.Unmarshal([]byte(previewJSON), &s.CSVPreview); err != nil {
				return nil, fmt.Errorf("failed to decode preview: %w", err)
			}
		}

		sessions = append(sessions, s)
	}

	return sessions, rows.Err()
}

func (c *Client) InsertMessage(ctx context.Context, msg *models.Message) error {
	var analysisJSON []byte
	if msg.AnalysisResult != nil {
		var err error
		analysisJSON, err = json.Marshal(msg.AnalysisResult)
		if err != nil {
			return fmt.Errorf("failed to encode analysis result: %w", err)
		}
	}

	query := `INSERT INTO chat_messages (id, session_id, role, content, timestamp, analysis_result) VALUES (?, ?, ?, ?, ?, ?)`

	_, err := c.db.ExecContext(
		ctx,
		query,
		msg.ID,
		msg.SessionID,
		msg.Role,
		msg.Content,
		msg.Timestamp.UnixMilli(),
		string(analysisJSON),
	)

	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	return nil
}

func (c *Client) ListMessages(ctx context.Context, sessionID string, limit int) ([]models.Message, error) {
	query := `SELECT id, session_id, role, content, timestamp, analysis_result FROM chat_messages WHERE session_id = ? ORDER BY timestamp ASC LIMIT ?`

	rows, err := c.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		var timestamp int64
		var analysisJSON string

		err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &timestamp, &analysisJSON)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		m.Timestamp = time.UnixMilli(timestamp).UTC()
		if analysisJSON != "" {
			json.Unmarshal([]byte(analysisJSON), &m.AnalysisResult)
		}

		messages = append(messages, m)
	}

	return messages, rows.Err()
}

func (c *Client) InsertStructuredAnalysis(ctx context.Context, result *models.StructuredAnalysisResult) error {
	sectionsJSON, err := json.Marshal(result.Sections)
	if err != nil {
		return fmt.Errorf("failed to encode sections: %w", err)
	}

	overallSuccess := 0
	if result.OverallSuccess {
		overallSuccess = 1
	}

	query := `
		INSERT INTO structured_analyses (id, session_id, title, sections, total_sections, execution_time, timestamp, overall_success)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = c.db.ExecContext(
		ctx,
		query,
		result.ID,
		result.SessionID,
		result.Title,
		string(sectionsJSON),
		result.TotalSections,
		result.ExecutionTime,
		result.Timestamp.UnixMilli(),
		overallSuccess,
	)

	if err != nil {
		return fmt.Errorf("failed to insert structured analysis: %w", err)
	}

	logger.Debug("Structured analysis stored",
		zap.String("analysis_id", result.ID),
		zap.Int("sections", result.TotalSections),
	)

	return nil
}

func (c *Client) ListStructuredAnalyses(ctx context.Context, sessionID string, limit int) ([]models.StructuredAnalysisResult, error) {
	query := `
		SELECT id, session_id, title, sections, total_sections, execution_time, timestamp, overall_success
		FROM structured_analyses
		WHERE session_id = ?
		ORDER BY timestamp DESC
		LIMIT ?
	`

	rows, err := c.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list structured analyses: %w", err)
	}
	defer rows.Close()

	var results []models.StructuredAnalysisResult
	for rows.Next() {
		r, err := scanStructuredAnalysis(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *r)
	}

	return results, rows.Err()
}

func (c *Client) GetStructuredAnalysis(ctx context.Context, sessionID, analysisID string) (*models.StructuredAnalysisResult, error) {
	query := `
		SELECT id, session_id, title, sections, total_sections, execution_time, timestamp, overall_success
		FROM structured_analyses
		WHERE session_id = ? AND id = ?
	`

	rows, err := c.db.QueryContext(ctx, query, sessionID, analysisID)
	if err != nil {
		return nil, fmt.Errorf("failed to get structured analysis: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, storage.ErrNotFound
	}

	return scanStructuredAnalysis(rows)
}

func scanStructuredAnalysis(rows *sql.Rows) (*models.StructuredAnalysisResult, error) {
	var r models.StructuredAnalysisResult
	var sectionsJSON string
	var timestamp int64
	var overallSuccess int

	err := rows.Scan(
		&r.ID,
		&r.SessionID,
		&r.Title,
		&sectionsJSON,
		&r.TotalSections,
		&r.ExecutionTime,
		&timestamp,
		&overallSuccess,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	if err := json.Unmarshal([]byte(sectionsJSON), &r.Sections); err != nil {
		return nil, fmt.Errorf("failed to decode sections: %w", err)
	}

	r.Timestamp = time.UnixMilli(timestamp).UTC()
	r.OverallSuccess = overallSuccess == 1

	return &r, nil
}

func (c *Client) InsertAnalysisResult(ctx context.Context, result *models.AnalysisResult) error {
	variablesJSON, _ := json.Marshal(result.Variables)
	ciJSON, _ := json.Marshal(result.ConfidenceInterval)

	query := `
		INSERT INTO analysis_results (id, session_id, analysis_type, variables, test_statistic, p_value,
			effect_size, confidence_interval, method, results_summary, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.ExecContext(
		ctx,
		query,
		result.ID,
		result.SessionID,
		result.AnalysisType,
		string(variablesJSON),
		nullableFloat(result.TestStatistic),
		nullableFloat(result.PValue),
		nullableFloat(result.EffectSize),
		string(ciJSON),
		result.Method,
		result.ResultsSummary,
		result.Timestamp.UnixMilli(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert analysis result: %w", err)
	}

	return nil
}

func (c *Client) ListAnalysisResults(ctx context.Context, sessionID string, limit int) ([]models.AnalysisResult, error) {
	query := `
		SELECT id, session_id, analysis_type, variables, test_statistic, p_value, effect_size,
			confidence_interval, method, results_summary, timestamp
		FROM analysis_results
		WHERE session_id = ?
		ORDER BY timestamp DESC
		LIMIT ?
	`

	rows, err := c.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list analysis results: %w", err)
	}
	defer rows.Close()

	var results []models.AnalysisResult
	for rows.Next() {
		var r models.AnalysisResult
		var variablesJSON, ciJSON string
		var testStat, pValue, effectSize sql.NullFloat64
		var timestamp int64

		err := rows.Scan(
			&r.ID,
			&r.SessionID,
			&r.AnalysisType,
			&variablesJSON,
			&testStat,
			&pValue,
			&effectSize,
			&ciJSON,
			&r.Method,
			&r.ResultsSummary,
			&timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		json.Unmarshal([]byte(variablesJSON), &r.Variables)
		json.Unmarshal([]byte(ciJSON), &r.ConfidenceInterval)
		r.TestStatistic = floatPtr(testStat)
		r.PValue = floatPtr(pValue)
		r.EffectSize = floatPtr(effectSize)
		r.Timestamp = time.UnixMilli(timestamp).UTC()

		results = append(results, r)
	}

	return results, rows.Err()
}

func (c *Client) InsertComprehensiveAnalysis(ctx context.Context, result *models.ComprehensiveAnalysisResult) error {
	dataJSON, err := json.Marshal(result.AnalysisData)
	if err != nil {
		return fmt.Errorf("failed to encode analysis data: %w", err)
	}

	query := `INSERT INTO comprehensive_analyses (id, session_id, filename, analysis_data, interpretation, created_at) VALUES (?, ?, ?, ?, ?, ?)`

	_, err = c.db.ExecContext(
		ctx,
		query,
		result.ID,
		result.SessionID,
		result.Filename,
		string(dataJSON),
		result.Interpretation,
		result.CreatedAt.UnixMilli(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert comprehensive analysis: %w", err)
	}

	return nil
}

func (c *Client) GetComprehensiveAnalysis(ctx context.Context, sessionID string) (*models.ComprehensiveAnalysisResult, error) {
	query := `SELECT id, session_id, filename, analysis_data, interpretation, created_at FROM comprehensive_analyses WHERE session_id = ?`

	var r models.ComprehensiveAnalysisResult
	var dataJSON string
	var createdAt int64

	err := c.db.QueryRowContext(ctx, query, sessionID).Scan(
		&r.ID,
		&r.SessionID,
		&r.Filename,
		&dataJSON,
		&r.Interpretation,
		&createdAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get comprehensive analysis: %w", err)
	}

	if err := json.Unmarshal([]byte(dataJSON), &r.AnalysisData); err != nil {
		return nil, fmt.Errorf("failed to decode analysis data: %w", err)
	}
	r.CreatedAt = time.UnixMilli(createdAt).UTC()

	return &r, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Client) Close(ctx context.Context) error {
	return c.db.Close()
}

func nullableFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}
