package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/datachat/backend/internal/storage"
	"github.com/datachat/backend/internal/storage/models"
	"github.com/datachat/backend/pkg/config"
	"github.com/datachat/backend/pkg/logger"
)

const (
	sessionsCollection      = "chat_sessions"
	messagesCollection      = "chat_messages"
	structuredCollection    = "structured_analyses"
	resultsCollection       = "analysis_results"
	comprehensiveCollection = "comprehensive_analyses"
)

type Client struct {
	client  *mongo.Client
	db      *mongo.Database
	timeout time.Duration
}

func NewClient(cfg config.MongoConfig) (*Client, error) {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	c := &Client{
		client:  client,
		db:      client.Database(cfg.Database),
		timeout: timeout,
	}

	if err := c.ensureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure indexes: %w", err)
	}

	logger.Info("MongoDB client initialized", zap.String("database", cfg.Database))

	return c, nil
}

func (c *Client) ensureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		sessionsCollection: {
			{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
		},
		messagesCollection: {
			{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "timestamp", Value: 1}}},
		},
		structuredCollection: {
			{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "timestamp", Value: -1}}},
		},
		resultsCollection: {
			{Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "timestamp", Value: -1}}},
		},
		comprehensiveCollection: {
			{Keys: bson.D{{Key: "session_id", Value: 1}}},
		},
	}

	for coll, models := range indexes {
		if _, err := c.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("collection %s: %w", coll, err)
		}
	}

	return nil
}

func (c *Client) CreateSession(ctx context.Context, session *models.Session) error {
	_, err := c.db.Collection(sessionsCollection).InsertOne(ctx, session)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	logger.Debug("Session created",
		zap.String("session_id", session.ID),
		zap.String("file_name", session.FileName),
	)

	return nil
}

func (c *Client) GetSession(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	err := c.db.Collection(sessionsCollection).FindOne(ctx, bson.M{"id": id}).Decode(&session)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return &session, nil
}

func (c *Client) ListSessions(ctx context.Context, limit int) ([]models.Session, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := c.db.Collection(sessionsCollection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer cursor.Close(ctx)

	var sessions []models.Session
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, fmt.Errorf("failed to decode sessions: %w", err)
	}

	return sessions, nil
}

func (c *Client) InsertMessage(ctx context.Context, msg *models.Message) error {
	_, err := c.db.Collection(messagesCollection).InsertOne(ctx, msg)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	return nil
}

func (c *Client) ListMessages(ctx context.Context, sessionID string, limit int) ([]models.Message, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := c.db.Collection(messagesCollection).Find(ctx, bson.M{"session_id": sessionID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer cursor.Close(ctx)

	var messages []models.Message
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}

	return messages, nil
}

func (c *Client) InsertStructuredAnalysis(ctx context.Context, result *models.StructuredAnalysisResult) error {
	_, err := c.db.Collection(structuredCollection).InsertOne(ctx, result)
	if err != nil {
		return fmt.Errorf("failed to insert structured analysis: %w", err)
	}

	logger.Debug("Structured analysis stored",
		zap.String("analysis_id", result.ID),
		zap.String("session_id", result.SessionID),
		zap.Int("sections", result.TotalSections),
	)

	return nil
}

func (c *Client) ListStructuredAnalyses(ctx context.Context, sessionID string, limit int) ([]models.StructuredAnalysisResult, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := c.db.Collection(structuredCollection).Find(ctx, bson.M{"session_id": sessionID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list structured analyses: %w", err)
	}
	defer cursor.Close(ctx)

	var results []models.StructuredAnalysisResult
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("failed to decode structured analyses: %w", err)
	}

	return results, nil
}

func (c *Client) GetStructuredAnalysis(ctx context.Context, sessionID, analysisID string) (*models.StructuredAnalysisResult, error) {
	filter := bson.M{"session_id": sessionID, "id": analysisID}

	var result models.StructuredAnalysisResult
	err := c.db.Collection(structuredCollection).FindOne(ctx, filter).Decode(&result)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get structured analysis: %w", err)
	}

	return &result, nil
}

func (c *Client) InsertAnalysisResult(ctx context.Context, result *models.AnalysisResult) error {
	_, err := c.db.Collection(resultsCollection).InsertOne(ctx, result)
	if err != nil {
		return fmt.Errorf("failed to insert analysis result: %w", err)
	}

	return nil
}

func (c *Client) ListAnalysisResults(ctx context.Context, sessionID string, limit int) ([]models.AnalysisResult, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := c.db.Collection(resultsCollection).Find(ctx, bson.M{"session_id": sessionID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list analysis results: %w", err)
	}
	defer cursor.Close(ctx)

	var results []models.AnalysisResult
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("failed to decode analysis results: %w", err)
	}

	return results, nil
}

func (c *Client) InsertComprehensiveAnalysis(ctx context.Context, result *models.ComprehensiveAnalysisResult) error {
	_, err := c.db.Collection(comprehensiveCollection).InsertOne(ctx, result)
	if err != nil {
		return fmt.Errorf("failed to insert comprehensive analysis: %w", err)
	}

	return nil
}

func (c *Client) GetComprehensiveAnalysis(ctx context.Context, sessionID string) (*models.ComprehensiveAnalysisResult, error) {
	var result models.ComprehensiveAnalysisResult
	err := c.db.Collection(comprehensiveCollection).FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&result)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get comprehensive analysis: %w", err)
	}

	return &result, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, nil)
}

func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}
