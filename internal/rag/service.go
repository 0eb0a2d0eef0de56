package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/datachat/backend/internal/cache/redis"
	"github.com/datachat/backend/internal/dataset"
	"github.com/datachat/backend/internal/metrics"
	"github.com/datachat/backend/internal/vector"
	"github.com/datachat/backend/pkg/logger"
	"github.com/datachat/backend/pkg/utils"
)

const (
	defaultTopK   = 5
	maxChunkChars = 1500
)

// Service indexes uploaded datasets into the vector store and retrieves
// intent-ranked chunks at chat time. The cache is optional; a nil cache
// disables context caching without changing behavior.
type Service struct {
	store      vector.Store
	cache      *redis.Client
	classifier *Classifier
	chunker    *Chunker
}

func NewService(store vector.Store, cache *redis.Client) *Service {
	return &Service{
		store:      store,
		cache:      cache,
		classifier: NewClassifier(),
		chunker:    NewChunker(),
	}
}

// IndexSession rebuilds the session's collection from the parsed frame.
// Re-uploading a dataset replaces the collection wholesale.
func (s *Service) IndexSession(ctx context.Context, sessionID string, f *dataset.Frame) error {
	collection := vector.CollectionName(sessionID)

	if err := s.store.DropCollection(ctx, collection); err != nil {
		logger.Debug("No existing collection to drop",
			zap.String("collection", collection),
			zap.Error(err),
		)
	}

	if err := s.store.EnsureCollection(ctx, collection); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	chunks := s.chunker.Chunk(f)
	if err := s.store.AddChunks(ctx, collection, chunks); err != nil {
		return fmt.Errorf("failed to add chunks: %w", err)
	}
	metrics.RAGChunksIndexed.Add(float64(len(chunks)))

	logger.Info("Dataset indexed",
		zap.String("session_id", sessionID),
		zap.Int("chunks", len(chunks)),
	)
	return nil
}

func (s *Service) DeleteSession(ctx context.Context, sessionID string) error {
	return s.store.DropCollection(ctx, vector.CollectionName(sessionID))
}

type RetrievedChunk struct {
	Text     string
	Metadata map[string]string
	Score    float64
	Distance float32
}

// Retrieve classifies the query, enhances it with statistical vocabulary,
// searches the session's collection, and re-ranks hits by intent.
func (s *Service) Retrieve(ctx context.Context, sessionID, query string, columns []string) ([]RetrievedChunk, QueryIntent, error) {
	intent := s.classifier.Classify(query, columns)
	enhanced := enhanceQuery(query, intent)

	results, err := s.store.Query(ctx, vector.CollectionName(sessionID), enhanced, defaultTopK, nil)
	if err != nil {
		metrics.RAGRetrievals.WithLabelValues("error").Inc()
		return nil, intent, fmt.Errorf("failed to query collection: %w", err)
	}
	metrics.RAGRetrievals.WithLabelValues("success").Inc()

	ranked := make([]RetrievedChunk, 0, len(results))
	for _, r := range results {
		ranked = append(ranked, RetrievedChunk{
			Text:     r.Text,
			Metadata: r.Metadata,
			Score:    relevanceScore(r.Metadata, intent, r.Distance),
			Distance: r.Distance,
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	logger.Info("Query processed",
		zap.String("session_id", sessionID),
		zap.String("query_type", string(intent.Type)),
		zap.Int("results", len(ranked)),
	)

	return ranked, intent, nil
}

// ContextResult carries the rendered context block plus the raw chunk texts
// for response post-processing.
type ContextResult struct {
	Text       string   `json:"text"`
	ChunkTexts []string `json:"chunk_texts,omitempty"`
}

// BuildContext returns the retrieval context for the chat prompt. Retrieval
// failures degrade to an empty result so chat still works when the vector
// store is down. Results are cached for a few minutes keyed on the session
// and query.
func (s *Service) BuildContext(ctx context.Context, sessionID, query string, columns []string) (ContextResult, QueryIntent) {
	intent := s.classifier.Classify(query, columns)

	cacheKey := utils.HashString(sessionID + ":" + query)
	if s.cache != nil {
		cached, ok, err := s.cache.GetContext(ctx, cacheKey)
		if err != nil {
			logger.Warn("Context cache read failed", zap.Error(err))
		} else if ok {
			var result ContextResult
			if err := json.Unmarshal([]byte(cached), &result); err == nil {
				return result, intent
			}
		}
	}

	chunks, intent, err := s.Retrieve(ctx, sessionID, query, columns)
	if err != nil {
		logger.Warn("Retrieval failed, continuing without data context",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		return ContextResult{}, intent
	}

	result := ContextResult{Text: formatContext(chunks)}
	for _, chunk := range chunks {
		result.ChunkTexts = append(result.ChunkTexts, chunk.Text)
	}

	if s.cache != nil && result.Text != "" {
		if data, err := json.Marshal(result); err == nil {
			if err := s.cache.SetContext(ctx, cacheKey, string(data)); err != nil {
				logger.Warn("Context cache write failed", zap.Error(err))
			}
		}
	}

	return result, intent
}

// enhanceQuery appends statistical vocabulary for the detected intent so
// embedding search lands on the matching chunk kinds.
func enhanceQuery(query string, intent QueryIntent) string {
	enhanced := query

	switch intent.Type {
	case QueryDescriptive:
		enhanced += " statistical summary descriptive statistics mean median mode standard deviation"
	case QueryInferential:
		enhanced += " hypothesis testing statistical significance p-value confidence interval"
	case QueryCorrelation:
		enhanced += " correlation relationship association linear regression"
	case QueryVisualization:
		enhanced += " plot graph chart visualization data display"
	case QueryComparison:
		enhanced += " comparison group difference statistical test"
	case QueryPredictive:
		enhanced += " prediction modeling machine learning regression classification"
	}

	if len(intent.Variables) > 0 {
		enhanced += fmt.Sprintf(" variables: %s", strings.Join(intent.Variables, " "))
	}
	if len(intent.StatisticalTests) > 0 {
		enhanced += fmt.Sprintf(" statistical tests: %s", strings.Join(intent.StatisticalTests, " "))
	}

	return enhanced
}

// relevanceScore converts raw distance to similarity and boosts chunk types
// that match the query intent, plus chunks mentioning a queried variable.
func relevanceScore(metadata map[string]string, intent QueryIntent, distance float32) float64 {
	score := 1.0 - float64(distance)

	chunkType := metadata["chunk_type"]
	switch intent.Type {
	case QueryDescriptive:
		switch chunkType {
		case "statistical_summary":
			score *= 1.5
		case "column_group":
			score *= 1.2
		}
	case QueryCorrelation:
		switch chunkType {
		case "correlation_matrix":
			score *= 1.8
		case "statistical_summary":
			score *= 1.3
		}
	case QueryVisualization:
		switch chunkType {
		case "column_group":
			score *= 1.4
		case "correlation_matrix":
			score *= 1.3
		}
	}

	if len(intent.Variables) > 0 {
		var chunkVariables []string
		if err := json.Unmarshal([]byte(metadata["variables"]), &chunkVariables); err == nil {
			for _, v := range intent.Variables {
				if containsString(chunkVariables, v) {
					score *= 1.3
					break
				}
			}
		}
	}

	return score
}

func formatContext(chunks []RetrievedChunk) string {
	if len(chunks) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("RETRIEVED DATA CONTEXT (most relevant to this question):\n")
	for i, chunk := range chunks {
		fmt.Fprintf(&b, "\n[Context %d] (%s)\n%s\n",
			i+1,
			chunk.Metadata["chunk_type"],
			utils.Truncate(chunk.Text, maxChunkChars),
		)
	}
	return b.String()
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
