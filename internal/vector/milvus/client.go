package milvus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/datachat/backend/internal/vector"
	"github.com/datachat/backend/pkg/config"
	"github.com/datachat/backend/pkg/logger"
)

// Embedder produces the query and document embeddings this backend needs.
// Unlike chroma, milvus stores raw vectors and cannot embed server-side.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type Client struct {
	client    client.Client
	embedder  Embedder
	vectorDim int
}

func NewClient(cfg config.MilvusConfig, embedder Embedder) (*Client, error) {
	c, err := client.NewGrpcClient(context.Background(), cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("Milvus client initialized",
		zap.String("endpoint", cfg.Endpoint),
		zap.Int("vector_dim", cfg.VectorDim),
	)

	return &Client{
		client:    c,
		embedder:  embedder,
		vectorDim: cfg.VectorDim,
	}, nil
}

func (m *Client) Close() error {
	return m.client.Close()
}

// sanitizeName rewrites session collection names for milvus, whose
// identifiers cannot contain dashes.
func sanitizeName(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}

func (m *Client) EnsureCollection(ctx context.Context, name string) error {
	collection := sanitizeName(name)

	has, err := m.client.HasCollection(ctx, collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if has {
		return nil
	}

	schema := &entity.Schema{
		CollectionName: collection,
		Description:    "dataset chunk embeddings",
		Fields: []*entity.Field{
			{
				Name:       "chunk_id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "embedding",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", m.vectorDim),
				},
			},
			{
				Name:     "text",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "8192",
				},
			},
			{
				Name:     "chunk_type",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "metadata",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "2048",
				},
			},
		},
	}

	if err := m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, _ := entity.NewIndexIvfFlat(entity.L2, 1024)
	if err := m.client.CreateIndex(ctx, collection, "embedding", idx, false); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	if err := m.client.LoadCollection(ctx, collection, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	logger.Info("Collection created and loaded", zap.String("collection", collection))

	return nil
}

func (m *Client) AddChunks(ctx context.Context, name string, chunks []vector.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	collection := sanitizeName(name)

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	embeddings, err := m.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}

	chunkIDs := make([]string, len(chunks))
	chunkTypes := make([]string, len(chunks))
	metadatas := make([]string, len(chunks))

	for i, chunk := range chunks {
		chunkIDs[i] = chunk.ID
		chunkTypes[i] = chunk.Metadata["chunk_type"]

		data, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode chunk metadata: %w", err)
		}
		metadatas[i] = string(data)
	}

	_, err = m.client.Insert(
		ctx,
		collection,
		"",
		entity.NewColumnVarChar("chunk_id", chunkIDs),
		entity.NewColumnFloatVector("embedding", m.vectorDim, embeddings),
		entity.NewColumnVarChar("text", texts),
		entity.NewColumnVarChar("chunk_type", chunkTypes),
		entity.NewColumnVarChar("metadata", metadatas),
	)
	if err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}

	if err := m.client.Flush(ctx, collection, false); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	logger.Info("Chunks inserted into vector DB",
		zap.String("collection", collection),
		zap.Int("count", len(chunks)),
	)

	return nil
}

func (m *Client) Query(ctx context.Context, name, queryText string, topK int, where map[string]string) ([]vector.Result, error) {
	collection := sanitizeName(name)

	queryEmbedding, err := m.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	expr := ""
	if chunkType, ok := where["chunk_type"]; ok && chunkType != "" {
		expr = fmt.Sprintf(`chunk_type == "%s"`, chunkType)
	}

	sp, _ := entity.NewIndexIvfFlatSearchParam(16)

	searchResult, err := m.client.Search(
		ctx,
		collection,
		[]string{},
		expr,
		[]string{"chunk_id", "text", "metadata"},
		[]entity.Vector{entity.FloatVector(queryEmbedding)},
		"embedding",
		entity.L2,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	var results []vector.Result
	for _, sr := range searchResult {
		chunkIDCol := sr.Fields.GetColumn("chunk_id")
		textCol := sr.Fields.GetColumn("text")
		metadataCol := sr.Fields.GetColumn("metadata")

		for i := 0; i < sr.ResultCount; i++ {
			chunkID, _ := chunkIDCol.Get(i)
			text, _ := textCol.Get(i)
			metadataJSON, _ := metadataCol.Get(i)

			metadata := map[string]string{}
			if s, ok := metadataJSON.(string); ok && s != "" {
				json.Unmarshal([]byte(s), &metadata)
			}

			results = append(results, vector.Result{
				ID:       chunkID.(string),
				Text:     text.(string),
				Metadata: metadata,
				Distance: sr.Scores[i],
			})
		}
	}

	logger.Debug("Vector search completed",
		zap.String("collection", collection),
		zap.Int("results", len(results)),
	)

	return results, nil
}

func (m *Client) DropCollection(ctx context.Context, name string) error {
	collection := sanitizeName(name)

	if err := m.client.DropCollection(ctx, collection); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}

	return nil
}
