package vector

import "context"

type Chunk struct {
	ID       string
	Text     string
	Metadata map[string]string
}

type Result struct {
	ID       string
	Text     string
	Metadata map[string]string
	Distance float32
}

// Store is the retrieval boundary over one vector database. Chroma is the
// default driver; milvus is selectable when client-side embeddings are
// configured. Distances come back raw (smaller is closer) and relevance
// scoring happens in the rag package.
type Store interface {
	EnsureCollection(ctx context.Context, name string) error
	AddChunks(ctx context.Context, name string, chunks []Chunk) error
	Query(ctx context.Context, name, queryText string, topK int, where map[string]string) ([]Result, error)
	DropCollection(ctx context.Context, name string) error
	Close() error
}

// CollectionName builds the per-session collection name.
func CollectionName(sessionID string) string {
	return "session_" + sessionID
}
