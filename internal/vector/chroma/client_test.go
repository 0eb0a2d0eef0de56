package chroma

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/datachat/backend/internal/vector"
	"github.com/datachat/backend/pkg/config"
	"github.com/datachat/backend/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Init("error", "console", "stdout")
	os.Exit(m.Run())
}

// chromaServer fakes the parts of the ChromaDB REST API the client touches.
type chromaServer struct {
	*httptest.Server
	createCalls int32
	lastAdd     map[string]interface{}
	lastQuery   map[string]interface{}
}

func newChromaServer(t *testing.T) *chromaServer {
	t.Helper()
	s := &chromaServer{}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/collections", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&s.createCalls, 1)
		json.NewEncoder(w).Encode(map[string]string{"id": "col-123", "name": "session_abc"})
	})
	mux.HandleFunc("/api/v1/collections/col-123/add", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		s.lastAdd = body
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/api/v1/collections/col-123/query", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		s.lastQuery = body
		json.NewEncoder(w).Encode(map[string]interface{}{
			"ids":       [][]string{{"c1", "c2"}},
			"documents": [][]string{{"first chunk", "second chunk"}},
			"metadatas": [][]map[string]string{{{"chunk_type": "row_group"}, {"chunk_type": "statistical_summary"}}},
			"distances": [][]float32{{0.1, 0.4}},
		})
	})
	mux.HandleFunc("/api/v1/collections/session_abc", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	client, err := NewClient(config.ChromaConfig{URL: url})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestEnsureCollectionCachesID(t *testing.T) {
	server := newChromaServer(t)
	client := newTestClient(t, server.URL)
	ctx := context.Background()

	if err := client.EnsureCollection(ctx, "session_abc"); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := client.EnsureCollection(ctx, "session_abc"); err != nil {
		t.Fatalf("ensure again: %v", err)
	}

	if calls := atomic.LoadInt32(&server.createCalls); calls != 1 {
		t.Errorf("create calls = %d, want the id cached after the first", calls)
	}
}

func TestAddChunksSendsDocuments(t *testing.T) {
	server := newChromaServer(t)
	client := newTestClient(t, server.URL)

	chunks := []vector.Chunk{
		{ID: "c1", Text: "first chunk", Metadata: map[string]string{"chunk_type": "row_group"}},
		{ID: "c2", Text: "second chunk", Metadata: map[string]string{"chunk_type": "column_group"}},
	}
	if err := client.AddChunks(context.Background(), "session_abc", chunks); err != nil {
		t.Fatalf("add chunks: %v", err)
	}

	ids, _ := server.lastAdd["ids"].([]interface{})
	if len(ids) != 2 || ids[0] != "c1" {
		t.Errorf("ids = %v", server.lastAdd["ids"])
	}
	docs, _ := server.lastAdd["documents"].([]interface{})
	if len(docs) != 2 || docs[1] != "second chunk" {
		t.Errorf("documents = %v", server.lastAdd["documents"])
	}
	if server.lastAdd["metadatas"] == nil {
		t.Error("metadatas missing from add request")
	}
}

func TestAddChunksSkipsEmptyBatch(t *testing.T) {
	server := newChromaServer(t)
	client := newTestClient(t, server.URL)

	if err := client.AddChunks(context.Background(), "session_abc", nil); err != nil {
		t.Fatalf("add empty: %v", err)
	}
	if calls := atomic.LoadInt32(&server.createCalls); calls != 0 {
		t.Errorf("create calls = %d, want no traffic for an empty batch", calls)
	}
}

func TestQueryParsesResults(t *testing.T) {
	server := newChromaServer(t)
	client := newTestClient(t, server.URL)

	results, err := client.Query(context.Background(), "session_abc", "mean age", 5,
		map[string]string{"chunk_type": "row_group"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].ID != "c1" || results[0].Text != "first chunk" {
		t.Errorf("first result = %+v", results[0])
	}
	if results[0].Metadata["chunk_type"] != "row_group" {
		t.Errorf("first metadata = %v", results[0].Metadata)
	}
	if results[1].Distance != 0.4 {
		t.Errorf("second distance = %v, want 0.4", results[1].Distance)
	}

	if server.lastQuery["where"] == nil {
		t.Error("where filter missing from query request")
	}
	if n, _ := server.lastQuery["n_results"].(float64); n != 5 {
		t.Errorf("n_results = %v, want 5", server.lastQuery["n_results"])
	}
}

func TestDropCollectionEvictsCache(t *testing.T) {
	server := newChromaServer(t)
	client := newTestClient(t, server.URL)
	ctx := context.Background()

	if err := client.EnsureCollection(ctx, "session_abc"); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := client.DropCollection(ctx, "session_abc"); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if err := client.EnsureCollection(ctx, "session_abc"); err != nil {
		t.Fatalf("ensure after drop: %v", err)
	}

	if calls := atomic.LoadInt32(&server.createCalls); calls != 2 {
		t.Errorf("create calls = %d, want re-resolution after drop", calls)
	}
}

func TestServerErrorsAreRetried(t *testing.T) {
	var attempts int32
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer failing.Close()

	client := newTestClient(t, failing.URL)
	client.retryConfig.InitialDelay = time.Millisecond
	client.retryConfig.MaxDelay = 2 * time.Millisecond

	err := client.EnsureCollection(context.Background(), "session_abc")
	if err == nil {
		t.Fatal("expected error from failing server")
	}
	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}
