package rag

import (
	"context"
	"errors"
	"math"
	"os"
	"strings"
	"testing"

	"github.com/datachat/backend/internal/vector"
	"github.com/datachat/backend/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init("error", "console", "stdout"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type fakeVectorStore struct {
	results  []vector.Result
	queryErr error

	ensured []string
	dropped []string
	added   map[string][]vector.Chunk
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{added: make(map[string][]vector.Chunk)}
}

func (f *fakeVectorStore) EnsureCollection(ctx context.Context, name string) error {
	f.ensured = append(f.ensured, name)
	return nil
}

func (f *fakeVectorStore) AddChunks(ctx context.Context, name string, chunks []vector.Chunk) error {
	f.added[name] = append(f.added[name], chunks...)
	return nil
}

func (f *fakeVectorStore) Query(ctx context.Context, name, queryText string, topK int, where map[string]string) ([]vector.Result, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.results, nil
}

func (f *fakeVectorStore) DropCollection(ctx context.Context, name string) error {
	f.dropped = append(f.dropped, name)
	return nil
}

func (f *fakeVectorStore) Close() error { return nil }

func TestIndexSession(t *testing.T) {
	store := newFakeVectorStore()
	svc := NewService(store, nil)

	f := parseFrame(t, chunkerCSV)
	if err := svc.IndexSession(context.Background(), "abc", f); err != nil {
		t.Fatalf("index: %v", err)
	}

	if len(store.ensured) != 1 || store.ensured[0] != "session_abc" {
		t.Errorf("ensured collections = %v, want [session_abc]", store.ensured)
	}
	if len(store.dropped) != 1 {
		t.Errorf("dropped collections = %v, want the stale collection dropped first", store.dropped)
	}
	if len(store.added["session_abc"]) == 0 {
		t.Error("no chunks added to collection")
	}
}

func TestRetrieveRanksByIntent(t *testing.T) {
	store := newFakeVectorStore()
	// closer by distance but a weaker type for a correlation query
	store.results = []vector.Result{
		{ID: "1", Text: "summary text", Metadata: map[string]string{"chunk_type": "statistical_summary"}, Distance: 0.1},
		{ID: "2", Text: "correlation text", Metadata: map[string]string{"chunk_type": "correlation_matrix"}, Distance: 0.3},
	}
	svc := NewService(store, nil)

	chunks, intent, err := svc.Retrieve(context.Background(), "abc", "correlation between age and bmi", []string{"age", "bmi"})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if intent.Type != QueryCorrelation {
		t.Fatalf("intent type = %q, want correlation", intent.Type)
	}
	if len(chunks) != 2 {
		t.Fatalf("chunks = %d, want 2", len(chunks))
	}
	if chunks[0].Text != "correlation text" {
		t.Errorf("top chunk = %q, want the boosted correlation_matrix chunk", chunks[0].Text)
	}
}

func TestRelevanceScore(t *testing.T) {
	intent := QueryIntent{Type: QueryDescriptive}

	base := relevanceScore(map[string]string{"chunk_type": "row_group"}, intent, 0.2)
	boosted := relevanceScore(map[string]string{"chunk_type": "statistical_summary"}, intent, 0.2)

	if math.Abs(boosted/base-1.5) > 1e-6 {
		t.Errorf("statistical_summary boost = %v, want 1.5x", boosted/base)
	}

	withVars := QueryIntent{Type: QueryDescriptive, Variables: []string{"age"}}
	meta := map[string]string{"chunk_type": "row_group", "variables": `["age","bmi"]`}
	varBoosted := relevanceScore(meta, withVars, 0.2)
	if math.Abs(varBoosted/base-1.3) > 1e-6 {
		t.Errorf("variable boost = %v, want 1.3x", varBoosted/base)
	}
}

func TestBuildContextSurvivesRetrievalFailure(t *testing.T) {
	store := newFakeVectorStore()
	store.queryErr = errors.New("connection refused")
	svc := NewService(store, nil)

	result, intent := svc.BuildContext(context.Background(), "abc", "describe the data", []string{"age"})
	if result.Text != "" || len(result.ChunkTexts) != 0 {
		t.Errorf("result = %+v, want empty on retrieval failure", result)
	}
	if intent.Type != QueryDescriptive {
		t.Errorf("intent type = %q, want descriptive", intent.Type)
	}
}

func TestBuildContextFormatsChunks(t *testing.T) {
	store := newFakeVectorStore()
	store.results = []vector.Result{
		{ID: "1", Text: "chunk one", Metadata: map[string]string{"chunk_type": "row_group"}, Distance: 0.1},
	}
	svc := NewService(store, nil)

	result, _ := svc.BuildContext(context.Background(), "abc", "describe the data", nil)
	if !strings.Contains(result.Text, "RETRIEVED DATA CONTEXT") {
		t.Errorf("context missing header: %q", result.Text)
	}
	if !strings.Contains(result.Text, "[Context 1] (row_group)") {
		t.Errorf("context missing chunk marker: %q", result.Text)
	}
	if len(result.ChunkTexts) != 1 || result.ChunkTexts[0] != "chunk one" {
		t.Errorf("chunk texts = %v, want [chunk one]", result.ChunkTexts)
	}
}

func TestEnhanceQuery(t *testing.T) {
	intent := QueryIntent{
		Type:      QueryInferential,
		Variables: []string{"age", "outcome"},
	}
	enhanced := enhanceQuery("is the difference significant", intent)

	if !strings.Contains(enhanced, "hypothesis testing") {
		t.Errorf("enhanced query missing inferential vocabulary: %q", enhanced)
	}
	if !strings.Contains(enhanced, "variables: age outcome") {
		t.Errorf("enhanced query missing variables: %q", enhanced)
	}
}

func TestFormatContextEmpty(t *testing.T) {
	if got := formatContext(nil); got != "" {
		t.Fatalf("formatContext(nil) = %q, want empty", got)
	}
}
