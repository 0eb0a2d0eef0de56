package analysis

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/datachat/backend/internal/dataset"
	"github.com/datachat/backend/internal/storage/models"
	"github.com/datachat/backend/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Init("error", "console", "stdout")
	os.Exit(m.Run())
}

// fakeStore records inserts so report tests can assert on what was posted.
type fakeStore struct {
	messages       []*models.Message
	comprehensive  []*models.ComprehensiveAnalysisResult
	failInsertComp bool
}

func (s *fakeStore) CreateSession(ctx context.Context, session *models.Session) error { return nil }
func (s *fakeStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	return nil, errors.New("not implemented")
}
func (s *fakeStore) ListSessions(ctx context.Context, limit int) ([]models.Session, error) {
	return nil, nil
}

func (s *fakeStore) InsertMessage(ctx context.Context, msg *models.Message) error {
	s.messages = append(s.messages, msg)
	return nil
}
func (s *fakeStore) ListMessages(ctx context.Context, sessionID string, limit int) ([]models.Message, error) {
	return nil, nil
}

func (s *fakeStore) InsertStructuredAnalysis(ctx context.Context, result *models.StructuredAnalysisResult) error {
	return nil
}
func (s *fakeStore) ListStructuredAnalyses(ctx context.Context, sessionID string, limit int) ([]models.StructuredAnalysisResult, error) {
	return nil, nil
}
func (s *fakeStore) GetStructuredAnalysis(ctx context.Context, sessionID, analysisID string) (*models.StructuredAnalysisResult, error) {
	return nil, errors.New("not implemented")
}

func (s *fakeStore) InsertAnalysisResult(ctx context.Context, result *models.AnalysisResult) error {
	return nil
}
func (s *fakeStore) ListAnalysisResults(ctx context.Context, sessionID string, limit int) ([]models.AnalysisResult, error) {
	return nil, nil
}

func (s *fakeStore) InsertComprehensiveAnalysis(ctx context.Context, result *models.ComprehensiveAnalysisResult) error {
	if s.failInsertComp {
		return errors.New("insert failed")
	}
	s.comprehensive = append(s.comprehensive, result)
	return nil
}
func (s *fakeStore) GetComprehensiveAnalysis(ctx context.Context, sessionID string) (*models.ComprehensiveAnalysisResult, error) {
	return nil, errors.New("not implemented")
}

func (s *fakeStore) Ping(ctx context.Context) error  { return nil }
func (s *fakeStore) Close(ctx context.Context) error { return nil }

func reportSession() *models.Session {
	return &models.Session{
		ID:       "sess-1",
		FileName: "trial.csv",
		FileData: base64.StdEncoding.EncodeToString([]byte(analyzerCSV)),
	}
}

func TestReportFromSessionPostsMessages(t *testing.T) {
	store := &fakeStore{}
	reporter := NewReporter(store)

	reporter.ReportFromSession(context.Background(), reportSession())

	if len(store.comprehensive) != 1 {
		t.Fatalf("comprehensive inserts = %d, want 1", len(store.comprehensive))
	}
	comp := store.comprehensive[0]
	if comp.SessionID != "sess-1" || comp.Filename != "trial.csv" {
		t.Errorf("stored analysis = %q / %q", comp.SessionID, comp.Filename)
	}
	if summary, _ := comp.AnalysisData["summary"].(string); summary == "" {
		t.Error("stored analysis missing summary")
	}

	if len(store.messages) != 2 {
		t.Fatalf("messages = %d, want overview plus detailed findings", len(store.messages))
	}
	overview := store.messages[0]
	if overview.Role != "assistant" || overview.SessionID != "sess-1" {
		t.Errorf("overview message = %+v", overview)
	}
	if !strings.Contains(overview.Content, "Automated Data Analysis Report") {
		t.Errorf("overview content = %q", overview.Content)
	}
	if !strings.Contains(store.messages[1].Content, "Detailed Data Analysis") {
		t.Errorf("detailed content = %q", store.messages[1].Content)
	}
}

func TestReportFallsBackOnBadData(t *testing.T) {
	store := &fakeStore{}
	reporter := NewReporter(store)

	session := reportSession()
	session.FileData = "not base64!!!"
	session.CSVPreview = &models.Preview{
		Columns: []string{"age", "sex"},
		Shape:   [2]int{120, 2},
		Dtypes:  map[string]string{"age": "int64", "sex": "object"},
	}

	reporter.ReportFromSession(context.Background(), session)

	if len(store.comprehensive) != 0 {
		t.Fatalf("comprehensive inserts = %d, want none on decode failure", len(store.comprehensive))
	}
	if len(store.messages) != 1 {
		t.Fatalf("messages = %d, want a single fallback", len(store.messages))
	}
	content := store.messages[0].Content
	if !strings.Contains(content, "120 rows × 2 columns") {
		t.Errorf("fallback missing preview shape: %q", content)
	}
	if !strings.Contains(content, "1 numeric, 1 text columns") {
		t.Errorf("fallback missing dtype counts: %q", content)
	}
}

func TestReportFallsBackOnStoreFailure(t *testing.T) {
	store := &fakeStore{failInsertComp: true}
	reporter := NewReporter(store)

	frame, err := dataset.Parse(strings.NewReader(analyzerCSV))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	reporter.Report(context.Background(), reportSession(), frame)

	if len(store.messages) != 1 {
		t.Fatalf("messages = %d, want a single fallback", len(store.messages))
	}
	if !strings.Contains(store.messages[0].Content, "encountered an issue") {
		t.Errorf("fallback content = %q", store.messages[0].Content)
	}
}
