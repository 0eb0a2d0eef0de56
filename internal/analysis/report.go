package analysis

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/datachat/backend/internal/dataset"
	"github.com/datachat/backend/internal/storage"
	"github.com/datachat/backend/internal/storage/models"
	"github.com/datachat/backend/pkg/logger"
	"github.com/datachat/backend/pkg/utils"
)

// Reporter runs the post-upload comprehensive analysis and posts the results
// as automatic assistant messages. It backs both the inline upload path and
// the queue worker.
type Reporter struct {
	store    storage.Store
	analyzer DatasetAnalyzer
}

func NewReporter(store storage.Store) *Reporter {
	return &Reporter{store: store}
}

// ReportFromSession re-reads the dataset from the stored session and runs the
// report. The worker lands here with only a session id in hand.
func (r *Reporter) ReportFromSession(ctx context.Context, session *models.Session) {
	csvData, err := DecodeSessionCSV(session)
	if err != nil {
		logger.Error("Failed to decode session dataset",
			zap.String("session_id", session.ID),
			zap.Error(err),
		)
		r.postFallback(ctx, session)
		return
	}

	frame, err := dataset.Parse(bytes.NewReader(csvData))
	if err != nil {
		logger.Error("Failed to parse session dataset",
			zap.String("session_id", session.ID),
			zap.Error(err),
		)
		r.postFallback(ctx, session)
		return
	}

	r.Report(ctx, session, frame)
}

// Report analyzes the frame, stores the comprehensive result, and posts the
// overview and detailed-findings messages. Failures degrade to a fallback
// message; the session itself is never rolled back.
func (r *Reporter) Report(ctx context.Context, session *models.Session, frame *dataset.Frame) {
	data := r.analyzer.Analyze(frame, session.FileName)

	comp := &models.ComprehensiveAnalysisResult{
		ID:           uuid.NewString(),
		SessionID:    session.ID,
		Filename:     session.FileName,
		AnalysisData: data,
		CreatedAt:    time.Now().UTC(),
	}
	if err := r.store.InsertComprehensiveAnalysis(ctx, comp); err != nil {
		logger.Error("Failed to store comprehensive analysis",
			zap.String("session_id", session.ID),
			zap.Error(err),
		)
		r.postFallback(ctx, session)
		return
	}

	summary, _ := data["summary"].(string)
	if summary == "" {
		summary = "Analysis completed successfully."
	}

	overview := fmt.Sprintf(`# 📊 Automated Data Analysis Report

I've completed an initial analysis of your dataset. Here are the key findings:

%s

You can now ask specific questions about the data or request additional analyses.`, summary)
	r.postAssistant(ctx, session.ID, overview)

	if detailed, _ := data["detailed_findings"].(string); detailed != "" {
		r.postAssistant(ctx, session.ID, detailed)
	}

	logger.Info("Upload analysis report posted", zap.String("session_id", session.ID))
}

// postFallback tells the user their data made it even though the analyzer
// did not. Counts come from the stored preview since the frame may not have
// survived to this point.
func (r *Reporter) postFallback(ctx context.Context, session *models.Session) {
	var rows, cols, numericCount, textCount int
	if p := session.CSVPreview; p != nil {
		rows, cols = p.Shape[0], p.Shape[1]
		for _, col := range p.Columns {
			dtype := p.Dtypes[col]
			switch {
			case strings.Contains(dtype, "int") || strings.Contains(dtype, "float"):
				numericCount++
			case strings.Contains(dtype, "object"):
				textCount++
			}
		}
	}

	content := fmt.Sprintf(`# 📊 Data Analysis Report for %s

**Dataset Overview:**
- **Size:** %s rows × %d columns
- **Data Types:** %d numeric, %d text columns

**Quick Summary:**
The comprehensive analysis tools encountered an issue, but your data has been successfully uploaded and is ready for interactive analysis.

**Next Steps:**
- Use the chat interface to ask questions about your data
- Request specific statistical analyses
- Generate custom visualizations
- Explore data patterns and relationships

You can start by asking: "What are the key characteristics of this dataset?" or "Show me a correlation analysis."`,
		session.FileName, utils.CommaInt(rows), cols, numericCount, textCount)

	r.postAssistant(ctx, session.ID, content)
}

func (r *Reporter) postAssistant(ctx context.Context, sessionID, content string) {
	msg := &models.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      "assistant",
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
	if err := r.store.InsertMessage(ctx, msg); err != nil {
		logger.Error("Failed to store report message",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	}
}
