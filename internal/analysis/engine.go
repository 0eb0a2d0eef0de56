package analysis

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/datachat/backend/internal/metrics"
	"github.com/datachat/backend/internal/sandbox"
	"github.com/datachat/backend/internal/storage/models"
	"github.com/datachat/backend/pkg/logger"
	"github.com/datachat/backend/pkg/utils"
)

// Engine runs generated analysis code through the sandbox and assembles the
// structured results the API returns.
type Engine struct {
	runner *sandbox.Runner
}

func NewEngine(runner *sandbox.Runner) *Engine {
	return &Engine{runner: runner}
}

// DecodeSessionCSV unpacks the base64 CSV payload stored on a session.
func DecodeSessionCSV(session *models.Session) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(session.FileData)
	if err != nil {
		return nil, fmt.Errorf("failed to decode session file data: %w", err)
	}
	return data, nil
}

// Execute runs the whole code block in one interpreter and returns the raw
// sandbox result for the plain execution endpoint.
func (e *Engine) Execute(ctx context.Context, session *models.Session, code string) (*sandbox.RunResult, error) {
	csvData, err := DecodeSessionCSV(session)
	if err != nil {
		return nil, err
	}
	return e.runner.Run(ctx, csvData, code)
}

// ExecuteSectioned splits code at its comment headers, runs each section in a
// fresh interpreter, and returns per-section results. A failed section keeps
// its partial output and the run continues to the next one. With autoSection
// off the whole script runs as a single section.
func (e *Engine) ExecuteSectioned(ctx context.Context, session *models.Session, code, title string, autoSection bool) (*models.StructuredAnalysisResult, error) {
	csvData, err := DecodeSessionCSV(session)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var sections []codeSection
	if autoSection {
		sections = splitSections(code)
	} else {
		_, secTitle := ClassifySection(code)
		sections = []codeSection{{Code: code, Title: secTitle}}
	}

	results := make([]models.AnalysisSection, 0, len(sections))
	overall := true
	for i, sec := range sections {
		section := e.runSection(ctx, csvData, sec, i)
		if !section.Success {
			overall = false
		}
		results = append(results, section)
	}

	if title == "" {
		title = "Statistical Analysis"
	}

	result := &models.StructuredAnalysisResult{
		ID:             uuid.NewString(),
		SessionID:      session.ID,
		Title:          title,
		Sections:       results,
		TotalSections:  len(results),
		ExecutionTime:  time.Since(start).Seconds(),
		Timestamp:      time.Now().UTC(),
		OverallSuccess: overall,
	}

	logger.Info("Sectioned analysis completed",
		zap.String("session_id", session.ID),
		zap.Int("sections", len(results)),
		zap.Bool("overall_success", overall),
	)
	return result, nil
}

func (e *Engine) runSection(ctx context.Context, csvData []byte, sec codeSection, order int) models.AnalysisSection {
	sectionType, _ := ClassifySection(sec.Code)
	start := time.Now()

	section := models.AnalysisSection{
		ID:          uuid.NewString(),
		Title:       sec.Title,
		SectionType: sectionType,
		Code:        sec.Code,
		Tables:      []models.Table{},
		Charts:      []models.Chart{},
		Order:       order,
	}

	run, err := e.runner.Run(ctx, csvData, sec.Code)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		metrics.AnalysisSections.WithLabelValues(sectionType, "error").Inc()
		section.Error = err.Error()
		section.Metadata = models.SectionMetadata{
			ErrorType:     "RunnerError",
			ErrorMessage:  err.Error(),
			SectionType:   sectionType,
			CodeLength:    len(sec.Code),
			ExecutionTime: elapsed,
		}
		return section
	}

	section.Output = run.Output
	if tables := collectTables(run.Output, run.Frames); tables != nil {
		section.Tables = tables
	}
	section.Charts = sectionCharts(sec.Code, run.Plots)

	if run.Success {
		metrics.AnalysisSections.WithLabelValues(sectionType, "success").Inc()
		section.Success = true
		section.Metadata = models.SectionMetadata{
			LinesOfCode:       len(strings.Split(sec.Code, "\n")),
			HasOutput:         strings.TrimSpace(run.Output) != "",
			ChartType:         DetermineChartType(sec.Code),
			VariablesUsed:     variablesUsed(sec.Code),
			ExecutionTime:     elapsed,
			SectionComplexity: sectionComplexity(sec.Code),
			HealthcareContext: sectionContext(sec.Code, run.Output),
			DataModifications: dataModifications(sec.Code),
		}
		return section
	}

	metrics.AnalysisSections.WithLabelValues(sectionType, "error").Inc()
	section.Error = run.Error
	section.Metadata = models.SectionMetadata{
		ErrorType:     run.ErrorType,
		ErrorMessage:  run.Error,
		SectionType:   sectionType,
		CodeLength:    len(sec.Code),
		ExecutionTime: elapsed,
	}
	return section
}

// sectionCharts tags captured figures with the chart type inferred from the
// code that drew them.
func sectionCharts(code string, plots []sandbox.Plot) []models.Chart {
	chartType := DetermineChartType(code)
	charts := make([]models.Chart, 0, len(plots))
	for _, p := range plots {
		switch p.Type {
		case "matplotlib":
			charts = append(charts, models.Chart{
				Type:      "matplotlib",
				ChartType: chartType,
				Data:      p.Data,
				Title:     utils.TitleWords(chartType) + " Chart",
				FigNum:    p.FigNum,
			})
		case "plotly":
			charts = append(charts, models.Chart{
				Type:      "plotly",
				ChartType: chartType,
				Data:      p.HTML,
				Title:     utils.TitleWords(chartType) + " Chart (Interactive)",
			})
		}
	}
	return charts
}
