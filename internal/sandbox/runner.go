// Package sandbox executes AI-generated Python analysis code in a separate
// interpreter process. Each run gets a scratch directory holding the session's
// CSV, the user code, and a driver script that seeds the pandas environment,
// captures stdout, and serializes plots and result frames to a JSON file the
// runner reads back.
package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/datachat/backend/pkg/config"
	"github.com/datachat/backend/pkg/logger"
)

const (
	dataFileName   = "data.csv"
	codeFileName   = "code.py"
	driverFileName = "driver.py"
	resultFileName = "result.json"

	stderrTailBytes = 2000
)

// Plot is one captured figure. Matplotlib figures carry base64 PNG bytes in
// Data; plotly figures carry standalone HTML in HTML.
type Plot struct {
	Type         string `json:"type"`
	Data         string `json:"data,omitempty"`
	HTML         string `json:"html,omitempty"`
	FigNum       int    `json:"fig_num,omitempty"`
	VariableName string `json:"variable_name,omitempty"`
}

// FrameSummary mirrors the per-frame quality stats the driver computes.
type FrameSummary struct {
	TotalRows          int     `json:"total_rows"`
	TotalColumns       int     `json:"total_columns"`
	NumericColumns     int     `json:"numeric_columns"`
	CategoricalColumns int     `json:"categorical_columns"`
	MissingValues      int     `json:"missing_values"`
	CompletionRate     float64 `json:"completion_rate"`
}

// FrameCapture is a DataFrame the user code left behind, rendered both as
// HTML (for table extraction) and plain text.
type FrameCapture struct {
	Name    string                   `json:"name"`
	HTML    string                   `json:"html"`
	Text    string                   `json:"text"`
	Shape   [2]int                   `json:"shape"`
	Columns []string                 `json:"columns"`
	Head    []map[string]interface{} `json:"head"`
	Summary *FrameSummary            `json:"summary"`
}

type RunResult struct {
	Success   bool           `json:"success"`
	Output    string         `json:"output"`
	Plots     []Plot         `json:"plots"`
	Frames    []FrameCapture `json:"frames"`
	Error     string         `json:"error"`
	ErrorType string         `json:"error_type"`
}

type Runner struct {
	pythonBin string
	timeout   time.Duration
	workDir   string
}

func NewRunner(cfg config.SandboxConfig) *Runner {
	return &Runner{
		pythonBin: cfg.PythonBin,
		timeout:   time.Duration(cfg.TimeoutSec) * time.Second,
		workDir:   cfg.WorkDir,
	}
}

// Run executes code against the dataset in a fresh interpreter. Execution
// failures inside the code come back in-band as Success=false; the returned
// error covers only runner-side problems like an unwritable scratch dir.
func (r *Runner) Run(ctx context.Context, csvData []byte, code string) (*RunResult, error) {
	dir, err := os.MkdirTemp(r.workDir, "sandbox-")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			logger.Warn("Failed to remove scratch dir", zap.String("dir", dir), zap.Error(err))
		}
	}()

	files := map[string]string{
		dataFileName:   string(csvData),
		codeFileName:   code,
		driverFileName: driverScript,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", name, err)
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var stderr strings.Builder
	cmd := exec.CommandContext(runCtx, r.pythonBin, driverFileName)
	cmd.Dir = dir
	cmd.Stderr = &stderr

	logger.Debug("Executing python code",
		zap.Int("code_bytes", len(code)),
		zap.Duration("timeout", r.timeout),
	)

	runErr := cmd.Run()

	// The driver writes result.json even when the user code raised, so a
	// readable result wins over the process exit status.
	if result, err := readResult(filepath.Join(dir, resultFileName)); err == nil {
		return result, nil
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		logger.Warn("Python execution timed out", zap.Duration("timeout", r.timeout))
		return &RunResult{
			Success:   false,
			Error:     fmt.Sprintf("execution timed out after %s", r.timeout),
			ErrorType: "Timeout",
		}, nil
	}

	detail := tail(stderr.String(), stderrTailBytes)
	if detail == "" && runErr != nil {
		detail = runErr.Error()
	}
	logger.Warn("Python execution failed without result", zap.String("stderr", detail))
	return &RunResult{
		Success:   false,
		Error:     fmt.Sprintf("python process failed: %s", detail),
		ErrorType: "ProcessError",
	}, nil
}

func readResult(path string) (*RunResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var result RunResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode result: %w", err)
	}
	return &result, nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
