package models

import "time"

type Preview struct {
	Columns    []string                      `bson:"columns" json:"columns"`
	Shape      [2]int                        `bson:"shape" json:"shape"`
	Head       []map[string]interface{}      `bson:"head" json:"head"`
	Dtypes     map[string]string             `bson:"dtypes" json:"dtypes"`
	NullCounts map[string]int                `bson:"null_counts" json:"null_counts"`
	Describe   map[string]map[string]float64 `bson:"describe" json:"describe"`
}

type Session struct {
	ID         string    `bson:"id" json:"id"`
	Title      string    `bson:"title" json:"title"`
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
	FileName   string    `bson:"file_name" json:"file_name"`
	FileData   string    `bson:"file_data" json:"file_data"`
	CSVPreview *Preview  `bson:"csv_preview" json:"csv_preview"`
}

type Message struct {
	ID             string                 `bson:"id" json:"id"`
	SessionID      string                 `bson:"session_id" json:"session_id"`
	Role           string                 `bson:"role" json:"role"`
	Content        string                 `bson:"content" json:"content"`
	Timestamp      time.Time              `bson:"timestamp" json:"timestamp"`
	AnalysisResult map[string]interface{} `bson:"analysis_result,omitempty" json:"analysis_result,omitempty"`
}

type TableSummary struct {
	TotalRows          int     `bson:"total_rows" json:"total_rows"`
	TotalColumns       int     `bson:"total_columns" json:"total_columns"`
	NumericColumns     int     `bson:"numeric_columns" json:"numeric_columns"`
	CategoricalColumns int     `bson:"categorical_columns" json:"categorical_columns"`
	MissingValues      int     `bson:"missing_values" json:"missing_values"`
	CompletionRate     float64 `bson:"completion_rate" json:"completion_rate"`
}

// Table is either a parsed dataframe table (Columns/Cells populated), a raw
// text block detected in stdout (Content populated), or a one-line
// statistical result (Type "statistical_result"). Rows is the data row count.
type Table struct {
	Type              string        `bson:"type" json:"type"`
	Title             string        `bson:"title" json:"title"`
	Content           string        `bson:"content,omitempty" json:"content,omitempty"`
	Columns           []string      `bson:"columns,omitempty" json:"columns,omitempty"`
	Cells             [][]string    `bson:"cells,omitempty" json:"cells,omitempty"`
	Rows              int           `bson:"rows" json:"rows"`
	Clickable         bool          `bson:"clickable" json:"clickable"`
	HealthcareContext string        `bson:"healthcare_context" json:"healthcare_context"`
	Summary           *TableSummary `bson:"summary,omitempty" json:"summary,omitempty"`
}

type Chart struct {
	Type      string `bson:"type" json:"type"`
	ChartType string `bson:"chart_type" json:"chart_type"`
	Data      string `bson:"data" json:"data"`
	Title     string `bson:"title" json:"title"`
	FigNum    int    `bson:"fig_num" json:"fig_num"`
}

// SectionMetadata carries the success-path fields for sections that ran and
// the error-path fields for sections that failed.
type SectionMetadata struct {
	LinesOfCode       int      `bson:"lines_of_code,omitempty" json:"lines_of_code,omitempty"`
	HasOutput         bool     `bson:"has_output,omitempty" json:"has_output,omitempty"`
	ChartType         string   `bson:"chart_type,omitempty" json:"chart_type,omitempty"`
	VariablesUsed     []string `bson:"variables_used,omitempty" json:"variables_used,omitempty"`
	ExecutionTime     float64  `bson:"execution_time" json:"execution_time"`
	SectionComplexity string   `bson:"section_complexity,omitempty" json:"section_complexity,omitempty"`
	HealthcareContext string   `bson:"healthcare_context,omitempty" json:"healthcare_context,omitempty"`
	DataModifications []string `bson:"data_modifications,omitempty" json:"data_modifications,omitempty"`
	ErrorType         string   `bson:"error_type,omitempty" json:"error_type,omitempty"`
	ErrorMessage      string   `bson:"error_message,omitempty" json:"error_message,omitempty"`
	SectionType       string   `bson:"section_type,omitempty" json:"section_type,omitempty"`
	CodeLength        int      `bson:"code_length,omitempty" json:"code_length,omitempty"`
}

type AnalysisSection struct {
	ID          string          `bson:"id" json:"id"`
	Title       string          `bson:"title" json:"title"`
	SectionType string          `bson:"section_type" json:"section_type"`
	Code        string          `bson:"code" json:"code"`
	Output      string          `bson:"output" json:"output"`
	Success     bool            `bson:"success" json:"success"`
	Error       string          `bson:"error,omitempty" json:"error,omitempty"`
	Metadata    SectionMetadata `bson:"metadata" json:"metadata"`
	Tables      []Table         `bson:"tables" json:"tables"`
	Charts      []Chart         `bson:"charts" json:"charts"`
	Order       int             `bson:"order" json:"order"`
}

type StructuredAnalysisResult struct {
	ID             string            `bson:"id" json:"id"`
	SessionID      string            `bson:"session_id" json:"session_id"`
	Title          string            `bson:"title" json:"title"`
	Sections       []AnalysisSection `bson:"sections" json:"sections"`
	TotalSections  int               `bson:"total_sections" json:"total_sections"`
	ExecutionTime  float64           `bson:"execution_time" json:"execution_time"`
	Timestamp      time.Time         `bson:"timestamp" json:"timestamp"`
	OverallSuccess bool              `bson:"overall_success" json:"overall_success"`
}

type AnalysisResult struct {
	ID                 string    `bson:"id" json:"id"`
	SessionID          string    `bson:"session_id" json:"session_id"`
	AnalysisType       string    `bson:"analysis_type" json:"analysis_type"`
	Variables          []string  `bson:"variables" json:"variables"`
	TestStatistic      *float64  `bson:"test_statistic,omitempty" json:"test_statistic,omitempty"`
	PValue             *float64  `bson:"p_value,omitempty" json:"p_value,omitempty"`
	EffectSize         *float64  `bson:"effect_size,omitempty" json:"effect_size,omitempty"`
	ConfidenceInterval []float64 `bson:"confidence_interval,omitempty" json:"confidence_interval,omitempty"`
	Method             string    `bson:"method,omitempty" json:"method,omitempty"`
	ResultsSummary     string    `bson:"results_summary,omitempty" json:"results_summary,omitempty"`
	Timestamp          time.Time `bson:"timestamp" json:"timestamp"`
}

type ComprehensiveAnalysisResult struct {
	ID             string                 `bson:"id" json:"id"`
	SessionID      string                 `bson:"session_id" json:"session_id"`
	Filename       string                 `bson:"filename" json:"filename"`
	AnalysisData   map[string]interface{} `bson:"analysis_data" json:"analysis_data"`
	Interpretation string                 `bson:"interpretation" json:"interpretation"`
	CreatedAt      time.Time              `bson:"created_at" json:"created_at"`
}
