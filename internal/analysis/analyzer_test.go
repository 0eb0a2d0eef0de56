package analysis

import (
	"strings"
	"testing"

	"github.com/datachat/backend/internal/dataset"
)

const analyzerCSV = "patient_id,treatment_group,age,followup_months\n" +
	"P001,A,34,12\n" +
	"P002,B,51,\n" +
	"P003,A,29,6\n"

func TestAnalyzePayload(t *testing.T) {
	frame, err := dataset.Parse(strings.NewReader(analyzerCSV))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	payload := DatasetAnalyzer{}.Analyze(frame, "trial.csv")

	if got := payload["filename"]; got != "trial.csv" {
		t.Errorf("filename = %v", got)
	}

	overview := payload["overview"].(map[string]interface{})
	if overview["rows"] != 3 || overview["columns"] != 4 {
		t.Errorf("overview shape = %v x %v, want 3 x 4", overview["rows"], overview["columns"])
	}
	if overview["numeric_columns"] != 2 || overview["categorical_columns"] != 2 {
		t.Errorf("column split = %v numeric / %v categorical, want 2 / 2",
			overview["numeric_columns"], overview["categorical_columns"])
	}

	quality := payload["quality"].(map[string]interface{})
	if quality["missing_cells"] != 1 || quality["total_cells"] != 12 {
		t.Errorf("cells = %v missing / %v total, want 1 / 12", quality["missing_cells"], quality["total_cells"])
	}
	if quality["completeness_score"] != 91.67 {
		t.Errorf("completeness = %v, want 91.67", quality["completeness_score"])
	}
	if quality["quality_grade"] != "B" {
		t.Errorf("grade = %v, want B", quality["quality_grade"])
	}

	missing := payload["missing_values"].(map[string]interface{})
	followup := missing["followup_months"].(map[string]interface{})
	if followup["missing"] != 1 || followup["missing_percentage"] != 33.33 {
		t.Errorf("followup_months missing = %v, want 1 cell at 33.33%%", followup)
	}

	findings := payload["key_findings"].([]string)
	if findings[0] != "Dataset contains 3 observations across 4 variables" {
		t.Errorf("first finding = %q", findings[0])
	}
	// The two complete rows correlate perfectly, so the pair is reported.
	if !containsSubstring(findings, "Strong correlation between age and followup_months (r=1.00)") {
		t.Errorf("findings missing correlation line: %v", findings)
	}
	if !containsSubstring(findings, "treatment_group") {
		t.Errorf("findings missing exposure variable: %v", findings)
	}

	recs := payload["recommendations"].([]string)
	if !containsSubstring(recs, "multicollinearity") {
		t.Errorf("recommendations missing multicollinearity warning: %v", recs)
	}
	if !containsSubstring(recs, "Sample size is small") {
		t.Errorf("recommendations missing small-sample warning: %v", recs)
	}

	summary := payload["summary"].(string)
	if !strings.Contains(summary, "Data Quality Score: 91.7% (Grade B)") {
		t.Errorf("summary header missing quality score:\n%s", summary)
	}
	if !strings.Contains(summary, "3 rows × 4 columns (2 numeric, 2 categorical)") {
		t.Errorf("summary missing shape line:\n%s", summary)
	}

	detailed := payload["detailed_findings"].(string)
	for _, want := range []string{
		"**followup_months:** 1 missing (33.3%)",
		"**age ↔ followup_months:** r=1.00 (strong)",
		"- **Time Variables:** followup_months",
		"**age:** mean 38.00",
	} {
		if !strings.Contains(detailed, want) {
			t.Errorf("detailed findings missing %q", want)
		}
	}
}

func TestAnalyzeCleanDataset(t *testing.T) {
	csv := "name,score\na,1\nb,2\nc,3\n"
	frame, err := dataset.Parse(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	payload := DatasetAnalyzer{}.Analyze(frame, "clean.csv")

	quality := payload["quality"].(map[string]interface{})
	if quality["completeness_score"] != 100.0 {
		t.Errorf("completeness = %v, want 100", quality["completeness_score"])
	}
	if quality["quality_grade"] != "A" {
		t.Errorf("grade = %v, want A", quality["quality_grade"])
	}

	if missing := payload["missing_values"].(map[string]interface{}); len(missing) != 0 {
		t.Errorf("missing_values = %v, want empty", missing)
	}

	findings := payload["key_findings"].([]string)
	if !containsSubstring(findings, "No missing values detected") {
		t.Errorf("findings = %v, want clean-data line", findings)
	}
}

func TestQualityGrade(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{100, "A"},
		{95, "A"},
		{94.99, "B"},
		{85, "B"},
		{84.9, "C"},
		{70, "C"},
		{69.9, "D"},
		{0, "D"},
	}
	for _, tt := range tests {
		if got := qualityGrade(tt.score); got != tt.want {
			t.Errorf("qualityGrade(%v) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestBuildRecommendationsDefault(t *testing.T) {
	recs := buildRecommendations(100, nil, nil, nil)
	if len(recs) != 1 || recs[0] != "Data quality looks good, proceed with exploratory analysis" {
		t.Errorf("recs = %v, want the default line", recs)
	}
}

func containsSubstring(items []string, sub string) bool {
	for _, item := range items {
		if strings.Contains(item, sub) {
			return true
		}
	}
	return false
}
