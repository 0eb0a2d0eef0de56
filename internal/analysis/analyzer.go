package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/datachat/backend/internal/dataset"
	"github.com/datachat/backend/pkg/utils"
)

const (
	maxReportedMissing      = 5
	maxReportedCorrelations = 3
	maxReportedStats        = 5
)

// DatasetAnalyzer builds the first-look report posted to chat right after
// upload, plus the structured payload stored with the session's
// comprehensive analysis.
type DatasetAnalyzer struct{}

// Analyze profiles the frame and returns the analysis payload. The summary
// and detailed_findings keys hold rendered markdown; the rest are structured
// fields for the comprehensive-analysis endpoint.
func (DatasetAnalyzer) Analyze(frame *dataset.Frame, filename string) map[string]interface{} {
	rows, cols := frame.Shape()
	numeric := frame.NumericColumns()
	categorical := frame.CategoricalColumns()
	nullCounts := frame.NullCounts()
	study := dataset.IdentifyStudyVariables(frame.Columns())

	missingCells := 0
	missingByColumn := map[string]interface{}{}
	var missingColumns []string
	for _, col := range frame.Columns() {
		n := nullCounts[col]
		if n == 0 {
			continue
		}
		missingCells += n
		missingColumns = append(missingColumns, col)
		pct := 0.0
		if rows > 0 {
			pct = round2(float64(n) / float64(rows) * 100)
		}
		missingByColumn[col] = map[string]interface{}{
			"missing":            n,
			"missing_percentage": pct,
		}
	}
	// Worst columns first in the report.
	sort.Slice(missingColumns, func(i, j int) bool {
		if nullCounts[missingColumns[i]] != nullCounts[missingColumns[j]] {
			return nullCounts[missingColumns[i]] > nullCounts[missingColumns[j]]
		}
		return missingColumns[i] < missingColumns[j]
	})

	totalCells := rows * cols
	completeness := 100.0
	if totalCells > 0 {
		completeness = round2((1 - float64(missingCells)/float64(totalCells)) * 100)
	}
	grade := qualityGrade(completeness)

	var strongPairs []dataset.CorrelationPair
	for _, pair := range frame.Correlations() {
		if pair.Strong() {
			strongPairs = append(strongPairs, pair)
		}
	}

	findings := keyFindings(frame, rows, cols, missingCells, missingColumns, completeness, strongPairs, study)
	recommendations := buildRecommendations(rows, missingColumns, strongPairs, categorical)

	return map[string]interface{}{
		"filename":     filename,
		"generated_at": time.Now().UTC().Format(time.RFC3339),
		"overview": map[string]interface{}{
			"rows":                rows,
			"columns":             cols,
			"numeric_columns":     len(numeric),
			"categorical_columns": len(categorical),
			"column_names":        frame.Columns(),
		},
		"quality": map[string]interface{}{
			"completeness_score": completeness,
			"quality_grade":      grade,
			"missing_cells":      missingCells,
			"total_cells":        totalCells,
		},
		"missing_values":    missingByColumn,
		"key_findings":      findings,
		"recommendations":   recommendations,
		"summary":           renderSummary(rows, cols, numeric, categorical, completeness, grade, findings, recommendations),
		"detailed_findings": renderDetailedFindings(frame, rows, cols, numeric, categorical, nullCounts, missingColumns, strongPairs, study),
	}
}

func qualityGrade(score float64) string {
	switch {
	case score >= 95:
		return "A"
	case score >= 85:
		return "B"
	case score >= 70:
		return "C"
	default:
		return "D"
	}
}

func keyFindings(frame *dataset.Frame, rows, cols, missingCells int, missingColumns []string,
	completeness float64, strongPairs []dataset.CorrelationPair, study dataset.StudyVariables) []string {

	findings := []string{
		fmt.Sprintf("Dataset contains %s observations across %d variables", utils.CommaInt(rows), cols),
		fmt.Sprintf("%d numeric and %d categorical variables detected",
			len(frame.NumericColumns()), len(frame.CategoricalColumns())),
	}

	if missingCells == 0 {
		findings = append(findings, "No missing values detected")
	} else {
		findings = append(findings, fmt.Sprintf("%s missing values across %d columns (%.1f%% complete)",
			utils.CommaInt(missingCells), len(missingColumns), completeness))
	}

	for i, pair := range strongPairs {
		if i >= maxReportedCorrelations {
			break
		}
		findings = append(findings, fmt.Sprintf("%s correlation between %s and %s (r=%.2f)",
			utils.TitleWords(pair.StrengthLabel()), pair.A, pair.B, pair.R))
	}

	if len(study.Outcomes) > 0 {
		findings = append(findings, fmt.Sprintf("Potential outcome variables identified: %s",
			strings.Join(study.Outcomes, ", ")))
	}
	if len(study.Exposures) > 0 {
		findings = append(findings, fmt.Sprintf("Potential treatment/exposure variables identified: %s",
			strings.Join(study.Exposures, ", ")))
	}

	return findings
}

func buildRecommendations(rows int, missingColumns []string, strongPairs []dataset.CorrelationPair,
	categorical []string) []string {

	var recs []string
	if len(missingColumns) > 0 {
		recs = append(recs, fmt.Sprintf("Review missing data in %s before statistical modeling",
			strings.Join(firstN(missingColumns, 3), ", ")))
	}
	if len(strongPairs) > 0 {
		recs = append(recs, "Watch for multicollinearity when fitting regression models")
	}
	if rows > 0 && rows < 30 {
		recs = append(recs, "Sample size is small; prefer nonparametric tests and exact methods")
	}
	if len(categorical) > 0 {
		recs = append(recs, "Encode categorical variables before predictive modeling")
	}
	if len(recs) == 0 {
		recs = append(recs, "Data quality looks good, proceed with exploratory analysis")
	}
	return recs
}

func renderSummary(rows, cols int, numeric, categorical []string, completeness float64,
	grade string, findings, recommendations []string) string {

	var b strings.Builder
	fmt.Fprintf(&b, "**📊 Data Quality Score: %.1f%% (Grade %s)**\n", completeness, grade)
	fmt.Fprintf(&b, "**Dataset:** %s rows × %d columns (%d numeric, %d categorical)\n",
		utils.CommaInt(rows), cols, len(numeric), len(categorical))

	b.WriteString("\n**📋 Key Findings:**")
	for _, finding := range findings {
		fmt.Fprintf(&b, "\n• %s", finding)
	}

	b.WriteString("\n\n**🚀 Priority Recommendations:**")
	for _, rec := range recommendations {
		fmt.Fprintf(&b, "\n• %s", rec)
	}

	return b.String()
}

func renderDetailedFindings(frame *dataset.Frame, rows, cols int, numeric, categorical []string,
	nullCounts map[string]int, missingColumns []string, strongPairs []dataset.CorrelationPair,
	study dataset.StudyVariables) string {

	var b strings.Builder
	b.WriteString("# 🔍 **Detailed Data Analysis**\n\n")

	b.WriteString("## **📋 Dataset Structure**\n")
	fmt.Fprintf(&b, "- **Size:** %s rows × %d columns\n", utils.CommaInt(rows), cols)
	fmt.Fprintf(&b, "- **Numeric Variables (%d):** %s\n", len(numeric), joinOrNone(numeric))
	fmt.Fprintf(&b, "- **Categorical Variables (%d):** %s\n", len(categorical), joinOrNone(categorical))

	b.WriteString("\n## **🧪 Potential Study Variables**\n")
	fmt.Fprintf(&b, "- **Outcomes:** %s\n", joinOrNone(study.Outcomes))
	fmt.Fprintf(&b, "- **Exposures/Treatments:** %s\n", joinOrNone(study.Exposures))
	fmt.Fprintf(&b, "- **Time Variables:** %s\n", joinOrNone(study.TimeVars))

	b.WriteString("\n## **⚠️ Missing Values**\n")
	if len(missingColumns) == 0 {
		b.WriteString("• No missing values detected\n")
	} else {
		for i, col := range missingColumns {
			if i >= maxReportedMissing {
				fmt.Fprintf(&b, "• *...and %d more columns with missing data*\n", len(missingColumns)-maxReportedMissing)
				break
			}
			pct := float64(nullCounts[col]) / float64(rows) * 100
			fmt.Fprintf(&b, "• **%s:** %d missing (%.1f%%)\n", col, nullCounts[col], pct)
		}
	}

	describe := frame.Describe()
	b.WriteString("\n## **📈 Statistical Highlights**\n")
	if len(describe) == 0 {
		b.WriteString("• No numeric variables to summarize\n")
	} else {
		for i, col := range numeric {
			if i >= maxReportedStats {
				fmt.Fprintf(&b, "• *...and %d more numeric variables*\n", len(numeric)-maxReportedStats)
				break
			}
			stats, ok := describe[col]
			if !ok {
				continue
			}
			fmt.Fprintf(&b, "• **%s:** mean %.2f, std %.2f, range %.2f to %.2f\n",
				col, stats["mean"], stats["std"], stats["min"], stats["max"])
		}
	}

	b.WriteString("\n## **🔗 Correlations**\n")
	if len(strongPairs) == 0 {
		b.WriteString("• No strong correlations (|r| > 0.5) detected\n")
	} else {
		for _, pair := range strongPairs {
			fmt.Fprintf(&b, "• **%s ↔ %s:** r=%.2f (%s)\n", pair.A, pair.B, pair.R, pair.StrengthLabel())
		}
	}

	b.WriteString("\n**Ready to explore your data! Ask me anything about the dataset.**")
	return b.String()
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "None identified"
	}
	return strings.Join(items, ", ")
}

func firstN(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
