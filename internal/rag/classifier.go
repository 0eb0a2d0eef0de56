// Package rag turns uploaded datasets into retrievable chunks and builds the
// retrieval-augmented context blocks the chat prompts use.
package rag

import (
	"regexp"
	"strings"

	prose "github.com/jdkato/prose/v2"

	"github.com/datachat/backend/pkg/utils"
)

type QueryType string

const (
	QueryDescriptive   QueryType = "descriptive"
	QueryInferential   QueryType = "inferential"
	QueryCorrelation   QueryType = "correlation"
	QueryVisualization QueryType = "visualization"
	QueryComparison    QueryType = "comparison"
	QueryPredictive    QueryType = "predictive"
	QueryTemporal      QueryType = "temporal"
	QueryDistribution  QueryType = "distribution"
	QueryOutlier       QueryType = "outlier"
	QuerySummary       QueryType = "summary"
)

type QueryIntent struct {
	Type              QueryType
	Variables         []string
	Operations        []string
	Filters           map[string]string
	Confidence        float64
	StatisticalTests  []string
	VisualizationType string
}

func compileAll(patterns ...string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		compiled[i] = regexp.MustCompile(p)
	}
	return compiled
}

// typePatterns are scanned in order; ties between types resolve to the
// earlier entry.
var typePatterns = []struct {
	qtype    QueryType
	patterns []*regexp.Regexp
}{
	{QueryDescriptive, compileAll(
		`\b(describe|summary|overview|statistics|mean|average|median|mode|std|variance|distribution)\b`,
		`\b(what is|what are|show me|tell me about|describe)\b`,
		`\b(characteristics|profile|basic stats|descriptive)\b`,
	)},
	{QueryInferential, compileAll(
		`\b(test|hypothesis|significance|p-value|confidence|interval)\b`,
		`\b(ttest|anova|chi-square|regression|correlation test)\b`,
		`\b(difference|association|relationship|effect)\b`,
	)},
	{QueryCorrelation, compileAll(
		`\b(correlat|relationship|association|connect)\b`,
		`\b(relate|link|depend|influence|affect)\b`,
		`\b(between|among|with)\b.*\b(and|&)\b`,
	)},
	{QueryVisualization, compileAll(
		`\b(plot|graph|chart|visualize|show|display)\b`,
		`\b(histogram|scatter|bar|line|box|heatmap)\b`,
		`\b(trend|pattern|distribution)\b`,
	)},
	{QueryComparison, compileAll(
		`\b(compare|contrast|difference|versus|vs|against)\b`,
		`\b(group|category|segment|cohort)\b`,
		`\b(higher|lower|greater|less|more|fewer)\b`,
	)},
	{QueryPredictive, compileAll(
		`\b(predict|forecast|model|estimate|project)\b`,
		`\b(future|outcome|result|prognosis)\b`,
		`\b(regression|machine learning|ml|classification)\b`,
	)},
	{QueryTemporal, compileAll(
		`\b(time|temporal|trend|over time|longitudinal)\b`,
		`\b(before|after|during|period|season)\b`,
		`\b(change|evolution|progression|development)\b`,
	)},
}

var statisticalTestPatterns = []struct {
	name    string
	pattern *regexp.Regexp
}{
	{"ttest", regexp.MustCompile(`\b(t-test|ttest|paired|unpaired|independent|student)\b`)},
	{"anova", regexp.MustCompile(`\b(anova|analysis of variance|f-test|one-way|two-way)\b`)},
	{"chi_square", regexp.MustCompile(`\b(chi-square|chi2|contingency|independence)\b`)},
	{"correlation", regexp.MustCompile(`\b(correlation|pearson|spearman|kendall)\b`)},
	{"regression", regexp.MustCompile(`\b(regression|linear|logistic|multiple)\b`)},
	{"nonparametric", regexp.MustCompile(`\b(mann-whitney|wilcoxon|kruskal|friedman)\b`)},
}

// visualizationTypePatterns are checked in order; the first hit wins.
var visualizationTypePatterns = []struct {
	name    string
	pattern *regexp.Regexp
}{
	{"histogram", regexp.MustCompile(`\b(histogram|distribution|frequency)\b`)},
	{"scatter", regexp.MustCompile(`\b(scatter|relationship|correlation)\b`)},
	{"bar", regexp.MustCompile(`\b(bar|category|group|count)\b`)},
	{"line", regexp.MustCompile(`\b(line|trend|time|temporal)\b`)},
	{"box", regexp.MustCompile(`\b(box|quartile|outlier|spread)\b`)},
	{"heatmap", regexp.MustCompile(`\b(heatmap|correlation matrix|intensity)\b`)},
}

var operationPatterns = []struct {
	name    string
	pattern *regexp.Regexp
}{
	{"mean", regexp.MustCompile(`\b(mean|average|avg)\b`)},
	{"median", regexp.MustCompile(`\b(median|middle)\b`)},
	{"mode", regexp.MustCompile(`\b(mode|most common)\b`)},
	{"std", regexp.MustCompile(`\b(standard deviation|std|variability)\b`)},
	{"var", regexp.MustCompile(`\b(variance|var)\b`)},
	{"min", regexp.MustCompile(`\b(minimum|min|lowest)\b`)},
	{"max", regexp.MustCompile(`\b(maximum|max|highest)\b`)},
	{"sum", regexp.MustCompile(`\b(sum|total|add)\b`)},
	{"count", regexp.MustCompile(`\b(count|number|frequency)\b`)},
	{"correlation", regexp.MustCompile(`\b(correlation|relate|associate)\b`)},
	{"regression", regexp.MustCompile(`\b(regression|predict|model)\b`)},
}

var commonVariablePatterns = compileAll(
	`\b(age|gender|sex|height|weight|bmi|income|salary|education|experience)\b`,
	`\b(score|rating|price|cost|value|amount|quantity|count)\b`,
	`\b(blood_pressure|heart_rate|temperature|cholesterol|glucose)\b`,
	`\b(treatment|medication|therapy|intervention|group|category)\b`,
)

var (
	ageFilterPattern    = regexp.MustCompile(`age\s*[><=]\s*(\d+)`)
	genderFilterPattern = regexp.MustCompile(`\b(male|female|men|women)\b`)
	groupFilterPattern  = regexp.MustCompile(`group\s*[=:]\s*["']?([^"']+)["']?`)
)

type Classifier struct{}

func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify scores the query against each type's pattern set and extracts
// mentioned variables, operations, filters, and statistical tests. Columns
// are the dataset's column names; mentions of them count as variables
// alongside the common variable vocabulary.
func (c *Classifier) Classify(query string, columns []string) QueryIntent {
	queryLower := strings.ToLower(query)

	scores := make(map[QueryType]int)
	for _, tp := range typePatterns {
		for _, p := range tp.patterns {
			if p.MatchString(queryLower) {
				scores[tp.qtype]++
			}
		}
	}

	primary := QueryDescriptive
	confidence := 0.5
	if len(scores) > 0 {
		total := 0
		best := 0
		for _, tp := range typePatterns {
			s := scores[tp.qtype]
			total += s
			if s > best {
				best = s
				primary = tp.qtype
			}
		}
		confidence = float64(best) / float64(total)
	}

	var tests []string
	for _, tp := range statisticalTestPatterns {
		if tp.pattern.MatchString(queryLower) {
			tests = append(tests, tp.name)
		}
	}

	vizType := ""
	for _, vp := range visualizationTypePatterns {
		if vp.pattern.MatchString(queryLower) {
			vizType = vp.name
			break
		}
	}

	return QueryIntent{
		Type:              primary,
		Variables:         c.extractVariables(query, columns),
		Operations:        extractOperations(queryLower),
		Filters:           extractFilters(queryLower),
		Confidence:        confidence,
		StatisticalTests:  tests,
		VisualizationType: vizType,
	}
}

// extractVariables combines the common variable vocabulary with dataset
// column mentions. Column matching tokenizes the query so that "compare age
// and bmi" hits the age and bmi columns without substring false positives.
func (c *Classifier) extractVariables(query string, columns []string) []string {
	queryLower := strings.ToLower(query)
	seen := make(map[string]bool)
	var variables []string

	add := func(v string) {
		if v == "" || seen[v] {
			return
		}
		seen[v] = true
		variables = append(variables, v)
	}

	for _, p := range commonVariablePatterns {
		for _, match := range p.FindAllString(queryLower, -1) {
			add(match)
		}
	}

	tokens := make(map[string]bool)
	if doc, err := prose.NewDocument(query,
		prose.WithTagging(false),
		prose.WithExtraction(false),
	); err == nil {
		for _, tok := range doc.Tokens() {
			tokens[utils.NormalizeToken(tok.Text)] = true
		}
	}

	for _, col := range columns {
		colLower := strings.ToLower(col)
		spaced := strings.ReplaceAll(colLower, "_", " ")
		if tokens[colLower] || strings.Contains(queryLower, spaced) {
			add(col)
		}
	}

	return variables
}

func extractOperations(queryLower string) []string {
	var operations []string
	for _, op := range operationPatterns {
		if op.pattern.MatchString(queryLower) {
			operations = append(operations, op.name)
		}
	}
	return operations
}

func extractFilters(queryLower string) map[string]string {
	filters := make(map[string]string)

	if m := ageFilterPattern.FindStringSubmatch(queryLower); m != nil {
		filters["age"] = m[1]
	}
	if m := genderFilterPattern.FindStringSubmatch(queryLower); m != nil {
		filters["gender"] = m[1]
	}
	if m := groupFilterPattern.FindStringSubmatch(queryLower); m != nil {
		filters["group"] = strings.TrimSpace(m[1])
	}

	return filters
}
