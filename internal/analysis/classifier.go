// Package analysis splits generated Python into sections, classifies what
// each section does, executes it through the sandbox, and extracts the
// tables, charts, and metadata the frontend renders per section.
package analysis

import (
	"regexp"
	"strings"
)

// sectionPatterns are checked in order; the first list with a hit wins, so a
// section mentioning both "describe" and "ttest" classifies as summary.
var sectionPatterns = []struct {
	sectionType string
	title       string
	patterns    []string
}{
	{"summary", "Clinical Data Overview", []string{
		"summary", "overview", "describe", "info()", "head()", "shape", "dtypes",
		"clinical outcomes", "total patients", "key findings", "demographics",
		"baseline characteristics", "patient characteristics", "sample size",
	}},
	{"descriptive", "Descriptive Statistics", []string{
		"mean()", "median()", "std()", "var()", "quantile()", "describe()",
		"value_counts()", "groupby", "agg(", "aggregate", "count()",
		"descriptive", "central tendency", "dispersion", "distribution",
		"frequency", "crosstab", "cross_table", "contingency",
		"baseline statistics", "demographic analysis", "patient demographics",
	}},
	{"statistical_test", "Statistical Analysis", []string{
		"ttest", "chi2", "anova", "mannwhitney", "wilcoxon", "kruskal",
		"pearson", "spearman", "correlation", "regression", "logistic",
		"pvalue", "significance", "hypothesis", "paired_ttest", "unpaired",
		"fisher_exact", "mcnemar", "friedman", "cochran", "odds_ratio",
		"relative_risk", "risk_ratio", "confidence_interval", "effect_size",
		"power_analysis", "sample_size_calculation", "bonferroni",
		"multiple_comparisons", "post_hoc", "tukey", "dunnett",
	}},
	{"survival", "Survival Analysis", []string{
		"survival", "kaplan", "meier", "hazard", "cox", "lifetable",
		"censored", "time_to_event", "log_rank", "breslow", "tarone",
		"nelson_aalen", "cumulative_hazard", "survival_curve",
	}},
	{"epidemiological", "Epidemiological Analysis", []string{
		"incidence", "prevalence", "epidemiology", "outbreak", "epidemic",
		"attack_rate", "case_fatality", "mortality_rate", "morbidity",
		"standardized_mortality", "age_adjusted", "direct_standardization",
		"indirect_standardization", "person_years", "person_time",
	}},
	{"visualization", "Data Visualization", []string{
		"plot", "hist", "scatter", "bar", "pie", "box", "violin",
		"seaborn", "matplotlib", "plotly", "visualization", "chart",
		"forest_plot", "funnel_plot", "survival_plot", "kaplan_meier_plot",
		"roc_curve", "precision_recall", "bland_altman", "qq_plot",
		"residual_plot", "diagnostic_plot", "heatmap", "correlation_matrix",
	}},
	{"model", "Predictive Modeling", []string{
		"model", "fit()", "predict", "score", "cross_val", "validation",
		"randomforest", "svm", "neural", "machine_learning", "deep_learning",
		"linear_model", "logistic_model", "cox_model", "mixed_model",
		"glm", "gam", "random_effects", "fixed_effects", "multilevel",
		"hierarchical", "bayesian", "prediction_model", "risk_model",
	}},
	{"clinical_trial", "Clinical Trial Analysis", []string{
		"clinical_trial", "randomized", "controlled", "rct", "trial",
		"treatment_effect", "intervention", "placebo", "blinded",
		"intention_to_treat", "per_protocol", "efficacy", "safety",
		"adverse_events", "serious_adverse", "dropout", "compliance",
		"protocol_deviation", "interim_analysis", "futility",
	}},
	{"preprocessing", "Data Preprocessing", []string{
		"fillna", "dropna", "merge", "join", "transform", "encode",
		"scale", "normalize", "preprocess", "cleaning", "imputation",
		"outlier", "missing_data", "data_validation", "quality_control",
		"standardization", "normalization", "feature_engineering",
	}},
	{"diagnostic", "Diagnostic Test Analysis", []string{
		"sensitivity", "specificity", "ppv", "npv", "diagnostic",
		"screening", "roc", "auc", "receiver_operating", "cutoff",
		"threshold", "youden", "likelihood_ratio", "diagnostic_odds",
		"predictive_value", "test_accuracy", "concordance", "kappa",
	}},
}

// ClassifySection maps a code section to its section type and default title.
func ClassifySection(code string) (string, string) {
	codeLower := strings.ToLower(code)
	for _, sp := range sectionPatterns {
		for _, pattern := range sp.patterns {
			if strings.Contains(codeLower, pattern) {
				return sp.sectionType, sp.title
			}
		}
	}
	return "analysis", "Healthcare Data Analysis"
}

// chartTypePatterns put domain charts ahead of the generic ones so survival
// code plotting a line still reads as a survival plot.
var chartTypePatterns = []struct {
	chartType string
	patterns  []string
}{
	{"forest_plot", []string{"forest_plot", "forest"}},
	{"survival_plot", []string{"survival_plot", "kaplan_meier", "survival"}},
	{"roc_curve", []string{"roc_curve", "roc"}},
	{"funnel_plot", []string{"funnel_plot", "funnel"}},
	{"bland_altman", []string{"bland_altman", "bland"}},
	{"pie", []string{"pie", "value_counts"}},
	{"histogram", []string{"hist", "distribution", "histogram"}},
	{"bar", []string{"bar", "count", "barplot"}},
	{"scatter", []string{"scatter", "correlation", "scatterplot"}},
	{"box", []string{"box", "quartile", "boxplot"}},
	{"violin", []string{"violin", "violinplot"}},
	{"line", []string{"line", "time", "trend", "lineplot"}},
	{"heatmap", []string{"heatmap", "correlation_matrix"}},
}

func DetermineChartType(code string) string {
	codeLower := strings.ToLower(code)
	for _, cp := range chartTypePatterns {
		for _, pattern := range cp.patterns {
			if strings.Contains(codeLower, pattern) {
				return cp.chartType
			}
		}
	}
	return "bar"
}

// tableContext tags a table's content for the frontend's rendering hints.
func tableContext(text string) string {
	textLower := strings.ToLower(text)

	switch {
	case containsAny(textLower, []string{"patient", "clinical", "medical", "health", "treatment", "diagnosis"}):
		return "clinical_data"
	case containsAny(textLower, []string{"ttest", "pvalue", "confidence", "significance", "chi2", "anova"}):
		return "statistical_results"
	case containsAny(textLower, []string{"survival", "hazard", "kaplan", "meier"}):
		return "survival_analysis"
	case containsAny(textLower, []string{"roc", "auc", "sensitivity", "specificity"}):
		return "diagnostic_metrics"
	default:
		return "general_data"
	}
}

// sectionContext tags the research context of a whole section from its code
// and output combined.
func sectionContext(code, output string) string {
	combined := strings.ToLower(code + " " + output)

	switch {
	case containsAny(combined, []string{"clinical", "patient", "medical", "treatment", "diagnosis"}):
		return "clinical_research"
	case containsAny(combined, []string{"survival", "kaplan", "hazard", "cox"}):
		return "survival_analysis"
	case containsAny(combined, []string{"rct", "trial", "randomized", "intervention"}):
		return "clinical_trial"
	case containsAny(combined, []string{"epidemiology", "outbreak", "prevalence", "incidence"}):
		return "epidemiological"
	case containsAny(combined, []string{"diagnostic", "sensitivity", "specificity", "roc"}):
		return "diagnostic_testing"
	default:
		return "general_healthcare"
	}
}

// frameTableTitle names a captured DataFrame from the flavor of its columns.
func frameTableTitle(name string, columns []string) string {
	joined := strings.ToLower(strings.Join(columns, " "))

	switch {
	case containsAny(joined, []string{"patient", "clinical", "medical"}):
		return "Clinical Data: " + name
	case containsAny(joined, []string{"test", "pvalue", "statistic"}):
		return "Statistical Results: " + name
	case containsAny(joined, []string{"survival", "hazard", "time"}):
		return "Survival Analysis: " + name
	default:
		return "Healthcare Data: " + name
	}
}

// sectionComplexity scores control flow and modeling constructs plus sheer
// length, bucketed into low/medium/high.
func sectionComplexity(code string) string {
	var nonEmpty []string
	for _, line := range strings.Split(code, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" && !strings.HasPrefix(trimmed, "#") {
			nonEmpty = append(nonEmpty, trimmed)
		}
	}

	score := 0
	for _, line := range nonEmpty {
		lineLower := strings.ToLower(line)
		if containsAny(lineLower, []string{"for", "while", "if", "elif", "try", "except"}) {
			score += 2
		}
		if containsAny(lineLower, []string{"lambda", "list comprehension", "nested"}) {
			score += 3
		}
		if containsAny(lineLower, []string{"model", "fit", "predict", "cross_val"}) {
			score += 2
		}
	}

	total := score + len(nonEmpty)
	switch {
	case total <= 5:
		return "low"
	case total <= 15:
		return "medium"
	default:
		return "high"
	}
}

// dataModifications lists the kinds of reshaping the section performed.
func dataModifications(code string) []string {
	codeLower := strings.ToLower(code)

	var mods []string
	if containsAny(codeLower, []string{"fillna", "dropna", "drop"}) {
		mods = append(mods, "missing_data_handling")
	}
	if containsAny(codeLower, []string{"merge", "join", "concat"}) {
		mods = append(mods, "data_merging")
	}
	if containsAny(codeLower, []string{"groupby", "pivot", "melt"}) {
		mods = append(mods, "data_reshaping")
	}
	if containsAny(codeLower, []string{"scale", "normalize", "standardize"}) {
		mods = append(mods, "data_scaling")
	}
	if containsAny(codeLower, []string{"encode", "dummy", "categorical"}) {
		mods = append(mods, "encoding")
	}
	return mods
}

var (
	dfIndexPattern = regexp.MustCompile(`df\[['"](.*?)['"]\]`)
	dfAttrPattern  = regexp.MustCompile(`df\.(\w+)`)

	frameAccessors = map[string]bool{
		"head":     true,
		"tail":     true,
		"shape":    true,
		"info":     true,
		"describe": true,
	}
)

// variablesUsed pulls the dataset columns a section touched, skipping plain
// frame accessors like df.head.
func variablesUsed(code string) []string {
	seen := make(map[string]bool)
	var variables []string

	add := func(v string) {
		if v == "" || seen[v] || frameAccessors[v] {
			return
		}
		seen[v] = true
		variables = append(variables, v)
	}

	for _, m := range dfIndexPattern.FindAllStringSubmatch(code, -1) {
		add(m[1])
	}
	for _, m := range dfAttrPattern.FindAllStringSubmatch(code, -1) {
		add(m[1])
	}

	return variables
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
