package analysis

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/datachat/backend/internal/rag"
)

// ResponseSection names one part of a structured chat answer.
type ResponseSection string

const (
	SectionAnswer             ResponseSection = "answer"
	SectionExplanation        ResponseSection = "explanation"
	SectionCode               ResponseSection = "code"
	SectionVisualizations     ResponseSection = "visualizations"
	SectionRecommendations    ResponseSection = "recommendations"
	SectionStatisticalContext ResponseSection = "statistical_context"
	SectionDataInsights       ResponseSection = "data_insights"
	SectionMethodology        ResponseSection = "methodology"
	SectionLimitations        ResponseSection = "limitations"
	SectionNextSteps          ResponseSection = "next_steps"
)

// StructuredResponse is one chat answer parsed into sections and enriched
// with retrieval context.
type StructuredResponse struct {
	Query          string
	Intent         rag.QueryIntent
	Sections       map[ResponseSection]string
	ContextChunks  []string
	Confidence     float64
	ProcessingTime float64
	RawResponse    string
}

var (
	structuredAnswerPattern = regexp.MustCompile(
		`(?s)1\.\s*\*\*Answer:\*\*\s*(.*?)\n\n2\.\s*\*\*Explanation:\*\*\s*(.*?)\n\n3\.\s*\*\*Code.*?\*\*\s*(.*?)\n\n4\.\s*\*\*Visualizations.*?\*\*\s*(.*?)(?:\n\n|$)`)
	codeBlockPattern   = regexp.MustCompile("(?s)```python\n(.*?)\n```")
	codeBlockStripper  = regexp.MustCompile("(?s)```python.*?```")
	meanValuePattern   = regexp.MustCompile(`mean=(\d+\.?\d*)`)
	correlationPattern = regexp.MustCompile(`(?i)correlation.*?(\d+\.?\d*)`)
	shapePattern       = regexp.MustCompile(`(\d+) rows.* (\d+) columns`)
	rowCountPattern    = regexp.MustCompile(`(\d+) rows`)

	statContextPatterns = compileSentencePatterns("p-value", "confidence interval", "statistical significance", "hypothesis")
	vizDescPatterns     = compileSentencePatterns("plot", "chart", "graph", "visualization")
	methodologyPatterns = compileSentencePatterns("method", "approach", "technique", "algorithm")
	recommendPatterns   = compileSentencePatterns("recommend", "suggest", "should", "consider")
)

// compileSentencePatterns builds matchers that grab from a keyword to the end
// of its sentence.
func compileSentencePatterns(keywords ...string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(keywords))
	for i, kw := range keywords {
		patterns[i] = regexp.MustCompile(`(?i)` + regexp.QuoteMeta(kw) + `.*?(?:\.|$)`)
	}
	return patterns
}

// ResponseGenerator parses LLM chat output into sections, enriches them with
// retrieval context, and scores how complete the answer is.
type ResponseGenerator struct{}

func (g ResponseGenerator) Generate(query string, intent rag.QueryIntent, contextChunks []string,
	llmResponse string, processingTime float64) *StructuredResponse {

	sections := g.parseResponse(llmResponse, intent)
	g.enhanceWithContext(sections, contextChunks, intent)

	return &StructuredResponse{
		Query:          query,
		Intent:         intent,
		Sections:       sections,
		ContextChunks:  contextChunks,
		Confidence:     confidenceScore(sections, contextChunks, intent),
		ProcessingTime: processingTime,
		RawResponse:    llmResponse,
	}
}

// FormatForFrontend appends the confidence footer the chat UI renders under
// each answer.
func (g ResponseGenerator) FormatForFrontend(resp *StructuredResponse) string {
	emoji := "🔴"
	switch {
	case resp.Confidence > 0.8:
		emoji = "🟢"
	case resp.Confidence > 0.6:
		emoji = "🟡"
	}
	return fmt.Sprintf("%s\n\n---\n*%s Confidence: %.1f%% | Processing time: %.2fs*",
		resp.RawResponse, emoji, resp.Confidence*100, resp.ProcessingTime)
}

func (g ResponseGenerator) parseResponse(llmResponse string, intent rag.QueryIntent) map[ResponseSection]string {
	sections := map[ResponseSection]string{}

	if m := structuredAnswerPattern.FindStringSubmatch(llmResponse); m != nil {
		sections[SectionAnswer] = strings.TrimSpace(m[1])
		sections[SectionExplanation] = strings.TrimSpace(m[2])
		sections[SectionCode] = strings.TrimSpace(m[3])
		sections[SectionVisualizations] = strings.TrimSpace(m[4])
		return sections
	}

	if blocks := codeBlockPattern.FindAllStringSubmatch(llmResponse, -1); len(blocks) > 0 {
		parts := make([]string, len(blocks))
		for i, b := range blocks {
			parts[i] = b[1]
		}
		sections[SectionCode] = strings.Join(parts, "\n\n")
	}

	mainContent := codeBlockStripper.ReplaceAllString(llmResponse, "")
	var paragraphs []string
	for _, p := range strings.Split(mainContent, "\n\n") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			paragraphs = append(paragraphs, trimmed)
		}
	}
	if len(paragraphs) > 0 {
		sections[SectionAnswer] = paragraphs[0]
	}
	if len(paragraphs) > 1 {
		sections[SectionExplanation] = strings.Join(paragraphs[1:], "\n\n")
	}

	g.addIntentSections(sections, llmResponse, intent)
	return sections
}

func (g ResponseGenerator) addIntentSections(sections map[ResponseSection]string, llmResponse string, intent rag.QueryIntent) {
	lower := strings.ToLower(llmResponse)

	switch intent.Type {
	case rag.QueryInferential:
		if strings.Contains(lower, "p-value") || strings.Contains(lower, "significance") {
			if ctx := extractSentences(llmResponse, statContextPatterns); ctx != "" {
				sections[SectionStatisticalContext] = ctx
			}
		}
	case rag.QueryVisualization:
		if desc := extractSentences(llmResponse, vizDescPatterns); desc != "" {
			sections[SectionVisualizations] = desc
		}
	case rag.QueryPredictive:
		if method := extractSentences(llmResponse, methodologyPatterns); method != "" {
			sections[SectionMethodology] = method
		}
	}

	if recs := extractSentences(llmResponse, recommendPatterns); recs != "" {
		sections[SectionRecommendations] = recs
	}
}

func extractSentences(text string, patterns []*regexp.Regexp) string {
	var parts []string
	for _, p := range patterns {
		parts = append(parts, p.FindAllString(text, -1)...)
	}
	return strings.Join(parts, " ")
}

func (g ResponseGenerator) enhanceWithContext(sections map[ResponseSection]string,
	contextChunks []string, intent rag.QueryIntent) {

	if insights := dataInsightsFromChunks(contextChunks); insights != "" {
		sections[SectionDataInsights] = insights
	}

	if _, ok := sections[SectionStatisticalContext]; !ok {
		if ctx := statContextFromChunks(contextChunks); ctx != "" {
			sections[SectionStatisticalContext] = ctx
		}
	}

	switch intent.Type {
	case rag.QueryInferential, rag.QueryPredictive, rag.QueryComparison:
		if _, ok := sections[SectionMethodology]; !ok {
			if method := methodologyForIntent(intent); method != "" {
				sections[SectionMethodology] = method
			}
		}
	}

	if lims := limitationsFor(intent, contextChunks); lims != "" {
		sections[SectionLimitations] = lims
	}
	if steps := nextStepsFor(intent); steps != "" {
		sections[SectionNextSteps] = steps
	}
}

func dataInsightsFromChunks(contextChunks []string) string {
	var insights []string
	for _, chunk := range contextChunks {
		if means := meanValuePattern.FindAllStringSubmatch(chunk, -1); len(means) > 0 {
			values := make([]string, len(means))
			for i, m := range means {
				values[i] = m[1]
			}
			insights = append(insights, "Mean values identified: "+strings.Join(values, ", "))
		}
		if corrs := correlationPattern.FindAllStringSubmatch(chunk, -1); len(corrs) > 0 {
			values := make([]string, len(corrs))
			for i, m := range corrs {
				values[i] = m[1]
			}
			insights = append(insights, "Correlation values found: "+strings.Join(values, ", "))
		}
		if shape := shapePattern.FindStringSubmatch(chunk); shape != nil {
			insights = append(insights, fmt.Sprintf("Dataset contains %s observations across %s variables",
				shape[1], shape[2]))
		}
	}
	return strings.Join(insights, "; ")
}

func statContextFromChunks(contextChunks []string) string {
	var parts []string
	for _, chunk := range contextChunks {
		if !strings.Contains(strings.ToLower(chunk), "statistical summary") {
			continue
		}
		for _, line := range strings.Split(chunk, "\n") {
			if containsAny(strings.ToLower(line), []string{"mean", "std", "correlation", "p-value"}) {
				parts = append(parts, strings.TrimSpace(line))
			}
		}
	}
	if len(parts) > 3 {
		parts = parts[:3]
	}
	return strings.Join(parts, "; ")
}

func methodologyForIntent(intent rag.QueryIntent) string {
	switch intent.Type {
	case rag.QueryInferential:
		switch {
		case containsString(intent.StatisticalTests, "ttest"):
			return "Statistical hypothesis testing using t-test to compare means between groups"
		case containsString(intent.StatisticalTests, "anova"):
			return "Analysis of variance (ANOVA) to test differences across multiple groups"
		case containsString(intent.StatisticalTests, "chi_square"):
			return "Chi-square test to examine association between categorical variables"
		default:
			return "Inferential statistical analysis to test hypotheses about population parameters"
		}
	case rag.QueryCorrelation:
		return "Correlation analysis to examine linear relationships between variables"
	case rag.QueryPredictive:
		return "Predictive modeling using regression techniques to forecast outcomes"
	case rag.QueryComparison:
		return "Comparative analysis using appropriate statistical tests for group differences"
	}
	return ""
}

func limitationsFor(intent rag.QueryIntent, contextChunks []string) string {
	var limitations []string
	add := func(s string) {
		for _, existing := range limitations {
			if existing == s {
				return
			}
		}
		limitations = append(limitations, s)
	}

	for _, chunk := range contextChunks {
		m := rowCountPattern.FindStringSubmatch(chunk)
		if m == nil {
			continue
		}
		var n int
		fmt.Sscanf(m[1], "%d", &n)
		if n < 30 {
			add("Small sample size may limit statistical power")
		} else if n > 10000 {
			add("Large dataset may require computational considerations")
		}
	}

	switch intent.Type {
	case rag.QueryInferential:
		add("Statistical assumptions should be verified before interpretation")
	case rag.QueryCorrelation:
		add("Correlation does not imply causation")
	case rag.QueryPredictive:
		add("Model predictions are based on historical data patterns")
	}

	return strings.Join(limitations, "; ")
}

func nextStepsFor(intent rag.QueryIntent) string {
	var steps []string
	switch intent.Type {
	case rag.QueryDescriptive:
		steps = append(steps, "Consider exploratory data analysis and visualization")
		if len(intent.Variables) > 0 {
			steps = append(steps, fmt.Sprintf("Examine relationships between %s and other variables",
				strings.Join(intent.Variables, ", ")))
		}
	case rag.QueryInferential:
		steps = append(steps,
			"Verify statistical assumptions and consider effect sizes",
			"Conduct post-hoc analysis if significant results found")
	case rag.QueryCorrelation:
		steps = append(steps,
			"Investigate potential confounding variables",
			"Consider partial correlation analysis")
	case rag.QueryVisualization:
		steps = append(steps,
			"Create interactive visualizations for deeper exploration",
			"Consider multiple visualization types for comprehensive analysis")
	case rag.QueryPredictive:
		steps = append(steps,
			"Validate model using cross-validation techniques",
			"Examine model assumptions and residuals")
	}
	return strings.Join(steps, "; ")
}

func confidenceScore(sections map[ResponseSection]string, contextChunks []string, intent rag.QueryIntent) float64 {
	score := 0.5

	if strings.TrimSpace(sections[SectionAnswer]) != "" {
		score += 0.2
	}
	if strings.TrimSpace(sections[SectionExplanation]) != "" {
		score += 0.1
	}
	if strings.TrimSpace(sections[SectionCode]) != "" {
		score += 0.1
	}

	score += intent.Confidence * 0.1

	if len(contextChunks) > 2 {
		score += 0.05
	}
	for _, chunk := range contextChunks {
		if strings.Contains(strings.ToLower(chunk), "statistical") {
			score += 0.05
			break
		}
	}

	return math.Min(score, 1.0)
}

func containsString(items []string, target string) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}
	return false
}
