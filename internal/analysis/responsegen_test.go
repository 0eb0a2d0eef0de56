package analysis

import (
	"math"
	"strings"
	"testing"

	"github.com/datachat/backend/internal/rag"
)

const structuredLLMResponse = "1. **Answer:** The mean age is 38.\n\n" +
	"2. **Explanation:** Computed over all rows of the dataset.\n\n" +
	"3. **Code:** df['age'].mean()\n\n" +
	"4. **Visualizations:** A histogram would help."

func TestParseStructuredResponse(t *testing.T) {
	var g ResponseGenerator
	intent := rag.QueryIntent{Type: rag.QueryDescriptive}

	sections := g.parseResponse(structuredLLMResponse, intent)

	if got := sections[SectionAnswer]; got != "The mean age is 38." {
		t.Errorf("answer = %q", got)
	}
	if got := sections[SectionExplanation]; got != "Computed over all rows of the dataset." {
		t.Errorf("explanation = %q", got)
	}
	if got := sections[SectionCode]; got != "df['age'].mean()" {
		t.Errorf("code = %q", got)
	}
	if got := sections[SectionVisualizations]; got != "A histogram would help." {
		t.Errorf("visualizations = %q", got)
	}
}

func TestParseFallbackResponse(t *testing.T) {
	var g ResponseGenerator
	response := "Here is what I found in the data.\n\n" +
		"```python\ndf.describe()\n```\n\n" +
		"The dataset shows a clear pattern."

	sections := g.parseResponse(response, rag.QueryIntent{Type: rag.QueryDescriptive})

	if got := sections[SectionCode]; got != "df.describe()" {
		t.Errorf("code = %q, want the block body", got)
	}
	if got := sections[SectionAnswer]; got != "Here is what I found in the data." {
		t.Errorf("answer = %q, want the first paragraph", got)
	}
	if got := sections[SectionExplanation]; got != "The dataset shows a clear pattern." {
		t.Errorf("explanation = %q, want the remaining paragraphs", got)
	}
}

func TestFormatForFrontend(t *testing.T) {
	var g ResponseGenerator

	tests := []struct {
		confidence float64
		want       string
	}{
		{0.9, "Hello\n\n---\n*🟢 Confidence: 90.0% | Processing time: 1.50s*"},
		{0.7, "Hello\n\n---\n*🟡 Confidence: 70.0% | Processing time: 1.50s*"},
		{0.5, "Hello\n\n---\n*🔴 Confidence: 50.0% | Processing time: 1.50s*"},
	}
	for _, tt := range tests {
		resp := &StructuredResponse{RawResponse: "Hello", Confidence: tt.confidence, ProcessingTime: 1.5}
		if got := g.FormatForFrontend(resp); got != tt.want {
			t.Errorf("confidence %.1f:\n got %q\nwant %q", tt.confidence, got, tt.want)
		}
	}
}

func TestConfidenceScore(t *testing.T) {
	tests := []struct {
		name     string
		sections map[ResponseSection]string
		chunks   []string
		intent   rag.QueryIntent
		want     float64
	}{
		{
			name:     "bare response",
			sections: map[ResponseSection]string{},
			want:     0.5,
		},
		{
			name:     "answer plus intent confidence",
			sections: map[ResponseSection]string{SectionAnswer: "yes"},
			intent:   rag.QueryIntent{Confidence: 0.5},
			want:     0.75,
		},
		{
			name: "everything capped at one",
			sections: map[ResponseSection]string{
				SectionAnswer:      "yes",
				SectionExplanation: "because",
				SectionCode:        "df.head()",
			},
			chunks: []string{"a", "b", "Statistical summary of dataset"},
			intent: rag.QueryIntent{Confidence: 1.0},
			want:   1.0,
		},
	}
	for _, tt := range tests {
		got := confidenceScore(tt.sections, tt.chunks, tt.intent)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("%s: score = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestDataInsightsFromChunks(t *testing.T) {
	chunks := []string{"age: mean=38.5, std=11.2\nDataset shape: 100 rows, 5 columns"}

	got := dataInsightsFromChunks(chunks)
	want := "Mean values identified: 38.5; Dataset contains 100 observations across 5 variables"
	if got != want {
		t.Errorf("insights = %q, want %q", got, want)
	}

	if got := dataInsightsFromChunks(nil); got != "" {
		t.Errorf("insights without chunks = %q, want empty", got)
	}
}

func TestLimitationsFor(t *testing.T) {
	small := limitationsFor(
		rag.QueryIntent{Type: rag.QueryCorrelation},
		[]string{"Dataset shape: 20 rows, 4 columns"})
	if !strings.Contains(small, "Small sample size") {
		t.Errorf("small dataset limitations = %q", small)
	}
	if !strings.Contains(small, "Correlation does not imply causation") {
		t.Errorf("correlation limitations = %q", small)
	}

	large := limitationsFor(
		rag.QueryIntent{Type: rag.QueryInferential},
		[]string{"Dataset shape: 50000 rows, 4 columns"})
	if !strings.Contains(large, "Large dataset") {
		t.Errorf("large dataset limitations = %q", large)
	}

	if got := limitationsFor(rag.QueryIntent{Type: rag.QueryDescriptive}, nil); got != "" {
		t.Errorf("descriptive limitations = %q, want empty", got)
	}
}

func TestNextStepsFor(t *testing.T) {
	got := nextStepsFor(rag.QueryIntent{Type: rag.QueryDescriptive, Variables: []string{"age"}})
	want := "Consider exploratory data analysis and visualization; " +
		"Examine relationships between age and other variables"
	if got != want {
		t.Errorf("descriptive steps = %q, want %q", got, want)
	}

	if got := nextStepsFor(rag.QueryIntent{Type: rag.QueryInferential}); !strings.Contains(got, "post-hoc") {
		t.Errorf("inferential steps = %q", got)
	}
}

func TestMethodologyForIntent(t *testing.T) {
	tests := []struct {
		intent rag.QueryIntent
		want   string
	}{
		{rag.QueryIntent{Type: rag.QueryInferential, StatisticalTests: []string{"ttest"}},
			"Statistical hypothesis testing using t-test to compare means between groups"},
		{rag.QueryIntent{Type: rag.QueryCorrelation},
			"Correlation analysis to examine linear relationships between variables"},
		{rag.QueryIntent{Type: rag.QueryDescriptive}, ""},
	}
	for _, tt := range tests {
		if got := methodologyForIntent(tt.intent); got != tt.want {
			t.Errorf("methodology(%s) = %q, want %q", tt.intent.Type, got, tt.want)
		}
	}
}

func TestGenerateCombinesSectionsAndContext(t *testing.T) {
	var g ResponseGenerator
	intent := rag.QueryIntent{Type: rag.QueryDescriptive, Confidence: 0.8}
	chunks := []string{"Statistical summary of dataset:\nage: mean=38.5, std=11.2"}

	resp := g.Generate("What is the mean age?", intent, chunks, structuredLLMResponse, 1.5)

	if resp.Query != "What is the mean age?" {
		t.Errorf("query = %q", resp.Query)
	}
	if resp.RawResponse != structuredLLMResponse {
		t.Error("raw response should be preserved verbatim")
	}
	if resp.Sections[SectionAnswer] == "" {
		t.Error("expected parsed answer section")
	}
	if resp.Sections[SectionDataInsights] == "" {
		t.Error("expected data insights from context chunks")
	}
	if resp.Sections[SectionNextSteps] == "" {
		t.Error("expected next steps for descriptive queries")
	}
	// 0.5 base + 0.2 answer + 0.1 explanation + 0.1 code + 0.08 intent + 0.05 stats chunk, capped
	if math.Abs(resp.Confidence-1.0) > 1e-9 {
		t.Errorf("confidence = %v, want 1.0", resp.Confidence)
	}
}
