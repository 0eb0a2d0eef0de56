package rag

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/datachat/backend/internal/dataset"
	"github.com/datachat/backend/internal/storage/models"
)

// SuggestionSystemMessage frames the suggestion call; the dataset details
// travel in the user message built by BuildSuggestionPrompt.
const SuggestionSystemMessage = "You are a statistical analysis expert. Provide suggestions in JSON format."

const chatRoleSection = `YOUR ROLE AS AN AI DATA SCIENTIST:
1. **Data Understanding**: Automatically analyze the dataset structure and identify the type of study (observational, clinical trial, survey, etc.)
2. **Intelligent Analysis**: Suggest appropriate statistical methods based on data types and research questions
3. **Professional Communication**: Explain analyses in clear, professional language like a senior biostatistician
4. **Comprehensive Testing**: Offer a full range of statistical tests including:
   - Descriptive statistics and data exploration
   - Hypothesis testing (t-tests, chi-square, ANOVA, etc.)
   - Regression analysis (linear, logistic, Cox proportional hazards)
   - Survival analysis (Kaplan-Meier, log-rank tests)
   - Advanced visualizations (forest plots, survival curves, etc.)
5. **Result Interpretation**: Provide clinical/practical interpretation of statistical results
6. **Visualization Recommendations**: Suggest appropriate plots and charts for different types of analyses

IMPORTANT GUIDELINES:
- Always examine the data structure first and identify what type of study this appears to be
- When suggesting analyses, be specific about which variables to use and why
- Always consider assumptions of statistical tests and suggest appropriate checks
- Provide both statistical significance and clinical significance interpretations
- Suggest appropriate visualizations for each type of analysis
- Generate Python code when requested, using the full range of available libraries

AVAILABLE LIBRARIES FOR ANALYSIS:
pandas, numpy, scipy, statsmodels, matplotlib, seaborn, plotly, lifelines, sklearn, and more

Please respond as a professional biostatistician would - with expertise, precision, and clear communication.`

const suggestionTaskSection = `TASK: Provide 5-7 professional statistical analysis recommendations that would be appropriate for this dataset.

For each analysis, provide:
1. **Analysis Name**: Professional statistical test name
2. **Purpose**: What research question it answers
3. **Variables**: Specific columns to use (be precise)
4. **Method**: Statistical approach (parametric/non-parametric)
5. **Visualization**: Appropriate plot type
6. **Clinical Relevance**: Why this analysis matters for medical research

Consider these analysis categories:
- Descriptive Statistics & Data Exploration
- Group Comparisons (t-tests, ANOVA, chi-square)
- Correlation & Regression Analysis
- Survival Analysis (if time-to-event data present)
- Multivariate Analysis
- Advanced Visualizations (forest plots, survival curves)

Format your response as a structured analysis plan that a biostatistician would create.
Focus on clinically meaningful analyses that would be published in medical journals.`

// BuildChatSystemPrompt assembles the biostatistician system prompt from the
// session's stored preview, with the retrieval context block spliced in when
// retrieval produced one.
func BuildChatSystemPrompt(session *models.Session, ragContext string) string {
	preview := session.CSVPreview
	if preview == nil {
		preview = &models.Preview{}
	}

	numericCols, categoricalCols := splitByDtype(preview)
	sv := dataset.IdentifyStudyVariables(preview.Columns)

	head := preview.Head
	if len(head) > 3 {
		head = head[:3]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are an Expert AI Data Scientist and Biostatistician. You have been provided with a medical/research dataset: %s\n\n", session.FileName)

	b.WriteString("DATASET OVERVIEW:\n")
	fmt.Fprintf(&b, "- Shape: [%d, %d] (rows × columns)\n", preview.Shape[0], preview.Shape[1])
	fmt.Fprintf(&b, "- Total Variables: %d\n", len(preview.Columns))
	fmt.Fprintf(&b, "- Numeric Variables: %d - %s\n", len(numericCols), formatList(numericCols))
	fmt.Fprintf(&b, "- Categorical Variables: %d - %s\n\n", len(categoricalCols), formatList(categoricalCols))

	b.WriteString("POTENTIAL STUDY VARIABLES IDENTIFIED:\n")
	fmt.Fprintf(&b, "- Potential Outcomes: %s\n", formatListOrNone(sv.Outcomes))
	fmt.Fprintf(&b, "- Potential Exposures/Treatments: %s\n", formatListOrNone(sv.Exposures))
	fmt.Fprintf(&b, "- Potential Time Variables: %s\n\n", formatListOrNone(sv.TimeVars))

	b.WriteString("DATA QUALITY ASSESSMENT:\n")
	fmt.Fprintf(&b, "- Missing Values: %s\n", jsonCompact(preview.NullCounts))
	fmt.Fprintf(&b, "- Sample Data Preview: %s\n\n", jsonCompact(head))

	fmt.Fprintf(&b, "STATISTICAL SUMMARY:\n%s\n\n", jsonCompact(preview.Describe))

	if ragContext != "" {
		fmt.Fprintf(&b, "%s\n\n", strings.TrimRight(ragContext, "\n"))
	}

	b.WriteString(chatRoleSection)
	return b.String()
}

// BuildSuggestionPrompt assembles the analysis recommendation request sent
// as the user message of the suggestion call.
func BuildSuggestionPrompt(session *models.Session) string {
	preview := session.CSVPreview
	if preview == nil {
		preview = &models.Preview{}
	}

	numericCols, categoricalCols := splitByDtype(preview)

	head := preview.Head
	if len(head) > 5 {
		head = head[:5]
	}

	var b strings.Builder
	b.WriteString("You are an Expert Biostatistician analyzing a medical research dataset.\n\n")
	fmt.Fprintf(&b, "DATASET: %s\n", session.FileName)
	fmt.Fprintf(&b, "STRUCTURE: %d subjects, %d variables\n\n", preview.Shape[0], preview.Shape[1])

	b.WriteString("VARIABLES IDENTIFIED:\n")
	fmt.Fprintf(&b, "Numeric Variables (%d): %s\n", len(numericCols), formatList(numericCols))
	fmt.Fprintf(&b, "Categorical Variables (%d): %s\n\n", len(categoricalCols), formatList(categoricalCols))

	fmt.Fprintf(&b, "SAMPLE DATA:\n%s\n\n", jsonCompact(head))

	b.WriteString(suggestionTaskSection)
	return b.String()
}

// splitByDtype partitions preview columns the way the stored dtype text
// reads: int or float dtypes are numeric, object dtypes categorical.
func splitByDtype(preview *models.Preview) ([]string, []string) {
	var numeric, categorical []string
	for _, col := range preview.Columns {
		dtype := preview.Dtypes[col]
		switch {
		case strings.Contains(dtype, "int") || strings.Contains(dtype, "float"):
			numeric = append(numeric, col)
		case strings.Contains(dtype, "object"):
			categorical = append(categorical, col)
		}
	}
	return numeric, categorical
}

func formatList(items []string) string {
	return "[" + strings.Join(items, ", ") + "]"
}

func formatListOrNone(items []string) string {
	if len(items) == 0 {
		return "None automatically identified"
	}
	return formatList(items)
}

func jsonCompact(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}
