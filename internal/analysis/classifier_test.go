package analysis

import "testing"

func TestClassifySection(t *testing.T) {
	tests := []struct {
		code      string
		wantType  string
		wantTitle string
	}{
		{"df.describe()", "summary", "Clinical Data Overview"},
		{"stats.ttest_ind(a, b)", "statistical_test", "Statistical Analysis"},
		{"kaplan_meier_fit(df)", "survival", "Survival Analysis"},
		{"plt.scatter(x, y)", "visualization", "Data Visualization"},
		{"x = 1", "analysis", "Healthcare Data Analysis"},
	}
	for _, tt := range tests {
		gotType, gotTitle := ClassifySection(tt.code)
		if gotType != tt.wantType || gotTitle != tt.wantTitle {
			t.Errorf("ClassifySection(%q) = (%q, %q), want (%q, %q)",
				tt.code, gotType, gotTitle, tt.wantType, tt.wantTitle)
		}
	}
}

func TestDetermineChartType(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{"plt.hist(df['age'])", "histogram"},
		{"kaplan_meier_plot(df)", "survival_plot"},
		{"plot_roc_curve(model)", "roc_curve"},
		{"df['sex'].value_counts()", "pie"},
		{"unrelated()", "bar"},
	}
	for _, tt := range tests {
		if got := DetermineChartType(tt.code); got != tt.want {
			t.Errorf("DetermineChartType(%q) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestSectionComplexity(t *testing.T) {
	low := "x = 1"
	if got := sectionComplexity(low); got != "low" {
		t.Errorf("complexity(%q) = %q, want low", low, got)
	}

	medium := "for i in range(10):\n    if flag:\n        model.fit(X)"
	if got := sectionComplexity(medium); got != "medium" {
		t.Errorf("complexity(medium sample) = %q, want medium", got)
	}

	var lines []string
	for i := 0; i < 8; i++ {
		lines = append(lines, "for item in data:", "    model.predict(item)")
	}
	high := ""
	for _, l := range lines {
		high += l + "\n"
	}
	if got := sectionComplexity(high); got != "high" {
		t.Errorf("complexity(loop-heavy sample) = %q, want high", got)
	}
}

func TestDataModifications(t *testing.T) {
	code := "df = df.fillna(0)\ngrouped = df.groupby('arm').mean()"
	mods := dataModifications(code)

	if len(mods) != 2 {
		t.Fatalf("modifications = %v, want 2 entries", mods)
	}
	if mods[0] != "missing_data_handling" || mods[1] != "data_reshaping" {
		t.Errorf("modifications = %v, want [missing_data_handling data_reshaping]", mods)
	}

	if mods := dataModifications("print('hi')"); len(mods) != 0 {
		t.Errorf("modifications = %v, want none", mods)
	}
}

func TestVariablesUsed(t *testing.T) {
	code := "print(df['age'].mean())\nprint(df.bmi.std())\ndf.head()"
	vars := variablesUsed(code)

	if len(vars) != 2 {
		t.Fatalf("variables = %v, want [age bmi]", vars)
	}
	if vars[0] != "age" || vars[1] != "bmi" {
		t.Errorf("variables = %v, want [age bmi]", vars)
	}
}

func TestTableContext(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"patient outcomes by arm", "clinical_data"},
		{"ttest result pvalue 0.03", "statistical_results"},
		{"kaplan meier estimate", "survival_analysis"},
		{"roc auc 0.91", "diagnostic_metrics"},
		{"1 2 3", "general_data"},
	}
	for _, tt := range tests {
		if got := tableContext(tt.text); got != tt.want {
			t.Errorf("tableContext(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestSectionContext(t *testing.T) {
	if got := sectionContext("df.describe()", "120 patients enrolled"); got != "clinical_research" {
		t.Errorf("sectionContext = %q, want clinical_research", got)
	}
	if got := sectionContext("kaplan meier estimate", ""); got != "survival_analysis" {
		t.Errorf("sectionContext = %q, want survival_analysis", got)
	}
	if got := sectionContext("x = 1", "done"); got != "general_healthcare" {
		t.Errorf("sectionContext = %q, want general_healthcare", got)
	}
}

func TestFrameTableTitle(t *testing.T) {
	tests := []struct {
		name    string
		columns []string
		want    string
	}{
		{"df", []string{"patient_id", "age"}, "Clinical Data: df"},
		{"results", []string{"test_statistic", "pvalue"}, "Statistical Results: results"},
		{"km", []string{"time_months", "hazard"}, "Survival Analysis: km"},
		{"misc", []string{"a", "b"}, "Healthcare Data: misc"},
	}
	for _, tt := range tests {
		if got := frameTableTitle(tt.name, tt.columns); got != tt.want {
			t.Errorf("frameTableTitle(%q, %v) = %q, want %q", tt.name, tt.columns, got, tt.want)
		}
	}
}
