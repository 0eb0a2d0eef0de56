package rag

import "testing"

func containsVar(vars []string, want string) bool {
	for _, v := range vars {
		if v == want {
			return true
		}
	}
	return false
}

func TestClassifyDescriptive(t *testing.T) {
	c := NewClassifier()
	intent := c.Classify("Show me the average age by treatment group", []string{"age", "bmi", "treatment_group"})

	if intent.Type != QueryDescriptive {
		t.Fatalf("type = %q, want %q", intent.Type, QueryDescriptive)
	}
	if !containsVar(intent.Variables, "age") {
		t.Errorf("variables = %v, want age included", intent.Variables)
	}
	if !containsVar(intent.Variables, "treatment_group") {
		t.Errorf("variables = %v, want treatment_group via underscore match", intent.Variables)
	}
	if !containsVar(intent.Operations, "mean") {
		t.Errorf("operations = %v, want mean", intent.Operations)
	}
}

func TestClassifyCorrelation(t *testing.T) {
	c := NewClassifier()
	intent := c.Classify("Is there a correlation between age and bmi?", []string{"age", "bmi"})

	if intent.Type != QueryCorrelation {
		t.Fatalf("type = %q, want %q", intent.Type, QueryCorrelation)
	}
	if !containsVar(intent.StatisticalTests, "correlation") {
		t.Errorf("statistical tests = %v, want correlation", intent.StatisticalTests)
	}
	if !containsVar(intent.Variables, "bmi") {
		t.Errorf("variables = %v, want bmi", intent.Variables)
	}
}

func TestClassifyVisualization(t *testing.T) {
	c := NewClassifier()
	intent := c.Classify("Plot a histogram of age", []string{"age"})

	if intent.Type != QueryVisualization {
		t.Fatalf("type = %q, want %q", intent.Type, QueryVisualization)
	}
	if intent.VisualizationType != "histogram" {
		t.Errorf("visualization type = %q, want histogram", intent.VisualizationType)
	}
}

func TestClassifyDefaultsToDescriptive(t *testing.T) {
	c := NewClassifier()
	intent := c.Classify("hello there", nil)

	if intent.Type != QueryDescriptive {
		t.Fatalf("type = %q, want descriptive default", intent.Type)
	}
	if intent.Confidence != 0.5 {
		t.Errorf("confidence = %v, want 0.5 default", intent.Confidence)
	}
}

func TestExtractFilters(t *testing.T) {
	c := NewClassifier()

	intent := c.Classify("average bmi for female patients with age > 50", []string{"bmi", "age"})
	if intent.Filters["age"] != "50" {
		t.Errorf("age filter = %q, want 50", intent.Filters["age"])
	}
	if intent.Filters["gender"] != "female" {
		t.Errorf("gender filter = %q, want female", intent.Filters["gender"])
	}

	intent = c.Classify("show stats for group = treated", nil)
	if intent.Filters["group"] != "treated" {
		t.Errorf("group filter = %q, want treated", intent.Filters["group"])
	}
}

func TestExtractVariablesSpacedColumnMatch(t *testing.T) {
	c := NewClassifier()
	intent := c.Classify("What about blood pressure levels?", []string{"blood_pressure", "heart_rate"})

	if !containsVar(intent.Variables, "blood_pressure") {
		t.Errorf("variables = %v, want blood_pressure via spaced match", intent.Variables)
	}
	if containsVar(intent.Variables, "heart_rate") {
		t.Errorf("variables = %v, heart_rate should not match", intent.Variables)
	}
}
