package dataset

import (
	"math"
	"strings"
	"testing"
)

func TestCorrelations(t *testing.T) {
	csv := "x,y,constant,label\n1,2,5,a\n2,4,5,b\n3,6,5,c\n4,8,5,d\n"
	f, err := Parse(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	pairs := f.Correlations()

	var xy *CorrelationPair
	for i := range pairs {
		if pairs[i].A == "x" && pairs[i].B == "y" {
			xy = &pairs[i]
		}
		if pairs[i].A == "constant" || pairs[i].B == "constant" {
			t.Errorf("constant column should be skipped, got pair %+v", pairs[i])
		}
	}

	if xy == nil {
		t.Fatal("expected x/y correlation pair")
	}
	if math.Abs(xy.R-1.0) > 1e-9 {
		t.Errorf("r(x, y) = %v, want 1.0", xy.R)
	}
}

func TestCorrelationsTooFewColumns(t *testing.T) {
	csv := "x,label\n1,a\n2,b\n"
	f, err := Parse(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if pairs := f.Correlations(); pairs != nil {
		t.Fatalf("expected nil with a single numeric column, got %v", pairs)
	}
}

func TestStrengthLabel(t *testing.T) {
	tests := []struct {
		r      float64
		strong bool
		label  string
	}{
		{0.9, true, "strong"},
		{-0.75, true, "strong"},
		{0.6, true, "moderate"},
		{-0.55, true, "moderate"},
		{0.5, false, "moderate"},
		{0.3, false, "weak"},
	}
	for _, tt := range tests {
		p := CorrelationPair{A: "a", B: "b", R: tt.r}
		if p.Strong() != tt.strong {
			t.Errorf("Strong() for r=%v = %v, want %v", tt.r, p.Strong(), tt.strong)
		}
		if p.StrengthLabel() != tt.label {
			t.Errorf("StrengthLabel() for r=%v = %q, want %q", tt.r, p.StrengthLabel(), tt.label)
		}
	}
}

func TestIdentifyStudyVariables(t *testing.T) {
	columns := []string{"patient_id", "treatment_group", "outcome_death", "followup_months", "age"}
	sv := IdentifyStudyVariables(columns)

	if len(sv.Outcomes) != 1 || sv.Outcomes[0] != "outcome_death" {
		t.Errorf("outcomes = %v, want [outcome_death]", sv.Outcomes)
	}
	if len(sv.Exposures) != 1 || sv.Exposures[0] != "treatment_group" {
		t.Errorf("exposures = %v, want [treatment_group]", sv.Exposures)
	}
	if len(sv.TimeVars) != 1 || sv.TimeVars[0] != "followup_months" {
		t.Errorf("time vars = %v, want [followup_months]", sv.TimeVars)
	}
}

func TestStudyVariableRole(t *testing.T) {
	sv := IdentifyStudyVariables([]string{"outcome", "treatment", "follow_up", "bmi"})

	tests := []struct {
		column string
		want   string
	}{
		{"outcome", "outcome"},
		{"treatment", "exposure"},
		{"follow_up", "time"},
		{"bmi", "covariate"},
	}
	for _, tt := range tests {
		if got := sv.Role(tt.column); got != tt.want {
			t.Errorf("Role(%q) = %q, want %q", tt.column, got, tt.want)
		}
	}
}

func TestPreview(t *testing.T) {
	f := parseSample(t)
	p := f.Preview()

	if p.Shape != [2]int{3, 5} {
		t.Errorf("preview shape = %v, want [3 5]", p.Shape)
	}
	if len(p.Head) != 3 {
		t.Errorf("preview head has %d rows, want 3", len(p.Head))
	}
	if p.Dtypes["sex"] != DtypeObject {
		t.Errorf("preview dtype[sex] = %q, want %q", p.Dtypes["sex"], DtypeObject)
	}
	if _, ok := p.Describe["age"]; !ok {
		t.Error("preview describe missing age")
	}
}
