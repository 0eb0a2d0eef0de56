package dataset

import (
	"math"
	"strconv"
	"strings"

	"github.com/datachat/backend/internal/storage/models"
)

const headRows = 5

// Preview builds the dataset summary stored on the session and sent to the
// frontend after upload.
func (f *Frame) Preview() *models.Preview {
	rows, cols := f.Shape()

	return &models.Preview{
		Columns:    f.Columns(),
		Shape:      [2]int{rows, cols},
		Head:       f.Head(headRows),
		Dtypes:     f.Dtypes(),
		NullCounts: f.NullCounts(),
		Describe:   f.Describe(),
	}
}

type CorrelationPair struct {
	A string
	B string
	R float64
}

// Strong reports whether the pair correlates strongly enough to surface in
// retrieval chunks and the variable graph.
func (p CorrelationPair) Strong() bool {
	return math.Abs(p.R) > 0.5
}

func (p CorrelationPair) StrengthLabel() string {
	abs := math.Abs(p.R)
	switch {
	case abs >= 0.7:
		return "strong"
	case abs >= 0.5:
		return "moderate"
	default:
		return "weak"
	}
}

// Correlations computes Pearson r for every numeric column pair over rows
// where both cells are present. Pairs with undefined r (constant columns)
// are skipped.
func (f *Frame) Correlations() []CorrelationPair {
	numeric := f.NumericColumns()
	if len(numeric) < 2 {
		return nil
	}

	var pairs []CorrelationPair
	for i := 0; i < len(numeric); i++ {
		for j := i + 1; j < len(numeric); j++ {
			r, ok := f.pearson(numeric[i], numeric[j])
			if !ok {
				continue
			}
			pairs = append(pairs, CorrelationPair{A: numeric[i], B: numeric[j], R: r})
		}
	}
	return pairs
}

func (f *Frame) pearson(colA, colB string) (float64, bool) {
	idxA := f.columnIndex(colA)
	idxB := f.columnIndex(colB)
	if idxA < 0 || idxB < 0 {
		return 0, false
	}

	var xs, ys []float64
	for _, row := range f.rows {
		if isMissing(row[idxA]) || isMissing(row[idxB]) {
			continue
		}
		x, errX := strconv.ParseFloat(row[idxA], 64)
		y, errY := strconv.ParseFloat(row[idxB], 64)
		if errX != nil || errY != nil {
			continue
		}
		xs = append(xs, x)
		ys = append(ys, y)
	}

	if len(xs) < 2 {
		return 0, false
	}

	mx := mean(xs)
	my := mean(ys)

	var cov, varX, varY float64
	for i := range xs {
		dx := xs[i] - mx
		dy := ys[i] - my
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}

	if varX == 0 || varY == 0 {
		return 0, false
	}
	return cov / math.Sqrt(varX*varY), true
}

var (
	outcomeKeywords  = []string{"outcome", "death", "survival", "event", "response", "improvement", "cure"}
	exposureKeywords = []string{"treatment", "group", "arm", "intervention", "therapy", "drug", "placebo", "vaccine"}
	timeKeywords     = []string{"time", "day", "week", "month", "year", "duration", "follow"}
)

type StudyVariables struct {
	Outcomes  []string
	Exposures []string
	TimeVars  []string
}

// IdentifyStudyVariables flags columns whose names suggest study roles.
// Each column takes at most one role: outcome wins over exposure wins over
// time.
func IdentifyStudyVariables(columns []string) StudyVariables {
	var sv StudyVariables
	for _, col := range columns {
		lower := strings.ToLower(col)
		switch {
		case containsAny(lower, outcomeKeywords):
			sv.Outcomes = append(sv.Outcomes, col)
		case containsAny(lower, exposureKeywords):
			sv.Exposures = append(sv.Exposures, col)
		case containsAny(lower, timeKeywords):
			sv.TimeVars = append(sv.TimeVars, col)
		}
	}
	return sv
}

// Role returns the study role of a single column, preferring outcome over
// exposure over time when several keyword lists match.
func (sv StudyVariables) Role(column string) string {
	for _, c := range sv.Outcomes {
		if c == column {
			return "outcome"
		}
	}
	for _, c := range sv.Exposures {
		if c == column {
			return "exposure"
		}
	}
	for _, c := range sv.TimeVars {
		if c == column {
			return "time"
		}
	}
	return "covariate"
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
