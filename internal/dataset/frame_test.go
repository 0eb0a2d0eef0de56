package dataset

import (
	"math"
	"strings"
	"testing"
)

const sampleCSV = `age,bmi,sex,score,visits
34,22.5,M,10,1
51,27.1,F,12,
29,24.0,M,9,3
`

func parseSample(t *testing.T) *Frame {
	t.Helper()
	f, err := Parse(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return f
}

func TestParseShapeAndColumns(t *testing.T) {
	f := parseSample(t)

	rows, cols := f.Shape()
	if rows != 3 || cols != 5 {
		t.Fatalf("shape = (%d, %d), want (3, 5)", rows, cols)
	}

	want := []string{"age", "bmi", "sex", "score", "visits"}
	got := f.Columns()
	if len(got) != len(want) {
		t.Fatalf("columns = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("column %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestParseDtypeInference(t *testing.T) {
	f := parseSample(t)
	dtypes := f.Dtypes()

	tests := []struct {
		col  string
		want string
	}{
		{"age", DtypeInt},
		{"bmi", DtypeFloat},
		{"sex", DtypeObject},
		{"score", DtypeInt},
		// integer column with a missing value reads as float64
		{"visits", DtypeFloat},
	}
	for _, tt := range tests {
		if dtypes[tt.col] != tt.want {
			t.Errorf("dtype[%s] = %q, want %q", tt.col, dtypes[tt.col], tt.want)
		}
	}
}

func TestParseErrors(t *testing.T) {
	if _, err := Parse(strings.NewReader("")); err == nil {
		t.Fatal("expected error for empty input")
	}

	ragged := "a,b\n1,2\n3\n"
	if _, err := Parse(strings.NewReader(ragged)); err == nil {
		t.Fatal("expected error for ragged rows")
	}
}

func TestNullCounts(t *testing.T) {
	f := parseSample(t)
	counts := f.NullCounts()

	if counts["visits"] != 1 {
		t.Errorf("null count for visits = %d, want 1", counts["visits"])
	}
	if counts["age"] != 0 {
		t.Errorf("null count for age = %d, want 0", counts["age"])
	}
}

func TestNumericAndCategoricalColumns(t *testing.T) {
	f := parseSample(t)

	numeric := f.NumericColumns()
	if len(numeric) != 4 {
		t.Fatalf("numeric columns = %v, want 4 entries", numeric)
	}

	categorical := f.CategoricalColumns()
	if len(categorical) != 1 || categorical[0] != "sex" {
		t.Fatalf("categorical columns = %v, want [sex]", categorical)
	}
}

func TestHeadTypesCells(t *testing.T) {
	f := parseSample(t)

	head := f.Head(2)
	if len(head) != 2 {
		t.Fatalf("head returned %d records, want 2", len(head))
	}

	if v, ok := head[0]["age"].(int64); !ok || v != 34 {
		t.Errorf("head[0][age] = %v (%T), want int64 34", head[0]["age"], head[0]["age"])
	}
	if v, ok := head[0]["bmi"].(float64); !ok || v != 22.5 {
		t.Errorf("head[0][bmi] = %v (%T), want float64 22.5", head[0]["bmi"], head[0]["bmi"])
	}
	if head[1]["visits"] != nil {
		t.Errorf("head[1][visits] = %v, want nil for missing cell", head[1]["visits"])
	}

	// asking past the end clamps
	if got := len(f.Head(100)); got != 3 {
		t.Errorf("head(100) returned %d records, want 3", got)
	}
}

func TestColumnValuesSkipsMissing(t *testing.T) {
	f := parseSample(t)

	values := f.ColumnValues("visits")
	if len(values) != 2 {
		t.Fatalf("visits values = %v, want 2 entries", values)
	}

	if f.ColumnValues("sex") != nil {
		t.Error("expected nil for non-numeric column")
	}
	if f.ColumnValues("missing_col") != nil {
		t.Error("expected nil for unknown column")
	}
}

func TestValueCounts(t *testing.T) {
	f := parseSample(t)

	counts := f.ValueCounts("sex")
	if len(counts) != 2 {
		t.Fatalf("value counts = %v, want 2 entries", counts)
	}
	if counts[0].Value != "M" || counts[0].Count != 2 {
		t.Errorf("top value = %+v, want {M 2}", counts[0])
	}
	if counts[1].Value != "F" || counts[1].Count != 1 {
		t.Errorf("second value = %+v, want {F 1}", counts[1])
	}
}

func TestDescribe(t *testing.T) {
	f := parseSample(t)

	describe := f.Describe()
	age, ok := describe["age"]
	if !ok {
		t.Fatal("describe missing age column")
	}

	approx := func(name string, want float64) {
		t.Helper()
		if math.Abs(age[name]-want) > 1e-9 {
			t.Errorf("age %s = %v, want %v", name, age[name], want)
		}
	}

	approx("count", 3)
	approx("mean", 38)
	approx("min", 29)
	approx("max", 51)
	approx("50%", 34)
	approx("25%", 31.5)
	approx("75%", 42.5)

	// sample std over [34, 51, 29]
	if math.Abs(age["std"]-math.Sqrt(133)) > 1e-9 {
		t.Errorf("age std = %v, want %v", age["std"], math.Sqrt(133))
	}

	if _, ok := describe["sex"]; ok {
		t.Error("describe should not include object columns")
	}
}

func TestSliceClampsBounds(t *testing.T) {
	f := parseSample(t)

	s := f.Slice(1, 10)
	if rows, _ := s.Shape(); rows != 2 {
		t.Errorf("slice rows = %d, want 2", rows)
	}

	s = f.Slice(-5, 1)
	if rows, _ := s.Shape(); rows != 1 {
		t.Errorf("slice rows = %d, want 1", rows)
	}

	s = f.Slice(2, 1)
	if rows, _ := s.Shape(); rows != 0 {
		t.Errorf("inverted slice rows = %d, want 0", rows)
	}
}
