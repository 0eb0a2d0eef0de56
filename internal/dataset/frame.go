// Package dataset parses uploaded CSV files into typed frames and computes
// the dataset previews and summary statistics the rest of the service works
// with.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
)

const (
	DtypeInt    = "int64"
	DtypeFloat  = "float64"
	DtypeObject = "object"
)

// Frame is a parsed CSV: a header and raw string cells with per-column
// inferred dtypes. Missing cells stay as empty strings internally.
type Frame struct {
	columns []string
	rows    [][]string
	dtypes  []string
}

var missingTokens = map[string]bool{
	"":     true,
	"NA":   true,
	"N/A":  true,
	"null": true,
	"NaN":  true,
	"nan":  true,
}

func isMissing(cell string) bool {
	return missingTokens[cell]
}

// Parse reads an entire CSV. The first record is the header; every data row
// must have the same field count (the reader rejects ragged rows).
func Parse(r io.Reader) (*Frame, error) {
	reader := csv.NewReader(r)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("csv file is empty")
	}

	f := &Frame{
		columns: records[0],
		rows:    records[1:],
	}
	f.dtypes = make([]string, len(f.columns))
	for i := range f.columns {
		f.dtypes[i] = f.inferDtype(i)
	}

	return f, nil
}

// inferDtype mirrors pandas' read_csv typing: all-int columns are int64
// unless they contain missing values (then float64), all-float columns are
// float64, anything else is object.
func (f *Frame) inferDtype(col int) string {
	allInt := true
	allFloat := true
	hasMissing := false
	hasValue := false

	for _, row := range f.rows {
		cell := row[col]
		if isMissing(cell) {
			hasMissing = true
			continue
		}
		hasValue = true

		if _, err := strconv.ParseInt(cell, 10, 64); err != nil {
			allInt = false
		}
		if _, err := strconv.ParseFloat(cell, 64); err != nil {
			allFloat = false
		}
	}

	if !hasValue {
		return DtypeObject
	}

	switch {
	case allInt && !hasMissing:
		return DtypeInt
	case allFloat:
		return DtypeFloat
	default:
		return DtypeObject
	}
}

func (f *Frame) Columns() []string {
	return f.columns
}

func (f *Frame) Shape() (int, int) {
	return len(f.rows), len(f.columns)
}

func (f *Frame) Dtypes() map[string]string {
	dtypes := make(map[string]string, len(f.columns))
	for i, col := range f.columns {
		dtypes[col] = f.dtypes[i]
	}
	return dtypes
}

func (f *Frame) NullCounts() map[string]int {
	counts := make(map[string]int, len(f.columns))
	for i, col := range f.columns {
		n := 0
		for _, row := range f.rows {
			if isMissing(row[i]) {
				n++
			}
		}
		counts[col] = n
	}
	return counts
}

func (f *Frame) NumericColumns() []string {
	var cols []string
	for i, col := range f.columns {
		if f.dtypes[i] == DtypeInt || f.dtypes[i] == DtypeFloat {
			cols = append(cols, col)
		}
	}
	return cols
}

func (f *Frame) CategoricalColumns() []string {
	var cols []string
	for i, col := range f.columns {
		if f.dtypes[i] == DtypeObject {
			cols = append(cols, col)
		}
	}
	return cols
}

// Head returns the first n rows as typed records. Numeric cells come back as
// int64/float64, missing cells as nil.
func (f *Frame) Head(n int) []map[string]interface{} {
	if n > len(f.rows) {
		n = len(f.rows)
	}

	records := make([]map[string]interface{}, 0, n)
	for _, row := range f.rows[:n] {
		record := make(map[string]interface{}, len(f.columns))
		for i, col := range f.columns {
			record[col] = f.typedCell(row[i], f.dtypes[i])
		}
		records = append(records, record)
	}
	return records
}

func (f *Frame) typedCell(cell, dtype string) interface{} {
	if isMissing(cell) {
		return nil
	}

	switch dtype {
	case DtypeInt:
		v, err := strconv.ParseInt(cell, 10, 64)
		if err == nil {
			return v
		}
	case DtypeFloat:
		v, err := strconv.ParseFloat(cell, 64)
		if err == nil {
			return v
		}
	}
	return cell
}

// ColumnValues returns the non-missing numeric values of a column, or nil
// for non-numeric columns.
func (f *Frame) ColumnValues(name string) []float64 {
	idx := f.columnIndex(name)
	if idx < 0 {
		return nil
	}
	if f.dtypes[idx] != DtypeInt && f.dtypes[idx] != DtypeFloat {
		return nil
	}

	var values []float64
	for _, row := range f.rows {
		if isMissing(row[idx]) {
			continue
		}
		v, err := strconv.ParseFloat(row[idx], 64)
		if err == nil {
			values = append(values, v)
		}
	}
	return values
}

// ValueCounts returns distinct values and their counts for a column, sorted
// by descending count.
func (f *Frame) ValueCounts(name string) []ValueCount {
	idx := f.columnIndex(name)
	if idx < 0 {
		return nil
	}

	counts := make(map[string]int)
	for _, row := range f.rows {
		if isMissing(row[idx]) {
			continue
		}
		counts[row[idx]]++
	}

	result := make([]ValueCount, 0, len(counts))
	for v, n := range counts {
		result = append(result, ValueCount{Value: v, Count: n})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Value < result[j].Value
	})
	return result
}

type ValueCount struct {
	Value string
	Count int
}

func (f *Frame) columnIndex(name string) int {
	for i, col := range f.columns {
		if col == name {
			return i
		}
	}
	return -1
}

// Slice returns a view over rows [start, end). Dtypes carry over from the
// parent frame.
func (f *Frame) Slice(start, end int) *Frame {
	if start < 0 {
		start = 0
	}
	if end > len(f.rows) {
		end = len(f.rows)
	}
	if start > end {
		start = end
	}

	return &Frame{
		columns: f.columns,
		rows:    f.rows[start:end],
		dtypes:  f.dtypes,
	}
}

// Describe computes count/mean/std/min/25%/50%/75%/max for every numeric
// column. The map is empty when the frame has no numeric columns.
func (f *Frame) Describe() map[string]map[string]float64 {
	describe := make(map[string]map[string]float64)

	for _, col := range f.NumericColumns() {
		values := f.ColumnValues(col)
		if len(values) == 0 {
			continue
		}

		sorted := make([]float64, len(values))
		copy(sorted, values)
		sort.Float64s(sorted)

		describe[col] = map[string]float64{
			"count": float64(len(values)),
			"mean":  mean(values),
			"std":   sampleStd(values),
			"min":   sorted[0],
			"25%":   quantile(sorted, 0.25),
			"50%":   quantile(sorted, 0.50),
			"75%":   quantile(sorted, 0.75),
			"max":   sorted[len(sorted)-1],
		}
	}

	return describe
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sampleStd is the n-1 denominator standard deviation pandas reports.
func sampleStd(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}

	m := mean(values)
	sum := 0.0
	for _, v := range values {
		sum += (v - m) * (v - m)
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

// quantile interpolates linearly between the two nearest ranks over a sorted
// slice.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}

	pos := q * float64(len(sorted)-1)
	lower := int(math.Floor(pos))
	frac := pos - float64(lower)

	if lower+1 >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	return sorted[lower] + frac*(sorted[lower+1]-sorted[lower])
}
