package rag

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/datachat/backend/internal/dataset"
	"github.com/datachat/backend/internal/vector"
)

const defaultChunkSize = 100

// medicalVariables groups columns into the medical column chunk when the
// column name contains any of these tokens.
var medicalVariables = []string{
	"age", "gender", "sex", "height", "weight", "bmi", "blood_pressure",
	"heart_rate", "temperature", "cholesterol", "glucose", "medication",
	"treatment", "diagnosis", "outcome", "survival", "mortality",
}

// Chunker turns a parsed frame into retrievable text chunks. Four strategies
// run per dataset: row groups, column groups, a statistical summary, and a
// correlation matrix chunk when the data has more than one numeric column.
type Chunker struct {
	chunkSize int
}

func NewChunker() *Chunker {
	return &Chunker{chunkSize: defaultChunkSize}
}

func (c *Chunker) Chunk(f *dataset.Frame) []vector.Chunk {
	var chunks []vector.Chunk
	chunks = append(chunks, c.rowChunks(f)...)
	chunks = append(chunks, c.columnChunks(f)...)
	chunks = append(chunks, c.statisticalChunk(f))
	if corr := c.correlationChunk(f); corr != nil {
		chunks = append(chunks, *corr)
	}
	return chunks
}

func (c *Chunker) rowChunks(f *dataset.Frame) []vector.Chunk {
	rows, _ := f.Shape()

	var chunks []vector.Chunk
	for start := 0; start < rows; start += c.chunkSize {
		end := start + c.chunkSize
		if end > rows {
			end = rows
		}
		slice := f.Slice(start, end)

		meta := baseMetadata("row_group", f.Columns(), f.Dtypes())
		meta["start_row"] = strconv.Itoa(start)
		meta["end_row"] = strconv.Itoa(end)
		meta["row_count"] = strconv.Itoa(end - start)
		meta["chunk_index"] = strconv.Itoa(start / c.chunkSize)

		chunks = append(chunks, vector.Chunk{
			ID:       uuid.NewString(),
			Text:     rowChunkContent(slice, start),
			Metadata: meta,
		})
	}
	return chunks
}

func rowChunkContent(slice *dataset.Frame, start int) string {
	rows, _ := slice.Shape()

	var b strings.Builder
	fmt.Fprintf(&b, "Data subset from rows %d to %d:\n\n", start, start+rows-1)

	b.WriteString("Sample statistics:\n")
	describe := slice.Describe()
	for _, col := range slice.NumericColumns() {
		stats, ok := describe[col]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "- %s: mean=%.2f, std=%.2f\n", col, stats["mean"], stats["std"])
	}
	for _, col := range slice.CategoricalColumns() {
		counts := slice.ValueCounts(col)
		if len(counts) > 3 {
			counts = counts[:3]
		}
		pairs := make([]string, len(counts))
		for i, vc := range counts {
			pairs[i] = fmt.Sprintf("%s=%d", vc.Value, vc.Count)
		}
		fmt.Fprintf(&b, "- %s: top values: %s\n", col, strings.Join(pairs, ", "))
	}

	fmt.Fprintf(&b, "\nSample data:\n%s", renderSampleRows(slice, start, 3))
	return b.String()
}

func (c *Chunker) columnChunks(f *dataset.Frame) []vector.Chunk {
	var medicalCols []string
	for _, col := range f.Columns() {
		lower := strings.ToLower(col)
		for _, medVar := range medicalVariables {
			if strings.Contains(lower, medVar) {
				medicalCols = append(medicalCols, col)
				break
			}
		}
	}

	groups := []struct {
		name    string
		columns []string
	}{
		{"numeric", f.NumericColumns()},
		{"categorical", f.CategoricalColumns()},
		{"medical", medicalCols},
	}

	dtypes := f.Dtypes()

	var chunks []vector.Chunk
	for _, g := range groups {
		if len(g.columns) == 0 {
			continue
		}

		groupDtypes := make(map[string]string, len(g.columns))
		for _, col := range g.columns {
			groupDtypes[col] = dtypes[col]
		}

		meta := baseMetadata("column_group", g.columns, groupDtypes)
		meta["group_type"] = g.name
		meta["column_count"] = strconv.Itoa(len(g.columns))
		meta["medical_context"] = strconv.FormatBool(g.name == "medical")

		chunks = append(chunks, vector.Chunk{
			ID:       uuid.NewString(),
			Text:     columnChunkContent(f, g.columns, g.name),
			Metadata: meta,
		})
	}
	return chunks
}

func columnChunkContent(f *dataset.Frame, columns []string, groupName string) string {
	dtypes := f.Dtypes()
	nullCounts := f.NullCounts()
	describe := f.Describe()

	var b strings.Builder
	fmt.Fprintf(&b, "%s variables analysis:\n\n", titleCase(groupName))

	for _, col := range columns {
		fmt.Fprintf(&b, "Variable: %s\n", col)
		fmt.Fprintf(&b, "Type: %s\n", dtypes[col])

		if dtypes[col] == dataset.DtypeObject {
			counts := f.ValueCounts(col)
			top := counts
			if len(top) > 5 {
				top = top[:5]
			}
			names := make([]string, len(top))
			for i, vc := range top {
				names[i] = vc.Value
			}
			fmt.Fprintf(&b, "Categories: %s\n", strings.Join(names, ", "))
			if len(counts) > 0 {
				fmt.Fprintf(&b, "Most frequent: %s (%d occurrences)\n", counts[0].Value, counts[0].Count)
			}
		} else if stats, ok := describe[col]; ok {
			fmt.Fprintf(&b, "Range: %.2f to %.2f\n", stats["min"], stats["max"])
			fmt.Fprintf(&b, "Mean: %.2f, Std: %.2f\n", stats["mean"], stats["std"])
		}

		fmt.Fprintf(&b, "Missing values: %d\n\n", nullCounts[col])
	}

	return b.String()
}

func (c *Chunker) statisticalChunk(f *dataset.Frame) vector.Chunk {
	meta := baseMetadata("statistical_summary", f.Columns(), f.Dtypes())
	meta["summary_type"] = "comprehensive"

	return vector.Chunk{
		ID:       uuid.NewString(),
		Text:     statisticalSummaryContent(f),
		Metadata: meta,
	}
}

func statisticalSummaryContent(f *dataset.Frame) string {
	rows, cols := f.Shape()

	var b strings.Builder
	b.WriteString("Comprehensive Dataset Statistical Summary:\n\n")
	fmt.Fprintf(&b, "Dataset shape: %d rows, %d columns\n", rows, cols)
	fmt.Fprintf(&b, "Data types: %s\n", dtypeCounts(f))

	totalMissing := 0
	for _, n := range f.NullCounts() {
		totalMissing += n
	}
	fmt.Fprintf(&b, "Missing values: %d total\n\n", totalMissing)

	if numeric := f.NumericColumns(); len(numeric) > 0 {
		b.WriteString("Numeric Variables Summary:\n")
		b.WriteString(renderDescribe(f))
		b.WriteString("\n\n")
	}

	if categorical := f.CategoricalColumns(); len(categorical) > 0 {
		b.WriteString("Categorical Variables Summary:\n")
		for _, col := range categorical {
			fmt.Fprintf(&b, "- %s: %d unique values\n", col, len(f.ValueCounts(col)))
		}
		b.WriteString("\n")
	}

	return b.String()
}

func (c *Chunker) correlationChunk(f *dataset.Frame) *vector.Chunk {
	numeric := f.NumericColumns()
	if len(numeric) < 2 {
		return nil
	}

	dtypes := f.Dtypes()
	numericDtypes := make(map[string]string, len(numeric))
	for _, col := range numeric {
		numericDtypes[col] = dtypes[col]
	}

	meta := baseMetadata("correlation_matrix", numeric, numericDtypes)
	meta["analysis_type"] = "correlation"
	meta["variable_count"] = strconv.Itoa(len(numeric))

	return &vector.Chunk{
		ID:       uuid.NewString(),
		Text:     correlationContent(f),
		Metadata: meta,
	}
}

func correlationContent(f *dataset.Frame) string {
	pairs := f.Correlations()

	var b strings.Builder
	b.WriteString("Correlation Analysis:\n\n")

	var strong []dataset.CorrelationPair
	for _, p := range pairs {
		if p.Strong() {
			strong = append(strong, p)
		}
	}

	if len(strong) > 0 {
		b.WriteString("Strong correlations (|r| > 0.5):\n")
		for _, p := range strong {
			fmt.Fprintf(&b, "- %s ↔ %s: %.3f\n", p.A, p.B, p.R)
		}
	} else {
		b.WriteString("No strong correlations found (|r| > 0.5)\n")
	}

	fmt.Fprintf(&b, "\nCorrelation matrix:\n%s", renderCorrelationMatrix(f.NumericColumns(), pairs))
	return b.String()
}

func baseMetadata(chunkType string, variables []string, dtypes map[string]string) map[string]string {
	variablesJSON, _ := json.Marshal(variables)
	dtypesJSON, _ := json.Marshal(dtypes)

	return map[string]string{
		"chunk_type": chunkType,
		"variables":  string(variablesJSON),
		"data_types": string(dtypesJSON),
	}
}

func dtypeCounts(f *dataset.Frame) string {
	counts := make(map[string]int)
	for _, dt := range f.Dtypes() {
		counts[dt]++
	}

	order := []string{dataset.DtypeFloat, dataset.DtypeInt, dataset.DtypeObject}
	var parts []string
	for _, dt := range order {
		if counts[dt] > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", dt, counts[dt]))
		}
	}
	return strings.Join(parts, ", ")
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// renderSampleRows formats the first n rows of a slice as an aligned table
// with absolute row indices, the way the preview text shows sample data.
func renderSampleRows(slice *dataset.Frame, start, n int) string {
	columns := slice.Columns()
	head := slice.Head(n)

	header := append([]string{""}, columns...)
	rows := make([][]string, 0, len(head))
	for i, record := range head {
		row := make([]string, 0, len(columns)+1)
		row = append(row, strconv.Itoa(start+i))
		for _, col := range columns {
			row = append(row, formatCell(record[col]))
		}
		rows = append(rows, row)
	}

	return renderTable(header, rows)
}

func formatCell(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "NaN"
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case string:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}

var describeStats = []string{"count", "mean", "std", "min", "25%", "50%", "75%", "max"}

func renderDescribe(f *dataset.Frame) string {
	numeric := f.NumericColumns()
	describe := f.Describe()

	header := append([]string{""}, numeric...)
	rows := make([][]string, 0, len(describeStats))
	for _, stat := range describeStats {
		row := make([]string, 0, len(numeric)+1)
		row = append(row, stat)
		for _, col := range numeric {
			if stats, ok := describe[col]; ok {
				row = append(row, strconv.FormatFloat(stats[stat], 'f', 2, 64))
			} else {
				row = append(row, "NaN")
			}
		}
		rows = append(rows, row)
	}

	return renderTable(header, rows)
}

func renderCorrelationMatrix(columns []string, pairs []dataset.CorrelationPair) string {
	lookup := make(map[string]map[string]float64, len(columns))
	for _, col := range columns {
		lookup[col] = map[string]float64{col: 1.0}
	}
	for _, p := range pairs {
		lookup[p.A][p.B] = p.R
		lookup[p.B][p.A] = p.R
	}

	header := append([]string{""}, columns...)
	rows := make([][]string, 0, len(columns))
	for _, rowCol := range columns {
		row := make([]string, 0, len(columns)+1)
		row = append(row, rowCol)
		for _, col := range columns {
			if r, ok := lookup[rowCol][col]; ok {
				row = append(row, strconv.FormatFloat(r, 'f', 3, 64))
			} else {
				row = append(row, "NaN")
			}
		}
		rows = append(rows, row)
	}

	return renderTable(header, rows)
}

// renderTable right-aligns cells under their headers, one row per line.
func renderTable(header []string, rows [][]string) string {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var b strings.Builder
	writeRow := func(cells []string) {
		for i, cell := range cells {
			if i > 0 {
				b.WriteString("  ")
			}
			fmt.Fprintf(&b, "%*s", widths[i], cell)
		}
		b.WriteString("\n")
	}

	writeRow(header)
	for _, row := range rows {
		writeRow(row)
	}
	return strings.TrimRight(b.String(), "\n")
}
