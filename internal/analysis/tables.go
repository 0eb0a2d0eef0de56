package analysis

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/datachat/backend/internal/sandbox"
	"github.com/datachat/backend/internal/storage/models"
)

var describeStatWords = []string{"mean", "std", "count", "min", "max", "25%", "50%", "75%"}

var statResultKeywords = []string{"t-test", "chi-square", "anova", "p-value", "confidence interval"}

// collectTables gathers every table a section produced: blocks detected in
// stdout, DataFrames the code left behind, and one-line test results.
func collectTables(output string, frames []sandbox.FrameCapture) []models.Table {
	tables := outputTables(output)
	tables = append(tables, frameTables(frames)...)
	tables = append(tables, statisticalResultLines(output)...)
	return tables
}

// looksLikeTableLine flags pipe-delimited rows, index-prefixed DataFrame rows,
// and describe()-style stat lines.
func looksLikeTableLine(line string) bool {
	if strings.Contains(line, "|") && len(strings.Split(line, "|")) > 2 {
		return true
	}
	stripped := strings.TrimSpace(line)
	if stripped != "" {
		r, _ := utf8.DecodeRuneInString(stripped)
		if unicode.IsDigit(r) {
			return true
		}
	}
	return strings.Contains(line, "  ") && containsAny(strings.ToLower(line), describeStatWords)
}

// outputTables scans stdout for contiguous table-looking blocks. The title
// comes from the nearest unindented line within three lines above the block;
// single-line blocks are discarded as noise.
func outputTables(output string) []models.Table {
	var tables []models.Table
	lines := strings.Split(output, "\n")

	var current []string
	inTable := false
	title := "Data Table"

	emit := func() {
		if len(current) > 1 {
			text := strings.Join(current, "\n")
			tables = append(tables, models.Table{
				Type:              "dataframe",
				Title:             title,
				Content:           text,
				Rows:              len(current) - 1,
				Clickable:         true,
				HealthcareContext: tableContext(text),
			})
		}
		current = nil
		inTable = false
		title = "Data Table"
	}

	for i, line := range lines {
		if looksLikeTableLine(line) {
			if !inTable {
				inTable = true
				current = nil
				for j := max(0, i-3); j < i; j++ {
					if strings.TrimSpace(lines[j]) != "" && !strings.HasPrefix(lines[j], " ") {
						title = headingTitle(lines[j])
						break
					}
				}
			}
			current = append(current, line)
			continue
		}
		if inTable && len(current) > 0 {
			emit()
		}
	}
	if inTable && len(current) > 0 {
		emit()
	}

	return tables
}

func headingTitle(line string) string {
	stripped := strings.TrimSpace(line)
	if runes := []rune(stripped); len(runes) > 50 {
		return string(runes[:50])
	}
	return stripped
}

// frameTables converts captured DataFrames into tables, parsing the rendered
// HTML back into ordered columns and cells.
func frameTables(frames []sandbox.FrameCapture) []models.Table {
	var tables []models.Table
	for _, frame := range frames {
		table := models.Table{
			Type:              "dataframe",
			Title:             frameTableTitle(frame.Name, frame.Columns),
			Content:           frame.Text,
			Columns:           frame.Columns,
			Rows:              frame.Shape[0],
			Clickable:         true,
			HealthcareContext: tableContext(frame.Text),
		}

		if columns, cells, err := parseFrameHTML(frame.HTML); err == nil && len(columns) > 0 {
			table.Columns = columns
			table.Cells = cells
		}

		if frame.Summary != nil {
			table.Summary = &models.TableSummary{
				TotalRows:          frame.Summary.TotalRows,
				TotalColumns:       frame.Summary.TotalColumns,
				NumericColumns:     frame.Summary.NumericColumns,
				CategoricalColumns: frame.Summary.CategoricalColumns,
				MissingValues:      frame.Summary.MissingValues,
				CompletionRate:     frame.Summary.CompletionRate,
			}
		}

		tables = append(tables, table)
	}
	return tables
}

// parseFrameHTML reads a pandas to_html table back into columns and cell
// rows. The blank index header is dropped; each body row keeps its index as
// the first cell.
func parseFrameHTML(html string) ([]string, [][]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, nil, err
	}

	var columns []string
	doc.Find("table thead tr").Last().Find("th").Each(func(_ int, cell *goquery.Selection) {
		columns = append(columns, strings.TrimSpace(cell.Text()))
	})
	if len(columns) > 0 && columns[0] == "" {
		columns = columns[1:]
	}

	var cells [][]string
	doc.Find("table tbody tr").Each(func(_ int, row *goquery.Selection) {
		var values []string
		row.Find("td").Each(func(_ int, cell *goquery.Selection) {
			values = append(values, strings.TrimSpace(cell.Text()))
		})
		if len(values) > 0 {
			cells = append(cells, values)
		}
	})

	return columns, cells, nil
}

// statisticalResultLines pulls one-line test results out of stdout so the
// frontend can highlight them separately from tables.
func statisticalResultLines(output string) []models.Table {
	var results []models.Table
	for _, line := range strings.Split(output, "\n") {
		if containsAny(strings.ToLower(line), statResultKeywords) {
			results = append(results, models.Table{
				Type:              "statistical_result",
				Title:             "Statistical Test Result",
				Content:           strings.TrimSpace(line),
				Clickable:         false,
				HealthcareContext: "statistical_results",
			})
		}
	}
	return results
}
