// Package report exports scan results to CSV, Excel and JSON.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/keithven/seo-checker/internal/seo"
)

// ExportFormat defines the export file format.
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatXLSX ExportFormat = "xlsx"
	FormatJSON ExportFormat = "json"
)

// ParseFormat validates a format string from user input.
func ParseFormat(s string) (ExportFormat, error) {
	switch ExportFormat(strings.ToLower(s)) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	case FormatJSON, "":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported export format: %s", s)
	}
}

// ContentType returns the MIME type for format.
func (f ExportFormat) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/json; charset=utf-8"
	}
}

// Filename returns a timestamped download filename for format.
func (f ExportFormat) Filename() string {
	return fmt.Sprintf("seo-report_%s.%s", time.Now().Format("20060102_150405"), f)
}

var columns = []string{
	"URL",
	"Title",
	"Meta Description",
	"Characters",
	"Status",
	"Issues",
	"Change",
	"Review Status",
	"Assignee",
	"Last Crawled",
}

// Write renders results in the requested format.
func Write(w io.Writer, format ExportFormat, sitemapURL string, results []seo.PageResult) error {
	switch format {
	case FormatCSV:
		return writeCSV(w, results)
	case FormatXLSX:
		return writeXLSX(w, sitemapURL, results)
	case FormatJSON:
		return writeJSON(w, sitemapURL, results)
	default:
		return fmt.Errorf("unsupported export format: %s", format)
	}
}

func rowValues(r *seo.PageResult) []string {
	lastCrawled := ""
	if !r.LastCrawled.IsZero() {
		lastCrawled = r.LastCrawled.Format(time.RFC3339)
	}
	return []string{
		r.URL,
		r.Title,
		r.MetaDescription,
		fmt.Sprintf("%d", r.CharacterCount),
		string(r.Status),
		strings.Join(r.Issues, "; "),
		r.ChangeType,
		string(r.ReviewStatus),
		r.Assignee,
		lastCrawled,
	}
}

func writeCSV(w io.Writer, results []seo.PageResult) error {
	// UTF-8 BOM so Excel opens the file with the right encoding.
	if _, err := w.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return fmt.Errorf("failed to write BOM: %w", err)
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i := range results {
		if err := writer.Write(rowValues(&results[i])); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeXLSX(w io.Writer, sitemapURL string, results []seo.PageResult) error {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Results"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"00C853"}},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	for i, col := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, col)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)

		colName, _ := excelize.ColumnNumberToName(i + 1)
		width := float64(len(col) + 5)
		if width < 15 {
			width = 15
		}
		if width > 50 {
			width = 50
		}
		f.SetColWidth(sheetName, colName, colName, width)
	}

	for rowIdx := range results {
		values := rowValues(&results[rowIdx])
		for i, val := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, rowIdx+2)
			f.SetCellValue(sheetName, cell, val)
		}
	}

	lastCol, _ := excelize.ColumnNumberToName(len(columns))
	filterRange := fmt.Sprintf("A1:%s%d", lastCol, len(results)+1)
	f.AutoFilter(sheetName, filterRange, nil)

	// Freeze the header row.
	f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})

	addMetadataSheet(f, sitemapURL, results)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func addMetadataSheet(f *excelize.File, sitemapURL string, results []seo.PageResult) {
	sheetName := "Metadata"
	f.NewSheet(sheetName)

	summary := seo.Summarize(results)
	metadata := [][]string{
		{"Sitemap", sitemapURL},
		{"Total Pages", fmt.Sprintf("%d", summary.Total)},
		{"Good", fmt.Sprintf("%d", summary.Good)},
		{"Warnings", fmt.Sprintf("%d", summary.Warning)},
		{"Errors", fmt.Sprintf("%d", summary.Error)},
		{"Generated", time.Now().Format(time.RFC3339)},
		{"Tool", "SEO Checker"},
	}

	for i, row := range metadata {
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", i+1), row[0])
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", i+1), row[1])
	}

	f.SetColWidth(sheetName, "A", "A", 20)
	f.SetColWidth(sheetName, "B", "B", 50)
}

// jsonExport is the JSON export structure.
type jsonExport struct {
	Metadata jsonMetadata     `json:"metadata"`
	Summary  seo.Summary      `json:"summary"`
	Results  []seo.PageResult `json:"results"`
}

type jsonMetadata struct {
	Sitemap   string `json:"sitemap"`
	Generated string `json:"generated"`
	Tool      string `json:"tool"`
}

func writeJSON(w io.Writer, sitemapURL string, results []seo.PageResult) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)

	return encoder.Encode(&jsonExport{
		Metadata: jsonMetadata{
			Sitemap:   sitemapURL,
			Generated: time.Now().Format(time.RFC3339),
			Tool:      "SEO Checker",
		},
		Summary: seo.Summarize(results),
		Results: results,
	})
}
