package parser

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"

	"cogniquery/internal/models"
)

// ParseSpreadsheet serializes a tabular file into one page of row sentences
// of the form "Row N: 'col' is 'value', …", one line per data row. The first
// row is treated as the header.
func ParseSpreadsheet(path string) ([]models.PageRecord, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		rows, err = readCSV(path)
	case ".xlsx":
		rows, err = readXLSX(path)
	case ".ods":
		rows, err = readODS(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	if err != nil {
		return nil, &ExtractionError{Kind: "spreadsheet", Err: err}
	}

	text := rowSentences(rows)
	if text == "" {
		return nil, nil
	}
	return []models.PageRecord{{PageNumber: 1, Text: text}}, nil
}

func rowSentences(rows [][]string) string {
	if len(rows) < 2 {
		return ""
	}
	headers := rows[0]
	lines := make([]string, 0, len(rows)-1)
	for i, row := range rows[1:] {
		pairs := make([]string, 0, len(row))
		for j, cell := range row {
			name := fmt.Sprintf("column %d", j+1)
			if j < len(headers) {
				name = headers[j]
			}
			pairs = append(pairs, fmt.Sprintf("'%s' is '%s'", name, cell))
		}
		lines = append(lines, fmt.Sprintf("Row %d: %s", i+1, strings.Join(pairs, ", ")))
	}
	return strings.Join(lines, "\n")
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	return reader.ReadAll()
}

func readXLSX(path string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, err
	}
	if len(f.Sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	sheet := f.Sheets[0]
	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, 0, len(row.Cells))
		for _, cell := range row.Cells {
			cells = append(cells, cell.String())
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

func readODS(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	return f.GetRows(sheets[0])
}
