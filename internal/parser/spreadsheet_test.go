package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx"
)

func writeTempCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseSpreadsheet_CSV(t *testing.T) {
	path := writeTempCSV(t, "name,age\nAlice,30\nBob,25\n")

	pages, err := ParseSpreadsheet(path)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, 1, pages[0].PageNumber)
	assert.Empty(t, pages[0].Visuals)

	lines := strings.Split(pages[0].Text, "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Row 1: 'name' is 'Alice', 'age' is '30'", lines[0])
	assert.Equal(t, "Row 2: 'name' is 'Bob', 'age' is '25'", lines[1])
}

func TestParseSpreadsheet_EveryRowSentenceHasAllColumns(t *testing.T) {
	var b strings.Builder
	b.WriteString("id,city,population\n")
	for i := 1; i <= 10; i++ {
		fmt.Fprintf(&b, "%d,city-%d,%d\n", i, i, i*1000)
	}
	path := writeTempCSV(t, b.String())

	pages, err := ParseSpreadsheet(path)
	require.NoError(t, err)
	require.Len(t, pages, 1)

	lines := strings.Split(pages[0].Text, "\n")
	require.Len(t, lines, 10)
	for i, line := range lines {
		assert.True(t, strings.HasPrefix(line, fmt.Sprintf("Row %d: ", i+1)))
		assert.Contains(t, line, "'id'")
		assert.Contains(t, line, "'city'")
		assert.Contains(t, line, "'population'")
		assert.Contains(t, line, fmt.Sprintf("'city-%d'", i+1))
	}
}

func TestParseSpreadsheet_HeaderOnly(t *testing.T) {
	path := writeTempCSV(t, "name,age\n")

	pages, err := ParseSpreadsheet(path)
	require.NoError(t, err)
	assert.Empty(t, pages)
}

func TestParseSpreadsheet_MissingFile(t *testing.T) {
	_, err := ParseSpreadsheet(filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)

	var extractionErr *ExtractionError
	assert.ErrorAs(t, err, &extractionErr)
	assert.Equal(t, "spreadsheet", extractionErr.Kind)
}

func TestParseSpreadsheet_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "people.xlsx")
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("People")
	require.NoError(t, err)
	for _, cells := range [][]string{{"name", "age"}, {"Alice", "30"}, {"Bob", "25"}} {
		row := sheet.AddRow()
		for _, value := range cells {
			row.AddCell().Value = value
		}
	}
	require.NoError(t, file.Save(path))

	pages, err := ParseSpreadsheet(path)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, 1, pages[0].PageNumber)

	lines := strings.Split(pages[0].Text, "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Row 1: 'name' is 'Alice', 'age' is '30'", lines[0])
	assert.Equal(t, "Row 2: 'name' is 'Bob', 'age' is '25'", lines[1])
}

func TestRowSentences_RowWiderThanHeader(t *testing.T) {
	text := rowSentences([][]string{
		{"name"},
		{"Alice", "extra"},
	})
	assert.Equal(t, "Row 1: 'name' is 'Alice', 'column 2' is 'extra'", text)
}
