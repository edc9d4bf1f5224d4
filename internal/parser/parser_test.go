package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFile_UnsupportedExtension(t *testing.T) {
	_, err := ParseFile("notes.txt", t.TempDir())
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestParseFile_DispatchesByExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b\n1,2\n"), 0o644))

	pages, err := ParseFile(path, t.TempDir())
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Contains(t, pages[0].Text, "Row 1")
}

func TestParsePDF_MissingFile(t *testing.T) {
	_, err := ParsePDF(filepath.Join(t.TempDir(), "nope.pdf"), t.TempDir())
	assert.True(t, os.IsNotExist(err))
}

func TestIsSupportedExtension(t *testing.T) {
	assert.True(t, IsSupportedExtension("report.PDF"))
	assert.True(t, IsSupportedExtension("table.csv"))
	assert.True(t, IsSupportedExtension("mail.eml"))
	assert.True(t, IsSupportedExtension("doc.docx"))
	assert.False(t, IsSupportedExtension("notes.txt"))
	assert.False(t, IsSupportedExtension("archive.zip"))
}
