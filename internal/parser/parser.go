package parser

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"cogniquery/internal/models"
)

// ErrUnsupportedFormat is returned when no extractor exists for a file type.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// ExtractionError is a recoverable, format-specific parse failure. Callers at
// the ingest boundary log it and treat the source as having produced nothing,
// without conflating it with "no content found".
type ExtractionError struct {
	Kind string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Kind, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// ParseFile dispatches to the extractor for the file's extension and returns
// the page records for the source. assetDir receives any visual assets pulled
// out of the document; its lifecycle belongs to the caller.
func ParseFile(path, assetDir string) ([]models.PageRecord, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".pdf":
		return ParsePDF(path, assetDir)
	case ".csv", ".xlsx", ".ods":
		return ParseSpreadsheet(path)
	case ".eml":
		return ParseEmail(path)
	case ".docx":
		return ParseDocx(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

// IsSupportedExtension reports whether ParseFile can handle the filename.
func IsSupportedExtension(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf", ".csv", ".xlsx", ".ods", ".eml", ".docx":
		return true
	}
	return false
}
