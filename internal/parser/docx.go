package parser

import (
	"strings"

	"github.com/nguyenthenguyen/docx"

	"cogniquery/internal/models"
)

// ParseDocx joins the non-empty paragraphs of a Word document into one page.
func ParseDocx(path string) ([]models.PageRecord, error) {
	r, err := docx.ReadDocxFile(path)
	if err != nil {
		return nil, &ExtractionError{Kind: "docx", Err: err}
	}
	defer r.Close()

	content := r.Editable().GetContent()
	var paragraphs []string
	for _, p := range strings.Split(content, "\n") {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	if len(paragraphs) == 0 {
		return nil, nil
	}
	return []models.PageRecord{{PageNumber: 1, Text: strings.Join(paragraphs, "\n")}}, nil
}
