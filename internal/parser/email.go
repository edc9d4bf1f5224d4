package parser

import (
	"fmt"
	"os"
	"strings"

	"github.com/jhillyerd/enmime"

	"cogniquery/internal/models"
)

// ParseEmail extracts the sender, subject, and plain-text body of an .eml
// message and composes them into a single descriptive page. For multipart
// messages the text/plain part wins; HTML-only bodies fall back to the
// down-converted text. Attachments are ignored.
func ParseEmail(path string) ([]models.PageRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	env, err := enmime.ReadEnvelope(f)
	if err != nil {
		return nil, &ExtractionError{Kind: "email", Err: err}
	}

	sender := env.GetHeader("From")
	subject := env.GetHeader("Subject")
	body := strings.TrimSpace(env.Text)

	text := fmt.Sprintf("This is an email from '%s' with the subject '%s'. The content is: %s", sender, subject, body)
	return []models.PageRecord{{PageNumber: 1, Text: text}}, nil
}
