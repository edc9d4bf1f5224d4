package parser

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"cogniquery/internal/config"
	"cogniquery/internal/models"
)

// ParseWebsite fetches a URL with a browser-like User-Agent and reduces the
// page to its visible text. Script and style content never reaches the
// output. A page whose markup yields no text (fully script-rendered sites)
// returns no records and no error.
func ParseWebsite(rawURL string, cfg config.FetchConfig) ([]models.PageRecord, error) {
	client := &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second}

	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &ExtractionError{Kind: "website", Err: err}
	}
	req.Header.Set("User-Agent", cfg.UserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, &ExtractionError{Kind: "website", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ExtractionError{
			Kind: "website",
			Err:  fmt.Errorf("unexpected status %s, the site may be blocking requests", resp.Status),
		}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, &ExtractionError{Kind: "website", Err: err}
	}
	doc.Find("script, style, noscript").Remove()

	text := collapseText(doc.Text())
	if text == "" {
		log.Warn().Str("url", rawURL).Msg("could not extract meaningful text from the URL")
		return nil, nil
	}
	return []models.PageRecord{{PageNumber: 1, Text: text}}, nil
}

// collapseText trims every line, breaks up run-together phrases, and drops
// the blank lines that raw DOM text extraction leaves behind.
func collapseText(raw string) string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		for _, phrase := range strings.Split(strings.TrimSpace(line), "  ") {
			if p := strings.TrimSpace(phrase); p != "" {
				out = append(out, p)
			}
		}
	}
	return strings.Join(out, "\n")
}
