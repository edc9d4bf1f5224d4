package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const plainEmail = `From: Jordan <jordan@example.com>
To: team@example.com
Subject: Quarterly report
Content-Type: text/plain; charset=utf-8

The numbers for Q3 are attached below.
`

const multipartEmail = `From: ops@example.com
To: team@example.com
Subject: Maintenance window
MIME-Version: 1.0
Content-Type: multipart/alternative; boundary="sep"

--sep
Content-Type: text/plain; charset=utf-8

Servers go down at midnight.
--sep
Content-Type: text/html; charset=utf-8

<p>Servers go down at <b>midnight</b>.</p>
--sep--
`

func writeTempEmail(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "message.eml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseEmail_Plain(t *testing.T) {
	pages, err := ParseEmail(writeTempEmail(t, plainEmail))
	require.NoError(t, err)
	require.Len(t, pages, 1)

	assert.Equal(t, 1, pages[0].PageNumber)
	assert.Contains(t, pages[0].Text, "Quarterly report")
	assert.Contains(t, pages[0].Text, "jordan@example.com")
	assert.Contains(t, pages[0].Text, "The numbers for Q3 are attached below.")
}

func TestParseEmail_MultipartPrefersPlainText(t *testing.T) {
	pages, err := ParseEmail(writeTempEmail(t, multipartEmail))
	require.NoError(t, err)
	require.Len(t, pages, 1)

	assert.Contains(t, pages[0].Text, "Maintenance window")
	assert.Contains(t, pages[0].Text, "Servers go down at midnight.")
	assert.NotContains(t, pages[0].Text, "<p>")
}

func TestParseEmail_MissingFile(t *testing.T) {
	_, err := ParseEmail(filepath.Join(t.TempDir(), "nope.eml"))
	assert.True(t, os.IsNotExist(err))
}
