package mailstore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func crlf(s string) string {
	return strings.ReplaceAll(s, "\n", "\r\n")
}

func TestExtractTextSinglePart(t *testing.T) {
	raw := crlf(`From: a@example.com
Subject: Invoice
Content-Type: text/plain; charset=utf-8

Your invoice is attached.
`)
	text, err := ExtractText(strings.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "Your invoice is attached.", text)
}

func TestExtractTextPrefersPlainOverHTML(t *testing.T) {
	raw := crlf(`Subject: Alt
MIME-Version: 1.0
Content-Type: multipart/alternative; boundary="b1"

--b1
Content-Type: text/plain; charset=utf-8

plain version
--b1
Content-Type: text/html; charset=utf-8

<p>html version</p>
--b1--
`)
	text, err := ExtractText(strings.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "plain version", text)
}

func TestExtractTextFallsBackToHTML(t *testing.T) {
	raw := crlf(`Subject: Html only
Content-Type: text/html; charset=utf-8

<html><body><p>Hello <b>world</b></p></body></html>
`)
	text, err := ExtractText(strings.NewReader(raw))
	require.NoError(t, err)
	assert.Contains(t, text, "Hello world")
	assert.NotContains(t, text, "<p>")
}

func TestExtractTextNestedAndAttachedMessage(t *testing.T) {
	raw := crlf(`Subject: Nested
Content-Type: multipart/mixed; boundary="outer"

--outer
Content-Type: multipart/alternative; boundary="inner"

--inner
Content-Type: text/plain

first part
--inner--
--outer
Content-Type: application/pdf
Content-Disposition: attachment; filename="x.pdf"

%PDF-binary
--outer
Content-Type: message/rfc822

Subject: Forwarded
Content-Type: text/plain

forwarded part
--outer--
`)
	text, err := ExtractText(strings.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "first part\nforwarded part", strings.ReplaceAll(text, "\r", ""))
}

func TestExtractTextEmptyBody(t *testing.T) {
	text, err := ExtractText(strings.NewReader(crlf("Subject: Empty\n\n")))
	require.NoError(t, err)
	assert.Empty(t, text)
}
