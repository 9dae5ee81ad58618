// Package gmail reads trigger messages from and sends mail through the
// Gmail API.
package gmail

import (
	"encoding/base64"
	"strings"

	"github.com/PuerkitoBio/goquery"
	gm "google.golang.org/api/gmail/v1"
)

const userID = "me"

// blockElements end a line when an HTML body is flattened to text.
const blockElements = "p, div, li, tr, h1, h2, h3, h4, blockquote"

// extractBody gets the text body from a message payload. Multipart
// messages are searched recursively, preferring text/plain; an HTML-only
// message is flattened to text, one line per block element.
func extractBody(payload *gm.MessagePart) string {
	if payload == nil {
		return ""
	}
	if body := findPart(payload, "text/plain"); body != "" {
		return strings.TrimSpace(body)
	}
	if html := findPart(payload, "text/html"); html != "" {
		return htmlText(html)
	}
	return ""
}

func htmlText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find(blockElements).AppendHtml("\n")
	doc.Find("script, style").Remove()

	var lines []string
	for _, line := range strings.Split(doc.Text(), "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func findPart(part *gm.MessagePart, mimeType string) string {
	if len(part.Parts) == 0 {
		if part.Body == nil || part.Body.Data == "" {
			return ""
		}
		if part.MimeType != "" && part.MimeType != mimeType {
			return ""
		}
		decoded, err := decodeBase64URL(part.Body.Data)
		if err != nil {
			return ""
		}
		return decoded
	}
	for _, child := range part.Parts {
		if body := findPart(child, mimeType); body != "" {
			return body
		}
	}
	return ""
}

// headerMap converts Gmail API headers into a map keyed by lower-case name.
func headerMap(headers []*gm.MessagePartHeader) map[string]string {
	m := make(map[string]string, len(headers))
	for _, h := range headers {
		m[strings.ToLower(h.Name)] = h.Value
	}
	return m
}

// decodeBase64URL decodes Gmail's base64url content, padded or not.
func decodeBase64URL(data string) (string, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}
