// ABOUTME: Markdown to Telegram-HTML conversion.
// ABOUTME: Renders with goldmark, then reduces the HTML to Telegram's tag subset.

package telegram

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.Strikethrough),
)

var (
	headingOpenRe  = regexp.MustCompile(`<h[1-6][^>]*>`)
	headingCloseRe = regexp.MustCompile(`</h[1-6]>`)
	anyTagRe       = regexp.MustCompile(`</?([a-zA-Z][a-zA-Z0-9]*)((?:\s[^>]*)?)/?>`)
	multiNewlineRe = regexp.MustCompile(`\n{3,}`)
)

// Telegram renders only this tag subset; anything else in a message body is
// rejected with a parse error.
var allowedTags = map[string]bool{
	"b": true, "i": true, "u": true, "s": true,
	"a": true, "code": true, "pre": true, "blockquote": true,
}

// FormatHTML converts Markdown-ish agent output to HTML acceptable to
// Telegram's HTML parse mode. Structure Telegram can't express (headings,
// lists, paragraphs) is flattened to plain text with newlines.
func FormatHTML(text string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(text), &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}

	html := buf.String()

	// Structural elements become plain-text layout.
	html = headingOpenRe.ReplaceAllString(html, "<b>")
	html = headingCloseRe.ReplaceAllString(html, "</b>\n\n")
	html = strings.ReplaceAll(html, "<strong>", "<b>")
	html = strings.ReplaceAll(html, "</strong>", "</b>")
	html = strings.ReplaceAll(html, "<em>", "<i>")
	html = strings.ReplaceAll(html, "</em>", "</i>")
	html = strings.ReplaceAll(html, "<del>", "<s>")
	html = strings.ReplaceAll(html, "</del>", "</s>")
	html = strings.ReplaceAll(html, "<p>", "")
	html = strings.ReplaceAll(html, "</p>", "\n\n")
	html = strings.ReplaceAll(html, "<li>", "• ")
	html = strings.ReplaceAll(html, "</li>", "\n")
	html = strings.ReplaceAll(html, "<br>", "\n")
	html = strings.ReplaceAll(html, "<br/>", "\n")
	html = strings.ReplaceAll(html, "<br />", "\n")
	html = strings.ReplaceAll(html, "<hr>", "\n")
	html = strings.ReplaceAll(html, "<hr/>", "\n")
	html = strings.ReplaceAll(html, "<hr />", "\n")

	// Drop every remaining tag Telegram doesn't understand, keeping content.
	html = anyTagRe.ReplaceAllStringFunc(html, func(tag string) string {
		m := anyTagRe.FindStringSubmatch(tag)
		name := strings.ToLower(m[1])
		if !allowedTags[name] {
			return ""
		}
		// Attributes are only meaningful on links and code fences.
		if name != "a" && name != "code" {
			return strings.Replace(tag, m[2], "", 1)
		}
		return tag
	})

	html = multiNewlineRe.ReplaceAllString(html, "\n\n")
	return strings.TrimSpace(html), nil
}
