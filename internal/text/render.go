// Package text is the single sanitize-then-render pipeline for user-supplied
// prose. Every free-text field (book descriptions, review text) goes through
// Sanitize before storage and RenderMarkdown before display.
package text

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var (
	// strictPolicy strips all markup. Applied at write time so the stored
	// text is plain markdown with no embedded HTML.
	strictPolicy = bluemonday.StrictPolicy()

	// renderPolicy allows the tags markdown rendering produces.
	renderPolicy = bluemonday.UGCPolicy()

	markdown = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
	)
)

// Sanitize strips all HTML markup from user input, leaving plain text
// (markdown syntax survives since it is not markup yet).
func Sanitize(input string) string {
	return strings.TrimSpace(strictPolicy.Sanitize(input))
}

// RenderMarkdown converts stored text to HTML and sanitizes the result so it
// is safe to embed unescaped in a template.
func RenderMarkdown(input string) template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(input), &buf); err != nil {
		// Fall back to the escaped source text rather than dropping content.
		return template.HTML(template.HTMLEscapeString(input))
	}
	return template.HTML(renderPolicy.SanitizeBytes(buf.Bytes()))
}
