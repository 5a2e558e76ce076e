// Package markdown extracts text from Markdown uploads.
//
// Inline formatting is removed but heading lines are kept as "# Title" so
// the chunker can still detect sections and cite them.
package markdown

import (
	"context"
	"regexp"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/normalisers/plaintext"
)

// Ensure Normaliser implements the interface.
var _ driven.Extractor = (*Normaliser)(nil)

var (
	codeFence    = regexp.MustCompile("(?m)^[ \t]*(```|~~~).*$\n?")
	images       = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	links        = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	inlineCode   = regexp.MustCompile("`([^`\n]+)`")
	strong       = regexp.MustCompile(`(?:\*\*|__)(\S(?:[^\n]*?\S)?)(?:\*\*|__)`)
	strike       = regexp.MustCompile(`~~(\S(?:[^\n]*?\S)?)~~`)
	italic       = regexp.MustCompile(`\*(\S(?:[^\n*]*?\S)?)\*`)
	headings     = regexp.MustCompile(`(?m)^[ \t]{0,3}(#{1,6})[ \t]+(.*?)[ \t#]*$`)
	blockquote   = regexp.MustCompile(`(?m)^[ \t]*>[ \t]?`)
	hr           = regexp.MustCompile(`(?m)^[ \t]*(?:(?:-[ \t]*){3,}|(?:\*[ \t]*){3,}|(?:_[ \t]*){3,})$`)
	listMarkers  = regexp.MustCompile(`(?m)^([ \t]*)[-*+][ \t]+`)
	numberedList = regexp.MustCompile(`(?m)^([ \t]*)\d+[.)][ \t]+`)
	htmlComment  = regexp.MustCompile(`(?s)<!--.*?-->`)
	multiNewline = regexp.MustCompile(`\n{3,}`)
)

// Normaliser handles Markdown documents.
type Normaliser struct{}

// New creates a new Markdown normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/markdown", "text/x-markdown"}
}

// Extract returns the text of a Markdown document with formatting removed.
func (n *Normaliser) Extract(ctx context.Context, data []byte, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text, err := plaintext.Clean(data)
	if err != nil {
		return "", err
	}
	return stripMarkdown(text), nil
}

// stripMarkdown removes common Markdown formatting. Code block contents
// are kept because they are often what users search for.
func stripMarkdown(content string) string {
	content = htmlComment.ReplaceAllString(content, "")
	content = codeFence.ReplaceAllString(content, "")
	content = images.ReplaceAllString(content, "$1")
	content = links.ReplaceAllString(content, "$1")
	content = inlineCode.ReplaceAllString(content, "$1")

	// Horizontal rules go before list markers, "- - -" looks like both
	content = hr.ReplaceAllString(content, "")
	content = headings.ReplaceAllString(content, "$1 $2")
	content = blockquote.ReplaceAllString(content, "")
	content = listMarkers.ReplaceAllString(content, "$1")
	content = numberedList.ReplaceAllString(content, "$1")
	content = strong.ReplaceAllString(content, "$1")
	content = strike.ReplaceAllString(content, "$1")
	content = italic.ReplaceAllString(content, "$1")

	content = multiNewline.ReplaceAllString(content, "\n\n")
	return strings.TrimSpace(content)
}
