// Package docx extracts text from Word (.docx) uploads.
//
// Paragraphs styled as headings become "# Title" lines and explicit page
// breaks become "--- Page N ---" markers, so chunks can cite both.
package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Extractor = (*Normaliser)(nil)

// MIMEType is the media type of Word documents.
const MIMEType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// maxDocumentXML bounds the decompressed size of word/document.xml.
const maxDocumentXML = 64 << 20

// Normaliser handles DOCX documents.
type Normaliser struct{}

// New creates a new DOCX normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{MIMEType}
}

// Extract returns the text of a DOCX document.
func (n *Normaliser) Extract(ctx context.Context, data []byte, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: not a docx archive", domain.ErrUnsupportedType)
	}

	content, err := readDocumentXML(reader)
	if err != nil {
		return "", err
	}
	return parseDocumentXML(content)
}

// readDocumentXML returns the contents of word/document.xml.
func readDocumentXML(reader *zip.Reader) ([]byte, error) {
	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrUnsupportedType, err)
		}
		defer rc.Close()

		content, err := io.ReadAll(io.LimitReader(rc, maxDocumentXML+1))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrUnsupportedType, err)
		}
		if len(content) > maxDocumentXML {
			return nil, fmt.Errorf("%w: document.xml too large", domain.ErrUnsupportedType)
		}
		return content, nil
	}
	return nil, fmt.Errorf("%w: word/document.xml missing", domain.ErrUnsupportedType)
}

// documentXML represents the structure of word/document.xml.
type documentXML struct {
	Body struct {
		Paragraphs []paragraph `xml:"p"`
	} `xml:"body"`
}

type paragraph struct {
	Style struct {
		Val string `xml:"val,attr"`
	} `xml:"pPr>pStyle"`
	Runs []run `xml:"r"`
}

type run struct {
	Breaks []struct {
		Type string `xml:"type,attr"`
	} `xml:"br"`
	Text []struct {
		Content string `xml:",chardata"`
	} `xml:"t"`
}

func (r run) pageBreak() bool {
	for _, br := range r.Breaks {
		if br.Type == "page" {
			return true
		}
	}
	return false
}

func (r run) text() string {
	var b strings.Builder
	for _, t := range r.Text {
		b.WriteString(t.Content)
	}
	return b.String()
}

// headingLevel returns 1-6 for the built-in "HeadingN" and "Title" styles.
func headingLevel(style string) int {
	if style == "Title" {
		return 1
	}
	rest, ok := strings.CutPrefix(style, "Heading")
	if !ok {
		return 0
	}
	level, err := strconv.Atoi(rest)
	if err != nil || level < 1 {
		return 0
	}
	return min(level, 6)
}

// parseDocumentXML renders paragraphs separated by blank lines.
func parseDocumentXML(content []byte) (string, error) {
	var doc documentXML
	if err := xml.Unmarshal(content, &doc); err != nil {
		return "", fmt.Errorf("%w: parsing document.xml: %v", domain.ErrUnsupportedType, err)
	}

	var blocks []string
	page := 1
	var current strings.Builder
	flush := func(level int) {
		text := strings.Join(strings.Fields(current.String()), " ")
		current.Reset()
		if text == "" {
			return
		}
		if level > 0 {
			text = strings.Repeat("#", level) + " " + text
		}
		blocks = append(blocks, text)
	}

	for _, para := range doc.Body.Paragraphs {
		level := headingLevel(para.Style.Val)
		for _, r := range para.Runs {
			if r.pageBreak() {
				flush(level)
				page++
				blocks = append(blocks, fmt.Sprintf("--- Page %d ---", page))
			}
			current.WriteString(r.text())
		}
		flush(level)
	}

	if page > 1 {
		blocks = append([]string{"--- Page 1 ---"}, blocks...)
	}
	return strings.Join(blocks, "\n\n"), nil
}
