package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// createTestDOCX creates a minimal DOCX file in memory.
func createTestDOCX(t *testing.T, body string) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)

	contentTypes, err := w.Create("[Content_Types].xml")
	require.NoError(t, err)
	_, err = contentTypes.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="xml" ContentType="application/xml"/>
</Types>`))
	require.NoError(t, err)

	if body != "" {
		doc, err := w.Create("word/document.xml")
		require.NoError(t, err)
		_, err = doc.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
			body + `</w:body></w:document>`))
		require.NoError(t, err)
	}

	require.NoError(t, w.Close())
	return buf.Bytes()
}

func extract(t *testing.T, body string) string {
	t.Helper()
	got, err := New().Extract(context.Background(), createTestDOCX(t, body), MIMEType)
	require.NoError(t, err)
	return got
}

func TestSupportedMIMETypes(t *testing.T) {
	assert.Equal(t, []string{MIMEType}, New().SupportedMIMETypes())
}

func TestExtract_Paragraphs(t *testing.T) {
	got := extract(t, `<w:p><w:r><w:t>First paragraph.</w:t></w:r></w:p>`+
		`<w:p><w:r><w:t>Second </w:t></w:r><w:r><w:t>paragraph.</w:t></w:r></w:p>`)

	assert.Equal(t, "First paragraph.\n\nSecond paragraph.", got)
}

func TestExtract_Headings(t *testing.T) {
	got := extract(t, `<w:p><w:pPr><w:pStyle w:val="Title"/></w:pPr><w:r><w:t>Handbook</w:t></w:r></w:p>`+
		`<w:p><w:pPr><w:pStyle w:val="Heading2"/></w:pPr><w:r><w:t>Refunds</w:t></w:r></w:p>`+
		`<w:p><w:pPr><w:pStyle w:val="Normal"/></w:pPr><w:r><w:t>Within 30 days.</w:t></w:r></w:p>`)

	assert.Equal(t, "# Handbook\n\n## Refunds\n\nWithin 30 days.", got)
}

func TestExtract_PageBreaks(t *testing.T) {
	got := extract(t, `<w:p><w:r><w:t>Cover</w:t></w:r></w:p>`+
		`<w:p><w:r><w:br w:type="page"/><w:t>Second page</w:t></w:r></w:p>`)

	assert.Equal(t, "--- Page 1 ---\n\nCover\n\n--- Page 2 ---\n\nSecond page", got)
}

func TestExtract_LineBreakIsNotPageBreak(t *testing.T) {
	got := extract(t, `<w:p><w:r><w:t>a</w:t><w:br/><w:t>b</w:t></w:r></w:p>`)

	assert.NotContains(t, got, "Page")
}

func TestExtract_EmptyParagraphsSkipped(t *testing.T) {
	got := extract(t, `<w:p/><w:p><w:r><w:t>  </w:t></w:r></w:p><w:p><w:r><w:t>Only</w:t></w:r></w:p>`)

	assert.Equal(t, "Only", got)
}

func TestExtract_InvalidArchive(t *testing.T) {
	_, err := New().Extract(context.Background(), []byte("not a zip"), MIMEType)

	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}

func TestExtract_MissingDocumentXML(t *testing.T) {
	_, err := New().Extract(context.Background(), createTestDOCX(t, ""), MIMEType)

	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}

func TestHeadingLevel(t *testing.T) {
	assert.Equal(t, 1, headingLevel("Heading1"))
	assert.Equal(t, 3, headingLevel("Heading3"))
	assert.Equal(t, 6, headingLevel("Heading9"))
	assert.Equal(t, 1, headingLevel("Title"))
	assert.Equal(t, 0, headingLevel("Normal"))
	assert.Equal(t, 0, headingLevel("HeadingX"))
}
