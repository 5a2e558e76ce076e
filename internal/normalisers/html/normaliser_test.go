package html

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

func TestSupportedMIMETypes(t *testing.T) {
	mimeTypes := New().SupportedMIMETypes()

	assert.Contains(t, mimeTypes, "text/html")
	assert.Contains(t, mimeTypes, "application/xhtml+xml")
	assert.Len(t, mimeTypes, 2)
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain text", input: "Hello World", want: "Hello World"},
		{name: "paragraphs", input: "<p>First</p><p>Second</p>", want: "First\n\nSecond"},
		{name: "line breaks", input: "one<br>two<br/>three", want: "one\ntwo\nthree"},
		{name: "inline tags", input: "<p>Some <b>bold</b> and <a href=\"/x\">linked</a> text</p>", want: "Some bold and linked text"},
		{name: "entities", input: "<p>Fish &amp; chips &lt;3</p>", want: "Fish & chips <3"},
		{name: "script removed", input: "<p>Visible</p><script>var x = 1;</script>", want: "Visible"},
		{name: "style removed", input: "<style>p { color: red; }</style><p>Text</p>", want: "Text"},
		{name: "head removed", input: "<head><title>T</title></head><body>Body</body>", want: "Body"},
		{name: "comment removed", input: "a<!-- hidden -->b", want: "ab"},
		{name: "whitespace collapsed", input: "<p>  lots    of\tspace  </p>", want: "lots of space"},
		{name: "heading", input: "<h2>Refunds</h2><p>Within 30 days.</p>", want: "## Refunds\n\nWithin 30 days."},
		{name: "heading with markup", input: "<h1 class=\"t\">The <em>Policy</em></h1>", want: "# The Policy"},
		{name: "empty heading dropped", input: "<h3> </h3><p>x</p>", want: "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripHTML(tt.input))
		})
	}
}

func TestExtract_ComplexDocument(t *testing.T) {
	input := `<!DOCTYPE html>
<html>
<head><title>Returns</title><style>body{}</style></head>
<body>
  <nav><a href="/">Home</a></nav>
  <h1>Returns Policy</h1>
  <p>Customers may request a <strong>refund</strong> within 30 days.</p>
  <h2>Exceptions</h2>
  <ul><li>Sale items</li><li>Gift cards</li></ul>
</body>
</html>`

	got, err := New().Extract(context.Background(), []byte(input), "text/html")

	require.NoError(t, err)
	assert.Equal(t,
		"Home\n\n# Returns Policy\n\nCustomers may request a refund within 30 days.\n\n## Exceptions\n\nSale items\n\nGift cards",
		got)
}

func TestExtract_Binary(t *testing.T) {
	_, err := New().Extract(context.Background(), []byte("<p>\x00</p>"), "text/html")

	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}

func TestExtract_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Extract(ctx, []byte("<p>x</p>"), "text/html")

	assert.ErrorIs(t, err, context.Canceled)
}
