package transcripts

import (
	"bytes"
	"context"
	"testing"

	"github.com/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func TestExtractText_Passthrough(t *testing.T) {
	ex := NewExtractor(t.TempDir(), arbor.NewLogger())
	for _, name := range []string{"notes.txt", "notes.MD", "data.json", "rows.csv"} {
		text, err := ex.ExtractText(context.Background(), name, []byte("plain content"))
		require.NoError(t, err, name)
		assert.Equal(t, "plain content", text)
	}
}

func TestExtractText_AudioRejected(t *testing.T) {
	ex := NewExtractor(t.TempDir(), arbor.NewLogger())
	for _, name := range []string{"call.mp3", "call.WAV", "call.m4a", "call.mp4"} {
		_, err := ex.ExtractText(context.Background(), name, []byte{0x00})
		assert.ErrorIs(t, err, ErrUnsupportedFormat, name)
	}
}

func TestExtractText_UnknownExtension(t *testing.T) {
	ex := NewExtractor(t.TempDir(), arbor.NewLogger())
	_, err := ex.ExtractText(context.Background(), "sheet.xlsx", []byte{0x00})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestExtractText_HTML(t *testing.T) {
	ex := NewExtractor(t.TempDir(), arbor.NewLogger())
	html := `<html><head><script>var x = 1;</script></head><body>
		<nav>menu</nav>
		<h1>Discovery call</h1>
		<p>The client wants <strong>faster</strong> reporting.</p>
	</body></html>`

	text, err := ex.ExtractText(context.Background(), "call.html", []byte(html))
	require.NoError(t, err)
	assert.Contains(t, text, "Discovery call")
	assert.Contains(t, text, "**faster**")
	assert.NotContains(t, text, "var x")
	assert.NotContains(t, text, "menu")
}

func TestExtractText_PDF(t *testing.T) {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetCompression(false)
	doc.AddPage()
	doc.SetFont("Helvetica", "", 12)
	doc.Text(20, 20, "Quarterly reporting takes two weeks")

	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))

	ex := NewExtractor(t.TempDir(), arbor.NewLogger())
	text, err := ex.ExtractText(context.Background(), "minutes.pdf", buf.Bytes())
	require.NoError(t, err)
	assert.Contains(t, text, "Quarterly reporting takes two weeks")
}

func TestExtractText_InvalidPDF(t *testing.T) {
	ex := NewExtractor(t.TempDir(), arbor.NewLogger())
	_, err := ex.ExtractText(context.Background(), "broken.pdf", []byte("not a pdf"))
	assert.Error(t, err)
}

func TestContentStreamText(t *testing.T) {
	stream := []byte("BT /F1 12 Tf 72 712 Td (Hello \\(world\\)) Tj ET\nBT 72 700 Td [(Sec) -20 (ond)] TJ ET\n")
	assert.Equal(t, "Hello (world)\nSecond\n", contentStreamText(stream))
}
