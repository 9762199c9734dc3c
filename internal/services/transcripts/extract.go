// -----------------------------------------------------------------------
// Text extraction - Convert downloaded source documents into plain text
// -----------------------------------------------------------------------

package transcripts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/quill/internal/interfaces"
)

// ErrUnsupportedFormat is returned for documents that cannot be converted to text
var ErrUnsupportedFormat = errors.New("unsupported document format")

var audioExtensions = map[string]bool{
	".mp3": true, ".wav": true, ".m4a": true, ".aac": true,
	".flac": true, ".ogg": true, ".wma": true, ".mp4": true,
}

var passthroughExtensions = map[string]bool{
	".txt": true, ".md": true, ".json": true, ".csv": true, ".vtt": true, ".srt": true,
}

// Extractor converts documents to text by file extension
type Extractor struct {
	logger  arbor.ILogger
	tempDir string
}

var _ interfaces.TextExtractor = (*Extractor)(nil)

// NewExtractor creates an extractor that stages pdf files under tempDir
func NewExtractor(tempDir string, logger arbor.ILogger) *Extractor {
	if tempDir == "" {
		tempDir = filepath.Join(os.TempDir(), "quill-extract")
	}
	return &Extractor{logger: logger, tempDir: tempDir}
}

// ExtractText returns the plain text of a document
func (e *Extractor) ExtractText(ctx context.Context, fileName string, content []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(fileName))

	switch {
	case audioExtensions[ext]:
		return "", fmt.Errorf("%w: audio file %s needs transcription", ErrUnsupportedFormat, fileName)
	case passthroughExtensions[ext]:
		return string(content), nil
	case ext == ".html" || ext == ".htm":
		return e.htmlToText(string(content))
	case ext == ".pdf":
		return e.pdfToText(content)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

// htmlToText drops non-content elements then converts the remaining body to markdown
func (e *Extractor) htmlToText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	doc.Find("script, style, noscript, nav, header, footer").Remove()

	body, err := doc.Find("body").Html()
	if err != nil || strings.TrimSpace(body) == "" {
		body, err = doc.Html()
		if err != nil {
			return "", fmt.Errorf("failed to render HTML: %w", err)
		}
	}

	converted, err := md.NewConverter("", true, nil).ConvertString(body)
	if err != nil || strings.TrimSpace(converted) == "" {
		e.logger.Debug().Msg("Markdown conversion empty, using document text")
		return strings.TrimSpace(doc.Text()), nil
	}
	return converted, nil
}

var (
	pdfTextShow   = regexp.MustCompile(`\((?:\\.|[^\\)])*\)`)
	pdfLineBreaks = regexp.MustCompile(`(?m)\b(T\*|ET|Td|TD)\s*$`)
)

// pdfToText extracts page content streams with pdfcpu and collects their string operands
func (e *Extractor) pdfToText(content []byte) (string, error) {
	if err := os.MkdirAll(e.tempDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	workDir, err := os.MkdirTemp(e.tempDir, "pdf-")
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	inFile := filepath.Join(workDir, "in.pdf")
	if err := os.WriteFile(inFile, content, 0644); err != nil {
		return "", fmt.Errorf("failed to write temp PDF file: %w", err)
	}

	pdfCtx, err := api.ReadContextFile(inFile)
	if err != nil {
		return "", fmt.Errorf("failed to read PDF: %w", err)
	}

	outDir := filepath.Join(workDir, "out")
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}
	if err := api.ExtractContentFile(inFile, outDir, nil, model.NewDefaultConfiguration()); err != nil {
		return "", fmt.Errorf("failed to extract PDF content: %w", err)
	}

	files, err := os.ReadDir(outDir)
	if err != nil {
		return "", fmt.Errorf("failed to read extracted content: %w", err)
	}

	pages := make(map[int]string)
	for _, f := range files {
		var page int
		if _, err := fmt.Sscanf(pageSuffix(f.Name()), "page_%d", &page); err != nil {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(outDir, f.Name()))
		if err != nil {
			continue
		}
		pages[page] = contentStreamText(raw)
	}

	nums := make([]int, 0, len(pages))
	for n := range pages {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	var b strings.Builder
	for _, n := range nums {
		text := strings.TrimSpace(pages[n])
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(text)
	}

	e.logger.Debug().Int("page_count", pdfCtx.PageCount).Int("pages_with_text", len(nums)).Msg("PDF text extracted")
	return b.String(), nil
}

// pageSuffix trims an extracted content file name such as "in_Content_page_3.txt" to "page_3.txt"
func pageSuffix(name string) string {
	if i := strings.LastIndex(name, "page_"); i >= 0 {
		return name[i:]
	}
	return name
}

// contentStreamText reads the literal strings of text-showing operators in a content stream
func contentStreamText(stream []byte) string {
	var b strings.Builder
	for _, line := range bytes.Split(stream, []byte("\n")) {
		for _, lit := range pdfTextShow.FindAll(line, -1) {
			b.WriteString(unescapePDFString(string(lit[1 : len(lit)-1])))
		}
		if pdfLineBreaks.Match(line) {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func unescapePDFString(s string) string {
	r := strings.NewReplacer(`\(`, "(", `\)`, ")", `\\`, `\`, `\n`, "\n", `\r`, "", `\t`, "\t")
	return r.Replace(s)
}
