// -----------------------------------------------------------------------
// Section export - Render generated section markdown to PDF
// -----------------------------------------------------------------------

package export

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/ternarybob/quill/internal/interfaces"
)

const (
	bodyFont     = "Helvetica"
	bodySize     = 10.0
	lineHeight   = 5.0
	pageWidth    = 180.0
	leftMargin   = 15.0
	bottomMargin = 15.0
)

// Service renders sections with goldmark and fpdf
type Service struct {
	logger   arbor.ILogger
	markdown goldmark.Markdown
}

var _ interfaces.SectionExporter = (*Service)(nil)

// NewService creates a section exporter
func NewService(logger arbor.ILogger) *Service {
	return &Service{
		logger:   logger,
		markdown: goldmark.New(goldmark.WithExtensions(extension.Table, extension.Strikethrough)),
	}
}

// RenderSection writes a PDF for one section to outputPath
func (s *Service) RenderSection(ctx context.Context, title, markdown, outputPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := s.Render(title, markdown)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", outputPath, err)
	}

	s.logger.Debug().Str("path", outputPath).Int("pdf_size", len(data)).Msg("Section PDF written")
	return nil
}

// Render returns the PDF bytes of a titled markdown document
func (s *Service) Render(title, markdown string) ([]byte, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetMargins(leftMargin, 15, leftMargin)
	doc.SetAutoPageBreak(true, bottomMargin)
	doc.SetTitle(title, true)
	doc.AddPage()

	r := &renderer{
		pdf:      doc,
		tr:       doc.UnicodeTranslatorFromDescriptor(""),
		source:   []byte(markdown),
		bodySize: bodySize,
	}

	if strings.TrimSpace(title) != "" {
		doc.SetFont(bodyFont, "B", 16)
		doc.MultiCell(0, 8, r.tr(title), "", "L", false)
		doc.Ln(3)
	}
	r.applyFont()

	root := s.markdown.Parser().Parse(text.NewReader(r.source))
	if err := ast.Walk(root, r.walk); err != nil {
		return nil, fmt.Errorf("failed to render section: %w", err)
	}
	if err := doc.Error(); err != nil {
		return nil, fmt.Errorf("failed to render section: %w", err)
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF output: %w", err)
	}
	return buf.Bytes(), nil
}

type renderer struct {
	pdf       *fpdf.Fpdf
	tr        func(string) string
	source    []byte
	bodySize  float64
	bold      bool
	italic    bool
	listDepth int
}

func (r *renderer) applyFont() {
	style := ""
	if r.bold {
		style += "B"
	}
	if r.italic {
		style += "I"
	}
	r.pdf.SetFont(bodyFont, style, r.bodySize)
}

func (r *renderer) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := n.(type) {
	case *ast.Heading:
		if entering {
			r.pdf.Ln(4)
			r.pdf.SetFont(bodyFont, "B", headingSize(node.Level))
			r.pdf.MultiCell(0, 6, r.tr(string(node.Text(r.source))), "", "L", false)
			r.pdf.Ln(1)
			r.applyFont()
		}
		return ast.WalkSkipChildren, nil

	case *ast.Paragraph:
		if !entering {
			r.pdf.Ln(lineHeight)
			if r.listDepth == 0 {
				r.pdf.Ln(2)
			}
		}

	case *ast.TextBlock:
		if !entering {
			r.pdf.Ln(lineHeight)
		}

	case *ast.Text:
		if entering {
			r.pdf.Write(lineHeight, r.tr(string(node.Segment.Value(r.source))))
			if node.SoftLineBreak() {
				r.pdf.Write(lineHeight, " ")
			}
			if node.HardLineBreak() {
				r.pdf.Ln(lineHeight)
			}
		}

	case *ast.Emphasis:
		if node.Level >= 2 {
			r.bold = entering
		} else {
			r.italic = entering
		}
		r.applyFont()

	case *ast.CodeSpan:
		if entering {
			r.pdf.SetFont("Courier", "", r.bodySize)
			r.pdf.Write(lineHeight, r.tr(string(node.Text(r.source))))
			r.applyFont()
		}
		return ast.WalkSkipChildren, nil

	case *ast.FencedCodeBlock, *ast.CodeBlock:
		if entering {
			r.codeBlock(n.Lines())
		}
		return ast.WalkSkipChildren, nil

	case *ast.List:
		if entering {
			r.listDepth++
		} else {
			r.listDepth--
			if r.listDepth == 0 {
				r.pdf.Ln(2)
			}
		}

	case *ast.ListItem:
		if entering {
			r.pdf.SetX(leftMargin + float64(r.listDepth-1)*5)
			r.pdf.Write(lineHeight, r.tr("• "))
		}

	case *ast.ThematicBreak:
		if entering {
			y := r.pdf.GetY() + 2
			r.pdf.Line(leftMargin, y, leftMargin+pageWidth, y)
			r.pdf.Ln(4)
		}

	case *extast.Table:
		if entering {
			r.table(node)
		}
		return ast.WalkSkipChildren, nil
	}
	return ast.WalkContinue, nil
}

func headingSize(level int) float64 {
	switch level {
	case 1:
		return 14
	case 2:
		return 12
	default:
		return 11
	}
}

func (r *renderer) codeBlock(lines *text.Segments) {
	r.pdf.SetFont("Courier", "", 9)
	r.pdf.SetFillColor(245, 245, 245)
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		line := strings.TrimRight(string(seg.Value(r.source)), "\n")
		r.pdf.MultiCell(0, 4.5, r.tr(line), "", "L", true)
	}
	r.pdf.SetFillColor(255, 255, 255)
	r.pdf.Ln(2)
	r.applyFont()
}

// table draws rows with equal column widths; cells wrap inside their column
func (r *renderer) table(t *extast.Table) {
	var rows [][]string
	for row := t.FirstChild(); row != nil; row = row.NextSibling() {
		var cells []string
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, r.tr(strings.TrimSpace(string(cell.Text(r.source)))))
		}
		rows = append(rows, cells)
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return
	}

	cols := len(rows[0])
	width := pageWidth / float64(cols)
	const cellLine = 4.5

	for i, cells := range rows {
		style := ""
		if i == 0 {
			style = "B"
		}
		r.pdf.SetFont(bodyFont, style, 9)

		lines := 1
		for _, c := range cells {
			if n := len(r.pdf.SplitText(c, width-2)); n > lines {
				lines = n
			}
		}
		height := float64(lines)*cellLine + 1

		_, pageHeight := r.pdf.GetPageSize()
		if r.pdf.GetY()+height > pageHeight-bottomMargin {
			r.pdf.AddPage()
		}

		y := r.pdf.GetY()
		for j := 0; j < cols; j++ {
			x := leftMargin + float64(j)*width
			if i == 0 {
				r.pdf.SetFillColor(230, 230, 230)
				r.pdf.Rect(x, y, width, height, "FD")
			} else {
				r.pdf.Rect(x, y, width, height, "D")
			}
			if j < len(cells) {
				r.pdf.SetXY(x+1, y+0.5)
				r.pdf.MultiCell(width-2, cellLine, cells[j], "", "L", false)
			}
		}
		r.pdf.SetXY(leftMargin, y+height)
	}

	r.pdf.SetFillColor(255, 255, 255)
	r.pdf.Ln(3)
	r.applyFont()
}
