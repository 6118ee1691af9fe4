// File path: internal/export/export.go
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-pdf/fpdf"
)

// Page geometry in points: US Letter, 0.75in margins, Helvetica 10 on a 14pt
// line pitch.
const (
	PageWidth  = 612.0
	PageHeight = 792.0
	Margin     = 54.0
	FontFamily = "Helvetica"
	FontSize   = 10.0
	LineHeight = 14.0
)

// Stats summarises a rendered document.
type Stats struct {
	Pages int
	Lines int
}

// Placement is one wrapped line positioned on a page. Y is the baseline
// measured from the top edge.
type Placement struct {
	Page int
	Y    float64
	Text string
}

// Layout flows wrapped lines top to bottom and starts a new page whenever
// the next baseline would fall below the bottom margin. wrap splits one
// logical line into lines that fit the printable width; an empty result
// drops the line.
func Layout(lines []string, wrap func(string) []string) ([]Placement, int) {
	pages := 1
	y := Margin
	var placed []Placement
	for _, line := range lines {
		for _, frag := range wrap(line) {
			if y > PageHeight-Margin {
				pages++
				y = Margin
			}
			placed = append(placed, Placement{Page: pages, Y: y, Text: frag})
			y += LineHeight
		}
	}
	return placed, pages
}

// Export writes html as a paginated PDF at outPath.
func Export(html, outPath string) (Stats, error) {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return Stats{}, fmt.Errorf("create export dir: %w", err)
	}
	file, err := os.Create(outPath)
	if err != nil {
		return Stats{}, fmt.Errorf("create export file: %w", err)
	}
	stats, renderErr := Render(html, file)
	closeErr := file.Close()
	if renderErr != nil {
		return Stats{}, renderErr
	}
	if closeErr != nil {
		return Stats{}, fmt.Errorf("close export file: %w", closeErr)
	}
	return stats, nil
}

// Render writes html as a paginated PDF to w. Markup is reduced to text;
// headings, emphasis and requirement links are not preserved.
func Render(html string, w io.Writer) (Stats, error) {
	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetMargins(Margin, Margin, Margin)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCellMargin(0)
	pdf.SetFont(FontFamily, "", FontSize)
	translate := pdf.UnicodeTranslatorFromDescriptor("")
	maxWidth := PageWidth - 2*Margin

	wrap := func(line string) []string {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			return nil
		}
		parts := pdf.SplitLines([]byte(translate(line)), maxWidth)
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			out = append(out, string(part))
		}
		return out
	}
	placed, pages := Layout(strings.Split(HTMLToText(html), "\n"), wrap)

	current := 0
	for _, p := range placed {
		for current < p.Page {
			pdf.AddPage()
			pdf.SetFont(FontFamily, "", FontSize)
			current++
		}
		pdf.Text(Margin, p.Y, p.Text)
	}
	for current < pages {
		pdf.AddPage()
		current++
	}
	if err := pdf.Output(w); err != nil {
		return Stats{}, fmt.Errorf("render pdf: %w", err)
	}
	return Stats{Pages: pages, Lines: len(placed)}, nil
}

// HTMLToText joins the text nodes of html with newlines. Script, style and
// template contents are not text. Unparseable input is returned unchanged.
func HTMLToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	var parts []string
	var walk func(sel *goquery.Selection)
	walk = func(sel *goquery.Selection) {
		sel.Contents().Each(func(_ int, node *goquery.Selection) {
			switch goquery.NodeName(node) {
			case "#text":
				parts = append(parts, node.Text())
			case "script", "style", "template", "#comment":
			default:
				walk(node)
			}
		})
	}
	walk(doc.Selection)
	return strings.Join(parts, "\n")
}
