package normalize

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	docx "github.com/fumiama/go-docx"
	"github.com/go-pdf/fpdf"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func buildDocx(t *testing.T, paragraphs ...string) []byte {
	t.Helper()
	doc := docx.New()
	for _, p := range paragraphs {
		doc.AddParagraph().AddText(p)
	}
	var buf bytes.Buffer
	if _, err := doc.WriteTo(&buf); err != nil {
		t.Fatalf("write docx: %v", err)
	}
	return buf.Bytes()
}

func buildPDF(t *testing.T, lines ...string) []byte {
	t.Helper()
	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "", 12)
	y := 72.0
	for _, line := range lines {
		pdf.Text(72, y, line)
		y += 16
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		t.Fatalf("write pdf: %v", err)
	}
	return buf.Bytes()
}

func TestNormalizeTextDropsInvalidBytes(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "rfp.txt", []byte("Scope\xff\xfe of work\nSection C"))

	res, err := Normalize(context.Background(), path)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if res.Hint != HintText {
		t.Fatalf("unexpected hint: %s", res.Hint)
	}
	if res.Text != "Scope of work\nSection C" {
		t.Fatalf("unexpected text: %q", res.Text)
	}
}

func TestNormalizeUnknownExtensionFallsBackToText(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "notes.md", []byte("# Heading\nBody"))
	res, err := Normalize(context.Background(), path)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if res.Hint != HintText || res.Text != "# Heading\nBody" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestNormalizeDocxJoinsParagraphs(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "rfp.docx", buildDocx(t, "Section L", "Offeror shall provide an SSP."))

	res, err := Normalize(context.Background(), path)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if res.Hint != HintDOCX {
		t.Fatalf("unexpected hint: %s", res.Hint)
	}
	if !strings.Contains(res.Text, "Section L\nOfferor shall provide an SSP.") {
		t.Fatalf("expected paragraphs on separate lines, got %q", res.Text)
	}
}

func TestNormalizePDF(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "rfp.PDF", buildPDF(t, "Deliverables due in 30 days"))

	res, err := Normalize(context.Background(), path)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if res.Hint != HintPDF {
		t.Fatalf("unexpected hint: %s", res.Hint)
	}
}

func TestNormalizeHTMLStripsMarkup(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "rfp.html", []byte("<html><body><h1>Scope</h1><p>Provide monthly reports.</p></body></html>"))
	res, err := Normalize(context.Background(), path)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if res.Hint != HintHTML {
		t.Fatalf("unexpected hint: %s", res.Hint)
	}
	if strings.Contains(res.Text, "<p>") || !strings.Contains(res.Text, "Provide monthly reports.") {
		t.Fatalf("unexpected text: %q", res.Text)
	}
}

func TestNormalizeNeverFailsOnUnreadableContent(t *testing.T) {
	dir := t.TempDir()
	cases := []struct {
		name string
		data []byte
		hint string
	}{
		{name: "empty.pdf", data: nil, hint: HintPDF},
		{name: "garbage.pdf", data: []byte("not really a pdf \x00\x01"), hint: HintPDF},
		{name: "truncated.pdf", data: []byte("%PDF-1.4\n% Demo PDF placeholder. Drop real integration here."), hint: HintPDF},
		{name: "empty.docx", data: nil, hint: HintDOCX},
		{name: "garbage.docx", data: []byte("PK\x03\x04 broken zip"), hint: HintDOCX},
		{name: "empty.txt", data: nil, hint: HintText},
		{name: "binary.bin", data: []byte{0xff, 0xfe, 0x00, 'o', 'k'}, hint: HintText},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeFile(t, dir, tc.name, tc.data)
			res, err := Normalize(context.Background(), path)
			if err != nil {
				t.Fatalf("normalize %s: %v", tc.name, err)
			}
			if res.Hint != tc.hint {
				t.Fatalf("unexpected hint for %s: %s", tc.name, res.Hint)
			}
		})
	}
}

func TestNormalizeMissingFile(t *testing.T) {
	if _, err := Normalize(context.Background(), filepath.Join(t.TempDir(), "missing.pdf")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestHintForExtension(t *testing.T) {
	cases := map[string]string{"pdf": HintPDF, ".DOCX": HintDOCX, ".htm": HintHTML, "": HintText, ".doc": HintText}
	for ext, want := range cases {
		if got := HintForExtension(ext); got != want {
			t.Fatalf("HintForExtension(%q) = %s, want %s", ext, got, want)
		}
	}
}
