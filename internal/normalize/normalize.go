// File path: internal/normalize/normalize.go
package normalize

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	docx "github.com/fumiama/go-docx"
	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"

	"github.com/nicodishanthj/rfpassist/internal/common"
)

const (
	HintPDF  = "application/pdf"
	HintDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	HintHTML = "text/html"
	HintText = "text/plain"
)

// Result is the normalized text of a document plus a content-type hint
// derived from its extension.
type Result struct {
	Text string
	Hint string
}

// Normalize extracts plain text from the file at path. Only failing to read
// the file is an error: a PDF, DOCX or HTML file that cannot be parsed
// degrades to a lossy UTF-8 decode of its bytes.
func Normalize(ctx context.Context, path string) (Result, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Result{}, fmt.Errorf("read document: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	hint := HintForExtension(ext)

	var (
		text     string
		parseErr error
	)
	switch hint {
	case HintPDF:
		text, parseErr = pdfText(ctx, data)
	case HintDOCX:
		text, parseErr = docxText(data)
	case HintHTML:
		text, parseErr = htmlText(ctx, data)
	default:
		return Result{Text: decodeText(data), Hint: HintText}, nil
	}
	if parseErr != nil {
		common.Logger().Warn("normalize: structured parse failed, decoding raw bytes", "path", path, "hint", hint, "error", parseErr)
		text = decodeText(data)
	}
	return Result{Text: text, Hint: hint}, nil
}

// HintForExtension maps a file extension (with or without the dot) to the
// content-type hint Normalize reports for it.
func HintForExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	switch ext {
	case ".pdf":
		return HintPDF
	case ".docx":
		return HintDOCX
	case ".html", ".htm":
		return HintHTML
	default:
		return HintText
	}
}

func pdfText(ctx context.Context, data []byte) (text string, err error) {
	if len(data) == 0 {
		return "", nil
	}
	// The PDF reader panics on some malformed xref tables.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()
	pages, err := documentloaders.NewPDF(bytes.NewReader(data), int64(len(data))).Load(ctx)
	if err != nil {
		return "", fmt.Errorf("load pdf: %w", err)
	}
	return joinPages(pages), nil
}

func docxText(data []byte) (text string, err error) {
	if len(data) == 0 {
		return "", nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("docx reader panic: %v", r)
		}
	}()
	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parse docx: %w", err)
	}
	var lines []string
	for _, item := range doc.Document.Body.Items {
		if para, ok := item.(*docx.Paragraph); ok {
			lines = append(lines, para.String())
		}
	}
	return strings.Join(lines, "\n"), nil
}

func htmlText(ctx context.Context, data []byte) (string, error) {
	docs, err := documentloaders.NewHTML(bytes.NewReader(data)).Load(ctx)
	if err != nil {
		return "", fmt.Errorf("load html: %w", err)
	}
	return joinPages(docs), nil
}

func decodeText(data []byte) string {
	docs, err := documentloaders.NewText(bytes.NewReader(data)).Load(context.Background())
	if err != nil || len(docs) == 0 {
		return strings.ToValidUTF8(string(data), "")
	}
	text := strings.ToValidUTF8(docs[0].PageContent, "")
	return strings.TrimPrefix(text, "\ufeff")
}

func joinPages(pages []schema.Document) string {
	parts := make([]string, 0, len(pages))
	for _, page := range pages {
		parts = append(parts, page.PageContent)
	}
	return strings.Join(parts, "\n")
}
