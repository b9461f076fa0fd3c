// Package textlines turns documents into ordered, trimmed text lines.
package textlines

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Reader returns the non-empty, whitespace-trimmed lines of a document in
// reading order (page-major, top to bottom).
type Reader interface {
	Lines(ctx context.Context, path string) ([]string, error)
}

// ReaderFunc adapts a function to Reader
type ReaderFunc func(ctx context.Context, path string) ([]string, error)

func (f ReaderFunc) Lines(ctx context.Context, path string) ([]string, error) {
	return f(ctx, path)
}

// PDFReader reads text rows from PDF pages
type PDFReader struct{}

func NewPDFReader() *PDFReader {
	return &PDFReader{}
}

func (r *PDFReader) Lines(ctx context.Context, path string) (lines []string, err error) {
	// The pdf package panics on some malformed inputs.
	defer func() {
		if rec := recover(); rec != nil {
			lines, err = nil, fmt.Errorf("read pdf %s: %v", filepath.Base(path), rec)
		}
	}()

	f, doc, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	for i := 1; i <= doc.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := doc.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return nil, fmt.Errorf("read page %d: %w", i, err)
		}
		for _, row := range rows {
			lines = append(lines, joinRow(row.Content))
		}
	}
	return Clean(lines), nil
}

// joinRow concatenates the text runs of a row, inserting a space where the
// horizontal gap between runs is wider than a fraction of the font size.
func joinRow(texts []pdf.Text) string {
	var b strings.Builder
	for i, t := range texts {
		if i > 0 {
			prev := texts[i-1]
			gap := t.X - (prev.X + prev.W)
			if gap > prev.FontSize*0.15 && !strings.HasSuffix(prev.S, " ") && !strings.HasPrefix(t.S, " ") {
				b.WriteByte(' ')
			}
		}
		b.WriteString(t.S)
	}
	return b.String()
}

// TextReader reads plain UTF-8 text files, one line per line
type TextReader struct{}

func NewTextReader() *TextReader {
	return &TextReader{}
}

func (r *TextReader) Lines(ctx context.Context, path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open text document: %w", err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read text document: %w", err)
	}
	return Clean(lines), nil
}

// AutoReader picks a reader by file extension. PDFs go to the PDF reader,
// everything else is read as text.
type AutoReader struct {
	pdf  Reader
	text Reader
}

func NewAutoReader() *AutoReader {
	return &AutoReader{pdf: NewPDFReader(), text: NewTextReader()}
}

func (r *AutoReader) Lines(ctx context.Context, path string) ([]string, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return r.pdf.Lines(ctx, path)
	}
	return r.text.Lines(ctx, path)
}

// Clean collapses whitespace inside each line and drops empty lines
func Clean(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, ln := range lines {
		if s := strings.Join(strings.Fields(ln), " "); s != "" {
			out = append(out, s)
		}
	}
	return out
}
