package pdf

import (
	"context"
	"errors"
	"fmt"
	"strings"

	lpdf "github.com/ledongthuc/pdf"
	"github.com/m-mizutani/goerr/v2"
)

var (
	// ErrUnreadable is returned when the file is not a PDF the reader can parse
	ErrUnreadable = errors.New("unreadable pdf")
)

// Page is the plain text of one 1-based page
type Page struct {
	Number int
	Text   string
}

// Extractor pulls per-page text from a document on disk
type Extractor interface {
	Extract(ctx context.Context, path string) ([]Page, error)
}

// Reader extracts text with github.com/ledongthuc/pdf
type Reader struct{}

// NewReader creates a PDF text extractor
func NewReader() *Reader {
	return &Reader{}
}

// Extract returns the text of every page, including empty ones.
// Malformed files that make the parser panic are reported as ErrUnreadable.
func (r *Reader) Extract(ctx context.Context, path string) (pages []Page, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			pages = nil
			err = goerr.Wrap(ErrUnreadable, "pdf parser panicked", goerr.V("path", path), goerr.V("panic", fmt.Sprint(rec)))
		}
	}()

	f, doc, err := lpdf.Open(path)
	if err != nil {
		return nil, goerr.Wrap(errors.Join(ErrUnreadable, err), "failed to open pdf", goerr.V("path", path))
	}
	defer func() { _ = f.Close() }()

	n := doc.NumPage()
	pages = make([]Page, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := doc.Page(i)
		if p.V.IsNull() {
			pages = append(pages, Page{Number: i})
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to extract page text", goerr.V("path", path), goerr.V("page", i))
		}
		pages = append(pages, Page{Number: i, Text: text})
	}
	return pages, nil
}

// Document joins the non-empty pages into one text, each preceded by a
// "--- Page N ---" marker line
func Document(pages []Page) string {
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("\n--- Page %d ---\n%s", p.Number, p.Text))
	}
	return strings.Join(parts, "\n")
}

// CountText returns how many pages carry text
func CountText(pages []Page) int {
	n := 0
	for _, p := range pages {
		if strings.TrimSpace(p.Text) != "" {
			n++
		}
	}
	return n
}
