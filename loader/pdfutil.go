package loader

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PageReader returns the plain text of every page of a PDF file, in page order.
type PageReader interface {
	ReadPages(ctx context.Context, path string) ([]string, error)
}

type pdfPageReader struct{}

func NewPDFPageReader() PageReader {
	return pdfPageReader{}
}

// ValidatePDF checks the file structure with pdfcpu before any text is read.
// Corrupt files and encrypted files that cannot be opened without a password fail here.
func ValidatePDF(path string) error {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	if err := api.ValidateFile(path, conf); err != nil {
		return fmt.Errorf("failed to validate PDF: %w", err)
	}
	return nil
}

func (pdfPageReader) ReadPages(ctx context.Context, path string) (pages []string, err error) {
	if err := ValidatePDF(path); err != nil {
		return nil, err
	}

	// the pdf reader panics on some malformed content streams
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("failed to read PDF text: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	pages = make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}

		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to read text of page %d: %w", i, err)
		}
		pages = append(pages, strings.TrimSpace(text))
	}

	return pages, nil
}
