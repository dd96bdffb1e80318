// Package loader turns stored documents into text segments and bounded chunks.
package loader

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"docchat/types"
)

// DetectFormat infers the document format from the file extension.
func DetectFormat(name string) (types.Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".docx":
		return types.FormatDOCX, nil
	case ".pdf":
		return types.FormatPDF, nil
	}
	return "", fmt.Errorf("%w: %q", types.ErrUnsupportedFormat, filepath.Base(name))
}

type Extractor struct {
	pages  PageReader
	logger *slog.Logger
}

type Option func(*Extractor)

func WithPageReader(r PageReader) Option {
	return func(e *Extractor) {
		e.pages = r
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) {
		e.logger = l
	}
}

func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		pages:  NewPDFPageReader(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract reads a local document file and returns its text segments.
// The segment source is the file's base name, which is its storage key.
func (e *Extractor) Extract(ctx context.Context, path string) ([]types.Segment, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	source := filepath.Base(path)

	switch format {
	case types.FormatDOCX:
		text, err := readDocxText(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", types.ErrExtractionFailed, source, err)
		}
		if text == "" {
			return nil, nil
		}
		return []types.Segment{{Text: text, Source: source}}, nil

	default:
		pages, err := e.pages.ReadPages(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", types.ErrExtractionFailed, source, err)
		}

		segments := make([]types.Segment, 0, len(pages))
		for i, text := range pages {
			if strings.TrimSpace(text) == "" {
				continue
			}
			segments = append(segments, types.Segment{Text: text, Source: source, Page: i + 1})
		}
		e.logger.Debug("pdf extracted", "source", source, "pages", len(pages), "segments", len(segments))
		return segments, nil
	}
}
