package parser

import (
	"context"
	"fmt"
	"time"

	"docintel-go/internal/config"
	"docintel-go/internal/logger"
	"docintel-go/internal/types"
)

// TextExtractor turns a raw document into flat text. Implementations never
// fail: undecodable input degrades to partial or empty text and is logged.
type TextExtractor interface {
	ExtractText(ctx context.Context, doc types.RawDocument) string
}

// MultiFormatExtractor dispatches on the declared document format.
type MultiFormatExtractor struct {
	pdf  TextExtractor
	docx TextExtractor
}

var _ TextExtractor = (*MultiFormatExtractor)(nil)

// NewMultiFormatExtractor wires a PDF backend and a DOCX backend. A nil
// backend makes that format unsupported.
func NewMultiFormatExtractor(pdf, docx TextExtractor) *MultiFormatExtractor {
	return &MultiFormatExtractor{pdf: pdf, docx: docx}
}

func (m *MultiFormatExtractor) ExtractText(ctx context.Context, doc types.RawDocument) string {
	var backend TextExtractor
	switch doc.Format {
	case types.FormatPDF:
		backend = m.pdf
	case types.FormatDOCX:
		backend = m.docx
	}
	if backend == nil {
		logger.Warn().
			Str("filename", doc.Filename).
			Str("format", string(doc.Format)).
			Msg("unsupported document format, returning empty text")
		return ""
	}

	start := time.Now()
	text := backend.ExtractText(ctx, doc)
	logger.Debug().
		Str("filename", doc.Filename).
		Str("format", string(doc.Format)).
		Int("chars", len(text)).
		Dur("took", time.Since(start)).
		Msg("text extracted")
	return text
}

// NewTextExtractor builds the extractor selected by cfg.PDFBackend.
func NewTextExtractor(ctx context.Context, cfg config.ParserConfig) (*MultiFormatExtractor, error) {
	var pdf TextExtractor
	switch cfg.PDFBackend {
	case "", "pages":
		pdf = NewPageTextExtractor()
	case "eino":
		e, err := NewEinoPDFTextExtractor(ctx)
		if err != nil {
			return nil, err
		}
		pdf = e
	case "tika":
		var opts []TikaOption
		switch cfg.Tika.MetadataMode {
		case "full":
			opts = append(opts, WithFullMetadata(true))
		case "minimal":
			opts = append(opts, WithMinimalMetadata(true))
		}
		if cfg.Tika.Timeout > 0 {
			opts = append(opts, WithTimeout(time.Duration(cfg.Tika.Timeout)*time.Second))
		}
		pdf = NewTikaTextExtractor(cfg.Tika.ServerURL, opts...)
	default:
		return nil, fmt.Errorf("unknown pdf backend %q", cfg.PDFBackend)
	}
	logger.Info().Str("pdf_backend", cfg.PDFBackend).Msg("text extractor ready")
	return NewMultiFormatExtractor(pdf, NewDocxTextExtractor()), nil
}
