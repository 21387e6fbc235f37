package parser

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	einoParser "github.com/cloudwego/eino/components/document/parser"
	"github.com/rs/zerolog"

	"docintel-go/internal/logger"
	"docintel-go/internal/types"
)

// EinoPDFTextExtractor reads PDFs through the eino document parser, one
// schema.Document per page.
type EinoPDFTextExtractor struct {
	parser  *pdf.PDFParser
	timeout time.Duration
	logger  zerolog.Logger
}

var _ TextExtractor = (*EinoPDFTextExtractor)(nil)

type EinoPDFOption func(*EinoPDFTextExtractor)

func WithEinoLogger(l zerolog.Logger) EinoPDFOption {
	return func(e *EinoPDFTextExtractor) {
		e.logger = l
	}
}

// WithEinoTimeout bounds a single parse call.
func WithEinoTimeout(d time.Duration) EinoPDFOption {
	return func(e *EinoPDFTextExtractor) {
		e.timeout = d
	}
}

func NewEinoPDFTextExtractor(ctx context.Context, options ...EinoPDFOption) (*EinoPDFTextExtractor, error) {
	p, err := pdf.NewPDFParser(ctx, &pdf.Config{
		ToPages: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create eino pdf parser: %w", err)
	}

	extractor := &EinoPDFTextExtractor{
		parser:  p,
		timeout: 30 * time.Second,
		logger:  logger.Component("eino_pdf"),
	}
	for _, option := range options {
		option(extractor)
	}
	return extractor, nil
}

func (e *EinoPDFTextExtractor) ExtractText(ctx context.Context, doc types.RawDocument) string {
	text, err := e.extract(ctx, doc)
	if err != nil {
		e.logger.Warn().Err(err).Str("filename", doc.Filename).Msg("eino pdf parse failed")
		return ""
	}
	return text
}

func (e *EinoPDFTextExtractor) extract(ctx context.Context, doc types.RawDocument) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			text, err = "", fmt.Errorf("eino pdf parser panicked: %v", rec)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	docs, err := e.parser.Parse(ctx, bytes.NewReader(doc.Content),
		einoParser.WithURI(doc.Filename),
		einoParser.WithExtraMeta(map[string]any{"source_file": doc.Filename}),
	)
	if err != nil {
		return "", fmt.Errorf("eino pdf parser failed for %s: %w", doc.Filename, err)
	}

	pages := make([]string, 0, len(docs))
	for _, d := range docs {
		if d == nil {
			continue
		}
		pages = append(pages, d.Content)
	}
	text = strings.Join(pages, "\n")

	e.logger.Debug().
		Int("pages", len(pages)).
		Int("chars", len(text)).
		Dur("took", time.Since(start)).
		Msg("eino pdf parsed")
	return text, nil
}
