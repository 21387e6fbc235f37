package parser

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/dslipak/pdf"

	"docintel-go/internal/logger"
	"docintel-go/internal/types"
)

// PageTextExtractor reads a PDF page by page. A page that fails to decode is
// logged and skipped; the remaining pages still contribute.
type PageTextExtractor struct{}

var _ TextExtractor = (*PageTextExtractor)(nil)

func NewPageTextExtractor() *PageTextExtractor { return &PageTextExtractor{} }

func (e *PageTextExtractor) ExtractText(ctx context.Context, doc types.RawDocument) string {
	pages, err := e.ExtractPages(ctx, doc.Content)
	if err != nil {
		logger.Warn().Err(err).Str("filename", doc.Filename).Msg("pdf could not be opened")
	}
	return strings.Join(pages, "\n")
}

// ExtractPages returns the text of every decodable page in order. The error
// is non-nil only when the document itself cannot be opened.
func (e *PageTextExtractor) ExtractPages(ctx context.Context, data []byte) (pages []string, err error) {
	reader, err := openPDF(data)
	if err != nil {
		return nil, err
	}

	total := reader.NumPage()
	for i := 1; i <= total; i++ {
		if ctx.Err() != nil {
			logger.Warn().Int("page", i).Int("total", total).Msg("pdf extraction cancelled, returning partial text")
			break
		}
		text, perr := pageText(reader, i)
		if perr != nil {
			logger.Warn().Err(perr).Int("page", i).Msg("skipping undecodable pdf page")
			continue
		}
		pages = append(pages, text)
	}
	return pages, nil
}

func openPDF(data []byte) (r *pdf.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r, err = nil, fmt.Errorf("open pdf: %v", rec)
		}
	}()
	r, err = pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	return r, nil
}

func pageText(r *pdf.Reader, num int) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			text, err = "", fmt.Errorf("decode page %d: %v", num, rec)
		}
	}()
	p := r.Page(num)
	if p.V.IsNull() {
		return "", nil
	}
	return p.GetPlainText(nil)
}
