package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"docintel-go/internal/logger"
	"docintel-go/internal/types"
)

// TikaTextExtractor delegates text extraction to an Apache Tika server.
type TikaTextExtractor struct {
	ServerURL string
	Client    *http.Client

	extractFullMetadata    bool
	extractMinimalMetadata bool
	extractAnnotations     bool
	logger                 zerolog.Logger
}

var _ TextExtractor = (*TikaTextExtractor)(nil)

type TikaOption func(*TikaTextExtractor)

func WithFullMetadata(extract bool) TikaOption {
	return func(e *TikaTextExtractor) {
		e.extractFullMetadata = extract
	}
}

func WithMinimalMetadata(extract bool) TikaOption {
	return func(e *TikaTextExtractor) {
		e.extractMinimalMetadata = extract
	}
}

// WithAnnotations toggles extraction of PDF link annotation text.
func WithAnnotations(extract bool) TikaOption {
	return func(e *TikaTextExtractor) {
		e.extractAnnotations = extract
	}
}

func WithTikaLogger(l zerolog.Logger) TikaOption {
	return func(e *TikaTextExtractor) {
		e.logger = l
	}
}

func WithTimeout(timeout time.Duration) TikaOption {
	return func(e *TikaTextExtractor) {
		e.Client.Timeout = timeout
	}
}

func NewTikaTextExtractor(serverURL string, options ...TikaOption) *TikaTextExtractor {
	extractor := &TikaTextExtractor{
		ServerURL:          strings.TrimRight(serverURL, "/"),
		Client:             &http.Client{Timeout: 60 * time.Second},
		extractAnnotations: true,
		logger:             logger.Component("tika"),
	}
	for _, option := range options {
		option(extractor)
	}
	return extractor
}

func (e *TikaTextExtractor) ExtractText(ctx context.Context, doc types.RawDocument) string {
	text, _, err := e.ExtractWithMetadata(ctx, doc)
	if err != nil {
		e.logger.Warn().Err(err).Str("filename", doc.Filename).Msg("tika extraction failed")
		return ""
	}
	return text
}

// ExtractWithMetadata returns the plain text and, depending on the options,
// the document metadata Tika reports. Metadata failures are not fatal.
func (e *TikaTextExtractor) ExtractWithMetadata(ctx context.Context, doc types.RawDocument) (string, map[string]any, error) {
	start := time.Now()
	metadata := map[string]any{
		"extraction_time": start.Format(time.RFC3339),
		"source_file":     doc.Filename,
	}

	body, err := e.put(ctx, "/tika", "text/plain", doc)
	if err != nil {
		return "", metadata, err
	}
	text := string(body)
	metadata["text_length"] = len(text)
	metadata["processing_duration_ms"] = time.Since(start).Milliseconds()

	if !e.extractFullMetadata && !e.extractMinimalMetadata {
		return text, metadata, nil
	}

	raw, err := e.extractMetadata(ctx, doc)
	if err != nil {
		e.logger.Warn().Err(err).Msg("tika metadata extraction failed, keeping basic metadata")
		return text, metadata, nil
	}
	for k, v := range raw {
		if e.extractFullMetadata || isImportantMetadata(k) {
			metadata[k] = v
		}
	}
	return text, metadata, nil
}

func (e *TikaTextExtractor) extractMetadata(ctx context.Context, doc types.RawDocument) (map[string]any, error) {
	body, err := e.put(ctx, "/meta", "application/json", doc)
	if err != nil {
		return nil, err
	}
	var metadata map[string]any
	if err := json.Unmarshal(body, &metadata); err != nil {
		return nil, fmt.Errorf("decode tika metadata: %w", err)
	}
	return metadata, nil
}

func (e *TikaTextExtractor) put(ctx context.Context, path, accept string, doc types.RawDocument) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, e.ServerURL+path, bytes.NewReader(doc.Content))
	if err != nil {
		return nil, fmt.Errorf("build tika request: %w", err)
	}
	req.Header.Set("Content-Type", contentType(doc.Format))
	req.Header.Set("Accept", accept)
	if doc.Filename != "" {
		req.Header.Set("X-Tika-Resource-Name", doc.Filename)
	}
	if !e.extractAnnotations {
		req.Header.Set("X-Tika-PDFExtractAnnotationText", "false")
	}

	resp, err := e.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tika request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tika %s returned status %d", path, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read tika response: %w", err)
	}
	return body, nil
}

func contentType(f types.DocumentFormat) string {
	switch f {
	case types.FormatPDF:
		return "application/pdf"
	case types.FormatDOCX:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	}
	return "application/octet-stream"
}

func isImportantMetadata(key string) bool {
	switch key {
	case "pdf:PDFVersion", "xmpTPg:NPages", "dcterms:created", "language",
		"dc:title", "Content-Type", "pdf:docinfo:title", "pdf:docinfo:created":
		return true
	}
	return false
}
