package parser

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"docintel-go/internal/logger"
	"docintel-go/internal/types"
)

const (
	docxBodyPart    = "word/document.xml"
	maxDocxBodySize = 64 << 20
)

// DocxTextExtractor reads the paragraphs of an OOXML word-processing
// document. Every paragraph is followed by a newline; a paragraph whose
// XML cannot be decoded is skipped.
type DocxTextExtractor struct{}

var _ TextExtractor = (*DocxTextExtractor)(nil)

func NewDocxTextExtractor() *DocxTextExtractor { return &DocxTextExtractor{} }

func (e *DocxTextExtractor) ExtractText(ctx context.Context, doc types.RawDocument) string {
	body, err := readDocxBody(doc.Content)
	if err != nil {
		logger.Warn().Err(err).Str("filename", doc.Filename).Msg("docx could not be opened")
		return ""
	}

	var sb strings.Builder
	for i, frag := range splitParagraphs(body) {
		text, err := paragraphText(frag)
		if err != nil {
			logger.Warn().Err(err).Int("paragraph", i).Str("filename", doc.Filename).Msg("skipping malformed docx paragraph")
			continue
		}
		sb.WriteString(text)
		sb.WriteByte('\n')
	}
	return sb.String()
}

func readDocxBody(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx archive: %w", err)
	}
	for _, f := range zr.File {
		if f.Name != docxBodyPart {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open %s: %w", docxBodyPart, err)
		}
		defer rc.Close()
		body, err := io.ReadAll(io.LimitReader(rc, maxDocxBodySize))
		if err != nil {
			return "", fmt.Errorf("read %s: %w", docxBodyPart, err)
		}
		return string(body), nil
	}
	return "", fmt.Errorf("docx archive has no %s", docxBodyPart)
}

// splitParagraphs cuts the body into top-level <w:p> fragments so each one
// can be decoded on its own.
func splitParagraphs(body string) []string {
	var out []string
	depth, start := 0, -1
	for i := 0; i < len(body); {
		j := strings.IndexByte(body[i:], '<')
		if j < 0 {
			break
		}
		i += j
		rest := body[i:]
		switch {
		case strings.HasPrefix(rest, "</w:p>"):
			if depth > 0 {
				depth--
				if depth == 0 {
					out = append(out, body[start:i+len("</w:p>")])
				}
			}
			i += len("</w:p>")
		case isParagraphOpen(rest):
			end := strings.IndexByte(rest, '>')
			if end < 0 {
				return out
			}
			if rest[end-1] == '/' {
				if depth == 0 {
					out = append(out, rest[:end+1])
				}
			} else {
				if depth == 0 {
					start = i
				}
				depth++
			}
			i += end + 1
		default:
			i++
		}
	}
	return out
}

func isParagraphOpen(s string) bool {
	if len(s) < 5 || !strings.HasPrefix(s, "<w:p") {
		return false
	}
	switch s[4] {
	case '>', ' ', '/', '\t', '\n', '\r':
		return true
	}
	return false
}

func paragraphText(fragment string) (string, error) {
	dec := xml.NewDecoder(strings.NewReader(fragment))
	var sb strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return sb.String(), nil
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br", "cr":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			if t.Name.Local == "t" {
				inText = false
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
}
