package types

import (
	"bytes"
	"path/filepath"
	"strings"
)

// DocumentFormat is the declared or sniffed format of a source document.
type DocumentFormat string

const (
	FormatPDF     DocumentFormat = "pdf"
	FormatDOCX    DocumentFormat = "docx"
	FormatUnknown DocumentFormat = "unknown"
)

var (
	pdfMagic = []byte("%PDF")
	zipMagic = []byte("PK\x03\x04")
)

// DetectFormat sniffs the leading bytes first and falls back to the file extension.
// Any zip container is treated as DOCX; the DOCX reader rejects other archives.
func DetectFormat(filename string, head []byte) DocumentFormat {
	switch {
	case bytes.HasPrefix(head, pdfMagic):
		return FormatPDF
	case bytes.HasPrefix(head, zipMagic):
		return FormatDOCX
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return FormatPDF
	case ".docx":
		return FormatDOCX
	}
	return FormatUnknown
}

// RawDocument is an uploaded document for the duration of one extraction.
type RawDocument struct {
	Filename string
	Format   DocumentFormat
	Content  []byte
}

// NewRawDocument builds a RawDocument with a sniffed format.
func NewRawDocument(filename string, content []byte) RawDocument {
	return RawDocument{
		Filename: filename,
		Format:   DetectFormat(filename, content),
		Content:  content,
	}
}

// Span is a half-open byte range [Start, End) into extracted text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Overlaps reports whether the two spans share at least one byte.
func (s Span) Overlaps(o Span) bool {
	return s.Start < o.End && o.Start < s.End
}

// Len returns the span length in bytes.
func (s Span) Len() int { return s.End - s.Start }

// ExtractedEntity is one recognised entity in a contract or résumé.
type ExtractedEntity struct {
	Text string `json:"text"`
	Type string `json:"type"`
	Span *Span  `json:"char_span,omitempty"`
}

// EntityGroup gathers entities sharing a type label.
type EntityGroup struct {
	Type  string   `json:"type"`
	Texts []string `json:"texts"`
}
