package parser

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docintel-go/internal/config"
	"docintel-go/internal/types"
)

const docxBody = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:pPr><w:pStyle w:val="Title"/></w:pPr><w:r><w:t>Maria</w:t></w:r><w:r><w:t xml:space="preserve"> Silva</w:t></w:r></w:p>
<w:p/>
<w:p><w:r><w:t>Habilidades:</w:t><w:tab/><w:t>Python</w:t><w:br/><w:t>Docker</w:t></w:r></w:p>
</w:body>
</w:document>`

func buildDocx(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("[Content_Types].xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<Types/>`))
	require.NoError(t, err)
	w, err = zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestDocxTextExtractor(t *testing.T) {
	doc := types.NewRawDocument("cv.docx", buildDocx(t, docxBody))
	require.Equal(t, types.FormatDOCX, doc.Format)

	text := NewDocxTextExtractor().ExtractText(context.Background(), doc)
	assert.Equal(t, "Maria Silva\n\nHabilidades:\tPython\nDocker\n", text)
}

func TestDocxSkipsMalformedParagraph(t *testing.T) {
	body := `<w:document><w:body>
<w:p><w:r><w:t>first</w:t></w:r></w:p>
<w:p><w:r><w:t>broken</w:r></w:t></w:p>
<w:p><w:r><w:t>third</w:t></w:r></w:p>
</w:body></w:document>`
	text := NewDocxTextExtractor().ExtractText(context.Background(), types.RawDocument{
		Filename: "bad.docx", Format: types.FormatDOCX, Content: buildDocx(t, body),
	})
	assert.Equal(t, "first\nthird\n", text)
}

func TestDocxNotAZip(t *testing.T) {
	text := NewDocxTextExtractor().ExtractText(context.Background(), types.RawDocument{
		Filename: "x.docx", Format: types.FormatDOCX, Content: []byte("not a zip"),
	})
	assert.Empty(t, text)
}

func TestSplitParagraphsNested(t *testing.T) {
	body := `<w:p><w:r><w:t>a</w:t><w:txbxContent><w:p><w:r><w:t>b</w:t></w:r></w:p></w:txbxContent></w:r></w:p><w:pPr/><w:p><w:t>c</w:t></w:p>`
	frags := splitParagraphs(body)
	require.Len(t, frags, 2)
	assert.Contains(t, frags[0], "<w:t>b</w:t>")
	assert.Equal(t, "<w:p><w:t>c</w:t></w:p>", frags[1])
}

func TestPageTextExtractorDegradesOnGarbage(t *testing.T) {
	e := NewPageTextExtractor()
	for _, content := range [][]byte{nil, []byte("%PDF-1.4\ngarbage"), []byte("hello")} {
		assert.NotPanics(t, func() {
			text := e.ExtractText(context.Background(), types.RawDocument{Filename: "x.pdf", Format: types.FormatPDF, Content: content})
			assert.Empty(t, text)
		})
	}
}

type fixedExtractor string

func (f fixedExtractor) ExtractText(context.Context, types.RawDocument) string { return string(f) }

func TestMultiFormatExtractorDispatch(t *testing.T) {
	m := NewMultiFormatExtractor(fixedExtractor("pdf text"), fixedExtractor("docx text"))
	ctx := context.Background()

	assert.Equal(t, "pdf text", m.ExtractText(ctx, types.RawDocument{Format: types.FormatPDF}))
	assert.Equal(t, "docx text", m.ExtractText(ctx, types.RawDocument{Format: types.FormatDOCX}))
	assert.Empty(t, m.ExtractText(ctx, types.RawDocument{Format: types.FormatUnknown}))

	onlyPDF := NewMultiFormatExtractor(fixedExtractor("pdf text"), nil)
	assert.Empty(t, onlyPDF.ExtractText(ctx, types.RawDocument{Format: types.FormatDOCX}))
}

func TestNewTextExtractorBackends(t *testing.T) {
	ctx := context.Background()

	m, err := NewTextExtractor(ctx, config.ParserConfig{})
	require.NoError(t, err)
	assert.IsType(t, &PageTextExtractor{}, m.pdf)
	assert.IsType(t, &DocxTextExtractor{}, m.docx)

	m, err = NewTextExtractor(ctx, config.ParserConfig{PDFBackend: "eino"})
	require.NoError(t, err)
	assert.IsType(t, &EinoPDFTextExtractor{}, m.pdf)

	m, err = NewTextExtractor(ctx, config.ParserConfig{
		PDFBackend: "tika",
		Tika:       config.TikaConfig{ServerURL: "http://tika:9998/", Timeout: 5},
	})
	require.NoError(t, err)
	tika, ok := m.pdf.(*TikaTextExtractor)
	require.True(t, ok)
	assert.Equal(t, "http://tika:9998", tika.ServerURL)
	assert.Equal(t, 5*time.Second, tika.Client.Timeout)

	_, err = NewTextExtractor(ctx, config.ParserConfig{PDFBackend: "ocr"})
	assert.Error(t, err)
}

func createMockTikaServer(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		body, _ := io.ReadAll(r.Body)
		if !bytes.HasPrefix(body, []byte("%PDF")) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			return
		}
		switch r.URL.Path {
		case "/tika":
			assert.Equal(t, "application/pdf", r.Header.Get("Content-Type"))
			assert.Equal(t, "contrato.pdf", r.Header.Get("X-Tika-Resource-Name"))
			w.Header().Set("Content-Type", "text/plain")
			w.Write([]byte("CONTRATANTE: Acme Ltda\n"))
		case "/meta":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"xmpTPg:NPages":"2","X-Parsed-By":"org.apache.tika.parser.pdf.PDFParser"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestTikaTextExtractor(t *testing.T) {
	server := createMockTikaServer(t)
	defer server.Close()

	doc := types.RawDocument{Filename: "contrato.pdf", Format: types.FormatPDF, Content: []byte("%PDF-1.7 fake")}

	e := NewTikaTextExtractor(server.URL, WithMinimalMetadata(true))
	text, meta, err := e.ExtractWithMetadata(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, "CONTRATANTE: Acme Ltda\n", text)
	assert.Equal(t, "2", meta["xmpTPg:NPages"])
	assert.NotContains(t, meta, "X-Parsed-By")

	full := NewTikaTextExtractor(server.URL, WithFullMetadata(true))
	_, meta, err = full.ExtractWithMetadata(context.Background(), doc)
	require.NoError(t, err)
	assert.Contains(t, meta, "X-Parsed-By")
}

func TestTikaTextExtractorFailureDegrades(t *testing.T) {
	server := createMockTikaServer(t)
	defer server.Close()

	e := NewTikaTextExtractor(server.URL)
	text := e.ExtractText(context.Background(), types.RawDocument{Filename: "x.pdf", Format: types.FormatPDF, Content: []byte("nope")})
	assert.Empty(t, text)

	unreachable := NewTikaTextExtractor("http://127.0.0.1:1", WithTimeout(200*time.Millisecond))
	assert.Empty(t, unreachable.ExtractText(context.Background(), types.RawDocument{Format: types.FormatPDF, Content: []byte("%PDF")}))
}
