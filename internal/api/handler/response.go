// Package handler implements the HTTP endpoints on top of the document
// processor and the storage layer.
package handler

import (
	"errors"
	"io"
	"mime/multipart"
	"time"

	"docintel-go/internal/logger"
	"docintel-go/internal/processor"
	"docintel-go/internal/storage"
	"docintel-go/internal/types"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// TimingsResponse reports step durations in milliseconds.
type TimingsResponse struct {
	ExtractMS int64 `json:"extract_ms"`
	AnalyzeMS int64 `json:"analyze_ms"`
	PersistMS int64 `json:"persist_ms"`
	TotalMS   int64 `json:"total_ms"`
}

func newTimings(t processor.Timings) TimingsResponse {
	return TimingsResponse{
		ExtractMS: t.Extract.Milliseconds(),
		AnalyzeMS: t.Analyze.Milliseconds(),
		PersistMS: t.Persist.Milliseconds(),
		TotalMS:   t.Total.Milliseconds(),
	}
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error       string `json:"error"`
	DuplicateOf string `json:"duplicate_of,omitempty"`
}

// statusFor maps pipeline and storage errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, processor.ErrEmptyText):
		return consts.StatusBadRequest
	case errors.Is(err, processor.ErrUnsupportedFormat):
		return consts.StatusUnsupportedMediaType
	case errors.Is(err, processor.ErrTooLarge):
		return consts.StatusRequestEntityTooLarge
	case errors.Is(err, processor.ErrDuplicate):
		return consts.StatusConflict
	case errors.Is(err, storage.ErrNotFound):
		return consts.StatusNotFound
	case errors.Is(err, storage.ErrUnavailable):
		return consts.StatusServiceUnavailable
	default:
		return consts.StatusInternalServerError
	}
}

func writeError(c *app.RequestContext, err error) {
	status := statusFor(err)
	resp := ErrorResponse{Error: err.Error()}
	if status >= consts.StatusInternalServerError {
		logger.Error().Err(err).Int("status", status).Msg("request failed")
		if !errors.Is(err, storage.ErrUnavailable) {
			resp.Error = "internal error"
		}
	}
	c.JSON(status, resp)
}

func badRequest(c *app.RequestContext, msg string) {
	c.JSON(consts.StatusBadRequest, utils.H{"error": msg})
}

// readUpload reads the multipart "file" field into a RawDocument.
func readUpload(c *app.RequestContext) (types.RawDocument, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return types.RawDocument{}, err
	}
	content, err := readFileHeader(fh)
	if err != nil {
		return types.RawDocument{}, err
	}
	return types.NewRawDocument(fh.Filename, content), nil
}

func readFileHeader(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
