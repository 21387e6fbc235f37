package handler

import (
	"context"
	"errors"

	"docintel-go/internal/extractor"
	"docintel-go/internal/processor"
	"docintel-go/internal/storage/models"
	"docintel-go/internal/types"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// DocumentReader loads stored documents.
type DocumentReader interface {
	GetDocument(ctx context.Context, documentID string) (*models.Document, error)
}

// DocumentHandler serves the /documents endpoints.
type DocumentHandler struct {
	proc  *processor.DocumentProcessor
	store DocumentReader
}

func NewDocumentHandler(proc *processor.DocumentProcessor, store DocumentReader) *DocumentHandler {
	return &DocumentHandler{proc: proc, store: store}
}

// DocumentResponse carries the entities of a contract, both in document
// order and grouped by type.
type DocumentResponse struct {
	DocumentID string                  `json:"document_id"`
	Kind       string                  `json:"kind,omitempty"`
	Title      string                  `json:"title"`
	Filename   string                  `json:"filename"`
	Format     types.DocumentFormat    `json:"format"`
	TextLength int                     `json:"text_length"`
	Entities   []types.ExtractedEntity `json:"entities"`
	Groups     []types.EntityGroup     `json:"groups"`
	Persisted  bool                    `json:"persisted"`
	CreatedAt  string                  `json:"created_at,omitempty"`
	Timings    *TimingsResponse        `json:"timings,omitempty"`
}

// Upload handles POST /documents with multipart "file" and optional "title".
func (h *DocumentHandler) Upload(ctx context.Context, c *app.RequestContext) {
	doc, err := readUpload(c)
	if err != nil {
		badRequest(c, "missing file field")
		return
	}
	res, err := h.proc.ProcessContract(ctx, doc, c.PostForm("title"))
	if err != nil {
		if errors.Is(err, processor.ErrDuplicate) && res != nil {
			c.JSON(consts.StatusConflict, ErrorResponse{Error: processor.ErrDuplicate.Error(), DuplicateOf: res.DuplicateOf})
			return
		}
		writeError(c, err)
		return
	}
	timings := newTimings(res.Timings)
	c.JSON(consts.StatusOK, DocumentResponse{
		DocumentID: res.DocumentID,
		Kind:       models.KindContract,
		Title:      res.Title,
		Filename:   res.Filename,
		Format:     res.Format,
		TextLength: res.TextLength,
		Entities:   nonNilEntities(res.Entities),
		Groups:     nonNilGroups(res.Groups),
		Persisted:  res.Persisted,
		Timings:    &timings,
	})
}

// Get handles GET /documents/:id.
func (h *DocumentHandler) Get(ctx context.Context, c *app.RequestContext) {
	doc, err := h.store.GetDocument(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	entities, err := doc.EntityList()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(consts.StatusOK, DocumentResponse{
		DocumentID: doc.DocumentID,
		Kind:       doc.Kind,
		Title:      doc.Title,
		Filename:   doc.OriginalFilename,
		Format:     types.DocumentFormat(doc.Format),
		TextLength: doc.TextLength,
		Entities:   nonNilEntities(entities),
		Groups:     nonNilGroups(extractor.GroupByType(entities)),
		Persisted:  true,
		CreatedAt:  formatTime(doc.CreatedAt),
	})
}

func nonNilEntities(e []types.ExtractedEntity) []types.ExtractedEntity {
	if e == nil {
		return []types.ExtractedEntity{}
	}
	return e
}

func nonNilGroups(g []types.EntityGroup) []types.EntityGroup {
	if g == nil {
		return []types.EntityGroup{}
	}
	return g
}
