package handler

import (
	"context"
	"errors"
	"strconv"

	"docintel-go/internal/processor"
	"docintel-go/internal/storage/models"
	"docintel-go/internal/types"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ResumeStore reads and deletes stored candidates.
type ResumeStore interface {
	GetResume(ctx context.Context, candidateID string) (*models.Candidate, error)
	ListResumes(ctx context.Context, offset, limit int) ([]models.Candidate, int64, error)
	DeleteResume(ctx context.Context, candidateID string) error
}

// ResumeHandler serves the /resumes endpoints.
type ResumeHandler struct {
	proc  *processor.DocumentProcessor
	store ResumeStore
}

func NewResumeHandler(proc *processor.DocumentProcessor, store ResumeStore) *ResumeHandler {
	return &ResumeHandler{proc: proc, store: store}
}

// ResumeUploadResponse is returned after a résumé has been processed.
type ResumeUploadResponse struct {
	DocumentID  string                 `json:"document_id"`
	CandidateID string                 `json:"candidate_id"`
	Filename    string                 `json:"filename"`
	Format      types.DocumentFormat   `json:"format"`
	TextLength  int                    `json:"text_length"`
	Profile     types.CandidateProfile `json:"profile"`
	FoundFields int                    `json:"found_fields"`
	Sections    []types.SectionKind    `json:"sections"`
	Persisted   bool                   `json:"persisted"`
	Timings     TimingsResponse        `json:"timings"`
}

// CandidateResponse is a stored candidate.
type CandidateResponse struct {
	CandidateID string                 `json:"candidate_id"`
	DocumentID  string                 `json:"document_id"`
	Filename    string                 `json:"filename,omitempty"`
	Profile     types.CandidateProfile `json:"profile"`
	CreatedAt   string                 `json:"created_at"`
}

// CandidateListResponse is one page of candidates.
type CandidateListResponse struct {
	Total  int64               `json:"total"`
	Offset int                 `json:"offset"`
	Limit  int                 `json:"limit"`
	Items  []CandidateResponse `json:"items"`
}

func newCandidateResponse(c *models.Candidate) CandidateResponse {
	resp := CandidateResponse{
		CandidateID: c.CandidateID,
		DocumentID:  c.DocumentID,
		Profile:     c.Profile(),
		CreatedAt:   formatTime(c.CreatedAt),
	}
	if c.Document != nil {
		resp.Filename = c.Document.OriginalFilename
	}
	return resp
}

// Upload handles POST /resumes with a multipart "file" field. The optional
// query flags extract_skills, extract_experience, extract_education and
// extract_languages override the stored settings for this request.
func (h *ResumeHandler) Upload(ctx context.Context, c *app.RequestContext) {
	doc, err := readUpload(c)
	if err != nil {
		badRequest(c, "missing file field")
		return
	}
	settings, err := h.requestSettings(ctx, c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	res, err := h.proc.ProcessResume(ctx, doc, settings)
	if err != nil {
		if errors.Is(err, processor.ErrDuplicate) && res != nil {
			c.JSON(consts.StatusConflict, ErrorResponse{Error: processor.ErrDuplicate.Error(), DuplicateOf: res.DuplicateOf})
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(consts.StatusOK, ResumeUploadResponse{
		DocumentID:  res.DocumentID,
		CandidateID: res.CandidateID,
		Filename:    res.Filename,
		Format:      res.Format,
		TextLength:  res.TextLength,
		Profile:     *res.Profile,
		FoundFields: res.Profile.FoundFields(),
		Sections:    res.Sections,
		Persisted:   res.Persisted,
		Timings:     newTimings(res.Timings),
	})
}

// requestSettings returns nil when no override flag is present.
func (h *ResumeHandler) requestSettings(ctx context.Context, c *app.RequestContext) (*types.ExtractionSettings, error) {
	flags := map[string]*bool{}
	s := h.proc.Settings().DefaultExtraction
	if h.proc.Store != nil {
		if loaded, err := h.proc.Store.LoadSettings(ctx, s); err == nil {
			s = loaded
		}
	}
	flags["extract_experience"] = &s.ExtractExperience
	flags["extract_skills"] = &s.ExtractSkills
	flags["extract_education"] = &s.ExtractEducation
	flags["extract_languages"] = &s.ExtractLanguages

	override := false
	for name, dst := range flags {
		v, ok := c.GetQuery(name)
		if !ok {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, errors.New("invalid value for " + name)
		}
		*dst = b
		override = true
	}
	if !override {
		return nil, nil
	}
	return &s, nil
}

// List handles GET /resumes?offset=&limit=.
func (h *ResumeHandler) List(ctx context.Context, c *app.RequestContext) {
	offset := queryInt(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	limit := queryInt(c, "limit", defaultPageSize)
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	cands, total, err := h.store.ListResumes(ctx, offset, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	items := make([]CandidateResponse, 0, len(cands))
	for i := range cands {
		items = append(items, newCandidateResponse(&cands[i]))
	}
	c.JSON(consts.StatusOK, CandidateListResponse{Total: total, Offset: offset, Limit: limit, Items: items})
}

// Get handles GET /resumes/:id.
func (h *ResumeHandler) Get(ctx context.Context, c *app.RequestContext) {
	cand, err := h.store.GetResume(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(consts.StatusOK, newCandidateResponse(cand))
}

// Delete handles DELETE /resumes/:id.
func (h *ResumeHandler) Delete(ctx context.Context, c *app.RequestContext) {
	if err := h.store.DeleteResume(ctx, c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(consts.StatusNoContent)
}

func queryInt(c *app.RequestContext, name string, def int) int {
	v, ok := c.GetQuery(name)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
