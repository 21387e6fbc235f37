package router

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"sync"
	"testing"

	"docintel-go/internal/api/handler"
	"docintel-go/internal/config"
	"docintel-go/internal/extractor"
	"docintel-go/internal/nlp"
	"docintel-go/internal/processor"
	"docintel-go/internal/profession"
	"docintel-go/internal/storage"
	"docintel-go/internal/storage/models"
	"docintel-go/internal/types"
	"docintel-go/internal/vocab"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	adminKey   = "s3cret"
	resumeText = "Maria Silva\nmaria.silva@email.com\n(11) 98765-4321\nHabilidades: Python, Docker\n"
)

type fixedText string

func (f fixedText) ExtractText(context.Context, types.RawDocument) string { return string(f) }

// fakeStore keeps everything in memory and satisfies every store interface
// used by the processor and the handlers.
type fakeStore struct {
	mu         sync.Mutex
	md5s       map[string]string
	candidates map[string]*models.Candidate
	order      []string
	documents  map[string]*models.Document
	settings   types.ExtractionSettings
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		md5s:       map[string]string{},
		candidates: map[string]*models.Candidate{},
		documents:  map[string]*models.Document{},
		settings:   types.DefaultExtractionSettings(),
	}
}

func (s *fakeStore) CheckDuplicate(_ context.Context, md5, documentID string) (bool, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.md5s[md5]; ok {
		return true, id, nil
	}
	s.md5s[md5] = documentID
	return false, "", nil
}

func (s *fakeStore) ForgetFile(_ context.Context, md5 string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.md5s, md5)
}

func (s *fakeStore) SaveResume(_ context.Context, rec *storage.ResumeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cand := models.NewCandidate(rec.CandidateID, rec.DocumentID, rec.Profile)
	cand.Document = &models.Document{DocumentID: rec.DocumentID, Kind: models.KindResume, OriginalFilename: rec.Filename}
	s.candidates[rec.CandidateID] = cand
	s.order = append(s.order, rec.CandidateID)
	return nil
}

func (s *fakeStore) SaveContract(_ context.Context, rec *storage.ContractRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, err := json.Marshal(rec.Entities)
	if err != nil {
		return err
	}
	s.documents[rec.DocumentID] = &models.Document{
		DocumentID:       rec.DocumentID,
		Kind:             models.KindContract,
		Title:            rec.Title,
		OriginalFilename: rec.Filename,
		Format:           string(rec.Format),
		TextLength:       len(rec.Text),
		Entities:         raw,
	}
	return nil
}

func (s *fakeStore) LoadSettings(context.Context, types.ExtractionSettings) (types.ExtractionSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings, nil
}

func (s *fakeStore) SaveSettings(_ context.Context, settings types.ExtractionSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	return nil
}

func (s *fakeStore) LogProfessionQuery(context.Context, string, types.ProfessionResult) error {
	return nil
}

func (s *fakeStore) GetResume(_ context.Context, id string) (*models.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.candidates[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return c, nil
}

func (s *fakeStore) ListResumes(_ context.Context, offset, limit int) ([]models.Candidate, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Candidate
	for i := offset; i < len(s.order) && len(out) < limit; i++ {
		out = append(out, *s.candidates[s.order[i]])
	}
	return out, int64(len(s.order)), nil
}

func (s *fakeStore) DeleteResume(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.candidates[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.candidates, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *fakeStore) GetDocument(_ context.Context, id string) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.documents[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return d, nil
}

func newTestServer(t *testing.T, text string) (*server.Hertz, *fakeStore) {
	t.Helper()
	tables := vocab.Default()
	model := nlp.NewModel(tables, nil)
	store := newFakeStore()
	proc := processor.NewDocumentProcessor(&processor.Components{
		TextExtractor:     fixedText(text),
		ResumeExtractor:   extractor.NewResumeExtractor(tables, model),
		ContractExtractor: extractor.NewContractExtractor(tables, model),
		ProfessionScorer:  profession.NewScorer(tables, model, profession.DefaultOptions()),
		Store:             store,
	}, processor.DefaultSettings(), processor.WithSetLogger(zerolog.Nop()))

	h := NewServer(config.ServerConfig{Address: "127.0.0.1:0", MaxUploadMB: 1})
	RegisterRoutes(h, &Handlers{
		Resumes:     handler.NewResumeHandler(proc, store),
		Documents:   handler.NewDocumentHandler(proc, store),
		Professions: handler.NewProfessionHandler(proc),
		Settings:    handler.NewSettingsHandler(store, types.DefaultExtractionSettings()),
	}, []string{adminKey})
	return h, store
}

func multipartBody(t *testing.T, filename string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := new(bytes.Buffer)
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func upload(h *server.Hertz, path string, body *bytes.Buffer, contentType string) *ut.ResponseRecorder {
	return ut.PerformRequest(h.Engine, http.MethodPost, path,
		&ut.Body{Body: body, Len: body.Len()},
		ut.Header{Key: "Content-Type", Value: contentType},
	)
}

func postJSON(h *server.Hertz, path string, v interface{}, headers ...ut.Header) *ut.ResponseRecorder {
	raw, _ := json.Marshal(v)
	headers = append(headers, ut.Header{Key: "Content-Type", Value: "application/json"})
	return ut.PerformRequest(h.Engine, http.MethodPost, path,
		&ut.Body{Body: bytes.NewReader(raw), Len: len(raw)}, headers...)
}

func TestHealth(t *testing.T) {
	h, _ := newTestServer(t, "")
	resp := ut.PerformRequest(h.Engine, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"status":"ok"}`, resp.Body.String())
}

func TestResumeLifecycle(t *testing.T) {
	h, store := newTestServer(t, resumeText)

	body, ct := multipartBody(t, "cv.pdf", []byte("%PDF-1.4 maria"), nil)
	resp := upload(h, "/api/v1/resumes", body, ct)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var up handler.ResumeUploadResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &up))
	assert.Equal(t, "Maria Silva", types.Deref(up.Profile.Name))
	assert.Equal(t, types.FormatPDF, up.Format)
	assert.True(t, up.Persisted)
	assert.Equal(t, up.Profile.FoundFields(), up.FoundFields)

	resp = ut.PerformRequest(h.Engine, http.MethodGet, "/api/v1/resumes/"+up.CandidateID, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var cand handler.CandidateResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &cand))
	assert.Equal(t, up.DocumentID, cand.DocumentID)
	assert.Equal(t, "cv.pdf", cand.Filename)

	resp = ut.PerformRequest(h.Engine, http.MethodGet, "/api/v1/resumes?limit=5", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var list handler.CandidateListResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &list))
	assert.EqualValues(t, 1, list.Total)
	assert.Equal(t, 5, list.Limit)
	require.Len(t, list.Items, 1)

	resp = ut.PerformRequest(h.Engine, http.MethodDelete, "/api/v1/resumes/"+up.CandidateID, nil)
	assert.Equal(t, http.StatusNoContent, resp.Code)
	assert.Empty(t, store.candidates)

	resp = ut.PerformRequest(h.Engine, http.MethodGet, "/api/v1/resumes/"+up.CandidateID, nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestResumeUploadErrors(t *testing.T) {
	h, _ := newTestServer(t, resumeText)

	body, ct := multipartBody(t, "cv.pdf", []byte("%PDF-1.4 twice"), nil)
	require.Equal(t, http.StatusOK, upload(h, "/api/v1/resumes", body, ct).Code)

	body, ct = multipartBody(t, "copy.pdf", []byte("%PDF-1.4 twice"), nil)
	resp := upload(h, "/api/v1/resumes", body, ct)
	assert.Equal(t, http.StatusConflict, resp.Code)
	var errResp handler.ErrorResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &errResp))
	assert.NotEmpty(t, errResp.DuplicateOf)

	body, ct = multipartBody(t, "notes.txt", []byte("just text"), nil)
	assert.Equal(t, http.StatusUnsupportedMediaType, upload(h, "/api/v1/resumes", body, ct).Code)

	body, ct = multipartBody(t, "cv.pdf", []byte("%PDF-1.4 flags"), nil)
	assert.Equal(t, http.StatusBadRequest, upload(h, "/api/v1/resumes?extract_skills=maybe", body, ct).Code)
}

func TestResumeUploadSettingsOverride(t *testing.T) {
	h, _ := newTestServer(t, resumeText)

	body, ct := multipartBody(t, "cv.pdf", []byte("%PDF-1.4 override"), nil)
	resp := upload(h, "/api/v1/resumes?extract_skills=false", body, ct)
	require.Equal(t, http.StatusOK, resp.Code)
	var up handler.ResumeUploadResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &up))
	assert.Nil(t, up.Profile.Skills)
	assert.NotNil(t, up.Profile.Email)
}

func TestDocumentUploadAndGet(t *testing.T) {
	text := "CONTRATADA: Maria Souza, portadora do CPF 123.456.789-09."
	h, _ := newTestServer(t, text)

	body, ct := multipartBody(t, "contrato.pdf", []byte("%PDF-1.4 contrato"), map[string]string{"title": "Prestação de serviços"})
	resp := upload(h, "/api/v1/documents", body, ct)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var doc handler.DocumentResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &doc))
	assert.Equal(t, "Prestação de serviços", doc.Title)
	assert.NotEmpty(t, doc.Entities)
	assert.NotEmpty(t, doc.Groups)

	resp = ut.PerformRequest(h.Engine, http.MethodGet, "/api/v1/documents/"+doc.DocumentID, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var stored handler.DocumentResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &stored))
	assert.Equal(t, doc.Entities, stored.Entities)
	assert.Equal(t, doc.Groups, stored.Groups)
}

func TestProfessionSuggest(t *testing.T) {
	h, _ := newTestServer(t, "")

	resp := postJSON(h, "/api/v1/professions/suggest", handler.SuggestRequest{Text: "Adoro tocar violão e compor músicas"})
	require.Equal(t, http.StatusOK, resp.Code)
	var out handler.SuggestResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	require.NotEmpty(t, out.Suggestions)
	assert.Equal(t, "Músico(a)", out.Suggestions[0].Label)
	assert.Nil(t, out.Toxicity)

	resp = postJSON(h, "/api/v1/professions/suggest", handler.SuggestRequest{Text: "Você é um idiota"})
	require.Equal(t, http.StatusOK, resp.Code)
	out = handler.SuggestResponse{}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	assert.Empty(t, out.Suggestions)
	require.NotNil(t, out.Toxicity)
	assert.True(t, out.Toxicity.Detected)
	assert.Equal(t, []string{"idiota"}, out.Toxicity.Preview)
	assert.NotEmpty(t, out.Message)

	resp = postJSON(h, "/api/v1/professions/suggest", handler.SuggestRequest{Text: "  "})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestSettings(t *testing.T) {
	h, store := newTestServer(t, "")

	resp := ut.PerformRequest(h.Engine, http.MethodGet, "/api/v1/settings", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var got types.ExtractionSettings
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &got))
	assert.Equal(t, types.DefaultExtractionSettings(), got)

	update := []byte(`{"extract_languages":false}`)
	put := func(headers ...ut.Header) *ut.ResponseRecorder {
		headers = append(headers, ut.Header{Key: "Content-Type", Value: "application/json"})
		return ut.PerformRequest(h.Engine, http.MethodPut, "/api/v1/settings",
			&ut.Body{Body: bytes.NewReader(update), Len: len(update)}, headers...)
	}

	assert.NotEqual(t, http.StatusOK, put().Code)
	assert.Equal(t, http.StatusUnauthorized, put(ut.Header{Key: AdminKeyHeader, Value: "wrong"}).Code)
	assert.True(t, store.settings.ExtractLanguages)

	resp = put(ut.Header{Key: AdminKeyHeader, Value: adminKey})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.False(t, store.settings.ExtractLanguages)
	assert.True(t, store.settings.ExtractSkills)
}
