package processor

import (
	"context"
	"errors"
	"sync"
	"testing"

	"docintel-go/internal/config"
	"docintel-go/internal/extractor"
	"docintel-go/internal/nlp"
	"docintel-go/internal/profession"
	"docintel-go/internal/storage"
	"docintel-go/internal/types"
	"docintel-go/internal/vocab"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedText returns the same text for every document.
type fixedText string

func (f fixedText) ExtractText(context.Context, types.RawDocument) string { return string(f) }

// memStore is an in-memory DocumentStore.
type memStore struct {
	mu        sync.Mutex
	md5s      map[string]string
	resumes   []*storage.ResumeRecord
	contracts []*storage.ContractRecord
	queries   []string
	settings  *types.ExtractionSettings
	saveErr   error
	forgotten []string
}

func newMemStore() *memStore { return &memStore{md5s: map[string]string{}} }

func (m *memStore) CheckDuplicate(_ context.Context, md5, documentID string) (bool, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.md5s[md5]; ok {
		return true, id, nil
	}
	m.md5s[md5] = documentID
	return false, "", nil
}

func (m *memStore) ForgetFile(_ context.Context, md5 string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.md5s, md5)
	m.forgotten = append(m.forgotten, md5)
}

func (m *memStore) SaveResume(_ context.Context, rec *storage.ResumeRecord) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.resumes = append(m.resumes, rec)
	return nil
}

func (m *memStore) SaveContract(_ context.Context, rec *storage.ContractRecord) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.contracts = append(m.contracts, rec)
	return nil
}

func (m *memStore) LoadSettings(_ context.Context, defaults types.ExtractionSettings) (types.ExtractionSettings, error) {
	if m.settings != nil {
		return *m.settings, nil
	}
	return defaults, nil
}

func (m *memStore) LogProfessionQuery(_ context.Context, text string, _ types.ProfessionResult) error {
	m.queries = append(m.queries, text)
	return nil
}

const resumeText = "Maria Silva\nmaria.silva@email.com\n(11) 98765-4321\nHabilidades: Python, Docker\n"

func newTestProcessor(t *testing.T, text string, store DocumentStore, opts ...SettingOpt) *DocumentProcessor {
	t.Helper()
	tables := vocab.Default()
	model := nlp.NewModel(tables, nil)
	comp := &Components{
		TextExtractor:     fixedText(text),
		ResumeExtractor:   extractor.NewResumeExtractor(tables, model),
		ContractExtractor: extractor.NewContractExtractor(tables, model),
		ProfessionScorer:  profession.NewScorer(tables, model, profession.DefaultOptions()),
		Store:             store,
	}
	opts = append([]SettingOpt{WithSetLogger(zerolog.Nop())}, opts...)
	return NewDocumentProcessor(comp, DefaultSettings(), opts...)
}

func pdfDoc(body string) types.RawDocument {
	return types.NewRawDocument("cv.pdf", []byte("%PDF-1.4 "+body))
}

func TestProcessResume(t *testing.T) {
	store := newMemStore()
	p := newTestProcessor(t, resumeText, store)

	res, err := p.ProcessResume(context.Background(), pdfDoc("a"), nil)
	require.NoError(t, err)
	require.NotNil(t, res.Profile)
	assert.Equal(t, "Maria Silva", types.Deref(res.Profile.Name))
	assert.Equal(t, "maria.silva@email.com", types.Deref(res.Profile.Email))
	assert.Equal(t, types.FormatPDF, res.Format)
	assert.Len(t, res.FileMD5, 32)
	assert.NotEmpty(t, res.DocumentID)
	assert.NotEmpty(t, res.CandidateID)
	assert.True(t, res.Persisted)
	assert.Equal(t, len(resumeText), res.TextLength)

	require.Len(t, store.resumes, 1)
	assert.Equal(t, res.DocumentID, store.resumes[0].DocumentID)
	assert.Equal(t, resumeText, store.resumes[0].Text)
}

func TestProcessResumeDuplicate(t *testing.T) {
	store := newMemStore()
	p := newTestProcessor(t, resumeText, store)

	first, err := p.ProcessResume(context.Background(), pdfDoc("same"), nil)
	require.NoError(t, err)

	second, err := p.ProcessResume(context.Background(), pdfDoc("same"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicate)
	require.NotNil(t, second)
	assert.Equal(t, first.DocumentID, second.DuplicateOf)
	assert.Nil(t, second.Profile)
	assert.Len(t, store.resumes, 1)

	var pe *ProcessError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "dedup", pe.Op)
}

func TestProcessResumeDedupDisabled(t *testing.T) {
	store := newMemStore()
	p := newTestProcessor(t, resumeText, store, WithSetDeduplicate(false))

	_, err := p.ProcessResume(context.Background(), pdfDoc("same"), nil)
	require.NoError(t, err)
	_, err = p.ProcessResume(context.Background(), pdfDoc("same"), nil)
	require.NoError(t, err)
	assert.Len(t, store.resumes, 2)
}

func TestProcessResumeUsesStoredSettings(t *testing.T) {
	store := newMemStore()
	store.settings = &types.ExtractionSettings{}
	p := newTestProcessor(t, resumeText, store)

	res, err := p.ProcessResume(context.Background(), pdfDoc("b"), nil)
	require.NoError(t, err)
	assert.Nil(t, res.Profile.Skills)

	all := types.DefaultExtractionSettings()
	res, err = p.ProcessResume(context.Background(), pdfDoc("c"), &all)
	require.NoError(t, err)
	assert.Equal(t, "docker, python", types.Deref(res.Profile.Skills))
}

func TestProcessResumeEmptyText(t *testing.T) {
	p := newTestProcessor(t, "   ", nil)

	res, err := p.ProcessResume(context.Background(), pdfDoc("d"), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Profile.FoundFields())
	assert.False(t, res.Persisted)
}

func TestProcessResumeValidation(t *testing.T) {
	p := newTestProcessor(t, resumeText, nil, WithSetMaxUploadBytes(16))

	_, err := p.ProcessResume(context.Background(), types.NewRawDocument("notes.txt", []byte("plain")), nil)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = p.ProcessResume(context.Background(), pdfDoc("this body is longer than sixteen bytes"), nil)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestProcessResumePersistFailure(t *testing.T) {
	store := newMemStore()
	store.saveErr = errors.New("deadlock")
	p := newTestProcessor(t, resumeText, store)

	res, err := p.ProcessResume(context.Background(), pdfDoc("e"), nil)
	assert.ErrorIs(t, err, ErrPersist)
	require.NotNil(t, res)
	assert.False(t, res.Persisted)
	assert.Equal(t, []string{res.FileMD5}, store.forgotten)
	assert.Empty(t, store.md5s)
}

func TestProcessResumeStoreWithoutDatabase(t *testing.T) {
	store := newMemStore()
	store.saveErr = storage.ErrUnavailable
	p := newTestProcessor(t, resumeText, store)

	res, err := p.ProcessResume(context.Background(), pdfDoc("f"), nil)
	require.NoError(t, err)
	assert.False(t, res.Persisted)
}

func TestProcessContract(t *testing.T) {
	text := "CONTRATO DE LOCAÇÃO\nLOCADOR: João da Silva, CPF 123.456.789-09, residente em Recife."
	store := newMemStore()
	p := newTestProcessor(t, text, store)

	res, err := p.ProcessContract(context.Background(), pdfDoc("g"), "")
	require.NoError(t, err)
	assert.Equal(t, "cv.pdf", res.Title)
	assert.NotEmpty(t, res.Entities)
	assert.NotEmpty(t, res.Groups)
	for _, e := range res.Entities {
		require.NotNil(t, e.Span)
		assert.Equal(t, e.Text, text[e.Span.Start:e.Span.End])
	}
	require.Len(t, store.contracts, 1)
	assert.Equal(t, res.Entities, store.contracts[0].Entities)
}

func TestSuggestProfessions(t *testing.T) {
	store := newMemStore()
	p := newTestProcessor(t, "", store, WithSetLogQueries(true))

	res, err := p.SuggestProfessions(context.Background(), "Adoro tocar violão e compor músicas")
	require.NoError(t, err)
	require.NotEmpty(t, res.Suggestions)
	assert.Equal(t, "Músico(a)", res.Suggestions[0].Label)
	assert.Equal(t, []string{"Adoro tocar violão e compor músicas"}, store.queries)

	res, err = p.SuggestProfessions(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrEmptyText)
	assert.NotNil(t, res.Suggestions)
	assert.Empty(t, res.Suggestions)
}

func TestCreateProcessorOptions(t *testing.T) {
	store := newMemStore()
	p := CreateProcessor(
		[]ComponentOpt{WithCompTextExtractor(fixedText("x")), WithCompStore(store)},
		[]SettingOpt{WithSetPersist(false), WithSetLogger(zerolog.Nop())},
	)
	assert.Equal(t, store, p.Store)
	assert.False(t, p.Settings().Persist)
	assert.True(t, p.Settings().Deduplicate)
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.MaxUploadMB = 2
	cfg.Profession.LogQueries = true
	model := nlp.NewModel(vocab.Default(), nil)

	p, err := NewFromConfig(context.Background(), cfg, model, nil)
	require.NoError(t, err)
	assert.Nil(t, p.Store)
	assert.EqualValues(t, 2<<20, p.Settings().MaxUploadBytes)
	assert.True(t, p.Settings().LogQueries)

	res, err := p.SuggestProfessions(context.Background(), "python java sql")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Suggestions)

	cfg.Parser.PDFBackend = "scanner"
	_, err = NewFromConfig(context.Background(), cfg, model, nil)
	assert.Error(t, err)
}
