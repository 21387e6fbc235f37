// Package processor runs the extraction pipelines end to end: text
// extraction, deduplication, analysis and persistence.
package processor

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"docintel-go/internal/extractor"
	"docintel-go/internal/storage"
	"docintel-go/internal/tracing"
	"docintel-go/internal/types"

	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("docintel-go/processor")

// Timings records how long each pipeline step took.
type Timings struct {
	Extract time.Duration
	Analyze time.Duration
	Persist time.Duration
	Total   time.Duration
}

// ProcessResult is the outcome of one document run. Profile is set for
// résumés, Entities and Groups for contracts.
type ProcessResult struct {
	DocumentID  string               `json:"document_id"`
	CandidateID string               `json:"candidate_id,omitempty"`
	Filename    string               `json:"filename"`
	Format      types.DocumentFormat `json:"format"`
	FileMD5     string               `json:"file_md5"`
	TextLength  int                  `json:"text_length"`
	DuplicateOf string               `json:"duplicate_of,omitempty"`
	Persisted   bool                 `json:"persisted"`

	Profile  *types.CandidateProfile `json:"profile,omitempty"`
	Sections []types.SectionKind     `json:"sections,omitempty"`

	Title    string                  `json:"title,omitempty"`
	Entities []types.ExtractedEntity `json:"entities,omitempty"`
	Groups   []types.EntityGroup     `json:"groups,omitempty"`

	Timings Timings `json:"-"`
}

// DocumentProcessor wires the extractors and the optional store together.
type DocumentProcessor struct {
	TextExtractor     TextExtractor
	ResumeExtractor   ResumeExtractor
	ContractExtractor ContractExtractor
	ProfessionScorer  ProfessionScorer
	Store             DocumentStore

	settings Settings
	log      zerolog.Logger
}

// NewDocumentProcessor builds a processor from explicit components and settings.
func NewDocumentProcessor(comp *Components, set *Settings, opts ...SettingOpt) *DocumentProcessor {
	if set == nil {
		set = DefaultSettings()
	}
	for _, opt := range opts {
		opt(set)
	}
	p := &DocumentProcessor{
		TextExtractor:     comp.TextExtractor,
		ResumeExtractor:   comp.ResumeExtractor,
		ContractExtractor: comp.ContractExtractor,
		ProfessionScorer:  comp.ProfessionScorer,
		Store:             comp.Store,
		settings:          *set,
		log:               set.Logger,
	}
	if p.Store == nil {
		p.log.Warn().Msg("no document store configured, results will not be saved")
	}
	return p
}

// CreateProcessor is NewDocumentProcessor driven entirely by options.
func CreateProcessor(compOpts []ComponentOpt, setOpts []SettingOpt) *DocumentProcessor {
	comp := &Components{}
	for _, opt := range compOpts {
		opt(comp)
	}
	return NewDocumentProcessor(comp, DefaultSettings(), setOpts...)
}

// Settings returns a copy of the processor settings.
func (p *DocumentProcessor) Settings() Settings { return p.settings }

// prepared is the shared front half of both document pipelines.
type prepared struct {
	result *ProcessResult
	text   string
	start  time.Time
}

func (p *DocumentProcessor) prepare(ctx context.Context, span trace.Span, doc types.RawDocument) (*prepared, error) {
	start := time.Now()
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate document id: %w", err)
	}
	if doc.Format == "" {
		doc.Format = types.DetectFormat(doc.Filename, doc.Content)
	}
	sum := md5.Sum(doc.Content)
	res := &ProcessResult{
		DocumentID: id.String(),
		Filename:   doc.Filename,
		Format:     doc.Format,
		FileMD5:    hex.EncodeToString(sum[:]),
	}
	span.SetAttributes(
		attribute.String("document.id", res.DocumentID),
		attribute.String("document.format", string(doc.Format)),
		attribute.String("document.filename", tracing.SafeAttributeValue("document.filename", doc.Filename, tracing.DefaultMaxLength)),
		attribute.Int("document.size", len(doc.Content)),
	)

	if doc.Format == types.FormatUnknown {
		return nil, newValidationError(res.DocumentID, ErrUnsupportedFormat, doc.Filename)
	}
	if p.settings.MaxUploadBytes > 0 && int64(len(doc.Content)) > p.settings.MaxUploadBytes {
		return nil, newValidationError(res.DocumentID, ErrTooLarge,
			fmt.Sprintf("%d bytes, limit %d", len(doc.Content), p.settings.MaxUploadBytes))
	}

	if p.Store != nil && p.settings.Deduplicate {
		dup, existing, err := p.Store.CheckDuplicate(ctx, res.FileMD5, res.DocumentID)
		switch {
		case err != nil:
			p.log.Warn().Err(err).Str("document_id", res.DocumentID).Msg("dedup check failed, continuing")
		case dup:
			res.DuplicateOf = existing
			span.SetAttributes(attribute.String("document.duplicate_of", existing))
			return &prepared{result: res}, newDuplicateError(res.DocumentID, existing)
		}
	}

	t := time.Now()
	text := p.TextExtractor.ExtractText(ctx, doc)
	res.Timings.Extract = time.Since(t)
	res.TextLength = len(text)
	span.SetAttributes(attribute.Int("document.text_length", res.TextLength))
	if strings.TrimSpace(text) == "" {
		p.log.Warn().Str("document_id", res.DocumentID).Str("format", string(doc.Format)).
			Msg("no text extracted, result will be empty")
	}
	return &prepared{result: res, text: text, start: start}, nil
}

// ProcessResume extracts a candidate profile from doc. When settings is nil
// the stored settings are used, falling back to the configured defaults.
// A duplicate upload returns the partial result together with ErrDuplicate.
func (p *DocumentProcessor) ProcessResume(ctx context.Context, doc types.RawDocument, settings *types.ExtractionSettings) (*ProcessResult, error) {
	ctx, span := tracer.Start(ctx, "DocumentProcessor.ProcessResume")
	defer span.End()

	prep, err := p.prepare(ctx, span, doc)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		if prep != nil {
			return prep.result, err
		}
		return nil, err
	}
	res := prep.result

	effective := p.settings.DefaultExtraction
	switch {
	case settings != nil:
		effective = *settings
	case p.Store != nil:
		loaded, err := p.Store.LoadSettings(ctx, p.settings.DefaultExtraction)
		if err != nil {
			p.log.Warn().Err(err).Msg("loading extraction settings failed, using defaults")
		} else {
			effective = loaded
		}
	}

	t := time.Now()
	profile := p.ResumeExtractor.Extract(ctx, prep.text, effective)
	res.Profile = &profile
	res.Sections = p.ResumeExtractor.Sections(prep.text).Kinds()
	res.Timings.Analyze = time.Since(t)
	span.SetAttributes(attribute.Int("resume.found_fields", profile.FoundFields()))

	candID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate candidate id: %w", err)
	}
	res.CandidateID = candID.String()

	if err := p.persist(ctx, span, res, func() error {
		return p.Store.SaveResume(ctx, &storage.ResumeRecord{
			DocumentID:  res.DocumentID,
			CandidateID: res.CandidateID,
			Filename:    res.Filename,
			Format:      res.Format,
			FileMD5:     res.FileMD5,
			Content:     doc.Content,
			Text:        prep.text,
			Profile:     profile,
		})
	}); err != nil {
		return res, err
	}

	res.Timings.Total = time.Since(prep.start)
	p.log.Info().
		Str("document_id", res.DocumentID).
		Str("candidate_id", res.CandidateID).
		Int("found_fields", profile.FoundFields()).
		Dur("extract", res.Timings.Extract).
		Dur("analyze", res.Timings.Analyze).
		Bool("persisted", res.Persisted).
		Msg("resume processed")
	return res, nil
}

// ProcessContract extracts entities from contract text and groups them by type.
func (p *DocumentProcessor) ProcessContract(ctx context.Context, doc types.RawDocument, title string) (*ProcessResult, error) {
	ctx, span := tracer.Start(ctx, "DocumentProcessor.ProcessContract")
	defer span.End()

	prep, err := p.prepare(ctx, span, doc)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		if prep != nil {
			return prep.result, err
		}
		return nil, err
	}
	res := prep.result
	res.Title = title
	if res.Title == "" {
		res.Title = doc.Filename
	}

	t := time.Now()
	res.Entities = p.ContractExtractor.Extract(ctx, prep.text)
	res.Groups = extractor.GroupByType(res.Entities)
	res.Timings.Analyze = time.Since(t)
	span.SetAttributes(attribute.Int("contract.entity_count", len(res.Entities)))

	if err := p.persist(ctx, span, res, func() error {
		return p.Store.SaveContract(ctx, &storage.ContractRecord{
			DocumentID: res.DocumentID,
			Title:      res.Title,
			Filename:   res.Filename,
			Format:     res.Format,
			FileMD5:    res.FileMD5,
			Content:    doc.Content,
			Text:       prep.text,
			Entities:   res.Entities,
		})
	}); err != nil {
		return res, err
	}

	res.Timings.Total = time.Since(prep.start)
	p.log.Info().
		Str("document_id", res.DocumentID).
		Int("entities", len(res.Entities)).
		Int("groups", len(res.Groups)).
		Dur("extract", res.Timings.Extract).
		Dur("analyze", res.Timings.Analyze).
		Bool("persisted", res.Persisted).
		Msg("contract processed")
	return res, nil
}

// persist runs save when a store is configured. A store without a database
// is not an error; any other failure releases the dedup record.
func (p *DocumentProcessor) persist(ctx context.Context, span trace.Span, res *ProcessResult, save func() error) error {
	if p.Store == nil || !p.settings.Persist {
		return nil
	}
	t := time.Now()
	err := save()
	res.Timings.Persist = time.Since(t)
	switch {
	case err == nil:
		res.Persisted = true
		return nil
	case errors.Is(err, storage.ErrUnavailable):
		p.log.Debug().Str("document_id", res.DocumentID).Msg("database unavailable, result not saved")
		return nil
	}
	tracing.RecordError(span, err, tracing.ErrorTypeDB)
	p.Store.ForgetFile(ctx, res.FileMD5)
	p.log.Error().Err(err).Str("document_id", res.DocumentID).Msg("saving result failed")
	return newPersistError(res.DocumentID, err)
}

// SuggestProfessions ranks professions for a free-text hobby description.
func (p *DocumentProcessor) SuggestProfessions(ctx context.Context, text string) (types.ProfessionResult, error) {
	ctx, span := tracer.Start(ctx, "DocumentProcessor.SuggestProfessions")
	defer span.End()

	if strings.TrimSpace(text) == "" {
		err := newValidationError("", ErrEmptyText, "hobby description is blank")
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return types.ProfessionResult{Suggestions: []types.ProfessionScore{}}, err
	}
	span.SetAttributes(attribute.String("profession.input", tracing.SafeDocumentText(text)))

	res := p.ProfessionScorer.Suggest(ctx, text)
	span.SetAttributes(attribute.Int("profession.suggestions", len(res.Suggestions)))
	if res.Toxicity != nil {
		span.SetAttributes(attribute.Bool("profession.toxic", res.Toxicity.Detected))
	}

	if p.Store != nil && p.settings.LogQueries {
		if err := p.Store.LogProfessionQuery(ctx, text, res); err != nil {
			p.log.Warn().Err(err).Msg("profession query not logged")
		}
	}
	return res, nil
}
