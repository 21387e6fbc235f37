package processor

import (
	"context"

	"docintel-go/internal/config"
	"docintel-go/internal/extractor"
	"docintel-go/internal/nlp"
	"docintel-go/internal/parser"
	"docintel-go/internal/profession"
)

// NewFromConfig builds the default pipeline: the configured text extractor,
// the résumé and contract extractors and the profession scorer, all sharing
// model. store may be nil.
func NewFromConfig(ctx context.Context, cfg *config.Config, model *nlp.Model, store DocumentStore) (*DocumentProcessor, error) {
	text, err := parser.NewTextExtractor(ctx, cfg.Parser)
	if err != nil {
		return nil, err
	}
	tables := model.Tables()

	var resumeOpts []extractor.ResumeOption
	if cfg.Extraction.NameEntityWindow > 0 && cfg.Extraction.NameLineWindow > 0 {
		resumeOpts = append(resumeOpts, extractor.WithNameWindows(cfg.Extraction.NameEntityWindow, cfg.Extraction.NameLineWindow))
	}

	comp := &Components{
		TextExtractor:     text,
		ResumeExtractor:   extractor.NewResumeExtractor(tables, model, resumeOpts...),
		ContractExtractor: extractor.NewContractExtractor(tables, model),
		ProfessionScorer:  profession.NewScorer(tables, model, profession.OptionsFromConfig(cfg.Profession)),
		Store:             store,
	}
	return NewDocumentProcessor(comp, SettingsFromConfig(cfg)), nil
}
