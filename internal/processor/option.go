package processor

import (
	"docintel-go/internal/config"
	"docintel-go/internal/logger"
	"docintel-go/internal/types"

	"github.com/rs/zerolog"
)

// Components groups the collaborators of a DocumentProcessor so tests can
// swap any of them.
type Components struct {
	TextExtractor     TextExtractor
	ResumeExtractor   ResumeExtractor
	ContractExtractor ContractExtractor
	ProfessionScorer  ProfessionScorer

	// Store is optional. Without it nothing is deduplicated or saved.
	Store DocumentStore
}

// Settings holds plain configuration values.
type Settings struct {
	DefaultExtraction types.ExtractionSettings
	MaxUploadBytes    int64 // 0 disables the limit
	Deduplicate       bool
	Persist           bool
	LogQueries        bool
	Logger            zerolog.Logger
}

// ComponentOpt changes one field of Components.
type ComponentOpt func(*Components)

// SettingOpt changes one field of Settings.
type SettingOpt func(*Settings)

// DefaultSettings enables every extraction layer, deduplication and persistence.
func DefaultSettings() *Settings {
	return &Settings{
		DefaultExtraction: types.DefaultExtractionSettings(),
		Deduplicate:       true,
		Persist:           true,
		Logger:            logger.Component("processor"),
	}
}

// SettingsFromConfig derives processor settings from the service config.
func SettingsFromConfig(cfg *config.Config) *Settings {
	s := DefaultSettings()
	s.DefaultExtraction = types.ExtractionSettings{
		ExtractExperience: cfg.Extraction.ExtractExperience,
		ExtractSkills:     cfg.Extraction.ExtractSkills,
		ExtractEducation:  cfg.Extraction.ExtractEducation,
		ExtractLanguages:  cfg.Extraction.ExtractLanguages,
	}
	if cfg.Server.MaxUploadMB > 0 {
		s.MaxUploadBytes = int64(cfg.Server.MaxUploadMB) << 20
	}
	s.LogQueries = cfg.Profession.LogQueries
	return s
}

func WithCompTextExtractor(e TextExtractor) ComponentOpt {
	return func(c *Components) {
		c.TextExtractor = e
	}
}

func WithCompResumeExtractor(e ResumeExtractor) ComponentOpt {
	return func(c *Components) {
		c.ResumeExtractor = e
	}
}

func WithCompContractExtractor(e ContractExtractor) ComponentOpt {
	return func(c *Components) {
		c.ContractExtractor = e
	}
}

func WithCompProfessionScorer(s ProfessionScorer) ComponentOpt {
	return func(c *Components) {
		c.ProfessionScorer = s
	}
}

// WithCompStore sets the persistence backend. A nil store disables persistence.
func WithCompStore(s DocumentStore) ComponentOpt {
	return func(c *Components) {
		c.Store = s
	}
}

func WithSetDefaultExtraction(e types.ExtractionSettings) SettingOpt {
	return func(s *Settings) {
		s.DefaultExtraction = e
	}
}

func WithSetMaxUploadBytes(n int64) SettingOpt {
	return func(s *Settings) {
		s.MaxUploadBytes = n
	}
}

func WithSetDeduplicate(on bool) SettingOpt {
	return func(s *Settings) {
		s.Deduplicate = on
	}
}

func WithSetPersist(on bool) SettingOpt {
	return func(s *Settings) {
		s.Persist = on
	}
}

func WithSetLogQueries(on bool) SettingOpt {
	return func(s *Settings) {
		s.LogQueries = on
	}
}

func WithSetLogger(l zerolog.Logger) SettingOpt {
	return func(s *Settings) {
		s.Logger = l
	}
}
