package processor

import (
	"context"

	"docintel-go/internal/storage"
	"docintel-go/internal/types"
)

// TextExtractor turns an uploaded document into flat text.
type TextExtractor interface {
	ExtractText(ctx context.Context, doc types.RawDocument) string
}

// ResumeExtractor builds a candidate profile from résumé text.
type ResumeExtractor interface {
	Extract(ctx context.Context, text string, settings types.ExtractionSettings) types.CandidateProfile
	Sections(text string) types.SectionMap
}

// ContractExtractor finds entities in contract text.
type ContractExtractor interface {
	Extract(ctx context.Context, text string) []types.ExtractedEntity
}

// ProfessionScorer ranks professions for a hobby description.
type ProfessionScorer interface {
	Suggest(ctx context.Context, text string) types.ProfessionResult
}

// DocumentStore persists extraction results. *storage.Storage satisfies it.
type DocumentStore interface {
	CheckDuplicate(ctx context.Context, md5, documentID string) (bool, string, error)
	ForgetFile(ctx context.Context, md5 string)
	SaveResume(ctx context.Context, rec *storage.ResumeRecord) error
	SaveContract(ctx context.Context, rec *storage.ContractRecord) error
	LoadSettings(ctx context.Context, defaults types.ExtractionSettings) (types.ExtractionSettings, error)
	LogProfessionQuery(ctx context.Context, text string, res types.ProfessionResult) error
}

var _ DocumentStore = (*storage.Storage)(nil)
