package constants

import "time"

const (
	// ExtractorVersion is stamped on stored documents.
	ExtractorVersion = "1.0"

	// SettingsRowID is the primary key of the single extraction settings row.
	SettingsRowID = 1

	SettingsCacheTTL = time.Minute
	VectorCacheTTL   = 30 * 24 * time.Hour

	// Event types carried in outbox messages.
	EventResumeExtracted   = "resume.extracted"
	EventContractExtracted = "contract.extracted"
	EventResumeDeleted     = "resume.deleted"
)
