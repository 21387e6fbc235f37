package storage

import "time"

// ResumeExtractedEvent is published after a résumé profile is stored.
type ResumeExtractedEvent struct {
	DocumentID       string    `json:"document_id"`
	CandidateID      string    `json:"candidate_id"`
	OriginalFilename string    `json:"original_filename"`
	FileMD5          string    `json:"file_md5"`
	TextObjectKey    string    `json:"text_object_key,omitempty"`
	FoundFields      int       `json:"found_fields"`
	Skills           []string  `json:"skills,omitempty"`
	ExtractorVersion string    `json:"extractor_version"`
	ExtractedAt      time.Time `json:"extracted_at"`
}

// ContractExtractedEvent is published after contract entities are stored.
type ContractExtractedEvent struct {
	DocumentID       string         `json:"document_id"`
	Title            string         `json:"title"`
	OriginalFilename string         `json:"original_filename"`
	EntityCount      int            `json:"entity_count"`
	EntityTypes      map[string]int `json:"entity_types"`
	ExtractorVersion string         `json:"extractor_version"`
	ExtractedAt      time.Time      `json:"extracted_at"`
}

// ResumeDeletedEvent is published after a candidate is removed.
type ResumeDeletedEvent struct {
	CandidateID string    `json:"candidate_id"`
	DocumentID  string    `json:"document_id"`
	DeletedAt   time.Time `json:"deleted_at"`
}
