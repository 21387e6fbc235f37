package models

import (
	"encoding/json"
	"time"

	"docintel-go/internal/types"

	"gorm.io/datatypes"
)

// Document kinds.
const (
	KindResume   = "resume"
	KindContract = "contract"
)

// Candidate holds the profile extracted from one résumé document.
type Candidate struct {
	CandidateID string    `gorm:"type:char(36);primaryKey"`
	DocumentID  string    `gorm:"type:char(36);uniqueIndex:idx_candidates_document_id"`
	Name        *string   `gorm:"type:varchar(255)"`
	Email       *string   `gorm:"type:varchar(255);index:idx_candidates_email"`
	Phone       *string   `gorm:"type:varchar(50)"`
	Skills      *string   `gorm:"type:text"`
	Experience  *string   `gorm:"type:mediumtext"`
	Education   *string   `gorm:"type:text"`
	Languages   *string   `gorm:"type:text"`
	CreatedAt   time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);index:idx_candidates_created_at"`
	UpdatedAt   time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`

	Document *Document `gorm:"foreignKey:DocumentID;references:DocumentID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (Candidate) TableName() string {
	return "candidates"
}

// NewCandidate copies a profile into a row.
func NewCandidate(candidateID, documentID string, p types.CandidateProfile) *Candidate {
	return &Candidate{
		CandidateID: candidateID,
		DocumentID:  documentID,
		Name:        p.Name,
		Email:       p.Email,
		Phone:       p.Phone,
		Skills:      p.Skills,
		Experience:  p.Experience,
		Education:   p.Education,
		Languages:   p.Languages,
	}
}

// Profile converts the row back to the domain type.
func (c Candidate) Profile() types.CandidateProfile {
	return types.CandidateProfile{
		Name:       c.Name,
		Email:      c.Email,
		Phone:      c.Phone,
		Skills:     c.Skills,
		Experience: c.Experience,
		Education:  c.Education,
		Languages:  c.Languages,
	}
}

// Document is an uploaded résumé or contract.
type Document struct {
	DocumentID        string         `gorm:"type:char(36);primaryKey"`
	Kind              string         `gorm:"type:varchar(20);not null;index:idx_documents_kind_created_at"`
	Title             string         `gorm:"type:varchar(255)"`
	OriginalFilename  string         `gorm:"type:varchar(255)"`
	Format            string         `gorm:"type:varchar(10)"`
	FileMD5           string         `gorm:"type:char(32);index:idx_documents_file_md5"`
	OriginalObjectKey string         `gorm:"type:varchar(1024)"`
	TextObjectKey     string         `gorm:"type:varchar(1024)"`
	TextLength        int            `gorm:"default:0"`
	Entities          datatypes.JSON `gorm:"type:json"`
	ExtractorVersion  string         `gorm:"type:varchar(20)"`
	CreatedAt         time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);index:idx_documents_kind_created_at"`
	UpdatedAt         time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (Document) TableName() string {
	return "documents"
}

// EntityList decodes the stored contract entities.
func (d Document) EntityList() ([]types.ExtractedEntity, error) {
	if len(d.Entities) == 0 {
		return nil, nil
	}
	var out []types.ExtractedEntity
	if err := json.Unmarshal(d.Entities, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ExtractionSettings is the single row of global résumé extraction switches.
type ExtractionSettings struct {
	ID                uint      `gorm:"primaryKey"`
	ExtractExperience bool      `gorm:"not null;default:true"`
	ExtractSkills     bool      `gorm:"not null;default:true"`
	ExtractEducation  bool      `gorm:"not null;default:true"`
	ExtractLanguages  bool      `gorm:"not null;default:true"`
	UpdatedAt         time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (ExtractionSettings) TableName() string {
	return "extraction_settings"
}

// Switches converts the row to the domain type.
func (s ExtractionSettings) Switches() types.ExtractionSettings {
	return types.ExtractionSettings{
		ExtractExperience: s.ExtractExperience,
		ExtractSkills:     s.ExtractSkills,
		ExtractEducation:  s.ExtractEducation,
		ExtractLanguages:  s.ExtractLanguages,
	}
}

// ProfessionQuery logs one profession suggestion request.
type ProfessionQuery struct {
	ID                 uint64         `gorm:"primaryKey;autoIncrement"`
	InputText          string         `gorm:"type:text;not null"`
	Suggestions        datatypes.JSON `gorm:"type:json"`
	ToxicityDetected   bool           `gorm:"not null;default:false;index:idx_pq_toxicity"`
	ToxicityConfidence float64        `gorm:"default:0"`
	CreatedAt          time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
}

func (ProfessionQuery) TableName() string {
	return "profession_queries"
}
