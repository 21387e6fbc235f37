package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"docintel-go/internal/config"
	"docintel-go/internal/constants"
	"docintel-go/internal/logger"
	"docintel-go/internal/nlp"
	"docintel-go/internal/storage/models"
	"docintel-go/internal/types"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var storageTracer = otel.Tracer("docintel-go/storage")

// ErrUnavailable is returned when the backend an operation needs is not configured.
var ErrUnavailable = errors.New("storage: backend not configured")

// Storage aggregates the optional backends. Any field may be nil.
type Storage struct {
	MinIO    *MinIO
	RabbitMQ *RabbitMQ
	MySQL    *MySQL
	Redis    *Redis

	events config.RabbitMQConfig
}

// ResumeRecord is everything persisted for one processed résumé.
type ResumeRecord struct {
	DocumentID  string
	CandidateID string
	Filename    string
	Format      types.DocumentFormat
	FileMD5     string
	Content     []byte
	Text        string
	Profile     types.CandidateProfile
}

// ContractRecord is everything persisted for one processed contract.
type ContractRecord struct {
	DocumentID string
	Title      string
	Filename   string
	Format     types.DocumentFormat
	FileMD5    string
	Content    []byte
	Text       string
	Entities   []types.ExtractedEntity
}

// NewStorage initialises every enabled backend. A backend that fails to
// start is logged and left nil; the call fails only when every enabled
// backend failed.
func NewStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	s := &Storage{events: cfg.RabbitMQ}
	var initErrors []string
	enabled := 0

	if cfg.MinIO.Enabled {
		enabled++
		m, err := NewMinIO(&cfg.MinIO)
		if err != nil {
			logger.Warn().Err(err).Msg("minio init failed")
			initErrors = append(initErrors, "minio: "+err.Error())
		} else {
			s.MinIO = m
		}
	}
	if cfg.RabbitMQ.Enabled {
		enabled++
		mq, err := NewRabbitMQ(&cfg.RabbitMQ)
		if err == nil {
			err = mq.SetupTopology()
		}
		if err != nil {
			logger.Warn().Err(err).Msg("rabbitmq init failed")
			initErrors = append(initErrors, "rabbitmq: "+err.Error())
		} else {
			s.RabbitMQ = mq
		}
	}
	if cfg.MySQL.Enabled {
		enabled++
		db, err := NewMySQL(&cfg.MySQL)
		if err != nil {
			logger.Warn().Err(err).Msg("mysql init failed")
			initErrors = append(initErrors, "mysql: "+err.Error())
		} else {
			s.MySQL = db
		}
	}
	if cfg.Redis.Enabled {
		enabled++
		r, err := NewRedisAdapter(&cfg.Redis)
		if err != nil {
			logger.Warn().Err(err).Msg("redis init failed")
			initErrors = append(initErrors, "redis: "+err.Error())
		} else {
			s.Redis = r
		}
	}

	if enabled > 0 && len(initErrors) == enabled {
		return nil, fmt.Errorf("all storage backends failed: %s", strings.Join(initErrors, "; "))
	}
	if len(initErrors) > 0 {
		logger.Warn().Strs("failed", initErrors).Msg("running with degraded storage")
	}
	return s, nil
}

// Close closes every open backend.
func (s *Storage) Close() {
	if s.RabbitMQ != nil {
		if err := s.RabbitMQ.Close(); err != nil {
			logger.Warn().Err(err).Msg("close rabbitmq")
		}
	}
	if s.MySQL != nil {
		if err := s.MySQL.Close(); err != nil {
			logger.Warn().Err(err).Msg("close mysql")
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			logger.Warn().Err(err).Msg("close redis")
		}
	}
}

// VectorCache returns the Redis vector cache, or nil without Redis.
func (s *Storage) VectorCache() nlp.VectorCache {
	if s == nil || s.Redis == nil {
		return nil
	}
	return s.Redis
}

// CheckDuplicate records md5 for documentID and reports whether an earlier
// upload had the same bytes. Redis is consulted first, then MySQL.
func (s *Storage) CheckDuplicate(ctx context.Context, md5, documentID string) (bool, string, error) {
	if s.Redis != nil {
		return s.Redis.CheckAndRecordFileMD5(ctx, md5, documentID)
	}
	if s.MySQL != nil {
		doc, err := s.MySQL.FindDocumentByMD5(ctx, md5)
		if errors.Is(err, ErrNotFound) {
			return false, "", nil
		}
		if err != nil {
			return false, "", err
		}
		return true, doc.DocumentID, nil
	}
	return false, "", nil
}

// ForgetFile undoes CheckDuplicate after a failed save.
func (s *Storage) ForgetFile(ctx context.Context, md5 string) {
	if s.Redis == nil || md5 == "" {
		return
	}
	if err := s.Redis.RemoveFileMD5(ctx, md5); err != nil {
		logger.Warn().Err(err).Str("md5", md5).Msg("failed to forget file md5")
	}
}

func (s *Storage) uploadObjects(ctx context.Context, documentID, filename string, content []byte, text string) (string, string) {
	if s.MinIO == nil {
		return "", ""
	}
	origKey, err := s.MinIO.UploadOriginal(ctx, documentID, filename, content)
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("document_id", documentID).Msg("original not stored")
		origKey = ""
	}
	textKey, err := s.MinIO.UploadExtractedText(ctx, documentID, text)
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("document_id", documentID).Msg("extracted text not stored")
		textKey = ""
	}
	return origKey, textKey
}

// SaveResume stores the objects, then the document, candidate and event rows.
func (s *Storage) SaveResume(ctx context.Context, rec *ResumeRecord) error {
	ctx, span := storageTracer.Start(ctx, "Storage.SaveResume")
	defer span.End()
	span.SetAttributes(attribute.String("document.id", rec.DocumentID))

	if s.MySQL == nil {
		return ErrUnavailable
	}
	origKey, textKey := s.uploadObjects(ctx, rec.DocumentID, rec.Filename, rec.Content, rec.Text)

	doc := &models.Document{
		DocumentID:        rec.DocumentID,
		Kind:              models.KindResume,
		OriginalFilename:  rec.Filename,
		Format:            string(rec.Format),
		FileMD5:           rec.FileMD5,
		OriginalObjectKey: origKey,
		TextObjectKey:     textKey,
		TextLength:        len(rec.Text),
		ExtractorVersion:  constants.ExtractorVersion,
	}
	cand := models.NewCandidate(rec.CandidateID, rec.DocumentID, rec.Profile)
	event, err := s.newOutboxMessage(rec.DocumentID, constants.EventResumeExtracted, s.events.ResumeRoutingKey, ResumeExtractedEvent{
		DocumentID:       rec.DocumentID,
		CandidateID:      rec.CandidateID,
		OriginalFilename: rec.Filename,
		FileMD5:          rec.FileMD5,
		TextObjectKey:    textKey,
		FoundFields:      rec.Profile.FoundFields(),
		Skills:           rec.Profile.SkillList(),
		ExtractorVersion: constants.ExtractorVersion,
		ExtractedAt:      time.Now(),
	})
	if err != nil {
		return err
	}
	return s.MySQL.CreateResume(ctx, doc, cand, event)
}

// SaveContract stores the objects, then the document and event rows.
func (s *Storage) SaveContract(ctx context.Context, rec *ContractRecord) error {
	ctx, span := storageTracer.Start(ctx, "Storage.SaveContract")
	defer span.End()
	span.SetAttributes(attribute.String("document.id", rec.DocumentID), attribute.Int("entity.count", len(rec.Entities)))

	if s.MySQL == nil {
		return ErrUnavailable
	}
	origKey, textKey := s.uploadObjects(ctx, rec.DocumentID, rec.Filename, rec.Content, rec.Text)

	entities, err := json.Marshal(rec.Entities)
	if err != nil {
		return fmt.Errorf("marshal entities: %w", err)
	}
	doc := &models.Document{
		DocumentID:        rec.DocumentID,
		Kind:              models.KindContract,
		Title:             rec.Title,
		OriginalFilename:  rec.Filename,
		Format:            string(rec.Format),
		FileMD5:           rec.FileMD5,
		OriginalObjectKey: origKey,
		TextObjectKey:     textKey,
		TextLength:        len(rec.Text),
		Entities:          entities,
		ExtractorVersion:  constants.ExtractorVersion,
	}
	event, err := s.newOutboxMessage(rec.DocumentID, constants.EventContractExtracted, s.events.DocumentRoutingKey,
		ContractEvent(rec, time.Now()))
	if err != nil {
		return err
	}
	return s.MySQL.CreateContract(ctx, doc, event)
}

// ContractEvent summarises a contract record for publishing.
func ContractEvent(rec *ContractRecord, at time.Time) ContractExtractedEvent {
	counts := make(map[string]int)
	for _, e := range rec.Entities {
		counts[e.Type]++
	}
	return ContractExtractedEvent{
		DocumentID:       rec.DocumentID,
		Title:            rec.Title,
		OriginalFilename: rec.Filename,
		EntityCount:      len(rec.Entities),
		EntityTypes:      counts,
		ExtractorVersion: constants.ExtractorVersion,
		ExtractedAt:      at,
	}
}

// newOutboxMessage returns nil when no broker is configured, so nothing is queued.
func (s *Storage) newOutboxMessage(aggregateID, eventType, routingKey string, payload interface{}) (*models.OutboxMessage, error) {
	if !s.events.Enabled || s.events.EventsExchange == "" {
		return nil, nil
	}
	return NewOutboxMessage(aggregateID, eventType, s.events.EventsExchange, routingKey, payload)
}

// NewOutboxMessage builds a pending outbox row with a fresh message ID.
func NewOutboxMessage(aggregateID, eventType, exchange, routingKey string, payload interface{}) (*models.OutboxMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return &models.OutboxMessage{
		MessageID:        uuid.NewString(),
		AggregateID:      aggregateID,
		EventType:        eventType,
		Payload:          string(body),
		TargetExchange:   exchange,
		TargetRoutingKey: routingKey,
		Status:           models.OutboxPending,
	}, nil
}

// GetResume loads a candidate with its document.
func (s *Storage) GetResume(ctx context.Context, candidateID string) (*models.Candidate, error) {
	if s.MySQL == nil {
		return nil, ErrUnavailable
	}
	return s.MySQL.GetCandidate(ctx, candidateID)
}

// ListResumes returns one page of candidates.
func (s *Storage) ListResumes(ctx context.Context, offset, limit int) ([]models.Candidate, int64, error) {
	if s.MySQL == nil {
		return nil, 0, ErrUnavailable
	}
	return s.MySQL.ListCandidates(ctx, offset, limit)
}

// DeleteResume removes the candidate, its document, objects and dedup record.
func (s *Storage) DeleteResume(ctx context.Context, candidateID string) error {
	if s.MySQL == nil {
		return ErrUnavailable
	}
	event, err := s.newOutboxMessage(candidateID, constants.EventResumeDeleted, s.events.ResumeRoutingKey, ResumeDeletedEvent{
		CandidateID: candidateID,
		DeletedAt:   time.Now(),
	})
	if err != nil {
		return err
	}
	doc, err := s.MySQL.DeleteCandidate(ctx, candidateID, event)
	if err != nil {
		return err
	}
	if s.MinIO != nil {
		if err := s.MinIO.DeleteDocumentObjects(ctx, doc.OriginalObjectKey, doc.TextObjectKey); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("document_id", doc.DocumentID).Msg("objects not removed")
		}
	}
	s.ForgetFile(ctx, doc.FileMD5)
	return nil
}

// GetDocument loads a document row.
func (s *Storage) GetDocument(ctx context.Context, documentID string) (*models.Document, error) {
	if s.MySQL == nil {
		return nil, ErrUnavailable
	}
	return s.MySQL.GetDocument(ctx, documentID)
}

// LoadSettings reads the settings through the Redis cache. Without MySQL
// the defaults are returned.
func (s *Storage) LoadSettings(ctx context.Context, defaults types.ExtractionSettings) (types.ExtractionSettings, error) {
	if s.Redis != nil {
		cached, ok, err := s.Redis.GetCachedSettings(ctx)
		if err != nil {
			logger.Ctx(ctx).Warn().Err(err).Msg("settings cache read failed")
		} else if ok {
			return cached, nil
		}
	}
	if s.MySQL == nil {
		return defaults, nil
	}
	settings, err := s.MySQL.LoadSettings(ctx, defaults)
	if err != nil {
		return defaults, err
	}
	if s.Redis != nil {
		if err := s.Redis.CacheSettings(ctx, settings); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Msg("settings cache write failed")
		}
	}
	return settings, nil
}

// SaveSettings writes the settings row and drops the cached copy.
func (s *Storage) SaveSettings(ctx context.Context, settings types.ExtractionSettings) error {
	if s.MySQL == nil {
		return ErrUnavailable
	}
	if err := s.MySQL.SaveSettings(ctx, settings); err != nil {
		return err
	}
	if s.Redis != nil {
		if err := s.Redis.InvalidateSettings(ctx); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Msg("settings cache invalidation failed")
		}
	}
	return nil
}

// LogProfessionQuery records a suggestion request. Without MySQL it is a no-op.
func (s *Storage) LogProfessionQuery(ctx context.Context, text string, res types.ProfessionResult) error {
	if s.MySQL == nil {
		return nil
	}
	suggestions, err := json.Marshal(res.Suggestions)
	if err != nil {
		return err
	}
	q := &models.ProfessionQuery{InputText: text, Suggestions: suggestions}
	if res.Toxicity != nil {
		q.ToxicityDetected = res.Toxicity.Detected
		q.ToxicityConfidence = res.Toxicity.Confidence
	}
	return s.MySQL.CreateProfessionQuery(ctx, q)
}
