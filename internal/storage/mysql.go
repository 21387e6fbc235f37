package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"docintel-go/internal/config"
	"docintel-go/internal/constants"
	"docintel-go/internal/logger"
	"docintel-go/internal/storage/models"
	"docintel-go/internal/tracing"
	"docintel-go/internal/types"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

var mysqlTracer = otel.Tracer("docintel-go/storage/mysql")

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("storage: record not found")

type spanKey struct{}

// GormTracingPlugin opens a client span around every GORM statement.
type GormTracingPlugin struct {
	tracer trace.Tracer
	dbName string
}

// NewGormTracingPlugin returns a plugin reporting dbName on its spans.
func NewGormTracingPlugin(dbName string) *GormTracingPlugin {
	return &GormTracingPlugin{tracer: mysqlTracer, dbName: dbName}
}

// Name implements gorm.Plugin.
func (p *GormTracingPlugin) Name() string { return "GormOpenTelemetryPlugin" }

// Initialize registers before/after callbacks for each statement kind.
func (p *GormTracingPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	if err := cb.Create().Before("gorm:create").Register("otel:before_create", p.before("CREATE")); err != nil {
		return err
	}
	if err := cb.Create().After("gorm:create").Register("otel:after_create", p.after); err != nil {
		return err
	}
	if err := cb.Query().Before("gorm:query").Register("otel:before_query", p.before("SELECT")); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register("otel:after_query", p.after); err != nil {
		return err
	}
	if err := cb.Update().Before("gorm:update").Register("otel:before_update", p.before("UPDATE")); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("otel:after_update", p.after); err != nil {
		return err
	}
	if err := cb.Delete().Before("gorm:delete").Register("otel:before_delete", p.before("DELETE")); err != nil {
		return err
	}
	if err := cb.Delete().After("gorm:delete").Register("otel:after_delete", p.after); err != nil {
		return err
	}
	if err := cb.Row().Before("gorm:row").Register("otel:before_row", p.before("ROW")); err != nil {
		return err
	}
	if err := cb.Row().After("gorm:row").Register("otel:after_row", p.after); err != nil {
		return err
	}
	if err := cb.Raw().Before("gorm:raw").Register("otel:before_raw", p.before("RAW")); err != nil {
		return err
	}
	return cb.Raw().After("gorm:raw").Register("otel:after_raw", p.after)
}

func (p *GormTracingPlugin) before(operation string) func(db *gorm.DB) {
	return func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}
		table := db.Statement.Table
		if table == "" {
			table = "unknown"
		}
		ctx, span := p.tracer.Start(ctx, operation+" "+table,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				semconv.DBSystemMySQL,
				attribute.String("db.name", p.dbName),
				attribute.String("db.operation", operation),
				attribute.String("db.sql.table", table),
			))
		db.Statement.Context = context.WithValue(ctx, spanKey{}, span)
	}
}

func (p *GormTracingPlugin) after(db *gorm.DB) {
	span, ok := db.Statement.Context.Value(spanKey{}).(trace.Span)
	if !ok {
		return
	}
	defer span.End()
	span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	switch {
	case db.Error == nil:
		span.SetStatus(codes.Ok, "")
	case errors.Is(db.Error, gorm.ErrRecordNotFound):
		span.SetAttributes(attribute.String("error.type", "record_not_found"))
	default:
		tracing.RecordErrorWithInfo(span, db.Error, tracing.ErrorTypeDB,
			attribute.String("db.statement", tracing.SafeSQL(db.Statement.SQL.String())))
	}
}

// gormWriter routes GORM's logger through zerolog.
type gormWriter struct{ log zerolog.Logger }

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.log.Info().Msgf(format, args...)
}

// MySQL is the relational store for documents, candidates, settings,
// profession queries and the outbox.
type MySQL struct {
	db  *gorm.DB
	cfg *config.MySQLConfig
}

// NewMySQL connects, installs the tracing plugin and migrates the schema.
func NewMySQL(cfg *config.MySQLConfig) (*MySQL, error) {
	if cfg == nil {
		return nil, fmt.Errorf("mysql config is nil")
	}
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=%ds&readTimeout=%ds&writeTimeout=%ds",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
		cfg.ConnectTimeoutSeconds, cfg.ReadTimeoutSeconds, cfg.WriteTimeoutSeconds)

	gormCfg := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger: gormlogger.New(gormWriter{log: logger.Component("gorm")}, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormLogLevel(cfg.LogLevel),
			IgnoreRecordNotFoundError: true,
		}),
		PrepareStmt: true,
	}

	db, err := gorm.Open(mysql.Open(dsn), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("connect mysql: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute)

	if err := db.Use(NewGormTracingPlugin(cfg.Database)); err != nil {
		return nil, fmt.Errorf("register tracing plugin: %w", err)
	}

	m := &MySQL{db: db, cfg: cfg}
	if err := m.autoMigrateSchema(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	logger.Info().Str("database", cfg.Database).Msg("mysql connected and migrated")
	return m, nil
}

func gormLogLevel(level int) gormlogger.LogLevel {
	switch level {
	case 1:
		return gormlogger.Silent
	case 2:
		return gormlogger.Error
	case 3:
		return gormlogger.Warn
	case 4:
		return gormlogger.Info
	}
	return gormlogger.Warn
}

func (m *MySQL) autoMigrateSchema() error {
	silent := m.db.Session(&gorm.Session{Logger: m.db.Logger.LogMode(gormlogger.Silent)})
	err := silent.AutoMigrate(
		&models.Document{},
		&models.Candidate{},
		&models.ExtractionSettings{},
		&models.ProfessionQuery{},
		&models.OutboxMessage{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// DB returns the GORM handle.
func (m *MySQL) DB() *gorm.DB { return m.db }

// Close closes the pool.
func (m *MySQL) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// CreateResume writes the document, its candidate and the event in one transaction.
func (m *MySQL) CreateResume(ctx context.Context, doc *models.Document, cand *models.Candidate, event *models.OutboxMessage) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(doc).Error; err != nil {
			return fmt.Errorf("insert document: %w", err)
		}
		if err := tx.Create(cand).Error; err != nil {
			return fmt.Errorf("insert candidate: %w", err)
		}
		if event != nil {
			if err := tx.Create(event).Error; err != nil {
				return fmt.Errorf("insert outbox message: %w", err)
			}
		}
		return nil
	})
}

// CreateContract writes the document and the event in one transaction.
func (m *MySQL) CreateContract(ctx context.Context, doc *models.Document, event *models.OutboxMessage) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(doc).Error; err != nil {
			return fmt.Errorf("insert document: %w", err)
		}
		if event != nil {
			if err := tx.Create(event).Error; err != nil {
				return fmt.Errorf("insert outbox message: %w", err)
			}
		}
		return nil
	})
}

// GetCandidate loads a candidate with its document.
func (m *MySQL) GetCandidate(ctx context.Context, candidateID string) (*models.Candidate, error) {
	var c models.Candidate
	err := m.db.WithContext(ctx).Preload("Document").First(&c, "candidate_id = ?", candidateID).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// ListCandidates returns one page, newest first, and the total count.
func (m *MySQL) ListCandidates(ctx context.Context, offset, limit int) ([]models.Candidate, int64, error) {
	var total int64
	if err := m.db.WithContext(ctx).Model(&models.Candidate{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []models.Candidate
	err := m.db.WithContext(ctx).Order("created_at desc").Offset(offset).Limit(limit).Find(&out).Error
	return out, total, err
}

// DeleteCandidate removes the candidate and its document and writes the
// event. It returns the removed document so its objects can be cleaned up.
func (m *MySQL) DeleteCandidate(ctx context.Context, candidateID string, event *models.OutboxMessage) (*models.Document, error) {
	var doc models.Document
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c models.Candidate
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&c, "candidate_id = ?", candidateID).Error; err != nil {
			return notFound(err)
		}
		if err := tx.First(&doc, "document_id = ?", c.DocumentID).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := tx.Delete(&models.Candidate{}, "candidate_id = ?", candidateID).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Document{}, "document_id = ?", c.DocumentID).Error; err != nil {
			return err
		}
		if event != nil {
			return tx.Create(event).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// GetDocument loads a document by ID.
func (m *MySQL) GetDocument(ctx context.Context, documentID string) (*models.Document, error) {
	var d models.Document
	if err := m.db.WithContext(ctx).First(&d, "document_id = ?", documentID).Error; err != nil {
		return nil, notFound(err)
	}
	return &d, nil
}

// FindDocumentByMD5 returns the oldest document with the given file hash.
func (m *MySQL) FindDocumentByMD5(ctx context.Context, md5 string) (*models.Document, error) {
	var d models.Document
	err := m.db.WithContext(ctx).Where("file_md5 = ?", md5).Order("created_at asc").First(&d).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &d, nil
}

// LoadSettings returns the settings row, creating it from defaults when absent.
func (m *MySQL) LoadSettings(ctx context.Context, defaults types.ExtractionSettings) (types.ExtractionSettings, error) {
	row := models.ExtractionSettings{ID: constants.SettingsRowID}
	err := m.db.WithContext(ctx).
		Attrs(models.ExtractionSettings{
			ExtractExperience: defaults.ExtractExperience,
			ExtractSkills:     defaults.ExtractSkills,
			ExtractEducation:  defaults.ExtractEducation,
			ExtractLanguages:  defaults.ExtractLanguages,
		}).
		FirstOrCreate(&row, models.ExtractionSettings{ID: constants.SettingsRowID}).Error
	if err != nil {
		return defaults, err
	}
	return row.Switches(), nil
}

// SaveSettings upserts the settings row.
func (m *MySQL) SaveSettings(ctx context.Context, s types.ExtractionSettings) error {
	row := models.ExtractionSettings{
		ID:                constants.SettingsRowID,
		ExtractExperience: s.ExtractExperience,
		ExtractSkills:     s.ExtractSkills,
		ExtractEducation:  s.ExtractEducation,
		ExtractLanguages:  s.ExtractLanguages,
	}
	// Select("*") so false values are written.
	return m.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Select("*").Create(&row).Error
}

// CreateProfessionQuery logs a suggestion request.
func (m *MySQL) CreateProfessionQuery(ctx context.Context, q *models.ProfessionQuery) error {
	return m.db.WithContext(ctx).Create(q).Error
}
