// Package outbox publishes events written to the outbox table.
package outbox

import (
	"context"
	"time"

	"docintel-go/internal/config"
	"docintel-go/internal/logger"
	"docintel-go/internal/storage/models"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultPollingInterval = 5 * time.Second
	defaultBatchSize       = 10
	maxRetryCount          = 5
)

// Publisher sends one message to the broker.
type Publisher interface {
	PublishMessage(ctx context.Context, exchange, routingKey, messageID string, body []byte) error
}

// MessageRelay polls the outbox table and publishes pending messages.
type MessageRelay struct {
	db              *gorm.DB
	publisher       Publisher
	log             zerolog.Logger
	pollingInterval time.Duration
	batchSize       int
	done            chan struct{}
	stopped         chan struct{}
	tracer          trace.Tracer
}

// NewMessageRelay builds a relay using the interval and batch size from cfg.
func NewMessageRelay(db *gorm.DB, publisher Publisher, cfg config.RabbitMQConfig) *MessageRelay {
	interval := config.GetDuration(cfg.OutboxPollInterval, defaultPollingInterval)
	batch := cfg.OutboxBatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	return &MessageRelay{
		db:              db,
		publisher:       publisher,
		log:             logger.Component("outbox"),
		pollingInterval: interval,
		batchSize:       batch,
		done:            make(chan struct{}),
		stopped:         make(chan struct{}),
		tracer:          otel.Tracer("docintel-go/outbox"),
	}
}

// Start polls in a background goroutine until Stop is called.
func (r *MessageRelay) Start() {
	r.log.Info().Dur("interval", r.pollingInterval).Int("batch", r.batchSize).Msg("message relay starting")
	ticker := time.NewTicker(r.pollingInterval)
	go func() {
		defer close(r.stopped)
		defer ticker.Stop()
		for {
			select {
			case <-r.done:
				r.log.Info().Msg("message relay stopped")
				return
			case <-ticker.C:
				if err := r.processPendingMessages(context.Background()); err != nil {
					r.log.Error().Err(err).Msg("processing pending outbox messages")
				}
			}
		}
	}()
}

// Stop ends polling and waits for the current batch to finish.
func (r *MessageRelay) Stop() {
	close(r.done)
	<-r.stopped
}

func (r *MessageRelay) processPendingMessages(ctx context.Context) error {
	var messages []models.OutboxMessage

	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	defer tx.Rollback()

	// SKIP LOCKED lets several relays share the table.
	err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("status = ?", models.OutboxPending).
		Order("created_at asc").
		Limit(r.batchSize).
		Find(&messages).Error
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		return tx.Commit().Error
	}

	ctx, span := r.tracer.Start(ctx, "outbox.ProcessBatch",
		trace.WithAttributes(attribute.Int("messaging.batch.message_count", len(messages))))
	defer span.End()

	for i := range messages {
		msg := &messages[i]
		err := r.publisher.PublishMessage(ctx, msg.TargetExchange, msg.TargetRoutingKey, msg.MessageID, []byte(msg.Payload))
		applyResult(msg, err, time.Now())
		if err != nil {
			r.log.Warn().Err(err).Uint64("id", msg.ID).Str("aggregate_id", msg.AggregateID).
				Int("retries", msg.RetryCount).Msg("publish failed")
		}
		if err := tx.Save(msg).Error; err != nil {
			return err
		}
	}
	return tx.Commit().Error
}

// applyResult updates the row after a publish attempt. After maxRetryCount
// failures the message is marked failed and no longer picked up.
func applyResult(msg *models.OutboxMessage, err error, now time.Time) {
	if err != nil {
		msg.RetryCount++
		msg.ErrorMessage = err.Error()
		if msg.RetryCount >= maxRetryCount {
			msg.Status = models.OutboxFailed
		}
		return
	}
	msg.Status = models.OutboxSent
	msg.ProcessedAt = &now
	msg.ErrorMessage = ""
}
