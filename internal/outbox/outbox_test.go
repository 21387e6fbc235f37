package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"docintel-go/internal/config"
	"docintel-go/internal/storage/models"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyResult_Success(t *testing.T) {
	now := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	msg := &models.OutboxMessage{Status: models.OutboxPending, ErrorMessage: "earlier failure", RetryCount: 2}

	applyResult(msg, nil, now)
	assert.Equal(t, models.OutboxSent, msg.Status)
	require.NotNil(t, msg.ProcessedAt)
	assert.Equal(t, now, *msg.ProcessedAt)
	assert.Empty(t, msg.ErrorMessage)
	assert.Equal(t, 2, msg.RetryCount)
}

func TestApplyResult_RetriesThenFails(t *testing.T) {
	msg := &models.OutboxMessage{Status: models.OutboxPending}
	boom := errors.New("channel closed")

	for i := 1; i < maxRetryCount; i++ {
		applyResult(msg, boom, time.Now())
		assert.Equal(t, models.OutboxPending, msg.Status, "attempt %d", i)
		assert.Equal(t, i, msg.RetryCount)
	}
	applyResult(msg, boom, time.Now())
	assert.Equal(t, models.OutboxFailed, msg.Status)
	assert.Equal(t, "channel closed", msg.ErrorMessage)
	assert.Nil(t, msg.ProcessedAt)
}

func TestNewMessageRelay_Config(t *testing.T) {
	r := NewMessageRelay(nil, nil, config.RabbitMQConfig{OutboxPollInterval: "250ms", OutboxBatchSize: 3})
	assert.Equal(t, 250*time.Millisecond, r.pollingInterval)
	assert.Equal(t, 3, r.batchSize)

	r = NewMessageRelay(nil, nil, config.RabbitMQConfig{OutboxPollInterval: "soon"})
	assert.Equal(t, defaultPollingInterval, r.pollingInterval)
	assert.Equal(t, defaultBatchSize, r.batchSize)
}

func TestAuditHandler(t *testing.T) {
	ctx := context.Background()
	assert.True(t, AuditHandler(ctx, amqp.Delivery{
		RoutingKey: "resume.extracted",
		Body:       []byte(`{"document_id":"d1","candidate_id":"c1","found_fields":4}`),
	}))
	assert.True(t, AuditHandler(ctx, amqp.Delivery{
		RoutingKey: "document.extracted",
		Body:       []byte(`{"document_id":"d2","entity_count":2,"entity_types":{"CPF":2}}`),
	}))
	assert.True(t, AuditHandler(ctx, amqp.Delivery{Body: []byte("not json")}))
}
