package outbox

import (
	"context"
	"encoding/json"

	"docintel-go/internal/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AuditEntry is the subset of an extraction event written to the audit log.
type AuditEntry struct {
	DocumentID  string         `json:"document_id"`
	CandidateID string         `json:"candidate_id"`
	FoundFields int            `json:"found_fields"`
	EntityCount int            `json:"entity_count"`
	EntityTypes map[string]int `json:"entity_types"`
}

// AuditHandler logs every extraction event from the audit queue. Messages
// that are not valid JSON are acknowledged and dropped.
func AuditHandler(ctx context.Context, d amqp.Delivery) bool {
	var entry AuditEntry
	if err := json.Unmarshal(d.Body, &entry); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("message_id", d.MessageId).Msg("dropping malformed audit message")
		return true
	}
	ev := logger.Ctx(ctx).Info().
		Str("routing_key", d.RoutingKey).
		Str("message_id", d.MessageId).
		Str("document_id", entry.DocumentID)
	if entry.CandidateID != "" {
		ev = ev.Str("candidate_id", entry.CandidateID).Int("found_fields", entry.FoundFields)
	}
	if entry.EntityCount > 0 {
		ev = ev.Int("entity_count", entry.EntityCount).Interface("entity_types", entry.EntityTypes)
	}
	ev.Msg("extraction event")
	return true
}
