package storage

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"docintel-go/internal/config"
	"docintel-go/internal/constants"
	"docintel-go/internal/storage/models"
	"docintel-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStorage_NothingEnabled(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.MinIO.Enabled, cfg.RabbitMQ.Enabled, cfg.MySQL.Enabled, cfg.Redis.Enabled = false, false, false, false

	s, err := NewStorage(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, s.MySQL)
	assert.Nil(t, s.Redis)
	assert.Nil(t, s.VectorCache())
	s.Close()
}

func TestNewStorage_NilConfig(t *testing.T) {
	_, err := NewStorage(context.Background(), nil)
	assert.Error(t, err)
}

func TestStorage_WithoutBackends(t *testing.T) {
	ctx := context.Background()
	s := &Storage{}

	dup, existing, err := s.CheckDuplicate(ctx, "abc", "doc-1")
	require.NoError(t, err)
	assert.False(t, dup)
	assert.Empty(t, existing)

	defaults := types.ExtractionSettings{ExtractSkills: true}
	got, err := s.LoadSettings(ctx, defaults)
	require.NoError(t, err)
	assert.Equal(t, defaults, got)

	assert.ErrorIs(t, s.SaveResume(ctx, &ResumeRecord{DocumentID: "doc-1"}), ErrUnavailable)
	assert.ErrorIs(t, s.SaveContract(ctx, &ContractRecord{DocumentID: "doc-1"}), ErrUnavailable)
	assert.ErrorIs(t, s.SaveSettings(ctx, defaults), ErrUnavailable)
	assert.ErrorIs(t, s.DeleteResume(ctx, "cand-1"), ErrUnavailable)
	_, err = s.GetDocument(ctx, "doc-1")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.NoError(t, s.LogProfessionQuery(ctx, "texto", types.ProfessionResult{}))
	s.ForgetFile(ctx, "abc")
}

func TestNewOutboxMessage(t *testing.T) {
	msg, err := NewOutboxMessage("doc-1", constants.EventResumeExtracted, "docintel.events", "resume.extracted",
		ResumeDeletedEvent{CandidateID: "cand-1", DocumentID: "doc-1"})
	require.NoError(t, err)
	assert.Len(t, msg.MessageID, 36)
	assert.Equal(t, models.OutboxPending, msg.Status)
	assert.Equal(t, "docintel.events", msg.TargetExchange)
	assert.Equal(t, "resume.extracted", msg.TargetRoutingKey)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &payload))
	assert.Equal(t, "cand-1", payload["candidate_id"])

	other, err := NewOutboxMessage("doc-1", constants.EventResumeExtracted, "x", "y", struct{}{})
	require.NoError(t, err)
	assert.NotEqual(t, msg.MessageID, other.MessageID)
}

func TestStorage_OutboxDisabled(t *testing.T) {
	s := &Storage{events: config.RabbitMQConfig{Enabled: false, EventsExchange: "docintel.events"}}
	msg, err := s.newOutboxMessage("doc-1", constants.EventContractExtracted, "document.extracted", struct{}{})
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestContractEvent(t *testing.T) {
	at := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	rec := &ContractRecord{
		DocumentID: "doc-1",
		Title:      "Prestação de serviços",
		Entities: []types.ExtractedEntity{
			{Text: "123.456.789-09", Type: "CPF"},
			{Text: "São Paulo", Type: "Local"},
			{Text: "Rio de Janeiro", Type: "Local"},
		},
	}
	ev := ContractEvent(rec, at)
	assert.Equal(t, 3, ev.EntityCount)
	assert.Equal(t, map[string]int{"CPF": 1, "Local": 2}, ev.EntityTypes)
	assert.Equal(t, constants.ExtractorVersion, ev.ExtractorVersion)
	assert.Equal(t, at, ev.ExtractedAt)
}

func TestVectorEncoding(t *testing.T) {
	in := []float64{0.5, -1.25, 0, 3}
	out, err := decodeVector(encodeVector(in))
	require.NoError(t, err)
	assert.InDeltaSlice(t, in, out, 1e-6)

	_, err = decodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestObjectKeys(t *testing.T) {
	assert.Equal(t, "documents/abc/original.pdf", OriginalObjectKey("abc", "CV Maria.PDF"))
	assert.Equal(t, "documents/abc/original", OriginalObjectKey("abc", "sem-extensao"))
	assert.Equal(t, "documents/abc/text.txt", TextObjectKey("abc"))
	assert.Equal(t, "application/pdf", contentTypeFor("cv.pdf"))
	assert.Equal(t, "application/octet-stream", contentTypeFor("notes.txt"))
}

func TestModels(t *testing.T) {
	p := types.CandidateProfile{Name: types.StringPtr("Maria Silva"), Skills: types.StringPtr("docker, python")}
	c := models.NewCandidate("cand-1", "doc-1", p)
	assert.Equal(t, p, c.Profile())

	entities := []types.ExtractedEntity{{Text: "São Paulo", Type: "Local", Span: &types.Span{Start: 3, End: 13}}}
	raw, err := json.Marshal(entities)
	require.NoError(t, err)
	got, err := models.Document{Entities: raw}.EntityList()
	require.NoError(t, err)
	assert.Equal(t, entities, got)

	none, err := models.Document{}.EntityList()
	require.NoError(t, err)
	assert.Nil(t, none)

	row := models.ExtractionSettings{ExtractSkills: true, ExtractLanguages: true}
	assert.Equal(t, types.ExtractionSettings{ExtractSkills: true, ExtractLanguages: true}, row.Switches())
}
