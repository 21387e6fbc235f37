package tracing

import (
	"context"
	"errors"
	"testing"

	"docintel-go/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestMaskPII(t *testing.T) {
	cases := map[string]string{
		"":               "",
		"A":              "*",
		"Jo":             "J*",
		"Ana":            "A*a",
		"maria@mail.com": "ma**********om",
	}
	for in, want := range cases {
		assert.Equal(t, want, MaskPII(in), in)
	}
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "curto", TruncateString("curto", 10))
	assert.Equal(t, "abc", TruncateString("abcdef", 3))
	assert.Equal(t, "ab...ij", TruncateString("abcdefghij", 7))
	assert.Equal(t, "çã...õé", TruncateString("çãxxxxxxõé", 7))
}

func TestSafeAttributeValue(t *testing.T) {
	assert.Equal(t, "ma**********om", SafeAttributeValue("candidate.email", "maria@mail.com", 100))
	assert.Equal(t, "Jo******va", SafeAttributeValue("Nome", "João Silva", 100))
	assert.Equal(t, "pdf", SafeAttributeValue("document.format", "pdf", 100))
}

func TestRecordError(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	_, span := tp.Tracer("test").Start(context.Background(), "op")
	RecordHTTPError(span, errors.New("boom"), 503)
	RecordError(span, nil, ErrorTypeDB)
	span.End()

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "http", attrs["error.type"])
	assert.Equal(t, "server_error", attrs["error.category"])
	assert.Equal(t, "503", attrs["http.status_code"])
}

func TestInitProvider_Disabled(t *testing.T) {
	shutdown, err := InitProvider(context.Background(), config.TracingConfig{}, "test")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSampleRatio(t *testing.T) {
	assert.Equal(t, 1.0, SampleRatio(0))
	assert.Equal(t, 1.0, SampleRatio(3))
	assert.Equal(t, 0.25, SampleRatio(0.25))
}
