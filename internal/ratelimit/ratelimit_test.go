package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucketAllow(t *testing.T) {
	now := time.Unix(1000, 0)
	tb := NewTokenBucket(60, 2)
	tb.now = func() time.Time { return now }

	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())

	now = now.Add(time.Second)
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())

	now = now.Add(time.Hour)
	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow(), "refill is capped at capacity")
}

func TestWaitHonoursContext(t *testing.T) {
	tb := NewTokenBucket(1, 1)
	require.True(t, tb.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, tb.Wait(ctx), "next token is a minute away")

	cancelled, stop := context.WithCancel(context.Background())
	stop()
	assert.ErrorIs(t, NewTokenBucket(60, 1).Wait(cancelled), context.Canceled)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(errors.New("status 429: Throttling.RateQuota")))
	assert.True(t, IsRetryable(errors.New("read tcp: connection reset by peer")))
	assert.False(t, IsRetryable(errors.New("status 401: invalid api key")))
	assert.False(t, IsRetryable(nil))
}

type flakyEmbedder struct {
	failures int
	err      error
	calls    int
}

func (f *flakyEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	out := make([][]float64, len(texts))
	for i := range out {
		out[i] = []float64{1}
	}
	return out, nil
}

func TestEmbedderRetriesTransientErrors(t *testing.T) {
	inner := &flakyEmbedder{failures: 2, err: errors.New("status 429")}
	e := NewEmbedder(inner, 6000, 3, time.Millisecond)

	vecs, err := e.EmbedStrings(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)
	assert.Equal(t, 3, inner.calls)
}

func TestEmbedderStopsOnPermanentError(t *testing.T) {
	inner := &flakyEmbedder{failures: 5, err: errors.New("status 401")}
	e := NewEmbedder(inner, 6000, 3, time.Millisecond)

	_, err := e.EmbedStrings(context.Background(), []string{"a"})
	assert.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}
