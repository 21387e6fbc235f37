package ratelimit

import (
	"context"
	"time"

	"github.com/cloudwego/eino/components/embedding"
)

// Embedder wraps a remote embedder with a limiter and retries.
type Embedder struct {
	original embedding.Embedder
	limiter  *TokenBucket
}

var _ embedding.Embedder = (*Embedder)(nil)

// NewEmbedder limits original to qpm requests per minute. maxRetries and
// retryWait fall back to 3 and one second when not positive.
func NewEmbedder(original embedding.Embedder, qpm, maxRetries int, retryWait time.Duration) *Embedder {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryWait <= 0 {
		retryWait = time.Second
	}
	return &Embedder{
		original: original,
		limiter:  NewTokenBucket(qpm, qpm/2).WithRetryPolicy(retryWait, maxRetries),
	}
}

func (e *Embedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	var out [][]float64
	err := e.limiter.RetryWithBackoff(ctx, func() error {
		var embedErr error
		out, embedErr = e.original.EmbedStrings(ctx, texts, opts...)
		return embedErr
	})
	return out, err
}
