package nlp

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"hash/fnv"
	"math"

	"docintel-go/internal/logger"
	"docintel-go/internal/textnorm"

	"github.com/cloudwego/eino/components/embedding"
)

// DefaultHashingDimensions is the vector size of the offline embedder.
const DefaultHashingDimensions = 512

// HashingEmbedder maps text to signed character-trigram count vectors.
// It needs no model files or network, and inflected forms of one word
// ("músicas", "música") land close together.
type HashingEmbedder struct {
	dims int
}

var _ embedding.Embedder = (*HashingEmbedder)(nil)

// NewHashingEmbedder returns an embedder with dims dimensions (512 when dims <= 0).
func NewHashingEmbedder(dims int) *HashingEmbedder {
	if dims <= 0 {
		dims = DefaultHashingDimensions
	}
	return &HashingEmbedder{dims: dims}
}

// Dimensions returns the vector size.
func (h *HashingEmbedder) Dimensions() int { return h.dims }

// EmbedStrings implements embedding.Embedder.
func (h *HashingEmbedder) EmbedStrings(ctx context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.Vector(t)
	}
	return out, nil
}

// Vector embeds one text.
func (h *HashingEmbedder) Vector(text string) []float64 {
	vec := make([]float64, h.dims)
	for _, tok := range Tokenize(text) {
		if !tok.IsWord() {
			continue
		}
		padded := []rune("<" + textnorm.Fold(tok.Text) + ">")
		for i := 0; i+3 <= len(padded); i++ {
			hs := fnv.New64a()
			_, _ = hs.Write([]byte(string(padded[i : i+3])))
			sum := hs.Sum64()
			idx := int(sum % uint64(h.dims))
			if sum&(1<<63) != 0 {
				vec[idx]--
			} else {
				vec[idx]++
			}
		}
	}
	normalize(vec)
	return vec
}

func normalize(v []float64) {
	var n float64
	for _, x := range v {
		n += x * x
	}
	if n == 0 {
		return
	}
	n = math.Sqrt(n)
	for i := range v {
		v[i] /= n
	}
}

// Cosine returns the cosine similarity of a and b, or 0 when either is empty
// or their lengths differ.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// VectorCache stores embedding vectors by key.
type VectorCache interface {
	GetVector(ctx context.Context, key string) ([]float64, bool, error)
	SetVector(ctx context.Context, key string, vector []float64) error
}

// CachedEmbedder consults a VectorCache before calling the wrapped embedder.
// Cache failures are logged and never fail the call.
type CachedEmbedder struct {
	inner     embedding.Embedder
	cache     VectorCache
	namespace string
}

var _ embedding.Embedder = (*CachedEmbedder)(nil)

// NewCachedEmbedder wraps inner. namespace separates vectors of different models.
func NewCachedEmbedder(inner embedding.Embedder, cache VectorCache, namespace string) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: cache, namespace: namespace}
}

func (c *CachedEmbedder) key(text string) string {
	sum := sha1.Sum([]byte(text))
	return c.namespace + ":" + hex.EncodeToString(sum[:])
}

// EmbedStrings implements embedding.Embedder.
func (c *CachedEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	out := make([][]float64, len(texts))
	var missIdx []int
	var missTexts []string
	for i, t := range texts {
		vec, ok, err := c.cache.GetVector(ctx, c.key(t))
		if err != nil {
			logger.Warn().Err(err).Str("namespace", c.namespace).Msg("embedding cache read failed")
		}
		if ok {
			out[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}
	if len(missTexts) == 0 {
		return out, nil
	}
	vecs, err := c.inner.EmbedStrings(ctx, missTexts, opts...)
	if err != nil {
		return nil, err
	}
	for k, i := range missIdx {
		if k >= len(vecs) {
			break
		}
		out[i] = vecs[k]
		if err := c.cache.SetVector(ctx, c.key(missTexts[k]), vecs[k]); err != nil {
			logger.Warn().Err(err).Str("namespace", c.namespace).Msg("embedding cache write failed")
		}
	}
	return out, nil
}
