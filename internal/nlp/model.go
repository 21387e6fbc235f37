package nlp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"docintel-go/internal/config"
	"docintel-go/internal/logger"
	"docintel-go/internal/ratelimit"
	"docintel-go/internal/vocab"

	"github.com/cloudwego/eino/components/embedding"
)

// Model bundles the vocabulary, tagger, recognizer, skill matcher and
// embedder. It is read-only once built and safe for concurrent use.
type Model struct {
	tables       *vocab.Tables
	recognizer   *Recognizer
	skillMatcher *PhraseMatcher
	embedder     embedding.Embedder
}

// NewModel builds a model from loaded tables. A nil embedder selects the
// offline HashingEmbedder.
func NewModel(tables *vocab.Tables, embedder embedding.Embedder) *Model {
	if embedder == nil {
		embedder = NewHashingEmbedder(0)
	}
	return &Model{
		tables:       tables,
		recognizer:   NewRecognizer(tables),
		skillMatcher: NewPhraseMatcher(tables.SkillTerms()),
		embedder:     embedder,
	}
}

// NewModelFromConfig loads the tables and the configured embedder. cache may be nil.
func NewModelFromConfig(cfg config.NLPConfig, cache VectorCache) (*Model, error) {
	tables, err := vocab.Load(cfg.VocabDir)
	if err != nil {
		return nil, err
	}
	var emb embedding.Embedder
	namespace := "hashing"
	switch cfg.Embedding.Provider {
	case "", "hashing":
		emb = NewHashingEmbedder(cfg.Embedding.Dimensions)
	case "aliyun":
		a, err := NewAliyunEmbedder(cfg.Embedding)
		if err != nil {
			return nil, err
		}
		limited := ratelimit.NewEmbedder(a, cfg.Embedding.RequestsPerMinute, cfg.Embedding.MaxRetries, time.Second)
		emb, namespace = limited, "aliyun:"+a.Model()
	default:
		return nil, fmt.Errorf("nlp: unknown embedding provider %q", cfg.Embedding.Provider)
	}
	if cfg.Embedding.Cache && cache != nil {
		emb = NewCachedEmbedder(emb, cache, namespace)
	}
	return NewModel(tables, emb), nil
}

var (
	loadOnce     sync.Once
	processModel *Model
	loadErr      error
)

// Load builds the process-wide model on the first call and returns it on
// every later call; the configuration of later calls is ignored.
func Load(cfg config.NLPConfig, cache VectorCache) (*Model, error) {
	loadOnce.Do(func() {
		processModel, loadErr = NewModelFromConfig(cfg, cache)
		if loadErr == nil {
			logger.Info().
				Interface("vocab_versions", processModel.tables.Versions()).
				Str("embedding_provider", cfg.Embedding.Provider).
				Msg("language model loaded")
		}
	})
	return processModel, loadErr
}

// MustLoad is Load for process start-up: it panics when the model cannot load.
func MustLoad(cfg config.NLPConfig, cache VectorCache) *Model {
	m, err := Load(cfg, cache)
	if err != nil {
		panic(fmt.Sprintf("nlp: load model: %v", err))
	}
	return m
}

// Loaded returns the process-wide model, or nil before Load succeeded.
func Loaded() *Model { return processModel }

// Tables returns the vocabulary the model was built with.
func (m *Model) Tables() *vocab.Tables { return m.tables }

// SkillMatcher matches the controlled skill vocabulary.
func (m *Model) SkillMatcher() *PhraseMatcher { return m.skillMatcher }

// Embedder returns the embedder used for similarity.
func (m *Model) Embedder() embedding.Embedder { return m.embedder }

func (m *Model) isKnownProper(folded string) bool {
	return m.tables.IsFirstName(folded) || m.tables.IsLocation(folded) || m.tables.IsOrgKeyword(folded)
}

// Doc is analysed text.
type Doc struct {
	Text   string
	Tokens []Token
	model  *Model
}

// Analyze tokenizes and tags text.
func (m *Model) Analyze(text string) *Doc {
	toks := Tokenize(text)
	TagAll(toks, m.tables.IsStopWord, m.isKnownProper)
	return &Doc{Text: text, Tokens: toks, model: m}
}

// Entities runs the recognizer over the document.
func (d *Doc) Entities() []Entity {
	return d.model.recognizer.Recognize(d.Text, d.Tokens)
}

// NounChunks returns the document's noun phrases.
func (d *Doc) NounChunks() []Chunk {
	return NounChunks(d.Text, d.Tokens)
}

// ContentTokens keeps nouns, verbs, adjectives and proper nouns longer than
// two characters that are not stop words.
func (d *Doc) ContentTokens() []Token {
	var out []Token
	for _, t := range d.Tokens {
		switch t.POS {
		case PosNoun, PosVerb, PosAdj, PosPropn:
		default:
			continue
		}
		if t.Stop || len([]rune(t.Text)) <= 2 {
			continue
		}
		out = append(out, t)
	}
	return out
}

// WordCount counts tokens holding letters.
func (d *Doc) WordCount() int {
	n := 0
	for _, t := range d.Tokens {
		if t.IsWord() {
			n++
		}
	}
	return n
}

// ErrEmptyVector is returned when the embedder produced no vector.
var ErrEmptyVector = errors.New("nlp: embedder returned no vector")

// Embed returns one vector per text, failing if any vector is missing.
func (m *Model) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	vecs, err := m.embedder.EmbedStrings(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, ErrEmptyVector
	}
	for _, v := range vecs {
		if len(v) == 0 {
			return nil, ErrEmptyVector
		}
	}
	return vecs, nil
}

// Similarity returns the cosine similarity of the two texts' embeddings.
func (m *Model) Similarity(ctx context.Context, a, b string) (float64, error) {
	vecs, err := m.Embed(ctx, []string{a, b})
	if err != nil {
		return 0, err
	}
	return Cosine(vecs[0], vecs[1]), nil
}
