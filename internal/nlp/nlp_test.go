package nlp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"docintel-go/internal/config"
	"docintel-go/internal/ratelimit"
	"docintel-go/internal/vocab"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func texts(tokens []Token) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t.Text
	}
	return out
}

func TestTokenizeSpans(t *testing.T) {
	text := "Conhecimentos: Python, SQL, Power BI"
	toks := Tokenize(text)
	require.Equal(t, []string{"Conhecimentos", ":", "Python", ",", "SQL", ",", "Power", "BI"}, texts(toks))
	for _, tok := range toks {
		assert.Equal(t, tok.Text, text[tok.Start:tok.End])
	}
	assert.True(t, toks[0].SentStart)
	assert.True(t, toks[2].SentStart, "a colon opens a new sentence")
	assert.False(t, toks[4].SentStart)
}

func TestTokenizeTechnicalWords(t *testing.T) {
	toks := Tokenize("Node.js, C++ e C#; .NET\ne-mail: ana@x.com.br")
	assert.Equal(t, []string{"Node.js", ",", "C++", "e", "C#", ";", ".NET", "e-mail", ":", "ana@x.com.br"}, texts(toks))
	assert.Equal(t, 1, toks[7].Line)
	assert.True(t, toks[7].LineStart)
	assert.Equal(t, "node.js", toks[0].Folded)
}

func TestTokenizeFoldsAccents(t *testing.T) {
	toks := Tokenize("Experiência Acadêmica")
	require.Len(t, toks, 2)
	assert.Equal(t, "experiencia", toks[0].Folded)
	assert.Equal(t, "academica", toks[1].Folded)
}

func TestLemmaOf(t *testing.T) {
	cases := map[string]string{
		"computadores": "computador",
		"jogando":      "jogar",
		"animais":      "animal",
		"gosto":        "gostar",
		"bolos":        "bolo",
		"cozinhar":     "cozinhar",
		"lápis":        "lapis",
	}
	for in, want := range cases {
		assert.Equal(t, want, LemmaOf(in), in)
	}
}

func TestTagging(t *testing.T) {
	m := NewModel(vocab.Default(), nil)
	doc := m.Analyze("Eu gosto de cozinhar para a família")
	pos := map[string]POS{}
	for _, tok := range doc.Tokens {
		pos[tok.Folded] = tok.POS
	}
	assert.Equal(t, PosPron, pos["eu"])
	assert.Equal(t, PosVerb, pos["gosto"])
	assert.Equal(t, PosAdp, pos["de"])
	assert.Equal(t, PosVerb, pos["cozinhar"])
	assert.Equal(t, PosDet, pos["a"])

	var content []string
	for _, tok := range doc.ContentTokens() {
		content = append(content, tok.Lemma)
	}
	assert.Equal(t, []string{"cozinhar", "familia"}, content)
	assert.Equal(t, 7, doc.WordCount())
}

func TestPhraseMatcher(t *testing.T) {
	m := NewPhraseMatcher([]string{"power bi", "bi", "python", "node.js", "Python"})
	assert.Equal(t, 4, m.Len())

	text := "Usei Power BI e Node.js"
	matches := m.Match(text, Tokenize(text))
	require.Len(t, matches, 3)
	assert.Equal(t, "Power BI", matches[0].Text)
	assert.Equal(t, "power bi", matches[0].Pattern)
	assert.Equal(t, "BI", matches[1].Text)
	assert.Equal(t, "Node.js", matches[2].Text)
}

func TestPhraseMatcherDoesNotCrossLines(t *testing.T) {
	m := NewPhraseMatcher([]string{"power bi"})
	text := "Power\nBI"
	assert.Empty(t, m.Match(text, Tokenize(text)))
}

func TestRecognizerResumeHeader(t *testing.T) {
	m := NewModel(vocab.Default(), nil)
	doc := m.Analyze("Maria Souza\nEngenheira de Dados\nmaria@email.com")
	ents := doc.Entities()
	require.NotEmpty(t, ents)
	assert.Equal(t, Entity{Text: "Maria Souza", Label: LabelPerson, Start: 0, End: 11}, ents[0])
	for _, e := range ents[1:] {
		assert.NotEqual(t, LabelPerson, e.Label, e.Text)
	}
}

func TestRecognizerContract(t *testing.T) {
	m := NewModel(vocab.Default(), nil)
	text := "A CONTRATANTE, Tech Solutions Ltda, com sede em São Paulo. Assinado em 10 de março de 2024."
	ents := m.Analyze(text).Entities()

	byText := map[string]Label{}
	for _, e := range ents {
		byText[e.Text] = e.Label
		assert.Equal(t, e.Text, text[e.Start:e.End])
	}
	assert.Equal(t, LabelOrg, byText["Tech Solutions Ltda"])
	assert.Equal(t, LabelLoc, byText["São Paulo"])
	assert.Equal(t, LabelDate, byText["10 de março de 2024"])
	assert.Equal(t, LabelOrg, byText["CONTRATANTE"])

	for i := 1; i < len(ents); i++ {
		assert.LessOrEqual(t, ents[i-1].End, ents[i].Start, "entities must not overlap")
	}
}

func TestRecognizerKeepsPlacePrefix(t *testing.T) {
	m := NewModel(vocab.Default(), nil)
	for _, text := range []string{
		"Moro em São Paulo.",
		"Em São Paulo, no escritório central.",
		"São Paulo, 1 de abril de 2024.",
	} {
		var found *Entity
		for _, e := range m.Analyze(text).Entities() {
			assert.NotEqual(t, "Paulo", e.Text, text)
			if e.Text == "São Paulo" {
				e := e
				found = &e
			}
		}
		require.NotNil(t, found, text)
		assert.Equal(t, LabelLoc, found.Label, text)
	}
}

func TestRecognizerSplitsPeopleJoinedByE(t *testing.T) {
	m := NewModel(vocab.Default(), nil)
	text := "Testemunhas: João Souza e Ana Lima\nFornecedor: Oficina Pereira e Filhos Ltda"
	byText := map[string]Label{}
	for _, e := range m.Analyze(text).Entities() {
		byText[e.Text] = e.Label
	}
	assert.Equal(t, LabelPerson, byText["João Souza"])
	assert.Equal(t, LabelPerson, byText["Ana Lima"])
	assert.NotContains(t, byText, "João Souza e Ana Lima")
	assert.Equal(t, LabelOrg, byText["Oficina Pereira e Filhos Ltda"])
}

func TestNounChunks(t *testing.T) {
	m := NewModel(vocab.Default(), nil)
	chunks := m.Analyze("gestão de projetos ágeis").NounChunks()
	require.Len(t, chunks, 1)
	assert.Equal(t, "gestão de projetos ágeis", chunks[0].Text)
	require.Len(t, chunks[0].Tokens, 4)
	assert.Equal(t, "gestão", chunks[0].Tokens[0].Text)
	assert.Equal(t, "ágeis", chunks[0].Tokens[3].Text)
	assert.Equal(t, chunks[0].Tokens[0].Start, chunks[0].Start)
	assert.Equal(t, chunks[0].Tokens[3].End, chunks[0].End)
}

func TestHashingEmbedderSimilarity(t *testing.T) {
	m := NewModel(vocab.Default(), NewHashingEmbedder(0))
	ctx := context.Background()

	inflected, err := m.Similarity(ctx, "música", "músicas")
	require.NoError(t, err)
	assert.Greater(t, inflected, 0.65)

	unrelated, err := m.Similarity(ctx, "bolo", "carros")
	require.NoError(t, err)
	assert.Less(t, unrelated, 0.3)

	musician, _ := m.Similarity(ctx, "tocar violão e cantar", "Músico(a): música, instrumentos, tocar, compor, cantar")
	accountant, _ := m.Similarity(ctx, "tocar violão e cantar", "Contador(a): números, finanças, impostos, balanço")
	assert.Greater(t, musician, accountant)
}

func TestCosineEdgeCases(t *testing.T) {
	assert.Zero(t, Cosine(nil, nil))
	assert.Zero(t, Cosine([]float64{1, 0}, []float64{1}))
	assert.Zero(t, Cosine([]float64{0, 0}, []float64{1, 0}))
	assert.InDelta(t, 1.0, Cosine([]float64{2, 0}, []float64{5, 0}), 1e-9)
}

type memCache struct {
	data   map[string][]float64
	gets   int
	failOn string
}

func (c *memCache) GetVector(_ context.Context, key string) ([]float64, bool, error) {
	c.gets++
	if c.failOn == "get" {
		return nil, false, errors.New("boom")
	}
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memCache) SetVector(_ context.Context, key string, v []float64) error {
	if c.failOn == "set" {
		return errors.New("boom")
	}
	c.data[key] = v
	return nil
}

type countingEmbedder struct {
	*HashingEmbedder
	calls int
	texts int
}

func (c *countingEmbedder) EmbedStrings(ctx context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	c.calls++
	c.texts += len(texts)
	return c.HashingEmbedder.EmbedStrings(ctx, texts)
}

func TestCachedEmbedder(t *testing.T) {
	ctx := context.Background()
	inner := &countingEmbedder{HashingEmbedder: NewHashingEmbedder(64)}
	cache := &memCache{data: map[string][]float64{}}
	emb := NewCachedEmbedder(inner, cache, "hashing")

	first, err := emb.EmbedStrings(ctx, []string{"python", "docker"})
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, 2, inner.texts)
	assert.Len(t, cache.data, 2)

	second, err := emb.EmbedStrings(ctx, []string{"docker", "go"})
	require.NoError(t, err)
	assert.Equal(t, first[1], second[0])
	assert.Equal(t, 3, inner.texts, "only the miss reaches the embedder")

	broken := NewCachedEmbedder(inner, &memCache{data: map[string][]float64{}, failOn: "get"}, "hashing")
	vecs, err := broken.EmbedStrings(ctx, []string{"java"})
	require.NoError(t, err, "cache errors never fail the call")
	assert.Len(t, vecs, 1)
}

func TestAliyunEmbedder(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var req aliyunRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		resp := map[string]interface{}{"model": req.Model}
		data := make([]map[string]interface{}, len(req.Input))
		for i := range req.Input {
			// reversed order to check index handling
			data[len(req.Input)-1-i] = map[string]interface{}{"index": i, "embedding": []float64{float64(i), 1}}
		}
		resp["data"] = data
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	emb, err := NewAliyunEmbedder(config.EmbeddingConfig{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, defaultAliyunModel, emb.Model())

	inputs := make([]string, 12)
	for i := range inputs {
		inputs[i] = "t"
	}
	vecs, err := emb.EmbedStrings(context.Background(), inputs)
	require.NoError(t, err)
	require.Len(t, vecs, 12)
	assert.Equal(t, []float64{0, 1}, vecs[0])
	assert.Equal(t, []float64{1, 1}, vecs[11], "second batch restarts at index 0")
	assert.Equal(t, []float64{9, 1}, vecs[9])
	assert.Equal(t, "Bearer k", gotAuth)

	_, err = NewAliyunEmbedder(config.EmbeddingConfig{})
	assert.Error(t, err)
}

func TestAliyunEmbedderHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid key","code":"401"}}`))
	}))
	defer srv.Close()

	emb, err := NewAliyunEmbedder(config.EmbeddingConfig{APIKey: "bad", BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = emb.EmbedStrings(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid key")
}

func TestNewModelFromConfig(t *testing.T) {
	m, err := NewModelFromConfig(config.NLPConfig{}, nil)
	require.NoError(t, err)
	assert.IsType(t, &HashingEmbedder{}, m.Embedder())
	assert.Greater(t, m.SkillMatcher().Len(), 200)

	_, err = NewModelFromConfig(config.NLPConfig{Embedding: config.EmbeddingConfig{Provider: "word2vec"}}, nil)
	assert.Error(t, err)

	cached, err := NewModelFromConfig(config.NLPConfig{Embedding: config.EmbeddingConfig{Cache: true}}, &memCache{data: map[string][]float64{}})
	require.NoError(t, err)
	assert.IsType(t, &CachedEmbedder{}, cached.Embedder())
}

func TestNewModelFromConfigThrottlesRemoteEmbedder(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"rate limit","code":"429"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{{"index": 0, "embedding": []float64{1, 0}}},
		})
	}))
	defer srv.Close()

	m, err := NewModelFromConfig(config.NLPConfig{Embedding: config.EmbeddingConfig{
		Provider:          "aliyun",
		APIKey:            "k",
		BaseURL:           srv.URL,
		RequestsPerMinute: 600,
		MaxRetries:        2,
	}}, nil)
	require.NoError(t, err)
	assert.IsType(t, &ratelimit.Embedder{}, m.Embedder())

	vecs, err := m.Embed(context.Background(), []string{"música"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 0}}, vecs)
	assert.Equal(t, 2, calls)
}
