package profession

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"

	"docintel-go/internal/config"
	"docintel-go/internal/logger"
	"docintel-go/internal/nlp"
	"docintel-go/internal/textnorm"
	"docintel-go/internal/types"
	"docintel-go/internal/vocab"
)

// Score weights per evidence kind.
const (
	ExactMatchWeight      = 3.0
	ChunkMatchWeight      = 2.5
	TextSimilarityWeight  = 15.0
	TokenSimilarityWeight = 2.5

	shortTextScore   = 5.0
	shortTextWords   = 5
	shortTextPenalty = 0.5
)

// Options tunes the thresholds of the scorer and the toxicity filter.
type Options struct {
	MinScore                 float64
	TopN                     int
	TextSimilarityThreshold  float64
	TokenSimilarityThreshold float64
	ToxicityThreshold        float64
	PositiveDamping          float64
	PositiveMinWords         int
}

// DefaultOptions returns the standard thresholds.
func DefaultOptions() Options {
	return Options{
		MinScore:                 3.0,
		TopN:                     5,
		TextSimilarityThreshold:  0.3,
		TokenSimilarityThreshold: 0.65,
		ToxicityThreshold:        0.9,
		PositiveDamping:          0.3,
		PositiveMinWords:         2,
	}
}

// OptionsFromConfig maps the configuration section, keeping defaults for
// zero values.
func OptionsFromConfig(c config.ProfessionConfig) Options {
	o := DefaultOptions()
	if c.MinScore > 0 {
		o.MinScore = c.MinScore
	}
	if c.TopN > 0 {
		o.TopN = c.TopN
	}
	if c.TextSimilarityThreshold > 0 {
		o.TextSimilarityThreshold = c.TextSimilarityThreshold
	}
	if c.TokenSimilarityThreshold > 0 {
		o.TokenSimilarityThreshold = c.TokenSimilarityThreshold
	}
	if c.ToxicityThreshold > 0 {
		o.ToxicityThreshold = c.ToxicityThreshold
	}
	if c.PositiveDamping > 0 {
		o.PositiveDamping = c.PositiveDamping
	}
	if c.PositiveMinWords > 0 {
		o.PositiveMinWords = c.PositiveMinWords
	}
	return o
}

type keyword struct {
	folded string
	forms  map[string]struct{}
	phrase *regexp.Regexp // multi-word keywords only
}

type profile struct {
	label       string
	description string
	keywords    []keyword
}

// Scorer ranks the profession taxonomy against free text.
type Scorer struct {
	model    *nlp.Model
	filter   *ToxicityFilter
	opts     Options
	profiles []profile

	vecOnce  sync.Once
	vecErr   error
	kwVecs   map[string][]float64
	descVecs [][]float64
}

// NewScorer indexes the taxonomy. A nil model makes Suggest return no
// suggestions while still running the toxicity check.
func NewScorer(t *vocab.Tables, model *nlp.Model, opts Options) *Scorer {
	s := &Scorer{model: model, filter: NewToxicityFilter(t, opts), opts: opts}
	for _, p := range t.Professions() {
		pr := profile{label: p.Label, description: p.DescriptionText()}
		for _, k := range p.Keywords {
			pr.keywords = append(pr.keywords, newKeyword(k))
		}
		s.profiles = append(s.profiles, pr)
	}
	return s
}

func newKeyword(k string) keyword {
	folded := textnorm.Fold(textnorm.CollapseSpaces(k))
	kw := keyword{folded: folded, forms: map[string]struct{}{folded: {}}}
	words := strings.Fields(folded)
	if len(words) > 1 {
		lemmas := make([]string, len(words))
		for i, w := range words {
			lemmas[i] = nlp.LemmaOf(w)
		}
		kw.forms[strings.Join(lemmas, " ")] = struct{}{}
		body := strings.Join(quoteAll(words), `\s+`)
		kw.phrase = regexp.MustCompile(`(?:^|[^\p{L}\p{N}])` + body + `(?:$|[^\p{L}\p{N}])`)
	} else if folded != "" {
		kw.forms[nlp.LemmaOf(folded)] = struct{}{}
	}
	return kw
}

func quoteAll(words []string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = regexp.QuoteMeta(w)
	}
	return out
}

func (k keyword) matches(form string) bool {
	_, ok := k.forms[form]
	return ok
}

// Filter returns the toxicity filter used by the scorer.
func (s *Scorer) Filter() *ToxicityFilter { return s.filter }

// Suggest screens text for offensive language and, when it passes, returns
// the top professions scoring at least MinScore. Ties keep taxonomy order.
func (s *Scorer) Suggest(ctx context.Context, text string) types.ProfessionResult {
	res := types.ProfessionResult{Suggestions: []types.ProfessionScore{}}
	verdict := s.filter.Check(text)
	if len(verdict.MatchedTerms) > 0 {
		res.Toxicity = &verdict
	}
	if verdict.Detected {
		logger.Info().Float64("confidence", verdict.Confidence).Int("terms", verdict.Count()).
			Msg("profession suggestion blocked by toxicity filter")
		return res
	}
	for _, sc := range s.Score(ctx, text) {
		if sc.Score < s.opts.MinScore {
			continue
		}
		res.Suggestions = append(res.Suggestions, sc)
		if s.opts.TopN > 0 && len(res.Suggestions) == s.opts.TopN {
			break
		}
	}
	return res
}

// Score returns every profession with a positive score, highest first.
// It does not apply the toxicity check or the MinScore cut.
func (s *Scorer) Score(ctx context.Context, text string) []types.ProfessionScore {
	if s.model == nil || strings.TrimSpace(text) == "" {
		return nil
	}
	doc := s.model.Analyze(text)
	content := doc.ContentTokens()
	chunks := doc.NounChunks()
	folded := textnorm.Fold(text)
	words := doc.WordCount()

	s.vecOnce.Do(func() { s.prepareVectors(context.WithoutCancel(ctx)) })
	var textVec []float64
	tokenVecs := map[string][]float64{}
	if s.vecErr == nil {
		textVec, tokenVecs = s.inputVectors(ctx, text, content)
	}

	var out []types.ProfessionScore
	for i, p := range s.profiles {
		score := s.lexicalScore(p, content, chunks, folded)
		if textVec != nil {
			if sim := nlp.Cosine(textVec, s.descVecs[i]); sim > s.opts.TextSimilarityThreshold {
				score += sim * TextSimilarityWeight
			}
		}
		if best := s.bestTokenSimilarity(p, tokenVecs); best > s.opts.TokenSimilarityThreshold {
			score += best * TokenSimilarityWeight
		}
		if score < shortTextScore && words < shortTextWords {
			score *= shortTextPenalty
		}
		if score > 0 {
			out = append(out, types.ProfessionScore{Label: p.label, Score: score})
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Score > out[b].Score })
	return out
}

func (s *Scorer) lexicalScore(p profile, content []nlp.Token, chunks []nlp.Chunk, folded string) float64 {
	exact := make(map[int]struct{})
	for ki, k := range p.keywords {
		if k.phrase != nil {
			if k.phrase.MatchString(folded) {
				exact[ki] = struct{}{}
			}
			continue
		}
		for _, t := range content {
			if k.matches(t.Lemma) || k.matches(t.Folded) {
				exact[ki] = struct{}{}
				break
			}
		}
	}

	contained := make(map[int]struct{})
	for _, c := range chunks {
		cf := textnorm.Fold(textnorm.CollapseSpaces(c.Text))
		cl := lemmaPhrase(cf)
		for ki, k := range p.keywords {
			if _, done := exact[ki]; done {
				continue
			}
			if k.matches(cf) || k.matches(cl) {
				contained[ki] = struct{}{}
			}
		}
	}
	return float64(len(exact))*ExactMatchWeight + float64(len(contained))*ChunkMatchWeight
}

func lemmaPhrase(folded string) string {
	words := strings.Fields(folded)
	for i, w := range words {
		words[i] = nlp.LemmaOf(w)
	}
	return strings.Join(words, " ")
}

func (s *Scorer) bestTokenSimilarity(p profile, tokenVecs map[string][]float64) float64 {
	best := 0.0
	if len(tokenVecs) == 0 {
		return best
	}
	for _, k := range p.keywords {
		kv, ok := s.kwVecs[k.folded]
		if !ok {
			continue
		}
		for _, tv := range tokenVecs {
			if sim := nlp.Cosine(tv, kv); sim > best {
				best = sim
			}
		}
	}
	return best
}

// prepareVectors embeds every keyword and description once. A failure
// disables the semantic layers for the scorer's lifetime.
func (s *Scorer) prepareVectors(ctx context.Context) {
	var kwTexts []string
	seen := make(map[string]struct{})
	for _, p := range s.profiles {
		for _, k := range p.keywords {
			if _, ok := seen[k.folded]; ok {
				continue
			}
			seen[k.folded] = struct{}{}
			kwTexts = append(kwTexts, k.folded)
		}
	}
	descTexts := make([]string, len(s.profiles))
	for i, p := range s.profiles {
		descTexts[i] = p.description
	}

	vecs, err := s.model.Embed(ctx, append(append([]string(nil), kwTexts...), descTexts...))
	if err != nil {
		s.vecErr = err
		logger.Warn().Err(err).Msg("profession vectors unavailable, semantic scoring disabled")
		return
	}
	s.kwVecs = make(map[string][]float64, len(kwTexts))
	for i, k := range kwTexts {
		s.kwVecs[k] = vecs[i]
	}
	s.descVecs = vecs[len(kwTexts):]
}

func (s *Scorer) inputVectors(ctx context.Context, text string, content []nlp.Token) ([]float64, map[string][]float64) {
	texts := []string{text}
	seen := map[string]struct{}{}
	for _, t := range content {
		if _, ok := seen[t.Folded]; ok {
			continue
		}
		seen[t.Folded] = struct{}{}
		texts = append(texts, t.Folded)
	}
	vecs, err := s.model.Embed(ctx, texts)
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("input embedding failed, using lexical scores only")
		return nil, nil
	}
	tokens := make(map[string][]float64, len(texts)-1)
	for i, t := range texts[1:] {
		tokens[t] = vecs[i+1]
	}
	return vecs[0], tokens
}
