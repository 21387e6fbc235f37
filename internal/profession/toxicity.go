// Package profession suggests professions for free-text hobby
// descriptions and screens the text for offensive language first.
package profession

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"docintel-go/internal/logger"
	"docintel-go/internal/textnorm"
	"docintel-go/internal/types"
	"docintel-go/internal/vocab"
)

// CategoryOffensiveTerm tags exact vocabulary hits.
const CategoryOffensiveTerm = "termo_ofensivo"

type weightedPattern struct {
	re       *regexp.Regexp
	weight   float64
	category string
}

type exactTerm struct {
	term string
	re   *regexp.Regexp
}

// ToxicityFilter scores text against offensive terms and weighted patterns.
// Enthusiastic phrasing damps the score.
type ToxicityFilter struct {
	tables     *vocab.Tables
	terms      []exactTerm
	patterns   []weightedPattern
	termWeight float64
	opts       Options
}

// NewToxicityFilter compiles the vocabulary. Patterns that fail to compile
// are logged and skipped.
func NewToxicityFilter(t *vocab.Tables, opts Options) *ToxicityFilter {
	f := &ToxicityFilter{tables: t, termWeight: t.ToxicTermWeight(), opts: opts}
	seen := make(map[string]struct{})
	for _, term := range t.ToxicTerms() {
		folded := textnorm.Fold(textnorm.CollapseSpaces(term))
		if _, dup := seen[folded]; dup || folded == "" {
			continue
		}
		seen[folded] = struct{}{}
		body := strings.ReplaceAll(regexp.QuoteMeta(folded), " ", `\s+`)
		f.terms = append(f.terms, exactTerm{
			term: folded,
			re:   regexp.MustCompile(`(?:^|[^\p{L}\p{N}])` + body + `(?:$|[^\p{L}\p{N}])`),
		})
	}
	for _, p := range t.ToxicPatterns() {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			logger.Warn().Err(err).Str("pattern", p.Pattern).Msg("skipping invalid toxicity pattern")
			continue
		}
		f.patterns = append(f.patterns, weightedPattern{re: re, weight: p.Weight, category: p.Category})
	}
	return f
}

// Check sums the weights of every term and pattern hit on the folded text,
// multiplies the sum by the damping factor when enough positive-context
// words are present and flags the text when the result reaches the threshold.
func (f *ToxicityFilter) Check(text string) types.ToxicityVerdict {
	folded := textnorm.Fold(text)
	var v types.ToxicityVerdict
	categories := make(map[string]struct{})

	for _, t := range f.terms {
		if t.re.MatchString(folded) {
			v.MatchedTerms = append(v.MatchedTerms, t.term)
			v.Confidence += f.termWeight
			categories[CategoryOffensiveTerm] = struct{}{}
		}
	}
	for _, p := range f.patterns {
		if m := p.re.FindString(folded); m != "" {
			v.MatchedTerms = appendUnique(v.MatchedTerms, m)
			v.Confidence += p.weight
			categories[p.category] = struct{}{}
		}
	}
	if v.Confidence == 0 {
		return v
	}

	if f.positiveWords(folded) >= f.opts.PositiveMinWords {
		v.Confidence *= f.opts.PositiveDamping
	}
	for c := range categories {
		v.Categories = append(v.Categories, c)
	}
	sort.Strings(v.Categories)
	v.Detected = v.Confidence >= f.opts.ToxicityThreshold
	return v
}

func (f *ToxicityFilter) positiveWords(folded string) int {
	n := 0
	for _, w := range strings.FieldsFunc(folded, func(r rune) bool { return !unicode.IsLetter(r) }) {
		if f.tables.IsPositiveContext(w) {
			n++
		}
	}
	return n
}

func appendUnique(list []string, s string) []string {
	for _, x := range list {
		if x == s {
			return list
		}
	}
	return append(list, s)
}
