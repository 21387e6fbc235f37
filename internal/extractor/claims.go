package extractor

import (
	"sort"
	"unicode/utf8"

	"docintel-go/internal/textnorm"
	"docintel-go/internal/types"
)

// Candidate is a span a layer proposes for a label.
type Candidate struct {
	Span  types.Span
	Label string
}

// Claims tracks the spans already taken in one document. The first claim
// on a region wins; later overlapping candidates are rejected.
type Claims struct {
	text     string
	reject   func(string) bool
	claimed  []types.Span
	entities []types.ExtractedEntity
}

// NewClaims starts an empty claim set over text. reject, when non-nil,
// drops candidates whose trimmed text it matches.
func NewClaims(text string, reject func(string) bool) *Claims {
	return &Claims{text: text, reject: reject}
}

// TryClaim takes span for label unless it overlaps an earlier claim. The
// surrounding punctuation is trimmed and the span shrunk to match; results
// shorter than two characters or without letters or digits are rejected.
func (c *Claims) TryClaim(span types.Span, label string) (types.ExtractedEntity, bool) {
	if span.Start < 0 || span.End > len(c.text) || span.Start >= span.End {
		return types.ExtractedEntity{}, false
	}
	for _, s := range c.claimed {
		if s.Overlaps(span) {
			return types.ExtractedEntity{}, false
		}
	}

	trimmed, cut := textnorm.TrimPunct(c.text[span.Start:span.End])
	if utf8.RuneCountInString(trimmed) < 2 || !textnorm.HasLetterOrDigit(trimmed) {
		return types.ExtractedEntity{}, false
	}
	if c.reject != nil && c.reject(trimmed) {
		return types.ExtractedEntity{}, false
	}

	s := types.Span{Start: span.Start + cut, End: span.Start + cut + len(trimmed)}
	ent := types.ExtractedEntity{Text: trimmed, Type: label, Span: &s}
	c.claimed = append(c.claimed, s)
	c.entities = append(c.entities, ent)
	return ent, true
}

// Claimed returns a copy of the claimed spans.
func (c *Claims) Claimed() []types.Span {
	return append([]types.Span(nil), c.claimed...)
}

// Entities returns the claimed entities ordered by position in the text.
func (c *Claims) Entities() []types.ExtractedEntity {
	out := append([]types.ExtractedEntity(nil), c.entities...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Span.Start < out[j].Span.Start })
	return out
}

// GroupByType collects entity texts under their type, keeping the order in
// which types and texts first appear and dropping repeated texts.
func GroupByType(entities []types.ExtractedEntity) []types.EntityGroup {
	var groups []types.EntityGroup
	index := make(map[string]int)
	seen := make(map[string]map[string]struct{})
	for _, e := range entities {
		i, ok := index[e.Type]
		if !ok {
			i = len(groups)
			index[e.Type] = i
			groups = append(groups, types.EntityGroup{Type: e.Type})
			seen[e.Type] = make(map[string]struct{})
		}
		if _, dup := seen[e.Type][e.Text]; dup {
			continue
		}
		seen[e.Type][e.Text] = struct{}{}
		groups[i].Texts = append(groups[i].Texts, e.Text)
	}
	return groups
}
