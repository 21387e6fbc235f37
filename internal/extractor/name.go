package extractor

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"docintel-go/internal/nlp"
	"docintel-go/internal/textnorm"
	"docintel-go/internal/types"
	"docintel-go/internal/vocab"
)

const (
	defaultNameEntityWindow = 400
	defaultNameLineWindow   = 10
)

var (
	longDigitRun = regexp.MustCompile(`\d{4,}`)
	nameLabel    = regexp.MustCompile(`(?:^|\b)(?i:nome(?:\s+completo)?|name)\s*:\s*(\p{Lu}[\p{L}'’-]*(?:\s+(?:(?:d[aeo]s?|e)\s+)?\p{Lu}[\p{L}'’-]*)+)`)
)

// NameExtractor guesses the candidate's name from the top of a résumé.
type NameExtractor struct {
	model        *nlp.Model
	tables       *vocab.Tables
	entityWindow int
	lineWindow   int
	headings     map[string]struct{}
}

// NewNameExtractor uses the recognizer when model is non-nil; the line and
// label strategies need only the tables.
func NewNameExtractor(tables *vocab.Tables, model *nlp.Model) *NameExtractor {
	n := &NameExtractor{
		model:        model,
		tables:       tables,
		entityWindow: defaultNameEntityWindow,
		lineWindow:   defaultNameLineWindow,
		headings:     make(map[string]struct{}),
	}
	for _, kind := range types.SectionKinds {
		for _, v := range tables.SectionVariants(kind) {
			n.headings[textnorm.Fold(v)] = struct{}{}
		}
	}
	return n
}

// Extract tries the recognizer, then a capitalised line near the top, then
// an explicit "Nome:" label. It returns nil when all three fail.
func (n *NameExtractor) Extract(text string) *string {
	if name := n.fromEntities(text); name != "" {
		return &name
	}
	if name := n.fromLines(text); name != "" {
		return &name
	}
	if m := nameLabel.FindStringSubmatch(text); m != nil {
		return types.StringPtr(textnorm.CollapseSpaces(m[1]))
	}
	return nil
}

func (n *NameExtractor) fromEntities(text string) string {
	if n.model == nil {
		return ""
	}
	window := prefix(text, n.entityWindow)
	best := ""
	for _, e := range n.model.Analyze(window).Entities() {
		if e.Label != nlp.LabelPerson {
			continue
		}
		cand := textnorm.CollapseSpaces(e.Text)
		if utf8.RuneCountInString(cand) > utf8.RuneCountInString(best) {
			best = cand
		}
	}
	return best
}

func (n *NameExtractor) fromLines(text string) string {
	lines := strings.Split(text, "\n")
	if len(lines) > n.lineWindow {
		lines = lines[:n.lineWindow]
	}
	for _, line := range lines {
		line = textnorm.CollapseSpaces(line)
		if line == "" || strings.Contains(line, "@") || longDigitRun.MatchString(line) ||
			n.tables.ContainsNetworkingMarker(line) {
			continue
		}
		if n.isHeadingLine(line) {
			continue
		}
		words := strings.Fields(line)
		if len(words) < 2 || len(words) > 5 {
			continue
		}
		if allCapitalized(words) {
			return line
		}
	}
	return ""
}

func allCapitalized(words []string) bool {
	for _, w := range words {
		if utf8.RuneCountInString(w) > 1 && !textnorm.IsCapitalized(w) {
			return false
		}
	}
	return true
}

// prefix returns at most limit bytes of s, cut back to a rune boundary.
func prefix(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

// isHeadingLine matches a bare heading ("Habilidades:") and a heading with
// inline content ("Conhecimentos: Python, SQL").
func (n *NameExtractor) isHeadingLine(line string) bool {
	head := line
	if i := strings.IndexAny(line, ":："); i >= 0 {
		head = line[:i]
	}
	_, ok := n.headings[textnorm.Fold(strings.TrimSpace(head))]
	return ok
}
