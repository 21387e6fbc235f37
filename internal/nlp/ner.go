package nlp

import (
	"regexp"
	"sort"
	"strings"

	"docintel-go/internal/textnorm"
	"docintel-go/internal/vocab"
)

// Label is a named-entity category.
type Label string

const (
	LabelPerson  Label = "PER"
	LabelOrg     Label = "ORG"
	LabelLoc     Label = "LOC"
	LabelDate    Label = "DATE"
	LabelMisc    Label = "MISC"
	LabelProduct Label = "PRODUCT"
)

// Entity is a recognised span of the analysed text.
type Entity struct {
	Text  string
	Label Label
	Start int
	End   int
}

// connectors may sit between capitalised words of one name.
var connectors = set("da", "de", "do", "das", "dos", "e", "&", "di", "van", "von", "del")

// namePrefixes are closed-class words that also open place and saint names.
var namePrefixes = set("sao")

// Recognizer tags person, organisation, location, date and miscellaneous
// proper-noun spans using capitalisation, gazetteers and date patterns.
type Recognizer struct {
	tables   *vocab.Tables
	dates    []*regexp.Regexp
	skillSet map[string]struct{}
}

// NewRecognizer compiles the date patterns for the month names in t.
func NewRecognizer(t *vocab.Tables) *Recognizer {
	months := t.MonthNames()
	quoted := make([]string, len(months))
	for i, m := range months {
		quoted[i] = regexp.QuoteMeta(m)
	}
	m := "(?:" + strings.Join(quoted, "|") + ")"
	r := &Recognizer{
		tables: t,
		dates: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b\d{1,2}\s+de\s+` + m + `\s+de\s+\d{4}\b`),
			regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b`),
			regexp.MustCompile(`(?i)\b` + m + `\.?\s*(?:de\s+|/\s*)?\d{4}\b`),
			regexp.MustCompile(`\b(?:0?[1-9]|1[0-2])/\d{4}\b`),
		},
		skillSet: make(map[string]struct{}),
	}
	for _, s := range t.SkillTerms() {
		r.skillSet[textnorm.Fold(s)] = struct{}{}
	}
	return r
}

// Recognize returns non-overlapping entities ordered by start offset.
// tokens must come from Tokenize(text).
func (r *Recognizer) Recognize(text string, tokens []Token) []Entity {
	var out []Entity
	var dateSpans [][2]int
	for _, re := range r.dates {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			if overlapsAny(dateSpans, loc[0], loc[1]) {
				continue
			}
			dateSpans = append(dateSpans, [2]int{loc[0], loc[1]})
			out = append(out, Entity{Text: text[loc[0]:loc[1]], Label: LabelDate, Start: loc[0], End: loc[1]})
		}
	}

	inDate := func(t Token) bool { return overlapsAny(dateSpans, t.Start, t.End) }
	for i := 0; i < len(tokens); {
		if !isNameWord(tokens[i]) || inDate(tokens[i]) {
			i++
			continue
		}
		j := i
		for j+1 < len(tokens) {
			next := tokens[j+1]
			if next.Line != tokens[j].Line || inDate(next) {
				break
			}
			if isNameWord(next) {
				j++
				continue
			}
			if _, ok := connectors[next.Folded]; ok && j+2 < len(tokens) &&
				tokens[j+2].Line == next.Line && isNameWord(tokens[j+2]) && !inDate(tokens[j+2]) &&
				!r.splitsPeople(tokens[i], next, tokens[j+2]) {
				j += 2
				continue
			}
			break
		}
		if ent, ok := r.classify(text, tokens[i:j+1]); ok {
			out = append(out, ent)
		}
		i = j + 1
	}

	sort.SliceStable(out, func(a, b int) bool { return out[a].Start < out[b].Start })
	return out
}

// splitsPeople reports whether "e" separates two names that each start with
// a known first name ("João Souza e Ana Lima").
func (r *Recognizer) splitsPeople(first, connector, next Token) bool {
	return connector.Folded == "e" && r.tables.IsFirstName(first.Folded) && r.tables.IsFirstName(next.Folded)
}

func isNameWord(t Token) bool {
	return t.IsWord() && t.IsCapitalized()
}

func (r *Recognizer) classify(text string, run []Token) (Entity, bool) {
	// Leading capitalised function words ("A Empresa", "Na Cidade") are not part of the name,
	// unless the whole run is a known place or the word opens one ("São Paulo").
	whole := textnorm.Fold(text[run[0].Start:run[len(run)-1].End])
	for len(run) > 0 && !r.tables.IsLocation(whole) {
		if _, prefix := namePrefixes[run[0].Folded]; prefix && len(run) > 1 {
			break
		}
		if _, closed := closedClass(run[0].Folded); closed && !run[0].IsAllCaps() {
			run = run[1:]
			continue
		}
		break
	}
	if len(run) == 0 {
		return Entity{}, false
	}

	var words []Token
	hasConnector := false
	for _, t := range run {
		if _, ok := connectors[t.Folded]; ok && !t.IsCapitalized() {
			hasConnector = true
			continue
		}
		words = append(words, t)
	}
	start, end := run[0].Start, run[len(run)-1].End
	ent := Entity{Text: text[start:end], Start: start, End: end}
	phrase := textnorm.Fold(ent.Text)
	first := words[0]
	single := len(words) == 1

	if single && first.SentStart && !first.IsAllCaps() && !r.inGazetteer(first.Folded) {
		return Entity{}, false
	}

	allCaps := true
	for _, w := range words {
		if !w.IsAllCaps() {
			allCaps = false
		}
	}

	switch {
	case r.tables.IsLocation(phrase) || r.isCityState(first.Folded, single):
		ent.Label = LabelLoc
	case r.hasOrgMarker(words):
		ent.Label = LabelOrg
	case single && strings.ContainsAny(first.Text, ".#+0123456789"):
		ent.Label = LabelProduct
	case single && allCaps:
		ent.Label = LabelOrg
	case !allCaps && r.isPersonRun(words, phrase, hasConnector):
		ent.Label = LabelPerson
	default:
		ent.Label = LabelMisc
	}
	return ent, true
}

func (r *Recognizer) inGazetteer(folded string) bool {
	return r.tables.IsFirstName(folded) || r.tables.IsLocation(folded) || r.tables.IsOrgKeyword(folded)
}

// isCityState matches "Campinas/SP" or "Recife-PE" written as one token.
func (r *Recognizer) isCityState(folded string, single bool) bool {
	if !single {
		return false
	}
	for _, sep := range []string{"/", "-"} {
		if i := strings.LastIndex(folded, sep); i > 0 {
			if r.tables.IsState(folded[i+1:]) {
				return true
			}
		}
	}
	return false
}

func (r *Recognizer) hasOrgMarker(words []Token) bool {
	last := words[len(words)-1]
	if len(words) > 1 && r.tables.IsOrgSuffix(last.Folded) {
		return true
	}
	for _, w := range words {
		if r.tables.IsOrgKeyword(w.Folded) {
			return true
		}
	}
	return false
}

func (r *Recognizer) isPersonRun(words []Token, phrase string, hasConnector bool) bool {
	if _, ok := r.skillSet[phrase]; ok {
		return false
	}
	for _, w := range words {
		if _, ok := r.skillSet[w.Folded]; ok {
			return false
		}
		if _, isMonth := r.tables.Month(w.Folded); isMonth {
			return false
		}
	}
	if r.tables.IsFirstName(words[0].Folded) {
		return len(words) <= 6
	}
	if hasConnector || len(words) < 2 || len(words) > 4 {
		return false
	}
	for _, w := range words {
		if w.IsAllCaps() || r.tables.IsStopWord(w.Folded) || r.tables.IsGenericSkillTerm(w.Folded) {
			return false
		}
	}
	return true
}

func overlapsAny(spans [][2]int, start, end int) bool {
	for _, s := range spans {
		if start < s[1] && s[0] < end {
			return true
		}
	}
	return false
}
