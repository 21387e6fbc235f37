package extractor

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"docintel-go/internal/logger"
	"docintel-go/internal/nlp"
	"docintel-go/internal/textnorm"
	"docintel-go/internal/types"
	"docintel-go/internal/vocab"
)

const maxListItemWords = 4

var (
	bulletPrefix = regexp.MustCompile(`^[\s\-–—•*·▪►➢>✓✔]+`)
	listSplitter = regexp.MustCompile(`[,;|•]`)

	toolToken = `(\p{Lu}[\p{L}\d.+#-]*)`
	// Tool names in experience text that the vocabulary may not know.
	contextPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b(?i:using|with|in|usando|utilizando)\s+` + toolToken),
		regexp.MustCompile(`\b(?i:knowledge|experience|expertise|conhecimentos?|experiência|experiencia)\s+(?i:in|with|em|com)\s+` + toolToken),
	}
)

// SkillsExtractor accumulates skill mentions from five layers. No layer
// removes what another found; the final filter runs once at the end.
type SkillsExtractor struct {
	model  *nlp.Model
	tables *vocab.Tables
}

// NewSkillsExtractor builds the extractor; a nil model disables the noun
// phrase and entity layers.
func NewSkillsExtractor(tables *vocab.Tables, model *nlp.Model) *SkillsExtractor {
	return &SkillsExtractor{model: model, tables: tables}
}

type skillSet map[string]struct{}

func (s skillSet) add(v string) {
	v = strings.ToLower(textnorm.CollapseSpaces(v))
	v, _ = textnorm.TrimPunct(v)
	if v != "" {
		s[v] = struct{}{}
	}
}

// Extract returns the lowercased, sorted, comma-joined skills, or nil.
func (e *SkillsExtractor) Extract(text string, sections types.SectionMap) *string {
	found := make(skillSet)
	skillsSection, hasSkills := sections.Get(types.SectionSkills)
	experience, hasExperience := sections.Get(types.SectionExperience)

	target := text
	if hasSkills {
		target = skillsSection
	}
	guardLayer("phrase_match", func() { e.phraseMatches(target, found) })
	if hasSkills {
		guardLayer("list_items", func() { e.listItems(skillsSection, found) })
	}
	if hasExperience {
		guardLayer("context", func() { e.contextual(experience, found) })
	}
	if hasSkills {
		guardLayer("noun_phrases", func() { e.nounPhrases(skillsSection, found) })
		guardLayer("entities", func() { e.entities(skillsSection, found) })
	}
	return types.StringPtr(strings.Join(e.finalize(found), ", "))
}

func guardLayer(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Str("layer", name).Interface("panic", r).Msg("skills layer failed")
		}
	}()
	fn()
}

func (e *SkillsExtractor) phraseMatches(text string, found skillSet) {
	if e.model == nil {
		return
	}
	doc := e.model.Analyze(text)
	for _, m := range e.model.SkillMatcher().Match(text, doc.Tokens) {
		found.add(m.Text)
	}
}

func (e *SkillsExtractor) listItems(section string, found skillSet) {
	for _, line := range strings.Split(section, "\n") {
		line = bulletPrefix.ReplaceAllString(line, "")
		for _, item := range listSplitter.Split(line, -1) {
			item = strings.TrimSpace(item)
			if item == "" {
				continue
			}
			if n := len(strings.Fields(item)); n <= maxListItemWords {
				found.add(item)
			}
		}
	}
}

func (e *SkillsExtractor) contextual(section string, found skillSet) {
	for _, re := range contextPatterns {
		for _, m := range re.FindAllStringSubmatch(section, -1) {
			tool, _ := textnorm.TrimPunct(m[1])
			folded := textnorm.Fold(tool)
			if _, isMonth := e.tables.Month(folded); isMonth {
				continue
			}
			if e.tables.IsLocation(tool) || e.tables.IsStopWord(folded) || e.tables.IsGenericSkillTerm(folded) {
				continue
			}
			found.add(tool)
		}
	}
}

func (e *SkillsExtractor) nounPhrases(section string, found skillSet) {
	if e.model == nil {
		return
	}
	for _, chunk := range e.model.Analyze(section).NounChunks() {
		if len(chunk.Tokens) == 1 {
			t := chunk.Tokens[0]
			if t.IsCapitalized() && !e.isGeneric(t.Folded) {
				found.add(t.Text)
			}
			continue
		}
		generic := true
		for _, t := range chunk.Tokens {
			if !e.isGeneric(t.Folded) {
				generic = false
				break
			}
		}
		if !generic {
			found.add(chunk.Text)
		}
	}
}

func (e *SkillsExtractor) isGeneric(folded string) bool {
	return e.tables.IsGenericSkillTerm(folded) || e.tables.IsStopWord(folded)
}

func (e *SkillsExtractor) entities(section string, found skillSet) {
	if e.model == nil {
		return
	}
	for _, ent := range e.model.Analyze(section).Entities() {
		switch ent.Label {
		case nlp.LabelOrg, nlp.LabelProduct, nlp.LabelMisc:
		default:
			continue
		}
		if utf8.RuneCountInString(ent.Text) > 2 {
			found.add(ent.Text)
		}
	}
}

func (e *SkillsExtractor) finalize(found skillSet) []string {
	out := make([]string, 0, len(found))
	for s := range found {
		if utf8.RuneCountInString(s) < 2 || e.tables.IsSkillFilterWord(s) {
			continue
		}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
