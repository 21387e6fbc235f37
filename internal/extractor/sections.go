// Package extractor holds the rule-based résumé and contract extractors:
// section detection, contact and name lookup, skill mining, experience
// segmentation and contract entity extraction.
package extractor

import (
	"regexp"
	"sort"
	"strings"

	"docintel-go/internal/textnorm"
	"docintel-go/internal/types"
	"docintel-go/internal/vocab"
)

// Heading is one recognised section heading.
type Heading struct {
	Kind  types.SectionKind
	Start int // offset of the heading line
	End   int // offset right after the heading
}

type headingPattern struct {
	kind types.SectionKind
	re   *regexp.Regexp
}

// SectionDetector finds known section headings and slices the text between them.
type SectionDetector struct {
	patterns []headingPattern
}

// headingMarker is optional numbering or a bullet before a heading.
const headingMarker = `(?:(?:\d{1,2}(?:\.\d{1,2})*[.)]?|[IVXivx]{1,4}[.)]|[-–—•*·▪►➢>])[ \t]*)?`

// NewSectionDetector compiles one heading pattern per section kind, longest
// variant first so "conhecimentos técnicos" wins over "conhecimentos".
func NewSectionDetector(t *vocab.Tables) *SectionDetector {
	d := &SectionDetector{}
	for _, kind := range types.SectionKinds {
		variants := t.SectionVariants(kind)
		if len(variants) == 0 {
			continue
		}
		sort.SliceStable(variants, func(i, j int) bool { return len(variants[i]) > len(variants[j]) })
		alts := make([]string, len(variants))
		for i, v := range variants {
			alts[i] = accentInsensitive(v)
		}
		re := regexp.MustCompile(`(?im)^[ \t]*` + headingMarker + `(?:` + strings.Join(alts, "|") + `)[ \t]*(:)?[ \t]*`)
		d.patterns = append(d.patterns, headingPattern{kind: kind, re: re})
	}
	return d
}

var accentClasses = map[rune]string{
	'a': "[aáàâãä]",
	'e': "[eéèêë]",
	'i': "[iíìîï]",
	'o': "[oóòôõö]",
	'u': "[uúùûü]",
	'c': "[cç]",
}

// accentInsensitive turns a heading variant into a pattern that matches it
// with or without diacritics. Case is handled by the (?i) flag.
func accentInsensitive(variant string) string {
	var sb strings.Builder
	for _, r := range textnorm.Fold(textnorm.CollapseSpaces(variant)) {
		switch {
		case r == ' ':
			sb.WriteString(`[ \t]+`)
		case accentClasses[r] != "":
			sb.WriteString(accentClasses[r])
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	return sb.String()
}

// Headings returns every heading in text ordered by start offset. At the
// same start offset only the first kind in declared order is kept.
func (d *SectionDetector) Headings(text string) []Heading {
	var found []Heading
	for _, p := range d.patterns {
		for _, m := range p.re.FindAllStringSubmatchIndex(text, -1) {
			end, ok := headingEnd(text, m[1], m[2] >= 0)
			if !ok {
				continue
			}
			found = append(found, Heading{Kind: p.kind, Start: m[0], End: end})
		}
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].Start < found[j].Start })

	out := found[:0]
	for _, h := range found {
		if len(out) > 0 && out[len(out)-1].Start == h.Start {
			continue
		}
		out = append(out, h)
	}
	return out
}

// headingEnd validates what follows a matched variant. Without a colon the
// rest of the line must be empty; with a colon, inline content may follow
// and the heading ends right after the colon.
func headingEnd(text string, matchEnd int, hasColon bool) (int, bool) {
	lineEnd := strings.IndexByte(text[matchEnd:], '\n')
	rest := text[matchEnd:]
	if lineEnd >= 0 {
		rest = text[matchEnd : matchEnd+lineEnd]
	}
	if strings.TrimSpace(rest) == "" {
		if lineEnd < 0 {
			return len(text), true
		}
		return matchEnd + lineEnd + 1, true
	}
	if hasColon {
		return matchEnd, true
	}
	return 0, false
}

// Detect maps each detected section kind to its content. Content runs from
// the end of a heading to the start of the next one, or to the end of the
// text for the last heading. Repeated kinds are joined with a blank line.
func (d *SectionDetector) Detect(text string) types.SectionMap {
	headings := d.Headings(text)
	sections := make(types.SectionMap)
	for i, h := range headings {
		stop := len(text)
		if i+1 < len(headings) {
			stop = headings[i+1].Start
		}
		if h.End >= stop {
			continue
		}
		content := strings.TrimSpace(text[h.End:stop])
		if content == "" {
			continue
		}
		if prev, ok := sections[h.Kind]; ok {
			sections[h.Kind] = prev + "\n\n" + content
		} else {
			sections[h.Kind] = content
		}
	}
	return sections
}
