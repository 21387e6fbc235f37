package vocab

import (
	"sort"
	"strings"

	"docintel-go/internal/textnorm"
	"docintel-go/internal/types"
)

// Versions reports the version field of every table file.
func (t *Tables) Versions() map[string]int {
	out := make(map[string]int, len(t.versions))
	for k, v := range t.versions {
		out[k] = v
	}
	return out
}

// SkillTerms returns every skill term once, in file order.
func (t *Tables) SkillTerms() []string {
	return append([]string(nil), t.skillTerms...)
}

// SkillDomains returns the domain names in file order.
func (t *Tables) SkillDomains() []string {
	return append([]string(nil), t.domainOrder...)
}

// DomainTerms returns the terms of one domain.
func (t *Tables) DomainTerms(domain string) []string {
	return append([]string(nil), t.domainTerms[domain]...)
}

// Professions returns the taxonomy in file order.
func (t *Tables) Professions() []Profession {
	return append([]Profession(nil), t.professions...)
}

// DescriptionText is the text compared against free input for semantic similarity.
func (p Profession) DescriptionText() string {
	if p.Description != "" {
		return p.Description
	}
	return p.Label + ": " + strings.Join(p.Keywords, ", ")
}

// SectionVariants returns the heading variants of kind.
func (t *Tables) SectionVariants(kind types.SectionKind) []string {
	return append([]string(nil), t.sections[kind]...)
}

// ToxicTerms returns the folded offensive terms.
func (t *Tables) ToxicTerms() []string { return append([]string(nil), t.toxicTerms...) }

// ToxicTermWeight is the confidence contributed by each exact term match.
func (t *Tables) ToxicTermWeight() float64 { return t.termWeight }

// ToxicPatterns returns the weighted patterns.
func (t *Tables) ToxicPatterns() []ToxicPattern {
	return append([]ToxicPattern(nil), t.toxicPattern...)
}

func (t *Tables) IsPositiveContext(word string) bool { return t.positive.has(word) }
func (t *Tables) IsStopWord(word string) bool        { return t.stop.has(word) }

// IsGenericSkillTerm reports résumé filler such as "nível" or "avançado".
func (t *Tables) IsGenericSkillTerm(word string) bool { return t.skillGeneric.has(word) }

// IsSkillFilterWord reports words dropped from the final skill list.
func (t *Tables) IsSkillFilterWord(word string) bool { return t.skillFilter.has(word) }

// IsContractBoilerplate reports structural contract vocabulary.
func (t *Tables) IsContractBoilerplate(text string) bool {
	return t.boilerplate.has(textnorm.CollapseSpaces(text))
}

func (t *Tables) IsFirstName(word string) bool  { return t.firstNames.has(word) }
func (t *Tables) IsOrgSuffix(word string) bool  { return t.orgSuffixes.has(strings.TrimRight(word, ".")) }
func (t *Tables) IsOrgKeyword(word string) bool { return t.orgKeywords.has(word) }
func (t *Tables) IsState(word string) bool      { return t.states.has(word) }

// IsLocation reports whether the whole phrase is a known place.
func (t *Tables) IsLocation(phrase string) bool {
	folded := textnorm.Fold(textnorm.CollapseSpaces(phrase))
	for _, loc := range t.locations {
		if loc == folded {
			return true
		}
	}
	return false
}

// Locations returns the folded place names.
func (t *Tables) Locations() []string { return append([]string(nil), t.locations...) }

// Month resolves a month name or abbreviation.
func (t *Tables) Month(word string) (int, bool) {
	m, ok := t.months[textnorm.Fold(strings.TrimSuffix(word, "."))]
	return m, ok
}

// MonthNames returns every month name and abbreviation, with and without
// accents, longest first so they can be joined into a regexp alternation.
func (t *Tables) MonthNames() []string {
	names := append([]string(nil), t.monthNames...)
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	return names
}

// ContainsNetworkingMarker reports whether line mentions a social or portfolio site.
func (t *Tables) ContainsNetworkingMarker(line string) bool {
	folded := textnorm.Fold(line)
	for _, m := range t.networking {
		if strings.Contains(folded, m) {
			return true
		}
	}
	return false
}
