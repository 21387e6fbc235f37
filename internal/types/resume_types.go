package types

import (
	"sort"
	"strings"
)

// SectionKind identifies a résumé section recognised by its heading.
type SectionKind string

const (
	SectionObjective  SectionKind = "objective"
	SectionExperience SectionKind = "experience"
	SectionEducation  SectionKind = "education"
	SectionSkills     SectionKind = "skills"
	SectionLanguages  SectionKind = "languages"
	SectionCourses    SectionKind = "courses"
	SectionProjects   SectionKind = "projects"
)

// SectionKinds lists every kind in declared order. Headings found at the
// same offset are ordered by this list.
var SectionKinds = []SectionKind{
	SectionObjective,
	SectionExperience,
	SectionEducation,
	SectionSkills,
	SectionLanguages,
	SectionCourses,
	SectionProjects,
}

// Rank returns the position of k in SectionKinds, or len(SectionKinds) for unknown kinds.
func (k SectionKind) Rank() int {
	for i, kind := range SectionKinds {
		if kind == k {
			return i
		}
	}
	return len(SectionKinds)
}

// SectionMap holds the content of each detected section. Absent keys mean
// the section heading was not found.
type SectionMap map[SectionKind]string

// Get returns the section content and whether the section was detected.
func (m SectionMap) Get(kind SectionKind) (string, bool) {
	if m == nil {
		return "", false
	}
	v, ok := m[kind]
	return v, ok
}

// Kinds returns detected kinds in declared order.
func (m SectionMap) Kinds() []SectionKind {
	kinds := make([]SectionKind, 0, len(m))
	for k := range m {
		kinds = append(kinds, k)
	}
	sort.SliceStable(kinds, func(i, j int) bool { return kinds[i].Rank() < kinds[j].Rank() })
	return kinds
}

// CandidateProfile is the aggregated result of a résumé extraction run.
// A nil field means the value was not found or the extractor was disabled.
type CandidateProfile struct {
	Name       *string `json:"name"`
	Email      *string `json:"email"`
	Phone      *string `json:"phone"`
	Skills     *string `json:"skills"`
	Experience *string `json:"experience"`
	Education  *string `json:"education"`
	Languages  *string `json:"languages"`
}

// SkillList splits the comma-joined skills field.
func (p CandidateProfile) SkillList() []string {
	if p.Skills == nil || *p.Skills == "" {
		return nil
	}
	return strings.Split(*p.Skills, ", ")
}

// FoundFields counts the populated fields.
func (p CandidateProfile) FoundFields() int {
	n := 0
	for _, f := range []*string{p.Name, p.Email, p.Phone, p.Skills, p.Experience, p.Education, p.Languages} {
		if f != nil {
			n++
		}
	}
	return n
}

// ExtractionSettings toggles the optional résumé extraction layers.
type ExtractionSettings struct {
	ExtractExperience bool `json:"extract_experience" yaml:"extract_experience"`
	ExtractSkills     bool `json:"extract_skills" yaml:"extract_skills"`
	ExtractEducation  bool `json:"extract_education" yaml:"extract_education"`
	ExtractLanguages  bool `json:"extract_languages" yaml:"extract_languages"`
}

// DefaultExtractionSettings enables every layer.
func DefaultExtractionSettings() ExtractionSettings {
	return ExtractionSettings{
		ExtractExperience: true,
		ExtractSkills:     true,
		ExtractEducation:  true,
		ExtractLanguages:  true,
	}
}

// StringPtr returns nil for an empty string.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
