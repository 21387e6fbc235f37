package extractor

import (
	"regexp"
	"strings"

	"docintel-go/internal/vocab"
)

// BlockSeparator separates dated experience blocks.
const BlockSeparator = "\n---\n"

// ExperienceSegmenter splits an experience section into date-anchored blocks.
type ExperienceSegmenter struct {
	markers []*regexp.Regexp
}

// NewExperienceSegmenter compiles the date markers for the month names in t.
func NewExperienceSegmenter(t *vocab.Tables) *ExperienceSegmenter {
	months := t.MonthNames()
	quoted := make([]string, len(months))
	for i, m := range months {
		quoted[i] = regexp.QuoteMeta(m)
	}
	return &ExperienceSegmenter{markers: []*regexp.Regexp{
		regexp.MustCompile(`\b(?:0?[1-9]|1[0-2])/(?:19|20)\d{2}\b`),
		regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\.?\s*(?:de\s+|/\s*)?(?:19|20)\d{2}\b`),
		regexp.MustCompile(`\b(?:19|20)\d{2}\b`),
	}}
}

func (s *ExperienceSegmenter) hasDate(line string) bool {
	for _, re := range s.markers {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// Segment returns the blocks joined by BlockSeparator, the section itself
// when no line carries a date, or nil when there is no section.
func (s *ExperienceSegmenter) Segment(section string, ok bool) *string {
	if !ok {
		return nil
	}
	var blocks []string
	var current []string
	dated := false
	flush := func() {
		if len(current) > 0 {
			blocks = append(blocks, strings.Join(current, "\n"))
			current = nil
		}
	}
	for _, line := range strings.Split(section, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if s.hasDate(line) {
			dated = true
			flush()
		}
		current = append(current, line)
	}
	flush()

	if !dated {
		return &section
	}
	out := strings.Join(blocks, BlockSeparator)
	return &out
}
