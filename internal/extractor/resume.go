package extractor

import (
	"context"
	"time"

	"docintel-go/internal/logger"
	"docintel-go/internal/nlp"
	"docintel-go/internal/types"
	"docintel-go/internal/vocab"
)

// ResumeExtractor fills a CandidateProfile from résumé text. Every field is
// computed in its own guarded call, so one failing extractor leaves only
// its field empty.
type ResumeExtractor struct {
	sections   *SectionDetector
	name       *NameExtractor
	contact    *ContactExtractor
	skills     *SkillsExtractor
	experience *ExperienceSegmenter
}

type ResumeOption func(*ResumeExtractor)

// WithNameWindows sets how many bytes the recognizer sees and how many
// lines the capitalised-line heuristic scans.
func WithNameWindows(entityBytes, lines int) ResumeOption {
	return func(r *ResumeExtractor) {
		if entityBytes > 0 {
			r.name.entityWindow = entityBytes
		}
		if lines > 0 {
			r.name.lineWindow = lines
		}
	}
}

// NewResumeExtractor wires the résumé extractors. model may be nil, in which
// case the recognizer-based layers find nothing.
func NewResumeExtractor(tables *vocab.Tables, model *nlp.Model, opts ...ResumeOption) *ResumeExtractor {
	r := &ResumeExtractor{
		sections:   NewSectionDetector(tables),
		name:       NewNameExtractor(tables, model),
		contact:    NewContactExtractor(),
		skills:     NewSkillsExtractor(tables, model),
		experience: NewExperienceSegmenter(tables),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Sections exposes the detector for callers that need the raw section map.
func (r *ResumeExtractor) Sections(text string) types.SectionMap {
	return r.sections.Detect(text)
}

// Extract fills each profile field in its own guarded call. Fields switched
// off in settings stay nil.
func (r *ResumeExtractor) Extract(ctx context.Context, text string, settings types.ExtractionSettings) types.CandidateProfile {
	start := time.Now()
	var p types.CandidateProfile

	sections := types.SectionMap{}
	guardField("sections", func() *string {
		sections = r.sections.Detect(text)
		return nil
	})

	p.Name = guardField("name", func() *string { return r.name.Extract(text) })
	p.Email = guardField("email", func() *string { return r.contact.Email(text) })
	p.Phone = guardField("phone", func() *string { return r.contact.Phone(text) })

	if settings.ExtractSkills {
		p.Skills = guardField("skills", func() *string { return r.skills.Extract(text, sections) })
	}
	if settings.ExtractExperience {
		p.Experience = guardField("experience", func() *string {
			return r.experience.Segment(sections.Get(types.SectionExperience))
		})
	}
	if settings.ExtractEducation {
		p.Education = guardField("education", func() *string {
			return sectionText(sections, types.SectionEducation)
		})
	}
	if settings.ExtractLanguages {
		p.Languages = guardField("languages", func() *string {
			return sectionText(sections, types.SectionLanguages)
		})
	}

	logger.Ctx(ctx).Debug().
		Int("sections", len(sections)).
		Int("fields_found", p.FoundFields()).
		Dur("took", time.Since(start)).
		Msg("resume extracted")
	return p
}

func sectionText(sections types.SectionMap, kind types.SectionKind) *string {
	if s, ok := sections.Get(kind); ok {
		return types.StringPtr(s)
	}
	return nil
}

func guardField(field string, fn func() *string) (out *string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Str("field", field).Interface("panic", r).Msg("field extraction failed")
			out = nil
		}
	}()
	return fn()
}
