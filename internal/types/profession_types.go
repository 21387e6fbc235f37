package types

// ProfessionScore is one ranked profession suggestion.
type ProfessionScore struct {
	Label string  `json:"profession"`
	Score float64 `json:"score"`
}

// ToxicityVerdict is the outcome of the offensive-language check.
type ToxicityVerdict struct {
	Detected     bool     `json:"detected"`
	Confidence   float64  `json:"confidence"`
	MatchedTerms []string `json:"matched_terms"`
	Categories   []string `json:"categories"`
}

// previewSize is how many matched terms are shown to the user.
const previewSize = 3

// Count returns the number of matched terms.
func (v ToxicityVerdict) Count() int { return len(v.MatchedTerms) }

// Preview returns at most the first three matched terms.
func (v ToxicityVerdict) Preview() []string {
	if len(v.MatchedTerms) <= previewSize {
		return v.MatchedTerms
	}
	return v.MatchedTerms[:previewSize]
}

// HasMore reports whether matched terms were left out of Preview.
func (v ToxicityVerdict) HasMore() bool { return len(v.MatchedTerms) > previewSize }

// ProfessionResult is the full answer for a hobby description.
type ProfessionResult struct {
	Suggestions []ProfessionScore `json:"suggestions"`
	Toxicity    *ToxicityVerdict  `json:"toxicity,omitempty"`
}
