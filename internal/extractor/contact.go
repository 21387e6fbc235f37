package extractor

import (
	"regexp"
	"strings"

	"docintel-go/internal/types"
)

var emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9-]+(?:\.[A-Za-z0-9-]+)*\.[A-Za-z]{2,}`)

// phonePatterns are tried in order; the first variant with any match wins.
var phonePatterns = []*regexp.Regexp{
	// +55 (11) 98765-4321, +55 11 98765 4321
	regexp.MustCompile(`\+\d{1,3}[ .-]?\(?\d{2}\)?[ .-]?\d{4,5}[ .-]?\d{4}\b`),
	// (11) 98765-4321
	regexp.MustCompile(`\(\d{2}\)[ ]?\d{4,5}[ .-]?\d{4}\b`),
	// 11 98765-4321, 11987654321
	regexp.MustCompile(`\b\d{2}[ .-]?\d{4,5}[ .-]?\d{4}\b`),
	// +1 415 555 0100 and other international layouts
	regexp.MustCompile(`\+\d[\d ().-]{7,}\d`),
}

// ContactExtractor finds the first email address and phone number.
type ContactExtractor struct{}

// NewContactExtractor returns a stateless extractor; the patterns are package level.
func NewContactExtractor() *ContactExtractor { return &ContactExtractor{} }

// Extract returns (email, phone); either may be nil.
func (c *ContactExtractor) Extract(text string) (email, phone *string) {
	return c.Email(text), c.Phone(text)
}

// Email returns the first address in text, or nil.
func (c *ContactExtractor) Email(text string) *string {
	return types.StringPtr(emailPattern.FindString(text))
}

// Phone returns the first match of the earliest phone variant that matches
// anywhere in text, or nil.
func (c *ContactExtractor) Phone(text string) *string {
	for _, re := range phonePatterns {
		if m := re.FindString(text); m != "" {
			return types.StringPtr(strings.TrimSpace(m))
		}
	}
	return nil
}
