// Package textnorm holds the text normalisation shared by vocabulary
// lookups, tokenisation and matching.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lowercases s and strips diacritics ("Experiência" -> "experiencia").
// The result can differ from s in byte length; never use it to compute spans.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// FoldAll folds every element of in.
func FoldAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = Fold(s)
	}
	return out
}

// CollapseSpaces turns any whitespace run into one space and trims the ends.
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// IsCapitalized reports whether the first letter of s is uppercase.
func IsCapitalized(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return unicode.IsUpper(r)
		}
		return false
	}
	return false
}

// keptMarks belong to tokens such as "C#", "C++" or "R$".
const keptMarks = "#+$%"

// TrimPunct strips leading and trailing punctuation, symbols and spaces,
// returning the trimmed string and how many bytes were cut from the front.
func TrimPunct(s string) (string, int) {
	isJunk := func(r rune) bool {
		if strings.ContainsRune(keptMarks, r) {
			return false
		}
		return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
	}
	left := strings.TrimLeftFunc(s, isJunk)
	cut := len(s) - len(left)
	return strings.TrimRightFunc(left, isJunk), cut
}

// HasLetterOrDigit reports whether s holds at least one letter or digit.
func HasLetterOrDigit(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
