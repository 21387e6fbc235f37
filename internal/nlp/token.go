// Package nlp is a small rule-based Portuguese language pipeline: tokenizer,
// part-of-speech tagger, lemmatizer, entity recognizer, phrase matcher and
// embedding-based similarity.
package nlp

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"docintel-go/internal/textnorm"
)

// POS is a coarse universal part-of-speech tag.
type POS string

const (
	PosNoun  POS = "NOUN"
	PosPropn POS = "PROPN"
	PosVerb  POS = "VERB"
	PosAux   POS = "AUX"
	PosAdj   POS = "ADJ"
	PosAdv   POS = "ADV"
	PosAdp   POS = "ADP"
	PosDet   POS = "DET"
	PosPron  POS = "PRON"
	PosCconj POS = "CCONJ"
	PosSconj POS = "SCONJ"
	PosNum   POS = "NUM"
	PosPunct POS = "PUNCT"
	PosX     POS = "X"
)

// Token is one word or punctuation mark. Start and End are byte offsets into
// the analysed text.
type Token struct {
	Text      string
	Folded    string
	Start     int
	End       int
	Line      int
	SentStart bool
	LineStart bool

	POS   POS
	Lemma string
	Stop  bool
}

// IsWord reports whether the token holds a letter.
func (t Token) IsWord() bool {
	for _, r := range t.Text {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// IsCapitalized reports whether the token starts with an uppercase letter.
func (t Token) IsCapitalized() bool { return textnorm.IsCapitalized(t.Text) }

// IsAllCaps reports whether every letter is uppercase and there are at least two.
func (t Token) IsAllCaps() bool {
	letters := 0
	for _, r := range t.Text {
		if unicode.IsLetter(r) {
			if !unicode.IsUpper(r) {
				return false
			}
			letters++
		}
	}
	return letters >= 2
}

// joiners may appear inside a word when followed by a letter or digit:
// "node.js", "ci/cd", "e-mail", "d'água", "maria@x.com".
const joiners = ".-/'_@&"

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
}

// Tokenize splits text into tokens without tagging them.
func Tokenize(text string) []Token {
	var (
		tokens    []Token
		line      int
		sentStart = true
		lineStart = true
	)
	emit := func(start, end int) {
		word := text[start:end]
		tokens = append(tokens, Token{
			Text:      word,
			Folded:    textnorm.Fold(word),
			Start:     start,
			End:       end,
			Line:      line,
			SentStart: sentStart,
			LineStart: lineStart,
		})
		sentStart, lineStart = false, false
	}

	i := 0
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		switch {
		case r == '\n':
			line++
			sentStart, lineStart = true, true
			i += size
		case unicode.IsSpace(r):
			i += size
		case isWordRune(r) || (r == '.' && startsWord(text, i+size) && precededBySpace(text, i)):
			start := i
			i += size
			for i < len(text) {
				r, size = utf8.DecodeRuneInString(text[i:])
				if isWordRune(r) {
					i += size
					continue
				}
				if strings.ContainsRune(joiners, r) && startsWord(text, i+size) {
					i += size
					continue
				}
				break
			}
			// C++, C#, F#
			for i < len(text) && (text[i] == '+' || text[i] == '#') {
				i++
			}
			emit(start, i)
		default:
			start := i
			i += size
			emit(start, i)
			if r == '.' || r == '!' || r == '?' || r == ':' || r == ';' {
				sentStart = true
			}
		}
	}
	return tokens
}

func startsWord(text string, at int) bool {
	if at >= len(text) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(text[at:])
	return isWordRune(r)
}

func precededBySpace(text string, at int) bool {
	if at == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:at])
	return unicode.IsSpace(r) || r == '(' || r == ','
}
