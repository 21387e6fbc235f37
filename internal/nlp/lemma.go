package nlp

import "strings"

type suffixRule struct{ from, to string }

var pluralRules = []suffixRule{
	{"oes", "ao"}, {"aes", "ao"}, {"ais", "al"}, {"eis", "el"}, {"ois", "ol"},
	{"ns", "m"}, {"res", "r"}, {"zes", "z"},
}

var verbRules = []suffixRule{
	{"ando", "ar"}, {"endo", "er"}, {"indo", "ir"},
	{"aram", "ar"}, {"eram", "er"}, {"iram", "ir"},
	{"avam", "ar"}, {"ava", "ar"},
	{"amos", "ar"}, {"emos", "er"}, {"imos", "ir"},
	{"ou", "ar"}, {"ei", "ar"}, {"iu", "ir"},
}

// Lemmatize returns the dictionary form of a folded word. Nouns and
// adjectives lose plural endings; verbs are mapped to the infinitive.
func Lemmatize(folded string, pos POS) string {
	switch pos {
	case PosVerb, PosAux:
		if inf, ok := verbForms[folded]; ok {
			return inf
		}
		for _, r := range verbRules {
			if strings.HasSuffix(folded, r.from) && len(folded) > len(r.from)+1 {
				return strings.TrimSuffix(folded, r.from) + r.to
			}
		}
		return folded
	case PosNoun, PosAdj, PosPropn:
		return singular(folded)
	}
	return folded
}

func singular(w string) string {
	if len(w) <= 3 {
		return w
	}
	for _, r := range pluralRules {
		if strings.HasSuffix(w, r.from) && len(w) > len(r.from)+1 {
			return strings.TrimSuffix(w, r.from) + r.to
		}
	}
	if strings.HasSuffix(w, "ss") || strings.HasSuffix(w, "us") || strings.HasSuffix(w, "is") {
		return w
	}
	if strings.HasSuffix(w, "s") {
		prev := w[len(w)-2]
		if strings.IndexByte("aeiou", prev) >= 0 {
			return w[:len(w)-1]
		}
	}
	return w
}

// LemmaOf tags a single word out of context and returns its lemma.
func LemmaOf(word string) string {
	toks := Tokenize(word)
	if len(toks) != 1 {
		return strings.ToLower(word)
	}
	toks[0].SentStart = false
	pos := tagToken(toks[0], nil)
	return Lemmatize(toks[0].Folded, pos)
}
