package nlp

import (
	"strings"
	"unicode"
)

func set(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// Closed classes, keyed by the folded form.
var (
	determiners = set("o", "a", "os", "as", "um", "uma", "uns", "umas", "este", "esta", "estes", "estas", "esse",
		"essa", "esses", "essas", "aquele", "aquela", "aqueles", "aquelas", "todo", "toda", "todos", "todas",
		"cada", "outro", "outra", "outros", "outras", "the", "an")
	adpositions = set("de", "da", "do", "das", "dos", "em", "na", "no", "nas", "nos", "num", "numa", "por", "pelo",
		"pela", "pelos", "pelas", "para", "pra", "pro", "com", "sem", "sob", "sobre", "entre", "ate", "apos", "desde",
		"contra", "ao", "aos", "a", "perante", "of", "in", "on", "at", "with", "for", "to", "by", "from")
	pronouns = set("eu", "tu", "ele", "ela", "nos", "vos", "eles", "elas", "voce", "voces", "me", "te", "se", "lhe",
		"lhes", "meu", "minha", "meus", "minhas", "teu", "tua", "seu", "sua", "seus", "suas", "nosso", "nossa",
		"isto", "isso", "aquilo", "quem", "qual", "quais", "i", "you", "he", "she", "we", "they", "my")
	conjunctions = set("e", "ou", "mas", "nem", "porem", "contudo", "and", "or", "but")
	subordinators = set("que", "porque", "quando", "como", "embora", "enquanto", "caso", "pois", "if", "that")
	adverbs = set("nao", "sim", "muito", "pouco", "bem", "mal", "mais", "menos", "tambem", "sempre", "nunca", "ja",
		"ainda", "so", "apenas", "bastante", "demais", "aqui", "ali", "hoje", "ontem", "amanha", "tambem", "very")
	auxiliaries = set("ser", "sou", "es", "e", "somos", "sao", "era", "eram", "foi", "fui", "foram", "sido", "sera",
		"estar", "estou", "esta", "estamos", "estao", "estava", "ter", "tenho", "tem", "temos", "tinha", "teve",
		"haver", "ha", "havia", "is", "are", "was", "were", "be")
)

// verbForms are frequent first-person and irregular forms mapped to their infinitive.
var verbForms = map[string]string{
	"gosto": "gostar", "adoro": "adorar", "amo": "amar", "curto": "curtir", "faco": "fazer", "fiz": "fazer",
	"leio": "ler", "escrevo": "escrever", "pinto": "pintar", "toco": "tocar", "canto": "cantar",
	"danco": "dancar", "cozinho": "cozinhar", "viajo": "viajar", "corro": "correr", "nado": "nadar",
	"programo": "programar", "ajudo": "ajudar", "cuido": "cuidar", "crio": "criar", "desenvolvo": "desenvolver",
	"trabalhei": "trabalhar", "atuei": "atuar", "participei": "participar", "liderei": "liderar",
	"gerenciei": "gerenciar", "desenvolvi": "desenvolver", "implementei": "implementar", "criei": "criar",
	"sei": "saber", "quero": "querer", "posso": "poder", "vou": "ir", "vai": "ir", "fazer": "fazer",
	"gosta": "gostar", "adora": "adorar", "sou": "ser", "e": "ser", "sao": "ser", "foi": "ser",
	"tenho": "ter", "tem": "ter", "estou": "estar", "esta": "estar",
}

var (
	verbSuffixes = []string{"ando", "endo", "indo", "amos", "emos", "imos", "aram", "eram", "iram", "avam",
		"ava", "ei", "ou", "iu"}
	infinitiveSuffixes = []string{"ar", "er", "ir"}
	agentSuffixes      = []string{"dor", "tor", "sor", "or"}
	adjSuffixes        = []string{"osos", "osas", "oso", "osa", "veis", "vel", "ivos", "ivas", "ivo", "iva",
		"ados", "adas", "idos", "idas", "ado", "ada", "ido", "ida", "ico", "ica", "icos", "icas", "ario", "aria"}
)

// nonVerbWords end like infinitives but are nouns.
var nonVerbWords = set("lugar", "mar", "bar", "lar", "par", "militar", "familiar", "escolar", "celular",
	"mulher", "prazer", "poder", "dever", "saber", "lazer", "ser", "qualquer", "doutor", "ator")

// TagAll assigns POS, lemma and stop flags in place.
func TagAll(tokens []Token, isStop func(string) bool, isKnownProper func(string) bool) {
	for i := range tokens {
		tok := &tokens[i]
		tok.POS = tagToken(*tok, isKnownProper)
		tok.Lemma = Lemmatize(tok.Folded, tok.POS)
		tok.Stop = isStop != nil && isStop(tok.Folded)
	}
}

func tagToken(tok Token, isKnownProper func(string) bool) POS {
	f := tok.Folded
	if !tok.IsWord() {
		for _, r := range tok.Text {
			if unicode.IsDigit(r) {
				return PosNum
			}
		}
		return PosPunct
	}
	if tok.IsCapitalized() && (!tok.SentStart || tok.IsAllCaps() || (isKnownProper != nil && isKnownProper(f))) {
		if _, closed := closedClass(f); !closed || tok.IsAllCaps() {
			return PosPropn
		}
	}
	if pos, ok := closedClass(f); ok {
		return pos
	}
	if _, ok := verbForms[f]; ok {
		return PosVerb
	}
	if looksLikeVerb(f) {
		return PosVerb
	}
	if looksLikeAdj(f) {
		return PosAdj
	}
	if tok.IsCapitalized() && !tok.SentStart {
		return PosPropn
	}
	return PosNoun
}

func closedClass(f string) (POS, bool) {
	// Order resolves ambiguity: "a" is a determiner, "e" a conjunction.
	if _, ok := determiners[f]; ok {
		return PosDet, true
	}
	if _, ok := conjunctions[f]; ok {
		return PosCconj, true
	}
	if _, ok := adpositions[f]; ok {
		return PosAdp, true
	}
	if _, ok := auxiliaries[f]; ok {
		return PosAux, true
	}
	if _, ok := pronouns[f]; ok {
		return PosPron, true
	}
	if _, ok := subordinators[f]; ok {
		return PosSconj, true
	}
	if _, ok := adverbs[f]; ok {
		return PosAdv, true
	}
	return "", false
}

func looksLikeVerb(f string) bool {
	if len(f) < 4 {
		return false
	}
	if _, ok := nonVerbWords[f]; ok {
		return false
	}
	for _, s := range agentSuffixes {
		if strings.HasSuffix(f, s) {
			return false
		}
	}
	for _, s := range infinitiveSuffixes {
		if strings.HasSuffix(f, s) {
			return true
		}
	}
	for _, s := range verbSuffixes {
		if strings.HasSuffix(f, s) && len(f) > len(s)+2 {
			return true
		}
	}
	return false
}

func looksLikeAdj(f string) bool {
	for _, s := range adjSuffixes {
		if strings.HasSuffix(f, s) && len(f) > len(s)+3 {
			return true
		}
	}
	return false
}
