package nlp

// Chunk is a noun phrase. Start and End are byte offsets into the analysed
// text; Tokens are the tokens it covers, connectors included.
type Chunk struct {
	Text   string
	Start  int
	End    int
	Tokens []Token
}

func isNominal(p POS) bool { return p == PosNoun || p == PosPropn || p == PosAdj }

// NounChunks groups runs of nouns, proper nouns and adjectives on one line.
// A single "de"/"da"/"do" may join two nominal runs ("gestão de projetos").
func NounChunks(text string, tokens []Token) []Chunk {
	var chunks []Chunk
	i := 0
	for i < len(tokens) {
		if !isNominal(tokens[i].POS) {
			i++
			continue
		}
		j := i
		for j+1 < len(tokens) && tokens[j+1].Line == tokens[i].Line {
			next := tokens[j+1]
			if isNominal(next.POS) {
				j++
				continue
			}
			if next.POS == PosAdp && isGenitive(next.Folded) && j+2 < len(tokens) &&
				tokens[j+2].Line == next.Line && isNominal(tokens[j+2].POS) {
				j += 2
				continue
			}
			break
		}
		hasNoun := false
		for k := i; k <= j; k++ {
			if tokens[k].POS == PosNoun || tokens[k].POS == PosPropn {
				hasNoun = true
				break
			}
		}
		if hasNoun {
			start, end := tokens[i].Start, tokens[j].End
			chunks = append(chunks, Chunk{Text: text[start:end], Start: start, End: end, Tokens: tokens[i : j+1]})
		}
		i = j + 1
	}
	return chunks
}

func isGenitive(f string) bool {
	switch f {
	case "de", "da", "do", "das", "dos":
		return true
	}
	return false
}
