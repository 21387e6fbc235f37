package nlp

import "sort"

// Match is one phrase occurrence. Start and End are byte offsets into the text.
type Match struct {
	Pattern string
	Text    string
	Start   int
	End     int
}

type trieNode struct {
	next    map[string]*trieNode
	pattern string
	final   bool
}

// PhraseMatcher finds case- and accent-insensitive occurrences of
// multi-word patterns, comparing token by token.
type PhraseMatcher struct {
	root *trieNode
	size int
}

// NewPhraseMatcher indexes every pattern by its folded tokens.
func NewPhraseMatcher(patterns []string) *PhraseMatcher {
	m := &PhraseMatcher{root: &trieNode{}}
	for _, p := range patterns {
		m.Add(p)
	}
	return m
}

// Add indexes one more pattern. Not safe for use concurrently with Match.
func (m *PhraseMatcher) Add(pattern string) {
	toks := Tokenize(pattern)
	if len(toks) == 0 {
		return
	}
	node := m.root
	for _, t := range toks {
		if node.next == nil {
			node.next = make(map[string]*trieNode)
		}
		child, ok := node.next[t.Folded]
		if !ok {
			child = &trieNode{}
			node.next[t.Folded] = child
		}
		node = child
	}
	if !node.final {
		m.size++
	}
	node.final = true
	node.pattern = pattern
}

// Len returns the number of distinct patterns.
func (m *PhraseMatcher) Len() int { return m.size }

// Match returns every occurrence, including nested ones ("power bi" and
// "bi"), ordered by start then length.
func (m *PhraseMatcher) Match(text string, tokens []Token) []Match {
	var out []Match
	for i := range tokens {
		node := m.root
		for j := i; j < len(tokens); j++ {
			if j > i && tokens[j].Line != tokens[j-1].Line {
				break
			}
			child, ok := node.next[tokens[j].Folded]
			if !ok {
				break
			}
			node = child
			if node.final {
				start, end := tokens[i].Start, tokens[j].End
				out = append(out, Match{Pattern: node.pattern, Text: text[start:end], Start: start, End: end})
			}
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Start != out[b].Start {
			return out[a].Start < out[b].Start
		}
		return out[a].End < out[b].End
	})
	return out
}
