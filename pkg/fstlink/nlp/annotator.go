package nlp

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultStopwords is a small English stopword list.
var DefaultStopwords = []string{
	"a", "an", "and", "are", "as", "at", "be", "but", "by", "for", "from",
	"has", "have", "he", "her", "his", "in", "is", "it", "its", "of", "on",
	"or", "she", "that", "the", "their", "they", "this", "to", "was", "were",
	"which", "while", "will", "with",
}

// Annotator is a heuristic producer of AnalysedText for callers without an
// NLP pipeline. Capitalised words are linkable, longer lowercase content
// words are matchable and runs of capitalised words form named entity
// chunks.
type Annotator struct {
	stopwords       map[string]struct{}
	minMatchableLen int
}

// NewAnnotator creates an annotator with the given stopword list.
func NewAnnotator(stopwords []string) *Annotator {
	stops := make(map[string]struct{}, len(stopwords))
	for _, w := range stopwords {
		stops[strings.ToLower(w)] = struct{}{}
	}
	return &Annotator{stopwords: stops, minMatchableLen: 4}
}

// AddStopword adds a word to the stopword list
func (a *Annotator) AddStopword(word string) {
	a.stopwords[strings.ToLower(word)] = struct{}{}
}

// Annotate tokenizes text and flags tokens.
func (a *Annotator) Annotate(text, language string) *AnalysedText {
	at := &AnalysedText{Text: text, Language: language}
	at.Sentences = splitSentences(text)
	at.Tokens = a.tokenize(text)
	at.Chunks = a.chunk(text, at.Tokens, at.Sentences)
	return at
}

// tokenize splits text into words of letters, digits, '-' and '\''.
func (a *Annotator) tokenize(text string) []Token {
	var tokens []Token
	start := -1
	flush := func(end int) {
		if start < 0 {
			return
		}
		s, e := trimToken(text, start, end)
		if s < e {
			tokens = append(tokens, a.classify(text[s:e], Span{Start: s, End: e}))
		}
		start = -1
	}
	for i, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || r == '-' || r == '\'' {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(text))
	return tokens
}

// trimToken strips leading and trailing hyphens and apostrophes.
func trimToken(text string, start, end int) (int, int) {
	for start < end && (text[start] == '-' || text[start] == '\'') {
		start++
	}
	for end > start && (text[end-1] == '-' || text[end-1] == '\'') {
		end--
	}
	return start, end
}

func (a *Annotator) classify(word string, span Span) Token {
	tok := Token{Span: span}
	lower := strings.ToLower(word)
	if _, stop := a.stopwords[lower]; stop {
		return tok
	}
	first, _ := utf8.DecodeRuneInString(word)
	switch {
	case unicode.IsUpper(first):
		tok.Linkable = true
	case unicode.IsLetter(first) && utf8.RuneCountInString(word) >= a.minMatchableLen:
		tok.Matchable = true
	}
	return tok
}

// chunk groups runs of linkable tokens into named entity chunks. A single
// stopword between two linkable tokens of the same sentence is kept inside
// the run ("Bank of America").
func (a *Annotator) chunk(text string, tokens []Token, sentences []Span) []Chunk {
	sentenceOf := func(pos int) int {
		for i, s := range sentences {
			if pos >= s.Start && pos < s.End {
				return i
			}
		}
		return -1
	}
	var chunks []Chunk
	for i := 0; i < len(tokens); {
		if !tokens[i].Linkable {
			i++
			continue
		}
		sent := sentenceOf(tokens[i].Start)
		j := i + 1
		last := i
		for j < len(tokens) && sentenceOf(tokens[j].Start) == sent {
			if tokens[j].Linkable {
				last = j
				j++
				continue
			}
			if j+1 < len(tokens) && a.isStopword(text, tokens[j]) && tokens[j+1].Linkable &&
				sentenceOf(tokens[j+1].Start) == sent {
				j++
				continue
			}
			break
		}
		chunks = append(chunks, Chunk{
			Span:        Span{Start: tokens[i].Start, End: tokens[last].End},
			Processable: true,
			NamedEntity: true,
		})
		i = last + 1
	}
	return chunks
}

func (a *Annotator) isStopword(text string, t Token) bool {
	_, ok := a.stopwords[strings.ToLower(text[t.Start:t.End])]
	return ok
}

// splitSentences breaks text after '.', '!' or '?' followed by whitespace.
func splitSentences(text string) []Span {
	var out []Span
	start := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '.' && c != '!' && c != '?' {
			continue
		}
		if i+1 < len(text) && text[i+1] != ' ' && text[i+1] != '\n' && text[i+1] != '\t' {
			continue
		}
		if strings.TrimSpace(text[start:i+1]) != "" {
			out = append(out, Span{Start: start, End: i + 1})
		}
		start = i + 1
	}
	if strings.TrimSpace(text[start:]) != "" {
		out = append(out, Span{Start: start, End: len(text)})
	}
	return out
}
