// Package nlp models the analysed text consumed by the linker: sentence
// boundaries, tokens flagged linkable or matchable, and phrase chunks.
package nlp

import "sort"

// Span is a half-open byte range [Start, End) of the text.
type Span struct {
	Start int
	End   int
}

// Overlaps reports whether the two spans share at least one byte.
func (s Span) Overlaps(o Span) bool {
	return s.Start < o.End && o.Start < s.End
}

// Len returns the byte length of the span.
func (s Span) Len() int { return s.End - s.Start }

// Token is one NLP token.
type Token struct {
	Span
	// Linkable tokens are strong candidates for an entity mention.
	Linkable bool
	// Matchable tokens are weak candidates that are only looked up next to
	// linkable ones.
	Matchable bool
}

// Chunk is a phrase (typically a noun phrase or a named entity).
type Chunk struct {
	Span
	Processable bool
	NamedEntity bool
	// Type is the named entity type, e.g. PER, ORG, LOC.
	Type string
}

// AnalysedText is the immutable NLP view of one document.
type AnalysedText struct {
	Text      string
	Language  string
	Sentences []Span
	Tokens    []Token
	Chunks    []Chunk
}

// Section is a maximal text unit tokens are classified in.
type Section struct {
	Span
	Tokens []Token
	Chunks []Chunk
}

// SpanText returns the text covered by s.
func (at *AnalysedText) SpanText(s Span) string {
	if s.Start < 0 || s.End > len(at.Text) || s.Start > s.End {
		return ""
	}
	return at.Text[s.Start:s.End]
}

// Sections splits tokens and chunks by sentence. Without sentences the
// whole document forms a single section.
func (at *AnalysedText) Sections() []Section {
	if len(at.Sentences) == 0 {
		return []Section{{
			Span:   Span{Start: 0, End: len(at.Text)},
			Tokens: at.Tokens,
			Chunks: at.Chunks,
		}}
	}
	sentences := append([]Span(nil), at.Sentences...)
	sort.Slice(sentences, func(i, j int) bool { return sentences[i].Start < sentences[j].Start })

	sections := make([]Section, 0, len(sentences))
	ti, ci := 0, 0
	for _, s := range sentences {
		sec := Section{Span: s}
		for ti < len(at.Tokens) && at.Tokens[ti].Start < s.Start {
			ti++
		}
		start := ti
		for ti < len(at.Tokens) && at.Tokens[ti].Start < s.End {
			ti++
		}
		sec.Tokens = at.Tokens[start:ti]
		for ci < len(at.Chunks) && at.Chunks[ci].Start < s.Start {
			ci++
		}
		cstart := ci
		for ci < len(at.Chunks) && at.Chunks[ci].Start < s.End {
			ci++
		}
		sec.Chunks = at.Chunks[cstart:ci]
		sections = append(sections, sec)
	}
	return sections
}

// NamedEntities returns the named entity chunks of the document.
func (at *AnalysedText) NamedEntities() []Chunk {
	var out []Chunk
	for _, c := range at.Chunks {
		if c.NamedEntity {
			out = append(out, c)
		}
	}
	return out
}
