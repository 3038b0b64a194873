package nlp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenTexts(at *AnalysedText) []string {
	out := make([]string, len(at.Tokens))
	for i, t := range at.Tokens {
		out[i] = at.SpanText(t.Span)
	}
	return out
}

func TestAnnotatorTokens(t *testing.T) {
	a := NewAnnotator(DefaultStopwords)
	at := a.Annotate("The Bank of America opened a branch in Paris.", "en")

	assert.Equal(t,
		[]string{"The", "Bank", "of", "America", "opened", "a", "branch", "in", "Paris"},
		tokenTexts(at))

	flags := map[string][2]bool{}
	for _, tok := range at.Tokens {
		flags[at.SpanText(tok.Span)] = [2]bool{tok.Linkable, tok.Matchable}
	}
	assert.Equal(t, [2]bool{false, false}, flags["The"], "stopword")
	assert.Equal(t, [2]bool{true, false}, flags["Bank"])
	assert.Equal(t, [2]bool{false, true}, flags["opened"])
	assert.Equal(t, [2]bool{false, true}, flags["branch"])
	assert.Equal(t, [2]bool{true, false}, flags["Paris"])
}

func TestAnnotatorChunks(t *testing.T) {
	a := NewAnnotator(DefaultStopwords)
	at := a.Annotate("The Bank of America opened a branch in Paris.", "en")

	require.Len(t, at.Chunks, 2)
	assert.Equal(t, "Bank of America", at.SpanText(at.Chunks[0].Span))
	assert.True(t, at.Chunks[0].NamedEntity)
	assert.Equal(t, "Paris", at.SpanText(at.Chunks[1].Span))
	assert.Len(t, at.NamedEntities(), 2)
}

func TestAnnotatorTrimsHyphens(t *testing.T) {
	a := NewAnnotator(nil)
	at := a.Annotate("--well-known-- 'quoted'", "en")
	assert.Equal(t, []string{"well-known", "quoted"}, tokenTexts(at))
}

func TestSections(t *testing.T) {
	a := NewAnnotator(DefaultStopwords)
	at := a.Annotate("Paris is big. Berlin is bigger!", "en")

	sections := at.Sections()
	require.Len(t, sections, 2)
	assert.Len(t, sections[0].Tokens, 3)
	assert.Len(t, sections[1].Tokens, 3)
	assert.Equal(t, "Berlin", at.SpanText(sections[1].Tokens[0].Span))
	require.Len(t, sections[1].Chunks, 1)

	at.Sentences = nil
	whole := at.Sections()
	require.Len(t, whole, 1)
	assert.Len(t, whole[0].Tokens, 6)
}

func TestSpanOverlaps(t *testing.T) {
	assert.True(t, Span{0, 5}.Overlaps(Span{4, 6}))
	assert.False(t, Span{0, 5}.Overlaps(Span{5, 6}))
	assert.False(t, Span{5, 6}.Overlaps(Span{0, 5}))
	assert.True(t, Span{0, 10}.Overlaps(Span{2, 3}))
}
