package classify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/fstlink/pkg/fstlink/nlp"
)

// buildText creates an analysed text from words written as "word/L"
// (linkable), "word/M" (matchable) or "word". A "|" ends a sentence.
func buildText(words ...string) *nlp.AnalysedText {
	var sb strings.Builder
	at := &nlp.AnalysedText{}
	sentStart := 0
	for _, w := range words {
		if w == "|" {
			at.Sentences = append(at.Sentences, nlp.Span{Start: sentStart, End: sb.Len()})
			sentStart = sb.Len()
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		text, flag, _ := strings.Cut(w, "/")
		start := sb.Len()
		sb.WriteString(text)
		at.Tokens = append(at.Tokens, nlp.Token{
			Span:      nlp.Span{Start: start, End: sb.Len()},
			Linkable:  flag == "L",
			Matchable: flag == "M",
		})
	}
	if len(at.Sentences) > 0 && sentStart < sb.Len() {
		at.Sentences = append(at.Sentences, nlp.Span{Start: sentStart, End: sb.Len()})
	}
	at.Text = sb.String()
	return at
}

// classifyAll classifies one query token per NLP token.
func classifyAll(c *Classifier, at *nlp.AnalysedText) []bool {
	out := make([]bool, len(at.Tokens))
	for i, tok := range at.Tokens {
		out[i] = c.Classify(tok.Start, tok.End)
	}
	return out
}

func TestClassifyLinkable(t *testing.T) {
	at := buildText("the", "Paris/L", "hotel")
	got := classifyAll(New(at, Options{}), at)
	assert.Equal(t, []bool{false, true, false}, got)
}

func TestClassifyLookahead(t *testing.T) {
	tests := []struct {
		name  string
		words []string
		want  []bool
	}{
		{
			name:  "linkable within window",
			words: []string{"river/M", "x", "Seine/L"},
			want:  []bool{true, false, true},
		},
		{
			name:  "linkable outside window",
			words: []string{"river/M", "x", "y", "Seine/L"},
			want:  []bool{false, false, false, true},
		},
		{
			name:  "matchable at window edge extends it",
			words: []string{"river/M", "x", "bank/M", "Seine/L"},
			want:  []bool{true, false, true, true},
		},
		{
			name:  "matchable before the edge does not extend",
			words: []string{"river/M", "bank/M", "x", "y", "Seine/L"},
			want:  []bool{false, false, false, false, true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			at := buildText(tt.words...)
			assert.Equal(t, tt.want, classifyAll(New(at, Options{}), at))
		})
	}
}

func TestClassifyLookaheadStopsAtSection(t *testing.T) {
	at := buildText("river/M", "|", "Seine/L")
	got := classifyAll(New(at, Options{}), at)
	assert.Equal(t, []bool{false, true}, got)
}

func TestClassifySegmentationMismatch(t *testing.T) {
	// one NLP token "New-York" covers two query tokens
	at := &nlp.AnalysedText{
		Text: "New-York city",
		Tokens: []nlp.Token{
			{Span: nlp.Span{Start: 0, End: 8}, Linkable: true},
			{Span: nlp.Span{Start: 9, End: 13}},
		},
	}
	c := New(at, Options{})
	assert.True(t, c.Classify(0, 3))
	assert.True(t, c.Classify(4, 8))
	assert.False(t, c.Classify(9, 13))

	// one query token covers two NLP tokens
	at = &nlp.AnalysedText{
		Text: "St. Louis",
		Tokens: []nlp.Token{
			{Span: nlp.Span{Start: 0, End: 3}},
			{Span: nlp.Span{Start: 4, End: 9}, Linkable: true},
		},
	}
	c = New(at, Options{})
	assert.True(t, c.Classify(0, 9))
}

func TestClassifySkipsTokensWithoutQueryToken(t *testing.T) {
	// the query analyzer dropped "Of" entirely
	at := buildText("Of/L", "course")
	c := New(at, Options{})
	assert.False(t, c.Classify(3, 9))
	// the skipped linkable token is still queued for cluster reduction
	assert.Equal(t, []nlp.Span{{Start: 0, End: 2}}, c.Linkable().Spans())
}

func TestClassifyChunkRules(t *testing.T) {
	at := buildText("united/M", "nations/M", "summit/M", "x", "y", "z")
	at.Chunks = []nlp.Chunk{{Span: nlp.Span{Start: 0, End: len("united nations")}, Processable: true}}

	got := classifyAll(New(at, Options{LinkMultiMatchableTokensInChunk: true}), at)
	assert.Equal(t, []bool{true, true, false, false, false, false}, got)

	got = classifyAll(New(at, Options{LinkMultiMatchableTokensInChunk: true, IgnoreChunks: true}), at)
	assert.Equal(t, []bool{false, false, false, false, false, false}, got)

	c := New(at, Options{LinkMultiMatchableTokensInChunk: true})
	classifyAll(c, at)
	assert.Equal(t, 2, c.Linkable().Len(), "matchable tokens of the chunk are queued")

	ne := buildText("acme", "corp", "x")
	ne.Chunks = []nlp.Chunk{{Span: nlp.Span{Start: 0, End: 9}, Processable: true, NamedEntity: true}}
	assert.Equal(t, []bool{true, true, false}, classifyAll(New(ne, Options{}), ne))
}

func TestClassifierStats(t *testing.T) {
	at := buildText("the", "Paris/L")
	c := New(at, Options{})
	classifyAll(c, at)
	n, taggable := c.Stats()
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, taggable)
}

func TestSpanQueue(t *testing.T) {
	q := NewSpanQueue(nlp.Span{Start: 0, End: 5}, nlp.Span{Start: 10, End: 15})

	s, ok := q.Overlapping(nlp.Span{Start: 3, End: 12})
	require.True(t, ok)
	assert.Equal(t, nlp.Span{Start: 0, End: 5}, s)

	_, ok = q.Overlapping(nlp.Span{Start: 5, End: 10})
	assert.False(t, ok)

	q.EvictUpTo(5)
	assert.Equal(t, 1, q.Len())
	s, ok = q.Overlapping(nlp.Span{Start: 3, End: 12})
	require.True(t, ok)
	assert.Equal(t, 10, s.Start)
}
