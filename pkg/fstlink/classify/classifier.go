// Package classify decides which query tokens are looked up in the
// automaton, based on the linkable and matchable flags of the NLP tokens
// they overlap.
package classify

import (
	"go.uber.org/zap"

	"github.com/cognicore/fstlink/pkg/fstlink/nlp"
)

// lookahead is the number of NLP tokens after a matchable token searched
// for a linkable one.
const lookahead = 3

// Options tunes the chunk rules.
type Options struct {
	// IgnoreChunks disables all chunk based rules.
	IgnoreChunks bool
	// LinkMultiMatchableTokensInChunk makes every token of a processable
	// chunk with more than one matchable token taggable.
	LinkMultiMatchableTokensInChunk bool
	Logger                          *zap.Logger
}

type chunkData struct {
	nlp.Chunk
	hasLinkable    bool
	matchableCount int
}

type tokenData struct {
	nlp.Token
	index   int
	chunk   *chunkData
	section *sectionData
}

type sectionData struct {
	tokens []*tokenData
}

// Classifier consumes query tokens in text order. It is not safe for
// concurrent use; create one per document and corpus.
type Classifier struct {
	opts     Options
	log      *zap.Logger
	sections []nlp.Section
	next     int // next section to read

	cur    *sectionData
	tokPos int

	buf    []*tokenData
	cursor int

	linkable *SpanQueue

	increments int
	lookups    int
}

// New creates a classifier over the sections of at.
func New(at *nlp.AnalysedText, opts Options) *Classifier {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Classifier{
		opts:     opts,
		log:      log,
		sections: at.Sections(),
		linkable: NewSpanQueue(),
	}
}

// Linkable returns the FIFO of linkable spans read so far.
func (c *Classifier) Linkable() *SpanQueue { return c.linkable }

// Stats returns how many query tokens were classified and how many of them
// were taggable.
func (c *Classifier) Stats() (classified, taggable int) {
	return c.increments, c.lookups
}

// Classify reports whether the query token spanning [start, end) should be
// looked up.
func (c *Classifier) Classify(start, end int) bool {
	c.increments++
	lookup := false
	lastMatchable := -1
	var anchor *tokenData

	first := true
	for tok := c.nextToken(start, end, first); tok != nil; tok = c.nextToken(start, end, false) {
		first = false
		if tok.Linkable {
			lookup = true
		} else if tok.Matchable {
			lastMatchable = tok.index
			anchor = tok
		}
		if !lookup && !c.opts.IgnoreChunks && tok.chunk != nil && tok.chunk.Processable {
			if tok.chunk.NamedEntity {
				lookup = true
			}
			if tok.chunk.hasLinkable ||
				(c.opts.LinkMultiMatchableTokensInChunk && tok.chunk.matchableCount > 1) {
				lookup = true
			}
		}
	}

	if !lookup && anchor != nil {
		tokens := anchor.section.tokens
		lastIndex := lastMatchable
		maxLookahead := max(lastIndex, lastMatchable+lookahead)
		for i := lastIndex + 1; !lookup && i < maxLookahead && i < len(tokens); i++ {
			t := tokens[i]
			if t.Linkable {
				lookup = true
			} else if t.Matchable && i+1 == maxLookahead {
				maxLookahead++
			}
		}
	}
	if lookup {
		c.lookups++
	}
	return lookup
}

// nextToken returns the next buffered NLP token overlapping [start, end).
func (c *Classifier) nextToken(start, end int, first bool) *tokenData {
	if first {
		c.cursor = -1
		for len(c.buf) > 0 && c.buf[0].End <= start {
			c.buf = c.buf[1:]
		}
	}
	for {
		if c.cursor >= len(c.buf)-1 {
			if !c.readToken() {
				return nil
			}
		}
		t := c.buf[c.cursor+1]
		if t.End <= start {
			// NLP token without a query token, e.g. a dropped stopword
			c.buf = append(c.buf[:c.cursor+1], c.buf[c.cursor+2:]...)
			continue
		}
		if t.Start < end {
			c.cursor++
			return t
		}
		return nil
	}
}

// readToken appends the next NLP token to the buffer, moving to the next
// non-empty section when needed.
func (c *Classifier) readToken() bool {
	for c.cur == nil || c.tokPos >= len(c.cur.tokens) {
		if c.next >= len(c.sections) {
			c.cur = nil
			return false
		}
		c.cur = c.newSection(c.sections[c.next])
		c.next++
		c.tokPos = 0
	}
	tok := c.cur.tokens[c.tokPos]
	c.tokPos++
	c.buf = append(c.buf, tok)

	if tok.Linkable {
		c.linkable.Push(tok.Span)
	} else if tok.Matchable && !c.opts.IgnoreChunks && tok.chunk != nil &&
		tok.chunk.Processable && tok.chunk.matchableCount > 1 {
		c.linkable.Push(tok.Span)
	}
	return true
}

func (c *Classifier) newSection(sec nlp.Section) *sectionData {
	sd := &sectionData{tokens: make([]*tokenData, len(sec.Tokens))}
	chunks := make([]*chunkData, len(sec.Chunks))
	for i := range sec.Chunks {
		chunks[i] = &chunkData{Chunk: sec.Chunks[i]}
	}
	ci := 0
	for i, tok := range sec.Tokens {
		td := &tokenData{Token: tok, index: i, section: sd}
		for ci < len(chunks) && chunks[ci].End <= tok.Start {
			ci++
		}
		if ci < len(chunks) && chunks[ci].Start <= tok.Start && tok.End <= chunks[ci].End {
			td.chunk = chunks[ci]
			if tok.Linkable {
				td.chunk.hasLinkable = true
			}
			if tok.Matchable {
				td.chunk.matchableCount++
			}
		}
		sd.tokens[i] = td
	}
	c.log.Debug("section read",
		zap.Int("start", sec.Start),
		zap.Int("tokens", len(sec.Tokens)),
		zap.Int("chunks", len(sec.Chunks)))
	return sd
}
