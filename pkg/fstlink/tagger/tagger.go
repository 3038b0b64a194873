// Package tagger walks analyzed text through an automaton and reports the
// spans matching automaton keys.
package tagger

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
	"go.uber.org/zap"

	"github.com/cognicore/fstlink/pkg/fstlink/analysis"
	"github.com/cognicore/fstlink/pkg/fstlink/classify"
	"github.com/cognicore/fstlink/pkg/fstlink/fst"
	"github.com/cognicore/fstlink/pkg/fstlink/internalerr"
	"github.com/cognicore/fstlink/pkg/fstlink/nlp"
)

// Mode selects which tokens start walks and how clusters are reduced.
type Mode int

const (
	// ModeLinkableToken tags tokens selected by the classifier and keeps
	// only tags overlapping a linkable token.
	ModeLinkableToken Mode = iota
	// ModePlain tags every token and keeps the longest dominant tags.
	ModePlain
	// ModeNER tags tokens inside named entity chunks.
	ModeNER
)

func (m Mode) String() string {
	switch m {
	case ModePlain:
		return "plain"
	case ModeNER:
		return "ner"
	default:
		return "linkable_token"
	}
}

// ParseMode parses a linking mode name.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "linkable_token", "linkable":
		return ModeLinkableToken, nil
	case "plain":
		return ModePlain, nil
	case "ner":
		return ModeNER, nil
	}
	return ModeLinkableToken, fmt.Errorf("%w: unknown linking mode %q", internalerr.ErrInvalidConfig, s)
}

// Options configures a Tagger.
type Options struct {
	Mode       Mode
	Classifier classify.Options
	Logger     *zap.Logger
}

// Sink receives every tag surviving cluster reduction. docs is shared with
// the automaton and must not be modified.
type Sink func(start, end int, docs *roaring.Bitmap)

// Stats summarises one tagging run.
type Stats struct {
	Tokens     int
	Taggable   int
	Candidates int
	Clusters   int
	Emitted    int
}

// Tagger is stateless and safe for concurrent use.
type Tagger struct {
	opts Options
	log  *zap.Logger
}

// New creates a tagger.
func New(opts Options) *Tagger {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	opts.Classifier.Logger = log
	return &Tagger{opts: opts, log: log}
}

// Mode returns the configured linking mode.
func (tg *Tagger) Mode() Mode { return tg.opts.Mode }

type alive struct {
	start int
	walk  fst.Walk
}

// Tag analyzes the text of at with an, walks the tokens through a and
// passes the surviving tags to sink in span order.
func (tg *Tagger) Tag(ctx context.Context, at *nlp.AnalysedText, a *fst.Automaton, an analysis.Analyzer, sink Sink) (Stats, error) {
	var stats Stats
	tokens := an.Analyze(at.Text)
	stats.Tokens = len(tokens)

	taggable, reducer := tg.strategy(at)

	var (
		walks      []alive
		candidates []Candidate
	)
	for i, tok := range tokens {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
		}
		next := make([]alive, 0, len(walks)+1)
		for _, w := range walks {
			nw, ok := a.Step(w.walk, tok.Term)
			if !ok {
				continue
			}
			next = append(next, alive{start: w.start, walk: nw})
			if ord, ok := a.Match(nw); ok {
				candidates = append(candidates, Candidate{Start: w.start, End: tok.End, Ordinal: ord})
			}
		}
		if taggable(tok) {
			stats.Taggable++
			if nw, ok := a.Step(a.Start(), tok.Term); ok {
				next = append(next, alive{start: tok.Start, walk: nw})
				if ord, ok := a.Match(nw); ok {
					candidates = append(candidates, Candidate{Start: tok.Start, End: tok.End, Ordinal: ord})
				}
			}
		}
		walks = next
	}
	stats.Candidates = len(candidates)

	slices.SortFunc(candidates, func(x, y Candidate) int {
		if x.Start != y.Start {
			return x.Start - y.Start
		}
		return y.End - x.End
	})

	for _, cluster := range clusters(candidates) {
		stats.Clusters++
		reducer.Reduce(&cluster)
		for _, c := range cluster.Tags {
			docs := a.Postings(c.Ordinal)
			if docs == nil || docs.IsEmpty() {
				continue
			}
			stats.Emitted++
			sink(c.Start, c.End, docs)
		}
	}
	tg.log.Debug("tagged",
		zap.String("mode", tg.opts.Mode.String()),
		zap.Int("tokens", stats.Tokens),
		zap.Int("taggable", stats.Taggable),
		zap.Int("candidates", stats.Candidates),
		zap.Int("emitted", stats.Emitted))
	return stats, nil
}

// strategy returns the taggable decision and cluster reducer of the mode.
func (tg *Tagger) strategy(at *nlp.AnalysedText) (func(analysis.Token) bool, Reducer) {
	switch tg.opts.Mode {
	case ModePlain:
		return func(analysis.Token) bool { return true }, LongestDominantRight
	case ModeNER:
		entities := at.NamedEntities()
		pos := 0
		inEntity := func(tok analysis.Token) bool {
			for pos < len(entities) && entities[pos].End <= tok.Start {
				pos++
			}
			return pos < len(entities) && entities[pos].Start < tok.End
		}
		return inEntity, Chain(NamedEntityFilter(entities), LongestDominantRight)
	default:
		c := classify.New(at, tg.opts.Classifier)
		classifyTok := func(tok analysis.Token) bool { return c.Classify(tok.Start, tok.End) }
		return classifyTok, Chain(LinkableFilter(c.Linkable()), All)
	}
}

// clusters groups sorted candidates into maximal runs of overlapping spans.
func clusters(sorted []Candidate) []Cluster {
	var (
		out []Cluster
		cur Cluster
		end int
	)
	for _, c := range sorted {
		if len(cur.Tags) > 0 && c.Start >= end {
			out = append(out, cur)
			cur = Cluster{}
		}
		if len(cur.Tags) == 0 || c.End > end {
			end = c.End
		}
		cur.Tags = append(cur.Tags, c)
	}
	if len(cur.Tags) > 0 {
		out = append(out, cur)
	}
	return out
}
