// Package fstlink links entity mentions in analysed text against a
// vocabulary indexed as finite-state automata.
//
// A Linker is built once from long-lived components (a document index, a
// corpus registry, an entity field cache) and shared by every goroutine
// that processes documents. Each Link call opens a session, tags the text
// with the automaton of the document language and of the default corpus,
// and scores the candidate entities of every tag.
package fstlink

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
	"go.uber.org/zap"

	"github.com/cognicore/fstlink/pkg/fstlink/analysis"
	"github.com/cognicore/fstlink/pkg/fstlink/cache"
	"github.com/cognicore/fstlink/pkg/fstlink/config"
	"github.com/cognicore/fstlink/pkg/fstlink/corpus"
	"github.com/cognicore/fstlink/pkg/fstlink/entity"
	"github.com/cognicore/fstlink/pkg/fstlink/internalerr"
	"github.com/cognicore/fstlink/pkg/fstlink/metrics"
	"github.com/cognicore/fstlink/pkg/fstlink/nlp"
	"github.com/cognicore/fstlink/pkg/fstlink/score"
	"github.com/cognicore/fstlink/pkg/fstlink/session"
	"github.com/cognicore/fstlink/pkg/fstlink/store"
	"github.com/cognicore/fstlink/pkg/fstlink/tagger"
)

// Options configures a Linker
type Options struct {
	Index     store.Index
	Corpora   *corpus.Registry
	Caches    *cache.Manager
	Analyzers *analysis.Registry
	Scorer    score.Options
	Tagger    tagger.Options
	Schema    session.Schema
	// DefaultLanguage selects the corpus used for every document.
	DefaultLanguage string
	Metrics         *metrics.Metrics
	Logger          *zap.Logger
}

// Linker is safe for concurrent use.
type Linker struct {
	deps            session.Deps
	analyzers       *analysis.Registry
	tagger          *tagger.Tagger
	scorer          *score.Scorer
	schema          session.Schema
	defaultLanguage string
	metrics         *metrics.Metrics
	log             *zap.Logger

	// set when the linker owns the components
	components *config.Components
}

// New creates a Linker with the given dependencies
func New(opts Options) (*Linker, error) {
	if opts.Index == nil || opts.Corpora == nil || opts.Caches == nil || opts.Analyzers == nil {
		return nil, fmt.Errorf("%w: linker needs an index, corpora, caches and analyzers", internalerr.ErrInvalidConfig)
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Scorer.Logger == nil {
		opts.Scorer.Logger = log
	}
	if opts.Tagger.Logger == nil {
		opts.Tagger.Logger = log.Named("tagger")
	}
	return &Linker{
		deps: session.Deps{
			Index:   opts.Index,
			Corpora: opts.Corpora,
			Caches:  opts.Caches,
			Metrics: opts.Metrics,
			Logger:  log,
		},
		analyzers:       opts.Analyzers,
		tagger:          tagger.New(opts.Tagger),
		scorer:          score.New(opts.Scorer),
		schema:          opts.Schema,
		defaultLanguage: opts.DefaultLanguage,
		metrics:         opts.Metrics,
		log:             log,
	}, nil
}

// NewFromConfig builds the components of cfg on top of ix. The returned
// Linker owns them; Close releases them but not ix.
func NewFromConfig(ctx context.Context, cfg *config.Config, ix store.Index, log *zap.Logger, m *metrics.Metrics) (*Linker, error) {
	comp, err := (&config.Loader{Config: cfg, Index: ix, Logger: log, Metrics: m}).Load(ctx)
	if err != nil {
		return nil, err
	}
	l, err := New(Options{
		Index:           ix,
		Corpora:         comp.Corpora,
		Caches:          comp.Caches,
		Analyzers:       comp.Analyzers,
		Scorer:          comp.Scorer,
		Tagger:          comp.Tagger,
		Schema:          comp.Schema,
		DefaultLanguage: comp.DefaultLanguage,
		Metrics:         m,
		Logger:          log,
	})
	if err != nil {
		comp.Close()
		return nil, err
	}
	l.components = comp
	return l, nil
}

// Corpora returns the corpus registry.
func (l *Linker) Corpora() *corpus.Registry { return l.deps.Corpora }

// Close releases the components created by NewFromConfig.
func (l *Linker) Close() {
	if l.components != nil {
		l.components.Close()
	}
}

// Suggestion is one candidate entity of an annotation
type Suggestion struct {
	URI     string   `yaml:"uri"`
	Label   string   `yaml:"label"`
	Score   float64  `yaml:"score"`
	Types   []string `yaml:"types,omitempty"`
	Ranking *float64 `yaml:"ranking,omitempty"`
}

// Annotation is a linked mention over the byte span [Start, End)
type Annotation struct {
	Start       int          `yaml:"start"`
	End         int          `yaml:"end"`
	Anchor      string       `yaml:"anchor"`
	Score       float64      `yaml:"score"`
	Categories  []string     `yaml:"categories,omitempty"`
	Suggestions []Suggestion `yaml:"suggestions"`
}

// Stats summarises one Link call
type Stats struct {
	Corpora    []string         `yaml:"corpora"`
	Tokens     int              `yaml:"tokens"`
	Taggable   int              `yaml:"taggable"`
	Candidates int              `yaml:"candidates"`
	Tags       int              `yaml:"tags"`
	Entities   uint             `yaml:"entities"`
	Scoring    score.Stats      `yaml:"scoring"`
	Fields     session.Counters `yaml:"fields"`
}

// Result holds the annotations of one document in span order
type Result struct {
	SessionID   string       `yaml:"session"`
	Annotations []Annotation `yaml:"annotations"`
	Stats       Stats        `yaml:"stats"`
}

// Link tags and scores one document. Errors for which
// internalerr.IsRetryable is true mean the corpus is still being built.
func (l *Linker) Link(ctx context.Context, at *nlp.AnalysedText) (*Result, error) {
	if at == nil {
		return nil, fmt.Errorf("%w: no text", internalerr.ErrInvalidInput)
	}
	sess, err := session.Open(ctx, l.deps, session.Options{
		Language:        at.Language,
		DefaultLanguage: l.defaultLanguage,
		Schema:          l.schema,
	})
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	res := &Result{SessionID: sess.ID.String()}
	tags := entity.NewTagSet()
	sink := func(start, end int, docs *roaring.Bitmap) {
		sess.MarkSeen(docs)
		tag := tags.GetOrCreate(start, end)
		it := docs.Iterator()
		for it.HasNext() {
			tag.AddMatch(entity.NewMatch(it.Next(), sess))
		}
	}
	for _, c := range sess.Corpora() {
		an, err := l.analyzers.Get(c.Info.Analyzer)
		if err != nil {
			return nil, fmt.Errorf("corpus %s: %w", c.Info, err)
		}
		ts, err := l.tagger.Tag(ctx, at, c.Automaton, an, sink)
		if err != nil {
			return nil, err
		}
		res.Stats.Corpora = append(res.Stats.Corpora, c.Info.Language)
		res.Stats.Tokens += ts.Tokens
		res.Stats.Taggable += ts.Taggable
		res.Stats.Candidates += ts.Candidates
	}

	var ne score.NETypes
	if l.tagger.Mode() == tagger.ModeNER {
		ne = namedEntityTypes(at.NamedEntities())
	}
	scored, st := l.scorer.Score(ctx, at.Text, tags.Sorted(), ne)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res.Annotations = make([]Annotation, 0, len(scored))
	for _, tag := range scored {
		res.Annotations = append(res.Annotations, l.annotation(tag))
	}
	res.Stats.Tags = len(res.Annotations)
	res.Stats.Entities = sess.Seen()
	res.Stats.Scoring = st
	res.Stats.Fields = sess.Counters()
	l.metrics.Tags(len(res.Annotations))
	l.log.Debug("linked document",
		zap.String("session", res.SessionID),
		zap.Strings("corpora", res.Stats.Corpora),
		zap.Int("candidates", res.Stats.Candidates),
		zap.Int("annotations", res.Stats.Tags))
	return res, nil
}

func (l *Linker) annotation(tag *entity.Tag) Annotation {
	a := Annotation{
		Start:       tag.Start,
		End:         tag.End,
		Anchor:      tag.Anchor,
		Score:       tag.Score,
		Categories:  l.scorer.Categories(tag.Suggestions),
		Suggestions: make([]Suggestion, 0, len(tag.Suggestions)),
	}
	for _, m := range tag.Suggestions {
		doc, ok := m.Loaded()
		if !ok {
			continue
		}
		s := Suggestion{URI: doc.URI, Label: m.Label, Score: m.Score, Types: doc.Types}
		if doc.HasRanking {
			r := doc.Ranking
			s.Ranking = &r
		}
		a.Suggestions = append(a.Suggestions, s)
	}
	return a
}

// namedEntityTypes returns the types of the named entity chunks
// overlapping a span.
func namedEntityTypes(chunks []nlp.Chunk) score.NETypes {
	return func(start, end int) []string {
		span := nlp.Span{Start: start, End: end}
		seen := make(map[string]struct{})
		for _, c := range chunks {
			if c.Type != "" && c.Span.Overlaps(span) {
				seen[c.Type] = struct{}{}
			}
		}
		types := make([]string, 0, len(seen))
		for t := range seen {
			types = append(types, t)
		}
		sort.Strings(types)
		return types
	}
}

// IsRetryable reports whether a Link error only means that a corpus is
// still being built.
func IsRetryable(err error) bool {
	return internalerr.IsRetryable(err)
}

// IsCorpusUnavailable reports whether no corpus could serve the document.
func IsCorpusUnavailable(err error) bool {
	return errors.Is(err, internalerr.ErrCorpusUnavailable) || errors.Is(err, internalerr.ErrBuildFailed)
}
