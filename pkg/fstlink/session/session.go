// Package session scopes the shared resources used to link one document:
// the resolved corpora, a searcher snapshot and the entity field cache.
package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/bits-and-blooms/bitset"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/cognicore/fstlink/pkg/fstlink/cache"
	"github.com/cognicore/fstlink/pkg/fstlink/corpus"
	"github.com/cognicore/fstlink/pkg/fstlink/entity"
	"github.com/cognicore/fstlink/pkg/fstlink/internalerr"
	"github.com/cognicore/fstlink/pkg/fstlink/metrics"
	"github.com/cognicore/fstlink/pkg/fstlink/store"
)

// Deps are the long-lived components shared by all sessions.
type Deps struct {
	Index   store.Index
	Corpora *corpus.Registry
	Caches  *cache.Manager
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// Schema names the entity fields read for every match besides the labels.
type Schema struct {
	TypeField     string
	RedirectField string
	RankingField  string
}

// Options selects the corpora of a session.
type Options struct {
	// Language of the document; "" uses only the default corpus.
	Language string
	// DefaultLanguage selects the default corpus.
	DefaultLanguage string
	Schema          Schema
}

// Counters count how entity fields were obtained.
type Counters struct {
	Loaded   int `yaml:"loaded"`
	Cached   int `yaml:"cached"`
	Appended int `yaml:"appended"`
	Failed   int `yaml:"failed"`
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

func newID() ulid.ULID {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Now(), entropy)
}

// Session is owned by the goroutine processing one document and is not
// safe for concurrent use.
type Session struct {
	ID       ulid.ULID
	Language string
	// LanguageCorpus is nil when the language has no usable corpus.
	LanguageCorpus *corpus.Corpus
	// DefaultCorpus is nil when it is not configured, not usable, or the
	// same corpus as LanguageCorpus.
	DefaultCorpus *corpus.Corpus

	searcher store.Searcher
	cache    *cache.Cache
	fields   []string
	labels   []string
	schema   Schema
	seen     *bitset.BitSet
	counters Counters

	metrics   *metrics.Metrics
	log       *zap.Logger
	closeOnce sync.Once
}

// Open resolves the corpora for opts.Language and checks out a searcher
// and the entity cache. Any failure releases what was acquired and
// wraps internalerr.ErrSessionInit.
func Open(ctx context.Context, deps Deps, opts Options) (_ *Session, err error) {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	s := &Session{
		ID:       newID(),
		Language: opts.Language,
		schema:   opts.Schema,
		metrics:  deps.Metrics,
	}
	s.log = log.Named("session").With(zap.Stringer("session", s.ID), zap.String("language", opts.Language))
	defer func() {
		deps.Metrics.Session(err == nil)
		if err != nil {
			s.Close()
		}
	}()

	if err := s.resolveCorpora(ctx, deps.Corpora, opts); err != nil {
		return nil, err
	}

	searcher, err := deps.Index.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: acquire searcher: %w", internalerr.ErrSessionInit, err)
	}
	s.searcher = searcher
	s.cache = deps.Caches.Acquire(searcher.Version())
	s.seen = bitset.New(uint(searcher.MaxDoc()))

	for _, c := range s.Corpora() {
		deps.Corpora.EnqueueIfStale(c.Info.Language, searcher.Version())
	}
	s.fields = s.fieldNames()
	return s, nil
}

func (s *Session) resolveCorpora(ctx context.Context, reg *corpus.Registry, opts Options) error {
	var langErr error
	if opts.Language != "" {
		if _, ok := reg.Lookup(opts.Language); ok {
			s.LanguageCorpus, langErr = reg.GetOrBuild(ctx, opts.Language)
		} else {
			langErr = fmt.Errorf("%w: no corpus for language %q", internalerr.ErrCorpusUnavailable, opts.Language)
		}
	}

	var defErr error
	if info, ok := reg.Lookup(opts.DefaultLanguage); ok {
		if s.LanguageCorpus == nil || s.LanguageCorpus.Info != info {
			s.DefaultCorpus, defErr = reg.GetOrBuild(ctx, opts.DefaultLanguage)
		}
	} else if opts.Language == "" {
		defErr = fmt.Errorf("%w: no default corpus", internalerr.ErrCorpusUnavailable)
	}

	if s.LanguageCorpus == nil && s.DefaultCorpus == nil {
		return fmt.Errorf("%w: %w", internalerr.ErrSessionInit, errors.Join(langErr, defErr))
	}
	if langErr != nil {
		s.log.Debug("language corpus unavailable, using default corpus", zap.Error(langErr))
	}
	if defErr != nil {
		s.log.Debug("default corpus unavailable", zap.Error(defErr))
	}
	return nil
}

// fieldNames returns the stored fields read per match.
func (s *Session) fieldNames() []string {
	seen := make(map[string]struct{})
	var fields []string
	add := func(f string) {
		if f == "" {
			return
		}
		if _, dup := seen[f]; dup {
			return
		}
		seen[f] = struct{}{}
		fields = append(fields, f)
	}
	add(store.IDField)
	for _, c := range s.Corpora() {
		add(c.Info.StoredField)
		s.labels = append(s.labels, c.Info.StoredField)
	}
	add(s.schema.TypeField)
	add(s.schema.RedirectField)
	add(s.schema.RankingField)
	return fields
}

// Corpora returns the resolved corpora, language corpus first.
func (s *Session) Corpora() []*corpus.Corpus {
	out := make([]*corpus.Corpus, 0, 2)
	if s.LanguageCorpus != nil {
		out = append(out, s.LanguageCorpus)
	}
	if s.DefaultCorpus != nil {
		out = append(out, s.DefaultCorpus)
	}
	return out
}

// Fields returns the stored field names read for every match.
func (s *Session) Fields() []string { return s.fields }

// IndexVersion returns the version of the searcher snapshot.
func (s *Session) IndexVersion() int64 { return s.searcher.Version() }

// MarkSeen records the documents of a tag.
func (s *Session) MarkSeen(docs *roaring.Bitmap) {
	it := docs.Iterator()
	for it.HasNext() {
		s.seen.Set(uint(it.Next()))
	}
}

// Seen returns how many distinct documents were tagged.
func (s *Session) Seen() uint { return s.seen.Count() }

// Counters returns the field load counters.
func (s *Session) Counters() Counters { return s.counters }

// LoadDocument implements entity.Loader through the entity cache.
func (s *Session) LoadDocument(ctx context.Context, id uint32) (*entity.Document, error) {
	values, kind, err := s.cache.Load(ctx, s.searcher, id, s.fields)
	if err != nil {
		s.counters.Failed++
		s.log.Warn("cannot load entity fields", zap.Uint32("doc", id), zap.Error(err))
		return nil, err
	}
	uri := values.First(store.IDField)
	if uri == "" {
		s.counters.Failed++
		return nil, fmt.Errorf("document %d: %w: no %s", id, internalerr.ErrFieldLoadFailed, store.IDField)
	}
	switch kind {
	case cache.Loaded:
		s.counters.Loaded++
	case cache.Cached:
		s.counters.Cached++
	case cache.Appended:
		s.counters.Appended++
	}

	doc := &entity.Document{
		URI:       uri,
		Types:     values.Values(s.schema.TypeField),
		Redirects: values.Values(s.schema.RedirectField),
	}
	seen := make(map[string]struct{})
	for _, f := range s.labels {
		for _, l := range values.Values(f) {
			if _, dup := seen[l]; !dup {
				seen[l] = struct{}{}
				doc.Labels = append(doc.Labels, l)
			}
		}
	}
	if s.schema.RankingField != "" {
		doc.Ranking, doc.HasRanking = values.Number(s.schema.RankingField)
	}
	return doc, nil
}

// Close releases the searcher and the cache exactly once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if s.searcher != nil {
			s.searcher.Release()
		}
		if s.cache != nil {
			s.cache.Release()
		}
		s.metrics.FieldLoads("loaded", s.counters.Loaded)
		s.metrics.FieldLoads("cached", s.counters.Cached)
		s.metrics.FieldLoads("appended", s.counters.Appended)
		s.metrics.FieldLoads("failed", s.counters.Failed)
		s.log.Debug("session closed",
			zap.Int("loaded", s.counters.Loaded),
			zap.Int("cached", s.counters.Cached),
			zap.Int("appended", s.counters.Appended),
			zap.Int("failed", s.counters.Failed))
	})
}
