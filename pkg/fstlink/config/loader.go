package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/cognicore/fstlink/pkg/fstlink/analysis"
	"github.com/cognicore/fstlink/pkg/fstlink/cache"
	"github.com/cognicore/fstlink/pkg/fstlink/classify"
	"github.com/cognicore/fstlink/pkg/fstlink/corpus"
	"github.com/cognicore/fstlink/pkg/fstlink/metrics"
	"github.com/cognicore/fstlink/pkg/fstlink/score"
	"github.com/cognicore/fstlink/pkg/fstlink/session"
	"github.com/cognicore/fstlink/pkg/fstlink/store"
	"github.com/cognicore/fstlink/pkg/fstlink/tagger"
)

// Loader constructs the linker components of a configuration
type Loader struct {
	Config  *Config
	Index   store.Index
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Components holds the long-lived components built from a configuration.
// The caller owns Corpora and Caches and must close them.
type Components struct {
	Analyzers       *analysis.Registry
	Corpora         *corpus.Registry
	Caches          *cache.Manager
	Scorer          score.Options
	Tagger          tagger.Options
	Schema          session.Schema
	DefaultLanguage string

	watcher *corpus.Watcher
}

// Close releases the corpus registry and the entity cache.
func (c *Components) Close() {
	if c.watcher != nil {
		c.watcher.Close()
	}
	c.Corpora.Close()
	c.Caches.Close()
}

// Load builds all components. With discover_languages the index is read
// once for the languages of label_field.
func (l *Loader) Load(ctx context.Context) (*Components, error) {
	cfg := l.Config
	if cfg == nil {
		cfg = Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := l.Logger
	if log == nil {
		log = zap.NewNop()
	}
	enc, err := cfg.Encoding()
	if err != nil {
		return nil, err
	}
	mode, err := cfg.Mode()
	if err != nil {
		return nil, err
	}

	analyzers := analysis.NewRegistry()
	builder := &corpus.IndexBuilder{Index: l.Index, Analyzers: analyzers}
	corpora, err := corpus.New(corpus.Options{
		PoolSize: cfg.PoolSize,
		Arena: corpus.ArenaOptions{
			MaxCost: cfg.Arena.MaxCostMB << 20,
			WeakTTL: cfg.Arena.WeakTTL,
		},
		Build:   builder.Build,
		Logger:  log.Named("corpus"),
		Metrics: l.Metrics,
	})
	if err != nil {
		return nil, err
	}

	infos, err := l.infos(ctx, cfg, enc)
	if err != nil {
		corpora.Close()
		return nil, err
	}
	for _, info := range infos {
		if _, err := analyzers.Get(info.Analyzer); err != nil {
			corpora.Close()
			return nil, fmt.Errorf("corpus %s: %w", info, err)
		}
		if err := corpora.Add(info); err != nil {
			corpora.Close()
			return nil, err
		}
	}

	comp := &Components{
		Analyzers: analyzers,
		Corpora:   corpora,
		Caches:    cache.NewManager(cfg.EntityCacheSize, log.Named("cache")),
		Scorer: score.Options{
			CaseSensitive:        cfg.CaseSensitive,
			MaxSuggestions:       cfg.MaxSuggestions,
			MinMatchScore:        cfg.MinMatchScore,
			RankEqualScores:      cfg.RankEqualScores,
			IncludeSimilarScores: cfg.IncludeSimilarScores,
			TypeFilter:           cfg.TypeFilter,
			TypeMappings:         cfg.TypeMappings,
			DefaultType:          cfg.DefaultType,
			NETypeMappings:       cfg.NETypeMappings,
			Logger:               log,
		},
		Tagger: tagger.Options{
			Mode: mode,
			Classifier: classify.Options{
				IgnoreChunks:                    cfg.Classifier.IgnoreChunks,
				LinkMultiMatchableTokensInChunk: cfg.Classifier.LinkMultiMatchableInChunk,
			},
			Logger: log.Named("tagger"),
		},
		Schema: session.Schema{
			TypeField:     cfg.TypeField,
			RedirectField: cfg.RedirectField,
			RankingField:  cfg.RankingField,
		},
		DefaultLanguage: cfg.DefaultLanguage,
	}
	if cfg.WatchFiles {
		w, err := corpora.Watch()
		if err != nil {
			comp.Close()
			return nil, err
		}
		comp.watcher = w
	}
	log.Info("configuration loaded",
		zap.String("name", cfg.Name),
		zap.Strings("languages", corpora.Languages()),
		zap.String("mode", mode.String()),
		zap.String("field_encoding", enc.String()),
		zap.Bool("watch_files", cfg.WatchFiles))
	return comp, nil
}

// infos returns the corpus descriptions in language order.
func (l *Loader) infos(ctx context.Context, cfg *Config, enc store.FieldEncoding) ([]*corpus.Info, error) {
	langs := make(map[string]Language, len(cfg.Languages))
	for lang, lc := range cfg.Languages {
		langs[lang] = lc
	}
	if cfg.DiscoverLanguages {
		found, err := l.discover(ctx, cfg, enc)
		if err != nil {
			return nil, err
		}
		for _, lang := range found {
			if _, ok := langs[lang]; !ok {
				langs[lang] = Language{Generate: true}
			}
		}
	}

	names := make([]string, 0, len(langs))
	for lang := range langs {
		names = append(names, lang)
	}
	sort.Strings(names)

	infos := make([]*corpus.Info, 0, len(names))
	for _, lang := range names {
		lc := langs[lang]
		field := lc.Field
		if field == "" {
			field = enc.Encode(cfg.LabelField, lang)
		}
		file := corpus.FilePath(cfg.FSTDir, cfg.Name, lang)
		if lc.FST != "" {
			file = lc.FST
			if !filepath.IsAbs(file) {
				file = filepath.Join(cfg.FSTDir, file)
			}
		}
		infos = append(infos, &corpus.Info{
			Language:      lang,
			IndexedField:  field,
			StoredField:   lc.Stored,
			File:          file,
			Analyzer:      lc.Analyzer,
			AllowCreation: lc.Generate,
		})
	}
	return infos, nil
}

func (l *Loader) discover(ctx context.Context, cfg *Config, enc store.FieldEncoding) ([]string, error) {
	if l.Index == nil {
		return nil, fmt.Errorf("discover languages: no index")
	}
	s, err := l.Index.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover languages: %w", err)
	}
	defer s.Release()
	return corpus.DiscoverLanguages(ctx, s, cfg.LabelField, enc)
}
