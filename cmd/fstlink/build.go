package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cognicore/fstlink/pkg/fstlink/config"
	"github.com/cognicore/fstlink/pkg/fstlink/corpus"
	"github.com/cognicore/fstlink/pkg/fstlink/store"
)

func newBuildCmd(g *globalFlags) *cobra.Command {
	var langs []string
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build and persist the automata of the configured corpora",
		Example: `  fstlink build --config dbpedia.yaml --db entities.db
  fstlink build --config dbpedia.yaml --lang en --lang de`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			log, err := g.logger(cfg)
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx := cmd.Context()
			ix, err := g.openIndex(ctx)
			if err != nil {
				return err
			}
			defer ix.Close()

			return buildCorpora(ctx, cmd.OutOrStdout(), cfg, ix, langs, log)
		},
	}
	cmd.Flags().StringSliceVar(&langs, "lang", nil, "languages to build (default all)")
	return cmd
}

// buildCorpora builds the requested corpora concurrently, at most
// pool_size at a time.
func buildCorpora(ctx context.Context, out io.Writer, cfg *config.Config, ix store.Index, langs []string, log *zap.Logger) error {
	comp, err := (&config.Loader{Config: cfg, Index: ix, Logger: log}).Load(ctx)
	if err != nil {
		return err
	}
	defer comp.Close()

	if len(langs) == 0 {
		langs = comp.Corpora.Languages()
	}
	results := make([]*corpus.Corpus, len(langs))
	took := make([]time.Duration, len(langs))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(cfg.PoolSize)
	for i, lang := range langs {
		i, lang := i, lang
		eg.Go(func() error {
			start := time.Now()
			c, err := comp.Corpora.Build(ctx, lang)
			if err != nil {
				return fmt.Errorf("build %q: %w", lang, err)
			}
			results[i] = c
			took[i] = time.Since(start)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	for i, c := range results {
		fmt.Fprintf(out, "%-8s %8d keys %8d postings  index version %d  %s  (%s)\n",
			displayLanguage(c.Info.Language), c.Automaton.Len(), c.Automaton.NumPostings(),
			c.Automaton.IndexVersion(), c.Info.File, took[i].Round(time.Millisecond))
	}
	return nil
}

func displayLanguage(lang string) string {
	if lang == "" {
		return "default"
	}
	return lang
}
