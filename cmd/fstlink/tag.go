package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/cognicore/fstlink/internal/htmltext"
	"github.com/cognicore/fstlink/pkg/fstlink"
	"github.com/cognicore/fstlink/pkg/fstlink/config"
	"github.com/cognicore/fstlink/pkg/fstlink/nlp"
	"github.com/cognicore/fstlink/pkg/fstlink/store"
)

// taggedText is the output of --with-text
type taggedText struct {
	Text           string `yaml:"text"`
	fstlink.Result `yaml:",inline"`
}

type tagFlags struct {
	html     bool
	lang     string
	wait     bool
	withText bool
}

func newTagCmd(g *globalFlags) *cobra.Command {
	f := &tagFlags{}
	cmd := &cobra.Command{
		Use:   "tag FILE",
		Short: "Link entity mentions in a text or HTML file and print them as YAML",
		Example: `  fstlink tag --config dbpedia.yaml --db entities.db article.txt
  curl -s https://example.com | fstlink tag --html -`,
		Args: cobra.ExactArgs(1),
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

			text, err := readText(cmd.InOrStdin(), args[0], f.html)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			ix, err := g.openIndex(ctx)
			if err != nil {
				return err
			}
			defer ix.Close()

			res, err := tagText(ctx, cfg, ix, text, f, log)
			if err != nil {
				return err
			}
			out := any(res)
			if f.withText {
				out = taggedText{Text: text, Result: *res}
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(out); err != nil {
				return err
			}
			return enc.Close()
		},
	}
	cmd.Flags().BoolVar(&f.html, "html", false, "input is HTML")
	cmd.Flags().StringVar(&f.lang, "lang", "", "document language")
	cmd.Flags().BoolVar(&f.wait, "wait", true, "wait for corpora that are being built")
	cmd.Flags().BoolVar(&f.withText, "with-text", false, "include the plain text in the output")
	return cmd
}

func readText(stdin io.Reader, path string, html bool) (string, error) {
	in := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return "", err
		}
		defer f.Close()
		in = f
	}
	if html {
		return htmltext.Extract(in)
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// tagText links text once, or twice when the first attempt enqueued a
// corpus build and wait is set.
func tagText(ctx context.Context, cfg *config.Config, ix store.Index, text string, f *tagFlags, log *zap.Logger) (*fstlink.Result, error) {
	linker, err := fstlink.NewFromConfig(ctx, cfg, ix, log, nil)
	if err != nil {
		return nil, err
	}
	defer linker.Close()

	at := nlp.NewAnnotator(nlp.DefaultStopwords).Annotate(text, f.lang)
	res, err := linker.Link(ctx, at)
	if err != nil && f.wait && fstlink.IsRetryable(err) {
		log.Info("waiting for corpus build", zap.Error(err))
		linker.Corpora().Wait()
		res, err = linker.Link(ctx, at)
	}
	if err != nil {
		return nil, fmt.Errorf("link: %w", err)
	}
	return res, nil
}
