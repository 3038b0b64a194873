package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cognicore/fstlink/pkg/fstlink/config"
	"github.com/cognicore/fstlink/pkg/fstlink/logging"
	"github.com/cognicore/fstlink/pkg/fstlink/store"
	"github.com/cognicore/fstlink/pkg/fstlink/store/sqlite"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	dbPath     string
	logLevel   string
	devLog     bool
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:          "fstlink",
		Short:        "FST based entity linking",
		SilenceUsage: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "configuration file (YAML)")
	pf.StringVar(&g.dbPath, "db", "fstlink.db", "entity database (SQLite)")
	pf.StringVar(&g.logLevel, "log-level", "", "debug, info, warn or error (overrides the configuration)")
	pf.BoolVar(&g.devLog, "dev-log", false, "human readable log output")

	root.AddCommand(
		newImportCmd(g),
		newBuildCmd(g),
		newTagCmd(g),
		newInspectCmd(),
	)
	return root
}

// loadConfig reads --config, or returns the defaults with a single
// generated default corpus.
func (g *globalFlags) loadConfig() (*config.Config, error) {
	if g.configPath == "" {
		cfg := config.Default()
		cfg.Languages = map[string]config.Language{"": {Generate: true}}
		return cfg, cfg.Validate()
	}
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", g.configPath, err)
	}
	return cfg, nil
}

func (g *globalFlags) logger(cfg *config.Config) (*zap.Logger, error) {
	level := cfg.LogLevel
	if g.logLevel != "" {
		level = g.logLevel
	}
	return logging.New(level, g.devLog)
}

func (g *globalFlags) openIndex(ctx context.Context) (*sqlite.Index, error) {
	ix, err := sqlite.OpenSQLite(ctx, g.dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", g.dbPath, err)
	}
	return ix, nil
}

// schema returns the stored field layout entities are imported with.
func schema(cfg *config.Config) (store.Schema, error) {
	enc, err := cfg.Encoding()
	if err != nil {
		return store.Schema{}, err
	}
	return store.Schema{
		LabelField:    cfg.LabelField,
		TypeField:     cfg.TypeField,
		RedirectField: cfg.RedirectField,
		RankingField:  cfg.RankingField,
		Encoding:      enc,
	}, nil
}
