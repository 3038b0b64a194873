package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/cognicore/fstlink/pkg/fstlink/store"
)

// entityFile is the import format
type entityFile struct {
	Entities []store.Entity `yaml:"entities"`
}

func newImportCmd(g *globalFlags) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load entities from a YAML file into the database",
		Example: `  fstlink import --db entities.db --file entities.yaml
  fstlink import --config dbpedia.yaml --file - < entities.yaml`,
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

			in := cmd.InOrStdin()
			if file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			entities, err := readEntities(in)
			if err != nil {
				return fmt.Errorf("read %s: %w", file, err)
			}

			ctx := cmd.Context()
			ix, err := g.openIndex(ctx)
			if err != nil {
				return err
			}
			defer ix.Close()

			sc, err := schema(cfg)
			if err != nil {
				return err
			}
			n, err := importEntities(ctx, ix, sc, entities)
			if err != nil {
				return err
			}
			log.Info("imported entities", zap.Int("count", n), zap.String("db", g.dbPath))
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d entities\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "-", "entity file, - for stdin")
	return cmd
}

func readEntities(r io.Reader) ([]store.Entity, error) {
	var ef entityFile
	if err := yaml.NewDecoder(r).Decode(&ef); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, err
	}
	return ef.Entities, nil
}

func importEntities(ctx context.Context, w store.Writer, sc store.Schema, entities []store.Entity) (int, error) {
	n := 0
	for _, e := range entities {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if _, err := w.Upsert(ctx, e.URI, sc.Fields(e)); err != nil {
			return n, fmt.Errorf("import %s: %w", e.URI, err)
		}
		n++
	}
	return n, nil
}
