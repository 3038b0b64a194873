package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cognicore/fstlink/pkg/fstlink/fst"
)

// fileInfo is printed by inspect
type fileInfo struct {
	File         string `yaml:"file"`
	Format       uint16 `yaml:"format"`
	IndexVersion int64  `yaml:"index_version"`
	FSTBytes     uint64 `yaml:"fst_bytes"`
	Postings     uint32 `yaml:"postings"`
	Keys         int    `yaml:"keys"`
	SizeBytes    int64  `yaml:"size_bytes"`
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect FILE.fst",
		Short: "Print the header and key count of an automaton file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			for _, path := range args {
				info, err := inspectFile(path)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				if err := enc.Encode(info); err != nil {
					return err
				}
			}
			return enc.Close()
		},
	}
}

func inspectFile(path string) (*fileInfo, error) {
	hdr, err := fst.ReadHeader(path)
	if err != nil {
		return nil, err
	}
	a, err := fst.Load(path)
	if err != nil {
		return nil, err
	}
	defer a.Close()
	return &fileInfo{
		File:         path,
		Format:       hdr.Version,
		IndexVersion: hdr.IndexVersion,
		FSTBytes:     hdr.FSTBytes,
		Postings:     hdr.Postings,
		Keys:         a.Len(),
		SizeBytes:    a.SizeBytes(),
	}, nil
}
