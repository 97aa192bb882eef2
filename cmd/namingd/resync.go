package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/namingd/internal/mirror"
)

func newResyncCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resync [collection]",
		Short: "Rebuild the similarity index from the catalog",
		Long: `Clear a similarity index collection and re-embed every catalog row into it.

With no argument both collections (morphemes and composites) are rebuilt.

Examples:
  namingd resync
  namingd resync composites`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: mirror.Collections,
		RunE: func(cmd *cobra.Command, args []string) error {
			collections := mirror.Collections
			if len(args) == 1 {
				if err := mirror.ValidateCollection(args[0]); err != nil {
					return err
				}
				collections = args[:1]
			}

			cfg, logger, err := loadConfig(opts.configPath, os.Stderr)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, logger, nil)
			if err != nil {
				return fmt.Errorf("failed to initialize: %w", err)
			}
			defer a.Close()
			return runResync(cmd.Context(), a, collections, cmd.OutOrStdout())
		},
	}
}

func runResync(ctx context.Context, a *app, collections []string, out io.Writer) error {
	if err := a.mirror.EnsureCollections(ctx); err != nil {
		return err
	}
	for _, c := range collections {
		n, err := a.standards.Resync(ctx, c)
		if err != nil {
			return fmt.Errorf("resync %s: %w", c, err)
		}
		fmt.Fprintf(out, "%s: %d record(s) indexed\n", c, n)
	}
	return nil
}
