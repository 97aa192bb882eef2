package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newResolveCmd(opts *rootOptions) *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "resolve <phrase>",
		Short: "Resolve a phrase to a standard identifier",
		Long: `Segment a phrase with the vocabulary, match each word against the
catalog and print the identifier built from the abbreviations.

Words with no morpheme are printed in brackets and listed on stderr; the
command then exits non-zero.

Examples:
  namingd resolve 客户价格日期
  namingd resolve -v "客户 价格"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(opts.configPath, os.Stderr)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, logger, nil)
			if err != nil {
				return fmt.Errorf("failed to initialize: %w", err)
			}
			defer a.Close()
			return runResolve(cmd.Context(), a, strings.Join(args, " "), verbose, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print each word and its abbreviation")
	return cmd
}

func runResolve(ctx context.Context, a *app, phrase string, verbose bool, out, errOut io.Writer) error {
	if _, err := a.standards.SeedVocabulary(ctx); err != nil {
		return err
	}
	res, err := a.registry.Resolver().Resolve(ctx, phrase)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, res.Identifier)
	if verbose {
		for _, p := range res.Parts {
			abbr := p.Abbr
			if !p.Matched {
				abbr = "-"
			}
			fmt.Fprintf(out, "  %s\t%s\n", p.Token, abbr)
		}
	}
	if !res.Complete() {
		fmt.Fprintf(errOut, "missing: %s\n", strings.Join(res.Missing, ", "))
		return fmt.Errorf("%d word(s) have no morpheme", len(res.Missing))
	}
	return nil
}
