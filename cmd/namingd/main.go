// Namingd serves the naming-standards catalog: identifier resolution,
// two-tier search, and the admin API that keeps the similarity index in
// step with the relational catalog.
//
// Usage:
//
//	# Start the HTTP server
//	namingd serve --config namingd.yaml
//
//	# Serve MCP tools on stdin/stdout
//	namingd mcp
//
//	# Load a seed file, then rebuild the index
//	namingd import seed.toml
//	namingd resync
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// rootOptions carries the persistent flags to subcommands.
type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "namingd",
		Short: "Naming standards catalog service",
		Long: `namingd turns business phrases into standard identifiers and serves the
morpheme and standard-field catalog over HTTP and MCP.

Configuration is read from the optional --config YAML file and from
NAMINGD_-prefixed environment variables.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a YAML config file")

	cmd.AddCommand(
		newServeCmd(opts),
		newMCPCmd(opts),
		newResyncCmd(opts),
		newImportCmd(opts),
		newResolveCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "namingd by Fyrsmith Labs\n")
			fmt.Fprintf(out, "Version:    %s\n", version)
			fmt.Fprintf(out, "Commit:     %s\n", gitCommit)
			fmt.Fprintf(out, "Build Date: %s\n", buildDate)
		},
	}
}
