package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "certhub",
		Short: "certhub serves certificate lookups and spreadsheet imports.",
		Long: `certhub serves certificate lookups and spreadsheet imports.

The 'serve' subcommand starts the web server and the retention sweeper.

The 'import' subcommand loads a spreadsheet from disk through the same
validation and write path as uploads.

The 'sweep' subcommand runs one retention pass and exits.

Configuration is read from the environment, optionally seeded from .env and
.env.local files.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newImportCmd(), newSweepCmd())
	return root
}
