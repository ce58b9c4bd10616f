package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/canaldelcongreso/portal/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		errors.PrintError(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "portal",
		Short: "Canal del Congreso media upload service",
		Long: `portal serves the upload endpoint of the Canal del Congreso CMS.

Uploaded files are identified by their content, checked against the
size and type policy for their media class, and stored under a
generated name on disk or in an S3 bucket.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		detectCmd(),
		versionCmd(),
	)

	return rootCmd
}
