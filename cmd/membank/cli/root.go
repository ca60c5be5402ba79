package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd builds the membank command tree.
func NewRootCmd() *cobra.Command {
	o := &options{}

	root := &cobra.Command{
		Use:   "membank",
		Short: "Persistent memory bank for agents",
		Long: `membank keeps categorized JSON memory objects on disk, in SQLite or in an
S3-compatible bucket, answers recency and tag queries over them, and caches
library documentation for a configurable freshness window.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&o.configPath, "config", "c", "", "Config file (default is $HOME/.membank/config.yaml)")
	flags.StringVar(&o.root, "root", "", "Memory root directory (overrides memoryRoot)")
	flags.StringVar(&o.backend, "backend", "", "Storage backend: file, sqlite or s3 (overrides backend)")
	flags.BoolVarP(&o.verbose, "verbose", "v", false, "Enable verbose logging")
	flags.BoolVar(&o.json, "json", false, "JSON output")

	root.AddCommand(
		newPutCmd(o),
		newGetCmd(o),
		newListCmd(o),
		newDeleteCmd(o),
		newRecentCmd(o),
		newTagsCmd(o),
		newDocsCmd(o),
		newPruneCmd(o),
		newConfigCmd(o),
		newToolsCmd(o),
	)
	return root
}

func Execute() {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), errorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}
