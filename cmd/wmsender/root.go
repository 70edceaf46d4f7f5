package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for wmsender.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wmsender",
		Short: "Send webmentions for the outgoing links of a site",
		Long: `wmsender announces a site's outgoing links to the sites it links to.

Each run reads the sitemap, finds the webmention endpoint of every linked
page, and compares the result with the database saved by the previous run.
New and changed links are announced, removed links are announced once more
so receivers can notice the removal, and only notifications that were
accepted are recorded.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewPlanCmd())
	cmd.AddCommand(NewShowCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
