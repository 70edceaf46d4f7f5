package main

import (
	"errors"
	"fmt"

	"github.com/nao1215/wmsender/internal/config"
	"github.com/nao1215/wmsender/internal/report"
	"github.com/nao1215/wmsender/internal/store"
	"github.com/spf13/cobra"
)

// errNoHistory is returned by show --history for stores that keep no history.
var errNoHistory = errors.New("store does not record run history (use a sqlite:// store)")

// NewShowCmd creates the show command.
func NewShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the saved webmention database",
		Long: `Show prints the database saved by the last run: every tracked page,
its last modification time, and the targets whose receivers accepted a
webmention together with the endpoint that was used.

Examples:
  # Show the default database
  wmsender show

  # Include pages with no tracked mentions
  wmsender show --all

  # Show the last 10 saves of a sqlite database
  wmsender show --store sqlite:///var/lib/wmsender.db --history 10

  # Output in JSON format
  wmsender show --json`,
		Args: cobra.NoArgs,
		RunE: runShowCmd,
	}

	cmd.Flags().String(config.FlagStore, config.DefaultStoreDSN(),
		"Database location: file://, sqlite://, postgres://, s3:// or memory://")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .wmsender in current or home directory)")
	cmd.Flags().Int("history", 0,
		"Also list the last N saves (sqlite stores only)")
	cmd.Flags().BoolP("all", "a", false,
		"Include pages without tracked mentions")
	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output in Markdown format")

	return cmd
}

// runShowCmd executes the show command.
func runShowCmd(cmd *cobra.Command, _ []string) error {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.StoreDSN, err = flags.GetString(config.FlagStore); err != nil {
		return err
	}
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return err
	}
	historyLimit, err := flags.GetInt("history")
	if err != nil {
		return err
	}
	showAll, err := flags.GetBool("all")
	if err != nil {
		return err
	}

	if err := applyConfigFile(cmd, cfg); err != nil {
		return err
	}
	if cfg.StoreDSN == "" {
		return fmt.Errorf("configuration error: %w", config.ErrNoStore)
	}
	if cfg.JSONReport && cfg.MarkdownReport {
		return fmt.Errorf("configuration error: %w", config.ErrConflictingReportFormats)
	}

	ctx := cmd.Context()
	st, err := store.Open(ctx, cfg.StoreDSN)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	db, err := st.Load(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no database at %s (run 'wmsender run --allow-empty' first): %w", st.Location(), err)
		}
		return fmt.Errorf("failed to load database: %w", err)
	}

	view := &report.DatabaseView{Location: st.Location(), Database: db}

	if historyLimit > 0 {
		hs, ok := st.(store.HistoryStore)
		if !ok {
			return errNoHistory
		}
		if view.History, err = hs.History(ctx, historyLimit); err != nil {
			return fmt.Errorf("failed to read history: %w", err)
		}
	}

	var writer report.Writer
	switch {
	case cfg.JSONReport:
		writer = report.NewJSONWriter(cmd.OutOrStdout(), report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case cfg.MarkdownReport:
		writer = report.NewMarkdownWriter(cmd.OutOrStdout())
	default:
		writer = report.NewSimpleWriter(cmd.OutOrStdout(), report.WithShowEmpty(showAll))
	}

	_, err = writer.WriteDatabase(view)
	return err
}
