package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/nao1215/wmsender/internal/config"
	"github.com/nao1215/wmsender/internal/httpclient"
	wmlog "github.com/nao1215/wmsender/internal/log"
	"github.com/nao1215/wmsender/internal/model"
	"github.com/nao1215/wmsender/internal/pipeline"
	"github.com/nao1215/wmsender/internal/report"
	"github.com/nao1215/wmsender/internal/store"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Send webmentions for new, changed and removed links",
		Long: `Run performs one full webmention pass over the site:

1. Load the database saved by the previous run
2. Read the sitemap and collect every page's outgoing links
3. Discover the webmention endpoint of each linked page
4. Reconcile the previous database with what the site links to now
5. Notify removals first, then additions
6. Save the database with only the accepted notifications applied

Pages that cannot be fetched keep their previous entries, so a flaky page
never produces spurious removals. Interrupting the run (Ctrl+C) stops
sending and still saves the notifications that were accepted.

Examples:
  # First run against an empty database
  wmsender run --site https://example.com --allow-empty

  # Keep the database in S3
  wmsender run --site https://example.com --store s3://bucket/webmention.json?region=us-east-1

  # Print a JSON report and keep a copy on disk
  wmsender run --json -o reports/last.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPipelineCmd(cmd, false)
		},
	}

	addPipelineFlags(cmd)
	cmd.Flags().Bool("dry-run", false,
		"Reconcile and report without sending notifications or saving")

	return cmd
}

// NewPlanCmd creates the plan command.
func NewPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the webmentions the next run would send",
		Long: `Plan builds the intended database from the live site and reconciles it
with the saved one, then prints the additions and removals without sending
anything or touching the database.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPipelineCmd(cmd, true)
		},
	}

	addPipelineFlags(cmd)

	return cmd
}

// addPipelineFlags registers the flags shared by run and plan.
func addPipelineFlags(cmd *cobra.Command) {
	defaults := config.NewConfig()
	flags := cmd.Flags()

	flags.StringP(config.FlagSite, "s", "",
		"Base URL of the site (e.g., https://example.com)")
	flags.String(config.FlagSitemap, "",
		"Sitemap URL (default: <site>/sitemap.xml)")
	flags.String(config.FlagStore, defaults.StoreDSN,
		"Database location: file://, sqlite://, postgres://, s3:// or memory://")
	flags.DurationP(config.FlagTimeout, "t", defaults.Timeout,
		"Timeout for each outbound request")
	flags.IntP(config.FlagConcurrency, "n", defaults.Concurrency,
		"Number of pages and link targets probed at once")
	flags.String(config.FlagUserAgent, defaults.UserAgent,
		"User-Agent header for outbound requests")
	flags.String(config.FlagProxy, "",
		"SOCKS5 proxy for outbound requests (host:port)")
	flags.StringSlice(config.FlagIgnore, nil,
		"Glob pattern for page paths to leave out (repeatable)")
	flags.StringSlice(config.FlagIgnoreLink, nil,
		"Glob pattern for link URLs that never get a webmention (repeatable)")
	flags.Bool(config.FlagSkipInternal, false,
		"Skip links that point back at the site itself")
	flags.Int64(config.FlagMaxBodySize, defaults.MaxBodySize,
		"Maximum response body size in bytes")

	flags.StringP("config", "c", "",
		"Configuration file path (default: .wmsender in current or home directory)")
	flags.Bool("allow-empty", false,
		"Start from an empty database when none has been saved yet")

	flags.BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	flags.BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	flags.StringP("output", "o", "",
		"Also write a JSON copy of the report to this file")
}

// runPipelineCmd executes run or plan.
func runPipelineCmd(cmd *cobra.Command, forceDryRun bool) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	if forceDryRun {
		cfg.DryRun = true
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := wmlog.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbose)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("received shutdown signal, finishing in-flight notification and saving...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runWebmentions(ctx, cfg, logger, cmd.OutOrStdout())
}

// buildConfig creates a Config from defaults, the config file and the flags.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.Site, err = flags.GetString(config.FlagSite); err != nil {
		return nil, err
	}
	if cfg.SitemapURL, err = flags.GetString(config.FlagSitemap); err != nil {
		return nil, err
	}
	if cfg.StoreDSN, err = flags.GetString(config.FlagStore); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration(config.FlagTimeout); err != nil {
		return nil, err
	}
	if cfg.Concurrency, err = flags.GetInt(config.FlagConcurrency); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString(config.FlagUserAgent); err != nil {
		return nil, err
	}
	if cfg.Proxy, err = flags.GetString(config.FlagProxy); err != nil {
		return nil, err
	}
	if cfg.IgnorePatterns, err = flags.GetStringSlice(config.FlagIgnore); err != nil {
		return nil, err
	}
	if cfg.IgnoreLinks, err = flags.GetStringSlice(config.FlagIgnoreLink); err != nil {
		return nil, err
	}
	if cfg.SkipInternal, err = flags.GetBool(config.FlagSkipInternal); err != nil {
		return nil, err
	}
	if cfg.MaxBodySize, err = flags.GetInt64(config.FlagMaxBodySize); err != nil {
		return nil, err
	}
	if cfg.AllowEmpty, err = flags.GetBool("allow-empty"); err != nil {
		return nil, err
	}
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	// plan has no --dry-run flag
	if flags.Lookup("dry-run") != nil {
		if cfg.DryRun, err = flags.GetBool("dry-run"); err != nil {
			return nil, err
		}
	}
	cfg.Verbose = getVerboseFlag(cmd)

	if err := applyConfigFile(cmd, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyConfigFile loads the config file, if any, under the changed flags.
// A missing file is an error only when the user named it with --config.
func applyConfigFile(cmd *cobra.Command, cfg *config.Config) error {
	var err error
	if cfg.ConfigFilePath, err = cmd.Flags().GetString("config"); err != nil {
		return err
	}

	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	if configPath == "" {
		if cfg.ConfigFilePath != "" {
			return fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
		}
		return nil
	}

	cf, err := config.LoadConfigFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config file %s: %w", configPath, err)
	}
	if err := cf.Apply(cfg, changedFlags(cmd.Flags())); err != nil {
		return fmt.Errorf("config file %s: %w", configPath, err)
	}
	return nil
}

// changedFlags returns the names of the flags set on the command line.
func changedFlags(flags *pflag.FlagSet) map[string]bool {
	changed := make(map[string]bool)
	flags.Visit(func(f *pflag.Flag) {
		changed[f.Name] = true
	})
	return changed
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// runWebmentions opens the store, runs the pipeline and writes the report.
// The report is written even when the run fails or is interrupted.
func runWebmentions(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) error {
	client, err := httpclient.New(httpclient.Options{
		Timeout:   cfg.Timeout,
		UserAgent: cfg.UserAgent,
		Proxy:     cfg.Proxy,
	})
	if err != nil {
		return fmt.Errorf("failed to create HTTP client: %w", err)
	}

	st, err := store.Open(ctx, cfg.StoreDSN)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn("failed to close store", "store", st.Location(), "error", err)
		}
	}()

	logger.Info("starting run",
		"site", cfg.Site,
		"store", st.Location(),
		"dryRun", cfg.DryRun,
		"concurrency", cfg.Concurrency,
	)

	p, err := pipeline.DefaultPipeline(client, st, cfg.Site,
		[]pipeline.Option{pipeline.WithLogger(logger)},
		pipeline.WithPipelineSitemapURL(cfg.SitemapURL),
		pipeline.WithPipelineConcurrency(cfg.Concurrency),
		pipeline.WithPipelineUserAgent(cfg.UserAgent),
		pipeline.WithPipelineMaxBodySize(cfg.MaxBodySize),
		pipeline.WithPipelineIgnorePatterns(cfg.IgnorePatterns),
		pipeline.WithPipelineIgnoreLinks(cfg.IgnoreLinks),
		pipeline.WithPipelineSkipInternal(cfg.SkipInternal),
		pipeline.WithPipelineAllowEmpty(cfg.AllowEmpty),
		pipeline.WithPipelineDryRun(cfg.DryRun),
		pipeline.WithPipelineLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}
	logger.Debug("pipeline ready", "steps", p.StepNames())

	runReport := model.NewRunReport(cfg.Site)
	runErr := p.Execute(ctx, runReport)
	runReport.Finish()

	logger.Info("run finished",
		"duration", runReport.Duration().Round(time.Millisecond),
		"saved", runReport.Saved,
	)

	if err := outputReport(cfg, runReport, out); err != nil {
		if runErr == nil {
			return err
		}
		logger.Error("report failed", "error", err)
	}

	if runErr != nil {
		if runReport.Interrupted() {
			return fmt.Errorf("run interrupted: %w", runErr)
		}
		return fmt.Errorf("run failed: %w", runErr)
	}
	return nil
}

// outputReport writes the run report in the requested format to out, and a
// JSON copy to cfg.ReportFile when set.
func outputReport(cfg *config.Config, runReport *model.RunReport, out io.Writer) error {
	writer := newReportWriter(cfg, out)

	if cfg.ReportFile == "" {
		_, err := writer.Write(runReport)
		return err
	}

	f, err := createReportFile(cfg.ReportFile)
	if err != nil {
		return err
	}
	defer f.Close()

	multi := report.NewMultiWriter(writer,
		report.NewJSONWriter(f, report.WithPrettyPrint(), report.WithVersion(getVersion())))
	_, err = multi.Write(runReport)
	return err
}

// newReportWriter selects the writer for the configured format.
func newReportWriter(cfg *config.Config, out io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(out, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(out)
	default:
		return report.NewSimpleWriter(out, report.WithVerbose(cfg.Verbose))
	}
}

// createReportFile creates path and its parent directories.
// The file is owner-only; reports name every endpoint the site talks to.
func createReportFile(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}
