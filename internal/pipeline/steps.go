package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/nao1215/wmsender/internal/crawler"
	"github.com/nao1215/wmsender/internal/executor"
	"github.com/nao1215/wmsender/internal/model"
	"github.com/nao1215/wmsender/internal/notify"
	"github.com/nao1215/wmsender/internal/reconcile"
	"github.com/nao1215/wmsender/internal/snapshot"
	"github.com/nao1215/wmsender/internal/store"
)

// DefaultSaveTimeout bounds the final save, which runs even after the run
// has been cancelled.
const DefaultSaveTimeout = 30 * time.Second

// LoadStep reads the previous database from the store.
type LoadStep struct {
	store      store.Store
	allowEmpty bool
	logger     *slog.Logger
}

// LoadStepOption configures a LoadStep.
type LoadStepOption func(*LoadStep)

// WithAllowEmpty treats a missing database as an empty one. Without it a
// missing database aborts the run.
func WithAllowEmpty(allow bool) LoadStepOption {
	return func(s *LoadStep) {
		s.allowEmpty = allow
	}
}

// WithLoadLogger sets a custom logger for the load step.
func WithLoadLogger(logger *slog.Logger) LoadStepOption {
	return func(s *LoadStep) {
		s.logger = logger
	}
}

// NewLoadStep creates a step that loads from st.
func NewLoadStep(st store.Store, opts ...LoadStepOption) *LoadStep {
	s := &LoadStep{store: st, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *LoadStep) Name() string {
	return "load"
}

// Do loads the previous database into report.Previous.
func (s *LoadStep) Do(ctx context.Context, report *model.RunReport) error {
	report.Store = s.store.Location()

	db, err := s.store.Load(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound) && s.allowEmpty:
		s.logger.Warn("no previous database, starting empty", "store", report.Store)
		db = model.NewDatabase()
	case err != nil:
		return fmt.Errorf("failed to load database: %w", err)
	}

	report.Previous = db
	s.logger.Info("database loaded",
		"store", report.Store,
		"pages", len(db.Pages),
		"mentions", db.MentionCount(),
	)
	return nil
}

// SnapshotBuilder builds the intended database from the live site.
type SnapshotBuilder interface {
	Build(ctx context.Context) (*snapshot.Snapshot, error)
}

// CrawlStep crawls the site into report.Intended.
type CrawlStep struct {
	builder SnapshotBuilder
	logger  *slog.Logger
}

// CrawlStepOption configures a CrawlStep.
type CrawlStepOption func(*CrawlStep)

// WithCrawlLogger sets a custom logger for the crawl step.
func WithCrawlLogger(logger *slog.Logger) CrawlStepOption {
	return func(s *CrawlStep) {
		s.logger = logger
	}
}

// NewCrawlStep creates a new crawl step.
func NewCrawlStep(builder SnapshotBuilder, opts ...CrawlStepOption) *CrawlStep {
	s := &CrawlStep{builder: builder, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do builds the snapshot. Pages that could not be fetched keep their
// previous entry, so they produce no operations.
func (s *CrawlStep) Do(ctx context.Context, report *model.RunReport) error {
	snap, err := s.builder.Build(ctx)
	if err != nil {
		return fmt.Errorf("failed to crawl site: %w", err)
	}

	report.PagesCrawled = snap.Pages
	report.SkippedPages = snap.Skipped
	report.Intended = snap.Merge(report.Previous)

	s.logger.Info("site crawled",
		"pages", snap.Pages,
		"skipped", len(snap.Skipped),
		"pages_with_mentions", len(snap.Database.Pages),
		"mentions", snap.Database.MentionCount(),
	)
	return nil
}

// ReconcileStep diffs report.Previous against report.Intended.
type ReconcileStep struct {
	logger *slog.Logger
}

// NewReconcileStep creates a new reconcile step.
func NewReconcileStep(logger *slog.Logger) *ReconcileStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReconcileStep{logger: logger}
}

// Name returns the step name.
func (s *ReconcileStep) Name() string {
	return "reconcile"
}

// Do stores the plan in report.Plan.
func (s *ReconcileStep) Do(_ context.Context, report *model.RunReport) error {
	report.Plan = reconcile.Reconcile(report.Previous, report.Intended)
	s.logger.Info("plan computed",
		"additions", len(report.Plan.Additions),
		"removals", len(report.Plan.Removals),
	)
	return nil
}

// ExecuteStep sends the planned notifications.
type ExecuteStep struct {
	executor *executor.Executor
	dryRun   bool
	logger   *slog.Logger
}

// ExecuteStepOption configures an ExecuteStep.
type ExecuteStepOption func(*ExecuteStep)

// WithDryRun skips sending. The report is marked as a dry run and nothing
// is saved afterwards.
func WithDryRun(dryRun bool) ExecuteStepOption {
	return func(s *ExecuteStep) {
		s.dryRun = dryRun
	}
}

// WithExecuteLogger sets a custom logger for the execute step.
func WithExecuteLogger(logger *slog.Logger) ExecuteStepOption {
	return func(s *ExecuteStep) {
		s.logger = logger
	}
}

// NewExecuteStep creates a new execute step.
func NewExecuteStep(exec *executor.Executor, opts ...ExecuteStepOption) *ExecuteStep {
	s := &ExecuteStep{executor: exec, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *ExecuteStep) Name() string {
	return "execute"
}

// Do runs the plan and stores the resulting database in report.Next.
// On cancellation report.Next still reflects the notifications that
// succeeded, and the cancellation error is returned.
func (s *ExecuteStep) Do(ctx context.Context, report *model.RunReport) error {
	if s.dryRun {
		report.DryRun = true
		s.logger.Info("dry run, no webmentions sent",
			"additions", len(report.Plan.Additions),
			"removals", len(report.Plan.Removals),
		)
		return nil
	}

	next, outcomes, err := s.executor.Execute(ctx, report.Previous, report.Plan)
	report.Next = next
	for _, o := range outcomes {
		report.AddOutcome(o)
	}
	if err != nil {
		return fmt.Errorf("execution interrupted: %w", err)
	}
	return nil
}

// SaveStep persists report.Next.
type SaveStep struct {
	store   store.Store
	timeout time.Duration
	logger  *slog.Logger
}

// SaveStepOption configures a SaveStep.
type SaveStepOption func(*SaveStep)

// WithSaveTimeout bounds how long the save may take.
func WithSaveTimeout(d time.Duration) SaveStepOption {
	return func(s *SaveStep) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithSaveLogger sets a custom logger for the save step.
func WithSaveLogger(logger *slog.Logger) SaveStepOption {
	return func(s *SaveStep) {
		s.logger = logger
	}
}

// NewSaveStep creates a step that saves to st.
func NewSaveStep(st store.Store, opts ...SaveStepOption) *SaveStep {
	s := &SaveStep{store: st, timeout: DefaultSaveTimeout, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *SaveStep) Name() string {
	return "save"
}

// Finalize makes the save run after an interrupted execution.
func (s *SaveStep) Finalize() bool {
	return true
}

// Do saves report.Next. It does nothing when no execution produced a
// database, as in a dry run or when the run stopped before executing.
func (s *SaveStep) Do(ctx context.Context, report *model.RunReport) error {
	if report.Next == nil || report.DryRun {
		s.logger.Debug("nothing to save")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.store.Save(ctx, report.Next); err != nil {
		return fmt.Errorf("failed to save database: %w", err)
	}
	report.Saved = true
	s.logger.Info("database saved",
		"store", s.store.Location(),
		"pages", len(report.Next.Pages),
		"mentions", report.Next.MentionCount(),
	)
	return nil
}

// DefaultPipelineConfig holds configuration for the default pipeline.
type DefaultPipelineConfig struct {
	// SiteURL is the base URL of the owned site. Links are resolved
	// against it.
	SiteURL string

	// SitemapURL is the sitemap location. Defaults to SiteURL/sitemap.xml.
	SitemapURL string

	// Concurrency bounds parallel page fetches and endpoint lookups.
	Concurrency int

	// UserAgent is the User-Agent header sent with every request.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes to read.
	MaxBodySize int64

	// IgnorePatterns are page path patterns excluded from the crawl.
	IgnorePatterns []string

	// IgnoreLinks are link patterns never notified.
	IgnoreLinks []string

	// SkipInternal drops links to the site's own host.
	SkipInternal bool

	// AllowEmpty starts from an empty database when none is stored.
	AllowEmpty bool

	// DryRun computes the plan without sending or saving.
	DryRun bool

	// Observer is called after every notification attempt.
	Observer func(model.OperationOutcome)

	// Logger is passed to every step. Defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultPipelineOption configures a DefaultPipelineConfig.
type DefaultPipelineOption func(*DefaultPipelineConfig)

// WithPipelineSitemapURL sets the sitemap location.
func WithPipelineSitemapURL(sitemapURL string) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.SitemapURL = sitemapURL
	}
}

// WithPipelineConcurrency sets the discovery concurrency.
func WithPipelineConcurrency(n int) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Concurrency = n
	}
}

// WithPipelineUserAgent sets the User-Agent header for HTTP requests.
func WithPipelineUserAgent(userAgent string) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.UserAgent = userAgent
	}
}

// WithPipelineMaxBodySize sets the maximum response body size in bytes.
func WithPipelineMaxBodySize(maxBodySize int64) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.MaxBodySize = maxBodySize
	}
}

// WithPipelineIgnorePatterns sets page patterns to skip during crawling.
func WithPipelineIgnorePatterns(patterns []string) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.IgnorePatterns = patterns
	}
}

// WithPipelineIgnoreLinks sets link patterns that are never notified.
func WithPipelineIgnoreLinks(patterns []string) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.IgnoreLinks = patterns
	}
}

// WithPipelineSkipInternal drops links to the site's own host.
func WithPipelineSkipInternal(skip bool) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.SkipInternal = skip
	}
}

// WithPipelineAllowEmpty starts from an empty database when none is stored.
func WithPipelineAllowEmpty(allow bool) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.AllowEmpty = allow
	}
}

// WithPipelineDryRun computes the plan without sending or saving.
func WithPipelineDryRun(dryRun bool) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.DryRun = dryRun
	}
}

// WithPipelineObserver registers a callback for every notification attempt.
func WithPipelineObserver(fn func(model.OperationOutcome)) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Observer = fn
	}
}

// WithPipelineLogger sets the logger passed to every step.
func WithPipelineLogger(logger *slog.Logger) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Logger = logger
	}
}

// DefaultPipeline creates the load, crawl, reconcile, execute and save
// pipeline for siteURL. The client is shared by discovery and notification.
//
// The first variadic parameter accepts pipeline options (WithLogger, etc).
// The second accepts pipeline config options (WithPipelineDryRun, etc).
func DefaultPipeline(
	client *http.Client,
	st store.Store,
	siteURL string,
	pipelineOpts []Option,
	configOpts ...DefaultPipelineOption,
) (*Pipeline, error) {
	cfg := &DefaultPipelineConfig{
		SiteURL:     siteURL,
		Concurrency: snapshot.DefaultConcurrency,
		UserAgent:   crawler.DefaultUserAgent,
		MaxBodySize: crawler.DefaultMaxBodySize,
		Logger:      slog.Default(),
	}
	for _, opt := range configOpts {
		opt(cfg)
	}
	if cfg.SitemapURL == "" {
		sitemapURL, err := url.JoinPath(cfg.SiteURL, "sitemap.xml")
		if err != nil {
			return nil, fmt.Errorf("%w: %w", crawler.ErrInvalidSite, err)
		}
		cfg.SitemapURL = sitemapURL
	}

	crawlOpts := []crawler.Option{
		crawler.WithUserAgent(cfg.UserAgent),
		crawler.WithMaxBodySize(cfg.MaxBodySize),
		crawler.WithSkipInternal(cfg.SkipInternal),
	}
	if len(cfg.IgnorePatterns) > 0 {
		crawlOpts = append(crawlOpts, crawler.WithIgnorePatterns(cfg.IgnorePatterns))
	}
	if len(cfg.IgnoreLinks) > 0 {
		crawlOpts = append(crawlOpts, crawler.WithIgnoreLinks(cfg.IgnoreLinks))
	}

	spider, err := crawler.NewSpider(client, cfg.SiteURL, crawlOpts...)
	if err != nil {
		return nil, err
	}
	finder := crawler.NewEndpointFinder(client, crawlOpts...)
	builder := snapshot.NewBuilder(spider, finder, cfg.SitemapURL,
		snapshot.WithConcurrency(cfg.Concurrency),
		snapshot.WithLogger(cfg.Logger),
	)

	execOpts := []executor.Option{executor.WithLogger(cfg.Logger)}
	if cfg.Observer != nil {
		execOpts = append(execOpts, executor.WithObserver(cfg.Observer))
	}
	exec := executor.New(notify.New(client, notify.WithUserAgent(cfg.UserAgent)), execOpts...)

	p := New(pipelineOpts...)
	p.AddSteps(
		NewLoadStep(st, WithAllowEmpty(cfg.AllowEmpty), WithLoadLogger(cfg.Logger)),
		NewCrawlStep(builder, WithCrawlLogger(cfg.Logger)),
		NewReconcileStep(cfg.Logger),
		NewExecuteStep(exec, WithDryRun(cfg.DryRun), WithExecuteLogger(cfg.Logger)),
		NewSaveStep(st, WithSaveLogger(cfg.Logger)),
	)
	return p, nil
}
