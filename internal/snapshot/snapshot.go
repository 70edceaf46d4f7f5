// Package snapshot builds the intended view of a site: every sitemap page
// that links to at least one webmention-capable target, with its
// Last-Modified time and the endpoint of each such target.
package snapshot

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/wmsender/internal/crawler"
	"github.com/nao1215/wmsender/internal/model"
)

// DefaultConcurrency is the number of concurrent fetches used when no
// other value is configured.
const DefaultConcurrency = 8

// Discoverer lists a site's pages and reads them.
type Discoverer interface {
	Sitemap(ctx context.Context, sitemapURL string) ([]string, error)
	FetchPage(ctx context.Context, pageURL string) (*crawler.PageInfo, error)
}

// EndpointFinder discovers the webmention endpoint of a target URL.
type EndpointFinder interface {
	Find(ctx context.Context, target string) model.EndpointResult
}

// Snapshot is the result of a build.
type Snapshot struct {
	// Database holds the pages that carry at least one mention.
	Database *model.Database

	// Pages is the number of pages listed in the sitemap.
	Pages int

	// Skipped lists pages that could not be fetched, in lexical order.
	Skipped []string
}

// Merge returns Database with the previous entry of every skipped page
// carried over unchanged, so that a page which failed to load produces no
// operations in this run.
func (s *Snapshot) Merge(previous *model.Database) *model.Database {
	merged := s.Database.Clone()
	if previous == nil {
		return merged
	}
	for _, url := range s.Skipped {
		if p, ok := previous.Page(url); ok {
			merged.Pages[url] = p.Clone()
		}
	}
	return merged
}

// Builder crawls a site into a Snapshot.
type Builder struct {
	discoverer  Discoverer
	finder      EndpointFinder
	sitemapURL  string
	concurrency int
	logger      *slog.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithConcurrency sets the maximum number of concurrent fetches.
func WithConcurrency(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithLogger sets a custom logger for the builder.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) {
		b.logger = logger
	}
}

// NewBuilder creates a Builder that reads the sitemap at sitemapURL.
func NewBuilder(d Discoverer, f EndpointFinder, sitemapURL string, opts ...Option) *Builder {
	b := &Builder{
		discoverer:  d,
		finder:      f,
		sitemapURL:  sitemapURL,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	return b
}

// Build lists the sitemap, fetches every page and discovers the endpoint of
// every distinct link.
//
// A sitemap failure or a cancelled ctx is returned as an error. A page that
// cannot be fetched is logged and listed in Snapshot.Skipped. A link whose
// endpoint cannot be discovered contributes no mention.
func (b *Builder) Build(ctx context.Context) (*Snapshot, error) {
	urls, err := b.discoverer.Sitemap(ctx, b.sitemapURL)
	if err != nil {
		return nil, err
	}
	urls = dedupe(urls)
	b.logger.Info("sitemap listed", "sitemap", b.sitemapURL, "pages", len(urls))

	pages, skipped, err := b.fetchPages(ctx, urls)
	if err != nil {
		return nil, err
	}

	targets := make([]string, 0)
	for _, p := range pages {
		targets = append(targets, p.Links...)
	}
	endpoints, err := b.findEndpoints(ctx, dedupe(targets))
	if err != nil {
		return nil, err
	}

	db := model.NewDatabase()
	for _, p := range pages {
		for _, link := range p.Links {
			res, ok := endpoints[link]
			if !ok || !res.Found {
				continue
			}
			db.Ensure(p.URL, p.LastModified).Put(model.Mention{Target: link, Endpoint: res.Endpoint})
		}
	}

	slices.Sort(skipped)
	return &Snapshot{Database: db, Pages: len(urls), Skipped: skipped}, nil
}

func (b *Builder) fetchPages(ctx context.Context, urls []string) ([]*crawler.PageInfo, []string, error) {
	var (
		mu      sync.Mutex
		pages   = make([]*crawler.PageInfo, 0, len(urls))
		skipped = make([]string, 0)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for _, url := range urls {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			info, err := b.discoverer.FetchPage(gctx, url)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
					return ctxErr
				}
				b.logger.Warn("skipping page", "page", url, "error", err)
				mu.Lock()
				skipped = append(skipped, url)
				mu.Unlock()
				return nil
			}

			b.logger.Debug("page fetched", "page", url, "links", len(info.Links), "last_modified", info.LastModified)
			mu.Lock()
			pages = append(pages, info)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	return pages, skipped, nil
}

func (b *Builder) findEndpoints(ctx context.Context, targets []string) (map[string]model.EndpointResult, error) {
	var (
		mu      sync.Mutex
		results = make(map[string]model.EndpointResult, len(targets))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for _, target := range targets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			res := b.finder.Find(gctx, target)
			if res.Found {
				b.logger.Debug("endpoint found", "target", target, "endpoint", res.Endpoint)
			} else {
				b.logger.Debug("no endpoint", "target", target, "reason", res.Reason)
			}
			mu.Lock()
			results[target] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	// Results gathered while ctx was being cancelled may be incomplete.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// dedupe removes duplicate strings, keeping first appearance order.
func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
