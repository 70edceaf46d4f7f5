package crawler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// DefaultUserAgent identifies wmsender to the sites it visits.
const DefaultUserAgent = "wmsender (+https://github.com/nao1215/wmsender)"

// DefaultMaxBodySize limits how much of a response body is read.
const DefaultMaxBodySize int64 = 5 * 1024 * 1024

// options holds the settings shared by Spider and EndpointFinder.
type options struct {
	userAgent      string
	maxBodySize    int64
	ignorePatterns []string
	ignoreLinks    []string
	skipInternal   bool
}

func defaultOptions() options {
	return options{
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
	}
}

// Option configures a Spider or an EndpointFinder.
type Option func(*options)

// WithUserAgent sets a custom User-Agent header.
func WithUserAgent(ua string) Option {
	return func(o *options) {
		if ua != "" {
			o.userAgent = ua
		}
	}
}

// WithMaxBodySize sets the maximum response body size.
func WithMaxBodySize(size int64) Option {
	return func(o *options) {
		if size > 0 {
			o.maxBodySize = size
		}
	}
}

// WithIgnorePatterns sets page path patterns to leave out of the sitemap.
// Patterns use glob syntax (e.g., "/drafts/*", "*.xml").
func WithIgnorePatterns(patterns []string) Option {
	return func(o *options) {
		o.ignorePatterns = patterns
	}
}

// WithIgnoreLinks sets link patterns that are never mentioned.
// A pattern containing "://" is a URL prefix, optionally ending in "*".
// Any other pattern is a glob matched against the link's host name
// (e.g., "*.example.com").
func WithIgnoreLinks(patterns []string) Option {
	return func(o *options) {
		o.ignoreLinks = patterns
	}
}

// WithSkipInternal drops links pointing at the site's own host.
func WithSkipInternal(skip bool) Option {
	return func(o *options) {
		o.skipInternal = skip
	}
}

// Spider reads a site's sitemap and the pages it lists.
type Spider struct {
	// client performs all HTTP requests.
	client *http.Client

	// site is the owned site's base URL. Page links resolve against it.
	site *url.URL

	opts options
}

// PageInfo is what the spider learned about a single page.
type PageInfo struct {
	// URL is the page URL as listed in the sitemap.
	URL string

	// LastModified is the Last-Modified header in seconds since the epoch.
	LastModified int64

	// Links are the page's outbound links after filtering, deduplicated.
	Links []string
}

// NewSpider creates a Spider for the site at siteURL.
func NewSpider(client *http.Client, siteURL string, opts ...Option) (*Spider, error) {
	u, err := url.Parse(siteURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSite, siteURL)
	}

	s := &Spider{
		client: client,
		site:   u,
		opts:   defaultOptions(),
	}
	for _, opt := range opts {
		opt(&s.opts)
	}
	return s, nil
}

// Sitemap fetches the sitemap at sitemapURL and returns the page URLs it
// lists, minus those matching an ignore pattern.
func (s *Spider) Sitemap(ctx context.Context, sitemapURL string) ([]string, error) {
	resp, body, err := s.get(ctx, sitemapURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSitemap, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s returned %d", ErrSitemap, sitemapURL, resp.StatusCode)
	}

	locs, err := ParseSitemap(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSitemap, err)
	}

	pages := make([]string, 0, len(locs))
	for _, loc := range locs {
		if s.shouldVisit(loc) {
			pages = append(pages, loc)
		}
	}
	return pages, nil
}

// FetchPage fetches pageURL and returns its Last-Modified time and links.
func (s *Spider) FetchPage(ctx context.Context, pageURL string) (*PageInfo, error) {
	resp, body, err := s.get(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s returned %d", ErrUnexpectedStatus, pageURL, resp.StatusCode)
	}

	lastModified, err := parseLastModified(resp.Header.Get("Last-Modified"))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNoLastModified, pageURL, err)
	}

	result, err := NewParser(s.site).Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnreachable, pageURL, err)
	}

	return &PageInfo{
		URL:          pageURL,
		LastModified: lastModified,
		Links:        s.filterLinks(result.Links),
	}, nil
}

// get performs a GET request and reads a bounded body.
func (s *Spider) get(ctx context.Context, target string) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("User-Agent", s.opts.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.opts.maxBodySize))
	if err != nil {
		return nil, nil, err
	}
	return resp, body, nil
}

// parseLastModified parses an HTTP date into whole seconds since the epoch.
func parseLastModified(value string) (int64, error) {
	if value == "" {
		return 0, fmt.Errorf("header not present")
	}
	t, err := http.ParseTime(value)
	if err != nil {
		return 0, err
	}
	return t.Unix(), nil
}

// shouldVisit checks a sitemap entry against the ignore patterns.
func (s *Spider) shouldVisit(pageURL string) bool {
	u, err := url.Parse(pageURL)
	if err != nil {
		return false
	}

	p := u.Path
	if p == "" {
		p = "/"
	}
	for _, pattern := range s.opts.ignorePatterns {
		if matchPattern(pattern, p) {
			return false
		}
	}
	return true
}

// filterLinks drops ignored and, when configured, same-host links.
func (s *Spider) filterLinks(links []string) []string {
	kept := make([]string, 0, len(links))
	for _, link := range links {
		u, err := url.Parse(link)
		if err != nil {
			continue
		}
		if s.opts.skipInternal && strings.EqualFold(u.Host, s.site.Host) {
			continue
		}
		if s.ignoredLink(link, u) {
			continue
		}
		kept = append(kept, link)
	}
	return kept
}

func (s *Spider) ignoredLink(link string, u *url.URL) bool {
	for _, pattern := range s.opts.ignoreLinks {
		if strings.Contains(pattern, "://") {
			if strings.HasPrefix(link, strings.TrimSuffix(pattern, "*")) {
				return true
			}
			continue
		}
		if ok, err := path.Match(strings.ToLower(pattern), strings.ToLower(u.Hostname())); err == nil && ok {
			return true
		}
	}
	return false
}

// matchPattern checks if a path matches a glob pattern.
// Patterns can use:
//   - * to match any sequence of non-separator characters
//   - ? to match any single character
//
// Examples:
//   - "/drafts/*" matches "/drafts/post", "/drafts/a/b"
//   - "*.xml" matches "/feeds/atom.xml"
func matchPattern(pattern, p string) bool {
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if strings.HasPrefix(p, prefix+"/") || p == prefix {
			return true
		}
	}

	if strings.HasPrefix(pattern, "*.") {
		if strings.HasSuffix(p, strings.TrimPrefix(pattern, "*")) {
			return true
		}
	}

	matched, err := filepath.Match(pattern, p)
	if err != nil {
		return false
	}
	if matched {
		return true
	}

	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		matched, err := filepath.Match(pattern, filepath.Base(p))
		if err == nil && matched {
			return true
		}
	}

	return false
}
