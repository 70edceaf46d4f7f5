package config

import (
	"fmt"
	"time"
)

// Flag names shared by the CLI and File.Apply.
const (
	FlagSite         = "site"
	FlagSitemap      = "sitemap"
	FlagStore        = "store"
	FlagTimeout      = "timeout"
	FlagConcurrency  = "concurrency"
	FlagUserAgent    = "user-agent"
	FlagProxy        = "proxy"
	FlagIgnore       = "ignore"
	FlagIgnoreLink   = "ignore-link"
	FlagSkipInternal = "skip-internal"
	FlagMaxBodySize  = "max-body-size"
)

// File represents the structure of the .wmsender configuration file.
// Durations are strings ("45s", "2m") so that YAML and TOML read the same way.
type File struct {
	// Site is the base URL of the site, e.g. "https://example.com".
	Site string `yaml:"site,omitempty" toml:"site,omitempty"`

	// Sitemap overrides the default <site>/sitemap.xml location.
	Sitemap string `yaml:"sitemap,omitempty" toml:"sitemap,omitempty"`

	// Store is the database DSN.
	Store string `yaml:"store,omitempty" toml:"store,omitempty"`

	Timeout     string `yaml:"timeout,omitempty" toml:"timeout,omitempty"`
	Concurrency int    `yaml:"concurrency,omitempty" toml:"concurrency,omitempty"`
	UserAgent   string `yaml:"userAgent,omitempty" toml:"userAgent,omitempty"`
	Proxy       string `yaml:"proxy,omitempty" toml:"proxy,omitempty"`

	// IgnorePatterns are URL patterns to skip during crawling.
	// Patterns are matched against the URL path using glob syntax.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty" toml:"ignorePatterns,omitempty"`

	// IgnoreLinks are glob patterns for link URLs that never get a webmention.
	IgnoreLinks []string `yaml:"ignoreLinks,omitempty" toml:"ignoreLinks,omitempty"`

	// SkipInternal is a pointer so that an explicit false is distinguishable
	// from an absent key.
	SkipInternal *bool `yaml:"skipInternal,omitempty" toml:"skipInternal,omitempty"`

	MaxBodySize int64 `yaml:"maxBodySize,omitempty" toml:"maxBodySize,omitempty"`
}

// Apply copies the values set in the file onto cfg.
// Keys whose flag the user changed on the command line are left alone.
func (f *File) Apply(cfg *Config, changed map[string]bool) error {
	set := func(flag string) bool { return !changed[flag] }

	if f.Site != "" && set(FlagSite) {
		cfg.Site = f.Site
	}
	if f.Sitemap != "" && set(FlagSitemap) {
		cfg.SitemapURL = f.Sitemap
	}
	if f.Store != "" && set(FlagStore) {
		cfg.StoreDSN = f.Store
	}
	if f.Timeout != "" && set(FlagTimeout) {
		d, err := time.ParseDuration(f.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout %q: %w", f.Timeout, err)
		}
		cfg.Timeout = d
	}
	if f.Concurrency != 0 && set(FlagConcurrency) {
		cfg.Concurrency = f.Concurrency
	}
	if f.UserAgent != "" && set(FlagUserAgent) {
		cfg.UserAgent = f.UserAgent
	}
	if f.Proxy != "" && set(FlagProxy) {
		cfg.Proxy = f.Proxy
	}
	if len(f.IgnorePatterns) > 0 && set(FlagIgnore) {
		cfg.IgnorePatterns = append([]string(nil), f.IgnorePatterns...)
	}
	if len(f.IgnoreLinks) > 0 && set(FlagIgnoreLink) {
		cfg.IgnoreLinks = append([]string(nil), f.IgnoreLinks...)
	}
	if f.SkipInternal != nil && set(FlagSkipInternal) {
		cfg.SkipInternal = *f.SkipInternal
	}
	if f.MaxBodySize != 0 && set(FlagMaxBodySize) {
		cfg.MaxBodySize = f.MaxBodySize
	}

	return nil
}
