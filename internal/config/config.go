package config

import (
	"net/url"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "wmsender"

	// DefaultTimeout bounds every outbound request. Endpoint discovery
	// talks to many unrelated servers, some of them slow.
	DefaultTimeout = 30 * time.Second

	// DefaultConcurrency is the number of pages and targets probed at once
	// while building the intended database.
	DefaultConcurrency = 8

	// DefaultUserAgent identifies wmsender in HTTP requests.
	DefaultUserAgent = "wmsender/1.0 (+https://github.com/nao1215/wmsender)"

	// DefaultMaxBodySize limits the maximum response body size to read.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultDatabaseFile is the file name of the default file store.
	DefaultDatabaseFile = "webmention.json"
)

// Config holds all configuration options for wmsender.
// It is populated from defaults, an optional config file, and CLI flags,
// in that order of precedence from lowest to highest.
type Config struct {
	// Site is the base URL of the site whose outgoing links are announced.
	// Relative hrefs on every page are resolved against it.
	Site string

	// SitemapURL is the sitemap listing the site's pages.
	// Empty means <Site>/sitemap.xml.
	SitemapURL string

	// StoreDSN locates the webmention database. See store.Open for schemes.
	StoreDSN string

	// Timeout is the per-request timeout for every outbound HTTP request.
	Timeout time.Duration

	// Concurrency bounds parallel page fetches and endpoint discovery.
	Concurrency int

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string

	// Proxy is an optional SOCKS5 proxy in "host:port" format.
	Proxy string

	// IgnorePatterns are glob patterns matched against page URL paths.
	// Matching pages are left out of the intended database.
	IgnorePatterns []string

	// IgnoreLinks are glob patterns matched against full link URLs.
	IgnoreLinks []string

	// SkipInternal drops links that point back at the site's own host.
	SkipInternal bool

	// MaxBodySize is the maximum response body size in bytes to read.
	// Set to 0 to use the default (5MB).
	MaxBodySize int64

	// Verbose enables detailed log output using slog.LevelDebug.
	Verbose bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, FindConfigFile searches the default locations.
	ConfigFilePath string

	// AllowEmpty treats a missing database as an empty one.
	AllowEmpty bool

	// DryRun reconciles and reports without sending or saving anything.
	DryRun bool

	// JSONReport enables JSON report output instead of human-readable format.
	// Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport enables Markdown report output instead of human-readable format.
	// Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is an additional path receiving a JSON copy of the report.
	ReportFile string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		StoreDSN:    DefaultStoreDSN(),
		Timeout:     DefaultTimeout,
		Concurrency: DefaultConcurrency,
		UserAgent:   DefaultUserAgent,
		MaxBodySize: DefaultMaxBodySize,
	}
}

// XDGDataDir returns the XDG data directory for wmsender.
// On Linux: ~/.local/share/wmsender
// On macOS: ~/Library/Application Support/wmsender
// On Windows: %LOCALAPPDATA%\wmsender
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for wmsender.
// On Linux: ~/.config/wmsender
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// DefaultStoreDSN is the file store under the XDG data directory.
func DefaultStoreDSN() string {
	return "file://" + filepath.ToSlash(filepath.Join(XDGDataDir(), DefaultDatabaseFile))
}

// Validate checks if the configuration is valid.
// It returns the first problem found as one of the package's sentinel errors.
func (c *Config) Validate() error {
	if c.Site == "" {
		return ErrNoSite
	}
	if !isHTTPURL(c.Site) {
		return ErrInvalidSite
	}

	if c.SitemapURL != "" && !isHTTPURL(c.SitemapURL) {
		return ErrInvalidSitemap
	}

	if c.StoreDSN == "" {
		return ErrNoStore
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	return nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
