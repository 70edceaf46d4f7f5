package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
var (
	// ErrNoSite is returned when no site base URL is configured.
	ErrNoSite = errors.New("no site specified: use --site or set site in the config file")

	// ErrInvalidSite is returned when the site is not an absolute http(s) URL.
	ErrInvalidSite = errors.New("invalid site: must be an absolute http or https URL")

	// ErrInvalidSitemap is returned when an explicit sitemap URL is not an
	// absolute http(s) URL.
	ErrInvalidSitemap = errors.New("invalid sitemap: must be an absolute http or https URL")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidConcurrency is returned when the discovery concurrency is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrNoStore is returned when the database location is empty.
	ErrNoStore = errors.New("no store specified: use --store or set store in the config file")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	// A negative body size is invalid; use 0 to use the default limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")
)
