package crawler

import "errors"

var (
	// ErrSitemap is returned when the sitemap cannot be fetched or parsed.
	ErrSitemap = errors.New("failed to read sitemap")

	// ErrUnreachable is returned when a page cannot be fetched.
	ErrUnreachable = errors.New("page unreachable")

	// ErrUnexpectedStatus is returned when a page responds with a non-2xx status.
	ErrUnexpectedStatus = errors.New("unexpected status code")

	// ErrNoLastModified is returned when a page has no usable Last-Modified header.
	ErrNoLastModified = errors.New("missing or invalid Last-Modified header")

	// ErrInvalidSite is returned when the site URL is not an absolute http(s) URL.
	ErrInvalidSite = errors.New("site must be an absolute http or https URL")
)
