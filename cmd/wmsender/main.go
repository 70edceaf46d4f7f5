// Package main provides the entry point for the wmsender CLI.
//
// wmsender sends webmentions for the outgoing links of a site. It reads the
// site's sitemap, discovers the webmention endpoint of every linked page,
// compares the result with the database saved by the previous run, and
// notifies receivers about links that appeared, changed, or disappeared.
//
// Usage:
//
//	wmsender run --site https://example.com
//	wmsender plan --site https://example.com
//	wmsender show
//
// See --help for all available options.
package main

func main() {
	Execute()
}
