// Package crawler discovers what a site links to and where those links
// accept webmentions.
//
// # Components
//
//   - Spider: lists the site's sitemap and fetches each page's Last-Modified
//     time and outbound links.
//   - Parser: HTML parser that extracts <a href> links and the first
//     rel="webmention" element.
//   - EndpointFinder: webmention endpoint discovery for a target URL. It
//     probes with HEAD for a Link header first and falls back to GET, where
//     it checks the Link header again and then the document itself.
//
// # Error handling
//
// Spider.Sitemap failures are fatal for a run and wrap ErrSitemap. Page
// fetch failures wrap ErrUnreachable, ErrUnexpectedStatus or
// ErrNoLastModified and are meant to skip the page. EndpointFinder never
// returns an error; a target without a discoverable endpoint yields a
// model.EndpointResult with Found set to false and a Reason.
//
// # Usage
//
//	spider, err := crawler.NewSpider(client, "https://example.com")
//	pages, err := spider.Sitemap(ctx, "https://example.com/sitemap.xml")
//	info, err := spider.FetchPage(ctx, pages[0])
//	res := crawler.NewEndpointFinder(client).Find(ctx, info.Links[0])
package crawler
