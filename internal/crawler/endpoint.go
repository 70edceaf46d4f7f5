package crawler

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tomnomnom/linkheader"

	"github.com/nao1215/wmsender/internal/model"
)

// EndpointFinder discovers the webmention endpoint advertised by a target.
type EndpointFinder struct {
	client *http.Client
	opts   options
}

// NewEndpointFinder creates an EndpointFinder using client for requests.
func NewEndpointFinder(client *http.Client, opts ...Option) *EndpointFinder {
	f := &EndpointFinder{
		client: client,
		opts:   defaultOptions(),
	}
	for _, opt := range opts {
		opt(&f.opts)
	}
	return f
}

// Find returns the webmention endpoint of target.
//
// A HEAD request is tried first and only its Link header is inspected. If
// that fails or yields nothing, the target is fetched with GET: the Link
// header is checked again, then the first <a> or <link> element carrying
// rel="webmention". Relative endpoints resolve against the final URL after
// redirects.
func (f *EndpointFinder) Find(ctx context.Context, target string) model.EndpointResult {
	if endpoint, ok := f.probe(ctx, target); ok {
		return model.EndpointResult{Endpoint: endpoint, Found: true}
	}

	req, err := f.newRequest(ctx, http.MethodGet, target)
	if err != nil {
		return model.EndpointResult{Reason: err.Error()}
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return model.EndpointResult{Reason: err.Error()}
	}
	defer resp.Body.Close()

	base := resp.Request.URL
	if endpoint, ok := endpointFromHeader(resp.Header, base); ok {
		return model.EndpointResult{Endpoint: endpoint, Found: true}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.maxBodySize))
	if err != nil {
		return model.EndpointResult{Reason: err.Error()}
	}
	result, err := NewParser(base).Parse(bytes.NewReader(body))
	if err != nil {
		return model.EndpointResult{Reason: err.Error()}
	}
	if result.Webmention == "" {
		return model.EndpointResult{Reason: "no webmention endpoint advertised"}
	}
	return model.EndpointResult{Endpoint: result.Webmention, Found: true}
}

// probe inspects the Link header of a HEAD response. Any error is treated
// as no match.
func (f *EndpointFinder) probe(ctx context.Context, target string) (string, bool) {
	req, err := f.newRequest(ctx, http.MethodHead, target)
	if err != nil {
		return "", false
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", false
	}
	defer resp.Body.Close()

	return endpointFromHeader(resp.Header, resp.Request.URL)
}

func (f *EndpointFinder) newRequest(ctx context.Context, method, target string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.opts.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	return req, nil
}

// endpointFromHeader returns the first Link header entry whose rel
// contains the "webmention" token, resolved against base.
func endpointFromHeader(h http.Header, base *url.URL) (string, bool) {
	values := h.Values("Link")
	if len(values) == 0 {
		return "", false
	}
	for _, link := range linkheader.ParseMultiple(values) {
		for _, rel := range strings.Fields(link.Rel) {
			if !strings.EqualFold(rel, "webmention") {
				continue
			}
			ref, err := url.Parse(link.URL)
			if err != nil {
				break
			}
			return base.ResolveReference(ref).String(), true
		}
	}
	return "", false
}
