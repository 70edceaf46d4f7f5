package crawler

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Parser extracts links and webmention declarations from HTML content.
type Parser struct {
	// baseURL is used for resolving relative URLs.
	baseURL *url.URL
}

// ParseResult contains the information extracted from an HTML document.
type ParseResult struct {
	// Links contains every <a href> target resolved to an absolute URL.
	// Duplicates are removed; first appearance order is kept.
	Links []string

	// Webmention is the resolved href of the first <a> or <link> element
	// whose rel attribute contains the "webmention" token. Empty when the
	// document declares none.
	Webmention string
}

// NewParser creates a new HTML parser that resolves relative links against
// base.
func NewParser(base *url.URL) *Parser {
	return &Parser{baseURL: base}
}

// Parse parses HTML content and extracts links and the webmention endpoint.
func (p *Parser) Parse(content io.Reader) (*ParseResult, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	result := &ParseResult{Links: make([]string, 0)}
	seen := make(map[string]struct{})
	foundWebmention := false

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "a" || n.Data == "link") {
			if !foundWebmention && hasRel(n, "webmention") {
				if href, ok := lookupAttr(n, "href"); ok {
					if resolved, ok := p.resolveEndpoint(href); ok {
						result.Webmention = resolved
						foundWebmention = true
					}
				}
			}
			if n.Data == "a" {
				if link := p.resolveURL(getAttr(n, "href")); link != "" {
					if _, dup := seen[link]; !dup {
						seen[link] = struct{}{}
						result.Links = append(result.Links, link)
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return result, nil
}

// resolveURL resolves a link href against the base URL. Links that cannot
// carry a webmention (script, mail, phone, data and bare fragments) resolve
// to the empty string.
func (p *Parser) resolveURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}

	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "javascript:") ||
		strings.HasPrefix(lower, "mailto:") ||
		strings.HasPrefix(lower, "tel:") ||
		strings.HasPrefix(lower, "data:") ||
		strings.HasPrefix(href, "#") {
		return ""
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := p.baseURL.ResolveReference(u)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return resolved.String()
}

// resolveEndpoint resolves a webmention href. An empty href refers to the
// base document itself.
func (p *Parser) resolveEndpoint(href string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", false
	}
	return p.baseURL.ResolveReference(u).String(), true
}

// hasRel reports whether the rel attribute of n contains token.
func hasRel(n *html.Node, token string) bool {
	for _, rel := range strings.Fields(getAttr(n, "rel")) {
		if strings.EqualFold(rel, token) {
			return true
		}
	}
	return false
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	v, _ := lookupAttr(n, key)
	return v
}

func lookupAttr(n *html.Node, key string) (string, bool) {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val, true
		}
	}
	return "", false
}

// ParseSitemap returns the text of every <loc> element in a sitemap
// document, in document order.
func ParseSitemap(content io.Reader) ([]string, error) {
	z := html.NewTokenizer(content)
	locs := make([]string, 0)

	inLoc := false
	var text strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return nil, err
			}
			return locs, nil
		case html.StartTagToken:
			name, _ := z.TagName()
			if string(name) == "loc" {
				inLoc = true
				text.Reset()
			}
		case html.TextToken:
			if inLoc {
				text.Write(z.Text())
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) == "loc" && inLoc {
				inLoc = false
				if loc := strings.TrimSpace(text.String()); loc != "" {
					locs = append(locs, loc)
				}
			}
		}
	}
}
