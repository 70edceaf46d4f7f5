package model

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

// ErrMentionKeyMismatch is returned by Validate when a mention is stored
// under a key different from its own target URL.
var ErrMentionKeyMismatch = errors.New("mention stored under a key different from its target")

// ErrPageKeyMismatch is returned by Validate when a page is stored under a
// key different from its own URL.
var ErrPageKeyMismatch = errors.New("page stored under a key different from its url")

// Mention is a single outbound link relationship: a target page and the
// webmention endpoint discovered for it. Mentions are values; a changed
// endpoint replaces the whole Mention.
type Mention struct {
	// Target is the linked page URL.
	Target string `json:"target"`

	// Endpoint is the webmention endpoint advertised by Target.
	Endpoint string `json:"endpoint"`
}

// Page is a source page on the owned site and the mentions it carries.
type Page struct {
	// URL is the page URL. It is the page's key within a Database.
	URL string `json:"url"`

	// LastModified is the page's Last-Modified time in seconds since the
	// Unix epoch. Sub-second precision is never stored.
	LastModified int64 `json:"lastModified"`

	// Mentions maps target URL to Mention. Keys are compared as exact
	// strings; no URL normalization is applied.
	Mentions map[string]Mention `json:"mentions"`
}

// NewPage creates a Page with an empty mention set.
func NewPage(url string, lastModified int64) *Page {
	return &Page{
		URL:          url,
		LastModified: lastModified,
		Mentions:     make(map[string]Mention),
	}
}

// Put stores m keyed by its target, replacing any previous mention for the
// same target.
func (p *Page) Put(m Mention) {
	if p.Mentions == nil {
		p.Mentions = make(map[string]Mention)
	}
	p.Mentions[m.Target] = m
}

// Drop removes the mention for target. It reports whether one was present.
func (p *Page) Drop(target string) bool {
	if _, ok := p.Mentions[target]; !ok {
		return false
	}
	delete(p.Mentions, target)
	return true
}

// Targets returns the page's target URLs in lexical order.
func (p *Page) Targets() []string {
	return slices.Sorted(maps.Keys(p.Mentions))
}

// Clone returns a deep copy of p.
func (p *Page) Clone() *Page {
	if p == nil {
		return nil
	}
	c := NewPage(p.URL, p.LastModified)
	maps.Copy(c.Mentions, p.Mentions)
	return c
}

// Equal reports whether p and other hold the same URL, lastModified and
// mention set.
func (p *Page) Equal(other *Page) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.URL == other.URL &&
		p.LastModified == other.LastModified &&
		maps.Equal(p.Mentions, other.Mentions)
}

// Database is the full persisted state: every page that carries at least one
// announced mention, keyed by page URL.
type Database struct {
	Pages map[string]*Page `json:"pages"`
}

// NewDatabase returns an empty Database.
func NewDatabase() *Database {
	return &Database{Pages: make(map[string]*Page)}
}

// Page returns the page stored under url.
func (db *Database) Page(url string) (*Page, bool) {
	p, ok := db.Pages[url]
	return p, ok
}

// Ensure returns the page stored under url, creating an empty one with the
// given lastModified when it does not exist yet.
func (db *Database) Ensure(url string, lastModified int64) *Page {
	if db.Pages == nil {
		db.Pages = make(map[string]*Page)
	}
	p, ok := db.Pages[url]
	if !ok {
		p = NewPage(url, lastModified)
		db.Pages[url] = p
	}
	return p
}

// PageURLs returns all page URLs in lexical order.
func (db *Database) PageURLs() []string {
	return slices.Sorted(maps.Keys(db.Pages))
}

// MentionCount returns the total number of mentions across all pages.
func (db *Database) MentionCount() int {
	n := 0
	for _, p := range db.Pages {
		n += len(p.Mentions)
	}
	return n
}

// Clone returns a deep copy of db. Mutating the copy never affects db.
func (db *Database) Clone() *Database {
	c := NewDatabase()
	if db == nil {
		return c
	}
	for url, p := range db.Pages {
		c.Pages[url] = p.Clone()
	}
	return c
}

// Equal reports whether db and other hold structurally identical pages.
func (db *Database) Equal(other *Database) bool {
	return maps.EqualFunc(db.Pages, other.Pages, func(a, b *Page) bool {
		return a.Equal(b)
	})
}

// Validate checks the key invariants of the database: every page is stored
// under its own URL and every mention under its own target.
func (db *Database) Validate() error {
	for key, p := range db.Pages {
		if p == nil || p.URL != key {
			return fmt.Errorf("%w: %q", ErrPageKeyMismatch, key)
		}
		for target, m := range p.Mentions {
			if m.Target != target {
				return fmt.Errorf("%w: page %q target %q", ErrMentionKeyMismatch, key, target)
			}
		}
	}
	return nil
}

// Normalize fills nil maps so that an empty database or page serializes as
// an empty object rather than null.
func (db *Database) Normalize() {
	if db.Pages == nil {
		db.Pages = make(map[string]*Page)
	}
	for _, p := range db.Pages {
		if p.Mentions == nil {
			p.Mentions = make(map[string]Mention)
		}
	}
}
