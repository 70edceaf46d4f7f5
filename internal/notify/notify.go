// Package notify sends webmention notifications.
//
// A notification is a form-encoded POST of the source and target URLs to the
// target's webmention endpoint. Only 201 Created and 202 Accepted count as
// success; every other status and every transport error is reported as a
// failed model.NotifyResult and never returned as an error.
package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/nao1215/wmsender/internal/model"
)

// maxDrain bounds how much of a response body is read before closing.
const maxDrain = 64 * 1024

// Client posts notifications over HTTP.
type Client struct {
	client    *http.Client
	userAgent string
}

// Option configures a Client.
type Option func(*Client)

// WithUserAgent sets the User-Agent header of notification requests.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// New creates a Client that sends requests with client.
func New(client *http.Client, opts ...Option) *Client {
	c := &Client{client: client}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Notify tells endpoint that source links to target.
func (c *Client) Notify(ctx context.Context, source, target, endpoint string) model.NotifyResult {
	form := url.Values{}
	form.Set("source", source)
	form.Set("target", target)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return model.NotifyResult{Err: fmt.Errorf("invalid endpoint: %w", err)}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return model.NotifyResult{Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))

	return model.NotifyResult{
		StatusCode: resp.StatusCode,
		Success:    Accepted(resp.StatusCode),
	}
}

// Accepted reports whether status means the endpoint took the notification.
func Accepted(status int) bool {
	return status == http.StatusCreated || status == http.StatusAccepted
}
