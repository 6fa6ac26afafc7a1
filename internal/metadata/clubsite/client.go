// Package clubsite looks up a club's ground address from its public team
// profile page.
package clubsite

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rugbymap/rugbymap/internal/logger"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// maxPageBytes bounds how much of a profile page is read.
	maxPageBytes = 4 << 20
)

// Options configures a Client.
type Options struct {
	// BaseURL resolves relative profile references.
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

// Client fetches team profile pages.
type Client struct {
	http      *http.Client
	base      *url.URL
	userAgent string
	logger    *slog.Logger
}

// New creates a profile client.
func New(opts Options, log *slog.Logger) (*Client, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse profile base url: %w", err)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	return &Client{
		http:      &http.Client{Timeout: opts.Timeout},
		base:      base,
		userAgent: opts.UserAgent,
		logger:    logger.OrDiscard(log),
	}, nil
}

// LookupAddress fetches the profile page for ref and returns the address
// text from its club details map link. ref may be absolute or relative to
// the base URL.
func (c *Client) LookupAddress(ctx context.Context, ref string) (string, error) {
	page, err := c.fetchPage(ctx, ref)
	if err != nil {
		return "", wrapError("lookup", ref, err)
	}
	defer page.Close()

	link, err := DetailsLink(page)
	if err != nil {
		return "", wrapError("parse", ref, err)
	}
	addr, ok := AddressFromMapsURL(link)
	if !ok {
		return "", wrapError("parse", ref, ErrNoAddress)
	}
	return addr, nil
}

func (c *Client) fetchPage(ctx context.Context, ref string) (io.ReadCloser, error) {
	u, err := c.base.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid reference: %v", ErrBadRequest, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-GB,en-US;q=0.9,en;q=0.8")

	c.logger.Debug("profile request", "url", u.String())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusAccepted:
		// The site answers 202 with a challenge page instead of the profile.
		resp.Body.Close()
		return nil, ErrAntiBot
	case resp.StatusCode == http.StatusOK:
		return struct {
			io.Reader
			io.Closer
		}{io.LimitReader(resp.Body, maxPageBytes), resp.Body}, nil
	}

	resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: HTTP %d", ErrServer, resp.StatusCode)
	default:
		return nil, fmt.Errorf("%w: HTTP %d", ErrBadRequest, resp.StatusCode)
	}
}

// AddressFromMapsURL extracts the address from a map search link's query
// parameter. Line breaks become ", ".
func AddressFromMapsURL(link string) (string, bool) {
	u, err := url.Parse(link)
	if err != nil {
		return "", false
	}
	q := u.Query().Get("query")
	if q == "" {
		q = u.Query().Get("q")
	}
	q = strings.ReplaceAll(q, "\r\n", "\n")
	q = strings.Trim(strings.ReplaceAll(q, "\n", ", "), " ,")
	return q, q != ""
}
