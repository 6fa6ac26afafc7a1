// Package nominatim is a client for the OpenStreetMap Nominatim search API.
package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"

	"github.com/rugbymap/rugbymap/internal/logger"
)

const (
	defaultEndpoint = "https://nominatim.openstreetmap.org"
	defaultTimeout  = 10 * time.Second
	// The usage policy requires an identifying User-Agent.
	defaultUserAgent = "RugbyMap/1.0"
)

// Options configures a Client.
type Options struct {
	Endpoint     string
	UserAgent    string
	CountryCodes []string
	Timeout      time.Duration
}

// Place is one search hit.
type Place struct {
	PlaceID     int64   `json:"place_id"`
	Lat         float64 `json:"lat,string"`
	Lon         float64 `json:"lon,string"`
	DisplayName string  `json:"display_name"`
	Class       string  `json:"class"`
	Type        string  `json:"type"`
	Importance  float64 `json:"importance"`
}

// Point returns the place as lon/lat.
func (p Place) Point() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// Client queries the search endpoint. It does not pace requests; callers
// share a limiter across workers.
type Client struct {
	http         *http.Client
	endpoint     string
	userAgent    string
	countryCodes string
	logger       *slog.Logger
}

// New creates a Nominatim client.
func New(opts Options, log *slog.Logger) *Client {
	if opts.Endpoint == "" {
		opts.Endpoint = defaultEndpoint
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &Client{
		http:         &http.Client{Timeout: opts.Timeout},
		endpoint:     strings.TrimSuffix(opts.Endpoint, "/"),
		userAgent:    opts.UserAgent,
		countryCodes: strings.Join(opts.CountryCodes, ","),
		logger:       logger.OrDiscard(log),
	}
}

// Search returns up to limit places for a free-text query, best first.
// No match is an empty slice, not an error.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]Place, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("limit", strconv.Itoa(max(limit, 1)))
	q.Set("addressdetails", "1")
	if c.countryCodes != "" {
		q.Set("countrycodes", c.countryCodes)
	}

	body, err := c.doRequest(ctx, "/search", q)
	if err != nil {
		return nil, wrapError("search", query, err)
	}

	var places []Place
	if err := json.Unmarshal(body, &places); err != nil {
		return nil, wrapError("search", query, fmt.Errorf("parse response: %w", err))
	}
	return places, nil
}

func (c *Client) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+path+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	c.logger.Debug("nominatim request", "path", path, "q", query.Get("q"))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return body, nil
	case http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case http.StatusServiceUnavailable:
		return nil, ErrUnavailable
	case http.StatusForbidden:
		return nil, ErrForbidden
	case http.StatusBadRequest:
		return nil, ErrBadRequest
	default:
		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("%w: HTTP %d", ErrServer, resp.StatusCode)
		}
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
}
