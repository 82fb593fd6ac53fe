// Package overpass is a minimal client for the OpenStreetMap Overpass
// API. It posts Overpass QL and decodes the element list; interpreting
// tags is the caller's job.
package overpass

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public Overpass interpreter endpoint.
const DefaultBaseURL = "https://overpass-api.de/api/interpreter"

// Element is one OSM feature in an Overpass response. Nodes carry
// Lat/Lon directly; ways and relations carry a Center when the query
// asks for one.
type Element struct {
	Type   string            `json:"type"`
	ID     int64             `json:"id"`
	Lat    float64           `json:"lat"`
	Lon    float64           `json:"lon"`
	Center *Center           `json:"center"`
	Tags   map[string]string `json:"tags"`
}

// Center is the centroid Overpass reports for non-node elements.
type Center struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Position returns the element's representative coordinates.
func (e Element) Position() (lat, lon float64, ok bool) {
	if e.Lat != 0 || e.Lon != 0 {
		return e.Lat, e.Lon, true
	}
	if e.Center != nil {
		return e.Center.Lat, e.Center.Lon, true
	}
	return 0, 0, false
}

// Client executes Overpass QL queries.
type Client interface {
	Query(ctx context.Context, ql string) ([]Element, error)
}

// Option configures the HTTP client.
type Option func(*HTTPClient)

// WithHTTPClient swaps the underlying HTTP client, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) {
		c.httpc = hc
	}
}

// WithRateLimit bounds outgoing queries per second. The public Overpass
// instance throttles aggressively, so production callers should set one.
func WithRateLimit(perSecond float64) Option {
	return func(c *HTTPClient) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// HTTPClient is the standard Client implementation.
type HTTPClient struct {
	baseURL string
	httpc   *http.Client
	limiter *rate.Limiter
}

// NewHTTPClient builds a client against baseURL (DefaultBaseURL when
// empty) with the given request timeout.
func NewHTTPClient(baseURL string, timeout time.Duration, opts ...Option) *HTTPClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	c := &HTTPClient{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: timeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type response struct {
	Elements []Element `json:"elements"`
}

// Query posts an Overpass QL document and returns the decoded elements.
func (c *HTTPClient) Query(ctx context.Context, ql string) ([]Element, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "overpass: rate limit wait")
		}
	}

	form := url.Values{"data": {ql}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, eris.Wrap(err, "overpass: build request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "overpass: execute query")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, eris.Errorf("overpass: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, eris.Wrap(err, "overpass: decode response")
	}
	return out.Elements, nil
}
