// Package scrape provides the shared HTTP client and block-page detection
// used by every source adapter.
package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/Nemiok/gde-deshevle/internal/resilience"
)

// ErrBlocked marks a response classified as an anti-bot challenge page.
// Adapters treat it as a soft failure: log, then continue with the next
// keyword, category, or fallback strategy.
var ErrBlocked = eris.New("scrape: blocked by upstream")

// maxBodyBytes caps response reads as a safety valve against runaway payloads.
const maxBodyBytes = 8 << 20

// Options configures the shared scrape client.
type Options struct {
	UserAgent string
	Timeout   time.Duration
}

// Client wraps net/http with a fixed per-call timeout, a browser-like
// User-Agent, per-host rate limiting, and block detection before parsing.
type Client struct {
	http      *http.Client
	userAgent string
	limiters  map[string]*rate.Limiter
	fallback  *rate.Limiter
}

// NewClient creates a scrape client. Each external call carries the fixed
// timeout; exceeding it is a normal retryable failure, not a distinct
// cancellation path.
func NewClient(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 12 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "gde-deshevle/1.0"
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 4,
		MaxConnsPerHost:     8,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		http: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		userAgent: opts.UserAgent,
		limiters:  make(map[string]*rate.Limiter),
		fallback:  rate.NewLimiter(4, 4),
	}
}

// SetHostLimit installs a dedicated rate limiter for one upstream host.
func (c *Client) SetHostLimit(host string, limit rate.Limit, burst int) {
	c.limiters[host] = rate.NewLimiter(limit, burst)
}

func (c *Client) limiterFor(rawURL string) *rate.Limiter {
	u, err := url.Parse(rawURL)
	if err != nil {
		return c.fallback
	}
	if lim, ok := c.limiters[u.Host]; ok {
		return lim
	}
	return c.fallback
}

func (c *Client) do(ctx context.Context, req *http.Request) ([]byte, *http.Response, error) {
	if err := c.limiterFor(req.URL.String()).Wait(ctx); err != nil {
		return nil, nil, eris.Wrap(err, "scrape: rate limiter wait")
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept-Language", "ru-RU,ru;q=0.9")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "scrape: %s %s", req.Method, req.URL)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp, eris.Wrapf(err, "scrape: read body from %s", req.URL)
	}

	if blocked, kind := DetectBlock(resp, body); blocked {
		return nil, resp, eris.Wrapf(ErrBlocked, "scrape: %s page from %s", kind, req.URL.Host)
	}

	return body, resp, nil
}

// GetJSON fetches a URL and decodes the JSON response into out. Block pages
// and HTML-where-JSON-expected payloads surface as ErrBlocked.
func (c *Client) GetJSON(ctx context.Context, rawURL string, headers map[string]string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return eris.Wrap(err, "scrape: create request")
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.decodeJSON(ctx, req, out)
}

// PostJSON sends a JSON body and decodes the JSON response into out.
func (c *Client) PostJSON(ctx context.Context, rawURL string, payload any, headers map[string]string, out any) error {
	buf, err := json.Marshal(payload)
	if err != nil {
		return eris.Wrap(err, "scrape: marshal payload")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(buf))
	if err != nil {
		return eris.Wrap(err, "scrape: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.decodeJSON(ctx, req, out)
}

func (c *Client) decodeJSON(ctx context.Context, req *http.Request, out any) error {
	body, resp, err := c.do(ctx, req)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("scrape: http %d from %s", resp.StatusCode, req.URL)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(err, resp.StatusCode)
		}
		return err
	}

	if LooksLikeHTML(body) {
		return eris.Wrapf(ErrBlocked, "scrape: html payload where json expected from %s", req.URL.Host)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrapf(err, "scrape: decode json from %s", req.URL)
	}
	return nil
}

// GetHTML fetches a URL and returns the raw HTML body for goquery parsing.
func (c *Client) GetHTML(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "scrape: create request")
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	body, resp, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("scrape: http %d from %s", resp.StatusCode, req.URL)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}
	return body, nil
}
