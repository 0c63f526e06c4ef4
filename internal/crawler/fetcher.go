package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/nao1215/ferrumweb/internal/config"
)

// Page is a fetched document.
type Page struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
}

// OK reports whether the response status is 2xx.
func (p *Page) OK() bool {
	return p.StatusCode >= 200 && p.StatusCode < 300
}

// HTTPFetcher fetches pages with a GET request.
type HTTPFetcher struct {
	client      *http.Client
	userAgent   string
	maxBodySize int64

	// sites holds per-host cookies and headers; nil means none.
	sites *config.File
}

// FetcherOption configures an HTTPFetcher.
type FetcherOption func(*HTTPFetcher)

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) FetcherOption {
	return func(f *HTTPFetcher) {
		f.userAgent = ua
	}
}

// WithMaxBodySize limits how many bytes of a response body are read.
// Longer bodies are truncated, not rejected.
func WithMaxBodySize(size int64) FetcherOption {
	return func(f *HTTPFetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// WithSiteConfigs applies per-host cookies, headers and User-Agent overrides.
func WithSiteConfigs(sites *config.File) FetcherOption {
	return func(f *HTTPFetcher) {
		f.sites = sites
	}
}

// NewHTTPFetcher creates a fetcher using client, which carries the timeout,
// redirect policy and proxy settings. A nil client uses http.DefaultClient.
func NewHTTPFetcher(client *http.Client, opts ...FetcherOption) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}

	f := &HTTPFetcher{
		client:      client,
		userAgent:   config.DefaultUserAgent,
		maxBodySize: config.DefaultMaxBodySize,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Fetch issues a GET request for rawURL. Network failures are returned as
// *TransportError. Any HTTP status, including 4xx and 5xx, is returned in
// the Page; deciding what counts as success is up to the caller.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &TransportError{URL: rawURL, Err: err}
	}

	f.setHeaders(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &TransportError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return nil, &TransportError{URL: rawURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read body: %w", err)}
	}

	return &Page{
		URL:         rawURL,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// setHeaders adds the default headers and the settings configured for the
// request host. Site headers are applied last and win.
func (f *HTTPFetcher) setHeaders(req *http.Request) {
	var site config.SiteConfig
	if f.sites != nil {
		site = f.sites.GetSiteConfig(req.URL.Hostname())
	}

	userAgent := f.userAgent
	if site.UserAgent != "" {
		userAgent = site.UserAgent
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	if site.Cookie != "" {
		req.Header.Set("Cookie", site.Cookie)
	}
	for key, value := range site.Headers {
		req.Header.Set(key, value)
	}
}
