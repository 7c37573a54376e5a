// Package ingest talks to the SEC EDGAR APIs: issuer resolution, structured
// XBRL company facts, the submissions filing index, and raw filing markup.
// API documentation: https://www.sec.gov/developer
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultDataURL    = "https://data.sec.gov"
	defaultArchiveURL = "https://www.sec.gov/Archives/edgar/data"
	defaultFilesURL   = "https://www.sec.gov/files"

	// SEC fair-access policy allows 10 req/s; stay under it.
	defaultRequestsPerSecond = 8
	defaultTimeout           = 30 * time.Second
)

// FetchError wraps any failure to retrieve data from EDGAR. Fatal for the
// extraction: there is no in-core recovery from a missing archive.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("EDGAR returned status %d for %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("EDGAR request failed for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Options configures the EDGAR client. UserAgent is mandatory in practice:
// SEC rejects anonymous clients.
type Options struct {
	UserAgent         string
	RequestsPerSecond float64
	Timeout           time.Duration

	// Overridable in tests.
	DataURL    string
	ArchiveURL string
	FilesURL   string
}

// Client is a rate-limited SEC EDGAR API client. Safe for concurrent use.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string

	dataURL    string
	archiveURL string
	filesURL   string
}

// NewClient creates an EDGAR client honoring the SEC fair-access policy.
func NewClient(opts Options) *Client {
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = defaultRequestsPerSecond
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.DataURL == "" {
		opts.DataURL = defaultDataURL
	}
	if opts.ArchiveURL == "" {
		opts.ArchiveURL = defaultArchiveURL
	}
	if opts.FilesURL == "" {
		opts.FilesURL = defaultFilesURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), int(opts.RequestsPerSecond)),
		userAgent:  opts.UserAgent,
		dataURL:    opts.DataURL,
		archiveURL: opts.ArchiveURL,
		filesURL:   opts.FilesURL,
	}
}

// get performs one throttled request and returns the body.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json, text/html")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	return body, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	body, err := c.get(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &FetchError{URL: url, Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	return nil
}
