// Package fetcher retrieves page HTML, either over plain HTTP or
// through a headless browser.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// Result is the outcome of fetching one page. Error carries the
// human-readable failure reason when Success is false.
type Result struct {
	URL        string
	Success    bool
	HTML       []byte
	StatusCode int
	Error      string
	FetchedAt  time.Time
}

// Fetcher retrieves the rendered HTML of a page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) *Result
	Close()
}

const maxBodySize = 10 * 1024 * 1024 // 10MB

// HTTPFetcher fetches pages with a plain HTTP client (no JavaScript
// execution).
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	transport *http.Transport
}

// NewHTTP creates an HTTP fetcher.
func NewHTTP(userAgent string, timeout time.Duration) *HTTPFetcher {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	return &HTTPFetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		userAgent: userAgent,
		transport: transport,
	}
}

// Fetch retrieves the page at url. A failed fetch never returns an
// error value: failures are reported in the Result so a batch can
// continue past them.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) *Result {
	result := &Result{URL: url, FetchedAt: time.Now()}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		result.Error = fmt.Sprintf("invalid URL: %v", err)
		return result
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		result.Error = categorizeError(err)
		return result
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode
	if resp.StatusCode >= 400 {
		result.Error = fmt.Sprintf("HTTP %d", resp.StatusCode)
		return result
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		result.Error = fmt.Sprintf("failed to read body: %v", err)
		return result
	}

	result.HTML = body
	result.Success = true
	return result
}

// Close releases idle connections.
func (f *HTTPFetcher) Close() {
	f.transport.CloseIdleConnections()
}

// categorizeError turns network errors into readable failure reasons.
func categorizeError(err error) string {
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return fmt.Sprintf("timeout: %v", err)
	}
	if _, ok := err.(*net.DNSError); ok {
		return fmt.Sprintf("DNS error: %v", err)
	}
	if strings.Contains(err.Error(), "tls:") || strings.Contains(err.Error(), "certificate") {
		return fmt.Sprintf("TLS error: %v", err)
	}
	return err.Error()
}
