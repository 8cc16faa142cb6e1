package fetcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// ChromeFetcher renders pages in headless Chromium before extracting
// the HTML, so JavaScript-injected meta tags are visible.
type ChromeFetcher struct {
	mu sync.Mutex

	allocator context.Context
	cancel    context.CancelFunc
	browser   context.Context

	timeout time.Duration
}

// NewChrome starts a headless browser. chromiumPath may be empty to
// use the system binary.
func NewChrome(userAgent string, timeout time.Duration, chromiumPath string) (*ChromeFetcher, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("window-size", "1920,1080"),
		chromedp.UserAgent(userAgent),
	)
	if chromiumPath != "" {
		opts = append(opts, chromedp.ExecPath(chromiumPath))
	}

	f := &ChromeFetcher{timeout: timeout}
	f.allocator, f.cancel = chromedp.NewExecAllocator(context.Background(), opts...)
	f.browser, _ = chromedp.NewContext(f.allocator)

	return f, nil
}

// Fetch navigates to url and returns the rendered document. One page
// is rendered at a time; scans are sequential by design, so the mutex
// never contends in practice.
func (f *ChromeFetcher) Fetch(ctx context.Context, url string) *Result {
	f.mu.Lock()
	defer f.mu.Unlock()

	result := &Result{URL: url, FetchedAt: time.Now()}

	timeoutCtx, cancel := context.WithTimeout(f.browser, f.timeout)
	defer cancel()

	// Capture the main document's status code from the network events.
	chromedp.ListenTarget(timeoutCtx, func(ev interface{}) {
		if e, ok := ev.(*network.EventResponseReceived); ok {
			if e.Type == network.ResourceTypeDocument && result.StatusCode == 0 {
				result.StatusCode = int(e.Response.Status)
			}
		}
	})

	var rendered string
	err := chromedp.Run(timeoutCtx,
		network.Enable(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &rendered, chromedp.ByQuery),
	)
	if err != nil {
		result.Error = fmt.Sprintf("render failed: %v", err)
		return result
	}

	if result.StatusCode >= 400 {
		result.Error = fmt.Sprintf("HTTP %d", result.StatusCode)
		return result
	}

	result.HTML = []byte(rendered)
	result.Success = true
	return result
}

// Close shuts the browser down.
func (f *ChromeFetcher) Close() {
	if f.cancel != nil {
		f.cancel()
	}
}
