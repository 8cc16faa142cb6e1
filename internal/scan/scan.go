// Package scan orchestrates crawling a sitemap's pages and reconciling
// the results against stored state.
package scan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/keithven/seo-checker/internal/analyzer"
	"github.com/keithven/seo-checker/internal/fetcher"
	"github.com/keithven/seo-checker/internal/reconcile"
	"github.com/keithven/seo-checker/internal/seo"
	"github.com/keithven/seo-checker/internal/store"
	"github.com/keithven/seo-checker/internal/tree"
)

// ErrScanInProgress is returned when a scan is requested while another
// is active. Requests are rejected, never queued.
var ErrScanInProgress = errors.New("scan already in progress")

// Config controls crawl pacing. Delays are a politeness throttle, not a
// performance knob: fetches are strictly sequential.
type Config struct {
	// ChunkSize groups URLs for progress reporting.
	ChunkSize int

	// FetchDelay is the minimum spacing between consecutive fetches.
	FetchDelay time.Duration

	// ChunkPause is the extra pause between chunks (not after the last).
	ChunkPause time.Duration

	// MaxPages truncates the URL list before crawling, applied after
	// incremental filtering.
	MaxPages int
}

// DefaultConfig returns the default pacing configuration.
func DefaultConfig() Config {
	return Config{
		ChunkSize:  10,
		FetchDelay: time.Second,
		ChunkPause: 2 * time.Second,
		MaxPages:   100,
	}
}

// Resolver expands a sitemap URL into page URLs.
type Resolver interface {
	AllURLs(ctx context.Context, sitemapURL string) ([]string, error)
}

// Request describes one scan.
type Request struct {
	SitemapURL string
	Mode       seo.ScanMode

	// URLs is the explicit subset for selective scans; ignored
	// otherwise.
	URLs []string
}

// Progress is the externally visible scan state, safe to poll while a
// scan runs.
type Progress struct {
	Active     bool   `json:"active"`
	SitemapURL string `json:"sitemapUrl,omitempty"`
	Current    int    `json:"current"`
	Total      int    `json:"total"`
	Percentage int    `json:"percentage"`
	Chunk      int    `json:"chunk"`
	ChunkCount int    `json:"chunkCount"`
}

// Outcome is the presentation-ready result of a finished scan.
type Outcome struct {
	Results []seo.PageResult  `json:"results"`
	Events  []seo.ChangeEvent `json:"changeEvents"`
	Summary seo.Summary       `json:"summary"`
	Tree    *tree.Node        `json:"tree"`
}

// ProgressFunc receives progress updates after every fetch and at
// chunk boundaries.
type ProgressFunc func(Progress)

// Runner drives scans. Exactly one scan may be active at a time.
type Runner struct {
	cfg      Config
	resolver Resolver
	fetch    fetcher.Fetcher
	results  *store.Results
	reviews  *store.Reviews
	ledger   *store.Ledger
	log      *zap.Logger

	limiter *rate.Limiter
	active  atomic.Bool

	mu          sync.RWMutex
	progress    Progress
	onProgress  ProgressFunc
	lastOutcome *Outcome
	lastErr     error
}

// NewRunner wires a scan runner.
func NewRunner(cfg Config, resolver Resolver, f fetcher.Fetcher, kv store.KV, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.ChunkSize < 1 {
		cfg.ChunkSize = 1
	}
	return &Runner{
		cfg:      cfg,
		resolver: resolver,
		fetch:    f,
		results:  store.NewResults(kv),
		reviews:  store.NewReviews(kv),
		ledger:   store.NewLedger(kv),
		log:      log,
		limiter:  rate.NewLimiter(rate.Every(cfg.FetchDelay), 1),
	}
}

// OnProgress registers a progress callback. Must be set before Run.
func (r *Runner) OnProgress(fn ProgressFunc) { r.onProgress = fn }

// Active reports whether a scan is currently running.
func (r *Runner) Active() bool { return r.active.Load() }

// Status returns the current progress snapshot.
func (r *Runner) Status() Progress {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.progress
}

// Last returns the outcome and error of the most recently finished
// scan.
func (r *Runner) Last() (*Outcome, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastOutcome, r.lastErr
}

// Run executes one scan to completion. A second concurrent call
// returns ErrScanInProgress. The active flag is released on every exit
// path, including errors.
func (r *Runner) Run(ctx context.Context, req Request) (*Outcome, error) {
	if !r.active.CompareAndSwap(false, true) {
		return nil, ErrScanInProgress
	}
	out, err := r.run(ctx, req)
	r.release(out, err)
	return out, err
}

// Start launches a scan in the background, returning immediately.
// ErrScanInProgress is reported synchronously; the eventual outcome is
// available through Last once Status reports the scan inactive.
func (r *Runner) Start(ctx context.Context, req Request) error {
	if !r.active.CompareAndSwap(false, true) {
		return ErrScanInProgress
	}
	go func() {
		out, err := r.run(ctx, req)
		if err != nil {
			r.log.Error("background scan failed", zap.Error(err))
		}
		r.release(out, err)
	}()
	return nil
}

// release records the outcome and clears the active guard. Ordering
// matters: once active flips false, Last must already be current.
func (r *Runner) release(out *Outcome, err error) {
	r.mu.Lock()
	r.lastOutcome, r.lastErr = out, err
	r.mu.Unlock()
	r.setProgress(Progress{})
	r.active.Store(false)
}

func (r *Runner) run(ctx context.Context, req Request) (*Outcome, error) {
	if req.Mode == "" {
		req.Mode = seo.ScanFull
	}

	existing, err := r.results.Load(req.SitemapURL)
	if err != nil {
		return nil, fmt.Errorf("failed to load stored results: %w", err)
	}
	reviews, err := r.reviews.Load()
	if err != nil {
		r.log.Warn("failed to load reviews, continuing without", zap.Error(err))
		reviews = map[string]seo.ReviewRecord{}
	}

	urls, err := r.urlsToCrawl(ctx, req, existing)
	if err != nil {
		return nil, err
	}

	if len(urls) == 0 {
		// Nothing to fetch (typically an incremental scan with no
		// unseen URLs): no store mutation, no analyzer calls, just the
		// existing state annotated with current reviews.
		r.log.Info("scan found nothing to crawl",
			zap.String("sitemap", req.SitemapURL),
			zap.String("mode", string(req.Mode)))
		reconcile.Annotate(existing, reviews)
		return &Outcome{
			Results: existing,
			Events:  []seo.ChangeEvent{},
			Summary: seo.Summarize(existing),
			Tree:    tree.Build(existing, r.log),
		}, nil
	}

	fresh, err := r.crawl(ctx, req.SitemapURL, urls)
	if err != nil {
		return nil, err
	}

	out := reconcile.Reconcile(reconcile.Input{
		Fresh:    fresh,
		Existing: existing,
		Reviews:  reviews,
		Mode:     req.Mode,
	})

	// Persistence failures are logged but do not discard the in-memory
	// merge: the caller still gets current state to display.
	if err := r.results.Save(req.SitemapURL, stripReviews(out.Merged)); err != nil {
		r.log.Error("failed to persist results", zap.Error(err))
	}
	if err := r.ledger.Append(req.SitemapURL, out.Events); err != nil {
		r.log.Error("failed to persist change events", zap.Error(err))
	}

	r.log.Info("scan complete",
		zap.String("sitemap", req.SitemapURL),
		zap.Int("crawled", len(fresh)),
		zap.Int("changes", len(out.Events)))

	return &Outcome{
		Results: out.Merged,
		Events:  out.Events,
		Summary: seo.Summarize(out.Merged),
		Tree:    tree.Build(out.Merged, r.log),
	}, nil
}

// urlsToCrawl resolves the sitemap and applies scan-mode filtering and
// the page cap.
func (r *Runner) urlsToCrawl(ctx context.Context, req Request, existing []seo.PageResult) ([]string, error) {
	var urls []string

	if req.Mode == seo.ScanSelective {
		urls = req.URLs
	} else {
		resolved, err := r.resolver.AllURLs(ctx, req.SitemapURL)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve sitemap: %w", err)
		}
		urls = resolved

		if req.Mode == seo.ScanIncremental {
			known := make(map[string]bool, len(existing))
			for i := range existing {
				known[existing[i].URL] = true
			}
			unseen := urls[:0]
			for _, u := range urls {
				if !known[u] {
					unseen = append(unseen, u)
				}
			}
			urls = unseen
		}
	}

	if r.cfg.MaxPages > 0 && len(urls) > r.cfg.MaxPages {
		urls = urls[:r.cfg.MaxPages]
	}
	return urls, nil
}

// crawl fetches and analyzes urls strictly sequentially, chunked for
// progress reporting.
func (r *Runner) crawl(ctx context.Context, sitemapURL string, urls []string) ([]seo.PageResult, error) {
	an := analyzer.New()
	fresh := make([]seo.PageResult, 0, len(urls))

	chunkCount := (len(urls) + r.cfg.ChunkSize - 1) / r.cfg.ChunkSize
	current := 0

	for chunk := 0; chunk < chunkCount; chunk++ {
		start := chunk * r.cfg.ChunkSize
		end := start + r.cfg.ChunkSize
		if end > len(urls) {
			end = len(urls)
		}

		for _, pageURL := range urls[start:end] {
			if err := r.limiter.Wait(ctx); err != nil {
				return nil, err
			}

			fresh = append(fresh, r.crawlOne(ctx, an, pageURL))

			current++
			r.setProgress(Progress{
				Active:     true,
				SitemapURL: sitemapURL,
				Current:    current,
				Total:      len(urls),
				Percentage: current * 100 / len(urls),
				Chunk:      chunk + 1,
				ChunkCount: chunkCount,
			})
		}

		if chunk < chunkCount-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(r.cfg.ChunkPause):
			}
		}
	}

	// Cross-page pass: flag duplicate descriptions found this batch.
	for url, issue := range an.Duplicates() {
		for i := range fresh {
			if fresh[i].URL == url {
				fresh[i].Issues = append(fresh[i].Issues, issue)
			}
		}
	}

	return fresh, nil
}

// crawlOne fetches and scores a single page. Fetch failures become an
// error-status result; they never abort the batch.
func (r *Runner) crawlOne(ctx context.Context, an *analyzer.Analyzer, pageURL string) seo.PageResult {
	now := time.Now()
	result := seo.PageResult{URL: pageURL, LastCrawled: now}

	fetched := r.fetch.Fetch(ctx, pageURL)
	if !fetched.Success {
		r.log.Warn("fetch failed",
			zap.String("url", pageURL),
			zap.String("reason", fetched.Error))
		result.Status = seo.StatusError
		result.Issues = []string{fmt.Sprintf("Failed to fetch: %s", fetched.Error)}
		return result
	}

	ex, err := an.Analyze(fetched.HTML, pageURL)
	if err != nil {
		result.Status = seo.StatusError
		result.Issues = []string{fmt.Sprintf("Failed to analyze: %v", err)}
		return result
	}

	status, issues := seo.Score(ex.MetaDescription)
	result.Title = ex.Title
	result.MetaDescription = ex.MetaDescription
	result.CharacterCount = len(ex.MetaDescription)
	result.HasMetaDescription = ex.MetaDescription != ""
	result.Status = status
	result.Issues = append(issues, ex.Issues...)
	result.LastAnalyzed = time.Now()
	return result
}

func (r *Runner) setProgress(p Progress) {
	r.mu.Lock()
	r.progress = p
	r.mu.Unlock()

	if r.onProgress != nil {
		r.onProgress(p)
	}
}

// stripReviews clears the presentation-only review fields before
// results are persisted; review state has its own lifecycle in the
// review store.
func stripReviews(results []seo.PageResult) []seo.PageResult {
	out := make([]seo.PageResult, len(results))
	copy(out, results)
	for i := range out {
		out[i].ReviewStatus = ""
		out[i].Assignee = ""
		out[i].Notes = ""
		out[i].LastReviewed = nil
	}
	return out
}
