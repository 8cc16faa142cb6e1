package store

import (
	"fmt"
	"time"

	"github.com/keithven/seo-checker/internal/seo"
)

// MaxLedgerEntries bounds the change ledger per sitemap. Oldest entries
// are evicted first when the bound is exceeded.
const MaxLedgerEntries = 1000

// Results is the per-sitemap collection of the latest known PageResult
// for every URL ever scanned.
type Results struct {
	kv KV
}

// NewResults returns a result store backed by kv.
func NewResults(kv KV) *Results { return &Results{kv: kv} }

// Load returns the stored results for a sitemap, or an empty slice when
// none have been saved yet.
func (r *Results) Load(sitemapURL string) ([]seo.PageResult, error) {
	var results []seo.PageResult
	found, err := r.kv.Load(resultsKey(sitemapURL), &results)
	if err != nil {
		return nil, err
	}
	if !found {
		return []seo.PageResult{}, nil
	}
	// Legacy result files may carry status values outside the current
	// set; normalize once at the ingestion boundary.
	for i := range results {
		results[i].Status = seo.NormalizeStatus(string(results[i].Status))
	}
	return results, nil
}

// Save replaces the stored results for a sitemap.
func (r *Results) Save(sitemapURL string, results []seo.PageResult) error {
	return r.kv.Save(resultsKey(sitemapURL), results)
}

// Reviews is the global URL → review state map.
type Reviews struct {
	kv KV
}

// NewReviews returns a review store backed by kv.
func NewReviews(kv KV) *Reviews { return &Reviews{kv: kv} }

// Load returns the review map, empty when nothing has been saved.
func (r *Reviews) Load() (map[string]seo.ReviewRecord, error) {
	reviews := make(map[string]seo.ReviewRecord)
	if _, err := r.kv.Load(reviewsKey, &reviews); err != nil {
		return nil, err
	}
	return reviews, nil
}

// Set updates the review record for one URL and persists the map.
func (r *Reviews) Set(url string, record seo.ReviewRecord) error {
	reviews, err := r.Load()
	if err != nil {
		return err
	}

	if record.Status == "" {
		record.Status = seo.ReviewNew
	}
	record.LastUpdated = time.Now()
	if record.Status == seo.ReviewReviewed && record.LastReviewed == nil {
		now := record.LastUpdated
		record.LastReviewed = &now
	}

	reviews[url] = record
	return r.kv.Save(reviewsKey, reviews)
}

// Ledger is the per-sitemap append-only change log.
type Ledger struct {
	kv KV
}

// NewLedger returns a change ledger backed by kv.
func NewLedger(kv KV) *Ledger { return &Ledger{kv: kv} }

// List returns the stored change events for a sitemap, oldest first.
func (l *Ledger) List(sitemapURL string) ([]seo.ChangeEvent, error) {
	var events []seo.ChangeEvent
	found, err := l.kv.Load(changesKey(sitemapURL), &events)
	if err != nil {
		return nil, err
	}
	if !found {
		return []seo.ChangeEvent{}, nil
	}
	return events, nil
}

// Append adds events to a sitemap's ledger in one write, truncating to
// the most recent MaxLedgerEntries (insertion order, oldest evicted
// first). Appending zero events is a no-op: the ledger file is not
// touched.
func (l *Ledger) Append(sitemapURL string, events []seo.ChangeEvent) error {
	if len(events) == 0 {
		return nil
	}

	existing, err := l.List(sitemapURL)
	if err != nil {
		return err
	}

	combined := append(existing, events...)
	if len(combined) > MaxLedgerEntries {
		combined = combined[len(combined)-MaxLedgerEntries:]
	}

	if err := l.kv.Save(changesKey(sitemapURL), combined); err != nil {
		return fmt.Errorf("failed to append change events: %w", err)
	}
	return nil
}
