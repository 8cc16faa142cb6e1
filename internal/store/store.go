// Package store provides key-value persistence for scan results,
// reviews and the change ledger.
package store

import (
	"crypto/md5"
	"fmt"
)

// KV is the persistence contract: whole-value load/save by opaque key.
// Load decodes the stored value into v and reports whether the key
// existed; a missing key is not an error. Save replaces the whole value
// (last write wins, no transactions).
type KV interface {
	Load(key string, v any) (bool, error)
	Save(key string, v any) error
	Close() error
}

// SitemapKey derives the deterministic storage key suffix for a sitemap
// URL.
func SitemapKey(sitemapURL string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(sitemapURL)))
}

func resultsKey(sitemapURL string) string { return "results_" + SitemapKey(sitemapURL) }
func changesKey(sitemapURL string) string { return "changes_" + SitemapKey(sitemapURL) }

// reviewsKey is global: review state follows the page URL, not the
// sitemap it was discovered through.
const reviewsKey = "reviews"
