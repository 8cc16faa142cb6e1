// Package urlutil cleans and deduplicates page URLs discovered in
// sitemaps.
package urlutil

import (
	"fmt"
	"net/url"
	"strings"
)

// Clean validates a URL taken from a sitemap entry and returns it in
// canonical form: trimmed, absolute http(s), lowercased scheme and
// host, fragment dropped. The path and query are left untouched so the
// cleaned URL still addresses exactly what the sitemap listed.
func Clean(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("URL has no host")
	}

	// A page URL always has at least the root path.
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String(), nil
}

// CleanAll cleans every URL in urls, dropping invalid entries and
// duplicates while preserving first-seen order. It returns the kept
// URLs and the raw entries that were dropped.
func CleanAll(urls []string) (kept []string, dropped []string) {
	seen := make(map[string]bool, len(urls))
	for _, raw := range urls {
		cleaned, err := Clean(raw)
		if err != nil || seen[cleaned] {
			if err != nil {
				dropped = append(dropped, raw)
			}
			continue
		}
		seen[cleaned] = true
		kept = append(kept, cleaned)
	}
	return kept, dropped
}

// SameHost reports whether two URLs address the same host.
func SameHost(url1, url2 string) bool {
	u1, err1 := url.Parse(url1)
	u2, err2 := url.Parse(url2)
	if err1 != nil || err2 != nil {
		return false
	}
	return strings.EqualFold(u1.Host, u2.Host)
}
