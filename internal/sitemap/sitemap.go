// Package sitemap resolves sitemap.xml and sitemap-index documents
// into a flat URL list.
package sitemap

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/keithven/seo-checker/internal/urlutil"
)

// XMLSitemap represents a parsed sitemap.xml urlset.
type XMLSitemap struct {
	XMLName xml.Name     `xml:"urlset"`
	URLs    []SitemapURL `xml:"url"`
}

// XMLSitemapIndex represents a parsed sitemap index.
type XMLSitemapIndex struct {
	XMLName  xml.Name       `xml:"sitemapindex"`
	Sitemaps []SitemapEntry `xml:"sitemap"`
}

// SitemapURL is a URL entry in a sitemap.
type SitemapURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod"`
	ChangeFreq string `xml:"changefreq"`
	Priority   string `xml:"priority"`
}

// SitemapEntry is a child sitemap reference in a sitemap index.
type SitemapEntry struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod"`
}

// maxIndexDepth caps sitemap-index nesting to keep a cyclic index from
// recursing forever.
const maxIndexDepth = 5

// Resolver fetches and recursively expands sitemaps.
type Resolver struct {
	client    *http.Client
	userAgent string
	log       *zap.Logger
}

// NewResolver creates a sitemap resolver.
func NewResolver(userAgent string, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{
		client:    &http.Client{Timeout: 30 * time.Second},
		userAgent: userAgent,
		log:       log,
	}
}

// AllURLs expands the sitemap at sitemapURL (following nested indexes
// depth-first) into cleaned, deduplicated page URLs in document order.
// Malformed XML is fatal for the whole resolution: no partial list is
// returned.
func (r *Resolver) AllURLs(ctx context.Context, sitemapURL string) ([]string, error) {
	seen := make(map[string]bool)
	urls, err := r.expand(ctx, sitemapURL, 0, seen)
	if err != nil {
		return nil, err
	}

	kept, dropped := urlutil.CleanAll(urls)
	for _, raw := range dropped {
		r.log.Warn("dropping unusable sitemap entry",
			zap.String("sitemap", sitemapURL),
			zap.String("entry", raw))
	}

	r.log.Info("sitemap resolved",
		zap.String("sitemap", sitemapURL),
		zap.Int("urls", len(kept)))
	return kept, nil
}

func (r *Resolver) expand(ctx context.Context, sitemapURL string, depth int, seen map[string]bool) ([]string, error) {
	if depth > maxIndexDepth {
		return nil, fmt.Errorf("sitemap index nesting exceeds %d levels", maxIndexDepth)
	}
	if seen[sitemapURL] {
		return nil, nil
	}
	seen[sitemapURL] = true

	content, err := r.fetch(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}

	contentStr := string(content)

	if strings.Contains(contentStr, "<sitemapindex") {
		var index XMLSitemapIndex
		if err := xml.Unmarshal(content, &index); err != nil {
			return nil, fmt.Errorf("failed to parse sitemap index %s: %w", sitemapURL, err)
		}

		var urls []string
		for _, entry := range index.Sitemaps {
			child, err := r.expand(ctx, strings.TrimSpace(entry.Loc), depth+1, seen)
			if err != nil {
				return nil, err
			}
			urls = append(urls, child...)
		}
		return urls, nil
	}

	if strings.Contains(contentStr, "<urlset") {
		var sm XMLSitemap
		if err := xml.Unmarshal(content, &sm); err != nil {
			return nil, fmt.Errorf("failed to parse sitemap %s: %w", sitemapURL, err)
		}

		urls := make([]string, 0, len(sm.URLs))
		for _, u := range sm.URLs {
			loc := strings.TrimSpace(u.Loc)
			if loc != "" {
				urls = append(urls, loc)
			}
		}
		return urls, nil
	}

	return nil, fmt.Errorf("unknown sitemap format at %s", sitemapURL)
}

func (r *Resolver) fetch(ctx context.Context, sitemapURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sitemapURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Accept", "application/xml,text/xml;q=0.9,*/*;q=0.8")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sitemap %s: %w", sitemapURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("sitemap %s returned HTTP %d", sitemapURL, resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
