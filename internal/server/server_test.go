package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keithven/seo-checker/internal/config"
	"github.com/keithven/seo-checker/internal/fetcher"
	"github.com/keithven/seo-checker/internal/scan"
	"github.com/keithven/seo-checker/internal/seo"
	"github.com/keithven/seo-checker/internal/store"
	"github.com/keithven/seo-checker/internal/suggest"
)

const sitemapURL = "https://example.com/sitemap.xml"

func init() { gin.SetMode(gin.TestMode) }

type stubResolver struct {
	urls []string
	err  error
}

func (s *stubResolver) AllURLs(ctx context.Context, sitemapURL string) ([]string, error) {
	return s.urls, s.err
}

type stubFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	block chan struct{}
}

func (s *stubFetcher) Fetch(ctx context.Context, url string) *fetcher.Result {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	html, ok := s.pages[url]
	s.mu.Unlock()
	if !ok {
		return &fetcher.Result{URL: url, Error: "HTTP 404", StatusCode: 404}
	}
	return &fetcher.Result{URL: url, Success: true, HTML: []byte(html), StatusCode: 200}
}

func (s *stubFetcher) Close() {}

type fixture struct {
	server *Server
	router *gin.Engine
	runner *scan.Runner
	kv     store.KV
}

func newFixture(t *testing.T, resolver scan.Resolver, f fetcher.Fetcher, ai config.AIConfig) *fixture {
	t.Helper()
	kv, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	cfg := scan.Config{ChunkSize: 10, FetchDelay: time.Millisecond, ChunkPause: time.Millisecond, MaxPages: 100}
	runner := scan.NewRunner(cfg, resolver, f, kv, nil)
	srv := New(runner, kv, suggest.New(ai, nil), nil)
	return &fixture{server: srv, router: srv.Router(), runner: runner, kv: kv}
}

func (fx *fixture) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, req)
	return w
}

func (fx *fixture) waitIdle(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool { return !fx.runner.Active() }, 5*time.Second, 5*time.Millisecond)
}

func pageHTML(title, desc string) string {
	return fmt.Sprintf(`<html><head><title>%s</title><meta name="description" content="%s"></head></html>`, title, desc)
}

func TestHealth(t *testing.T) {
	fx := newFixture(t, &stubResolver{}, &stubFetcher{}, config.AIConfig{})
	w := fx.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestStartScanValidation(t *testing.T) {
	fx := newFixture(t, &stubResolver{}, &stubFetcher{}, config.AIConfig{})

	w := fx.do(http.MethodPost, "/api/scan", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = fx.do(http.MethodPost, "/api/scan", map[string]string{"sitemapUrl": sitemapURL, "mode": "bogus"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = fx.do(http.MethodPost, "/api/scan", map[string]any{"sitemapUrl": sitemapURL, "mode": "selective"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "selective scan requires urls")
}

func TestScanLifecycle(t *testing.T) {
	f := &stubFetcher{pages: map[string]string{
		"https://example.com/": pageHTML("Home", "Short."),
	}}
	fx := newFixture(t, &stubResolver{urls: []string{"https://example.com/"}}, f, config.AIConfig{})

	w := fx.do(http.MethodPost, "/api/scan", map[string]string{"sitemapUrl": sitemapURL})
	require.Equal(t, http.StatusAccepted, w.Code)
	fx.waitIdle(t)

	w = fx.do(http.MethodGet, "/api/scan/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status struct {
		Active    bool   `json:"active"`
		LastError string `json:"lastError"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.False(t, status.Active)
	assert.Empty(t, status.LastError)

	w = fx.do(http.MethodGet, "/api/results?sitemapUrl="+sitemapURL, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var results struct {
		Results []seo.PageResult `json:"results"`
		Summary seo.Summary      `json:"summary"`
		Tree    json.RawMessage  `json:"tree"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &results))
	require.Len(t, results.Results, 1)
	assert.Equal(t, "https://example.com/", results.Results[0].URL)
	assert.Equal(t, seo.ReviewNew, results.Results[0].ReviewStatus) // default annotation
	assert.Equal(t, 1, results.Summary.Total)
	assert.NotEmpty(t, results.Tree)

	w = fx.do(http.MethodGet, "/api/changes?sitemapUrl="+sitemapURL, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var changes struct {
		Changes []seo.ChangeEvent `json:"changes"`
		Total   int               `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &changes))
	assert.Equal(t, 1, changes.Total)
	assert.Equal(t, seo.ChangeNewURL, changes.Changes[0].ChangeType)
}

func TestChangesNewestFirst(t *testing.T) {
	f := &stubFetcher{pages: map[string]string{
		"https://example.com/": pageHTML("Home", "First."),
	}}
	fx := newFixture(t, &stubResolver{urls: []string{"https://example.com/"}}, f, config.AIConfig{})

	w := fx.do(http.MethodPost, "/api/scan", map[string]string{"sitemapUrl": sitemapURL})
	require.Equal(t, http.StatusAccepted, w.Code)
	fx.waitIdle(t)

	f.mu.Lock()
	f.pages["https://example.com/"] = pageHTML("Home", "Second.")
	f.mu.Unlock()

	w = fx.do(http.MethodPost, "/api/scan", map[string]string{"sitemapUrl": sitemapURL})
	require.Equal(t, http.StatusAccepted, w.Code)
	fx.waitIdle(t)

	w = fx.do(http.MethodGet, "/api/changes?sitemapUrl="+sitemapURL, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var changes struct {
		Changes []seo.ChangeEvent `json:"changes"`
		Total   int               `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &changes))
	require.Equal(t, 2, changes.Total)
	assert.Equal(t, seo.ChangeMetaDesc, changes.Changes[0].ChangeType)
	assert.Equal(t, seo.ChangeNewURL, changes.Changes[1].ChangeType)
}

func TestConcurrentScanConflict(t *testing.T) {
	block := make(chan struct{})
	f := &stubFetcher{
		pages: map[string]string{"https://example.com/": pageHTML("Home", "Short.")},
		block: block,
	}
	fx := newFixture(t, &stubResolver{urls: []string{"https://example.com/"}}, f, config.AIConfig{})

	w := fx.do(http.MethodPost, "/api/scan", map[string]string{"sitemapUrl": sitemapURL})
	require.Equal(t, http.StatusAccepted, w.Code)

	w = fx.do(http.MethodPost, "/api/scan", map[string]string{"sitemapUrl": sitemapURL})
	assert.Equal(t, http.StatusConflict, w.Code)

	close(block)
	fx.waitIdle(t)
}

func TestResultsRequiresSitemapParam(t *testing.T) {
	fx := newFixture(t, &stubResolver{}, &stubFetcher{}, config.AIConfig{})

	w := fx.do(http.MethodGet, "/api/results", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// An unscanned sitemap yields an empty, valid payload.
	w = fx.do(http.MethodGet, "/api/results?sitemapUrl=https://other.com/sitemap.xml", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"results"`)
}

func TestReviewRoundTrip(t *testing.T) {
	f := &stubFetcher{pages: map[string]string{
		"https://example.com/": pageHTML("Home", "Short."),
	}}
	fx := newFixture(t, &stubResolver{urls: []string{"https://example.com/"}}, f, config.AIConfig{})

	w := fx.do(http.MethodPost, "/api/scan", map[string]string{"sitemapUrl": sitemapURL})
	require.Equal(t, http.StatusAccepted, w.Code)
	fx.waitIdle(t)

	w = fx.do(http.MethodPut, "/api/review", map[string]string{
		"url":      "https://example.com/",
		"status":   "reviewed",
		"assignee": "sam",
		"notes":    "looks fine",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = fx.do(http.MethodGet, "/api/results?sitemapUrl="+sitemapURL, nil)
	var results struct {
		Results []seo.PageResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &results))
	require.Len(t, results.Results, 1)
	assert.Equal(t, seo.ReviewReviewed, results.Results[0].ReviewStatus)
	assert.Equal(t, "sam", results.Results[0].Assignee)
	assert.NotNil(t, results.Results[0].LastReviewed)
}

func TestReviewRejectsBadStatus(t *testing.T) {
	fx := newFixture(t, &stubResolver{}, &stubFetcher{}, config.AIConfig{})
	w := fx.do(http.MethodPut, "/api/review", map[string]string{
		"url":    "https://example.com/",
		"status": "done",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSuggestDisabled(t *testing.T) {
	fx := newFixture(t, &stubResolver{}, &stubFetcher{}, config.AIConfig{})
	w := fx.do(http.MethodPost, "/api/suggest", map[string]string{
		"sitemapUrl": sitemapURL,
		"url":        "https://example.com/",
	})
	// No stored result for the URL wins over the disabled client.
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSuggestFlow(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "A better description."}},
			},
		})
	}))
	defer api.Close()

	f := &stubFetcher{pages: map[string]string{
		"https://example.com/": pageHTML("Home", "Short."),
	}}
	fx := newFixture(t, &stubResolver{urls: []string{"https://example.com/"}}, f, config.AIConfig{
		APIKey: "sk-test", Model: "gpt-4o-mini", Endpoint: api.URL, MaxTokens: 300,
	})

	w := fx.do(http.MethodPost, "/api/scan", map[string]string{"sitemapUrl": sitemapURL})
	require.Equal(t, http.StatusAccepted, w.Code)
	fx.waitIdle(t)

	w = fx.do(http.MethodPost, "/api/suggest", map[string]string{
		"sitemapUrl": sitemapURL,
		"url":        "https://example.com/",
	})
	require.Equal(t, http.StatusOK, w.Code)
	var suggestion suggest.Suggestion
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &suggestion))
	assert.Equal(t, "A better description.", suggestion.Proposed)
	assert.Equal(t, "Short.", suggestion.Current)
}

func TestExportCSV(t *testing.T) {
	f := &stubFetcher{pages: map[string]string{
		"https://example.com/": pageHTML("Home", "Short."),
	}}
	fx := newFixture(t, &stubResolver{urls: []string{"https://example.com/"}}, f, config.AIConfig{})

	w := fx.do(http.MethodPost, "/api/scan", map[string]string{"sitemapUrl": sitemapURL})
	require.Equal(t, http.StatusAccepted, w.Code)
	fx.waitIdle(t)

	w = fx.do(http.MethodGet, "/api/export?sitemapUrl="+sitemapURL+"&format=csv", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	assert.True(t, strings.Contains(w.Body.String(), "https://example.com/"))

	w = fx.do(http.MethodGet, "/api/export?sitemapUrl="+sitemapURL+"&format=pdf", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
