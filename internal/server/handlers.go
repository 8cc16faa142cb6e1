package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/keithven/seo-checker/internal/reconcile"
	"github.com/keithven/seo-checker/internal/report"
	"github.com/keithven/seo-checker/internal/scan"
	"github.com/keithven/seo-checker/internal/seo"
	"github.com/keithven/seo-checker/internal/suggest"
	"github.com/keithven/seo-checker/internal/tree"
)

type scanRequest struct {
	SitemapURL string   `json:"sitemapUrl" binding:"required,url"`
	Mode       string   `json:"mode"`
	URLs       []string `json:"urls"`
}

// startScan launches a scan in the background and returns immediately.
func (s *Server) startScan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mode := seo.ScanMode(req.Mode)
	switch mode {
	case "", seo.ScanFull, seo.ScanIncremental, seo.ScanSelective:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be full, incremental or selective"})
		return
	}
	if mode == seo.ScanSelective && len(req.URLs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "selective scan requires urls"})
		return
	}

	// The scan outlives this request; the request context would cancel
	// it the moment the 202 goes out.
	err := s.runner.Start(context.Background(), scan.Request{
		SitemapURL: req.SitemapURL,
		Mode:       mode,
		URLs:       req.URLs,
	})
	if errors.Is(err, scan.ErrScanInProgress) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status":     "started",
		"sitemapUrl": req.SitemapURL,
		"mode":       string(mode),
	})
}

// scanStatus reports current progress plus the last scan's error, if
// any.
func (s *Server) scanStatus(c *gin.Context) {
	progress := s.runner.Status()
	resp := gin.H{
		"active":   s.runner.Active(),
		"progress": progress,
	}
	if _, err := s.runner.Last(); err != nil {
		resp["lastError"] = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

// getResults returns the stored results for a sitemap, annotated with
// reviews, plus summary and tree rollups.
func (s *Server) getResults(c *gin.Context) {
	sitemapURL := c.Query("sitemapUrl")
	if sitemapURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sitemapUrl query parameter is required"})
		return
	}

	results, err := s.results.Load(sitemapURL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	reviews, err := s.reviews.Load()
	if err != nil {
		s.log.Warn("failed to load reviews", zap.Error(err))
		reviews = map[string]seo.ReviewRecord{}
	}
	reconcile.Annotate(results, reviews)

	c.JSON(http.StatusOK, gin.H{
		"results": results,
		"summary": seo.Summarize(results),
		"tree":    tree.Build(results, s.log),
	})
}

// getChanges returns the change ledger for a sitemap.
func (s *Server) getChanges(c *gin.Context) {
	sitemapURL := c.Query("sitemapUrl")
	if sitemapURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sitemapUrl query parameter is required"})
		return
	}

	events, err := s.ledger.List(sitemapURL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// The ledger stores events in append order; present newest first.
	reversed := make([]seo.ChangeEvent, len(events))
	for i := range events {
		reversed[i] = events[len(events)-1-i]
	}
	c.JSON(http.StatusOK, gin.H{"changes": reversed, "total": len(reversed)})
}

type reviewRequest struct {
	URL      string `json:"url" binding:"required,url"`
	Status   string `json:"status"`
	Assignee string `json:"assignee"`
	Notes    string `json:"notes"`
}

// putReview upserts the review annotation for one URL.
func (s *Server) putReview(c *gin.Context) {
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status := seo.ReviewStatus(req.Status)
	switch status {
	case "", seo.ReviewNew, seo.ReviewInProgress, seo.ReviewReviewed:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be new, in_progress or reviewed"})
		return
	}

	if err := s.reviews.Set(req.URL, seo.ReviewRecord{
		Status:   status,
		Assignee: req.Assignee,
		Notes:    req.Notes,
	}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "saved", "url": req.URL})
}

type suggestRequest struct {
	SitemapURL string `json:"sitemapUrl" binding:"required,url"`
	URL        string `json:"url" binding:"required,url"`
}

// postSuggest asks the AI client for a replacement description for one
// stored page.
func (s *Server) postSuggest(c *gin.Context) {
	var req suggestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	results, err := s.results.Load(req.SitemapURL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	var page *seo.PageResult
	for i := range results {
		if results[i].URL == req.URL {
			page = &results[i]
			break
		}
	}
	if page == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no scanned result for URL"})
		return
	}

	suggestion, err := s.suggester.Suggest(c.Request.Context(), suggest.Page{
		URL:             page.URL,
		Title:           page.Title,
		MetaDescription: page.MetaDescription,
		Issues:          page.Issues,
	})
	if errors.Is(err, suggest.ErrDisabled) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, suggestion)
}

// export streams the stored results in the requested format.
func (s *Server) export(c *gin.Context) {
	sitemapURL := c.Query("sitemapUrl")
	if sitemapURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sitemapUrl query parameter is required"})
		return
	}
	format, err := report.ParseFormat(c.Query("format"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	results, err := s.results.Load(sitemapURL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	reviews, err := s.reviews.Load()
	if err == nil {
		reconcile.Annotate(results, reviews)
	}

	c.Header("Content-Type", format.ContentType())
	c.Header("Content-Disposition", `attachment; filename="`+format.Filename()+`"`)
	c.Status(http.StatusOK)
	if err := report.Write(c.Writer, format, sitemapURL, results); err != nil {
		s.log.Error("export failed", zap.Error(err))
	}
}
