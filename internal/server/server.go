// Package server exposes the dashboard HTTP API.
package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/keithven/seo-checker/internal/scan"
	"github.com/keithven/seo-checker/internal/store"
	"github.com/keithven/seo-checker/internal/suggest"
)

// Server wires the API handlers to the scan runner and stores.
type Server struct {
	runner    *scan.Runner
	results   *store.Results
	reviews   *store.Reviews
	ledger    *store.Ledger
	suggester *suggest.Client
	log       *zap.Logger
}

// New creates the API server.
func New(runner *scan.Runner, kv store.KV, suggester *suggest.Client, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		runner:    runner,
		results:   store.NewResults(kv),
		reviews:   store.NewReviews(kv),
		ledger:    store.NewLedger(kv),
		suggester: suggester,
		log:       log,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()

	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		AllowMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	router.Use(s.requestLogger())
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.POST("/scan", s.startScan)
	api.GET("/scan/status", s.scanStatus)
	api.GET("/results", s.getResults)
	api.GET("/changes", s.getChanges)
	api.PUT("/review", s.putReview)
	api.POST("/suggest", s.postSuggest)
	api.GET("/export", s.export)

	return router
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.log.Info("HTTP request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status_code", c.Writer.Status()),
			zap.String("client_ip", c.ClientIP()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}
