package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/keithven/seo-checker/internal/config"
	"github.com/keithven/seo-checker/internal/fetcher"
	"github.com/keithven/seo-checker/internal/report"
	"github.com/keithven/seo-checker/internal/scan"
	"github.com/keithven/seo-checker/internal/seo"
	"github.com/keithven/seo-checker/internal/server"
	"github.com/keithven/seo-checker/internal/sitemap"
	"github.com/keithven/seo-checker/internal/store"
	"github.com/keithven/seo-checker/internal/suggest"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "seochecker",
	Short: "SEO Checker - sitemap-driven meta description auditing",
	Long: `SEO Checker crawls the pages of a sitemap, scores their meta
descriptions against length guidelines, tracks changes between scans
and serves a dashboard API for reviewing the findings.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp()
		if err != nil {
			return err
		}
		defer app.close()

		srv := server.New(app.runner, app.kv, app.suggester, app.log)
		httpServer := &http.Server{
			Addr:         app.cfg.Server.Addr(),
			Handler:      srv.Router(),
			ReadTimeout:  app.cfg.Server.ReadTimeout,
			WriteTimeout: app.cfg.Server.WriteTimeout,
		}

		errCh := make(chan error, 1)
		go func() {
			app.log.Info("server listening", zap.String("addr", httpServer.Addr))
			errCh <- httpServer.ListenAndServe()
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
		case sig := <-quit:
			app.log.Info("shutting down", zap.String("signal", sig.String()))
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown failed: %w", err)
			}
		}
		return nil
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan [SITEMAP_URL]",
	Short: "Scan a sitemap and print a summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, _ := cmd.Flags().GetString("mode")
		urls, _ := cmd.Flags().GetStringSlice("urls")

		switch seo.ScanMode(mode) {
		case seo.ScanFull, seo.ScanIncremental, seo.ScanSelective:
		default:
			return fmt.Errorf("invalid mode %q (want full, incremental or selective)", mode)
		}
		if seo.ScanMode(mode) == seo.ScanSelective && len(urls) == 0 {
			return fmt.Errorf("selective mode requires --urls")
		}

		app, err := buildApp()
		if err != nil {
			return err
		}
		defer app.close()

		out, err := app.runner.Run(cmd.Context(), scan.Request{
			SitemapURL: args[0],
			Mode:       seo.ScanMode(mode),
			URLs:       urls,
		})
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}

		fmt.Printf("Scanned %d pages: %d good, %d warnings, %d errors (%d%% with meta descriptions)\n",
			out.Summary.Total, out.Summary.Good, out.Summary.Warning, out.Summary.Error,
			out.Summary.PercentageWithMeta)
		for _, ev := range out.Events {
			fmt.Printf("  %-16s %s\n", ev.ChangeType, ev.URL)
		}
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export [SITEMAP_URL]",
	Short: "Export stored scan results to a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		formatFlag, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")

		format, err := report.ParseFormat(formatFlag)
		if err != nil {
			return err
		}
		if output == "" {
			output = format.Filename()
		}

		app, err := buildApp()
		if err != nil {
			return err
		}
		defer app.close()

		results, err := store.NewResults(app.kv).Load(args[0])
		if err != nil {
			return fmt.Errorf("failed to load results: %w", err)
		}
		if len(results) == 0 {
			return fmt.Errorf("no stored results for %s, run a scan first", args[0])
		}

		file, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create file: %w", err)
		}
		defer file.Close()

		if err := report.Write(file, format, args[0], results); err != nil {
			return fmt.Errorf("export failed: %w", err)
		}
		fmt.Printf("Exported %d results to %s\n", len(results), output)
		return nil
	},
}

// app bundles the long-lived components the commands share.
type app struct {
	cfg       *config.Config
	log       *zap.Logger
	kv        store.KV
	fetch     fetcher.Fetcher
	runner    *scan.Runner
	suggester *suggest.Client
}

func (a *app) close() {
	a.fetch.Close()
	a.kv.Close()
	a.log.Sync()
}

func buildApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log, err := newLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	kv, err := newStore(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	var fetch fetcher.Fetcher
	if cfg.Fetcher.EnableJavaScript {
		fetch, err = fetcher.NewChrome(cfg.Fetcher.UserAgent, cfg.Fetcher.Timeout, cfg.Fetcher.ChromiumPath)
		if err != nil {
			kv.Close()
			return nil, fmt.Errorf("failed to start browser: %w", err)
		}
	} else {
		fetch = fetcher.NewHTTP(cfg.Fetcher.UserAgent, cfg.Fetcher.Timeout)
	}

	resolver := sitemap.NewResolver(cfg.Fetcher.UserAgent, log)
	runner := scan.NewRunner(scan.Config{
		ChunkSize:  cfg.Scan.ChunkSize,
		FetchDelay: cfg.Scan.FetchDelay,
		ChunkPause: cfg.Scan.ChunkPause,
		MaxPages:   cfg.Scan.MaxPages,
	}, resolver, fetch, kv, log)

	return &app{
		cfg:       cfg,
		log:       log,
		kv:        kv,
		fetch:     fetch,
		runner:    runner,
		suggester: suggest.New(cfg.AI, log),
	}, nil
}

func newStore(cfg config.StorageConfig) (store.KV, error) {
	switch cfg.Type {
	case "sqlite":
		path := cfg.Path
		if filepath.Ext(path) == "" {
			path = filepath.Join(path, "seochecker.db")
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
		return store.NewSQLiteStore(path)
	default:
		return store.NewFileStore(cfg.Path)
	}
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if strings.EqualFold(cfg.Format, "console") {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path")

	scanCmd.Flags().String("mode", "full", "Scan mode (full, incremental, selective)")
	scanCmd.Flags().StringSlice("urls", nil, "URLs for a selective scan")

	exportCmd.Flags().String("format", "json", "Export format (csv, xlsx, json)")
	exportCmd.Flags().String("output", "", "Output file path")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(exportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
