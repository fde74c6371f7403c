package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/user/product-crawler/internal/api"
	"github.com/user/product-crawler/internal/config"
	"github.com/user/product-crawler/internal/crawler"
	"github.com/user/product-crawler/internal/discovery"
	"github.com/user/product-crawler/internal/frontier"
	"github.com/user/product-crawler/internal/monitoring"
	"github.com/user/product-crawler/internal/product"
	"github.com/user/product-crawler/internal/proxy"
	"github.com/user/product-crawler/internal/rules"
	"github.com/user/product-crawler/internal/sink"
	"github.com/user/product-crawler/internal/storage"
)

const visitedTTL = 24 * time.Hour

func newLogger(level, format string) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	}
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	zcfg.Level = lvl
	return zcfg.Build()
}

// run wires one crawl together and blocks until it stops. The output file
// is closed on every path once it has been opened.
func run(ctx context.Context, cfg *config.Config) (err error) {
	logger, err := newLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	logger = logger.With(zap.String("run_id", runID), zap.String("crawl_name", cfg.CrawlName))

	ruleSet, err := rules.Load(cfg.RulesFile)
	if err != nil {
		return err
	}
	builder, err := product.NewBuilder(ruleSet.Product)
	if err != nil {
		return err
	}
	disc, err := discovery.New(cfg.LinkRules(ruleSet), discovery.Options{
		AllowedDomains: cfg.AllowedDomains,
		MaxDepth:       cfg.MaxDepth,
	})
	if err != nil {
		return err
	}
	pm, err := proxy.NewManager(cfg.Proxies, cfg.UserAgents)
	if err != nil {
		return err
	}

	fcfg := crawler.DefaultFetcherConfig()
	fcfg.Timeout = cfg.FetchTimeout
	fcfg.Retries = cfg.FetchRetries
	fcfg.RateLimit = cfg.RateLimit
	fetcher := crawler.NewHTTPFetcher(fcfg, pm, logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := monitoring.NewMetrics(reg)

	checks := map[string]api.Pinger{}
	var visited frontier.VisitedSet = frontier.NewMemory()
	if cfg.RedisAddr != "" {
		rs := storage.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, runID, visitedTTL)
		defer rs.Close()
		if err := rs.Ping(ctx); err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		visited = rs
		checks["redis"] = rs
	}

	var opts []crawler.Option
	if cfg.PostgresURL != "" {
		ps, err := storage.NewPostgresStore(ctx, cfg.PostgresURL, cfg.CrawlName, runID)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer ps.Close()
		opts = append(opts, crawler.WithMirror(ps))
		checks["postgres"] = ps
	}

	out := sink.New(sink.Options{
		Dir:                 cfg.OutputDir,
		CrawlName:           cfg.CrawlName,
		LegacyTrailingComma: cfg.LegacyTrailingComma,
	}, logger)
	if err := out.Open(); err != nil {
		return err
	}
	defer func() { err = errors.Join(err, out.Close()) }()

	startedAt := time.Now().UTC()
	if cfg.MetricsAddr != "" {
		status := func() api.Status {
			return api.Status{
				RunID:      runID,
				CrawlName:  cfg.CrawlName,
				Mode:       string(cfg.Mode),
				Output:     out.Path(),
				StartedAt:  startedAt,
				Written:    out.Written(),
				Duplicates: out.Duplicates(),
			}
		}
		srv := api.NewServer(cfg.MetricsAddr, reg, metrics, status, checks, logger)
		if err := srv.Start(); err != nil {
			return fmt.Errorf("start status server: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("status server shutdown", zap.Error(err))
			}
		}()
	}

	c := crawler.NewCrawler(crawler.Config{
		Concurrency: cfg.Concurrency,
		MaxPages:    cfg.MaxPages,
		Timeout:     cfg.Timeout,
	}, fetcher, disc, builder, out, visited, metrics, logger, opts...)

	logger.Info("crawl started",
		zap.String("mode", string(cfg.Mode)),
		zap.String("output", out.Path()),
		zap.Int("concurrency", cfg.Concurrency),
	)
	stats, err := c.Run(ctx, cfg.Seeds())
	logger.Info("crawl finished",
		zap.String("reason", stats.Reason),
		zap.Int("dispatched", stats.Dispatched),
		zap.Int("fetched", stats.Fetched),
		zap.Int("failed", stats.Failed),
		zap.Int("product_pages", stats.ProductPages),
		zap.Int("written", stats.Written),
		zap.Int("duplicates", stats.Duplicates),
		zap.Int("missing_titles", stats.MissingTitles),
		zap.Duration("duration", stats.Duration),
	)
	return err
}
