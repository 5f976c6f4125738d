package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aistocker/quotehub/internal/cache"
	redisbackend "github.com/aistocker/quotehub/internal/cache/redis"
	sqlitebackend "github.com/aistocker/quotehub/internal/cache/sqlite"
	"github.com/aistocker/quotehub/internal/config"
	"github.com/aistocker/quotehub/internal/feed"
	"github.com/aistocker/quotehub/internal/normalizer"
	"github.com/aistocker/quotehub/internal/normalizer/akshare"
	"github.com/aistocker/quotehub/internal/normalizer/baostock"
	"github.com/aistocker/quotehub/internal/normalizer/eastmoney"
	"github.com/aistocker/quotehub/internal/normalizer/joinquant"
	"github.com/aistocker/quotehub/internal/normalizer/sina"
	"github.com/aistocker/quotehub/internal/normalizer/tencent"
	"github.com/aistocker/quotehub/internal/normalizer/tushare"
	"github.com/aistocker/quotehub/internal/quote"
	"github.com/aistocker/quotehub/internal/server"
)

// defaultEndpoints are the upstream quote APIs, one %s verb per template
// for the instrument code. Each can be overridden with
// <SOURCE>_ENDPOINT, e.g. EASTMONEY_ENDPOINT.
var defaultEndpoints = map[quote.Source]string{
	quote.SourceEastmoney: "https://push2.eastmoney.com/api/qt/stock/get?code=%s",
	quote.SourceTencent:   "https://qt.gtimg.cn/api/quote/%s",
	quote.SourceSina:      "https://hq.sinajs.cn/api/quote/%s",
	quote.SourceAkshare:   "http://localhost:8081/api/akshare/quote/%s",
	quote.SourceBaostock:  "http://localhost:8082/api/baostock/quote/%s",
	quote.SourceJoinquant: "http://localhost:8083/api/joinquant/quote/%s",
	quote.SourceTushare:   "http://localhost:8084/api/tushare/quote/%s",
}

func main() {
	cfg := config.Load()

	// Root context: cancelled on SIGINT/SIGTERM so in-flight provider
	// fetches stop promptly during graceful shutdown.
	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	backend, closeBackend, err := openBackend(cfg)
	if err != nil {
		slog.Error("failed to open cache backend", "backend", cfg.CacheBackend, "error", err)
		os.Exit(1)
	}
	defer closeBackend()

	// Normalizer registry
	registry := normalizer.NewRegistry()
	registry.Register(eastmoney.New())
	registry.Register(tencent.New())
	registry.Register(sina.New())
	registry.Register(akshare.New())
	registry.Register(baostock.New())
	registry.Register(joinquant.New())
	registry.Register(tushare.New())

	providers, err := buildProviders()
	if err != nil {
		slog.Error("failed to build provider pool", "error", err)
		os.Exit(1)
	}

	feedSvc := feed.NewService(providers, registry, backend,
		feed.WithMaxRetries(cfg.MaxRetries),
		feed.WithCooldown(cfg.Cooldown),
		feed.WithCacheTTL(cfg.CacheTTL),
		feed.WithMaxCacheStaleness(cfg.MaxStaleness),
		feed.WithWorkers(cfg.Workers),
	)

	// HTTP server; rootCtx is used as BaseContext so every request context
	// inherits from it and is cancelled on shutdown.
	srv := server.New(rootCtx, cfg.Port, feedSvc, registry)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("server started", "port", cfg.Port, "providers", len(providers))
	<-done

	rootCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	slog.Info("server stopped")
}

// buildProviders assembles the rotation pool in priority order, using the
// default trust weights.
func buildProviders() ([]feed.Provider, error) {
	weights := quote.DefaultSourceWeights()
	providers := make([]feed.Provider, 0, len(quote.Sources()))
	for _, src := range quote.Sources() {
		endpoint := os.Getenv(strings.ToUpper(string(src)) + "_ENDPOINT")
		if endpoint == "" {
			endpoint = defaultEndpoints[src]
		}
		fetcher, err := feed.NewHTTPFetcher(src, endpoint)
		if err != nil {
			return nil, err
		}
		providers = append(providers, feed.Provider{
			Source:  src,
			Weight:  weights[src],
			Fetcher: fetcher,
		})
	}
	return providers, nil
}

func openBackend(cfg config.Config) (cache.Backend, func(), error) {
	switch cfg.CacheBackend {
	case "redis":
		b, err := redisbackend.Open(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return nil, nil, err
		}
		return b, func() { _ = b.Close() }, nil
	case "sqlite":
		b, err := sqlitebackend.Open(cfg.DBPath)
		if err != nil {
			return nil, nil, err
		}
		return b, func() { _ = b.Close() }, nil
	default:
		return cache.NewMemory(), func() {}, nil
	}
}
