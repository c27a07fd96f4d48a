package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/star/eclipse/internal/api"
	"github.com/star/eclipse/internal/auth"
	"github.com/star/eclipse/internal/catalog"
	"github.com/star/eclipse/internal/config"
	"github.com/star/eclipse/internal/pathcache"
	"github.com/star/eclipse/internal/stream"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	addr := os.Getenv("ECLIPSE_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	authCfg, err := loadAuthConfig(logger)
	if err != nil {
		logger.Error("invalid auth configuration", "error", err)
		os.Exit(1)
	}

	engineCfg, err := config.Load(os.Getenv("ECLIPSE_ENGINE_CONFIG"))
	if err != nil {
		logger.Error("invalid engine configuration", "error", err)
		os.Exit(1)
	}

	catalogCfg := loadCatalogConfig(logger)
	store := catalog.NewStore()
	loadInitialCatalog(logger, catalogCfg, store)

	paths := pathcache.New(loadCacheConfig(logger), engineCfg, store, logger)
	streamHandler := stream.NewHandler(paths, store, loadStreamConfig(logger), logger)

	srv := api.NewServer(addr, logger, authCfg, api.Deps{
		Store:   store,
		Paths:   paths,
		Stream:  streamHandler,
		Catalog: catalogCfg,
	})

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go paths.Start(ctx)

	go func() {
		logger.Info("starting server", "addr", addr, "auth_enabled", authCfg.Enabled, "catalog_fetch_enabled", catalogCfg.EnableFetch)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}
	paths.Close()

	logger.Info("server stopped")
}

// loadInitialCatalog installs the newest cached catalog, falling back to
// the embedded one.
func loadInitialCatalog(logger *slog.Logger, cfg api.CatalogConfig, store *catalog.Store) {
	if cfg.CacheDir != "" {
		ds, err := catalog.LoadCached(catalog.NewCache(cfg.CacheDir, cfg.MaxFiles, logger), store)
		if err == nil {
			logger.Info("loaded catalog from cache", "eclipses", len(ds.Eclipses), "cached_at", ds.FetchedAt.Format(time.RFC3339))
			return
		}
		logger.Info("no usable catalog cache, using builtin catalog", "error", err)
	}

	ds, err := catalog.Builtin(logger)
	if err != nil {
		logger.Error("builtin catalog is invalid", "error", err)
		os.Exit(1)
	}
	catalog.Install(store, ds)
}

func loadAuthConfig(logger *slog.Logger) (auth.Config, error) {
	cfg := auth.Config{}

	enabledStr := os.Getenv("ECLIPSE_AUTH_ENABLED")
	if enabledStr != "" {
		enabled, err := strconv.ParseBool(enabledStr)
		if err != nil {
			return cfg, errors.New("ECLIPSE_AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.Enabled = enabled
	}

	if cfg.Enabled {
		cfg.Token = os.Getenv("ECLIPSE_AUTH_TOKEN")
		if cfg.Token == "" {
			return cfg, errors.New("ECLIPSE_AUTH_TOKEN is required when auth is enabled")
		}
		logger.Info("auth enabled")
	}

	return cfg, nil
}

// positiveInt reads a positive integer variable, warning and returning def
// when it is malformed.
func positiveInt(logger *slog.Logger, name string, def int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		logger.Warn("invalid "+name+" value, using default", "value", v, "default", def)
		return def
	}
	return n
}

func boolEnv(logger *slog.Logger, name string, def bool) bool {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logger.Warn("invalid "+name+" value, using default", "value", v, "default", def)
		return def
	}
	return b
}

func loadCatalogConfig(logger *slog.Logger) api.CatalogConfig {
	cfg := api.CatalogConfig{
		EnableFetch: boolEnv(logger, "ECLIPSE_CATALOG_FETCH_ENABLED", false),
		SourceURL:   os.Getenv("ECLIPSE_CATALOG_SOURCE_URL"),
		CacheDir:    "/tmp/eclipse/catalog",
		MaxFiles:    positiveInt(logger, "ECLIPSE_CATALOG_MAX_FILES", 5),
	}
	if v := os.Getenv("ECLIPSE_CATALOG_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}
	if cfg.EnableFetch && cfg.SourceURL == "" {
		logger.Warn("catalog fetch enabled without ECLIPSE_CATALOG_SOURCE_URL, fetch will be refused")
	}

	logger.Info("catalog config",
		"fetch_enabled", cfg.EnableFetch,
		"source_url", cfg.SourceURL,
		"cache_dir", cfg.CacheDir,
		"max_files", cfg.MaxFiles,
	)
	return cfg
}

func loadCacheConfig(logger *slog.Logger) pathcache.Config {
	cfg := pathcache.Config{
		Warmup:       boolEnv(logger, "ECLIPSE_CACHE_WARMUP", true),
		PollInterval: time.Duration(positiveInt(logger, "ECLIPSE_CACHE_POLL_INTERVAL", 30)) * time.Second,
	}

	logger.Info("path cache config",
		"warmup", cfg.Warmup,
		"poll_interval_seconds", cfg.PollInterval.Seconds(),
	)
	return cfg
}

func loadStreamConfig(logger *slog.Logger) stream.Config {
	cfg := stream.Config{
		MaxConcurrentPerIP: positiveInt(logger, "ECLIPSE_STREAM_MAX_CONCURRENT", 10),
		KeepaliveInterval:  time.Duration(positiveInt(logger, "ECLIPSE_STREAM_KEEPALIVE_INTERVAL", 30)) * time.Second,
		TrustProxy:         boolEnv(logger, "ECLIPSE_STREAM_TRUST_PROXY", false),
	}

	logger.Info("stream config",
		"max_concurrent_per_ip", cfg.MaxConcurrentPerIP,
		"keepalive_interval_seconds", cfg.KeepaliveInterval.Seconds(),
		"trust_proxy", cfg.TrustProxy,
	)
	return cfg
}
