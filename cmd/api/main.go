package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"genboard/internal/analytics"
	"genboard/internal/generation"
	"genboard/internal/http/handlers"
	"genboard/internal/http/httpapi"
	"genboard/internal/infra"
	"genboard/internal/infra/geoip"
	"genboard/internal/providers/dashscope"
	"genboard/internal/providers/genai"
	"genboard/internal/registry"
	"genboard/internal/storage"
)

const migrationsDir = "db/migrations"

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	if err := infra.RunMigrations(cfg.DatabaseURL, migrationsDir); err != nil {
		logger.Fatal().Err(err).Msg("api: migrations failed")
	}

	ctx := context.Background()
	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: db connection failed")
	}
	defer pool.Close()
	runner := infra.NewSQLRunner(pool, logger)

	var cache infra.Cache
	if cfg.RedisURL != "" {
		redisCache, err := infra.NewRedisCache(cfg.RedisURL)
		if err != nil {
			logger.Warn().Err(err).Msg("api: redis unavailable, rate limiting disabled")
		} else {
			defer redisCache.Close()
			cache = redisCache
		}
	}

	geo, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("api: geoip database unavailable")
	}

	store, err := storage.NewArtifactStore(absStoragePath(cfg.StoragePath))
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to configure storage")
	}

	reg := buildRegistry(cfg, logger)

	app := &handlers.App{
		SQL:        runner,
		Logger:     logger,
		Config:     cfg,
		Registry:   reg,
		Service:    generation.NewService(runner, runner, logger),
		Recorder:   generation.NewRecorder(runner, logger),
		Reaper:     generation.NewReaper(runner, logger, cfg.ReaperMinAge, cfg.HeartbeatStaleAfter),
		Spend:      analytics.NewSpendAggregator(runner, reg),
		Engagement: analytics.NewEngagementAggregator(runner, reg, cfg.AnalyticsMinCohort),
		Store:      store,
		Geo:        geo,
	}

	server := infra.NewHTTPServer(cfg, httpapi.NewRouter(app, cache))

	go func() {
		logger.Info().Str("addr", server.Addr()).Msg("api: listening")
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

func absStoragePath(p string) string {
	if p == "" {
		p = "./storage"
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

func buildRegistry(cfg *infra.Config, logger infra.Logger) *registry.Registry {
	httpClient := &http.Client{Timeout: 60 * time.Second}

	googleClient, err := genai.NewClient(genai.Options{
		APIKey:     cfg.GeminiAPIKey,
		BaseURL:    cfg.GeminiBaseURL,
		HTTPClient: httpClient,
		Logger:     &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to configure google client")
	}
	dashscopeClient, err := dashscope.NewClient(dashscope.Options{
		APIKey:     cfg.DashScopeAPIKey,
		BaseURL:    cfg.DashScopeBaseURL,
		HTTPClient: httpClient,
		Logger:     &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to configure dashscope client")
	}
	return registry.BuiltinCatalog(googleClient, dashscopeClient)
}
