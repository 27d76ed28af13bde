package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"genboard/internal/generation"
	"genboard/internal/infra"
	"genboard/internal/infra/credentials"
	"genboard/internal/providers/dashscope"
	"genboard/internal/providers/genai"
	"genboard/internal/registry"
	"genboard/internal/storage"
)

// reaperLockKey serializes sweeps across worker replicas. Sweeping without
// the lock is still correct, only wasteful; each replica's conditional
// updates protect the rows.
const reaperLockKey = "genboard:reaper:sweep"

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()
	runner := infra.NewSQLRunner(pool, logger)

	var cache infra.Cache
	if cfg.RedisURL != "" {
		redisCache, err := infra.NewRedisCache(cfg.RedisURL)
		if err != nil {
			logger.Warn().Err(err).Msg("worker: redis unavailable, sweeps run unlocked")
		} else {
			defer redisCache.Close()
			cache = redisCache
		}
	}

	storagePath := cfg.StoragePath
	if storagePath == "" {
		storagePath = "./storage"
	}
	if !filepath.IsAbs(storagePath) {
		if abs, err := filepath.Abs(storagePath); err == nil {
			storagePath = abs
		}
	}
	store, err := storage.NewArtifactStore(storagePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure storage")
	}

	credStore := credentials.NewStore(runner)
	geminiAPIKey := strings.TrimSpace(cfg.GeminiAPIKey)
	if geminiAPIKey == "" {
		if key, err := credStore.GeminiAPIKey(ctx); err != nil {
			logger.Warn().Err(err).Msg("worker: failed to load gemini api key from store")
		} else {
			geminiAPIKey = key
		}
	}
	dashscopeAPIKey := strings.TrimSpace(cfg.DashScopeAPIKey)
	if dashscopeAPIKey == "" {
		if key, err := credStore.DashScopeAPIKey(ctx); err != nil {
			logger.Warn().Err(err).Msg("worker: failed to load dashscope api key from store")
		} else {
			dashscopeAPIKey = key
		}
	}

	httpClient := &http.Client{Timeout: 60 * time.Second}
	googleClient, err := genai.NewClient(genai.Options{
		APIKey:     geminiAPIKey,
		BaseURL:    cfg.GeminiBaseURL,
		HTTPClient: httpClient,
		Logger:     &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure google client")
	}
	if !googleClient.HasCredentials() {
		logger.Warn().Msg("worker: gemini api key missing, google models use synthetic assets")
	}
	dashscopeClient, err := dashscope.NewClient(dashscope.Options{
		APIKey:     dashscopeAPIKey,
		BaseURL:    cfg.DashScopeBaseURL,
		HTTPClient: httpClient,
		Logger:     &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure dashscope client")
	}

	reg := registry.BuiltinCatalog(googleClient, dashscopeClient)
	service := generation.NewService(runner, runner, logger)
	recorder := generation.NewRecorder(runner, logger)
	driver := generation.NewDriver(service, recorder, reg, store, logger,
		cfg.StorageBaseURL, cfg.ProviderPollInterval)
	reaper := generation.NewReaper(runner, logger, cfg.ReaperMinAge, cfg.HeartbeatStaleAfter)

	go runReaper(ctx, reaper, cache, cfg.ReaperSweepInterval, logger)

	logger.Info().Msg("worker: started")
	if err := runClaimLoop(ctx, service, driver, cfg.WorkerPollInterval, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}

func runClaimLoop(ctx context.Context, service *generation.Service, driver *generation.Driver, pollInterval time.Duration, logger infra.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		g, err := service.ClaimNext(ctx)
		if err != nil {
			if !errors.Is(err, generation.ErrNoPending) {
				logger.Error().Err(err).Msg("worker: claim failed")
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pollInterval):
			}
			continue
		}

		logger.Info().Str("generation_id", g.ID).Str("model_id", g.ModelID).Msg("worker: claimed generation")
		driver.Process(ctx, g)
	}
}

func runReaper(ctx context.Context, reaper *generation.Reaper, cache infra.Cache, interval time.Duration, logger infra.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if cache != nil {
			acquired, err := cache.AcquireLock(ctx, reaperLockKey, interval)
			if err != nil {
				logger.Warn().Err(err).Msg("worker: sweep lock unavailable, sweeping anyway")
			} else if !acquired {
				continue
			}
		}
		if _, err := reaper.Sweep(ctx); err != nil {
			logger.Error().Err(err).Msg("worker: sweep failed")
		}
		if cache != nil {
			_ = cache.ReleaseLock(ctx, reaperLockKey)
		}
	}
}
