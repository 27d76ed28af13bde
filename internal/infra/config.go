package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	RedisURL    string
	JWTSecret   string

	StoragePath    string
	StorageBaseURL string
	GeoIPDBPath    string

	GeminiAPIKey     string
	GeminiBaseURL    string
	DashScopeAPIKey  string
	DashScopeBaseURL string

	// Reaper thresholds. MinAge must exceed the slowest legitimate render so
	// slow jobs are never classified stuck; HeartbeatStaleAfter is shorter
	// and only applies past MinAge.
	ReaperMinAge         time.Duration
	HeartbeatStaleAfter  time.Duration
	ReaperSweepInterval  time.Duration
	DebugStuckOlderThan  time.Duration
	AnalyticsMinCohort   int
	WorkerPollInterval   time.Duration
	ProviderPollInterval time.Duration

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),

		StoragePath:    getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL: getEnv("STORAGE_BASE_URL", "http://localhost:8080/static"),
		GeoIPDBPath:    os.Getenv("GEOIP_DB_PATH"),

		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		GeminiBaseURL:    getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		DashScopeAPIKey:  os.Getenv("DASHSCOPE_API_KEY"),
		DashScopeBaseURL: getEnv("DASHSCOPE_BASE_URL", "https://dashscope-intl.aliyuncs.com/api/v1"),

		ReaperMinAge:         time.Minute * time.Duration(getEnvInt("REAPER_MIN_AGE_MINUTES", 10)),
		HeartbeatStaleAfter:  time.Minute * time.Duration(getEnvInt("HEARTBEAT_STALE_MINUTES", 5)),
		ReaperSweepInterval:  time.Minute * time.Duration(getEnvInt("REAPER_SWEEP_INTERVAL_MINUTES", 5)),
		DebugStuckOlderThan:  time.Minute * time.Duration(getEnvInt("DEBUG_STUCK_OLDER_THAN_MINUTES", 2)),
		AnalyticsMinCohort:   getEnvInt("ANALYTICS_MIN_COHORT", 3),
		WorkerPollInterval:   time.Second * time.Duration(getEnvInt("WORKER_POLL_INTERVAL_SECONDS", 2)),
		ProviderPollInterval: time.Second * time.Duration(getEnvInt("PROVIDER_POLL_INTERVAL_SECONDS", 5)),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if cfg.HeartbeatStaleAfter >= cfg.ReaperMinAge {
		return nil, fmt.Errorf("HEARTBEAT_STALE_MINUTES must be shorter than REAPER_MIN_AGE_MINUTES")
	}

	if cfg.AnalyticsMinCohort < 1 {
		return nil, fmt.Errorf("ANALYTICS_MIN_COHORT must be at least 1")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
