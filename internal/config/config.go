package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/covid-dashboard/internal/common"
	"github.com/i474232898/covid-dashboard/internal/covid"
)

const (
	CacheBackendSQLite = "sqlite"
	CacheBackendRedis  = "redis"
)

type AppConfig struct {
	Port string

	// Remote source.
	SourceBaseURL   string
	HTTPTimeout     time.Duration
	FetchMaxRetries int // 0 = single attempt, startup fails on the first error
	FetchWorkers    int

	// Response cache.
	CacheBackend       string
	CachePath          string
	CacheTTL           time.Duration
	CachePurgeInterval time.Duration // 0 disables the purge job
	RedisAddr          string
	RedisPassword      string
	RedisDB            int

	PopulationFile string // empty = bundled table

	Variant   covid.VariantConfig
	Countries []string // empty = every supported country
}

// Load reads configuration from environment with sensible defaults.
// A .env file, if any, must already have been loaded by the caller.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{}
	var err error

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.SourceBaseURL = getenvDefault("COVID_API_BASE_URL", "https://covidapi.info/api/v1/country/")

	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "30s"); err != nil {
		return nil, err
	}
	cfg.FetchMaxRetries = getenvInt("FETCH_MAX_RETRIES", 0)
	if cfg.FetchMaxRetries < 0 {
		return nil, fmt.Errorf("invalid FETCH_MAX_RETRIES: must be >= 0")
	}
	cfg.FetchWorkers = getenvInt("FETCH_WORKERS", 4)
	if cfg.FetchWorkers <= 0 {
		return nil, fmt.Errorf("invalid FETCH_WORKERS: must be > 0")
	}

	cfg.CacheBackend = strings.ToLower(getenvDefault("CACHE_BACKEND", CacheBackendSQLite))
	switch cfg.CacheBackend {
	case CacheBackendSQLite, CacheBackendRedis:
	default:
		return nil, fmt.Errorf("invalid CACHE_BACKEND %q: want sqlite or redis", cfg.CacheBackend)
	}
	cfg.CachePath = getenvDefault("CACHE_PATH", "covid_api.sqlite")

	// One hour, the expiry used by the covidapi.info response cache.
	if cfg.CacheTTL, err = getenvDuration("CACHE_TTL", "3600s"); err != nil {
		return nil, err
	}
	if cfg.CachePurgeInterval, err = getenvDuration("CACHE_PURGE_INTERVAL", "1h"); err != nil {
		return nil, err
	}
	cfg.RedisAddr = getenvDefault("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.RedisDB = getenvInt("REDIS_DB", 0)

	cfg.PopulationFile = os.Getenv("POPULATION_FILE")

	variant, err := covid.LookupVariant(getenvDefault("DASHBOARD_VARIANT", covid.VariantSmoothed.Name))
	if err != nil {
		return nil, err
	}
	if variant.RollingAverage, err = getenvBool("ROLLING_AVERAGE", variant.RollingAverage); err != nil {
		return nil, err
	}
	if variant.ClampBeforeSmoothing, err = getenvBool("CLAMP_BEFORE_SMOOTHING", variant.ClampBeforeSmoothing); err != nil {
		return nil, err
	}
	cfg.Variant = variant

	cfg.Countries = common.SplitCodes(os.Getenv("COUNTRIES"))

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getenvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
