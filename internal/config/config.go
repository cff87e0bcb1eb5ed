package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is the full environment surface of the service. Everything has a
// default so a bare `go run ./cmd/api` works out of the box.
type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Model cache sizing. TTL bounds how long a trained artifact may be
	// served; MaxEntries bounds memory with LRU eviction.
	CacheTTL        time.Duration `envconfig:"MODEL_CACHE_TTL" default:"30m"`
	CacheMaxEntries int           `envconfig:"MODEL_CACHE_MAX_ENTRIES" default:"64"`

	// Training gates: a capability never trains on fewer samples than its
	// minimum, it reports "insufficient data" instead.
	ForecastMinDays     int `envconfig:"FORECAST_MIN_DAYS" default:"5"`
	AnomalyMinDays      int `envconfig:"ANOMALY_MIN_DAYS" default:"5"`
	SegmentUsersMin     int `envconfig:"SEGMENT_MIN_CUSTOMERS" default:"4"`
	ForecastHorizonDays int `envconfig:"FORECAST_HORIZON_DAYS" default:"7"`
}

// Load reads configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("process env: %w", err)
	}
	if cfg.CacheMaxEntries < 1 {
		return Config{}, fmt.Errorf("MODEL_CACHE_MAX_ENTRIES must be positive, got %d", cfg.CacheMaxEntries)
	}
	if cfg.ForecastHorizonDays < 1 {
		return Config{}, fmt.Errorf("FORECAST_HORIZON_DAYS must be positive, got %d", cfg.ForecastHorizonDays)
	}
	return cfg, nil
}
