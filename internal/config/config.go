package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// DefaultBaseURL is the NOMADS production GFS tree.
const DefaultBaseURL = "https://nomads.ncep.noaa.gov/pub/data/nccf/com/gfs/prod"

// Config holds all service settings, populated from environment variables.
type Config struct {
	DataDir string

	// Remote grid source and cycle selection.
	BaseURL        string
	MaxHours       int
	Cycles         int
	ProbeRemote    bool
	LookbackCycles int

	// Fetcher.
	DownloadWorkers    int
	DownloadTimeout    time.Duration
	DownloadMaxRetries int
	DryRun             bool

	// Importer.
	ImportWorkers   int
	ImportBatchSize int

	RetentionDays int
	ForecastDays  int
	RunInterval   time.Duration

	DatabaseDriver string
	DatabaseDSN    string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	PlaceCacheSize  int

	// Import notifications (feature-flagged via KAFKA_ENABLED).
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string

	// Run lock; empty RedisURL keeps the lock in-process.
	RedisURL string
	LockTTL  time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DataDir:         sharedcfg.EnvOrDefault("DATA_DIR", "data"),
		BaseURL:         strings.TrimRight(sharedcfg.EnvOrDefault("GFS_BASE_URL", DefaultBaseURL), "/"),
		DatabaseDriver:  sharedcfg.EnvOrDefault("DATABASE_DRIVER", "postgres"),
		DatabaseDSN:     os.Getenv("DATABASE_DSN"),
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		KafkaBrokers:    sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:      sharedcfg.EnvOrDefault("KAFKA_TOPIC", "gfs-imports"),
		RedisURL:        os.Getenv("REDIS_URL"),
	}

	ints := []struct {
		key  string
		def  int
		min  int
		dest *int
	}{
		{"GFS_MAX_HOURS", 384, 0, &cfg.MaxHours},
		{"GFS_CYCLES", 2, 1, &cfg.Cycles},
		{"GFS_LOOKBACK_CYCLES", 4, 1, &cfg.LookbackCycles},
		{"DOWNLOAD_WORKERS", 4, 1, &cfg.DownloadWorkers},
		{"DOWNLOAD_MAX_RETRIES", 3, 0, &cfg.DownloadMaxRetries},
		{"IMPORT_WORKERS", 4, 1, &cfg.ImportWorkers},
		{"IMPORT_BATCH_SIZE", 1000, 1, &cfg.ImportBatchSize},
		{"RETENTION_DAYS", 2, 1, &cfg.RetentionDays},
		{"FORECAST_DAYS", 7, 0, &cfg.ForecastDays},
		{"PLACE_CACHE_SIZE", 1000, 1, &cfg.PlaceCacheSize},
	}
	for _, v := range ints {
		n, err := parseInt(v.key, v.def, v.min)
		if err != nil {
			return nil, err
		}
		*v.dest = n
	}

	durations := []struct {
		key  string
		def  time.Duration
		dest *time.Duration
	}{
		{"DOWNLOAD_TIMEOUT", 60 * time.Second, &cfg.DownloadTimeout},
		{"RUN_INTERVAL", 6 * time.Hour, &cfg.RunInterval},
		{"LOCK_TTL", 2 * time.Hour, &cfg.LockTTL},
	}
	for _, v := range durations {
		d, err := parseDuration(v.key, v.def)
		if err != nil {
			return nil, err
		}
		*v.dest = d
	}

	bools := []struct {
		key  string
		dest *bool
	}{
		{"GFS_PROBE_REMOTE", &cfg.ProbeRemote},
		{"DRY_RUN", &cfg.DryRun},
		{"KAFKA_ENABLED", &cfg.KafkaEnabled},
	}
	for _, v := range bools {
		b, err := parseBool(v.key)
		if err != nil {
			return nil, err
		}
		*v.dest = b
	}

	if cfg.MaxHours > 384 {
		return nil, errors.New("invalid GFS_MAX_HOURS: must be at most 384")
	}
	switch cfg.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return nil, fmt.Errorf("invalid DATABASE_DRIVER %q: must be postgres or sqlite", cfg.DatabaseDriver)
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}
	if cfg.KafkaEnabled && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_ENABLED is true")
	}

	return cfg, nil
}

// RequireDatabase reports an error when no DSN is configured. Commands that
// never touch the store (fetch in dry-run, gribinv) skip this check.
func (c *Config) RequireDatabase() error {
	if c.DatabaseDSN == "" {
		return errors.New("DATABASE_DSN is required")
	}
	return nil
}

func parseInt(key string, def, minimum int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < minimum {
		return 0, fmt.Errorf("invalid %s %q: must be an integer >= %d", key, s, minimum)
	}
	return n, nil
}

func parseDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive duration", key, s)
	}
	return d, nil
}

func parseBool(key string) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: must be a boolean", key, s)
	}
	return b, nil
}
