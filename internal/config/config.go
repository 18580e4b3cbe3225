package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Water Quality Portal client.
	WQPBaseURL       string
	WQPTimeout       time.Duration
	FetchConcurrency int

	CatalogFile  string
	SnapshotPath string
	RankingLimit int

	// Optional SQL results store; disabled when DatabaseDSN is empty.
	DatabaseDriver string
	DatabaseDSN    string

	// Optional Kafka results publisher; disabled when no brokers are set.
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	wqpTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("WQP_TIMEOUT", "5m"))
	if err != nil || wqpTimeout <= 0 {
		return nil, errors.New("invalid WQP_TIMEOUT")
	}

	concurrency, err := parsePositiveInt("FETCH_CONCURRENCY", 1)
	if err != nil {
		return nil, err
	}
	rankingLimit, err := parsePositiveInt("RANKING_LIMIT", 10)
	if err != nil {
		return nil, err
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		WQPBaseURL:       sharedcfg.EnvOrDefault("WQP_BASE_URL", "https://www.waterqualitydata.us/data"),
		WQPTimeout:       wqpTimeout,
		FetchConcurrency: concurrency,

		CatalogFile:  os.Getenv("CATALOG_FILE"),
		SnapshotPath: sharedcfg.EnvOrDefault("SNAPSHOT_PATH", "data/snapshot.zip"),
		RankingLimit: rankingLimit,

		DatabaseDriver: sharedcfg.EnvOrDefault("DATABASE_DRIVER", "sqlite"),
		DatabaseDSN:    os.Getenv("DATABASE_DSN"),

		KafkaBrokers: brokers,
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "water-quality-trends"),
	}

	switch cfg.DatabaseDriver {
	case "sqlite", "postgres", "mysql":
	default:
		return nil, errors.New("DATABASE_DRIVER must be one of sqlite, postgres, mysql")
	}
	if cfg.SnapshotPath == "" {
		return nil, errors.New("SNAPSHOT_PATH is required")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// DatabaseEnabled reports whether results should be persisted to SQL.
func (c *Config) DatabaseEnabled() bool { return c.DatabaseDSN != "" }

// KafkaEnabled reports whether results should be published to Kafka.
func (c *Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, errors.New("invalid " + key)
	}
	return n, nil
}
