package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName  string
	HTTPPort     string
	PostgresDSN  string
	KafkaBrokers []string
	LogFormat    string

	SweepInterval  time.Duration
	ExpireInterval time.Duration
	RelayInterval  time.Duration
	RelayBatchSize int
	IdempotencyTTL time.Duration

	EnableSeasonConsumer bool
	EnableVoteConsumer   bool
	EnableSlotSweeper    bool
	EnableRoundExpirer   bool
}

// fileConfig is the optional YAML overlay referenced by CONFIG_FILE.
// Environment variables still win over file values.
type fileConfig struct {
	ServiceName    string   `yaml:"service_name"`
	HTTPPort       string   `yaml:"http_port"`
	PostgresDSN    string   `yaml:"postgres_dsn"`
	KafkaBrokers   []string `yaml:"kafka_brokers"`
	LogFormat      string   `yaml:"log_format"`
	SweepInterval  string   `yaml:"sweep_interval"`
	ExpireInterval string   `yaml:"expire_interval"`
	RelayInterval  string   `yaml:"relay_interval"`
	RelayBatchSize int      `yaml:"relay_batch_size"`
	IdempotencyTTL string   `yaml:"idempotency_ttl"`
}

func Load() (Config, error) {
	// .env is developer convenience only; a missing file is not an error.
	_ = godotenv.Load()

	cfg := Config{
		ServiceName:    "fable",
		HTTPPort:       "8080",
		KafkaBrokers:   []string{"localhost:9092"},
		LogFormat:      "json",
		SweepInterval:  30 * time.Second,
		ExpireInterval: 15 * time.Second,
		RelayInterval:  5 * time.Second,
		RelayBatchSize: 100,
		IdempotencyTTL: 7 * 24 * time.Hour,

		EnableSeasonConsumer: true,
		EnableVoteConsumer:   true,
		EnableSlotSweeper:    true,
		EnableRoundExpirer:   true,
	}

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, fmt.Errorf("apply config file %s: %w", path, err)
		}
	}

	if service := strings.TrimSpace(os.Getenv("SERVICE_NAME")); service != "" {
		cfg.ServiceName = service
	}
	if port := strings.TrimSpace(os.Getenv("HTTP_PORT")); port != "" {
		cfg.HTTPPort = port
	}
	if dsn := strings.TrimSpace(os.Getenv("POSTGRES_DSN")); dsn != "" {
		cfg.PostgresDSN = dsn
	}
	if brokers := splitList(os.Getenv("KAFKA_BROKERS")); len(brokers) > 0 {
		cfg.KafkaBrokers = brokers
	}
	if format := strings.TrimSpace(strings.ToLower(os.Getenv("LOG_FORMAT"))); format != "" {
		cfg.LogFormat = format
	}

	cfg.SweepInterval = envDuration("SWEEP_INTERVAL", cfg.SweepInterval)
	cfg.ExpireInterval = envDuration("EXPIRE_INTERVAL", cfg.ExpireInterval)
	cfg.RelayInterval = envDuration("RELAY_INTERVAL", cfg.RelayInterval)
	cfg.RelayBatchSize = envInt("RELAY_BATCH_SIZE", cfg.RelayBatchSize)
	cfg.IdempotencyTTL = envDuration("IDEMPOTENCY_TTL", cfg.IdempotencyTTL)

	cfg.EnableSeasonConsumer = envBool("ENABLE_SEASON_CONSUMER", cfg.EnableSeasonConsumer)
	cfg.EnableVoteConsumer = envBool("ENABLE_VOTE_CONSUMER", cfg.EnableVoteConsumer)
	cfg.EnableSlotSweeper = envBool("ENABLE_SLOT_SWEEPER", cfg.EnableSlotSweeper)
	cfg.EnableRoundExpirer = envBool("ENABLE_ROUND_EXPIRER", cfg.EnableRoundExpirer)

	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var file fileConfig
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return err
	}

	if file.ServiceName != "" {
		cfg.ServiceName = file.ServiceName
	}
	if file.HTTPPort != "" {
		cfg.HTTPPort = file.HTTPPort
	}
	if file.PostgresDSN != "" {
		cfg.PostgresDSN = file.PostgresDSN
	}
	if len(file.KafkaBrokers) > 0 {
		cfg.KafkaBrokers = file.KafkaBrokers
	}
	if file.LogFormat != "" {
		cfg.LogFormat = strings.ToLower(file.LogFormat)
	}
	if file.RelayBatchSize > 0 {
		cfg.RelayBatchSize = file.RelayBatchSize
	}
	for _, item := range []struct {
		raw    string
		target *time.Duration
	}{
		{file.SweepInterval, &cfg.SweepInterval},
		{file.ExpireInterval, &cfg.ExpireInterval},
		{file.RelayInterval, &cfg.RelayInterval},
		{file.IdempotencyTTL, &cfg.IdempotencyTTL},
	} {
		if strings.TrimSpace(item.raw) == "" {
			continue
		}
		parsed, err := time.ParseDuration(strings.TrimSpace(item.raw))
		if err != nil {
			return err
		}
		*item.target = parsed
	}
	return nil
}

func splitList(raw string) []string {
	var items []string
	for _, value := range strings.Split(raw, ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			items = append(items, value)
		}
	}
	return items
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}
