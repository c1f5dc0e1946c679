package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/yungbote/neurobridge-mastery/internal/data/aggregates"
	"github.com/yungbote/neurobridge-mastery/internal/data/db"
	"github.com/yungbote/neurobridge-mastery/internal/observability"
	"github.com/yungbote/neurobridge-mastery/internal/platform/envutil"
	"github.com/yungbote/neurobridge-mastery/internal/platform/logger"
	"github.com/yungbote/neurobridge-mastery/internal/services"
)

const serviceName = "neurobridge-mastery"

type Config struct {
	Port           string
	AllowedOrigins []string

	DB    db.Config
	Retry aggregates.RetryPolicy
	Redis services.RedisCacheConfig
	AMQP  services.AMQPConfig
	Otel  observability.OtelConfig
}

// tuningFile is the optional YAML override read from MASTERY_CONFIG_FILE.
type tuningFile struct {
	Retry struct {
		MaxRetries *int           `yaml:"max_retries"`
		BaseDelay  *time.Duration `yaml:"base_delay"`
		MaxDelay   *time.Duration `yaml:"max_delay"`
	} `yaml:"retry"`
	Cache struct {
		TTL    *time.Duration `yaml:"ttl"`
		Prefix *string        `yaml:"prefix"`
	} `yaml:"cache"`
}

// LoadDotEnv reads .env when present. A missing file is not an error.
// Variables already set in the process environment win.
func LoadDotEnv() error {
	path := envutil.String("DOTENV_PATH", ".env")
	if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func LoadConfig(log *logger.Logger) (Config, error) {
	defRetry := aggregates.DefaultRetryPolicy()
	cfg := Config{
		Port:           envutil.String("PORT", "8080"),
		AllowedOrigins: splitList(envutil.String("CORS_ALLOWED_ORIGINS", "")),
		DB: db.Config{
			Driver:     envutil.String("DB_DRIVER", db.DriverPostgres),
			SQLitePath: envutil.String("SQLITE_PATH", "mastery.db"),
			Postgres: db.PostgresConfig{
				Host:         envutil.String("POSTGRES_HOST", "localhost"),
				Port:         envutil.String("POSTGRES_PORT", "5432"),
				User:         envutil.String("POSTGRES_USER", "postgres"),
				Password:     envutil.String("POSTGRES_PASSWORD", ""),
				Name:         envutil.String("POSTGRES_NAME", "neurobridge"),
				SSLMode:      envutil.String("POSTGRES_SSLMODE", "disable"),
				DSN:          envutil.String("POSTGRES_DSN", ""),
				MaxOpenConns: envutil.Int("POSTGRES_MAX_OPEN_CONNS", 20),
				MaxIdleConns: envutil.Int("POSTGRES_MAX_IDLE_CONNS", 10),
			},
		},
		Retry: aggregates.RetryPolicy{
			MaxRetries: envutil.Int("MASTERY_MAX_RETRIES", defRetry.MaxRetries),
			BaseDelay:  envutil.Duration("MASTERY_RETRY_BASE_DELAY", defRetry.BaseDelay),
			MaxDelay:   envutil.Duration("MASTERY_RETRY_MAX_DELAY", defRetry.MaxDelay),
		},
		Redis: services.RedisCacheConfig{
			Addr:     envutil.String("REDIS_ADDR", ""),
			Password: envutil.String("REDIS_PASSWORD", ""),
			DB:       envutil.Int("REDIS_DB", 0),
			Prefix:   envutil.String("MASTERY_CACHE_PREFIX", "mastery"),
			TTL:      envutil.Duration("MASTERY_CACHE_TTL", 5*time.Minute),
		},
		AMQP: services.AMQPConfig{
			URL:      envutil.String("AMQP_URL", ""),
			Exchange: envutil.String("AMQP_EXCHANGE", "mastery.events"),
			Timeout:  envutil.Duration("AMQP_PUBLISH_TIMEOUT", 5*time.Second),
		},
		Otel: observability.OtelConfig{
			Enabled:     envutil.Bool("OTEL_ENABLED", false),
			ServiceName: envutil.String("OTEL_SERVICE_NAME", serviceName),
			Environment: envutil.String("APP_ENV", "development"),
			Version:     envutil.String("APP_VERSION", ""),
			SampleRatio: envutil.Float("OTEL_SAMPLER_RATIO", 1.0),
			Endpoint:    envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:     envutil.String("OTEL_EXPORTER_OTLP_HEADERS", ""),
			Insecure:    envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", false),
		},
	}

	if path := envutil.String("MASTERY_CONFIG_FILE", ""); path != "" {
		if err := applyTuningFile(&cfg, path); err != nil {
			return Config{}, err
		}
		if log != nil {
			log.Info("mastery tuning file applied", "path", path)
		}
	}
	if cfg.Retry.MaxRetries < 0 {
		return Config{}, fmt.Errorf("MASTERY_MAX_RETRIES must be >= 0, got %d", cfg.Retry.MaxRetries)
	}
	return cfg, nil
}

func applyTuningFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read tuning file: %w", err)
	}
	var tf tuningFile
	if err := yaml.Unmarshal(raw, &tf); err != nil {
		return fmt.Errorf("parse tuning file %s: %w", path, err)
	}
	if tf.Retry.MaxRetries != nil {
		cfg.Retry.MaxRetries = *tf.Retry.MaxRetries
	}
	if tf.Retry.BaseDelay != nil {
		cfg.Retry.BaseDelay = *tf.Retry.BaseDelay
	}
	if tf.Retry.MaxDelay != nil {
		cfg.Retry.MaxDelay = *tf.Retry.MaxDelay
	}
	if tf.Cache.TTL != nil {
		cfg.Redis.TTL = *tf.Cache.TTL
	}
	if tf.Cache.Prefix != nil {
		cfg.Redis.Prefix = strings.TrimSpace(*tf.Cache.Prefix)
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}
