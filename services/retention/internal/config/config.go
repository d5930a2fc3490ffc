package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
	"mailboxapi/internal/servicetoken"
)

// ConfigPath is the YAML file read by Load when no path is given.
var ConfigPath = envOr("RETENTION_CONFIG", "config.yaml")

const defaultRetentionHours = 48

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port           string `yaml:"port"`
	LogLevel       string `yaml:"logLevel"`
	DatabaseURL    string `yaml:"databaseURL"`
	DBMaxOpenConns int    `yaml:"dbMaxOpenConns"`
	DBMaxIdleConns int    `yaml:"dbMaxIdleConns"`
	RedisAddr      string `yaml:"redisAddr"`
	RedisPassword  string `yaml:"redisPassword"`

	// InternalSecret signs the service tokens accepted by the status
	// endpoints. Leaving it empty disables those endpoints.
	InternalSecret        string   `yaml:"internalSecret"`
	InternalVerifySecrets string   `yaml:"internalVerifySecrets"`
	InternalIssuers       []string `yaml:"internalIssuers"`

	DataRetentionHours *int   `yaml:"dataRetentionHours"`
	SweepInterval      string `yaml:"sweepInterval"`
	RunOnStart         bool   `yaml:"runOnStart"`

	QueueStream            string `yaml:"queueStream"`
	QueueGroup             string `yaml:"queueGroup"`
	QueueConcurrency       int    `yaml:"queueConcurrency"`
	QueueMaxRetries        int    `yaml:"queueMaxRetries"`
	QueueRetryDelaySeconds int    `yaml:"queueRetryDelaySeconds"`
}

// Load reads config from path (defaults to ConfigPath). A missing file is
// allowed; environment variables override file values.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return cfg, fmt.Errorf("read config: %w", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	setString(&cfg.Port, "PORT")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.RedisAddr, "REDIS_ADDR")
	setString(&cfg.RedisPassword, "REDIS_PASSWORD")
	setString(&cfg.InternalSecret, "RETENTION_INTERNAL_SECRET")
	setString(&cfg.InternalVerifySecrets, "RETENTION_INTERNAL_VERIFY_SECRETS")
	if v := strings.TrimSpace(os.Getenv("RETENTION_INTERNAL_ISSUERS")); v != "" {
		cfg.InternalIssuers = strings.Split(v, ",")
	}
	setString(&cfg.SweepInterval, "SWEEP_INTERVAL")
	setString(&cfg.QueueStream, "SWEEP_QUEUE_STREAM")
	setOptionalInt(&cfg.DataRetentionHours, "DATA_RETENTION_HOURS")
	setInt(&cfg.QueueConcurrency, "SWEEP_QUEUE_CONCURRENCY")
	setInt(&cfg.DBMaxOpenConns, "DB_MAX_OPEN_CONNS")
	setInt(&cfg.DBMaxIdleConns, "DB_MAX_IDLE_CONNS")
	if v := os.Getenv("RETENTION_RUN_ON_START"); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			cfg.RunOnStart = b
		}
	}
}

func applyDefaults(cfg *FileConfig) {
	if cfg.Port == "" {
		cfg.Port = "8090"
	}
	if cfg.DataRetentionHours == nil {
		hours := defaultRetentionHours
		cfg.DataRetentionHours = &hours
	}
	if cfg.SweepInterval == "" {
		cfg.SweepInterval = "6h"
	}
	if cfg.DBMaxOpenConns == 0 {
		cfg.DBMaxOpenConns = 5
	}
	if cfg.DBMaxIdleConns == 0 {
		cfg.DBMaxIdleConns = 2
	}
	if cfg.QueueConcurrency == 0 {
		cfg.QueueConcurrency = 1
	}
	if cfg.QueueMaxRetries == 0 {
		cfg.QueueMaxRetries = 3
	}
	if cfg.QueueRetryDelaySeconds == 0 {
		cfg.QueueRetryDelaySeconds = 30
	}
	if len(cfg.InternalIssuers) == 0 {
		cfg.InternalIssuers = []string{"mailbox", "ops"}
	}
}

func validateConfig(cfg FileConfig) error {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
	}
	if cfg.DataRetentionHours != nil && *cfg.DataRetentionHours < 0 {
		return errors.New("config: dataRetentionHours must be >= 0")
	}
	if cfg.QueueConcurrency < 0 || cfg.QueueMaxRetries < 0 || cfg.QueueRetryDelaySeconds < 0 {
		return errors.New("config: queue settings must be >= 0")
	}
	if cfg.InternalSecret != "" && len(cfg.InternalSecret) < 32 {
		return errors.New("config: internalSecret must be at least 32 bytes")
	}
	if _, err := servicetoken.ParseVerifySecrets(cfg.InternalVerifySecrets); err != nil {
		return fmt.Errorf("config: invalid internalVerifySecrets: %w", err)
	}
	d, err := time.ParseDuration(cfg.SweepInterval)
	if err != nil {
		return fmt.Errorf("config: invalid sweepInterval: %w", err)
	}
	if d <= 0 {
		return errors.New("config: sweepInterval must be positive")
	}
	return nil
}

// Retention is zero when dataRetentionHours is explicitly 0.
func (c FileConfig) Retention() time.Duration {
	if c.DataRetentionHours == nil {
		return defaultRetentionHours * time.Hour
	}
	return time.Duration(*c.DataRetentionHours) * time.Hour
}

// Interval is the parsed sweepInterval. Load has already validated it.
func (c FileConfig) Interval() time.Duration {
	d, _ := time.ParseDuration(c.SweepInterval)
	return d
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = strings.TrimSpace(v)
	}
}

func setOptionalInt(dst **int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			*dst = &n
		}
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			*dst = n
		}
	}
}
