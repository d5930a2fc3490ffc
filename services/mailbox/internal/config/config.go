package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
	"mailboxapi/internal/util"
)

// ConfigPath is the YAML file read by Load when no path is given.
var ConfigPath = envOr("MAILBOX_CONFIG", "config.yaml")

const (
	minJWTSecretLength    = 32
	defaultRetentionHours = 48
)

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port               string   `yaml:"port"`
	LogLevel           string   `yaml:"logLevel"`
	DatabaseURL        string   `yaml:"databaseURL"`
	DBMaxOpenConns     int      `yaml:"dbMaxOpenConns"`
	DBMaxIdleConns     int      `yaml:"dbMaxIdleConns"`
	DBOperationTimeout string   `yaml:"dbOperationTimeout"`
	RedisAddr          string   `yaml:"redisAddr"`
	RedisPassword      string   `yaml:"redisPassword"`
	JWTSecret          string   `yaml:"jwtSecret"`
	JWTTTL             string   `yaml:"jwtTTL"`
	JWTIssuer          string   `yaml:"jwtIssuer"`
	JWTAudience        string   `yaml:"jwtAudience"`
	JWTLeeway          string   `yaml:"jwtLeeway"`
	AllowAdminSignup   bool     `yaml:"allowAdminSignup"`
	ExposeErrors       bool     `yaml:"exposeErrors"`
	AllowedOrigins     []string `yaml:"allowedOrigins"`
	TrustedProxyCIDRs  []string `yaml:"trustedProxyCidrs"`

	SignupRateLimitPerMinute   int `yaml:"signupRateLimitPerMinute"`
	LoginRateLimitPerMinute    int `yaml:"loginRateLimitPerMinute"`
	PasswordRateLimitPerMinute int `yaml:"passwordRateLimitPerMinute"`

	DataRetentionHours *int   `yaml:"dataRetentionHours"`
	SweepInterval      string `yaml:"sweepInterval"`
	RunSweeper         bool   `yaml:"runSweeper"`
	SweepQueueStream   string `yaml:"sweepQueueStream"`

	ObjectStoreEndpoint  string `yaml:"objectStoreEndpoint"`
	ObjectStoreAccessKey string `yaml:"objectStoreAccessKey"`
	ObjectStoreSecretKey string `yaml:"objectStoreSecretKey"`
	ObjectStoreBucket    string `yaml:"objectStoreBucket"`
	ObjectStoreRegion    string `yaml:"objectStoreRegion"`
	ObjectStoreUseSSL    bool   `yaml:"objectStoreUseSSL"`
	AttachmentURLExpiry  string `yaml:"attachmentURLExpiry"`
}

// Load reads config from path (defaults to ConfigPath) and applies
// environment overrides. A missing file is allowed when the environment
// supplies everything required.
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
	setString(&cfg.JWTSecret, "JWT_SECRET")
	setString(&cfg.JWTTTL, "JWT_TTL")
	setString(&cfg.JWTIssuer, "JWT_ISSUER")
	setString(&cfg.JWTAudience, "JWT_AUDIENCE")
	setString(&cfg.JWTLeeway, "JWT_LEEWAY")
	setString(&cfg.DBOperationTimeout, "DB_OPERATION_TIMEOUT")
	setString(&cfg.SweepInterval, "SWEEP_INTERVAL")
	setString(&cfg.SweepQueueStream, "SWEEP_QUEUE_STREAM")
	setString(&cfg.ObjectStoreEndpoint, "OBJECT_STORE_ENDPOINT")
	setString(&cfg.ObjectStoreAccessKey, "OBJECT_STORE_ACCESS_KEY")
	setString(&cfg.ObjectStoreSecretKey, "OBJECT_STORE_SECRET_KEY")
	setString(&cfg.ObjectStoreBucket, "OBJECT_STORE_BUCKET")
	setString(&cfg.ObjectStoreRegion, "OBJECT_STORE_REGION")
	setString(&cfg.AttachmentURLExpiry, "ATTACHMENT_URL_EXPIRY")
	setInt(&cfg.DBMaxOpenConns, "DB_MAX_OPEN_CONNS")
	setInt(&cfg.DBMaxIdleConns, "DB_MAX_IDLE_CONNS")
	setOptionalInt(&cfg.DataRetentionHours, "DATA_RETENTION_HOURS")
	setInt(&cfg.SignupRateLimitPerMinute, "MAILBOX_SIGNUP_RATE_LIMIT_PER_MINUTE")
	setInt(&cfg.LoginRateLimitPerMinute, "MAILBOX_LOGIN_RATE_LIMIT_PER_MINUTE")
	setInt(&cfg.PasswordRateLimitPerMinute, "MAILBOX_PASSWORD_RATE_LIMIT_PER_MINUTE")
	setBool(&cfg.AllowAdminSignup, "MAILBOX_ALLOW_ADMIN_SIGNUP")
	setBool(&cfg.ExposeErrors, "MAILBOX_EXPOSE_ERRORS")
	setBool(&cfg.RunSweeper, "MAILBOX_RUN_SWEEPER")
	setBool(&cfg.ObjectStoreUseSSL, "OBJECT_STORE_USE_SSL")
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = util.SplitList(v)
	}
	if v := os.Getenv("MAILBOX_TRUSTED_PROXY_CIDRS"); v != "" {
		cfg.TrustedProxyCIDRs = util.SplitList(v)
	}
}

func applyDefaults(cfg *FileConfig) {
	if cfg.JWTTTL == "" {
		cfg.JWTTTL = "24h"
	}
	if cfg.DBOperationTimeout == "" {
		cfg.DBOperationTimeout = "5s"
	}
	if cfg.DBMaxOpenConns == 0 {
		cfg.DBMaxOpenConns = 20
	}
	if cfg.DBMaxIdleConns == 0 {
		cfg.DBMaxIdleConns = 5
	}
	if cfg.DataRetentionHours == nil {
		hours := defaultRetentionHours
		cfg.DataRetentionHours = &hours
	}
	if cfg.SweepInterval == "" {
		cfg.SweepInterval = "6h"
	}
	if cfg.AttachmentURLExpiry == "" {
		cfg.AttachmentURLExpiry = "15m"
	}
	if cfg.LoginRateLimitPerMinute == 0 {
		cfg.LoginRateLimitPerMinute = 10
	}
	if cfg.SignupRateLimitPerMinute == 0 {
		cfg.SignupRateLimitPerMinute = 5
	}
	if cfg.PasswordRateLimitPerMinute == 0 {
		cfg.PasswordRateLimitPerMinute = 5
	}
}

func validateConfig(cfg FileConfig) error {
	if strings.TrimSpace(cfg.Port) == "" {
		return errors.New("config: port is required (set in config.yaml or PORT)")
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
	}
	if len(cfg.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("config: jwtSecret must be at least %d bytes", minJWTSecretLength)
	}
	if cfg.SignupRateLimitPerMinute < 0 || cfg.LoginRateLimitPerMinute < 0 || cfg.PasswordRateLimitPerMinute < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	if cfg.DBMaxOpenConns < 0 || cfg.DBMaxIdleConns < 0 {
		return errors.New("config: db pool limits must be >= 0")
	}
	if cfg.DataRetentionHours != nil && *cfg.DataRetentionHours < 0 {
		return errors.New("config: dataRetentionHours must be >= 0")
	}
	for name, raw := range map[string]string{
		"jwtTTL":              cfg.JWTTTL,
		"jwtLeeway":           cfg.JWTLeeway,
		"dbOperationTimeout":  cfg.DBOperationTimeout,
		"sweepInterval":       cfg.SweepInterval,
		"attachmentURLExpiry": cfg.AttachmentURLExpiry,
	} {
		if _, err := ParseDuration(raw); err != nil {
			return fmt.Errorf("config: invalid %s: %w", name, err)
		}
	}
	if cfg.ObjectStoreEndpoint != "" && cfg.ObjectStoreBucket == "" {
		return errors.New("config: objectStoreBucket is required when objectStoreEndpoint is set")
	}
	return nil
}

// ParseDuration parses an optional duration. Empty means zero.
func ParseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", raw)
	}
	return d, nil
}

// Durations are validated by Load, so the parse errors are dropped here.
func (c FileConfig) JWTTTLDuration() time.Duration {
	d, _ := ParseDuration(c.JWTTTL)
	return d
}

func (c FileConfig) JWTLeewayDuration() time.Duration {
	d, _ := ParseDuration(c.JWTLeeway)
	return d
}

func (c FileConfig) DBOperationTimeoutDuration() time.Duration {
	d, _ := ParseDuration(c.DBOperationTimeout)
	return d
}

func (c FileConfig) SweepIntervalDuration() time.Duration {
	d, _ := ParseDuration(c.SweepInterval)
	return d
}

func (c FileConfig) AttachmentURLExpiryDuration() time.Duration {
	d, _ := ParseDuration(c.AttachmentURLExpiry)
	return d
}

// Retention is zero when dataRetentionHours is explicitly 0.
func (c FileConfig) Retention() time.Duration {
	if c.DataRetentionHours == nil {
		return defaultRetentionHours * time.Hour
	}
	return time.Duration(*c.DataRetentionHours) * time.Hour
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

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			*dst = b
		}
	}
}
