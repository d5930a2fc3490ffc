package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("databaseURL: \"memory://\"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Retention() != 48*time.Hour || cfg.Interval() != 6*time.Hour {
		t.Fatalf("unexpected sweep defaults: %v %v", cfg.Retention(), cfg.Interval())
	}
	if cfg.Port != "8090" || cfg.QueueConcurrency != 1 || cfg.QueueMaxRetries != 3 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadFromEnvWithoutFile(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env")
	t.Setenv("DATA_RETENTION_HOURS", "24")
	t.Setenv("SWEEP_INTERVAL", "30m")
	t.Setenv("RETENTION_RUN_ON_START", "true")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DatabaseURL != "postgres://env" || cfg.Retention() != 24*time.Hour || cfg.Interval() != 30*time.Minute || !cfg.RunOnStart {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
}

func TestLoadKeepsZeroRetention(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("databaseURL: \"memory://\"\ndataRetentionHours: 0\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Retention() != 0 {
		t.Fatalf("expected explicit zero retention, got %v", cfg.Retention())
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing database", "port: \"8090\"\n"},
		{"bad interval", "databaseURL: \"memory://\"\nsweepInterval: \"soon\"\n"},
		{"negative retention", "databaseURL: \"memory://\"\ndataRetentionHours: -1\n"},
		{"negative concurrency", "databaseURL: \"memory://\"\nqueueConcurrency: -2\n"},
		{"short internal secret", "databaseURL: \"memory://\"\ninternalSecret: \"short\"\n"},
		{"bad verify secrets", "databaseURL: \"memory://\"\ninternalVerifySecrets: \"nokey\"\n"},
	}
	t.Setenv("DATABASE_URL", "")
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tc.body), 0o600); err != nil {
				t.Fatalf("write config: %v", err)
			}
			if _, err := Load(path); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
