package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func env(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaults_Valid(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := Defaults()
	err := cfg.applyEnv(env(map[string]string{
		"HTTP_ADDR":       ":9000",
		"STORE_BACKEND":   "memory",
		"REDIS_DB":        "3",
		"IO_TIMEOUT":      "2s",
		"TOP_N":           "10",
		"TSL_MODE":        "scan",
		"SCAN_AUTO_TRADE": "true",
		"SCAN_USERS":      "1, 7",
		"SQLITE_PATH":     "", // empty keeps the default
	}))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTPAddr != ":9000" || cfg.StoreBackend != "memory" || cfg.RedisDB != 3 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.IOTimeout != 2*time.Second || cfg.TopN != 10 || cfg.TSLMode != "scan" || !cfg.ScanAutoTrade {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.SQLitePath != "data/cycles.db" {
		t.Errorf("sqlite path = %q", cfg.SQLitePath)
	}
	users, err := cfg.ParseUsers()
	if err != nil || len(users) != 2 || users[1] != 7 {
		t.Errorf("users = %v, %v", users, err)
	}
}

func TestApplyEnv_BadValues(t *testing.T) {
	cfg := Defaults()
	err := cfg.applyEnv(env(map[string]string{
		"TOP_N":           "many",
		"IO_TIMEOUT":      "10",
		"SCAN_AUTO_TRADE": "perhaps",
	}))
	if err == nil {
		t.Fatal("expected errors")
	}
	for _, key := range []string{"TOP_N", "IO_TIMEOUT", "SCAN_AUTO_TRADE"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error %q does not name %s", err, key)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"backend", func(c *Config) { c.StoreBackend = "postgres" }, "store_backend"},
		{"tsl mode", func(c *Config) { c.TSLMode = "daily" }, "tsl_mode"},
		{"workers", func(c *Config) { c.ScanWorkers = 0 }, "scan_workers"},
		{"cron", func(c *Config) { c.ScanCron = "every day" }, "scan_cron"},
		{"users", func(c *Config) { c.ScanUsers = "1,x" }, "scan_users"},
		{"data file", func(c *Config) { c.DataFile = "" }, "data_file"},
		{"holidays", func(c *Config) { c.MarketHolidays = "2024-13-01" }, "market_holidays"},
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"telegram", func(c *Config) { c.TelegramToken = "t" }, "telegram_chat_id"},
		{"retries", func(c *Config) { c.NotifyRetries = -1 }, "notify_retries"},
		{"cache ttl", func(c *Config) { c.RedisAddr = "localhost:6379"; c.SettingsCacheTTL = 0 }, "settings_cache_ttl"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %s", err, tt.want)
			}
		})
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
http_addr: ":7000"
data_file: /srv/prices.csv
io_timeout: 3s
top_n: 20
scan_cron: "@daily"
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("TOP_N", "12")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTPAddr != ":7000" || cfg.DataFile != "/srv/prices.csv" || cfg.IOTimeout != 3*time.Second {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.TopN != 12 {
		t.Errorf("env should override file: top_n = %d", cfg.TopN)
	}
	if cfg.MetricsAddr != ":9090" {
		t.Errorf("unset keys keep defaults: metrics_addr = %q", cfg.MetricsAddr)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yaml"))
	if _, err := Load(); err == nil {
		t.Fatal("expected error for a missing config file")
	}
}
