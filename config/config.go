package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/BibekSapkota1/Share-Project/internal/logger"
	"github.com/BibekSapkota1/Share-Project/internal/markethours"
)

// Config holds all application configuration. Values come from defaults,
// then the YAML file named by CONFIG_FILE, then environment variables.
type Config struct {
	// Surfaces
	HTTPAddr    string `yaml:"http_addr"`
	MetricsAddr string `yaml:"metrics_addr"`

	// Price history (CSV)
	DataFile string `yaml:"data_file"`

	// Cycle store
	StoreBackend string `yaml:"store_backend"` // sqlite | memory
	SQLitePath   string `yaml:"sqlite_path"`

	// Redis (optional; empty address disables the cache and event fan-out)
	RedisAddr        string        `yaml:"redis_addr"`
	RedisPassword    string        `yaml:"redis_password"`
	RedisDB          int           `yaml:"redis_db"`
	SettingsCacheTTL time.Duration `yaml:"settings_cache_ttl"`

	// Engine
	IOTimeout   time.Duration `yaml:"io_timeout"`
	ScanWorkers int           `yaml:"scan_workers"`
	TopN        int           `yaml:"top_n"`
	TSLMode     string        `yaml:"tsl_mode"` // history | scan

	// Scheduled scanning
	ScanCron        string `yaml:"scan_cron"`
	ScanUsers       string `yaml:"scan_users"` // comma-separated user ids
	ScanAutoTrade   bool   `yaml:"scan_auto_trade"`
	MarketHoursOnly bool   `yaml:"market_hours_only"`
	MarketHolidays  string `yaml:"market_holidays"` // comma-separated YYYY-MM-DD

	// Scanner alerts (all optional; none set logs alerts instead)
	NotifyWebhookURL string `yaml:"notify_webhook_url"`
	TelegramToken    string `yaml:"telegram_token"`
	TelegramChatID   string `yaml:"telegram_chat_id"`
	NotifyRetries    int    `yaml:"notify_retries"`

	LogLevel string `yaml:"log_level"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		HTTPAddr:         ":8080",
		MetricsAddr:      ":9090",
		DataFile:         "data/nepse_data.csv",
		StoreBackend:     "sqlite",
		SQLitePath:       "data/cycles.db",
		SettingsCacheTTL: time.Minute,
		IOTimeout:        10 * time.Second,
		ScanWorkers:      8,
		TopN:             15,
		TSLMode:          "history",
		// 15:15 NPT, after the close, Sunday to Thursday.
		ScanCron:        "15 15 * * 0-4",
		ScanUsers:       "1",
		MarketHoursOnly: false,
		NotifyRetries:   2,
		LogLevel:        "info",
	}
}

// Load builds the configuration and validates it.
func Load() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// applyEnv overlays environment variables found through lookup.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("HTTP_ADDR", &c.HTTPAddr)
	str("METRICS_ADDR", &c.MetricsAddr)
	str("DATA_FILE", &c.DataFile)
	str("STORE_BACKEND", &c.StoreBackend)
	str("SQLITE_PATH", &c.SQLitePath)
	str("REDIS_ADDR", &c.RedisAddr)
	str("REDIS_PASSWORD", &c.RedisPassword)
	num("REDIS_DB", &c.RedisDB)
	dur("SETTINGS_CACHE_TTL", &c.SettingsCacheTTL)
	dur("IO_TIMEOUT", &c.IOTimeout)
	num("SCAN_WORKERS", &c.ScanWorkers)
	num("TOP_N", &c.TopN)
	str("TSL_MODE", &c.TSLMode)
	str("SCAN_CRON", &c.ScanCron)
	str("SCAN_USERS", &c.ScanUsers)
	flag("SCAN_AUTO_TRADE", &c.ScanAutoTrade)
	flag("MARKET_HOURS_ONLY", &c.MarketHoursOnly)
	str("MARKET_HOLIDAYS", &c.MarketHolidays)
	str("NOTIFY_WEBHOOK_URL", &c.NotifyWebhookURL)
	str("TELEGRAM_TOKEN", &c.TelegramToken)
	str("TELEGRAM_CHAT_ID", &c.TelegramChatID)
	num("NOTIFY_RETRIES", &c.NotifyRetries)
	str("LOG_LEVEL", &c.LogLevel)

	return errors.Join(errs...)
}

// Validate checks that every field is usable.
func (c *Config) Validate() error {
	var errs []error
	if c.DataFile == "" {
		errs = append(errs, errors.New("data_file is required"))
	}
	switch c.StoreBackend {
	case "memory":
	case "sqlite":
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("sqlite_path is required for the sqlite store"))
		}
	default:
		errs = append(errs, fmt.Errorf("store_backend must be sqlite or memory, got %q", c.StoreBackend))
	}
	if c.TSLMode != "history" && c.TSLMode != "scan" {
		errs = append(errs, fmt.Errorf("tsl_mode must be history or scan, got %q", c.TSLMode))
	}
	if c.IOTimeout <= 0 {
		errs = append(errs, errors.New("io_timeout must be positive"))
	}
	if c.ScanWorkers <= 0 {
		errs = append(errs, errors.New("scan_workers must be positive"))
	}
	if c.TopN <= 0 {
		errs = append(errs, errors.New("top_n must be positive"))
	}
	if c.NotifyRetries < 0 {
		errs = append(errs, errors.New("notify_retries must not be negative"))
	}
	if (c.TelegramToken == "") != (c.TelegramChatID == "") {
		errs = append(errs, errors.New("telegram_token and telegram_chat_id must be set together"))
	}
	if c.RedisAddr != "" && c.SettingsCacheTTL <= 0 {
		errs = append(errs, errors.New("settings_cache_ttl must be positive"))
	}
	if _, err := ParseSchedule(c.ScanCron); err != nil {
		errs = append(errs, fmt.Errorf("scan_cron: %w", err))
	}
	if _, err := c.ParseUsers(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Holidays(); err != nil {
		errs = append(errs, fmt.Errorf("market_holidays: %w", err))
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	return errors.Join(errs...)
}

// ParseSchedule parses a standard five-field cron spec (or a descriptor such
// as @daily).
func ParseSchedule(spec string) (cron.Schedule, error) {
	return cron.ParseStandard(spec)
}

// Holidays parses MarketHolidays.
func (c *Config) Holidays() ([]time.Time, error) {
	return markethours.ParseHolidays(c.MarketHolidays)
}

// ParseUsers parses ScanUsers into user ids.
func (c *Config) ParseUsers() ([]int64, error) {
	parts := strings.Split(c.ScanUsers, ",")
	users := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("scan_users: invalid user id %q", p)
		}
		users = append(users, n)
	}
	return users, nil
}
