// Package app wires configuration into the running pieces shared by every
// binary: history, stores, settings, the optional Redis layer, metrics and
// the engine.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/BibekSapkota1/Share-Project/config"
	"github.com/BibekSapkota1/Share-Project/internal/engine"
	"github.com/BibekSapkota1/Share-Project/internal/history"
	"github.com/BibekSapkota1/Share-Project/internal/markethours"
	"github.com/BibekSapkota1/Share-Project/internal/metrics"
	"github.com/BibekSapkota1/Share-Project/internal/model"
	"github.com/BibekSapkota1/Share-Project/internal/settings"
	"github.com/BibekSapkota1/Share-Project/internal/store/memory"
	redisstore "github.com/BibekSapkota1/Share-Project/internal/store/redis"
	sqlitestore "github.com/BibekSapkota1/Share-Project/internal/store/sqlite"
)

// settingsStore is what both cycle-store backends offer for settings.
type settingsStore interface {
	settings.Source
	settings.Writer
}

// Options adjust wiring per binary.
type Options struct {
	// LocalEvents receives cycle events when Redis is not configured, e.g.
	// the API's websocket hub. Ignored when Redis is up.
	LocalEvents model.EventPublisher
}

// App holds the wired dependencies.
type App struct {
	Config   *config.Config
	Engine   *engine.Service
	Store    model.CycleStore
	Settings settings.Writer
	Cache    *redisstore.SettingsCache // nil without Redis
	Redis    *redisstore.Client        // nil without Redis
	Calendar *markethours.Calendar

	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Health   *metrics.HealthStatus

	storePinger metrics.Pinger
}

// New opens every dependency named by cfg. A Redis connection failure is
// logged and the app runs without the cache and event fan-out.
func New(cfg *config.Config, opts Options) (*App, error) {
	a := &App{
		Config:   cfg,
		Registry: prometheus.NewRegistry(),
		Health:   metrics.NewHealthStatus(),
	}
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = metrics.NewMetrics(a.Registry)

	holidays, err := cfg.Holidays()
	if err != nil {
		return nil, err
	}
	a.Calendar = markethours.NewCalendar(holidays...)

	// ---- Cycle store + settings tables ----
	var src settingsStore
	switch cfg.StoreBackend {
	case "memory":
		mem := memory.New()
		mem.SeedGlobalDefaults(settings.Encode(model.DefaultSettings()))
		a.Store, src = mem, mem
		slog.Warn("using in-memory cycle store; cycles are lost on exit")
	default:
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
		sq, err := sqlitestore.New(sqlitestore.Config{DBPath: cfg.SQLitePath})
		if err != nil {
			return nil, err
		}
		a.Store, src, a.storePinger = sq, sq, sq
	}
	a.Settings = src

	var provider model.SettingsProvider = settings.NewResolver(src)
	events := opts.LocalEvents

	// ---- Optional Redis ----
	if cfg.RedisAddr != "" {
		a.Health.RedisEnabled = true
		client, err := redisstore.New(redisstore.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			slog.Warn("redis unavailable, continuing without cache and event fan-out", "err", err)
		} else {
			prom := a.Metrics
			client.Breaker().OnStateChange = func(from, to redisstore.State) {
				prom.BreakerState(int(to), to == redisstore.StateOpen)
				slog.Warn("redis circuit breaker", "from", from.String(), "to", to.String())
			}
			a.Redis = client
			a.Cache = redisstore.NewSettingsCache(client, provider, cfg.SettingsCacheTTL)
			provider = a.Cache
			events = redisstore.NewPublisher(client)
		}
	}

	// ---- Engine ----
	a.Engine, err = engine.New(engine.Deps{
		History:  history.NewCSVProvider(history.CSVConfig{Path: cfg.DataFile, Timeout: cfg.IOTimeout}),
		Settings: provider,
		Store:    a.Store,
		Events:   events,
		Metrics:  a.Metrics,
	}, engine.Config{
		TopN:      cfg.TopN,
		Workers:   cfg.ScanWorkers,
		IOTimeout: cfg.IOTimeout,
		TSLMode:   engine.TSLMode(cfg.TSLMode),
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	slog.Info("app wired",
		"store", cfg.StoreBackend, "data_file", cfg.DataFile,
		"redis", a.Redis != nil, "tsl_mode", cfg.TSLMode, "top_n", cfg.TopN)
	return a, nil
}

// StartHealth probes the store and Redis every interval until ctx ends.
func (a *App) StartHealth(ctx context.Context, interval time.Duration) {
	var redis metrics.Pinger
	if a.Redis != nil {
		redis = a.Redis
	}
	a.Health.StartLivenessChecker(ctx, a.storePinger, redis, interval)
}

// MetricsServer returns the /metrics + /healthz server on cfg.MetricsAddr.
func (a *App) MetricsServer() *metrics.Server {
	return metrics.NewServer(a.Config.MetricsAddr, a.Health, a.Registry)
}

// Close releases the store and Redis connection.
func (a *App) Close() {
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			slog.Warn("close store", "err", err)
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			slog.Warn("close redis", "err", err)
		}
	}
}
