// cmd/scanner runs the scheduled universe scan for the configured users and
// sends alerts for BUY and SELL signals.
//
// Usage:
//
//	go run ./cmd/scanner              # run on SCAN_CRON until interrupted
//	go run ./cmd/scanner --once       # scan now and exit
//	go run ./cmd/scanner --on-start   # scan now, then follow SCAN_CRON
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BibekSapkota1/Share-Project/config"
	"github.com/BibekSapkota1/Share-Project/internal/app"
	"github.com/BibekSapkota1/Share-Project/internal/logger"
	"github.com/BibekSapkota1/Share-Project/internal/notification"
	"github.com/BibekSapkota1/Share-Project/internal/scheduler"
)

func main() {
	once := flag.Bool("once", false, "Scan immediately and exit")
	onStart := flag.Bool("on-start", false, "Scan immediately, then follow the schedule")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}
	level, _ := logger.ParseLevel(cfg.LogLevel)
	logger.Init("scanner", level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := run(ctx, cfg, *once, *onStart); err != nil {
		slog.Error("scanner stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, once, onStart bool) error {
	users, err := cfg.ParseUsers()
	if err != nil {
		return err
	}

	a, err := app.New(cfg, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	notifier := notification.New(notification.Config{
		WebhookURL:    cfg.NotifyWebhookURL,
		TelegramToken: cfg.TelegramToken,
		TelegramChat:  cfg.TelegramChatID,
		MaxRetries:    cfg.NotifyRetries,
	})

	sched := scheduler.New(ctx, scheduler.Config{
		Spec:            cfg.ScanCron,
		Users:           users,
		AutoTrade:       cfg.ScanAutoTrade,
		MarketHoursOnly: cfg.MarketHoursOnly,
	}, a.Engine, a.Calendar, notifier, a.Health)

	if once {
		_, err := sched.RunNow(ctx)
		return err
	}

	if err := sched.Register(); err != nil {
		return err
	}

	a.StartHealth(ctx, 30*time.Second)
	ms := a.MetricsServer()
	ms.Start()

	if onStart {
		if _, err := sched.RunNow(ctx); err != nil {
			slog.Error("startup scan failed", "err", err)
		}
	}
	sched.Start()

	<-ctx.Done()
	slog.Info("shutting down")
	sched.Stop()

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutCancel()
	ms.Stop(shutCtx)
	return nil
}
