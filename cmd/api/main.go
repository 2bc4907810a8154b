package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BibekSapkota1/Share-Project/config"
	"github.com/BibekSapkota1/Share-Project/internal/app"
	"github.com/BibekSapkota1/Share-Project/internal/gateway"
	"github.com/BibekSapkota1/Share-Project/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}
	level, _ := logger.ParseLevel(cfg.LogLevel)
	logger.Init("api", level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := run(ctx, cfg); err != nil {
		slog.Error("api stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	// Without Redis the engine publishes straight into the hub.
	hub := gateway.NewHub(1000, nil)
	a, err := app.New(cfg, app.Options{LocalEvents: hub})
	if err != nil {
		return err
	}
	defer a.Close()
	hub.Instrument(a.Metrics)

	if a.Redis != nil {
		// Events from every API and scanner process arrive over Redis.
		go hub.Run(ctx, a.Redis)
	}

	api := &gateway.API{
		Engine:   a.Engine,
		Hub:      hub,
		Settings: a.Settings,
		Calendar: a.Calendar,
	}
	if a.Cache != nil {
		api.Cache = a.Cache
	}

	a.StartHealth(ctx, 15*time.Second)
	ms := a.MetricsServer()
	ms.Start()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("api listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	slog.Info("shutting down")
	shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutCancel()
	ms.Stop(shutCtx)
	return srv.Shutdown(shutCtx)
}
