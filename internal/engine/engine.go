// Package engine is the trading core facade. It ties the RSI series, the
// eligibility filter, the signal table and the trade-cycle store together
// behind the operations the API, the scanner and the CLI call:
//
//	ComputeRSI, ScanSymbol, ScanUniverse, AnalyzeSymbol,
//	OpenPosition, ClosePosition, ManualSell
//
// Indicator and eligibility work is read-only and runs per symbol in
// parallel. Every cycle mutation is a single store transaction.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BibekSapkota1/Share-Project/internal/eligibility"
	"github.com/BibekSapkota1/Share-Project/internal/indicator"
	"github.com/BibekSapkota1/Share-Project/internal/logger"
	"github.com/BibekSapkota1/Share-Project/internal/metrics"
	"github.com/BibekSapkota1/Share-Project/internal/model"
)

// TSLMode selects how an OPEN cycle's high-water mark follows prices.
type TSLMode string

const (
	// TSLHistory raises the high from every close since the last tracked
	// date before evaluating the scanned bar.
	TSLHistory TSLMode = "history"
	// TSLScan only ever considers the scanned bar.
	TSLScan TSLMode = "scan"
)

// Config tunes the engine.
type Config struct {
	TopN      int           // eligibility rank cut-off (default 15)
	Workers   int           // parallel symbols in a universe scan (default 8)
	IOTimeout time.Duration // bound on each history / store call (default 10s)
	TSLMode   TSLMode       // default TSLHistory
}

func (c Config) withDefaults() Config {
	if c.TopN <= 0 {
		c.TopN = eligibility.DefaultTopN
	}
	if c.Workers <= 0 {
		c.Workers = 8
	}
	if c.IOTimeout <= 0 {
		c.IOTimeout = 10 * time.Second
	}
	if c.TSLMode != TSLScan {
		c.TSLMode = TSLHistory
	}
	return c
}

// Deps are the engine's collaborators. Events and Metrics are optional.
type Deps struct {
	History  model.HistoryProvider
	Settings model.SettingsProvider
	Store    model.CycleStore
	Events   model.EventPublisher
	Metrics  *metrics.Metrics
}

// Service is the trading core.
type Service struct {
	cfg      Config
	history  model.HistoryProvider
	settings model.SettingsProvider
	store    model.CycleStore
	events   model.EventPublisher
	prom     *metrics.Metrics
	now      func() time.Time
}

// New creates a Service. History, Settings and Store are required.
func New(deps Deps, cfg Config) (*Service, error) {
	if deps.History == nil || deps.Settings == nil || deps.Store == nil {
		return nil, fmt.Errorf("engine: history, settings and store are required")
	}
	return &Service{
		cfg:      cfg.withDefaults(),
		history:  deps.History,
		settings: deps.Settings,
		store:    deps.Store,
		events:   deps.Events,
		prom:     deps.Metrics,
		now:      time.Now,
	}, nil
}

// Config returns the effective configuration.
func (s *Service) Config() Config { return s.cfg }

// ComputeRSI returns the Wilder RSI series of prices.
func ComputeRSI(prices []float64, period int) []float64 {
	return indicator.RSISeries(prices, period)
}

// io bounds one external call.
func (s *Service) io(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.IOTimeout)
}

// Settings resolves a user's settings.
func (s *Service) Settings(ctx context.Context, userID int64) (model.Settings, error) {
	ctx, cancel := s.io(ctx)
	defer cancel()
	st, err := s.settings.GetSettings(ctx, userID)
	if err != nil {
		return model.Settings{}, fmt.Errorf("settings for user %d: %w", userID, err)
	}
	return st, nil
}

// Symbols lists every symbol with price history.
func (s *Service) Symbols(ctx context.Context) ([]string, error) {
	ctx, cancel := s.io(ctx)
	defer cancel()
	return s.history.Symbols(ctx)
}

func (s *Service) bars(ctx context.Context, symbol string) ([]model.PriceBar, error) {
	ctx, cancel := s.io(ctx)
	defer cancel()
	bars, err := s.history.History(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, model.NewError(model.CodeNoData, symbol, "no price history")
	}
	return bars, nil
}

// Eligibility builds the turnover filter over the whole universe.
func (s *Service) Eligibility(ctx context.Context) (*eligibility.Filter, error) {
	ctx, cancel := s.io(ctx)
	defer cancel()
	universe, err := s.history.Universe(ctx)
	if err != nil {
		return nil, fmt.Errorf("load universe: %w", err)
	}
	return eligibility.New(universe, s.cfg.TopN), nil
}

func (s *Service) openCycle(ctx context.Context, userID int64, symbol string) (*model.TradeCycle, error) {
	ctx, cancel := s.io(ctx)
	defer cancel()
	defer s.prom.ObserveStore("get_open", time.Now())
	return s.store.GetOpenCycle(ctx, userID, symbol)
}

// Cycles lists a user's cycles newest first; symbol "" lists all.
func (s *Service) Cycles(ctx context.Context, userID int64, symbol string) ([]model.TradeCycle, error) {
	ctx, cancel := s.io(ctx)
	defer cancel()
	defer s.prom.ObserveStore("list_cycles", time.Now())
	return s.store.ListCycles(ctx, userID, symbol)
}

// Tracking returns a cycle's price tracking history.
func (s *Service) Tracking(ctx context.Context, userID, cycleID int64) ([]model.PriceTrackingRecord, error) {
	ctx, cancel := s.io(ctx)
	defer cancel()
	defer s.prom.ObserveStore("list_tracking", time.Now())
	return s.store.ListTracking(ctx, userID, cycleID)
}

func (s *Service) publish(ctx context.Context, typ model.CycleEventType, c model.TradeCycle) {
	if s.events == nil {
		return
	}
	ctx, cancel := s.io(ctx)
	defer cancel()
	evt := model.CycleEvent{Type: typ, Cycle: c, TS: s.now()}
	if err := s.events.PublishCycleEvent(ctx, evt); err != nil {
		slog.Warn("cycle event not published", logger.Attrs(ctx,
			"type", typ, "symbol", c.Symbol, "user_id", c.UserID, "err", err)...)
	}
}
