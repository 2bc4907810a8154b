// Package scheduler runs the periodic universe scan: on each cron tick it
// scans every configured user, optionally executes the BUY and SELL
// decisions, and sends an alert for anything actionable.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/BibekSapkota1/Share-Project/internal/logger"
	"github.com/BibekSapkota1/Share-Project/internal/markethours"
	"github.com/BibekSapkota1/Share-Project/internal/metrics"
	"github.com/BibekSapkota1/Share-Project/internal/model"
	"github.com/BibekSapkota1/Share-Project/internal/notification"
)

// Scanner is the part of the engine the scheduler drives.
type Scanner interface {
	ScanUniverse(ctx context.Context, userID int64) (*model.UniverseScan, error)
	Act(ctx context.Context, userID int64, res *model.ScanResult) (*model.TradeCycle, error)
}

// Config configures a Scheduler.
type Config struct {
	Spec            string  // five-field cron spec, evaluated in NPT
	Users           []int64 // users scanned on every tick
	AutoTrade       bool    // execute BUY/SELL decisions
	MarketHoursOnly bool    // skip ticks outside the trading session
}

// Scheduler owns the cron and the scan task.
type Scheduler struct {
	cron     *cron.Cron
	cfg      Config
	scanner  Scanner
	calendar *markethours.Calendar
	notifier notification.Notifier
	health   *metrics.HealthStatus

	ctx     context.Context
	running sync.Mutex
	now     func() time.Time
}

// New creates a Scheduler. notifier and health may be nil.
func New(ctx context.Context, cfg Config, scanner Scanner, cal *markethours.Calendar, n notification.Notifier, health *metrics.HealthStatus) *Scheduler {
	if cal == nil {
		cal = markethours.NewCalendar()
	}
	if n == nil {
		n = notification.LogNotifier{}
	}
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(markethours.NPT)),
		cfg:      cfg,
		scanner:  scanner,
		calendar: cal,
		notifier: n,
		health:   health,
		ctx:      ctx,
		now:      time.Now,
	}
}

// Register adds the scan task for cfg.Spec.
func (s *Scheduler) Register() error {
	if _, err := s.cron.AddFunc(s.cfg.Spec, s.tick); err != nil {
		return fmt.Errorf("register scan task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("scheduler started", "spec", s.cfg.Spec, "users", s.cfg.Users, "auto_trade", s.cfg.AutoTrade)
}

// Stop stops the cron and waits for a running scan to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	slog.Info("scheduler stopped")
}

func (s *Scheduler) tick() {
	now := s.now()
	if !s.calendar.IsTradingDay(now) {
		slog.Info("scan skipped: not a trading day", "day", now.In(markethours.NPT).Format(model.DateLayout))
		return
	}
	if s.cfg.MarketHoursOnly && !s.calendar.IsMarketOpen(now) {
		slog.Info("scan skipped", "status", s.calendar.StatusString(now))
		return
	}
	if _, err := s.RunNow(s.ctx); err != nil {
		slog.Error("scheduled scan failed", "err", err)
	}
}

// Result is the outcome of one run for one user.
type Result struct {
	UserID int64
	Scan   *model.UniverseScan
	Trades []*model.TradeCycle
	Err    error
}

// RunNow scans every user immediately. Overlapping runs are skipped.
func (s *Scheduler) RunNow(ctx context.Context) ([]Result, error) {
	if !s.running.TryLock() {
		slog.Warn("scan already running, tick skipped")
		return nil, nil
	}
	defer s.running.Unlock()

	results := make([]Result, 0, len(s.cfg.Users))
	for _, user := range s.cfg.Users {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, s.runUser(ctx, user))
	}
	if s.health != nil {
		s.health.SetLastScan(s.now())
	}
	return results, nil
}

func (s *Scheduler) runUser(ctx context.Context, userID int64) Result {
	ctx = logger.WithTraceID(ctx, logger.GenerateTraceID(fmt.Sprintf("cron-u%d", userID), s.now()))
	res := Result{UserID: userID}

	scan, err := s.scanner.ScanUniverse(ctx, userID)
	if err != nil {
		res.Err = err
		slog.Error("scan failed", logger.Attrs(ctx, "user_id", userID, "err", err)...)
		return res
	}
	res.Scan = scan
	slog.Info("scan complete", logger.Attrs(ctx,
		"user_id", userID, "total", scan.Summary.Total, "buy", scan.Summary.Buy,
		"sell", scan.Summary.Sell, "failed", scan.Summary.Failed)...)

	if alert, ok := notification.ScanAlert(scan); ok {
		s.send(ctx, alert)
	}
	if !s.cfg.AutoTrade {
		return res
	}

	for i := range scan.Symbols {
		r := &scan.Symbols[i]
		if r.Signal != model.SignalBuy && r.Signal != model.SignalSell {
			continue
		}
		c, err := s.scanner.Act(ctx, userID, r)
		if err != nil {
			// A cycle opened or closed elsewhere since the scan is not a failure.
			slog.Warn("auto trade skipped", logger.Attrs(ctx, "user_id", userID, "symbol", r.Symbol, "signal", r.Signal, "err", err)...)
			continue
		}
		if c != nil {
			res.Trades = append(res.Trades, c)
			s.send(ctx, notification.CycleAlert(c))
		}
	}
	return res
}

func (s *Scheduler) send(ctx context.Context, alert notification.Alert) {
	if err := s.notifier.Send(ctx, alert); err != nil {
		slog.Warn("alert not delivered", logger.Attrs(ctx, "title", alert.Title, "err", err)...)
	}
}
