package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/BibekSapkota1/Share-Project/internal/cycle"
	"github.com/BibekSapkota1/Share-Project/internal/eligibility"
	"github.com/BibekSapkota1/Share-Project/internal/indicator"
	"github.com/BibekSapkota1/Share-Project/internal/logger"
	"github.com/BibekSapkota1/Share-Project/internal/model"
	"github.com/BibekSapkota1/Share-Project/internal/signal"
)

// eligibleFunc answers the BUY gate for (symbol, date).
type eligibleFunc func(symbol string, date time.Time) bool

// ScanSymbol evaluates the latest bar of symbol for userID against st.
// While a cycle is OPEN and the scan holds, the bar is tracked and the stop
// raised on a new high. A SELL is reported, not executed.
func (s *Service) ScanSymbol(ctx context.Context, userID int64, symbol string, st model.Settings) (*model.ScanResult, error) {
	var filter *eligibility.Filter
	lazy := func(sym string, date time.Time) bool {
		if filter == nil {
			f, err := s.Eligibility(ctx)
			if err != nil {
				slog.Warn("eligibility unavailable", logger.Attrs(ctx, "symbol", sym, "err", err)...)
				return false
			}
			filter = f
		}
		return filter.IsEligible(sym, date)
	}
	return s.scanSymbol(ctx, userID, symbol, st, lazy)
}

func (s *Service) scanSymbol(ctx context.Context, userID int64, symbol string, st model.Settings, eligible eligibleFunc) (*model.ScanResult, error) {
	bars, err := s.bars(ctx, symbol)
	if err != nil {
		return nil, err
	}
	series := indicator.RSISeries(model.Closes(bars), st.RSIPeriod)
	last := bars[len(bars)-1]
	rsi := indicator.Last(series)

	open, err := s.openCycle(ctx, userID, symbol)
	if err != nil {
		return nil, fmt.Errorf("open cycle %s: %w", symbol, err)
	}

	res := &model.ScanResult{
		Symbol:       symbol,
		Date:         last.DayKey(),
		CurrentPrice: last.Close,
		HasOpenCycle: open != nil,
	}
	if indicator.Defined(rsi) {
		v := rsi
		res.CurrentRSI = &v
	}

	// An undefined RSI leaves the stop untouched.
	track := open != nil && indicator.Defined(rsi)
	if track && s.cfg.TSLMode == TSLHistory {
		raised, err := s.catchUp(ctx, open, bars[:len(bars)-1], st.TSLFraction)
		if err != nil {
			return nil, err
		}
		if raised != nil {
			open = &raised.Cycle
			res.TSLRaised = raised.NewHigh
		}
	}

	d := signal.Decide(signal.Input{
		RSI:        rsi,
		Price:      last.Close,
		Open:       open,
		Eligible:   func() bool { return eligible(symbol, last.Date) },
		Thresholds: signal.ThresholdsOf(st),
	})
	res.Signal = d.Signal
	res.SignalClass = d.Signal.Class()
	res.SellReason = d.SellReason

	if track && d.Signal == model.SignalHold {
		tr, err := s.track(ctx, userID, symbol, []model.PricePoint{{Date: last.Date, Close: last.Close}}, st.TSLFraction)
		if err != nil {
			return nil, err
		}
		open = &tr.Cycle
		res.TSLRaised = res.TSLRaised || tr.NewHigh
	}
	if open != nil {
		res.OpenCycle = cycle.View(open, last.Close)
	}

	s.prom.ObserveScan(d.Signal)
	return res, nil
}

// catchUp raises the high-water mark from closes after the cycle's last
// tracked date. It returns nil when there is nothing to apply.
func (s *Service) catchUp(ctx context.Context, open *model.TradeCycle, prior []model.PriceBar, fraction float64) (*model.TrackResult, error) {
	records, err := s.Tracking(ctx, open.UserID, open.ID)
	if err != nil {
		return nil, fmt.Errorf("tracking %s: %w", open.Symbol, err)
	}
	since := open.BuyDate
	if n := len(records); n > 0 && records[n-1].Date.After(since) {
		since = records[n-1].Date
	}

	var points []model.PricePoint
	for _, b := range prior {
		if model.Day(b.Date).After(since) {
			points = append(points, model.PricePoint{Date: b.Date, Close: b.Close})
		}
	}
	if len(points) == 0 {
		return nil, nil
	}
	return s.track(ctx, open.UserID, open.Symbol, points, fraction)
}

func (s *Service) track(ctx context.Context, userID int64, symbol string, points []model.PricePoint, fraction float64) (*model.TrackResult, error) {
	tctx, cancel := s.io(ctx)
	defer cancel()
	start := time.Now()
	tr, err := s.store.UpdateTSL(tctx, model.TrackRequest{
		UserID:      userID,
		Symbol:      symbol,
		Points:      points,
		TSLFraction: fraction,
	})
	s.prom.ObserveStore("update_tsl", start)
	if err != nil {
		return nil, fmt.Errorf("update tsl %s: %w", symbol, err)
	}
	if tr.NewHigh {
		s.prom.TSLRaised()
		s.publish(ctx, model.EventTSLRaised, tr.Cycle)
	}
	return tr, nil
}

// ScanUniverse scans every symbol for userID with bounded parallelism. A
// symbol whose evaluation fails is logged, counted in Summary.Failed and
// left out of the results; the scan carries on.
func (s *Service) ScanUniverse(ctx context.Context, userID int64) (*model.UniverseScan, error) {
	ctx = logger.EnsureTraceID(ctx, fmt.Sprintf("scan-u%d", userID))
	start := s.now()

	st, err := s.Settings(ctx, userID)
	if err != nil {
		return nil, err
	}
	symbols, err := s.Symbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}
	filter, err := s.Eligibility(ctx)
	if err != nil {
		// Fail closed: nothing is eligible, exits still evaluate.
		slog.Warn("eligibility unavailable, buys disabled for this scan", logger.Attrs(ctx, "user_id", userID, "err", err)...)
	}

	results := make([]*model.ScanResult, len(symbols))
	var failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i, sym := range symbols {
		g.Go(func() error {
			res, err := s.scanSymbol(gctx, userID, sym, st, filter.IsEligible)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failed.Add(1)
				slog.Warn("symbol scan failed", logger.Attrs(gctx, "symbol", sym, "user_id", userID, "err", err)...)
				return nil
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &model.UniverseScan{
		UserID:    userID,
		ScannedAt: start,
		Settings:  st,
		Symbols:   make([]model.ScanResult, 0, len(symbols)),
	}
	for _, r := range results {
		if r == nil {
			continue
		}
		out.Symbols = append(out.Symbols, *r)
		out.Summary.Add(r)
	}
	out.Summary.Failed = int(failed.Load())
	out.Summary.Total = len(out.Symbols)

	s.prom.ObserveUniverseScan(s.now().Sub(start), out.Summary.Failed)
	slog.Info("universe scan complete", logger.Attrs(ctx,
		"user_id", userID,
		"symbols", out.Summary.Total,
		"buy", out.Summary.Buy,
		"sell", out.Summary.Sell,
		"failed", out.Summary.Failed,
	)...)
	return out, nil
}
