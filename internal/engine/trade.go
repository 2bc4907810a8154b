package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BibekSapkota1/Share-Project/internal/cycle"
	"github.com/BibekSapkota1/Share-Project/internal/indicator"
	"github.com/BibekSapkota1/Share-Project/internal/logger"
	"github.com/BibekSapkota1/Share-Project/internal/model"
)

// TradeRequest is a caller-driven buy or sell. A zero Date means the
// symbol's latest bar; a zero Price is taken from the close on Date, and RSI
// with it.
type TradeRequest struct {
	UserID int64     `json:"user_id"`
	Symbol string    `json:"symbol"`
	Date   time.Time `json:"date"`
	Price  float64   `json:"price"`
	RSI    float64   `json:"rsi"`
	Reason string    `json:"reason,omitempty"`
}

// fill completes req from the price history when Date or Price is missing.
// A Date with no bar fails with InvalidDate rather than borrowing another
// day's close.
func (s *Service) fill(ctx context.Context, req *TradeRequest, st model.Settings) error {
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	if req.Symbol == "" {
		return model.NewError(model.CodeInvalidRequest, "", "symbol is required")
	}
	if !req.Date.IsZero() && req.Price > 0 {
		return nil
	}
	bars, err := s.bars(ctx, req.Symbol)
	if err != nil {
		return err
	}

	at := len(bars) - 1
	if req.Date.IsZero() {
		req.Date = bars[at].Date
	} else {
		day := model.Day(req.Date)
		at = -1
		for i := range bars {
			if model.Day(bars[i].Date).Equal(day) {
				at = i
				break
			}
		}
		if at < 0 {
			return model.NewError(model.CodeInvalidDate, req.Symbol,
				"no price on %s to fill the trade from", day.Format(model.DateLayout))
		}
	}

	if req.Price <= 0 {
		req.Price = bars[at].Close
		rsi := indicator.RSISeries(model.Closes(bars), st.RSIPeriod)
		if indicator.Defined(rsi[at]) {
			req.RSI = rsi[at]
		}
	}
	return nil
}

// OpenPosition opens the next trade cycle for (user, symbol). It fails with
// CycleAlreadyOpen when one is open and IneligibleSymbol when the symbol did
// not rank top-N by turnover on both prior trading days.
func (s *Service) OpenPosition(ctx context.Context, req TradeRequest) (*model.TradeCycle, error) {
	st, err := s.Settings(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.fill(ctx, &req, st); err != nil {
		return nil, err
	}

	open, err := s.openCycle(ctx, req.UserID, req.Symbol)
	if err != nil {
		return nil, fmt.Errorf("open cycle %s: %w", req.Symbol, err)
	}
	if open != nil {
		return nil, model.NewError(model.CodeCycleAlreadyOpen, req.Symbol, "cycle %d is already open", open.CycleNumber)
	}

	filter, err := s.Eligibility(ctx)
	if err != nil {
		slog.Warn("eligibility unavailable", logger.Attrs(ctx, "symbol", req.Symbol, "err", err)...)
	}
	if !filter.IsEligible(req.Symbol, req.Date) {
		return nil, model.NewError(model.CodeIneligibleSymbol, req.Symbol,
			"not top %d by turnover on both trading days before %s", s.cfg.TopN, model.Day(req.Date).Format(model.DateLayout))
	}

	sctx, cancel := s.io(ctx)
	defer cancel()
	start := time.Now()
	c, err := s.store.CreateCycle(sctx, model.OpenRequest{
		UserID:      req.UserID,
		Symbol:      req.Symbol,
		Date:        req.Date,
		Price:       req.Price,
		RSI:         req.RSI,
		TSLFraction: st.TSLFraction,
	})
	s.prom.ObserveStore("create_cycle", start)
	if err != nil {
		return nil, err
	}

	s.prom.CycleOpened(c.Symbol)
	s.publish(ctx, model.EventCycleOpened, *c)
	slog.Info("cycle opened", logger.Attrs(ctx,
		"user_id", c.UserID, "symbol", c.Symbol, "cycle", c.CycleNumber,
		"price", c.BuyPrice, "tsl", c.TSLTriggerPrice)...)
	return c, nil
}

// ClosePosition closes the OPEN cycle automatically. Reason may be empty
// (AUTOMATIC) or one of RSI and TSL.
func (s *Service) ClosePosition(ctx context.Context, req TradeRequest) (*model.TradeCycle, error) {
	return s.close(ctx, req, false)
}

// ManualSell closes the OPEN cycle with a caller-supplied reason. It fails
// with MissingSellReason when the reason is blank or an automatic code.
func (s *Service) ManualSell(ctx context.Context, req TradeRequest) (*model.TradeCycle, error) {
	return s.close(ctx, req, true)
}

func (s *Service) close(ctx context.Context, req TradeRequest, manual bool) (*model.TradeCycle, error) {
	// Reject a bad reason before touching history or the store.
	if _, err := cycle.ResolveReason(req.Reason, manual); err != nil {
		return nil, err
	}
	st, err := s.Settings(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.fill(ctx, &req, st); err != nil {
		return nil, err
	}

	sctx, cancel := s.io(ctx)
	defer cancel()
	start := time.Now()
	c, err := s.store.CloseCycle(sctx, model.CloseRequest{
		UserID: req.UserID,
		Symbol: req.Symbol,
		Date:   req.Date,
		Price:  req.Price,
		RSI:    req.RSI,
		Reason: req.Reason,
		Manual: manual,
	})
	s.prom.ObserveStore("close_cycle", start)
	if err != nil {
		return nil, err
	}

	s.prom.CycleClosed(c.SellReason)
	s.publish(ctx, model.EventCycleClosed, *c)
	slog.Info("cycle closed", logger.Attrs(ctx,
		"user_id", c.UserID, "symbol", c.Symbol, "cycle", c.CycleNumber,
		"reason", c.SellReason, "pl", *c.ProfitLoss)...)
	return c, nil
}

// Act executes a scan decision: BUY opens a cycle at the scanned bar, SELL
// closes the OPEN cycle with the scan's reason. Other signals are no-ops
// and return nil, nil.
func (s *Service) Act(ctx context.Context, userID int64, res *model.ScanResult) (*model.TradeCycle, error) {
	if res == nil {
		return nil, nil
	}
	date, err := model.ParseDay(res.Date)
	if err != nil {
		return nil, model.NewError(model.CodeInvalidDate, res.Symbol, "scan date %q", res.Date)
	}
	req := TradeRequest{UserID: userID, Symbol: res.Symbol, Date: date, Price: res.CurrentPrice}
	if res.CurrentRSI != nil {
		req.RSI = *res.CurrentRSI
	}

	switch res.Signal {
	case model.SignalBuy:
		return s.OpenPosition(ctx, req)
	case model.SignalSell:
		req.Reason = res.SellReason
		return s.ClosePosition(ctx, req)
	}
	return nil, nil
}
