// Package cycle implements the trade-cycle state machine as pure transitions
// over model.TradeCycle. Stores call these inside their own transactions so
// every backend applies identical rules.
//
//	(none) --Open--> OPEN --Track*--> OPEN --Close--> CLOSED
//
// CLOSED is terminal.
package cycle

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/BibekSapkota1/Share-Project/internal/model"
)

// Fraction returns f, or the default trailing distance when f is unset.
func Fraction(f float64) float64 {
	if f <= 0 || f >= 1 || math.IsNaN(f) {
		return model.DefaultTSLFraction
	}
	return f
}

// TSLPrice is the stop trigger for a high-water mark.
func TSLPrice(high, fraction float64) float64 {
	return high * (1 - Fraction(fraction))
}

func validPrice(p float64) bool {
	return p > 0 && !math.IsNaN(p) && !math.IsInf(p, 0)
}

// Open builds cycle number `number` from req, with the high-water mark at the
// buy price, and its initial new-high tracking record.
func Open(req model.OpenRequest, number int, now time.Time) (model.TradeCycle, model.PriceTrackingRecord, error) {
	if req.Symbol == "" {
		return model.TradeCycle{}, model.PriceTrackingRecord{}, model.NewError(model.CodeInvalidRequest, "", "symbol is required")
	}
	if req.Date.IsZero() {
		return model.TradeCycle{}, model.PriceTrackingRecord{}, model.NewError(model.CodeInvalidDate, req.Symbol, "buy date is required")
	}
	if !validPrice(req.Price) {
		return model.TradeCycle{}, model.PriceTrackingRecord{}, model.NewError(model.CodeInvalidRequest, req.Symbol, "invalid buy price %v", req.Price)
	}

	tsl := TSLPrice(req.Price, req.TSLFraction)
	c := model.TradeCycle{
		UserID:               req.UserID,
		Symbol:               req.Symbol,
		CycleNumber:          number,
		Status:               model.StatusOpen,
		BuyDate:              model.Day(req.Date),
		BuyPrice:             req.Price,
		BuyRSI:               req.RSI,
		HighestPriceAfterBuy: req.Price,
		TSLTriggerPrice:      tsl,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	rec := model.PriceTrackingRecord{
		Date:       c.BuyDate,
		ClosePrice: req.Price,
		TSLPrice:   tsl,
		IsNewHigh:  true,
		CreatedAt:  now,
	}
	return c, rec, nil
}

// Track evaluates an OPEN cycle against one close. A close above the
// high-water mark raises it and the stop; anything else leaves both as they
// are. The returned record reflects the stop after evaluation.
func Track(c *model.TradeCycle, p model.PricePoint, fraction float64, now time.Time) (model.PriceTrackingRecord, error) {
	if c == nil || !c.IsOpen() {
		return model.PriceTrackingRecord{}, model.NewError(model.CodeNoOpenCycle, symbolOf(c), "cannot track a closed cycle")
	}
	if !validPrice(p.Close) {
		return model.PriceTrackingRecord{}, model.NewError(model.CodeInvalidRequest, c.Symbol, "invalid close %v", p.Close)
	}
	if p.Date.IsZero() {
		return model.PriceTrackingRecord{}, model.NewError(model.CodeInvalidDate, c.Symbol, "tracking date is required")
	}

	newHigh := p.Close > c.HighestPriceAfterBuy
	if newHigh {
		c.HighestPriceAfterBuy = p.Close
		c.TSLTriggerPrice = TSLPrice(p.Close, fraction)
		c.UpdatedAt = now
	}
	return model.PriceTrackingRecord{
		CycleID:    c.ID,
		Date:       model.Day(p.Date),
		ClosePrice: p.Close,
		TSLPrice:   c.TSLTriggerPrice,
		IsNewHigh:  newHigh,
		CreatedAt:  now,
	}, nil
}

// Apply runs Track for each point of req in order.
func Apply(c *model.TradeCycle, req model.TrackRequest, now time.Time) (*model.TrackResult, error) {
	res := &model.TrackResult{}
	for _, p := range req.Points {
		rec, err := Track(c, p, req.TSLFraction, now)
		if err != nil {
			return nil, err
		}
		res.NewHigh = res.NewHigh || rec.IsNewHigh
		res.Records = append(res.Records, rec)
	}
	res.Cycle = *c
	return res, nil
}

// ResolveReason validates a sell reason. Manual closes need free text that is
// not one of the automatic codes. Automatic closes default to AUTOMATIC and
// must use one of the codes.
func ResolveReason(reason string, manual bool) (string, error) {
	r := strings.TrimSpace(reason)
	if manual {
		if r == "" {
			return "", model.NewError(model.CodeMissingSellReason, "", "manual sell requires a reason")
		}
		if model.IsAutomaticReason(strings.ToUpper(r)) {
			return "", model.NewError(model.CodeMissingSellReason, "", "%q is reserved for automatic sells", r)
		}
		return r, nil
	}

	if r == "" {
		return model.ReasonAutomatic, nil
	}
	r = strings.ToUpper(r)
	if !model.IsAutomaticReason(r) {
		return "", model.NewError(model.CodeInvalidRequest, "", "unknown automatic sell reason %q", reason)
	}
	return r, nil
}

// Close transitions an OPEN cycle to CLOSED, freezing the sell fields and
// computing profit/loss. It fails with NoOpenCycle on a closed cycle.
func Close(c *model.TradeCycle, req model.CloseRequest, now time.Time) error {
	if c == nil || !c.IsOpen() {
		return model.NewError(model.CodeNoOpenCycle, req.Symbol, "no open cycle to sell")
	}
	reason, err := ResolveReason(req.Reason, req.Manual)
	if err != nil {
		if e, ok := err.(*model.Error); ok {
			e.Symbol = c.Symbol
		}
		return err
	}
	if req.Date.IsZero() {
		return model.NewError(model.CodeInvalidDate, c.Symbol, "sell date is required")
	}
	sellDate := model.Day(req.Date)
	if sellDate.Before(c.BuyDate) {
		return model.NewError(model.CodeInvalidDate, c.Symbol, "sell date %s before buy date %s",
			sellDate.Format(model.DateLayout), c.BuyDate.Format(model.DateLayout))
	}
	if !validPrice(req.Price) {
		return model.NewError(model.CodeInvalidRequest, c.Symbol, "invalid sell price %v", req.Price)
	}

	pl, plPct := ProfitLoss(c.BuyPrice, req.Price)
	price, rsi := req.Price, req.RSI

	c.Status = model.StatusClosed
	c.SellDate = &sellDate
	c.SellPrice = &price
	c.SellRSI = &rsi
	c.SellReason = reason
	c.ProfitLoss = &pl
	c.ProfitLossPercent = &plPct
	c.UpdatedAt = now
	return nil
}

// ProfitLoss returns sell−buy and (sell−buy)/buy×100 computed in decimal so
// 10.1−10 is 0.1 rather than 0.09999999999999964.
func ProfitLoss(buy, sell float64) (pl, pct float64) {
	b := decimal.NewFromFloat(buy)
	diff := decimal.NewFromFloat(sell).Sub(b)
	pl = diff.InexactFloat64()
	if b.IsZero() {
		return pl, 0
	}
	pct = diff.Div(b).Mul(decimal.NewFromInt(100)).InexactFloat64()
	return pl, pct
}

// UnrealizedPercent is the open profit/loss of c at price, in percent,
// rounded to 2 dp.
func UnrealizedPercent(c *model.TradeCycle, price float64) float64 {
	if c == nil || c.BuyPrice == 0 {
		return 0
	}
	_, pct := ProfitLoss(c.BuyPrice, price)
	return decimal.NewFromFloat(pct).Round(2).InexactFloat64()
}

// View summarises an OPEN cycle for scan results.
func View(c *model.TradeCycle, price float64) *model.OpenCycleView {
	if c == nil {
		return nil
	}
	return &model.OpenCycleView{
		CycleNumber:   c.CycleNumber,
		BuyDate:       c.BuyDate.Format(model.DateLayout),
		BuyPrice:      c.BuyPrice,
		HighestPrice:  c.HighestPriceAfterBuy,
		TSLPrice:      c.TSLTriggerPrice,
		UnrealizedPnL: UnrealizedPercent(c, price),
	}
}

func symbolOf(c *model.TradeCycle) string {
	if c == nil {
		return ""
	}
	return c.Symbol
}
