package notification

import (
	"fmt"
	"strings"

	"github.com/BibekSapkota1/Share-Project/internal/model"
)

// ScanAlert summarises the actionable rows of a universe scan. It reports
// false when there is nothing to act on.
func ScanAlert(scan *model.UniverseScan) (Alert, bool) {
	var buys, sells, symbols []string
	for _, r := range scan.Symbols {
		switch r.Signal {
		case model.SignalBuy:
			symbols = append(symbols, r.Symbol)
			buys = append(buys, fmt.Sprintf("%s @ %.2f (RSI %s)", r.Symbol, r.CurrentPrice, rsiText(r.CurrentRSI)))
		case model.SignalSell:
			symbols = append(symbols, r.Symbol)
			sells = append(sells, fmt.Sprintf("%s @ %.2f [%s]", r.Symbol, r.CurrentPrice, r.SellReason))
		}
	}
	if len(buys) == 0 && len(sells) == 0 {
		return Alert{}, false
	}

	var b strings.Builder
	fmt.Fprintf(&b, "User %d, %d symbols scanned, %d holdings\n", scan.UserID, scan.Summary.Total, scan.Summary.Holdings)
	if len(buys) > 0 {
		fmt.Fprintf(&b, "\nBUY\n%s\n", strings.Join(buys, "\n"))
	}
	if len(sells) > 0 {
		fmt.Fprintf(&b, "\nSELL\n%s\n", strings.Join(sells, "\n"))
	}
	if scan.Summary.Failed > 0 {
		fmt.Fprintf(&b, "\n%d symbols failed to evaluate\n", scan.Summary.Failed)
	}

	level := AlertInfo
	if len(sells) > 0 {
		level = AlertWarning
	}
	return Alert{
		Kind:    KindScan,
		Level:   level,
		Title:   fmt.Sprintf("RSI scan: %d buy, %d sell", len(buys), len(sells)),
		Message: strings.TrimRight(b.String(), "\n"),
		UserID:  scan.UserID,
		Symbols: symbols,
	}, true
}

// CycleAlert describes an executed trade.
func CycleAlert(c *model.TradeCycle) Alert {
	if c.IsOpen() {
		return Alert{
			Kind:    KindTrade,
			UserID:  c.UserID,
			Symbols: []string{c.Symbol},
			Level:   AlertInfo,
			Title:   fmt.Sprintf("Bought %s", c.Symbol),
			Message: fmt.Sprintf("Cycle %d opened at %.2f on %s, TSL %.2f",
				c.CycleNumber, c.BuyPrice, c.BuyDate.Format(model.DateLayout), c.TSLTriggerPrice),
		}
	}
	msg := fmt.Sprintf("Cycle %d closed (%s)", c.CycleNumber, c.SellReason)
	if c.SellPrice != nil && c.ProfitLoss != nil && c.ProfitLossPercent != nil {
		msg = fmt.Sprintf("Cycle %d closed at %.2f (%s), P/L %.2f (%.2f%%)",
			c.CycleNumber, *c.SellPrice, c.SellReason, *c.ProfitLoss, *c.ProfitLossPercent)
	}
	return Alert{
		Kind:    KindTrade,
		Level:   AlertWarning,
		Title:   fmt.Sprintf("Sold %s", c.Symbol),
		Message: msg,
		UserID:  c.UserID,
		Symbols: []string{c.Symbol},
	}
}

func rsiText(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *v)
}
