// Package signal turns an RSI reading and the current trade-cycle state into
// discrete signals.
//
// Scan mode (Decide) yields an actionable BUY / SELL / HOLD / NEUTRAL for the
// latest bar. Analysis mode (Crossings, Latest) describes the whole history:
// threshold crossings plus an OVERBOUGHT / OVERSOLD / NEUTRAL label for the
// most recent value.
//
// The reading is trend-following: a rise above the upper
// threshold is a buy, a fall below the lower threshold is a sell.
package signal

import (
	"github.com/BibekSapkota1/Share-Project/internal/indicator"
	"github.com/BibekSapkota1/Share-Project/internal/model"
)

// Thresholds bound the neutral RSI band.
type Thresholds struct {
	Upper float64
	Lower float64
}

// ThresholdsOf extracts the thresholds from resolved settings.
func ThresholdsOf(s model.Settings) Thresholds {
	return Thresholds{Upper: s.UpperThreshold, Lower: s.LowerThreshold}
}

// Input is one scan evaluation for a symbol.
type Input struct {
	RSI   float64
	Price float64

	// Open is the OPEN cycle for (user, symbol), nil when there is none.
	Open *model.TradeCycle

	// Eligible is consulted only when a BUY is otherwise indicated.
	// A nil func means ineligible.
	Eligible func() bool

	Thresholds
}

// Decision is the outcome of a scan evaluation.
type Decision struct {
	Signal model.Signal

	// SellReason is ReasonRSI or ReasonTSL when Signal is SELL.
	SellReason string

	// NewHigh is set on HOLD when Price exceeds the cycle's high-water mark
	// and the trailing stop should be raised.
	NewHigh bool
}

// Decide applies the scan decision table.
//
//	OPEN cycle, rsi < lower          → SELL (RSI)
//	OPEN cycle, price < tsl trigger  → SELL (TSL)
//	OPEN cycle, price > highest      → HOLD, raise TSL
//	OPEN cycle, otherwise            → HOLD
//	no cycle, rsi > upper, eligible  → BUY
//	no cycle, otherwise              → NEUTRAL
//
// An undefined RSI is never compared against anything: an open cycle holds
// and no cycle stays neutral.
func Decide(in Input) Decision {
	if !indicator.Defined(in.RSI) {
		if in.Open != nil {
			return Decision{Signal: model.SignalHold}
		}
		return Decision{Signal: model.SignalNeutral}
	}

	if in.Open != nil {
		// RSI takes precedence when both exits fire.
		if in.RSI < in.Lower {
			return Decision{Signal: model.SignalSell, SellReason: model.ReasonRSI}
		}
		if in.Price < in.Open.TSLTriggerPrice {
			return Decision{Signal: model.SignalSell, SellReason: model.ReasonTSL}
		}
		return Decision{Signal: model.SignalHold, NewHigh: in.Price > in.Open.HighestPriceAfterBuy}
	}

	if in.RSI > in.Upper && in.Eligible != nil && in.Eligible() {
		return Decision{Signal: model.SignalBuy}
	}
	return Decision{Signal: model.SignalNeutral}
}
