package model

import "time"

// Signal is either an actionable scan decision (BUY, SELL, HOLD, NEUTRAL)
// or a descriptive latest-status label (OVERBOUGHT, OVERSOLD, NEUTRAL).
type Signal string

const (
	SignalBuy        Signal = "BUY"
	SignalSell       Signal = "SELL"
	SignalHold       Signal = "HOLD"
	SignalNeutral    Signal = "NEUTRAL"
	SignalOverbought Signal = "OVERBOUGHT"
	SignalOversold   Signal = "OVERSOLD"
)

// Class returns the lowercase CSS-style class used by the scanner view.
func (s Signal) Class() string {
	switch s {
	case SignalBuy:
		return "buy"
	case SignalSell:
		return "sell"
	case SignalHold:
		return "hold"
	case SignalOverbought:
		return "overbought"
	case SignalOversold:
		return "oversold"
	default:
		return "neutral"
	}
}

// OpenCycleView is the scanner's summary of an OPEN cycle.
type OpenCycleView struct {
	CycleNumber   int     `json:"cycle_number"`
	BuyDate       string  `json:"buy_date"`
	BuyPrice      float64 `json:"buy_price"`
	HighestPrice  float64 `json:"highest_price"`
	TSLPrice      float64 `json:"tsl_price"`
	UnrealizedPnL float64 `json:"unrealized_pnl"` // percent
}

// ScanResult is the per-symbol outcome of a scan.
type ScanResult struct {
	Symbol       string         `json:"symbol"`
	Date         string         `json:"date"`
	Signal       Signal         `json:"signal"`
	SignalClass  string         `json:"signal_class"`
	CurrentPrice float64        `json:"current_price"`
	CurrentRSI   *float64       `json:"current_rsi"`
	SellReason   string         `json:"sell_reason,omitempty"`
	HasOpenCycle bool           `json:"has_open_cycle"`
	OpenCycle    *OpenCycleView `json:"open_cycle,omitempty"`
	TSLRaised    bool           `json:"tsl_raised,omitempty"`
}

// ScanSummary aggregates a universe scan.
type ScanSummary struct {
	Total    int `json:"total"`
	Buy      int `json:"buy"`
	Sell     int `json:"sell"`
	Hold     int `json:"hold"`
	Neutral  int `json:"neutral"`
	Holdings int `json:"holdings"`
	Failed   int `json:"failed"`
}

// UniverseScan is the result of scanning every known symbol for one user.
type UniverseScan struct {
	UserID    int64        `json:"user_id"`
	ScannedAt time.Time    `json:"scanned_at"`
	Settings  Settings     `json:"settings"`
	Symbols   []ScanResult `json:"symbols"`
	Summary   ScanSummary  `json:"summary"`
}

// CrossingEvent is a point-in-time BUY/SELL threshold crossing.
type CrossingEvent struct {
	Date    string  `json:"date"`
	Type    Signal  `json:"type"`
	Price   float64 `json:"price"`
	RSI     float64 `json:"rsi"`
	Message string  `json:"message"`
}

// ChartPoint is one row of the analysis chart; RSI is nil while undefined.
type ChartPoint struct {
	Date  string   `json:"date"`
	Close float64  `json:"close"`
	RSI   *float64 `json:"rsi"`
}

// LatestStatus labels the most recent RSI value.
type LatestStatus struct {
	Type    Signal  `json:"type"`
	RSI     float64 `json:"rsi"`
	Message string  `json:"message"`
}

// DateRange spans the analysed history.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// AnalysisStats summarises an analysis run.
type AnalysisStats struct {
	TotalSignals int       `json:"total_signals"`
	BuySignals   int       `json:"buy_signals"`
	SellSignals  int       `json:"sell_signals"`
	CurrentRSI   *float64  `json:"current_rsi"`
	AvgRSI       *float64  `json:"avg_rsi"`
	CurrentPrice float64   `json:"current_price"`
	DateRange    DateRange `json:"date_range"`
}

// Analysis is the point-in-time view of a symbol.
type Analysis struct {
	Symbol       string          `json:"symbol"`
	Settings     Settings        `json:"settings"`
	ChartData    []ChartPoint    `json:"chart_data"`
	Signals      []CrossingEvent `json:"signals"`
	LatestSignal *LatestStatus   `json:"latest_signal"`
	Statistics   AnalysisStats   `json:"statistics"`
}

// CycleEventType names a trade-cycle state change.
type CycleEventType string

const (
	EventCycleOpened CycleEventType = "cycle_opened"
	EventTSLRaised   CycleEventType = "tsl_raised"
	EventCycleClosed CycleEventType = "cycle_closed"
)

// CycleEvent is published whenever a cycle is opened, ratcheted or closed.
type CycleEvent struct {
	Type  CycleEventType `json:"type"`
	Cycle TradeCycle     `json:"cycle"`
	TS    time.Time      `json:"ts"`
}

// Add counts r in the summary. Total and Failed are set by the caller.
func (s *ScanSummary) Add(r *ScanResult) {
	switch r.Signal {
	case SignalBuy:
		s.Buy++
	case SignalSell:
		s.Sell++
	case SignalHold:
		s.Hold++
	default:
		s.Neutral++
	}
	if r.HasOpenCycle {
		s.Holdings++
	}
}
