package model

import (
	"strconv"
	"time"
)

// CycleStatus is the lifecycle state of a trade cycle.
type CycleStatus string

const (
	StatusOpen   CycleStatus = "OPEN"
	StatusClosed CycleStatus = "CLOSED"
)

// Automatic sell reason codes. Anything else stored in SellReason is a
// manual, caller-supplied reason.
const (
	ReasonAutomatic = "AUTOMATIC"
	ReasonRSI       = "RSI"
	ReasonTSL       = "TSL"
)

// DefaultTSLFraction is the trailing stop distance below the high-water mark.
const DefaultTSLFraction = 0.05

// IsAutomaticReason reports whether r is one of the automatic reason codes.
func IsAutomaticReason(r string) bool {
	switch r {
	case ReasonAutomatic, ReasonRSI, ReasonTSL:
		return true
	}
	return false
}

// TradeCycle is one buy-to-sell round trip for a (user, symbol) pair.
// Sell fields are nil while the cycle is OPEN.
type TradeCycle struct {
	ID                   int64       `json:"id"`
	UserID               int64       `json:"user_id"`
	Symbol               string      `json:"symbol"`
	CycleNumber          int         `json:"cycle_number"`
	Status               CycleStatus `json:"status"`
	BuyDate              time.Time   `json:"buy_date"`
	BuyPrice             float64     `json:"buy_price"`
	BuyRSI               float64     `json:"buy_rsi"`
	HighestPriceAfterBuy float64     `json:"highest_price_after_buy"`
	TSLTriggerPrice      float64     `json:"tsl_trigger_price"`
	SellDate             *time.Time  `json:"sell_date,omitempty"`
	SellPrice            *float64    `json:"sell_price,omitempty"`
	SellRSI              *float64    `json:"sell_rsi,omitempty"`
	ProfitLoss           *float64    `json:"profit_loss,omitempty"`
	ProfitLossPercent    *float64    `json:"profit_loss_percent,omitempty"`
	SellReason           string      `json:"sell_reason,omitempty"`
	CreatedAt            time.Time   `json:"created_at"`
	UpdatedAt            time.Time   `json:"updated_at"`
}

// IsOpen reports whether the cycle is still OPEN.
func (c *TradeCycle) IsOpen() bool { return c.Status == StatusOpen }

// Key returns "user:symbol" for map-backed stores.
func (c *TradeCycle) Key() string { return CycleKey(c.UserID, c.Symbol) }

// CycleKey builds the (user, symbol) identity used by stores.
func CycleKey(userID int64, symbol string) string {
	return strconv.FormatInt(userID, 10) + ":" + symbol
}

// PriceTrackingRecord is an append-only audit row written each time an OPEN
// cycle is evaluated against a close price.
type PriceTrackingRecord struct {
	ID         int64     `json:"id"`
	CycleID    int64     `json:"cycle_id"`
	Date       time.Time `json:"date"`
	ClosePrice float64   `json:"close_price"`
	TSLPrice   float64   `json:"tsl_price"`
	IsNewHigh  bool      `json:"is_new_high"`
	CreatedAt  time.Time `json:"created_at"`
}

// PricePoint is a dated close used to drive trailing-stop updates.
type PricePoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// OpenRequest carries everything a store needs to open a cycle.
type OpenRequest struct {
	UserID      int64
	Symbol      string
	Date        time.Time
	Price       float64
	RSI         float64
	TSLFraction float64
}

// TrackRequest asks a store to evaluate an OPEN cycle against one or more
// closes in date order.
type TrackRequest struct {
	UserID      int64
	Symbol      string
	Points      []PricePoint
	TSLFraction float64
}

// TrackResult is the outcome of a TrackRequest.
type TrackResult struct {
	Cycle   TradeCycle
	NewHigh bool
	Records []PriceTrackingRecord
}

// CloseRequest asks a store to close the OPEN cycle for (user, symbol).
type CloseRequest struct {
	UserID int64
	Symbol string
	Date   time.Time
	Price  float64
	RSI    float64
	Reason string
	Manual bool
}
