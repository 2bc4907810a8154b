package model

import (
	"math"
	"time"
)

// DateLayout is the canonical day format used across storage and the API.
const DateLayout = "2006-01-02"

// PriceBar is one daily OHLC row for a symbol. Bars are immutable once
// ingested and are kept in ascending date order per symbol.
type PriceBar struct {
	Symbol   string    `json:"symbol"`
	Date     time.Time `json:"date"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
	Turnover float64   `json:"turnover,omitempty"` // 0 when the source has no turnover column
}

// TradedValue returns the provided turnover, or volume × close when the
// source did not carry one.
func (b *PriceBar) TradedValue() float64 {
	if b.Turnover > 0 {
		return b.Turnover
	}
	return b.Volume * b.Close
}

// Valid reports whether the bar is usable for ranking and indicator math.
func (b *PriceBar) Valid() bool {
	if b.Symbol == "" || b.Date.IsZero() {
		return false
	}
	for _, v := range []float64{b.Open, b.High, b.Low, b.Close, b.Volume, b.Turnover} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return false
		}
	}
	return true
}

// DayKey returns the bar date as "YYYY-MM-DD".
func (b *PriceBar) DayKey() string {
	return b.Date.Format(DateLayout)
}

// Closes extracts the close prices of bars in order.
func Closes(bars []PriceBar) []float64 {
	out := make([]float64, len(bars))
	for i := range bars {
		out[i] = bars[i].Close
	}
	return out
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a "YYYY-MM-DD" date.
func ParseDay(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}
