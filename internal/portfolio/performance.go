// Package portfolio summarises a user's trade cycles into realized and
// unrealized P/L. Every cycle is one unit bought and sold, so P/L is the
// price difference.
package portfolio

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/BibekSapkota1/Share-Project/internal/model"
)

// SymbolSummary is the per-symbol breakdown.
type SymbolSummary struct {
	Symbol        string  `json:"symbol"`
	Cycles        int     `json:"cycles"`
	Open          bool    `json:"open"`
	RealizedPnL   float64 `json:"realized_pnl"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
}

// Summary aggregates every cycle of one user.
type Summary struct {
	TotalCycles  int `json:"total_cycles"`
	OpenCycles   int `json:"open_cycles"`
	ClosedCycles int `json:"closed_cycles"`
	Wins         int `json:"wins"`
	Losses       int `json:"losses"`

	WinRate       float64 `json:"win_rate"` // percent of closed cycles with P/L > 0
	RealizedPnL   float64 `json:"realized_pnl"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	TotalPnL      float64 `json:"total_pnl"`

	AvgReturnPercent   float64  `json:"avg_return_percent"`
	BestReturnPercent  *float64 `json:"best_return_percent"`
	WorstReturnPercent *float64 `json:"worst_return_percent"`

	ByReason map[string]int  `json:"by_reason"`
	Symbols  []SymbolSummary `json:"symbols"`
}

// Summarize folds cycles into a Summary. latest maps symbol to its most
// recent close and prices the OPEN cycles; an open cycle without a latest
// price contributes no unrealized P/L.
func Summarize(cycles []model.TradeCycle, latest map[string]float64) Summary {
	s := Summary{ByReason: make(map[string]int)}
	realized, unrealized, returns := decimal.Zero, decimal.Zero, decimal.Zero
	bySymbol := make(map[string]*SymbolSummary)

	for i := range cycles {
		c := &cycles[i]
		sym := bySymbol[c.Symbol]
		if sym == nil {
			sym = &SymbolSummary{Symbol: c.Symbol}
			bySymbol[c.Symbol] = sym
		}
		sym.Cycles++
		s.TotalCycles++

		if c.IsOpen() {
			s.OpenCycles++
			sym.Open = true
			if px, ok := latest[c.Symbol]; ok && px > 0 {
				u := decimal.NewFromFloat(px).Sub(decimal.NewFromFloat(c.BuyPrice))
				unrealized = unrealized.Add(u)
				sym.UnrealizedPnL, _ = u.Round(2).Float64()
			}
			continue
		}

		s.ClosedCycles++
		s.ByReason[c.SellReason]++
		if c.ProfitLoss == nil {
			continue
		}
		pl := decimal.NewFromFloat(*c.ProfitLoss)
		realized = realized.Add(pl)
		symPL := decimal.NewFromFloat(sym.RealizedPnL).Add(pl)
		sym.RealizedPnL, _ = symPL.Round(2).Float64()
		if pl.IsPositive() {
			s.Wins++
		} else {
			s.Losses++
		}

		if c.ProfitLossPercent != nil {
			pct := *c.ProfitLossPercent
			returns = returns.Add(decimal.NewFromFloat(pct))
			if s.BestReturnPercent == nil || pct > *s.BestReturnPercent {
				s.BestReturnPercent = &pct
			}
			if s.WorstReturnPercent == nil || pct < *s.WorstReturnPercent {
				w := pct
				s.WorstReturnPercent = &w
			}
		}
	}

	if s.ClosedCycles > 0 {
		closed := decimal.NewFromInt(int64(s.ClosedCycles))
		s.WinRate, _ = decimal.NewFromInt(int64(s.Wins)).Mul(decimal.NewFromInt(100)).Div(closed).Round(2).Float64()
		s.AvgReturnPercent, _ = returns.Div(closed).Round(2).Float64()
	}
	s.RealizedPnL, _ = realized.Round(2).Float64()
	s.UnrealizedPnL, _ = unrealized.Round(2).Float64()
	s.TotalPnL, _ = realized.Add(unrealized).Round(2).Float64()

	s.Symbols = make([]SymbolSummary, 0, len(bySymbol))
	for _, sym := range bySymbol {
		s.Symbols = append(s.Symbols, *sym)
	}
	sort.Slice(s.Symbols, func(i, j int) bool { return s.Symbols[i].Symbol < s.Symbols[j].Symbol })
	return s
}

// OpenSymbols lists the distinct symbols with an OPEN cycle, sorted.
func OpenSymbols(cycles []model.TradeCycle) []string {
	seen := make(map[string]bool)
	var out []string
	for i := range cycles {
		if cycles[i].IsOpen() && !seen[cycles[i].Symbol] {
			seen[cycles[i].Symbol] = true
			out = append(out, cycles[i].Symbol)
		}
	}
	sort.Strings(out)
	return out
}
