// Package eligibility gates new positions on recent liquidity: a symbol may be
// bought only if it ranked in the top N by turnover on each of the two trading
// days before the buy date.
package eligibility

import (
	"sort"
	"time"

	"github.com/BibekSapkota1/Share-Project/internal/model"
)

// DefaultTopN is the ranking cut-off used when none is configured.
const DefaultTopN = 15

// LookbackDays is the number of prior trading days a symbol must rank on.
const LookbackDays = 2

// Entry is one ranked symbol on a trading day.
type Entry struct {
	Rank     int     `json:"rank"` // 1-based
	Symbol   string  `json:"symbol"`
	Turnover float64 `json:"turnover"`
}

// Filter holds per-day top-N rankings for a price universe. It is immutable
// after New and safe for concurrent use.
type Filter struct {
	topN      int
	days      []string // distinct trading days, ascending "YYYY-MM-DD"
	top       map[string][]Entry
	anomalous map[string]bool
	broken    bool
}

// New ranks every distinct trading day in bars. Ties keep input order.
//
// A bar without a date breaks the whole filter. A day containing an invalid
// bar or a duplicated symbol is anomalous and never qualifies anyone. Both
// cases fail closed.
func New(bars []model.PriceBar, topN int) *Filter {
	if topN <= 0 {
		topN = DefaultTopN
	}
	f := &Filter{
		topN:      topN,
		top:       make(map[string][]Entry),
		anomalous: make(map[string]bool),
	}

	byDay := make(map[string][]model.PriceBar)
	seen := make(map[string]map[string]bool)
	for i := range bars {
		b := &bars[i]
		if b.Date.IsZero() {
			f.broken = true
			continue
		}
		day := b.DayKey()
		if seen[day] == nil {
			seen[day] = make(map[string]bool)
		}
		if !b.Valid() || seen[day][b.Symbol] {
			f.anomalous[day] = true
		}
		seen[day][b.Symbol] = true
		byDay[day] = append(byDay[day], *b)
	}

	for day, rows := range byDay {
		f.days = append(f.days, day)
		if !f.anomalous[day] {
			f.top[day] = rank(rows, topN)
		}
	}
	sort.Strings(f.days)
	return f
}

func rank(rows []model.PriceBar, topN int) []Entry {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].TradedValue() > rows[j].TradedValue()
	})
	if len(rows) > topN {
		rows = rows[:topN]
	}
	out := make([]Entry, len(rows))
	for i := range rows {
		out[i] = Entry{Rank: i + 1, Symbol: rows[i].Symbol, Turnover: rows[i].TradedValue()}
	}
	return out
}

// TopN returns the configured cut-off.
func (f *Filter) TopN() int { return f.topN }

// PriorDays returns the LookbackDays trading days strictly before date, most
// recent first. ok is false when there are not enough of them.
func (f *Filter) PriorDays(date time.Time) (days []string, ok bool) {
	if date.IsZero() {
		return nil, false
	}
	key := date.Format(model.DateLayout)
	i := sort.SearchStrings(f.days, key)
	if i < LookbackDays {
		return nil, false
	}
	for k := 1; k <= LookbackDays; k++ {
		days = append(days, f.days[i-k])
	}
	return days, true
}

// IsEligible reports whether symbol ranked top-N on both trading days before
// date. It never fails; any anomaly yields false.
func (f *Filter) IsEligible(symbol string, date time.Time) bool {
	if f == nil || f.broken || symbol == "" {
		return false
	}
	days, ok := f.PriorDays(date)
	if !ok {
		return false
	}
	for _, day := range days {
		if f.anomalous[day] || !contains(f.top[day], symbol) {
			return false
		}
	}
	return true
}

// Ranking returns the top-N entries for a trading day. ok is false when the
// day is unknown or anomalous.
func (f *Filter) Ranking(date time.Time) ([]Entry, bool) {
	if f == nil || f.broken {
		return nil, false
	}
	day := date.Format(model.DateLayout)
	if f.anomalous[day] {
		return nil, false
	}
	entries, ok := f.top[day]
	if !ok {
		return nil, false
	}
	return append([]Entry(nil), entries...), true
}

func contains(entries []Entry, symbol string) bool {
	for _, e := range entries {
		if e.Symbol == symbol {
			return true
		}
	}
	return false
}
