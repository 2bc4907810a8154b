// Package history serves daily price history to the engine.
package history

import (
	"context"
	"sort"

	"github.com/BibekSapkota1/Share-Project/internal/model"
)

// Dataset is an immutable, indexed set of price bars.
type Dataset struct {
	bySymbol  map[string][]model.PriceBar
	malformed map[string]string // symbol → first parse problem
	universe  []model.PriceBar
	symbols   []string

	// DroppedRows counts rows discarded for an unparseable date.
	DroppedRows int
}

// NewDataset indexes bars. Invalid bars (see model.PriceBar.Valid) mark
// their symbol malformed but stay in the universe so turnover ranking for
// that day fails closed.
func NewDataset(bars []model.PriceBar) *Dataset {
	ds := &Dataset{
		bySymbol:  make(map[string][]model.PriceBar),
		malformed: make(map[string]string),
		universe:  bars,
	}
	for i := range bars {
		b := bars[i]
		if !b.Valid() {
			if _, seen := ds.malformed[b.Symbol]; !seen {
				ds.malformed[b.Symbol] = "invalid values on " + b.DayKey()
			}
		}
		ds.bySymbol[b.Symbol] = append(ds.bySymbol[b.Symbol], b)
	}
	for sym, rows := range ds.bySymbol {
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })
		ds.symbols = append(ds.symbols, sym)
	}
	sort.Strings(ds.symbols)
	return ds
}

// Symbols returns every symbol, sorted.
func (ds *Dataset) Symbols() []string {
	return append([]string(nil), ds.symbols...)
}

// History returns a copy of symbol's bars ascending by date.
func (ds *Dataset) History(symbol string) ([]model.PriceBar, error) {
	if problem, bad := ds.malformed[symbol]; bad {
		return nil, model.NewError(model.CodeMalformedData, symbol, "%s", problem)
	}
	rows, ok := ds.bySymbol[symbol]
	if !ok || len(rows) == 0 {
		return nil, model.NewError(model.CodeNoData, symbol, "no data found")
	}
	return append([]model.PriceBar(nil), rows...), nil
}

// Universe returns every bar in source order.
func (ds *Dataset) Universe() []model.PriceBar {
	return append([]model.PriceBar(nil), ds.universe...)
}

// Static is a model.HistoryProvider over a fixed Dataset.
type Static struct {
	ds *Dataset
}

// NewStatic serves bars from memory.
func NewStatic(bars []model.PriceBar) *Static {
	return &Static{ds: NewDataset(bars)}
}

var _ model.HistoryProvider = (*Static)(nil)

func (s *Static) Symbols(ctx context.Context) ([]string, error) {
	return s.ds.Symbols(), ctx.Err()
}

func (s *Static) History(ctx context.Context, symbol string) ([]model.PriceBar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.ds.History(symbol)
}

func (s *Static) Universe(ctx context.Context) ([]model.PriceBar, error) {
	return s.ds.Universe(), ctx.Err()
}
