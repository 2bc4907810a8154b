package engine

import (
	"context"

	"github.com/BibekSapkota1/Share-Project/internal/indicator"
	"github.com/BibekSapkota1/Share-Project/internal/model"
	"github.com/BibekSapkota1/Share-Project/internal/signal"
)

// AnalyzeSymbol describes symbol's whole history under st: the chart with
// its RSI, every threshold crossing, the latest label and summary
// statistics. Short histories yield a chart of null RSI values and no
// signals rather than an error.
func (s *Service) AnalyzeSymbol(ctx context.Context, userID int64, symbol string, st model.Settings) (*model.Analysis, error) {
	bars, err := s.bars(ctx, symbol)
	if err != nil {
		return nil, err
	}
	series := indicator.RSISeries(model.Closes(bars), st.RSIPeriod)
	th := signal.ThresholdsOf(st)

	chart := make([]model.ChartPoint, len(bars))
	for i := range bars {
		chart[i] = model.ChartPoint{Date: bars[i].DayKey(), Close: bars[i].Close}
		if indicator.Defined(series[i]) {
			v := series[i]
			chart[i].RSI = &v
		}
	}

	events := signal.Crossings(bars, series, th)
	last := bars[len(bars)-1]
	current := indicator.Last(series)

	stats := model.AnalysisStats{
		TotalSignals: len(events),
		CurrentPrice: last.Close,
		DateRange:    model.DateRange{Start: bars[0].DayKey(), End: last.DayKey()},
	}
	for _, e := range events {
		switch e.Type {
		case model.SignalBuy:
			stats.BuySignals++
		case model.SignalSell:
			stats.SellSignals++
		}
	}
	if indicator.Defined(current) {
		v := current
		stats.CurrentRSI = &v
	}
	if avg, ok := indicator.MeanDefined(series); ok {
		stats.AvgRSI = &avg
	}

	return &model.Analysis{
		Symbol:       symbol,
		Settings:     st,
		ChartData:    chart,
		Signals:      events,
		LatestSignal: signal.Latest(current, th),
		Statistics:   stats,
	}, nil
}
