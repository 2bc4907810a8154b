package signal

import (
	"fmt"
	"strconv"

	"github.com/BibekSapkota1/Share-Project/internal/indicator"
	"github.com/BibekSapkota1/Share-Project/internal/model"
)

// Crossings lists every threshold crossing in an RSI series aligned 1:1 with
// bars. A BUY is a move from <= upper to > upper; a SELL is a move from
// >= lower to < lower. Pairs with an undefined side are skipped.
func Crossings(bars []model.PriceBar, rsi []float64, th Thresholds) []model.CrossingEvent {
	n := len(bars)
	if len(rsi) < n {
		n = len(rsi)
	}

	events := []model.CrossingEvent{}
	for i := 1; i < n; i++ {
		prev, curr := rsi[i-1], rsi[i]
		if !indicator.Defined(prev) || !indicator.Defined(curr) {
			continue
		}

		var typ model.Signal
		var msg string
		switch {
		case prev <= th.Upper && curr > th.Upper:
			typ = model.SignalBuy
			msg = fmt.Sprintf("RSI crossed above %s - Strong momentum, buy signal", formatThreshold(th.Upper))
		case prev >= th.Lower && curr < th.Lower:
			typ = model.SignalSell
			msg = fmt.Sprintf("RSI crossed below %s - Weak momentum, sell signal", formatThreshold(th.Lower))
		default:
			continue
		}

		events = append(events, model.CrossingEvent{
			Date:    bars[i].DayKey(),
			Type:    typ,
			Price:   bars[i].Close,
			RSI:     curr,
			Message: msg,
		})
	}
	return events
}

// Latest labels the most recent RSI value. It returns nil when rsi is
// undefined.
func Latest(rsi float64, th Thresholds) *model.LatestStatus {
	if !indicator.Defined(rsi) {
		return nil
	}
	st := &model.LatestStatus{RSI: rsi}
	switch {
	case rsi > th.Upper:
		st.Type = model.SignalOverbought
		st.Message = fmt.Sprintf("RSI is %.2f - Strong momentum, consider buying", rsi)
	case rsi < th.Lower:
		st.Type = model.SignalOversold
		st.Message = fmt.Sprintf("RSI is %.2f - Weak momentum, consider selling", rsi)
	default:
		st.Type = model.SignalNeutral
		st.Message = fmt.Sprintf("RSI is %.2f - No clear signal, market is neutral", rsi)
	}
	return st
}

// formatThreshold prints 70 as "70" and 72.5 as "72.5".
func formatThreshold(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
