package indicator

import "math"

// Wilder accumulates gains and losses with Wilder's smoothing. Update is O(1)
// per close; the first value is available after period+1 closes.
type Wilder struct {
	period    int
	count     int
	prevClose float64
	avgGain   float64
	avgLoss   float64
	current   float64
}

// NewWilder creates an RSI accumulator for the given period (typically 14).
func NewWilder(period int) *Wilder {
	return &Wilder{period: period, current: math.NaN()}
}

// Update feeds the next close.
func (w *Wilder) Update(price float64) {
	w.count++

	if w.count == 1 {
		// first close, no delta yet
		w.prevClose = price
		return
	}

	delta := price - w.prevClose
	w.prevClose = price

	gain, loss := 0.0, 0.0
	if delta > 0 {
		gain = delta
	} else {
		loss = -delta
	}

	if w.count <= w.period+1 {
		// Seed phase: simple mean of the first period deltas
		w.avgGain += gain
		w.avgLoss += loss
		if w.count == w.period+1 {
			w.avgGain /= float64(w.period)
			w.avgLoss /= float64(w.period)
			w.current = rsiFrom(w.avgGain, w.avgLoss)
		}
		return
	}

	p := float64(w.period)
	w.avgGain = (w.avgGain*(p-1) + gain) / p
	w.avgLoss = (w.avgLoss*(p-1) + loss) / p
	w.current = rsiFrom(w.avgGain, w.avgLoss)
}

// Value returns the current RSI, NaN until Ready.
func (w *Wilder) Value() float64 { return w.current }

// Ready returns true once the seed window is complete.
func (w *Wilder) Ready() bool { return w.count > w.period }

// Averages returns the current smoothed gain and loss.
func (w *Wilder) Averages() (gain, loss float64) { return w.avgGain, w.avgLoss }

// rsiFrom maps smoothed averages to RSI. A zero average loss is the
// loss-free asymptote and yields 100.
func rsiFrom(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

// RSISeries returns an RSI value per close, aligned 1:1 with closes.
// Entries before index period are NaN. Fewer than period+1 closes, or a
// non-positive period, yield an all-NaN series. The input is not modified.
func RSISeries(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	for i := range out {
		out[i] = math.NaN()
	}
	if period < 1 || len(closes) < period+1 {
		return out
	}

	w := NewWilder(period)
	for i, c := range closes {
		w.Update(c)
		if w.Ready() {
			out[i] = w.Value()
		}
	}
	return out
}

// Defined reports whether v is a usable RSI value.
func Defined(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Last returns the final element of series, NaN when empty.
func Last(series []float64) float64 {
	if len(series) == 0 {
		return math.NaN()
	}
	return series[len(series)-1]
}

// MeanDefined averages the defined values of series. ok is false when none
// are defined.
func MeanDefined(series []float64) (mean float64, ok bool) {
	var sum float64
	var n int
	for _, v := range series {
		if Defined(v) {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}
