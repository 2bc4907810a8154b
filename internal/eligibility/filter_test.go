package eligibility

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/BibekSapkota1/Share-Project/internal/model"
)

func day(s string) time.Time {
	d, err := model.ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

func bar(symbol, date string, turnover float64) model.PriceBar {
	return model.PriceBar{Symbol: symbol, Date: day(date), Open: 100, High: 100, Low: 100, Close: 100, Turnover: turnover}
}

// universe builds n symbols (S01..Snn) on each date; symbol i has turnover
// (n-i+1)*1000 so S01 is the most liquid.
func universe(n int, dates ...string) []model.PriceBar {
	var out []model.PriceBar
	for _, d := range dates {
		for i := 1; i <= n; i++ {
			out = append(out, bar(fmt.Sprintf("S%02d", i), d, float64(n-i+1)*1000))
		}
	}
	return out
}

func TestIsEligible_TopOnBothPriorDays(t *testing.T) {
	bars := universe(20, "2024-01-01", "2024-01-02", "2024-01-03")
	f := New(bars, 15)

	tests := []struct {
		symbol string
		want   bool
	}{
		{"S01", true},
		{"S15", true},
		{"S16", false},
		{"S20", false},
		{"NOPE", false},
	}
	for _, tt := range tests {
		if got := f.IsEligible(tt.symbol, day("2024-01-03")); got != tt.want {
			t.Errorf("IsEligible(%s): got %v, want %v", tt.symbol, got, tt.want)
		}
	}
}

func TestIsEligible_TopOnOnlyOneDay(t *testing.T) {
	bars := universe(20, "2024-01-01", "2024-01-02")
	// Push S20 to the top on D-1 only.
	for i := range bars {
		if bars[i].Symbol == "S20" && bars[i].DayKey() == "2024-01-02" {
			bars[i].Turnover = 1e9
		}
	}
	f := New(bars, 15)
	if f.IsEligible("S20", day("2024-01-03")) {
		t.Error("S20 ranked top-15 on D-1 only, expected ineligible")
	}

	// And the mirror: top on D-2 only.
	bars = universe(20, "2024-01-01", "2024-01-02")
	for i := range bars {
		if bars[i].Symbol == "S20" && bars[i].DayKey() == "2024-01-01" {
			bars[i].Turnover = 1e9
		}
	}
	f = New(bars, 15)
	if f.IsEligible("S20", day("2024-01-03")) {
		t.Error("S20 ranked top-15 on D-2 only, expected ineligible")
	}
}

func TestIsEligible_NeedsTwoPriorDates(t *testing.T) {
	f := New(universe(5, "2024-01-01", "2024-01-02"), 15)

	if f.IsEligible("S01", day("2024-01-01")) {
		t.Error("no prior dates, expected ineligible")
	}
	if f.IsEligible("S01", day("2024-01-02")) {
		t.Error("one prior date, expected ineligible")
	}
	if !f.IsEligible("S01", day("2024-01-03")) {
		t.Error("two prior dates, expected eligible")
	}
}

func TestIsEligible_ExcludesQueryDate(t *testing.T) {
	bars := universe(20, "2024-01-01", "2024-01-02", "2024-01-03")
	// S20 leads on the query date itself, which must not count.
	for i := range bars {
		if bars[i].Symbol == "S20" && bars[i].DayKey() == "2024-01-03" {
			bars[i].Turnover = 1e9
		}
	}
	f := New(bars, 15)
	if f.IsEligible("S20", day("2024-01-03")) {
		t.Error("query date ranking leaked into eligibility")
	}
}

func TestIsEligible_SkipsNonTradingGaps(t *testing.T) {
	// The 5th and 6th carry no rows; the two prior trading days are the
	// 4th and the 7th.
	f := New(universe(3, "2024-01-04", "2024-01-07"), 15)
	if !f.IsEligible("S01", day("2024-01-10")) {
		t.Error("expected eligible across a gap in trading days")
	}
}

func TestIsEligible_TurnoverFallsBackToVolumeTimesClose(t *testing.T) {
	// BIG = 500000, SMALL = 10000, MID = 100000 per day.
	var bars []model.PriceBar
	for _, d := range []string{"2024-01-01", "2024-01-02"} {
		bars = append(bars,
			model.PriceBar{Symbol: "BIG", Date: day(d), Close: 500, Volume: 1000},
			model.PriceBar{Symbol: "SMALL", Date: day(d), Close: 10, Volume: 1000},
			model.PriceBar{Symbol: "MID", Date: day(d), Close: 100, Volume: 1000},
		)
	}
	f := New(bars, 2)
	if !f.IsEligible("BIG", day("2024-01-03")) || !f.IsEligible("MID", day("2024-01-03")) {
		t.Error("expected BIG and MID eligible")
	}
	if f.IsEligible("SMALL", day("2024-01-03")) {
		t.Error("expected SMALL ineligible")
	}
}

func TestRanking_TiesKeepInputOrder(t *testing.T) {
	bars := []model.PriceBar{
		bar("C", "2024-01-01", 500),
		bar("A", "2024-01-01", 500),
		bar("B", "2024-01-01", 500),
		bar("D", "2024-01-01", 900),
	}
	f := New(bars, 3)
	got, ok := f.Ranking(day("2024-01-01"))
	if !ok {
		t.Fatal("expected ranking")
	}
	want := []string{"D", "C", "A"}
	if len(got) != len(want) {
		t.Fatalf("len: got %d, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].Symbol != w || got[i].Rank != i+1 {
			t.Errorf("rank %d: got %+v, want %s", i+1, got[i], w)
		}
	}
	if bars[0].Symbol != "C" {
		t.Error("input slice was reordered")
	}
}

func TestIsEligible_FailsClosedOnAnomalies(t *testing.T) {
	t.Run("malformed row on a prior day", func(t *testing.T) {
		bars := universe(5, "2024-01-01", "2024-01-02")
		bars = append(bars, model.PriceBar{Symbol: "BAD", Date: day("2024-01-02"), Close: math.NaN()})
		f := New(bars, 15)
		if f.IsEligible("S01", day("2024-01-03")) {
			t.Error("expected ineligible when a prior day is malformed")
		}
		if _, ok := f.Ranking(day("2024-01-02")); ok {
			t.Error("expected no ranking for an anomalous day")
		}
	})

	t.Run("bar without a date", func(t *testing.T) {
		bars := universe(5, "2024-01-01", "2024-01-02")
		bars = append(bars, model.PriceBar{Symbol: "S01", Close: 100})
		f := New(bars, 15)
		if f.IsEligible("S01", day("2024-01-03")) {
			t.Error("expected ineligible when a bar has no date")
		}
	})

	t.Run("duplicate symbol on a day", func(t *testing.T) {
		bars := universe(5, "2024-01-01", "2024-01-02")
		bars = append(bars, bar("S02", "2024-01-01", 1))
		f := New(bars, 15)
		if f.IsEligible("S01", day("2024-01-03")) {
			t.Error("expected ineligible when a prior day has duplicate rows")
		}
	})

	t.Run("zero query date", func(t *testing.T) {
		f := New(universe(5, "2024-01-01", "2024-01-02"), 15)
		if f.IsEligible("S01", time.Time{}) {
			t.Error("expected ineligible for a zero date")
		}
	})

	t.Run("nil filter", func(t *testing.T) {
		var f *Filter
		if f.IsEligible("S01", day("2024-01-03")) {
			t.Error("expected nil filter to be closed")
		}
	})
}
