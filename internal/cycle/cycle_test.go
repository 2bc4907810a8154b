package cycle

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/BibekSapkota1/Share-Project/internal/model"
)

var now = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func d(day int) time.Time { return time.Date(2024, 3, day, 0, 0, 0, 0, time.UTC) }

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (tol=%.6f)", label, got, want, tol)
	}
}

func mustOpen(t *testing.T, price float64) model.TradeCycle {
	t.Helper()
	c, _, err := Open(model.OpenRequest{UserID: 7, Symbol: "NABIL", Date: d(1), Price: price, RSI: 72}, 1, now)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return c
}

func TestOpen_InitialState(t *testing.T) {
	c, rec, err := Open(model.OpenRequest{UserID: 7, Symbol: "NABIL", Date: d(1), Price: 100, RSI: 72.5}, 3, now)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if c.Status != model.StatusOpen || c.CycleNumber != 3 {
		t.Errorf("got status %s number %d", c.Status, c.CycleNumber)
	}
	if c.HighestPriceAfterBuy != 100 {
		t.Errorf("highest: got %v, want 100", c.HighestPriceAfterBuy)
	}
	assertClose(t, "tsl", c.TSLTriggerPrice, 95, 1e-9)
	if c.SellDate != nil || c.ProfitLoss != nil || c.SellReason != "" {
		t.Error("sell fields set on an open cycle")
	}
	if !rec.IsNewHigh || rec.ClosePrice != 100 || !rec.Date.Equal(d(1)) {
		t.Errorf("initial record: %+v", rec)
	}
}

func TestOpen_CustomFraction(t *testing.T) {
	c, _, err := Open(model.OpenRequest{Symbol: "X", Date: d(1), Price: 200, TSLFraction: 0.1}, 1, now)
	if err != nil {
		t.Fatal(err)
	}
	assertClose(t, "tsl", c.TSLTriggerPrice, 180, 1e-9)
}

func TestOpen_RejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		req  model.OpenRequest
		want error
	}{
		{"no symbol", model.OpenRequest{Date: d(1), Price: 1}, model.ErrInvalidRequest},
		{"no date", model.OpenRequest{Symbol: "X", Price: 1}, model.ErrInvalidDate},
		{"zero price", model.OpenRequest{Symbol: "X", Date: d(1)}, model.ErrInvalidRequest},
		{"nan price", model.OpenRequest{Symbol: "X", Date: d(1), Price: math.NaN()}, model.ErrInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := Open(tt.req, 1, now); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestTrack_RaisesOnlyOnNewHigh(t *testing.T) {
	c := mustOpen(t, 100)

	rec, err := Track(&c, model.PricePoint{Date: d(2), Close: 110}, 0, now)
	if err != nil {
		t.Fatal(err)
	}
	if !rec.IsNewHigh || c.HighestPriceAfterBuy != 110 {
		t.Errorf("expected new high 110, got %+v / %v", rec, c.HighestPriceAfterBuy)
	}
	assertClose(t, "tsl after 110", c.TSLTriggerPrice, 104.5, 1e-9)

	rec, err = Track(&c, model.PricePoint{Date: d(3), Close: 105}, 0, now)
	if err != nil {
		t.Fatal(err)
	}
	if rec.IsNewHigh || c.HighestPriceAfterBuy != 110 {
		t.Errorf("expected unchanged high, got %+v / %v", rec, c.HighestPriceAfterBuy)
	}
	assertClose(t, "record tsl", rec.TSLPrice, 104.5, 1e-9)

	rec, _ = Track(&c, model.PricePoint{Date: d(4), Close: 110}, 0, now)
	if rec.IsNewHigh {
		t.Error("equal to the high is not a new high")
	}
}

func TestTrack_HighestIsMonotonic(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for run := 0; run < 200; run++ {
		c := mustOpen(t, 50+r.Float64()*100)
		prevHigh := c.HighestPriceAfterBuy
		for i := 0; i < 60; i++ {
			price := 1 + r.Float64()*300
			rec, err := Track(&c, model.PricePoint{Date: d(1).AddDate(0, 0, i+1), Close: price}, 0, now)
			if err != nil {
				t.Fatal(err)
			}
			if c.HighestPriceAfterBuy < prevHigh {
				t.Fatalf("run %d step %d: highest fell from %v to %v", run, i, prevHigh, c.HighestPriceAfterBuy)
			}
			assertClose(t, "tsl invariant", c.TSLTriggerPrice, c.HighestPriceAfterBuy*0.95, 1e-9)
			if rec.IsNewHigh != (c.HighestPriceAfterBuy > prevHigh) {
				t.Fatalf("run %d step %d: is_new_high=%v but high %v→%v", run, i, rec.IsNewHigh, prevHigh, c.HighestPriceAfterBuy)
			}
			prevHigh = c.HighestPriceAfterBuy
		}
	}
}

func TestTrack_ClosedCycle(t *testing.T) {
	c := mustOpen(t, 100)
	if err := Close(&c, model.CloseRequest{Symbol: "NABIL", Date: d(2), Price: 101}, now); err != nil {
		t.Fatal(err)
	}
	if _, err := Track(&c, model.PricePoint{Date: d(3), Close: 200}, 0, now); !errors.Is(err, model.ErrNoOpenCycle) {
		t.Errorf("got %v, want NoOpenCycle", err)
	}
	if c.HighestPriceAfterBuy != 100 {
		t.Error("closed cycle mutated")
	}
}

func TestApply_ReplaysInOrder(t *testing.T) {
	c := mustOpen(t, 100)
	res, err := Apply(&c, model.TrackRequest{Points: []model.PricePoint{
		{Date: d(2), Close: 104},
		{Date: d(3), Close: 120},
		{Date: d(4), Close: 115},
	}}, now)
	if err != nil {
		t.Fatal(err)
	}
	if !res.NewHigh || len(res.Records) != 3 {
		t.Fatalf("got %+v", res)
	}
	if res.Cycle.HighestPriceAfterBuy != 120 {
		t.Errorf("highest: got %v, want 120", res.Cycle.HighestPriceAfterBuy)
	}
	assertClose(t, "tsl", res.Cycle.TSLTriggerPrice, 114, 1e-9)
	want := []bool{true, true, false}
	for i, w := range want {
		if res.Records[i].IsNewHigh != w {
			t.Errorf("record %d new high: got %v, want %v", i, res.Records[i].IsNewHigh, w)
		}
	}
}

func TestClose_ProfitLoss(t *testing.T) {
	c := mustOpen(t, 100)
	err := Close(&c, model.CloseRequest{Symbol: "NABIL", Date: d(5), Price: 95, RSI: 28}, now)
	if err != nil {
		t.Fatal(err)
	}
	if c.Status != model.StatusClosed {
		t.Fatalf("status: %s", c.Status)
	}
	if *c.ProfitLoss != -5 {
		t.Errorf("profit_loss: got %v, want -5", *c.ProfitLoss)
	}
	if *c.ProfitLossPercent != -5.0 {
		t.Errorf("profit_loss_percent: got %v, want -5.0", *c.ProfitLossPercent)
	}
	if c.SellReason != model.ReasonAutomatic {
		t.Errorf("reason: got %q, want AUTOMATIC", c.SellReason)
	}
	if !c.SellDate.Equal(d(5)) || *c.SellPrice != 95 || *c.SellRSI != 28 {
		t.Errorf("sell fields: %v %v %v", c.SellDate, *c.SellPrice, *c.SellRSI)
	}
}

func TestClose_IsIrreversible(t *testing.T) {
	c := mustOpen(t, 100)
	if err := Close(&c, model.CloseRequest{Date: d(2), Price: 120, Reason: "TSL"}, now); err != nil {
		t.Fatal(err)
	}
	before := *c.ProfitLoss

	err := Close(&c, model.CloseRequest{Date: d(3), Price: 50, Reason: "RSI"}, now)
	if !errors.Is(err, model.ErrNoOpenCycle) {
		t.Fatalf("second close: got %v, want NoOpenCycle", err)
	}
	if *c.ProfitLoss != before || c.SellReason != model.ReasonTSL {
		t.Error("closed cycle mutated by second close")
	}
}

func TestClose_RejectsSellBeforeBuy(t *testing.T) {
	c := mustOpen(t, 100)
	err := Close(&c, model.CloseRequest{Date: d(1).AddDate(0, 0, -1), Price: 100}, now)
	if !errors.Is(err, model.ErrInvalidDate) {
		t.Fatalf("got %v, want InvalidDate", err)
	}
	if !c.IsOpen() {
		t.Error("rejected close changed status")
	}
}

func TestResolveReason(t *testing.T) {
	tests := []struct {
		name    string
		reason  string
		manual  bool
		want    string
		wantErr error
	}{
		{"manual free text", "  earnings miss ", true, "earnings miss", nil},
		{"manual empty", "", true, "", model.ErrMissingSellReason},
		{"manual whitespace", " \t\n", true, "", model.ErrMissingSellReason},
		{"manual automatic code", "tsl", true, "", model.ErrMissingSellReason},
		{"auto default", "", false, model.ReasonAutomatic, nil},
		{"auto rsi", "RSI", false, model.ReasonRSI, nil},
		{"auto tsl lowercase", "tsl", false, model.ReasonTSL, nil},
		{"auto unknown", "gut feeling", false, "", model.ErrInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveReason(tt.reason, tt.manual)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("got %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClose_ManualWithoutReason(t *testing.T) {
	c := mustOpen(t, 100)
	err := Close(&c, model.CloseRequest{Date: d(2), Price: 99, Reason: "   ", Manual: true}, now)
	if !errors.Is(err, model.ErrMissingSellReason) {
		t.Fatalf("got %v, want MissingSellReason", err)
	}
	if !c.IsOpen() {
		t.Error("cycle closed despite rejected reason")
	}
}

func TestProfitLoss_DecimalExact(t *testing.T) {
	pl, pct := ProfitLoss(10, 10.1)
	if pl != 0.1 {
		t.Errorf("pl: got %v, want 0.1", pl)
	}
	assertClose(t, "pct", pct, 1, 1e-12)
}

func TestView(t *testing.T) {
	c := mustOpen(t, 200)
	v := View(&c, 213.37)
	if v.CycleNumber != 1 || v.BuyDate != "2024-03-01" || v.HighestPrice != 200 {
		t.Errorf("view: %+v", v)
	}
	if v.UnrealizedPnL != 6.69 {
		t.Errorf("unrealized: got %v, want 6.69", v.UnrealizedPnL)
	}
	if View(nil, 1) != nil {
		t.Error("expected nil view")
	}
}
