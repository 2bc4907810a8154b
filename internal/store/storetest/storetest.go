// Package storetest is a conformance suite every model.CycleStore must pass.
package storetest

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/BibekSapkota1/Share-Project/internal/model"
)

// Factory returns a fresh, empty store. Cleanup is the factory's concern.
type Factory func(t *testing.T) model.CycleStore

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func day(d int) time.Time { return time.Date(2024, 5, d, 0, 0, 0, 0, time.UTC) }

func open(t *testing.T, s model.CycleStore, user int64, symbol string, date time.Time, price float64) *model.TradeCycle {
	t.Helper()
	c, err := s.CreateCycle(context.Background(), model.OpenRequest{
		UserID: user, Symbol: symbol, Date: date, Price: price, RSI: 71,
	})
	if err != nil {
		t.Fatalf("CreateCycle(%d, %s): %v", user, symbol, err)
	}
	return c
}

// Run executes the suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("OpenThenGet", func(t *testing.T) { testOpenThenGet(t, newStore(t)) })
	t.Run("SecondBuyRejected", func(t *testing.T) { testSecondBuyRejected(t, newStore(t)) })
	t.Run("CycleNumbersIncrease", func(t *testing.T) { testCycleNumbersIncrease(t, newStore(t)) })
	t.Run("ConcurrentBuys", func(t *testing.T) { testConcurrentBuys(t, newStore(t)) })
	t.Run("TrackRaisesTSL", func(t *testing.T) { testTrackRaisesTSL(t, newStore(t)) })
	t.Run("SameDayHighReplacesRecord", func(t *testing.T) { testSameDayHighReplacesRecord(t, newStore(t)) })
	t.Run("TrackWithoutOpenCycle", func(t *testing.T) { testTrackWithoutOpenCycle(t, newStore(t)) })
	t.Run("CloseComputesPL", func(t *testing.T) { testCloseComputesPL(t, newStore(t)) })
	t.Run("SecondCloseRejected", func(t *testing.T) { testSecondCloseRejected(t, newStore(t)) })
	t.Run("ManualCloseNeedsReason", func(t *testing.T) { testManualCloseNeedsReason(t, newStore(t)) })
	t.Run("ListCycles", func(t *testing.T) { testListCycles(t, newStore(t)) })
	t.Run("ListTrackingOwnership", func(t *testing.T) { testListTrackingOwnership(t, newStore(t)) })
}

func testOpenThenGet(t *testing.T, s model.CycleStore) {
	ctx := context.Background()
	got, err := s.GetOpenCycle(ctx, 1, "NABIL")
	if err != nil || got != nil {
		t.Fatalf("empty store: got %+v, %v", got, err)
	}

	c := open(t, s, 1, "NABIL", day(1), 500)
	if c.ID == 0 || c.CycleNumber != 1 || c.Status != model.StatusOpen {
		t.Fatalf("created: %+v", c)
	}

	got, err = s.GetOpenCycle(ctx, 1, "NABIL")
	if err != nil || got == nil {
		t.Fatalf("GetOpenCycle: %+v, %v", got, err)
	}
	if got.ID != c.ID || got.BuyPrice != 500 || got.HighestPriceAfterBuy != 500 || !near(got.TSLTriggerPrice, 475) {
		t.Errorf("stored cycle differs: %+v", got)
	}
	if !got.BuyDate.Equal(day(1)) {
		t.Errorf("buy date: got %v", got.BuyDate)
	}

	other, _ := s.GetOpenCycle(ctx, 2, "NABIL")
	if other != nil {
		t.Error("cycle leaked to another user")
	}

	recs, err := s.ListTracking(ctx, 1, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || !recs[0].IsNewHigh || recs[0].ClosePrice != 500 {
		t.Errorf("initial tracking: %+v", recs)
	}
}

func testSecondBuyRejected(t *testing.T, s model.CycleStore) {
	ctx := context.Background()
	first := open(t, s, 1, "NABIL", day(1), 500)

	_, err := s.CreateCycle(ctx, model.OpenRequest{UserID: 1, Symbol: "NABIL", Date: day(2), Price: 510})
	if !errors.Is(err, model.ErrCycleAlreadyOpen) {
		t.Fatalf("second buy: got %v, want CycleAlreadyOpen", err)
	}

	got, _ := s.GetOpenCycle(ctx, 1, "NABIL")
	if got == nil || got.ID != first.ID || got.CycleNumber != 1 || got.BuyPrice != 500 {
		t.Errorf("open cycle changed after rejected buy: %+v", got)
	}

	// The rejected attempt must not consume a number.
	if _, err := s.CloseCycle(ctx, model.CloseRequest{UserID: 1, Symbol: "NABIL", Date: day(3), Price: 520}); err != nil {
		t.Fatal(err)
	}
	next := open(t, s, 1, "NABIL", day(4), 530)
	if next.CycleNumber != 2 {
		t.Errorf("next cycle number: got %d, want 2", next.CycleNumber)
	}
}

func testCycleNumbersIncrease(t *testing.T, s model.CycleStore) {
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		c := open(t, s, 1, "ADBL", day(i*2), 100)
		if c.CycleNumber != i {
			t.Fatalf("cycle %d: got number %d", i, c.CycleNumber)
		}
		if _, err := s.CloseCycle(ctx, model.CloseRequest{UserID: 1, Symbol: "ADBL", Date: day(i*2 + 1), Price: 101}); err != nil {
			t.Fatal(err)
		}
	}
	// Numbering is per (user, symbol).
	if c := open(t, s, 2, "ADBL", day(1), 100); c.CycleNumber != 1 {
		t.Errorf("other user: got number %d, want 1", c.CycleNumber)
	}
	if c := open(t, s, 1, "NABIL", day(1), 100); c.CycleNumber != 1 {
		t.Errorf("other symbol: got number %d, want 1", c.CycleNumber)
	}
}

func testConcurrentBuys(t *testing.T, s model.CycleStore) {
	ctx := context.Background()
	const n = 16

	var wg sync.WaitGroup
	var mu sync.Mutex
	var wins, conflicts int
	var other []error

	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := s.CreateCycle(ctx, model.OpenRequest{UserID: 9, Symbol: "HIDCL", Date: day(1), Price: 200 + float64(i)})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, model.ErrCycleAlreadyOpen):
				conflicts++
			default:
				other = append(other, err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	if len(other) > 0 {
		t.Fatalf("unexpected errors: %v", other)
	}
	if wins != 1 || conflicts != n-1 {
		t.Fatalf("got %d wins, %d conflicts; want 1 and %d", wins, conflicts, n-1)
	}
	cycles, err := s.ListCycles(ctx, 9, "HIDCL")
	if err != nil {
		t.Fatal(err)
	}
	if len(cycles) != 1 || cycles[0].CycleNumber != 1 {
		t.Errorf("stored cycles: %+v", cycles)
	}
}

func testTrackRaisesTSL(t *testing.T, s model.CycleStore) {
	ctx := context.Background()
	open(t, s, 1, "NABIL", day(1), 100)

	res, err := s.UpdateTSL(ctx, model.TrackRequest{UserID: 1, Symbol: "NABIL", Points: []model.PricePoint{
		{Date: day(2), Close: 98},
		{Date: day(3), Close: 120},
		{Date: day(4), Close: 110},
	}})
	if err != nil {
		t.Fatal(err)
	}
	if !res.NewHigh || res.Cycle.HighestPriceAfterBuy != 120 || !near(res.Cycle.TSLTriggerPrice, 114) {
		t.Fatalf("result: %+v", res.Cycle)
	}

	// Re-evaluating a date already tracked does not duplicate its record.
	if _, err := s.UpdateTSL(ctx, model.TrackRequest{UserID: 1, Symbol: "NABIL", Points: []model.PricePoint{
		{Date: day(4), Close: 110},
	}}); err != nil {
		t.Fatal(err)
	}

	got, _ := s.GetOpenCycle(ctx, 1, "NABIL")
	if got.HighestPriceAfterBuy != 120 || !near(got.TSLTriggerPrice, 114) {
		t.Errorf("persisted: highest %v tsl %v", got.HighestPriceAfterBuy, got.TSLTriggerPrice)
	}

	recs, err := s.ListTracking(ctx, 1, got.ID)
	if err != nil {
		t.Fatal(err)
	}
	want := []struct {
		date    time.Time
		newHigh bool
	}{{day(1), true}, {day(2), false}, {day(3), true}, {day(4), false}}
	if len(recs) != len(want) {
		t.Fatalf("tracking: got %d records, want %d (%+v)", len(recs), len(want), recs)
	}
	for i, w := range want {
		if !recs[i].Date.Equal(w.date) || recs[i].IsNewHigh != w.newHigh {
			t.Errorf("record %d: got %v/%v, want %v/%v", i, recs[i].Date, recs[i].IsNewHigh, w.date, w.newHigh)
		}
	}
}

func testSameDayHighReplacesRecord(t *testing.T, s model.CycleStore) {
	ctx := context.Background()
	c := open(t, s, 1, "NABIL", day(1), 100)
	opened, err := s.ListTracking(ctx, 1, c.ID)
	if err != nil || len(opened) != 1 {
		t.Fatalf("tracking after open: %+v, %v", opened, err)
	}

	res, err := s.UpdateTSL(ctx, model.TrackRequest{UserID: 1, Symbol: "NABIL", Points: []model.PricePoint{
		{Date: day(1), Close: 110},
	}})
	if err != nil {
		t.Fatal(err)
	}
	if !res.NewHigh || !near(res.Cycle.TSLTriggerPrice, 104.5) {
		t.Fatalf("result: %+v", res.Cycle)
	}
	if len(res.Records) != 1 || res.Records[0].ID != opened[0].ID || res.Records[0].ClosePrice != 110 || !near(res.Records[0].TSLPrice, 104.5) {
		t.Errorf("returned record: %+v", res.Records)
	}

	// A lower close later the same day keeps the raised record.
	if _, err := s.UpdateTSL(ctx, model.TrackRequest{UserID: 1, Symbol: "NABIL", Points: []model.PricePoint{
		{Date: day(1), Close: 105},
	}}); err != nil {
		t.Fatal(err)
	}

	recs, err := s.ListTracking(ctx, 1, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Fatalf("tracking: got %d records, want 1 (%+v)", len(recs), recs)
	}
	r := recs[0]
	if !r.Date.Equal(day(1)) || r.ClosePrice != 110 || !near(r.TSLPrice, 104.5) || !r.IsNewHigh {
		t.Errorf("record: %+v", r)
	}
}

func testTrackWithoutOpenCycle(t *testing.T, s model.CycleStore) {
	_, err := s.UpdateTSL(context.Background(), model.TrackRequest{UserID: 1, Symbol: "NABIL", Points: []model.PricePoint{{Date: day(2), Close: 1}}})
	if !errors.Is(err, model.ErrNoOpenCycle) {
		t.Fatalf("got %v, want NoOpenCycle", err)
	}
}

func testCloseComputesPL(t *testing.T, s model.CycleStore) {
	ctx := context.Background()
	open(t, s, 1, "NABIL", day(1), 100)

	c, err := s.CloseCycle(ctx, model.CloseRequest{UserID: 1, Symbol: "NABIL", Date: day(5), Price: 95, RSI: 25, Reason: model.ReasonRSI})
	if err != nil {
		t.Fatal(err)
	}
	if c.Status != model.StatusClosed || *c.ProfitLoss != -5 || *c.ProfitLossPercent != -5 || c.SellReason != model.ReasonRSI {
		t.Fatalf("closed: %+v", c)
	}

	if got, _ := s.GetOpenCycle(ctx, 1, "NABIL"); got != nil {
		t.Error("cycle still open after close")
	}

	cycles, _ := s.ListCycles(ctx, 1, "NABIL")
	if len(cycles) != 1 {
		t.Fatalf("cycles: %+v", cycles)
	}
	stored := cycles[0]
	if stored.SellDate == nil || !stored.SellDate.Equal(day(5)) || *stored.SellPrice != 95 || *stored.SellRSI != 25 {
		t.Errorf("stored sell fields: %+v", stored)
	}
	if *stored.ProfitLoss != -5 || *stored.ProfitLossPercent != -5 {
		t.Errorf("stored pl: %v %v", *stored.ProfitLoss, *stored.ProfitLossPercent)
	}
}

func testSecondCloseRejected(t *testing.T, s model.CycleStore) {
	ctx := context.Background()
	open(t, s, 1, "NABIL", day(1), 100)
	if _, err := s.CloseCycle(ctx, model.CloseRequest{UserID: 1, Symbol: "NABIL", Date: day(2), Price: 110}); err != nil {
		t.Fatal(err)
	}
	_, err := s.CloseCycle(ctx, model.CloseRequest{UserID: 1, Symbol: "NABIL", Date: day(3), Price: 50})
	if !errors.Is(err, model.ErrNoOpenCycle) {
		t.Fatalf("got %v, want NoOpenCycle", err)
	}
	cycles, _ := s.ListCycles(ctx, 1, "NABIL")
	if len(cycles) != 1 || *cycles[0].SellPrice != 110 || cycles[0].SellReason != model.ReasonAutomatic {
		t.Errorf("closed cycle mutated: %+v", cycles)
	}
}

func testManualCloseNeedsReason(t *testing.T, s model.CycleStore) {
	ctx := context.Background()
	open(t, s, 1, "NABIL", day(1), 100)

	_, err := s.CloseCycle(ctx, model.CloseRequest{UserID: 1, Symbol: "NABIL", Date: day(2), Price: 99, Reason: "  ", Manual: true})
	if !errors.Is(err, model.ErrMissingSellReason) {
		t.Fatalf("got %v, want MissingSellReason", err)
	}
	if got, _ := s.GetOpenCycle(ctx, 1, "NABIL"); got == nil {
		t.Fatal("rejected manual sell closed the cycle")
	}

	c, err := s.CloseCycle(ctx, model.CloseRequest{UserID: 1, Symbol: "NABIL", Date: day(2), Price: 99, Reason: "rebalancing", Manual: true})
	if err != nil {
		t.Fatal(err)
	}
	if c.SellReason != "rebalancing" {
		t.Errorf("reason: got %q", c.SellReason)
	}
}

func testListCycles(t *testing.T, s model.CycleStore) {
	ctx := context.Background()
	open(t, s, 1, "AAA", day(1), 10)
	if _, err := s.CloseCycle(ctx, model.CloseRequest{UserID: 1, Symbol: "AAA", Date: day(2), Price: 11}); err != nil {
		t.Fatal(err)
	}
	open(t, s, 1, "BBB", day(3), 20)
	open(t, s, 1, "AAA", day(4), 12)
	open(t, s, 2, "AAA", day(4), 12)

	all, err := s.ListCycles(ctx, 1, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d cycles, want 3", len(all))
	}
	if all[0].Symbol != "AAA" || all[0].CycleNumber != 2 || all[2].CycleNumber != 1 {
		t.Errorf("not newest first: %+v", all)
	}

	aaa, _ := s.ListCycles(ctx, 1, "AAA")
	if len(aaa) != 2 {
		t.Errorf("filtered: got %d, want 2", len(aaa))
	}

	none, err := s.ListCycles(ctx, 3, "")
	if err != nil || none == nil || len(none) != 0 {
		t.Errorf("unknown user: got %#v, %v", none, err)
	}
}

func testListTrackingOwnership(t *testing.T, s model.CycleStore) {
	c := open(t, s, 1, "AAA", day(1), 10)
	if _, err := s.ListTracking(context.Background(), 2, c.ID); !errors.Is(err, model.ErrNoData) {
		t.Errorf("foreign cycle: got %v, want NoData", err)
	}
	if _, err := s.ListTracking(context.Background(), 1, c.ID+1000); !errors.Is(err, model.ErrNoData) {
		t.Errorf("unknown cycle: got %v, want NoData", err)
	}
}
