package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/BibekSapkota1/Share-Project/internal/markethours"
	"github.com/BibekSapkota1/Share-Project/internal/metrics"
	"github.com/BibekSapkota1/Share-Project/internal/model"
	"github.com/BibekSapkota1/Share-Project/internal/notification"
)

type fakeScanner struct {
	mu      sync.Mutex
	scans   map[int64]*model.UniverseScan
	scanErr map[int64]error
	actErr  error
	acted   []string
}

func (f *fakeScanner) ScanUniverse(ctx context.Context, userID int64) (*model.UniverseScan, error) {
	if err := f.scanErr[userID]; err != nil {
		return nil, err
	}
	return f.scans[userID], nil
}

func (f *fakeScanner) Act(ctx context.Context, userID int64, res *model.ScanResult) (*model.TradeCycle, error) {
	f.mu.Lock()
	f.acted = append(f.acted, res.Symbol)
	f.mu.Unlock()
	if f.actErr != nil {
		return nil, f.actErr
	}
	c := &model.TradeCycle{UserID: userID, Symbol: res.Symbol, Status: model.StatusOpen, BuyPrice: res.CurrentPrice}
	if res.Signal == model.SignalSell {
		c.Status = model.StatusClosed
		c.SellPrice = &res.CurrentPrice
		c.SellReason = res.SellReason
	}
	return c, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []notification.Alert
}

func (r *recordingNotifier) Send(ctx context.Context, a notification.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
	return nil
}

func scanWith(userID int64, results ...model.ScanResult) *model.UniverseScan {
	s := &model.UniverseScan{UserID: userID, Symbols: results}
	for i := range results {
		s.Summary.Add(&results[i])
	}
	return s
}

// Sunday 2024-01-21 is a NEPSE trading day; 15:15 is just after the close.
var sundayClose = time.Date(2024, 1, 21, 15, 15, 0, 0, markethours.NPT)

func TestRunNow_ScansEveryUser(t *testing.T) {
	rsi := 25.0
	fs := &fakeScanner{
		scans: map[int64]*model.UniverseScan{
			1: scanWith(1, model.ScanResult{Symbol: "NABIL", Date: "2024-01-21", Signal: model.SignalBuy, CurrentPrice: 500, CurrentRSI: &rsi}),
			2: scanWith(2, model.ScanResult{Symbol: "HDL", Date: "2024-01-21", Signal: model.SignalHold}),
		},
		scanErr: map[int64]error{3: errors.New("boom")},
	}
	n := &recordingNotifier{}
	health := metrics.NewHealthStatus()
	s := New(context.Background(), Config{Spec: "* * * * *", Users: []int64{1, 2, 3}}, fs, nil, n, health)
	s.now = func() time.Time { return sundayClose }

	results, err := s.RunNow(context.Background())
	if err != nil {
		t.Fatalf("RunNow: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	if results[2].Err == nil {
		t.Error("user 3 should carry the scan error")
	}
	if len(fs.acted) != 0 {
		t.Errorf("acted without auto trade: %v", fs.acted)
	}
	if len(n.alerts) != 1 {
		t.Fatalf("alerts = %d, want 1 (only user 1 has an actionable signal)", len(n.alerts))
	}
	if health.LastScanAt.IsZero() {
		t.Error("health last scan not recorded")
	}
}

func TestRunNow_AutoTrade(t *testing.T) {
	fs := &fakeScanner{scans: map[int64]*model.UniverseScan{
		1: scanWith(1,
			model.ScanResult{Symbol: "AAA", Date: "2024-01-21", Signal: model.SignalBuy, CurrentPrice: 100},
			model.ScanResult{Symbol: "BBB", Date: "2024-01-21", Signal: model.SignalSell, SellReason: model.ReasonTSL, CurrentPrice: 90},
			model.ScanResult{Symbol: "CCC", Date: "2024-01-21", Signal: model.SignalNeutral},
		),
	}}
	n := &recordingNotifier{}
	s := New(context.Background(), Config{Spec: "* * * * *", Users: []int64{1}, AutoTrade: true}, fs, nil, n, nil)

	results, err := s.RunNow(context.Background())
	if err != nil {
		t.Fatalf("RunNow: %v", err)
	}
	if got := fs.acted; len(got) != 2 || got[0] != "AAA" || got[1] != "BBB" {
		t.Errorf("acted = %v, want [AAA BBB]", got)
	}
	if len(results[0].Trades) != 2 {
		t.Errorf("trades = %d, want 2", len(results[0].Trades))
	}
	// One scan alert plus one per executed trade.
	if len(n.alerts) != 3 {
		t.Errorf("alerts = %d, want 3", len(n.alerts))
	}
}

func TestRunNow_ActErrorsDoNotStopTheRun(t *testing.T) {
	fs := &fakeScanner{
		scans: map[int64]*model.UniverseScan{
			1: scanWith(1,
				model.ScanResult{Symbol: "AAA", Date: "2024-01-21", Signal: model.SignalBuy},
				model.ScanResult{Symbol: "BBB", Date: "2024-01-21", Signal: model.SignalBuy},
			),
		},
		actErr: model.NewError(model.CodeCycleAlreadyOpen, "AAA", "open"),
	}
	s := New(context.Background(), Config{Users: []int64{1}, AutoTrade: true}, fs, nil, &recordingNotifier{}, nil)

	results, err := s.RunNow(context.Background())
	if err != nil {
		t.Fatalf("RunNow: %v", err)
	}
	if len(fs.acted) != 2 {
		t.Errorf("acted = %v, want both symbols attempted", fs.acted)
	}
	if results[0].Err != nil || len(results[0].Trades) != 0 {
		t.Errorf("result = %+v", results[0])
	}
}

func TestTick_CalendarGate(t *testing.T) {
	tests := []struct {
		name            string
		now             time.Time
		marketHoursOnly bool
		wantScan        bool
	}{
		{"trading day", sundayClose, false, true},
		{"saturday", time.Date(2024, 1, 20, 12, 0, 0, 0, markethours.NPT), false, false},
		{"after close, any hour", time.Date(2024, 1, 21, 18, 0, 0, 0, markethours.NPT), false, true},
		{"after close, session only", time.Date(2024, 1, 21, 18, 0, 0, 0, markethours.NPT), true, false},
		{"in session, session only", time.Date(2024, 1, 21, 12, 0, 0, 0, markethours.NPT), true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			health := metrics.NewHealthStatus()
			fs := &fakeScanner{scans: map[int64]*model.UniverseScan{1: scanWith(1)}}
			s := New(context.Background(), Config{Users: []int64{1}, MarketHoursOnly: tt.marketHoursOnly}, fs, markethours.NewCalendar(), &recordingNotifier{}, health)
			s.now = func() time.Time { return tt.now }
			s.tick()
			if got := !health.LastScanAt.IsZero(); got != tt.wantScan {
				t.Errorf("scanned = %v, want %v", got, tt.wantScan)
			}
		})
	}
}

func TestTick_Holiday(t *testing.T) {
	health := metrics.NewHealthStatus()
	cal := markethours.NewCalendar(time.Date(2024, 1, 21, 0, 0, 0, 0, markethours.NPT))
	s := New(context.Background(), Config{Users: []int64{1}}, &fakeScanner{}, cal, nil, health)
	s.now = func() time.Time { return sundayClose }
	s.tick()
	if !health.LastScanAt.IsZero() {
		t.Error("scanned on a holiday")
	}
}

func TestRegister_BadSpec(t *testing.T) {
	s := New(context.Background(), Config{Spec: "not a cron"}, &fakeScanner{}, nil, nil, nil)
	if err := s.Register(); err == nil {
		t.Fatal("expected error for bad spec")
	}
	s = New(context.Background(), Config{Spec: "15 15 * * 0-4"}, &fakeScanner{}, nil, nil, nil)
	if err := s.Register(); err != nil {
		t.Fatalf("Register: %v", err)
	}
	s.Start()
	s.Stop()
}
