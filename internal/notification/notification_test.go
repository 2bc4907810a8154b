package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BibekSapkota1/Share-Project/internal/model"
)

func TestWebhookNotifier(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	wn := NewWebhookNotifier(srv.URL)
	sent := time.Date(2024, 1, 21, 9, 30, 0, 0, time.UTC)
	wn.now = func() time.Time { return sent }
	alert := Alert{Kind: KindTrade, Level: AlertWarning, Title: "Sold UP", Message: "m", UserID: 7, Symbols: []string{"UP"}}
	if err := wn.Send(context.Background(), alert); err != nil {
		t.Fatal(err)
	}
	if !got.SentAt.Equal(sent) {
		t.Errorf("sent_at = %v", got.SentAt)
	}
	got.SentAt = time.Time{}
	want := webhookPayload{Kind: KindTrade, Level: AlertWarning, Title: "Sold UP", Message: "m", UserID: 7, Symbols: []string{"UP"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("payload = %+v", got)
	}
}

func TestWebhookNotifier_Status(t *testing.T) {
	tests := []struct {
		code      int
		permanent bool
	}{
		{http.StatusBadGateway, false},
		{http.StatusTooManyRequests, false},
		{http.StatusNotFound, true},
		{http.StatusUnauthorized, true},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", tt.code)
		}))
		err := NewWebhookNotifier(srv.URL).Send(context.Background(), Alert{})
		srv.Close()

		var se *StatusError
		if !errors.As(err, &se) || se.Code != tt.code || se.Body != "nope" {
			t.Errorf("%d: err = %v", tt.code, err)
			continue
		}
		if permanent(err) != tt.permanent {
			t.Errorf("%d: permanent = %v, want %v", tt.code, permanent(err), tt.permanent)
		}
	}
}

func TestTelegramNotifier(t *testing.T) {
	var path string
	var msg telegramMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		json.NewDecoder(r.Body).Decode(&msg)
		w.Write([]byte(`{"ok":true,"result":{}}`))
	}))
	defer srv.Close()

	tn := NewTelegramNotifier("TOKEN", "42")
	tn.baseURL = srv.URL
	alert := Alert{Kind: KindScan, Level: AlertInfo, Title: "RSI scan: 1 buy, 0 sell", Message: "NABIL @ 1015.50"}
	if err := tn.Send(context.Background(), alert); err != nil {
		t.Fatal(err)
	}
	if path != "/botTOKEN/sendMessage" {
		t.Errorf("path = %q", path)
	}
	if msg.ChatID != "42" || msg.ParseMode != "MarkdownV2" || !msg.DisableNotification {
		t.Errorf("msg = %+v", msg)
	}
	// The title is escaped; the body sits in a code block verbatim.
	if !strings.Contains(msg.Text, `*RSI scan: 1 buy, 0 sell*`) || !strings.Contains(msg.Text, "```\nNABIL @ 1015.50\n```") {
		t.Errorf("text = %q", msg.Text)
	}
}

func TestTelegramNotifier_NotOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":false,"description":"Bad Request: chat not found"}`))
	}))
	defer srv.Close()

	tn := NewTelegramNotifier("TOKEN", "42")
	tn.baseURL = srv.URL
	err := tn.Send(context.Background(), Alert{Kind: KindTrade, Title: "Bought UP"})
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("err = %v", err)
	}
}

func TestEscapeMarkdown(t *testing.T) {
	if got := escapeMarkdown("a_b (c) 5.5!"); got != `a\_b \(c\) 5\.5\!` {
		t.Errorf("got %q", got)
	}
}

type flakyNotifier struct {
	fails int32
	err   error
	calls atomic.Int32
}

func (f *flakyNotifier) Send(ctx context.Context, alert Alert) error {
	if f.calls.Add(1) <= f.fails {
		if f.err != nil {
			return f.err
		}
		return errors.New("down")
	}
	return nil
}

func TestRetrying(t *testing.T) {
	f := &flakyNotifier{fails: 2}
	r := Retrying{Notifier: f, MaxRetries: 2, Base: time.Millisecond}
	if err := r.Send(context.Background(), Alert{}); err != nil {
		t.Fatalf("should succeed on the third attempt: %v", err)
	}

	f = &flakyNotifier{fails: 5}
	r = Retrying{Notifier: f, MaxRetries: 1, Base: time.Millisecond}
	if err := r.Send(context.Background(), Alert{}); err == nil || f.calls.Load() != 2 {
		t.Errorf("err = %v after %d calls", err, f.calls.Load())
	}

	f = &flakyNotifier{fails: 5, err: &StatusError{Endpoint: "telegram", Code: http.StatusUnauthorized}}
	r = Retrying{Notifier: f, MaxRetries: 3, Base: time.Millisecond}
	if err := r.Send(context.Background(), Alert{}); err == nil || f.calls.Load() != 1 {
		t.Errorf("permanent error retried: %v after %d calls", err, f.calls.Load())
	}
}

func TestNew_DefaultsToLog(t *testing.T) {
	if _, ok := New(Config{}).(LogNotifier); !ok {
		t.Error("no backends should give LogNotifier")
	}
	if m, ok := New(Config{WebhookURL: "http://x", TelegramToken: "t", TelegramChat: "c"}).(Multi); !ok || len(m) != 2 {
		t.Error("expected both backends")
	}
}

func TestScanAlert(t *testing.T) {
	rsi := 72.5
	scan := &model.UniverseScan{
		UserID: 1,
		Symbols: []model.ScanResult{
			{Symbol: "NABIL", Signal: model.SignalBuy, CurrentPrice: 1015.5, CurrentRSI: &rsi},
			{Symbol: "ADBL", Signal: model.SignalSell, CurrentPrice: 290, SellReason: model.ReasonTSL},
			{Symbol: "HIDCL", Signal: model.SignalNeutral},
		},
		Summary: model.ScanSummary{Total: 3, Holdings: 1},
	}
	a, ok := ScanAlert(scan)
	if !ok {
		t.Fatal("expected an alert")
	}
	if a.Kind != KindScan || a.Level != AlertWarning || a.Title != "RSI scan: 1 buy, 1 sell" || a.UserID != 1 {
		t.Errorf("alert = %+v", a)
	}
	for _, want := range []string{"NABIL @ 1015.50 (RSI 72.50)", "ADBL @ 290.00 [TSL]"} {
		if !strings.Contains(a.Message, want) {
			t.Errorf("message missing %q:\n%s", want, a.Message)
		}
	}

	if !reflect.DeepEqual(a.Symbols, []string{"NABIL", "ADBL"}) {
		t.Errorf("symbols = %v", a.Symbols)
	}

	if _, ok := ScanAlert(&model.UniverseScan{Symbols: scan.Symbols[2:]}); ok {
		t.Error("neutral-only scan should not alert")
	}
}

func TestCycleAlert(t *testing.T) {
	sell, pl, pct := 125.0, 6.0, 5.04
	c := &model.TradeCycle{
		Symbol: "UP", CycleNumber: 2, Status: model.StatusClosed,
		SellPrice: &sell, ProfitLoss: &pl, ProfitLossPercent: &pct, SellReason: "RSI",
	}
	a := CycleAlert(c)
	if a.Title != "Sold UP" || a.Message != "Cycle 2 closed at 125.00 (RSI), P/L 6.00 (5.04%)" {
		t.Errorf("alert = %+v", a)
	}

	c = &model.TradeCycle{Symbol: "UP", CycleNumber: 1, Status: model.StatusOpen, BuyPrice: 119, TSLTriggerPrice: 113.05,
		BuyDate: time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)}
	if a := CycleAlert(c); a.Message != "Cycle 1 opened at 119.00 on 2024-01-20, TSL 113.05" {
		t.Errorf("open alert = %+v", a)
	}
}
