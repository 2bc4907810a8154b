package redis

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/BibekSapkota1/Share-Project/internal/model"
)

type countingProvider struct {
	calls atomic.Int32
	s     model.Settings
}

func (p *countingProvider) GetSettings(ctx context.Context, userID int64) (model.Settings, error) {
	p.calls.Add(1)
	return p.s, nil
}

// deadClient points at a port nothing listens on.
func deadClient(maxFailures int) *Client {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	return NewFromClient(rdb, maxFailures, time.Hour)
}

// liveClient connects to REDIS_TEST_ADDR or skips.
func liveClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	c, err := New(Config{Addr: addr, DB: 15})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestSettingsCache_FallsThroughWhenRedisIsDown(t *testing.T) {
	client := deadClient(2)
	defer client.Close()
	inner := &countingProvider{s: model.DefaultSettings()}
	cache := NewSettingsCache(client, inner, time.Minute)

	for i := 0; i < 4; i++ {
		got, err := cache.GetSettings(context.Background(), 1)
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if got != model.DefaultSettings() {
			t.Fatalf("call %d: got %+v", i, got)
		}
	}
	if inner.calls.Load() != 4 {
		t.Errorf("inner calls: got %d, want 4", inner.calls.Load())
	}
	if client.Breaker().CurrentState() != StateOpen {
		t.Errorf("breaker: got %v, want open", client.Breaker().CurrentState())
	}
}

func TestPublisher_ReportsFailure(t *testing.T) {
	client := deadClient(1)
	defer client.Close()
	p := NewPublisher(client)

	err := p.PublishCycleEvent(context.Background(), model.CycleEvent{Type: model.EventCycleOpened})
	if err == nil {
		t.Fatal("expected error from unreachable redis")
	}
	err = p.PublishCycleEvent(context.Background(), model.CycleEvent{Type: model.EventCycleOpened})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("second publish: got %v, want ErrCircuitOpen", err)
	}
}

func TestSettingsCache_Live(t *testing.T) {
	client := liveClient(t)
	ctx := context.Background()
	inner := &countingProvider{s: model.Settings{RSIPeriod: 9, UpperThreshold: 75, LowerThreshold: 25, TSLFraction: 0.1}}
	cache := NewSettingsCache(client, inner, time.Minute)
	if err := cache.Invalidate(ctx, 42); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		got, err := cache.GetSettings(ctx, 42)
		if err != nil {
			t.Fatal(err)
		}
		if got != inner.s {
			t.Fatalf("got %+v", got)
		}
	}
	if inner.calls.Load() != 1 {
		t.Errorf("inner calls: got %d, want 1", inner.calls.Load())
	}

	if err := cache.InvalidateAll(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := cache.GetSettings(ctx, 42); err != nil {
		t.Fatal(err)
	}
	if inner.calls.Load() != 2 {
		t.Errorf("after invalidate: got %d calls, want 2", inner.calls.Load())
	}
}

func TestPublishSubscribe_Live(t *testing.T) {
	client := liveClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan model.CycleEvent, 1)
	go client.Subscribe(ctx, func(evt model.CycleEvent) { got <- evt })

	p := NewPublisher(client)
	want := model.CycleEvent{Type: model.EventTSLRaised, Cycle: model.TradeCycle{Symbol: "NABIL", CycleNumber: 2}}
	// Retry until the subscription is live.
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case evt := <-got:
			if evt.Type != want.Type || evt.Cycle.Symbol != "NABIL" || evt.Cycle.CycleNumber != 2 {
				t.Fatalf("got %+v", evt)
			}
			return
		case <-tick.C:
			if err := p.PublishCycleEvent(ctx, want); err != nil {
				t.Fatal(err)
			}
		case <-ctx.Done():
			t.Fatal("timed out waiting for event")
		}
	}
}
