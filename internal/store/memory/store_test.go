package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BibekSapkota1/Share-Project/internal/model"
	"github.com/BibekSapkota1/Share-Project/internal/settings"
	"github.com/BibekSapkota1/Share-Project/internal/store/storetest"
)

func TestStore_Conformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) model.CycleStore { return New() })
}

func TestStore_CancelledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.GetOpenCycle(ctx, 1, "X"); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

func TestStore_ReturnsCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	c, err := s.CreateCycle(ctx, model.OpenRequest{UserID: 1, Symbol: "X", Date: mustDay(t, "2024-06-02"), Price: 10})
	if err != nil {
		t.Fatal(err)
	}
	c.HighestPriceAfterBuy = 9999

	got, _ := s.GetOpenCycle(ctx, 1, "X")
	if got.HighestPriceAfterBuy != 10 {
		t.Fatal("caller mutation leaked into the store")
	}
}

func mustDay(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := model.ParseDay(s)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestStore_SettingsResolve(t *testing.T) {
	s := New()
	s.SeedGlobalDefaults(settings.Encode(model.DefaultSettings()))
	ctx := context.Background()
	r := settings.NewResolver(s)

	if err := s.SetUserSetting(ctx, 3, settings.KeyRSIPeriod, "9"); err != nil {
		t.Fatal(err)
	}
	got, err := r.GetSettings(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if got.RSIPeriod != 9 || got.UpperThreshold != 70 {
		t.Errorf("got %+v", got)
	}

	if err := s.DeleteUserSetting(ctx, 3, settings.KeyRSIPeriod); err != nil {
		t.Fatal(err)
	}
	got, _ = r.GetSettings(ctx, 3)
	if got.RSIPeriod != 14 {
		t.Errorf("override not removed: %+v", got)
	}
}
