package markethours

import (
	"strings"
	"testing"
	"time"
)

func npt(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, NPT)
}

func TestIsMarketOpen(t *testing.T) {
	// 2024-05-14 was Tuesday; 2024-05-17 Friday; 2024-05-19 Sunday.
	cal := NewCalendar(npt(2024, 5, 23, 0, 0))

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"tuesday midday", npt(2024, 5, 14, 12, 30), true},
		{"at open", npt(2024, 5, 14, 11, 0), true},
		{"before open", npt(2024, 5, 14, 10, 59), false},
		{"at close", npt(2024, 5, 14, 15, 0), false},
		{"friday", npt(2024, 5, 17, 12, 0), false},
		{"saturday", npt(2024, 5, 18, 12, 0), false},
		{"sunday trades", npt(2024, 5, 19, 12, 0), true},
		{"holiday", npt(2024, 5, 23, 12, 0), false},
		// 06:00 UTC is 11:45 NPT.
		{"utc input", time.Date(2024, 5, 14, 6, 0, 0, 0, time.UTC), true},
	}
	for _, tt := range tests {
		if got := cal.IsMarketOpen(tt.at); got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestNextOpen(t *testing.T) {
	cal := NewCalendar(npt(2024, 5, 19, 0, 0))

	// Thursday after close → Friday and Saturday off, Sunday a holiday → Monday.
	got := cal.NextOpen(npt(2024, 5, 16, 16, 0))
	if want := npt(2024, 5, 20, 11, 0); !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}

	// Before open on a trading day → today.
	got = cal.NextOpen(npt(2024, 5, 14, 9, 0))
	if want := npt(2024, 5, 14, 11, 0); !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestStatusString(t *testing.T) {
	cal := NewCalendar()
	if s := cal.StatusString(npt(2024, 5, 14, 13, 30)); s != "Market Open, closes in 1h30m" {
		t.Errorf("open status = %q", s)
	}
	if s := cal.StatusString(npt(2024, 5, 17, 10, 0)); !strings.HasPrefix(s, "Market Closed, opens Sun 11:00") {
		t.Errorf("closed status = %q", s)
	}
}

func TestParseHolidays(t *testing.T) {
	days, err := ParseHolidays("2024-05-23, ,2024-10-12")
	if err != nil || len(days) != 2 {
		t.Fatalf("got %v, %v", days, err)
	}
	if !NewCalendar(days...).IsHoliday(npt(2024, 10, 12, 14, 0)) {
		t.Error("parsed holiday not honoured")
	}
	if _, err := ParseHolidays("23/05/2024"); err == nil {
		t.Error("expected error for non-ISO date")
	}
}
