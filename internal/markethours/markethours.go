// Package markethours models the NEPSE trading session so scheduled scans
// only run on trading days.
package markethours

import (
	"fmt"
	"time"
)

// NPT is Nepal Time (UTC+5:45).
var NPT = time.FixedZone("NPT", 5*3600+45*60)

// Market hours in NPT
const (
	OpenHour    = 11
	OpenMinute  = 0
	CloseHour   = 15
	CloseMinute = 0
)

// Calendar answers session questions for NEPSE: Sunday to Thursday,
// 11:00 to 15:00 NPT, excluding listed holidays.
type Calendar struct {
	holidays map[string]bool
}

// NewCalendar creates a calendar closed on the given holidays.
func NewCalendar(holidays ...time.Time) *Calendar {
	c := &Calendar{holidays: make(map[string]bool, len(holidays))}
	for _, h := range holidays {
		c.holidays[h.Format("2006-01-02")] = true
	}
	return c
}

// IsHoliday reports whether t's NPT date is a listed holiday.
func (c *Calendar) IsHoliday(t time.Time) bool {
	return c.holidays[t.In(NPT).Format("2006-01-02")]
}

// IsWeekday returns true if t is Sun–Thu in NPT.
func IsWeekday(t time.Time) bool {
	wd := t.In(NPT).Weekday()
	return wd >= time.Sunday && wd <= time.Thursday
}

// IsTradingDay returns true if t is a weekday and not a holiday.
func (c *Calendar) IsTradingDay(t time.Time) bool {
	return IsWeekday(t) && !c.IsHoliday(t)
}

// IsMarketOpen returns true if t falls within trading hours on a trading day.
func (c *Calendar) IsMarketOpen(t time.Time) bool {
	npt := t.In(NPT)
	if !c.IsTradingDay(npt) {
		return false
	}
	hm := npt.Hour()*60 + npt.Minute()
	return hm >= OpenHour*60+OpenMinute && hm < CloseHour*60+CloseMinute
}

// NextOpen returns the next market open. If t is before today's open on a
// trading day, returns today's open.
func (c *Calendar) NextOpen(t time.Time) time.Time {
	npt := t.In(NPT)

	todayOpen := time.Date(npt.Year(), npt.Month(), npt.Day(), OpenHour, OpenMinute, 0, 0, NPT)
	if npt.Before(todayOpen) && c.IsTradingDay(npt) {
		return todayOpen
	}

	d := npt.AddDate(0, 0, 1)
	for i := 0; i < 30; i++ { // festival closures can run for a week or more
		if c.IsTradingDay(d) {
			return time.Date(d.Year(), d.Month(), d.Day(), OpenHour, OpenMinute, 0, 0, NPT)
		}
		d = d.AddDate(0, 0, 1)
	}
	return time.Date(npt.Year(), npt.Month(), npt.Day()+1, OpenHour, OpenMinute, 0, 0, NPT)
}

// TodayClose returns today's market close time (15:00 NPT).
func TodayClose(t time.Time) time.Time {
	npt := t.In(NPT)
	return time.Date(npt.Year(), npt.Month(), npt.Day(), CloseHour, CloseMinute, 0, 0, NPT)
}

// TimeUntilClose returns the duration until today's close, or 0 once it
// has passed.
func TimeUntilClose(t time.Time) time.Duration {
	d := TodayClose(t).Sub(t)
	if d < 0 {
		return 0
	}
	return d
}

// StatusString returns a human-readable market status.
func (c *Calendar) StatusString(t time.Time) string {
	if c.IsMarketOpen(t) {
		return fmt.Sprintf("Market Open, closes in %s", fmtDur(TimeUntilClose(t)))
	}
	next := c.NextOpen(t)
	npt := next.In(NPT)
	return fmt.Sprintf("Market Closed, opens %s %s (%s)",
		npt.Weekday().String()[:3], npt.Format("15:04"), fmtDur(next.Sub(t)))
}

func fmtDur(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
