// Package session knows the NSE trading calendar: which dates carry an
// intraday session and how session dates are written ("DD-MM-YYYY").
package session

import (
	"fmt"
	"strings"
	"time"
)

// IST is the Indian Standard Time location (UTC+5:30).
var IST = time.FixedZone("IST", 5*3600+30*60)

// DateLayout is the session date format used by the tick store and the API.
const DateLayout = "02-01-2006"

// Market hours in IST
const (
	OpenHour    = 9
	OpenMinute  = 15
	CloseHour   = 15
	CloseMinute = 30
)

// maxRange caps TradingDays so a typo in a year cannot allocate unbounded.
const maxRange = 366 * 5

// ParseDate parses a "DD-MM-YYYY" session date at midnight IST.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), IST)
	if err != nil {
		return time.Time{}, fmt.Errorf("session: bad date %q (want DD-MM-YYYY): %w", s, err)
	}
	return t, nil
}

// FormatDate renders t's IST calendar date as "DD-MM-YYYY".
func FormatDate(t time.Time) string {
	return t.In(IST).Format(DateLayout)
}

// IsWeekday returns true if t is Mon–Fri.
func IsWeekday(t time.Time) bool {
	wd := t.In(IST).Weekday()
	return wd >= time.Monday && wd <= time.Friday
}

// IsTradingDay returns true if t is a weekday and not a holiday.
func IsTradingDay(t time.Time) bool {
	ist := t.In(IST)
	return IsWeekday(ist) && !IsHoliday(ist)
}

// OpenMinuteOfDay and CloseMinuteOfDay bound the regular session in minutes
// since midnight.
const (
	OpenMinuteOfDay  = OpenHour*60 + OpenMinute
	CloseMinuteOfDay = CloseHour*60 + CloseMinute
)

// InSession reports whether a minute-of-day lies inside regular hours
// (open inclusive, close exclusive).
func InSession(minute int) bool {
	return minute >= OpenMinuteOfDay && minute < CloseMinuteOfDay
}

// TradingDays lists the trading dates in [from, to], oldest first, formatted
// as "DD-MM-YYYY". An inverted range yields nil.
func TradingDays(from, to time.Time) []string {
	d := from.In(IST)
	d = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, IST)
	end := to.In(IST)

	var out []string
	for i := 0; i < maxRange && !d.After(end); i++ {
		if IsTradingDay(d) {
			out = append(out, FormatDate(d))
		}
		d = d.AddDate(0, 0, 1)
	}
	return out
}

// LastTradingDay returns the most recent trading date on or before t.
func LastTradingDay(t time.Time) time.Time {
	ist := t.In(IST)
	d := time.Date(ist.Year(), ist.Month(), ist.Day(), 0, 0, 0, 0, IST)
	for i := 0; i < 10; i++ { // max 10 days back (holidays + weekends)
		if IsTradingDay(d) {
			return d
		}
		d = d.AddDate(0, 0, -1)
	}
	return d
}
