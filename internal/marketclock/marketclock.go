// Package marketclock answers questions about the Korean equity trading
// session: regular hours are 09:00-15:30 KST on weekdays.
package marketclock

import "time"

const (
	openHour    = 9
	closeHour   = 15
	closeMinute = 30
)

// KST is the exchange timezone. Korea has no daylight saving, so a fixed
// offset is used when the tz database is unavailable.
var KST = loadKST()

func loadKST() *time.Location {
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		return time.FixedZone("KST", 9*60*60)
	}
	return loc
}

// Now returns the current time in KST.
func Now() time.Time {
	return time.Now().In(KST)
}

// IsOpen reports whether the market is in its regular session at t.
func IsOpen(t time.Time) bool {
	t = t.In(KST)
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	minutes := t.Hour()*60 + t.Minute()
	return minutes >= openHour*60 && minutes <= closeHour*60+closeMinute
}

// IsTradingDay reports whether t falls on a weekday.
func IsTradingDay(t time.Time) bool {
	switch t.In(KST).Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return true
}

// SessionHour reports whether the hour h (KST) falls inside the regular
// session. Candles are only kept for session hours.
func SessionHour(h int) bool {
	return h >= openHour && h <= closeHour
}

// Today returns midnight of the current KST date.
func Today() time.Time {
	return Midnight(Now())
}

// Midnight truncates t to its KST date.
func Midnight(t time.Time) time.Time {
	t = t.In(KST)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, KST)
}

// CacheExpiry returns the moment cached ticks for the date of t become
// stale: 18:00 KST the same day.
func CacheExpiry(t time.Time) time.Time {
	t = t.In(KST)
	return time.Date(t.Year(), t.Month(), t.Day(), 18, 0, 0, 0, KST)
}
