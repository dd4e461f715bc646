package marketclock

import (
	"testing"
	"time"
)

func kst(year int, month time.Month, day, hour, min int) time.Time {
	return time.Date(year, month, day, hour, min, 0, 0, KST)
}

func TestIsOpen(t *testing.T) {
	cases := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"weekday mid session", kst(2025, time.March, 5, 11, 0), true},
		{"weekday at open", kst(2025, time.March, 5, 9, 0), true},
		{"weekday at close", kst(2025, time.March, 5, 15, 30), true},
		{"weekday before open", kst(2025, time.March, 5, 8, 59), false},
		{"weekday after close", kst(2025, time.March, 5, 15, 31), false},
		{"saturday", kst(2025, time.March, 8, 11, 0), false},
		{"sunday", kst(2025, time.March, 9, 11, 0), false},
	}
	for _, tc := range cases {
		if got := IsOpen(tc.at); got != tc.want {
			t.Fatalf("%s: IsOpen(%v) = %v, want %v", tc.name, tc.at, got, tc.want)
		}
	}
}

func TestIsOpenConvertsTimezone(t *testing.T) {
	// 02:00 UTC on a Wednesday is 11:00 KST.
	at := time.Date(2025, time.March, 5, 2, 0, 0, 0, time.UTC)
	if !IsOpen(at) {
		t.Fatalf("expected market open at %v", at)
	}
}

func TestSessionHour(t *testing.T) {
	for h := 0; h < 24; h++ {
		want := h >= 9 && h <= 15
		if got := SessionHour(h); got != want {
			t.Fatalf("SessionHour(%d) = %v, want %v", h, got, want)
		}
	}
}

func TestCacheExpiry(t *testing.T) {
	at := kst(2025, time.March, 5, 10, 23)
	exp := CacheExpiry(at)
	if exp.Hour() != 18 || exp.Minute() != 0 || exp.Day() != 5 {
		t.Fatalf("unexpected expiry %v", exp)
	}
	if !at.Before(exp) {
		t.Fatalf("expiry should be after session time")
	}
}

func TestMidnight(t *testing.T) {
	at := kst(2025, time.March, 5, 14, 45)
	m := Midnight(at)
	if m.Hour() != 0 || m.Minute() != 0 || m.Day() != 5 {
		t.Fatalf("unexpected midnight %v", m)
	}
}
