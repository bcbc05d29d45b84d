package resetclock

import (
	"testing"
	"time"
)

func at(h, m, s, ms int) time.Time {
	return time.Date(2025, 7, 14, h, m, s, ms*int(time.Millisecond), time.UTC)
}

func TestUntil(t *testing.T) {
	tests := []struct {
		name   string
		period Period
		now    time.Time
		want   time.Duration
	}{
		{"gear on boundary", Gear, at(12, 0, 0, 0), 0},
		{"gear just after boundary", Gear, at(12, 0, 3, 0), 4*time.Minute + 57*time.Second},
		{"gear one ms before boundary", Gear, at(12, 4, 59, 999), time.Millisecond},
		{"gear mid cycle with ms", Gear, at(12, 7, 30, 250), 2*time.Minute + 29*time.Second + 750*time.Millisecond},
		{"egg first half", Egg, at(9, 10, 0, 0), 20 * time.Minute},
		{"egg second half", Egg, at(9, 45, 30, 0), 14*time.Minute + 30*time.Second},
		{"honey on the hour", Honey, at(9, 0, 0, 0), 0},
		{"honey mid hour", Honey, at(9, 59, 1, 0), 59 * time.Second},
		{"cosmetic", Cosmetic, at(13, 30, 0, 0), 2*time.Hour + 30*time.Minute},
		{"cosmetic midnight", Cosmetic, at(0, 0, 0, 0), 0},
		{"cosmetic before midnight", Cosmetic, at(23, 59, 59, 0), time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Until(tt.period, tt.now); got != tt.want {
				t.Errorf("Until(%s, %s) = %v, want %v", tt.period, tt.now.Format("15:04:05.000"), got, tt.want)
			}
		})
	}
}

func TestUntilAlwaysWithinPeriod(t *testing.T) {
	base := at(0, 0, 0, 0)
	for _, p := range Periods {
		// walk a full day in uneven steps so every ms offset class is hit
		for ts := base; ts.Before(base.Add(24 * time.Hour)); ts = ts.Add(7*time.Second + 13*time.Millisecond) {
			d := Until(p, ts)
			if d < 0 || d >= p.Duration() {
				t.Fatalf("Until(%s, %s) = %v out of [0, %v)", p, ts.Format(time.RFC3339Nano), d, p.Duration())
			}
		}
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		d         time.Duration
		withHours bool
		want      string
	}{
		{0, false, "0m 0s"},
		{4*time.Minute + 57*time.Second + 900*time.Millisecond, false, "4m 57s"},
		{59 * time.Second, false, "0m 59s"},
		{2*time.Hour + 3*time.Minute + 4*time.Second, true, "2h 3m 4s"},
		{59 * time.Minute, true, "0h 59m 0s"},
		{-time.Second, false, "0m 0s"},
	}
	for _, tt := range tests {
		if got := Format(tt.d, tt.withHours); got != tt.want {
			t.Errorf("Format(%v, %v) = %q, want %q", tt.d, tt.withHours, got, tt.want)
		}
	}
}

func TestRemaining(t *testing.T) {
	if got := Remaining(Honey, at(10, 0, 0, 0)); got != ResettingNow {
		t.Errorf("honey at boundary = %q, want %q", got, ResettingNow)
	}
	if got := Remaining(Cosmetic, at(12, 0, 0, 0)); got != ResettingNow {
		t.Errorf("cosmetic at boundary = %q, want %q", got, ResettingNow)
	}
	if got := Remaining(Gear, at(12, 0, 0, 0)); got != "0m 0s" {
		t.Errorf("gear at boundary = %q, want 0m 0s", got)
	}
	if got := Remaining(Honey, at(10, 30, 0, 0)); got != "0h 30m 0s" {
		t.Errorf("honey mid hour = %q", got)
	}
	if got := Remaining(Egg, at(10, 20, 15, 0)); got != "9m 45s" {
		t.Errorf("egg = %q", got)
	}
}

func TestCountdownsOrder(t *testing.T) {
	cds := Countdowns(at(12, 1, 0, 0))
	if len(cds) != 4 {
		t.Fatalf("expected 4 countdowns, got %d", len(cds))
	}
	want := []Period{Gear, Egg, Cosmetic, Honey}
	for i, p := range want {
		if cds[i].Period != p {
			t.Errorf("countdown %d = %s, want %s", i, cds[i].Period, p)
		}
	}
	if cds[0].Text != "4m 0s" {
		t.Errorf("gear text = %q", cds[0].Text)
	}
}
