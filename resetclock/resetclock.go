// Package resetclock computes time remaining until the periodic shop resets of
// Grow A Garden. Boundaries are derived from the local wall-clock fields of the
// given timestamp (seconds of day modulo the period), never from calendar math,
// so every period must divide 24h evenly.
package resetclock

import (
	"fmt"
	"time"
)

// Period identifies one of the fixed reset cycles.
type Period int

const (
	// Gear covers the gear and seed shops (every 5 minutes).
	Gear Period = iota
	// Egg covers the egg shop (every 30 minutes).
	Egg
	// Honey covers the honey event shop (every hour).
	Honey
	// Cosmetic covers the cosmetics shop (every 4 hours).
	Cosmetic
)

// ResettingNow replaces a zero countdown for hour-scale periods.
const ResettingNow = "Resetting now!"

// Periods lists every period in display order.
var Periods = []Period{Gear, Egg, Cosmetic, Honey}

// Duration returns the cycle length.
func (p Period) Duration() time.Duration {
	switch p {
	case Gear:
		return 5 * time.Minute
	case Egg:
		return 30 * time.Minute
	case Honey:
		return time.Hour
	case Cosmetic:
		return 4 * time.Hour
	default:
		return 5 * time.Minute
	}
}

// String returns a human-readable name for the period.
func (p Period) String() string {
	switch p {
	case Gear:
		return "gear"
	case Egg:
		return "egg"
	case Honey:
		return "honey"
	case Cosmetic:
		return "cosmetic"
	default:
		return "unknown"
	}
}

// Until returns the time until the next boundary of p, at millisecond
// precision. The result is in [0, p.Duration()) and is 0 exactly on a boundary.
func Until(p Period, now time.Time) time.Duration {
	periodMs := p.Duration().Milliseconds()
	sod := int64(now.Hour()*3600 + now.Minute()*60 + now.Second())
	elapsedMs := (sod*1000 + int64(now.Nanosecond()/int(time.Millisecond))) % periodMs
	if elapsedMs == 0 {
		return 0
	}
	return time.Duration(periodMs-elapsedMs) * time.Millisecond
}

// Format renders d as "Xm Ys", or "Xh Ym Zs" when withHours is set.
// Sub-second remainders are truncated.
func Format(d time.Duration, withHours bool) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	if withHours {
		return fmt.Sprintf("%dh %dm %ds", total/3600, (total%3600)/60, total%60)
	}
	return fmt.Sprintf("%dm %ds", total/60, total%60)
}

// Remaining formats the countdown to the next boundary of p. Periods of an
// hour or more use the hour form and print ResettingNow instead of a zero
// countdown.
func Remaining(p Period, now time.Time) string {
	d := Until(p, now)
	withHours := p.Duration() >= time.Hour
	if withHours && d < time.Second {
		return ResettingNow
	}
	return Format(d, withHours)
}

// Countdown is a single rendered reset timer.
type Countdown struct {
	Period    Period
	Remaining time.Duration
	Text      string
}

// Countdowns returns the countdown for every period in display order.
func Countdowns(now time.Time) []Countdown {
	out := make([]Countdown, 0, len(Periods))
	for _, p := range Periods {
		out = append(out, Countdown{Period: p, Remaining: Until(p, now), Text: Remaining(p, now)})
	}
	return out
}
