// Package trackertest provides a virtual clock and scheduler for driving
// tracker sessions deterministically in tests.
package trackertest

import (
	"sort"
	"sync"
	"time"

	"github.com/onnwee/garden-tender/tracker"
)

// Virtual is a manual clock that also implements tracker.Scheduler. Armed
// callbacks run synchronously inside Advance, in due order, with the clock
// set to their due time.
type Virtual struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*timer
}

type timer struct {
	v       *Virtual
	due     time.Time
	seq     int
	f       func()
	stopped bool
	fired   bool
}

func (t *timer) Stop() bool {
	t.v.mu.Lock()
	defer t.v.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// New returns a Virtual clock starting at start.
func New(start time.Time) *Virtual {
	return &Virtual{now: start}
}

// Now implements tracker.Clock.
func (v *Virtual) Now() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.now
}

// AfterFunc implements tracker.Scheduler.
func (v *Virtual) AfterFunc(d time.Duration, f func()) tracker.Timer {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.seq++
	t := &timer{v: v, due: v.now.Add(d), seq: v.seq, f: f}
	v.timers = append(v.timers, t)
	return t
}

// Pending returns the due times of armed timers, earliest first.
func (v *Virtual) Pending() []time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []time.Time
	for _, t := range v.timers {
		if !t.stopped && !t.fired {
			out = append(out, t.due)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Advance moves the clock forward by d, firing every timer that comes due,
// including timers armed by callbacks along the way.
func (v *Virtual) Advance(d time.Duration) {
	v.AdvanceTo(v.Now().Add(d))
}

// AdvanceTo moves the clock to target, firing due timers in order.
func (v *Virtual) AdvanceTo(target time.Time) {
	for {
		v.mu.Lock()
		next := v.nextLocked(target)
		if next == nil {
			if target.After(v.now) {
				v.now = target
			}
			v.mu.Unlock()
			return
		}
		next.fired = true
		if next.due.After(v.now) {
			v.now = next.due
		}
		v.mu.Unlock()
		next.f()
	}
}

func (v *Virtual) nextLocked(target time.Time) *timer {
	var best *timer
	for _, t := range v.timers {
		if t.stopped || t.fired || t.due.After(target) {
			continue
		}
		if best == nil || t.due.Before(best.due) || (t.due.Equal(best.due) && t.seq < best.seq) {
			best = t
		}
	}
	return best
}
