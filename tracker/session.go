package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/onnwee/garden-tender/stock"
)

// State is a session's position in the tracking cycle.
type State int

const (
	StateIdle State = iota
	StateFetching
	StateWaiting
	StatePolling
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateWaiting:
		return "waiting_for_boundary"
	case StatePolling:
		return "polling"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Session is one owner's tracking subscription. Fields below mu are owned
// by the session's callback chain and guarded by mu.
type Session struct {
	Owner     string
	ID        string
	StartedAt time.Time

	mu              sync.Mutex
	updateCount     int
	scheduledWake   Timer
	pollWake        Timer
	lastFingerprint stock.Fingerprint
	state           State
	attempts        int
	stopped         bool
	sender          Sender
	ctx             context.Context
	cancel          context.CancelFunc
}

// UpdateCount returns the number of reports delivered so far.
func (s *Session) UpdateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateCount
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// stopTimersLocked cancels both wakes. Caller holds mu.
func (s *Session) stopTimersLocked() {
	if s.scheduledWake != nil {
		s.scheduledWake.Stop()
		s.scheduledWake = nil
	}
	if s.pollWake != nil {
		s.pollWake.Stop()
		s.pollWake = nil
	}
}
