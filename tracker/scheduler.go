package tracker

import "time"

// Timer is a cancellable deferred action.
type Timer interface {
	// Stop prevents the action from running. It returns false if the action
	// already ran or was already stopped.
	Stop() bool
}

// Scheduler arms deferred actions. Callbacks may run on any goroutine.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// Clock reads wall-clock time.
type Clock interface {
	Now() time.Time
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// RealScheduler schedules with time.AfterFunc.
func RealScheduler() Scheduler { return realScheduler{} }

// RealClock reads time.Now.
func RealClock() Clock { return realClock{} }
