// Package tracker runs per-user Grow A Garden tracking sessions.
//
// Each session is a small state machine driven by at most one armed timer:
//
//	Idle -> Fetching(initial) -> WaitingForBoundary -> Polling(1..N) -> WaitingForBoundary -> ... -> Stopped
//
// The first report is always delivered. Later reports are delivered when the
// gear/seed fingerprint changes after a reset, or forced once polling gives up.
package tracker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/onnwee/garden-tender/report"
	"github.com/onnwee/garden-tender/resetclock"
	"github.com/onnwee/garden-tender/stock"
	"github.com/onnwee/garden-tender/telemetry"
)

var (
	ErrAlreadyTracking = errors.New("already tracking")
	ErrNoActiveSession = errors.New("no active tracking session")
	// ErrUndeliverable is wrapped by Sender implementations when the
	// destination is permanently gone. It ends the session.
	ErrUndeliverable = errors.New("message undeliverable")
)

// Fetcher reads one stock + weather snapshot.
type Fetcher interface {
	Fetch(ctx context.Context) (*stock.Result, error)
}

// Sender delivers text to the thread a session was started from.
type Sender interface {
	Send(ctx context.Context, text string) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, text string) error

func (f SenderFunc) Send(ctx context.Context, text string) error { return f(ctx, text) }

// Config holds the schedule timings.
type Config struct {
	InitialDelay    time.Duration
	SettleOffset    time.Duration
	MinWait         time.Duration
	PollInterval    time.Duration
	MaxPollAttempts int
}

// DefaultConfig returns the production timings.
func DefaultConfig() Config {
	return Config{
		InitialDelay:    3 * time.Second,
		SettleOffset:    30 * time.Second,
		MinWait:         35 * time.Second,
		PollInterval:    10 * time.Second,
		MaxPollAttempts: 6,
	}
}

// Options configures a Tracker. Nil Scheduler, Clock, Registry and Logger
// get real implementations; a zero Config gets DefaultConfig.
type Options struct {
	Fetcher   Fetcher
	Scheduler Scheduler
	Clock     Clock
	Registry  *Registry
	Config    Config
	Logger    *slog.Logger
}

// Tracker owns the scheduling of every session in its Registry.
type Tracker struct {
	fetcher  Fetcher
	sched    Scheduler
	clock    Clock
	registry *Registry
	cfg      Config
	logger   *slog.Logger
}

// New builds a Tracker.
func New(opts Options) *Tracker {
	t := &Tracker{
		fetcher:  opts.Fetcher,
		sched:    opts.Scheduler,
		clock:    opts.Clock,
		registry: opts.Registry,
		cfg:      opts.Config,
		logger:   opts.Logger,
	}
	if t.sched == nil {
		t.sched = RealScheduler()
	}
	if t.clock == nil {
		t.clock = RealClock()
	}
	if t.registry == nil {
		t.registry = NewRegistry()
	}
	if t.cfg == (Config{}) {
		t.cfg = DefaultConfig()
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	t.logger = t.logger.With(slog.String("component", "tracker"))
	return t
}

// Registry returns the session registry.
func (t *Tracker) Registry() *Registry { return t.registry }

// Started describes a newly created session.
type Started struct {
	FirstReportIn time.Duration
	NextBoundary  time.Duration
}

// Stats are the final numbers of a stopped session.
type Stats struct {
	Elapsed time.Duration
	Updates int
}

// Status is a read-only view of a running session.
type Status struct {
	Elapsed      time.Duration
	Updates      int
	NextBoundary time.Duration
	State        State
}

// Start creates owner's session and arms the initial fetch.
func (t *Tracker) Start(owner string, sender Sender) (Started, error) {
	now := t.clock.Now()
	s, err := t.registry.Create(owner, now)
	if err != nil {
		return Started{}, err
	}

	s.mu.Lock()
	s.sender = sender
	s.ctx, s.cancel = context.WithCancel(context.Background())
	if !s.stopped {
		s.scheduledWake = t.sched.AfterFunc(t.cfg.InitialDelay, func() { t.onInitial(s) })
	}
	s.mu.Unlock()

	telemetry.SessionStarted()
	t.logger.Info("tracking started", slog.String("owner", owner), slog.String("session", s.ID))
	return Started{
		FirstReportIn: t.cfg.InitialDelay,
		NextBoundary:  resetclock.Until(resetclock.Gear, now),
	}, nil
}

// Stop cancels owner's timers and in-flight fetch and removes the session.
// No message is sent for the session once Stop returns.
func (t *Tracker) Stop(owner string) (Stats, error) {
	s, ok := t.registry.Remove(owner)
	if !ok {
		return Stats{}, ErrNoActiveSession
	}
	stats := t.halt(s)
	telemetry.SessionStopped("user")
	t.logger.Info("tracking stopped",
		slog.String("owner", owner),
		slog.String("session", s.ID),
		slog.Int("updates", stats.Updates))
	return stats, nil
}

// Status reports on owner's session without changing it.
func (t *Tracker) Status(owner string) (Status, error) {
	s, ok := t.registry.Get(owner)
	if !ok {
		return Status{}, ErrNoActiveSession
	}
	now := t.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Elapsed:      now.Sub(s.StartedAt),
		Updates:      s.updateCount,
		NextBoundary: resetclock.Until(resetclock.Gear, now),
		State:        s.state,
	}, nil
}

// Shutdown stops every session.
func (t *Tracker) Shutdown() {
	for _, owner := range t.registry.Owners() {
		if s, ok := t.registry.Remove(owner); ok {
			t.halt(s)
			telemetry.SessionStopped("shutdown")
		}
	}
}

// halt marks an unregistered session stopped and returns its final stats.
func (t *Tracker) halt(s *Session) Stats {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.state = StateStopped
	s.stopTimersLocked()
	return Stats{Elapsed: t.clock.Now().Sub(s.StartedAt), Updates: s.updateCount}
}

// liveLocked reports whether callbacks may still act on s. Caller holds s.mu.
func (t *Tracker) liveLocked(s *Session) bool {
	return !s.stopped && t.registry.isCurrent(s)
}

type fetchOutcome struct {
	res *stock.Result
	err error
}

// fetch runs one read for s outside the session lock. It returns with s.mu
// held and true if the session is still live afterwards.
func (t *Tracker) fetch(s *Session, state State) (fetchOutcome, bool) {
	s.mu.Lock()
	if !t.liveLocked(s) {
		s.mu.Unlock()
		return fetchOutcome{}, false
	}
	s.scheduledWake, s.pollWake = nil, nil
	s.state = state
	ctx := s.ctx
	s.mu.Unlock()

	res, err := t.fetcher.Fetch(ctx)

	s.mu.Lock()
	if !t.liveLocked(s) {
		s.mu.Unlock()
		return fetchOutcome{}, false
	}
	return fetchOutcome{res: res, err: err}, true
}

func (t *Tracker) onInitial(s *Session) {
	out, ok := t.fetch(s, StateFetching)
	if !ok {
		return
	}
	defer s.mu.Unlock()
	if t.deliverAnywayLocked(s, report.KindInitial, out) {
		t.armBoundaryLocked(s)
	}
}

func (t *Tracker) onBoundary(s *Session) {
	out, ok := t.fetch(s, StatePolling)
	if !ok {
		return
	}
	defer s.mu.Unlock()
	s.attempts = 0
	t.evaluateLocked(s, out)
}

func (t *Tracker) onPoll(s *Session) {
	out, ok := t.fetch(s, StatePolling)
	if !ok {
		return
	}
	defer s.mu.Unlock()
	telemetry.PollAttempted()
	t.evaluateLocked(s, out)
}

func (t *Tracker) onForced(s *Session) {
	out, ok := t.fetch(s, StatePolling)
	if !ok {
		return
	}
	defer s.mu.Unlock()
	if t.deliverAnywayLocked(s, report.KindForced, out) {
		t.armBoundaryLocked(s)
	}
}

// deliverAnywayLocked delivers a read without change detection: the report
// on success, an error report otherwise. Both count as an update.
func (t *Tracker) deliverAnywayLocked(s *Session, kind report.Kind, out fetchOutcome) bool {
	if out.err != nil {
		return t.deliverErrorLocked(s, out.err)
	}
	s.lastFingerprint = stock.FingerprintOf(out.res.Stock)
	return t.deliverLocked(s, kind, out.res)
}

// evaluateLocked handles a post-reset read: deliver on change, otherwise keep
// polling, and force a final read once attempts run out.
func (t *Tracker) evaluateLocked(s *Session, out fetchOutcome) {
	if out.err != nil {
		t.logger.Warn("poll fetch failed",
			slog.String("owner", s.Owner),
			slog.Int("attempt", s.attempts),
			slog.String("kind", stock.Classify(out.err).String()),
			slog.Any("err", out.err))
	} else if fp := stock.FingerprintOf(out.res.Stock); stock.HasChanged(s.lastFingerprint, fp) {
		s.lastFingerprint = fp
		if t.deliverLocked(s, report.KindFresh, out.res) {
			t.armBoundaryLocked(s)
		}
		return
	}

	if s.attempts < t.cfg.MaxPollAttempts {
		s.attempts++
		s.pollWake = t.sched.AfterFunc(t.cfg.PollInterval, func() { t.onPoll(s) })
		return
	}
	t.logger.Debug("no stock change detected, forcing update", slog.String("owner", s.Owner), slog.Int("attempts", s.attempts))
	s.pollWake = t.sched.AfterFunc(0, func() { t.onForced(s) })
}

// boundaryDelay is the wait from now until shortly after the next gear reset.
func (t *Tracker) boundaryDelay(now time.Time) time.Duration {
	d := resetclock.Until(resetclock.Gear, now) + t.cfg.SettleOffset
	if d < t.cfg.MinWait {
		d += resetclock.Gear.Duration()
	}
	return d
}

func (t *Tracker) armBoundaryLocked(s *Session) {
	d := t.boundaryDelay(t.clock.Now())
	s.state = StateWaiting
	s.attempts = 0
	s.scheduledWake = t.sched.AfterFunc(d, func() { t.onBoundary(s) })
	t.logger.Debug("next check scheduled", slog.String("owner", s.Owner), slog.Duration("in", d))
}

// deliverLocked renders and sends a report. It returns false if the session
// was torn down because the message could not be delivered.
func (t *Tracker) deliverLocked(s *Session, kind report.Kind, res *stock.Result) bool {
	now := t.clock.Now()
	s.updateCount++
	text := report.Render(report.Update{
		Kind:      kind,
		Number:    s.updateCount,
		Result:    *res,
		Now:       now,
		StartedAt: s.StartedAt,
		NextCheck: t.boundaryDelay(now),
	})
	return t.sendLocked(s, kind, text)
}

func (t *Tracker) deliverErrorLocked(s *Session, err error) bool {
	t.logger.Warn("stock fetch failed",
		slog.String("owner", s.Owner),
		slog.String("kind", stock.Classify(err).String()),
		slog.Any("err", err))
	s.updateCount++
	text := report.RenderError(report.ErrorUpdate{
		Number:    s.updateCount,
		Err:       err,
		NextCheck: t.boundaryDelay(t.clock.Now()),
	})
	return t.sendLocked(s, report.KindError, text)
}

func (t *Tracker) sendLocked(s *Session, kind report.Kind, text string) bool {
	err := s.sender.Send(s.ctx, text)
	if err == nil {
		telemetry.ReportDelivered(string(kind))
		return true
	}
	if errors.Is(err, ErrUndeliverable) {
		t.logger.Error("report undeliverable, ending session",
			slog.String("owner", s.Owner),
			slog.String("session", s.ID),
			slog.Any("err", err))
		s.stopped = true
		s.state = StateStopped
		s.stopTimersLocked()
		s.cancel()
		if t.registry.removeSession(s) {
			telemetry.SessionStopped("undeliverable")
		}
		return false
	}
	t.logger.Warn("report send failed", slog.String("owner", s.Owner), slog.String("kind", string(kind)), slog.Any("err", err))
	return true
}
