package command

import (
	"context"
	"errors"
	"strings"

	"github.com/onnwee/garden-tender/report"
	"github.com/onnwee/garden-tender/tracker"
)

// Tracker is the part of tracker.Tracker the garden command drives.
type Tracker interface {
	Start(owner string, out tracker.Sender) (tracker.Started, error)
	Stop(owner string) (tracker.Stats, error)
	Status(owner string) (tracker.Status, error)
}

// Garden controls the sender's stock tracking session: on, off or status.
func Garden(t Tracker) *Command {
	return &Command{
		Name:        "garden",
		Description: "Track Grow A Garden stock + weather after every gear/seed reset",
		Usage:       "garden on | off | status",
		Aliases:     []string{"gag", "gagstock"},
		AdminOnly:   true,
		Run: func(ctx context.Context, env *Env) error {
			return runGarden(ctx, t, env)
		},
	}
}

func runGarden(ctx context.Context, t Tracker, env *Env) error {
	action := ""
	if len(env.Args) > 0 {
		action = strings.ToLower(env.Args[0])
	}
	owner := env.Message.SenderID
	invoke := env.Invocation()

	switch action {
	case "on":
		started, err := t.Start(owner, env.Out)
		if errors.Is(err, tracker.ErrAlreadyTracking) {
			return env.Reply(ctx, report.AlreadyTracking(invoke))
		}
		if err != nil {
			return err
		}
		return env.Reply(ctx, report.Started(invoke, started.FirstReportIn, started.NextBoundary))
	case "off":
		stats, err := t.Stop(owner)
		if errors.Is(err, tracker.ErrNoActiveSession) {
			return env.Reply(ctx, report.NoSession(invoke))
		}
		if err != nil {
			return err
		}
		return env.Reply(ctx, report.Stopped(stats.Elapsed, stats.Updates))
	case "status":
		st, err := t.Status(owner)
		if errors.Is(err, tracker.ErrNoActiveSession) {
			return env.Reply(ctx, report.NoSession(invoke))
		}
		if err != nil {
			return err
		}
		return env.Reply(ctx, report.StatusActive(invoke, st.Elapsed, st.Updates, st.NextBoundary))
	default:
		return env.Reply(ctx, report.Usage(invoke))
	}
}

// Builtins returns the standard command set.
func Builtins(t Tracker) []*Command {
	return []*Command{Help(), Ping(), Garden(t)}
}
