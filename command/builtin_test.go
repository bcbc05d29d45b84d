package command

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/onnwee/garden-tender/stock"
	"github.com/onnwee/garden-tender/tracker"
	"github.com/onnwee/garden-tender/tracker/trackertest"
)

type staticFetcher struct{}

func (staticFetcher) Fetch(context.Context) (*stock.Result, error) {
	return &stock.Result{
		Stock:   stock.Snapshot{Gear: []stock.Item{{Name: "Trowel", Quantity: 2}}},
		Weather: stock.Weather{Condition: "Sunny", Bonus: stock.NoBonus, Icon: stock.DefaultIcon},
	}, nil
}

func newBot(t *testing.T) (*Dispatcher, *trackertest.Virtual, *tracker.Tracker) {
	t.Helper()
	v := trackertest.New(time.Date(2025, 6, 1, 12, 0, 0, 0, time.Local))
	tr := tracker.New(tracker.Options{
		Fetcher:   staticFetcher{},
		Scheduler: v,
		Clock:     v,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	d := NewDispatcher(Options{Prefix: "!", Registry: NewRegistry(Builtins(tr)...)})
	return d, v, tr
}

func TestHelp(t *testing.T) {
	d, _, _ := newBot(t)
	out := &captureSender{}

	d.Handle(context.Background(), msg("u1", "!help"), out)
	d.Handle(context.Background(), msg("u1", "!help gag"), out)
	d.Handle(context.Background(), msg("u1", "!help nope"), out)

	got := out.all()
	if len(got) != 3 {
		t.Fatalf("replies = %v", got)
	}
	for _, want := range []string{"Total Commands: 3", "01. !garden", "02. !help", "03. !ping", `Prefix: "!"`} {
		if !strings.Contains(got[0], want) {
			t.Errorf("help menu missing %q:\n%s", want, got[0])
		}
	}
	for _, want := range []string{"Command: garden", "Usage: !garden on | off | status", "Aliases: gag, gagstock"} {
		if !strings.Contains(got[1], want) {
			t.Errorf("command help missing %q:\n%s", want, got[1])
		}
	}
	if !strings.Contains(got[2], `"nope" not found`) {
		t.Errorf("unknown command reply = %q", got[2])
	}
}

func TestPing(t *testing.T) {
	d, _, _ := newBot(t)
	out := &captureSender{}
	d.Handle(context.Background(), msg("u1", "!ping"), out)

	got := out.all()
	if len(got) != 2 || got[0] != "🏓 Pong!" || !strings.HasPrefix(got[1], "⚡ Response time: ") {
		t.Errorf("replies = %v", got)
	}
}

func TestGardenLifecycle(t *testing.T) {
	d, v, tr := newBot(t)
	out := &captureSender{}
	ctx := context.Background()

	d.Handle(ctx, msg("u1", "!garden"), out)
	d.Handle(ctx, msg("u1", "!garden status"), out)
	d.Handle(ctx, msg("u1", "!gag on"), out)
	d.Handle(ctx, msg("u1", "!garden on"), out)
	v.Advance(3 * time.Second)
	d.Handle(ctx, msg("u1", "!gagstock status"), out)
	d.Handle(ctx, msg("u1", "!garden off"), out)
	d.Handle(ctx, msg("u1", "!garden off"), out)

	got := out.all()
	wants := []string{
		"Usage: '!garden on'",
		"don't have an active tracking session",
		"tracking started",
		"already tracking",
		"Update #1 (current stock)",
		"Updates sent: 1",
		"tracking stopped",
		"don't have an active tracking session",
	}
	if len(got) != len(wants) {
		t.Fatalf("replies = %d, want %d:\n%s", len(got), len(wants), strings.Join(got, "\n---\n"))
	}
	for i, w := range wants {
		if !strings.Contains(got[i], w) {
			t.Errorf("reply %d missing %q:\n%s", i, w, got[i])
		}
	}
	if tr.Registry().Len() != 0 {
		t.Error("session left behind after off")
	}
}
