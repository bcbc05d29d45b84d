package command

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"

	"github.com/google/uuid"

	"github.com/onnwee/garden-tender/telemetry"
	"github.com/onnwee/garden-tender/tracker"
)

// Options configures a Dispatcher.
type Options struct {
	Registry *Registry
	// Prefix every command must start with. Empty means every message is a
	// candidate.
	Prefix string
	// Admins are sender ids or logins allowed to run admin-only commands.
	// When empty, admin-only commands are open to everyone.
	Admins []string
	// SelfID is the bot's own user id; its messages are ignored.
	SelfID string
}

// Dispatcher routes messages to commands.
type Dispatcher struct {
	reg    *Registry
	prefix string
	admins map[string]bool
	selfID string
}

// NewDispatcher builds a Dispatcher.
func NewDispatcher(opts Options) *Dispatcher {
	d := &Dispatcher{reg: opts.Registry, prefix: opts.Prefix, selfID: opts.SelfID, admins: map[string]bool{}}
	if d.reg == nil {
		d.reg = NewRegistry()
	}
	for _, a := range opts.Admins {
		if a = strings.ToLower(strings.TrimSpace(a)); a != "" {
			d.admins[a] = true
		}
	}
	return d
}

// Registry returns the command registry.
func (d *Dispatcher) Registry() *Registry { return d.reg }

// SetSelfID records the bot's id once it is known.
func (d *Dispatcher) SetSelfID(id string) { d.selfID = id }

// Parse splits text into a command name and args. ok is false when text is
// not addressed to the bot.
func (d *Dispatcher) Parse(text string) (name string, args []string, ok bool) {
	body := strings.TrimSpace(text)
	if d.prefix != "" {
		if !strings.HasPrefix(body, d.prefix) {
			return "", nil, false
		}
		body = strings.TrimSpace(body[len(d.prefix):])
	}
	fields := strings.Fields(body)
	if len(fields) == 0 {
		return "", nil, false
	}
	return strings.ToLower(fields[0]), fields[1:], true
}

func (d *Dispatcher) isAdmin(m Message) bool {
	if len(d.admins) == 0 {
		return true
	}
	return d.admins[strings.ToLower(m.SenderID)] || d.admins[strings.ToLower(m.SenderName)]
}

// Handle runs the command addressed by msg, replying through out. It reports
// whether a command ran. Command errors and panics are logged and answered
// with a generic error in the thread.
func (d *Dispatcher) Handle(ctx context.Context, msg Message, out tracker.Sender) bool {
	if msg.Text == "" || msg.SenderID == "" || (d.selfID != "" && msg.SenderID == d.selfID) {
		return false
	}
	name, args, ok := d.Parse(msg.Text)
	if !ok {
		return false
	}
	cmd, ok := d.reg.Lookup(name)
	if !ok {
		return false
	}

	ctx = telemetry.WithCorrelation(ctx, uuid.NewString())
	logger := telemetry.LoggerWithCorr(ctx).With(
		slog.String("command", cmd.Name),
		slog.String("sender", msg.SenderID),
		slog.String("thread", msg.Thread))

	env := &Env{Message: msg, Out: out, Name: name, Args: args, Prefix: d.prefix, Commands: d.reg}

	if cmd.AdminOnly && !d.isAdmin(msg) {
		logger.Info("admin-only command rejected")
		telemetry.CommandHandled(cmd.Name, "forbidden")
		d.reply(ctx, logger, env, fmt.Sprintf("🚫 Only bot admins can use %s.", env.Invocation()))
		return true
	}

	ctx, span := telemetry.StartSpan(ctx, "command."+cmd.Name, telemetry.ChannelAttr(msg.Thread))
	defer span.End()

	err := d.run(ctx, cmd, env)
	if err != nil {
		telemetry.RecordError(span, err)
		telemetry.CommandHandled(cmd.Name, "error")
		logger.Error("command failed", slog.Any("err", err))
		d.reply(ctx, logger, env, fmt.Sprintf("An error occurred while running the command: %s. Check server logs.", cmd.Name))
		return true
	}
	telemetry.SetSpanSuccess(span)
	telemetry.CommandHandled(cmd.Name, "ok")
	logger.Debug("command handled", slog.Int("args", len(args)))
	return true
}

func (d *Dispatcher) run(ctx context.Context, cmd *Command, env *Env) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v\n%s", cmd.Name, r, debug.Stack())
		}
	}()
	return cmd.Run(ctx, env)
}

func (d *Dispatcher) reply(ctx context.Context, logger *slog.Logger, env *Env, text string) {
	if err := env.Reply(ctx, text); err != nil {
		logger.Warn("reply failed", slog.Any("err", err))
	}
}
