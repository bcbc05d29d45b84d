package telemetry

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogOptions mirrors the LOG_* environment keys.
type LogOptions struct {
	Level      string // debug | info | warn | error
	Format     string // text | json
	File       string // optional rotating file, written alongside stdout
	MaxSizeMB  int
	MaxBackups int
}

// ParseLevel maps a LOG_LEVEL value to a slog level. Unknown values fall back
// to info and report ok=false.
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	case "info", "":
		return slog.LevelInfo, true
	default:
		return slog.LevelInfo, false
	}
}

// NewLogHandler builds the process log handler. The returned closer flushes
// the rotating file, if any.
func NewLogHandler(opts LogOptions) (slog.Handler, io.Closer) {
	lvl, ok := ParseLevel(opts.Level)
	if !ok {
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", opts.Level))
	}

	var w io.Writer = os.Stdout
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    orDefault(opts.MaxSizeMB, 20),
			MaxBackups: orDefault(opts.MaxBackups, 3),
			Compress:   true,
		}
		w = io.MultiWriter(os.Stdout, lj)
		closer = lj
	}

	ho := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(opts.Format, "json") {
		return slog.NewJSONHandler(w, ho), closer
	}
	return slog.NewTextHandler(w, ho), closer
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
