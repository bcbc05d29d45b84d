package report

import (
	"fmt"
	"time"

	"github.com/onnwee/garden-tender/resetclock"
)

// Started confirms a new tracking session.
func Started(invoke string, firstIn, nextBoundary time.Duration) string {
	return fmt.Sprintf("✅ Grow A Garden tracking started! First report in %ds, then after every gear/seed reset (next in %s). Use '%s off' to stop.",
		int(firstIn/time.Second), resetclock.Format(nextBoundary, false), invoke)
}

// Stopped reports the final stats of a session.
func Stopped(elapsed time.Duration, updates int) string {
	return fmt.Sprintf("🛑 Grow A Garden tracking stopped.\n⏱️ Ran for: %d minutes\n📈 Updates sent: %d", Minutes(elapsed), updates)
}

// StatusActive describes a running session.
func StatusActive(invoke string, elapsed time.Duration, updates int, nextBoundary time.Duration) string {
	return fmt.Sprintf("📊 Tracking status: ACTIVE ✅\n⏱️ Running for: %d minutes\n📈 Updates sent: %d\n🔄 Next gear reset: %s\nUse '%s off' to stop",
		Minutes(elapsed), updates, resetclock.Format(nextBoundary, false), invoke)
}

// AlreadyTracking rejects a second start for the same user.
func AlreadyTracking(invoke string) string {
	return fmt.Sprintf("📡 You're already tracking Grow A Garden. Use '%s off' to stop.", invoke)
}

// NoSession answers off/status without an active session.
func NoSession(invoke string) string {
	return fmt.Sprintf("⚠️ You don't have an active tracking session. Use '%s on' to start.", invoke)
}

// Usage lists the garden sub-actions.
func Usage(invoke string) string {
	return fmt.Sprintf("📌 Usage: '%[1]s on' start tracking | '%[1]s off' stop | '%[1]s status' check status", invoke)
}
