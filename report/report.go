// Package report renders tracking updates and command replies as chat text.
// Every function is deterministic for its inputs.
package report

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/onnwee/garden-tender/resetclock"
	"github.com/onnwee/garden-tender/stock"
)

// Kind labels why an update was delivered.
type Kind string

const (
	KindInitial Kind = "initial"
	KindFresh   Kind = "fresh"
	KindForced  Kind = "forced"
	KindError   Kind = "error"
)

// Update is everything Render needs for one stock report.
type Update struct {
	Kind      Kind
	Number    int
	Result    stock.Result
	Now       time.Time
	StartedAt time.Time
	// NextCheck is the delay until the session's next scheduled fetch.
	NextCheck time.Duration
}

var categoryTitles = map[string]string{
	"gear":      "🛠️ Gear",
	"seeds":     "🌱 Seeds",
	"eggs":      "🥚 Eggs",
	"cosmetics": "💄 Cosmetics",
	"honey":     "🍯 Honey Stock",
	"night":     "🌙 Night Stock",
	"blood":     "🩸 Blood Stock",
}

var countdownTitles = map[resetclock.Period]string{
	resetclock.Gear:     "🛠️🌱 Gear/Seeds",
	resetclock.Egg:      "🥚 Eggs",
	resetclock.Cosmetic: "💄 Cosmetics",
	resetclock.Honey:    "🍯 Honey",
}

func headline(k Kind) string {
	switch k {
	case KindInitial:
		return "current stock"
	case KindFresh:
		return "fresh restock"
	case KindForced:
		return "no change detected"
	default:
		return string(k)
	}
}

// Render formats a successful fetch.
func Render(u Update) string {
	var b strings.Builder
	snap := u.Result.Stock

	fmt.Fprintf(&b, "🌾 Grow A Garden Update #%d (%s) 📊 %d items\n", u.Number, headline(u.Kind), snap.TotalItems())
	for _, c := range snap.Categories() {
		b.WriteString("\n")
		b.WriteString(categoryTitles[c.Key])
		b.WriteString(":\n")
		writeItems(&b, c)
	}

	w := u.Result.Weather
	fmt.Fprintf(&b, "\n🌤️ Weather: %s %s\n🪴 Bonus: %s\n", w.Icon, w.Condition, w.Bonus)

	b.WriteString("\n")
	b.WriteString(Resets(u.Now))

	fmt.Fprintf(&b, "\n📊 Running: %dmin | Update #%d\n", Minutes(u.Now.Sub(u.StartedAt)), u.Number)
	fmt.Fprintf(&b, "🔄 Next check: %s", resetclock.Format(u.NextCheck, u.NextCheck >= time.Hour))
	return b.String()
}

// Resets renders the "Next resets" block, one line per period.
func Resets(now time.Time) string {
	var b strings.Builder
	b.WriteString("⏰ Next resets:\n")
	for _, cd := range resetclock.Countdowns(now) {
		fmt.Fprintf(&b, "%s: %s\n", countdownTitles[cd.Period], cd.Text)
	}
	return b.String()
}

func writeItems(b *strings.Builder, c stock.Category) {
	if len(c.Items) == 0 {
		fmt.Fprintf(b, "❌ None available\n")
		return
	}
	for _, it := range c.Items {
		fmt.Fprintf(b, "• %s x%d\n", it.Name, it.Quantity)
	}
}

// ErrorUpdate describes a failed fetch that is still reported to the user.
type ErrorUpdate struct {
	Number    int
	Err       error
	NextCheck time.Duration
}

// RenderError formats a failed fetch.
func RenderError(u ErrorUpdate) string {
	reason := "Could not reach growagarden.gg"
	if errors.Is(u.Err, stock.ErrInvalidShape) {
		reason = "growagarden.gg returned data in an unexpected format"
	}
	return fmt.Sprintf("🚨 Update #%d - API error!\n❌ %s\n🔄 Will retry in %s",
		u.Number, reason, resetclock.Format(u.NextCheck, u.NextCheck >= time.Hour))
}

// Minutes floors d to whole minutes.
func Minutes(d time.Duration) int {
	if d < 0 {
		return 0
	}
	return int(d / time.Minute)
}
