// Package stock fetches Grow A Garden shop and weather snapshots and derives
// the fingerprints used to tell a rotated shop from a stale one.
package stock

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Item is a single shop listing.
type Item struct {
	Name     string
	Quantity int
}

// Snapshot is one read of every shop category. It is never mutated after
// Fetch returns.
type Snapshot struct {
	Gear      []Item
	Seeds     []Item
	Eggs      []Item
	Cosmetics []Item
	Honey     []Item
	Night     []Item
	Blood     []Item
}

// Category pairs a display label with its listings.
type Category struct {
	Key   string
	Items []Item
}

// Categories returns the categories in report order.
func (s Snapshot) Categories() []Category {
	return []Category{
		{Key: "gear", Items: s.Gear},
		{Key: "seeds", Items: s.Seeds},
		{Key: "eggs", Items: s.Eggs},
		{Key: "cosmetics", Items: s.Cosmetics},
		{Key: "honey", Items: s.Honey},
		{Key: "night", Items: s.Night},
		{Key: "blood", Items: s.Blood},
	}
}

// TotalItems counts listings across all categories.
func (s Snapshot) TotalItems() int {
	n := 0
	for _, c := range s.Categories() {
		n += len(c.Items)
	}
	return n
}

// Weather fallbacks used when the upstream payload omits a field.
const (
	UnknownCondition = "Unknown"
	NoBonus          = "N/A"
	DefaultIcon      = "🌦️"
)

// Weather is the current in-game weather.
type Weather struct {
	Condition string
	Bonus     string
	Icon      string
}

// Result is what a successful Fetch returns.
type Result struct {
	Stock   Snapshot
	Weather Weather
}

// quantity accepts both JSON numbers and numeric strings.
type quantity int

func (q *quantity) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*q = 0
		return nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		*q = quantity(n)
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("quantity %q: %w", s, err)
	}
	*q = quantity(f)
	return nil
}

type rawItem struct {
	Name  string   `json:"name"`
	Value quantity `json:"value"`
}

type rawStock struct {
	Gear      []rawItem `json:"gearStock"`
	Seeds     []rawItem `json:"seedsStock"`
	Eggs      []rawItem `json:"eggStock"`
	Cosmetics []rawItem `json:"cosmeticsStock"`
	Honey     []rawItem `json:"honeyStock"`
	Night     []rawItem `json:"nightStock"`
	Blood     []rawItem `json:"bloodStock"`
}

type trpcEnvelope []struct {
	Result struct {
		Data struct {
			JSON *rawStock `json:"json"`
		} `json:"data"`
	} `json:"result"`
}

func toItems(in []rawItem) []Item {
	out := make([]Item, 0, len(in))
	for _, r := range in {
		out = append(out, Item{Name: r.Name, Quantity: int(r.Value)})
	}
	return out
}

// parseStock decodes the tRPC batch envelope. A body without
// [0].result.data.json is reported as ErrInvalidShape.
func parseStock(body []byte) (Snapshot, error) {
	var env trpcEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrInvalidShape, err)
	}
	if len(env) == 0 || env[0].Result.Data.JSON == nil {
		return Snapshot{}, fmt.Errorf("%w: missing result.data.json", ErrInvalidShape)
	}
	raw := env[0].Result.Data.JSON
	return Snapshot{
		Gear:      toItems(raw.Gear),
		Seeds:     toItems(raw.Seeds),
		Eggs:      toItems(raw.Eggs),
		Cosmetics: toItems(raw.Cosmetics),
		Honey:     toItems(raw.Honey),
		Night:     toItems(raw.Night),
		Blood:     toItems(raw.Blood),
	}, nil
}

var (
	conditionKeys = []string{"currentWeather", "current", "weather"}
	bonusKeys     = []string{"cropBonuses", "bonus", "bonuses"}
	iconKeys      = []string{"icon", "emoji"}
)

// parseWeather reads the flat weather object, trying each known key in turn.
// Anything unreadable falls back to the defaults.
func parseWeather(body []byte) Weather {
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		m = nil
	}
	return Weather{
		Condition: pick(m, conditionKeys, UnknownCondition),
		Bonus:     pick(m, bonusKeys, NoBonus),
		Icon:      pick(m, iconKeys, DefaultIcon),
	}
}

func pick(m map[string]any, keys []string, fallback string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return fallback
}
