package stock

import (
	"sort"
	"strconv"
	"strings"
)

// Fingerprint summarizes the gear and seed listings of a snapshot. The zero
// value means "nothing delivered yet"; Fingerprint never returns it.
type Fingerprint string

// FingerprintOf builds the canonical gear+seed summary. Entries are sorted by
// name then quantity so upstream ordering never matters, while duplicates are
// kept so any multiset change is visible.
func FingerprintOf(s Snapshot) Fingerprint {
	var b strings.Builder
	b.WriteString("gear[")
	writeSorted(&b, s.Gear)
	b.WriteString("];seeds[")
	writeSorted(&b, s.Seeds)
	b.WriteString("]")
	return Fingerprint(b.String())
}

func writeSorted(b *strings.Builder, items []Item) {
	sorted := make([]Item, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Name != sorted[j].Name {
			return sorted[i].Name < sorted[j].Name
		}
		return sorted[i].Quantity < sorted[j].Quantity
	})
	for i, it := range sorted {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(it.Name))
		b.WriteByte('=')
		b.WriteString(strconv.Itoa(it.Quantity))
	}
}

// HasChanged reports whether next should be delivered after prev.
func HasChanged(prev, next Fingerprint) bool {
	return prev == "" || prev != next
}
