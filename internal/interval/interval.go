package interval

import (
	"sort"
	"time"
)

// Interval is a half-open time range [Start, End). Comparisons are done on
// absolute instants; the location carried by the time values is display
// metadata only.
type Interval struct {
	Start time.Time
	End   time.Time
}

func New(start, end time.Time) Interval {
	return Interval{Start: start, End: end}
}

// Valid reports whether the interval is non-empty.
func (iv Interval) Valid() bool {
	return iv.End.After(iv.Start)
}

func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// Overlaps reports whether iv and other share any instant.
// Half-open intervals: [a,b) overlaps [c,d) iff a < d && c < b.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Contains reports whether other lies fully within iv.
func (iv Interval) Contains(other Interval) bool {
	return !other.Start.Before(iv.Start) && !other.End.After(iv.End)
}

// Difference returns the parts of iv not covered by other: the whole of iv
// when they do not overlap, nothing when other covers iv, one remainder on a
// partial edge overlap, and two pieces when other sits strictly inside iv.
func (iv Interval) Difference(other Interval) []Interval {
	if !iv.Overlaps(other) || !other.Valid() {
		if iv.Valid() {
			return []Interval{iv}
		}
		return nil
	}

	var parts []Interval
	if iv.Start.Before(other.Start) {
		parts = append(parts, Interval{Start: iv.Start, End: other.Start})
	}
	if other.End.Before(iv.End) {
		parts = append(parts, Interval{Start: other.End, End: iv.End})
	}
	return parts
}

// Merge coalesces overlapping and touching intervals into a minimal sorted
// set. The input is not modified.
func Merge(ivs []Interval) []Interval {
	if len(ivs) < 2 {
		return ivs
	}
	sorted := make([]Interval, len(ivs))
	copy(sorted, ivs)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	merged := sorted[:1]
	for _, iv := range sorted[1:] {
		last := &merged[len(merged)-1]
		if !iv.Start.After(last.End) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// SubtractAll removes every busy interval from every free interval, returning
// the remaining free time. Each busy interval is folded over the whole free
// set, flattening the per-interval differences.
func SubtractAll(free []Interval, busy []Interval) []Interval {
	result := free
	for _, b := range busy {
		var next []Interval
		for _, f := range result {
			next = append(next, f.Difference(b)...)
		}
		result = next
	}
	return result
}
