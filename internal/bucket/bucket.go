// Package bucket resolves the offset bucket label that forms part of a
// snapshot's dedup key.
package bucket

import (
	"fmt"
	"slices"
	"time"
)

// MinutesToKickoff returns whole minutes until kickoff, floored at zero.
func MinutesToKickoff(kickoff, now time.Time) int {
	d := kickoff.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(d / time.Minute)
}

// Resolver maps a (kickoff, capture time) pair to a bucket label.
type Resolver struct {
	offsets   []int // ascending
	tolerance int
}

// NewResolver creates a Resolver for the given offsets (minutes before
// kickoff) and tolerance in minutes. An empty offset list selects hourly
// buckets keyed by the capture hour.
func NewResolver(offsets []int, toleranceMin int) *Resolver {
	sorted := slices.Clone(offsets)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	return &Resolver{offsets: sorted, tolerance: toleranceMin}
}

// Hourly reports whether the resolver labels buckets by capture hour.
func (r *Resolver) Hourly() bool {
	return len(r.offsets) == 0
}

// Resolve returns the bucket label for a snapshot captured at now for a
// fixture kicking off at kickoff. The first offset in ascending order within
// tolerance wins. ok is false when no offset window contains the capture.
func (r *Resolver) Resolve(kickoff, now time.Time) (string, bool) {
	if r.Hourly() {
		return "H-" + now.UTC().Format("2006010215"), true
	}
	mins := MinutesToKickoff(kickoff, now)
	for _, off := range r.offsets {
		if abs(mins-off) <= r.tolerance {
			return Label(off), true
		}
	}
	return "", false
}

// Label formats an offset in minutes as a bucket label, e.g. "T-60m".
func Label(offsetMin int) string {
	return fmt.Sprintf("T-%dm", offsetMin)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
