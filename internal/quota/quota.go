// Package quota holds the pure pacing policy: daily action ceilings
// and randomized delay windows. Nothing here touches the clock, the
// ledger, or the network; callers supply today's counts and act on the
// returned decisions.
package quota

import "math/rand"

// WithinQuota reports whether one more action is allowed given today's
// used count and the configured ceiling. The comparison is strict:
// used == ceiling means the quota is exhausted.
func WithinQuota(used, ceiling int) bool {
	return used < ceiling
}

// Remaining returns how many actions are left, never negative.
func Remaining(used, ceiling int) int {
	if used >= ceiling {
		return 0
	}
	return ceiling - used
}

// Window is an inclusive [Min, Max] delay range in seconds.
type Window struct {
	Min int
	Max int
}

// Sample draws a uniformly random duration from the window. Each call
// draws independently. A degenerate window (Min == Max) returns Min.
func (w Window) Sample() int {
	if w.Max <= w.Min {
		return w.Min
	}
	return w.Min + rand.Intn(w.Max-w.Min+1)
}
