// Package pace implements the cooperative delay loop used between
// outreach actions. Long waits must remain responsive to a stop
// request, so sleeps happen in one-second steps with the continue
// predicate checked before each step.
package pace

import "time"

// step is the cancellation granularity.
const step = time.Second

// Wait sleeps for the given number of seconds, checking shouldContinue
// before each one-second increment. It returns true if the full wait
// elapsed and false if shouldContinue went false first. Returning early
// is not an error; it is the normal stop path.
func Wait(seconds int, shouldContinue func() bool) bool {
	for i := 0; i < seconds; i++ {
		if !shouldContinue() {
			return false
		}
		time.Sleep(step)
	}
	return shouldContinue()
}
