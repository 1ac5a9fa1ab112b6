// Package cooldown computes how long an action has to wait after its last occurrence.
package cooldown

import "time"

// Result describes the state of a cooldown at a given instant.
type Result struct {
	Elapsed   time.Duration
	Remaining time.Duration
}

// Remaining returns the elapsed and remaining time of a cooldown of length d
// that started at last. A nil last means the action never happened, so there
// is nothing to wait for.
func Remaining(last *time.Time, d time.Duration, now time.Time) Result {
	if last == nil {
		return Result{}
	}
	elapsed := now.Sub(*last)
	if elapsed < 0 {
		// clock skew between writers; treat the event as happening now
		elapsed = 0
	}
	remaining := d - elapsed
	if remaining < 0 {
		remaining = 0
	}
	return Result{Elapsed: elapsed, Remaining: remaining}
}

// Active reports whether there is still time left to wait.
func (r Result) Active() bool {
	return r.Remaining > 0
}

// SecondsRemaining rounds the remaining time up to whole seconds so a client
// countdown never reaches zero before the server would accept the action.
func (r Result) SecondsRemaining() int64 {
	if r.Remaining <= 0 {
		return 0
	}
	secs := int64(r.Remaining / time.Second)
	if r.Remaining%time.Second != 0 {
		secs++
	}
	return secs
}

// NextEligibleAt returns the first instant the action is allowed again.
func NextEligibleAt(last *time.Time, d time.Duration, now time.Time) time.Time {
	if last == nil {
		return now
	}
	next := last.Add(d)
	if next.Before(now) {
		return now
	}
	return next
}

// Now returns the current UTC time truncated to whole seconds, the resolution
// timestamps are stored with.
func Now() time.Time {
	return Truncate(time.Now())
}

// Truncate normalizes t to UTC and whole seconds.
func Truncate(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
