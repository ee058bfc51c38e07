package models

import "time"

// RateLimitPolicy caps MaxRequests per Window for one identity key.
type RateLimitPolicy struct {
	MaxRequests int
	Window      time.Duration
}

// RateLimitEntry is the fixed-window counter kept per identity key.
type RateLimitEntry struct {
	Count         int
	WindowResetAt time.Time
}

type AdmissionDecision struct {
	Allowed           bool
	Limit             int
	Remaining         int
	ResetAt           time.Time
	RetryAfterSeconds int
}

// RetryAfterSeconds rounds the time left until resetAt up to whole seconds.
func RetryAfterSeconds(resetAt, now time.Time) int {
	d := resetAt.Sub(now)
	if d <= 0 {
		return 0
	}
	secs := int(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}
