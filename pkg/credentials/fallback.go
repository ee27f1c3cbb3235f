package credentials

import (
	"time"
)

// Fallback policy limits.
const (
	maxBackoff       = 120 * time.Second
	authCooldown     = 30 * time.Minute
	quotaCooldown    = 24 * time.Hour
	upstreamCooldown = 60 * time.Second
	networkCooldown  = 10 * time.Second
)

// Decision is the fallback policy's verdict for one failed attempt.
type Decision struct {
	// ShouldFallback is true when the next eligible account should be
	// tried; false means the error is fatal for this request.
	ShouldFallback bool

	// Cooldown is how long the failed connection stays out of rotation.
	Cooldown time.Duration
}

// Classify maps an upstream failure to a fallback decision. Status 0
// means a network or abort error. retryAfter carries a server-specified
// delay (429 retry-after header or parsed body field); failures is the
// connection's consecutive failure count, feeding the exponential
// backoff when the server gave no delay.
func Classify(status int, retryAfter time.Duration, failures int) Decision {
	switch {
	case status == 0:
		return Decision{ShouldFallback: true, Cooldown: networkCooldown}
	case status == 429:
		if retryAfter > 0 {
			return Decision{ShouldFallback: true, Cooldown: retryAfter}
		}
		return Decision{ShouldFallback: true, Cooldown: backoff(failures)}
	case status == 401 || status == 403:
		return Decision{ShouldFallback: true, Cooldown: authCooldown}
	case status == 402 || status == 451:
		return Decision{ShouldFallback: true, Cooldown: quotaCooldown}
	case status >= 500:
		return Decision{ShouldFallback: true, Cooldown: upstreamCooldown}
	default:
		// Remaining 4xx errors are the caller's fault; retrying another
		// account cannot help.
		return Decision{}
	}
}

// backoff computes min(2^n, 120000) milliseconds for n consecutive
// failures.
func backoff(failures int) time.Duration {
	if failures < 0 {
		failures = 0
	}
	if failures > 17 {
		// 2^17 ms already exceeds the cap.
		return maxBackoff
	}
	d := time.Duration(1<<uint(failures)) * time.Millisecond
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}
