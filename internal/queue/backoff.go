package queue

import "time"

// Backoff returns the delay before retry attempt retryCount (zero-based):
// min(2^retryCount seconds, cap). A cap of zero falls back to five minutes.
func Backoff(retryCount int, cap time.Duration) time.Duration {
	if cap <= 0 {
		cap = 5 * time.Minute
	}
	if retryCount < 0 {
		retryCount = 0
	}
	// 2^63 nanoseconds overflows long before the shift does; bail out once
	// the exponent alone exceeds the cap.
	if retryCount > 30 {
		return cap
	}
	delay := time.Duration(1<<uint(retryCount)) * time.Second
	if delay > cap {
		return cap
	}
	return delay
}
