package infra

import "time"

const (
	// BackoffFloor is the delay before the first reconnect attempt.
	BackoffFloor = 1 * time.Second
	// BackoffCap bounds the delay no matter how many attempts failed.
	BackoffCap = 30 * time.Second
)

// CalculateBackoff returns the reconnect delay for the given number of
// consecutive failures (0-based): floor doubled per failure, capped.
func CalculateBackoff(failures int) time.Duration {
	if failures <= 0 {
		return BackoffFloor
	}
	// 1 << 5 seconds already exceeds the cap; avoid shifting further.
	if failures > 5 {
		return BackoffCap
	}
	delay := BackoffFloor << uint(failures)
	if delay > BackoffCap {
		return BackoffCap
	}
	return delay
}
