package util

import (
	"time"

	"golang.org/x/time/rate"
)

// NewRateLimiter returns a limiter that allows perMinute operations per
// minute with a burst of one. A non-positive rate disables limiting.
func NewRateLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
}
