package worker

import (
	"math"
	"math/rand"
	"time"
)

// ExponentialBackoff returns base*2^attempt capped at capDelay, plus up to
// 10% jitter so parallel drainers do not retry in lockstep.
func ExponentialBackoff(base, capDelay time.Duration, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	// attempt=0 => base
	// attempt=1 => 2*base
	// attempt=2 => 4*base
	multiple := math.Pow(2, float64(attempt))
	delay := time.Duration(float64(base) * multiple)

	if delay > capDelay || delay <= 0 {
		delay = capDelay
	}

	if jitter := int64(delay / 10); jitter > 0 {
		delay += time.Duration(rand.Int63n(jitter))
	}
	return delay
}
