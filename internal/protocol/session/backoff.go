package session

import (
	"math"
	"math/rand"
	"time"
)

// Delay returns the wait before reconnect attempt N (1-based). The engine
// never retries on its own; this serves callers that do.
func (b BackoffConfig) Delay(attempt int, rng *rand.Rand) time.Duration {
	if attempt <= 1 || b.InitialDelay <= 0 {
		return max(b.InitialDelay, 0)
	}
	mult := math.Max(b.Multiplier, 1.0)
	delay := float64(b.InitialDelay) * math.Pow(mult, float64(attempt-1))
	if b.MaxDelay > 0 {
		delay = math.Min(delay, float64(b.MaxDelay))
	}
	if b.Jitter {
		f := 0.5
		if rng != nil {
			f += rng.Float64()
		}
		delay *= f
	}
	return time.Duration(delay)
}
