package utils

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// NewExponentialBackoff capped exponential backoff: base, base*2, ... up to max.
// MaxElapsedTime is disabled; callers bound attempts with backoff.WithMaxRetries.
func NewExponentialBackoff(base, max time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = base
	b.MaxInterval = max
	b.MaxElapsedTime = 0
	b.Multiplier = 2.0
	b.RandomizationFactor = 0.1
	b.Reset()
	return b
}
