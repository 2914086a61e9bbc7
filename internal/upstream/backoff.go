package upstream

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

// newBackoff builds the reconnect delay policy: base doubling per attempt,
// capped at max, no jitter. The deterministic schedule (1s, 2s, 4s, ... cap)
// keeps reconnect behavior predictable and testable; jitter matters for
// thundering herds, not for a monitor with a handful of instances.
func newBackoff(base, max time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = base
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = max
	b.Reset()
	return b
}
