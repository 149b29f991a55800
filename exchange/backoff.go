package exchange

import "time"

// Backoff computes reconnect delays. Pure: the delay depends only on the
// policy and the attempt number.
type Backoff struct {
	// Base is the delay for the first retry attempt.
	Base time.Duration
	// Max caps the delay. Max <= Base gives a fixed interval.
	Max time.Duration
}

// Delay returns the wait before retry attempt n (1-based). The delay
// doubles per attempt up to Max; attempts below 1 are treated as 1.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := b.Base
	for i := 1; i < attempt; i++ {
		if d >= b.Max {
			break
		}
		d *= 2
	}
	if b.Max > 0 && d > b.Max {
		d = b.Max
	}
	return d
}
