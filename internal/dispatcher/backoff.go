package dispatcher

import (
	"math/rand"
	"time"
)

// Backoff computes retry delays: Base doubled per prior attempt, capped at
// Cap, plus up to Jitter of random noise so a burst of failures does not
// refire as a thundering herd.
type Backoff struct {
	Base   time.Duration
	Cap    time.Duration
	Jitter time.Duration
}

// Delay returns the delay before the next attempt, given the number of
// attempts already made beyond the first.
func (b Backoff) Delay(attempt int) time.Duration {
	base := b.Base
	if base <= 0 {
		base = time.Second
	}
	if attempt > 32 {
		attempt = 32
	}

	d := base << uint(attempt)
	if b.Cap > 0 && (d > b.Cap || d <= 0) {
		d = b.Cap
	}
	if b.Jitter > 0 {
		d += time.Duration(rand.Int63n(int64(b.Jitter)))
	}
	return d
}
