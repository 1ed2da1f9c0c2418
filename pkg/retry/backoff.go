package retry

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// doublingBackOff yields base*2^k before attempt k, so with a base of one
// second the waits are 2s, 4s, 8s... It never stops on its own; the
// attempt limit is applied by backoff.WithMaxRetries.
type doublingBackOff struct {
	base    time.Duration
	attempt uint
}

var _ backoff.BackOff = (*doublingBackOff)(nil)

func newDoublingBackOff(base time.Duration) *doublingBackOff {
	return &doublingBackOff{base: base}
}

func (b *doublingBackOff) NextBackOff() time.Duration {
	b.attempt++
	return Delay(b.base, int(b.attempt))
}

func (b *doublingBackOff) Reset() {
	b.attempt = 0
}

// Delay is the wait before the given 0-indexed attempt. The first attempt
// never waits.
func Delay(base time.Duration, attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return base * time.Duration(uint64(1)<<uint(attempt))
}
