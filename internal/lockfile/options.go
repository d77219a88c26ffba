package lockfile

import "time"

// Default lock timing.
const (
	DefaultStaleAfter = 10 * time.Second
	DefaultRetryCount = 10
	DefaultMinBackoff = 50 * time.Millisecond
	DefaultMaxBackoff = 500 * time.Millisecond
)

// Options tunes acquisition timing.
type Options struct {
	// StaleAfter is how long a marker may go without a sign of life before
	// it is presumed abandoned.
	StaleAfter time.Duration
	// RetryCount is the number of retries after the first attempt.
	RetryCount int
	// MinBackoff is the sleep before the first retry; it doubles per retry.
	MinBackoff time.Duration
	// MaxBackoff caps the sleep between retries.
	MaxBackoff time.Duration
}

// DefaultOptions returns the stock timing: 10s staleness, 10 retries,
// backoff from 50ms to 500ms.
func DefaultOptions() Options {
	return Options{
		StaleAfter: DefaultStaleAfter,
		RetryCount: DefaultRetryCount,
		MinBackoff: DefaultMinBackoff,
		MaxBackoff: DefaultMaxBackoff,
	}
}

// normalized fills non-positive durations with defaults and clamps a
// negative retry count to zero.
func (o Options) normalized() Options {
	if o.StaleAfter <= 0 {
		o.StaleAfter = DefaultStaleAfter
	}
	if o.MinBackoff <= 0 {
		o.MinBackoff = DefaultMinBackoff
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = DefaultMaxBackoff
	}
	if o.MaxBackoff < o.MinBackoff {
		o.MaxBackoff = o.MinBackoff
	}
	if o.RetryCount < 0 {
		o.RetryCount = 0
	}
	return o
}

// Backoff returns the sleep before the given retry (1-based).
func (o Options) Backoff(retry int) time.Duration {
	if retry < 1 {
		return 0
	}
	d := o.MinBackoff
	for i := 1; i < retry; i++ {
		d *= 2
		if d >= o.MaxBackoff {
			return o.MaxBackoff
		}
	}
	if d > o.MaxBackoff {
		return o.MaxBackoff
	}
	return d
}

// keepaliveInterval is how often a holder refreshes its marker.
func (o Options) keepaliveInterval() time.Duration {
	return o.StaleAfter / 2
}
