package control

import "time"

type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half_open"
)

// Breaker guards the transport poll loop. After Threshold consecutive
// failures it opens and polling pauses; each consecutive reopen doubles the
// cooldown up to MaxCooldown. A success in half-open closes it and resets
// the cooldown.
type Breaker struct {
	Threshold    int
	BaseCooldown time.Duration
	MaxCooldown  time.Duration

	state    BreakerState
	failures int
	reopens  int
	openedAt time.Time
}

func NewBreaker(threshold int, base, max time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if base <= 0 {
		base = 5 * time.Second
	}
	if max < base {
		max = 8 * base
	}
	return &Breaker{
		Threshold:    threshold,
		BaseCooldown: base,
		MaxCooldown:  max,
		state:        BreakerClosed,
	}
}

func (b *Breaker) State() BreakerState {
	return b.state
}

// Allow reports whether a poll may run now. An open breaker transitions to
// half-open once its cooldown has elapsed, admitting a single probe.
func (b *Breaker) Allow(now time.Time) bool {
	if b.state != BreakerOpen {
		return true
	}
	if now.Sub(b.openedAt) >= b.Cooldown() {
		b.state = BreakerHalfOpen
		return true
	}
	return false
}

// Cooldown returns the current open-state pause duration.
func (b *Breaker) Cooldown() time.Duration {
	d := b.BaseCooldown
	for i := 0; i < b.reopens && d < b.MaxCooldown; i++ {
		d *= 2
	}
	if d > b.MaxCooldown {
		d = b.MaxCooldown
	}
	return d
}

// Success records a successful poll.
func (b *Breaker) Success() {
	b.state = BreakerClosed
	b.failures = 0
	b.reopens = 0
}

// Failure records a failed poll. A failure while half-open reopens
// immediately and escalates the cooldown.
func (b *Breaker) Failure(now time.Time) {
	if b.state == BreakerHalfOpen {
		b.state = BreakerOpen
		b.openedAt = now
		b.reopens++
		return
	}
	b.failures++
	if b.failures >= b.Threshold {
		b.state = BreakerOpen
		b.openedAt = now
		b.failures = 0
	}
}
