package stream

import (
	"time"

	"market-dashboard/src/models"

	"github.com/cenkalti/backoff/v5"
)

// -----------------------------------------------------------------------------

// ReconnectPolicy controls the delay between reconnect attempts.
// MaxAttempts 0 retries forever.
type ReconnectPolicy struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       float64
	MaxAttempts  int
}

// -----------------------------------------------------------------------------

// DefaultReconnectPolicy retries every 3 seconds, forever
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		InitialDelay: 3 * time.Second,
		MaxDelay:     3 * time.Second,
		Multiplier:   1,
	}
}

// -----------------------------------------------------------------------------

func PolicyFromConfig(c models.MReconnectConfig) ReconnectPolicy {
	return ReconnectPolicy{
		InitialDelay: time.Duration(c.InitialDelayMs) * time.Millisecond,
		MaxDelay:     time.Duration(c.MaxDelayMs) * time.Millisecond,
		Multiplier:   c.Multiplier,
		Jitter:       c.Jitter,
		MaxAttempts:  c.MaxAttempts,
	}
}

// -----------------------------------------------------------------------------

// delays is the running schedule for one manager
type delays struct {
	policy ReconnectPolicy
	b      *backoff.ExponentialBackOff
}

func newDelays(p ReconnectPolicy) *delays {
	if p.InitialDelay <= 0 {
		p.InitialDelay = DefaultReconnectPolicy().InitialDelay
	}
	if p.MaxDelay < p.InitialDelay {
		p.MaxDelay = p.InitialDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = 1
	}
	if p.Jitter < 0 || p.Jitter >= 1 {
		p.Jitter = 0
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialDelay
	b.MaxInterval = p.MaxDelay
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = p.Jitter
	b.Reset()

	return &delays{policy: p, b: b}
}

// next returns the delay before the following attempt, never above MaxDelay
func (d *delays) next() time.Duration {
	n := d.b.NextBackOff()
	if n > d.policy.MaxDelay {
		n = d.policy.MaxDelay
	}
	return n
}

func (d *delays) reset() {
	d.b.Reset()
}
