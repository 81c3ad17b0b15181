package resilience

import (
	"context"
	"math/rand/v2"
	"time"
)

// Pacer inserts a randomized delay between successive external calls
// (pages, keywords, categories) to reduce burst load on upstream sources.
// The delay is drawn uniformly from [Min, Max].
type Pacer struct {
	min time.Duration
	max time.Duration
}

// NewPacer creates a pacer with the given delay window. A zero or inverted
// window disables pacing.
func NewPacer(min, max time.Duration) *Pacer {
	if min < 0 {
		min = 0
	}
	if max < min {
		max = min
	}
	return &Pacer{min: min, max: max}
}

// Wait sleeps for a random duration within the window, or returns early if
// the context is cancelled.
func (p *Pacer) Wait(ctx context.Context) error {
	d := p.next()
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p *Pacer) next() time.Duration {
	if p.max <= p.min {
		return p.min
	}
	return p.min + time.Duration(rand.Int64N(int64(p.max-p.min)+1))
}
