package signal

import (
	"sync"
	"time"
)

// Clock is the engine's audio clock: time elapsed since the engine started.
type Clock interface {
	Now() time.Duration
}

type systemClock struct{ start time.Time }

// SystemClock returns a clock driven by the monotonic wall clock.
func SystemClock() Clock { return systemClock{start: time.Now()} }

func (c systemClock) Now() time.Duration { return time.Since(c.start) }

// ManualClock only moves when told to. Used for offline rendering and tests.
type ManualClock struct {
	mu sync.Mutex
	t  time.Duration
}

func (c *ManualClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t += d
	c.mu.Unlock()
}

func (c *ManualClock) Set(t time.Duration) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}
