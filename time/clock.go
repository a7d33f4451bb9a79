package time

import (
	"sync"
	"time"
)

// Clock is the wall-clock source for round identifiers.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func SystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// ManualClock only moves when told to.
type ManualClock struct {
	sync sync.Mutex
	now  time.Time
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.sync.Lock()
	defer c.sync.Unlock()

	return c.now
}

func (c *ManualClock) Advance(d time.Duration) {
	c.sync.Lock()
	defer c.sync.Unlock()

	c.now = c.now.Add(d)
}

func (c *ManualClock) Set(t time.Time) {
	c.sync.Lock()
	defer c.sync.Unlock()

	c.now = t
}
