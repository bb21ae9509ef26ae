package clock

import "time"

type Clock interface {
	Now() time.Time
}

type realClock struct{}

// New returns the wall clock in UTC.
func New() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now().UTC() }

type FakeClock struct {
	now time.Time
}

func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{now: t.UTC()}
}

func (c *FakeClock) Now() time.Time {
	return c.now
}

func (c *FakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}
