package loop

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Clock is the time source of a scheduler.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// WallClock returns the real clock.
func WallClock() Clock {
	return clock.New()
}

// VirtualClock is a clock whose Sleep returns at once after moving time
// forward. It lets a loop run at full speed in tests and replays.
type VirtualClock struct {
	lock sync.Mutex
	now  time.Time
}

// NewVirtualClock creates a virtual clock starting at start.
func NewVirtualClock(start time.Time) *VirtualClock {
	return &VirtualClock{now: start}
}

// Now returns the virtual time.
func (c *VirtualClock) Now() time.Time {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.now
}

// Sleep moves the virtual time forward by d.
func (c *VirtualClock) Sleep(d time.Duration) {
	c.Advance(d)
}

// Advance moves the virtual time forward by d, standing in for work done
// between two rounds.
func (c *VirtualClock) Advance(d time.Duration) {
	if d <= 0 {
		return
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	c.now = c.now.Add(d)
}
