package util

import (
	"sync"
	"time"
)

// Cooldown is a short timed suppression window. Trigger opens the window;
// Active reports whether it is still open. Re-triggering resets the window,
// cancelling the previous expiry timer so stale fires cannot reopen it.
//
// Used to swallow the clipboard change notification that follows a
// programmatic copy, the same way a drag handler swallows the synthetic
// click that follows pointer-up.
type Cooldown struct {
	mu       sync.Mutex
	duration time.Duration
	timer    *time.Timer
	active   bool
}

func NewCooldown(duration time.Duration) *Cooldown {
	return &Cooldown{duration: duration}
}

func (c *Cooldown) Trigger() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timer != nil {
		c.timer.Stop()
	}
	c.active = true
	c.timer = time.AfterFunc(c.duration, func() {
		c.mu.Lock()
		c.active = false
		c.mu.Unlock()
	})
}

func (c *Cooldown) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Cancel closes the window immediately.
func (c *Cooldown) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
	}
	c.active = false
}
