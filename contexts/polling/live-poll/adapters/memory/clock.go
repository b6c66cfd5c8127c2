package memory

import (
	"sync"
	"time"
)

// ManualClock is a settable ports.Clock for tests and local demos.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewManualClock(now time.Time) *ManualClock {
	return &ManualClock{now: now.UTC()}
}

// NewLedgerClock starts the clock at the given ledger second.
func NewLedgerClock(seconds int64) *ManualClock {
	return NewManualClock(time.Unix(seconds, 0))
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now.UTC()
}

func (c *ManualClock) SetLedger(seconds int64) {
	c.Set(time.Unix(seconds, 0))
}

func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
