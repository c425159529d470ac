// Package deferred schedules cancellable, time-deferred actions against
// either the wall clock or a logical clock that tests advance by hand.
package deferred

import (
	"sort"
	"sync"
	"time"
)

// Handle refers to a scheduled action.
type Handle interface {
	// Cancel prevents the action from running. It reports whether the action
	// was still pending.
	Cancel() bool
}

// Scheduler runs fn once after d has elapsed.
type Scheduler interface {
	After(d time.Duration, fn func()) Handle
}

// RealScheduler schedules against the wall clock. Actions run on their own goroutine.
type RealScheduler struct{}

var _ Scheduler = RealScheduler{}

func (RealScheduler) After(d time.Duration, fn func()) Handle {
	return realHandle{time.AfterFunc(d, fn)}
}

type realHandle struct {
	t *time.Timer
}

func (h realHandle) Cancel() bool {
	return h.t.Stop()
}

// ManualClock is a logical clock. Time only moves when Advance is called, and
// due actions run synchronously on the caller's goroutine in due order.
type ManualClock struct {
	mu      sync.Mutex
	now     time.Duration
	seq     uint64
	pending []*manualTimer
}

var _ Scheduler = (*ManualClock)(nil)

type manualTimer struct {
	clock *ManualClock
	due   time.Duration
	seq   uint64
	fn    func()
	done  bool
}

// NewManualClock returns a logical clock at time zero.
func NewManualClock() *ManualClock {
	return &ManualClock{}
}

func (c *ManualClock) After(d time.Duration, fn func()) Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &manualTimer{clock: c, due: c.now + max(d, 0), seq: c.seq, fn: fn}
	c.pending = append(c.pending, t)
	return t
}

func (t *manualTimer) Cancel() bool {
	c := t.clock
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	c.removeLocked(t)
	return true
}

func (c *ManualClock) removeLocked(t *manualTimer) {
	for i, p := range c.pending {
		if p == t {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return
		}
	}
}

// Advance moves the clock forward by d and runs every action that becomes
// due, including actions scheduled by those actions within the window.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now + d
	c.mu.Unlock()

	for {
		c.mu.Lock()
		t := c.nextDueLocked(target)
		if t == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		c.now = t.due
		t.done = true
		c.removeLocked(t)
		c.mu.Unlock()
		t.fn()
	}
}

func (c *ManualClock) nextDueLocked(target time.Duration) *manualTimer {
	if len(c.pending) == 0 {
		return nil
	}
	sort.SliceStable(c.pending, func(i, j int) bool {
		if c.pending[i].due != c.pending[j].due {
			return c.pending[i].due < c.pending[j].due
		}
		return c.pending[i].seq < c.pending[j].seq
	})
	if c.pending[0].due > target {
		return nil
	}
	return c.pending[0]
}

// Elapsed returns the logical time since the clock was created.
func (c *ManualClock) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Pending returns the number of actions not yet run or cancelled.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
