package thread

import (
	"fmt"

	"github.com/BMarelli/nachos/internal/klog"
)

// Condition is a Mesa-style condition variable: Wait always re-acquires
// the associated lock before returning, so callers must re-check their
// predicate in a loop. Grounded on original_source/threads/condition.cc's
// per-waiter-semaphore queue (condition.cc itself was not present in the
// retrieved pack, but its queue-of-semaphores shape is the one
// rwlock.cc's Condition usage implies).
type Condition struct {
	name  string
	lock  *Lock
	queue []*Semaphore
}

// NewCondition creates a condition variable associated with lock. lock
// must be held by the caller of Wait, Signal and Broadcast.
func NewCondition(name string, lock *Lock) *Condition {
	return &Condition{name: name, lock: lock}
}

// Wait releases the lock, blocks until Signal or Broadcast wakes this
// waiter, then re-acquires the lock before returning.
func (c *Condition) Wait() {
	klog.Assert(c.lock.IsHeldByCurrentThread(), "Condition %q: Wait without holding lock", c.name)

	sem := NewSemaphore(fmt.Sprintf("%s-waiter-%d", c.name, len(c.queue)), 0)
	c.queue = append(c.queue, sem)

	c.lock.Release()
	sem.P()
	c.lock.Acquire()
}

// Signal wakes the longest-waiting thread, if any.
func (c *Condition) Signal() {
	klog.Assert(c.lock.IsHeldByCurrentThread(), "Condition %q: Signal without holding lock", c.name)

	if len(c.queue) > 0 {
		sem := c.queue[0]
		c.queue = c.queue[1:]
		sem.V()
	}
}

// Broadcast wakes every waiting thread.
func (c *Condition) Broadcast() {
	klog.Assert(c.lock.IsHeldByCurrentThread(), "Condition %q: Broadcast without holding lock", c.name)

	for len(c.queue) > 0 {
		c.Signal()
	}
}

// Stat reports the number of threads currently waiting, for diagnostics
// only.
func (c *Condition) Stat() int { return len(c.queue) }
