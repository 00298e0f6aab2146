package thread

import "github.com/BMarelli/nachos/internal/klog"

// Lock is a mutual-exclusion lock with single-hop priority inheritance:
// Acquire raises the current holder to the caller's priority when the
// holder's priority is lower (a numerically larger value), and Release
// restores the holder's original priority. Grounded on
// original_source/threads/lock.cc.
type Lock struct {
	name   string
	sem    *Semaphore
	holder *Thread
}

// NewLock creates an unheld lock.
func NewLock(name string) *Lock {
	return &Lock{name: name, sem: NewSemaphore(name, 1)}
}

// Acquire blocks until the lock is free, then takes it.
func (l *Lock) Acquire() {
	klog.Assert(!l.IsHeldByCurrentThread(), "Lock %q: Acquire by current holder", l.name)

	if l.holder != nil && l.holder.priority > Current().priority {
		sched.Prioritize(l.holder)
	}

	l.sem.P()
	l.holder = Current()
}

// Release gives up the lock, restoring any priority boost applied while
// it was held.
func (l *Lock) Release() {
	klog.Assert(l.IsHeldByCurrentThread(), "Lock %q: Release by non-holder", l.name)

	if l.holder.priority != l.holder.originalPriority {
		sched.RestoreOriginalPriority(l.holder)
	}

	l.holder = nil
	l.sem.V()
}

// IsHeldByCurrentThread reports whether the calling thread holds the lock.
func (l *Lock) IsHeldByCurrentThread() bool { return l.holder == Current() }

// Stat reports the holder's name (empty if unheld) and count of blocked
// acquirers, for diagnostics only.
func (l *Lock) Stat() (holder string, waiters int) {
	_, waiters = l.sem.Stat()
	if l.holder != nil {
		holder = l.holder.name
	}
	return holder, waiters
}
