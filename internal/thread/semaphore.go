package thread

import "github.com/BMarelli/nachos/internal/klog"

// Semaphore is a non-negative counter. P decrements it, blocking the
// caller if the pre-decrement value was zero; V increments it and wakes
// the longest-waiting blocked thread, if any. It is the only primitive in
// this package that touches the interrupt mask directly; Lock, Condition,
// RWLock and Channel are all built on top of it, mirroring
// original_source/threads/semaphore.cc.
type Semaphore struct {
	name    string
	value   int
	waiting []*Thread
}

// NewSemaphore creates a semaphore with the given initial (non-negative)
// value. name is used only for diagnostics.
func NewSemaphore(name string, value int) *Semaphore {
	klog.Assert(value >= 0, "semaphore %q: negative initial value %d", name, value)
	return &Semaphore{name: name, value: value}
}

// P decrements the semaphore, blocking until a matching V if the
// pre-decrement value was zero.
func (s *Semaphore) P() {
	old := SetInterruptsOff()
	defer SetInterruptLevel(old)

	for s.value == 0 {
		s.waiting = append(s.waiting, Current())
		Current().Sleep()
	}
	s.value--
}

// V increments the semaphore and wakes the oldest waiter, if any, in FIFO
// order.
func (s *Semaphore) V() {
	old := SetInterruptsOff()
	defer SetInterruptLevel(old)

	s.value++
	if len(s.waiting) > 0 {
		t := s.waiting[0]
		s.waiting = s.waiting[1:]
		sched.ReadyToRun(t)
	}
}

// Stat reports the current counter value and waiter count, for
// diagnostics only; it plays no part in P/V.
func (s *Semaphore) Stat() (value, waiters int) {
	return s.value, len(s.waiting)
}
