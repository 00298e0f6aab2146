// Package thread implements the cooperative thread core of spec §4.2
// together with the synchronization primitives of spec §4.1.
//
// original_source keeps these in one "threads/" directory because they are
// mutually dependent: Semaphore needs the scheduler's ready queue and the
// notion of a current thread, while Thread.Join needs a Channel built out
// of Semaphore and Lock. Splitting them across Go package boundaries would
// recreate that dependency as an import cycle, so they stay together here,
// the same way the teacher's original source keeps them together.
//
// A Thread is backed by a real goroutine, but only one goroutine is ever
// doing kernel work at a time: scheduling hands off a baton (a buffered
// channel on each Thread) so that control passes explicitly via Fork,
// Yield, Sleep and Finish, the same places original_source calls SWITCH.
// IntLevel models the simulated timer-interrupt mask that those routines
// disable around ready-queue manipulation.
package thread

import "sync"

// IntLevel mirrors Nachos's IntStatus: whether the simulated interrupt
// line is enabled or disabled.
type IntLevel bool

const (
	IntOn  IntLevel = true
	IntOff IntLevel = false
)

var (
	intMu sync.Mutex
	level IntLevel = IntOn
)

// SetInterruptsOff disables interrupts and returns the previous level, to
// be restored later via SetInterruptLevel. Disabling interrupts is how
// every primitive in this package achieves atomicity over the scheduler's
// ready queue and the current-thread pointer.
func SetInterruptsOff() IntLevel {
	intMu.Lock()
	old := level
	level = IntOff
	intMu.Unlock()
	return old
}

// SetInterruptLevel sets the interrupt level and returns the previous one.
func SetInterruptLevel(l IntLevel) IntLevel {
	intMu.Lock()
	old := level
	level = l
	intMu.Unlock()
	return old
}

// GetInterruptLevel reports the current interrupt level.
func GetInterruptLevel() IntLevel {
	intMu.Lock()
	defer intMu.Unlock()
	return level
}
