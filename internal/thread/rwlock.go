package thread

import "github.com/BMarelli/nachos/internal/klog"

// RWLock is a writer-priority, reentrant-for-its-own-writer read/write
// lock: any number of readers may hold it at once, but a waiting or
// active writer blocks every new reader. A thread that already holds the
// write lock may call AcquireRead/ReleaseRead on itself without blocking.
// Grounded on original_source/threads/rwlock.cc.
type RWLock struct {
	lock *Lock

	cond           *Condition
	activeReaders  uint
	waitingWriters uint
	activeWriter   *Thread
}

// NewRWLock creates an unheld read/write lock.
func NewRWLock(name string) *RWLock {
	l := NewLock(name)
	return &RWLock{lock: l, cond: NewCondition(name, l)}
}

// AcquireRead blocks while a writer is active or waiting, then registers
// the calling thread as an active reader.
func (r *RWLock) AcquireRead() {
	if Current() == r.activeWriter {
		return
	}

	r.lock.Acquire()
	for r.waitingWriters > 0 || r.activeWriter != nil {
		r.cond.Wait()
	}
	r.activeReaders++
	r.lock.Release()
}

// ReleaseRead unregisters the calling thread as an active reader, waking
// any waiting writer once the last reader leaves.
func (r *RWLock) ReleaseRead() {
	if Current() == r.activeWriter {
		return
	}

	r.lock.Acquire()
	klog.Assert(r.activeWriter == nil && r.activeReaders > 0, "RWLock: ReleaseRead invariant violated")
	r.activeReaders--
	if r.activeReaders == 0 {
		r.cond.Broadcast()
	}
	r.lock.Release()
}

// AcquireWrite blocks until there are no active readers and no active
// writer, then takes the write lock.
func (r *RWLock) AcquireWrite() {
	r.lock.Acquire()
	r.waitingWriters++
	for r.activeReaders > 0 || r.activeWriter != nil {
		r.cond.Wait()
	}
	r.waitingWriters--
	r.activeWriter = Current()
	r.lock.Release()
}

// ReleaseWrite gives up the write lock and wakes every waiting reader and
// writer so they can re-check the predicate.
func (r *RWLock) ReleaseWrite() {
	r.lock.Acquire()
	klog.Assert(r.activeReaders == 0 && Current() == r.activeWriter, "RWLock: ReleaseWrite invariant violated")
	r.activeWriter = nil
	r.cond.Broadcast()
	r.lock.Release()
}

// Stat reports activeReaders/waitingWriters/whether a writer is active,
// for diagnostics only.
func (r *RWLock) Stat() (activeReaders, waitingWriters uint, hasActiveWriter bool) {
	return r.activeReaders, r.waitingWriters, r.activeWriter != nil
}
