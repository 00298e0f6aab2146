package thread

import (
	"sync"

	"github.com/BMarelli/nachos/internal/klog"
)

// Priority is one of the three Nachos thread priorities. Lower values run
// first: PriorityHigh preempts PriorityNormal and PriorityLow in
// Scheduler.FindNextToRun.
type Priority int

const (
	PriorityHigh Priority = iota
	PriorityNormal
	PriorityLow

	numPriorities
)

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "HIGH"
	case PriorityNormal:
		return "NORMAL"
	case PriorityLow:
		return "LOW"
	default:
		klog.Assert(false, "invalid priority %d", int(p))
		return ""
	}
}

// Status is a thread's position in its lifecycle (spec §4.2 I1).
type Status int

const (
	JustCreated Status = iota
	Ready
	Running
	Blocked
)

// Scheduler holds the three-level ready queue and the current-thread
// pointer. There is exactly one Scheduler per running kernel; it is
// created by Init and reached through Current/CurrentScheduler.
type Scheduler struct {
	mu      sync.Mutex
	ready   [numPriorities][]*Thread
	current *Thread
	wake    chan struct{}
	all     []*Thread // every thread not yet reclaimed, for PS (List)
}

var sched *Scheduler

// Init creates the scheduler and the thread object representing the
// goroutine that calls Init itself (the boot thread), matching the way
// original_source/threads/system.cc constructs the initial "main" thread
// before anything has been Forked.
func Init(mainName string) *Thread {
	sched = &Scheduler{wake: make(chan struct{}, 1)}
	main := &Thread{
		name:             mainName,
		priority:         PriorityNormal,
		originalPriority: PriorityNormal,
		status:           Running,
		resume:           make(chan struct{}, 1),
	}
	sched.current = main
	sched.all = append(sched.all, main)
	return main
}

// ThreadInfo is a point-in-time snapshot of one thread's scheduling state,
// for the PS syscall (spec §6, delegated here per SPEC_FULL.md §3.10).
type ThreadInfo struct {
	Name     string
	Pid      int
	Priority Priority
	Status   Status
}

// List snapshots every thread known to the scheduler that has not yet
// finished, in registration order.
func (s *Scheduler) List() []ThreadInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]ThreadInfo, 0, len(s.all))
	for _, t := range s.all {
		infos = append(infos, ThreadInfo{Name: t.name, Pid: t.Pid, Priority: t.priority, Status: t.status})
	}
	return infos
}

// CurrentScheduler returns the running kernel's scheduler, for layers
// above internal/thread (internal/trap's PS handler) that need List.
func CurrentScheduler() *Scheduler { return sched }

// Current returns the thread currently holding the CPU.
func Current() *Thread {
	sched.mu.Lock()
	defer sched.mu.Unlock()
	return sched.current
}

// ReadyToRun moves t onto the ready queue for its priority. Like
// original_source, it assumes the caller has already disabled interrupts
// when t is being woken from a blocked state; it is also safe to call from
// an independent interrupt-source goroutine (internal/device's disk and
// console completion handlers), since it takes its own lock.
func (s *Scheduler) ReadyToRun(t *Thread) {
	s.mu.Lock()
	log.Debugf("Putting thread %q on the ready list", t.name)
	t.status = Ready
	s.ready[t.priority] = append(s.ready[t.priority], t)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// FindNextToRun removes and returns the highest-priority ready thread, or
// nil if the ready queue is empty.
func (s *Scheduler) FindNextToRun() *Thread {
	s.mu.Lock()
	defer s.mu.Unlock()

	for p := Priority(0); p < numPriorities; p++ {
		q := s.ready[p]
		if len(q) > 0 {
			t := q[0]
			s.ready[p] = q[1:]
			return t
		}
	}
	return nil
}

// Run switches the CPU to next, blocking the calling thread until it is
// itself scheduled again. It is the Go stand-in for SWITCH: instead of a
// register/stack swap, it hands a channel baton to next's goroutine and
// parks the caller's goroutine on its own baton until some later
// ReadyToRun+Run brings it back.
func (s *Scheduler) Run(next *Thread) {
	s.mu.Lock()
	prev := s.current
	s.current = next
	next.status = Running
	s.mu.Unlock()

	if prev == next {
		return
	}

	log.Debugf("Switching from thread %q to thread %q", nameOrNil(prev), next.name)

	next.resume <- struct{}{}
	if prev != nil {
		<-prev.resume
	}
}

// idle blocks until ReadyToRun wakes the scheduler, re-enabling interrupts
// while waiting, mirroring Interrupt::Idle.
func (s *Scheduler) idle() {
	old := SetInterruptLevel(IntOn)
	<-s.wake
	SetInterruptLevel(old)
}

// Prioritize boosts t to the calling thread's priority. Used by Lock.Acquire
// for single-hop priority inheritance (spec §9 open question #4: no
// transitive propagation beyond the thread directly holding the lock).
func (s *Scheduler) Prioritize(t *Thread) {
	s.mu.Lock()
	defer s.mu.Unlock()

	newPriority := s.current.priority
	if t.status == Ready {
		s.removeFromReadyLocked(t)
		t.priority = newPriority
		s.ready[newPriority] = append(s.ready[newPriority], t)
		return
	}
	t.priority = newPriority
}

// RestoreOriginalPriority undoes a Prioritize boost once the boosted
// thread releases the lock that triggered it.
func (s *Scheduler) RestoreOriginalPriority(t *Thread) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.status == Ready {
		s.removeFromReadyLocked(t)
		t.priority = t.originalPriority
		s.ready[t.priority] = append(s.ready[t.priority], t)
		return
	}
	t.priority = t.originalPriority
}

func (s *Scheduler) removeFromReadyLocked(t *Thread) {
	q := s.ready[t.priority]
	for i, candidate := range q {
		if candidate == t {
			s.ready[t.priority] = append(q[:i], q[i+1:]...)
			return
		}
	}
}

func (s *Scheduler) register(t *Thread) {
	s.mu.Lock()
	s.all = append(s.all, t)
	s.mu.Unlock()
}

func (s *Scheduler) deregister(t *Thread) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, candidate := range s.all {
		if candidate == t {
			s.all = append(s.all[:i], s.all[i+1:]...)
			return
		}
	}
}

func nameOrNil(t *Thread) string {
	if t == nil {
		return "<nil>"
	}
	return t.name
}
