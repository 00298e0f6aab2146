package thread

import "github.com/BMarelli/nachos/internal/klog"

var log = klog.Channel("t")

// Thread is a cooperatively-scheduled kernel thread (spec §4.2). Space,
// OpenFiles and Cwd stand in for the fields original_source/threads/thread.hh
// only declares under USERPROG/FILESYS: this package cannot import
// internal/vm or internal/fs without creating the reverse of the cycle
// this package already resolves, so the higher layers store their own
// process-local state here as opaque values and type-assert it back.
type Thread struct {
	name             string
	priority         Priority
	originalPriority Priority
	status           Status
	joinable         bool
	joinChannel      *Channel
	resume           chan struct{}

	Pid        int
	Space      any
	OpenFiles  any
	Cwd        any
	ExitStatus int // diagnostic mirror of the value already delivered over joinChannel; never consulted by Join itself
}

// NewThread allocates a thread control block. Call Fork to actually start
// it running.
func NewThread(name string, joinable bool, priority Priority) *Thread {
	t := &Thread{
		name:             name,
		priority:         priority,
		originalPriority: priority,
		status:           JustCreated,
		joinable:         joinable,
		resume:           make(chan struct{}, 1),
	}
	if joinable {
		t.joinChannel = NewChannel()
	}
	return t
}

func (t *Thread) Name() string              { return t.name }
func (t *Thread) Priority() Priority         { return t.priority }
func (t *Thread) OriginalPriority() Priority { return t.originalPriority }
func (t *Thread) Status() Status             { return t.status }

func (t *Thread) SetPriority(p Priority) { t.priority = p }

// Fork starts fn(arg) running concurrently with the caller. It corresponds
// to original_source's StackAllocate followed by ReadyToRun: here the
// "stack" is a goroutine parked on t.resume until the scheduler hands it
// the baton.
func (t *Thread) Fork(fn func(arg any), arg any) {
	klog.Assert(fn != nil, "Fork: nil function for thread %q", t.name)
	log.Debugf("Forking thread %q", t.name)

	go func() {
		<-t.resume
		fn(arg)
		t.Finish(0)
	}()

	sched.register(t)

	old := SetInterruptsOff()
	sched.ReadyToRun(t)
	SetInterruptLevel(old)
}

// Yield relinquishes the CPU if another thread is ready to run, putting t
// back on the ready queue. Returns once t has worked its way back to the
// front.
func (t *Thread) Yield() {
	old := SetInterruptsOff()
	klog.Assert(t == Current(), "Yield: %q is not the current thread", t.name)
	log.Debugf("Yielding thread %q", t.name)

	if next := sched.FindNextToRun(); next != nil {
		sched.ReadyToRun(t)
		sched.Run(next)
	}

	SetInterruptLevel(old)
}

// Sleep blocks t until something else puts it back on the ready queue via
// ReadyToRun. Callers must already have interrupts disabled, exactly as
// original_source/threads/thread.cc requires of Thread::Sleep.
func (t *Thread) Sleep() {
	klog.Assert(t == Current(), "Sleep: %q is not the current thread", t.name)
	log.Debugf("Sleeping thread %q", t.name)

	t.status = Blocked
	for {
		if next := sched.FindNextToRun(); next != nil {
			sched.Run(next)
			return
		}
		sched.idle()
	}
}

// Finish tears down the current thread once its forked procedure has
// returned, waking any joiner with exitStatus and never returning control
// to t's own goroutine.
func (t *Thread) Finish(exitStatus int) {
	old := SetInterruptsOff()
	klog.Assert(t == Current(), "Finish: %q is not the current thread", t.name)
	log.Debugf("Finishing thread %q", t.name)

	t.ExitStatus = exitStatus
	if t.joinable {
		t.joinChannel.Send(exitStatus)
	}

	t.status = Blocked
	sched.deregister(t)
	for {
		if next := sched.FindNextToRun(); next != nil {
			sched.Run(next)
			break
		}
		sched.idle()
	}

	SetInterruptLevel(old) // unreachable: t's goroutine never runs again.
}

// Join blocks until t has called Finish, returning its exit status. t must
// have been created with joinable=true and must not be the caller.
func (t *Thread) Join() int {
	klog.Assert(t != Current(), "Join: thread cannot join itself")
	klog.Assert(t.joinable, "Join: thread %q is not joinable", t.name)
	log.Debugf("Thread %q joining thread %q", Current().name, t.name)

	return t.joinChannel.Receive()
}

// Yield, Sleep and Finish on the package level act on the current thread,
// the same convenience original_source exposes via the free-standing
// ThreadFinish wrapper in thread.cc.
func Yield()             { Current().Yield() }
func Sleep()             { Current().Sleep() }
func Finish(status int)  { Current().Finish(status) }
