package syncio

import (
	"github.com/BMarelli/nachos/internal/device"
	"github.com/BMarelli/nachos/internal/thread"
)

// EOF is the sentinel ReadChar returns once the input stream is
// exhausted, terminating bulk reads (spec §4.3).
const EOF = -1

// SynchConsole is the blocking wrapper around device.Console. Read and
// write each go through their own lock/semaphore pair, mirroring
// SynchDisk, so that a cooperative thread blocked on console I/O gives up
// the CPU via Semaphore.P (Sleep) rather than parking its goroutine on a
// bare channel outside the scheduler's view.
type SynchConsole struct {
	console *device.Console

	readLock *thread.Lock
	readSem  *thread.Semaphore
	readCh   byte
	readEOF  bool

	writeLock *thread.Lock
	writeSem  *thread.Semaphore
}

// NewSynchConsole wraps console.
func NewSynchConsole(console *device.Console) *SynchConsole {
	return &SynchConsole{
		console:   console,
		readLock:  thread.NewLock("synch-console-read"),
		readSem:   thread.NewSemaphore("synch-console-read-sem", 0),
		writeLock: thread.NewLock("synch-console-write"),
		writeSem:  thread.NewSemaphore("synch-console-write-sem", 0),
	}
}

// ReadChar blocks until one byte is available, returning EOF once the
// input stream is exhausted.
func (sc *SynchConsole) ReadChar() int {
	sc.readLock.Acquire()
	sc.console.GetRequest(func(ch byte, eof bool) {
		sc.readCh, sc.readEOF = ch, eof
		sc.readSem.V()
	})
	sc.readSem.P()
	ch, eof := sc.readCh, sc.readEOF
	sc.readLock.Release()

	if eof {
		return EOF
	}
	return int(ch)
}

// WriteChar blocks until ch has been written.
func (sc *SynchConsole) WriteChar(ch byte) {
	sc.writeLock.Acquire()
	sc.console.PutRequest(ch, func() { sc.writeSem.V() })
	sc.writeSem.P()
	sc.writeLock.Release()
}
