// Package klog mirrors Nachos's DEBUG('f', ...) channel convention on top
// of logrus: messages are tagged with a single-letter channel and only
// emitted when that channel has been enabled on the command line.
package klog

import (
	"fmt"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu       sync.Mutex
	enabled  = map[string]bool{}
	allChans = false
	base     = logrus.New()
)

func init() {
	base.SetOutput(os.Stderr)
	base.SetLevel(logrus.DebugLevel)
}

// Enable turns on the named debug channels. Passing "+" enables every
// channel, matching Nachos's `-d +` flag.
func Enable(chans ...string) {
	mu.Lock()
	defer mu.Unlock()
	for _, c := range chans {
		if c == "+" {
			allChans = true
			continue
		}
		enabled[c] = true
	}
}

// IsEnabled reports whether a channel is currently active.
func IsEnabled(chan_ string) bool {
	mu.Lock()
	defer mu.Unlock()
	return allChans || enabled[chan_]
}

// Entry is a logging handle bound to one debug channel.
type Entry struct {
	chan_ string
	log   *logrus.Entry
}

// Channel returns the logging handle for a single-letter debug channel,
// e.g. Channel("f") for the file system, Channel("t") for threads.
func Channel(chan_ string) *Entry {
	return &Entry{chan_: chan_, log: base.WithField("chan", chan_)}
}

func (e *Entry) Debugf(format string, args ...interface{}) {
	if !IsEnabled(e.chan_) {
		return
	}
	e.log.Debugf(format, args...)
}

func (e *Entry) Warnf(format string, args ...interface{}) {
	e.log.Warnf(format, args...)
}

func (e *Entry) Errorf(format string, args ...interface{}) {
	e.log.Errorf(format, args...)
}

// Assert panics with msg if cond is false. Use only for InvariantViolation
// conditions (spec §7): programmer bugs such as lock-order violations or
// reference-count underflow, never for anything a user program can trigger.
func Assert(cond bool, format string, args ...interface{}) {
	if !cond {
		panic(fmt.Sprintf(format, args...))
	}
}
