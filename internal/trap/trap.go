// Package trap implements the exception/syscall boundary of spec §4.10:
// user-pointer transfer (transfer.go, grounded on
// original_source/userprog/transfer.cc), argv marshalling (args.go,
// original_source/userprog/args.cc), the page-fault and read-only
// exception handlers and the syscall switch (dispatch.go and
// pagefault.go, both original_source/userprog/exception.cc), a
// per-process file-descriptor table (filetable.go) and process table
// (process.go, exception.cc's ExecProcess plus the process-id
// bookkeeping original_source/userprog/addrspace.cc's pid field
// implies but never itself manages).
//
// There is no instruction-level CPU emulator in this kernel (spec §1
// scopes it out: "the MIPS instruction decoder/emulator itself"), so
// Dispatch is the trap entry point a kernel thread calls directly in
// place of a real synchronous exception; everything downstream of that
// boundary — register conventions, user-pointer bounds checking, the
// syscall table — is implemented in full.
package trap

import "github.com/BMarelli/nachos/internal/klog"

var log = klog.Channel("e")

// Syscall numbers, assigned in the order spec §6 lists them. These are
// this kernel's own numbering (original_source/userprog/syscall.h's
// SC_* constants cover a different, smaller surface: no PS, no
// directory operations), so user code and this dispatcher just need to
// agree with each other.
const (
	SysHalt = iota
	SysExit
	SysExec
	SysJoin
	SysCreate
	SysRemove
	SysOpen
	SysClose
	SysRead
	SysWrite
	SysPS
	SysChangeDirectory
	SysCreateDirectory
	SysListDirectoryContents
	SysRemoveDirectory
)

// ConsoleInput and ConsoleOutput are the two file descriptors every
// process starts with, reserved exactly as spec §6 requires; a process's
// own FileTable numbers its own opens starting at ConsoleOutput+1.
const (
	ConsoleInput  = 0
	ConsoleOutput = 1
)
