package trap

import (
	"bytes"
	"strings"
	"testing"

	"github.com/BMarelli/nachos/internal/device"
	"github.com/BMarelli/nachos/internal/fstest"
	"github.com/BMarelli/nachos/internal/syncio"
	"github.com/BMarelli/nachos/internal/thread"
	"github.com/BMarelli/nachos/internal/vm"
	"github.com/stretchr/testify/require"
)

func setSyscall(m *vm.Machine, id, a1, a2, a3, a4 int) {
	m.WriteRegister(vm.ResultReg, id)
	m.WriteRegister(vm.Arg1Reg, a1)
	m.WriteRegister(vm.Arg2Reg, a2)
	m.WriteRegister(vm.Arg3Reg, a3)
	m.WriteRegister(vm.Arg4Reg, a4)
}

// TestDispatchFileLifecycle drives Create/Open/Write/Read/Close through
// Dispatch exactly as a user program's syscall stubs would: Dispatch
// itself only ever errors on Halt, so every other call's outcome is read
// back from ResultReg the same way real user code would.
func TestDispatchFileLifecycle(t *testing.T) {
	fsys := fstest.NewFileSystem(t, 64)
	machine := newIdentityMachine(t, 8)
	console := syncio.NewSynchConsole(device.NewConsole(strings.NewReader(""), &bytes.Buffer{}))

	k := &Kernel{
		Machine:    machine,
		FileSystem: fsys,
		Console:    console,
		Processes:  NewProcessTable(),
	}

	th := thread.NewThread("dispatch-file-test", true, thread.PriorityNormal)
	th.OpenFiles = NewFileTable()

	var pc0, pc1 int
	var createResult, fd, written, read int
	var readBack string

	th.Fork(func(any) {
		require.NoError(t, WriteStringToUser(machine, 0, "f"))

		machine.WriteRegister(vm.PCReg, 0)
		machine.WriteRegister(vm.NextPCReg, 4)
		pc0 = machine.ReadRegister(vm.PCReg)
		setSyscall(machine, SysCreate, 0, 0, 0, 0)
		require.NoError(t, k.Dispatch())
		createResult = machine.ReadRegister(vm.ResultReg)
		pc1 = machine.ReadRegister(vm.PCReg)

		setSyscall(machine, SysOpen, 0, 0, 0, 0)
		require.NoError(t, k.Dispatch())
		fd = machine.ReadRegister(vm.ResultReg)

		require.NoError(t, WriteBufferToUser(machine, 64, []byte("hello")))
		setSyscall(machine, SysWrite, 64, 5, fd, 0)
		require.NoError(t, k.Dispatch())
		written = machine.ReadRegister(vm.ResultReg)

		// The descriptor's position now sits past the data just written,
		// so reopen the file to read it back from the start.
		setSyscall(machine, SysClose, fd, 0, 0, 0)
		require.NoError(t, k.Dispatch())
		setSyscall(machine, SysOpen, 0, 0, 0, 0)
		require.NoError(t, k.Dispatch())
		readFd := machine.ReadRegister(vm.ResultReg)

		setSyscall(machine, SysRead, 128, 16, readFd, 0)
		require.NoError(t, k.Dispatch())
		read = machine.ReadRegister(vm.ResultReg)

		buf, err := ReadBufferFromUser(machine, 128, read)
		require.NoError(t, err)
		readBack = string(buf)

		setSyscall(machine, SysClose, readFd, 0, 0, 0)
		require.NoError(t, k.Dispatch())
	}, nil)
	th.Join()

	require.Equal(t, 0, createResult)
	require.NotEqual(t, pc0, pc1, "Dispatch must advance the program counter on every trap")
	require.Equal(t, ConsoleOutput+1, fd)
	require.Equal(t, 5, written)
	require.Equal(t, 5, read)
	require.Equal(t, "hello", readBack)
}

func TestDispatchHalt(t *testing.T) {
	machine := newIdentityMachine(t, 4)
	k := &Kernel{Machine: machine}

	setSyscall(machine, SysHalt, 0, 0, 0, 0)
	require.ErrorIs(t, k.Dispatch(), ErrHalt)
}

func TestDispatchUnknownSyscallReturnsMinusOne(t *testing.T) {
	fsys := fstest.NewFileSystem(t, 32)
	machine := newIdentityMachine(t, 4)
	console := syncio.NewSynchConsole(device.NewConsole(strings.NewReader(""), &bytes.Buffer{}))
	k := &Kernel{Machine: machine, FileSystem: fsys, Console: console, Processes: NewProcessTable()}

	th := thread.NewThread("dispatch-unknown-test", true, thread.PriorityNormal)
	th.OpenFiles = NewFileTable()

	th.Fork(func(any) {
		setSyscall(machine, 999, 0, 0, 0, 0)
		require.NoError(t, k.Dispatch())
	}, nil)
	th.Join()

	require.Equal(t, -1, machine.ReadRegister(vm.ResultReg))
}

func TestDispatchCloseRejectsConsoleDescriptor(t *testing.T) {
	fsys := fstest.NewFileSystem(t, 32)
	machine := newIdentityMachine(t, 4)
	console := syncio.NewSynchConsole(device.NewConsole(strings.NewReader(""), &bytes.Buffer{}))
	k := &Kernel{Machine: machine, FileSystem: fsys, Console: console, Processes: NewProcessTable()}

	th := thread.NewThread("dispatch-close-console-test", true, thread.PriorityNormal)
	th.OpenFiles = NewFileTable()

	th.Fork(func(any) {
		setSyscall(machine, SysClose, ConsoleOutput, 0, 0, 0)
		require.NoError(t, k.Dispatch())
	}, nil)
	th.Join()

	require.Equal(t, -1, machine.ReadRegister(vm.ResultReg))
}

func TestDispatchWriteAndReadConsole(t *testing.T) {
	fsys := fstest.NewFileSystem(t, 32)
	machine := newIdentityMachine(t, 4)
	var out bytes.Buffer
	console := syncio.NewSynchConsole(device.NewConsole(strings.NewReader("hi"), &out))
	k := &Kernel{Machine: machine, FileSystem: fsys, Console: console, Processes: NewProcessTable()}

	th := thread.NewThread("dispatch-console-test", true, thread.PriorityNormal)
	th.OpenFiles = NewFileTable()

	var writeN, readN int
	var readBack string
	th.Fork(func(any) {
		require.NoError(t, WriteBufferToUser(machine, 0, []byte("ok")))
		setSyscall(machine, SysWrite, 0, 2, ConsoleOutput, 0)
		require.NoError(t, k.Dispatch())
		writeN = machine.ReadRegister(vm.ResultReg)

		setSyscall(machine, SysRead, 16, 8, ConsoleInput, 0)
		require.NoError(t, k.Dispatch())
		readN = machine.ReadRegister(vm.ResultReg)

		buf, err := ReadBufferFromUser(machine, 16, readN)
		require.NoError(t, err)
		readBack = string(buf)
	}, nil)
	th.Join()

	require.Equal(t, 2, writeN)
	require.Equal(t, "ok", out.String())
	require.Equal(t, 2, readN)
	require.Equal(t, "hi", readBack)
}

func TestDispatchExecAndJoin(t *testing.T) {
	fsys := fstest.NewFileSystem(t, 64)
	require.NoError(t, vm.WriteExecutable(fsys, "prog", []byte{1, 2, 3, 4}, nil, 0))

	machine := newIdentityMachine(t, 8)
	console := syncio.NewSynchConsole(device.NewConsole(strings.NewReader(""), &bytes.Buffer{}))
	k := &Kernel{
		Machine:    machine,
		FileSystem: fsys,
		Console:    console,
		Processes:  NewProcessTable(),
		VMConfig:   vm.Config{Machine: vm.NewMachine(16, false), FileSystem: fsys, CoreMap: vm.NewCoreMap(16)},
	}

	th := thread.NewThread("dispatch-exec-test", true, thread.PriorityNormal)
	th.OpenFiles = NewFileTable()

	var pid, joinStatus int
	th.Fork(func(any) {
		require.NoError(t, WriteStringToUser(machine, 0, "prog"))
		setSyscall(machine, SysExec, 0, 0, 1 /* parallel */, 0)
		require.NoError(t, k.Dispatch())
		pid = machine.ReadRegister(vm.ResultReg)

		setSyscall(machine, SysJoin, pid, 0, 0, 0)
		require.NoError(t, k.Dispatch())
		joinStatus = machine.ReadRegister(vm.ResultReg)
	}, nil)
	th.Join()

	require.Equal(t, 1, pid)
	require.Equal(t, 0, joinStatus)
}
