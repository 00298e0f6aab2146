package trap

import (
	"errors"
	"fmt"

	"github.com/BMarelli/nachos/internal/fs"
	"github.com/BMarelli/nachos/internal/kernerr"
	"github.com/BMarelli/nachos/internal/klog"
	"github.com/BMarelli/nachos/internal/syncio"
	"github.com/BMarelli/nachos/internal/thread"
	"github.com/BMarelli/nachos/internal/vm"
)

// ErrHalt is returned by Dispatch when the user program invokes Halt;
// the caller driving the trap loop is the one that actually stops the
// machine, where exception.cc's DefaultHandler
// calling interrupt->Halt() directly.
var ErrHalt = errors.New("trap: halt")

// Kernel bundles every collaborator Dispatch needs to resolve one
// syscall: the machine whose registers carry the call's id and
// arguments, the file system backing every file-related call, the
// console backing fd 0/1, and the process table Exec/Join/PS consult.
type Kernel struct {
	Machine    *vm.Machine
	FileSystem *fs.FileSystem
	Console    *syncio.SynchConsole
	Processes  *ProcessTable
	VMConfig   vm.Config
}

// Dispatch services one trap: it reads the syscall id and arguments out
// of Machine's registers per the Arg1Reg..Arg4Reg convention, performs
// the call, writes the result back into ResultReg, and advances the
// program counter, mirroring exception.cc's SyscallHandler plus the
// IncrementPC every branch of it calls before returning.
func (k *Kernel) Dispatch() error {
	id := k.Machine.ReadRegister(vm.ResultReg)

	switch id {
	case SysHalt:
		log.Debugf("pid %d: Halt", thread.Current().Pid)
		return ErrHalt
	case SysExit:
		status := k.Machine.ReadRegister(vm.Arg1Reg)
		log.Debugf("pid %d: Exit(%d)", thread.Current().Pid, status)
		ExitProcess(k.FileSystem, status)
		return nil // unreachable: ExitProcess never returns
	}

	result, err := k.dispatchReturning(id)
	if err != nil {
		log.Warnf("pid %d: syscall %d failed: %v", thread.Current().Pid, id, err)
		result = -1
	}

	k.Machine.WriteRegister(vm.ResultReg, result)
	IncrementPC(k.Machine)
	return nil
}

// IncrementPC advances the three program-counter registers past the
// syscall instruction that trapped, exactly as exception.cc's
// IncrementPC does: PrevPC takes PC's old value, PC takes NextPC's, and
// NextPC moves one instruction further.
func IncrementPC(m *vm.Machine) {
	m.WriteRegister(vm.PrevPCReg, m.ReadRegister(vm.PCReg))
	m.WriteRegister(vm.PCReg, m.ReadRegister(vm.NextPCReg))
	m.WriteRegister(vm.NextPCReg, m.ReadRegister(vm.NextPCReg)+4)
}

// dispatchReturning handles every syscall other than Halt and Exit,
// which never reach the common result/IncrementPC tail above.
func (k *Kernel) dispatchReturning(id int) (int, error) {
	m := k.Machine

	switch id {
	case SysExec:
		return k.handleExec()
	case SysJoin:
		pid := m.ReadRegister(vm.Arg1Reg)
		status, err := k.Processes.Join(pid)
		return status, err
	case SysCreate:
		path, err := readPathArgument(m, m.ReadRegister(vm.Arg1Reg))
		if err != nil {
			return 0, err
		}
		return 0, k.FileSystem.CreateFile(path, 0)
	case SysRemove:
		path, err := readPathArgument(m, m.ReadRegister(vm.Arg1Reg))
		if err != nil {
			return 0, err
		}
		return 0, k.FileSystem.RemoveFile(path)
	case SysOpen:
		return k.handleOpen()
	case SysClose:
		fd := m.ReadRegister(vm.Arg1Reg)
		return 0, k.fileTable().Close(k.FileSystem, fd)
	case SysRead:
		return k.handleRead()
	case SysWrite:
		return k.handleWrite()
	case SysPS:
		k.handlePS()
		return 0, nil
	case SysChangeDirectory:
		path, err := readPathArgument(m, m.ReadRegister(vm.Arg1Reg))
		if err != nil {
			return 0, err
		}
		return 0, k.FileSystem.ChangeDirectory(path)
	case SysCreateDirectory:
		path, err := readPathArgument(m, m.ReadRegister(vm.Arg1Reg))
		if err != nil {
			return 0, err
		}
		return 0, k.FileSystem.CreateDirectory(path)
	case SysListDirectoryContents:
		return k.handleListDirectoryContents()
	case SysRemoveDirectory:
		path, err := readPathArgument(m, m.ReadRegister(vm.Arg1Reg))
		if err != nil {
			return 0, err
		}
		return 0, k.FileSystem.RemoveDirectory(path)
	default:
		return -1, kernerr.BadArgument
	}
}

func (k *Kernel) handleExec() (int, error) {
	m := k.Machine
	path, err := readPathArgument(m, m.ReadRegister(vm.Arg1Reg))
	if err != nil {
		return -1, err
	}
	argv, err := SaveArgs(m, m.ReadRegister(vm.Arg2Reg))
	if err != nil {
		return -1, err
	}
	parallel := m.ReadRegister(vm.Arg3Reg) != 0

	file, err := k.FileSystem.Open(path)
	if err != nil {
		return -1, err
	}

	pid, err := k.Processes.Exec(k.VMConfig, k.FileSystem, file, argv, parallel)
	if err != nil {
		k.FileSystem.Close(file)
		return -1, err
	}
	return pid, nil
}

func (k *Kernel) handleOpen() (int, error) {
	path, err := readPathArgument(k.Machine, k.Machine.ReadRegister(vm.Arg1Reg))
	if err != nil {
		return -1, err
	}
	return k.fileTable().Open(k.FileSystem, path)
}

func (k *Kernel) handleRead() (int, error) {
	m := k.Machine
	bufAddr := m.ReadRegister(vm.Arg1Reg)
	size := m.ReadRegister(vm.Arg2Reg)
	fd := m.ReadRegister(vm.Arg3Reg)

	if size <= 0 {
		return -1, kernerr.BadArgument
	}

	if fd == ConsoleInput {
		buf := make([]byte, 0, size)
		for i := 0; i < size; i++ {
			ch := k.Console.ReadChar()
			if ch == syncio.EOF {
				break
			}
			buf = append(buf, byte(ch))
		}
		if err := WriteBufferToUser(m, bufAddr, buf); err != nil {
			return -1, err
		}
		return len(buf), nil
	}

	if fd == ConsoleOutput {
		return -1, kernerr.BadArgument
	}

	buf := make([]byte, size)
	n, ok := k.fileTable().ReadAt(fd, buf)
	if !ok {
		return -1, kernerr.BadArgument
	}
	if err := WriteBufferToUser(m, bufAddr, buf[:n]); err != nil {
		return -1, err
	}
	return n, nil
}

func (k *Kernel) handleWrite() (int, error) {
	m := k.Machine
	bufAddr := m.ReadRegister(vm.Arg1Reg)
	size := m.ReadRegister(vm.Arg2Reg)
	fd := m.ReadRegister(vm.Arg3Reg)

	if size <= 0 {
		return -1, kernerr.BadArgument
	}

	data, err := ReadBufferFromUser(m, bufAddr, size)
	if err != nil {
		return -1, err
	}

	if fd == ConsoleOutput {
		for _, b := range data {
			k.Console.WriteChar(b)
		}
		return len(data), nil
	}

	if fd == ConsoleInput {
		return -1, kernerr.BadArgument
	}

	n, ok := k.fileTable().WriteAt(fd, data)
	if !ok {
		return -1, kernerr.BadArgument
	}
	return n, nil
}

// handlePS writes the scheduler's thread listing to the console,
// delegating to thread.Scheduler.List exactly as SPEC_FULL.md §3.10
// directs.
func (k *Kernel) handlePS() {
	for _, info := range thread.CurrentScheduler().List() {
		line := fmt.Sprintf("pid %d\t%s\t%s\t%d\n", info.Pid, info.Name, info.Priority, info.Status)
		for i := 0; i < len(line); i++ {
			k.Console.WriteChar(line[i])
		}
	}
}

func (k *Kernel) handleListDirectoryContents() (int, error) {
	path, _, err := ReadStringFromUser(k.Machine, k.Machine.ReadRegister(vm.Arg1Reg), pathBudget)
	if err != nil {
		return -1, err
	}

	listing, err := k.FileSystem.ListDirectoryContents(path)
	if err != nil {
		return -1, err
	}

	addr := k.Machine.ReadRegister(vm.Arg2Reg)
	if err := WriteStringToUser(k.Machine, addr, listing); err != nil {
		return -1, err
	}
	return len(listing), nil
}

func (k *Kernel) fileTable() *FileTable {
	ft, ok := thread.Current().OpenFiles.(*FileTable)
	klog.Assert(ok, "current thread has no file table installed")
	return ft
}
