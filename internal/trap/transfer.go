package trap

import (
	"github.com/BMarelli/nachos/internal/kernerr"
	"github.com/BMarelli/nachos/internal/vm"
)

// MaxStringLength bounds how many bytes ReadStringFromUser will ever
// transfer, guarding against a user program that forgets its NUL
// terminator from hanging the kernel reading forever (transfer.cc
// leaves this bound to the caller; exception.cc's callers all pass a
// small fixed maxByteCount themselves).
const MaxStringLength = 1024

// ReadBufferFromUser copies size bytes from the user address addr into
// a freshly allocated buffer, byte by byte through machine's MMU
// (transfer.cc's ReadBufferFromUser). The first translation error, a
// page fault included, is returned as is; the access is not retried.
func ReadBufferFromUser(machine *vm.Machine, addr, size int) ([]byte, error) {
	buf := make([]byte, size)
	for i := 0; i < size; i++ {
		v, err := machine.ReadMem(addr + i)
		if err != nil {
			return nil, err
		}
		buf[i] = byte(v)
	}
	return buf, nil
}

// ReadStringFromUser reads bytes from addr until a NUL terminator or
// maxLength bytes have been read, whichever comes first, returning the
// string without its terminator and whether one was actually found
// (transfer.cc's ReadStringFromUser, which instead takes the
// terminator's absence as success up to the caller's buffer size; this
// port reports it explicitly so HandleExec/HandleCreate etc. can reject
// an unterminated name with kernerr.BadArgument instead of silently
// truncating it).
func ReadStringFromUser(machine *vm.Machine, addr int, maxLength int) (string, bool, error) {
	if maxLength <= 0 || maxLength > MaxStringLength {
		maxLength = MaxStringLength
	}

	buf := make([]byte, 0, maxLength)
	for i := 0; i < maxLength; i++ {
		v, err := machine.ReadMem(addr + i)
		if err != nil {
			return "", false, err
		}
		if v == 0 {
			return string(buf), true, nil
		}
		buf = append(buf, byte(v))
	}
	return string(buf), false, nil
}

// WriteBufferToUser copies data to the user address addr, byte by
// byte (transfer.cc's WriteBufferToUser).
func WriteBufferToUser(machine *vm.Machine, addr int, data []byte) error {
	for i, b := range data {
		if err := machine.WriteMem(addr+i, int(b)); err != nil {
			return err
		}
	}
	return nil
}

// WriteStringToUser writes s followed by a NUL terminator to addr
// (transfer.cc's WriteStringToUser).
func WriteStringToUser(machine *vm.Machine, addr int, s string) error {
	if err := WriteBufferToUser(machine, addr, []byte(s)); err != nil {
		return err
	}
	return machine.WriteMem(addr+len(s), 0)
}

// readPathArgument reads a path argument from the user register
// convention Arg*Reg slots, rejecting both a runaway (non-terminated)
// string and an empty one, the check exception.cc's HandleCreate/
// HandleOpen/HandleRemove all perform before touching the file system.
func readPathArgument(machine *vm.Machine, addr int) (string, error) {
	path, terminated, err := ReadStringFromUser(machine, addr, pathBudget)
	if err != nil {
		return "", err
	}
	if !terminated || path == "" {
		return "", kernerr.BadArgument
	}
	return path, nil
}

// pathBudget is generous enough for any absolute path this kernel's
// directory nesting can produce; paths, unlike bare file names, are not
// bounded by fs.FileNameMaxLen.
const pathBudget = 256
