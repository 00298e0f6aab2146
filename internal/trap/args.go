package trap

import "github.com/BMarelli/nachos/internal/vm"

// MaxArgCount and MaxArgLength bound argv marshalling exactly as
// args.cc's MAX_ARG_COUNT/MAX_ARG_LENGTH do, so a malicious or buggy
// user program cannot make Exec copy an unbounded amount of data
// across the user/kernel boundary.
const (
	MaxArgCount  = 32
	MaxArgLength = 128
)

// SaveArgs reads the user argv array at argvAddr (argc pointer-sized
// slots, each pointing at a NUL-terminated string) into a Go string
// slice, the inverse of exception.cc's SaveArgs/CountArgsToSave pair:
// that code copies the strings into freshly malloc'd kernel buffers one
// at a time as it counts them, since C has no growable array; this
// port just appends to a slice.
func SaveArgs(machine *vm.Machine, argvAddr int) ([]string, error) {
	if argvAddr == 0 {
		return nil, nil
	}

	var args []string
	for i := 0; i < MaxArgCount; i++ {
		ptrBuf, err := ReadBufferFromUser(machine, argvAddr+i*4, 4)
		if err != nil {
			return nil, err
		}
		ptr := bytesToInt(ptrBuf)
		if ptr == 0 {
			return args, nil
		}

		s, _, err := ReadStringFromUser(machine, ptr, MaxArgLength)
		if err != nil {
			return nil, err
		}
		args = append(args, s)
	}
	return args, nil
}

// WriteArgs copies args into the new address space's memory starting at
// spaceStart (conventionally just below the stack pointer InitRegisters
// set up): the pointer table (argc+1 words, NUL-terminated) occupies the
// low end of the region, with every string it points at packed
// immediately above it, so the two never overlap regardless of how
// short or long the strings turn out to be. Returns the stack pointer
// and argv address InitRegisters' caller should install in StackReg/
// Arg2Reg so the new process's main sees (argc, argv) exactly as
// args.cc's WriteArgs/PrepareArgs do.
func WriteArgs(machine *vm.Machine, args []string, spaceStart int) (newSP, argvAddr int, err error) {
	if len(args) > MaxArgCount {
		args = args[:MaxArgCount]
	}

	argvAddr = alignDown(spaceStart, 4)
	tableSize := (len(args) + 1) * 4

	ptrs := make([]int, len(args))
	addr := argvAddr + tableSize
	for i, a := range args {
		if len(a) > MaxArgLength {
			a = a[:MaxArgLength]
		}
		if err := WriteStringToUser(machine, addr, a); err != nil {
			return 0, 0, err
		}
		ptrs[i] = addr
		addr += len(a) + 1
	}

	ptrAddr := argvAddr
	for _, p := range ptrs {
		if err := WriteBufferToUser(machine, ptrAddr, intToBytes(p)); err != nil {
			return 0, 0, err
		}
		ptrAddr += 4
	}
	if err := WriteBufferToUser(machine, ptrAddr, intToBytes(0)); err != nil {
		return 0, 0, err
	}

	return argvAddr, argvAddr, nil
}

func alignDown(n, align int) int { return n - (n % align) }

func bytesToInt(b []byte) int {
	return int(b[0])<<24 | int(b[1])<<16 | int(b[2])<<8 | int(b[3])
}

func intToBytes(v int) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}
