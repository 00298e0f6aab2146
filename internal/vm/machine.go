package vm

import "errors"

// Register conventions a syscall dispatcher relies on (exception.cc's
// documented calling convention): the syscall id arrives in ResultReg and
// the result is written back to the same register; up to four arguments
// follow in Arg1Reg..Arg4Reg. PCReg/NextPCReg/PrevPCReg/StackReg/
// BadVAddrReg are the symbolic slots address_space.cc and exception.cc
// read and write by name; their numeric assignment is otherwise an
// implementation detail of the (out-of-scope) CPU emulator, so this
// kernel only needs names that do not collide with r0-r31.
const (
	ResultReg = 2
	Arg1Reg   = 4
	Arg2Reg   = 5
	Arg3Reg   = 6
	Arg4Reg   = 7
	StackReg  = 29

	PCReg       = 32
	NextPCReg   = 33
	PrevPCReg   = 34
	BadVAddrReg = 35

	NumRegisters = 36
)

var (
	// ErrPageFault is returned by Machine.ReadMem/WriteMem when addr
	// translates to a page-table (or TLB) entry marked invalid. The
	// internal/trap transfer helpers return it to their caller as is;
	// trap.HandlePageFault loads a faulting page, but the transfer
	// helpers do not call it and do not retry the access.
	ErrPageFault = errors.New("page fault")
	// ErrReadOnly is returned on a write through a translation entry
	// marked read-only.
	ErrReadOnly = errors.New("read-only violation")
	// ErrAddressError is returned when addr's virtual page falls outside
	// the currently installed page table/TLB size entirely.
	ErrAddressError = errors.New("address error")
)

// Machine is the minimal register-file-plus-MMU surface mmu.hh declares
// for kernel code to drive: original_source never ships a buildable
// machine.cc/mmu.cc (the raw CPU emulator and instruction decoder are
// explicitly out of this kernel's scope), so this is the Go-idiomatic
// stand-in internal/trap's dispatcher and internal/vm's AddressSpace
// talk to, the same way internal/device stands in for the raw disk and
// console models.
//
// Exactly one of TLB or PageTable is ever non-empty, mirroring mmu.hh's
// #ifdef USE_TLB split between a software-loaded TLB and a linear page
// table installed wholesale on every context switch.
type Machine struct {
	registers [NumRegisters]int

	MainMemory []byte

	TLB           []TranslationEntry // non-nil when a TLB is present
	PageTable     []TranslationEntry // non-nil when translation goes straight through a page table
	PageTableSize int
	tlbRoundRobin int
}

// NewMachine allocates physical memory for numPhysPages frames. useTLB
// selects which half of the #ifdef USE_TLB split this machine models.
func NewMachine(numPhysPages int, useTLB bool) *Machine {
	m := &Machine{MainMemory: make([]byte, numPhysPages*PageSize)}
	if useTLB {
		m.TLB = make([]TranslationEntry, NumTLBEntries)
		for i := range m.TLB {
			m.TLB[i].VirtualPage = unallocated
		}
	}
	return m
}

// HasTLB reports whether this machine translates through a TLB rather
// than a linear page table.
func (m *Machine) HasTLB() bool { return m.TLB != nil }

func (m *Machine) ReadRegister(n int) int { return m.registers[n] }

func (m *Machine) WriteRegister(n int, value int) { m.registers[n] = value }

// retrievePageEntry finds the translation entry backing vpn, the way
// mmu.cc's RetrievePageEntry chooses between the TLB and the page table.
func (m *Machine) retrievePageEntry(vpn int) (*TranslationEntry, error) {
	if m.HasTLB() {
		for i := range m.TLB {
			if m.TLB[i].VirtualPage == vpn && m.TLB[i].Valid {
				return &m.TLB[i], nil
			}
		}
		return nil, ErrPageFault
	}

	if vpn >= m.PageTableSize {
		return nil, ErrAddressError
	}
	if !m.PageTable[vpn].Valid {
		return nil, ErrPageFault
	}
	return &m.PageTable[vpn], nil
}

// translate resolves a virtual address to a physical offset into
// MainMemory, setting the use/dirty bits on the entry it went through
// exactly as mmu.cc's Translate does.
func (m *Machine) translate(addr int, writing bool) (int, error) {
	vpn := addr / PageSize
	offset := addr % PageSize

	entry, err := m.retrievePageEntry(vpn)
	if err != nil {
		return 0, err
	}
	if writing && entry.ReadOnly {
		return 0, ErrReadOnly
	}

	entry.Use = true
	if writing {
		entry.Dirty = true
	}

	return entry.PhysicalPage*PageSize + offset, nil
}

// ReadMem reads a single byte of virtual memory at addr.
func (m *Machine) ReadMem(addr int) (int, error) {
	phys, err := m.translate(addr, false)
	if err != nil {
		return 0, err
	}
	return int(m.MainMemory[phys]), nil
}

// WriteMem writes a single byte of virtual memory at addr.
func (m *Machine) WriteMem(addr int, value int) error {
	phys, err := m.translate(addr, true)
	if err != nil {
		return err
	}
	m.MainMemory[phys] = byte(value)
	return nil
}

// clearTLBUse clears the use bit of whichever TLB slot currently shadows
// frame, mirroring the "mirroring in TLB when applicable" step of the
// enhanced-clock scan and of FreePageForVPN's TLB bit propagation.
func (m *Machine) clearTLBUse(frame int) {
	if !m.HasTLB() {
		return
	}
	for i := range m.TLB {
		if m.TLB[i].Valid && m.TLB[i].PhysicalPage == frame {
			m.TLB[i].Use = false
			return
		}
	}
}

// invalidateTLBForFrame invalidates whichever TLB slot currently shadows
// frame and reports its use/dirty bits back, used when a frame is about
// to be handed to a different address space.
func (m *Machine) invalidateTLBForFrame(frame int) (use, dirty bool, found bool) {
	if !m.HasTLB() {
		return false, false, false
	}
	for i := range m.TLB {
		if m.TLB[i].Valid && m.TLB[i].PhysicalPage == frame {
			use, dirty = m.TLB[i].Use, m.TLB[i].Dirty
			m.TLB[i].Valid = false
			return use, dirty, true
		}
	}
	return false, false, false
}

// InstallTLBEntry writes entry into whichever TLB slot pickTLBVictim
// chooses, for a page-fault handler that just resolved a miss through
// the page table and needs to cache the result.
func (m *Machine) InstallTLBEntry(entry TranslationEntry) {
	m.TLB[m.pickTLBVictim()] = entry
}

// pickTLBVictim chooses which TLB slot a fresh translation entry should
// overwrite: prefer an invalid slot, otherwise round-robin, exactly as
// exception.cc's PickTLBVictim does.
func (m *Machine) pickTLBVictim() int {
	for i := range m.TLB {
		if !m.TLB[i].Valid {
			return i
		}
	}
	victim := m.tlbRoundRobin
	m.tlbRoundRobin = (m.tlbRoundRobin + 1) % len(m.TLB)
	return victim
}
