package vm

import (
	"fmt"

	"github.com/BMarelli/nachos/internal/fs"
	"github.com/BMarelli/nachos/internal/klog"
	"github.com/BMarelli/nachos/internal/thread"
)

// Config bundles the process-wide collaborators an AddressSpace needs:
// the shared core-map, the machine whose MMU it installs itself into,
// the file system its swap file (if any) lives on, and which of the
// three independently selectable behaviors spec §4.9 describes this
// particular space runs under. Per the design notes' directive to
// "bundle [ambient singletons] into a single kernel context value
// threaded through construction", every AddressSpace is handed one of
// these explicitly rather than reaching through a global.
type Config struct {
	CoreMap     *CoreMap
	Machine     *Machine
	FileSystem  *fs.FileSystem

	DemandLoading bool
	Swap          bool
	Replacement   ReplacementPolicy
}

// AddressSpace is one process's virtual-to-physical mapping: a page
// table sized to its executable's code, initialized-data and stack
// segments (address_space.cc/.hh).
type AddressSpace struct {
	pageTable  []TranslationEntry
	numPages   int
	executable *Executable
	pid        int

	cfg Config

	swapBitmap   *Bitmap
	swapFileName string
	swapFile     *fs.SynchOpenFile
}

// NewAddressSpace builds the address space for executableFile, running
// as pid. numPages is computed from the executable's segment sizes plus
// UserStackSize, per spec §4.9's formula.
//
// Unlike address_space.cc's constructor, which finds a physical frame
// for every page up front and then has LoadPage find another one for
// it a moment later (the first frame is never used for anything and is
// never freed), every page here starts invalid and, outside demand
// loading, is loaded via the same LoadPage call demand mode uses on a
// fault — one Find per page, not two. This is a deliberate resolution
// of that redundancy, not a behavior change: P8 holds identically
// either way.
func NewAddressSpace(executableFile *fs.SynchOpenFile, pid int, cfg Config) (*AddressSpace, error) {
	klog.Assert(executableFile != nil, "vm: NewAddressSpace needs an executable file")
	klog.Assert(pid >= 0, "vm: NewAddressSpace needs a valid pid")

	exe, err := OpenExecutable(executableFile)
	if err != nil {
		return nil, err
	}

	size := exe.CodeSize() + exe.InitDataSize() + UserStackSize
	numPages := divRoundUp(size, PageSize)

	a := &AddressSpace{
		executable: exe,
		numPages:   numPages,
		pid:        pid,
		cfg:        cfg,
		pageTable:  make([]TranslationEntry, numPages),
	}
	for i := range a.pageTable {
		a.pageTable[i].VirtualPage = i
	}

	if cfg.Swap {
		a.swapFileName = fmt.Sprintf("SWAP.%d", pid)
		if err := cfg.FileSystem.CreateFile(a.swapFileName, 0); err != nil {
			return nil, err
		}
		swapFile, err := cfg.FileSystem.Open(a.swapFileName)
		if err != nil {
			return nil, err
		}
		a.swapFile = swapFile
		a.swapBitmap = NewBitmap(numPages)
	} else {
		klog.Assert(numPages <= cfg.CoreMap.CountClear(), "vm: not enough free frames for pid %d (need %d, have %d)", pid, numPages, cfg.CoreMap.CountClear())
	}

	log.Debugf("Initializing address space for pid %d, num pages %d, size %d", pid, numPages, numPages*PageSize)

	if !cfg.DemandLoading {
		for i := 0; i < numPages; i++ {
			a.LoadPage(i)
		}
	}

	return a, nil
}

// NumPages reports the address space's size in pages.
func (a *AddressSpace) NumPages() int { return a.numPages }

// Executable returns the program image this address space was built
// from, so a caller that opened it can close it once the process exits.
func (a *AddressSpace) Executable() *Executable { return a.executable }

// Pid is the process id this address space belongs to.
func (a *AddressSpace) Pid() int { return a.pid }

// GetPage returns the page-table row for vpn.
func (a *AddressSpace) GetPage(vpn int) *TranslationEntry {
	klog.Assert(vpn < a.numPages, "vm: GetPage vpn %d out of range for pid %d (%d pages)", vpn, a.pid, a.numPages)
	return &a.pageTable[vpn]
}

// InitRegisters sets up the user-level register file before the first
// jump into user code, per address_space.cc's InitRegisters.
func (a *AddressSpace) InitRegisters() {
	m := a.cfg.Machine
	for i := 0; i < NumRegisters; i++ {
		m.WriteRegister(i, 0)
	}

	m.WriteRegister(PCReg, a.executable.EntryPoint())
	m.WriteRegister(NextPCReg, a.executable.EntryPoint()+4)

	sp := a.numPages*PageSize - 16
	m.WriteRegister(StackReg, sp)
	log.Debugf("Initializing stack register to %d for pid %d", sp, a.pid)
}

// SaveState propagates each valid TLB entry's use/dirty bits back into
// the page table, when a TLB is present; there is nothing to save when
// translation goes straight through the page table, since the MMU reads
// it directly.
func (a *AddressSpace) SaveState() {
	m := a.cfg.Machine
	if !m.HasTLB() {
		return
	}
	for i := range m.TLB {
		if m.TLB[i].Valid {
			vp := m.TLB[i].VirtualPage
			a.pageTable[vp].Use = m.TLB[i].Use
			a.pageTable[vp].Dirty = m.TLB[i].Dirty
		}
	}
}

// RestoreState installs this address space into the MMU for a context
// switch: invalidate the TLB wholesale when one is present, otherwise
// point the page-table pointer at this space's table.
func (a *AddressSpace) RestoreState() {
	m := a.cfg.Machine
	if m.HasTLB() {
		for i := range m.TLB {
			m.TLB[i] = TranslationEntry{VirtualPage: unallocated}
		}
		return
	}
	m.PageTable = a.pageTable
	m.PageTableSize = a.numPages
}

// LoadPage brings vpn into physical memory and marks it valid: from
// swap if it was previously evicted there, otherwise zeroed and filled
// from whichever of the code/init-data segments overlap its byte range.
func (a *AddressSpace) LoadPage(vpn int) {
	klog.Assert(vpn < a.numPages, "vm: LoadPage vpn %d out of range for pid %d", vpn, a.pid)

	frame := a.findFrame(vpn)

	a.pageTable[vpn] = TranslationEntry{VirtualPage: vpn, PhysicalPage: frame, Valid: true}

	mainMemory := a.cfg.Machine.MainMemory
	page := mainMemory[frame*PageSize : (frame+1)*PageSize]

	if a.cfg.Swap && a.swapBitmap.Test(vpn) {
		log.Debugf("Loading page %d of pid %d from swap file %s", vpn, a.pid, a.swapFileName)
		a.swapFile.ReadAt(page, vpn*PageSize)
		return
	}

	log.Debugf("Loading page %d of pid %d from executable", vpn, a.pid)
	for i := range page {
		page[i] = 0
	}

	codeSize, codeAddr := a.executable.CodeSize(), a.executable.CodeAddr()
	if codeSize > 0 && (vpn+1)*PageSize >= codeAddr && vpn*PageSize < codeAddr+codeSize {
		virtualAddr := maxInt(vpn*PageSize, codeAddr)
		offset := virtualAddr - codeAddr
		size := minInt(PageSize-(virtualAddr%PageSize), codeSize-offset)
		a.executable.ReadCodeBlock(page[virtualAddr%PageSize:], size, offset)
	}

	initDataSize, initDataAddr := a.executable.InitDataSize(), a.executable.InitDataAddr()
	if initDataSize > 0 && (vpn+1)*PageSize >= initDataAddr && vpn*PageSize < initDataAddr+initDataSize {
		virtualAddr := maxInt(vpn*PageSize, initDataAddr)
		offset := virtualAddr - initDataAddr
		size := minInt(PageSize-(virtualAddr%PageSize), initDataSize-offset)
		a.executable.ReadDataBlock(page[virtualAddr%PageSize:], size, offset)
	}
}

// SendPageToSwap evicts vpn to the swap file, short-circuiting when the
// page is not dirty: a clean page's contents are already in the swap
// file if it was loaded from there, and otherwise LoadPage rebuilds it
// from the executable (SPEC_FULL.md §3.9).
func (a *AddressSpace) SendPageToSwap(vpn int) {
	klog.Assert(vpn < a.numPages, "vm: SendPageToSwap vpn %d out of range for pid %d", vpn, a.pid)
	log.Debugf("Sending page %d of pid %d to swap file %s", vpn, a.pid, a.swapFileName)

	if !a.pageTable[vpn].Valid {
		return
	}
	a.pageTable[vpn].Valid = false

	if !a.pageTable[vpn].Dirty {
		return
	}
	a.pageTable[vpn].Dirty = false

	frame := a.pageTable[vpn].PhysicalPage
	page := a.cfg.Machine.MainMemory[frame*PageSize : (frame+1)*PageSize]

	n := a.swapFile.WriteAt(page, vpn*PageSize)
	klog.Assert(n == PageSize, "vm: short write to swap file %s for pid %d (%d of %d bytes)", a.swapFileName, a.pid, n, PageSize)

	a.swapBitmap.Mark(vpn)
}

// findFrame gets a free frame for vpn from the core-map, evicting a
// victim through the swap path when none remain and swap is enabled.
func (a *AddressSpace) findFrame(vpn int) int {
	frame := a.cfg.CoreMap.Find(a, vpn)
	if frame == -1 && a.cfg.Swap {
		frame = a.freePageForVPN(vpn)
	}
	klog.Assert(frame != -1, "vm: no free frame available for pid %d vpn %d", a.pid, vpn)
	return frame
}

// freePageForVPN picks a victim frame via the configured replacement
// policy, evicts its current owner to swap, and reassigns it to (a,
// vpn), mirroring address_space.cc's free function of the same name.
func (a *AddressSpace) freePageForVPN(vpn int) int {
	var current *AddressSpace
	if t := thread.Current(); t != nil {
		current, _ = t.Space.(*AddressSpace)
	}

	victim := a.cfg.CoreMap.PickVictim(a.cfg.Replacement, a.cfg.Machine, current)
	klog.Assert(victim >= 0 && victim < a.cfg.CoreMap.NumFrames(), "vm: PickVictim returned out-of-range frame %d", victim)

	log.Debugf("Freeing frame %d for pid %d vpn %d", victim, a.pid, vpn)

	victimSpace := a.cfg.CoreMap.GetSpace(victim)
	klog.Assert(victimSpace != nil, "vm: PickVictim chose an unoccupied frame %d", victim)
	victimVPN := a.cfg.CoreMap.GetVPN(victim)

	if use, dirty, found := a.cfg.Machine.invalidateTLBForFrame(victim); found {
		victimSpace.pageTable[victimVPN].Use = use
		victimSpace.pageTable[victimVPN].Dirty = dirty
	}

	victimSpace.SendPageToSwap(victimVPN)

	a.cfg.CoreMap.Mark(victim, a, vpn)

	return victim
}

// Close releases every frame this address space still holds and, under
// swap, removes its swap file. Called once the owning thread has
// finished, the Go stand-in for address_space.cc's destructor.
func (a *AddressSpace) Close() {
	for i := 0; i < a.numPages; i++ {
		if a.pageTable[i].Valid {
			a.cfg.CoreMap.Clear(a.pageTable[i].PhysicalPage)
		}
	}

	if a.cfg.Swap {
		if err := a.cfg.FileSystem.RemoveFile(a.swapFileName); err != nil {
			log.Warnf("error removing swap file %s for pid %d: %v", a.swapFileName, a.pid, err)
		}
		a.cfg.FileSystem.Close(a.swapFile)
	}
}

func divRoundUp(n, d int) int { return (n + d - 1) / d }

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
