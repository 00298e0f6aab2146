package trap

import (
	"github.com/BMarelli/nachos/internal/fs"
	"github.com/BMarelli/nachos/internal/klog"
	"github.com/BMarelli/nachos/internal/thread"
	"github.com/BMarelli/nachos/internal/vm"
)

// HandlePageFault resolves a page fault raised while translating the
// current thread's last memory access: it loads the faulting page
// (demand loading's entire reason to exist) and, when the machine
// translates through a TLB, caches the freshly loaded entry there,
// mirroring exception.cc's PageFaultHandler.
func HandlePageFault(machine *vm.Machine) error {
	old := thread.SetInterruptsOff()
	defer thread.SetInterruptLevel(old)

	badAddr := machine.ReadRegister(vm.BadVAddrReg)
	vpn := badAddr / vm.PageSize

	space, ok := thread.Current().Space.(*vm.AddressSpace)
	klog.Assert(ok, "page fault with no address space installed on the current thread")

	if vpn < 0 || vpn >= space.NumPages() {
		return vm.ErrAddressError
	}

	entry := space.GetPage(vpn)
	if !entry.Valid {
		space.LoadPage(vpn)
		entry = space.GetPage(vpn)
	}

	if machine.HasTLB() {
		machine.InstallTLBEntry(*entry)
	}

	return nil
}

// HandleReadOnly terminates the current process with exit status -1,
// exception.cc's ReadOnlyHandler: a write through a translation entry
// marked read-only is this kernel's only unrecoverable trap, since
// unlike a page fault there is no action that makes the write legal.
func HandleReadOnly(fsys *fs.FileSystem) {
	log.Warnf("pid %d: read-only violation, terminating", thread.Current().Pid)
	ExitProcess(fsys, -1)
}
