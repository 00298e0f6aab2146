package trap

import (
	"testing"

	"github.com/BMarelli/nachos/internal/fstest"
	"github.com/BMarelli/nachos/internal/thread"
	"github.com/BMarelli/nachos/internal/vm"
	"github.com/stretchr/testify/require"
)

func TestHandlePageFaultLoadsMissingPageAndTranslates(t *testing.T) {
	fsys := fstest.NewFileSystem(t, 64)

	code := make([]byte, 2*vm.PageSize)
	for i := range code {
		code[i] = byte(i)
	}
	require.NoError(t, vm.WriteExecutable(fsys, "prog", code, nil, 0))
	file, err := fsys.Open("prog")
	require.NoError(t, err)

	core := vm.NewCoreMap(16)
	machine := vm.NewMachine(16, true)
	space, err := vm.NewAddressSpace(file, 1, vm.Config{
		CoreMap:       core,
		Machine:       machine,
		FileSystem:    fsys,
		DemandLoading: true,
	})
	require.NoError(t, err)

	var faultErr error
	th := thread.NewThread("fault-test", true, thread.PriorityNormal)
	th.Space = space
	th.Fork(func(any) {
		machine.WriteRegister(vm.BadVAddrReg, vm.PageSize) // vpn 1
		faultErr = HandlePageFault(machine)
	}, nil)
	th.Join()

	require.NoError(t, faultErr)
	entry := space.GetPage(1)
	require.True(t, entry.Valid)

	found := false
	for _, e := range machine.TLB {
		if e.Valid && e.VirtualPage == 1 {
			found = true
		}
	}
	require.True(t, found, "resolved entry must be installed into the TLB")
}

func TestHandlePageFaultOutOfRange(t *testing.T) {
	fsys := fstest.NewFileSystem(t, 64)

	require.NoError(t, vm.WriteExecutable(fsys, "prog", []byte{1, 2, 3}, nil, 0))
	file, err := fsys.Open("prog")
	require.NoError(t, err)

	core := vm.NewCoreMap(16)
	machine := vm.NewMachine(16, false)
	space, err := vm.NewAddressSpace(file, 1, vm.Config{CoreMap: core, Machine: machine, FileSystem: fsys})
	require.NoError(t, err)

	var faultErr error
	th := thread.NewThread("fault-range-test", true, thread.PriorityNormal)
	th.Space = space
	th.Fork(func(any) {
		machine.WriteRegister(vm.BadVAddrReg, space.NumPages()*vm.PageSize+4096)
		faultErr = HandlePageFault(machine)
	}, nil)
	th.Join()

	require.ErrorIs(t, faultErr, vm.ErrAddressError)
}
