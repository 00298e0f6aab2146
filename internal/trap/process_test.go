package trap

import (
	"testing"

	"github.com/BMarelli/nachos/internal/fs"
	"github.com/BMarelli/nachos/internal/fstest"
	"github.com/BMarelli/nachos/internal/kernerr"
	"github.com/BMarelli/nachos/internal/thread"
	"github.com/BMarelli/nachos/internal/vm"
	"github.com/stretchr/testify/require"
)

// openTestProgram writes a minimal executable (a handful of code bytes,
// no initialized data) to fsys and opens it, returning the handle a
// ProcessTable.Exec call needs.
func openTestProgram(t *testing.T, fsys *fs.FileSystem, name string) *fs.SynchOpenFile {
	t.Helper()
	code := []byte{1, 2, 3, 4}
	require.NoError(t, vm.WriteExecutable(fsys, name, code, nil, 0))
	file, err := fsys.Open(name)
	require.NoError(t, err)
	return file
}

func TestProcessTableExecBlockingJoin(t *testing.T) {
	fsys := fstest.NewFileSystem(t, 64)
	file := openTestProgram(t, fsys, "prog")

	cfg := vm.Config{CoreMap: vm.NewCoreMap(16), Machine: vm.NewMachine(16, false), FileSystem: fsys}
	pt := NewProcessTable()

	pid, err := pt.Exec(cfg, fsys, file, nil, false)
	require.NoError(t, err)
	require.Equal(t, 1, pid)

	// parallel=false means Exec already waited for the child, so a
	// second Join against the same pid must report it unknown.
	_, err = pt.Join(pid)
	require.ErrorIs(t, err, kernerr.NotFound)
}

func TestProcessTableExecParallelThenJoin(t *testing.T) {
	fsys := fstest.NewFileSystem(t, 64)
	file := openTestProgram(t, fsys, "prog")

	cfg := vm.Config{CoreMap: vm.NewCoreMap(16), Machine: vm.NewMachine(16, false), FileSystem: fsys}
	pt := NewProcessTable()

	pid, err := pt.Exec(cfg, fsys, file, nil, true)
	require.NoError(t, err)

	status, err := pt.Join(pid)
	require.NoError(t, err)
	require.Equal(t, 0, status)

	_, err = pt.Join(pid)
	require.ErrorIs(t, err, kernerr.NotFound)
}

func TestProcessTableExecWithArgv(t *testing.T) {
	fsys := fstest.NewFileSystem(t, 64)
	file := openTestProgram(t, fsys, "prog")

	cfg := vm.Config{CoreMap: vm.NewCoreMap(16), Machine: vm.NewMachine(16, false), FileSystem: fsys}
	pt := NewProcessTable()

	pid, err := pt.Exec(cfg, fsys, file, []string{"prog", "arg1"}, false)
	require.NoError(t, err)
	require.Equal(t, 1, pid)
}

func TestProcessTableJoinUnknownPid(t *testing.T) {
	pt := NewProcessTable()
	_, err := pt.Join(999)
	require.ErrorIs(t, err, kernerr.NotFound)
}

func TestExitProcessClosesFilesAndSpace(t *testing.T) {
	fsys := fstest.NewFileSystem(t, 64)
	file := openTestProgram(t, fsys, "prog")

	core := vm.NewCoreMap(16)
	cfg := vm.Config{CoreMap: core, Machine: vm.NewMachine(16, false), FileSystem: fsys}
	space, err := vm.NewAddressSpace(file, 7, cfg)
	require.NoError(t, err)

	require.NoError(t, fsys.CreateFile("scratch", 0))
	framesInUse := core.NumFrames() - core.CountClear()
	require.NotZero(t, framesInUse, "NewAddressSpace must have claimed at least one frame")

	th := thread.NewThread("exit-test", true, thread.PriorityNormal)
	th.Pid = 7
	th.Space = space
	ft := NewFileTable()
	_, err = ft.Open(fsys, "scratch")
	require.NoError(t, err)
	th.OpenFiles = ft

	th.Fork(func(any) {
		ExitProcess(fsys, 3)
	}, nil)

	status := th.Join()
	require.Equal(t, 3, status)

	require.Equal(t, core.NumFrames(), core.CountClear(), "ExitProcess must release every frame the address space held")
}
