package vm

import (
	"path/filepath"
	"testing"

	"github.com/BMarelli/nachos/internal/device"
	"github.com/BMarelli/nachos/internal/fs"
	"github.com/BMarelli/nachos/internal/syncio"
	"github.com/BMarelli/nachos/internal/thread"
	"github.com/stretchr/testify/require"
)

const testSectors = 256

// newTestFileSystem boots a scheduler and a freshly formatted file system
// backed by a real file under t.TempDir(), mirroring fs/fsutil_test.go's
// helper of the same shape (this package needs its own copy: fs's is
// unexported).
func newTestFileSystem(t *testing.T) *fs.FileSystem {
	t.Helper()
	thread.Init("main")

	d, err := device.OpenDisk(filepath.Join(t.TempDir(), "disk.img"), fs.SectorSize, testSectors)
	require.NoError(t, err)

	disk := syncio.NewSynchDisk(d, nil)
	return fs.NewFileSystem(disk, testSectors, true)
}

// writeProgram creates path as a loadable executable with a numPages-page
// code segment (no init data) and entry point 0.
func writeProgram(t *testing.T, fsys *fs.FileSystem, path string, numPages int) {
	t.Helper()
	code := make([]byte, numPages*PageSize)
	for i := range code {
		code[i] = byte(i)
	}
	require.NoError(t, WriteExecutable(fsys, path, code, nil, 0))
}

func TestBitmap(t *testing.T) {
	b := NewBitmap(8)
	require.Equal(t, 8, b.CountClear())

	require.False(t, b.Test(3))
	b.Mark(3)
	require.True(t, b.Test(3))
	require.Equal(t, 7, b.CountClear())

	b.Clear(3)
	require.False(t, b.Test(3))
	require.Equal(t, 8, b.CountClear())
}

func TestBitmapFind(t *testing.T) {
	b := NewBitmap(2)

	first := b.Find()
	second := b.Find()
	require.ElementsMatch(t, []int{0, 1}, []int{first, second})

	require.Equal(t, -1, b.Find())
}

func TestCoreMapFindMarkClear(t *testing.T) {
	c := NewCoreMap(4)
	require.Equal(t, 4, c.CountClear())

	frame := c.Find(nil, 7)
	require.GreaterOrEqual(t, frame, 0)
	require.True(t, c.Test(frame))
	require.Equal(t, 7, c.GetVPN(frame))
	require.Nil(t, c.GetSpace(frame))
	require.Equal(t, 3, c.CountClear())

	c.Clear(frame)
	require.False(t, c.Test(frame))
	require.Equal(t, unallocated, c.GetVPN(frame))
	require.Equal(t, 4, c.CountClear())
}

func TestCoreMapExhaustion(t *testing.T) {
	c := NewCoreMap(1)
	require.NotEqual(t, -1, c.Find(nil, 0))
	require.Equal(t, -1, c.Find(nil, 1))
}
