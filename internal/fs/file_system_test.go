package fs

import (
	"testing"

	"github.com/BMarelli/nachos/internal/kernerr"
	"github.com/stretchr/testify/require"
)

func TestFileSystemFormatStartsEmpty(t *testing.T) {
	fsys := newTestFileSystem(t)

	listing, err := fsys.ListDirectoryContents("/")
	require.NoError(t, err)
	require.Empty(t, listing)
}

func TestFileSystemCreateOpenReadWriteFile(t *testing.T) {
	fsys := newTestFileSystem(t)

	require.NoError(t, fsys.CreateFile("/greeting", SectorSize))

	handle, err := fsys.Open("/greeting")
	require.NoError(t, err)

	payload := []byte("hello, nachos")
	n := handle.WriteAt(payload, 0)
	require.Equal(t, len(payload), n)

	buf := make([]byte, len(payload))
	n = handle.ReadAt(buf, 0)
	require.Equal(t, len(payload), n)
	require.Equal(t, payload, buf)

	fsys.Close(handle)
}

func TestFileSystemCreateFileRejectsDuplicateName(t *testing.T) {
	fsys := newTestFileSystem(t)
	require.NoError(t, fsys.CreateFile("/dup", SectorSize))

	err := fsys.CreateFile("/dup", SectorSize)
	require.ErrorIs(t, err, kernerr.AlreadyExists)
}

func TestFileSystemOpenMissingFile(t *testing.T) {
	fsys := newTestFileSystem(t)
	_, err := fsys.Open("/nope")
	require.ErrorIs(t, err, kernerr.NotFound)
}

func TestFileSystemRemoveFileImmediateWhenNotOpen(t *testing.T) {
	fsys := newTestFileSystem(t)
	require.NoError(t, fsys.CreateFile("/gone", SectorSize))

	require.NoError(t, fsys.RemoveFile("/gone"))

	_, err := fsys.Open("/gone")
	require.ErrorIs(t, err, kernerr.NotFound)
}

func TestFileSystemRemoveFileDeferredWhileOpen(t *testing.T) {
	fsys := newTestFileSystem(t)
	require.NoError(t, fsys.CreateFile("/busy", SectorSize))

	handle, err := fsys.Open("/busy")
	require.NoError(t, err)

	require.NoError(t, fsys.RemoveFile("/busy"))

	// The name is already gone from the directory, but the data is still
	// reachable through the handle opened before the remove.
	_, err = fsys.Open("/busy")
	require.ErrorIs(t, err, kernerr.NotFound)

	payload := []byte("still here")
	require.Equal(t, len(payload), handle.WriteAt(payload, 0))

	fsys.Close(handle)

	listing, err := fsys.ListDirectoryContents("/")
	require.NoError(t, err)
	require.NotContains(t, listing, "busy")
}

func TestFileSystemCreateAndRemoveDirectory(t *testing.T) {
	fsys := newTestFileSystem(t)

	require.NoError(t, fsys.CreateDirectory("/sub"))
	require.NoError(t, fsys.CreateFile("/sub/leaf", SectorSize))

	listing, err := fsys.ListDirectoryContents("/sub")
	require.NoError(t, err)
	require.Contains(t, listing, "leaf")

	err = fsys.RemoveDirectory("/sub")
	require.ErrorIs(t, err, kernerr.NotEmpty)

	require.NoError(t, fsys.RemoveFile("/sub/leaf"))
	require.NoError(t, fsys.RemoveDirectory("/sub"))

	_, err = fsys.ListDirectoryContents("/sub")
	require.ErrorIs(t, err, kernerr.NotFound)
}

func TestFileSystemChangeDirectoryRelativePaths(t *testing.T) {
	fsys := newTestFileSystem(t)

	require.NoError(t, fsys.CreateDirectory("/sub"))
	require.NoError(t, fsys.ChangeDirectory("/sub"))
	require.NoError(t, fsys.CreateFile("relative", SectorSize))

	listing, err := fsys.ListDirectoryContents("")
	require.NoError(t, err)
	require.Contains(t, listing, "relative")

	require.NoError(t, fsys.ChangeDirectory("/"))
	listing, err = fsys.ListDirectoryContents("/sub")
	require.NoError(t, err)
	require.Contains(t, listing, "relative")
}

func TestFileSystemExtendFile(t *testing.T) {
	fsys := newTestFileSystem(t)
	require.NoError(t, fsys.CreateFile("/grows", SectorSize))

	handle, err := fsys.Open("/grows")
	require.NoError(t, err)

	require.NoError(t, fsys.ExtendFile(handle, SectorSize))
	require.Equal(t, 2*SectorSize, handle.Length())

	fsys.Close(handle)
}

func TestFileSystemCheckReportsNoInconsistenciesOnFreshFormat(t *testing.T) {
	fsys := newTestFileSystem(t)
	require.NoError(t, fsys.CreateFile("/a", SectorSize))
	require.NoError(t, fsys.CreateDirectory("/sub"))
	require.NoError(t, fsys.CreateFile("/sub/b", 2*SectorSize))

	require.Empty(t, fsys.Check())
}

func TestFileSystemBootSweepsDeferredDeletions(t *testing.T) {
	disk := newTestDisk(t)
	fsys := NewFileSystem(disk, testSectors, true)

	require.NoError(t, fsys.CreateFile("/gone", SectorSize))
	handle, err := fsys.Open("/gone")
	require.NoError(t, err)
	require.NoError(t, fsys.RemoveFile("/gone"))

	before := fsys.loadFreeMap().CountClear()
	_ = handle // simulate a crash: the handle is never closed

	// Remounting without formatting must sweep the row RemoveFile
	// deferred, since nothing will ever call Close for it again.
	reopened := NewFileSystem(disk, testSectors, false)

	after := reopened.loadFreeMap().CountClear()
	require.Greater(t, after, before)

	listing, err := reopened.ListDirectoryContents("/")
	require.NoError(t, err)
	require.NotContains(t, listing, "gone")
}
