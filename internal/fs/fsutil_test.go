package fs

import (
	"path/filepath"
	"testing"

	"github.com/BMarelli/nachos/internal/device"
	"github.com/BMarelli/nachos/internal/syncio"
	"github.com/BMarelli/nachos/internal/thread"
)

// testSectors is small enough that a handful of files exhaust the free
// map quickly (useful for OutOfSpace tests) but large enough to exercise
// indirect blocks.
const testSectors = 256

// newTestDisk boots a scheduler (so the blocking Read/WriteSector calls
// below this package have a current thread to park) and returns a fresh,
// unformatted disk image backed by a real file under t.TempDir().
func newTestDisk(t *testing.T) *syncio.SynchDisk {
	t.Helper()
	thread.Init("main")

	d, err := device.OpenDisk(filepath.Join(t.TempDir(), "disk.img"), SectorSize, testSectors)
	if err != nil {
		t.Fatalf("OpenDisk: %v", err)
	}
	return syncio.NewSynchDisk(d, nil)
}

// newTestFileSystem formats and mounts a file system over a fresh disk.
func newTestFileSystem(t *testing.T) *FileSystem {
	t.Helper()
	return NewFileSystem(newTestDisk(t), testSectors, true)
}
