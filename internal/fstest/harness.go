// Package fstest hosts the disk/file-system test harness and the six
// end-to-end scenarios (S1-S6) used to exercise internal/fs and
// internal/vm together, the way original_source's nachos script runs a
// handful of canned user programs against every configuration the
// build supports. Grounded on internal/fs/fsutil_test.go's own
// newTestDisk/newTestFileSystem pair, exported here for the scenarios
// below and for internal/trap's tests; internal/fs and internal/vm keep
// their own unexported copies, since this package imports both.
package fstest

import (
	"path/filepath"
	"testing"

	"github.com/BMarelli/nachos/internal/device"
	"github.com/BMarelli/nachos/internal/fs"
	"github.com/BMarelli/nachos/internal/syncio"
	"github.com/BMarelli/nachos/internal/thread"
	"github.com/stretchr/testify/require"
)

// NewDisk boots a scheduler (so the blocking Read/WriteSector calls below
// internal/fs and internal/vm have a current thread to park) and returns
// an unformatted disk image backed by a real file under t.TempDir().
func NewDisk(t *testing.T, numSectors int) *syncio.SynchDisk {
	t.Helper()
	thread.Init("main")

	d, err := device.OpenDisk(filepath.Join(t.TempDir(), "disk.img"), fs.SectorSize, numSectors)
	require.NoError(t, err)

	return syncio.NewSynchDisk(d, nil)
}

// NewFileSystem formats and mounts a file system over a fresh disk of
// numSectors sectors.
func NewFileSystem(t *testing.T, numSectors int) *fs.FileSystem {
	t.Helper()
	return fs.NewFileSystem(NewDisk(t, numSectors), numSectors, true)
}
