package fs

import (
	"github.com/BMarelli/nachos/internal/kernerr"
	"github.com/BMarelli/nachos/internal/klog"
	"github.com/BMarelli/nachos/internal/syncio"
	"github.com/BMarelli/nachos/internal/thread"
)

// openFileInfo is the shared, reference-counted state of one currently
// open file (spec §4.7's OpenFileInfo), keyed by its header sector.
// directorySector records where the entry for this sector lives, so
// Close can find it again without the caller having to remember.
type openFileInfo struct {
	directorySector int
	referenceCount  int
	rwLock          *thread.RWLock
	header          *FileHeader
}

// FileManager is the open-file cache: a sector-keyed map from header
// sector to its shared OpenFileInfo, grounded on
// original_source/filesys/file_manager.cc. Every method here assumes
// the façade's global lock is already held by the caller (spec I8); it
// takes no lock of its own.
type FileManager struct {
	disk        *syncio.SynchDisk
	freeMapFile *OpenFile
	open        map[int]*openFileInfo
}

// NewFileManager creates an empty cache bound to disk and the already-
// open free-map file, used to flush deallocations when the last close
// of a marked-for-deletion entry fires.
func NewFileManager(disk *syncio.SynchDisk, freeMapFile *OpenFile) *FileManager {
	return &FileManager{disk: disk, freeMapFile: freeMapFile, open: make(map[int]*openFileInfo)}
}

func (m *FileManager) isManaged(sector int) bool {
	_, ok := m.open[sector]
	return ok
}

// Open resolves name inside directoryFile's directory, returning a
// SynchOpenFile bound to the shared RW-lock and cached header for that
// sector; creates the OpenFileInfo on the first Open of a given sector
// (spec §4.7).
func (m *FileManager) Open(name string, directoryFile *OpenFile) (*SynchOpenFile, error) {
	dir := NewDirectory()
	dir.FetchFrom(directoryFile)

	sector := dir.FindFile(name)
	if sector == -1 {
		return nil, kernerr.NotFound
	}

	return m.openRef(sector, directoryFile.Sector()), nil
}

// OpenRef manages sector directly, without a name lookup, for callers
// that already resolved it themselves (the façade's directory
// traversal and cwd handling). parentSector is where sector's own
// directory entry lives, recorded the same way Open does it.
func (m *FileManager) OpenRef(sector, parentSector int) *SynchOpenFile {
	return m.openRef(sector, parentSector)
}

func (m *FileManager) openRef(sector, parentSector int) *SynchOpenFile {
	info, ok := m.open[sector]
	if !ok {
		header := NewFileHeader()
		header.FetchFrom(m.disk, sector)
		info = &openFileInfo{directorySector: parentSector, rwLock: thread.NewRWLock("file"), header: header}
		m.open[sector] = info
	}
	info.referenceCount++

	return NewSynchOpenFile(NewOpenFile(m.disk, sector, info.header), info.rwLock)
}

// Close decrements the reference count of file's sector; on the last
// close of an entry whose directory row is marked for deletion, it
// deallocates the file's data, clears its header sector, removes the
// directory row, and flushes directory and free map — the
// deferred-deletion sweep file_manager.cc's Close performs.
func (m *FileManager) Close(file *SynchOpenFile, freeMap *FreeMap) {
	sector := file.Sector()
	info, ok := m.open[sector]
	klog.Assert(ok, "fs: Close on a sector the file manager is not managing")

	info.referenceCount--
	if info.referenceCount > 0 {
		return
	}
	delete(m.open, sector)

	parentFile := OpenUnique(m.disk, info.directorySector)
	dir := NewDirectory()
	dir.FetchFrom(parentFile)

	if !dir.IsMarkedForDeletion(sector) {
		return
	}

	log.Debugf("Closing last reference to sector %d, marked for deletion", sector)

	info.header.Deallocate(freeMap)
	freeMap.Clear(sector)
	freeMap.WriteBack(m.freeMapFile)

	klog.Assert(dir.RemoveMarkedForDeletion(sector),
		"fs: RemoveMarkedForDeletion failed for a row IsMarkedForDeletion reported true")
	dir.WriteBack(parentFile)
}

// Remove deletes name from directoryFile's directory. If the file is
// not currently open, deallocation happens immediately; otherwise the
// row is only marked for deletion, and Close finishes the job once the
// last reference drops (spec §4.7, I4).
func (m *FileManager) Remove(name string, directoryFile *OpenFile, freeMap *FreeMap) error {
	dir := NewDirectory()
	dir.FetchFrom(directoryFile)

	sector := dir.FindFile(name)
	if sector == -1 {
		return kernerr.NotFound
	}

	if m.isManaged(sector) {
		log.Debugf("File %q is open, marking sector %d for deletion", name, sector)
		dir.MarkForDeletion(sector)
		dir.WriteBack(directoryFile)
		return nil
	}

	header := NewFileHeader()
	header.FetchFrom(m.disk, sector)
	header.Deallocate(freeMap)
	freeMap.Clear(sector)
	freeMap.WriteBack(m.freeMapFile)

	klog.Assert(dir.Remove(name), "fs: directory Remove failed after Find succeeded")
	dir.WriteBack(directoryFile)
	return nil
}
