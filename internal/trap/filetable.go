package trap

import (
	"github.com/BMarelli/nachos/internal/fs"
	"github.com/BMarelli/nachos/internal/kernerr"
)

// entry pairs an open file with this process's own seek position for
// it. SynchOpenFile.ReadAt/WriteAt both take an explicit byte offset
// rather than tracking one themselves (the offset OpenFile does track
// internally is private to fs and bypasses the RW-lock ReadAtCurrent/
// WriteAtCurrent are meant to go through), so the Read/Write syscalls'
// "act on the file's current position" behavior is this table's job.
type entry struct {
	file   *fs.SynchOpenFile
	offset int
}

// FileTable is one process's file-descriptor table: fd 0 and 1 are
// always ConsoleInput/ConsoleOutput (never entered here), and every
// successful Open hands back the next integer above them, exactly the
// fid = cache-key + 2 convention exception.cc's HandleOpen uses.
type FileTable struct {
	entries map[int]*entry
	next    int
}

// NewFileTable creates an empty per-process file table.
func NewFileTable() *FileTable {
	return &FileTable{entries: make(map[int]*entry), next: ConsoleOutput + 1}
}

// Open opens path through fsys and assigns it a fresh descriptor.
func (ft *FileTable) Open(fsys *fs.FileSystem, path string) (int, error) {
	file, err := fsys.Open(path)
	if err != nil {
		return -1, err
	}

	fd := ft.next
	ft.next++
	ft.entries[fd] = &entry{file: file}
	return fd, nil
}

// ReadAt reads into buf at fd's current position and advances it.
func (ft *FileTable) ReadAt(fd int, buf []byte) (int, bool) {
	e, ok := ft.entries[fd]
	if !ok {
		return 0, false
	}
	n := e.file.ReadAt(buf, e.offset)
	e.offset += n
	return n, true
}

// WriteAt writes data at fd's current position and advances it.
func (ft *FileTable) WriteAt(fd int, data []byte) (int, bool) {
	e, ok := ft.entries[fd]
	if !ok {
		return 0, false
	}
	n := e.file.WriteAt(data, e.offset)
	e.offset += n
	return n, true
}

// Close releases fd, refusing to touch the two reserved console
// descriptors (HandleClose's "closing fd 0 or 1 is a BadArgument" rule,
// spec §7).
func (ft *FileTable) Close(fsys *fs.FileSystem, fd int) error {
	if fd == ConsoleInput || fd == ConsoleOutput {
		return kernerr.BadArgument
	}

	e, ok := ft.entries[fd]
	if !ok {
		return kernerr.BadArgument
	}

	fsys.Close(e.file)
	delete(ft.entries, fd)
	return nil
}

// CloseAll releases every descriptor still open, called once when the
// owning process exits (exception.cc relies on OpenFileTable's
// destructor for this; Go has no destructors, so ExitProcess calls this
// explicitly).
func (ft *FileTable) CloseAll(fsys *fs.FileSystem) {
	for fd, e := range ft.entries {
		fsys.Close(e.file)
		delete(ft.entries, fd)
	}
}
