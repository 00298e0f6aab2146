package fs

import (
	"encoding/binary"

	"github.com/BMarelli/nachos/internal/kernerr"
	"github.com/BMarelli/nachos/internal/klog"
)

// entrySize is the fixed on-disk width of one DirectoryEntry: three
// flag bytes plus one padding byte, a fixed-width name, and a u32
// sector number (spec §6).
const entrySize = 4 + FileNameMaxLen + 4

type directoryEntry struct {
	inUse             bool
	isDirectory       bool
	markedForDeletion bool
	name              string
	sector            int
}

func (e *directoryEntry) marshal() []byte {
	buf := make([]byte, entrySize)
	if e.inUse {
		buf[0] = 1
	}
	if e.isDirectory {
		buf[1] = 1
	}
	if e.markedForDeletion {
		buf[2] = 1
	}
	copy(buf[4:4+FileNameMaxLen], e.name)
	binary.LittleEndian.PutUint32(buf[4+FileNameMaxLen:], uint32(e.sector))
	return buf
}

func (e *directoryEntry) unmarshal(buf []byte) {
	e.inUse = buf[0] != 0
	e.isDirectory = buf[1] != 0
	e.markedForDeletion = buf[2] != 0
	e.name = cString(buf[4 : 4+FileNameMaxLen])
	e.sector = int(binary.LittleEndian.Uint32(buf[4+FileNameMaxLen:]))
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// Directory is the in-memory form of an extensible table of named
// entries, persisted as the body of a regular file (spec §4.6),
// grounded on original_source/filesys/directory.cc.
type Directory struct {
	table []directoryEntry
}

// NewDirectory returns an empty directory with no backing entries yet;
// the table grows lazily on the first Add, exactly like
// original_source/filesys/directory.cc's zero-size constructor.
func NewDirectory() *Directory {
	return &Directory{}
}

// FetchFrom replaces the directory's contents with whatever file's
// current body holds.
func (d *Directory) FetchFrom(file *OpenFile) {
	length := file.Length()
	if length == 0 {
		d.table = nil
		return
	}

	n := length / entrySize
	buf := make([]byte, n*entrySize)
	file.ReadAt(buf, 0)

	d.table = make([]directoryEntry, n)
	for i := range d.table {
		d.table[i].unmarshal(buf[i*entrySize : (i+1)*entrySize])
	}
}

// WriteBack flushes the directory's table to file's body.
func (d *Directory) WriteBack(file *OpenFile) {
	if len(d.table) == 0 {
		return
	}

	buf := make([]byte, len(d.table)*entrySize)
	for i := range d.table {
		copy(buf[i*entrySize:(i+1)*entrySize], d.table[i].marshal())
	}
	file.WriteAt(buf, 0)
}

// findIndex scans for an in-use row named name; when
// includeMarkedForDeletion is false (ordinary lookups), a row already
// marked for deletion is invisible, matching spec I4 — the search
// FileManager.Close needs to find an already-marked row passes true.
func (d *Directory) findIndex(name string, includeMarkedForDeletion bool) int {
	for i := range d.table {
		e := &d.table[i]
		if e.inUse && (includeMarkedForDeletion || !e.markedForDeletion) && e.name == name {
			return i
		}
	}
	return -1
}

func (d *Directory) findIndexBySector(sector int, includeMarkedForDeletion bool) int {
	for i := range d.table {
		e := &d.table[i]
		if e.inUse && (includeMarkedForDeletion || !e.markedForDeletion) && e.sector == sector {
			return i
		}
	}
	return -1
}

// HasEntry reports whether name is taken by a live (not marked for
// deletion) row, file or directory alike.
func (d *Directory) HasEntry(name string) bool { return d.findIndex(name, false) != -1 }

// Find returns the header sector of the live entry named name, or -1.
func (d *Directory) Find(name string) int {
	if i := d.findIndex(name, false); i != -1 {
		return d.table[i].sector
	}
	return -1
}

// FindFile is Find restricted to non-directory entries.
func (d *Directory) FindFile(name string) int {
	if i := d.findIndex(name, false); i != -1 && !d.table[i].isDirectory {
		return d.table[i].sector
	}
	return -1
}

// FindDirectory is Find restricted to directory entries.
func (d *Directory) FindDirectory(name string) int {
	if i := d.findIndex(name, false); i != -1 && d.table[i].isDirectory {
		return d.table[i].sector
	}
	return -1
}

// Add inserts name -> sector, failing with AlreadyExists if the name is
// already taken. Growing the table by
// DirectoryEntriesTableGrowthIncrement, discarding the old table, when
// no free row remains (directory.cc's copy-on-grow).
func (d *Directory) Add(name string, sector int, isDirectory bool) error {
	if len(name) > FileNameMaxLen {
		return kernerr.BadArgument
	}
	if d.findIndex(name, false) != -1 {
		return kernerr.AlreadyExists
	}

	for i := range d.table {
		if !d.table[i].inUse {
			d.table[i] = directoryEntry{inUse: true, isDirectory: isDirectory, name: name, sector: sector}
			return nil
		}
	}

	old := len(d.table)
	grown := make([]directoryEntry, old+DirectoryEntriesTableGrowthIncrement)
	copy(grown, d.table)
	d.table = grown

	d.table[old] = directoryEntry{inUse: true, isDirectory: isDirectory, name: name, sector: sector}
	return nil
}

// Remove clears the in-use bit of name's row; returns false if name is
// not present.
func (d *Directory) Remove(name string) bool {
	i := d.findIndex(name, false)
	if i == -1 {
		return false
	}
	d.table[i].inUse = false
	return true
}

// MarkForDeletion flags the row at sector as marked for deletion; the
// sector must currently be a live, unmarked entry.
func (d *Directory) MarkForDeletion(sector int) {
	i := d.findIndexBySector(sector, false)
	klog.Assert(i != -1, "fs: MarkForDeletion on a sector not in the directory")
	d.table[i].markedForDeletion = true
}

// IsMarkedForDeletion reports the marked-for-deletion flag of the row
// at sector, which must exist (possibly already marked).
func (d *Directory) IsMarkedForDeletion(sector int) bool {
	i := d.findIndexBySector(sector, true)
	klog.Assert(i != -1, "fs: IsMarkedForDeletion on a sector not in the directory")
	return d.table[i].markedForDeletion
}

// RemoveMarkedForDeletion clears the in-use bit of the row at sector,
// which must exist and already be marked for deletion.
func (d *Directory) RemoveMarkedForDeletion(sector int) bool {
	i := d.findIndexBySector(sector, true)
	if i == -1 || !d.table[i].markedForDeletion {
		return false
	}
	d.table[i].inUse = false
	return true
}

// IsEmpty reports whether every row is free of live (not
// marked-for-deletion) entries — RemoveDirectory's non-empty check.
func (d *Directory) IsEmpty() bool {
	for i := range d.table {
		if d.table[i].inUse && !d.table[i].markedForDeletion {
			return false
		}
	}
	return true
}

// List returns the names of every live entry.
func (d *Directory) List() []string {
	var names []string
	for i := range d.table {
		if d.table[i].inUse && !d.table[i].markedForDeletion {
			names = append(names, d.table[i].name)
		}
	}
	return names
}

// ListContents renders List as a freshly built newline-separated
// listing, the Go analogue of original_source's
// ListDirectoryContents char* return.
func (d *Directory) ListContents() string {
	var out string
	for _, name := range d.List() {
		out += name + "\n"
	}
	return out
}

// entries exposes the raw table for the façade's Check() sweep, which
// needs every row including ones marked for deletion (a crashed prior
// run may have left one dangling).
func (d *Directory) entries() []directoryEntry { return d.table }
