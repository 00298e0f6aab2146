package fs

import (
	"github.com/BMarelli/nachos/internal/syncio"
)

// OpenFile is the unsynchronized view of one open file: a header plus a
// current seek position. Its ReadAt/WriteAt are not safe for concurrent
// use by themselves — SynchOpenFile wraps one in a per-file RW-lock, the
// only place concurrent access is actually exposed (spec §4.7, "the
// handle's ReadAt/WriteAt acquire the appropriate side of the RW-lock
// around the underlying unsynchronized I/O"). Modeled after
// original_source/filesys/open_file.hh's base `OpenFile` plus
// `UniqueOpenFile` for callers (the façade's own bookkeeping reads) that
// never need the RW-lock at all.
type OpenFile struct {
	disk     *syncio.SynchDisk
	sector   int
	header   *FileHeader
	position int
}

// NewOpenFile wraps an already-populated header at sector.
func NewOpenFile(disk *syncio.SynchDisk, sector int, header *FileHeader) *OpenFile {
	return &OpenFile{disk: disk, sector: sector, header: header}
}

// OpenUnique fetches the header at sector from disk and returns a
// one-shot handle over it — the Go analogue of UniqueOpenFile, for
// internal façade bookkeeping reads that do not go through the file
// manager's shared cache.
func OpenUnique(disk *syncio.SynchDisk, sector int) *OpenFile {
	h := NewFileHeader()
	h.FetchFrom(disk, sector)
	return NewOpenFile(disk, sector, h)
}

// Sector returns the disk sector of this file's header.
func (f *OpenFile) Sector() int { return f.sector }

// Header returns the underlying file header.
func (f *OpenFile) Header() *FileHeader { return f.header }

// Length returns the file's current size in bytes.
func (f *OpenFile) Length() int { return f.header.FileLength() }

// ReadAt reads up to len(buf) bytes starting at position, stopping
// early at end of file, and returns the number of bytes read. It is not
// safe for concurrent use with a WriteAt on the same file.
func (f *OpenFile) ReadAt(buf []byte, position int) int {
	length := f.header.FileLength()
	if position >= length {
		return 0
	}

	numBytes := len(buf)
	if position+numBytes > length {
		numBytes = length - position
	}
	if numBytes <= 0 {
		return 0
	}

	firstSector := position / SectorSize
	lastSector := (position + numBytes - 1) / SectorSize
	numSectors := lastSector - firstSector + 1

	tmp := make([]byte, numSectors*SectorSize)
	for i := 0; i < numSectors; i++ {
		sector := f.header.GetSector(firstSector + i)
		f.disk.ReadSector(sector, tmp[i*SectorSize:(i+1)*SectorSize])
	}

	offsetInFirst := position - firstSector*SectorSize
	copy(buf[:numBytes], tmp[offsetInFirst:offsetInFirst+numBytes])
	return numBytes
}

// WriteAt writes len(data) bytes at position, which must not extend the
// file past its allocated length, and returns the number of bytes
// written. It is not safe for concurrent use with a ReadAt or WriteAt on
// the same file.
func (f *OpenFile) WriteAt(data []byte, position int) int {
	length := f.header.FileLength()
	if position >= length {
		return 0
	}

	numBytes := len(data)
	if position+numBytes > length {
		numBytes = length - position
	}
	if numBytes <= 0 {
		return 0
	}

	firstSector := position / SectorSize
	lastSector := (position + numBytes - 1) / SectorSize
	numSectors := lastSector - firstSector + 1

	tmp := make([]byte, numSectors*SectorSize)
	// Read-modify-write: a partial first/last sector must preserve the
	// bytes this write doesn't touch.
	for i := 0; i < numSectors; i++ {
		sector := f.header.GetSector(firstSector + i)
		f.disk.ReadSector(sector, tmp[i*SectorSize:(i+1)*SectorSize])
	}

	offsetInFirst := position - firstSector*SectorSize
	copy(tmp[offsetInFirst:offsetInFirst+numBytes], data[:numBytes])

	for i := 0; i < numSectors; i++ {
		sector := f.header.GetSector(firstSector + i)
		f.disk.WriteSector(sector, tmp[i*SectorSize:(i+1)*SectorSize])
	}

	return numBytes
}

// ReadAtCurrent/WriteAtCurrent read/write at the handle's own seek
// position and advance it, the shape the Read/Write syscalls use
// (original_source/userprog/exception.cc's sys_Read/sys_Write never
// pass an explicit offset; they always act on the open file's current
// position).
func (f *OpenFile) ReadAtCurrent(buf []byte) int {
	n := f.ReadAt(buf, f.position)
	f.position += n
	return n
}

func (f *OpenFile) WriteAtCurrent(data []byte) int {
	n := f.WriteAt(data, f.position)
	f.position += n
	return n
}
