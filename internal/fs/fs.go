// Package fs implements the block-oriented on-disk file system: a
// free-space bitmap, file headers with a direct/indirect/double-indirect
// block map, an extensible directory, a reference-counted open-file
// cache, and the file-system façade that ties them together under a
// single lock.
//
// Layout mirrors original_source/filesys/ one concept per file:
// free_map.go (the free-space bitmap file_system.cc allocates at
// FreeMapSector), file_header.go (file_header.cc, raw_file_header.hh),
// directory.go (directory.cc/.hh), file_manager.go (file_manager.cc/.hh),
// synch_open_file.go (synch_open_file.cc/.hh, unique_open_file.hh),
// file_system.go (file_system.cc/.hh), fs.go (this file: the shared
// on-disk geometry constants).
package fs

import "github.com/BMarelli/nachos/internal/klog"

var log = klog.Channel("f")

// SectorSize is the fixed width S of one disk sector and one file
// header, in bytes (spec §3: "typically 128 bytes").
const SectorSize = 128

// bytesPerSectorRef is sizeof(unsigned) in the original layout: each
// direct/indirect/double-indirect slot is a 4-byte sector number.
const bytesPerSectorRef = 4

// NUM_DIRECT and NUM_INDIRECT per raw_file_header.hh: NUM_DIRECT is
// however many direct refs fit in a sector alongside numBytes and
// numSectors and the two indirection sector refs (4 header words);
// NUM_INDIRECT is how many sector refs fit in one full sector.
const (
	NumDirect   = (SectorSize - 4*bytesPerSectorRef) / bytesPerSectorRef
	NumIndirect = SectorSize / bytesPerSectorRef
)

// MaxFileSize is the largest file representable with direct, single-
// indirect and double-indirect blocks (spec §4.5's formula, generalized
// from the original single-indirect-only source per the Open Question
// resolution recorded in DESIGN.md).
const MaxFileSize = (NumDirect + NumIndirect + NumIndirect*NumIndirect) * SectorSize

// FileNameMaxLen bounds a directory entry's name, matching classic
// Nachos's fixed-width DirectoryEntry.
const FileNameMaxLen = 9

// DirectoryEntriesTableGrowthIncrement is how many rows Directory.Add
// grows the table by when it finds no free row (directory.cc).
const DirectoryEntriesTableGrowthIncrement = 10

// Well-known header sectors (spec §6).
const (
	FreeMapSector   = 0
	DirectorySector = 1
)

// DefaultNumSectors is the disk geometry `nachos format` uses absent an
// explicit --sectors flag. Callers are never required to use it: every
// fs type that cares about disk geometry (FreeMap, the façade) takes the
// sector count explicitly, since it is a property of one formatted disk
// image, not a process-wide constant.
const DefaultNumSectors = 1024

// FreeMapFileSize is the fixed size, in bytes, of the free-map file body
// for a disk of numSectors sectors: one bit per sector, rounded up to
// whole bytes.
func FreeMapFileSize(numSectors int) int { return divRoundUp(numSectors, 8) }

func divRoundUp(n, s int) int { return (n + s - 1) / s }

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
