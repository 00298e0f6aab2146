package fs

import "github.com/BMarelli/nachos/internal/klog"

// FreeMap is a persistent bit-set over disk sectors: 0 = free, 1 = in
// use (spec §4.4). It is always the body of the file whose header lives
// at FreeMapSector, so FetchFrom/WriteBack take the already-open handle
// on that file rather than a raw sector number.
type FreeMap struct {
	numSectors int
	bits       []byte // one bit per sector, little-endian within each byte
}

// NewFreeMap creates an all-free bitmap sized for numSectors.
func NewFreeMap(numSectors int) *FreeMap {
	return &FreeMap{numSectors: numSectors, bits: make([]byte, divRoundUp(numSectors, 8))}
}

// Test reports whether sector is currently marked in use.
func (m *FreeMap) Test(sector int) bool {
	m.checkRange(sector)
	return m.bits[sector/8]&(1<<uint(sector%8)) != 0
}

// Mark sets sector in use.
func (m *FreeMap) Mark(sector int) {
	m.checkRange(sector)
	m.bits[sector/8] |= 1 << uint(sector%8)
}

// Clear marks sector free.
func (m *FreeMap) Clear(sector int) {
	m.checkRange(sector)
	m.bits[sector/8] &^= 1 << uint(sector%8)
}

// Find locates the first free sector, marks it in use, and returns its
// index; returns -1 if none remain. O(D) as spec §4.4 allows: "required
// only to be deterministic given state; the allocator does not have
// fragmentation goals."
func (m *FreeMap) Find() int {
	for s := 0; s < m.numSectors; s++ {
		if !m.Test(s) {
			m.Mark(s)
			return s
		}
	}
	return -1
}

// CountClear returns the number of sectors currently free.
func (m *FreeMap) CountClear() int {
	n := 0
	for s := 0; s < m.numSectors; s++ {
		if !m.Test(s) {
			n++
		}
	}
	return n
}

// Bytes returns the raw bitmap body, for writing as a file's contents.
func (m *FreeMap) Bytes() []byte { return m.bits }

// FetchFrom replaces the bitmap's contents with whatever file's current
// body holds, the same shape as Directory.FetchFrom.
func (m *FreeMap) FetchFrom(file *OpenFile) {
	file.ReadAt(m.bits, 0)
}

// WriteBack flushes the bitmap to file's body.
func (m *FreeMap) WriteBack(file *OpenFile) {
	file.WriteAt(m.bits, 0)
}

func (m *FreeMap) checkRange(sector int) {
	klog.Assert(sector >= 0 && sector < m.numSectors, "fs: sector %d out of range", sector)
}
