// Package device models the asynchronous hardware that internal/syncio's
// blocking wrappers sit on top of: spec §1 places "the raw disk/console
// device models" out of scope, so this is deliberately the thinnest
// plausible stand-in, not a timing-accurate simulation. Each device owns a
// goroutine that processes requests FIFO and invokes a completion
// callback when done — the Go-idiomatic equivalent of the interrupt
// handler original_source/filesys/synch_disk.cc calls `RequestDone` from.
package device

import (
	"fmt"
	"os"
)

type diskRequest struct {
	sector  int
	buf     []byte
	isWrite bool
	done    func()
}

// Disk is a fixed-geometry block device backed by a single file on the
// host filesystem. There is no seek-time model and no queueing discipline
// beyond FIFO: the real hardware handles one outstanding request at a
// time, which is exactly what internal/syncio.SynchDisk's single lock
// already enforces from the caller's side.
type Disk struct {
	f          *os.File
	sectorSize int
	numSectors int
	reqs       chan diskRequest
}

// OpenDisk opens (creating if necessary) a disk image of numSectors
// sectors of sectorSize bytes each, starting a goroutine to service
// requests.
func OpenDisk(path string, sectorSize, numSectors int) (*Disk, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("device: open disk %q: %w", path, err)
	}

	size := int64(sectorSize) * int64(numSectors)
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("device: stat disk %q: %w", path, err)
	}
	if info.Size() < size {
		if err := f.Truncate(size); err != nil {
			f.Close()
			return nil, fmt.Errorf("device: truncate disk %q: %w", path, err)
		}
	}

	d := &Disk{f: f, sectorSize: sectorSize, numSectors: numSectors, reqs: make(chan diskRequest, 32)}
	go d.loop()
	return d, nil
}

func (d *Disk) loop() {
	for req := range d.reqs {
		off := int64(req.sector) * int64(d.sectorSize)
		if req.isWrite {
			if _, err := d.f.WriteAt(req.buf, off); err != nil {
				panic(fmt.Sprintf("device: write sector %d: %v", req.sector, err))
			}
		} else {
			if _, err := d.f.ReadAt(req.buf, off); err != nil {
				panic(fmt.Sprintf("device: read sector %d: %v", req.sector, err))
			}
		}
		req.done()
	}
}

// SectorSize reports the fixed sector width in bytes.
func (d *Disk) SectorSize() int { return d.sectorSize }

// NumSectors reports the fixed disk geometry.
func (d *Disk) NumSectors() int { return d.numSectors }

// ReadRequest asynchronously reads one sector into buf, invoking done on
// the device's goroutine once the read has landed.
func (d *Disk) ReadRequest(sector int, buf []byte, done func()) {
	d.reqs <- diskRequest{sector: sector, buf: buf, done: done}
}

// WriteRequest asynchronously writes data to one sector, invoking done on
// the device's goroutine once the write has landed.
func (d *Disk) WriteRequest(sector int, data []byte, done func()) {
	d.reqs <- diskRequest{sector: sector, buf: data, isWrite: true, done: done}
}

// Close stops the device goroutine and closes the backing file.
func (d *Disk) Close() error {
	close(d.reqs)
	return d.f.Close()
}
