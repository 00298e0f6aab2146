// Package syncio wraps the asynchronous devices of internal/device in
// blocking request/reply calls, the way
// original_source/filesys/synch_disk.cc and
// original_source/machine/synch_console.hh wrap the raw device models:
// acquire a lock, submit the request, P() a per-wrapper semaphore, release
// the lock. The completion callback runs on the device's own goroutine and
// posts the semaphore from there.
package syncio

import (
	"github.com/BMarelli/nachos/internal/device"
	"github.com/BMarelli/nachos/internal/klog"
	"github.com/BMarelli/nachos/internal/thread"
)

var log = klog.Channel("s") // synchronous I/O channel, letter "s" per original_source's synch_disk.cc DEBUG calls

// SynchDisk serializes access to a device.Disk behind a single lock, as
// spec §4.3 requires ("a single lock serializes requests -- the real
// hardware handles only one outstanding I/O at a time").
type SynchDisk struct {
	disk  *device.Disk
	lock  *thread.Lock
	sem   *thread.Semaphore
	cache *SectorCache // nil disables caching entirely
}

// NewSynchDisk wraps disk. cache may be nil to disable the sector cache.
func NewSynchDisk(disk *device.Disk, cache *SectorCache) *SynchDisk {
	return &SynchDisk{
		disk:  disk,
		lock:  thread.NewLock("synch-disk"),
		sem:   thread.NewSemaphore("synch-disk-sem", 0),
		cache: cache,
	}
}

// SectorSize reports the underlying disk's fixed sector width.
func (sd *SynchDisk) SectorSize() int { return sd.disk.SectorSize() }

// NumSectors reports the underlying disk's fixed geometry.
func (sd *SynchDisk) NumSectors() int { return sd.disk.NumSectors() }

// ReadSector blocks the calling thread until sector has been read into
// buf, consulting the sector cache first when one is configured.
func (sd *SynchDisk) ReadSector(sector int, buf []byte) {
	if sd.cache != nil {
		if data, ok := sd.cache.Get(sector); ok {
			copy(buf, data)
			return
		}
	}

	log.Debugf("Reading sector %d", sector)
	sd.lock.Acquire()
	sd.disk.ReadRequest(sector, buf, func() { sd.sem.V() })
	sd.sem.P()
	sd.lock.Release()

	if sd.cache != nil {
		sd.cache.Set(sector, buf)
	}
}

// WriteSector blocks the calling thread until data has been written to
// sector, then invalidates any cached copy.
func (sd *SynchDisk) WriteSector(sector int, data []byte) {
	log.Debugf("Writing sector %d", sector)
	sd.lock.Acquire()
	sd.disk.WriteRequest(sector, data, func() { sd.sem.V() })
	sd.sem.P()

	if sd.cache != nil {
		sd.cache.Invalidate(sector)
	}
	sd.lock.Release()
}
