package syncio

import (
	"github.com/dgraph-io/ristretto/v2"
)

// SectorCache absorbs repeat ReadSector calls for hot metadata sectors
// (the free map, directories, headers) without weakening the
// single-writer-at-a-time semantics of SynchDisk: every WriteSector
// invalidates its sector before the lock is released, so a later
// ReadSector on that sector never serves stale data. Disabling the cache
// changes performance, never correctness (SPEC_FULL.md §3.3).
type SectorCache struct {
	cache *ristretto.Cache[int, []byte]
}

// NewSectorCache creates a cache bounded by maxCost bytes.
func NewSectorCache(maxCost int64) (*SectorCache, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[int, []byte]{
		NumCounters: maxCost / 8,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &SectorCache{cache: cache}, nil
}

// Get returns a copy of the cached sector, if present.
func (c *SectorCache) Get(sector int) ([]byte, bool) {
	data, ok := c.cache.Get(sector)
	if !ok {
		return nil, false
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, true
}

// Set stores a copy of data under sector.
func (c *SectorCache) Set(sector int, data []byte) {
	stored := make([]byte, len(data))
	copy(stored, data)
	c.cache.Set(sector, stored, int64(len(stored)))
}

// Invalidate drops any cached copy of sector. Called by WriteSector before
// the disk lock is released, so the next ReadSector either misses (and
// refills from disk) or observes the write.
func (c *SectorCache) Invalidate(sector int) {
	c.cache.Del(sector)
}

// Close releases the cache's background goroutines.
func (c *SectorCache) Close() {
	c.cache.Close()
}
