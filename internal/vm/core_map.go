package vm

// CoreMapEntry records who owns a physical frame: the address space that
// mapped it, and which of that space's virtual pages it backs.
type CoreMapEntry struct {
	Space *AddressSpace
	VPN   int
}

// CoreMap is the single table of NUM_PHYS_PAGES physical-frame
// descriptors shared by every running address space (core_map.cc/.hh).
// It is process-wide state: spec §5 requires it be "mutated only with
// preemption disabled", which is the trap dispatcher's job (it brackets
// every CoreMap call with thread.SetInterruptsOff/SetInterruptLevel),
// not this type's.
type CoreMap struct {
	bitmap  *Bitmap
	entries []CoreMapEntry

	fifoNext  int
	clockHand int
}

// NewCoreMap allocates a core-map for a machine with numPhysPages
// physical frames, all initially free.
func NewCoreMap(numPhysPages int) *CoreMap {
	entries := make([]CoreMapEntry, numPhysPages)
	for i := range entries {
		entries[i].VPN = unallocated
	}
	return &CoreMap{bitmap: NewBitmap(numPhysPages), entries: entries, fifoNext: -1, clockHand: -1}
}

// NumFrames reports how many physical frames this core-map manages.
func (c *CoreMap) NumFrames() int { return len(c.entries) }

// Find allocates the first free frame for (space, vpn) and returns its
// index, or -1 if none remain.
func (c *CoreMap) Find(space *AddressSpace, vpn int) int {
	frame := c.bitmap.Find()
	if frame != -1 {
		c.entries[frame] = CoreMapEntry{Space: space, VPN: vpn}
	}
	return frame
}

// CountClear reports how many frames are currently free.
func (c *CoreMap) CountClear() int { return c.bitmap.CountClear() }

// Mark occupies frame on behalf of (space, vpn) directly, for callers
// that already picked the frame (a swap victim being reassigned).
func (c *CoreMap) Mark(frame int, space *AddressSpace, vpn int) {
	c.bitmap.Mark(frame)
	c.entries[frame] = CoreMapEntry{Space: space, VPN: vpn}
}

// Clear frees frame and drops its back-reference.
func (c *CoreMap) Clear(frame int) {
	c.bitmap.Clear(frame)
	c.entries[frame] = CoreMapEntry{VPN: unallocated}
}

// Test reports whether frame is currently occupied.
func (c *CoreMap) Test(frame int) bool { return c.bitmap.Test(frame) }

// GetSpace returns the address space occupying frame, or nil if free.
func (c *CoreMap) GetSpace(frame int) *AddressSpace { return c.entries[frame].Space }

// GetVPN returns the virtual page number frame backs.
func (c *CoreMap) GetVPN(frame int) int { return c.entries[frame].VPN }
