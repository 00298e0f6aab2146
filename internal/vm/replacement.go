package vm

import (
	"math/rand"

	"github.com/BMarelli/nachos/internal/klog"
)

// ReplacementPolicy selects which of the three frame-eviction
// strategies address_space.cc's PickVictim implements a swap-enabled
// kernel runs under.
type ReplacementPolicy int

const (
	PolicyFIFO ReplacementPolicy = iota
	PolicyClock
	PolicyRandom
)

func (p ReplacementPolicy) String() string {
	switch p {
	case PolicyFIFO:
		return "fifo"
	case PolicyClock:
		return "clock"
	case PolicyRandom:
		return "random"
	default:
		klog.Assert(false, "vm: invalid replacement policy %d", int(p))
		return ""
	}
}

// PickVictim chooses a physical frame to evict. currentSpace, when
// non-nil, is given a chance to flush its TLB bits into its page table
// before an enhanced-clock scan, mirroring PickVictim's unconditional
// currentThread->space->SaveState() call; FIFO and random never look at
// it.
func (c *CoreMap) PickVictim(policy ReplacementPolicy, m *Machine, currentSpace *AddressSpace) int {
	switch policy {
	case PolicyFIFO:
		c.fifoNext = (c.fifoNext + 1) % len(c.entries)
		return c.fifoNext
	case PolicyClock:
		return c.pickVictimClock(m, currentSpace)
	case PolicyRandom:
		return rand.Intn(len(c.entries))
	default:
		klog.Assert(false, "vm: invalid replacement policy %d", int(policy))
		return -1
	}
}

// pickVictimClock is the four-pass enhanced-clock scan: (use=0,
// dirty=0) taken immediately; (use=0, dirty=1) taken immediately, else
// use is cleared (and mirrored into the TLB, if one shadows the frame);
// (use=1, dirty=0) taken unconditionally; otherwise the hand's next
// frame is taken no matter its bits.
func (c *CoreMap) pickVictimClock(m *Machine, currentSpace *AddressSpace) int {
	if currentSpace != nil {
		currentSpace.SaveState()
	}

	n := len(c.entries)

	for i := 0; i < n; i++ {
		c.clockHand = (c.clockHand + 1) % n
		entry := c.entryAt(c.clockHand)
		if !entry.Use && !entry.Dirty {
			return c.clockHand
		}
	}

	for i := 0; i < n; i++ {
		c.clockHand = (c.clockHand + 1) % n
		entry := c.entryAt(c.clockHand)
		if !entry.Use && entry.Dirty {
			return c.clockHand
		}
		entry.Use = false
		m.clearTLBUse(c.clockHand)
	}

	for i := 0; i < n; i++ {
		c.clockHand = (c.clockHand + 1) % n
		entry := c.entryAt(c.clockHand)
		if !entry.Dirty {
			return c.clockHand
		}
	}

	c.clockHand = (c.clockHand + 1) % n
	return c.clockHand
}

// entryAt returns the translation entry a frame's current owner has for
// it, asserting the core-map/page-table back-reference agrees (P7).
func (c *CoreMap) entryAt(frame int) *TranslationEntry {
	space := c.GetSpace(frame)
	klog.Assert(space != nil, "vm: clock scan visited unoccupied frame %d", frame)

	entry := space.GetPage(c.GetVPN(frame))
	klog.Assert(entry.Valid, "vm: core-map points frame %d at an invalid page-table entry", frame)
	klog.Assert(entry.PhysicalPage == frame, "vm: core-map/page-table frame mismatch at %d", frame)

	return entry
}
