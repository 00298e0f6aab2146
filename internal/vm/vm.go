// Package vm implements the demand-paged virtual memory subsystem of
// spec §4.9: a core-map of physical frames shared by every running
// process, and the per-process AddressSpace that maps a virtual page
// range onto it, with direct loading, demand loading and swap as three
// independently selectable behaviors.
//
// Layout mirrors original_source/userprog/ one concept per file:
// core_map.go (core_map.cc/.hh), address_space.go (address_space.cc/.hh),
// replacement.go (the PickVictim policies address_space.cc bundles into
// one free function), machine.go (the MMU/register interface mmu.hh
// declares but original_source never ships a buildable implementation
// of, since the raw CPU emulator is out of this kernel's scope — this
// file is the minimal Go stand-in a trap dispatcher can drive), and
// executable.go (the on-disk program image address_space.cc reads
// through Executable, here built directly on internal/fs).
package vm

import "github.com/BMarelli/nachos/internal/klog"

var log = klog.Channel("a")

// PageSize is set equal to the disk sector size, as mmu.hh does, for
// simplicity: a page and a sector are the same number of bytes.
const PageSize = 128

// DefaultNumPhysPages is a physical frame count for callers without a
// configured one; `nachos run` does not use it, since its --phys-pages
// flag has its own default of 32. NUM_PHYS_PAGES
// is smaller once swap is enabled in the original, trading physical
// memory pressure for swap traffic on purpose, so nachos run likewise
// exposes this as a flag rather than a constant.
const DefaultNumPhysPages = 128

// UserStackSize is how much address space every process reserves for its
// stack, above its code and initialized-data segments.
const UserStackSize = 1024

// NumTLBEntries is the size of the (optional) translation lookaside
// buffer mmu.hh declares.
const NumTLBEntries = 16

// unallocated marks a core-map entry or translation-entry slot that does
// not currently back any virtual page, the same sentinel file_header.go
// uses for an unallocated sector.
const unallocated = -1

// TranslationEntry is one page-table (or TLB) row: original_source's
// TranslationEntry, never published to the pack as a standalone header
// but used throughout address_space.cc/exception.cc by these exact field
// names.
type TranslationEntry struct {
	VirtualPage  int
	PhysicalPage int
	Valid        bool
	ReadOnly     bool
	Use          bool
	Dirty        bool
}
