// Package knownmem implements the known-memory table: a small fixed set
// of named, contiguous physical regions (the framebuffer, the keyboard's
// memory-mapped ring) that are leased rather than freed.
package knownmem

import (
	"github.com/upvalue/otium-sub001/kernel/errors"
	"github.com/upvalue/otium-sub001/kernel/kfmt/trace"
	"github.com/upvalue/otium-sub001/kernel/mem/pmm"
)

// Region names one of the closed set of known-memory entries.
type Region int

// The known regions. None is the zero value and is never a valid lock
// target.
const (
	None Region = iota
	Framebuffer
	Keyboard

	numRegions
)

// entry is one row of the table: the address and page count are fixed at
// first lease and never change afterwards, only holder moves.
type entry struct {
	addr    pmm.PageAddress
	pages   int
	holder  pmm.OwnerID
	hasAddr bool
}

// Table is the known-memory table. Its zero value is ready to use once
// Init has been called with an allocator.
type Table struct {
	alloc   *pmm.Allocator
	entries [numRegions]entry
}

// Init wires the table to the page allocator used to back first-lease
// allocations. Regions are always allocated with OwnerKernel so that they
// survive process exit; only the holder, not the ownership, changes hands.
func (t *Table) Init(alloc *pmm.Allocator) {
	t.alloc = alloc
}

// Lock attempts to acquire region for holder, requesting pages physical
// pages. If the region is already held by a different owner, returns the
// null address. If this is the first lease, it allocates requestedPages
// pages through the page allocator (tagged OwnerKernel) and records the
// resulting address and size permanently. A request larger than the
// originally committed size is refused (no reallocation) since some
// callers retain raw pointers into the region.
func (t *Table) Lock(region Region, requestedPages int, holder pmm.OwnerID) (pmm.PageAddress, bool) {
	if region <= None || region >= numRegions || requestedPages <= 0 {
		trace.Printf(trace.Mem, trace.Soft, "knownmem: %s (region=%d pages=%d)\n", errors.ErrKnownMemoryMisuse, region, requestedPages)
		return 0, false
	}

	e := &t.entries[region]

	if e.hasAddr && e.holder != pmm.OwnerNone && e.holder != holder {
		return 0, false
	}

	if !e.hasAddr {
		e.addr = t.alloc.Allocate(pmm.OwnerKernel, requestedPages)
		e.pages = requestedPages
		e.hasAddr = true
	} else if requestedPages > e.pages {
		return 0, false
	}

	e.holder = holder
	return e.addr, true
}

// ReleaseAllHeldBy clears the holder of every entry held by holder. The
// underlying pages are not freed: their physical address must stay stable
// for the kernel's lifetime, so a future lock by any process resumes using
// the same memory.
func (t *Table) ReleaseAllHeldBy(holder pmm.OwnerID) {
	for i := range t.entries {
		if t.entries[i].holder == holder {
			t.entries[i].holder = pmm.OwnerNone
		}
	}
}

// HolderOf returns the current holder of region, or pmm.OwnerNone if the
// region has never been leased or has since been released.
func (t *Table) HolderOf(region Region) pmm.OwnerID {
	if region <= None || region >= numRegions {
		return pmm.OwnerNone
	}
	return t.entries[region].holder
}
