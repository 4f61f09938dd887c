// Package pmm implements the core's physical page allocator: every
// physical page is tracked by a PageInfo entry, allocated in units of one
// page tagged by owner, and reclaimed by owner in bulk.
package pmm

import "github.com/upvalue/otium-sub001/kernel/mem"

// PageAddress is a physical address that is expected to be aligned to
// mem.PageSize. Construction from an arbitrary integer is always allowed;
// alignment is only checked at points of use (e.g. vmm.Map).
type PageAddress uintptr

// Aligned reports whether the address is a multiple of mem.PageSize.
func (a PageAddress) Aligned() bool {
	return a&PageAddress(mem.PageSize-1) == 0
}

// Raw returns the address as a plain uintptr.
func (a PageAddress) Raw() uintptr { return uintptr(a) }

// IsNull reports whether this is the null address.
func (a PageAddress) IsNull() bool { return a == 0 }

// OwnerID identifies the owner of a page: NONE (free), Kernel (reserved,
// never reclaimed by process exit) or a process table slot index offset by
// ProcOwnerBase (see OwnerForSlot).
type OwnerID uint16

const (
	// OwnerNone marks a page as free.
	OwnerNone OwnerID = 0
	// OwnerKernel marks a page as kernel-reserved; process_exit never
	// reclaims these.
	OwnerKernel OwnerID = 1

	// ProcOwnerBase is added to a process table slot index to obtain its
	// OwnerID, keeping slot 0 (the idle process) distinct from OwnerNone
	// and OwnerKernel.
	ProcOwnerBase OwnerID = 2
)

// OwnerForSlot returns the OwnerID used to tag pages allocated by the
// process occupying the given process-table slot.
func OwnerForSlot(slot int) OwnerID { return OwnerID(slot) + ProcOwnerBase }

// SlotForOwner is the inverse of OwnerForSlot; ok is false for OwnerNone,
// OwnerKernel or any id below ProcOwnerBase.
func SlotForOwner(owner OwnerID) (slot int, ok bool) {
	if owner < ProcOwnerBase {
		return 0, false
	}
	return int(owner - ProcOwnerBase), true
}

// PageInfo is the per-page bookkeeping entry. next is only meaningful while
// the page sits in the free list.
type PageInfo struct {
	Addr  PageAddress
	Owner OwnerID
	next  *PageInfo
}

// Stats tracks allocator-wide counters, updated on every allocation/free
// transition.
type Stats struct {
	Total            uint64
	Allocated        uint64
	FreedLifetime    uint64
	ProcessesCreated uint64
	PeakAllocated    uint64
}
