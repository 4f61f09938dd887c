package pmm

import (
	"reflect"
	"unsafe"

	"github.com/upvalue/otium-sub001/kernel"
	"github.com/upvalue/otium-sub001/kernel/mem"
)

var (
	errOutOfMemory   = &kernel.Error{Module: "pmm", Message: "out of memory"}
	errZeroAllocSize = &kernel.Error{Module: "pmm", Message: "cannot allocate 0 pages"}

	// panicFn is mocked by tests and is automatically inlined by the compiler.
	panicFn = kernel.Panic
)

// Allocator is the physical page allocator. It owns every
// PageInfo entry for the managed region [ramStart, ramEnd) and the free
// list threaded through them.
//
// Allocator is a process-wide singleton: a zero value is usable only after
// a call to Init.
type Allocator struct {
	ramStart, ramEnd uintptr

	pageInfos []PageInfo
	freeHead  *PageInfo

	stats       Stats
	initialized bool
}

// Init bootstraps the allocator over the half-open byte range
// [ramStart, ramEnd). It bump-allocates, from the low end of the range,
// enough pages to hold the PageInfo array itself; those bootstrap pages are
// tagged OwnerKernel and are never linked into the free list. Init is
// idempotent: a second call on an already-initialized allocator is a no-op.
func (a *Allocator) Init(ramStart, ramEnd uintptr) {
	if a.initialized {
		return
	}

	a.ramStart, a.ramEnd = ramStart, ramEnd
	total := uint64(mem.Size(ramEnd-ramStart) / mem.PageSize)

	pageInfoBytes := total * uint64(unsafe.Sizeof(PageInfo{}))
	bootstrapPages := (mem.Size(pageInfoBytes) + mem.PageSize - 1) / mem.PageSize

	a.pageInfos = *(*[]PageInfo)(unsafe.Pointer(&reflect.SliceHeader{
		Data: ramStart,
		Len:  int(total),
		Cap:  int(total),
	}))

	var prev *PageInfo
	for i := uint64(0); i < total; i++ {
		pg := &a.pageInfos[i]
		pg.Addr = PageAddress(ramStart) + PageAddress(i)*PageAddress(mem.PageSize)
		pg.next = nil

		if mem.Size(i) < mem.Size(bootstrapPages) {
			pg.Owner = OwnerKernel
			continue
		}

		pg.Owner = OwnerNone
		if prev == nil {
			a.freeHead = pg
		} else {
			prev.next = pg
		}
		prev = pg
	}

	a.stats.Total = total
	a.stats.Allocated = uint64(bootstrapPages)
	a.stats.PeakAllocated = a.stats.Allocated
	a.initialized = true
}

// Allocate removes count pages from the head of the free list, tags each
// with owner, zeroes their contents and returns the address of the first
// removed page. Requesting zero pages or more pages than are free is fatal:
// out-of-memory is not a recoverable condition in this kernel.
func (a *Allocator) Allocate(owner OwnerID, count int) PageAddress {
	if count <= 0 {
		panicFn(errZeroAllocSize)
		return PageAddress(0)
	}

	// Walk the free list to confirm at least count nodes are available
	// before mutating anything.
	avail := 0
	for p := a.freeHead; p != nil && avail < count; p = p.next {
		avail++
	}
	if avail < count {
		panicFn(errOutOfMemory)
		return PageAddress(0)
	}

	first := a.freeHead
	for i := 0; i < count; i++ {
		pg := a.freeHead
		a.freeHead = pg.next
		pg.Owner = owner
		pg.next = nil
		mem.Memset(uintptr(pg.Addr), 0, mem.PageSize)
	}

	a.stats.Allocated += uint64(count)
	if a.stats.Allocated > a.stats.PeakAllocated {
		a.stats.PeakAllocated = a.stats.Allocated
	}

	return first.Addr
}

// FreeAllOwnedBy scans the PageInfo array and reclaims, in bulk, every page
// tagged with owner: its contents are zeroed (defence in depth against
// cross-owner information leaks) and it is prepended to the free list.
// OwnerKernel is refused to protect the bootstrap pages. FreeAllOwnedBy is a
// no-op on an uninitialized allocator.
func (a *Allocator) FreeAllOwnedBy(owner OwnerID) {
	if !a.initialized || owner == OwnerKernel {
		return
	}

	var freed uint64
	for i := range a.pageInfos {
		pg := &a.pageInfos[i]
		if pg.Owner != owner {
			continue
		}

		mem.Memset(uintptr(pg.Addr), 0, mem.PageSize)
		pg.Owner = OwnerNone
		pg.next = a.freeHead
		a.freeHead = pg
		freed++
	}

	a.stats.Allocated -= freed
	a.stats.FreedLifetime += freed
}

// RAMRange returns the half-open byte range [ramStart, ramEnd) this
// allocator manages. Used by vmm.BuildAddressSpace to identity-map every
// page of managed RAM into a fresh process address space.
func (a *Allocator) RAMRange() (start, end uintptr) { return a.ramStart, a.ramEnd }

// NoteProcessCreated increments the processes_created counter. Called by
// proc.Table.Create.
func (a *Allocator) NoteProcessCreated() { a.stats.ProcessesCreated++ }

// Stats returns a snapshot of the allocator's running counters.
func (a *Allocator) Stats() Stats { return a.stats }
