package knownmem

import (
	"testing"
	"unsafe"

	"github.com/upvalue/otium-sub001/kernel/mem"
	"github.com/upvalue/otium-sub001/kernel/mem/pmm"
)

func newTestAllocator(t *testing.T, pageCount int) *pmm.Allocator {
	t.Helper()
	buf := make([]byte, uint64(pageCount)*uint64(mem.PageSize))
	start := uintptr(unsafe.Pointer(&buf[0]))
	end := start + uintptr(len(buf))

	var a pmm.Allocator
	a.Init(start, end)
	return &a
}

func TestLockFirstLease(t *testing.T) {
	a := newTestAllocator(t, 64)

	var tbl Table
	tbl.Init(a)

	const holder = pmm.OwnerID(7)

	addr, ok := tbl.Lock(Framebuffer, 4, holder)
	if !ok || addr.IsNull() {
		t.Fatalf("expected first lease to succeed")
	}
	if tbl.HolderOf(Framebuffer) != holder {
		t.Fatalf("expected holder to be recorded")
	}
}

func TestLockAddressStableAcrossRelocks(t *testing.T) {
	a := newTestAllocator(t, 64)

	var tbl Table
	tbl.Init(a)

	addr1, ok := tbl.Lock(Framebuffer, 4, pmm.OwnerID(7))
	if !ok {
		t.Fatalf("expected first lease to succeed")
	}

	tbl.ReleaseAllHeldBy(pmm.OwnerID(7))

	addr2, ok := tbl.Lock(Framebuffer, 4, pmm.OwnerID(9))
	if !ok {
		t.Fatalf("expected relock to succeed after release")
	}
	if addr1 != addr2 {
		t.Fatalf("expected known-memory address to be stable across relocks, got %v vs %v", addr1, addr2)
	}
}

func TestLockConflict(t *testing.T) {
	a := newTestAllocator(t, 64)

	var tbl Table
	tbl.Init(a)

	if _, ok := tbl.Lock(Framebuffer, 4, pmm.OwnerID(7)); !ok {
		t.Fatalf("expected first lease to succeed")
	}

	if _, ok := tbl.Lock(Framebuffer, 4, pmm.OwnerID(9)); ok {
		t.Fatalf("expected lock by a different holder to fail while held")
	}
}

func TestLockOverRequestReturnsNull(t *testing.T) {
	a := newTestAllocator(t, 64)

	var tbl Table
	tbl.Init(a)

	if _, ok := tbl.Lock(Framebuffer, 4, pmm.OwnerID(7)); !ok {
		t.Fatalf("expected first lease to succeed")
	}

	// A request larger than the committed size is refused even for the
	// existing holder, since no reallocation is performed.
	if _, ok := tbl.Lock(Framebuffer, 5, pmm.OwnerID(7)); ok {
		t.Fatalf("expected over-sized request to return null")
	}
}

func TestReleaseDoesNotFreeUnderlyingPages(t *testing.T) {
	a := newTestAllocator(t, 64)

	var tbl Table
	tbl.Init(a)

	tbl.Lock(Framebuffer, 4, pmm.OwnerID(7))
	before := a.Stats().Allocated

	tbl.ReleaseAllHeldBy(pmm.OwnerID(7))

	after := a.Stats().Allocated
	if before != after {
		t.Fatalf("release must not free pages: allocated changed %d -> %d", before, after)
	}
	if tbl.HolderOf(Framebuffer) != pmm.OwnerNone {
		t.Fatalf("expected holder cleared after release")
	}
}

func TestLockInvalidRegion(t *testing.T) {
	a := newTestAllocator(t, 64)

	var tbl Table
	tbl.Init(a)

	if _, ok := tbl.Lock(None, 1, pmm.OwnerID(1)); ok {
		t.Fatalf("expected locking the None region to fail")
	}
	if _, ok := tbl.Lock(Region(999), 1, pmm.OwnerID(1)); ok {
		t.Fatalf("expected locking an out-of-range region to fail")
	}
}
