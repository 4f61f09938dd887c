// Package vmm implements the address-space builder: a flat two-level
// page table with a 10-bit vpn1, a 10-bit vpn0 and a 12-bit page offset,
// used only by the embedded platform backend to give each process its own
// mapping of kernel and user image pages.
package vmm

import (
	"unsafe"

	"github.com/upvalue/otium-sub001/kernel"
	"github.com/upvalue/otium-sub001/kernel/mem"
	"github.com/upvalue/otium-sub001/kernel/mem/pmm"
)

// Flag is one bit of a page table entry.
type Flag uint32

// The entry flags named by the design: VALID marks a present entry, R/W/X
// are the usual access permissions and U marks a page accessible from user
// mode.
const (
	Valid Flag = 1 << 0
	Read  Flag = 1 << 1
	Write Flag = 1 << 2
	Exec  Flag = 1 << 3
	User  Flag = 1 << 4

	// KernelRWX is the flag set identity-mapped kernel pages are mapped
	// with: readable, writable, executable, not user-accessible.
	KernelRWX = Read | Write | Exec
	// UserImageRWX is the flag set a process's user image pages are
	// mapped with.
	UserImageRWX = User | Read | Write | Exec
)

const (
	vpnBits   = 10
	vpnMask   = (1 << vpnBits) - 1
	entrySize = unsafe.Sizeof(uint32(0))
	numPTEs   = 1 << vpnBits
)

var (
	errUnalignedAddr = &kernel.Error{Module: "vmm", Message: "unaligned page-table address"}

	// panicFn is mocked by tests.
	panicFn = kernel.Panic
)

// vpn1 returns the level-1 (root table) index for vaddr.
func vpn1(vaddr uintptr) uintptr { return (uintptr(PageFromAddress(vaddr)) >> vpnBits) & vpnMask }

// vpn0 returns the level-0 (leaf table) index for vaddr.
func vpn0(vaddr uintptr) uintptr { return uintptr(PageFromAddress(vaddr)) & vpnMask }

func entryAt(table pmm.PageAddress, index uintptr) *uint32 {
	return (*uint32)(unsafe.Pointer(table.Raw() + index*entrySize))
}

// Map installs a mapping from vaddr to paddr in the tree rooted at root,
// allocating a level-0 leaf table (tagged owner) on first use of a given
// level-1 slot. Both addresses must already be page-aligned: this is a
// programming error in the caller and is fatal, not recoverable.
func Map(alloc *pmm.Allocator, root pmm.PageAddress, vaddr uintptr, paddr pmm.PageAddress, flags Flag, owner pmm.OwnerID) {
	if vaddr&uintptr(mem.PageSize-1) != 0 {
		panicFn(errUnalignedAddr)
		return
	}
	if !paddr.Aligned() {
		panicFn(errUnalignedAddr)
		return
	}

	l1 := entryAt(root, vpn1(vaddr))
	if Flag(*l1)&Valid == 0 {
		leaf := alloc.Allocate(owner, 1)
		*l1 = uint32(leaf.Raw()/uintptr(mem.PageSize))<<10 | uint32(Valid)
	}

	leafTable := pmm.PageAddress((uintptr(*l1) >> 10) * uintptr(mem.PageSize))
	l0 := entryAt(leafTable, vpn0(vaddr))
	*l0 = uint32(paddr.Raw()/uintptr(mem.PageSize))<<10 | uint32(flags) | uint32(Valid)
}

// BuildAddressSpace allocates a root page table tagged owner, identity-maps
// every page in [ramStart, ramEnd) with KernelRWX, and maps each page in
// userPages at consecutive pages starting at mem.UserBase with
// UserImageRWX. Only the embedded platform backend calls this at process
// creation time: the hosted backend has no MMU to program and runs every
// process directly against host memory.
func BuildAddressSpace(alloc *pmm.Allocator, owner pmm.OwnerID, ramStart, ramEnd uintptr, userPages []pmm.PageAddress) pmm.PageAddress {
	root := alloc.Allocate(owner, 1)

	for addr := ramStart; addr < ramEnd; addr += uintptr(mem.PageSize) {
		Map(alloc, root, addr, pmm.PageAddress(addr), KernelRWX, owner)
	}

	for i, up := range userPages {
		vaddr := mem.UserBase + uintptr(i)*uintptr(mem.PageSize)
		Map(alloc, root, vaddr, up, UserImageRWX, owner)
	}

	return root
}

// Translate walks root for vaddr and returns the mapped physical address
// and whether a valid leaf entry was found.
func Translate(root pmm.PageAddress, vaddr uintptr) (pmm.PageAddress, bool) {
	l1 := entryAt(root, vpn1(vaddr))
	if Flag(*l1)&Valid == 0 {
		return 0, false
	}

	leafTable := pmm.PageAddress((uintptr(*l1) >> 10) * uintptr(mem.PageSize))
	l0 := entryAt(leafTable, vpn0(vaddr))
	if Flag(*l0)&Valid == 0 {
		return 0, false
	}

	offset := vaddr & uintptr(mem.PageSize-1)
	base := (uintptr(*l0) >> 10) * uintptr(mem.PageSize)
	return pmm.PageAddress(base + offset), true
}
