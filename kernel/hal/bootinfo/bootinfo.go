// Package bootinfo extracts the single fact the core needs from the
// embedded target's multiboot2 info structure: the half-open physical
// address range of usable RAM, [Start, End). Everything else the
// bootloader reports (framebuffer mode, command line, modules) belongs to
// an external collaborator, not the core.
package bootinfo

import "unsafe"

type tagType uint32

const (
	tagSectionEnd tagType = iota
	tagBootCmdLine
	tagBootLoaderName
	tagModules
	tagBasicMemoryInfo
	tagBiosBootDevice
	tagMemoryMap
)

type tagHeader struct {
	tagType tagType
	size    uint32
}

type mmapHeader struct {
	entrySize    uint32
	entryVersion uint32
}

// MemoryEntryType classifies a memory map entry reported by the
// bootloader.
type MemoryEntryType uint32

// The memory region classifications the multiboot2 spec defines. Only
// MemAvailable regions are folded into the usable RAM range.
const (
	MemAvailable MemoryEntryType = iota + 1
	MemReserved
	MemAcpiReclaimable
	MemNvs

	memUnknown
)

// MemoryMapEntry describes one physical memory region.
type MemoryMapEntry struct {
	PhysAddress uint64
	Length      uint64
	Type        MemoryEntryType
}

var infoData uintptr

// SetInfoPtr records the physical address of the multiboot2 info
// structure passed to the kernel entry point. Must be called before
// RAMRange.
func SetInfoPtr(ptr uintptr) { infoData = ptr }

// RAMRange scans the multiboot2 memory map and returns the widest
// contiguous available region, used as the [ramStart, ramEnd) argument to
// pmm.Allocator.Init. If no memory map tag is present, both values are
// zero.
func RAMRange() (start, end uintptr) {
	var best MemoryMapEntry

	visitMemRegions(func(e *MemoryMapEntry) bool {
		if e.Type == MemAvailable && e.Length > best.Length {
			best = *e
		}
		return true
	})

	return uintptr(best.PhysAddress), uintptr(best.PhysAddress + best.Length)
}

type memRegionVisitor func(entry *MemoryMapEntry) bool

func visitMemRegions(visitor memRegionVisitor) {
	curPtr, size := findTagByType(tagMemoryMap)
	if size == 0 {
		return
	}

	ptrMapHeader := (*mmapHeader)(unsafe.Pointer(curPtr))
	endPtr := curPtr + uintptr(size)
	curPtr += 8

	for curPtr != endPtr {
		entry := (*MemoryMapEntry)(unsafe.Pointer(curPtr))

		if entry.Type == 0 || entry.Type > memUnknown {
			entry.Type = MemReserved
		}

		if !visitor(entry) {
			return
		}

		curPtr += uintptr(ptrMapHeader.entrySize)
	}
}

func findTagByType(wantType tagType) (uintptr, uint32) {
	curPtr := infoData + 8
	for {
		hdr := (*tagHeader)(unsafe.Pointer(curPtr))
		if hdr.tagType == tagSectionEnd {
			return 0, 0
		}
		if hdr.tagType == wantType {
			return curPtr + 8, hdr.size - 8
		}
		curPtr += uintptr(int32(hdr.size+7) &^ 7)
	}
}
