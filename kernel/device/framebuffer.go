package device

import (
	"unsafe"

	"github.com/upvalue/otium-sub001/kernel/mem"
	"github.com/upvalue/otium-sub001/kernel/mem/knownmem"
	"github.com/upvalue/otium-sub001/kernel/mem/pmm"
)

// Framebuffer is the GraphicsBackend used by the embedded platform backend.
// Its backing memory is leased from the known-memory table under
// knownmem.Framebuffer so its physical address stays stable for the
// kernel's lifetime even as the holding process changes.
type Framebuffer struct {
	known *knownmem.Table
	owner pmm.OwnerID

	width, height uint32
	fb            []uint32
}

// NewFramebuffer constructs a Framebuffer backed by the given known-memory
// table; Init performs the actual lease.
func NewFramebuffer(known *knownmem.Table, owner pmm.OwnerID, width, height uint32) *Framebuffer {
	return &Framebuffer{known: known, owner: owner, width: width, height: height}
}

// Init locks the framebuffer region for owner and overlays it as a
// []uint32 pixel buffer. Returns false if the region is already held by a
// different owner or the requested size exceeds what was first committed.
func (f *Framebuffer) Init() bool {
	pixels := uint64(f.width) * uint64(f.height)
	bytes := pixels * uint64(unsafe.Sizeof(uint32(0)))
	pages := int((mem.Size(bytes) + mem.PageSize - 1) / mem.PageSize)

	addr, ok := f.known.Lock(knownmem.Framebuffer, pages, f.owner)
	if !ok {
		return false
	}

	f.fb = unsafe.Slice((*uint32)(unsafe.Pointer(addr.Raw())), pixels)
	return true
}

// Framebuffer returns the raw pixel buffer, one uint32 (0xAARRGGBB) per
// pixel, row-major.
func (f *Framebuffer) Framebuffer() []uint32 { return f.fb }

func (f *Framebuffer) Width() uint32  { return f.width }
func (f *Framebuffer) Height() uint32 { return f.height }

// Flush is a no-op: the overlay already writes directly into the leased
// physical pages, there is no separate presentation step on this backend.
func (f *Framebuffer) Flush() {}

// Clear fills the rectangular region [x, y, x+w, y+h) with a single
// 32-bit colour value, clipping to the framebuffer bounds.
func (f *Framebuffer) Clear(x, y, w, h uint32, color uint32) {
	if x >= f.width || y >= f.height {
		return
	}
	if x+w > f.width {
		w = f.width - x
	}
	if y+h > f.height {
		h = f.height - y
	}

	for row := uint32(0); row < h; row++ {
		rowOffset := (y + row) * f.width
		for col := x; col < x+w; col++ {
			f.fb[rowOffset+col] = color
		}
	}
}
