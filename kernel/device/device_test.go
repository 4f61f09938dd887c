package device

import (
	"testing"
	"unsafe"

	"github.com/upvalue/otium-sub001/kernel/mem"
	"github.com/upvalue/otium-sub001/kernel/mem/knownmem"
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

func newTestKnownmem(t *testing.T, pageCount int) *knownmem.Table {
	t.Helper()
	var tbl knownmem.Table
	tbl.Init(newTestAllocator(t, pageCount))
	return &tbl
}

func TestNoneGraphicsIsTriviallySatisfiable(t *testing.T) {
	var g NoneGraphics
	if !g.Init() {
		t.Fatalf("expected NoneGraphics.Init to succeed")
	}
	if g.Framebuffer() != nil {
		t.Fatalf("expected NoneGraphics to expose no framebuffer")
	}
	if g.Width() != 0 || g.Height() != 0 {
		t.Fatalf("expected NoneGraphics to report a zero-sized surface")
	}
	g.Flush()
}

func TestNoneKeyboardNeverReportsAnEvent(t *testing.T) {
	var k NoneKeyboard
	if !k.Init() {
		t.Fatalf("expected NoneKeyboard.Init to succeed")
	}
	if _, ok := k.PollKey(); ok {
		t.Fatalf("expected NoneKeyboard.PollKey to never report an event")
	}
}

func TestFramebufferInitLeasesKnownMemory(t *testing.T) {
	known := newTestKnownmem(t, 64)
	owner := pmm.OwnerID(7)

	fb := NewFramebuffer(known, owner, 8, 4)
	if !fb.Init() {
		t.Fatalf("expected framebuffer lease to succeed")
	}

	if fb.Width() != 8 || fb.Height() != 4 {
		t.Fatalf("expected dimensions to be preserved")
	}
	if len(fb.Framebuffer()) != 8*4 {
		t.Fatalf("expected pixel buffer of length %d, got %d", 8*4, len(fb.Framebuffer()))
	}
	if known.HolderOf(knownmem.Framebuffer) != owner {
		t.Fatalf("expected known-memory table to record the lease holder")
	}
}

func TestFramebufferInitFailsWhenHeldByAnotherOwner(t *testing.T) {
	known := newTestKnownmem(t, 64)

	first := NewFramebuffer(known, pmm.OwnerID(7), 8, 4)
	if !first.Init() {
		t.Fatalf("expected first lease to succeed")
	}

	second := NewFramebuffer(known, pmm.OwnerID(9), 8, 4)
	if second.Init() {
		t.Fatalf("expected second lease by a different owner to fail while held")
	}
}

func TestFramebufferClearFillsRequestedRegion(t *testing.T) {
	known := newTestKnownmem(t, 64)
	fb := NewFramebuffer(known, pmm.OwnerID(1), 4, 4)
	if !fb.Init() {
		t.Fatalf("expected lease to succeed")
	}

	fb.Clear(1, 1, 2, 2, 0xFFFFFFFF)

	pixels := fb.Framebuffer()
	for y := uint32(0); y < 4; y++ {
		for x := uint32(0); x < 4; x++ {
			got := pixels[y*4+x]
			inRegion := x >= 1 && x < 3 && y >= 1 && y < 3
			if inRegion && got != 0xFFFFFFFF {
				t.Fatalf("expected pixel (%d,%d) to be filled", x, y)
			}
			if !inRegion && got != 0 {
				t.Fatalf("expected pixel (%d,%d) to remain untouched, got %x", x, y, got)
			}
		}
	}
}

func TestFramebufferClearClipsToBounds(t *testing.T) {
	known := newTestKnownmem(t, 64)
	fb := NewFramebuffer(known, pmm.OwnerID(1), 4, 4)
	if !fb.Init() {
		t.Fatalf("expected lease to succeed")
	}

	// Region extends past the right and bottom edges; must not panic or
	// write outside the buffer.
	fb.Clear(2, 2, 10, 10, 0x11111111)

	pixels := fb.Framebuffer()
	if pixels[2*4+2] != 0x11111111 {
		t.Fatalf("expected in-bounds corner of the clipped region to be filled")
	}
}
