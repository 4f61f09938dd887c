// Package hal is the thin seam between boot-time platform detail and the
// portable core: it turns whatever the bootloader handed the kernel into
// the [ramStart, ramEnd) byte range the allocator needs, and constructs the
// tagged-variant device backends the rest of the kernel talks to through
// device.GraphicsBackend/device.KeyboardBackend.
package hal

import (
	"github.com/upvalue/otium-sub001/kernel/device"
	"github.com/upvalue/otium-sub001/kernel/hal/bootinfo"
	"github.com/upvalue/otium-sub001/kernel/mem/knownmem"
	"github.com/upvalue/otium-sub001/kernel/mem/pmm"
)

// RAMRange reports the usable physical memory range the boot loader
// described, for pmm.Allocator.Init. SetInfoPtr must already have been
// called with the multiboot2 info structure's address.
func RAMRange() (start, end uintptr) { return bootinfo.RAMRange() }

// SetInfoPtr records the physical address of the multiboot2 info
// structure passed to the kernel entry point.
func SetInfoPtr(ptr uintptr) { bootinfo.SetInfoPtr(ptr) }

// NewGraphics constructs the graphics backend for the embedded target: a
// framebuffer leased from known, sized width x height. If the lease fails
// (held by another owner) NoneGraphics is used instead so the kernel
// always has a usable, if blank, backend.
func NewGraphics(known *knownmem.Table, owner pmm.OwnerID, width, height uint32) device.GraphicsBackend {
	fb := device.NewFramebuffer(known, owner, width, height)
	if !fb.Init() {
		return device.NoneGraphics{}
	}
	return fb
}

// NewKeyboard constructs the keyboard backend. The embedded target has no
// real keyboard device yet, so this always returns the null backend; it
// exists as the seam a future PS/2 or virtio driver would be wired in
// through.
func NewKeyboard() device.KeyboardBackend {
	return device.NoneKeyboard{}
}
