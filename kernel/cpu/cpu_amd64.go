// Package cpu declares the handful of amd64 primitives the embedded
// platform backend needs and cannot express in Go: interrupt masking,
// halting the core, and swapping the active page table directory. Each
// function here has no Go body; its implementation lives in assembly
// linked alongside the embedded build.
package cpu

// EnableInterrupts enables interrupt handling.
func EnableInterrupts()

// DisableInterrupts disables interrupt handling. trapexec.haltFn calls this
// before parking the core on a panic.
func DisableInterrupts()

// Halt stops instruction execution until the next interrupt. trapexec.haltFn
// loops on this after disabling interrupts.
func Halt()

// FlushTLBEntry flushes a TLB entry for a particular virtual address. No
// call site exists yet: nothing in this kernel remaps a page once its
// owning process is running, so a targeted invalidation is never needed.
func FlushTLBEntry(virtAddr uintptr)

// SwitchPDT sets the root page table directory to point to the specified
// physical address and flushes the TLB. trapexec.switcher calls this when
// the incoming process has a page table different from the active one.
func SwitchPDT(pdtPhysAddr uintptr)

// ActivePDT returns the physical address of the currently active page
// table, used by trapexec.switcher to avoid a redundant SwitchPDT.
func ActivePDT() uintptr
