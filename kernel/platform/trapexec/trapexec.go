// Package trapexec is the embedded platform backend: process switches are
// register-level saves/restores performed by hand-written assembly, and the
// console is a single memory-mapped UART.
package trapexec

import (
	"github.com/upvalue/otium-sub001/kernel"
	"github.com/upvalue/otium-sub001/kernel/cpu"
	"github.com/upvalue/otium-sub001/kernel/driver/uart"
	"github.com/upvalue/otium-sub001/kernel/proc"
)

// calleeSavedWords is the number of stack words switchTo's assembly moves
// on every switch: six real callee-saved registers (BX, BP, R12-R15) plus
// six words of padding, kept so the footprint matches proc's
// architecture-agnostic stack-shape constant exactly. proc cannot import
// this constant directly without an import cycle, so the two are kept in
// sync by hand.
const calleeSavedWords = 12

// switchTo saves the current stack pointer to *save, switches the hardware
// stack pointer to resume, and returns into whatever is on top of that
// stack -- either a previously-saved context, or, for a process that has
// never run, the entry point word proc.Create wrote there.
//
//go:noescape
func switchTo(save *uintptr, resume uintptr)

// Backend implements platform.Backend over a register-level context switch.
type Backend struct {
	tbl     *proc.Table
	console uart.Console
}

// New constructs a Backend driving tbl and a UART console mapped at
// uartBase. It installs itself as tbl's Switcher and turns on per-process
// address spaces: the embedded target has an MMU to program, unlike the
// hosted backend.
func New(tbl *proc.Table, uartBase uintptr) *Backend {
	b := &Backend{tbl: tbl}
	b.console.Init(uartBase)
	tbl.SetSwitcher(b.switcher)
	tbl.EnableAddressSpaces()
	kernel.SetHaltFunc(haltFn)
	return b
}

func (b *Backend) switcher(tbl *proc.Table, out, in *proc.Process) {
	tbl.SetCurrent(in.Slot)

	if in.PageTable != 0 && in.PageTable != cpu.ActivePDT() {
		cpu.SwitchPDT(in.PageTable)
	}

	switchTo(&out.StackPointer, in.StackPointer)
}

// Yield relinquishes control to the next runnable process.
func (b *Backend) Yield() { b.tbl.Yield() }

// SwitchTo transfers control directly to p.
func (b *Backend) SwitchTo(p *proc.Process) { b.tbl.SwitchTo(p) }

// Putchar writes a single byte to the UART.
func (b *Backend) Putchar(c byte) { b.console.WriteByte(c) }

// Getchar polls the UART for a waiting byte.
func (b *Backend) Getchar() (byte, bool) { return b.console.ReadByte() }

// Current returns the process presently executing.
func (b *Backend) Current() *proc.Process { return b.tbl.Current() }

// Exit implements the exit() syscall: marks the current process TERMINATED,
// then immediately performs process_exit (Table.Exit) to reclaim its
// resources, and yields away from it. The two steps happen back to back
// here because nothing else ever gets to observe a process between them --
// there is no multi-process window in a single-core cooperative scheduler
// where a TERMINATED-but-not-yet-reaped process could be scheduled.
func (b *Backend) Exit() {
	p := b.tbl.Current()
	b.tbl.Terminate(p)
	b.tbl.Exit(p)
	b.tbl.SwitchTo(b.tbl.NextRunnable())
}

// Shutdown implements the shutdown() syscall: terminates and reaps every
// live process, then halts, since there is nothing left to schedule once
// it returns.
func (b *Backend) Shutdown() {
	for i := 1; i < b.tbl.Len(); i++ {
		p := b.tbl.Slot(i)
		if p.State == proc.Unused {
			continue
		}
		b.tbl.Terminate(p)
		b.tbl.Exit(p)
	}
	haltFn()
}

// haltFn is installed as the kernel's panic sink: disable interrupts and
// park the CPU, since there is no host process to exit from.
func haltFn() {
	cpu.DisableInterrupts()
	for {
		cpu.Halt()
	}
}
