// Package fiberexec is the hosted platform backend: each process is a Go
// goroutine parked on its own buffered channel "baton", so a context switch
// is just handing the baton to the target and waiting to be handed it back.
// Exactly one goroutine ever holds its baton at a time, so the kernel's
// single-threaded cooperative model holds even though the host
// process is multi-threaded underneath.
package fiberexec

import (
	"github.com/upvalue/otium-sub001/kernel"
	"github.com/upvalue/otium-sub001/kernel/driver/hostcon"
	"github.com/upvalue/otium-sub001/kernel/proc"
)

// Entry is the body a hosted process runs. It receives the process
// descriptor it was created for so it can call back into the Backend (for
// IPC, exit, and so on) and is expected to run until it chooses to exit.
type Entry func(p *proc.Process)

// Backend implements platform.Backend over goroutine/channel fibers.
type Backend struct {
	tbl     *proc.Table
	console hostcon.Console

	batons []chan struct{}
}

// New constructs a Backend driving tbl, sized for tbl's capacity, and wires
// the hosted console to the host process's own stdio. It installs itself
// as tbl's Switcher.
func New(tbl *proc.Table) *Backend {
	b := &Backend{tbl: tbl, batons: make([]chan struct{}, tbl.Len())}
	for i := range b.batons {
		b.batons[i] = make(chan struct{}, 1)
	}
	b.console.Init()

	tbl.SetSwitcher(b.switcher)
	kernel.SetHaltFunc(b.haltFn)

	return b
}

func (b *Backend) switcher(tbl *proc.Table, out, in *proc.Process) {
	tbl.SetCurrent(in.Slot)
	b.batons[in.Slot] <- struct{}{}
	<-b.batons[out.Slot]
}

// Spawn starts entry as p's fiber, parked immediately on p's baton: it will
// not actually run until this Backend switches to p for the first time.
func (b *Backend) Spawn(p *proc.Process, entry Entry) {
	p.Started = true
	go func() {
		<-b.batons[p.Slot]
		entry(p)
	}()
}

// Yield relinquishes control to the next runnable process.
func (b *Backend) Yield() { b.tbl.Yield() }

// SwitchTo transfers control directly to p.
func (b *Backend) SwitchTo(p *proc.Process) { b.tbl.SwitchTo(p) }

// Putchar writes a single byte to the host console.
func (b *Backend) Putchar(c byte) { b.console.WriteByte(c) }

// Getchar polls the host console for a waiting byte.
func (b *Backend) Getchar() (byte, bool) { return b.console.ReadByte() }

// Current returns the process presently executing.
func (b *Backend) Current() *proc.Process { return b.tbl.Current() }

// Exit implements the exit() syscall and tears down the current process's
// fiber: marks it TERMINATED, then immediately performs process_exit
// (Table.Exit) to reclaim its resources. Unlike SwitchTo it does not wait
// to be handed the baton back: the calling goroutine is expected to return
// immediately after Exit, so there would be nothing left to resume it. The
// caller's entry function must treat Exit as its last action.
func (b *Backend) Exit() {
	p := b.tbl.Current()
	b.tbl.Terminate(p)
	b.tbl.Exit(p)

	next := b.tbl.NextRunnable()
	b.tbl.SetCurrent(next.Slot)
	b.batons[next.Slot] <- struct{}{}
}

// Shutdown implements the shutdown() syscall: terminates and reaps every
// live process. Unlike Exit it does not hand the baton to anything else --
// the caller (the host program's own goroutine) is expected to return from
// main immediately afterward, since there is no process left to resume.
func (b *Backend) Shutdown() {
	for i := 1; i < b.tbl.Len(); i++ {
		p := b.tbl.Slot(i)
		if p.State == proc.Unused {
			continue
		}
		b.tbl.Terminate(p)
		b.tbl.Exit(p)
	}
}

// haltFn is installed as the kernel's panic sink on the hosted backend:
// there is no hardware to halt, so a kernel panic simply parks forever
// rather than calling os.Exit, leaving the host process's test harness in
// control of shutdown.
func (b *Backend) haltFn() {
	select {}
}
