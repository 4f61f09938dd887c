package proc

import (
	"unsafe"

	"github.com/upvalue/otium-sub001/kernel"
	"github.com/upvalue/otium-sub001/kernel/mem"
	"github.com/upvalue/otium-sub001/kernel/mem/knownmem"
	"github.com/upvalue/otium-sub001/kernel/mem/pmm"
	"github.com/upvalue/otium-sub001/kernel/mem/vmm"
)

// ErrorCode is the value carried in a Response's Error field. The ipc
// package is the primary consumer, but Table.Exit must be able to produce
// one directly when it resolves a dangling blocked sender, so the enum
// lives here rather than risking an import cycle between proc and ipc.
type ErrorCode = uint32

// Response error codes.
const (
	ErrNone               ErrorCode = 0
	ErrInvariantViolation ErrorCode = 1
	ErrPIDNotFound        ErrorCode = 2
	ErrOverflow           ErrorCode = 3
	ErrSelfSend           ErrorCode = 4

	// ErrTargetGone is returned to a sender whose target exited while the
	// sender was blocked awaiting a reply.
	ErrTargetGone ErrorCode = 5
)

// Switcher performs the actual control transfer between two process
// contexts and is responsible for calling Table.SetCurrent at the correct
// moment. It is installed once by whichever platform backend is active:
// the embedded backend wires it to a register-level save/restore through
// the stack pointers held in each descriptor, the hosted backend wires it
// to a fiber swap.
type Switcher func(tbl *Table, out, in *Process)

var (
	errOverflow = &kernel.Error{Module: "proc", Message: "reached process limit"}

	// panicFn is mocked by tests.
	panicFn = kernel.Panic
)

// Table is the fixed-size process table and cooperative scheduler. Its
// zero value must be passed through Init before use.
type Table struct {
	slots    []Process
	current  int
	idleSlot int
	nextPID  PID

	alloc    *pmm.Allocator
	known    *knownmem.Table
	switcher Switcher

	// buildPageTables is set by EnableAddressSpaces. Only the embedded
	// backend turns it on: the hosted backend has no MMU to program.
	buildPageTables bool
}

// EnableAddressSpaces turns on per-process page table construction in
// Create. The embedded backend calls this once during wiring; the hosted
// backend never does.
func (t *Table) EnableAddressSpaces() { t.buildPageTables = true }

// Init sizes the table to capacity slots, reserves slot 0 for the
// permanently-runnable idle process and wires the allocator and
// known-memory table used by Exit. Init is not idempotent: it is meant to
// be called exactly once during kernel_common.
func (t *Table) Init(capacity int, alloc *pmm.Allocator, known *knownmem.Table) {
	t.slots = make([]Process, capacity)
	t.alloc = alloc
	t.known = known
	t.nextPID = 1

	idle := &t.slots[0]
	idle.Slot = 0
	idle.State = Runnable
	idle.KernelMode = true
	copy(idle.Name[:], "idle")

	t.idleSlot = 0
	t.current = 0
}

// SetSwitcher installs the platform-specific context-transfer routine.
func (t *Table) SetSwitcher(s Switcher) { t.switcher = s }

// Current returns the descriptor of the process presently executing.
func (t *Table) Current() *Process { return &t.slots[t.current] }

// SetCurrent is called by the active Switcher once control has actually
// been transferred to the process occupying slot.
func (t *Table) SetCurrent(slot int) { t.current = slot }

// Idle returns the idle process descriptor (slot 0).
func (t *Table) Idle() *Process { return &t.slots[t.idleSlot] }

// Slot returns the descriptor occupying the given slot index.
func (t *Table) Slot(i int) *Process { return &t.slots[i] }

// Len returns the table's fixed capacity.
func (t *Table) Len() int { return len(t.slots) }

// Create finds the first UNUSED slot at index > 0, zeroes it, assigns a
// fresh monotonically-increasing PID, copies up to MaxNameLen bytes of
// name and sets the process RUNNABLE with entry as its user program
// counter. If args is non-nil it is copied into a freshly allocated arg
// page. When EnableAddressSpaces has been called, Create additionally
// builds a page table for the new process: every RAM page is identity-
// mapped and the arg and comm pages are mapped at mem.UserBase. Running
// out of slots is fatal: process-table overflow is not a recoverable
// condition.
func (t *Table) Create(name string, entry uintptr, args []byte, kernelMode bool) *Process {
	var p *Process
	for i := 1; i < len(t.slots); i++ {
		if t.slots[i].State == Unused {
			p = &t.slots[i]
			p.Slot = i
			break
		}
	}

	if p == nil {
		panicFn(errOverflow)
		return nil
	}

	zeroProcess(p)

	n := len(name)
	if n > MaxNameLen {
		n = MaxNameLen
	}
	copy(p.Name[:], name[:n])

	p.PID = t.nextPID
	t.nextPID++

	p.State = Runnable
	p.UserPC = entry
	p.KernelMode = kernelMode
	p.HeapNext = 0

	if args != nil {
		p.ArgPage = t.alloc.Allocate(p.Owner(), 1)
		writeArgPage(p.ArgPage, args)
	}

	p.CommPage = t.alloc.Allocate(p.Owner(), 1)

	if t.buildPageTables {
		userPages := make([]pmm.PageAddress, 0, 2)
		if !p.ArgPage.IsNull() {
			userPages = append(userPages, p.ArgPage)
		}
		userPages = append(userPages, p.CommPage)

		ramStart, ramEnd := t.alloc.RAMRange()
		root := vmm.BuildAddressSpace(t.alloc, p.Owner(), ramStart, ramEnd, userPages)
		p.PageTable = root.Raw()
	}

	initStack(p, entry)

	t.alloc.NoteProcessCreated()

	return p
}

func zeroProcess(p *Process) {
	p.Name = [MaxNameLen + 1]byte{}
	p.PID = 0
	p.State = Unused
	p.StackPointer = 0
	p.UserPC = 0
	p.PageTable = 0
	p.ArgPage = 0
	p.CommPage = 0
	p.HeapNext = 0
	p.Pending = Message{}
	p.HasPending = false
	p.PendingReply = Response{}
	p.BlockedSender = 0
	p.Started = false
	p.KernelMode = false
}

// initStack writes the savedRegisterWords zero words (the register-save
// area the context-switch primitive pops) under a return
// address word equal to entry, mirroring the stack shape the embedded
// backend's register-level switch_to expects. The hosted backend doesn't
// walk this memory but StackPointer is still populated for uniformity and
// so tests can check the invariant independent of which backend runs.
func initStack(p *Process, entry uintptr) {
	top := p.StackTop()
	sp := top

	wordSize := unsafe.Sizeof(uintptr(0))

	sp -= wordSize
	writeWord(sp, entry)

	for i := 0; i < savedRegisterWords; i++ {
		sp -= wordSize
		writeWord(sp, 0)
	}

	p.StackPointer = sp
}

func writeWord(addr uintptr, v uintptr) {
	*(*uintptr)(unsafe.Pointer(addr)) = v
}

func writeArgPage(addr pmm.PageAddress, args []byte) {
	n := len(args)
	if mem.Size(n) > mem.PageSize {
		n = int(mem.PageSize)
	}
	dst := unsafe.Slice((*byte)(unsafe.Pointer(addr.Raw())), n)
	copy(dst, args[:n])
}

// NextRunnable starts scanning one slot past current (wrapping around) and
// returns the first process in state RUNNABLE with a slot index greater
// than zero. If none is found, returns the idle process.
func (t *Table) NextRunnable() *Process {
	n := len(t.slots)
	for i := 1; i < n; i++ {
		idx := (t.current + i) % n
		if idx == 0 {
			continue
		}
		if t.slots[idx].State == Runnable {
			return &t.slots[idx]
		}
	}
	return t.Idle()
}

// SwitchTo transfers control to target via the installed Switcher. It is a
// no-op if target is already current.
func (t *Table) SwitchTo(target *Process) {
	out := t.Current()
	if out == target {
		return
	}
	t.switcher(t, out, target)
}

// Yield relinquishes control to the next runnable process.
func (t *Table) Yield() { t.SwitchTo(t.NextRunnable()) }

// AllocPage implements the alloc_page() syscall: allocates one physical
// page tagged to p's owner and, when address spaces are enabled, maps it
// into p's address space at the next heap virtual address, bumping
// p.HeapNext by one page. Returns the address the caller should treat as
// its own page: a virtual address when address spaces are built, the
// physical address otherwise.
func (t *Table) AllocPage(p *Process) uintptr {
	page := t.alloc.Allocate(p.Owner(), 1)

	if !t.buildPageTables || p.PageTable == 0 {
		return page.Raw()
	}

	vaddr := mem.HeapBase + p.HeapNext
	vmm.Map(t.alloc, pmm.PageAddress(p.PageTable), vaddr, page, vmm.UserImageRWX, p.Owner())
	p.HeapNext += uintptr(mem.PageSize)

	return vaddr
}

// Terminate marks p TERMINATED without reclaiming any of its resources.
// It is the state transition the exit() syscall performs; the caller is
// expected to yield immediately afterward. Reclaiming p's pages, known-
// memory leases and blocked sender is the separate process_exit step
// performed by Exit.
func (t *Table) Terminate(p *Process) { p.State = Terminated }

// Exit tears down proc: releases its pages through the allocator, its
// known-memory leases, resolves any sender left blocked on it with
// ErrTargetGone, zeroes the descriptor and marks it UNUSED.
func (t *Table) Exit(p *Process) {
	owner := p.Owner()

	t.alloc.FreeAllOwnedBy(owner)
	t.known.ReleaseAllHeldBy(owner)

	if slot, ok := p.BlockedSenderSlot(); ok {
		sender := &t.slots[slot]
		sender.PendingReply = Response{Error: ErrTargetGone}
		sender.State = Runnable
		p.ClearBlockedSender()
	}

	slot := p.Slot
	zeroProcess(p)
	p.Slot = slot
	p.State = Unused
}

// Lookup returns the PID of the first active process with the given name,
// or NoPID if none matches.
func (t *Table) Lookup(name string) PID {
	for i := 1; i < len(t.slots); i++ {
		p := &t.slots[i]
		if p.State == Unused {
			continue
		}
		if p.NameString() == name {
			return p.PID
		}
	}
	return NoPID
}

// SlotForPID resolves a PID to its live process descriptor.
func (t *Table) SlotForPID(pid PID) (*Process, bool) {
	if pid == NoPID {
		return nil, false
	}
	for i := range t.slots {
		p := &t.slots[i]
		if p.State != Unused && p.PID == pid {
			return p, true
		}
	}
	return nil, false
}
