// Package proc implements the process table and cooperative scheduler:
// a fixed-size array of process descriptors, PID assignment, round-robin
// scheduling and context-switch plumbing shared by both platform backends.
package proc

import (
	"unsafe"

	"github.com/upvalue/otium-sub001/kernel/mem/pmm"
)

// State is one of the four lifecycle states a process slot can be in.
type State int

const (
	Unused State = iota
	Runnable
	IPCWait
	Terminated
)

func (s State) String() string {
	switch s {
	case Unused:
		return "UNUSED"
	case Runnable:
		return "RUNNABLE"
	case IPCWait:
		return "IPC_WAIT"
	case Terminated:
		return "TERMINATED"
	default:
		return "?"
	}
}

// PID is a monotonically increasing process identifier; unlike a slot index
// it is never reused after the owning process exits.
type PID uint64

// NoPID is returned by Lookup when no process matches.
const NoPID PID = 0

// MaxNameLen bounds the number of bytes copied from a caller-supplied name.
const MaxNameLen = 31

// KernelStackSize is the size, in bytes, of each process's embedded kernel
// stack: large enough for the twelve callee-saved register words the
// context-switch primitive expects plus headroom for nested trap frames.
const KernelStackSize = 8192

// savedRegisterWords is the number of zero words written under the return
// address when a process is first created: the register-save area the
// switch_to primitive pops on first switch-in. On amd64 that area is six
// callee-saved registers (BX, BP, R12-R15) plus six words of padding; the
// count of twelve matches s0-s11 in the RISC-V ABI this core was ported
// from.
const savedRegisterWords = 12

// Message is an incoming IPC message.
type Message struct {
	SenderPID PID
	Method    uint32
	Flags     uint8
	A0, A1, A2 uint64
}

// Response is the reply to a Message.
type Response struct {
	Error  uint32
	V0, V1, V2 uint64
}

// Process is a fixed-size process descriptor. It is never individually
// heap-allocated: every Process lives inside Table.slots.
type Process struct {
	Name  [MaxNameLen + 1]byte
	Slot  int
	PID   PID
	State State

	StackPointer uintptr
	stack        [KernelStackSize]byte

	UserPC    uintptr
	PageTable uintptr

	ArgPage  pmm.PageAddress
	CommPage pmm.PageAddress

	HeapNext uintptr

	Pending        Message
	HasPending     bool
	PendingReply   Response
	BlockedSender  int // slot index + 1, 0 means "none"

	// Started is set only by the hosted fiber backend, when Spawn starts
	// this slot's fiber; nothing in the kernel reads it.
	Started bool

	KernelMode bool
}

// NameString returns the process name as a Go string, trimmed at the first
// NUL byte.
func (p *Process) NameString() string {
	for i, b := range p.Name {
		if b == 0 {
			return string(p.Name[:i])
		}
	}
	return string(p.Name[:])
}

// BlockedSenderSlot decodes BlockedSender into a slot index; ok is false
// when no sender is blocked on this process.
func (p *Process) BlockedSenderSlot() (int, bool) {
	if p.BlockedSender == 0 {
		return 0, false
	}
	return p.BlockedSender - 1, true
}

// SetBlockedSender records that the process occupying slot is blocked
// awaiting a reply from p.
func (p *Process) SetBlockedSender(slot int) { p.BlockedSender = slot + 1 }

// ClearBlockedSender clears any recorded blocked sender.
func (p *Process) ClearBlockedSender() { p.BlockedSender = 0 }

// Owner returns the pmm.OwnerID pages allocated to this process are tagged
// with.
func (p *Process) Owner() pmm.OwnerID { return pmm.OwnerForSlot(p.Slot) }

// StackTop returns the address one past the end of the process's kernel
// stack -- the initial value switch-in logic bases its pointer arithmetic
// on.
func (p *Process) StackTop() uintptr {
	return uintptr(unsafe.Pointer(&p.stack[0])) + uintptr(len(p.stack))
}
