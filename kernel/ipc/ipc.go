// Package ipc implements the synchronous rendezvous IPC engine:
// send / receive / reply with sender blocking and optional comm-page
// transfer.
package ipc

import (
	"github.com/upvalue/otium-sub001/kernel/errors"
	"github.com/upvalue/otium-sub001/kernel/kfmt/trace"
	"github.com/upvalue/otium-sub001/kernel/mem"
	"github.com/upvalue/otium-sub001/kernel/proc"
)

// Flags affecting the comm page, carried in the low 8 bits of the packed
// method-and-flags word.
const (
	// SendCommData: sender's comm page is copied into receiver's comm page
	// at the moment of send.
	SendCommData uint8 = 1 << 0
	// RecvCommData: receiver's comm page is copied back into sender's comm
	// page at reply time.
	RecvCommData uint8 = 1 << 1
)

// Re-exported error codes; see proc.ErrorCode for why these live in proc.
const (
	ErrNone        = proc.ErrNone
	ErrPIDNotFound = proc.ErrPIDNotFound
	ErrOverflow    = proc.ErrOverflow
	ErrSelfSend    = proc.ErrSelfSend
	ErrTargetGone  = proc.ErrTargetGone
)

// flagsMask covers the low 8 bits of the packed method-and-flags word.
const flagsMask = 0xFF

// PackMethodFlags packs method into the high 24 bits and flags into the low
// 8 bits of a single word, warning if method overlaps the flags byte.
func PackMethodFlags(method uint32, flags uint8) uint32 {
	if method&flagsMask != 0 {
		trace.Printf(trace.IPC, trace.Soft, "ipc: %s (method=%#x)\n", errors.ErrMethodOverflowsFlags, method)
	}
	return (method << 8) | uint32(flags)
}

// UnpackMethodFlags is the inverse of PackMethodFlags.
func UnpackMethodFlags(word uint32) (method uint32, flags uint8) {
	return word >> 8, uint8(word & flagsMask)
}

// Engine drives send/recv/reply over a process table. It holds no state of
// its own: every piece of IPC state (pending message, pending response,
// blocked sender, comm page) lives on the Process descriptors themselves,
// per the arena+index pattern used throughout the core.
type Engine struct {
	Table *proc.Table
}

// Send implements the sender side of a rendezvous. If targetPID does not
// resolve to a live process, returns a response with ErrPIDNotFound
// without blocking the caller or touching any other process state.
func (e *Engine) Send(targetPID proc.PID, flags uint8, method uint32, a0, a1, a2 uint64) proc.Response {
	current := e.Table.Current()

	target, ok := e.Table.SlotForPID(targetPID)
	if !ok {
		return proc.Response{Error: proc.ErrPIDNotFound}
	}

	if target == current {
		trace.Printf(trace.IPC, trace.Soft, "ipc: self-send by pid=%d\n", current.PID)
		return proc.Response{Error: proc.ErrSelfSend}
	}

	if target.HasPending {
		trace.Printf(trace.IPC, trace.Soft, "ipc: send to pid=%d overflows pending slot\n", target.PID)
		return proc.Response{Error: proc.ErrOverflow}
	}

	if flags&SendCommData != 0 && !current.CommPage.IsNull() && !target.CommPage.IsNull() {
		mem.Memcopy(target.CommPage.Raw(), current.CommPage.Raw(), mem.PageSize)
	}

	target.Pending = proc.Message{
		SenderPID: current.PID,
		Method:    method,
		Flags:     flags,
		A0:        a0,
		A1:        a1,
		A2:        a2,
	}
	target.HasPending = true
	target.SetBlockedSender(current.Slot)

	trace.Printf(trace.IPC, trace.Loud, "ipc: send pid=%d -> pid=%d method=%d\n", current.PID, target.PID, method)

	if target.State == proc.IPCWait {
		target.State = proc.Runnable
		e.Table.SwitchTo(target)
	} else {
		e.Table.Yield()
	}

	return current.PendingReply
}

// Recv implements the receiver side. If a message already arrived while
// this process was running, consumes and returns it immediately; otherwise
// blocks in IPC_WAIT until one does.
func (e *Engine) Recv() proc.Message {
	current := e.Table.Current()

	if !current.HasPending {
		current.State = proc.IPCWait
		e.Table.Yield()
		current = e.Table.Current()
	}

	// Pending is left in place (only HasPending is cleared): Reply needs
	// the just-received message's flags to decide whether to copy the
	// comm page back, and the next Send will overwrite it regardless.
	msg := current.Pending
	current.HasPending = false

	return msg
}

// Reply implements the receiver-replies-to-sender half of the rendezvous.
// Requires the current process to have a recorded blocked sender; if it
// does not, this is a soft-asserted no-op.
func (e *Engine) Reply(response proc.Response) {
	current := e.Table.Current()

	slot, ok := current.BlockedSenderSlot()
	if !ok {
		trace.Printf(trace.IPC, trace.Soft, "ipc: %s (pid=%d)\n", errors.ErrReplyWithoutSender, current.PID)
		return
	}

	sender := e.Table.Slot(slot)

	if current.Pending.Flags&RecvCommData != 0 && !current.CommPage.IsNull() && !sender.CommPage.IsNull() {
		mem.Memcopy(sender.CommPage.Raw(), current.CommPage.Raw(), mem.PageSize)
	}

	sender.PendingReply = response
	current.ClearBlockedSender()

	trace.Printf(trace.IPC, trace.Loud, "ipc: reply pid=%d -> pid=%d error=%d\n", current.PID, sender.PID, response.Error)

	e.Table.SwitchTo(sender)
}
