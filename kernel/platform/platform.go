// Package platform defines the façade through which kernel_common and
// the syscall dispatcher reach the running process table without knowing
// whether they are talking to real hardware or to the hosted test harness.
// Exactly one Backend is active at a time, selected by build target.
package platform

import "github.com/upvalue/otium-sub001/kernel/proc"

// Backend is the capability set a platform implementation provides. Both
// trapexec (embedded) and fiberexec (hosted) implement it over the same
// *proc.Table.
type Backend interface {
	// Yield relinquishes control to the next runnable process.
	Yield()

	// SwitchTo transfers control directly to p.
	SwitchTo(p *proc.Process)

	// Putchar writes a single byte to the console.
	Putchar(b byte)

	// Getchar polls the console for a waiting byte.
	Getchar() (byte, bool)

	// Exit tears down the current process and hands control to the next
	// runnable process. On the embedded backend it never returns to its
	// caller; on the hosted backend it returns, and the caller's entry
	// function must end right after it.
	Exit()

	// Shutdown terminates and reaps every live process. The embedded
	// backend then halts and never returns; the hosted backend returns and
	// leaves ending the host process to its caller.
	Shutdown()

	// Current returns the process presently executing.
	Current() *proc.Process
}
