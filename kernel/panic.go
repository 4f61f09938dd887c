package kernel

import "github.com/upvalue/otium-sub001/kernel/kfmt"

var (
	// haltFn is installed by whichever platform backend is active:
	// trapexec wires it to a cpu.Halt loop, fiberexec wires it to a
	// routine that parks the calling goroutine forever. It is mocked by
	// tests.
	haltFn = func() {
		for {
		}
	}

	errRuntimePanic = &Error{Module: "rt", Message: "unknown cause"}
)

// SetHaltFunc installs the platform-specific routine invoked after Panic has
// printed its diagnostic. Called once by the active platform backend during
// kernel_common.
func SetHaltFunc(fn func()) { haltFn = fn }

// Panic outputs the supplied error (if not nil) to the console and halts.
// Calls to Panic never return in practice: out-of-memory, process-table
// overflow, and unaligned map addresses are all deliberately unrecoverable
// conditions in this kernel.
func Panic(e interface{}) {
	var err *Error

	switch t := e.(type) {
	case *Error:
		err = t
	case string:
		errRuntimePanic.Message = t
		err = errRuntimePanic
	case error:
		errRuntimePanic.Message = t.Error()
		err = errRuntimePanic
	}

	kfmt.Printf("\n-----------------------------------\n")
	if err != nil {
		kfmt.Printf("[%s] unrecoverable error: %s\n", err.Module, err.Message)
	}
	kfmt.Printf("*** kernel panic: system halted ***")
	kfmt.Printf("\n-----------------------------------\n")

	haltFn()
}
