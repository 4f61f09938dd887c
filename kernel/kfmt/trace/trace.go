// Package trace adds a structured console log format on top of
// kfmt.Printf: lines are prefixed by a category tag (MEM, PROC, IPC) and a
// level (LOUD, SOFT).
package trace

import "github.com/upvalue/otium-sub001/kernel/kfmt"

// Category identifies the subsystem emitting a trace line.
type Category string

// The three categories kernel subsystems log under.
const (
	Mem  Category = "MEM"
	Proc Category = "PROC"
	IPC  Category = "IPC"
)

// Level controls trace verbosity. Loud lines mark hot-path events (each IPC
// send and reply); Soft lines mark soft-asserted warnings (misuse that is
// reported and then ignored).
type Level int

const (
	Soft Level = iota
	Loud
)

// Enabled gates Loud output; Soft output is always emitted. Loud output is
// on by default; setting Enabled to Soft silences it.
var Enabled = Loud

func (l Level) String() string {
	if l == Loud {
		return "LOUD"
	}
	return "SOFT"
}

// Printf emits "[cat:level] " + format to kfmt.Printf, unless level is Loud
// and Loud tracing is currently disabled.
func Printf(cat Category, level Level, format string, args ...interface{}) {
	if level == Loud && Enabled != Loud {
		return
	}
	kfmt.Printf("["+string(cat)+":"+level.String()+"] "+format, args...)
}
