// Package hostcon implements the hosted backend's console: rather than a
// memory-mapped device it is the host process's own stdin/stdout, wrapped
// behind the same byte-oriented Init/WriteByte/ReadByte shape as uart.Console
// so the two backends are interchangeable from platform's point of view.
package hostcon

import (
	"bufio"
	"io"
	"os"
)

// Console delegates byte I/O to an underlying reader/writer pair, defaulting
// to the host process's stdin/stdout. Tests construct one over an in-memory
// buffer instead.
type Console struct {
	w io.Writer
	r *bufio.Reader
}

// Init wires Console to the host's standard streams.
func (c *Console) Init() {
	c.w = os.Stdout
	c.r = bufio.NewReader(os.Stdin)
}

// InitWith wires Console to the given reader/writer pair, for tests and for
// any embedding that wants the hosted backend to talk to something other
// than the process's own stdio.
func (c *Console) InitWith(r io.Reader, w io.Writer) {
	c.w = w
	c.r = bufio.NewReader(r)
}

// WriteByte writes b to the underlying writer. A write error is not
// recoverable here: the hosted backend has nowhere else to report it, so it
// is silently dropped, matching the embedded UART's fire-and-forget style.
func (c *Console) WriteByte(b byte) {
	c.w.Write([]byte{b})
}

// ReadByte reports whether a byte is immediately available and, if so,
// consumes and returns it. On the hosted backend this is a best-effort,
// non-blocking-in-spirit read: a real terminal in raw mode returns
// immediately; a buffered pipe in a test returns io.EOF once drained.
func (c *Console) ReadByte() (byte, bool) {
	b, err := c.r.ReadByte()
	if err != nil {
		return 0, false
	}
	return b, true
}
