// Package uart drives a single byte-oriented memory-mapped UART: one data
// register and one status register at a fixed physical address, read and
// written through unsafe.Pointer the same way a framebuffer overlays a
// pixel slice onto its physical address.
package uart

import "unsafe"

// statusTxReady is the bit in the status register that tells the driver
// the transmit holding register is free.
const statusTxReady = 1 << 5

// statusRxReady is the bit that tells the driver a received byte is
// waiting in the data register.
const statusRxReady = 1 << 0

// Console is a single memory-mapped UART device. Its zero value is not
// usable: call Init with the base address the platform backend maps it
// at.
type Console struct {
	dataReg   *byte
	statusReg *byte
}

// Init overlays Console onto the UART registers at base: base+0 is the
// data register, base+1 the status register.
func (c *Console) Init(base uintptr) {
	c.dataReg = (*byte)(unsafe.Pointer(base))
	c.statusReg = (*byte)(unsafe.Pointer(base + 1))
}

// WriteByte blocks until the transmit holding register is free and then
// writes b. It never fails: a UART that never becomes ready would hang the
// whole kernel, which is the correct failure mode for a console with no
// fallback.
func (c *Console) WriteByte(b byte) {
	for *c.statusReg&statusTxReady == 0 {
	}
	*c.dataReg = b
}

// ReadByte reports whether a received byte is waiting and, if so, consumes
// and returns it.
func (c *Console) ReadByte() (byte, bool) {
	if *c.statusReg&statusRxReady == 0 {
		return 0, false
	}
	return *c.dataReg, true
}
