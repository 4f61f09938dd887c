// Package device models the graphics and keyboard capability sets as
// tagged variants: each is a small closed interface selected once at
// construction time, never extended by open registration.
package device

// GraphicsBackend is the capability set a graphics device exposes.
// Implementations are selected once, at construction, by
// hal.NewGraphics.
type GraphicsBackend interface {
	Init() bool
	Framebuffer() []uint32
	Width() uint32
	Height() uint32
	Flush()
}

// KeyEvent reports a single keyboard transition.
type KeyEvent struct {
	Code     uint16
	Flags    uint8
	Reserved uint8
}

// Key event flags, carried in KeyEvent.Flags.
const (
	KeyFlagPressed uint8 = 1 << 0
	KeyFlagShift   uint8 = 1 << 1
	KeyFlagCtrl    uint8 = 1 << 2
	KeyFlagAlt     uint8 = 1 << 3
)

// KeyboardBackend is the capability set a keyboard device exposes.
type KeyboardBackend interface {
	Init() bool
	PollKey() (KeyEvent, bool)
}

// NoneGraphics is the null graphics backend: every operation succeeds
// trivially and reports an empty surface. Used when graphics support is
// compiled out.
type NoneGraphics struct{}

func (NoneGraphics) Init() bool           { return true }
func (NoneGraphics) Framebuffer() []uint32 { return nil }
func (NoneGraphics) Width() uint32        { return 0 }
func (NoneGraphics) Height() uint32       { return 0 }
func (NoneGraphics) Flush()               {}

// NoneKeyboard is the null keyboard backend: init succeeds, no event is
// ever available.
type NoneKeyboard struct{}

func (NoneKeyboard) Init() bool                    { return true }
func (NoneKeyboard) PollKey() (KeyEvent, bool) { return KeyEvent{}, false }
