package serialx

import "sync/atomic"

const (
	// BootloaderBaud is the line-coding rate a host requests to ask for a
	// reboot into the bootloader ("1200-baud touch").
	BootloaderBaud = 1200

	// DoubleTapMagic is left in the last word of internal RAM for the startup
	// code, which then stays in the bootloader instead of starting the
	// application.
	DoubleTapMagic uint32 = 0x07738135

	// ResetKey must accompany every write to the reset controller.
	ResetKey uint32 = 0xA5

	resetProcessor   uint32 = 1 << 0 // PROCRST
	resetPeripherals uint32 = 1 << 2 // PERRST
	resetKeyPos             = 24
)

// ResetCommand returns the reset-controller word for a processor and
// peripheral reset.
func ResetCommand() uint32 {
	return ResetKey<<resetKeyPos | resetProcessor | resetPeripherals
}

// BootControl is the board-level half of the bootloader request.
type BootControl interface {
	// WriteMagic stores v in the boot flag cell read by the startup code.
	WriteMagic(v uint32)
	// Reset writes cmd to the reset controller. On hardware it does not return.
	Reset(cmd uint32)
}

// Detacher drops the USB link so the host sees the device go away.
type Detacher interface {
	Detach()
}

// Bootloader turns a 1200 baud line-coding request into a reboot into the
// bootloader: magic write, then USB detach, then core reset.
type Bootloader struct {
	ctl   BootControl
	link  Detacher
	fired atomic.Bool
}

// NewBootloader returns a trigger using ctl for the boot flag and reset and
// link for the detach. link may be nil when no USB link is up.
func NewBootloader(ctl BootControl, link Detacher) *Bootloader {
	return &Bootloader{ctl: ctl, link: link}
}

// Observe inspects a requested line rate and enters the bootloader when it
// equals BootloaderBaud. It reports whether the sequence ran. Once it has run
// further requests are ignored.
func (b *Bootloader) Observe(rate uint32) bool {
	if rate != BootloaderBaud {
		return false
	}
	return b.Enter()
}

// Enter runs the reboot sequence unconditionally. On hardware it does not
// return.
func (b *Bootloader) Enter() bool {
	if !b.fired.CompareAndSwap(false, true) {
		return false
	}
	b.ctl.WriteMagic(DoubleTapMagic)
	if b.link != nil {
		b.link.Detach()
	}
	b.ctl.Reset(ResetCommand())
	return true
}

// Fired reports whether the sequence has run.
func (b *Bootloader) Fired() bool { return b.fired.Load() }
