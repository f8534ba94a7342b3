// Package serialx provides two byte-stream serial transports for SAM-class
// microcontrollers behind one interface: an interrupt-driven hardware UART
// with software rx/tx rings, and a USB CDC virtual serial port that follows
// host connect/disconnect notifications.
//
// The UART shares its rings with its interrupt handler without locks. The
// foreground produces into the tx ring and consumes from the rx ring; the
// handler does the opposite. Write blocks only while the tx ring is full and
// Flush blocks until the line is idle; both spin and must never be called
// from interrupt context. WriteContext and FlushContext bound those waits.
//
// Line faults are deliberately silent: a byte received while the rx ring is
// full is dropped and overrun/framing errors are acknowledged in the handler
// without being reported. Stats exposes counters for both.
//
// A USB host that opens the port at 1200 baud asks the board to reboot into
// its bootloader; see Bootloader.
package serialx

import (
	"errors"
	"io"
)

var (
	// ErrBufferEmpty is the not-available result of ReadByte and Peek.
	ErrBufferEmpty = errors.New("serialx: buffer empty")
	// ErrInterruptContext is returned by blocking calls made from an interrupt
	// handler, where spinning on the handler's own progress would deadlock.
	ErrInterruptContext = errors.New("serialx: blocking call from interrupt context")
	// ErrNotConnected is returned by USBSerial writes while no host is attached.
	ErrNotConnected = errors.New("serialx: USB host not connected")
	// ErrInvalidMode rejects a character format the USART cannot produce.
	ErrInvalidMode = errors.New("serialx: invalid character format")
)

// Serial is the transport-neutral byte-stream surface shared by UART and
// USBSerial.
type Serial interface {
	io.Reader
	io.Writer
	io.ByteReader
	io.ByteWriter

	Begin(baud uint32) error
	BeginMode(baud uint32, mode Mode) error
	End() error

	// Available returns the number of bytes that can be read without waiting.
	Available() int
	// AvailableForWrite returns how many bytes can be written without waiting.
	AvailableForWrite() int
	Peek() (byte, error)
	Flush() error
}

// Parity selects the USART parity generator.
type Parity uint8

const (
	ParityNone Parity = iota
	ParityEven
	ParityOdd
	ParityMark
	ParitySpace
)

// Mode is a USART mode-register value describing the character format.
type Mode uint32

const (
	modeCharLenPos = 6  // CHRL
	modeParityPos  = 9  // PAR
	modeStopPos    = 12 // NBSTOP

	modeCharLenMask Mode = 0x3 << modeCharLenPos
	modeParityMask  Mode = 0x7 << modeParityPos
	modeStopMask    Mode = 0x3 << modeStopPos

	// ModeFormatMask covers every field BeginMode lets a caller set; channel
	// mode is always normal.
	ModeFormatMask = modeCharLenMask | modeParityMask | modeStopMask
)

// hardware PAR field encodings
var parityField = [...]Mode{
	ParityNone:  4,
	ParityEven:  0,
	ParityOdd:   1,
	ParityMark:  3,
	ParitySpace: 2,
}

// Common formats.
var (
	Mode8N1 = mustMode(8, 1, ParityNone)
	Mode8E1 = mustMode(8, 1, ParityEven)
	Mode8O1 = mustMode(8, 1, ParityOdd)
	Mode8M1 = mustMode(8, 1, ParityMark)
	Mode8S1 = mustMode(8, 1, ParitySpace)
	Mode8N2 = mustMode(8, 2, ParityNone)
	Mode7E1 = mustMode(7, 1, ParityEven)
	Mode7O1 = mustMode(7, 1, ParityOdd)
)

// NewMode builds a Mode from a character format.
func NewMode(databits, stopbits uint8, parity Parity) (Mode, error) {
	if databits < 5 || databits > 8 {
		return 0, ErrInvalidMode
	}
	if stopbits != 1 && stopbits != 2 {
		return 0, ErrInvalidMode
	}
	if int(parity) >= len(parityField) {
		return 0, ErrInvalidMode
	}
	var stop Mode
	if stopbits == 2 {
		stop = 2
	}
	return Mode(databits-5)<<modeCharLenPos |
		parityField[parity]<<modeParityPos |
		stop<<modeStopPos, nil
}

func mustMode(databits, stopbits uint8, parity Parity) Mode {
	m, err := NewMode(databits, stopbits, parity)
	if err != nil {
		panic(err)
	}
	return m
}

// Valid reports whether m only uses normal channel mode and encodings the
// USART defines for asynchronous operation.
func (m Mode) Valid() bool {
	if m&^ModeFormatMask != 0 {
		return false
	}
	par := (m & modeParityMask) >> modeParityPos
	stop := (m & modeStopMask) >> modeStopPos
	return par <= 4 && stop != 3
}

// DataBits returns the character length, 5 to 8.
func (m Mode) DataBits() uint8 {
	return uint8((m&modeCharLenMask)>>modeCharLenPos) + 5
}

// Config holds the line settings applied by UART.Configure. Mode has no
// default; use Mode8N1 for the usual format.
type Config struct {
	BaudRate uint32
	Mode     Mode
}

// DefaultBaudRate is used when a Config leaves BaudRate zero.
const DefaultBaudRate = 115200

// applyDefaults fills in BaudRate only. Mode zero is a real format (5E1), so
// it is passed through as given.
func (c *Config) applyDefaults() {
	if c.BaudRate == 0 {
		c.BaudRate = DefaultBaudRate
	}
}
