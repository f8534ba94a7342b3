package serialx

import (
	"context"
	"io"
	"runtime"
	"sync/atomic"
)

// CDCStack is the part of a USB CDC class driver a USBSerial consumes.
type CDCStack interface {
	// Received returns the number of bytes the host has sent and not yet read.
	Received() int
	RxReady() bool
	// Getc returns the next received byte. Only valid when RxReady.
	Getc() byte
	// FreeTx returns the space left in the stack's transmit buffer.
	FreeTx() int
	// Putc queues one byte for the host, reporting whether it was taken.
	Putc(b byte) bool
	// WriteBuf queues as much of p as fits without blocking and returns the
	// number of bytes taken.
	WriteBuf(p []byte) int
	Detacher
}

// LineCoding is a CDC SET_LINE_CODING payload.
type LineCoding struct {
	DTERate    uint32
	CharFormat uint8 // 0: 1 stop bit, 1: 1.5, 2: 2
	ParityType uint8 // 0: none, 1: odd, 2: even, 3: mark, 4: space
	DataBits   uint8
}

// txBufsizeUnknown is the flush threshold until the stack reports an empty
// transmit buffer for the first time.
const txBufsizeUnknown = 1

// USBSerial is a USB CDC virtual serial port. It keeps no tx buffer of its
// own; backpressure is whatever the stack reports.
//
// Reads and writes are gated on the connection state set by CDCEnable and
// CDCDisable, which the class driver calls from its interrupt.
type USBSerial struct {
	stack CDCStack
	boot  *Bootloader

	connected atomic.Bool
	session   atomic.Uint32 // bumped by every CDCEnable
	txBufsize atomic.Int32
	baud      atomic.Uint32

	// one-byte lookahead for Peek; foreground only
	peeked      byte
	peekSession uint32
	hasPeek     bool
}

var _ Serial = (*USBSerial)(nil)

// NewUSBSerial wraps stack. boot may be nil to ignore bootloader requests.
func NewUSBSerial(stack CDCStack, boot *Bootloader) *USBSerial {
	s := &USBSerial{stack: stack, boot: boot}
	s.txBufsize.Store(txBufsizeUnknown)
	return s
}

// Begin is accepted for API symmetry; a virtual port has no line rate.
func (s *USBSerial) Begin(baud uint32) error {
	logDebug(ComponentUSB, "begin ignored", "baud", baud)
	return nil
}

// BeginMode is accepted for API symmetry; a virtual port has no format.
func (s *USBSerial) BeginMode(baud uint32, _ Mode) error { return s.Begin(baud) }

// End marks the port disconnected until the host connects again.
func (s *USBSerial) End() error {
	s.connected.Store(false)
	s.hasPeek = false
	logInfo(ComponentUSB, "stopped")
	return nil
}

// Connected reports whether a host has the port open.
func (s *USBSerial) Connected() bool { return s.connected.Load() }

// BaudRate returns the rate of the most recent line-coding request.
func (s *USBSerial) BaudRate() uint32 { return s.baud.Load() }

// Available returns the number of bytes the host has sent, or 0 while
// disconnected.
func (s *USBSerial) Available() int {
	if !s.gate() {
		return 0
	}
	n := s.stack.Received()
	if s.hasPeek {
		n++
	}
	return n
}

// gate reports the connection state and drops a lookahead byte left over
// from a previous connection, even when the host reconnected between polls.
func (s *USBSerial) gate() bool {
	if !s.connected.Load() {
		s.hasPeek = false
		return false
	}
	if s.hasPeek && s.peekSession != s.session.Load() {
		s.hasPeek = false
	}
	return true
}

// Peek returns the next byte from the host without consuming it.
func (s *USBSerial) Peek() (byte, error) {
	if !s.gate() {
		return 0, ErrBufferEmpty
	}
	if !s.hasPeek {
		if !s.stack.RxReady() {
			return 0, ErrBufferEmpty
		}
		s.peekSession = s.session.Load()
		s.peeked, s.hasPeek = s.stack.Getc(), true
	}
	return s.peeked, nil
}

// ReadByte consumes the next byte from the host.
func (s *USBSerial) ReadByte() (byte, error) {
	if !s.gate() {
		return 0, ErrBufferEmpty
	}
	if s.hasPeek {
		s.hasPeek = false
		return s.peeked, nil
	}
	if !s.stack.RxReady() {
		return 0, ErrBufferEmpty
	}
	return s.stack.Getc(), nil
}

// Read copies up to len(p) received bytes without blocking.
func (s *USBSerial) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		b, err := s.ReadByte()
		if err != nil {
			break
		}
		p[n] = b
		n++
	}
	return n, nil
}

// WriteByte hands c to the stack when connected. It always reports success,
// even if the stack had no room.
func (s *USBSerial) WriteByte(c byte) error {
	if s.connected.Load() {
		s.stack.Putc(c)
	}
	return nil
}

// TryWrite hands p to the stack without blocking and returns how many bytes
// it took, which may be fewer than len(p). The caller retries the rest.
func (s *USBSerial) TryWrite(p []byte) int {
	if !s.connected.Load() || len(p) == 0 {
		return 0
	}
	n := s.stack.WriteBuf(p)
	if n > len(p) {
		n = len(p)
	}
	if n < 0 {
		n = 0
	}
	return n
}

// Write implements io.Writer over TryWrite. A short write returns
// io.ErrShortWrite, or ErrNotConnected when no host is attached.
func (s *USBSerial) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if !s.connected.Load() {
		return 0, ErrNotConnected
	}
	n := s.TryWrite(p)
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

// CanWrite returns the stack's free transmit space, or 0 while disconnected.
func (s *USBSerial) CanWrite() int {
	if !s.connected.Load() {
		return 0
	}
	return s.stack.FreeTx()
}

// AvailableForWrite is CanWrite.
func (s *USBSerial) AvailableForWrite() int { return s.CanWrite() }

// Flush waits while connected until the stack's free transmit space reaches
// the size learned from the first tx-empty notification.
func (s *USBSerial) Flush() error {
	for s.pending() {
		runtime.Gosched()
	}
	return nil
}

// FlushContext waits like Flush until ctx is done.
func (s *USBSerial) FlushContext(ctx context.Context) error {
	for s.pending() {
		if err := ctx.Err(); err != nil {
			return err
		}
		runtime.Gosched()
	}
	return nil
}

func (s *USBSerial) pending() bool {
	return s.connected.Load() && s.stack.FreeTx() < int(s.txBufsize.Load())
}

// Notification entry points, called by the class driver from its interrupt.

// CDCEnable records a host connection. It always accepts.
func (s *USBSerial) CDCEnable(port uint8) bool {
	s.session.Add(1)
	s.connected.Store(true)
	return true
}

// CDCDisable records a host disconnection. Bytes still in flight are not
// guaranteed to be delivered.
func (s *USBSerial) CDCDisable(port uint8) {
	s.connected.Store(false)
}

// CDCRxNotify is called when data arrives. Reads go straight to the stack,
// so there is nothing to do.
func (s *USBSerial) CDCRxNotify(port uint8) {}

// CDCTxEmptyNotify is called when the stack's transmit buffer drains. The
// first call teaches Flush how large that buffer is.
func (s *USBSerial) CDCTxEmptyNotify(port uint8) {
	if s.txBufsize.Load() == txBufsizeUnknown {
		s.txBufsize.Store(int32(s.stack.FreeTx()))
	}
}

// CDCSetLineCoding records the requested rate and hands it to the
// bootloader trigger.
func (s *USBSerial) CDCSetLineCoding(port uint8, lc LineCoding) {
	s.baud.Store(lc.DTERate)
	if s.boot != nil {
		s.boot.Observe(lc.DTERate)
	}
}
