package serialx

// UART is an interrupt-driven USART transport.
//
// Invariants:
//   - The rx ring is produced by HandleInterrupt and consumed by the
//     foreground; the tx ring is produced by the foreground and consumed by
//     HandleInterrupt.
//   - The foreground writes the transmit holding register only when the tx
//     ring is empty and TXRDY is set; otherwise the handler is the writer.
//   - TXRDY interrupts are unmasked whenever the tx ring holds data and are
//     masked by the handler once it finds the ring empty.
//
// Signalling:
//   - Readable and Writable are coalesced; receivers must re-check state.
type UART struct {
	regs  USART
	clock ClockGate
	irq   IRQLine
	id    uint32

	rx *RingBuffer // software RX ring filled by the handler
	tx *RingBuffer // software TX ring drained by the handler

	notify   chan struct{} // coalesced RX readiness
	txNotify chan struct{} // coalesced TX progress/drain

	baud  uint32
	mode  Mode
	stats counters
}

var _ Serial = (*UART)(nil)

// NewUART builds a UART over p and registers its handler with d. Nothing is
// touched on the peripheral until Begin.
func NewUART(p Peripheral, d Dispatcher) *UART {
	u := &UART{
		regs:     p.Regs,
		clock:    p.Clock,
		irq:      p.IRQ,
		id:       p.ID,
		rx:       NewRingBuffer(BufferSize),
		tx:       NewRingBuffer(BufferSize),
		notify:   make(chan struct{}, 1),
		txNotify: make(chan struct{}, 1),
	}
	d.Register(u)
	return u
}

// Begin configures the UART for 8N1 at baud.
func (u *UART) Begin(baud uint32) error {
	return u.Configure(Config{BaudRate: baud, Mode: Mode8N1})
}

// BeginMode configures the UART at baud with the given character format.
func (u *UART) BeginMode(baud uint32, mode Mode) error {
	return u.Configure(Config{BaudRate: baud, Mode: mode})
}

// Configure brings the peripheral up. Only the format fields of cfg.Mode are
// used; channel mode is always normal.
func (u *UART) Configure(cfg Config) error {
	cfg.applyDefaults()
	if !cfg.Mode.Valid() {
		return ErrInvalidMode
	}
	u.init(cfg.BaudRate, cfg.Mode&ModeFormatMask)
	u.stats.reset()
	logInfo(ComponentUART, "configured",
		"id", u.id,
		"baud", cfg.BaudRate,
		"divisor", Divisor(u.clock.CoreClockHz(), cfg.BaudRate),
		"databits", cfg.Mode.DataBits())
	return nil
}

func (u *UART) init(baud uint32, mode Mode) {
	u.baud, u.mode = baud, mode

	u.clock.EnablePeripheralClock(u.id)

	// 1) Stop DMA and hold both directions in reset while configuring.
	u.regs.DisableDMA()
	u.regs.Control(ControlResetRx | ControlResetTx | ControlRxDisable | ControlTxDisable)

	// 2) Format and rate.
	u.regs.SetMode(mode)
	u.regs.SetBaudDivisor(Divisor(u.clock.CoreClockHz(), baud))

	// 3) Interrupts: RX and line errors only. TXRDY is unmasked on demand by
	// the buffered write path.
	u.regs.DisableInterrupts(EventAll)
	u.regs.EnableInterrupts(EventRxReady | EventOverrun | EventFraming)
	u.irq.Enable()

	// 4) Both rings empty before the receiver can produce. RX and TX are
	// still disabled, so the handler cannot touch either ring yet.
	u.rx.Clear()
	u.tx.Clear()

	u.regs.Control(ControlRxEnable | ControlTxEnable)
}

// End discards unread input, waits for pending output to leave the line and
// shuts the peripheral down.
func (u *UART) End() error {
	u.rx.Discard()
	if err := u.Flush(); err != nil {
		return err
	}
	u.irq.Disable()
	u.clock.DisablePeripheralClock(u.id)
	logInfo(ComponentUART, "stopped", "id", u.id)
	return nil
}

// BaudRate returns the rate passed to the last Begin.
func (u *UART) BaudRate() uint32 { return u.baud }

// Mode returns the character format passed to the last Begin.
func (u *UART) Mode() Mode { return u.mode }

// SetInterruptPriority sets the line priority; only the low four bits are
// significant.
func (u *UART) SetInterruptPriority(p uint32) {
	u.irq.SetPriority(uint8(p & 0x0F))
}

// InterruptPriority returns the current line priority.
func (u *UART) InterruptPriority() uint32 { return uint32(u.irq.Priority()) }

// Available returns the number of bytes waiting in the rx ring.
func (u *UART) Available() int { return u.rx.Used() }

// AvailableForWrite returns the free space in the tx ring.
func (u *UART) AvailableForWrite() int { return u.tx.Free() }

// Peek returns the next received byte without consuming it.
func (u *UART) Peek() (byte, error) {
	if b, ok := u.rx.Peek(); ok {
		return b, nil
	}
	return 0, ErrBufferEmpty
}

// ReadByte consumes the next received byte, or returns ErrBufferEmpty.
func (u *UART) ReadByte() (byte, error) {
	if b, ok := u.rx.Get(); ok {
		return b, nil
	}
	return 0, ErrBufferEmpty
}

// Read copies up to len(p) buffered bytes. It never blocks and returns 0, nil
// when nothing is buffered.
func (u *UART) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		b, ok := u.rx.Get()
		if !ok {
			break
		}
		p[n] = b
		n++
	}
	return n, nil
}

// Readable returns a coalesced notification for RX readiness.
func (u *UART) Readable() <-chan struct{} { return u.notify }

// Writable returns a coalesced notification for TX progress or drain.
func (u *UART) Writable() <-chan struct{} { return u.txNotify }

// WriteByte queues c. It returns once c is in the transmit holding register
// or the tx ring, spinning while the ring is full.
func (u *UART) WriteByte(c byte) error {
	if u.irq.InInterrupt() {
		return ErrInterruptContext
	}
	if u.tryDirect(c) {
		return nil
	}
	for !u.tx.Put(c) {
		u.irq.Yield()
	}
	u.regs.EnableInterrupts(EventTxReady)
	return nil
}

// Write queues all of p with WriteByte semantics.
func (u *UART) Write(p []byte) (int, error) {
	for i, c := range p {
		if err := u.WriteByte(c); err != nil {
			return i, err
		}
	}
	return len(p), nil
}

// TryWrite queues as much of p as fits without waiting and returns the count.
func (u *UART) TryWrite(p []byte) int {
	if u.irq.InInterrupt() {
		return 0
	}
	n, queued := 0, false
	for n < len(p) {
		if !queued && u.tryDirect(p[n]) {
			n++
			continue
		}
		if !u.tx.Put(p[n]) {
			break
		}
		queued = true
		n++
	}
	if queued {
		u.regs.EnableInterrupts(EventTxReady)
	}
	return n
}

// tryDirect bypasses the ring when the transmitter is idle and nothing is
// queued ahead of c.
func (u *UART) tryDirect(c byte) bool {
	if !u.tx.Empty() || u.regs.Status()&EventTxReady == 0 {
		return false
	}
	u.regs.TransmitHolding(c)
	u.stats.direct.Add(1)
	return true
}

// Flush waits until the tx ring is empty and the transmitter has shifted out
// its last bit. There is no timeout; see FlushContext.
func (u *UART) Flush() error {
	if u.irq.InInterrupt() {
		return ErrInterruptContext
	}
	for !u.tx.Empty() {
		u.irq.Yield()
	}
	for u.regs.Status()&EventTxEmpty == 0 {
		u.irq.Yield()
	}
	return nil
}

// Stats returns a snapshot of the driver counters.
func (u *UART) Stats() Stats { return u.stats.snapshot() }

// ResetStats zeroes the driver counters.
func (u *UART) ResetStats() { u.stats.reset() }

// RxBuffer exposes the rx ring for inspection.
func (u *UART) RxBuffer() *RingBuffer { return u.rx }

// TxBuffer exposes the tx ring for inspection.
func (u *UART) TxBuffer() *RingBuffer { return u.tx }

// HandleInterrupt services one USART interrupt. It reads status once, moves
// at most one byte in each direction and acknowledges line errors.
//
// RX: a byte that finds the rx ring full is dropped.
// TX: with the tx ring empty, TXRDY is masked so an idle line does not
// re-enter the handler.
// Errors: OVRE/FRAME are cleared with RSTSTA and not reported.
func (u *UART) HandleInterrupt() {
	u.stats.isr.Add(1)
	status := u.regs.Status()

	if status&EventRxReady != 0 {
		if u.rx.Put(u.regs.ReceiveHolding()) {
			u.stats.rxBytes.Add(1)
			signal(u.notify)
		} else {
			u.stats.rxDropped.Add(1)
		}
	}

	if status&EventTxReady != 0 {
		if b, ok := u.tx.Get(); ok {
			u.regs.TransmitHolding(b)
			u.stats.txBytes.Add(1)
		} else {
			u.regs.DisableInterrupts(EventTxReady)
		}
		signal(u.txNotify)
	}

	if status&(EventOverrun|EventFraming) != 0 {
		if status&EventOverrun != 0 {
			u.stats.overrun.Add(1)
		}
		if status&EventFraming != 0 {
			u.stats.framing.Add(1)
		}
		u.regs.Control(ControlResetStatus)
	}
}

// signal performs a coalesced, non-blocking send.
func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
