// Package sim simulates the collaborators of package serialx on the host: a
// USART register bank, its interrupt line, the peripheral clock gate, a USB
// CDC class driver and the board's boot controls.
//
// Time only moves when the driver under test yields. IRQ.Yield advances the
// USART by one character time and then services pending interrupts in the
// calling goroutine, which stands in for an interrupt preempting the
// foreground. Tests stay deterministic without goroutines.
package sim

import (
	"sync"

	"github.com/jangala-dev/tinygo-serialx/serialx"
)

// USART is a simulated register bank implementing serialx.USART.
//
// The transmitter has a holding register and a shift register. A byte written
// to an empty holding register moves straight to the shift register if it is
// free, leaving TXRDY set. Each Tick shifts one byte onto the wire. TXEMPTY
// rises EmptyDelay ticks after the last byte leaves.
type USART struct {
	mu sync.Mutex

	// EmptyDelay is the number of extra ticks TXEMPTY lags the shifter.
	EmptyDelay int
	// Loopback feeds every byte leaving the shifter back into the receiver.
	Loopback bool

	mode    serialx.Mode
	divisor uint32
	imr     serialx.Event
	rxOn    bool
	txOn    bool
	dmaOff  bool

	rhr      byte
	rxReady  bool
	overrun  bool
	framing  bool
	thr      byte
	thrFull  bool
	shift    byte
	shifting bool
	emptyIn  int

	wire        []byte
	controls    []serialx.Control
	overwritten int
}

var _ serialx.USART = (*USART)(nil)

// NewUSART returns a register bank in its reset state.
func NewUSART() *USART { return &USART{} }

func (u *USART) Control(c serialx.Control) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.controls = append(u.controls, c)
	if c&serialx.ControlResetRx != 0 {
		u.rxReady, u.overrun, u.framing = false, false, false
	}
	if c&serialx.ControlResetTx != 0 {
		u.thrFull, u.shifting, u.emptyIn = false, false, 0
	}
	if c&serialx.ControlRxDisable != 0 {
		u.rxOn = false
	} else if c&serialx.ControlRxEnable != 0 {
		u.rxOn = true
	}
	if c&serialx.ControlTxDisable != 0 {
		u.txOn = false
	} else if c&serialx.ControlTxEnable != 0 {
		u.txOn = true
	}
	if c&serialx.ControlResetStatus != 0 {
		u.overrun, u.framing = false, false
	}
}

func (u *USART) SetMode(m serialx.Mode) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.mode = m
}

func (u *USART) SetBaudDivisor(div uint32) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.divisor = div
}

func (u *USART) EnableInterrupts(e serialx.Event) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.imr |= e
}

func (u *USART) DisableInterrupts(e serialx.Event) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.imr &^= e
}

func (u *USART) InterruptMask() serialx.Event {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.imr
}

func (u *USART) Status() serialx.Event {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.status()
}

func (u *USART) status() serialx.Event {
	var s serialx.Event
	if u.rxReady {
		s |= serialx.EventRxReady
	}
	if u.txOn && !u.thrFull {
		s |= serialx.EventTxReady
	}
	if u.overrun {
		s |= serialx.EventOverrun
	}
	if u.framing {
		s |= serialx.EventFraming
	}
	if u.txOn && !u.thrFull && !u.shifting && u.emptyIn == 0 {
		s |= serialx.EventTxEmpty
	}
	return s
}

func (u *USART) ReceiveHolding() byte {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.rxReady = false
	return u.rhr
}

func (u *USART) TransmitHolding(b byte) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if !u.txOn {
		return
	}
	if u.thrFull {
		u.overwritten++
	}
	u.thr, u.thrFull = b, true
	u.load()
}

func (u *USART) DisableDMA() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.dmaOff = true
}

// load moves the holding register into a free shift register.
func (u *USART) load() {
	if u.thrFull && !u.shifting {
		u.shift, u.shifting = u.thr, true
		u.thrFull = false
	}
}

// Tick advances the line by one character time.
func (u *USART) Tick() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.shifting {
		b := u.shift
		u.wire = append(u.wire, b)
		u.shifting = false
		u.emptyIn = u.EmptyDelay
		u.load()
		if u.Loopback {
			u.receive(b)
		}
		return
	}
	if u.emptyIn > 0 {
		u.emptyIn--
	}
}

// Inject delivers b to the receiver as if it had arrived on the line. A byte
// that arrives before the previous one was read overwrites it and raises
// OVRE.
func (u *USART) Inject(b byte) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.receive(b)
}

func (u *USART) receive(b byte) {
	if !u.rxOn {
		return
	}
	if u.rxReady {
		u.overrun = true
	}
	u.rhr, u.rxReady = b, true
}

// InjectFramingError raises FRAME as if a stop bit had been missed.
func (u *USART) InjectFramingError() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.framing = true
}

// Pending reports whether any enabled interrupt condition is active.
func (u *USART) Pending() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.status()&u.imr != 0
}

// Wire returns every byte shifted out so far.
func (u *USART) Wire() []byte {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]byte(nil), u.wire...)
}

// Controls returns the control-register writes in order.
func (u *USART) Controls() []serialx.Control {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]serialx.Control(nil), u.controls...)
}

// Mode returns the last mode-register value.
func (u *USART) Mode() serialx.Mode {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.mode
}

// Divisor returns the last baud-rate generator value.
func (u *USART) Divisor() uint32 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.divisor
}

// DMADisabled reports whether DisableDMA has been called.
func (u *USART) DMADisabled() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.dmaOff
}

// Enabled reports the receiver and transmitter enable state.
func (u *USART) Enabled() (rx, tx bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.rxOn, u.txOn
}

// Overwritten counts holding-register writes that clobbered an unsent byte.
func (u *USART) Overwritten() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.overwritten
}
