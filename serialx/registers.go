package serialx

// Event is a set of USART status bits. The status, interrupt-enable,
// interrupt-disable and interrupt-mask registers share this layout.
type Event uint32

const (
	EventRxReady Event = 1 << 0 // RXRDY: a received byte is in the holding register
	EventTxReady Event = 1 << 1 // TXRDY: the transmit holding register can take a byte
	EventOverrun Event = 1 << 5 // OVRE
	EventFraming Event = 1 << 6 // FRAME
	EventTxEmpty Event = 1 << 9 // TXEMPTY: holding and shift registers both drained

	EventAll Event = 0xFFFFFFFF
)

// Control is a command written to the USART control register. Bits not set
// are left alone by the hardware.
type Control uint32

const (
	ControlResetRx     Control = 1 << 2 // RSTRX
	ControlResetTx     Control = 1 << 3 // RSTTX
	ControlRxEnable    Control = 1 << 4 // RXEN
	ControlRxDisable   Control = 1 << 5 // RXDIS
	ControlTxEnable    Control = 1 << 6 // TXEN
	ControlTxDisable   Control = 1 << 7 // TXDIS
	ControlResetStatus Control = 1 << 8 // RSTSTA: acknowledge OVRE/FRAME/PARE
)

// USART is the narrow register-level capability a UART needs. Implementations
// are the memory-mapped peripheral on target and a simulated bank on the host.
type USART interface {
	Control(c Control)
	SetMode(m Mode)
	SetBaudDivisor(div uint32)
	EnableInterrupts(e Event)
	DisableInterrupts(e Event)
	InterruptMask() Event
	Status() Event
	// ReceiveHolding reads the receive holding register, clearing RXRDY.
	ReceiveHolding() byte
	// TransmitHolding writes the transmit holding register.
	TransmitHolding(b byte)
	// DisableDMA stops both peripheral DMA (PDC) channels.
	DisableDMA()
}

// ClockGate switches peripheral clocks on and off.
type ClockGate interface {
	EnablePeripheralClock(id uint32)
	DisablePeripheralClock(id uint32)
	CoreClockHz() uint32
}

// IRQLine is the interrupt controller's view of one peripheral line.
type IRQLine interface {
	Enable()
	Disable()
	SetPriority(p uint8)
	Priority() uint8
	// InInterrupt reports whether the caller is running in interrupt context.
	InInterrupt() bool
	// Yield is called between polls of every foreground busy-wait.
	Yield()
}

// Peripheral bundles what a UART is built from.
type Peripheral struct {
	Regs  USART
	Clock ClockGate
	IRQ   IRQLine
	ID    uint32 // peripheral identifier used by the clock gate
}

// Divisor returns the baud-rate generator value for asynchronous mode with
// 16x oversampling: coreClockHz / (baud * 16), truncated. Low divisors carry a
// large rate error; nothing here validates or reports it.
func Divisor(coreClockHz, baud uint32) uint32 {
	return (coreClockHz / baud) >> 4
}
