//go:build tinygo && atsam4e

// Memory-mapped peripherals of the ATSAM4E. This is the only file in the
// package that aliases hardware addresses.

package serialx

import (
	"device/arm"
	"runtime"
	"runtime/interrupt"
	"runtime/volatile"
	"unsafe"
)

// CPUFrequency is the core clock after the startup code has set up the PLL.
var CPUFrequency uint32 = 120000000

// Peripheral identifiers, which double as NVIC line numbers.
const (
	IDUSART0 = 14
	IDUSART1 = 15

	IRQUSART0 = IDUSART0
	IRQUSART1 = IDUSART1
)

const (
	usart0Base uintptr = 0x400A0000
	usart1Base uintptr = 0x400A4000
	pmcBase    uintptr = 0x400E0400
	rstcBase   uintptr = 0x400E1800

	// last word of the 128 KiB internal RAM
	doubleTapAddr uintptr = 0x20000000 + 0x20000 - 4
)

type usartRegs struct {
	CR   volatile.Register32 // 0x000
	MR   volatile.Register32 // 0x004
	IER  volatile.Register32 // 0x008
	IDR  volatile.Register32 // 0x00C
	IMR  volatile.Register32 // 0x010
	CSR  volatile.Register32 // 0x014
	RHR  volatile.Register32 // 0x018
	THR  volatile.Register32 // 0x01C
	BRGR volatile.Register32 // 0x020
	_    [63]volatile.Register32
	PTCR volatile.Register32 // 0x120
}

const (
	ptcrRxDisable = 1 << 1 // RXTDIS
	ptcrTxDisable = 1 << 9 // TXTDIS
)

// MMIOUSART drives a USART through its register block.
type MMIOUSART struct {
	r *usartRegs
}

func (u MMIOUSART) Control(c Control) { u.r.CR.Set(uint32(c)) }
func (u MMIOUSART) SetMode(m Mode) { u.r.MR.Set(uint32(m)) }
func (u MMIOUSART) SetBaudDivisor(div uint32) { u.r.BRGR.Set(div) }
func (u MMIOUSART) EnableInterrupts(e Event) { u.r.IER.Set(uint32(e)) }
func (u MMIOUSART) DisableInterrupts(e Event) { u.r.IDR.Set(uint32(e)) }
func (u MMIOUSART) InterruptMask() Event { return Event(u.r.IMR.Get()) }
func (u MMIOUSART) Status() Event { return Event(u.r.CSR.Get()) }
func (u MMIOUSART) ReceiveHolding() byte { return byte(u.r.RHR.Get()) }
func (u MMIOUSART) TransmitHolding(b byte) { u.r.THR.Set(uint32(b)) }
func (u MMIOUSART) DisableDMA() { u.r.PTCR.Set(ptcrRxDisable | ptcrTxDisable) }

type pmcRegs struct {
	_     [4]volatile.Register32
	PCER0 volatile.Register32 // 0x010
	PCDR0 volatile.Register32 // 0x014
	_     [58]volatile.Register32
	PCER1 volatile.Register32 // 0x100
	PCDR1 volatile.Register32 // 0x104
}

// PMC gates peripheral clocks through the power management controller.
type PMC struct{}

func (PMC) pmc() *pmcRegs { return (*pmcRegs)(unsafe.Pointer(pmcBase)) }

func (p PMC) EnablePeripheralClock(id uint32) {
	if id < 32 {
		p.pmc().PCER0.Set(1 << id)
	} else {
		p.pmc().PCER1.Set(1 << (id - 32))
	}
}

func (p PMC) DisablePeripheralClock(id uint32) {
	if id < 32 {
		p.pmc().PCDR0.Set(1 << id)
	} else {
		p.pmc().PCDR1.Set(1 << (id - 32))
	}
}

func (PMC) CoreClockHz() uint32 { return CPUFrequency }

// NVICLine is one NVIC interrupt line. The SAM4E implements four priority
// bits, held in the top of each priority byte.
type NVICLine struct {
	IRQ      uint32
	priority uint8
}

func (l *NVICLine) Enable() { arm.EnableIRQ(l.IRQ) }
func (l *NVICLine) Disable() { arm.DisableIRQ(l.IRQ) }

func (l *NVICLine) SetPriority(p uint8) {
	l.priority = p & 0x0F
	arm.SetPriority(l.IRQ, uint32(l.priority)<<4)
}

func (l *NVICLine) Priority() uint8 { return l.priority }
func (l *NVICLine) InInterrupt() bool { return interrupt.In() }
func (l *NVICLine) Yield() { runtime.Gosched() }

// USART0Peripheral describes USART0.
func USART0Peripheral() Peripheral {
	return Peripheral{
		Regs:  MMIOUSART{(*usartRegs)(unsafe.Pointer(usart0Base))},
		Clock: PMC{},
		IRQ:   &NVICLine{IRQ: IRQUSART0},
		ID:    IDUSART0,
	}
}

// USART1Peripheral describes USART1.
func USART1Peripheral() Peripheral {
	return Peripheral{
		Regs:  MMIOUSART{(*usartRegs)(unsafe.Pointer(usart1Base))},
		Clock: PMC{},
		IRQ:   &NVICLine{IRQ: IRQUSART1},
		ID:    IDUSART1,
	}
}

// SAM4EBoot implements BootControl with the double-tap RAM cell and the reset
// controller.
type SAM4EBoot struct{}

func (SAM4EBoot) WriteMagic(v uint32) {
	(*volatile.Register32)(unsafe.Pointer(doubleTapAddr)).Set(v)
}

func (SAM4EBoot) Reset(cmd uint32) {
	(*volatile.Register32)(unsafe.Pointer(rstcBase)).Set(cmd)
	for {
		arm.Asm("wfi")
	}
}
