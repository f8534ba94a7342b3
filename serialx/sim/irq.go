package sim

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jangala-dev/tinygo-serialx/serialx"
)

// maxNesting bounds how many times Service re-enters a handler that leaves
// its line pending.
const maxNesting = 1024

// IRQ is a simulated interrupt line for one USART. It implements
// serialx.IRQLine and serialx.Dispatcher.
type IRQ struct {
	usart *USART

	mu       sync.Mutex // held while a handler runs
	handler  serialx.Handler
	enabled  atomic.Bool
	priority atomic.Uint32
	inISR    atomic.Bool

	yields   atomic.Uint64
	services atomic.Uint64
}

var (
	_ serialx.IRQLine    = (*IRQ)(nil)
	_ serialx.Dispatcher = (*IRQ)(nil)
)

// NewIRQ returns a disabled line driven by u.
func NewIRQ(u *USART) *IRQ { return &IRQ{usart: u} }

func (q *IRQ) Register(h serialx.Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handler = h
}

func (q *IRQ) Enable() { q.enabled.Store(true) }
func (q *IRQ) Disable() { q.enabled.Store(false) }
func (q *IRQ) Enabled() bool { return q.enabled.Load() }
func (q *IRQ) SetPriority(p uint8) { q.priority.Store(uint32(p)) }
func (q *IRQ) Priority() uint8 { return uint8(q.priority.Load()) }
func (q *IRQ) InInterrupt() bool { return q.inISR.Load() }

// Yield advances the USART by one tick and services whatever that made
// pending.
func (q *IRQ) Yield() {
	q.yields.Add(1)
	q.usart.Tick()
	q.Service()
}

// Service runs the handler until the line is no longer pending, as the NVIC
// would on exception return. It reports whether the handler ran.
func (q *IRQ) Service() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	ran := false
	for i := 0; i < maxNesting; i++ {
		if !q.enabled.Load() || q.handler == nil || !q.usart.Pending() {
			break
		}
		q.inISR.Store(true)
		q.handler.HandleInterrupt()
		q.inISR.Store(false)
		q.services.Add(1)
		ran = true
	}
	return ran
}

// Run ticks the USART and services the line every period until ctx is done.
// It stands in for the free-running hardware when the foreground blocks in a
// select rather than yielding. Unlike Yield, the handler is not atomic with
// respect to the foreground.
func (q *IRQ) Run(ctx context.Context, period time.Duration) {
	t := time.NewTicker(period)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			q.usart.Tick()
			q.Service()
		}
	}
}

// Within runs f as if it executed inside the interrupt handler.
func (q *IRQ) Within(f func()) {
	q.inISR.Store(true)
	defer q.inISR.Store(false)
	f()
}

// Yields returns how many times a busy-wait yielded.
func (q *IRQ) Yields() uint64 { return q.yields.Load() }

// Services returns how many handler invocations have run.
func (q *IRQ) Services() uint64 { return q.services.Load() }

// Clock is a simulated peripheral clock gate.
type Clock struct {
	Hz uint32

	mu sync.Mutex
	on map[uint32]bool
}

var _ serialx.ClockGate = (*Clock)(nil)

// NewClock returns a clock gate for a core running at hz.
func NewClock(hz uint32) *Clock { return &Clock{Hz: hz, on: map[uint32]bool{}} }

func (c *Clock) EnablePeripheralClock(id uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.on[id] = true
}

func (c *Clock) DisablePeripheralClock(id uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.on[id] = false
}

func (c *Clock) CoreClockHz() uint32 { return c.Hz }

// On reports whether the clock for id is running.
func (c *Clock) On(id uint32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.on[id]
}

// Board is a complete simulated USART peripheral.
type Board struct {
	USART *USART
	IRQ   *IRQ
	Clock *Clock
	ID    uint32
}

// DefaultCoreClock matches the SAM4E after PLL setup.
const DefaultCoreClock = 120000000

// NewBoard returns a simulated peripheral with the given identifier.
func NewBoard(id uint32) *Board {
	u := NewUSART()
	return &Board{USART: u, IRQ: NewIRQ(u), Clock: NewClock(DefaultCoreClock), ID: id}
}

// Peripheral returns the serialx view of the board.
func (b *Board) Peripheral() serialx.Peripheral {
	return serialx.Peripheral{Regs: b.USART, Clock: b.Clock, IRQ: b.IRQ, ID: b.ID}
}

// NewUART builds a UART wired to the board.
func (b *Board) NewUART() *serialx.UART {
	return serialx.NewUART(b.Peripheral(), b.IRQ)
}
