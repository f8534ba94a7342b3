package sim

import (
	"fmt"
	"sync"

	"github.com/jangala-dev/tinygo-serialx/serialx"
)

// Trace is an ordered log of side effects shared by several fakes.
type Trace struct {
	mu     sync.Mutex
	events []string
}

func (t *Trace) add(format string, args ...any) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, fmt.Sprintf(format, args...))
}

// Events returns the recorded events in order.
func (t *Trace) Events() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.events...)
}

// DefaultTxCapacity matches a single full-speed bulk buffer pair.
const DefaultTxCapacity = 128

// CDC is a fake USB CDC class driver implementing serialx.CDCStack. The host
// side is driven with HostSend and HostTake.
type CDC struct {
	mu sync.Mutex

	// TxCapacity is the stack transmit buffer size.
	TxCapacity int
	// AcceptLimit caps the bytes a single WriteBuf takes; 0 means no cap.
	AcceptLimit int
	// Trace, when set, records Detach.
	Trace *Trace

	rx       []byte
	tx       []byte
	detached bool
	dropped  int
}

var _ serialx.CDCStack = (*CDC)(nil)

// NewCDC returns a stack with the default transmit capacity.
func NewCDC() *CDC { return &CDC{TxCapacity: DefaultTxCapacity} }

func (c *CDC) Received() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.rx)
}

func (c *CDC) RxReady() bool { return c.Received() > 0 }

func (c *CDC) Getc() byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.rx) == 0 {
		return 0
	}
	b := c.rx[0]
	c.rx = c.rx[1:]
	return b
}

func (c *CDC) FreeTx() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.freeTx()
}

func (c *CDC) freeTx() int {
	if n := c.TxCapacity - len(c.tx); n > 0 {
		return n
	}
	return 0
}

func (c *CDC) Putc(b byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.freeTx() == 0 {
		c.dropped++
		return false
	}
	c.tx = append(c.tx, b)
	return true
}

func (c *CDC) WriteBuf(p []byte) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := min(len(p), c.freeTx())
	if c.AcceptLimit > 0 {
		n = min(n, c.AcceptLimit)
	}
	c.tx = append(c.tx, p[:n]...)
	return n
}

func (c *CDC) Detach() {
	c.mu.Lock()
	c.detached = true
	c.mu.Unlock()
	c.Trace.add("detach")
}

// HostSend queues p as if the host had written it to the port.
func (c *CDC) HostSend(p []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rx = append(c.rx, p...)
}

// HostTake removes and returns everything the device has sent.
func (c *CDC) HostTake() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.tx
	c.tx = nil
	return out
}

// Detached reports whether the device dropped off the bus.
func (c *CDC) Detached() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.detached
}

// Dropped counts single bytes Putc refused.
func (c *CDC) Dropped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// Boot records boot-control calls instead of rebooting.
type Boot struct {
	Trace *Trace

	mu    sync.Mutex
	magic uint32
	reset uint32
}

var _ serialx.BootControl = (*Boot)(nil)

func (b *Boot) WriteMagic(v uint32) {
	b.mu.Lock()
	b.magic = v
	b.mu.Unlock()
	b.Trace.add("magic 0x%08x", v)
}

func (b *Boot) Reset(cmd uint32) {
	b.mu.Lock()
	b.reset = cmd
	b.mu.Unlock()
	b.Trace.add("reset 0x%08x", cmd)
}

// Magic returns the value in the boot flag cell.
func (b *Boot) Magic() uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.magic
}

// ResetWord returns the last command written to the reset controller.
func (b *Boot) ResetWord() uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reset
}
