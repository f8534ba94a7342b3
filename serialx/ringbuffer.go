package serialx

import "sync/atomic"

// BufferSize is the capacity of the rx and tx rings owned by a UART.
// One slot is kept free to tell full from empty, so 127 bytes are usable.
const BufferSize = 128

// RingBuffer is a fixed-capacity byte queue shared between exactly one
// producer and exactly one consumer on a single core.
//
// Only the producer stores head and only the consumer stores tail. Each index
// is published with a single atomic store after the data slot it guards has
// been written (or read), so the other side never observes a torn index. This
// is a single-producer/single-consumer discipline, not a general lock-free
// queue: two producers, two consumers or two cores break it.
type RingBuffer struct {
	buf  []byte
	head atomic.Uint32 // next slot to write; producer only
	tail atomic.Uint32 // next slot to read; consumer only
}

// NewRingBuffer returns an empty ring with the given capacity. It panics if
// size is smaller than 2, since one slot is always sacrificed.
func NewRingBuffer(size int) *RingBuffer {
	if size < 2 {
		panic("serialx: ring buffer size must be at least 2")
	}
	return &RingBuffer{buf: make([]byte, size)}
}

// Size returns the capacity N of the ring, including the sacrificed slot.
func (rb *RingBuffer) Size() int { return len(rb.buf) }

// Used returns the number of queued bytes: (N + head - tail) mod N.
func (rb *RingBuffer) Used() int {
	n := uint32(len(rb.buf))
	return int((n + rb.head.Load() - rb.tail.Load()) % n)
}

// Free returns how many more bytes can be queued: N - 1 - Used.
func (rb *RingBuffer) Free() int { return len(rb.buf) - 1 - rb.Used() }

// Empty reports whether head == tail.
func (rb *RingBuffer) Empty() bool { return rb.head.Load() == rb.tail.Load() }

// Put queues val. It returns false and leaves the ring untouched when the
// ring is full; the caller decides whether to spin or drop. Producer only.
func (rb *RingBuffer) Put(val byte) bool {
	h := rb.head.Load()
	next := (h + 1) % uint32(len(rb.buf))
	if next == rb.tail.Load() {
		return false
	}
	rb.buf[h] = val
	rb.head.Store(next) // publish after the data slot is written
	return true
}

// Get removes and returns the oldest byte, or (0, false) when the ring is
// empty. Consumer only.
func (rb *RingBuffer) Get() (byte, bool) {
	t := rb.tail.Load()
	if t == rb.head.Load() {
		return 0, false
	}
	v := rb.buf[t]
	rb.tail.Store((t + 1) % uint32(len(rb.buf))) // publish consumption
	return v, true
}

// Peek returns the oldest byte without consuming it. Consumer only.
func (rb *RingBuffer) Peek() (byte, bool) {
	t := rb.tail.Load()
	if t == rb.head.Load() {
		return 0, false
	}
	return rb.buf[t], true
}

// Discard drops everything currently queued by moving tail up to head.
// Consumer only.
func (rb *RingBuffer) Discard() {
	rb.tail.Store(rb.head.Load())
}

// Clear resets head and tail to zero. It touches both indices, so neither
// side may run concurrently: the caller must hold the peripheral's receiver
// and transmitter in reset or disabled, so the handler can neither produce
// into the rx ring nor drain the tx ring.
func (rb *RingBuffer) Clear() {
	rb.head.Store(0)
	rb.tail.Store(0)
}
