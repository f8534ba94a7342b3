package serialx

// Indices returns the raw head and tail.
func (rb *RingBuffer) Indices() (head, tail uint32) {
	return rb.head.Load(), rb.tail.Load()
}
