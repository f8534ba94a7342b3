package serialx

import "context"

// Bounded variants of the blocking UART calls. They poll the same state as
// WriteByte and Flush, yielding between polls, and give up with ctx.Err().
// If the UART interrupt is left disabled they return on the deadline instead
// of spinning forever.

// WriteContext queues p, waiting for tx ring space until ctx is done. It
// returns the number of bytes queued.
func (u *UART) WriteContext(ctx context.Context, p []byte) (int, error) {
	if u.irq.InInterrupt() {
		return 0, ErrInterruptContext
	}
	sent := 0
	for sent < len(p) {
		if n := u.TryWrite(p[sent:]); n > 0 {
			sent += n
			continue
		}
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		u.irq.Yield()
	}
	return sent, nil
}

// FlushContext waits like Flush until ctx is done.
func (u *UART) FlushContext(ctx context.Context) error {
	if u.irq.InInterrupt() {
		return ErrInterruptContext
	}
	for !u.tx.Empty() || u.regs.Status()&EventTxEmpty == 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		u.irq.Yield()
	}
	return nil
}

// WaitReadable blocks until at least one byte is buffered or ctx is done.
func (u *UART) WaitReadable(ctx context.Context) error {
	for {
		if u.rx.Used() > 0 {
			return nil
		}
		select {
		case <-u.notify:
			// coalesced; re-check
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// ReadByteContext blocks for a single byte or until ctx is done.
func (u *UART) ReadByteContext(ctx context.Context) (byte, error) {
	for {
		if b, err := u.ReadByte(); err == nil {
			return b, nil
		}
		if err := u.WaitReadable(ctx); err != nil {
			return 0, err
		}
	}
}

// ReadContext blocks until at least one byte is available, then reads up to
// len(p).
func (u *UART) ReadContext(ctx context.Context, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for {
		if n, _ := u.Read(p); n > 0 {
			return n, nil
		}
		if err := u.WaitReadable(ctx); err != nil {
			return 0, err
		}
	}
}
