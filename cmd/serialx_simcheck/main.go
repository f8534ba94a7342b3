// Command serialx_simcheck runs the serialx transports against the simulated
// peripherals and prints a pass/fail summary. It exercises the same paths as
// the on-target self-tests without a board.
package main

import (
	"bytes"
	"context"
	"crypto/sha1"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jangala-dev/tinygo-serialx/serialx"
	"github.com/jangala-dev/tinygo-serialx/serialx/sim"
)

const usartID = 14

func drain(u *serialx.UART) {
	var tmp [64]byte
	for {
		if n, _ := u.Read(tmp[:]); n == 0 {
			return
		}
	}
}

// loopback sends p through a looped-back line in chunks the rx ring can hold
// and returns what came back.
func loopback(ctx context.Context, u *serialx.UART, p []byte, chunk int) ([]byte, error) {
	out := make([]byte, 0, len(p))
	var buf [128]byte
	for off := 0; off < len(p); off += chunk {
		end := min(off+chunk, len(p))
		if _, err := u.WriteContext(ctx, p[off:end]); err != nil {
			return out, err
		}
		if err := u.FlushContext(ctx); err != nil {
			return out, err
		}
		for {
			n, _ := u.Read(buf[:])
			if n == 0 {
				break
			}
			out = append(out, buf[:n]...)
		}
	}
	return out, nil
}

func pattern(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(i*31 + i>>8)
	}
	return p
}

func main() {
	verbose := flag.Bool("v", false, "log driver lifecycle")
	size := flag.Int("size", 16384, "bytes for the integrity test")
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	serialx.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	fmt.Println("serialx sim check starting")

	pass, fail := 0, 0
	run := func(name string, f func() string) {
		fmt.Println()
		fmt.Println("[Test]", name)
		if msg := f(); msg == "" {
			fmt.Println("  PASS")
			pass++
		} else {
			fmt.Println("  FAIL:", msg)
			fail++
		}
	}

	run("uart: short loopback", func() string {
		b := sim.NewBoard(usartID)
		b.USART.Loopback = true
		u := b.NewUART()
		if err := u.Begin(115200); err != nil {
			return err.Error()
		}
		msg := []byte("hello, serialx\r\n")
		if _, err := u.Write(msg); err != nil {
			return "write failed"
		}
		if err := u.Flush(); err != nil {
			return "flush failed"
		}
		got := make([]byte, 64)
		n, _ := u.Read(got)
		if !bytes.Equal(got[:n], msg) {
			return fmt.Sprintf("echo mismatch: %q", got[:n])
		}
		return ""
	})

	run(fmt.Sprintf("uart: integrity %d bytes (sha1)", *size), func() string {
		b := sim.NewBoard(usartID)
		b.USART.Loopback = true
		b.USART.EmptyDelay = 2
		u := b.NewUART()
		if err := u.Begin(921600); err != nil {
			return err.Error()
		}
		drain(u)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		data := pattern(*size)
		got, err := loopback(ctx, u, data, serialx.BufferSize/2)
		if err != nil {
			return err.Error()
		}
		want, have := sha1.Sum(data), sha1.Sum(got)
		if want != have {
			return fmt.Sprintf("hash mismatch: sent %d got %d", len(data), len(got))
		}
		st := u.Stats()
		fmt.Printf("  isr=%d tx=%d direct=%d rx=%d\n", st.ISRCount, st.TxBytes, st.DirectWrites, st.RxBytes)
		if st.RxDropped != 0 || b.USART.Overwritten() != 0 {
			return "bytes lost"
		}
		return ""
	})

	run("uart: rx overload drops newest bytes", func() string {
		b := sim.NewBoard(usartID)
		u := b.NewUART()
		if err := u.Begin(115200); err != nil {
			return err.Error()
		}
		const burst = 3 * serialx.BufferSize
		for i := 0; i < burst; i++ {
			b.USART.Inject(byte(i))
			b.IRQ.Service()
		}
		st := u.Stats()
		if u.Available() != serialx.BufferSize-1 {
			return fmt.Sprintf("available=%d", u.Available())
		}
		if int(st.RxDropped) != burst-(serialx.BufferSize-1) {
			return fmt.Sprintf("dropped=%d", st.RxDropped)
		}
		c, _ := u.ReadByte()
		if c != 0 {
			return "oldest byte lost"
		}
		return ""
	})

	run("uart: flush bounded by context with interrupt off", func() string {
		b := sim.NewBoard(usartID)
		u := b.NewUART()
		if err := u.Begin(115200); err != nil {
			return err.Error()
		}
		b.IRQ.Disable()
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		if _, err := u.WriteContext(ctx, pattern(4*serialx.BufferSize)); err != context.DeadlineExceeded {
			return fmt.Sprintf("write err=%v", err)
		}
		if err := u.FlushContext(ctx); err != context.DeadlineExceeded {
			return fmt.Sprintf("flush err=%v", err)
		}
		return ""
	})

	run("usb: gated on connection", func() string {
		cdc := sim.NewCDC()
		s := serialx.NewUSBSerial(cdc, nil)
		cdc.HostSend([]byte("hi"))
		if s.Available() != 0 {
			return "data visible while disconnected"
		}
		s.CDCEnable(0)
		if s.Available() != 2 {
			return "data hidden while connected"
		}
		cdc.AcceptLimit = 1
		if n := s.TryWrite([]byte("ok")); n != 1 {
			return fmt.Sprintf("partial write reported %d", n)
		}
		return ""
	})

	run("usb: 1200 baud touch", func() string {
		tr := &sim.Trace{}
		cdc := sim.NewCDC()
		cdc.Trace = tr
		s := serialx.NewUSBSerial(cdc, serialx.NewBootloader(&sim.Boot{Trace: tr}, cdc))
		s.CDCEnable(0)
		s.CDCSetLineCoding(0, serialx.LineCoding{DTERate: 9600, DataBits: 8})
		if len(tr.Events()) != 0 {
			return "fired at 9600"
		}
		s.CDCSetLineCoding(0, serialx.LineCoding{DTERate: serialx.BootloaderBaud, DataBits: 8})
		ev := tr.Events()
		if len(ev) != 3 || ev[1] != "detach" {
			return fmt.Sprintf("sequence %q", ev)
		}
		return ""
	})

	fmt.Println()
	fmt.Println("Summary")
	fmt.Println("  passed =", pass)
	fmt.Println("  failed =", fail)
	if fail != 0 {
		os.Exit(1)
	}
}
