//go:build linux

package host

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func init() { SetLogger(slog.New(slog.DiscardHandler)) }

func baudOf(t *testing.T, fd uintptr) uint32 {
	t.Helper()
	tio, err := unix.IoctlGetTermios(int(fd), unix.TCGETS)
	require.NoError(t, err)
	return tio.Cflag & unix.CBAUD
}

func TestOpen_ReadWrite(t *testing.T) {
	master, slave, err := pty.Open()
	require.NoError(t, err)
	t.Cleanup(func() { master.Close(); slave.Close() })

	p, err := Open(DefaultConfig(slave.Name()))
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	require.Equal(t, uint32(unix.B115200), baudOf(t, slave.Fd()))

	_, err = master.Write([]byte("ping"))
	require.NoError(t, err)
	buf := make([]byte, 16)
	got := []byte{}
	deadline := time.Now().Add(time.Second)
	for len(got) < 4 && time.Now().Before(deadline) {
		n, err := p.Read(buf)
		if err != nil && err != io.EOF {
			t.Fatalf("read: %v", err)
		}
		got = append(got, buf[:n]...)
	}
	require.Equal(t, "ping", string(got))

	_, err = p.Write([]byte("pong"))
	require.NoError(t, err)
	n, err := master.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "pong", string(buf[:n]))
	require.NoError(t, p.Flush())
}

func TestOpen_MissingDevice(t *testing.T) {
	_, err := Open(Config{Device: "/dev/does-not-exist-serialx"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "/dev/does-not-exist-serialx")

	_, err = Open(Config{})
	require.ErrorIs(t, err, ErrNoDevice)
}

func TestTouch_SetsBootloaderRate(t *testing.T) {
	master, slave, err := pty.Open()
	require.NoError(t, err)
	t.Cleanup(func() { master.Close(); slave.Close() })

	require.NoError(t, Touch(slave.Name(), 0))
	require.Equal(t, uint32(unix.B1200), baudOf(t, slave.Fd()))
}

func TestTouch_MissingDevice(t *testing.T) {
	err := Touch("/dev/does-not-exist-serialx", 0)
	require.Error(t, err)
	require.Contains(t, err.Error(), "touch")
}

func TestClose_Twice(t *testing.T) {
	master, slave, err := pty.Open()
	require.NoError(t, err)
	t.Cleanup(func() { master.Close(); slave.Close() })

	p, err := Open(Config{Device: slave.Name()})
	require.NoError(t, err)
	require.Equal(t, 115200, p.Config().Baud)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
}
