package serialx_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jangala-dev/tinygo-serialx/serialx"
	"github.com/jangala-dev/tinygo-serialx/serialx/sim"
)

func newTestUSB(t *testing.T) (*serialx.USBSerial, *sim.CDC) {
	t.Helper()
	cdc := sim.NewCDC()
	s := serialx.NewUSBSerial(cdc, nil)
	require.NoError(t, s.Begin(0))
	return s, cdc
}

func TestUSB_DisconnectedHidesInput(t *testing.T) {
	s, cdc := newTestUSB(t)
	cdc.HostSend([]byte("early"))

	require.False(t, s.Connected())
	require.Zero(t, s.Available())
	_, err := s.Peek()
	require.ErrorIs(t, err, serialx.ErrBufferEmpty)
	_, err = s.ReadByte()
	require.ErrorIs(t, err, serialx.ErrBufferEmpty)
	n, err := s.Read(make([]byte, 8))
	require.NoError(t, err)
	require.Zero(t, n)

	require.True(t, s.CDCEnable(0))
	require.Equal(t, 5, s.Available())
	buf := make([]byte, 8)
	n, _ = s.Read(buf)
	require.Equal(t, "early", string(buf[:n]))
}

func TestUSB_DisconnectedDropsOutput(t *testing.T) {
	s, cdc := newTestUSB(t)

	require.NoError(t, s.WriteByte('x'))
	require.Zero(t, s.TryWrite([]byte("abc")))
	n, err := s.Write([]byte("abc"))
	require.ErrorIs(t, err, serialx.ErrNotConnected)
	require.Zero(t, n)
	require.Zero(t, s.CanWrite())
	require.Empty(t, cdc.HostTake())
}

func TestUSB_PeekLookahead(t *testing.T) {
	s, cdc := newTestUSB(t)
	s.CDCEnable(0)
	cdc.HostSend([]byte("ab"))

	for i := 0; i < 3; i++ {
		c, err := s.Peek()
		require.NoError(t, err)
		require.Equal(t, byte('a'), c)
	}
	require.Equal(t, 2, s.Available(), "lookahead byte still counts")

	c, err := s.ReadByte()
	require.NoError(t, err)
	require.Equal(t, byte('a'), c)
	c, err = s.ReadByte()
	require.NoError(t, err)
	require.Equal(t, byte('b'), c)
	_, err = s.Peek()
	require.ErrorIs(t, err, serialx.ErrBufferEmpty)
}

func TestUSB_LookaheadDroppedOnDisconnect(t *testing.T) {
	s, cdc := newTestUSB(t)
	s.CDCEnable(0)
	cdc.HostSend([]byte("ab"))
	_, err := s.Peek()
	require.NoError(t, err)

	s.CDCDisable(0)
	require.Zero(t, s.Available())

	s.CDCEnable(0)
	require.Equal(t, 1, s.Available())
	c, err := s.ReadByte()
	require.NoError(t, err)
	require.Equal(t, byte('b'), c)
}

func TestUSB_LookaheadDroppedOnReconnectBetweenPolls(t *testing.T) {
	s, cdc := newTestUSB(t)
	s.CDCEnable(0)
	cdc.HostSend([]byte("old"))
	c, err := s.Peek()
	require.NoError(t, err)
	require.Equal(t, byte('o'), c)

	// The host goes away and comes back before the foreground looks again.
	s.CDCDisable(0)
	s.CDCEnable(0)

	c, err = s.ReadByte()
	require.NoError(t, err)
	require.Equal(t, byte('l'), c, "byte peeked in the old session must not be delivered")
	require.Equal(t, 1, s.Available())
}

func TestUSB_TryWriteReportsPartial(t *testing.T) {
	s, cdc := newTestUSB(t)
	s.CDCEnable(0)
	cdc.AcceptLimit = 3

	msg := []byte("abcdefgh")
	require.Equal(t, 3, s.TryWrite(msg))

	n, err := s.Write(msg)
	require.ErrorIs(t, err, io.ErrShortWrite)
	require.Equal(t, 3, n)
	require.Equal(t, []byte("abcabc"), cdc.HostTake())

	cdc.AcceptLimit = 0
	n, err = s.Write(msg)
	require.NoError(t, err)
	require.Equal(t, len(msg), n)
	require.Equal(t, msg, cdc.HostTake())
}

func TestUSB_TryWriteBoundedByStackSpace(t *testing.T) {
	s, cdc := newTestUSB(t)
	s.CDCEnable(0)
	cdc.TxCapacity = 4

	require.Equal(t, 4, s.TryWrite([]byte("abcdef")))
	require.Zero(t, s.CanWrite())
	require.Zero(t, s.TryWrite([]byte("g")))
}

func TestUSB_WriteByteAlwaysSucceeds(t *testing.T) {
	s, cdc := newTestUSB(t)
	s.CDCEnable(0)
	cdc.TxCapacity = 1

	require.NoError(t, s.WriteByte('a'))
	require.NoError(t, s.WriteByte('b'))
	require.Equal(t, []byte("a"), cdc.HostTake())
	require.Equal(t, 1, cdc.Dropped())
}

func TestUSB_FlushUsesLearnedBufferSize(t *testing.T) {
	s, cdc := newTestUSB(t)
	s.CDCEnable(0)

	// Before the first tx-empty notification any free space satisfies Flush.
	require.Equal(t, 3, s.TryWrite([]byte("abc")))
	require.NoError(t, s.Flush())
	cdc.HostTake()

	s.CDCTxEmptyNotify(0)
	s.TryWrite([]byte("xyz"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, s.FlushContext(ctx), context.DeadlineExceeded)

	go func() {
		time.Sleep(10 * time.Millisecond)
		cdc.HostTake()
	}()
	require.NoError(t, s.Flush())
	require.Equal(t, sim.DefaultTxCapacity, s.CanWrite())
}

func TestUSB_FlushDisconnectedReturns(t *testing.T) {
	s, cdc := newTestUSB(t)
	s.CDCEnable(0)
	s.CDCTxEmptyNotify(0)
	s.TryWrite([]byte("stuck"))
	s.CDCDisable(0)

	require.NoError(t, s.Flush())
	require.Equal(t, []byte("stuck"), cdc.HostTake())
}

func TestUSB_EndDisconnects(t *testing.T) {
	s, cdc := newTestUSB(t)
	s.CDCEnable(0)
	cdc.HostSend([]byte("q"))
	require.NoError(t, s.End())
	require.False(t, s.Connected())
	require.Zero(t, s.Available())
}

func TestUSB_LineCodingRecordsRate(t *testing.T) {
	s, _ := newTestUSB(t)
	s.CDCSetLineCoding(0, serialx.LineCoding{DTERate: 9600, DataBits: 8})
	require.Equal(t, uint32(9600), s.BaudRate())
}
