package sim

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jangala-dev/tinygo-serialx/serialx"
)

func enabledUSART() *USART {
	u := NewUSART()
	u.Control(serialx.ControlRxEnable | serialx.ControlTxEnable)
	return u
}

func TestUSART_HoldingAndShift(t *testing.T) {
	u := enabledUSART()
	require.NotZero(t, u.Status()&serialx.EventTxEmpty)

	u.TransmitHolding('a')
	s := u.Status()
	require.NotZero(t, s&serialx.EventTxReady, "byte moved straight to the shifter")
	require.Zero(t, s&serialx.EventTxEmpty)

	u.TransmitHolding('b')
	require.Zero(t, u.Status()&serialx.EventTxReady)

	u.Tick()
	require.Equal(t, []byte("a"), u.Wire())
	require.NotZero(t, u.Status()&serialx.EventTxReady)
	u.Tick()
	require.Equal(t, []byte("ab"), u.Wire())
	require.NotZero(t, u.Status()&serialx.EventTxEmpty)
	require.Zero(t, u.Overwritten())
}

func TestUSART_EmptyDelay(t *testing.T) {
	u := enabledUSART()
	u.EmptyDelay = 2
	u.TransmitHolding('x')
	u.Tick()
	require.Zero(t, u.Status()&serialx.EventTxEmpty)
	u.Tick()
	require.Zero(t, u.Status()&serialx.EventTxEmpty)
	u.Tick()
	require.NotZero(t, u.Status()&serialx.EventTxEmpty)
}

func TestUSART_OverwriteCounted(t *testing.T) {
	u := enabledUSART()
	u.TransmitHolding(1)
	u.TransmitHolding(2)
	u.TransmitHolding(3)
	require.Equal(t, 1, u.Overwritten())
}

func TestUSART_ReceiveOverrun(t *testing.T) {
	u := enabledUSART()
	u.Inject('a')
	require.Equal(t, serialx.EventRxReady, u.Status()&(serialx.EventRxReady|serialx.EventOverrun))
	u.Inject('b')
	require.NotZero(t, u.Status()&serialx.EventOverrun)
	require.Equal(t, byte('b'), u.ReceiveHolding())
	require.Zero(t, u.Status()&serialx.EventRxReady)

	u.Control(serialx.ControlResetStatus)
	require.Zero(t, u.Status()&serialx.EventOverrun)
}

func TestUSART_DisabledReceiverIgnoresLine(t *testing.T) {
	u := NewUSART()
	u.Inject('a')
	require.Zero(t, u.Status()&serialx.EventRxReady)
}

func TestIRQ_ServiceOnlyWhenEnabledAndPending(t *testing.T) {
	b := NewBoard(1)
	calls := 0
	b.IRQ.Register(handlerFunc(func() {
		calls++
		b.USART.ReceiveHolding()
	}))
	b.USART.Control(serialx.ControlRxEnable)
	b.USART.EnableInterrupts(serialx.EventRxReady)

	b.USART.Inject('a')
	require.False(t, b.IRQ.Service(), "line disabled")

	b.IRQ.Enable()
	require.True(t, b.IRQ.Service())
	require.Equal(t, 1, calls)
	require.False(t, b.IRQ.Service(), "nothing pending")
}

type handlerFunc func()

func (f handlerFunc) HandleInterrupt() { f() }
