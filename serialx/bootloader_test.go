package serialx_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jangala-dev/tinygo-serialx/serialx"
	"github.com/jangala-dev/tinygo-serialx/serialx/sim"
)

func newTestBoot() (*serialx.USBSerial, *sim.CDC, *sim.Boot, *sim.Trace) {
	tr := &sim.Trace{}
	cdc := sim.NewCDC()
	cdc.Trace = tr
	boot := &sim.Boot{Trace: tr}
	s := serialx.NewUSBSerial(cdc, serialx.NewBootloader(boot, cdc))
	s.CDCEnable(0)
	return s, cdc, boot, tr
}

func TestBootloader_TouchRunsSequenceInOrder(t *testing.T) {
	s, cdc, boot, tr := newTestBoot()

	s.CDCSetLineCoding(0, serialx.LineCoding{DTERate: serialx.BootloaderBaud, DataBits: 8})

	require.Equal(t, []string{
		fmt.Sprintf("magic 0x%08x", serialx.DoubleTapMagic),
		"detach",
		"reset 0xa5000005",
	}, tr.Events())
	require.Equal(t, serialx.DoubleTapMagic, boot.Magic())
	require.Equal(t, uint32(0xA5000005), boot.ResetWord())
	require.True(t, cdc.Detached())
}

func TestBootloader_OtherRatesIgnored(t *testing.T) {
	for _, rate := range []uint32{0, 300, 1199, 1201, 2400, 9600, 115200} {
		t.Run(fmt.Sprint(rate), func(t *testing.T) {
			s, cdc, _, tr := newTestBoot()
			s.CDCSetLineCoding(0, serialx.LineCoding{DTERate: rate, DataBits: 8})
			require.Empty(t, tr.Events())
			require.False(t, cdc.Detached())
			require.Equal(t, rate, s.BaudRate())
		})
	}
}

func TestBootloader_FiresOnce(t *testing.T) {
	tr := &sim.Trace{}
	b := serialx.NewBootloader(&sim.Boot{Trace: tr}, nil)

	require.False(t, b.Fired())
	require.True(t, b.Observe(serialx.BootloaderBaud))
	require.True(t, b.Fired())
	require.False(t, b.Observe(serialx.BootloaderBaud))
	require.False(t, b.Enter())

	// no link: magic and reset only
	require.Equal(t, []string{"magic 0x07738135", "reset 0xa5000005"}, tr.Events())
}

func TestBootloader_AfterOtherRate(t *testing.T) {
	s, _, _, tr := newTestBoot()
	s.CDCSetLineCoding(0, serialx.LineCoding{DTERate: 115200})
	s.CDCSetLineCoding(0, serialx.LineCoding{DTERate: 1200})
	require.Len(t, tr.Events(), 3)
	require.Equal(t, uint32(1200), s.BaudRate())
}
