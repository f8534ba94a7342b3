package host

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jangala-dev/tinygo-serialx/serialx"
)

var log = slog.Default().With("component", "host")

// SetLogger replaces the package logger.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	log = l.With("component", "host")
}

// DefaultTouchHold is how long Touch keeps the port open at the bootloader
// rate. The board only needs to see the line coding; the hold gives slow
// stacks time to deliver it before the close.
const DefaultTouchHold = 250 * time.Millisecond

// Touch asks the board behind device to reboot into its bootloader by opening
// the port at serialx.BootloaderBaud, holding it for hold and closing it. The
// board drops off the bus shortly after, so the device node usually vanishes.
func Touch(device string, hold time.Duration) error {
	p, err := Open(Config{Device: device, Baud: serialx.BootloaderBaud})
	if err != nil {
		return fmt.Errorf("touch: %w", err)
	}
	log.Info("touch", "device", device, "baud", serialx.BootloaderBaud, "hold", hold)
	if hold > 0 {
		time.Sleep(hold)
	}
	if err := p.Close(); err != nil {
		return fmt.Errorf("touch: close %s: %w", device, err)
	}
	return nil
}
