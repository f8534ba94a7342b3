// Package host talks to a serialx board from a desktop machine: it opens the
// board's serial port and performs the 1200 baud touch that reboots a board
// into its bootloader.
package host

import "time"

// Config describes a port on the host.
type Config struct {
	Device      string        // e.g. /dev/ttyACM0
	Baud        int           // line rate; ignored by USB CDC devices except for the touch
	ReadTimeout time.Duration // 0 blocks until data arrives
}

// DefaultConfig returns the settings used by the serialx examples.
func DefaultConfig(device string) Config {
	return Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 100 * time.Millisecond,
	}
}

func (c *Config) applyDefaults() {
	if c.Baud == 0 {
		c.Baud = 115200
	}
}
