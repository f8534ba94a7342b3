// Command serialx_touch reboots a board into its bootloader with a 1200 baud
// touch on its USB serial port.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/jangala-dev/tinygo-serialx/host"
)

func main() {
	device := flag.String("device", "/dev/ttyACM0", "serial device of the board")
	hold := flag.Duration("hold", host.DefaultTouchHold, "how long to keep the port open")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	host.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := host.Touch(*device, *hold); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("touched %s; board should re-enumerate in its bootloader\n", *device)
}
