package host

import (
	"errors"
	"fmt"

	"github.com/tarm/serial"
)

// ErrNoDevice is returned when a Config names no device.
var ErrNoDevice = errors.New("host: no device given")

// Port is an open serial port on the host.
type Port struct {
	port *serial.Port
	cfg  Config
}

// Open opens the port described by cfg.
func Open(cfg Config) (*Port, error) {
	if cfg.Device == "" {
		return nil, ErrNoDevice
	}
	cfg.applyDefaults()

	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Device, err)
	}
	log.Debug("opened", "device", cfg.Device, "baud", cfg.Baud)
	return &Port{port: port, cfg: cfg}, nil
}

// Config returns the settings the port was opened with.
func (p *Port) Config() Config { return p.cfg }

func (p *Port) Read(b []byte) (int, error) { return p.port.Read(b) }

func (p *Port) Write(b []byte) (int, error) { return p.port.Write(b) }

// Flush is a no-op: Write returns once the kernel has the data.
func (p *Port) Flush() error { return nil }

// Close closes the port. It is safe to call more than once.
func (p *Port) Close() error {
	if p.port == nil {
		return nil
	}
	err := p.port.Close()
	p.port = nil
	return err
}
