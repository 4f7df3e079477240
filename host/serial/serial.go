// Package serial opens the link to the scope firmware. The firmware speaks
// over USB CDC, so the baud rate only matters for UART bridges.
package serial

import (
	"io"
	"time"
)

// Port is an open link to the firmware
type Port interface {
	io.ReadWriteCloser

	// Flush flushes any buffered data
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string

	// Baud rate for UART bridges; USB CDC ignores it
	Baud int

	// Read timeout; reads return io.EOF when it expires with no data
	ReadTimeout time.Duration
}

// DefaultConfig returns the configuration used when none is given
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 100 * time.Millisecond,
	}
}
