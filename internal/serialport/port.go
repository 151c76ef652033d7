// Package serialport is the byte transport underneath the bridge console: a
// minimal port abstraction, the options used to open a real device through
// go.bug.st/serial, and a controllable test double.
package serialport

import (
	"errors"
	"io"
	"time"
)

// ErrPortClosed is returned by reads and writes on a closed port.
var ErrPortClosed = errors.New("serial port closed")

// Port defines the minimal interface needed for a serial port.
// This abstraction enables unit testing without real serial hardware.
type Port interface {
	io.ReadWriter
	io.Closer
}

// TimeoutPort extends Port with timeout capabilities. A Read on a
// TimeoutPort returns (0, nil) once the timeout expires without data, which
// is how go.bug.st/serial reports an idle line.
type TimeoutPort interface {
	Port
	// SetReadTimeout sets the read timeout for the serial port.
	SetReadTimeout(timeout time.Duration) error
}

// Drainer is implemented by ports that can block until all written bytes
// have left the transmit buffer.
type Drainer interface {
	Drain() error
}

// Opener opens a port at path. It exists so the CLI can be exercised with a
// fake device.
type Opener func(path string, opts PortOptions) (Port, error)
