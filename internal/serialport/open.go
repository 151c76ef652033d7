package serialport

import (
	"fmt"

	"go.bug.st/serial"
)

// Open opens the serial device at path. The returned serial.Port satisfies
// TimeoutPort and Drainer.
func Open(path string, opts PortOptions) (serial.Port, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return port, nil
}

// OpenPort adapts Open to the Opener signature.
func OpenPort(path string, opts PortOptions) (Port, error) {
	return Open(path, opts)
}

var (
	_ TimeoutPort = serial.Port(nil)
	_ Drainer     = serial.Port(nil)
	_ Opener      = OpenPort
)
