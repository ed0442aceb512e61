// Package serial opens the physical byte-stream device (a CDC virtual
// serial port, typically) that internal/transport.SerialStream reads and
// writes asynchronously.
package serial

import (
	"time"

	"github.com/tarm/serial"
)

// Port abstracts tarm/serial for testability.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// fdPort is implemented by ports that can hand back a raw file descriptor
// for SetRawMode. tarm/serial's *serial.Port does not currently expose one;
// Open degrades gracefully (raw-mode configuration is skipped) when it
// doesn't, since most CDC-ACM drivers deliver bytes untouched regardless.
type fdPort interface {
	Fd() uintptr
}

// Open opens name at the given baud rate with readTimeout applied to each
// Read call, and attempts to force the device into raw tty mode.
func Open(name string, baud int, readTimeout time.Duration) (Port, error) {
	cfg := &serial.Config{Name: name, Baud: baud, ReadTimeout: readTimeout}
	p, err := serial.OpenPort(cfg)
	if err != nil {
		return nil, err
	}
	if fp, ok := any(p).(fdPort); ok {
		_ = SetRawMode(int(fp.Fd()))
	}
	return p, nil
}
