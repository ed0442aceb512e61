//go:build !linux

package serial

import "errors"

// ErrRawModeUnsupported is returned by SetRawMode on platforms where this
// package does not know how to reach the tty driver directly.
var ErrRawModeUnsupported = errors.New("serial: raw mode not supported on this platform")

// SetRawMode is a stub for non-Linux builds; see termios_linux.go.
func SetRawMode(fd int) error { return ErrRawModeUnsupported }
