//go:build linux

package serial

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// SetRawMode forces the named tty into raw mode: no line discipline, no
// echo, no signal characters, 8 data bits, and a minimum read of 1 byte
// with no inter-byte timeout. The endpoint protocol frames its own
// messages; any cooked-mode processing (CR/LF translation, XON/XOFF) would
// corrupt the byte stream the framer expects to see untouched.
//
// tarm/serial already configures baud rate and basic cflags when opening
// the port; SetRawMode covers what it leaves at the driver default. It uses
// golang.org/x/sys/unix to reach past the Go standard library for kernel
// state the stdlib has no portable accessor for.
func SetRawMode(fd int) error {
	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return fmt.Errorf("get termios: %w", err)
	}
	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB
	t.Cflag |= unix.CS8
	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, t); err != nil {
		return fmt.Errorf("set termios: %w", err)
	}
	return nil
}
