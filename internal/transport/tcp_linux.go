//go:build linux

package transport

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// setSocketOpts applies SO_REUSEADDR and TCP_NODELAY to the raw socket
// underneath a dialed or listening connection.
func setSocketOpts(c syscall.RawConn) error {
	var sockErr error

	err := c.Control(func(fd uintptr) {
		intFD := int(fd)

		if err := unix.SetsockoptInt(intFD, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			sockErr = fmt.Errorf("set SO_REUSEADDR: %w", err)
			return
		}
		if err := unix.SetsockoptInt(intFD, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); err != nil {
			sockErr = fmt.Errorf("set TCP_NODELAY: %w", err)
			return
		}
	})
	if err != nil {
		return fmt.Errorf("raw conn control: %w", err)
	}

	return sockErr
}
