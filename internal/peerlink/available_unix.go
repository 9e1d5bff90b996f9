//go:build linux || darwin

package peerlink

import (
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// available returns the number of bytes queued in the socket receive buffer.
// inqRequest is the per-platform ioctl that reports it (TIOCINQ, FIONREAD).
func available(conn net.Conn) (int, error) {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return 0, nil
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return 0, err
	}

	var (
		pending  int
		ioctlErr error
	)
	if err := raw.Control(func(fd uintptr) {
		pending, ioctlErr = unix.IoctlGetInt(int(fd), inqRequest)
	}); err != nil {
		return 0, err
	}
	return pending, ioctlErr
}
