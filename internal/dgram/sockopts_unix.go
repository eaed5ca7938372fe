//go:build linux || freebsd || openbsd || darwin || netbsd || dragonfly

package dgram

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// socketBufferBytes, when non-zero, is applied to every newly opened
// endpoint's SO_RCVBUF and SO_SNDBUF. It exists so a large congestion
// window doesn't overrun the kernel's default UDP buffers and cause drops
// indistinguishable from emulator-injected loss. Set via SetSocketBufferSize
// before calling Listen.
var socketBufferBytes int

// SetSocketBufferSize configures the SO_RCVBUF/SO_SNDBUF size applied to
// subsequently-opened endpoints. A value of 0 leaves the OS default in place.
func SetSocketBufferSize(bytes int) {
	socketBufferBytes = bytes
}

func tuneSocketBuffers(conn net.PacketConn) error {
	if socketBufferBytes <= 0 {
		return nil
	}
	udp, ok := conn.(*net.UDPConn)
	if !ok {
		return nil
	}
	rawConn, err := udp.SyscallConn()
	if err != nil {
		return fmt.Errorf("dgram: syscall conn: %w", err)
	}

	var sockErr error
	err = rawConn.Control(func(fd uintptr) {
		if e := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, socketBufferBytes); e != nil {
			sockErr = e
			return
		}
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF, socketBufferBytes)
	})
	if err != nil {
		return fmt.Errorf("dgram: control: %w", err)
	}
	return sockErr
}
