package transport

import (
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// reusableListenConfig returns a ListenConfig whose Control callback sets
// SO_REUSEADDR and SO_REUSEPORT on the socket before it binds, so that a
// second process (or a second transport in the same process) can bind the
// same local host:port — the "local endpoint reuse" spec.md §4.6.5 and
// §4.6.6 require of UDPPeer and UDPMulticast so that two peers, or a
// sender and a receiver, can coexist on one host.
func reusableListenConfig() *net.ListenConfig {
	return &net.ListenConfig{Control: controlReuseAddr}
}

func controlReuseAddr(_, _ string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
		// SO_REUSEPORT is best-effort: it's not load-bearing on platforms
		// where SO_REUSEADDR alone already permits the rebind.
		_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}

// setBroadcast enables SO_BROADCAST on conn, the socket option a UDP
// datagram needs to target a broadcast address (spec.md §4.6.3's broadcast
// mode).
func setBroadcast(conn *net.UDPConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	err = raw.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}
