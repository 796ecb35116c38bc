// Package osc implements Open Sound Control (OSC) 1.0 end-to-end: a binary
// codec for messages and bundles, a wildcard pattern matcher (osc/pattern),
// a dispatching address-space registry (osc/dispatch), two TCP stream
// framers (osc/frame), and a family of asynchronous network transports
// (osc/transport).
//
// See https://ccrma.stanford.edu/groups/osc/spec-1_0.html for the wire
// format this package implements.
package osc

import (
	"net"
	"sync"
)

// bufPool amortizes the allocation of the scratch buffers Send uses when
// building outgoing packets.
var bufPool = sync.Pool{
	New: func() any {
		b := make([]byte, 0, 1024)
		return &b
	},
}

func getBuf() []byte {
	b := bufPool.Get().(*[]byte)
	return (*b)[:0]
}

func putBuf(b []byte) {
	bufPool.Put(&b)
}

// Send builds a message from pattern and args and writes it as a single
// datagram to addr over conn. It is a thin convenience wrapper; transports
// in osc/transport provide the full asynchronous lifecycle.
func Send(conn net.PacketConn, addr, pattern string, args ...Argument) error {
	nAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return err
	}
	msg, err := NewMessage(pattern, args...)
	if err != nil {
		return err
	}
	b := getBuf()
	b, err = msg.Append(b)
	if err != nil {
		putBuf(b)
		return err
	}
	_, err = conn.WriteTo(b, nAddr)
	putBuf(b)
	return err
}
