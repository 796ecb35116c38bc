// Package transport implements the asynchronous network transport family
// from spec.md §4.6: a TCP client and server, and three UDP transports
// (client, server, and peer) plus UDP multicast. Every transport exposes an
// event stream of incoming decoded packets, a lifecycle of explicit
// start/connect and stop/disconnect, and the rule that malformed datagrams
// or frames are dropped silently at the ingress boundary (spec.md §7).
//
// Each transport is an isolated state container: its methods are safe for
// concurrent use, serialized by an internal mutex. TCPServer, which like
// the teacher's Listener accepts a dynamic, unbounded set of connections
// and must wait for all of their goroutines to unwind together, coordinates
// its accept loop and per-connection read loops with golang.org/x/sync/errgroup,
// the way the teacher's Listener.Serve coordinates its reader and worker
// goroutines. The single-connection or single-socket transports (TCPClient,
// the UDP transports) have only one or two goroutines each and coordinate
// them directly with a context.CancelFunc and a sync.Once, where an
// errgroup would add ceremony without adding anything.
package transport

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/lumenstage/osc"
	"github.com/lumenstage/osc/frame"
)

// ErrNotConnected is returned by a TCP client's Send when the connection is
// not in the Connected state.
var ErrNotConnected = errors.New("osc/transport: not connected")

// ErrUnknownSender is returned by UDPServer.Send and UDPPeer.Reply when the
// given SenderEndpoint has no associated per-flow channel.
var ErrUnknownSender = errors.New("osc/transport: unknown sender")

// Framing selects one of the two TCP stream framers from spec.md §4.5.
type Framing int

const (
	// PLH frames with a 4-byte big-endian length header.
	PLH Framing = iota
	// SLIP frames with END/ESC byte-stuffing.
	SLIP
)

func (f Framing) String() string {
	if f == SLIP {
		return "SLIP"
	}
	return "PLH"
}

func frameBytes(f Framing, payload []byte) []byte {
	if f == SLIP {
		return frame.FrameSLIP(payload)
	}
	return frame.FramePLH(payload)
}

// deframer is satisfied by both *frame.PLHDeframer and *frame.SLIPDeframer.
type deframer interface {
	Feed(chunk []byte) [][]byte
}

func newDeframer(f Framing) deframer {
	if f == SLIP {
		return frame.NewSLIPDeframer()
	}
	return frame.NewPLHDeframer()
}

// SenderEndpoint identifies the remote host/port of an incoming UDP
// datagram. It is comparable, so it can be used directly as a map key
// (spec.md §6's "supports value equality and hashing").
type SenderEndpoint struct {
	Host string
	Port int
}

func endpointOf(addr net.Addr) (SenderEndpoint, error) {
	host, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		return SenderEndpoint{}, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return SenderEndpoint{}, err
	}
	return SenderEndpoint{Host: host, Port: port}, nil
}

func (s SenderEndpoint) String() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

func (s SenderEndpoint) udpAddr() (*net.UDPAddr, error) {
	return net.ResolveUDPAddr("udp", s.String())
}

// decodeOrDrop decodes buf and reports whether a packet was produced. A
// decode failure is swallowed: the OSC convention is to drop malformed
// datagrams/frames silently rather than surface them to the consumer or
// tear down the connection (spec.md §7).
func decodeOrDrop(buf []byte) (osc.Packet, bool) {
	pkt, err := osc.Decode(buf)
	if err != nil {
		return nil, false
	}
	return pkt, true
}

func hostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

func portOf(addr net.Addr) int {
	switch a := addr.(type) {
	case *net.TCPAddr:
		return a.Port
	case *net.UDPAddr:
		return a.Port
	default:
		_, p, err := net.SplitHostPort(addr.String())
		if err != nil {
			return 0
		}
		n, _ := strconv.Atoi(p)
		return n
	}
}

func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("osc/transport: %s: %w", op, err)
}

// Option configures a transport's buffering at construction time, in the
// style of kward-go-osc's serverOptions: a private options struct mutated
// by a chain of opts before the transport's channels are created.
type Option func(*options)

type options struct {
	bufferSize int
	broadcast  bool
}

// WithBufferSize overrides a transport's default channel buffer capacity
// for its incoming packets (for UDPServer and UDPPeer, the capacity of each
// per-flow channel). State, connection-event and new-flow channels keep
// their fixed capacities. Panics
// are never used for bad input here; a non-positive size is ignored and
// the transport's default is kept.
func WithBufferSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.bufferSize = n
		}
	}
}

// WithBroadcast turns on a UDPClient's broadcast mode (spec.md §4.6.3): the
// socket gets SO_REUSEADDR/SO_REUSEPORT and SO_BROADCAST so it can both
// share its local endpoint with other sockets and target broadcast
// addresses. Off by default; every other transport ignores this option.
func WithBroadcast() Option {
	return func(o *options) {
		o.broadcast = true
	}
}

func resolveOptions(defaultBufferSize int, opts []Option) options {
	o := options{bufferSize: defaultBufferSize}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
