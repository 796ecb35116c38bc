package transport

import (
	"context"
	"net"
	"sync"

	"golang.org/x/net/ipv4"

	"github.com/lumenstage/osc"
)

// UDPMulticast sends and receives OSC packets on an IPv4 multicast group
// (spec.md §4.6.6). Multicast loopback — receiving datagrams this process
// itself sent — is enabled by default, matching the common OSC use case of
// multiple local processes sharing one group.
type UDPMulticast struct {
	mu    sync.Mutex
	conn  *net.UDPConn
	pconn *ipv4.PacketConn
	group *net.UDPAddr
	iface *net.Interface

	incoming  chan osc.Packet
	closeOnce sync.Once
}

// NewUDPMulticast constructs an unjoined multicast transport.
// WithBufferSize overrides the default incoming-packet channel capacity.
func NewUDPMulticast(opts ...Option) *UDPMulticast {
	o := resolveOptions(64, opts)
	return &UDPMulticast{incoming: make(chan osc.Packet, o.bufferSize)}
}

// Incoming returns the stream of decoded packets received on the group,
// including this process's own sends (loopback is on by default).
func (m *UDPMulticast) Incoming() <-chan osc.Packet { return m.incoming }

// Join binds port on every interface, with local-endpoint reuse enabled so
// another process can join the same group on this host, and joins the
// given multicast group. iface may be nil to let the kernel choose the
// outbound interface. It awaits a ready state (group joined, loopback
// configured) before returning, per spec.md §4.6.6, which names three
// distinguishable outcomes: outright failure, waiting-with-error (treated
// as failure), and cancellation via ctx.
func (m *UDPMulticast) Join(ctx context.Context, iface *net.Interface, group string, port int) error {
	groupAddr, err := net.ResolveUDPAddr("udp", hostPort(group, port))
	if err != nil {
		return wrapErr("resolve", err)
	}

	type joined struct {
		conn  *net.UDPConn
		pconn *ipv4.PacketConn
		err   error
	}
	done := make(chan joined, 1)
	go func() {
		pc, err := reusableListenConfig().ListenPacket(ctx, "udp", hostPort("", port))
		if err != nil {
			done <- joined{err: wrapErr("listen", err)}
			return
		}
		conn := pc.(*net.UDPConn)
		pconn := ipv4.NewPacketConn(conn)
		if err := pconn.JoinGroup(iface, &net.UDPAddr{IP: groupAddr.IP}); err != nil {
			conn.Close()
			done <- joined{err: wrapErr("join-group", err)}
			return
		}
		if err := pconn.SetMulticastLoopback(true); err != nil {
			conn.Close()
			done <- joined{err: wrapErr("set-loopback", err)}
			return
		}
		done <- joined{conn: conn, pconn: pconn}
	}()

	select {
	case j := <-done:
		if j.err != nil {
			return j.err
		}
		m.mu.Lock()
		m.conn = j.conn
		m.pconn = j.pconn
		m.group = groupAddr
		m.iface = iface
		m.mu.Unlock()

		go m.readLoop(j.conn)
		return nil
	case <-ctx.Done():
		// Cancellation: nothing has been published to m yet, so just
		// reclaim whatever the goroutine ends up setting up.
		go func() {
			if j := <-done; j.conn != nil {
				j.conn.Close()
			}
		}()
		return ctx.Err()
	}
}

func (m *UDPMulticast) readLoop(conn *net.UDPConn) {
	buf := make([]byte, 65535)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if n > 0 {
			if pkt, ok := decodeOrDrop(buf[:n]); ok {
				select {
				case m.incoming <- pkt:
				default:
				}
			}
		}
		if err != nil {
			break
		}
	}
	m.closeOnce.Do(func() { close(m.incoming) })
}

// Send writes pkt to the joined group.
func (m *UDPMulticast) Send(pkt osc.Packet) error {
	m.mu.Lock()
	conn := m.conn
	group := m.group
	m.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	enc, err := osc.Encode(pkt)
	if err != nil {
		return err
	}
	_, err = conn.WriteToUDP(enc, group)
	return wrapErr("send", err)
}

// Leave leaves the multicast group without closing the socket.
func (m *UDPMulticast) Leave() error {
	m.mu.Lock()
	pconn := m.pconn
	group := m.group
	iface := m.iface
	m.mu.Unlock()
	if pconn == nil {
		return nil
	}
	return wrapErr("leave-group", pconn.LeaveGroup(iface, group))
}

// Close leaves the group, if joined, and closes the socket.
func (m *UDPMulticast) Close() error {
	_ = m.Leave()
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		m.closeOnce.Do(func() { close(m.incoming) })
		return nil
	}
	return conn.Close()
}
