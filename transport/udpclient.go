package transport

import (
	"context"
	"net"
	"sync"

	"github.com/lumenstage/osc"
)

// UDPClient sends datagrams to a fixed remote host:port and listens for
// replies on the same locally-bound socket. The socket is created lazily,
// on the first Send or explicit Connect, not at construction (spec.md
// §4.6.3). Broadcast mode (WithBroadcast, off by default) additionally
// enables local-endpoint reuse and lets host:port name a broadcast address.
type UDPClient struct {
	host      string
	port      int
	broadcast bool

	mu    sync.Mutex
	conn  *net.UDPConn
	raddr *net.UDPAddr // only set in broadcast mode, where conn isn't Dial-connected

	incoming  chan osc.Packet
	closeOnce sync.Once
}

// NewUDPClient constructs a client targeting host:port. WithBufferSize
// overrides the default incoming-packet channel capacity; WithBroadcast
// turns on broadcast mode.
func NewUDPClient(host string, port int, opts ...Option) *UDPClient {
	o := resolveOptions(64, opts)
	return &UDPClient{
		host:      host,
		port:      port,
		broadcast: o.broadcast,
		incoming:  make(chan osc.Packet, o.bufferSize),
	}
}

// Incoming returns the stream of decoded packets received as replies. It
// closes when the client is closed.
func (c *UDPClient) Incoming() <-chan osc.Packet { return c.incoming }

// Connect eagerly creates the underlying socket rather than waiting for
// the first Send. It is a no-op if the socket already exists.
func (c *UDPClient) Connect() error {
	_, err := c.ensureConn()
	return err
}

func (c *UDPClient) ensureConn() (*net.UDPConn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn, nil
	}
	raddr, err := net.ResolveUDPAddr("udp4", hostPort(c.host, c.port))
	if err != nil {
		return nil, wrapErr("resolve", err)
	}

	var conn *net.UDPConn
	if c.broadcast {
		pc, err := reusableListenConfig().ListenPacket(context.Background(), "udp4", ":0")
		if err != nil {
			return nil, wrapErr("listen", err)
		}
		conn = pc.(*net.UDPConn)
		if err := setBroadcast(conn); err != nil {
			conn.Close()
			return nil, wrapErr("set-broadcast", err)
		}
		c.raddr = raddr
	} else {
		conn, err = net.DialUDP("udp", nil, raddr)
		if err != nil {
			return nil, wrapErr("dial", err)
		}
	}
	c.conn = conn
	go c.readLoop(conn)
	return conn, nil
}

func (c *UDPClient) readLoop(conn *net.UDPConn) {
	buf := make([]byte, 65535)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			if pkt, ok := decodeOrDrop(buf[:n]); ok {
				select {
				case c.incoming <- pkt:
				default:
				}
			}
		}
		if err != nil {
			break
		}
	}
	c.closeOnce.Do(func() { close(c.incoming) })
}

// Send encodes and writes pkt to the client's remote endpoint, creating the
// socket on first use. In broadcast mode the remote endpoint may be a
// broadcast address (e.g. 255.255.255.255).
func (c *UDPClient) Send(pkt osc.Packet) error {
	conn, err := c.ensureConn()
	if err != nil {
		return err
	}
	enc, err := osc.Encode(pkt)
	if err != nil {
		return err
	}
	c.mu.Lock()
	broadcast, raddr := c.broadcast, c.raddr
	c.mu.Unlock()
	if broadcast {
		_, err = conn.WriteToUDP(enc, raddr)
	} else {
		_, err = conn.Write(enc)
	}
	return wrapErr("send", err)
}

// Close releases the underlying socket, if one was created.
func (c *UDPClient) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		c.closeOnce.Do(func() { close(c.incoming) })
		return nil
	}
	return conn.Close()
}
