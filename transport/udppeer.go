package transport

import (
	"context"
	"net"
	"sync"

	"github.com/lumenstage/osc"
)

// UDPPeer is a bidirectional UDP endpoint: like UDPServer it demultiplexes
// inbound datagrams into one channel per sender, but unlike UDPServer it
// also exposes Send, which writes to any endpoint whether or not it has
// sent anything yet (spec.md §4.6.5's "send(packet, to: host, port)").
// Reply is the other capability spec.md §4.6.5 names — "send(packet, to:
// sender) uses the same per-flow channels as the UDP server" — and so, like
// UDPServer.Send, fails with ErrUnknownSender for an endpoint with no flow.
// Resolved destination addresses are cached so repeated Sends to the same
// peer skip re-resolution.
type UDPPeer struct {
	mu         sync.Mutex
	conn       *net.UDPConn
	flows      map[SenderEndpoint]chan osc.Packet
	newFlows   chan SenderEndpoint
	outCache   map[SenderEndpoint]*net.UDPAddr
	flowBuffer int

	closeOnce sync.Once
	stopped   bool
}

// NewUDPPeer constructs an unstarted peer. WithBufferSize overrides the
// default per-flow channel capacity.
func NewUDPPeer(opts ...Option) *UDPPeer {
	o := resolveOptions(64, opts)
	return &UDPPeer{
		flows:      make(map[SenderEndpoint]chan osc.Packet),
		newFlows:   make(chan SenderEndpoint, 64),
		outCache:   make(map[SenderEndpoint]*net.UDPAddr),
		flowBuffer: o.bufferSize,
	}
}

// Start binds host:port (port 0 for an ephemeral port) and begins reading
// datagrams, returning the bound port. The local endpoint is bound with
// SO_REUSEADDR/SO_REUSEPORT so a second peer can bind the same host:port
// (spec.md §4.6.5: "two peers can coexist on the same host").
func (p *UDPPeer) Start(host string, port int) (int, error) {
	pc, err := reusableListenConfig().ListenPacket(context.Background(), "udp", hostPort(host, port))
	if err != nil {
		return 0, wrapErr("listen", err)
	}
	conn := pc.(*net.UDPConn)
	p.mu.Lock()
	p.conn = conn
	p.mu.Unlock()

	go p.readLoop(conn)
	return portOf(conn.LocalAddr()), nil
}

// NewFlows reports each SenderEndpoint the first time a datagram arrives
// from it.
func (p *UDPPeer) NewFlows() <-chan SenderEndpoint { return p.newFlows }

// Flow returns the channel of decoded packets received from endpoint, and
// whether that flow currently exists.
func (p *UDPPeer) Flow(endpoint SenderEndpoint) (<-chan osc.Packet, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, ok := p.flows[endpoint]
	return ch, ok
}

func (p *UDPPeer) readLoop(conn *net.UDPConn) {
	buf := make([]byte, 65535)
	for {
		n, addr, err := conn.ReadFromUDP(buf)
		if n > 0 {
			p.dispatch(addr, buf[:n])
		}
		if err != nil {
			break
		}
	}
	p.Stop()
}

func (p *UDPPeer) dispatch(addr *net.UDPAddr, buf []byte) {
	pkt, ok := decodeOrDrop(buf)
	if !ok {
		return
	}
	endpoint, err := endpointOf(addr)
	if err != nil {
		return
	}

	p.mu.Lock()
	ch, exists := p.flows[endpoint]
	if !exists {
		ch = make(chan osc.Packet, p.flowBuffer)
		p.flows[endpoint] = ch
	}
	p.mu.Unlock()

	if !exists {
		select {
		case p.newFlows <- endpoint:
		default:
		}
	}
	select {
	case ch <- pkt:
	default:
	}
}

// Send writes pkt to endpoint, which need not have sent anything first.
// The resolved *net.UDPAddr is cached per endpoint.
func (p *UDPPeer) Send(pkt osc.Packet, to SenderEndpoint) error {
	p.mu.Lock()
	conn := p.conn
	addr, cached := p.outCache[to]
	p.mu.Unlock()

	if !cached {
		var err error
		addr, err = to.udpAddr()
		if err != nil {
			return wrapErr("resolve", err)
		}
		p.mu.Lock()
		p.outCache[to] = addr
		p.mu.Unlock()
	}

	enc, err := osc.Encode(pkt)
	if err != nil {
		return err
	}
	_, err = conn.WriteToUDP(enc, addr)
	return wrapErr("send", err)
}

// Reply writes pkt to endpoint, but only if a flow for it already exists —
// i.e. endpoint has sent this peer at least one datagram. It fails with
// ErrUnknownSender otherwise, mirroring UDPServer.Send exactly (spec.md
// §4.6.5).
func (p *UDPPeer) Reply(pkt osc.Packet, to SenderEndpoint) error {
	p.mu.Lock()
	conn := p.conn
	_, known := p.flows[to]
	p.mu.Unlock()
	if !known {
		return ErrUnknownSender
	}

	addr, err := to.udpAddr()
	if err != nil {
		return wrapErr("resolve", err)
	}
	enc, err := osc.Encode(pkt)
	if err != nil {
		return err
	}
	_, err = conn.WriteToUDP(enc, addr)
	return wrapErr("send", err)
}

// Forget closes and removes the flow for endpoint, and drops its cached
// outbound address. Idempotent.
func (p *UDPPeer) Forget(endpoint SenderEndpoint) {
	p.mu.Lock()
	ch, ok := p.flows[endpoint]
	if ok {
		delete(p.flows, endpoint)
	}
	delete(p.outCache, endpoint)
	p.mu.Unlock()
	if ok {
		close(ch)
	}
}

// Stop closes the socket and every flow channel. Idempotent.
func (p *UDPPeer) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	conn := p.conn
	flows := p.flows
	p.flows = make(map[SenderEndpoint]chan osc.Packet)
	p.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	for _, ch := range flows {
		close(ch)
	}
	p.closeOnce.Do(func() { close(p.newFlows) })
}
