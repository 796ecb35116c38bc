package transport

import (
	"net"
	"sync"

	"github.com/lumenstage/osc"
)

// UDPServer listens on a single UDP socket and demultiplexes incoming
// datagrams into one channel per sending endpoint (spec.md §4.6.4). A flow
// is created the first time a SenderEndpoint is observed and persists
// until explicitly Forgotten or the server Stops — there is no automatic
// expiry (an explicit Open Question in spec.md §9, resolved here in favor
// of caller-driven lifecycle: a UI or application layer usually knows
// better than a fixed timeout when a peer is gone).
type UDPServer struct {
	mu         sync.Mutex
	conn       *net.UDPConn
	flows      map[SenderEndpoint]chan osc.Packet
	newFlows   chan SenderEndpoint
	flowBuffer int

	closeOnce sync.Once
	stopped   bool
}

// NewUDPServer constructs an unstarted server. WithBufferSize overrides
// the default per-flow channel capacity.
func NewUDPServer(opts ...Option) *UDPServer {
	o := resolveOptions(64, opts)
	return &UDPServer{
		flows:      make(map[SenderEndpoint]chan osc.Packet),
		newFlows:   make(chan SenderEndpoint, 64),
		flowBuffer: o.bufferSize,
	}
}

// Start binds host:port (port 0 for an ephemeral port) and begins reading
// datagrams, returning the bound port.
func (s *UDPServer) Start(host string, port int) (int, error) {
	addr, err := net.ResolveUDPAddr("udp", hostPort(host, port))
	if err != nil {
		return 0, wrapErr("resolve", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return 0, wrapErr("listen", err)
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	go s.readLoop(conn)
	return portOf(conn.LocalAddr()), nil
}

// NewFlows reports each SenderEndpoint the first time a datagram arrives
// from it. Use Flow to obtain that endpoint's packet stream.
func (s *UDPServer) NewFlows() <-chan SenderEndpoint { return s.newFlows }

// Flow returns the channel of decoded packets received from endpoint, and
// whether that flow currently exists.
func (s *UDPServer) Flow(endpoint SenderEndpoint) (<-chan osc.Packet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.flows[endpoint]
	return ch, ok
}

func (s *UDPServer) readLoop(conn *net.UDPConn) {
	buf := make([]byte, 65535)
	for {
		n, addr, err := conn.ReadFromUDP(buf)
		if n > 0 {
			s.dispatch(addr, buf[:n])
		}
		if err != nil {
			break
		}
	}
	s.Stop()
}

func (s *UDPServer) dispatch(addr *net.UDPAddr, buf []byte) {
	pkt, ok := decodeOrDrop(buf)
	if !ok {
		return
	}
	endpoint, err := endpointOf(addr)
	if err != nil {
		return
	}

	s.mu.Lock()
	ch, exists := s.flows[endpoint]
	if !exists {
		ch = make(chan osc.Packet, s.flowBuffer)
		s.flows[endpoint] = ch
	}
	s.mu.Unlock()

	if !exists {
		select {
		case s.newFlows <- endpoint:
		default:
		}
	}
	select {
	case ch <- pkt:
	default:
	}
}

// Send writes pkt to a known sender's endpoint. It fails with
// ErrUnknownSender unless a flow for that endpoint already exists.
func (s *UDPServer) Send(pkt osc.Packet, to SenderEndpoint) error {
	s.mu.Lock()
	conn := s.conn
	_, ok := s.flows[to]
	s.mu.Unlock()
	if !ok {
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

// Forget closes and removes the flow for endpoint. Idempotent.
func (s *UDPServer) Forget(endpoint SenderEndpoint) {
	s.mu.Lock()
	ch, ok := s.flows[endpoint]
	if ok {
		delete(s.flows, endpoint)
	}
	s.mu.Unlock()
	if ok {
		close(ch)
	}
}

// Stop closes the socket and every flow channel. Idempotent.
func (s *UDPServer) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	conn := s.conn
	flows := s.flows
	s.flows = make(map[SenderEndpoint]chan osc.Packet)
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	for _, ch := range flows {
		close(ch)
	}
	s.closeOnce.Do(func() { close(s.newFlows) })
}
