package transport

import (
	"context"
	"net"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/lumenstage/osc"
)

// ConnID is a per-connection identifier assigned by a TCPServer, monotonic
// within the lifetime of one server (spec.md §4.6.2).
type ConnID uint64

// TCPServerIncoming pairs a decoded packet with the connection it arrived
// on.
type TCPServerIncoming struct {
	Conn   ConnID
	Packet osc.Packet
}

// ConnEvent reports a connection joining or leaving a TCPServer.
type ConnEvent struct {
	Conn      ConnID
	Connected bool
}

type serverConn struct {
	id   ConnID
	conn net.Conn
	mu   sync.Mutex // serializes writes to conn
}

// TCPServer accepts any number of concurrent TCP connections, deframing
// each with the server's chosen Framing, and exposes three observables: the
// ephemeral port after Start, a stream of decoded packets tagged with their
// connection id, and a stream of connected/disconnected events (spec.md
// §4.6.2).
type TCPServer struct {
	framing Framing
	nextID  atomic.Uint64

	mu       sync.Mutex
	listener net.Listener
	conns    map[ConnID]*serverConn
	cancel   context.CancelFunc
	group    *errgroup.Group

	incoming   chan TCPServerIncoming
	connEvents chan ConnEvent
	closeOnce  sync.Once
}

// NewTCPServer constructs a server using the given framing. WithBufferSize
// overrides the default incoming-packet channel capacity.
func NewTCPServer(framing Framing, opts ...Option) *TCPServer {
	o := resolveOptions(256, opts)
	return &TCPServer{
		framing:    framing,
		conns:      make(map[ConnID]*serverConn),
		incoming:   make(chan TCPServerIncoming, o.bufferSize),
		connEvents: make(chan ConnEvent, 64),
	}
}

// Start binds host:port (port 0 for an ephemeral port) and begins
// accepting connections, returning the bound port.
func (s *TCPServer) Start(ctx context.Context, host string, port int) (int, error) {
	ln, err := net.Listen("tcp", hostPort(host, port))
	if err != nil {
		return 0, wrapErr("listen", err)
	}
	g, runCtx := errgroup.WithContext(ctx)
	runCtx, cancel := context.WithCancel(runCtx)

	s.mu.Lock()
	s.listener = ln
	s.cancel = cancel
	s.group = g
	s.mu.Unlock()

	g.Go(func() error {
		s.acceptLoop(runCtx, ln)
		return nil
	})
	return portOf(ln.Addr()), nil
}

// Wait blocks until the accept loop and every connection's read loop, past
// and present, have returned — the way the teacher's Listener.Serve blocks
// on its errgroup.Group. It returns after Stop completes a full shutdown.
func (s *TCPServer) Wait() error {
	s.mu.Lock()
	g := s.group
	s.mu.Unlock()
	if g == nil {
		return nil
	}
	return g.Wait()
}

// Port returns the bound listener's local port, or 0 if Start has not
// succeeded yet.
func (s *TCPServer) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return 0
	}
	return portOf(s.listener.Addr())
}

// Incoming returns the stream of decoded packets tagged with connection id,
// in per-connection arrival order.
func (s *TCPServer) Incoming() <-chan TCPServerIncoming { return s.incoming }

// ConnEvents returns the stream of connected(id)/disconnected(id) events.
func (s *TCPServer) ConnEvents() <-chan ConnEvent { return s.connEvents }

func (s *TCPServer) acceptLoop(ctx context.Context, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			break
		}
		id := ConnID(s.nextID.Add(1))
		sc := &serverConn{id: id, conn: conn}

		s.mu.Lock()
		s.conns[id] = sc
		s.mu.Unlock()

		s.emitConnEvent(ConnEvent{Conn: id, Connected: true})

		s.mu.Lock()
		g := s.group
		s.mu.Unlock()
		g.Go(func() error {
			s.readLoop(ctx, sc)
			return nil
		})
	}
}

func (s *TCPServer) readLoop(ctx context.Context, sc *serverConn) {
	d := newDeframer(s.framing)
	buf := make([]byte, 4096)
	for {
		n, err := sc.conn.Read(buf)
		if n > 0 {
			for _, payload := range d.Feed(buf[:n]) {
				pkt, ok := decodeOrDrop(payload)
				if !ok {
					continue
				}
				select {
				case s.incoming <- TCPServerIncoming{Conn: sc.id, Packet: pkt}:
				case <-ctx.Done():
					s.removeConn(sc.id)
					return
				}
			}
		}
		if err != nil {
			break
		}
	}
	s.removeConn(sc.id)
}

// removeConn closes and forgets a connection, firing its disconnected
// event exactly once regardless of whether the server, the peer, or the
// network initiated the teardown (spec.md §4.6.2).
func (s *TCPServer) removeConn(id ConnID) {
	s.mu.Lock()
	sc, ok := s.conns[id]
	if ok {
		delete(s.conns, id)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	sc.conn.Close()
	s.emitConnEvent(ConnEvent{Conn: id, Connected: false})
}

func (s *TCPServer) emitConnEvent(ev ConnEvent) {
	defer func() { recover() }()
	s.connEvents <- ev
}

// Disconnect closes and removes the given connection. Idempotent: calling
// it again, or letting the peer close first, fires the disconnected event
// only once.
func (s *TCPServer) Disconnect(id ConnID) {
	s.removeConn(id)
}

// Send writes pkt, framed per the server's Framing, to connection id. It
// fails with ErrNotConnected if id is unknown.
func (s *TCPServer) Send(pkt osc.Packet, to ConnID) error {
	s.mu.Lock()
	sc, ok := s.conns[to]
	s.mu.Unlock()
	if !ok {
		return ErrNotConnected
	}
	return s.write(sc, pkt)
}

func (s *TCPServer) write(sc *serverConn, pkt osc.Packet) error {
	enc, err := osc.Encode(pkt)
	if err != nil {
		return err
	}
	framed := frameBytes(s.framing, enc)
	sc.mu.Lock()
	_, err = sc.conn.Write(framed)
	sc.mu.Unlock()
	return wrapErr("send", err)
}

// Broadcast writes pkt to every currently connected peer, tolerating
// per-connection write failures (spec.md §4.6.2).
func (s *TCPServer) Broadcast(pkt osc.Packet) {
	s.mu.Lock()
	conns := make([]*serverConn, 0, len(s.conns))
	for _, sc := range s.conns {
		conns = append(conns, sc)
	}
	s.mu.Unlock()

	for _, sc := range conns {
		_ = s.write(sc, pkt)
	}
}

// Stop disconnects every connection and closes the listener. Idempotent.
func (s *TCPServer) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	ln := s.listener
	ids := make([]ConnID, 0, len(s.conns))
	for id := range s.conns {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for _, id := range ids {
		s.Disconnect(id)
	}
	if ln != nil {
		ln.Close()
	}

	s.closeOnce.Do(func() {
		close(s.incoming)
		close(s.connEvents)
	})
}
