package transport

import (
	"context"
	"net"
	"sync"

	"github.com/lumenstage/osc"
)

// ClientState is one state in a TCPClient's lifecycle (spec.md §4.6.1):
// Disconnected -> Connecting -> Connected -> Disconnected, with a terminal
// Failed reachable from Connecting.
type ClientState int

const (
	Disconnected ClientState = iota
	Connecting
	Connected
	Failed
)

func (s ClientState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// StateChange is one event on a TCPClient's state stream. Err is set only
// when State is Failed.
type StateChange struct {
	State ClientState
	Err   error
}

// TCPIncoming carries one decoded packet received by a TCPClient. The client
// has a single connection, so no connection id is attached.
type TCPIncoming struct {
	Packet osc.Packet
}

// TCPClient is a single-connection OSC client over TCP with a chosen
// stream framing (spec.md §4.6.1). Every method is safe to call
// concurrently; calls are serialized by an internal mutex.
type TCPClient struct {
	host    string
	port    int
	framing Framing

	mu     sync.Mutex
	state  ClientState
	conn   net.Conn
	cancel context.CancelFunc

	incoming  chan TCPIncoming
	states    chan StateChange
	closeOnce sync.Once
}

// NewTCPClient constructs a client targeting host:port with the given
// framing. port must be > 0. WithBufferSize overrides the default
// incoming-packet channel capacity (the state-change channel always uses
// a small fixed capacity, since it is low-volume by nature).
func NewTCPClient(host string, port int, framing Framing, opts ...Option) *TCPClient {
	o := resolveOptions(64, opts)
	return &TCPClient{
		host:     host,
		port:     port,
		framing:  framing,
		state:    Disconnected,
		incoming: make(chan TCPIncoming, o.bufferSize),
		states:   make(chan StateChange, 16),
	}
}

// Incoming returns the stream of decoded packets received on the
// connection, in arrival order. It closes when the client disconnects.
func (c *TCPClient) Incoming() <-chan TCPIncoming { return c.incoming }

// States returns the stream of lifecycle transitions. It closes when the
// client disconnects.
func (c *TCPClient) States() <-chan StateChange { return c.states }

// State returns the client's current state.
func (c *TCPClient) State() ClientState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect is fire-and-forget: it returns immediately and observers learn
// the outcome from States(). Calling Connect while already Connecting or
// Connected is a no-op.
func (c *TCPClient) Connect(ctx context.Context) {
	c.mu.Lock()
	if c.state == Connecting || c.state == Connected {
		c.mu.Unlock()
		return
	}
	c.state = Connecting
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()
	c.emit(StateChange{State: Connecting})

	go c.runConnect(runCtx)
}

func (c *TCPClient) runConnect(ctx context.Context) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", hostPort(c.host, c.port))
	if err != nil {
		// A cancelled Connect (ctx.Err() != nil) and an outright dial
		// failure both yield a Failed state (spec.md §4.6.1, §5).
		c.mu.Lock()
		c.state = Failed
		c.mu.Unlock()
		c.emit(StateChange{State: Failed, Err: err})
		c.finish()
		return
	}

	c.mu.Lock()
	c.conn = conn
	c.state = Connected
	c.mu.Unlock()
	c.emit(StateChange{State: Connected})

	c.readLoop(ctx, conn)
}

func (c *TCPClient) readLoop(ctx context.Context, conn net.Conn) {
	d := newDeframer(c.framing)
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			for _, payload := range d.Feed(buf[:n]) {
				pkt, ok := decodeOrDrop(payload)
				if !ok {
					continue
				}
				select {
				case c.incoming <- TCPIncoming{Packet: pkt}:
				case <-ctx.Done():
					c.disconnect()
					return
				}
			}
		}
		if err != nil {
			break
		}
	}
	c.disconnect()
}

// disconnect transitions to Disconnected exactly once and finishes both
// streams.
func (c *TCPClient) disconnect() {
	c.mu.Lock()
	if c.state == Disconnected {
		c.mu.Unlock()
		return
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.state = Disconnected
	c.mu.Unlock()
	c.emit(StateChange{State: Disconnected})
	c.finish()
}

func (c *TCPClient) emit(ev StateChange) {
	defer func() { recover() }() // states may already be closed by finish
	c.states <- ev
}

func (c *TCPClient) finish() {
	c.closeOnce.Do(func() {
		close(c.incoming)
		close(c.states)
	})
}

// Send encodes pkt, frames it per the client's chosen Framing, and writes
// it. It fails with ErrNotConnected unless State is Connected. A write
// error does not by itself disconnect the client (spec.md §4.6.1, §7).
func (c *TCPClient) Send(pkt osc.Packet) error {
	c.mu.Lock()
	if c.state != Connected {
		c.mu.Unlock()
		return ErrNotConnected
	}
	conn := c.conn
	c.mu.Unlock()

	enc, err := osc.Encode(pkt)
	if err != nil {
		return err
	}
	_, err = conn.Write(frameBytes(c.framing, enc))
	return wrapErr("send", err)
}

// Disconnect cancels any in-flight connect and closes the connection if
// one is open. It is safe to call multiple times.
func (c *TCPClient) Disconnect() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	c.disconnect()
}
