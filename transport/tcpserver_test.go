package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lumenstage/osc"
)

func TestTCPServerAcceptsAndDispatches(t *testing.T) {
	s := NewTCPServer(PLH)
	port, err := s.Start(context.Background(), "127.0.0.1", 0)
	require.NoError(t, err)
	require.NotZero(t, port)
	defer s.Stop()

	conn, err := net.Dial("tcp", hostPort("127.0.0.1", port))
	require.NoError(t, err)
	defer conn.Close()

	var id ConnID
	select {
	case ev := <-s.ConnEvents():
		require.True(t, ev.Connected)
		id = ev.Conn
	case <-time.After(time.Second):
		t.Fatal("no connect event")
	}

	msg, err := osc.NewMessage("/hello")
	require.NoError(t, err)
	enc, err := osc.Encode(msg)
	require.NoError(t, err)
	_, err = conn.Write(frameBytes(PLH, enc))
	require.NoError(t, err)

	select {
	case in := <-s.Incoming():
		require.Equal(t, id, in.Conn)
		got, ok := in.Packet.(*osc.Message)
		require.True(t, ok)
		require.Equal(t, "/hello", got.Address)
	case <-time.After(time.Second):
		t.Fatal("no incoming packet")
	}

	require.NoError(t, s.Send(msg, id))
	require.ErrorIs(t, s.Send(msg, id+1000), ErrNotConnected)

	conn.Close()
	select {
	case ev := <-s.ConnEvents():
		require.False(t, ev.Connected)
		require.Equal(t, id, ev.Conn)
	case <-time.After(time.Second):
		t.Fatal("no disconnect event")
	}
}

func TestTCPServerDisconnectIsIdempotent(t *testing.T) {
	s := NewTCPServer(SLIP)
	port, err := s.Start(context.Background(), "127.0.0.1", 0)
	require.NoError(t, err)
	defer s.Stop()

	conn, err := net.Dial("tcp", hostPort("127.0.0.1", port))
	require.NoError(t, err)
	defer conn.Close()

	var id ConnID
	select {
	case ev := <-s.ConnEvents():
		id = ev.Conn
	case <-time.After(time.Second):
		t.Fatal("no connect event")
	}

	s.Disconnect(id)
	s.Disconnect(id) // must not panic or fire a second event

	select {
	case ev := <-s.ConnEvents():
		require.False(t, ev.Connected)
	case <-time.After(time.Second):
		t.Fatal("expected exactly one disconnect event")
	}
	select {
	case ev, ok := <-s.ConnEvents():
		if ok {
			t.Fatalf("unexpected second event: %+v", ev)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTCPServerBroadcastTolerantOfFailures(t *testing.T) {
	s := NewTCPServer(PLH)
	port, err := s.Start(context.Background(), "127.0.0.1", 0)
	require.NoError(t, err)
	defer s.Stop()

	var conns []net.Conn
	for i := 0; i < 3; i++ {
		conn, err := net.Dial("tcp", hostPort("127.0.0.1", port))
		require.NoError(t, err)
		conns = append(conns, conn)
	}
	for range conns {
		<-s.ConnEvents()
	}

	conns[0].Close() // broadcast should still reach the others
	time.Sleep(50 * time.Millisecond)

	msg, err := osc.NewMessage("/broadcast")
	require.NoError(t, err)
	require.NotPanics(t, func() { s.Broadcast(msg) })
}
