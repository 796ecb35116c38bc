package transport

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lumenstage/osc"
)

func TestUDPClientLazySocket(t *testing.T) {
	c := NewUDPClient("127.0.0.1", 1)
	// No socket exists until the first Send/Connect.
	c.mu.Lock()
	hasConn := c.conn != nil
	c.mu.Unlock()
	require.False(t, hasConn)
}

func TestUDPClientRoundTrip(t *testing.T) {
	echo, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer echo.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 65535)
		n, addr, err := echo.ReadFromUDP(buf)
		if err != nil {
			return
		}
		echo.WriteToUDP(buf[:n], addr)
	}()

	port := echo.LocalAddr().(*net.UDPAddr).Port
	c := NewUDPClient("127.0.0.1", port)
	defer c.Close()

	msg, err := osc.NewMessage("/udp/ping")
	require.NoError(t, err)
	require.NoError(t, c.Send(msg))

	select {
	case pkt := <-c.Incoming():
		got, ok := pkt.(*osc.Message)
		require.True(t, ok)
		require.Equal(t, "/udp/ping", got.Address)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for echo")
	}
	<-done
}

// TestUDPClientBroadcastModeIsOffByDefault checks spec.md §4.6.3's "off by
// default" for broadcast mode: a client built without WithBroadcast has its
// broadcast flag unset, so ensureConn gives it a Dial-connected socket
// rather than a listening socket with SO_BROADCAST set.
func TestUDPClientBroadcastModeIsOffByDefault(t *testing.T) {
	c := NewUDPClient("127.0.0.1", 1)
	require.False(t, c.broadcast)
}

func TestUDPClientBroadcastModeSendsToBroadcastAddress(t *testing.T) {
	listener, err := net.ListenUDP("udp4", &net.UDPAddr{Port: 0})
	require.NoError(t, err)
	defer listener.Close()
	port := listener.LocalAddr().(*net.UDPAddr).Port

	c := NewUDPClient("255.255.255.255", port, WithBroadcast())
	defer c.Close()
	require.True(t, c.broadcast)

	msg, err := osc.NewMessage("/udp/broadcast")
	require.NoError(t, err)
	if err := c.Send(msg); err != nil {
		t.Skipf("broadcast send unavailable in this network namespace: %v", err)
	}
}
