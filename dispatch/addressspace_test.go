package dispatch

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/lumenstage/osc"
	"github.com/stretchr/testify/require"
)

func TestExactAndWildcardDispatch(t *testing.T) {
	as := New()
	var exactCount, wildCount atomic.Int32
	as.Register("/eos/out/active/chan", func(*osc.Message) { exactCount.Add(1) })
	as.Register("/eos/*", func(*osc.Message) { wildCount.Add(1) })

	msg, err := osc.NewMessage("/eos/out/active/chan")
	require.NoError(t, err)
	require.Equal(t, 2, as.Dispatch(msg))
	require.EqualValues(t, 1, exactCount.Load())
	require.EqualValues(t, 1, wildCount.Load())

	ping, err := osc.NewMessage("/eos/ping")
	require.NoError(t, err)
	require.Equal(t, 1, as.Dispatch(ping))
}

func TestUnregisterIsIdempotent(t *testing.T) {
	as := New()
	calls := 0
	h := as.Register("/a", func(*osc.Message) { calls++ })
	as.Unregister(h)
	as.Unregister(h) // no-op, must not panic

	msg, err := osc.NewMessage("/a")
	require.NoError(t, err)
	require.Equal(t, 0, as.Dispatch(msg))
	require.Equal(t, 0, calls)
}

func TestUnregisterUnknownHandleIsNoop(t *testing.T) {
	as := New()
	require.NotPanics(t, func() { as.Unregister(Handle(9999)) })
}

func TestBundleRecursion(t *testing.T) {
	as := New()
	var count atomic.Int32
	as.Register("/a", func(*osc.Message) { count.Add(1) })
	as.Register("/b", func(*osc.Message) { count.Add(1) })

	ma, _ := osc.NewMessage("/a")
	mb, _ := osc.NewMessage("/b")
	inner := osc.NewBundle(osc.ImmediateTag(), ma)
	outer := osc.NewBundle(osc.ImmediateTag(), inner, mb)

	require.Equal(t, 2, as.Dispatch(outer))
	require.EqualValues(t, 2, count.Load())
}

func TestHandlerPanicIsolated(t *testing.T) {
	as := New()
	var secondCalled atomic.Bool
	as.Register("/p", func(*osc.Message) { panic("boom") })
	as.Register("/p", func(*osc.Message) { secondCalled.Store(true) })

	msg, _ := osc.NewMessage("/p")
	require.NotPanics(t, func() { as.Dispatch(msg) })
	require.True(t, secondCalled.Load())
}

func TestConcurrentRegisterAndDispatch(t *testing.T) {
	as := New()
	msg, _ := osc.NewMessage("/concurrent")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			as.Register("/concurrent", func(*osc.Message) {})
		}()
		go func() {
			defer wg.Done()
			as.Dispatch(msg)
		}()
	}
	wg.Wait()
}
