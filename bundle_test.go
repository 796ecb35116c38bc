package osc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBundleRoundtrip(t *testing.T) {
	i := Int32(42)
	inner, err := NewMessage("/a", &i)
	require.NoError(t, err)

	bundle := NewBundle(ImmediateTag(), inner)
	enc, err := bundle.Append(nil)
	require.NoError(t, err)

	require.Equal(t, []byte(bundleTag), enc[:8])
	require.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 1}, enc[8:16])

	innerEnc, err := inner.Append(nil)
	require.NoError(t, err)
	require.Equal(t, uint32(len(innerEnc)), beUint32(enc[16:20]))
	require.Equal(t, innerEnc, enc[20:])

	decoded, err := Decode(enc)
	require.NoError(t, err)
	gotBundle, ok := decoded.(*Bundle)
	require.True(t, ok)
	require.True(t, gotBundle.Time.IsImmediate())
	require.Len(t, gotBundle.Elements, 1)
	gotMsg, ok := gotBundle.Elements[0].(*Message)
	require.True(t, ok)
	require.Equal(t, "/a", gotMsg.Address)
}

func TestNestedBundleRoundtrip(t *testing.T) {
	i := Int32(1)
	leaf, err := NewMessage("/leaf", &i)
	require.NoError(t, err)
	middle := NewBundle(ImmediateTag(), leaf)
	outer := NewBundle(Now(), middle, leaf)

	enc, err := outer.Append(nil)
	require.NoError(t, err)

	got, err := Decode(enc)
	require.NoError(t, err)
	gotOuter, ok := got.(*Bundle)
	require.True(t, ok)
	require.Len(t, gotOuter.Elements, 2)

	gotMiddle, ok := gotOuter.Elements[0].(*Bundle)
	require.True(t, ok)
	require.Len(t, gotMiddle.Elements, 1)

	require.Len(t, gotOuter.Messages(), 2)
}

func beUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func TestBundleElementLengthErrors(t *testing.T) {
	base := append([]byte(bundleTag), 0, 0, 0, 0, 0, 0, 0, 1)

	t.Run("negative length", func(t *testing.T) {
		buf := append(append([]byte(nil), base...), 0xFF, 0xFF, 0xFF, 0xFF)
		_, err := Decode(buf)
		requireDecodeErr(t, err, ErrInvalidBundleElement)
	})

	t.Run("zero length", func(t *testing.T) {
		buf := append(append([]byte(nil), base...), 0, 0, 0, 0)
		_, err := Decode(buf)
		requireDecodeErr(t, err, ErrInvalidBundleElement)
	})

	t.Run("length exceeds remaining", func(t *testing.T) {
		buf := append(append([]byte(nil), base...), 0, 0, 0, 100)
		_, err := Decode(buf)
		requireDecodeErr(t, err, ErrInvalidBundleElement)
	})

	t.Run("too short for header", func(t *testing.T) {
		_, err := Decode([]byte("#bundle"))
		requireDecodeErr(t, err, ErrTruncated)
	})

	t.Run("bad tag", func(t *testing.T) {
		buf := append([]byte("#bungle\x00"), base[8:]...)
		_, err := Decode(buf)
		requireDecodeErr(t, err, ErrInvalidPacket)
	})
}

func requireDecodeErr(t *testing.T, err error, kind DecodeErrorKind) {
	t.Helper()
	require.Error(t, err)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	require.Equal(t, kind, de.Kind)
}
