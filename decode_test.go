package osc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeEmptyInput(t *testing.T) {
	_, err := Decode(nil)
	requireDecodeErr(t, err, ErrTruncated)
}

func TestDecodeInvalidLeadByte(t *testing.T) {
	_, err := Decode([]byte("?nope"))
	requireDecodeErr(t, err, ErrInvalidPacket)
}

func TestDecodeMessageNoArguments(t *testing.T) {
	buf := []byte{'/', 't', 0, 0}
	msg, err := Decode(buf)
	require.NoError(t, err)
	m := msg.(*Message)
	require.Equal(t, "/t", m.Address)
	require.Empty(t, m.Arguments)
}

func TestDecodeUnterminatedAddress(t *testing.T) {
	_, err := Decode([]byte("/no-null-here"))
	requireDecodeErr(t, err, ErrUnterminatedString)
}

func TestDecodeAddressMissingSlash(t *testing.T) {
	buf := []byte{'n', 'o', 0, 0}
	_, err := Decode(buf)
	requireDecodeErr(t, err, ErrInvalidPacket)
}

func TestDecodeMissingTypeTag(t *testing.T) {
	// address "/a" padded, followed by a tag string that doesn't start
	// with ','.
	buf := []byte{'/', 'a', 0, 0, 'z', 0, 0, 0}
	_, err := Decode(buf)
	requireDecodeErr(t, err, ErrMissingTypeTag)
}

func TestDecodeUnknownTypeTag(t *testing.T) {
	buf := []byte{'/', 'a', 0, 0, ',', 'z', 0, 0}
	_, err := Decode(buf)
	requireDecodeErr(t, err, ErrUnknownTypeTag)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	require.Equal(t, byte('z'), de.Tag)
}

func TestDecodeTruncatedArgument(t *testing.T) {
	// type tag says int32 but only 2 payload bytes follow.
	buf := []byte{'/', 'a', 0, 0, ',', 'i', 0, 0, 0, 0}
	_, err := Decode(buf)
	requireDecodeErr(t, err, ErrTruncated)
}

func TestDecodeUnmatchedArrayClose(t *testing.T) {
	// tag string ",]"  -> ',' then ']' immediately: unmatched close.
	buf := []byte{'/', 'a', 0, 0, ',', ']', 0, 0}
	_, err := Decode(buf)
	requireDecodeErr(t, err, ErrUnmatchedArrayClose)
}

func TestDecodeUnclosedArray(t *testing.T) {
	buf := []byte{'/', 'a', 0, 0, ',', '[', 'i', 0, 0, 0, 0, 0, 0, 1}
	_, err := Decode(buf)
	requireDecodeErr(t, err, ErrUnmatchedArrayClose)
}

func TestDecodeInvalidCharPayload(t *testing.T) {
	buf := []byte{'/', 'a', 0, 0, ',', 'c', 0, 0, 0, 0, 0, 200}
	_, err := Decode(buf)
	requireDecodeErr(t, err, ErrInvalidPacket)
}

func TestDecodeNegativeBlobLength(t *testing.T) {
	buf := []byte{'/', 'a', 0, 0, ',', 'b', 0, 0, 0xFF, 0xFF, 0xFF, 0xFF}
	_, err := Decode(buf)
	requireDecodeErr(t, err, ErrInvalidPacket)
}

func TestDecodeBlobRoundtrip(t *testing.T) {
	blob := make(Blob, 257)
	for i := range blob {
		blob[i] = byte(i)
	}
	msg, err := NewMessage("/blob", &blob)
	require.NoError(t, err)
	enc, err := msg.Append(nil)
	require.NoError(t, err)

	got, err := Decode(enc)
	require.NoError(t, err)
	gm := got.(*Message)
	require.Len(t, gm.Arguments, 1)
	gb, ok := gm.Arguments[0].(*Blob)
	require.True(t, ok)
	require.Equal(t, blob, *gb)
}

func TestDecodeEveryASCIIChar(t *testing.T) {
	for r := rune(0); r < 128; r++ {
		c := Char(r)
		msg, err := NewMessage("/c", &c)
		require.NoError(t, err)
		enc, err := msg.Append(nil)
		require.NoError(t, err)

		got, err := Decode(enc)
		require.NoError(t, err)
		gc, ok := got.(*Message).Arguments[0].(*Char)
		require.True(t, ok)
		require.Equal(t, r, rune(*gc))
	}
}
