// Package frame implements the two TCP stream framers from spec.md §4.5:
// Packet Length Header (PLH) and SLIP. Both expose a Frame function and a
// Deframer type that feed-and-drains a byte stream into zero or more
// complete payloads in order. Deframers are single-writer: serializing
// calls to Feed is the caller's responsibility.
package frame

import "encoding/binary"

// FramePLH frames payload with a 4-byte big-endian unsigned length prefix.
func FramePLH(payload []byte) []byte {
	out := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(out, uint32(len(payload)))
	copy(out[4:], payload)
	return out
}

// PLHDeframer reassembles payloads framed with FramePLH out of an arbitrary
// byte stream, tolerating any chunking (spec.md §4.5, §8).
type PLHDeframer struct {
	buf []byte
}

// NewPLHDeframer returns an empty deframer.
func NewPLHDeframer() *PLHDeframer {
	return &PLHDeframer{}
}

// Feed appends chunk to the internal buffer and returns every complete
// payload that can now be drained, in order. The deframer never discards a
// partial frame; it waits for the next Feed to complete it.
func (d *PLHDeframer) Feed(chunk []byte) [][]byte {
	d.buf = append(d.buf, chunk...)
	var out [][]byte
	for {
		p, ok := d.next()
		if !ok {
			break
		}
		out = append(out, p)
	}
	return out
}

// next returns one complete payload if the buffer holds at least 4 header
// bytes and 4+length total bytes. A declared length of 0 is treated as "no
// packet yet" to avoid starvation on a zero-length frame.
func (d *PLHDeframer) next() ([]byte, bool) {
	if len(d.buf) < 4 {
		return nil, false
	}
	length := binary.BigEndian.Uint32(d.buf[:4])
	if length == 0 {
		return nil, false
	}
	total := 4 + int(length)
	if len(d.buf) < total {
		return nil, false
	}
	payload := append([]byte(nil), d.buf[4:total]...)
	d.buf = append(d.buf[:0:0], d.buf[total:]...)
	return payload, true
}

// Buffered returns the number of bytes currently held, waiting on a
// complete frame.
func (d *PLHDeframer) Buffered() int {
	return len(d.buf)
}
