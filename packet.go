package osc

// Packet is either a Message or a Bundle (spec.md §3).
type Packet interface {
	isPacket()
	// Append serializes the packet and appends the bytes to b.
	Append(b []byte) ([]byte, error)
	String() string
}

// Encode serializes p to a fresh byte slice.
func Encode(p Packet) ([]byte, error) {
	return p.Append(nil)
}

// Decode parses buf as a single OSC packet (spec.md §4.2). The first byte
// selects the case: '/' is a message, '#' is a bundle; anything else is
// InvalidPacket.
func Decode(buf []byte) (Packet, error) {
	if len(buf) == 0 {
		return nil, decodeErr(ErrTruncated, "empty input")
	}
	switch buf[0] {
	case '/':
		return decodeMessage(buf)
	case '#':
		return decodeBundle(buf)
	default:
		return nil, decodeErr(ErrInvalidPacket, "packet starts with %q, expected '/' or '#'", buf[0])
	}
}
