package frame

// SLIP byte values, per spec.md §4.5.
const (
	slipEnd    = 0xC0
	slipEsc    = 0xDB
	slipEscEnd = 0xDC
	slipEscEsc = 0xDD
)

// FrameSLIP frames payload with SLIP byte-stuffing: a leading END, every END
// byte in payload replaced with ESC,ESC_END and every ESC replaced with
// ESC,ESC_ESC, then a trailing END.
func FrameSLIP(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+2)
	out = append(out, slipEnd)
	for _, b := range payload {
		switch b {
		case slipEnd:
			out = append(out, slipEsc, slipEscEnd)
		case slipEsc:
			out = append(out, slipEsc, slipEscEsc)
		default:
			out = append(out, b)
		}
	}
	out = append(out, slipEnd)
	return out
}

// SLIPDeframer reassembles payloads framed with FrameSLIP out of an
// arbitrary byte stream. It holds a single partial-payload buffer and a
// one-bit "in escape" flag; both survive across Feed calls.
type SLIPDeframer struct {
	partial  []byte
	inEscape bool
}

// NewSLIPDeframer returns an empty deframer.
func NewSLIPDeframer() *SLIPDeframer {
	return &SLIPDeframer{}
}

// Feed processes chunk byte by byte and returns every complete packet
// produced, in order. Leading and trailing END runs produce no empty
// packets; a raw byte following ESC (neither ESC_END nor ESC_ESC) is
// appended verbatim, tolerating protocol errors from noisy peers.
func (d *SLIPDeframer) Feed(chunk []byte) [][]byte {
	var out [][]byte
	for _, b := range chunk {
		if d.inEscape {
			switch b {
			case slipEscEnd:
				d.partial = append(d.partial, slipEnd)
			case slipEscEsc:
				d.partial = append(d.partial, slipEsc)
			default:
				d.partial = append(d.partial, b)
			}
			d.inEscape = false
			continue
		}
		switch b {
		case slipEnd:
			if len(d.partial) > 0 {
				out = append(out, d.partial)
				d.partial = nil
			}
		case slipEsc:
			d.inEscape = true
		default:
			d.partial = append(d.partial, b)
		}
	}
	return out
}
