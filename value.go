package osc

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"

	"golang.org/x/exp/constraints"
)

// Argument is an OSC value: one case of the tagged union described in
// spec.md §3. A pointer to any concrete type in this package implements it
// (Consume has a pointer receiver on the types that carry a payload); True,
// False, Nil, Impulse and Array implement it as plain values too. TypeTag returns the single wire character for scalar arguments; Array
// is handled structurally by the encoder/decoder instead (spec.md §4.1), so
// its TypeTag is never written directly.
type Argument interface {
	// TypeTag returns the OSC type tag character for this argument.
	TypeTag() byte
	// Append appends this argument's payload bytes (no type tag) to b.
	Append(b []byte) []byte
	// Consume parses this argument's payload from the front of b,
	// returning the remainder.
	Consume(b []byte) ([]byte, error)
}

// Int converts a signed integer of any width to an Argument: an *Int32 when
// the value fits in 32 bits, else an *Int64, per spec.md §9.
func Int[T constraints.Signed](v T) Argument {
	i := int64(v)
	if i >= math.MinInt32 && i <= math.MaxInt32 {
		n := Int32(i)
		return &n
	}
	n := Int64(i)
	return &n
}

// Int32 is a 32-bit big-endian two's complement integer.
type Int32 int32

func (Int32) TypeTag() byte { return 'i' }

func (i Int32) Append(b []byte) []byte {
	return binary.BigEndian.AppendUint32(b, uint32(i))
}

func (i *Int32) Consume(b []byte) ([]byte, error) {
	if len(b) < 4 {
		return nil, decodeErr(ErrTruncated, "int32 needs 4 bytes, have %d", len(b))
	}
	*i = Int32(binary.BigEndian.Uint32(b))
	return b[4:], nil
}

func (i Int32) String() string { return fmt.Sprintf("Int32(%d)", int32(i)) }

// Int64 is a 64-bit big-endian two's complement integer.
type Int64 int64

func (Int64) TypeTag() byte { return 'h' }

func (i Int64) Append(b []byte) []byte {
	return binary.BigEndian.AppendUint64(b, uint64(i))
}

func (i *Int64) Consume(b []byte) ([]byte, error) {
	if len(b) < 8 {
		return nil, decodeErr(ErrTruncated, "int64 needs 8 bytes, have %d", len(b))
	}
	*i = Int64(binary.BigEndian.Uint64(b))
	return b[8:], nil
}

func (i Int64) String() string { return fmt.Sprintf("Int64(%d)", int64(i)) }

// Float32 is a 32-bit big-endian IEEE 754 floating point number.
type Float32 float32

func (Float32) TypeTag() byte { return 'f' }

func (f Float32) Append(b []byte) []byte {
	return binary.BigEndian.AppendUint32(b, math.Float32bits(float32(f)))
}

func (f *Float32) Consume(b []byte) ([]byte, error) {
	if len(b) < 4 {
		return nil, decodeErr(ErrTruncated, "float32 needs 4 bytes, have %d", len(b))
	}
	*f = Float32(math.Float32frombits(binary.BigEndian.Uint32(b)))
	return b[4:], nil
}

func (f Float32) String() string { return fmt.Sprintf("Float32(%v)", float32(f)) }

// Float64 is a 64-bit big-endian IEEE 754 floating point number.
type Float64 float64

func (Float64) TypeTag() byte { return 'd' }

func (f Float64) Append(b []byte) []byte {
	return binary.BigEndian.AppendUint64(b, math.Float64bits(float64(f)))
}

func (f *Float64) Consume(b []byte) ([]byte, error) {
	if len(b) < 8 {
		return nil, decodeErr(ErrTruncated, "float64 needs 8 bytes, have %d", len(b))
	}
	*f = Float64(math.Float64frombits(binary.BigEndian.Uint64(b)))
	return b[8:], nil
}

func (f Float64) String() string { return fmt.Sprintf("Float64(%v)", float64(f)) }

func appendPaddedString(b []byte, s string) []byte {
	b = append(b, s...)
	b = append(b, 0)
	for len(b)%4 != 0 {
		b = append(b, 0)
	}
	return b
}

func consumePaddedString(b []byte) (string, []byte, error) {
	end := -1
	for i, c := range b {
		if c == 0 {
			end = i
			break
		}
	}
	if end < 0 {
		return "", nil, decodeErr(ErrUnterminatedString, "no null terminator in %d bytes", len(b))
	}
	if !utf8.Valid(b[:end]) {
		return "", nil, decodeErr(ErrUnterminatedString, "string is not valid UTF-8")
	}
	padded := end + (4 - end%4)
	if padded > len(b) {
		return "", nil, decodeErr(ErrTruncated, "string padding runs past end of buffer")
	}
	return string(b[:end]), b[padded:], nil
}

// String is a UTF-8, null-terminated, zero-padded OSC string.
type String string

func (String) TypeTag() byte { return 's' }

func (s String) Append(b []byte) []byte { return appendPaddedString(b, string(s)) }

func (s *String) Consume(b []byte) ([]byte, error) {
	v, rest, err := consumePaddedString(b)
	if err != nil {
		return nil, err
	}
	*s = String(v)
	return rest, nil
}

func (s String) String() string { return fmt.Sprintf("String(%q)", string(s)) }

// Symbol is wire-identical to String but distinguished by its type tag ('S'
// rather than 's'); OSC uses it for symbol-like data such as a pattern
// fragment.
type Symbol string

func (Symbol) TypeTag() byte { return 'S' }

func (s Symbol) Append(b []byte) []byte { return appendPaddedString(b, string(s)) }

func (s *Symbol) Consume(b []byte) ([]byte, error) {
	v, rest, err := consumePaddedString(b)
	if err != nil {
		return nil, err
	}
	*s = Symbol(v)
	return rest, nil
}

func (s Symbol) String() string { return fmt.Sprintf("Symbol(%q)", string(s)) }

// Blob is a length-prefixed, zero-padded byte string.
type Blob []byte

func (Blob) TypeTag() byte { return 'b' }

func (bl Blob) Append(b []byte) []byte {
	b = binary.BigEndian.AppendUint32(b, uint32(len(bl)))
	b = append(b, bl...)
	for len(b)%4 != 0 {
		b = append(b, 0)
	}
	return b
}

func (bl *Blob) Consume(b []byte) ([]byte, error) {
	if len(b) < 4 {
		return nil, decodeErr(ErrTruncated, "blob length needs 4 bytes, have %d", len(b))
	}
	n := int32(binary.BigEndian.Uint32(b))
	if n < 0 {
		return nil, decodeErr(ErrInvalidPacket, "blob length %d is negative", n)
	}
	b = b[4:]
	if int(n) > len(b) {
		return nil, decodeErr(ErrTruncated, "blob declares %d bytes, have %d", n, len(b))
	}
	*bl = append(Blob(nil), b[:n]...)
	total := int(n)
	for total%4 != 0 {
		total++
	}
	if total > len(b) {
		return nil, decodeErr(ErrTruncated, "blob padding runs past end of buffer")
	}
	return b[total:], nil
}

func (bl Blob) String() string { return fmt.Sprintf("Blob(%d bytes)", len(bl)) }

// True, False, Nil and Impulse carry no payload.
type True struct{}

func (True) TypeTag() byte                    { return 'T' }
func (True) Append(b []byte) []byte           { return b }
func (True) Consume(b []byte) ([]byte, error) { return b, nil }
func (True) String() string                   { return "True" }

type False struct{}

func (False) TypeTag() byte                    { return 'F' }
func (False) Append(b []byte) []byte           { return b }
func (False) Consume(b []byte) ([]byte, error) { return b, nil }
func (False) String() string                   { return "False" }

// Nil is OSC's "N" (Null) type.
type Nil struct{}

func (Nil) TypeTag() byte                    { return 'N' }
func (Nil) Append(b []byte) []byte           { return b }
func (Nil) Consume(b []byte) ([]byte, error) { return b, nil }
func (Nil) String() string                   { return "Nil" }

// Impulse is OSC's "I" type, also known as "bang" or "Infinitum".
type Impulse struct{}

func (Impulse) TypeTag() byte                    { return 'I' }
func (Impulse) Append(b []byte) []byte           { return b }
func (Impulse) Consume(b []byte) ([]byte, error) { return b, nil }
func (Impulse) String() string                   { return "Impulse" }

func (TimeTag) TypeTag() byte { return 't' }

func (t TimeTag) Append(b []byte) []byte { return t.appendTo(b) }

func (t *TimeTag) Consume(b []byte) ([]byte, error) {
	v, rest, err := consumeTimeTag(b)
	if err != nil {
		return nil, err
	}
	*t = v
	return rest, nil
}

// Char is a single ASCII character transmitted as 4 bytes; the value sits in
// the low byte and the high three bytes are zero. Code points above 127 are
// rejected by the encoder (spec.md §4.1).
type Char rune

func (Char) TypeTag() byte { return 'c' }

func (c Char) Append(b []byte) []byte {
	return binary.BigEndian.AppendUint32(b, uint32(byte(c)))
}

func (c *Char) Consume(b []byte) ([]byte, error) {
	if len(b) < 4 {
		return nil, decodeErr(ErrTruncated, "char needs 4 bytes, have %d", len(b))
	}
	v := binary.BigEndian.Uint32(b)
	if v >= 128 {
		return nil, decodeErr(ErrInvalidPacket, "char value %d is not 7-bit ASCII", v)
	}
	*c = Char(rune(v))
	return b[4:], nil
}

func (c Char) String() string { return fmt.Sprintf("Char(%q)", rune(c)) }

// Color is an RGBA quadruple, one byte per channel.
type Color struct{ R, G, B, A byte }

func (Color) TypeTag() byte { return 'r' }

func (c Color) Append(b []byte) []byte {
	return append(b, c.R, c.G, c.B, c.A)
}

func (c *Color) Consume(b []byte) ([]byte, error) {
	if len(b) < 4 {
		return nil, decodeErr(ErrTruncated, "color needs 4 bytes, have %d", len(b))
	}
	*c = Color{R: b[0], G: b[1], B: b[2], A: b[3]}
	return b[4:], nil
}

func (c Color) String() string {
	return fmt.Sprintf("Color(%02x%02x%02x%02x)", c.R, c.G, c.B, c.A)
}

// MIDI is a 4-byte MIDI message: port, status, data1, data2.
type MIDI struct{ Port, Status, Data1, Data2 byte }

func (MIDI) TypeTag() byte { return 'm' }

func (m MIDI) Append(b []byte) []byte {
	return append(b, m.Port, m.Status, m.Data1, m.Data2)
}

func (m *MIDI) Consume(b []byte) ([]byte, error) {
	if len(b) < 4 {
		return nil, decodeErr(ErrTruncated, "midi needs 4 bytes, have %d", len(b))
	}
	*m = MIDI{Port: b[0], Status: b[1], Data1: b[2], Data2: b[3]}
	return b[4:], nil
}

func (m MIDI) String() string {
	return fmt.Sprintf("MIDI(port=%d status=%02x d1=%02x d2=%02x)", m.Port, m.Status, m.Data1, m.Data2)
}

// Array is an ordered, possibly nested sequence of arguments, expressed on
// the wire by '[' and ']' brackets in the type tag string (spec.md §3). It
// has no payload bytes of its own; TypeTag is never consulted for Array
// because the encoder/decoder walk the tag string structurally instead of
// treating Array as a single-character tag.
type Array struct {
	Elements []Argument
}

func (Array) TypeTag() byte                    { return 0 }
func (Array) Append(b []byte) []byte           { return b }
func (Array) Consume(b []byte) ([]byte, error) { return b, nil }

func (a Array) String() string {
	return fmt.Sprintf("Array(%d elements)", len(a.Elements))
}
