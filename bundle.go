package osc

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// bundleTag is the literal 8-byte header every bundle starts with.
const bundleTag = "#bundle\x00"

// Bundle is a time tag and an ordered sequence of elements, each itself a
// Packet. Bundles may nest to arbitrary depth (spec.md §3).
type Bundle struct {
	Time     TimeTag
	Elements []Packet
}

// NewBundle constructs a Bundle with the given time tag.
func NewBundle(t TimeTag, elements ...Packet) *Bundle {
	return &Bundle{Time: t, Elements: elements}
}

func (b *Bundle) isPacket() {}

// Append serializes b and appends the bytes to dst (spec.md §4.1).
func (b *Bundle) Append(dst []byte) ([]byte, error) {
	dst = append(dst, bundleTag...)
	dst = b.Time.appendTo(dst)
	for _, elem := range b.Elements {
		enc, err := elem.Append(nil)
		if err != nil {
			return nil, err
		}
		dst = binary.BigEndian.AppendUint32(dst, uint32(len(enc)))
		dst = append(dst, enc...)
	}
	return dst, nil
}

func (b *Bundle) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Bundle(%s", b.Time)
	for _, e := range b.Elements {
		fmt.Fprintf(&sb, " %s", e.String())
	}
	sb.WriteString(")")
	return sb.String()
}

// decodeBundle parses a bundle from buf, which must contain exactly the
// bundle's bytes (spec.md §4.2).
func decodeBundle(buf []byte) (*Bundle, error) {
	if len(buf) < 16 {
		return nil, decodeErr(ErrTruncated, "bundle needs at least 16 bytes, have %d", len(buf))
	}
	if string(buf[:8]) != bundleTag {
		return nil, decodeErr(ErrInvalidPacket, "missing %q header", bundleTag)
	}

	t, rest, err := consumeTimeTag(buf[8:])
	if err != nil {
		return nil, err
	}

	bundle := &Bundle{Time: t}
	for len(rest) > 0 {
		if len(rest) < 4 {
			return nil, decodeErr(ErrTruncated, "bundle element length needs 4 bytes, have %d", len(rest))
		}
		n := int32(binary.BigEndian.Uint32(rest))
		rest = rest[4:]
		if n <= 0 {
			return nil, decodeErr(ErrInvalidBundleElement, "element length %d is not positive", n)
		}
		if int(n) > len(rest) {
			return nil, decodeErr(ErrInvalidBundleElement, "element length %d exceeds %d remaining bytes", n, len(rest))
		}
		elemBuf := rest[:n]
		rest = rest[n:]

		elem, err := Decode(elemBuf)
		if err != nil {
			return nil, err
		}
		bundle.Elements = append(bundle.Elements, elem)
	}

	return bundle, nil
}

// Messages returns every Message reachable from b, recursing into nested
// bundles in order. Useful for callers that want flat iteration without
// going through the address space dispatcher.
func (b *Bundle) Messages() []*Message {
	var out []*Message
	for _, elem := range b.Elements {
		switch v := elem.(type) {
		case *Message:
			out = append(out, v)
		case *Bundle:
			out = append(out, v.Messages()...)
		}
	}
	return out
}
