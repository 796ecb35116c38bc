package osc

import (
	"fmt"
	"strings"
)

// Message is an OSC message: an address pattern and an ordered sequence of
// arguments (spec.md §3).
type Message struct {
	Address   string
	Arguments []Argument
}

// NewMessage constructs a Message, validating that Address begins with '/'.
func NewMessage(address string, args ...Argument) (*Message, error) {
	if !strings.HasPrefix(address, "/") {
		return nil, encodeErr(ErrInvalidAddress, "address %q does not start with '/'", address)
	}
	return &Message{Address: address, Arguments: args}, nil
}

func (m *Message) isPacket() {}

// Append serializes m and appends the bytes to b (spec.md §4.1).
func (m *Message) Append(b []byte) ([]byte, error) {
	if !strings.HasPrefix(m.Address, "/") {
		return nil, encodeErr(ErrInvalidAddress, "address %q does not start with '/'", m.Address)
	}
	b = appendPaddedString(b, m.Address)

	tags := make([]byte, 0, len(m.Arguments)+2)
	tags = append(tags, ',')
	var tagErr error
	tags = appendTypeTags(tags, m.Arguments, &tagErr)
	if tagErr != nil {
		return nil, tagErr
	}
	b = appendPaddedString(b, string(tags))

	return appendArgumentPayloads(b, m.Arguments)
}

// appendTypeTags recursively builds the type tag string, emitting '[' / ']'
// around array elements and the scalar tag character otherwise.
func appendTypeTags(tags []byte, args []Argument, errOut *error) []byte {
	for _, a := range args {
		switch v := a.(type) {
		case *Array:
			tags = append(tags, '[')
			tags = appendTypeTags(tags, v.Elements, errOut)
			tags = append(tags, ']')
			continue
		case Array:
			tags = append(tags, '[')
			tags = appendTypeTags(tags, v.Elements, errOut)
			tags = append(tags, ']')
			continue
		case *Char:
			if *v > 127 && *errOut == nil {
				*errOut = invalidCharErr(rune(*v))
			}
		}
		tags = append(tags, a.TypeTag())
	}
	return tags
}

// appendArgumentPayloads recursively appends payload bytes in the same
// order as appendTypeTags walks, skipping bracket characters entirely.
func appendArgumentPayloads(b []byte, args []Argument) ([]byte, error) {
	for _, a := range args {
		switch v := a.(type) {
		case *Array:
			var err error
			b, err = appendArgumentPayloads(b, v.Elements)
			if err != nil {
				return nil, err
			}
		case Array:
			var err error
			b, err = appendArgumentPayloads(b, v.Elements)
			if err != nil {
				return nil, err
			}
		default:
			b = a.Append(b)
		}
	}
	return b, nil
}

func (m *Message) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Message(%s", m.Address)
	for _, a := range m.Arguments {
		fmt.Fprintf(&sb, " %v", a)
	}
	sb.WriteString(")")
	return sb.String()
}

// decodeMessage parses a message from buf, which must contain exactly the
// message's bytes (spec.md §4.2).
func decodeMessage(buf []byte) (*Message, error) {
	addr, rest, err := consumePaddedString(buf)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(addr, "/") {
		return nil, decodeErr(ErrInvalidPacket, "address %q does not start with '/'", addr)
	}

	if len(rest) == 0 {
		return &Message{Address: addr}, nil
	}

	tags, rest, err := consumePaddedString(rest)
	if err != nil {
		return nil, err
	}
	if len(tags) == 0 || tags[0] != ',' {
		return nil, decodeErr(ErrMissingTypeTag, "type tag string %q does not start with ','", tags)
	}

	args, closed, _, _, err := decodeArguments([]byte(tags[1:]), rest)
	if err != nil {
		return nil, err
	}
	if closed {
		return nil, decodeErr(ErrUnmatchedArrayClose, "unmatched ']'")
	}
	return &Message{Address: addr, Arguments: args}, nil
}

// decodeArguments walks a slice of type tag characters (sans leading comma),
// maintaining an explicit recursive stack for array nesting, consuming
// payload bytes from buf as it goes. It returns the arguments parsed at this
// nesting level, whether termination was due to a ']' closing this level
// (as opposed to running out of tags), the unconsumed tag suffix, and the
// unconsumed payload bytes.
func decodeArguments(tags []byte, buf []byte) (args []Argument, closed bool, restTags []byte, restBuf []byte, err error) {
	for len(tags) > 0 {
		tag := tags[0]
		tags = tags[1:]
		switch tag {
		case ']':
			return args, true, tags, buf, nil
		case '[':
			children, childClosed, nextTags, nextBuf, err := decodeArguments(tags, buf)
			if err != nil {
				return args, false, nextTags, nextBuf, err
			}
			if !childClosed {
				return args, false, nextTags, nextBuf, decodeErr(ErrUnmatchedArrayClose, "unclosed '['")
			}
			tags = nextTags
			buf = nextBuf
			args = append(args, &Array{Elements: children})
			continue
		}

		arg, rest, err := decodeScalar(tag, buf)
		if err != nil {
			return args, false, tags, buf, err
		}
		buf = rest
		args = append(args, arg)
	}
	return args, false, tags, buf, nil
}

func decodeScalar(tag byte, buf []byte) (Argument, []byte, error) {
	switch tag {
	case 'i':
		var v Int32
		rest, err := v.Consume(buf)
		return &v, rest, err
	case 'h':
		var v Int64
		rest, err := v.Consume(buf)
		return &v, rest, err
	case 'f':
		var v Float32
		rest, err := v.Consume(buf)
		return &v, rest, err
	case 'd':
		var v Float64
		rest, err := v.Consume(buf)
		return &v, rest, err
	case 's':
		var v String
		rest, err := v.Consume(buf)
		return &v, rest, err
	case 'S':
		var v Symbol
		rest, err := v.Consume(buf)
		return &v, rest, err
	case 'b':
		var v Blob
		rest, err := v.Consume(buf)
		return &v, rest, err
	case 't':
		var v TimeTag
		rest, err := v.Consume(buf)
		return &v, rest, err
	case 'c':
		var v Char
		rest, err := v.Consume(buf)
		return &v, rest, err
	case 'r':
		var v Color
		rest, err := v.Consume(buf)
		return &v, rest, err
	case 'm':
		var v MIDI
		rest, err := v.Consume(buf)
		return &v, rest, err
	case 'T':
		return True{}, buf, nil
	case 'F':
		return False{}, buf, nil
	case 'N':
		return Nil{}, buf, nil
	case 'I':
		return Impulse{}, buf, nil
	default:
		return nil, nil, unknownTypeTagErr(tag)
	}
}
