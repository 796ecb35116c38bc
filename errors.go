package osc

import "fmt"

// DecodeErrorKind classifies a failure encountered while parsing OSC wire
// bytes. See spec.md §4.2 and §6 for the exact conditions that produce each
// kind.
type DecodeErrorKind int

const (
	// ErrTruncated means fewer bytes were available than the format
	// required.
	ErrTruncated DecodeErrorKind = iota
	// ErrInvalidPacket means the packet did not begin with '/' or '#', or
	// failed a structural check (bad bundle tag, negative blob length, bad
	// char payload).
	ErrInvalidPacket
	// ErrUnterminatedString means a string ran off the end of the buffer
	// without a null terminator, or was not valid UTF-8.
	ErrUnterminatedString
	// ErrMissingTypeTag means the type tag string did not begin with ','.
	ErrMissingTypeTag
	// ErrUnknownTypeTag means a type tag character has no known decoding.
	ErrUnknownTypeTag
	// ErrInvalidBundleElement means a bundle element length was <= 0 or
	// exceeded the remaining container bytes.
	ErrInvalidBundleElement
	// ErrUnmatchedArrayClose means a ']' had no matching '[', or a '['
	// was never closed.
	ErrUnmatchedArrayClose
)

func (k DecodeErrorKind) String() string {
	switch k {
	case ErrTruncated:
		return "truncated"
	case ErrInvalidPacket:
		return "invalid packet"
	case ErrUnterminatedString:
		return "unterminated string"
	case ErrMissingTypeTag:
		return "missing type tag"
	case ErrUnknownTypeTag:
		return "unknown type tag"
	case ErrInvalidBundleElement:
		return "invalid bundle element"
	case ErrUnmatchedArrayClose:
		return "unmatched array close"
	default:
		return "unknown decode error"
	}
}

// DecodeError is returned by Decode. Callers that need to
// distinguish failure kinds should use errors.As and inspect Kind.
type DecodeError struct {
	Kind DecodeErrorKind
	// Tag is set for ErrUnknownTypeTag: the offending type tag character.
	Tag byte
	// Msg gives a human-readable detail; never nil-checked by callers.
	Msg string
}

func (e *DecodeError) Error() string {
	if e.Kind == ErrUnknownTypeTag {
		return fmt.Sprintf("osc: %s %q: %s", e.Kind, e.Tag, e.Msg)
	}
	return fmt.Sprintf("osc: %s: %s", e.Kind, e.Msg)
}

func decodeErr(kind DecodeErrorKind, format string, args ...any) error {
	return &DecodeError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func unknownTypeTagErr(tag byte) error {
	return &DecodeError{Kind: ErrUnknownTypeTag, Tag: tag, Msg: "unrecognized type tag character"}
}

// EncodeErrorKind classifies a failure encountered while serializing a value
// that does not satisfy the wire contract.
type EncodeErrorKind int

const (
	// ErrInvalidAddress means an address pattern did not begin with '/'.
	ErrInvalidAddress EncodeErrorKind = iota
	// ErrInvalidCharacter means a Char argument's code point exceeded 127.
	ErrInvalidCharacter
)

func (k EncodeErrorKind) String() string {
	switch k {
	case ErrInvalidAddress:
		return "invalid address"
	case ErrInvalidCharacter:
		return "invalid character"
	default:
		return "unknown encode error"
	}
}

// EncodeError is returned by Encode.
type EncodeError struct {
	Kind EncodeErrorKind
	// Rune is set for ErrInvalidCharacter: the offending code point.
	Rune rune
	Msg  string
}

func (e *EncodeError) Error() string {
	if e.Kind == ErrInvalidCharacter {
		return fmt.Sprintf("osc: %s %q: %s", e.Kind, e.Rune, e.Msg)
	}
	return fmt.Sprintf("osc: %s: %s", e.Kind, e.Msg)
}

func encodeErr(kind EncodeErrorKind, format string, args ...any) error {
	return &EncodeError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func invalidCharErr(r rune) error {
	return &EncodeError{Kind: ErrInvalidCharacter, Rune: r, Msg: "char argument exceeds 7-bit ASCII"}
}
