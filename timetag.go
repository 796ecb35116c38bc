package osc

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// epoch is the NTP epoch: 1 January 1900 UTC, the origin of every TimeTag's
// seconds field.
var epoch = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)

// Immediate is the sentinel raw TimeTag value meaning "dispatch immediately".
// It has no wall-clock interpretation (spec.md §3).
const Immediate uint64 = 1

// TimeTag is the OSC NTP 64-bit timestamp: the upper 32 bits are seconds
// since the NTP epoch, the lower 32 bits are a binary fraction of a second
// (unit 1/2^32 s). The raw value 1 is the "immediately" sentinel.
type TimeTag uint64

// Now returns the TimeTag for the current wall-clock instant.
func Now() TimeTag {
	return FromTime(time.Now())
}

// ImmediateTag returns the "immediately" sentinel TimeTag.
func ImmediateTag() TimeTag {
	return TimeTag(Immediate)
}

// FromTime converts a wall-clock instant to a TimeTag. Instants at or before
// the NTP epoch clamp to zero rather than wrapping.
func FromTime(t time.Time) TimeTag {
	secs := t.Sub(epoch).Seconds()
	if secs <= 0 {
		return 0
	}
	const fracPerSecond = float64(int64(1) << 32)
	whole, frac := math.Modf(secs)
	return TimeTag((uint64(whole) << 32) | uint64(frac*fracPerSecond))
}

// Time converts the TimeTag to a wall-clock instant. The Immediate sentinel
// converts to the NTP epoch itself; callers that care about the sentinel
// should check IsImmediate first.
func (t TimeTag) Time() time.Time {
	secs := float64(uint64(t) >> 32)
	secs += float64(uint64(t)&0xffffffff) / float64(uint64(1)<<32)
	return epoch.Add(time.Duration(secs * float64(time.Second)))
}

// IsImmediate reports whether t is the "immediately" sentinel.
func (t TimeTag) IsImmediate() bool {
	return uint64(t) == Immediate
}

func (t TimeTag) appendTo(b []byte) []byte {
	return binary.BigEndian.AppendUint64(b, uint64(t))
}

func consumeTimeTag(b []byte) (TimeTag, []byte, error) {
	if len(b) < 8 {
		return 0, nil, decodeErr(ErrTruncated, "time tag needs 8 bytes, have %d", len(b))
	}
	return TimeTag(binary.BigEndian.Uint64(b)), b[8:], nil
}

func (t TimeTag) String() string {
	if t.IsImmediate() {
		return "TimeTag(immediately)"
	}
	return fmt.Sprintf("TimeTag(%s)", t.Time().Format(time.RFC3339Nano))
}
