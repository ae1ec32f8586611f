package descriptor

import (
	"encoding/binary"
	"time"
)

// Timestamp is the ECMA-167 §1.4.14 12-byte timestamp used throughout the
// volume and file descriptors (recording times, FE access/modify times).
type Timestamp struct {
	TypeAndTimezone    uint16
	Year               int16
	Month              uint8
	Day                uint8
	Hour               uint8
	Minute             uint8
	Second             uint8
	Centiseconds       uint8
	HundredsOfMicros   uint8
	Microseconds       uint8
}

const TimestampSize = 12

// MarshalTimestamp encodes a Timestamp.
func MarshalTimestamp(t Timestamp) [TimestampSize]byte {
	var buf [TimestampSize]byte
	binary.LittleEndian.PutUint16(buf[0:2], t.TypeAndTimezone)
	binary.LittleEndian.PutUint16(buf[2:4], uint16(t.Year))
	buf[4] = t.Month
	buf[5] = t.Day
	buf[6] = t.Hour
	buf[7] = t.Minute
	buf[8] = t.Second
	buf[9] = t.Centiseconds
	buf[10] = t.HundredsOfMicros
	buf[11] = t.Microseconds
	return buf
}

// UnmarshalTimestamp decodes a 12-byte Timestamp.
func UnmarshalTimestamp(data []byte) Timestamp {
	return Timestamp{
		TypeAndTimezone:  binary.LittleEndian.Uint16(data[0:2]),
		Year:             int16(binary.LittleEndian.Uint16(data[2:4])),
		Month:            data[4],
		Day:              data[5],
		Hour:             data[6],
		Minute:           data[7],
		Second:           data[8],
		Centiseconds:     data[9],
		HundredsOfMicros: data[10],
		Microseconds:     data[11],
	}
}

// Time converts a Timestamp to a time.Time in UTC, ignoring the embedded
// timezone offset encoded in the low 12 bits of TypeAndTimezone (-1440..1440
// minutes from UTC, two's-complement, -32768 meaning "not specified"); most
// consumers only need a sortable instant, not a faithful local time.
func (t Timestamp) Time() time.Time {
	return time.Date(int(t.Year), time.Month(t.Month), int(t.Day),
		int(t.Hour), int(t.Minute), int(t.Second),
		int(t.Centiseconds)*10_000_000, time.UTC)
}

// FromLocalTime builds a Timestamp carrying t's own zone offset instead of
// forcing UTC, for sites that must round-trip local time faithfully (the
// Structural Fixer's LVID close-out, spec.md §4.14). The offset is minutes
// east of UTC, two's complement, in the low 12 bits of TypeAndTimezone; the
// high 4 bits hold type 1 ("recorded local time").
func FromLocalTime(t time.Time) Timestamp {
	_, offsetSec := t.Zone()
	tz := uint16(offsetSec/60) & 0x0FFF
	return Timestamp{
		TypeAndTimezone:  1<<12 | tz,
		Year:             int16(t.Year()),
		Month:            uint8(t.Month()),
		Day:              uint8(t.Day()),
		Hour:             uint8(t.Hour()),
		Minute:           uint8(t.Minute()),
		Second:           uint8(t.Second()),
		Centiseconds:     uint8(t.Nanosecond() / 10_000_000),
	}
}

// FromTime builds a Timestamp from a time.Time, in UTC, type 1 (recorded
// local time, offset 0) per spec.md's convention of not round-tripping local
// timezone state.
func FromTime(t time.Time) Timestamp {
	u := t.UTC()
	return Timestamp{
		TypeAndTimezone: 1 << 12,
		Year:            int16(u.Year()),
		Month:           uint8(u.Month()),
		Day:             uint8(u.Day()),
		Hour:            uint8(u.Hour()),
		Minute:          uint8(u.Minute()),
		Second:          uint8(u.Second()),
		Centiseconds:    uint8(u.Nanosecond() / 10_000_000),
	}
}
