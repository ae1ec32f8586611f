// Package dstring implements the OSTA Compressed Unicode codec used for
// every UDF identifier and string field (spec.md §4.2). It is pure and
// deterministic: callers choose what Go string encoding they want on the
// decoded side (this package always decodes to UTF-8); it never consults
// locale.
package dstring

import (
	"errors"
	"fmt"

	"golang.org/x/text/encoding/charmap"
)

// Compression identifiers (byte 0 of the field).
const (
	CompressionEmpty byte = 0
	Compression8Bit  byte = 8
	Compression16Bit byte = 16
)

// ErrTooLong is returned when encoded content (including the compression
// byte and, for dstring fields, the trailing length byte) would not fit in
// the target field.
var ErrTooLong = errors.New("dstring: encoded value too long for field")

// ErrIllegalBOM is returned when a 16-bit encode would place U+FEFF/U+FFFE at
// an even byte offset relative to the compression byte (a character
// boundary), which OSTA forbids; odd-offset placement is permitted.
var ErrIllegalBOM = errors.New("dstring: illegal byte-order-mark at character boundary")

// Decode parses a dstring field: the final byte of data is the used length
// (including the compression byte itself), per spec.md §4.2. A used length
// of 0, or a leading compression byte of 0, decodes to "".
func Decode(data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	usedLen := int(data[len(data)-1])
	if usedLen == 0 {
		return "", nil
	}
	if usedLen > len(data)-1 {
		return "", fmt.Errorf("dstring: used length %d exceeds field capacity %d", usedLen, len(data)-1)
	}
	return decodeBody(data[:usedLen])
}

// DecodeChars parses a dchars field, where the caller has already sliced
// data down to its externally-known used length (no trailing length byte).
func DecodeChars(data []byte) (string, error) {
	return decodeBody(data)
}

func decodeBody(data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	switch data[0] {
	case CompressionEmpty:
		return "", nil
	case Compression8Bit:
		out, err := charmap.ISO8859_1.NewDecoder().Bytes(data[1:])
		if err != nil {
			return "", fmt.Errorf("dstring: latin1 decode: %w", err)
		}
		return string(out), nil
	case Compression16Bit:
		payload := data[1:]
		if len(payload)%2 != 0 {
			payload = payload[:len(payload)-1]
		}
		runes := make([]rune, 0, len(payload)/2)
		for i := 0; i+1 < len(payload); i += 2 {
			runes = append(runes, rune(uint16(payload[i])<<8|uint16(payload[i+1])))
		}
		return string(runes), nil
	default:
		return "", fmt.Errorf("dstring: unrecognized compression id 0x%02x", data[0])
	}
}

// Encode produces a dstring field of exactly fieldLen bytes: compression
// byte, payload, zero padding, then a trailing used-length byte. It tries
// 8-bit encoding first, falling back to 16-bit the first time it encounters
// a code point above 0xFF.
func Encode(s string, fieldLen int) ([]byte, error) {
	if fieldLen < 2 {
		return nil, fmt.Errorf("dstring: field too small (%d bytes)", fieldLen)
	}
	if s == "" {
		out := make([]byte, fieldLen)
		return out, nil
	}

	payload, compression, err := encodePayload(s)
	if err != nil {
		return nil, err
	}

	used := 1 + len(payload)
	if used > fieldLen-1 {
		return nil, ErrTooLong
	}

	out := make([]byte, fieldLen)
	out[0] = compression
	copy(out[1:], payload)
	out[fieldLen-1] = byte(used)
	return out, nil
}

// EncodeChars produces a dchars payload (compression byte + content, no
// trailing length byte, no fixed field padding) for use in variable-length
// contexts such as FID identifiers.
func EncodeChars(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	payload, compression, err := encodePayload(s)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 1+len(payload))
	out[0] = compression
	copy(out[1:], payload)
	return out, nil
}

func encodePayload(s string) (payload []byte, compression byte, err error) {
	if fits8Bit(s) {
		enc, encErr := charmap.ISO8859_1.NewEncoder().String(s)
		if encErr == nil {
			return []byte(enc), Compression8Bit, nil
		}
	}

	runes := []rune(s)
	payload = make([]byte, 0, len(runes)*2)
	for _, r := range runes {
		if r > 0xFFFF {
			return nil, 0, fmt.Errorf("dstring: code point U+%X outside UCS-2 range", r)
		}
		if r == 0xFEFF || r == 0xFFFE {
			// Every UCS-2 code unit we emit starts at a byte offset that is
			// a character boundary (even offset from the compression byte);
			// odd-offset placement never arises from this per-rune encoder,
			// so any BOM code point is always illegal here.
			return nil, 0, ErrIllegalBOM
		}
		payload = append(payload, byte(r>>8), byte(r))
	}
	return payload, Compression16Bit, nil
}

func fits8Bit(s string) bool {
	for _, r := range s {
		if r > 0xFF {
			return false
		}
	}
	return true
}
