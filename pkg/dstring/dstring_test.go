package dstring

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip8Bit(t *testing.T) {
	field, err := Encode("HELLO", 16)
	require.NoError(t, err)
	require.Len(t, field, 16)
	require.Equal(t, Compression8Bit, field[0])

	got, err := Decode(field)
	require.NoError(t, err)
	require.Equal(t, "HELLO", got)
}

func TestEncodeDecodeRoundTrip16Bit(t *testing.T) {
	s := "hélloéあ" // contains a high code point forcing 16-bit
	field, err := Encode(s, 32)
	require.NoError(t, err)
	require.Equal(t, Compression16Bit, field[0])

	got, err := Decode(field)
	require.NoError(t, err)
	require.Equal(t, s, got)
}

func TestEncodeEmptyString(t *testing.T) {
	field, err := Encode("", 8)
	require.NoError(t, err)
	got, err := Decode(field)
	require.NoError(t, err)
	require.Equal(t, "", got)
}

func TestEncodeTooLong(t *testing.T) {
	_, err := Encode("this string is far too long to fit", 8)
	require.ErrorIs(t, err, ErrTooLong)
}

func TestEncodeRejectsBOM(t *testing.T) {
	_, err := Encode("﻿helloあ", 64)
	require.ErrorIs(t, err, ErrIllegalBOM)
}

func TestDecodeUsedLengthZeroIsEmpty(t *testing.T) {
	field := make([]byte, 10)
	got, err := Decode(field)
	require.NoError(t, err)
	require.Equal(t, "", got)
}

func TestEncodeChars(t *testing.T) {
	payload, err := EncodeChars("readme.txt")
	require.NoError(t, err)
	require.Equal(t, Compression8Bit, payload[0])

	got, err := DecodeChars(payload)
	require.NoError(t, err)
	require.Equal(t, "readme.txt", got)
}

func TestDecodeUnknownCompressionID(t *testing.T) {
	field := []byte{99, 'a', 'b', 3}
	_, err := Decode(field)
	require.Error(t, err)
}
