package crc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCRC16KnownVector(t *testing.T) {
	// CRC-16/CCITT-FALSE("123456789") is a commonly cited test vector for
	// poly 0x1021, init 0xFFFF. UDF instead uses init 0 (spec.md §4.1), so
	// we only assert self-consistency and the zero-length identity here.
	require.Equal(t, uint16(0), CRC16(nil, 0))
	require.Equal(t, uint16(0), CRC16([]byte{}, 0))
}

func TestCRC16Deterministic(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")
	a := CRC16(data, 0)
	b := CRC16(data, 0)
	require.Equal(t, a, b)
	require.NotEqual(t, a, CRC16(append([]byte{0x01}, data...), 0))
}

func TestTagChecksumExcludesByte4(t *testing.T) {
	var tag [16]byte
	for i := range tag {
		tag[i] = byte(i + 1)
	}
	sum := TagChecksum(tag)
	var want byte
	for i, b := range tag {
		if i == 4 {
			continue
		}
		want += b
	}
	require.Equal(t, want, sum)

	// Changing byte 4 must not change the checksum.
	tag[4] = 0xFF
	require.Equal(t, want, TagChecksum(tag))
}

type fakeDesc struct {
	ident    uint16
	checksum byte
	tagBytes [16]byte
	crcVal   uint16
	crcLen   uint16
	body     []byte
	location uint32
}

func (f fakeDesc) TagIdentifier() uint16   { return f.ident }
func (f fakeDesc) TagChecksumByte() byte   { return f.checksum }
func (f fakeDesc) TagBytes() [16]byte      { return f.tagBytes }
func (f fakeDesc) DescCRC() uint16         { return f.crcVal }
func (f fakeDesc) DescCRCLength() uint16   { return f.crcLen }
func (f fakeDesc) Body() []byte            { return f.body }
func (f fakeDesc) TagLocation() uint32     { return f.location }

func TestVerifyHappyPath(t *testing.T) {
	body := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	crcVal := CRC16(body, 0)
	var tagBytes [16]byte
	tagBytes[0] = 9 // arbitrary ident low byte
	checksum := TagChecksum(tagBytes)

	d := fakeDesc{
		ident:    9,
		checksum: checksum,
		tagBytes: tagBytes,
		crcVal:   crcVal,
		crcLen:   uint16(len(body)),
		body:     body,
		location: 42,
	}

	require.NoError(t, Verify(d, 42, 9))
}

func TestVerifyDetectsEachFailureMode(t *testing.T) {
	body := []byte{1, 2, 3, 4}
	crcVal := CRC16(body, 0)
	var tagBytes [16]byte
	checksum := TagChecksum(tagBytes)
	base := fakeDesc{ident: 1, checksum: checksum, tagBytes: tagBytes, crcVal: crcVal, crcLen: uint16(len(body)), body: body, location: 7}

	require.NoError(t, Verify(base, 7, 1))

	bad := base
	bad.checksum = checksum + 1
	require.ErrorIs(t, Verify(bad, 7, 1), ErrChecksum)

	bad = base
	bad.crcVal = crcVal + 1
	require.ErrorIs(t, Verify(bad, 7, 1), ErrCRC)

	bad = base
	require.ErrorIs(t, Verify(bad, 8, 1), ErrPosition)

	bad = base
	require.ErrorIs(t, Verify(bad, 7, 2), ErrWrongIdent)
}
