// Package descriptor implements the ECMA-167/UDF on-disk descriptor types
// named in spec.md §4.4/§4.6/§4.7/§4.9/§4.10/§4.11: the 16-byte Descriptor
// Tag common to every descriptor, and the concrete descriptor bodies built
// on top of it.
package descriptor

import (
	"encoding/binary"
	"fmt"

	"github.com/bgrewell/udf-kit/pkg/crc"
)

// Tag is the 16-byte header ("Descriptor Tag", ECMA-167 §3.7.2) that
// prefixes every descriptor on disc.
type Tag struct {
	Identifier   uint16
	Version      uint16
	Checksum     byte
	Reserved     byte
	SerialNumber uint16
	CRC          uint16
	CRCLength    uint16
	Location     uint32
}

const TagSize = 16

// MarshalTag encodes a Tag into its 16-byte wire form. The checksum byte is
// recomputed from the other 15 bytes so callers never need to track it by
// hand.
func MarshalTag(t Tag) [TagSize]byte {
	var buf [TagSize]byte
	binary.LittleEndian.PutUint16(buf[0:2], t.Identifier)
	binary.LittleEndian.PutUint16(buf[2:4], t.Version)
	// buf[4] is the checksum byte, filled in below.
	buf[5] = t.Reserved
	binary.LittleEndian.PutUint16(buf[6:8], t.SerialNumber)
	binary.LittleEndian.PutUint16(buf[8:10], t.CRC)
	binary.LittleEndian.PutUint16(buf[10:12], t.CRCLength)
	binary.LittleEndian.PutUint32(buf[12:16], t.Location)
	buf[4] = crc.TagChecksum(buf)
	return buf
}

// UnmarshalTag decodes a 16-byte Descriptor Tag without verifying it; use
// crc.Verify for that.
func UnmarshalTag(data []byte) (Tag, error) {
	if len(data) < TagSize {
		return Tag{}, fmt.Errorf("descriptor: tag needs %d bytes, got %d", TagSize, len(data))
	}
	return Tag{
		Identifier:   binary.LittleEndian.Uint16(data[0:2]),
		Version:      binary.LittleEndian.Uint16(data[2:4]),
		Checksum:     data[4],
		Reserved:     data[5],
		SerialNumber: binary.LittleEndian.Uint16(data[6:8]),
		CRC:          binary.LittleEndian.Uint16(data[8:10]),
		CRCLength:    binary.LittleEndian.Uint16(data[10:12]),
		Location:     binary.LittleEndian.Uint32(data[12:16]),
	}, nil
}

// taggedBody wraps a raw descriptor so it implements crc.Verifier, given its
// already-decoded Tag and body bytes (the bytes following the 16-byte tag,
// padded/truncated by the caller to CRCLength).
type taggedBody struct {
	tag      Tag
	tagBytes [TagSize]byte
	body     []byte
}

func (t taggedBody) TagIdentifier() uint16    { return t.tag.Identifier }
func (t taggedBody) TagChecksumByte() byte    { return t.tag.Checksum }
func (t taggedBody) TagBytes() [TagSize]byte  { return t.tagBytes }
func (t taggedBody) DescCRC() uint16          { return t.tag.CRC }
func (t taggedBody) DescCRCLength() uint16    { return t.tag.CRCLength }
func (t taggedBody) Body() []byte             { return t.body }
func (t taggedBody) TagLocation() uint32      { return t.tag.Location }

// VerifyRaw verifies a full descriptor (16-byte tag + body) read from
// readPosition, checking identifier, checksum, CRC and tag location.
func VerifyRaw(data []byte, readPosition uint32, wantIdent uint16) (Tag, error) {
	if len(data) < TagSize {
		return Tag{}, fmt.Errorf("descriptor: need at least %d bytes, got %d", TagSize, len(data))
	}
	tag, err := UnmarshalTag(data)
	if err != nil {
		return Tag{}, err
	}
	var tb [TagSize]byte
	copy(tb[:], data[:TagSize])
	tv := taggedBody{tag: tag, tagBytes: tb, body: data[TagSize:]}
	if err := crc.Verify(tv, readPosition, wantIdent); err != nil {
		return tag, err
	}
	return tag, nil
}

// NewTag builds a Tag for a descriptor about to be written to disc, filling
// in identifier/location/crcLength and leaving CRC to be computed by the
// caller once the body bytes are final.
func NewTag(identifier uint16, version uint16, location uint32, crcLength uint16) Tag {
	return Tag{
		Identifier: identifier,
		Version:    version,
		Location:   location,
		CRCLength:  crcLength,
	}
}

// FinalizeTag computes CRCLength and CRC over body and returns the encoded
// 16-byte tag ready to be prepended to it. Every descriptor Marshal function
// in this package funnels through here so CRC/checksum computation lives in
// one place.
func FinalizeTag(tag Tag, body []byte) [TagSize]byte {
	tag.CRCLength = uint16(len(body))
	tag.CRC = crc.CRC16(body, 0)
	return MarshalTag(tag)
}

// SerialNumberFromSet is a convenience used by writers that increment the
// tag serial number on every rewrite of a descriptor (AVDP, LVID), following
// consts.ExitOK-adjacent conventions elsewhere in the module: zero is a
// valid starting serial number.
func SerialNumberFromSet(prevMax uint16) uint16 {
	return prevMax + 1
}
