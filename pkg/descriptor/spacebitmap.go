package descriptor

import (
	"encoding/binary"
	"fmt"

	"github.com/bgrewell/udf-kit/pkg/consts"
)

// SpaceBitmapDescriptor (ECMA-167 §14.12) records free/used state for every
// block of a partition as one bit each (1 = unallocated), the authoritative
// free-space source for an Unallocated Space Bitmap (spec.md §4.13).
type SpaceBitmapDescriptor struct {
	Tag               Tag
	NumberOfBits      uint32
	NumberOfBytes     uint32
	Bitmap            []byte
}

const spaceBitmapFixedLen = 8

// MarshalSpaceBitmapDescriptor encodes a SpaceBitmapDescriptor.
func MarshalSpaceBitmapDescriptor(s SpaceBitmapDescriptor) []byte {
	s.NumberOfBytes = uint32(len(s.Bitmap))
	body := make([]byte, 0, spaceBitmapFixedLen+len(s.Bitmap))
	body = appendU32(body, s.NumberOfBits)
	body = appendU32(body, s.NumberOfBytes)
	body = append(body, s.Bitmap...)

	tagBytes := FinalizeTag(s.Tag, body)
	return append(tagBytes[:], body...)
}

// UnmarshalSpaceBitmapDescriptor decodes and verifies a
// SpaceBitmapDescriptor.
func UnmarshalSpaceBitmapDescriptor(data []byte, readPosition uint32) (SpaceBitmapDescriptor, error) {
	tag, err := VerifyRaw(data, readPosition, consts.TagIdentSpaceBitmapDescriptor)
	if err != nil {
		return SpaceBitmapDescriptor{}, err
	}
	b := data[TagSize:]
	if len(b) < spaceBitmapFixedLen {
		return SpaceBitmapDescriptor{}, fmt.Errorf("descriptor: space bitmap body too short: %d bytes", len(b))
	}
	numBits := binary.LittleEndian.Uint32(b[0:4])
	numBytes := binary.LittleEndian.Uint32(b[4:8])
	if uint32(len(b)-8) < numBytes {
		return SpaceBitmapDescriptor{}, fmt.Errorf("descriptor: space bitmap truncated: need %d bytes, have %d", numBytes, len(b)-8)
	}
	bitmap := append([]byte(nil), b[8:8+numBytes]...)
	return SpaceBitmapDescriptor{Tag: tag, NumberOfBits: numBits, NumberOfBytes: numBytes, Bitmap: bitmap}, nil
}

// IsFree reports whether block is marked unallocated (bit set).
func (s SpaceBitmapDescriptor) IsFree(block uint32) bool {
	if block >= s.NumberOfBits {
		return false
	}
	byteIdx := block / 8
	bitIdx := block % 8
	if int(byteIdx) >= len(s.Bitmap) {
		return false
	}
	return s.Bitmap[byteIdx]&(1<<bitIdx) != 0
}

// SetFree sets or clears the free bit for block, used by the fixer when
// reconciling the bitmap against the extent map (spec.md §4.14).
func (s *SpaceBitmapDescriptor) SetFree(block uint32, free bool) {
	if block >= s.NumberOfBits {
		return
	}
	byteIdx := block / 8
	bitIdx := block % 8
	if free {
		s.Bitmap[byteIdx] |= 1 << bitIdx
	} else {
		s.Bitmap[byteIdx] &^= 1 << bitIdx
	}
}

// CountFree returns the number of blocks currently marked free.
func (s SpaceBitmapDescriptor) CountFree() uint32 {
	var n uint32
	for i := uint32(0); i < s.NumberOfBits; i++ {
		if s.IsFree(i) {
			n++
		}
	}
	return n
}
