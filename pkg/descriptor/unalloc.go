package descriptor

import (
	"encoding/binary"
	"fmt"
)

// UnallocatedSpaceDescriptor (ECMA-167 §3.10.8) lists extents of unallocated
// space at the logical volume level (as opposed to the per-partition space
// bitmap/table); advisory input to the Free-Space Accounting component
// (spec.md §4.13).
type UnallocatedSpaceDescriptor struct {
	Tag                            Tag
	VolumeDescriptorSequenceNumber uint32
	Extents                        []Extent
}

// Extent is a (length, location) pair as used in allocation descriptors and
// unallocated-space lists throughout the descriptor set.
type Extent struct {
	Length   uint32
	Location uint32
}

const tagIdentUnallocated uint16 = 7

// MarshalUnallocatedSpaceDescriptor encodes an UnallocatedSpaceDescriptor.
func MarshalUnallocatedSpaceDescriptor(u UnallocatedSpaceDescriptor) []byte {
	body := make([]byte, 0, 8+8*len(u.Extents))
	body = appendU32(body, u.VolumeDescriptorSequenceNumber)
	body = appendU32(body, uint32(len(u.Extents)))
	for _, e := range u.Extents {
		body = appendU32(body, e.Length)
		body = appendU32(body, e.Location)
	}
	tagBytes := FinalizeTag(u.Tag, body)
	return append(tagBytes[:], body...)
}

// UnmarshalUnallocatedSpaceDescriptor decodes and verifies one.
func UnmarshalUnallocatedSpaceDescriptor(data []byte, readPosition uint32) (UnallocatedSpaceDescriptor, error) {
	tag, err := VerifyRaw(data, readPosition, tagIdentUnallocated)
	if err != nil {
		return UnallocatedSpaceDescriptor{}, err
	}
	b := data[TagSize:]
	if len(b) < 8 {
		return UnallocatedSpaceDescriptor{}, fmt.Errorf("descriptor: Unallocated Space Descriptor body too short")
	}
	seqNum := binary.LittleEndian.Uint32(b[0:4])
	numAlloc := binary.LittleEndian.Uint32(b[4:8])
	extents := make([]Extent, 0, numAlloc)
	off := 8
	for i := uint32(0); i < numAlloc; i++ {
		if off+8 > len(b) {
			return UnallocatedSpaceDescriptor{}, fmt.Errorf("descriptor: Unallocated Space Descriptor truncated at extent %d", i)
		}
		extents = append(extents, Extent{
			Length:   binary.LittleEndian.Uint32(b[off:]),
			Location: binary.LittleEndian.Uint32(b[off+4:]),
		})
		off += 8
	}
	return UnallocatedSpaceDescriptor{Tag: tag, VolumeDescriptorSequenceNumber: seqNum, Extents: extents}, nil
}
