package descriptor

import (
	"encoding/binary"
	"fmt"
)

// SpaceTableDescriptor (ECMA-167 §14.13, the "Unallocated Space Entry" when
// used for free space) lists free space as an explicit extent list rather
// than a bitmap. spec.md §9 resolves the Space Table/freed-space variants
// as advisory-only: the Free-Space Accounting component treats them as a
// hint, never as the sole source of truth, since nothing requires an
// implementation to keep them current.
type SpaceTableDescriptor struct {
	Tag     Tag
	Extents []Extent
}

// MarshalSpaceTableDescriptor encodes a SpaceTableDescriptor as a FileEntry
// whose allocation descriptors list the free extents; here we encode only
// the advisory extent list itself, matching how the Free-Space Accounting
// component consumes it.
func MarshalSpaceTableDescriptor(s SpaceTableDescriptor) []byte {
	body := make([]byte, 0, 8*len(s.Extents))
	for _, e := range s.Extents {
		body = appendU32(body, e.Length)
		body = appendU32(body, e.Location)
	}
	tagBytes := FinalizeTag(s.Tag, body)
	return append(tagBytes[:], body...)
}

// UnmarshalSpaceTableDescriptor decodes a SpaceTableDescriptor's extent
// list. ident is whatever tag identifier the caller expects at this
// location (Space Table Descriptors reuse the FileEntry/EFE tag space
// depending on UDF revision); 0 disables the identifier check.
func UnmarshalSpaceTableDescriptor(data []byte, readPosition uint32, ident uint16) (SpaceTableDescriptor, error) {
	tag, err := VerifyRaw(data, readPosition, ident)
	if err != nil {
		return SpaceTableDescriptor{}, err
	}
	b := data[TagSize:]
	if len(b)%8 != 0 {
		return SpaceTableDescriptor{}, fmt.Errorf("descriptor: space table body length %d not a multiple of 8", len(b))
	}
	extents := make([]Extent, 0, len(b)/8)
	for off := 0; off < len(b); off += 8 {
		extents = append(extents, Extent{
			Length:   binary.LittleEndian.Uint32(b[off:]),
			Location: binary.LittleEndian.Uint32(b[off+4:]),
		})
	}
	return SpaceTableDescriptor{Tag: tag, Extents: extents}, nil
}

// TotalFreeBlocks sums the lengths (in blocks, given blockSize) of all
// extents in this table.
func (s SpaceTableDescriptor) TotalFreeBlocks(blockSize uint32) uint32 {
	var total uint32
	for _, e := range s.Extents {
		total += e.Length / blockSize
	}
	return total
}
