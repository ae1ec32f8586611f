package descriptor

import (
	"encoding/binary"
	"fmt"

	"github.com/bgrewell/udf-kit/pkg/consts"
)

// VolumeDescriptorPointer ("VDP", ECMA-167 §3.10.3) redirects a Volume
// Descriptor Sequence scan to a continuation extent when the sequence
// doesn't fit in its originally allotted space — the VDS Scanner follows
// this up to consts.MaxVDSContinuationHops times (spec.md §4.6).
type VolumeDescriptorPointer struct {
	Tag                                 Tag
	VolumeDescriptorSequenceNumber      uint32
	NextVolumeDescriptorSequenceExtent  Extent
}

const vdpFixedLen = 12

// MarshalVolumeDescriptorPointer encodes a VolumeDescriptorPointer.
func MarshalVolumeDescriptorPointer(v VolumeDescriptorPointer) []byte {
	body := make([]byte, 0, vdpFixedLen)
	body = appendU32(body, v.VolumeDescriptorSequenceNumber)
	body = appendU32(body, v.NextVolumeDescriptorSequenceExtent.Length)
	body = appendU32(body, v.NextVolumeDescriptorSequenceExtent.Location)
	tagBytes := FinalizeTag(v.Tag, body)
	return append(tagBytes[:], body...)
}

// UnmarshalVolumeDescriptorPointer decodes and verifies a
// VolumeDescriptorPointer.
func UnmarshalVolumeDescriptorPointer(data []byte, readPosition uint32) (VolumeDescriptorPointer, error) {
	tag, err := VerifyRaw(data, readPosition, consts.TagIdentVolumeDescriptorPointer)
	if err != nil {
		return VolumeDescriptorPointer{}, err
	}
	b := data[TagSize:]
	if len(b) < vdpFixedLen {
		return VolumeDescriptorPointer{}, fmt.Errorf("descriptor: VDP body too short: %d bytes", len(b))
	}
	return VolumeDescriptorPointer{
		Tag:                            tag,
		VolumeDescriptorSequenceNumber: binary.LittleEndian.Uint32(b[0:4]),
		NextVolumeDescriptorSequenceExtent: Extent{
			Length:   binary.LittleEndian.Uint32(b[4:8]),
			Location: binary.LittleEndian.Uint32(b[8:12]),
		},
	}, nil
}
