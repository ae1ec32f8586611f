package descriptor

import (
	"encoding/binary"
	"fmt"

	"github.com/bgrewell/udf-kit/pkg/dstring"
	"github.com/bgrewell/udf-kit/pkg/entity"
)

// ImplementationUseVolumeDescriptor ("IUVD", ECMA-167 §3.10.4 via UDF
// 2.2.7) carries the LV Information Implementation Use area: owner/org/
// contact strings and the logical volume identifier mirrored from the LVD,
// used by extract_label/label mutators (spec.md §4.6/§6).
type ImplementationUseVolumeDescriptor struct {
	Tag                            Tag
	VolumeDescriptorSequenceNumber uint32
	ImplementationIdentifier       entity.ID
	LogicalVolumeIdentifier        string // 128-byte dstring, mirrors the LVD's
	LVInfo1                        string // owner, 36-byte dstring
	LVInfo2                        string // organization, 36-byte dstring
	LVInfo3                        string // contact, 36-byte dstring
	ImplementationID               entity.ID
	ImplementationUse              [128]byte
}

const tagIdentIUVD uint16 = 4

// MarshalIUVD encodes an ImplementationUseVolumeDescriptor.
func MarshalIUVD(u ImplementationUseVolumeDescriptor) ([]byte, error) {
	lvIdent, err := dstring.Encode(u.LogicalVolumeIdentifier, 128)
	if err != nil {
		return nil, fmt.Errorf("descriptor: IUVD LV identifier: %w", err)
	}
	info1, err := dstring.Encode(u.LVInfo1, 36)
	if err != nil {
		return nil, fmt.Errorf("descriptor: IUVD LV info 1: %w", err)
	}
	info2, err := dstring.Encode(u.LVInfo2, 36)
	if err != nil {
		return nil, fmt.Errorf("descriptor: IUVD LV info 2: %w", err)
	}
	info3, err := dstring.Encode(u.LVInfo3, 36)
	if err != nil {
		return nil, fmt.Errorf("descriptor: IUVD LV info 3: %w", err)
	}

	body := make([]byte, 0, 460)
	body = appendU32(body, u.VolumeDescriptorSequenceNumber)
	implID := u.ImplementationIdentifier.Marshal()
	body = append(body, implID[:]...)
	body = append(body, lvIdent...)
	body = append(body, info1...)
	body = append(body, info2...)
	body = append(body, info3...)
	implID2 := u.ImplementationID.Marshal()
	body = append(body, implID2[:]...)
	body = append(body, u.ImplementationUse[:]...)

	tagBytes := FinalizeTag(u.Tag, body)
	return append(tagBytes[:], body...), nil
}

// UnmarshalIUVD decodes and verifies an ImplementationUseVolumeDescriptor.
func UnmarshalIUVD(data []byte, readPosition uint32) (ImplementationUseVolumeDescriptor, error) {
	tag, err := VerifyRaw(data, readPosition, tagIdentIUVD)
	if err != nil {
		return ImplementationUseVolumeDescriptor{}, err
	}
	b := data[TagSize:]
	const fixedLen = 4 + entity.Size + 128 + 36 + 36 + 36 + entity.Size + 128
	if len(b) < fixedLen {
		return ImplementationUseVolumeDescriptor{}, fmt.Errorf("descriptor: IUVD body too short: %d bytes", len(b))
	}
	off := 0
	seqNum := binary.LittleEndian.Uint32(b[off:])
	off += 4
	var implID entity.ID
	if err := implID.Unmarshal(b[off : off+entity.Size]); err != nil {
		return ImplementationUseVolumeDescriptor{}, err
	}
	off += entity.Size
	lvIdent, err := dstring.Decode(b[off : off+128])
	if err != nil {
		return ImplementationUseVolumeDescriptor{}, fmt.Errorf("descriptor: IUVD LV identifier: %w", err)
	}
	off += 128
	info1, err := dstring.Decode(b[off : off+36])
	if err != nil {
		return ImplementationUseVolumeDescriptor{}, fmt.Errorf("descriptor: IUVD LV info 1: %w", err)
	}
	off += 36
	info2, err := dstring.Decode(b[off : off+36])
	if err != nil {
		return ImplementationUseVolumeDescriptor{}, fmt.Errorf("descriptor: IUVD LV info 2: %w", err)
	}
	off += 36
	info3, err := dstring.Decode(b[off : off+36])
	if err != nil {
		return ImplementationUseVolumeDescriptor{}, fmt.Errorf("descriptor: IUVD LV info 3: %w", err)
	}
	off += 36
	var implID2 entity.ID
	if err := implID2.Unmarshal(b[off : off+entity.Size]); err != nil {
		return ImplementationUseVolumeDescriptor{}, err
	}
	off += entity.Size
	var implUse [128]byte
	copy(implUse[:], b[off:off+128])

	return ImplementationUseVolumeDescriptor{
		Tag:                            tag,
		VolumeDescriptorSequenceNumber: seqNum,
		ImplementationIdentifier:       implID,
		LogicalVolumeIdentifier:        lvIdent,
		LVInfo1:                        info1,
		LVInfo2:                        info2,
		LVInfo3:                        info3,
		ImplementationID:               implID2,
		ImplementationUse:              implUse,
	}, nil
}
