package descriptor

import (
	"encoding/binary"
	"fmt"

	"github.com/bgrewell/udf-kit/pkg/consts"
	"github.com/bgrewell/udf-kit/pkg/entity"
)

// PartitionDescriptor (ECMA-167 §3.10.5) describes one physical partition:
// its access type, starting block and length, and the space-table entity
// that tracks free blocks within it.
type PartitionDescriptor struct {
	Tag                            Tag
	VolumeDescriptorSequenceNumber uint32
	PartitionFlags                 uint16
	PartitionNumber                uint16
	PartitionContents              entity.ID
	PartitionContentsUse           [128]byte
	AccessType                     uint32
	PartitionStartingLocation      uint32
	PartitionLength                uint32
	ImplementationIdentifier       entity.ID
	ImplementationUse              [128]byte
}

const tagIdentPartition uint16 = 5

// MarshalPartitionDescriptor encodes a PartitionDescriptor.
func MarshalPartitionDescriptor(p PartitionDescriptor) ([]byte, error) {
	body := make([]byte, 0, 356)
	body = appendU32(body, p.VolumeDescriptorSequenceNumber)
	body = appendU16(body, p.PartitionFlags)
	body = appendU16(body, p.PartitionNumber)
	contentsID := p.PartitionContents.Marshal()
	body = append(body, contentsID[:]...)
	body = append(body, p.PartitionContentsUse[:]...)
	body = appendU32(body, p.AccessType)
	body = appendU32(body, p.PartitionStartingLocation)
	body = appendU32(body, p.PartitionLength)
	implID := p.ImplementationIdentifier.Marshal()
	body = append(body, implID[:]...)
	body = append(body, p.ImplementationUse[:]...)
	body = append(body, make([]byte, 156)...) // reserved

	tagBytes := FinalizeTag(p.Tag, body)
	return append(tagBytes[:], body...), nil
}

// UnmarshalPartitionDescriptor decodes and verifies a PartitionDescriptor.
func UnmarshalPartitionDescriptor(data []byte, readPosition uint32) (PartitionDescriptor, error) {
	tag, err := VerifyRaw(data, readPosition, tagIdentPartition)
	if err != nil {
		return PartitionDescriptor{}, err
	}
	b := data[TagSize:]
	const fixedLen = 4 + 2 + 2 + entity.Size + 128 + 4 + 4 + 4 + entity.Size + 128
	if len(b) < fixedLen {
		return PartitionDescriptor{}, fmt.Errorf("descriptor: Partition Descriptor body too short: %d bytes", len(b))
	}
	off := 0
	seqNum := binary.LittleEndian.Uint32(b[off:])
	off += 4
	flags := binary.LittleEndian.Uint16(b[off:])
	off += 2
	num := binary.LittleEndian.Uint16(b[off:])
	off += 2
	var contentsID entity.ID
	if err := contentsID.Unmarshal(b[off : off+entity.Size]); err != nil {
		return PartitionDescriptor{}, fmt.Errorf("descriptor: partition contents identifier: %w", err)
	}
	off += entity.Size
	var contentsUse [128]byte
	copy(contentsUse[:], b[off:off+128])
	off += 128
	accessType := binary.LittleEndian.Uint32(b[off:])
	off += 4
	startLoc := binary.LittleEndian.Uint32(b[off:])
	off += 4
	length := binary.LittleEndian.Uint32(b[off:])
	off += 4
	var implID entity.ID
	if err := implID.Unmarshal(b[off : off+entity.Size]); err != nil {
		return PartitionDescriptor{}, fmt.Errorf("descriptor: partition implementation identifier: %w", err)
	}
	off += entity.Size
	var implUse [128]byte
	copy(implUse[:], b[off:off+128])

	return PartitionDescriptor{
		Tag:                            tag,
		VolumeDescriptorSequenceNumber: seqNum,
		PartitionFlags:                 flags,
		PartitionNumber:                num,
		PartitionContents:              contentsID,
		PartitionContentsUse:           contentsUse,
		AccessType:                     accessType,
		PartitionStartingLocation:      startLoc,
		PartitionLength:                length,
		ImplementationIdentifier:       implID,
		ImplementationUse:              implUse,
	}, nil
}

// IsReadOnly reports whether AccessType marks the partition read-only or
// overwritable-once ("pseudo-overwrite"), per consts.AccessType* and the
// Non-goal excluding Pseudo-OverWrite rewriting for write-once media.
func (p PartitionDescriptor) IsReadOnly() bool {
	return p.AccessType == uint32(consts.AccessTypeReadOnly) || p.AccessType == uint32(consts.AccessTypePseudoOverwritable)
}

// PartitionHeader is the Partition Header Descriptor (ECMA-167 §14.3)
// embedded in a Type 1 Partition Descriptor's PartitionContentsUse field:
// four short allocation descriptors naming the partition's optional
// free/freed space structures, partition-relative.
type PartitionHeader struct {
	UnallocSpaceTable  ShortAllocationDescriptor
	UnallocSpaceBitmap ShortAllocationDescriptor
	FreedSpaceTable    ShortAllocationDescriptor
	FreedSpaceBitmap   ShortAllocationDescriptor
}

// ParsePartitionHeader decodes the four allocation descriptors a Type 1
// partition's PartitionContentsUse carries.
func ParsePartitionHeader(use [128]byte) (PartitionHeader, error) {
	read := func(off int) (ShortAllocationDescriptor, error) {
		return UnmarshalShortAD(use[off : off+ShortADSize])
	}
	var h PartitionHeader
	var err error
	if h.UnallocSpaceTable, err = read(0); err != nil {
		return h, err
	}
	if h.UnallocSpaceBitmap, err = read(8); err != nil {
		return h, err
	}
	if h.FreedSpaceTable, err = read(16); err != nil {
		return h, err
	}
	if h.FreedSpaceBitmap, err = read(24); err != nil {
		return h, err
	}
	return h, nil
}
