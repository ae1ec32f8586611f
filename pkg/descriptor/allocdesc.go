package descriptor

import (
	"encoding/binary"
	"fmt"

	"github.com/bgrewell/udf-kit/pkg/consts"
)

// Allocation descriptor extent types, packed into the top 2 bits of the
// length field (ECMA-167 §4.14.14.1.1).
const (
	ExtentTypeRecorded    uint32 = 0
	ExtentTypeNotRecorded uint32 = 1
	ExtentTypeNotAlloc    uint32 = 2
	ExtentTypeNextExtent  uint32 = 3
)

const extentLengthMask uint32 = 0x3FFFFFFF

// ShortAllocationDescriptor ("short AD", ECMA-167 §14.14.1) packs type and
// length into one uint32; used inside ICBs whose allocation descriptors all
// live in the same partition as the ICB itself.
type ShortAllocationDescriptor struct {
	ExtentLength   uint32 // bytes, bits 0-29; top 2 bits are the extent type
	ExtentLocation uint32 // block within the ICB's partition
}

const ShortADSize = 8

// Length extracts the byte length, always via bitwise AND per SPEC_FULL.md's
// resolution of the original spec's open question.
func (a ShortAllocationDescriptor) Length() uint32 { return a.ExtentLength & extentLengthMask }

// Type extracts the extent type (ExtentTypeRecorded, etc).
func (a ShortAllocationDescriptor) Type() uint32 { return a.ExtentLength >> 30 }

// MarshalShortAD encodes a ShortAllocationDescriptor.
func MarshalShortAD(a ShortAllocationDescriptor) [ShortADSize]byte {
	var buf [ShortADSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], a.ExtentLength)
	binary.LittleEndian.PutUint32(buf[4:8], a.ExtentLocation)
	return buf
}

// UnmarshalShortAD decodes a ShortAllocationDescriptor.
func UnmarshalShortAD(data []byte) (ShortAllocationDescriptor, error) {
	if len(data) < ShortADSize {
		return ShortAllocationDescriptor{}, fmt.Errorf("descriptor: short AD needs %d bytes, got %d", ShortADSize, len(data))
	}
	return ShortAllocationDescriptor{
		ExtentLength:   binary.LittleEndian.Uint32(data[0:4]),
		ExtentLocation: binary.LittleEndian.Uint32(data[4:8]),
	}, nil
}

// LongAllocationDescriptor ("long AD", ECMA-167 §14.14.2) additionally names
// the partition reference number, so it can point into a different
// partition than the one the ICB lives in (e.g. the FSD's root ICB).
type LongAllocationDescriptor struct {
	ExtentLength            uint32
	ExtentLocationBlock     uint32
	ExtentLocationPartition uint16
	ImplementationUse       [6]byte
}

const LongADSize = 16

func (a LongAllocationDescriptor) Length() uint32 { return a.ExtentLength & extentLengthMask }
func (a LongAllocationDescriptor) Type() uint32   { return a.ExtentLength >> 30 }

// MarshalLongAD encodes a LongAllocationDescriptor.
func MarshalLongAD(a LongAllocationDescriptor) [LongADSize]byte {
	var buf [LongADSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], a.ExtentLength)
	binary.LittleEndian.PutUint32(buf[4:8], a.ExtentLocationBlock)
	binary.LittleEndian.PutUint16(buf[8:10], a.ExtentLocationPartition)
	copy(buf[10:16], a.ImplementationUse[:])
	return buf
}

// UnmarshalLongAD decodes a LongAllocationDescriptor.
func UnmarshalLongAD(data []byte) (LongAllocationDescriptor, error) {
	if len(data) < LongADSize {
		return LongAllocationDescriptor{}, fmt.Errorf("descriptor: long AD needs %d bytes, got %d", LongADSize, len(data))
	}
	var a LongAllocationDescriptor
	a.ExtentLength = binary.LittleEndian.Uint32(data[0:4])
	a.ExtentLocationBlock = binary.LittleEndian.Uint32(data[4:8])
	a.ExtentLocationPartition = binary.LittleEndian.Uint16(data[8:10])
	copy(a.ImplementationUse[:], data[10:16])
	return a, nil
}

// ExtAllocationDescriptor ("ext AD", ECMA-167 §14.14.3) adds a recorded
// length distinct from the information length, used by extended file
// entries for sparse/unrecorded-tail allocation.
type ExtAllocationDescriptor struct {
	ExtentLength            uint32
	RecordedLength          uint32
	ExtentLocationBlock     uint32
	ExtentLocationPartition uint16
}

const ExtADSize = 20

func (a ExtAllocationDescriptor) Length() uint32 { return a.ExtentLength & extentLengthMask }
func (a ExtAllocationDescriptor) Type() uint32   { return a.ExtentLength >> 30 }

// MarshalExtAD encodes an ExtAllocationDescriptor.
func MarshalExtAD(a ExtAllocationDescriptor) [ExtADSize]byte {
	var buf [ExtADSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], a.ExtentLength)
	binary.LittleEndian.PutUint32(buf[4:8], a.RecordedLength)
	binary.LittleEndian.PutUint32(buf[8:12], a.ExtentLocationBlock)
	binary.LittleEndian.PutUint16(buf[12:14], a.ExtentLocationPartition)
	// bytes 14:20 are implementation-use/reserved, left zero
	return buf
}

// UnmarshalExtAD decodes an ExtAllocationDescriptor.
func UnmarshalExtAD(data []byte) (ExtAllocationDescriptor, error) {
	if len(data) < ExtADSize {
		return ExtAllocationDescriptor{}, fmt.Errorf("descriptor: ext AD needs %d bytes, got %d", ExtADSize, len(data))
	}
	return ExtAllocationDescriptor{
		ExtentLength:            binary.LittleEndian.Uint32(data[0:4]),
		RecordedLength:          binary.LittleEndian.Uint32(data[4:8]),
		ExtentLocationBlock:     binary.LittleEndian.Uint32(data[8:12]),
		ExtentLocationPartition: binary.LittleEndian.Uint16(data[12:14]),
	}, nil
}

// AllocationExtentDescriptor ("AED", ECMA-167 §14.9) continues an ICB's
// allocation descriptor sequence into a separate extent when it no longer
// fits in the ICB itself (spec.md §4.4's "growing allocation-descriptor
// chains", walked via consts.MaxVDSContinuationHops-style hop limits to
// avoid an unbounded/cyclic chain).
type AllocationExtentDescriptor struct {
	Tag                  Tag
	PreviousAEDLocation  uint32
	LengthOfAllocDescs   uint32
}

// MarshalAED encodes an AllocationExtentDescriptor header; the allocation
// descriptor bytes that follow are appended by the caller.
func MarshalAED(a AllocationExtentDescriptor, trailingADs []byte) []byte {
	body := make([]byte, 0, 8+len(trailingADs))
	body = appendU32(body, a.PreviousAEDLocation)
	body = appendU32(body, uint32(len(trailingADs)))
	body = append(body, trailingADs...)
	tagBytes := FinalizeTag(a.Tag, body)
	return append(tagBytes[:], body...)
}

// UnmarshalAED decodes an AllocationExtentDescriptor and returns its header
// plus the raw trailing allocation-descriptor bytes (the caller knows
// whether to interpret them as short/long/ext ADs from the owning ICB's
// flags).
func UnmarshalAED(data []byte, readPosition uint32) (AllocationExtentDescriptor, []byte, error) {
	tag, err := VerifyRaw(data, readPosition, consts.TagIdentAllocationExtentDescriptor)
	if err != nil {
		return AllocationExtentDescriptor{}, nil, err
	}
	b := data[TagSize:]
	if len(b) < 8 {
		return AllocationExtentDescriptor{}, nil, fmt.Errorf("descriptor: AED body too short: %d bytes", len(b))
	}
	prevAED := binary.LittleEndian.Uint32(b[0:4])
	length := binary.LittleEndian.Uint32(b[4:8])
	if uint32(len(b)-8) < length {
		return AllocationExtentDescriptor{}, nil, fmt.Errorf("descriptor: AED trailing ADs truncated: need %d, have %d", length, len(b)-8)
	}
	return AllocationExtentDescriptor{Tag: tag, PreviousAEDLocation: prevAED, LengthOfAllocDescs: length}, b[8 : 8+length], nil
}
