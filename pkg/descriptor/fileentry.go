package descriptor

import (
	"encoding/binary"
	"fmt"

	"github.com/bgrewell/udf-kit/pkg/consts"
	"github.com/bgrewell/udf-kit/pkg/entity"
)

// ICBTag (ECMA-167 §14.6) prefixes both FileEntry and ExtendedFileEntry; it
// carries the file type and the allocation descriptor form in use
// (consts.ICBAllocShort/Long/Ext/InICB), which every allocation-descriptor
// walk must branch on.
type ICBTag struct {
	PriorRecordedNumDirectEntries uint32
	StrategyType                  uint16
	StrategyParameter             uint16
	MaxNumEntries                 uint16
	FileType                      byte
	ParentICBLocationBlock        uint32
	ParentICBLocationPartition    uint16
	Flags                         uint16
}

const ICBTagSize = 20

// AllocDescForm extracts the allocation descriptor form from the low 3
// bits of Flags (consts.ICBAllocShort/Long/Ext/InICB).
func (t ICBTag) AllocDescForm() uint16 { return t.Flags & 0x7 }

// MarshalICBTag encodes an ICBTag.
func MarshalICBTag(t ICBTag) [ICBTagSize]byte {
	var buf [ICBTagSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], t.PriorRecordedNumDirectEntries)
	binary.LittleEndian.PutUint16(buf[4:6], t.StrategyType)
	binary.LittleEndian.PutUint16(buf[6:8], t.StrategyParameter)
	binary.LittleEndian.PutUint16(buf[8:10], t.MaxNumEntries)
	buf[10] = 0 // reserved
	buf[11] = t.FileType
	binary.LittleEndian.PutUint32(buf[12:16], t.ParentICBLocationBlock)
	binary.LittleEndian.PutUint16(buf[16:18], t.ParentICBLocationPartition)
	binary.LittleEndian.PutUint16(buf[18:20], t.Flags)
	return buf
}

// UnmarshalICBTag decodes an ICBTag.
func UnmarshalICBTag(data []byte) (ICBTag, error) {
	if len(data) < ICBTagSize {
		return ICBTag{}, fmt.Errorf("descriptor: ICB tag needs %d bytes, got %d", ICBTagSize, len(data))
	}
	return ICBTag{
		PriorRecordedNumDirectEntries: binary.LittleEndian.Uint32(data[0:4]),
		StrategyType:                  binary.LittleEndian.Uint16(data[4:6]),
		StrategyParameter:             binary.LittleEndian.Uint16(data[6:8]),
		MaxNumEntries:                 binary.LittleEndian.Uint16(data[8:10]),
		FileType:                      data[11],
		ParentICBLocationBlock:        binary.LittleEndian.Uint32(data[12:16]),
		ParentICBLocationPartition:    binary.LittleEndian.Uint16(data[16:18]),
		Flags:                         binary.LittleEndian.Uint16(data[18:20]),
	}, nil
}

// ExtendedAttribute is one decoded Extended Attribute from a FE/EFE's EA
// area (ECMA-167 §14.10.1), supplementing the base spec per
// original_source/'s EA handling (SPEC_FULL.md).
type ExtendedAttribute struct {
	AttributeType   uint32
	AttributeSubtype byte
	AttributeLength  uint32
	ImplementationUse []byte // not filled by ParseExtendedAttributes; everything after the 12-byte header is in Data
	Data              []byte
}

// FileEntry ("FE", ECMA-167 §14.9) is the non-extended ICB form: the common
// case for UDF revisions below 2.00's extended-attribute-heavy usage.
type FileEntry struct {
	Tag                  Tag
	ICBTag               ICBTag
	Uid                  uint32
	Gid                  uint32
	Permissions          uint32
	FileLinkCount        uint16
	RecordFormat         byte
	RecordDisplayAttrs   byte
	RecordLength         uint32
	InformationLength    uint64
	LogicalBlocksRecorded uint64
	AccessTime           Timestamp
	ModificationTime     Timestamp
	AttributeTime        Timestamp
	Checkpoint           uint32
	ExtendedAttributeICB LongAllocationDescriptor
	ImplementationIdentifier entity.ID
	UniqueID             uint64
	LengthOfExtendedAttributes uint32
	LengthOfAllocDescs   uint32
	ExtendedAttributes   []byte // raw EA area; parsed on demand via ParseExtendedAttributes
	AllocationDescriptors []byte // raw AD area; interpreted per ICBTag.AllocDescForm
}

const feFixedLen = 160 // bytes following the tag, up to and including the two length fields

// MarshalFileEntry encodes a FileEntry.
func MarshalFileEntry(f FileEntry) []byte {
	body := make([]byte, 0, feFixedLen+len(f.ExtendedAttributes)+len(f.AllocationDescriptors))
	icbTag := MarshalICBTag(f.ICBTag)
	body = append(body, icbTag[:]...)
	body = appendU32(body, f.Uid)
	body = appendU32(body, f.Gid)
	body = appendU32(body, f.Permissions)
	body = appendU16(body, f.FileLinkCount)
	body = append(body, f.RecordFormat, f.RecordDisplayAttrs)
	body = appendU32(body, f.RecordLength)
	body = append(body, u64le(f.InformationLength)...)
	body = append(body, u64le(f.LogicalBlocksRecorded)...)
	at := MarshalTimestamp(f.AccessTime)
	body = append(body, at[:]...)
	mt := MarshalTimestamp(f.ModificationTime)
	body = append(body, mt[:]...)
	att := MarshalTimestamp(f.AttributeTime)
	body = append(body, att[:]...)
	body = appendU32(body, f.Checkpoint)
	eaICB := MarshalLongAD(f.ExtendedAttributeICB)
	body = append(body, eaICB[:]...)
	implID := f.ImplementationIdentifier.Marshal()
	body = append(body, implID[:]...)
	body = append(body, u64le(f.UniqueID)...)
	f.LengthOfExtendedAttributes = uint32(len(f.ExtendedAttributes))
	f.LengthOfAllocDescs = uint32(len(f.AllocationDescriptors))
	body = appendU32(body, f.LengthOfExtendedAttributes)
	body = appendU32(body, f.LengthOfAllocDescs)
	body = append(body, f.ExtendedAttributes...)
	body = append(body, f.AllocationDescriptors...)

	tagBytes := FinalizeTag(f.Tag, body)
	return append(tagBytes[:], body...)
}

// UnmarshalFileEntry decodes and verifies a FileEntry.
func UnmarshalFileEntry(data []byte, readPosition uint32) (FileEntry, error) {
	tag, err := VerifyRaw(data, readPosition, consts.TagIdentFileEntry)
	if err != nil {
		return FileEntry{}, err
	}
	b := data[TagSize:]
	if len(b) < feFixedLen {
		return FileEntry{}, fmt.Errorf("descriptor: FileEntry body too short: %d bytes", len(b))
	}
	icbTag, err := UnmarshalICBTag(b[0:ICBTagSize])
	if err != nil {
		return FileEntry{}, err
	}
	off := ICBTagSize
	uid := binary.LittleEndian.Uint32(b[off:])
	off += 4
	gid := binary.LittleEndian.Uint32(b[off:])
	off += 4
	perms := binary.LittleEndian.Uint32(b[off:])
	off += 4
	linkCount := binary.LittleEndian.Uint16(b[off:])
	off += 2
	recFormat, recDisplay := b[off], b[off+1]
	off += 2
	recLen := binary.LittleEndian.Uint32(b[off:])
	off += 4
	infoLen := binary.LittleEndian.Uint64(b[off:])
	off += 8
	blocksRecorded := binary.LittleEndian.Uint64(b[off:])
	off += 8
	accessTime := UnmarshalTimestamp(b[off : off+TimestampSize])
	off += TimestampSize
	modTime := UnmarshalTimestamp(b[off : off+TimestampSize])
	off += TimestampSize
	attrTime := UnmarshalTimestamp(b[off : off+TimestampSize])
	off += TimestampSize
	checkpoint := binary.LittleEndian.Uint32(b[off:])
	off += 4
	eaICB, err := UnmarshalLongAD(b[off : off+LongADSize])
	if err != nil {
		return FileEntry{}, fmt.Errorf("descriptor: FileEntry EA ICB: %w", err)
	}
	off += LongADSize
	var implID entity.ID
	if err := implID.Unmarshal(b[off : off+entity.Size]); err != nil {
		return FileEntry{}, fmt.Errorf("descriptor: FileEntry implementation identifier: %w", err)
	}
	off += entity.Size
	uniqueID := binary.LittleEndian.Uint64(b[off:])
	off += 8
	eaLen := binary.LittleEndian.Uint32(b[off:])
	off += 4
	adLen := binary.LittleEndian.Uint32(b[off:])
	off += 4

	if uint32(len(b)-off) < eaLen+adLen {
		return FileEntry{}, fmt.Errorf("descriptor: FileEntry EA/AD area truncated: need %d, have %d", eaLen+adLen, len(b)-off)
	}
	ea := append([]byte(nil), b[off:off+int(eaLen)]...)
	off += int(eaLen)
	ad := append([]byte(nil), b[off:off+int(adLen)]...)

	return FileEntry{
		Tag:                        tag,
		ICBTag:                     icbTag,
		Uid:                        uid,
		Gid:                        gid,
		Permissions:                perms,
		FileLinkCount:              linkCount,
		RecordFormat:               recFormat,
		RecordDisplayAttrs:         recDisplay,
		RecordLength:               recLen,
		InformationLength:          infoLen,
		LogicalBlocksRecorded:      blocksRecorded,
		AccessTime:                 accessTime,
		ModificationTime:           modTime,
		AttributeTime:              attrTime,
		Checkpoint:                 checkpoint,
		ExtendedAttributeICB:       eaICB,
		ImplementationIdentifier:   implID,
		UniqueID:                   uniqueID,
		LengthOfExtendedAttributes: eaLen,
		LengthOfAllocDescs:         adLen,
		ExtendedAttributes:         ea,
		AllocationDescriptors:      ad,
	}, nil
}

// ParseExtendedAttributes walks the EA area, stopping at the first
// malformed header rather than erroring the whole file: a corrupt EA area
// should not make an otherwise-readable file invisible to the walker.
func ParseExtendedAttributes(ea []byte) []ExtendedAttribute {
	var out []ExtendedAttribute
	off := 0
	for off+12 <= len(ea) {
		attrType := binary.LittleEndian.Uint32(ea[off:])
		subtype := ea[off+4]
		length := binary.LittleEndian.Uint32(ea[off+8:])
		if length < 12 || off+int(length) > len(ea) {
			break
		}
		out = append(out, ExtendedAttribute{
			AttributeType:    attrType,
			AttributeSubtype: subtype,
			AttributeLength:  length,
			Data:             append([]byte(nil), ea[off+12:off+int(length)]...),
		})
		off += int(length)
	}
	return out
}

func u64le(v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return b[:]
}
