package descriptor

import (
	"encoding/binary"
	"fmt"

	"github.com/bgrewell/udf-kit/pkg/consts"
	"github.com/bgrewell/udf-kit/pkg/entity"
)

// ExtendedFileEntry ("EFE", ECMA-167 §14.17, UDF 2.00+) extends FileEntry
// with a creation time and a streaming directory ICB, and tracks object
// size separately from information length.
type ExtendedFileEntry struct {
	Tag                        Tag
	ICBTag                     ICBTag
	Uid                        uint32
	Gid                        uint32
	Permissions                uint32
	FileLinkCount              uint16
	RecordFormat               byte
	RecordDisplayAttrs         byte
	RecordLength               uint32
	InformationLength          uint64
	ObjectSize                 uint64
	LogicalBlocksRecorded      uint64
	AccessTime                 Timestamp
	ModificationTime           Timestamp
	CreationTime               Timestamp
	AttributeTime              Timestamp
	Checkpoint                 uint32
	Reserved                   uint32
	ExtendedAttributeICB       LongAllocationDescriptor
	StreamDirectoryICB         LongAllocationDescriptor
	ImplementationIdentifier   entity.ID
	UniqueID                   uint64
	LengthOfExtendedAttributes uint32
	LengthOfAllocDescs         uint32
	ExtendedAttributes         []byte
	AllocationDescriptors      []byte
}

const efeFixedLen = 200

// MarshalExtendedFileEntry encodes an ExtendedFileEntry.
func MarshalExtendedFileEntry(f ExtendedFileEntry) []byte {
	body := make([]byte, 0, efeFixedLen+len(f.ExtendedAttributes)+len(f.AllocationDescriptors))
	icbTag := MarshalICBTag(f.ICBTag)
	body = append(body, icbTag[:]...)
	body = appendU32(body, f.Uid)
	body = appendU32(body, f.Gid)
	body = appendU32(body, f.Permissions)
	body = appendU16(body, f.FileLinkCount)
	body = append(body, f.RecordFormat, f.RecordDisplayAttrs)
	body = appendU32(body, f.RecordLength)
	body = append(body, u64le(f.InformationLength)...)
	body = append(body, u64le(f.ObjectSize)...)
	body = append(body, u64le(f.LogicalBlocksRecorded)...)
	at := MarshalTimestamp(f.AccessTime)
	body = append(body, at[:]...)
	mt := MarshalTimestamp(f.ModificationTime)
	body = append(body, mt[:]...)
	ct := MarshalTimestamp(f.CreationTime)
	body = append(body, ct[:]...)
	att := MarshalTimestamp(f.AttributeTime)
	body = append(body, att[:]...)
	body = appendU32(body, f.Checkpoint)
	body = appendU32(body, f.Reserved)
	eaICB := MarshalLongAD(f.ExtendedAttributeICB)
	body = append(body, eaICB[:]...)
	sICB := MarshalLongAD(f.StreamDirectoryICB)
	body = append(body, sICB[:]...)
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

// UnmarshalExtendedFileEntry decodes and verifies an ExtendedFileEntry.
func UnmarshalExtendedFileEntry(data []byte, readPosition uint32) (ExtendedFileEntry, error) {
	tag, err := VerifyRaw(data, readPosition, consts.TagIdentExtendedFileEntry)
	if err != nil {
		return ExtendedFileEntry{}, err
	}
	b := data[TagSize:]
	if len(b) < efeFixedLen {
		return ExtendedFileEntry{}, fmt.Errorf("descriptor: ExtendedFileEntry body too short: %d bytes", len(b))
	}
	icbTag, err := UnmarshalICBTag(b[0:ICBTagSize])
	if err != nil {
		return ExtendedFileEntry{}, err
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
	objSize := binary.LittleEndian.Uint64(b[off:])
	off += 8
	blocksRecorded := binary.LittleEndian.Uint64(b[off:])
	off += 8
	accessTime := UnmarshalTimestamp(b[off : off+TimestampSize])
	off += TimestampSize
	modTime := UnmarshalTimestamp(b[off : off+TimestampSize])
	off += TimestampSize
	creationTime := UnmarshalTimestamp(b[off : off+TimestampSize])
	off += TimestampSize
	attrTime := UnmarshalTimestamp(b[off : off+TimestampSize])
	off += TimestampSize
	checkpoint := binary.LittleEndian.Uint32(b[off:])
	off += 4
	reserved := binary.LittleEndian.Uint32(b[off:])
	off += 4
	eaICB, err := UnmarshalLongAD(b[off : off+LongADSize])
	if err != nil {
		return ExtendedFileEntry{}, fmt.Errorf("descriptor: EFE EA ICB: %w", err)
	}
	off += LongADSize
	sICB, err := UnmarshalLongAD(b[off : off+LongADSize])
	if err != nil {
		return ExtendedFileEntry{}, fmt.Errorf("descriptor: EFE stream directory ICB: %w", err)
	}
	off += LongADSize
	var implID entity.ID
	if err := implID.Unmarshal(b[off : off+entity.Size]); err != nil {
		return ExtendedFileEntry{}, fmt.Errorf("descriptor: EFE implementation identifier: %w", err)
	}
	off += entity.Size
	uniqueID := binary.LittleEndian.Uint64(b[off:])
	off += 8
	eaLen := binary.LittleEndian.Uint32(b[off:])
	off += 4
	adLen := binary.LittleEndian.Uint32(b[off:])
	off += 4

	if uint32(len(b)-off) < eaLen+adLen {
		return ExtendedFileEntry{}, fmt.Errorf("descriptor: EFE EA/AD area truncated: need %d, have %d", eaLen+adLen, len(b)-off)
	}
	ea := append([]byte(nil), b[off:off+int(eaLen)]...)
	off += int(eaLen)
	ad := append([]byte(nil), b[off:off+int(adLen)]...)

	return ExtendedFileEntry{
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
		ObjectSize:                 objSize,
		LogicalBlocksRecorded:      blocksRecorded,
		AccessTime:                 accessTime,
		ModificationTime:           modTime,
		CreationTime:               creationTime,
		AttributeTime:              attrTime,
		Checkpoint:                 checkpoint,
		Reserved:                   reserved,
		ExtendedAttributeICB:       eaICB,
		StreamDirectoryICB:         sICB,
		ImplementationIdentifier:   implID,
		UniqueID:                   uniqueID,
		LengthOfExtendedAttributes: eaLen,
		LengthOfAllocDescs:         adLen,
		ExtendedAttributes:         ea,
		AllocationDescriptors:      ad,
	}, nil
}
