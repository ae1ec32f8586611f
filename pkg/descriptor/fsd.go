package descriptor

import (
	"encoding/binary"
	"fmt"

	"github.com/bgrewell/udf-kit/pkg/dstring"
	"github.com/bgrewell/udf-kit/pkg/entity"
)

// FileSetDescriptor ("FSD", ECMA-167 §4.3.1, lives inside the partition at
// the location the LVD's LogicalVolumeContentsUse names) roots the file
// tree: it names the root directory's ICB and, when the partition is
// virtual, a System Stream ICB holding the VAT.
type FileSetDescriptor struct {
	Tag                     Tag
	RecordingDateTime       Timestamp
	InterchangeLevel        uint16
	MaxInterchangeLevel     uint16
	CharacterSetList        uint32
	MaxCharacterSetList     uint32
	FileSetNumber           uint32
	FileSetDescriptorNumber uint32
	LogicalVolumeIdentifier string // 128-byte dstring
	FileSetIdentifier       string // 32-byte dstring
	CopyrightFileIdentifier string // 32-byte dstring
	AbstractFileIdentifier  string // 32-byte dstring
	RootDirectoryICB        LongAllocationDescriptor
	DomainIdentifier        entity.ID
	NextExtent              LongAllocationDescriptor
	SystemStreamDirectoryICB LongAllocationDescriptor
}

const tagIdentFSD uint16 = 256

// MarshalFSD encodes a FileSetDescriptor.
func MarshalFSD(f FileSetDescriptor) ([]byte, error) {
	lvIdent, err := dstring.Encode(f.LogicalVolumeIdentifier, 128)
	if err != nil {
		return nil, fmt.Errorf("descriptor: FSD LV identifier: %w", err)
	}
	fsIdent, err := dstring.Encode(f.FileSetIdentifier, 32)
	if err != nil {
		return nil, fmt.Errorf("descriptor: FSD file set identifier: %w", err)
	}
	copyIdent, err := dstring.Encode(f.CopyrightFileIdentifier, 32)
	if err != nil {
		return nil, fmt.Errorf("descriptor: FSD copyright identifier: %w", err)
	}
	abstractIdent, err := dstring.Encode(f.AbstractFileIdentifier, 32)
	if err != nil {
		return nil, fmt.Errorf("descriptor: FSD abstract identifier: %w", err)
	}

	body := make([]byte, 0, 512-TagSize)
	ts := MarshalTimestamp(f.RecordingDateTime)
	body = append(body, ts[:]...)
	body = appendU16(body, f.InterchangeLevel)
	body = appendU16(body, f.MaxInterchangeLevel)
	body = appendU32(body, f.CharacterSetList)
	body = appendU32(body, f.MaxCharacterSetList)
	body = appendU32(body, f.FileSetNumber)
	body = appendU32(body, f.FileSetDescriptorNumber)
	body = append(body, lvIdent...)
	body = append(body, fsIdent...)
	body = append(body, copyIdent...)
	body = append(body, abstractIdent...)
	rootICB := MarshalLongAD(f.RootDirectoryICB)
	body = append(body, rootICB[:]...)
	domID := f.DomainIdentifier.Marshal()
	body = append(body, domID[:]...)
	nextExt := MarshalLongAD(f.NextExtent)
	body = append(body, nextExt[:]...)
	sysICB := MarshalLongAD(f.SystemStreamDirectoryICB)
	body = append(body, sysICB[:]...)
	body = append(body, make([]byte, 32)...) // reserved

	tagBytes := FinalizeTag(f.Tag, body)
	return append(tagBytes[:], body...), nil
}

// UnmarshalFSD decodes and verifies a FileSetDescriptor.
func UnmarshalFSD(data []byte, readPosition uint32) (FileSetDescriptor, error) {
	tag, err := VerifyRaw(data, readPosition, tagIdentFSD)
	if err != nil {
		return FileSetDescriptor{}, err
	}
	b := data[TagSize:]
	const fixedLen = TimestampSize + 2 + 2 + 4 + 4 + 4 + 4 + 128 + 32 + 32 + 32 + LongADSize + entity.Size + LongADSize + LongADSize
	if len(b) < fixedLen {
		return FileSetDescriptor{}, fmt.Errorf("descriptor: FSD body too short: %d bytes", len(b))
	}
	off := 0
	ts := UnmarshalTimestamp(b[off : off+TimestampSize])
	off += TimestampSize
	interchange := binary.LittleEndian.Uint16(b[off:])
	off += 2
	maxInterchange := binary.LittleEndian.Uint16(b[off:])
	off += 2
	charsetList := binary.LittleEndian.Uint32(b[off:])
	off += 4
	maxCharsetList := binary.LittleEndian.Uint32(b[off:])
	off += 4
	fsNum := binary.LittleEndian.Uint32(b[off:])
	off += 4
	fsdNum := binary.LittleEndian.Uint32(b[off:])
	off += 4
	lvIdent, err := dstring.Decode(b[off : off+128])
	if err != nil {
		return FileSetDescriptor{}, fmt.Errorf("descriptor: FSD LV identifier: %w", err)
	}
	off += 128
	fsIdent, err := dstring.Decode(b[off : off+32])
	if err != nil {
		return FileSetDescriptor{}, fmt.Errorf("descriptor: FSD file set identifier: %w", err)
	}
	off += 32
	copyIdent, err := dstring.Decode(b[off : off+32])
	if err != nil {
		return FileSetDescriptor{}, fmt.Errorf("descriptor: FSD copyright identifier: %w", err)
	}
	off += 32
	abstractIdent, err := dstring.Decode(b[off : off+32])
	if err != nil {
		return FileSetDescriptor{}, fmt.Errorf("descriptor: FSD abstract identifier: %w", err)
	}
	off += 32
	rootICB, err := UnmarshalLongAD(b[off : off+LongADSize])
	if err != nil {
		return FileSetDescriptor{}, fmt.Errorf("descriptor: FSD root ICB: %w", err)
	}
	off += LongADSize
	var domID entity.ID
	if err := domID.Unmarshal(b[off : off+entity.Size]); err != nil {
		return FileSetDescriptor{}, fmt.Errorf("descriptor: FSD domain identifier: %w", err)
	}
	off += entity.Size
	nextExt, err := UnmarshalLongAD(b[off : off+LongADSize])
	if err != nil {
		return FileSetDescriptor{}, fmt.Errorf("descriptor: FSD next extent: %w", err)
	}
	off += LongADSize
	sysICB, err := UnmarshalLongAD(b[off : off+LongADSize])
	if err != nil {
		return FileSetDescriptor{}, fmt.Errorf("descriptor: FSD system stream ICB: %w", err)
	}

	return FileSetDescriptor{
		Tag:                      tag,
		RecordingDateTime:        ts,
		InterchangeLevel:         interchange,
		MaxInterchangeLevel:      maxInterchange,
		CharacterSetList:         charsetList,
		MaxCharacterSetList:      maxCharsetList,
		FileSetNumber:            fsNum,
		FileSetDescriptorNumber:  fsdNum,
		LogicalVolumeIdentifier:  lvIdent,
		FileSetIdentifier:        fsIdent,
		CopyrightFileIdentifier:  copyIdent,
		AbstractFileIdentifier:   abstractIdent,
		RootDirectoryICB:         rootICB,
		DomainIdentifier:         domID,
		NextExtent:               nextExt,
		SystemStreamDirectoryICB: sysICB,
	}, nil
}
