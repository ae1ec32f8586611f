package descriptor

import (
	"encoding/binary"
	"fmt"

	"github.com/bgrewell/udf-kit/pkg/consts"
	"github.com/bgrewell/udf-kit/pkg/entity"
)

// LogicalVolumeIntegrityDescriptor ("LVID", ECMA-167 §3.10.10) records the
// logical volume's open/close state, free-space table and unique ID
// counter, and optionally chains to a next LVID via NextIntegrityExtent
// (spec.md §4.7's LVID chain).
type LogicalVolumeIntegrityDescriptor struct {
	Tag                   Tag
	RecordingDateTime     Timestamp
	IntegrityType         uint32
	NextIntegrityExtent   Extent
	LogicalVolumeContentsUse [32]byte
	NumPartitions         uint32
	LengthOfImplUse       uint32
	FreeSpaceTable        []uint32 // per partition
	SizeTable             []uint32 // per partition
	ImplementationIdentifier entity.ID
	ImplementationUse     []byte
}

const lvidFixedLen = 80

// IsOpen/IsClosed report the integrity type, per consts.IntegrityTypeOpen/Close.
func (l LogicalVolumeIntegrityDescriptor) IsOpen() bool   { return l.IntegrityType == consts.IntegrityTypeOpen }
func (l LogicalVolumeIntegrityDescriptor) IsClosed() bool { return l.IntegrityType == consts.IntegrityTypeClose }

// UniqueIDCounter reads the next-unique-ID counter stashed in
// LogicalVolumeContentsUse bytes 0-7, matching the layout used by the LVID
// chain walker (spec.md §4.7).
func (l LogicalVolumeIntegrityDescriptor) UniqueIDCounter() uint64 {
	return binary.LittleEndian.Uint64(l.LogicalVolumeContentsUse[0:8])
}

// MarshalLVID encodes a LogicalVolumeIntegrityDescriptor.
func MarshalLVID(l LogicalVolumeIntegrityDescriptor) []byte {
	l.NumPartitions = uint32(len(l.FreeSpaceTable))
	l.LengthOfImplUse = uint32(len(l.ImplementationUse))

	body := make([]byte, 0, lvidFixedLen+8*len(l.FreeSpaceTable)*2+len(l.ImplementationUse))
	ts := MarshalTimestamp(l.RecordingDateTime)
	body = append(body, ts[:]...)
	body = appendU32(body, l.IntegrityType)
	body = appendU32(body, l.NextIntegrityExtent.Length)
	body = appendU32(body, l.NextIntegrityExtent.Location)
	body = append(body, l.LogicalVolumeContentsUse[:]...)
	body = appendU32(body, l.NumPartitions)
	body = appendU32(body, l.LengthOfImplUse)
	for _, v := range l.FreeSpaceTable {
		body = appendU32(body, v)
	}
	for _, v := range l.SizeTable {
		body = appendU32(body, v)
	}
	implID := l.ImplementationIdentifier.Marshal()
	body = append(body, implID[:]...)
	body = append(body, l.ImplementationUse...)

	tagBytes := FinalizeTag(l.Tag, body)
	return append(tagBytes[:], body...)
}

// UnmarshalLVID decodes and verifies a LogicalVolumeIntegrityDescriptor.
func UnmarshalLVID(data []byte, readPosition uint32) (LogicalVolumeIntegrityDescriptor, error) {
	tag, err := VerifyRaw(data, readPosition, consts.TagIdentLogicalVolumeIntegrityDescriptor)
	if err != nil {
		return LogicalVolumeIntegrityDescriptor{}, err
	}
	b := data[TagSize:]
	if len(b) < lvidFixedLen {
		return LogicalVolumeIntegrityDescriptor{}, fmt.Errorf("descriptor: LVID body too short: %d bytes", len(b))
	}
	off := 0
	ts := UnmarshalTimestamp(b[off : off+TimestampSize])
	off += TimestampSize
	integrityType := binary.LittleEndian.Uint32(b[off:])
	off += 4
	nextExt := Extent{Length: binary.LittleEndian.Uint32(b[off:]), Location: binary.LittleEndian.Uint32(b[off+4:])}
	off += 8
	var contentsUse [32]byte
	copy(contentsUse[:], b[off:off+32])
	off += 32
	numPart := binary.LittleEndian.Uint32(b[off:])
	off += 4
	implUseLen := binary.LittleEndian.Uint32(b[off:])
	off += 4

	need := int(numPart)*8 + entity.Size + int(implUseLen)
	if len(b)-off < need {
		return LogicalVolumeIntegrityDescriptor{}, fmt.Errorf("descriptor: LVID truncated: need %d more bytes, have %d", need, len(b)-off)
	}
	freeTable := make([]uint32, numPart)
	for i := range freeTable {
		freeTable[i] = binary.LittleEndian.Uint32(b[off:])
		off += 4
	}
	sizeTable := make([]uint32, numPart)
	for i := range sizeTable {
		sizeTable[i] = binary.LittleEndian.Uint32(b[off:])
		off += 4
	}
	var implID entity.ID
	if err := implID.Unmarshal(b[off : off+entity.Size]); err != nil {
		return LogicalVolumeIntegrityDescriptor{}, fmt.Errorf("descriptor: LVID implementation identifier: %w", err)
	}
	off += entity.Size
	implUse := append([]byte(nil), b[off:off+int(implUseLen)]...)

	return LogicalVolumeIntegrityDescriptor{
		Tag:                      tag,
		RecordingDateTime:        ts,
		IntegrityType:            integrityType,
		NextIntegrityExtent:      nextExt,
		LogicalVolumeContentsUse: contentsUse,
		NumPartitions:            numPart,
		LengthOfImplUse:          implUseLen,
		FreeSpaceTable:           freeTable,
		SizeTable:                sizeTable,
		ImplementationIdentifier: implID,
		ImplementationUse:        implUse,
	}, nil
}
