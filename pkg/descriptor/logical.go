package descriptor

import (
	"encoding/binary"
	"fmt"

	"github.com/bgrewell/udf-kit/pkg/consts"
	"github.com/bgrewell/udf-kit/pkg/dstring"
	"github.com/bgrewell/udf-kit/pkg/entity"
)

// LogicalVolumeDescriptor ("LVD", ECMA-167 §3.10.6) names the logical volume
// and carries its partition map table — the input to the Partition Resolver
// (spec.md §4.8).
type LogicalVolumeDescriptor struct {
	Tag                            Tag
	VolumeDescriptorSequenceNumber uint32
	DescriptorCharacterSet         [64]byte
	LogicalVolumeIdentifier        string // 128-byte dstring
	LogicalBlockSize               uint32
	DomainIdentifier               entity.ID
	// LogicalVolumeContentsUse holds the File Set Descriptor location
	// extent (ECMA-167 §3.10.6.14): 8 bytes (length, location).
	FileSetDescriptorLength   uint32
	FileSetDescriptorLocation uint32
	MapTableLength            uint32
	NumPartitionMaps          uint32
	ImplementationIdentifier  entity.ID
	ImplementationUse         [128]byte
	IntegritySequenceLength   uint32
	IntegritySequenceLocation uint32
	PartitionMaps             []PartitionMap
}

// PartitionMap is one entry in the LVD's partition map table (ECMA-167
// §3.10.6.16, OSTA UDF 2.2.8-2.2.11 for type 2). Raw preserves the exact
// bytes so an unrecognized map type can still be re-serialized untouched.
type PartitionMap struct {
	Type byte
	Raw  []byte
}

// Kind reports which partition map variant this is, by inspecting the
// embedded entity identifier for type-2 maps (spec.md §4.8).
func (m PartitionMap) Kind() string {
	if m.Type == consts.PartitionMapType1 {
		return "type1"
	}
	if m.Type != consts.PartitionMapType2 || len(m.Raw) < 4+entity.Size {
		return "unknown"
	}
	var id entity.ID
	if err := id.Unmarshal(m.Raw[4 : 4+entity.Size]); err != nil {
		return "unknown"
	}
	switch id.Identifier {
	case consts.EntityIDVirtualPartition:
		return "virtual"
	case consts.EntityIDSparablePartition:
		return "sparable"
	case consts.EntityIDMetadataPartition:
		return "metadata"
	default:
		return "unknown"
	}
}

const tagIdentLVD uint16 = 6

// MarshalLVD encodes a LogicalVolumeDescriptor, including its partition map
// table.
func MarshalLVD(l LogicalVolumeDescriptor) ([]byte, error) {
	lvIdent, err := dstring.Encode(l.LogicalVolumeIdentifier, 128)
	if err != nil {
		return nil, fmt.Errorf("descriptor: LVD identifier: %w", err)
	}

	mapTable := make([]byte, 0, 64)
	for _, m := range l.PartitionMaps {
		mapTable = append(mapTable, m.Raw...)
	}
	l.MapTableLength = uint32(len(mapTable))
	l.NumPartitionMaps = uint32(len(l.PartitionMaps))

	body := make([]byte, 0, 256+len(mapTable))
	body = appendU32(body, l.VolumeDescriptorSequenceNumber)
	body = append(body, l.DescriptorCharacterSet[:]...)
	body = append(body, lvIdent...)
	body = appendU32(body, l.LogicalBlockSize)
	domID := l.DomainIdentifier.Marshal()
	body = append(body, domID[:]...)
	body = appendU32(body, l.FileSetDescriptorLength)
	body = appendU32(body, l.FileSetDescriptorLocation)
	body = appendU32(body, l.MapTableLength)
	body = appendU32(body, l.NumPartitionMaps)
	implID := l.ImplementationIdentifier.Marshal()
	body = append(body, implID[:]...)
	body = append(body, l.ImplementationUse[:]...)
	body = appendU32(body, l.IntegritySequenceLength)
	body = appendU32(body, l.IntegritySequenceLocation)
	body = append(body, mapTable...)

	tagBytes := FinalizeTag(l.Tag, body)
	return append(tagBytes[:], body...), nil
}

// UnmarshalLVD decodes and verifies a LogicalVolumeDescriptor.
func UnmarshalLVD(data []byte, readPosition uint32) (LogicalVolumeDescriptor, error) {
	tag, err := VerifyRaw(data, readPosition, tagIdentLVD)
	if err != nil {
		return LogicalVolumeDescriptor{}, err
	}
	b := data[TagSize:]
	const fixedLen = 4 + 64 + 128 + 4 + entity.Size + 4 + 4 + 4 + 4 + entity.Size + 128 + 4 + 4
	if len(b) < fixedLen {
		return LogicalVolumeDescriptor{}, fmt.Errorf("descriptor: LVD body too short: %d bytes", len(b))
	}
	off := 0
	seqNum := binary.LittleEndian.Uint32(b[off:])
	off += 4
	var charset [64]byte
	copy(charset[:], b[off:off+64])
	off += 64
	lvIdent, err := dstring.Decode(b[off : off+128])
	if err != nil {
		return LogicalVolumeDescriptor{}, fmt.Errorf("descriptor: LVD identifier: %w", err)
	}
	off += 128
	blockSize := binary.LittleEndian.Uint32(b[off:])
	off += 4
	var domID entity.ID
	if err := domID.Unmarshal(b[off : off+entity.Size]); err != nil {
		return LogicalVolumeDescriptor{}, fmt.Errorf("descriptor: LVD domain identifier: %w", err)
	}
	off += entity.Size
	fsdLen := binary.LittleEndian.Uint32(b[off:])
	off += 4
	fsdLoc := binary.LittleEndian.Uint32(b[off:])
	off += 4
	mapTableLen := binary.LittleEndian.Uint32(b[off:])
	off += 4
	numMaps := binary.LittleEndian.Uint32(b[off:])
	off += 4
	var implID entity.ID
	if err := implID.Unmarshal(b[off : off+entity.Size]); err != nil {
		return LogicalVolumeDescriptor{}, fmt.Errorf("descriptor: LVD implementation identifier: %w", err)
	}
	off += entity.Size
	var implUse [128]byte
	copy(implUse[:], b[off:off+128])
	off += 128
	integLen := binary.LittleEndian.Uint32(b[off:])
	off += 4
	integLoc := binary.LittleEndian.Uint32(b[off:])
	off += 4

	if uint32(len(b)-off) < mapTableLen {
		return LogicalVolumeDescriptor{}, fmt.Errorf("descriptor: LVD partition map table truncated: need %d, have %d", mapTableLen, len(b)-off)
	}
	maps, err := parsePartitionMaps(b[off:off+int(mapTableLen)], int(numMaps))
	if err != nil {
		return LogicalVolumeDescriptor{}, err
	}

	return LogicalVolumeDescriptor{
		Tag:                            tag,
		VolumeDescriptorSequenceNumber: seqNum,
		DescriptorCharacterSet:         charset,
		LogicalVolumeIdentifier:        lvIdent,
		LogicalBlockSize:               blockSize,
		DomainIdentifier:               domID,
		FileSetDescriptorLength:        fsdLen,
		FileSetDescriptorLocation:      fsdLoc,
		MapTableLength:                 mapTableLen,
		NumPartitionMaps:               numMaps,
		ImplementationIdentifier:       implID,
		ImplementationUse:              implUse,
		IntegritySequenceLength:        integLen,
		IntegritySequenceLocation:      integLoc,
		PartitionMaps:                  maps,
	}, nil
}

func parsePartitionMaps(table []byte, count int) ([]PartitionMap, error) {
	maps := make([]PartitionMap, 0, count)
	pos := 0
	for len(maps) < count {
		if pos+2 > len(table) {
			return nil, fmt.Errorf("descriptor: partition map table truncated at map %d", len(maps))
		}
		mapType := table[pos]
		mapLen := int(table[pos+1])
		if mapLen < 2 || pos+mapLen > len(table) {
			return nil, fmt.Errorf("descriptor: partition map %d has invalid length %d", len(maps), mapLen)
		}
		raw := make([]byte, mapLen)
		copy(raw, table[pos:pos+mapLen])
		maps = append(maps, PartitionMap{Type: mapType, Raw: raw})
		pos += mapLen
	}
	return maps, nil
}
