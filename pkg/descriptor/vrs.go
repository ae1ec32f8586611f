package descriptor

import (
	"bytes"
	"fmt"

	"github.com/bgrewell/udf-kit/pkg/consts"
)

// VRSRecord is one 2048-byte Volume Recognition Sequence record (ECMA-167
// §2), found starting at byte offset 32768 and walked until a Terminating
// Structure Descriptor (TEA01) or consts.MaxVRSRecords is reached (spec.md
// §4.5). Unlike the tagged descriptors, VRS records have no CRC — they are
// identified purely by a 5-byte standard identifier.
type VRSRecord struct {
	StructureType byte
	Identifier    string // one of consts.StdBEA01/NSR01/NSR02/NSR03/TEA01/CD001/BOOT2/CDW02
	Version       byte
}

const VRSRecordSize = 2048

// ParseVRSRecord decodes one 2048-byte VRS record.
func ParseVRSRecord(data []byte) (VRSRecord, error) {
	if len(data) < VRSRecordSize {
		return VRSRecord{}, fmt.Errorf("descriptor: VRS record needs %d bytes, got %d", VRSRecordSize, len(data))
	}
	ident := bytes.TrimRight(data[1:6], "\x00")
	return VRSRecord{
		StructureType: data[0],
		Identifier:    string(ident),
		Version:       data[6],
	}, nil
}

// IsTerminator reports whether this record ends the VRS walk.
func (v VRSRecord) IsTerminator() bool {
	return v.Identifier == consts.StdTEA01
}

// IsNSR reports whether this record identifies an NSR (UDF) file structure,
// distinguishing a UDF-bearing medium from plain ISO 9660/CDFS.
func (v VRSRecord) IsNSR() bool {
	switch v.Identifier {
	case consts.StdNSR01, consts.StdNSR02, consts.StdNSR03:
		return true
	default:
		return false
	}
}

// MarshalVRSRecord encodes a VRS record, zero-padding the remainder of the
// 2048-byte block.
func MarshalVRSRecord(v VRSRecord) []byte {
	buf := make([]byte, VRSRecordSize)
	buf[0] = v.StructureType
	copy(buf[1:6], v.Identifier)
	buf[6] = v.Version
	return buf
}
