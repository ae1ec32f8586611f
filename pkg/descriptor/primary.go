package descriptor

import (
	"encoding/binary"
	"fmt"

	"github.com/bgrewell/udf-kit/pkg/dstring"
	"github.com/bgrewell/udf-kit/pkg/entity"
)

// PrimaryVolumeDescriptor ("PVD", ECMA-167 §3.10.1) carries the volume's
// identity: its label, volume set identifier and the implementation that
// last wrote it. spec.md §4.6 treats the PVD with the highest
// VolumeDescriptorSequenceNumber as prevailing when duplicates appear in a
// sequence.
type PrimaryVolumeDescriptor struct {
	Tag                              Tag
	VolumeDescriptorSequenceNumber   uint32
	PrimaryVolumeDescriptorNumber    uint32
	VolumeIdentifier                 string // decoded from a 32-byte dstring field
	VolumeSequenceNumber             uint16
	MaxVolumeSequenceNumber          uint16
	InterchangeLevel                 uint16
	MaxInterchangeLevel              uint16
	CharacterSetList                 uint32
	MaxCharacterSetList              uint32
	VolumeSetIdentifier               string // decoded from a 128-byte dstring field
	RecordingDateTime                 Timestamp
	ImplementationIdentifier          entity.ID
	ImplementationUse                 [64]byte
	PredecessorVolDescSeqLocation     uint32
	Flags                             uint16
}

const tagIdentPVD uint16 = 1

const (
	pvdVolIdentFieldLen    = 32
	pvdVolSetIdentFieldLen = 128
)

// MarshalPVD encodes a PrimaryVolumeDescriptor.
func MarshalPVD(p PrimaryVolumeDescriptor) ([]byte, error) {
	volIdent, err := dstring.Encode(p.VolumeIdentifier, pvdVolIdentFieldLen)
	if err != nil {
		return nil, fmt.Errorf("descriptor: PVD volume identifier: %w", err)
	}
	volSetIdent, err := dstring.Encode(p.VolumeSetIdentifier, pvdVolSetIdentFieldLen)
	if err != nil {
		return nil, fmt.Errorf("descriptor: PVD volume set identifier: %w", err)
	}

	body := make([]byte, 0, 512-TagSize)
	put32 := func(v uint32) { body = appendU32(body, v) }
	put16 := func(v uint16) { body = appendU16(body, v) }

	put32(p.VolumeDescriptorSequenceNumber)
	put32(p.PrimaryVolumeDescriptorNumber)
	body = append(body, volIdent...)
	put16(p.VolumeSequenceNumber)
	put16(p.MaxVolumeSequenceNumber)
	put16(p.InterchangeLevel)
	put16(p.MaxInterchangeLevel)
	put32(p.CharacterSetList)
	put32(p.MaxCharacterSetList)
	body = append(body, volSetIdent...)
	body = append(body, make([]byte, 64)...) // descriptor+explanatory charset placeholders
	body = append(body, make([]byte, 16)...) // volume abstract/copyright extent placeholders
	ts := MarshalTimestamp(p.RecordingDateTime)
	body = append(body, ts[:]...)
	implID := p.ImplementationIdentifier.Marshal()
	body = append(body, implID[:]...)
	body = append(body, p.ImplementationUse[:]...)
	put32(p.PredecessorVolDescSeqLocation)
	put16(p.Flags)
	body = append(body, make([]byte, 22)...) // reserved

	tagBytes := FinalizeTag(p.Tag, body)
	return append(tagBytes[:], body...), nil
}

// UnmarshalPVD decodes and verifies a PrimaryVolumeDescriptor.
func UnmarshalPVD(data []byte, readPosition uint32) (PrimaryVolumeDescriptor, error) {
	tag, err := VerifyRaw(data, readPosition, tagIdentPVD)
	if err != nil {
		return PrimaryVolumeDescriptor{}, err
	}
	b := data[TagSize:]
	if len(b) < 8+pvdVolIdentFieldLen+8+pvdVolSetIdentFieldLen {
		return PrimaryVolumeDescriptor{}, fmt.Errorf("descriptor: PVD body too short: %d bytes", len(b))
	}
	off := 0
	seqNum := binary.LittleEndian.Uint32(b[off:])
	off += 4
	pvdNum := binary.LittleEndian.Uint32(b[off:])
	off += 4
	volIdent, err := dstring.Decode(b[off : off+pvdVolIdentFieldLen])
	if err != nil {
		return PrimaryVolumeDescriptor{}, fmt.Errorf("descriptor: PVD volume identifier: %w", err)
	}
	off += pvdVolIdentFieldLen
	volSeq := binary.LittleEndian.Uint16(b[off:])
	off += 2
	maxVolSeq := binary.LittleEndian.Uint16(b[off:])
	off += 2
	interchange := binary.LittleEndian.Uint16(b[off:])
	off += 2
	maxInterchange := binary.LittleEndian.Uint16(b[off:])
	off += 2
	charsetList := binary.LittleEndian.Uint32(b[off:])
	off += 4
	maxCharsetList := binary.LittleEndian.Uint32(b[off:])
	off += 4
	volSetIdent, err := dstring.Decode(b[off : off+pvdVolSetIdentFieldLen])
	if err != nil {
		return PrimaryVolumeDescriptor{}, fmt.Errorf("descriptor: PVD volume set identifier: %w", err)
	}
	off += pvdVolSetIdentFieldLen
	off += 64 // charsets
	off += 16 // abstract/copyright extents
	if off+TimestampSize+entity.Size+64+4+2 > len(b) {
		return PrimaryVolumeDescriptor{}, fmt.Errorf("descriptor: PVD body truncated at tail fields")
	}
	ts := UnmarshalTimestamp(b[off : off+TimestampSize])
	off += TimestampSize
	var implID entity.ID
	if err := implID.Unmarshal(b[off : off+entity.Size]); err != nil {
		return PrimaryVolumeDescriptor{}, fmt.Errorf("descriptor: PVD implementation identifier: %w", err)
	}
	off += entity.Size
	var implUse [64]byte
	copy(implUse[:], b[off:off+64])
	off += 64
	predecessor := binary.LittleEndian.Uint32(b[off:])
	off += 4
	flags := binary.LittleEndian.Uint16(b[off:])

	return PrimaryVolumeDescriptor{
		Tag:                            tag,
		VolumeDescriptorSequenceNumber: seqNum,
		PrimaryVolumeDescriptorNumber:  pvdNum,
		VolumeIdentifier:               volIdent,
		VolumeSequenceNumber:           volSeq,
		MaxVolumeSequenceNumber:        maxVolSeq,
		InterchangeLevel:               interchange,
		MaxInterchangeLevel:            maxInterchange,
		CharacterSetList:               charsetList,
		MaxCharacterSetList:            maxCharsetList,
		VolumeSetIdentifier:            volSetIdent,
		RecordingDateTime:              ts,
		ImplementationIdentifier:       implID,
		ImplementationUse:              implUse,
		PredecessorVolDescSeqLocation:  predecessor,
		Flags:                          flags,
	}, nil
}

func appendU16(b []byte, v uint16) []byte {
	return append(b, byte(v), byte(v>>8))
}

func appendU32(b []byte, v uint32) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}
