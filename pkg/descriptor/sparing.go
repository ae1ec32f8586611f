package descriptor

import (
	"encoding/binary"
	"fmt"

	"github.com/bgrewell/udf-kit/pkg/entity"
)

// SparingMapEntry is one (original block, mapped block) pair in a Sparing
// Table (UDF 2.00 §2.2.12), used by a Sparable partition map to redirect
// writes away from a defective packet without rewriting the whole disc
// (spec.md §4.8/§4.10).
type SparingMapEntry struct {
	OriginalLocation uint32
	MappedLocation   uint32
}

// Unmapped marks an entry that has not yet been assigned a spare, per the
// UDF spec's 0xFFFFFFFF sentinel.
const Unmapped uint32 = 0xFFFFFFFF

// SparingTable holds up to consts.MaxSparingTables copies (identical
// content, redundant locations) of the block-remap list for one Sparable
// partition. It carries its own 16-byte tag-like header even though its
// TagIdentifier has no ECMA assignment (UDF reserves identifier 0).
type SparingTable struct {
	Tag                     Tag
	SparingIdentifier       entity.ID
	ReallocationTableLength uint16
	SequenceNumber          uint32
	Entries                 []SparingMapEntry
}

const sparingFixedLen = 2 + 2 + 4

// MarshalSparingTable encodes a SparingTable.
func MarshalSparingTable(s SparingTable) []byte {
	body := make([]byte, 0, sparingFixedLen+entity.Size+8*len(s.Entries))
	sparID := s.SparingIdentifier.Marshal()
	body = append(body, sparID[:]...)
	s.ReallocationTableLength = uint16(len(s.Entries))
	body = appendU16(body, s.ReallocationTableLength)
	body = append(body, 0, 0) // reserved
	body = appendU32(body, s.SequenceNumber)
	for _, e := range s.Entries {
		body = appendU32(body, e.OriginalLocation)
		body = appendU32(body, e.MappedLocation)
	}

	tagBytes := FinalizeTag(s.Tag, body)
	return append(tagBytes[:], body...)
}

// UnmarshalSparingTable decodes a SparingTable. It does not verify CRC
// against a specific expected identifier, since UDF assigns the Sparing
// Table no ECMA tag identifier (consts.TagIdentSparingTable == 0 is a
// placeholder, not a real on-disc value).
func UnmarshalSparingTable(data []byte, readPosition uint32) (SparingTable, error) {
	tag, err := VerifyRaw(data, readPosition, 0)
	if err != nil {
		return SparingTable{}, err
	}
	b := data[TagSize:]
	if len(b) < entity.Size+sparingFixedLen {
		return SparingTable{}, fmt.Errorf("descriptor: sparing table body too short: %d bytes", len(b))
	}
	var sparID entity.ID
	if err := sparID.Unmarshal(b[0:entity.Size]); err != nil {
		return SparingTable{}, fmt.Errorf("descriptor: sparing table identifier: %w", err)
	}
	off := entity.Size
	tableLen := binary.LittleEndian.Uint16(b[off:])
	off += 4 // length field (2) + reserved (2)
	seqNum := binary.LittleEndian.Uint32(b[off:])
	off += 4

	need := int(tableLen) * 8
	if len(b)-off < need {
		return SparingTable{}, fmt.Errorf("descriptor: sparing table truncated: need %d more bytes, have %d", need, len(b)-off)
	}
	entries := make([]SparingMapEntry, tableLen)
	for i := range entries {
		entries[i] = SparingMapEntry{
			OriginalLocation: binary.LittleEndian.Uint32(b[off:]),
			MappedLocation:   binary.LittleEndian.Uint32(b[off+4:]),
		}
		off += 8
	}

	return SparingTable{
		Tag:                     tag,
		SparingIdentifier:       sparID,
		ReallocationTableLength: tableLen,
		SequenceNumber:          seqNum,
		Entries:                 entries,
	}, nil
}

// Resolve maps a logical (pre-sparing) block to its spared location.
// Sparing reallocates whole packets, not individual blocks (UDF 2.00
// §2.2.12): block is rounded down to its packet's first block before
// matching table entries, and the block's offset within the packet is
// added back onto whatever the table maps that packet to. ok=false means
// the block's packet is not covered by this table (the common case — most
// packets are never reallocated).
func (s SparingTable) Resolve(block uint32, packetLength uint32) (uint32, bool) {
	if packetLength == 0 {
		return 0, false
	}
	offset := block % packetLength
	packet := block - offset
	for _, e := range s.Entries {
		if e.OriginalLocation == packet {
			return e.MappedLocation + offset, true
		}
	}
	return 0, false
}
