// Package sparingload implements the Sparing Tables loader (spec.md §4.10):
// it reads the redundant copies of a Sparable partition map's sparing table
// and keeps the one with the highest sequence number, falling back through
// the remaining copies when a copy fails its checksum.
package sparingload

import (
	"fmt"

	"github.com/bgrewell/udf-kit/pkg/blockio"
	"github.com/bgrewell/udf-kit/pkg/consts"
	"github.com/bgrewell/udf-kit/pkg/descriptor"
)

// Load reads every sparing table location named in the partition map and
// returns them all, most-current first, so a resolver can fall through to
// an older copy if the newest is itself corrupt.
func Load(io blockio.BlockIO, locations []uint32, tableLengthBlocks uint32) ([]descriptor.SparingTable, error) {
	if len(locations) > consts.MaxSparingTables {
		locations = locations[:consts.MaxSparingTables]
	}

	var tables []descriptor.SparingTable
	var lastErr error
	for _, loc := range locations {
		data, err := io.ReadAt(loc, tableLengthBlocks)
		if err != nil {
			lastErr = err
			continue
		}
		st, err := descriptor.UnmarshalSparingTable(data, loc)
		if err != nil {
			lastErr = err
			continue
		}
		tables = append(tables, st)
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("sparingload: no valid sparing table among %d locations: %w", len(locations), lastErr)
	}

	sortBySequenceDescending(tables)
	return tables, nil
}

func sortBySequenceDescending(tables []descriptor.SparingTable) {
	for i := 1; i < len(tables); i++ {
		for j := i; j > 0 && tables[j].SequenceNumber > tables[j-1].SequenceNumber; j-- {
			tables[j], tables[j-1] = tables[j-1], tables[j]
		}
	}
}

// ParseLocations extracts the sparing table block locations embedded in a
// Sparable partition map's raw bytes (spec.md §3, partition map type 2,
// "Sparable Partition Map"): Type(1) + Length(1) + EntityID(32) +
// VolumeSequenceNumber(2) + PartitionNumber(2) + PacketLength(2) +
// NumSparingTables(1) + Reserved(1) + SizeEachTable(4), followed by up to
// consts.MaxSparingTables little-endian uint32 locations.
func ParseLocations(raw []byte) (locations []uint32, packetLength uint32, err error) {
	const locationsOffset = 1 + 1 + 32 + 2 + 2 + 2 + 1 + 1 + 4
	if len(raw) < locationsOffset {
		return nil, 0, fmt.Errorf("sparingload: sparable partition map too short: %d bytes", len(raw))
	}
	packetLength = uint32(le16(raw[38:40]))
	numTables := int(raw[40])
	off := locationsOffset
	for i := 0; i < numTables && off+4 <= len(raw); i++ {
		locations = append(locations, le32(raw[off:off+4]))
		off += 4
	}
	return locations, packetLength, nil
}

func le16(b []byte) uint16 {
	return uint16(b[0]) | uint16(b[1])<<8
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
