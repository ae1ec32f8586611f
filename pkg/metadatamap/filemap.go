// Package metadatamap implements the Metadata File Map (spec.md §4.11): it
// resolves a Metadata partition's Metadata File and Metadata Mirror File
// ICBs, deciding which copy backs reads when the two disagree or one is
// unreadable.
package metadatamap

import (
	"fmt"

	"github.com/bgrewell/udf-kit/pkg/blockio"
	"github.com/bgrewell/udf-kit/pkg/consts"
	"github.com/bgrewell/udf-kit/pkg/descriptor"
)

// Map is the resolved location of a Metadata partition's backing file, plus
// whether the primary copy or its mirror ended up serving reads. Extents is
// the metadata file's own allocation descriptor list, in file order: a
// Metadata partition's blocks are resolved by walking it with a running
// block offset, not by treating the file's ICB block as if it were itself
// the start of a single contiguous run.
type Map struct {
	FileLocation       uint32 // backing-partition-relative block of the Metadata File ICB
	MirrorFileLocation uint32
	UsedMirror         bool
	BitmapFileLocation uint32 // 0 if absent (Metadata Duplicate Bitmap is optional, UDF 2.50+)
	Extents            []descriptor.Extent
}

// Load reads the Metadata File and Metadata Mirror File entries from a
// Metadata partition map's raw bytes (UDF 2.50 §2.2.10) and picks which one
// to trust: the primary if it parses and checksums cleanly, the mirror
// otherwise.
func Load(io blockio.BlockIO, resolve func(block uint32) (uint32, error), raw []byte) (Map, error) {
	loc, mirrorLoc, bitmapLoc, err := parseMetadataPartitionMap(raw)
	if err != nil {
		return Map{}, err
	}

	m := Map{FileLocation: loc, MirrorFileLocation: mirrorLoc, BitmapFileLocation: bitmapLoc}

	if fe, err := readFileEntry(io, resolve, loc); err == nil {
		if m.Extents, err = metadataExtents(fe); err != nil {
			return Map{}, fmt.Errorf("metadatamap: metadata file's allocation descriptors: %w", err)
		}
		return m, nil
	}
	fe, err := readFileEntry(io, resolve, mirrorLoc)
	if err != nil {
		return Map{}, fmt.Errorf("metadatamap: neither metadata file (block %d) nor mirror (block %d) is readable", loc, mirrorLoc)
	}
	m.UsedMirror = true
	if m.Extents, err = metadataExtents(fe); err != nil {
		return Map{}, fmt.Errorf("metadatamap: metadata mirror file's allocation descriptors: %w", err)
	}
	return m, nil
}

// metadataExtents parses a metadata file entry's allocation descriptor list
// into an ordered (location, length) extent list (spec.md §4.11). In-ICB
// content has no separate extents and yields none; it is resolved entirely
// from the FE itself by whatever reads the metadata file directly.
func metadataExtents(fe descriptor.FileEntry) ([]descriptor.Extent, error) {
	ads := fe.AllocationDescriptors
	switch fe.ICBTag.AllocDescForm() {
	case consts.ICBAllocInICB:
		return nil, nil

	case consts.ICBAllocShort:
		var extents []descriptor.Extent
		for off := 0; off+descriptor.ShortADSize <= len(ads); off += descriptor.ShortADSize {
			ad, err := descriptor.UnmarshalShortAD(ads[off : off+descriptor.ShortADSize])
			if err != nil {
				return nil, err
			}
			if ad.Type() == descriptor.ExtentTypeNotRecorded || ad.Length() == 0 {
				continue
			}
			extents = append(extents, descriptor.Extent{Location: ad.ExtentLocation, Length: ad.Length()})
		}
		return extents, nil

	case consts.ICBAllocLong:
		var extents []descriptor.Extent
		for off := 0; off+descriptor.LongADSize <= len(ads); off += descriptor.LongADSize {
			ad, err := descriptor.UnmarshalLongAD(ads[off : off+descriptor.LongADSize])
			if err != nil {
				return nil, err
			}
			if ad.Type() == descriptor.ExtentTypeNotRecorded || ad.Length() == 0 {
				continue
			}
			extents = append(extents, descriptor.Extent{Location: ad.ExtentLocationBlock, Length: ad.Length()})
		}
		return extents, nil

	default:
		return nil, fmt.Errorf("unsupported metadata file allocation descriptor form %d", fe.ICBTag.AllocDescForm())
	}
}

func readFileEntry(io blockio.BlockIO, resolve func(uint32) (uint32, error), block uint32) (descriptor.FileEntry, error) {
	abs, err := resolve(block)
	if err != nil {
		return descriptor.FileEntry{}, err
	}
	data, err := io.ReadAt(abs, 1)
	if err != nil {
		return descriptor.FileEntry{}, err
	}
	return descriptor.UnmarshalFileEntry(data, abs)
}

// parseMetadataPartitionMap decodes the Metadata partition map layout:
// Type(1) + Length(1) + EntityID(32) + VolumeSequenceNumber(2) +
// PartitionNumber(2) + MetadataFileLocation(4) + MetadataMirrorFileLocation(4)
// + MetadataBitmapFileLocation(4) + AllocationUnitSize(4) + AlignmentUnitSize(2)
// + Flags(1) + Reserved(5).
func parseMetadataPartitionMap(raw []byte) (fileLoc, mirrorLoc, bitmapLoc uint32, err error) {
	const base = 1 + 1 + 32 + 2 + 2
	if len(raw) < base+12 {
		return 0, 0, 0, fmt.Errorf("metadatamap: metadata partition map too short: %d bytes", len(raw))
	}
	fileLoc = le32(raw[base:])
	mirrorLoc = le32(raw[base+4:])
	bitmapLoc = le32(raw[base+8:])
	return fileLoc, mirrorLoc, bitmapLoc, nil
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
