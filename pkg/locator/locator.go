// Package locator implements the Anchor & VRS Locator (spec.md §4.5): it
// finds the Volume Recognition Sequence and the redundant Anchor Volume
// Descriptor Pointers that bootstrap everything else.
package locator

import (
	"fmt"

	"github.com/bgrewell/udf-kit/pkg/blockio"
	"github.com/bgrewell/udf-kit/pkg/consts"
	"github.com/bgrewell/udf-kit/pkg/descriptor"
	"github.com/bgrewell/udf-kit/pkg/logging"
)

// Locator reads the fixed, well-known locations a UDF volume's structure
// bootstraps from.
type Locator struct {
	io  blockio.BlockIO
	log *logging.Logger
}

// New creates a Locator over io, using sectorSize (io.PhysicalSectorSize())
// for block arithmetic.
func New(io blockio.BlockIO, log *logging.Logger) *Locator {
	if log == nil {
		log = logging.DefaultLogger()
	}
	return &Locator{io: io, log: log.WithName("locator")}
}

// LocateVRS walks the Volume Recognition Sequence starting at byte offset
// consts.VRSByteOffset, returning every record up to and including the
// terminator, or up to consts.MaxVRSRecords records if no terminator is
// found (a malformed disc, but not fatal to the caller — the NSR check can
// still succeed on what was read).
func (l *Locator) LocateVRS() ([]descriptor.VRSRecord, error) {
	sectorSize := l.io.PhysicalSectorSize()
	startBlock := consts.VRSByteOffset / sectorSize
	if consts.VRSByteOffset%sectorSize != 0 {
		return nil, fmt.Errorf("locator: VRS byte offset %d is not block-aligned to sector size %d", consts.VRSByteOffset, sectorSize)
	}

	var records []descriptor.VRSRecord
	blocksPerRecord := descriptor.VRSRecordSize / sectorSize
	if blocksPerRecord == 0 {
		blocksPerRecord = 1
	}

	for i := 0; i < consts.MaxVRSRecords; i++ {
		data, err := l.io.ReadAt(startBlock+uint32(i)*blocksPerRecord, blocksPerRecord)
		if err != nil {
			return records, fmt.Errorf("locator: reading VRS record %d: %w", i, err)
		}
		rec, err := descriptor.ParseVRSRecord(data)
		if err != nil {
			return records, fmt.Errorf("locator: parsing VRS record %d: %w", i, err)
		}
		records = append(records, rec)
		if rec.IsTerminator() {
			break
		}
	}
	l.log.Debug("located VRS", "records", len(records))
	return records, nil
}

// HasNSR reports whether any VRS record identifies a UDF (NSR) file
// structure, as opposed to plain ISO 9660/CDFS.
func HasNSR(records []descriptor.VRSRecord) bool {
	for _, r := range records {
		if r.IsNSR() {
			return true
		}
	}
	return false
}

// AnchorCandidate is one AVDP read attempt, successful or not, at one of
// the three canonical locations.
type AnchorCandidate struct {
	Block uint32
	AVDP  descriptor.AnchorVolumeDescriptorPointer
	Err   error
}

// LocateAnchors reads the three canonical AVDP locations (block
// consts.PrimaryAnchorBlock, block totalBlocks -
// consts.SecondaryAnchorBackFromLast, and the last block) plus the legacy
// absolute block consts.LegacyAnchorBlock512, returning every attempt so the caller
// (the VDS Scanner / Structural Fixer) can apply majority-rules recovery
// when some candidates fail to verify.
func (l *Locator) LocateAnchors(totalBlocks uint32) []AnchorCandidate {
	sectorSize := l.io.PhysicalSectorSize()
	candidates := []uint32{
		consts.PrimaryAnchorBlock,
		totalBlocks - consts.SecondaryAnchorBackFromLast,
		totalBlocks - 1,
	}
	// Unclosed write-once media record their anchor at the legacy absolute
	// block 512 instead.
	candidates = append(candidates, consts.LegacyAnchorBlock512)

	seen := make(map[uint32]bool)
	var out []AnchorCandidate
	for _, block := range candidates {
		if seen[block] {
			continue
		}
		seen[block] = true

		data, err := l.io.ReadAt(block, 1)
		if err != nil {
			out = append(out, AnchorCandidate{Block: block, Err: fmt.Errorf("locator: reading block %d: %w", block, err)})
			continue
		}
		avdp, err := descriptor.UnmarshalAVDP(data, block)
		if err != nil {
			out = append(out, AnchorCandidate{Block: block, Err: fmt.Errorf("locator: parsing AVDP at block %d: %w", block, err)})
			continue
		}
		if err := validateAVDPExtentLengths(avdp, sectorSize); err != nil {
			out = append(out, AnchorCandidate{Block: block, Err: err})
			continue
		}
		out = append(out, AnchorCandidate{Block: block, AVDP: avdp})
	}
	l.log.Debug("located anchors", "candidates", len(out))
	return out
}

// validateAVDPExtentLengths enforces the minimum VDS extent length
// resolved in SPEC_FULL.md: 16*block_size bytes, not 16*sector_size.
func validateAVDPExtentLengths(a descriptor.AnchorVolumeDescriptorPointer, blockSize uint32) error {
	min := 16 * blockSize
	if a.MainVDSExtentLength < min {
		return fmt.Errorf("locator: main VDS extent length %d below minimum %d", a.MainVDSExtentLength, min)
	}
	if a.ReserveVDSExtentLength < min {
		return fmt.Errorf("locator: reserve VDS extent length %d below minimum %d", a.ReserveVDSExtentLength, min)
	}
	return nil
}

// Valid returns only the successfully parsed AVDPs from a candidate list.
func Valid(candidates []AnchorCandidate) []descriptor.AnchorVolumeDescriptorPointer {
	var out []descriptor.AnchorVolumeDescriptorPointer
	for _, c := range candidates {
		if c.Err == nil {
			out = append(out, c.AVDP)
		}
	}
	return out
}
