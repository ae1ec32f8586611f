package fixer

import (
	"fmt"

	"github.com/bgrewell/udf-kit/pkg/crc"
	"github.com/bgrewell/udf-kit/pkg/descriptor"
)

// rawSlot adapts a raw block's tag/body to crc.Verifier without knowing
// which concrete descriptor type occupies the slot — the VDS copy repair
// operates at sector granularity (spec.md §4.14), not per descriptor type.
type rawSlot struct {
	tag      descriptor.Tag
	tagBytes [descriptor.TagSize]byte
	body     []byte
}

func (r rawSlot) TagIdentifier() uint16           { return r.tag.Identifier }
func (r rawSlot) TagChecksumByte() byte           { return r.tag.Checksum }
func (r rawSlot) TagBytes() [descriptor.TagSize]byte { return r.tagBytes }
func (r rawSlot) DescCRC() uint16                 { return r.tag.CRC }
func (r rawSlot) DescCRCLength() uint16           { return r.tag.CRCLength }
func (r rawSlot) Body() []byte                    { return r.body }
func (r rawSlot) TagLocation() uint32             { return r.tag.Location }

func parseRawSlot(data []byte) (rawSlot, error) {
	if len(data) < descriptor.TagSize {
		return rawSlot{}, fmt.Errorf("fixer: slot shorter than a tag: %d bytes", len(data))
	}
	tag, err := descriptor.UnmarshalTag(data[:descriptor.TagSize])
	if err != nil {
		return rawSlot{}, err
	}
	var tb [descriptor.TagSize]byte
	copy(tb[:], data[:descriptor.TagSize])
	return rawSlot{tag: tag, tagBytes: tb, body: data[descriptor.TagSize:]}, nil
}

// slotValid reports whether the block at readPosition holds a structurally
// sound descriptor: checksum, CRC and position all agree. The identifier is
// not checked since any VDS descriptor kind may occupy the slot.
func slotValid(data []byte, readPosition uint32) bool {
	slot, err := parseRawSlot(data)
	if err != nil {
		return false
	}
	return crc.Verify(slot, readPosition, 0) == nil
}

// retagForLocation rewrites only the tag's Location field and recomputes
// the checksum byte, leaving CRC/CRCLength untouched since the body is
// unmodified — used when mirroring one VDS copy's bytes into the other's
// sector, which sits at a different absolute block.
func retagForLocation(data []byte, location uint32) ([]byte, error) {
	tag, err := descriptor.UnmarshalTag(data[:descriptor.TagSize])
	if err != nil {
		return nil, err
	}
	tag.Location = location
	newTag := descriptor.MarshalTag(tag)
	out := append([]byte(nil), newTag[:]...)
	out = append(out, data[descriptor.TagSize:]...)
	return out, nil
}

func blocksForExtentLen(length, blockSize uint32) uint32 {
	if blockSize == 0 {
		return 0
	}
	n := length / blockSize
	if length%blockSize != 0 {
		n++
	}
	return n
}

type vdsRepair struct {
	block uint32
	data  []byte
}

// FixVDS reconciles the Main and Reserve VDS copies slot by slot: whichever
// side is damaged is overwritten with the other side's bytes, retagged to
// the damaged slot's own location (spec.md §4.14's "VDS copy"). Both sides
// damaged at the same slot is unrecoverable for that slot and is reported,
// not repaired. Writes honor the ordering guarantee from spec.md §5: every
// Main-bound write happens, then a sync fence, then every Reserve-bound
// write.
func (f *Fixer) FixVDS() (Report, error) {
	var report Report
	if f.d.PrimaryAnchor < 0 || f.d.PrimaryAnchor >= len(f.d.Anchors) {
		report.Kind = KindIrrecoverableBothDamaged
		return report, fmt.Errorf("fixer: no primary anchor to read VDS extents from")
	}
	avdp := f.d.Anchors[f.d.PrimaryAnchor].AVDP
	blockSize := f.d.BlockSize

	mainBlocks := blocksForExtentLen(avdp.MainVDSExtentLength, blockSize)
	reserveBlocks := blocksForExtentLen(avdp.ReserveVDSExtentLength, blockSize)
	n := mainBlocks
	if reserveBlocks < n {
		n = reserveBlocks
	}

	var mainWrites, reserveWrites []vdsRepair
	for i := uint32(0); i < n; i++ {
		mainBlock := avdp.MainVDSExtentLocation + i
		reserveBlock := avdp.ReserveVDSExtentLocation + i

		mainData, mainErr := f.io.ReadAt(mainBlock, 1)
		reserveData, reserveErr := f.io.ReadAt(reserveBlock, 1)

		mainOK := mainErr == nil && slotValid(mainData, mainBlock)
		reserveOK := reserveErr == nil && slotValid(reserveData, reserveBlock)

		if mainOK && reserveOK {
			continue
		}
		if !mainOK && !reserveOK {
			desc := fmt.Sprintf("VDS slot %d: both main (block %d) and reserve (block %d) are damaged", i, mainBlock, reserveBlock)
			report.Kind = KindIrrecoverableBothDamaged
			report.add(desc, ErrCRC|ErrChecksum, false)
			continue
		}
		if !mainOK {
			desc := fmt.Sprintf("VDS slot %d: main (block %d) damaged, reserve (block %d) healthy", i, mainBlock, reserveBlock)
			if !f.decide(desc) {
				report.add(desc, ErrCRC, false)
				continue
			}
			retagged, err := retagForLocation(reserveData, mainBlock)
			if err != nil {
				return report, fmt.Errorf("fixer: retagging VDS slot %d for main: %w", i, err)
			}
			mainWrites = append(mainWrites, vdsRepair{block: mainBlock, data: retagged})
			report.add(desc, ErrCRC, true)
			continue
		}

		desc := fmt.Sprintf("VDS slot %d: reserve (block %d) damaged, main (block %d) healthy", i, reserveBlock, mainBlock)
		if !f.decide(desc) {
			report.add(desc, ErrCRC, false)
			continue
		}
		retagged, err := retagForLocation(mainData, reserveBlock)
		if err != nil {
			return report, fmt.Errorf("fixer: retagging VDS slot %d for reserve: %w", i, err)
		}
		reserveWrites = append(reserveWrites, vdsRepair{block: reserveBlock, data: retagged})
		report.add(desc, ErrCRC, true)
	}

	for _, w := range mainWrites {
		if err := f.writeDesc(w.block, w.data); err != nil {
			return report, err
		}
	}
	if len(mainWrites) > 0 {
		if err := f.sync(); err != nil {
			return report, err
		}
	}
	for _, w := range reserveWrites {
		if err := f.writeDesc(w.block, w.data); err != nil {
			return report, err
		}
	}

	return report, nil
}

// CopyVDSDescriptor copies one sector verbatim from sourceBlock to
// targetBlock, retagging it to targetBlock (spec.md §6's
// copy_vds_descriptor) — the single-slot primitive FixVDS builds on, also
// usable directly by a CLI collaborator that wants to force one slot's
// repair regardless of FixVDS's policy gate.
func (f *Fixer) CopyVDSDescriptor(sourceBlock, targetBlock uint32) error {
	data, err := f.io.ReadAt(sourceBlock, 1)
	if err != nil {
		return fmt.Errorf("fixer: reading source slot %d: %w", sourceBlock, err)
	}
	retagged, err := retagForLocation(data, targetBlock)
	if err != nil {
		return fmt.Errorf("fixer: retagging slot for target %d: %w", targetBlock, err)
	}
	return f.writeDesc(targetBlock, retagged)
}
