package fixer

import (
	"fmt"

	"github.com/bgrewell/udf-kit/pkg/consts"
	"github.com/bgrewell/udf-kit/pkg/descriptor"
)

// dirExtent is one recorded extent backing a directory's FID stream, kept
// alongside the raw on-disc bytes so a patched FID can be scattered back to
// the same physical location it came from (spec.md §4.14's "FID/FE repair").
type dirExtent struct {
	partitionRef uint16
	block        uint32 // partition-relative
	absBlock     uint32
	length       uint32 // recorded bytes, may be less than a block multiple
	raw          []byte // full block-rounded on-disc bytes
}

// directoryBuffer is a directory's FID stream linearized across its
// (possibly several) extents, plus enough bookkeeping to scatter an edited
// FID back out without touching bytes outside it.
type directoryBuffer struct {
	dirAbsBlock uint32
	extents     []dirExtent
	content     []byte // concatenation of each extent's recorded bytes
	offsets     []int  // content offset at which each extent starts
}

func blocksFor(length, blockSize uint32) uint32 {
	if blockSize == 0 {
		return 0
	}
	n := length / blockSize
	if length%blockSize != 0 {
		n++
	}
	return n
}

func blocksFor64(length uint64, blockSize uint32) uint64 {
	if blockSize == 0 {
		return 0
	}
	bs := uint64(blockSize)
	n := length / bs
	if length%bs != 0 {
		n++
	}
	return n
}

// readDirectoryBuffer resolves and reads every extent of a directory's
// allocation descriptor area, mirroring pkg/walker's readContent but
// retaining per-extent raw bytes so the result can be rewritten.
func (f *Fixer) readDirectoryBuffer(dirAbsBlock, selfPartitionRef uint32, icbTag descriptor.ICBTag, ads []byte) (*directoryBuffer, error) {
	var extents []dirExtent

	switch icbTag.AllocDescForm() {
	case consts.ICBAllocShort:
		for off := 0; off+descriptor.ShortADSize <= len(ads); off += descriptor.ShortADSize {
			ad, err := descriptor.UnmarshalShortAD(ads[off : off+descriptor.ShortADSize])
			if err != nil {
				return nil, err
			}
			if ad.Type() == descriptor.ExtentTypeNotRecorded || ad.Length() == 0 {
				continue
			}
			extents = append(extents, dirExtent{partitionRef: uint16(selfPartitionRef), block: ad.ExtentLocation, length: ad.Length()})
		}
	case consts.ICBAllocLong:
		for off := 0; off+descriptor.LongADSize <= len(ads); off += descriptor.LongADSize {
			ad, err := descriptor.UnmarshalLongAD(ads[off : off+descriptor.LongADSize])
			if err != nil {
				return nil, err
			}
			if ad.ExtentLength == 0 {
				continue
			}
			extents = append(extents, dirExtent{partitionRef: ad.ExtentLocationPartition, block: ad.ExtentLocationBlock, length: ad.Length()})
		}
	default:
		return nil, fmt.Errorf("fixer: unsupported directory allocation form %d", icbTag.AllocDescForm())
	}

	db := &directoryBuffer{dirAbsBlock: dirAbsBlock}
	for i, ext := range extents {
		abs, err := f.d.Resolver.Resolve(ext.partitionRef, ext.block)
		if err != nil {
			return nil, fmt.Errorf("fixer: resolving directory extent: %w", err)
		}
		numBlocks := blocksFor(ext.length, f.d.BlockSize)
		raw, err := f.io.ReadAt(abs, numBlocks)
		if err != nil {
			return nil, fmt.Errorf("fixer: reading directory extent: %w", err)
		}
		extents[i].absBlock = abs
		extents[i].raw = raw
		db.offsets = append(db.offsets, len(db.content))
		db.content = append(db.content, raw[:ext.length]...)
	}
	db.extents = extents
	return db, nil
}

// patchContent replaces the bytes at [offset:offset+len(newBytes)] in the
// linearized buffer, refusing to straddle an extent boundary: a FID never
// spans two extents because each is padded to a 4-byte boundary within the
// directory stream it was read from.
func (db *directoryBuffer) patchContent(offset int, newBytes []byte) error {
	idx := db.extentIndexAt(offset)
	if idx < 0 {
		return fmt.Errorf("fixer: patch offset %d outside any directory extent", offset)
	}
	ext := db.extents[idx]
	extEnd := db.offsets[idx] + int(ext.length)
	if offset+len(newBytes) > extEnd {
		return fmt.Errorf("fixer: patch at offset %d length %d crosses extent boundary at %d", offset, len(newBytes), extEnd)
	}
	copy(db.content[offset:offset+len(newBytes)], newBytes)
	return nil
}

func (db *directoryBuffer) extentIndexAt(offset int) int {
	for i, start := range db.offsets {
		end := start + int(db.extents[i].length)
		if offset >= start && offset < end {
			return i
		}
	}
	return -1
}

// writeBack scatters the (possibly edited) linearized content back across
// its extents, preserving each extent's own block-rounded tail bytes
// outside the recorded length.
func (f *Fixer) writeBack(db *directoryBuffer) error {
	for i, ext := range db.extents {
		start := db.offsets[i]
		end := start + int(ext.length)
		copy(ext.raw[:ext.length], db.content[start:end])
		if err := f.writeDesc(ext.absBlock, ext.raw); err != nil {
			return fmt.Errorf("fixer: writing directory extent back: %w", err)
		}
	}
	return nil
}

// childInfo is the subset of an (E)FE's fields the directory repair pass
// needs from a child ICB.
type childInfo struct {
	absBlock              uint32
	isExtended            bool
	icbTag                descriptor.ICBTag
	uniqueID              uint64
	informationLength     uint64
	logicalBlocksRecorded uint64
}

func (f *Fixer) readChild(partitionRef uint16, block uint32) (childInfo, error) {
	abs, err := f.d.Resolver.Resolve(partitionRef, block)
	if err != nil {
		return childInfo{}, fmt.Errorf("fixer: resolving child ICB: %w", err)
	}
	data, err := f.io.ReadAt(abs, 1)
	if err != nil {
		return childInfo{}, err
	}
	tag, err := descriptor.UnmarshalTag(data[:descriptor.TagSize])
	if err != nil {
		return childInfo{}, err
	}
	switch tag.Identifier {
	case consts.TagIdentFileEntry:
		fe, err := descriptor.UnmarshalFileEntry(data, abs)
		if err != nil {
			return childInfo{}, err
		}
		return childInfo{absBlock: abs, icbTag: fe.ICBTag, uniqueID: fe.UniqueID, informationLength: fe.InformationLength, logicalBlocksRecorded: fe.LogicalBlocksRecorded}, nil
	case consts.TagIdentExtendedFileEntry:
		efe, err := descriptor.UnmarshalExtendedFileEntry(data, abs)
		if err != nil {
			return childInfo{}, err
		}
		return childInfo{absBlock: abs, isExtended: true, icbTag: efe.ICBTag, uniqueID: efe.UniqueID, informationLength: efe.InformationLength, logicalBlocksRecorded: efe.LogicalBlocksRecorded}, nil
	default:
		return childInfo{}, fmt.Errorf("fixer: unexpected tag identifier %d at child ICB block %d", tag.Identifier, abs)
	}
}

// rewriteChildUniqueID corrects a child (E)FE's stored Unique ID so its low
// 32 bits match the parent FID's copy, per spec.md §4.14's "the FE is
// rewritten from the FID's value".
func (f *Fixer) rewriteChildUniqueID(ci childInfo, low32 uint32) error {
	newID := ci.uniqueID&0xFFFFFFFF00000000 | uint64(low32)
	data, err := f.io.ReadAt(ci.absBlock, 1)
	if err != nil {
		return err
	}
	if ci.isExtended {
		efe, err := descriptor.UnmarshalExtendedFileEntry(data, ci.absBlock)
		if err != nil {
			return err
		}
		efe.UniqueID = newID
		return f.writeDesc(ci.absBlock, descriptor.MarshalExtendedFileEntry(efe))
	}
	fe, err := descriptor.UnmarshalFileEntry(data, ci.absBlock)
	if err != nil {
		return err
	}
	fe.UniqueID = newID
	return f.writeDesc(ci.absBlock, descriptor.MarshalFileEntry(fe))
}

// RepairDirectory implements spec.md §4.14's FID/FE repair pass for one
// directory: it verifies every child FID's Unique-ID copy against the
// child's own (E)FE, and removes FIDs pointing at files whose recorded
// block count disagrees with their information length (an unfinished
// write). Both kinds of repair rewrite the directory's own linearized FID
// stream, so they share the same read/patch/scatter machinery.
func (f *Fixer) RepairDirectory(partitionRef uint16, icbBlock uint32) (Report, error) {
	var report Report

	dir, err := f.readChild(partitionRef, icbBlock)
	if err != nil {
		return report, err
	}
	if dir.icbTag.FileType != consts.FileTypeDirectory {
		return report, fmt.Errorf("fixer: block %d is not a directory ICB", dir.absBlock)
	}

	data, err := f.io.ReadAt(dir.absBlock, 1)
	if err != nil {
		return report, err
	}
	var ads []byte
	if dir.isExtended {
		efe, err := descriptor.UnmarshalExtendedFileEntry(data, dir.absBlock)
		if err != nil {
			return report, err
		}
		ads = efe.AllocationDescriptors
	} else {
		fe, err := descriptor.UnmarshalFileEntry(data, dir.absBlock)
		if err != nil {
			return report, err
		}
		ads = fe.AllocationDescriptors
	}
	if dir.icbTag.AllocDescForm() == consts.ICBAllocInICB {
		// Content lives inline in the ICB itself; there is no separate
		// extent to scatter back to, so there is nothing for this pass to
		// do (an in-ICB directory has no physically-separated layout to
		// desync in the first place).
		return report, nil
	}

	db, err := f.readDirectoryBuffer(dir.absBlock, uint32(partitionRef), dir.icbTag, ads)
	if err != nil {
		return report, err
	}

	dirty := false
	off := 0
	for off < len(db.content) {
		// Each FID's tag location is the block of the directory content it
		// was read from, not the directory's ICB block.
		readPos := db.dirAbsBlock
		if idx := db.extentIndexAt(off); idx >= 0 {
			readPos = db.extents[idx].absBlock + uint32((off-db.offsets[idx])/int(f.d.BlockSize))
		}
		fid, n, err := descriptor.UnmarshalFID(db.content[off:], readPos)
		if err != nil || n == 0 {
			break
		}
		fidOffset := off
		off += n

		if fid.IsDeleted() || fid.IsParent() {
			continue
		}

		child, err := f.readChild(fid.ICB.ExtentLocationPartition, fid.ICB.ExtentLocationBlock)
		if err != nil {
			report.add(fmt.Sprintf("unreadable child ICB for %q", fid.FileIdentifier), ErrWrongDesc, false)
			continue
		}

		if low32, ok := fid.UniqueIDLow32(); ok {
			if low32 != uint32(child.uniqueID) {
				desc := fmt.Sprintf("unique ID mismatch for %q (FID=%d, FE=%d)", fid.FileIdentifier, low32, uint32(child.uniqueID))
				if f.decide(desc) {
					if err := f.rewriteChildUniqueID(child, low32); err != nil {
						return report, err
					}
					report.add(desc, ErrUUID, true)
				} else {
					report.add(desc, ErrUUID, false)
				}
			}
		}

		if !fid.IsDirectory() && child.icbTag.AllocDescForm() != consts.ICBAllocInICB {
			expected := blocksFor64(child.informationLength, f.d.BlockSize)
			if child.informationLength > 0 && expected != child.logicalBlocksRecorded {
				desc := fmt.Sprintf("unfinished write for %q (expected %d blocks, recorded %d)", fid.FileIdentifier, expected, child.logicalBlocksRecorded)
				if f.decide(desc) {
					fid.FileCharacteristics |= consts.FIDCharDeleted
					fid.ICB = descriptor.LongAllocationDescriptor{}
					buf, err := descriptor.MarshalFID(fid)
					if err != nil {
						return report, err
					}
					if len(buf) != n {
						return report, fmt.Errorf("fixer: repaired FID changed size (%d -> %d), refusing to patch", n, len(buf))
					}
					if err := db.patchContent(fidOffset, buf); err != nil {
						return report, err
					}
					dirty = true
					if err := f.writeDesc(child.absBlock, make([]byte, f.d.BlockSize)); err != nil {
						return report, err
					}
					report.add(desc, ErrExtLen, true)
				} else {
					report.add(desc, ErrExtLen, false)
				}
			}
		}
	}

	if dirty {
		if err := f.writeBack(db); err != nil {
			return report, err
		}
	}

	return report, nil
}
