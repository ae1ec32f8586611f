package fixer

import (
	"fmt"
	"time"

	"github.com/bgrewell/udf-kit/pkg/consts"
	"github.com/bgrewell/udf-kit/pkg/descriptor"
	"github.com/bgrewell/udf-kit/pkg/lvidchain"
)

// FixLVIDClose closes the logical volume's integrity descriptor: integrity
// type set to close, a fresh local-time recording timestamp, counters
// refreshed from the walked file tree, next_unique_id set to
// max(observed uniqueID)+1, each partition's free-space entry set to
// partition_size minus used blocks, and the tag CRC/checksum recomputed
// (spec.md §4.14, tested property in spec.md §8). The LVID is always the
// last descriptor written in a repair session (spec.md §5's ordering
// guarantee), so callers should run this after FixVDS/FixPDSpaceBitmap.
func (f *Fixer) FixLVIDClose() (Report, error) {
	var report Report
	latest, ok := lvidchain.Latest(f.d.LVIDChain)
	if !ok {
		return report, fmt.Errorf("fixer: no LVID to close")
	}
	head := latest

	desc := "closing logical volume integrity descriptor"
	if !f.decide(desc) {
		report.add(desc, 0, false)
		return report, nil
	}

	var maxUnique uint64
	for _, e := range f.d.Entries {
		if e.UniqueID > maxUnique {
			maxUnique = e.UniqueID
		}
	}

	numDirs, numFiles := uint32(0), uint32(0)
	for _, e := range f.d.Entries {
		if e.IsDir {
			numDirs++
		} else {
			numFiles++
		}
	}

	head.IntegrityType = consts.IntegrityTypeClose
	head.RecordingDateTime = descriptor.FromLocalTime(time.Now())
	setUniqueIDCounter(&head, maxUnique+1)
	setFileDirCounters(&head, numFiles, numDirs)

	for i, freeBlocks := range head.FreeSpaceTable {
		partNum := uint16(i)
		p, ok := f.d.Partitions[partNum]
		if !ok {
			continue
		}
		used := uint32(0)
		if r, ok := f.d.FreeSpace[partNum]; ok {
			used = r.WalkedUsedBlocks
		}
		if p.Descriptor.PartitionLength >= used {
			freeBlocks = p.Descriptor.PartitionLength - used
		} else {
			freeBlocks = 0
		}
		head.FreeSpaceTable[i] = freeBlocks
	}

	buf := descriptor.MarshalLVID(head)
	if err := f.writeDesc(head.Tag.Location, buf); err != nil {
		return report, err
	}
	f.d.LVIDChain[len(f.d.LVIDChain)-1] = head
	report.add(desc, 0, true)
	return report, nil
}

// setUniqueIDCounter stashes next in LogicalVolumeContentsUse bytes 0-7, the
// layout the LVID chain walker and UniqueIDCounter reader already assume.
func setUniqueIDCounter(l *descriptor.LogicalVolumeIntegrityDescriptor, next uint64) {
	for i := 0; i < 8; i++ {
		l.LogicalVolumeContentsUse[i] = byte(next >> (8 * i))
	}
}

// setFileDirCounters stashes file/directory counts in
// LogicalVolumeContentsUse bytes 8-15, mirroring OSTA UDF 2.2.6.4's
// convention for the two counters following the unique ID.
func setFileDirCounters(l *descriptor.LogicalVolumeIntegrityDescriptor, numFiles, numDirs uint32) {
	for i := 0; i < 4; i++ {
		l.LogicalVolumeContentsUse[8+i] = byte(numFiles >> (8 * i))
		l.LogicalVolumeContentsUse[12+i] = byte(numDirs >> (8 * i))
	}
}
