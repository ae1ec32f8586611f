// Package freespace implements Free-Space Accounting (spec.md §4.13): it
// reconciles a partition's recorded free-space descriptors (Space Bitmap,
// Space Table) with a file-tree walk's allocated extents, treating the
// Space Bitmap as authoritative and the Space Table and the LVID's own
// free-space count as advisory cross-checks.
package freespace

import (
	"github.com/bgrewell/udf-kit/pkg/descriptor"
	"github.com/bgrewell/udf-kit/pkg/filesystem"
)

// Report is the result of reconciling a partition's recorded free space
// against what a tree walk actually finds allocated.
type Report struct {
	PartitionNumber   uint16
	TotalBlocks       uint32
	BitmapFreeBlocks  uint32 // from the Space Bitmap, authoritative when present
	TableFreeBlocks   uint32 // from the Space Table, advisory only
	LVIDFreeBlocks    uint32 // from the LVID's free-space table, advisory only
	WalkedUsedBlocks  uint32 // derived by summing walked entries' extents
	HasBitmap         bool
	HasTable          bool
	Discrepancies     []string
}

// Reconcile builds a Report for one partition. bitmap and table may be nil
// when that descriptor type is absent from the volume.
func Reconcile(partitionNumber, totalBlocks uint32, bitmap *descriptor.SpaceBitmapDescriptor, table *descriptor.SpaceTableDescriptor, lvidFree uint32, entries []filesystem.Entry, blockSize uint32) Report {
	r := Report{PartitionNumber: uint16(partitionNumber), TotalBlocks: totalBlocks, LVIDFreeBlocks: lvidFree}

	if bitmap != nil {
		r.HasBitmap = true
		r.BitmapFreeBlocks = bitmap.CountFree()
	}
	if table != nil {
		r.HasTable = true
		r.TableFreeBlocks = table.TotalFreeBlocks(blockSize)
	}

	var usedBlocks uint32
	for _, e := range entries {
		for _, ext := range e.Extents {
			usedBlocks += blocksForBytes(ext.Length, blockSize)
		}
	}
	r.WalkedUsedBlocks = usedBlocks

	r.Discrepancies = r.crossCheck()
	return r
}

// crossCheck compares the authoritative and advisory free-space figures,
// reporting (without resolving) any disagreement — resolution, when
// requested, is the fixer's job.
func (r Report) crossCheck() []string {
	var notes []string
	if !r.HasBitmap {
		return notes
	}
	walkedFree := uint32(0)
	if r.TotalBlocks > r.WalkedUsedBlocks {
		walkedFree = r.TotalBlocks - r.WalkedUsedBlocks
	}
	if r.HasTable && r.TableFreeBlocks != r.BitmapFreeBlocks {
		notes = append(notes, "space table free count disagrees with space bitmap")
	}
	if r.LVIDFreeBlocks != 0 && r.LVIDFreeBlocks != r.BitmapFreeBlocks {
		notes = append(notes, "LVID free space table disagrees with space bitmap")
	}
	if walkedFree != r.BitmapFreeBlocks {
		notes = append(notes, "walked allocation disagrees with space bitmap")
	}
	return notes
}

func blocksForBytes(length uint32, blockSize uint32) uint32 {
	if blockSize == 0 {
		return 0
	}
	n := length / blockSize
	if length%blockSize != 0 {
		n++
	}
	return n
}
