package disc

import (
	"testing"

	"github.com/bgrewell/udf-kit/pkg/blockio"
	"github.com/bgrewell/udf-kit/pkg/consts"
	"github.com/bgrewell/udf-kit/pkg/descriptor"
	"github.com/bgrewell/udf-kit/pkg/filesystem"
	"github.com/bgrewell/udf-kit/pkg/freespace"
	"github.com/bgrewell/udf-kit/pkg/partresolve"
	"github.com/bgrewell/udf-kit/pkg/vds"
	"github.com/stretchr/testify/require"
)

// buildPartitionWithBitmap writes a Space Bitmap Descriptor at bitmapBlock
// marking every block free, then a Type 1 Partition Descriptor whose
// PartitionContentsUse's Partition Header names it.
func buildPartitionWithBitmap(t *testing.T, mem *blockio.MemBlockIO, totalBlocks, bitmapBlock uint32) descriptor.PartitionDescriptor {
	t.Helper()

	bitmap := descriptor.SpaceBitmapDescriptor{
		Tag:          descriptor.Tag{Identifier: consts.TagIdentSpaceBitmapDescriptor, Location: bitmapBlock},
		NumberOfBits: totalBlocks,
		Bitmap:       make([]byte, (totalBlocks+7)/8),
	}
	for i := uint32(0); i < totalBlocks; i++ {
		bitmap.SetFree(i, true)
	}
	buf := descriptor.MarshalSpaceBitmapDescriptor(bitmap)
	require.NoError(t, mem.WriteAt(bitmapBlock, buf))

	ad := descriptor.MarshalShortAD(descriptor.ShortAllocationDescriptor{ExtentLength: uint32(len(buf)), ExtentLocation: bitmapBlock})
	var contentsUse [128]byte
	copy(contentsUse[8:16], ad[:])

	return descriptor.PartitionDescriptor{
		PartitionNumber:           0,
		PartitionStartingLocation: 0,
		PartitionLength:           totalBlocks,
		PartitionContentsUse:      contentsUse,
	}
}

func TestReconcileFreeSpaceReadsOnDiscBitmap(t *testing.T) {
	const blockSize = 2048
	const totalBlocks = 100
	const bitmapBlock = 50

	mem := blockio.NewMem(totalBlocks, blockSize)
	pd := buildPartitionWithBitmap(t, mem, totalBlocks, bitmapBlock)

	d := &Disc{
		IO:        mem,
		BlockSize: blockSize,
		Partitions: map[uint16]*partresolve.Partition{
			0: {Number: 0, Map: descriptor.PartitionMap{Type: consts.PartitionMapType1}, Descriptor: pd},
		},
		Merged:    &vds.Result{UnallocatedSpace: &descriptor.UnallocatedSpaceDescriptor{}},
		FreeSpace: make(map[uint16]freespace.Report),
		Entries: []filesystem.Entry{
			{Path: "/a", Extents: []descriptor.Extent{{Location: 10, Length: blockSize * 3}}},
		},
	}
	d.reconcileFreeSpace()

	report, ok := d.FreeSpace[0]
	require.True(t, ok)
	require.True(t, report.HasBitmap)
	require.Equal(t, uint32(totalBlocks), report.BitmapFreeBlocks)
	require.Equal(t, uint32(3), report.WalkedUsedBlocks)
	require.Contains(t, report.Discrepancies, "walked allocation disagrees with space bitmap")
}
