package fixer

import (
	"encoding/binary"
	"testing"

	"github.com/bgrewell/udf-kit/pkg/blockio"
	"github.com/bgrewell/udf-kit/pkg/consts"
	"github.com/bgrewell/udf-kit/pkg/descriptor"
	"github.com/bgrewell/udf-kit/pkg/disc"
	"github.com/bgrewell/udf-kit/pkg/filesystem"
	"github.com/bgrewell/udf-kit/pkg/partresolve"
	"github.com/bgrewell/udf-kit/pkg/option"
	"github.com/stretchr/testify/require"
)

func buildPartitionContentsUse(bitmapExtentLen, bitmapExtentLoc uint32) [128]byte {
	var use [128]byte
	binary.LittleEndian.PutUint32(use[8:12], bitmapExtentLen)
	binary.LittleEndian.PutUint32(use[12:16], bitmapExtentLoc)
	return use
}

func TestFixPDSpaceBitmapRebuildsFromWalkedEntries(t *testing.T) {
	mem := blockio.NewMem(2000, 2048)

	const partStart, partLen = 100, uint32(1000)
	const bitmapBlock = partStart + 0

	initial := descriptor.SpaceBitmapDescriptor{
		Tag:          descriptor.Tag{Identifier: consts.TagIdentSpaceBitmapDescriptor, Location: bitmapBlock},
		NumberOfBits: partLen,
		Bitmap:       make([]byte, (partLen+7)/8),
	}
	for i := uint32(0); i < partLen; i++ {
		initial.SetFree(i, true) // start fully free; wrong on purpose
	}
	require.NoError(t, mem.WriteAt(bitmapBlock, descriptor.MarshalSpaceBitmapDescriptor(initial)))

	pd := descriptor.PartitionDescriptor{
		PartitionNumber:           0,
		PartitionStartingLocation: partStart,
		PartitionLength:           partLen,
		PartitionContentsUse:      buildPartitionContentsUse(2048, 0),
	}
	d := &disc.Disc{
		BlockSize:  2048,
		Partitions: map[uint16]*partresolve.Partition{0: {Number: 0, Map: descriptor.PartitionMap{Type: consts.PartitionMapType1}, Descriptor: pd}},
		Entries: []filesystem.Entry{
			{Extents: []descriptor.Extent{{Location: partStart + 5, Length: 2 * 2048}}},
		},
	}
	f := New(d, mem, option.AutoFix)

	report, err := f.FixPDSpaceBitmap(0)
	require.NoError(t, err)
	require.Len(t, report.Findings, 1)
	require.True(t, report.Findings[0].Repaired)

	raw, err := mem.ReadAt(bitmapBlock, 1)
	require.NoError(t, err)
	rebuilt, err := descriptor.UnmarshalSpaceBitmapDescriptor(raw, bitmapBlock)
	require.NoError(t, err)
	require.False(t, rebuilt.IsFree(5))
	require.False(t, rebuilt.IsFree(6))
	require.True(t, rebuilt.IsFree(4))
	require.True(t, rebuilt.IsFree(7))
}
