package fixer

import (
	"testing"

	"github.com/bgrewell/udf-kit/pkg/blockio"
	"github.com/bgrewell/udf-kit/pkg/consts"
	"github.com/bgrewell/udf-kit/pkg/descriptor"
	"github.com/bgrewell/udf-kit/pkg/disc"
	"github.com/bgrewell/udf-kit/pkg/filesystem"
	"github.com/bgrewell/udf-kit/pkg/freespace"
	"github.com/bgrewell/udf-kit/pkg/partresolve"
	"github.com/bgrewell/udf-kit/pkg/option"
	"github.com/stretchr/testify/require"
)

func TestFixLVIDCloseSetsIntegrityAndNextUniqueID(t *testing.T) {
	mem := blockio.NewMem(2000, 2048)

	const lvidBlock = 500
	open := descriptor.LogicalVolumeIntegrityDescriptor{
		Tag:            descriptor.Tag{Identifier: consts.TagIdentLogicalVolumeIntegrityDescriptor, Location: lvidBlock},
		IntegrityType:  consts.IntegrityTypeOpen,
		FreeSpaceTable: []uint32{0},
		SizeTable:      []uint32{1000},
	}
	require.NoError(t, mem.WriteAt(lvidBlock, descriptor.MarshalLVID(open)))

	pd := descriptor.PartitionDescriptor{PartitionNumber: 0, PartitionStartingLocation: 0, PartitionLength: 1000}
	d := &disc.Disc{
		BlockSize: 2048,
		IO:        mem,
		LVIDChain: []descriptor.LogicalVolumeIntegrityDescriptor{open},
		Partitions: map[uint16]*partresolve.Partition{
			0: {Number: 0, Map: descriptor.PartitionMap{Type: consts.PartitionMapType1}, Descriptor: pd},
		},
		Entries: []filesystem.Entry{
			{IsDir: false, UniqueID: 42},
			{IsDir: true, UniqueID: 7},
		},
		FreeSpace: map[uint16]freespace.Report{
			0: {WalkedUsedBlocks: 100},
		},
	}
	f := New(d, mem, option.AutoFix)

	report, err := f.FixLVIDClose()
	require.NoError(t, err)
	require.True(t, report.Findings[0].Repaired)

	raw, err := mem.ReadAt(lvidBlock, 1)
	require.NoError(t, err)
	closed, err := descriptor.UnmarshalLVID(raw, lvidBlock)
	require.NoError(t, err)
	require.True(t, closed.IsClosed())
	require.Equal(t, uint64(43), closed.UniqueIDCounter())
	require.Equal(t, uint32(900), closed.FreeSpaceTable[0])
}
