package locator

import (
	"testing"

	"github.com/bgrewell/udf-kit/pkg/blockio"
	"github.com/bgrewell/udf-kit/pkg/consts"
	"github.com/bgrewell/udf-kit/pkg/descriptor"
	"github.com/stretchr/testify/require"
)

func writeVRS(t *testing.T, mem *blockio.MemBlockIO) {
	t.Helper()
	startBlock := consts.VRSByteOffset / mem.PhysicalSectorSize()
	blocksPerRecord := descriptor.VRSRecordSize / mem.PhysicalSectorSize()

	bea := descriptor.MarshalVRSRecord(descriptor.VRSRecord{StructureType: 0, Identifier: consts.StdBEA01, Version: 1})
	require.NoError(t, mem.WriteAt(startBlock, bea))

	nsr := descriptor.MarshalVRSRecord(descriptor.VRSRecord{StructureType: 0, Identifier: consts.StdNSR03, Version: 1})
	require.NoError(t, mem.WriteAt(startBlock+blocksPerRecord, nsr))

	tea := descriptor.MarshalVRSRecord(descriptor.VRSRecord{StructureType: 0xFF, Identifier: consts.StdTEA01, Version: 1})
	require.NoError(t, mem.WriteAt(startBlock+2*blocksPerRecord, tea))
}

func TestLocateVRSStopsAtTerminator(t *testing.T) {
	totalBlocks := (consts.VRSByteOffset/2048 + 10) * 1
	mem := blockio.NewMem(uint32(totalBlocks), 2048)
	writeVRS(t, mem)

	loc := New(mem, nil)
	records, err := loc.LocateVRS()
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.True(t, records[2].IsTerminator())
	require.True(t, HasNSR(records))
}

func TestLocateAnchorsFindsPrimaryAndSecondary(t *testing.T) {
	totalBlocks := uint32(10000)
	mem := blockio.NewMem(totalBlocks, 2048)

	avdp := descriptor.AnchorVolumeDescriptorPointer{
		MainVDSExtentLength:      16 * 2048,
		MainVDSExtentLocation:    257,
		ReserveVDSExtentLength:   16 * 2048,
		ReserveVDSExtentLocation: 300,
	}
	primaryTag := descriptor.NewTag(consts.TagIdentAnchorVolumeDescriptorPointer, 3, consts.PrimaryAnchorBlock, 0)
	avdp.Tag = primaryTag
	require.NoError(t, mem.WriteAt(consts.PrimaryAnchorBlock, descriptor.MarshalAVDP(avdp)))

	secondaryBlock := totalBlocks - consts.SecondaryAnchorBackFromLast
	avdp.Tag = descriptor.NewTag(consts.TagIdentAnchorVolumeDescriptorPointer, 3, secondaryBlock, 0)
	require.NoError(t, mem.WriteAt(secondaryBlock, descriptor.MarshalAVDP(avdp)))

	loc := New(mem, nil)
	candidates := loc.LocateAnchors(totalBlocks)
	valid := Valid(candidates)
	require.GreaterOrEqual(t, len(valid), 2)
}

func TestLocateAnchorsRejectsUndersizedExtent(t *testing.T) {
	totalBlocks := uint32(10000)
	mem := blockio.NewMem(totalBlocks, 2048)

	avdp := descriptor.AnchorVolumeDescriptorPointer{
		Tag:                      descriptor.NewTag(consts.TagIdentAnchorVolumeDescriptorPointer, 3, consts.PrimaryAnchorBlock, 0),
		MainVDSExtentLength:      100, // far below 16*block_size
		MainVDSExtentLocation:    257,
		ReserveVDSExtentLength:   100,
		ReserveVDSExtentLocation: 300,
	}
	require.NoError(t, mem.WriteAt(consts.PrimaryAnchorBlock, descriptor.MarshalAVDP(avdp)))

	loc := New(mem, nil)
	candidates := loc.LocateAnchors(totalBlocks)
	for _, c := range candidates {
		if c.Block == consts.PrimaryAnchorBlock {
			require.Error(t, c.Err)
		}
	}
}
