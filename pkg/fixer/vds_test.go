package fixer

import (
	"testing"

	"github.com/bgrewell/udf-kit/pkg/blockio"
	"github.com/bgrewell/udf-kit/pkg/descriptor"
	"github.com/bgrewell/udf-kit/pkg/disc"
	"github.com/bgrewell/udf-kit/pkg/locator"
	"github.com/bgrewell/udf-kit/pkg/option"
	"github.com/stretchr/testify/require"
)

func TestFixVDSRepairsDamagedReserveFromHealthyMain(t *testing.T) {
	const mainLoc, reserveLoc = 10, 50
	mem := blockio.NewMem(2000, 2048)

	mainPVD := descriptor.PrimaryVolumeDescriptor{
		Tag:               descriptor.Tag{Identifier: 1, Location: mainLoc},
		VolumeIdentifier:  "VOL",
	}
	mainBuf, err := descriptor.MarshalPVD(mainPVD)
	require.NoError(t, err)
	require.NoError(t, mem.WriteAt(mainLoc, mainBuf))

	reservePVD := mainPVD
	reservePVD.Tag.Location = reserveLoc
	reserveBuf, err := descriptor.MarshalPVD(reservePVD)
	require.NoError(t, err)
	reserveBuf[descriptor.TagSize+4] ^= 0xFF // corrupt a body byte, breaking the CRC
	require.NoError(t, mem.WriteAt(reserveLoc, reserveBuf))

	avdp := descriptor.AnchorVolumeDescriptorPointer{
		MainVDSExtentLocation:    mainLoc,
		MainVDSExtentLength:      2048,
		ReserveVDSExtentLocation: reserveLoc,
		ReserveVDSExtentLength:   2048,
	}
	d := &disc.Disc{
		BlockSize:     2048,
		Anchors:       []locator.AnchorCandidate{{Block: 256, AVDP: avdp}},
		PrimaryAnchor: 0,
	}
	f := New(d, mem, option.AutoFix)

	report, err := f.FixVDS()
	require.NoError(t, err)
	require.Len(t, report.Findings, 1)
	require.True(t, report.Findings[0].Repaired)
	require.Equal(t, KindNone, report.Kind)

	raw, err := mem.ReadAt(reserveLoc, 1)
	require.NoError(t, err)
	fixed, err := descriptor.UnmarshalPVD(raw, reserveLoc)
	require.NoError(t, err)
	require.Equal(t, "VOL", fixed.VolumeIdentifier)
}

func TestFixVDSReportsBothDamagedAsUnrecoverable(t *testing.T) {
	const mainLoc, reserveLoc = 10, 50
	mem := blockio.NewMem(2000, 2048)

	pvd := descriptor.PrimaryVolumeDescriptor{Tag: descriptor.Tag{Identifier: 1, Location: mainLoc}, VolumeIdentifier: "VOL"}
	mainBuf, err := descriptor.MarshalPVD(pvd)
	require.NoError(t, err)
	mainBuf[descriptor.TagSize+4] ^= 0xFF
	require.NoError(t, mem.WriteAt(mainLoc, mainBuf))

	reservePVD := pvd
	reservePVD.Tag.Location = reserveLoc
	reserveBuf, err := descriptor.MarshalPVD(reservePVD)
	require.NoError(t, err)
	reserveBuf[descriptor.TagSize+4] ^= 0xFF
	require.NoError(t, mem.WriteAt(reserveLoc, reserveBuf))

	avdp := descriptor.AnchorVolumeDescriptorPointer{
		MainVDSExtentLocation: mainLoc, MainVDSExtentLength: 2048,
		ReserveVDSExtentLocation: reserveLoc, ReserveVDSExtentLength: 2048,
	}
	d := &disc.Disc{BlockSize: 2048, Anchors: []locator.AnchorCandidate{{Block: 256, AVDP: avdp}}, PrimaryAnchor: 0}
	f := New(d, mem, option.AutoFix)

	report, err := f.FixVDS()
	require.NoError(t, err)
	require.Equal(t, KindIrrecoverableBothDamaged, report.Kind)
	require.False(t, report.Findings[0].Repaired)
}

func TestFixVDSReportOnlyRepairsNothing(t *testing.T) {
	const mainLoc, reserveLoc = 10, 50
	mem := blockio.NewMem(2000, 2048)

	mainPVD := descriptor.PrimaryVolumeDescriptor{Tag: descriptor.Tag{Identifier: 1, Location: mainLoc}, VolumeIdentifier: "VOL"}
	mainBuf, err := descriptor.MarshalPVD(mainPVD)
	require.NoError(t, err)
	require.NoError(t, mem.WriteAt(mainLoc, mainBuf))

	reservePVD := mainPVD
	reservePVD.Tag.Location = reserveLoc
	reserveBuf, err := descriptor.MarshalPVD(reservePVD)
	require.NoError(t, err)
	reserveBuf[descriptor.TagSize+4] ^= 0xFF
	require.NoError(t, mem.WriteAt(reserveLoc, reserveBuf))

	avdp := descriptor.AnchorVolumeDescriptorPointer{
		MainVDSExtentLocation: mainLoc, MainVDSExtentLength: 2048,
		ReserveVDSExtentLocation: reserveLoc, ReserveVDSExtentLength: 2048,
	}
	d := &disc.Disc{BlockSize: 2048, Anchors: []locator.AnchorCandidate{{Block: 256, AVDP: avdp}}, PrimaryAnchor: 0}
	f := New(d, mem, option.ReportOnly)

	report, err := f.FixVDS()
	require.NoError(t, err)
	require.False(t, report.Findings[0].Repaired)

	raw, err := mem.ReadAt(reserveLoc, 1)
	require.NoError(t, err)
	_, err = descriptor.UnmarshalPVD(raw, reserveLoc)
	require.Error(t, err)
}
