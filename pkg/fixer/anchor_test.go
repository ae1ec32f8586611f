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

func TestWriteAnchorCopiesToTarget(t *testing.T) {
	mem := blockio.NewMem(1000, 2048)
	avdp := descriptor.AnchorVolumeDescriptorPointer{
		Tag:                      descriptor.Tag{Identifier: 2, Location: 256},
		MainVDSExtentLength:      16 * 2048,
		MainVDSExtentLocation:    257,
		ReserveVDSExtentLength:   16 * 2048,
		ReserveVDSExtentLocation: 300,
	}
	require.NoError(t, mem.WriteAt(256, descriptor.MarshalAVDP(avdp)))

	d := &disc.Disc{
		BlockSize: 2048,
		Anchors: []locator.AnchorCandidate{
			{Block: 256, AVDP: avdp},
			{Block: 999, Err: assertErr},
		},
	}
	f := New(d, mem, option.AutoFix)

	require.NoError(t, f.WriteAnchor(0, 1))
	require.NoError(t, d.Anchors[1].Err)
	require.Equal(t, uint32(999), d.Anchors[1].AVDP.Tag.Location)
	require.Equal(t, avdp.MainVDSExtentLocation, d.Anchors[1].AVDP.MainVDSExtentLocation)

	raw, err := mem.ReadAt(999, 1)
	require.NoError(t, err)
	roundTrip, err := descriptor.UnmarshalAVDP(raw, 999)
	require.NoError(t, err)
	require.Equal(t, avdp.MainVDSExtentLocation, roundTrip.MainVDSExtentLocation)
}

func TestFixAVDPExtentLengthsReconcilesMismatch(t *testing.T) {
	mem := blockio.NewMem(1000, 2048)
	avdp := descriptor.AnchorVolumeDescriptorPointer{
		Tag:                      descriptor.Tag{Identifier: 2, Location: 256},
		MainVDSExtentLength:      20 * 2048,
		MainVDSExtentLocation:    257,
		ReserveVDSExtentLength:   16 * 2048,
		ReserveVDSExtentLocation: 300,
	}
	require.NoError(t, mem.WriteAt(256, descriptor.MarshalAVDP(avdp)))

	d := &disc.Disc{
		BlockSize: 2048,
		Anchors:   []locator.AnchorCandidate{{Block: 256, AVDP: avdp}},
	}
	f := New(d, mem, option.AutoFix)

	report, err := f.FixAVDPExtentLengths()
	require.NoError(t, err)
	require.Len(t, report.Findings, 1)
	require.True(t, report.Findings[0].Repaired)
	require.Equal(t, uint32(20*2048), d.Anchors[0].AVDP.ReserveVDSExtentLength)

	raw, err := mem.ReadAt(256, 1)
	require.NoError(t, err)
	roundTrip, err := descriptor.UnmarshalAVDP(raw, 256)
	require.NoError(t, err)
	require.Equal(t, uint32(20*2048), roundTrip.ReserveVDSExtentLength)
}

func TestFixAVDPExtentLengthsReportOnlyLeavesDiscUntouched(t *testing.T) {
	mem := blockio.NewMem(1000, 2048)
	avdp := descriptor.AnchorVolumeDescriptorPointer{
		Tag:                      descriptor.Tag{Identifier: 2, Location: 256},
		MainVDSExtentLength:      20 * 2048,
		MainVDSExtentLocation:    257,
		ReserveVDSExtentLength:   16 * 2048,
		ReserveVDSExtentLocation: 300,
	}
	require.NoError(t, mem.WriteAt(256, descriptor.MarshalAVDP(avdp)))

	d := &disc.Disc{
		BlockSize: 2048,
		Anchors:   []locator.AnchorCandidate{{Block: 256, AVDP: avdp}},
	}
	f := New(d, mem, option.ReportOnly)

	report, err := f.FixAVDPExtentLengths()
	require.NoError(t, err)
	require.Len(t, report.Findings, 1)
	require.False(t, report.Findings[0].Repaired)

	raw, err := mem.ReadAt(256, 1)
	require.NoError(t, err)
	roundTrip, err := descriptor.UnmarshalAVDP(raw, 256)
	require.NoError(t, err)
	require.Equal(t, uint32(16*2048), roundTrip.ReserveVDSExtentLength)
}

var assertErr = fixerTestErr("damaged anchor")

type fixerTestErr string

func (e fixerTestErr) Error() string { return string(e) }
