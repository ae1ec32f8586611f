package fixer

import (
	"testing"

	"github.com/bgrewell/udf-kit/pkg/blockio"
	"github.com/bgrewell/udf-kit/pkg/descriptor"
	"github.com/bgrewell/udf-kit/pkg/disc"
	"github.com/bgrewell/udf-kit/pkg/option"
	"github.com/bgrewell/udf-kit/pkg/vds"
	"github.com/stretchr/testify/require"
)

func TestSetVolumeLabelUpdatesMainAndReserve(t *testing.T) {
	mem := blockio.NewMem(2000, 2048)

	const mainLoc, reserveLoc = 10, 50
	mainPVD := descriptor.PrimaryVolumeDescriptor{Tag: descriptor.Tag{Identifier: 1, Location: mainLoc}, VolumeIdentifier: "OLD"}
	reservePVD := descriptor.PrimaryVolumeDescriptor{Tag: descriptor.Tag{Identifier: 1, Location: reserveLoc}, VolumeIdentifier: "OLD"}

	d := &disc.Disc{
		BlockSize: 2048,
		MainVDS:   &vds.Result{PrimaryVolume: &mainPVD},
		ReserveVDS: &vds.Result{PrimaryVolume: &reservePVD},
		Merged:    &vds.Result{PrimaryVolume: &mainPVD},
	}
	f := New(d, mem, option.AutoFix)

	require.NoError(t, f.SetVolumeLabel("NEWVOL"))
	require.Equal(t, "NEWVOL", d.MainVDS.PrimaryVolume.VolumeIdentifier)
	require.Equal(t, "NEWVOL", d.ReserveVDS.PrimaryVolume.VolumeIdentifier)

	mainRaw, err := mem.ReadAt(mainLoc, 1)
	require.NoError(t, err)
	mainFixed, err := descriptor.UnmarshalPVD(mainRaw, mainLoc)
	require.NoError(t, err)
	require.Equal(t, "NEWVOL", mainFixed.VolumeIdentifier)

	reserveRaw, err := mem.ReadAt(reserveLoc, 1)
	require.NoError(t, err)
	reserveFixed, err := descriptor.UnmarshalPVD(reserveRaw, reserveLoc)
	require.NoError(t, err)
	require.Equal(t, "NEWVOL", reserveFixed.VolumeIdentifier)
}

func TestComputeWindowsSerialNumberIsDeterministic(t *testing.T) {
	mem := blockio.NewMem(10, 2048)
	fsd := descriptor.FileSetDescriptor{
		LogicalVolumeIdentifier: "VOL",
		FileSetIdentifier:       "FS",
	}
	d := &disc.Disc{BlockSize: 2048, FSD: fsd}
	f := New(d, mem, option.ReportOnly)

	n1, err := f.ComputeWindowsSerialNumber()
	require.NoError(t, err)
	n2, err := f.ComputeWindowsSerialNumber()
	require.NoError(t, err)
	require.Equal(t, n1, n2)
}

func TestExtractLabelPrefersPrimaryVolumeIdentifier(t *testing.T) {
	mem := blockio.NewMem(10, 2048)
	pvd := descriptor.PrimaryVolumeDescriptor{VolumeIdentifier: "FROM_PVD"}
	d := &disc.Disc{
		Merged: &vds.Result{PrimaryVolume: &pvd},
		FSD:    descriptor.FileSetDescriptor{LogicalVolumeIdentifier: "FROM_FSD"},
	}
	f := New(d, mem, option.ReportOnly)
	require.Equal(t, "FROM_PVD", f.ExtractLabel())
}
