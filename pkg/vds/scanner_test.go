package vds

import (
	"testing"

	"github.com/bgrewell/udf-kit/pkg/blockio"
	"github.com/bgrewell/udf-kit/pkg/consts"
	"github.com/bgrewell/udf-kit/pkg/descriptor"
	"github.com/stretchr/testify/require"
)

func TestScanPicksHighestSequenceNumberPVD(t *testing.T) {
	mem := blockio.NewMem(100, 2048)

	old := descriptor.PrimaryVolumeDescriptor{
		Tag:                            descriptor.NewTag(consts.TagIdentPrimaryVolumeDescriptor, 3, 10, 0),
		VolumeDescriptorSequenceNumber: 1,
		VolumeIdentifier:               "OLD",
	}
	data, err := descriptor.MarshalPVD(old)
	require.NoError(t, err)
	require.NoError(t, mem.WriteAt(10, data))

	newer := descriptor.PrimaryVolumeDescriptor{
		Tag:                            descriptor.NewTag(consts.TagIdentPrimaryVolumeDescriptor, 3, 11, 0),
		VolumeDescriptorSequenceNumber: 2,
		VolumeIdentifier:               "NEW",
	}
	data, err = descriptor.MarshalPVD(newer)
	require.NoError(t, err)
	require.NoError(t, mem.WriteAt(11, data))

	term := descriptor.TerminatingDescriptor{Tag: descriptor.NewTag(consts.TagIdentTerminatingDescriptor, 3, 12, 0)}
	require.NoError(t, mem.WriteAt(12, descriptor.MarshalTerminatingDescriptor(term)))

	s := New(mem, nil)
	res, err := s.Scan(10, 20*2048)
	require.NoError(t, err)
	require.NotNil(t, res.PrimaryVolume)
	require.Equal(t, "NEW", res.PrimaryVolume.VolumeIdentifier)
	require.True(t, res.SawTerminator)
}

func TestScanFollowsContinuationPointer(t *testing.T) {
	mem := blockio.NewMem(200, 2048)

	vdp := descriptor.VolumeDescriptorPointer{
		Tag:                                descriptor.NewTag(consts.TagIdentVolumeDescriptorPointer, 3, 10, 0),
		NextVolumeDescriptorSequenceExtent: descriptor.Extent{Length: 5 * 2048, Location: 100},
	}
	require.NoError(t, mem.WriteAt(10, descriptor.MarshalVolumeDescriptorPointer(vdp)))

	pvd := descriptor.PrimaryVolumeDescriptor{
		Tag:                            descriptor.NewTag(consts.TagIdentPrimaryVolumeDescriptor, 3, 100, 0),
		VolumeDescriptorSequenceNumber: 1,
		VolumeIdentifier:               "CONTINUED",
	}
	data, err := descriptor.MarshalPVD(pvd)
	require.NoError(t, err)
	require.NoError(t, mem.WriteAt(100, data))

	term := descriptor.TerminatingDescriptor{Tag: descriptor.NewTag(consts.TagIdentTerminatingDescriptor, 3, 101, 0)}
	require.NoError(t, mem.WriteAt(101, descriptor.MarshalTerminatingDescriptor(term)))

	s := New(mem, nil)
	res, err := s.Scan(10, 1*2048)
	require.NoError(t, err)
	require.NotNil(t, res.PrimaryVolume)
	require.Equal(t, "CONTINUED", res.PrimaryVolume.VolumeIdentifier)
}
