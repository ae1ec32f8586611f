package lvidchain

import (
	"testing"

	"github.com/bgrewell/udf-kit/pkg/blockio"
	"github.com/bgrewell/udf-kit/pkg/consts"
	"github.com/bgrewell/udf-kit/pkg/descriptor"
	"github.com/stretchr/testify/require"
)

func TestWalkFollowsChainToClosedEnd(t *testing.T) {
	mem := blockio.NewMem(100, 2048)

	second := descriptor.LogicalVolumeIntegrityDescriptor{
		Tag:           descriptor.NewTag(consts.TagIdentLogicalVolumeIntegrityDescriptor, 3, 20, 0),
		IntegrityType: consts.IntegrityTypeClose,
	}
	require.NoError(t, mem.WriteAt(20, descriptor.MarshalLVID(second)))

	first := descriptor.LogicalVolumeIntegrityDescriptor{
		Tag:                 descriptor.NewTag(consts.TagIdentLogicalVolumeIntegrityDescriptor, 3, 10, 0),
		IntegrityType:       consts.IntegrityTypeOpen,
		NextIntegrityExtent: descriptor.Extent{Length: 2048, Location: 20},
	}
	require.NoError(t, mem.WriteAt(10, descriptor.MarshalLVID(first)))

	chain, err := Walk(mem, descriptor.Extent{Length: 2048, Location: 10})
	require.NoError(t, err)
	require.Len(t, chain, 2)
	require.False(t, IsDirty(chain))
}

func TestWalkDetectsCycle(t *testing.T) {
	mem := blockio.NewMem(100, 2048)
	lvid := descriptor.LogicalVolumeIntegrityDescriptor{
		Tag:                 descriptor.NewTag(consts.TagIdentLogicalVolumeIntegrityDescriptor, 3, 10, 0),
		IntegrityType:       consts.IntegrityTypeOpen,
		NextIntegrityExtent: descriptor.Extent{Length: 2048, Location: 10},
	}
	require.NoError(t, mem.WriteAt(10, descriptor.MarshalLVID(lvid)))

	_, err := Walk(mem, descriptor.Extent{Length: 2048, Location: 10})
	require.Error(t, err)
}
