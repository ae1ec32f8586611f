package freespace

import (
	"testing"

	"github.com/bgrewell/udf-kit/pkg/descriptor"
	"github.com/bgrewell/udf-kit/pkg/filesystem"
	"github.com/stretchr/testify/require"
)

func TestReconcileAgreesWhenBitmapMatchesWalk(t *testing.T) {
	bitmap := descriptor.SpaceBitmapDescriptor{NumberOfBits: 10, Bitmap: []byte{0xFF, 0xFF}}
	for i := uint32(0); i < 2; i++ {
		bitmap.SetFree(i, false) // blocks 0,1 used
	}

	entries := []filesystem.Entry{
		{Extents: []descriptor.Extent{{Length: 2048 * 2, Location: 0}}},
	}

	r := Reconcile(0, 10, &bitmap, nil, 0, entries, 2048)
	require.True(t, r.HasBitmap)
	require.Equal(t, uint32(8), r.BitmapFreeBlocks)
	require.Equal(t, uint32(2), r.WalkedUsedBlocks)
	require.Empty(t, r.Discrepancies)
}

func TestReconcileFlagsTableDisagreement(t *testing.T) {
	bitmap := descriptor.SpaceBitmapDescriptor{NumberOfBits: 10, Bitmap: []byte{0xFF, 0xFF}}
	table := descriptor.SpaceTableDescriptor{Extents: []descriptor.Extent{{Length: 2048 * 5, Location: 0}}}

	r := Reconcile(0, 10, &bitmap, &table, 0, nil, 2048)
	require.NotEmpty(t, r.Discrepancies)
}
