package extent

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewMapCoversWholeDisc(t *testing.T) {
	m := NewMap(1000)
	require.NoError(t, m.Verify())
	exts := m.Extents()
	require.Len(t, exts, 1)
	require.Equal(t, uint32(0), exts[0].Start)
	require.Equal(t, uint32(1000), exts[0].Blocks)
}

func TestSetExtentExactMatch(t *testing.T) {
	m := NewMap(1000)
	require.NoError(t, m.SetExtent(Anchor, 0, 1000))
	e, err := m.FindExtent(500)
	require.NoError(t, err)
	require.Equal(t, Anchor, e.Type)
	require.NoError(t, m.Verify())
}

func TestSetExtentStrictlyContainedSplitsThree(t *testing.T) {
	m := NewMap(1000)
	require.NoError(t, m.SetExtent(Anchor, 100, 50))
	require.NoError(t, m.Verify())

	exts := m.Extents()
	require.Len(t, exts, 3)
	require.Equal(t, Reserved, exts[0].Type)
	require.Equal(t, uint32(0), exts[0].Start)
	require.Equal(t, uint32(100), exts[0].Blocks)

	require.Equal(t, Anchor, exts[1].Type)
	require.Equal(t, uint32(100), exts[1].Start)
	require.Equal(t, uint32(50), exts[1].Blocks)

	require.Equal(t, Reserved, exts[2].Type)
	require.Equal(t, uint32(150), exts[2].Start)
	require.Equal(t, uint32(850), exts[2].Blocks)
}

func TestSetExtentAlignsToHeadAndTail(t *testing.T) {
	m := NewMap(1000)
	require.NoError(t, m.SetExtent(Anchor, 0, 100)) // aligns head
	require.NoError(t, m.Verify())
	require.NoError(t, m.SetExtent(VRS, 900, 100)) // aligns tail
	require.NoError(t, m.Verify())

	exts := m.Extents()
	require.Len(t, exts, 3)
	require.Equal(t, Anchor, exts[0].Type)
	require.Equal(t, Reserved, exts[1].Type)
	require.Equal(t, VRS, exts[2].Type)
}

func TestSetExtentSpanningMultipleIsFatal(t *testing.T) {
	m := NewMap(1000)
	require.NoError(t, m.SetExtent(Anchor, 0, 100))
	err := m.SetExtent(VRS, 50, 500)
	require.Error(t, err)
}

func TestAdjacentSameTypeExtentsAreNotMerged(t *testing.T) {
	m := NewMap(1000)
	require.NoError(t, m.SetExtent(Anchor, 0, 100))
	require.NoError(t, m.SetExtent(Anchor, 100, 100))
	exts := m.Extents()
	// Two distinct Anchor extents remain, per spec.md §4.3 ("NOT auto-merged").
	require.Len(t, exts, 3)
	require.Equal(t, Anchor, exts[0].Type)
	require.Equal(t, Anchor, exts[1].Type)
	require.Equal(t, Reserved, exts[2].Type)
}

func TestNextPrevExtent(t *testing.T) {
	m := NewMap(1000)
	require.NoError(t, m.SetExtent(Anchor, 0, 100))
	require.NoError(t, m.SetExtent(VRS, 100, 100))
	require.NoError(t, m.SetExtent(PSpace, 200, 800))

	next, ok := m.NextExtent(0, Mask(PSpace))
	require.True(t, ok)
	require.Equal(t, uint32(200), next.Start)

	prev, ok := m.PrevExtent(250, Mask(Anchor))
	require.True(t, ok)
	require.Equal(t, uint32(0), prev.Start)

	_, ok = m.NextExtent(0, Mask(Bad))
	require.False(t, ok)
}

func TestNextExtentSizeHonorsAlignment(t *testing.T) {
	m := NewMap(1000)
	require.NoError(t, m.SetExtent(PSpace, 0, 1000))

	start, ok := m.NextExtentSize(0, Mask(PSpace), 10, 32)
	require.True(t, ok)
	require.Equal(t, uint32(0), start)

	// Consume the first aligned chunk, then ask again offset from inside it.
	start, ok = m.NextExtentSize(5, Mask(PSpace), 10, 32)
	require.True(t, ok)
	require.True(t, start%32 == 0)
}
