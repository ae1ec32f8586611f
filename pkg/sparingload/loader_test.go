package sparingload

import (
	"testing"

	"github.com/bgrewell/udf-kit/pkg/blockio"
	"github.com/bgrewell/udf-kit/pkg/descriptor"
	"github.com/stretchr/testify/require"
)

func TestLoadPicksHighestSequenceNumber(t *testing.T) {
	mem := blockio.NewMem(100, 2048)

	older := descriptor.SparingTable{SequenceNumber: 1, Entries: []descriptor.SparingMapEntry{{OriginalLocation: 5, MappedLocation: 90}}}
	require.NoError(t, mem.WriteAt(10, descriptor.MarshalSparingTable(older)))

	newer := descriptor.SparingTable{SequenceNumber: 2, Entries: []descriptor.SparingMapEntry{{OriginalLocation: 5, MappedLocation: 91}}}
	require.NoError(t, mem.WriteAt(20, descriptor.MarshalSparingTable(newer)))

	tables, err := Load(mem, []uint32{10, 20}, 1)
	require.NoError(t, err)
	require.Len(t, tables, 2)
	require.Equal(t, uint32(2), tables[0].SequenceNumber)
	mapped, ok := tables[0].Resolve(5, 1)
	require.True(t, ok)
	require.Equal(t, uint32(91), mapped)
}

func TestParseLocations(t *testing.T) {
	raw := make([]byte, 46+8)
	raw[0] = 2
	raw[40] = 2 // two tables
	raw[46] = 10
	raw[50] = 20

	locs, _, err := ParseLocations(raw)
	require.NoError(t, err)
	require.Equal(t, []uint32{10, 20}, locs)
}
