package metadatamap

import (
	"testing"

	"github.com/bgrewell/udf-kit/pkg/blockio"
	"github.com/bgrewell/udf-kit/pkg/consts"
	"github.com/bgrewell/udf-kit/pkg/descriptor"
	"github.com/stretchr/testify/require"
)

func identity(block uint32) (uint32, error) { return block, nil }

func buildMetadataMapRaw(fileLoc, mirrorLoc, bitmapLoc uint32) []byte {
	raw := make([]byte, 1+1+32+2+2+12)
	raw[0] = consts.PartitionMapType2
	base := 1 + 1 + 32 + 2 + 2
	putU32(raw[base:], fileLoc)
	putU32(raw[base+4:], mirrorLoc)
	putU32(raw[base+8:], bitmapLoc)
	return raw
}

func putU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func TestLoadUsesPrimaryWhenReadable(t *testing.T) {
	mem := blockio.NewMem(100, 2048)
	fe := descriptor.FileEntry{Tag: descriptor.NewTag(consts.TagIdentFileEntry, 2, 30, 0)}
	require.NoError(t, mem.WriteAt(30, descriptor.MarshalFileEntry(fe)))

	raw := buildMetadataMapRaw(30, 40, 0)
	m, err := Load(mem, identity, raw)
	require.NoError(t, err)
	require.False(t, m.UsedMirror)
	require.Equal(t, uint32(30), m.FileLocation)
}

func TestLoadFallsBackToMirror(t *testing.T) {
	mem := blockio.NewMem(100, 2048)
	fe := descriptor.FileEntry{Tag: descriptor.NewTag(consts.TagIdentFileEntry, 2, 40, 0)}
	require.NoError(t, mem.WriteAt(40, descriptor.MarshalFileEntry(fe)))

	raw := buildMetadataMapRaw(30, 40, 0)
	m, err := Load(mem, identity, raw)
	require.NoError(t, err)
	require.True(t, m.UsedMirror)
}
