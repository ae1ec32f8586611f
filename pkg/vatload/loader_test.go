package vatload

import (
	"testing"

	"github.com/bgrewell/udf-kit/pkg/blockio"
	"github.com/bgrewell/udf-kit/pkg/consts"
	"github.com/bgrewell/udf-kit/pkg/descriptor"
	"github.com/stretchr/testify/require"
)

func identity(block uint32) (uint32, error) { return block, nil }

func TestLoadVAT150InICB(t *testing.T) {
	mem := blockio.NewMem(200, 2048)

	mapping := []byte{}
	for _, v := range []uint32{0, 1, 2, descriptor.Unmapped} {
		mapping = append(mapping, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
	}

	fe := descriptor.FileEntry{
		Tag:                  descriptor.NewTag(consts.TagIdentFileEntry, 2, 150, 0),
		ICBTag:               descriptor.ICBTag{FileType: consts.FileTypeVAT15, Flags: uint16(consts.ICBAllocInICB)},
		InformationLength:    uint64(len(mapping)),
		AllocationDescriptors: mapping,
	}
	data := descriptor.MarshalFileEntry(fe)
	require.NoError(t, mem.WriteAt(150, data))

	res, err := Load(mem, identity, 151)
	require.NoError(t, err)
	require.Equal(t, []uint32{0, 1, 2, 0xFFFFFFFF}, res.Mapping)
	require.Nil(t, res.Header)
}
