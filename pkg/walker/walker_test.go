package walker

import (
	"testing"

	"github.com/bgrewell/udf-kit/pkg/blockio"
	"github.com/bgrewell/udf-kit/pkg/consts"
	"github.com/bgrewell/udf-kit/pkg/descriptor"
	"github.com/bgrewell/udf-kit/pkg/partresolve"
	"github.com/stretchr/testify/require"
)

func writeFileEntry(t *testing.T, mem *blockio.MemBlockIO, block uint32, fileType byte, content []byte) {
	t.Helper()
	fe := descriptor.FileEntry{
		Tag:                   descriptor.NewTag(consts.TagIdentFileEntry, 2, block, 0),
		ICBTag:                descriptor.ICBTag{FileType: fileType, Flags: consts.ICBAllocInICB},
		InformationLength:     uint64(len(content)),
		AllocationDescriptors: content,
	}
	require.NoError(t, mem.WriteAt(block, descriptor.MarshalFileEntry(fe)))
}

func TestWalkFlattensTreeWithOneFile(t *testing.T) {
	mem := blockio.NewMem(500, 2048)

	fileFID := descriptor.FileIdentifierDescriptor{
		Tag:               descriptor.NewTag(consts.TagIdentFileIdentifierDescriptor, 3, 10, 0),
		FileIdentifier:    "hello.txt",
		ICB:               descriptor.LongAllocationDescriptor{ExtentLength: 2048, ExtentLocationBlock: 20, ExtentLocationPartition: 0},
	}
	fidData, err := descriptor.MarshalFID(fileFID)
	require.NoError(t, err)
	writeFileEntry(t, mem, 10, consts.FileTypeDirectory, fidData)
	writeFileEntry(t, mem, 20, consts.FileTypeRegular, []byte("hello world"))

	pd := descriptor.PartitionDescriptor{PartitionNumber: 0, PartitionStartingLocation: 0, PartitionLength: 500}
	p := &partresolve.Partition{Number: 0, Map: descriptor.PartitionMap{Type: consts.PartitionMapType1}, Descriptor: pd}
	resolver := partresolve.New(map[uint16]*partresolve.Partition{0: p})

	w := New(mem, resolver)
	root := descriptor.LongAllocationDescriptor{ExtentLength: 2048, ExtentLocationBlock: 10, ExtentLocationPartition: 0}
	entries, err := w.Walk(root)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "/", entries[0].Path)
	require.True(t, entries[0].IsDir)
	require.Equal(t, "/hello.txt", entries[1].Path)
	require.False(t, entries[1].IsDir)
	require.Equal(t, uint64(len("hello world")), entries[1].Size)
}

func TestWalkRecordsBackingExtentsForShortADFile(t *testing.T) {
	mem := blockio.NewMem(500, 2048)

	dataBlock := uint32(30)
	require.NoError(t, mem.WriteAt(dataBlock, []byte("payload bytes")))

	ad := descriptor.MarshalShortAD(descriptor.ShortAllocationDescriptor{ExtentLength: uint32(len("payload bytes")), ExtentLocation: dataBlock})
	fe := descriptor.FileEntry{
		Tag:                   descriptor.NewTag(consts.TagIdentFileEntry, 2, 20, 0),
		ICBTag:                descriptor.ICBTag{FileType: consts.FileTypeRegular, Flags: consts.ICBAllocShort},
		InformationLength:     uint64(len("payload bytes")),
		LogicalBlocksRecorded: 1,
		AllocationDescriptors: ad[:],
	}
	require.NoError(t, mem.WriteAt(20, descriptor.MarshalFileEntry(fe)))

	fileFID := descriptor.FileIdentifierDescriptor{
		Tag:            descriptor.NewTag(consts.TagIdentFileIdentifierDescriptor, 3, 10, 0),
		FileIdentifier: "data.bin",
		ICB:            descriptor.LongAllocationDescriptor{ExtentLength: 2048, ExtentLocationBlock: 20, ExtentLocationPartition: 0},
	}
	fidData, err := descriptor.MarshalFID(fileFID)
	require.NoError(t, err)
	writeFileEntry(t, mem, 10, consts.FileTypeDirectory, fidData)

	pd := descriptor.PartitionDescriptor{PartitionNumber: 0, PartitionStartingLocation: 0, PartitionLength: 500}
	p := &partresolve.Partition{Number: 0, Map: descriptor.PartitionMap{Type: consts.PartitionMapType1}, Descriptor: pd}
	resolver := partresolve.New(map[uint16]*partresolve.Partition{0: p})

	w := New(mem, resolver)
	root := descriptor.LongAllocationDescriptor{ExtentLength: 2048, ExtentLocationBlock: 10, ExtentLocationPartition: 0}
	entries, err := w.Walk(root)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	file := entries[1]
	require.Equal(t, "/data.bin", file.Path)
	require.Len(t, file.Extents, 1)
	require.Equal(t, dataBlock, file.Extents[0].Location)
	require.Equal(t, uint32(len("payload bytes")), file.Extents[0].Length)
}

func TestWalkPrunesRevisitedICB(t *testing.T) {
	mem := blockio.NewMem(500, 2048)

	selfFID := descriptor.FileIdentifierDescriptor{
		Tag:            descriptor.NewTag(consts.TagIdentFileIdentifierDescriptor, 3, 10, 0),
		FileCharacteristics: consts.FIDCharDirectory,
		FileIdentifier: "loop",
		ICB:            descriptor.LongAllocationDescriptor{ExtentLength: 2048, ExtentLocationBlock: 10, ExtentLocationPartition: 0},
	}
	fidData, err := descriptor.MarshalFID(selfFID)
	require.NoError(t, err)
	writeFileEntry(t, mem, 10, consts.FileTypeDirectory, fidData)

	pd := descriptor.PartitionDescriptor{PartitionNumber: 0, PartitionStartingLocation: 0, PartitionLength: 500}
	p := &partresolve.Partition{Number: 0, Map: descriptor.PartitionMap{Type: consts.PartitionMapType1}, Descriptor: pd}
	resolver := partresolve.New(map[uint16]*partresolve.Partition{0: p})

	w := New(mem, resolver)
	root := descriptor.LongAllocationDescriptor{ExtentLength: 2048, ExtentLocationBlock: 10, ExtentLocationPartition: 0}
	entries, err := w.Walk(root)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
