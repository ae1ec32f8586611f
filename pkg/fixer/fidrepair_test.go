package fixer

import (
	"testing"

	"github.com/bgrewell/udf-kit/pkg/blockio"
	"github.com/bgrewell/udf-kit/pkg/consts"
	"github.com/bgrewell/udf-kit/pkg/descriptor"
	"github.com/bgrewell/udf-kit/pkg/disc"
	"github.com/bgrewell/udf-kit/pkg/option"
	"github.com/bgrewell/udf-kit/pkg/partresolve"
	"github.com/stretchr/testify/require"
)

// writeDirectoryWithOneChild writes a directory FE at dirBlock whose content
// (one short-AD extent at contentBlock) holds exactly one non-parent FID
// naming a child at childBlock.
func writeDirectoryWithOneChild(t *testing.T, mem *blockio.MemBlockIO, dirBlock, contentBlock, childBlock uint32, fidUniqueLow32 uint32) {
	t.Helper()

	fid := descriptor.FileIdentifierDescriptor{
		Tag:               descriptor.Tag{Identifier: consts.TagIdentFileIdentifierDescriptor, Location: contentBlock},
		FileCharacteristics: 0,
		FileIdentifier:    "child.txt",
		ICB:               descriptor.LongAllocationDescriptor{ExtentLength: 2048, ExtentLocationBlock: childBlock, ExtentLocationPartition: 0},
		ImplementationUse: make([]byte, 4),
	}
	fid.SetUniqueIDLow32(fidUniqueLow32)
	fidBuf, err := descriptor.MarshalFID(fid)
	require.NoError(t, err)

	content := make([]byte, 2048)
	copy(content, fidBuf)
	require.NoError(t, mem.WriteAt(contentBlock, content))

	ad := descriptor.MarshalShortAD(descriptor.ShortAllocationDescriptor{ExtentLength: uint32(len(fidBuf)), ExtentLocation: contentBlock})
	dirFE := descriptor.FileEntry{
		Tag:                   descriptor.Tag{Identifier: consts.TagIdentFileEntry, Location: dirBlock},
		ICBTag:                descriptor.ICBTag{FileType: consts.FileTypeDirectory, Flags: consts.ICBAllocShort},
		InformationLength:     uint64(len(fidBuf)),
		LogicalBlocksRecorded: 1,
		AllocationDescriptors: ad[:],
	}
	require.NoError(t, mem.WriteAt(dirBlock, descriptor.MarshalFileEntry(dirFE)))
}

func newFixerForFIDTests(mem *blockio.MemBlockIO) *Fixer {
	d := &disc.Disc{
		BlockSize: 2048,
		Partitions: map[uint16]*partresolve.Partition{
			0: {Number: 0, Map: descriptor.PartitionMap{Type: consts.PartitionMapType1}, Descriptor: descriptor.PartitionDescriptor{PartitionNumber: 0, PartitionStartingLocation: 0, PartitionLength: 2000}},
		},
	}
	d.Resolver = partresolve.New(d.Partitions)
	return New(d, mem, option.AutoFix)
}

func TestRepairDirectoryFixesUniqueIDMismatch(t *testing.T) {
	mem := blockio.NewMem(2000, 2048)

	const dirBlock, contentBlock, childBlock = 10, 11, 20
	writeDirectoryWithOneChild(t, mem, dirBlock, contentBlock, childBlock, 99)

	childFE := descriptor.FileEntry{
		Tag:                   descriptor.Tag{Identifier: consts.TagIdentFileEntry, Location: childBlock},
		ICBTag:                descriptor.ICBTag{FileType: consts.FileTypeRegular, Flags: consts.ICBAllocInICB},
		UniqueID:              5,
		InformationLength:     0,
		LogicalBlocksRecorded: 0,
	}
	require.NoError(t, mem.WriteAt(childBlock, descriptor.MarshalFileEntry(childFE)))

	f := newFixerForFIDTests(mem)
	report, err := f.RepairDirectory(0, dirBlock)
	require.NoError(t, err)
	require.Len(t, report.Findings, 1)
	require.True(t, report.Findings[0].Repaired)
	require.Equal(t, ErrUUID, report.Findings[0].Flags)

	raw, err := mem.ReadAt(childBlock, 1)
	require.NoError(t, err)
	fixed, err := descriptor.UnmarshalFileEntry(raw, childBlock)
	require.NoError(t, err)
	require.Equal(t, uint64(99), fixed.UniqueID)
}

func TestRepairDirectoryRemovesUnfinishedWrite(t *testing.T) {
	mem := blockio.NewMem(2000, 2048)

	const dirBlock, contentBlock, childBlock = 10, 11, 20
	writeDirectoryWithOneChild(t, mem, dirBlock, contentBlock, childBlock, 5)

	// Claims 4096 bytes of content (2 blocks) but only 1 block recorded.
	childFE := descriptor.FileEntry{
		Tag:                   descriptor.Tag{Identifier: consts.TagIdentFileEntry, Location: childBlock},
		ICBTag:                descriptor.ICBTag{FileType: consts.FileTypeRegular, Flags: consts.ICBAllocShort},
		UniqueID:              5,
		InformationLength:     4096,
		LogicalBlocksRecorded: 1,
	}
	require.NoError(t, mem.WriteAt(childBlock, descriptor.MarshalFileEntry(childFE)))

	f := newFixerForFIDTests(mem)
	report, err := f.RepairDirectory(0, dirBlock)
	require.NoError(t, err)
	require.Len(t, report.Findings, 1)
	require.True(t, report.Findings[0].Repaired)
	require.Equal(t, ErrExtLen, report.Findings[0].Flags)

	raw, err := mem.ReadAt(contentBlock, 1)
	require.NoError(t, err)
	fid, _, err := descriptor.UnmarshalFID(raw, contentBlock)
	require.NoError(t, err)
	require.True(t, fid.IsDeleted())
	require.Equal(t, uint32(0), fid.ICB.ExtentLocationBlock)

	childRaw, err := mem.ReadAt(childBlock, 1)
	require.NoError(t, err)
	require.True(t, allZero(childRaw))
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
