package descriptor

import (
	"testing"
	"time"

	"github.com/bgrewell/udf-kit/pkg/consts"
	"github.com/bgrewell/udf-kit/pkg/entity"
	"github.com/stretchr/testify/require"
)

func TestAVDPRoundTrip(t *testing.T) {
	a := AnchorVolumeDescriptorPointer{
		Tag:                      NewTag(consts.TagIdentAnchorVolumeDescriptorPointer, 3, 256, 0),
		MainVDSExtentLength:      32768,
		MainVDSExtentLocation:    257,
		ReserveVDSExtentLength:   32768,
		ReserveVDSExtentLocation: 273,
	}
	data := MarshalAVDP(a)
	got, err := UnmarshalAVDP(data, 256)
	require.NoError(t, err)
	require.Equal(t, a.MainVDSExtentLocation, got.MainVDSExtentLocation)
	require.Equal(t, a.ReserveVDSExtentLocation, got.ReserveVDSExtentLocation)
}

func TestAVDPWrongLocationFails(t *testing.T) {
	a := AnchorVolumeDescriptorPointer{Tag: NewTag(consts.TagIdentAnchorVolumeDescriptorPointer, 3, 256, 0)}
	data := MarshalAVDP(a)
	_, err := UnmarshalAVDP(data, 999)
	require.Error(t, err)
}

func TestPVDRoundTrip(t *testing.T) {
	p := PrimaryVolumeDescriptor{
		Tag:                            NewTag(consts.TagIdentPrimaryVolumeDescriptor, 3, 17, 0),
		VolumeDescriptorSequenceNumber: 0,
		PrimaryVolumeDescriptorNumber:  0,
		VolumeIdentifier:               "MY_VOLUME",
		VolumeSetIdentifier:            "MY_VOLUME_SET",
		RecordingDateTime:              FromTime(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		ImplementationIdentifier:       entity.NewUDFDomainID(0x0250, false, false),
	}
	data, err := MarshalPVD(p)
	require.NoError(t, err)
	got, err := UnmarshalPVD(data, 17)
	require.NoError(t, err)
	require.Equal(t, "MY_VOLUME", got.VolumeIdentifier)
	require.Equal(t, "MY_VOLUME_SET", got.VolumeSetIdentifier)
}

func TestLVDRoundTripWithPartitionMaps(t *testing.T) {
	type1Map := PartitionMap{Type: consts.PartitionMapType1, Raw: []byte{consts.PartitionMapType1, 6, 0, 0, 1, 0}}
	l := LogicalVolumeDescriptor{
		Tag:                      NewTag(consts.TagIdentLogicalVolumeDescriptor, 3, 18, 0),
		LogicalVolumeIdentifier:  "MY_VOLUME",
		LogicalBlockSize:         2048,
		DomainIdentifier:         entity.NewUDFDomainID(0x0250, false, false),
		ImplementationIdentifier: entity.NewUDFDomainID(0x0250, false, false),
		PartitionMaps:            []PartitionMap{type1Map},
	}
	data, err := MarshalLVD(l)
	require.NoError(t, err)
	got, err := UnmarshalLVD(data, 18)
	require.NoError(t, err)
	require.Equal(t, "MY_VOLUME", got.LogicalVolumeIdentifier)
	require.Len(t, got.PartitionMaps, 1)
	require.Equal(t, "type1", got.PartitionMaps[0].Kind())
}

func TestTerminatingDescriptorRoundTrip(t *testing.T) {
	term := TerminatingDescriptor{Tag: NewTag(consts.TagIdentTerminatingDescriptor, 3, 42, 0)}
	data := MarshalTerminatingDescriptor(term)
	got, err := UnmarshalTerminatingDescriptor(data, 42)
	require.NoError(t, err)
	require.Equal(t, consts.TagIdentTerminatingDescriptor, got.Tag.Identifier)
}

func TestFIDRoundTrip(t *testing.T) {
	fid := FileIdentifierDescriptor{
		Tag:                 NewTag(consts.TagIdentFileIdentifierDescriptor, 3, 100, 0),
		FileCharacteristics: consts.FIDCharDirectory,
		FileIdentifier:      "subdir",
		ICB:                 LongAllocationDescriptor{ExtentLength: 2048, ExtentLocationBlock: 200, ExtentLocationPartition: 0},
	}
	data, err := MarshalFID(fid)
	require.NoError(t, err)
	require.True(t, len(data)%4 == 0)

	got, n, err := UnmarshalFID(data, 100)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.Equal(t, "subdir", got.FileIdentifier)
	require.True(t, got.IsDirectory())
}

func TestFileEntryRoundTrip(t *testing.T) {
	fe := FileEntry{
		Tag:               NewTag(consts.TagIdentFileEntry, 2, 300, 0),
		ICBTag:            ICBTag{FileType: consts.FileTypeRegular, Flags: consts.ICBAllocShort},
		InformationLength: 4096,
		ImplementationIdentifier: entity.NewUDFDomainID(0x0250, false, false),
		AllocationDescriptors: func() []byte {
			ad := MarshalShortAD(ShortAllocationDescriptor{ExtentLength: 4096, ExtentLocation: 500})
			return ad[:]
		}(),
	}
	data := MarshalFileEntry(fe)
	got, err := UnmarshalFileEntry(data, 300)
	require.NoError(t, err)
	require.Equal(t, uint64(4096), got.InformationLength)
	ad, err := UnmarshalShortAD(got.AllocationDescriptors)
	require.NoError(t, err)
	require.Equal(t, uint32(500), ad.ExtentLocation)
}

func TestSpaceBitmapFreeAccounting(t *testing.T) {
	s := SpaceBitmapDescriptor{Tag: NewTag(consts.TagIdentSpaceBitmapDescriptor, 3, 5, 0), NumberOfBits: 16, Bitmap: make([]byte, 2)}
	for i := uint32(0); i < 16; i += 2 {
		s.SetFree(i, true)
	}
	require.Equal(t, uint32(8), s.CountFree())
	require.True(t, s.IsFree(0))
	require.False(t, s.IsFree(1))
}

func TestVAT150Parse(t *testing.T) {
	data := make([]byte, 12)
	for i := 0; i < 3; i++ {
		data[i*4] = byte(i + 10)
	}
	mapping := ParseVAT150(data)
	require.Len(t, mapping, 3)
	require.Equal(t, uint32(10), mapping[0])
}

func TestSparingTableResolve(t *testing.T) {
	st := SparingTable{Entries: []SparingMapEntry{{OriginalLocation: 100, MappedLocation: 9000}}}
	mapped, ok := st.Resolve(100, 1)
	require.True(t, ok)
	require.Equal(t, uint32(9000), mapped)
	_, ok = st.Resolve(101, 1)
	require.False(t, ok)
}

func TestSparingTableResolvePacketAligned(t *testing.T) {
	st := SparingTable{Entries: []SparingMapEntry{{OriginalLocation: 64, MappedLocation: 320}}}
	mapped, ok := st.Resolve(70, 32)
	require.True(t, ok)
	require.Equal(t, uint32(326), mapped)

	_, ok = st.Resolve(100, 32)
	require.False(t, ok)
}
