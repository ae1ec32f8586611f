// Package vatload implements the VAT Loader (spec.md §4.9): it locates and
// parses the Virtual Allocation Table file for a Virtual partition map,
// supporting both the headerless UDF 1.50 form and the UDF 2.00+ form with
// a trailing metadata header.
package vatload

import (
	"fmt"

	"github.com/bgrewell/udf-kit/pkg/blockio"
	"github.com/bgrewell/udf-kit/pkg/consts"
	"github.com/bgrewell/udf-kit/pkg/descriptor"
	"github.com/bgrewell/udf-kit/pkg/entity"
)

// Result is a loaded VAT: its partition-block mapping array plus, for
// UDF 2.00+, the trailing header.
type Result struct {
	Mapping []uint32
	Header  *descriptor.VAT200Header // nil for 1.50
}

// Load reads the VAT file entry's content, locating it by walking the last
// consts.MaxVATSearchBlocks blocks of the backing partition for an ICB
// bearing consts.FileTypeVAT15 or consts.FileTypeVAT20 — the VAT ICB has no
// fixed location, only a fixed search window at the partition's end
// (spec.md §4.9).
func Load(io blockio.BlockIO, resolveBacking func(block uint32) (uint32, error), backingPartitionLength uint32) (Result, error) {
	searchFrom := backingPartitionLength
	if searchFrom > consts.MaxVATSearchBlocks {
		searchFrom -= consts.MaxVATSearchBlocks
	} else {
		searchFrom = 0
	}

	for rel := backingPartitionLength; rel > searchFrom; rel-- {
		block, err := resolveBacking(rel - 1)
		if err != nil {
			continue
		}
		data, err := io.ReadAt(block, 1)
		if err != nil {
			continue
		}
		tag, err := descriptor.UnmarshalTag(data[:descriptor.TagSize])
		if err != nil {
			continue
		}
		if tag.Identifier != consts.TagIdentFileEntry && tag.Identifier != consts.TagIdentExtendedFileEntry {
			continue
		}

		fileType, content, err := readICBContent(io, data, tag, block, resolveBacking)
		if err != nil {
			continue
		}
		if fileType != consts.FileTypeVAT15 && fileType != consts.FileTypeVAT20 {
			continue
		}
		return parseContent(content, fileType)
	}

	return Result{}, fmt.Errorf("vatload: no VAT ICB found in last %d blocks of backing partition", consts.MaxVATSearchBlocks)
}

// readICBContent extracts the VAT file's raw content, assuming in-ICB
// allocation (the common case for a small-to-moderate VAT) or a single
// short allocation descriptor extent otherwise.
func readICBContent(io blockio.BlockIO, icbBlockData []byte, tag descriptor.Tag, icbBlock uint32, resolveBacking func(uint32) (uint32, error)) (byte, []byte, error) {
	if tag.Identifier == consts.TagIdentFileEntry {
		fe, err := descriptor.UnmarshalFileEntry(icbBlockData, icbBlock)
		if err != nil {
			return 0, nil, err
		}
		return readEntryContent(io, fe.ICBTag, fe.InformationLength, fe.AllocationDescriptors, resolveBacking)
	}
	efe, err := descriptor.UnmarshalExtendedFileEntry(icbBlockData, icbBlock)
	if err != nil {
		return 0, nil, err
	}
	return readEntryContent(io, efe.ICBTag, efe.InformationLength, efe.AllocationDescriptors, resolveBacking)
}

// readEntryContent assembles the VAT file's content bytes. In-ICB content
// is the common small-VAT case; otherwise every short or long allocation
// descriptor in the list contributes its extent's bytes in order, since a
// VAT can be split across more than one extent (original_source's
// readdisc.c sums across every SHORT_AD and LONG_AD entry the same way).
func readEntryContent(io blockio.BlockIO, icbTag descriptor.ICBTag, infoLen uint64, ads []byte, resolveBacking func(uint32) (uint32, error)) (byte, []byte, error) {
	if icbTag.AllocDescForm() == consts.ICBAllocInICB {
		if uint64(len(ads)) < infoLen {
			return 0, nil, fmt.Errorf("vatload: in-ICB content shorter than information length")
		}
		return icbTag.FileType, ads[:infoLen], nil
	}

	var out []byte
	switch icbTag.AllocDescForm() {
	case consts.ICBAllocShort:
		for off := 0; off+descriptor.ShortADSize <= len(ads); off += descriptor.ShortADSize {
			ad, err := descriptor.UnmarshalShortAD(ads[off : off+descriptor.ShortADSize])
			if err != nil {
				return 0, nil, err
			}
			if ad.Type() == descriptor.ExtentTypeNotRecorded || ad.Length() == 0 {
				continue
			}
			chunk, err := readExtentBytes(io, resolveBacking, ad.ExtentLocation, ad.Length())
			if err != nil {
				return 0, nil, err
			}
			out = append(out, chunk...)
		}

	case consts.ICBAllocLong:
		for off := 0; off+descriptor.LongADSize <= len(ads); off += descriptor.LongADSize {
			ad, err := descriptor.UnmarshalLongAD(ads[off : off+descriptor.LongADSize])
			if err != nil {
				return 0, nil, err
			}
			if ad.Type() == descriptor.ExtentTypeNotRecorded || ad.Length() == 0 {
				continue
			}
			chunk, err := readExtentBytes(io, resolveBacking, ad.ExtentLocationBlock, ad.Length())
			if err != nil {
				return 0, nil, err
			}
			out = append(out, chunk...)
		}

	default:
		return 0, nil, fmt.Errorf("vatload: unsupported VAT ICB allocation form")
	}

	if uint64(len(out)) < infoLen {
		return 0, nil, fmt.Errorf("vatload: VAT extents shorter than information length")
	}
	return icbTag.FileType, out[:infoLen], nil
}

func readExtentBytes(io blockio.BlockIO, resolveBacking func(uint32) (uint32, error), relBlock uint32, length uint32) ([]byte, error) {
	block, err := resolveBacking(relBlock)
	if err != nil {
		return nil, err
	}
	blockSize := io.PhysicalSectorSize()
	numBlocks := length / blockSize
	if length%blockSize != 0 {
		numBlocks++
	}
	data, err := io.ReadAt(block, numBlocks)
	if err != nil {
		return nil, err
	}
	if uint32(len(data)) > length {
		data = data[:length]
	}
	return data, nil
}

func parseContent(content []byte, fileType byte) (Result, error) {
	if fileType == consts.FileTypeVAT15 {
		// A 1.50 VAT ends in a 36-byte trailer (Entity ID, then the previous
		// VAT ICB location); when that Entity ID is found, the trailer is
		// cut off before the mapping is parsed.
		if len(content) >= 36 {
			idOff := 4 * ((len(content) - 36) / 4)
			var id entity.ID
			if id.Unmarshal(content[idOff:]) == nil && id.Identifier == consts.EntityIDVAT15 {
				content = content[:idOff]
			}
		}
		return Result{Mapping: descriptor.ParseVAT150(content)}, nil
	}
	mapping, hdr, err := descriptor.ParseVAT200(content)
	if err != nil {
		return Result{}, err
	}
	return Result{Mapping: mapping, Header: &hdr}, nil
}
